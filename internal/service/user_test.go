package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"vacation-rental-api/internal/core/auth"
	"vacation-rental-api/internal/domain"
	"vacation-rental-api/internal/policy"
	"vacation-rental-api/internal/repo"
	"vacation-rental-api/pkg/utils"
)

func newUserService(t *testing.T) *UserService {
	t.Helper()
	db := setupTestDB(t)
	creds := auth.NewService(auth.NewJWTer("test-secret", "rental-test", time.Hour), bcrypt.MinCost)
	return NewUserService(repo.NewUserRepo(db), creds, nil, 5*time.Second)
}

func TestRegisterAndLogin(t *testing.T) {
	svc := newUserService(t)
	ctx := context.Background()

	res, err := svc.Register(ctx, RegisterInput{Name: " Ana ", Email: " Ana@Example.com ", Password: "secret1"})
	require.NoError(t, err)
	assert.NotEmpty(t, res.Token)
	assert.Equal(t, "ana@example.com", res.User.Email)
	assert.Equal(t, "Ana", res.User.Name)
	assert.Equal(t, domain.RoleUser, res.User.Role)
	assert.NotEqual(t, "secret1", res.User.PasswordHash)

	t.Run("DuplicateEmail", func(t *testing.T) {
		_, err := svc.Register(ctx, RegisterInput{Name: "Ana", Email: "ana@example.com", Password: "secret1"})
		assert.ErrorIs(t, err, domain.ErrEmailTaken)
	})

	t.Run("InvalidInput", func(t *testing.T) {
		_, err := svc.Register(ctx, RegisterInput{Email: "not-an-email", Password: "123"})
		var de *domain.Error
		require.True(t, errors.As(err, &de))
		var fields []string
		for _, fe := range de.Fields {
			fields = append(fields, fe.Field)
		}
		assert.ElementsMatch(t, []string{"name", "email", "password"}, fields)
	})

	t.Run("Login", func(t *testing.T) {
		out, err := svc.Login(ctx, "ANA@example.com", "secret1")
		require.NoError(t, err)
		assert.Equal(t, res.User.ID, out.User.ID)

		p, err := svc.Authenticate(ctx, out.Token)
		require.NoError(t, err)
		assert.Equal(t, policy.Principal{ID: res.User.ID, Role: domain.RoleUser}, p)
	})

	t.Run("WrongPassword", func(t *testing.T) {
		_, err := svc.Login(ctx, "ana@example.com", "secret2")
		assert.ErrorIs(t, err, domain.ErrInvalidCredentials)
		_, err = svc.Login(ctx, "nobody@example.com", "secret1")
		assert.ErrorIs(t, err, domain.ErrInvalidCredentials)
	})

	t.Run("BadToken", func(t *testing.T) {
		_, err := svc.Authenticate(ctx, "garbage")
		assert.Equal(t, domain.KindUnauthorized, domain.KindOf(err))
	})
}

func TestAdminUserManagement(t *testing.T) {
	svc := newUserService(t)
	ctx := context.Background()

	created, err := svc.EnsureAdmin(ctx, "", "root@example.com", "rootpass")
	require.NoError(t, err)
	assert.True(t, created)
	created, err = svc.EnsureAdmin(ctx, "", "root@example.com", "rootpass")
	require.NoError(t, err)
	assert.False(t, created)

	login, err := svc.Login(ctx, "root@example.com", "rootpass")
	require.NoError(t, err)
	admin := policy.Principal{ID: login.User.ID, Role: login.User.Role}
	require.True(t, admin.IsAdmin())

	ana, err := svc.Register(ctx, RegisterInput{Name: "Ana", Email: "ana@example.com", Password: "secret1"})
	require.NoError(t, err)
	user := policy.Principal{ID: ana.User.ID, Role: domain.RoleUser}

	_, _, err = svc.List(ctx, user, domain.UserFilter{})
	assert.Equal(t, domain.KindForbidden, domain.KindOf(err))

	users, total, err := svc.List(ctx, admin, domain.UserFilter{})
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)
	assert.Len(t, users, 2)

	_, err = svc.SetRole(ctx, admin, ana.User.ID, "superuser")
	assert.Equal(t, domain.KindValidation, domain.KindOf(err))
	_, err = svc.SetRole(ctx, admin, admin.ID, "user")
	assert.Equal(t, domain.KindForbidden, domain.KindOf(err))
	promoted, err := svc.SetRole(ctx, admin, ana.User.ID, "admin")
	require.NoError(t, err)
	assert.Equal(t, domain.RoleAdmin, promoted.Role)

	assert.Equal(t, domain.KindForbidden, domain.KindOf(svc.Ban(ctx, admin, admin.ID)))
	require.NoError(t, svc.Ban(ctx, admin, ana.User.ID))
	assert.Equal(t, domain.KindNotFound, domain.KindOf(svc.Ban(ctx, admin, ana.User.ID)))
	assert.Equal(t, domain.KindNotFound, domain.KindOf(svc.Ban(ctx, admin, utils.NewID())))

	// 封禁后旧令牌失效
	_, err = svc.Authenticate(ctx, ana.Token)
	assert.Equal(t, domain.KindUnauthorized, domain.KindOf(err))
	_, err = svc.Login(ctx, "ana@example.com", "secret1")
	assert.ErrorIs(t, err, domain.ErrInvalidCredentials)
}
