package service

import (
	"context"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"vacation-rental-api/internal/domain"
	"vacation-rental-api/internal/policy"
	"vacation-rental-api/pkg/utils"
)

// UserService 注册/登录与管理端用户维护
type UserService struct {
	users    domain.UserRepository
	creds    domain.Credentials
	validate *validator.Validate
	log      *zap.Logger
	timeout  time.Duration
}

func NewUserService(users domain.UserRepository, creds domain.Credentials, log *zap.Logger, storageTimeout time.Duration) *UserService {
	if log == nil {
		log = zap.NewNop()
	}
	return &UserService{
		users:    users,
		creds:    creds,
		validate: newValidator(),
		log:      log,
		timeout:  storageTimeout,
	}
}

type RegisterInput struct {
	Name     string `json:"name" validate:"required,max=64"`
	Email    string `json:"email" validate:"required,email,max=191"`
	Password string `json:"password" validate:"required,min=6"`
}

type AuthResult struct {
	Token string       `json:"token"`
	User  *domain.User `json:"user"`
}

// Register 新用户一律为普通角色
func (s *UserService) Register(ctx context.Context, in RegisterInput) (*AuthResult, error) {
	in.Name = strings.TrimSpace(in.Name)
	in.Email = normalizeEmail(in.Email)
	if err := validateStruct(s.validate, in); err != nil {
		return nil, err
	}

	hash, err := s.creds.Hash(in.Password)
	if err != nil {
		return nil, domain.Internal("hash password", err)
	}
	u := &domain.User{
		ID:           utils.NewID(),
		Email:        in.Email,
		Name:         in.Name,
		PasswordHash: hash,
		Role:         domain.RoleUser,
	}

	sctx, cancel := withTimeout(ctx, s.timeout)
	defer cancel()
	if err := s.users.Create(sctx, u); err != nil {
		return nil, storageErr("create user", err)
	}
	s.log.Info("user registered", zap.String("user_id", u.ID))
	return s.issue(u)
}

func (s *UserService) Login(ctx context.Context, email, password string) (*AuthResult, error) {
	email = normalizeEmail(email)
	if email == "" || password == "" {
		return nil, domain.ErrInvalidCredentials
	}
	sctx, cancel := withTimeout(ctx, s.timeout)
	defer cancel()
	u, err := s.users.FindByEmail(sctx, email)
	if err != nil {
		return nil, storageErr("load user", err)
	}
	if u == nil || !s.creds.Verify(password, u.PasswordHash) {
		return nil, domain.ErrInvalidCredentials
	}
	return s.issue(u)
}

// Authenticate 校验令牌；已封禁用户的令牌同样失效
func (s *UserService) Authenticate(ctx context.Context, token string) (policy.Principal, error) {
	id, err := s.creds.VerifyToken(token)
	if err != nil {
		return policy.Principal{}, domain.Unauthorized("invalid or expired token")
	}
	u, err := s.Profile(ctx, id.UserID)
	if err != nil {
		if domain.KindOf(err) == domain.KindNotFound {
			return policy.Principal{}, domain.Unauthorized("account no longer exists")
		}
		return policy.Principal{}, err
	}
	return policy.Principal{ID: u.ID, Role: u.Role}, nil
}

func (s *UserService) Profile(ctx context.Context, id string) (*domain.User, error) {
	if !utils.ValidID(id) {
		return nil, domain.InvalidIdentifier("user")
	}
	sctx, cancel := withTimeout(ctx, s.timeout)
	defer cancel()
	u, err := s.users.FindByID(sctx, id)
	if err != nil {
		return nil, storageErr("load user", err)
	}
	if u == nil {
		return nil, domain.NotFound("user")
	}
	return u, nil
}

func (s *UserService) List(ctx context.Context, p policy.Principal, f domain.UserFilter) ([]domain.User, int64, error) {
	if !policy.CanManageUsers(p) {
		return nil, 0, domain.Forbidden("admin role required")
	}
	if f.Limit <= 0 || f.Limit > 100 {
		f.Limit = 20
	}
	if f.Offset < 0 {
		f.Offset = 0
	}
	sctx, cancel := withTimeout(ctx, s.timeout)
	defer cancel()
	users, total, err := s.users.List(sctx, f)
	if err != nil {
		return nil, 0, storageErr("list users", err)
	}
	if users == nil {
		users = []domain.User{}
	}
	return users, total, nil
}

func (s *UserService) SetRole(ctx context.Context, p policy.Principal, id, role string) (*domain.User, error) {
	if !policy.CanManageUsers(p) {
		return nil, domain.Forbidden("admin role required")
	}
	r := domain.Role(strings.ToLower(strings.TrimSpace(role)))
	if !r.Valid() {
		return nil, domain.Validation(domain.FieldError{Field: "role", Rule: "oneof", Message: "must be user or admin"})
	}
	u, err := s.Profile(ctx, id)
	if err != nil {
		return nil, err
	}
	if u.ID == p.ID && r != domain.RoleAdmin {
		return nil, domain.Forbidden("admins cannot demote themselves")
	}

	sctx, cancel := withTimeout(ctx, s.timeout)
	defer cancel()
	if err := s.users.UpdateRole(sctx, u.ID, r); err != nil {
		return nil, storageErr("update role", err)
	}
	s.log.Info("user role changed", zap.String("user_id", u.ID), zap.String("role", string(r)), zap.String("by", p.ID))
	u.Role = r
	return u, nil
}

// Ban 软删账号
func (s *UserService) Ban(ctx context.Context, p policy.Principal, id string) error {
	if !policy.CanManageUsers(p) {
		return domain.Forbidden("admin role required")
	}
	if !utils.ValidID(id) {
		return domain.InvalidIdentifier("user")
	}
	if id == p.ID {
		return domain.Forbidden("admins cannot ban themselves")
	}
	sctx, cancel := withTimeout(ctx, s.timeout)
	defer cancel()
	ok, err := s.users.SoftDelete(sctx, id)
	if err != nil {
		return storageErr("ban user", err)
	}
	if !ok {
		return domain.NotFound("user")
	}
	s.log.Info("user banned", zap.String("user_id", id), zap.String("by", p.ID))
	return nil
}

// EnsureAdmin 启动时创建初始管理员；已存在则提升为 admin
func (s *UserService) EnsureAdmin(ctx context.Context, name, email, password string) (bool, error) {
	email = normalizeEmail(email)
	if email == "" || password == "" {
		return false, nil
	}
	sctx, cancel := withTimeout(ctx, s.timeout)
	defer cancel()

	u, err := s.users.FindByEmail(sctx, email)
	if err != nil {
		return false, storageErr("load user", err)
	}
	if u != nil {
		if u.Role == domain.RoleAdmin {
			return false, nil
		}
		if err := s.users.UpdateRole(sctx, u.ID, domain.RoleAdmin); err != nil {
			return false, storageErr("update role", err)
		}
		return true, nil
	}

	in := RegisterInput{Name: strings.TrimSpace(name), Email: email, Password: password}
	if in.Name == "" {
		in.Name = "Administrator"
	}
	if err := validateStruct(s.validate, in); err != nil {
		return false, err
	}
	hash, err := s.creds.Hash(password)
	if err != nil {
		return false, domain.Internal("hash password", err)
	}
	admin := &domain.User{ID: utils.NewID(), Name: in.Name, Email: email, PasswordHash: hash, Role: domain.RoleAdmin}
	if err := s.users.Create(sctx, admin); err != nil {
		return false, storageErr("create admin", err)
	}
	s.log.Info("bootstrap admin created", zap.String("user_id", admin.ID))
	return true, nil
}

func (s *UserService) issue(u *domain.User) (*AuthResult, error) {
	tok, err := s.creds.IssueToken(domain.Identity{UserID: u.ID, Role: u.Role})
	if err != nil {
		return nil, domain.Internal("issue token", err)
	}
	return &AuthResult{Token: tok, User: u}, nil
}

func normalizeEmail(s string) string { return strings.ToLower(strings.TrimSpace(s)) }
