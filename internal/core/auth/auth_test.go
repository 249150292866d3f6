package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"vacation-rental-api/internal/domain"
)

func TestJWTRoundTrip(t *testing.T) {
	j := NewJWTer("s3cret", "rental", time.Hour)
	tok, err := j.Issue("u-1", "admin")
	require.NoError(t, err)

	c, err := j.Parse(tok)
	require.NoError(t, err)
	assert.Equal(t, "u-1", c.UID)
	assert.Equal(t, "admin", c.Role)

	t.Run("wrong secret", func(t *testing.T) {
		other := NewJWTer("other", "rental", time.Hour)
		_, err := other.Parse(tok)
		assert.Error(t, err)
	})

	t.Run("wrong issuer", func(t *testing.T) {
		other := NewJWTer("s3cret", "someone-else", time.Hour)
		_, err := other.Parse(tok)
		assert.Error(t, err)
	})

	t.Run("expired", func(t *testing.T) {
		old := NewJWTer("s3cret", "rental", time.Hour)
		old.now = func() time.Time { return time.Now().Add(-3 * time.Hour) }
		stale, err := old.Issue("u-1", "user")
		require.NoError(t, err)
		_, err = j.Parse(stale)
		assert.Error(t, err)
	})
}

func TestCredentialService(t *testing.T) {
	s := NewService(NewJWTer("s3cret", "rental", time.Hour), bcrypt.MinCost)

	h, err := s.Hash("hunter22")
	require.NoError(t, err)
	assert.True(t, s.Verify("hunter22", h))
	assert.False(t, s.Verify("hunter23", h))

	tok, err := s.IssueToken(domain.Identity{UserID: "u-9", Role: domain.RoleUser})
	require.NoError(t, err)
	id, err := s.VerifyToken(tok)
	require.NoError(t, err)
	assert.Equal(t, domain.Identity{UserID: "u-9", Role: domain.RoleUser}, id)

	_, err = s.VerifyToken("not-a-token")
	assert.Error(t, err)
}
