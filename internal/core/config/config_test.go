package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(p, []byte(body), 0o600))
	return p
}

func TestLoad(t *testing.T) {
	p := writeConfig(t, `
app:
  http:
    port: 8080
  cors:
    allowed_origins: ["https://rent.example.com"]
jwt:
  secret: abc
db:
  driver: postgres
  dsn: postgres://localhost/rental
booking:
  lock_timeout_sec: 3
`)
	c, err := Load(p)
	require.NoError(t, err)

	assert.Equal(t, 8080, c.App.HTTP.Port)
	assert.Equal(t, []string{"https://rent.example.com"}, c.App.CORS.AllowedOrigins)
	assert.Equal(t, "postgres", c.DB.Driver)
	assert.Equal(t, 3*time.Second, c.Booking.LockTimeout())
	// 默认值
	assert.Equal(t, 60, c.JWT.AccessTokenTTLMin)
	assert.Equal(t, 5*time.Second, c.Booking.StorageTimeout())
	assert.Equal(t, "disk", c.Media.Driver)
}

func TestLoadEnvOverride(t *testing.T) {
	p := writeConfig(t, "jwt:\n  secret: from-file\n")
	t.Setenv("APP_JWT_SECRET", "from-env")
	t.Setenv("FRONTEND_URL", "https://a.example.com,https://b.example.com")

	c, err := Load(p)
	require.NoError(t, err)
	assert.Equal(t, "from-env", c.JWT.Secret)
	assert.Equal(t, []string{"https://a.example.com", "https://b.example.com"}, c.App.CORS.AllowedOrigins)
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	t.Setenv("APP_JWT_SECRET", "x")
	c, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "sqlite", c.DB.Driver)
	assert.Equal(t, 3001, c.App.HTTP.Port)
}

func TestLoadRejectsInvalid(t *testing.T) {
	_, err := Load(writeConfig(t, "db:\n  driver: sqlite\n"))
	assert.ErrorContains(t, err, "jwt.secret")

	_, err = Load(writeConfig(t, "jwt:\n  secret: x\ndb:\n  driver: oracle\n"))
	assert.ErrorContains(t, err, "db.driver")

	_, err = Load(writeConfig(t, "jwt:\n  secret: x\nbooking:\n  storage_timeout_sec: 10\n  lock_ttl_sec: 10\n"))
	assert.ErrorContains(t, err, "booking.lock_ttl_sec")
}
