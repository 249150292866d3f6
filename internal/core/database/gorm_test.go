package database

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vacation-rental-api/internal/domain"
)

func TestNewGormSQLiteMigrate(t *testing.T) {
	dsn := "file:" + filepath.Join(t.TempDir(), "t.db") + "?_busy_timeout=5000"
	db, err := NewGorm(Opts{Driver: "sqlite", DSN: dsn, MaxOpenConns: 1, LogLevel: "silent"})
	require.NoError(t, err)
	defer Close(db)

	require.NoError(t, Migrate(db))
	assert.True(t, db.Migrator().HasTable(&domain.User{}))
	assert.True(t, db.Migrator().HasTable(&domain.Property{}))
	assert.True(t, db.Migrator().HasTable(&domain.Booking{}))
}

func TestNewGormUnsupported(t *testing.T) {
	_, err := NewGorm(Opts{Driver: "oracle"})
	assert.ErrorIs(t, err, ErrUnsupportedDriver)
}

func TestNormalizeMySQLDSN(t *testing.T) {
	got := normalizeMySQLDSN(
		"jdbc:mysql://root:pw@db:3306/rental?useSSL=false&serverTimezone=UTC&characterEncoding=utf8",
		"", "override",
	)
	assert.Contains(t, got, "root:override@tcp(db:3306)/rental?")
	assert.Contains(t, got, "tls=false")
	assert.Contains(t, got, "loc=UTC")
	assert.Contains(t, got, "charset=utf8")
	assert.Contains(t, got, "parseTime=true")
	assert.NotContains(t, got, "useSSL")

	native := "u:p@tcp(127.0.0.1:3306)/rental?parseTime=true"
	assert.Equal(t, native, normalizeMySQLDSN(native, "x", "y"))
}

func TestMaskDSN(t *testing.T) {
	assert.Equal(t, "root:****@tcp(db)/x", maskDSN("root:secret@tcp(db)/x"))
	assert.Equal(t, "file:rental.db", maskDSN("file:rental.db"))
}
