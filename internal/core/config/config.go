package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type HTTP struct {
	Host            string
	Port            int
	ReadTimeoutSec  int `mapstructure:"read_timeout_sec"`
	WriteTimeoutSec int `mapstructure:"write_timeout_sec"`
	IdleTimeoutSec  int `mapstructure:"idle_timeout_sec"`

	RequestTimeoutSec int     `mapstructure:"request_timeout_sec"` // 单请求超时
	MaxBodyMB         int64   `mapstructure:"max_body_mb"`
	MaxConcurrent     int64   `mapstructure:"max_concurrent"`
	RateGlobal        float64 `mapstructure:"rate_global"` // 全局令牌桶，0 关闭
	RatePerIP         float64 `mapstructure:"rate_per_ip"`
	RateBurst         int     `mapstructure:"rate_burst"`
}

type AdminHTTP struct {
	Host string
	Port int
}

type CORS struct {
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

type App struct {
	Name  string
	Env   string
	HTTP  HTTP
	Admin AdminHTTP
	CORS  CORS
}

type LogFile struct {
	Enable     bool
	Filename   string
	MaxSizeMB  int `mapstructure:"max_size_mb"`
	MaxBackups int `mapstructure:"max_backups"`
	MaxAgeDays int `mapstructure:"max_age_days"`
	Compress   bool
}

type Log struct {
	Level string
	JSON  bool
	File  LogFile
}

type JWT struct {
	Secret            string
	Issuer            string
	AccessTokenTTLMin int `mapstructure:"access_token_ttl_min"`
	BcryptCost        int `mapstructure:"bcrypt_cost"`
}

type Redis struct {
	Enabled  bool   `mapstructure:"enabled"`
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type DB struct {
	Driver             string
	DSN                string
	Username           string
	Password           string
	MaxOpenConns       int    `mapstructure:"max_open_conns"`
	MaxIdleConns       int    `mapstructure:"max_idle_conns"`
	ConnMaxLifetimeMin int    `mapstructure:"conn_max_lifetime_min"`
	AutoMigrate        bool   `mapstructure:"auto_migrate"`
	LogLevel           string `mapstructure:"log_level"`
}

type Cache struct {
	TTLSec    int   `mapstructure:"ttl_sec"`
	LocalSize int64 `mapstructure:"local_size"`
}

type Cloudinary struct {
	CloudName string `mapstructure:"cloud_name"`
	APIKey    string `mapstructure:"api_key"`
	APISecret string `mapstructure:"api_secret"`
	Folder    string
}

type Media struct {
	Driver         string // disk | cloudinary
	Dir            string
	BaseURL        string `mapstructure:"base_url"`
	PlaceholderURL string `mapstructure:"placeholder_url"`
	TimeoutSec     int    `mapstructure:"timeout_sec"`
	Cloudinary     Cloudinary
}

type Booking struct {
	StorageTimeoutSec int `mapstructure:"storage_timeout_sec"`
	LockTimeoutSec    int `mapstructure:"lock_timeout_sec"`
	LockTTLSec        int `mapstructure:"lock_ttl_sec"`
}

// Bootstrap 启动时确保存在的管理员
type Bootstrap struct {
	AdminName     string `mapstructure:"admin_name"`
	AdminEmail    string `mapstructure:"admin_email"`
	AdminPassword string `mapstructure:"admin_password"`
}

type Config struct {
	App       App
	Log       Log
	JWT       JWT
	DB        DB
	Redis     Redis `mapstructure:"redis"`
	Cache     Cache
	Media     Media
	Booking   Booking
	Bootstrap Bootstrap
}

func (b Booking) StorageTimeout() time.Duration {
	return time.Duration(b.StorageTimeoutSec) * time.Second
}

func (b Booking) LockTimeout() time.Duration { return time.Duration(b.LockTimeoutSec) * time.Second }

func (b Booking) LockTTL() time.Duration { return time.Duration(b.LockTTLSec) * time.Second }

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "vacation-rental-api")
	v.SetDefault("app.env", "local")
	v.SetDefault("app.http.host", "0.0.0.0")
	v.SetDefault("app.http.port", 3001)
	v.SetDefault("app.http.read_timeout_sec", 10)
	v.SetDefault("app.http.write_timeout_sec", 15)
	v.SetDefault("app.http.idle_timeout_sec", 60)
	v.SetDefault("app.http.request_timeout_sec", 10)
	v.SetDefault("app.http.max_body_mb", 16)
	v.SetDefault("app.http.max_concurrent", 300)
	v.SetDefault("app.http.rate_global", 500)
	v.SetDefault("app.http.rate_per_ip", 50)
	v.SetDefault("app.http.rate_burst", 100)
	v.SetDefault("app.admin.host", "127.0.0.1")
	v.SetDefault("app.admin.port", 3002)
	v.SetDefault("app.cors.allowed_origins", []string{"http://localhost:5173"})

	v.SetDefault("log.level", "info")
	v.SetDefault("log.json", false)
	v.SetDefault("log.file.enable", false)
	v.SetDefault("log.file.filename", "logs/app.log")
	v.SetDefault("log.file.compress", true)
	v.SetDefault("log.file.max_size_mb", 100)
	v.SetDefault("log.file.max_backups", 7)
	v.SetDefault("log.file.max_age_days", 30)

	v.SetDefault("jwt.secret", "")
	v.SetDefault("jwt.bcrypt_cost", 0)
	v.SetDefault("jwt.issuer", "vacation-rental-api")
	v.SetDefault("jwt.access_token_ttl_min", 60)

	v.SetDefault("db.driver", "sqlite")
	v.SetDefault("db.dsn", "file:rental.db?_busy_timeout=5000&_foreign_keys=on")
	v.SetDefault("db.username", "")
	v.SetDefault("db.password", "")
	v.SetDefault("db.max_open_conns", 20)
	v.SetDefault("db.max_idle_conns", 10)
	v.SetDefault("db.conn_max_lifetime_min", 30)
	v.SetDefault("db.auto_migrate", true)
	v.SetDefault("db.log_level", "warn")

	v.SetDefault("redis.enabled", false)
	v.SetDefault("redis.addr", "127.0.0.1:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)

	v.SetDefault("cache.ttl_sec", 60)
	v.SetDefault("cache.local_size", 1000)

	v.SetDefault("media.driver", "disk")
	v.SetDefault("media.dir", "uploads")
	v.SetDefault("media.base_url", "/uploads")
	v.SetDefault("media.placeholder_url", "https://via.placeholder.com/400x250?text=Vivienda")
	v.SetDefault("media.timeout_sec", 15)
	v.SetDefault("media.cloudinary.cloud_name", "")
	v.SetDefault("media.cloudinary.api_key", "")
	v.SetDefault("media.cloudinary.api_secret", "")
	v.SetDefault("media.cloudinary.folder", "properties")

	v.SetDefault("booking.storage_timeout_sec", 5)
	v.SetDefault("booking.lock_timeout_sec", 5)
	v.SetDefault("booking.lock_ttl_sec", 10)

	v.SetDefault("bootstrap.admin_name", "Administrator")
	v.SetDefault("bootstrap.admin_email", "")
	v.SetDefault("bootstrap.admin_password", "")
}

// Load 读取 yaml + APP_ 前缀环境变量；文件不存在时只用默认值和环境变量
func Load(path string) (*Config, error) {
	v := viper.New()
	if path == "" {
		path = os.Getenv("CONFIG_PATH")
		if path == "" {
			path = "./configs/config.local.yaml"
		}
	}
	setDefaults(v)
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	v.SetEnvPrefix("APP")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}
	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	// FRONTEND_URL 兼容旧部署
	if fe := os.Getenv("FRONTEND_URL"); fe != "" {
		c.App.CORS.AllowedOrigins = strings.Split(fe, ",")
	}
	if err := c.validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

func (c *Config) validate() error {
	if strings.TrimSpace(c.JWT.Secret) == "" {
		return errors.New("config: jwt.secret is required")
	}
	switch c.DB.Driver {
	case "sqlite", "postgres", "mysql":
	default:
		return fmt.Errorf("config: unsupported db.driver %q", c.DB.Driver)
	}
	switch c.Media.Driver {
	case "disk", "cloudinary":
	default:
		return fmt.Errorf("config: unsupported media.driver %q", c.Media.Driver)
	}
	// 锁不续期，持锁期间的存储调用必须在 TTL 内结束
	if c.Booking.LockTTLSec <= c.Booking.StorageTimeoutSec {
		return fmt.Errorf("config: booking.lock_ttl_sec (%d) must be greater than booking.storage_timeout_sec (%d)",
			c.Booking.LockTTLSec, c.Booking.StorageTimeoutSec)
	}
	return nil
}
