package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "go.uber.org/automaxprocs"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gorm.io/gorm"

	"vacation-rental-api/internal/core/auth"
	"vacation-rental-api/internal/core/cache"
	"vacation-rental-api/internal/core/config"
	"vacation-rental-api/internal/core/database"
	"vacation-rental-api/internal/core/lock"
	"vacation-rental-api/internal/core/logger"
	"vacation-rental-api/internal/core/media"
	"vacation-rental-api/internal/core/metrics"
	"vacation-rental-api/internal/core/server"
	"vacation-rental-api/internal/repo"
	"vacation-rental-api/internal/service"
	"vacation-rental-api/internal/transport/http/handler"
	"vacation-rental-api/internal/transport/http/router"
)

func main() {
	_ = godotenv.Load()
	cfg, err := config.Load(os.Getenv("CONFIG_PATH"))
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		os.Exit(1)
	}
	log, cleanup := logger.FromConfig(cfg.Log)
	defer cleanup()
	defer logger.RedirectStdLog(log, zapcore.InfoLevel)()
	if cfg.App.Env == "prod" {
		gin.SetMode(gin.ReleaseMode)
	}
	gin.DefaultWriter = logger.ToWriter(log, zapcore.DebugLevel)
	gin.DefaultErrorWriter = logger.ToWriter(log, zapcore.ErrorLevel)

	// 数据库（失败会直接 Fatal）
	db := mustOpenDB(cfg, log)
	defer func() { _ = database.Close(db) }()
	log.Info("database connected", zap.String("driver", cfg.DB.Driver))
	if cfg.DB.AutoMigrate {
		if err := database.Migrate(db); err != nil {
			log.Fatal("automigrate failed", zap.Error(err))
		}
		log.Info("automigrate done")
	}

	// Redis 可选：有则启用 L2 缓存与分布式锁
	var rdb *redis.Client
	locker := lock.Locker(lock.NewKeyedMutex())
	if cfg.Redis.Enabled {
		rdb = cache.NewClient(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		defer func() { _ = rdb.Close() }()
		pingCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		if err := rdb.Ping(pingCtx).Err(); err != nil {
			log.Fatal("redis ping failed", zap.String("addr", cfg.Redis.Addr), zap.Error(err))
		}
		cancel()
		locker = lock.Chain{locker, lock.NewRedisLocker(rdb, cfg.App.Name+":lock:", cfg.Booking.LockTTL(), log)}
		log.Info("redis connected", zap.String("addr", cfg.Redis.Addr))
	}
	c := cache.New(rdb, cache.Options{LocalSize: cfg.Cache.LocalSize, LoadTimeout: cfg.Booking.StorageTimeout(), Logger: log})
	defer c.Close()

	store, uploadsDir := mustMediaStore(cfg, log)

	// 依赖
	jwter := auth.NewJWTer(cfg.JWT.Secret, cfg.JWT.Issuer, time.Duration(cfg.JWT.AccessTokenTTLMin)*time.Minute)
	creds := auth.NewService(jwter, cfg.JWT.BcryptCost)
	userRepo, propRepo, bookingRepo := repo.NewUserRepo(db), repo.NewPropertyRepo(db), repo.NewBookingRepo(db)

	users := service.NewUserService(userRepo, creds, log, cfg.Booking.StorageTimeout())
	catalog := service.NewCatalogService(propRepo, userRepo, store, c, log, service.CatalogOptions{
		PlaceholderURL: cfg.Media.PlaceholderURL,
		StorageTimeout: cfg.Booking.StorageTimeout(),
		MediaTimeout:   time.Duration(cfg.Media.TimeoutSec) * time.Second,
		CacheTTL:       time.Duration(cfg.Cache.TTLSec) * time.Second,
		Locker:         locker,
		LockTimeout:    cfg.Booking.LockTimeout(),
	})
	bookings := service.NewBookingService(bookingRepo, propRepo, service.NewAvailability(bookingRepo), locker, log, service.BookingOptions{
		StorageTimeout: cfg.Booking.StorageTimeout(),
		LockTimeout:    cfg.Booking.LockTimeout(),
	})

	b := cfg.Bootstrap
	if created, err := users.EnsureAdmin(context.Background(), b.AdminName, b.AdminEmail, b.AdminPassword); err != nil {
		log.Fatal("bootstrap admin failed", zap.Error(err))
	} else if created {
		log.Info("bootstrap admin ready", zap.String("email", b.AdminEmail))
	}

	metrics.Register()

	// 路由（用户端）
	reg := router.NewRegistry(
		handler.NewAuthHandler(users, log),
		handler.NewPropertyHandler(catalog, log),
		handler.NewBookingHandler(bookings, log),
	)
	r := router.NewAPIEngine(router.Deps{
		Logger:     log,
		HTTP:       cfg.App.HTTP,
		Origins:    cfg.App.CORS.AllowedOrigins,
		Auth:       users,
		Registry:   reg,
		UploadsDir: uploadsDir,
		UploadsURL: cfg.Media.BaseURL,
	})

	// HTTP Server
	addr := server.Addr(cfg.App.HTTP.Host, cfg.App.HTTP.Port)
	srv := server.BuildServer(
		addr, r,
		time.Duration(cfg.App.HTTP.ReadTimeoutSec)*time.Second,
		time.Duration(cfg.App.HTTP.WriteTimeoutSec)*time.Second,
		time.Duration(cfg.App.HTTP.IdleTimeoutSec)*time.Second,
		logger.ToStdLogger(log, zapcore.WarnLevel),
	)

	// 启动日志
	host4human := cfg.App.HTTP.Host
	if host4human == "" || host4human == "0.0.0.0" {
		host4human = "127.0.0.1"
	}
	baseURL := "http://" + host4human + ":" + fmt.Sprint(cfg.App.HTTP.Port)
	log.Info("rental api starting",
		zap.String("addr", addr),
		zap.String("open", baseURL),
		zap.String("health", baseURL+"/health"),
		zap.String("api", baseURL+"/api"),
	)

	// 异步启动
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("rental api start FAILED", zap.Error(err))
		}
	}()
	log.Info("rental api started SUCCESS")

	// 优雅关闭
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Warn("shutdown incomplete", zap.Error(err))
	}
	log.Info("rental api stopped gracefully")
}

func mustOpenDB(cfg *config.Config, l *zap.Logger) *gorm.DB {
	db, err := database.NewGorm(database.Opts{
		Driver:             cfg.DB.Driver,
		DSN:                cfg.DB.DSN,
		Username:           cfg.DB.Username,
		Password:           cfg.DB.Password,
		MaxOpenConns:       cfg.DB.MaxOpenConns,
		MaxIdleConns:       cfg.DB.MaxIdleConns,
		ConnMaxLifetimeMin: cfg.DB.ConnMaxLifetimeMin,
		LogLevel:           cfg.DB.LogLevel,
		Logger:             l,
	})
	if err != nil {
		l.Fatal("db open", zap.Error(err))
	}
	return db
}

// mustMediaStore 第二个返回值是需要静态托管的本地目录
func mustMediaStore(cfg *config.Config, l *zap.Logger) (media.Store, string) {
	m := cfg.Media
	switch m.Driver {
	case "cloudinary":
		cl := m.Cloudinary
		return media.NewCloudinaryStore(cl.CloudName, cl.APIKey, cl.APISecret, cl.Folder, time.Duration(m.TimeoutSec)*time.Second), ""
	default:
		store, err := media.NewDiskStore(m.Dir, m.BaseURL)
		if err != nil {
			l.Fatal("media store", zap.Error(err))
		}
		return store, store.Dir
	}
}
