package router

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"vacation-rental-api/internal/core/config"
	"vacation-rental-api/internal/core/server"
	mdw "vacation-rental-api/internal/transport/http/middleware"
)

type Deps struct {
	Logger   *zap.Logger
	HTTP     config.HTTP
	Origins  []string
	Auth     mdw.Authenticator
	Registry *Registry

	// 本地图片目录，为空则不挂静态路由
	UploadsDir string
	UploadsURL string
}

func (d Deps) logger() *zap.Logger {
	if d.Logger == nil {
		return zap.NewNop()
	}
	return d.Logger
}

func baseEngine(d Deps) *gin.Engine {
	l := d.logger()
	r := server.NewRouter(l, server.Options{AllowedOrigins: d.Origins})

	h := d.HTTP
	mws := []gin.HandlerFunc{mdw.RequestID(), mdw.Metrics(), mdw.AccessLog(l)}
	if h.RateGlobal > 0 {
		mws = append(mws, mdw.RateLimit(rate.Limit(h.RateGlobal), max(1, int(h.RateGlobal)*2)))
	}
	if h.RatePerIP > 0 {
		mws = append(mws, mdw.RateLimitPerIP(rate.Limit(h.RatePerIP), max(1, h.RateBurst), 10*time.Minute))
	}
	if h.MaxConcurrent > 0 {
		mws = append(mws, mdw.ConcurrencyLimit(h.MaxConcurrent))
	}
	if h.MaxBodyMB > 0 {
		mws = append(mws, mdw.MaxBodyBytes(h.MaxBodyMB<<20))
	}
	if h.RequestTimeoutSec > 0 {
		mws = append(mws, mdw.Timeout(time.Duration(h.RequestTimeoutSec)*time.Second))
	}
	r.Use(mws...)

	// 健康检查
	r.GET("/health", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"ok": 1}) })
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	return r
}

// NewAPIEngine 用户端：/api 下公共与鉴权接口由各模块按 Action.Auth 区分
func NewAPIEngine(d Deps) *gin.Engine {
	r := baseEngine(d)
	if d.UploadsDir != "" && d.UploadsURL != "" {
		r.Static(d.UploadsURL, d.UploadsDir)
	}

	api := r.Group("/api")
	api.Use(mdw.AuthJWT(d.Auth))
	d.Registry.MountAPI(api)
	return r
}
