package middleware

import (
	"time"

	"github.com/gin-gonic/gin"

	"vacation-rental-api/internal/core/metrics"
)

func Metrics() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		path := c.FullPath()
		if path == "" {
			// 未匹配路由统一归类，避免标签爆炸
			path = "unmatched"
		}
		metrics.ObserveHTTP(path, c.Request.Method, c.Writer.Status(), time.Since(start))
	}
}
