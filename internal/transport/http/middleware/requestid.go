package middleware

import (
	"github.com/gin-gonic/gin"

	"vacation-rental-api/pkg/utils"
)

const (
	HeaderRequestID = "X-Request-ID"
	KeyRequestID    = "rid"
)

func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		rid := c.Request.Header.Get(HeaderRequestID)
		if rid == "" || len(rid) > 64 {
			rid = utils.NewID()
		}
		c.Writer.Header().Set(HeaderRequestID, rid)
		c.Set(KeyRequestID, rid)
		c.Next()
	}
}
