package middleware

import (
	"context"
	"strings"

	"github.com/gin-gonic/gin"

	"vacation-rental-api/internal/domain"
	"vacation-rental-api/internal/policy"
	resp "vacation-rental-api/internal/transport/http/response"
)

// 认证主体在 gin.Context 里的 key
const (
	KeyUserID  = "userId"
	KeyRole    = "role"
	keyAuthErr = "authErr"
)

type Authenticator interface {
	Authenticate(ctx context.Context, token string) (policy.Principal, error)
}

// AuthJWT 解析 Bearer 令牌并写入主体；没有令牌时放行，是否必须登录由路由决定
func AuthJWT(a Authenticator) gin.HandlerFunc {
	return func(c *gin.Context) {
		ah := c.GetHeader("Authorization")
		if ah == "" {
			c.Next()
			return
		}
		tok, ok := strings.CutPrefix(ah, "Bearer ")
		if !ok || strings.TrimSpace(tok) == "" {
			c.Set(keyAuthErr, domain.Unauthorized("malformed authorization header"))
			c.Next()
			return
		}
		p, err := a.Authenticate(c.Request.Context(), strings.TrimSpace(tok))
		if err != nil {
			c.Set(keyAuthErr, err)
			c.Next()
			return
		}
		c.Set(KeyUserID, p.ID)
		c.Set(KeyRole, string(p.Role))
		c.Next()
	}
}

// Principal 未登录时返回零值
func Principal(c *gin.Context) policy.Principal {
	return policy.Principal{ID: c.GetString(KeyUserID), Role: domain.Role(c.GetString(KeyRole))}
}

// CheckAuth 要求已登录，roles 非空时还要求角色匹配
func CheckAuth(c *gin.Context, roles ...domain.Role) error {
	p := Principal(c)
	if p.ID == "" {
		if v, ok := c.Get(keyAuthErr); ok {
			if err, ok := v.(error); ok {
				return err
			}
		}
		return domain.Unauthorized("missing token")
	}
	if len(roles) == 0 {
		return nil
	}
	for _, r := range roles {
		if p.Role == r {
			return nil
		}
	}
	return domain.Forbidden("insufficient role")
}

// RequireAuth 整个分组要求登录（可选限定角色）
func RequireAuth(roles ...domain.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := CheckAuth(c, roles...); err != nil {
			status, body := resp.FromError(err)
			c.AbortWithStatusJSON(status, body)
			return
		}
		c.Next()
	}
}
