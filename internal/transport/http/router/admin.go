package router

import (
	"github.com/gin-gonic/gin"

	"vacation-rental-api/internal/domain"
	mdw "vacation-rental-api/internal/transport/http/middleware"
)

// NewAdminEngine 管理端 v1（统一要求 admin 角色）
func NewAdminEngine(d Deps) *gin.Engine {
	r := baseEngine(d)

	admin := r.Group("/admin/v1")
	admin.Use(mdw.AuthJWT(d.Auth), mdw.RequireAuth(domain.RoleAdmin))
	d.Registry.MountAdmin(admin)
	return r
}
