package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"vacation-rental-api/internal/domain"
	"vacation-rental-api/internal/service"
	"vacation-rental-api/internal/transport/http/ez"
	mdw "vacation-rental-api/internal/transport/http/middleware"
)

// AdminHandler 管理端用户维护，挂在 /admin/v1
type AdminHandler struct {
	users *service.UserService
	log   *zap.Logger
}

func NewAdminHandler(users *service.UserService, l *zap.Logger) *AdminHandler {
	return &AdminHandler{users: users, log: l}
}

type listUsersQ struct {
	Offset      int    `form:"offset,default=0"`
	Limit       int    `form:"limit,default=20"`
	Q           string `form:"q"`            // 按 email/name 模糊搜
	WithDeleted bool   `form:"with_deleted"` // 是否包含软删
}

type userRow struct {
	ID        string      `json:"id"`
	Email     string      `json:"email"`
	Name      string      `json:"name"`
	Role      domain.Role `json:"role"`
	CreatedAt time.Time   `json:"createdAt"`
	Banned    bool        `json:"banned"`
}

type listUsersOut struct {
	Total int64     `json:"total"`
	Items []userRow `json:"items"`
}

type roleReq struct {
	Role string `json:"role"`
}

func (h *AdminHandler) MountAdmin(g *gin.RouterGroup) {
	e := ez.New(g, h.log)

	ez.RegisterAction(e, ez.Action[listUsersQ, listUsersOut]{
		Method: http.MethodGet,
		Path:   "/users",
		Binder: ez.BindQuery,
		Roles:  []domain.Role{domain.RoleAdmin},
		Handler: func(c *gin.Context, in *listUsersQ) (listUsersOut, error) {
			users, total, err := h.users.List(c.Request.Context(), mdw.Principal(c), domain.UserFilter{
				Offset: in.Offset, Limit: in.Limit, Q: in.Q, WithDeleted: in.WithDeleted,
			})
			if err != nil {
				return listUsersOut{}, err
			}
			out := listUsersOut{Total: total, Items: make([]userRow, 0, len(users))}
			for _, u := range users {
				out.Items = append(out.Items, userRow{
					ID: u.ID, Email: u.Email, Name: u.Name, Role: u.Role,
					CreatedAt: u.CreatedAt, Banned: u.DeletedAt.Valid,
				})
			}
			return out, nil
		},
	})

	ez.RegisterAction(e, ez.Action[roleReq, *domain.User]{
		Method: http.MethodPut,
		Path:   "/users/:id/role",
		Binder: ez.BindJSON,
		Roles:  []domain.Role{domain.RoleAdmin},
		Handler: func(c *gin.Context, in *roleReq) (*domain.User, error) {
			return h.users.SetRole(c.Request.Context(), mdw.Principal(c), c.Param("id"), in.Role)
		},
	})

	ez.RegisterAction(e, ez.Action[struct{}, deletedOut]{
		Method: http.MethodPost,
		Path:   "/users/:id/ban",
		Binder: ez.BindNone,
		Roles:  []domain.Role{domain.RoleAdmin},
		Handler: func(c *gin.Context, _ *struct{}) (deletedOut, error) {
			id := c.Param("id")
			if err := h.users.Ban(c.Request.Context(), mdw.Principal(c), id); err != nil {
				return deletedOut{}, err
			}
			return deletedOut{ID: id}, nil
		},
	})
}
