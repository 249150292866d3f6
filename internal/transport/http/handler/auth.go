package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"vacation-rental-api/internal/domain"
	"vacation-rental-api/internal/service"
	"vacation-rental-api/internal/transport/http/ez"
	mdw "vacation-rental-api/internal/transport/http/middleware"
)

type AuthHandler struct {
	users *service.UserService
	log   *zap.Logger
}

func NewAuthHandler(users *service.UserService, l *zap.Logger) *AuthHandler {
	return &AuthHandler{users: users, log: l}
}

func (AuthHandler) Priority() int { return 10 }

type loginReq struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (h *AuthHandler) MountAPI(g *gin.RouterGroup) {
	e := ez.New(g, h.log)

	ez.RegisterAction(e, ez.Action[service.RegisterInput, *service.AuthResult]{
		Method: http.MethodPost,
		Path:   "/auth/register",
		Binder: ez.BindJSON,
		Status: http.StatusCreated,
		Handler: func(c *gin.Context, in *service.RegisterInput) (*service.AuthResult, error) {
			return h.users.Register(c.Request.Context(), *in)
		},
	})

	ez.RegisterAction(e, ez.Action[loginReq, *service.AuthResult]{
		Method: http.MethodPost,
		Path:   "/auth/login",
		Binder: ez.BindJSON,
		Handler: func(c *gin.Context, in *loginReq) (*service.AuthResult, error) {
			return h.users.Login(c.Request.Context(), in.Email, in.Password)
		},
	})

	ez.RegisterAction(e, ez.Action[struct{}, *domain.User]{
		Method: http.MethodGet,
		Path:   "/auth/profile",
		Binder: ez.BindNone,
		Auth:   true,
		Handler: func(c *gin.Context, _ *struct{}) (*domain.User, error) {
			return h.users.Profile(c.Request.Context(), mdw.Principal(c).ID)
		},
	})
}
