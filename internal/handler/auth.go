package handler

import (
	"github.com/deppfellow/campaign-gateway/internal/server"
	"github.com/deppfellow/campaign-gateway/internal/service"
	"github.com/deppfellow/campaign-gateway/internal/validation"
	"github.com/labstack/echo/v4"
)

type RegisterRequest struct {
	Name     string `json:"name" validate:"required,min=2,max=100"`
	Email    string `json:"email" validate:"required,email,max=255"`
	Password string `json:"password" validate:"required,min=8,max=72"`
}

func (r *RegisterRequest) Validate() error {
	return validation.Struct(r)
}

type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

func (r *LoginRequest) Validate() error {
	return validation.Struct(r)
}

type AuthHandler struct {
	Handler
	auth AuthService
}

func NewAuthHandler(s *server.Server, auth AuthService) *AuthHandler {
	return &AuthHandler{
		Handler: NewHandler(s),
		auth:    auth,
	}
}

func (h *AuthHandler) Register(c echo.Context, req *RegisterRequest) (*service.AuthResult, error) {
	return h.auth.Register(c.Request().Context(), req.Name, req.Email, req.Password)
}

func (h *AuthHandler) Login(c echo.Context, req *LoginRequest) (*service.AuthResult, error) {
	return h.auth.Login(c.Request().Context(), req.Email, req.Password)
}
