package handler

import (
	"github.com/deppfellow/campaign-gateway/internal/errs"
	"github.com/deppfellow/campaign-gateway/internal/middleware"
	"github.com/deppfellow/campaign-gateway/internal/model"
	"github.com/deppfellow/campaign-gateway/internal/server"
	"github.com/deppfellow/campaign-gateway/internal/validation"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

// GetMeRequest has no input; the user comes from the token.
type GetMeRequest struct{}

func (r *GetMeRequest) Validate() error { return nil }

type UpdateMeRequest struct {
	Name string `json:"name" validate:"required,min=2,max=100"`
}

func (r *UpdateMeRequest) Validate() error {
	return validation.Struct(r)
}

type UserHandler struct {
	Handler
	users UserService
}

func NewUserHandler(s *server.Server, users UserService) *UserHandler {
	return &UserHandler{
		Handler: NewHandler(s),
		users:   users,
	}
}

func (h *UserHandler) GetMe(c echo.Context, _ *GetMeRequest) (*model.User, error) {
	userID, err := currentUserID(c)
	if err != nil {
		return nil, err
	}
	return h.users.Get(c.Request().Context(), userID)
}

func (h *UserHandler) UpdateMe(c echo.Context, req *UpdateMeRequest) (*model.User, error) {
	userID, err := currentUserID(c)
	if err != nil {
		return nil, err
	}
	return h.users.UpdateName(c.Request().Context(), userID, req.Name)
}

// currentUserID returns the id RequireAuth stored for this request.
func currentUserID(c echo.Context) (uuid.UUID, error) {
	id, err := uuid.Parse(middleware.GetUserID(c))
	if err != nil {
		return uuid.Nil, errs.NewUnauthorizedError("Unauthorized", false)
	}
	return id, nil
}
