package handler

import (
	"net/http"
	"time"

	"github.com/deppfellow/campaign-gateway/internal/errs"
	"github.com/deppfellow/campaign-gateway/internal/lib/email"
	"github.com/deppfellow/campaign-gateway/internal/middleware"
	"github.com/deppfellow/campaign-gateway/internal/server"
	"github.com/labstack/echo/v4"
)

// LivenessResponse is the body of GET /.
type LivenessResponse struct {
	Time   time.Time `json:"Time"`
	Status string    `json:"status"`
}

// SystemHandler serves the root liveness endpoint, the catch-all and the local
// email preview.
type SystemHandler struct {
	Handler
	now func() time.Time
}

func NewSystemHandler(s *server.Server) *SystemHandler {
	return &SystemHandler{
		Handler: NewHandler(s),
		now:     time.Now,
	}
}

func (h *SystemHandler) Liveness(c echo.Context) error {
	return c.JSON(http.StatusOK, LivenessResponse{
		Time:   h.now().UTC(),
		Status: "Up and running",
	})
}

// InvalidEndpoint answers every request no route matched.
func (h *SystemHandler) InvalidEndpoint(c echo.Context) error {
	return middleware.RespondInvalidEndpoint(c)
}

// PreviewEmail renders an email template with sample data. Only routed in
// the local environment.
func (h *SystemHandler) PreviewEmail(c echo.Context) error {
	tmpl := email.Template(c.Param("template"))
	if !tmpl.Valid() {
		return errs.NewNotFoundError("Email template not found", true, nil)
	}

	html, err := email.Preview(tmpl)
	if err != nil {
		return err
	}

	c.Response().Header().Set("Cache-Control", "no-cache")
	return c.HTML(http.StatusOK, html)
}
