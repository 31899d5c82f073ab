package router

import (
	"github.com/deppfellow/campaign-gateway/internal/handler"
	"github.com/labstack/echo/v4"
)

// registerSystemRoutes registers the endpoints that are not business logic:
// liveness, dependency health, docs and their static assets.
func registerSystemRoutes(r *echo.Echo, h *handler.Handlers, local bool) {
	r.GET("/", h.System.Liveness)

	r.GET("/status", h.Health.CheckHealth)

	r.Static("/static", "static")

	r.GET("/docs", h.OpenAPI.ServeOpenAPIUI)

	if local {
		r.GET("/dev/emails/:template", h.System.PreviewEmail)
	}
}
