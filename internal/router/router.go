// Package router initializes the HTTP router (using Echo).
//
// It registers the middlewares and defines the API route groups,
// mapping specific paths to their corresponding handlers
package router

import (
	"github.com/deppfellow/campaign-gateway/internal/handler"
	"github.com/deppfellow/campaign-gateway/internal/middleware"
	"github.com/deppfellow/campaign-gateway/internal/server"
	"github.com/labstack/echo/v4"
)

// NewRouter builds the Echo instance: the global pipeline first, then the
// system and /api/v1 routes, then the catch-all.
func NewRouter(s *server.Server, h *handler.Handlers, mw *middleware.Middlewares) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	stages := mw.Pipeline()
	mw.Apply(e, stages)

	s.Logger.Debug().Strs("stages", middleware.StageNames(stages)).Msg("request pipeline configured")

	registerSystemRoutes(e, h, s.Config.IsLocal())
	registerV1Routes(e.Group("/api/v1"), h, mw)

	// Evaluated only when no route above matched. Method mismatches on known
	// paths end up in the error handler, which answers the same way.
	e.RouteNotFound("/*", h.System.InvalidEndpoint)

	return e
}
