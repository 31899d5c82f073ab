package router

import (
	"net/http"

	"github.com/deppfellow/campaign-gateway/internal/handler"
	"github.com/deppfellow/campaign-gateway/internal/middleware"
	"github.com/labstack/echo/v4"
)

// registerV1Routes mounts the /api/v1 routes. Everything except auth is
// protected.
//
// Middleware is attached per route rather than per group: Echo runs group
// middleware for unmatched paths under the prefix too, which would turn the
// invalid endpoint 404 into a 401.
func registerV1Routes(v1 *echo.Group, h *handler.Handlers, mw *middleware.Middlewares) {
	limited := mw.RateLimit.RateLimiter()
	protected := mw.Auth.RequireAuth

	auth := v1.Group("/auth")
	auth.POST("/register", handler.Handle(h.Auth.Handler, h.Auth.Register, http.StatusCreated), limited)
	auth.POST("/login", handler.Handle(h.Auth.Handler, h.Auth.Login, http.StatusOK), limited)

	user := v1.Group("/user")
	user.GET("/me", handler.Handle(h.User.Handler, h.User.GetMe, http.StatusOK), protected)
	user.PATCH("/me", handler.Handle(h.User.Handler, h.User.UpdateMe, http.StatusOK), protected)

	campaign := v1.Group("/campaign")
	campaign.POST("/create", handler.Handle(h.Campaign.Handler, h.Campaign.Create, http.StatusCreated), protected)
	campaign.GET("/:id", handler.Handle(h.Campaign.Handler, h.Campaign.Get, http.StatusOK), protected)
	campaign.POST("/:id/pay", handler.HandlePayment(h.Campaign.Handler, h.Campaign.Pay), protected)
	campaign.GET("/:id/pay/verify", handler.HandlePayment(h.Campaign.Handler, h.Campaign.VerifyPayment), protected)

	queue := v1.Group("/queue")
	queue.GET("", handler.Handle(h.Queue.Handler, h.Queue.ListQueues, http.StatusOK), protected)
	queue.GET("/:queue/tasks", handler.Handle(h.Queue.Handler, h.Queue.ListTasks, http.StatusOK), protected)
	queue.POST("/:queue/tasks/:id/run", handler.HandleNoContent(h.Queue.Handler, h.Queue.RunTask, http.StatusNoContent), protected)
}
