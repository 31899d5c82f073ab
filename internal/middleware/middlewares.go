package middleware

import (
	"github.com/deppfellow/campaign-gateway/internal/server"
)

// Middlewares groups all middleware components used by the HTTP server so
// they are built once, with their dependencies, and reused during routing.
type Middlewares struct {
	Global          *GlobalMiddlewares
	Security        *SecurityMiddlewares
	Auth            *AuthMiddleware
	ContextEnhancer *ContextEnhancer
	Tracing         *TracingMiddleware
	RateLimit       *RateLimitMiddleware
}

// NewMiddlewares constructs all middleware components.
//
// When New Relic is not configured GetApplication() is nil and the tracing
// middleware degrades into a pass-through.
func NewMiddlewares(s *server.Server, tokens TokenVerifier) *Middlewares {
	return &Middlewares{
		Global:          NewGlobalMiddlewares(s),
		Security:        NewSecurityMiddlewares(s),
		Auth:            NewAuthMiddleware(s, tokens),
		ContextEnhancer: NewContextEnhancer(s),
		Tracing:         NewTracingMiddleware(s, s.LoggerService.GetApplication()),
		RateLimit:       NewRateLimitMiddleware(s),
	}
}
