package middleware

import (
	"context"
	"time"

	"github.com/deppfellow/campaign-gateway/internal/logger"
	"github.com/deppfellow/campaign-gateway/internal/server"
	"github.com/labstack/echo/v4"
	"github.com/newrelic/go-agent/v3/newrelic"
	"github.com/rs/zerolog"
)

const (
	// UserIDKey and UserEmailKey hold the authenticated identity in Echo context.
	UserIDKey    = "user_id"
	UserEmailKey = "user_email"

	// LoggerKey is used as the key for storing the request-scoped logger.
	LoggerKey = "logger"
)

// RequestContext is the per-request data derived once at pipeline entry.
// It lives in the request's context.Context for the request's lifetime and is
// read by handlers and the logger; nothing mutates it after stamping.
type RequestContext struct {
	RequestID  string
	ReceivedAt time.Time
}

type requestContextKey struct{}

// WithRequestContext returns ctx carrying rc.
func WithRequestContext(ctx context.Context, rc RequestContext) context.Context {
	return context.WithValue(ctx, requestContextKey{}, rc)
}

// RequestContextFrom returns the RequestContext stamped on ctx.
func RequestContextFrom(ctx context.Context) (RequestContext, bool) {
	rc, ok := ctx.Value(requestContextKey{}).(RequestContext)
	return rc, ok
}

// GetRequestContext returns the request's RequestContext, or the zero value
// when the stamping stage did not run.
func GetRequestContext(c echo.Context) RequestContext {
	rc, _ := RequestContextFrom(c.Request().Context())
	return rc
}

// ContextEnhancer stamps the RequestContext and builds the request-scoped
// logger (request_id, method, path, ip, New Relic trace ids).
type ContextEnhancer struct {
	server *server.Server
	now    func() time.Time
}

func NewContextEnhancer(s *server.Server) *ContextEnhancer {
	return &ContextEnhancer{server: s, now: time.Now}
}

// EnhanceContext returns the request-context stamping stage.
func (ce *ContextEnhancer) EnhanceContext() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			rc := RequestContext{
				RequestID:  GetRequestID(c),
				ReceivedAt: ce.now().UTC(),
			}

			contextLogger := ce.server.Logger.With().
				Str("request_id", rc.RequestID).
				Str("method", c.Request().Method).
				Str("path", c.Path()).
				Str("ip", c.RealIP()).
				Logger()

			if txn := newrelic.FromContext(c.Request().Context()); txn != nil {
				contextLogger = logger.WithTraceContext(contextLogger, txn)
			}

			ctx := WithRequestContext(c.Request().Context(), rc)
			c.SetRequest(c.Request().WithContext(ctx))
			setLogger(c, &contextLogger)

			return next(c)
		}
	}
}

// setLogger stores l in Echo context and in the request's context.Context so
// code that only sees a context (services, repositories) can log with it.
func setLogger(c echo.Context, l *zerolog.Logger) {
	c.Set(LoggerKey, l)
	c.SetRequest(c.Request().WithContext(logger.WithContext(c.Request().Context(), l)))
}

// GetUserID reads the authenticated user id, or "" for anonymous requests.
func GetUserID(c echo.Context) string {
	if userID, ok := c.Get(UserIDKey).(string); ok {
		return userID
	}
	return ""
}

// GetLogger retrieves the request-scoped logger, or a no-op logger when
// EnhanceContext did not run.
func GetLogger(c echo.Context) *zerolog.Logger {
	if l, ok := c.Get(LoggerKey).(*zerolog.Logger); ok {
		return l
	}

	l := zerolog.Nop()
	return &l
}
