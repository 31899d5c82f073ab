package middleware

import (
	"github.com/labstack/echo/v4"
	"github.com/newrelic/go-agent/v3/integrations/nrecho-v4"
	"github.com/newrelic/go-agent/v3/integrations/nrpkgerrors"
	"github.com/newrelic/go-agent/v3/newrelic"

	"github.com/deppfellow/campaign-gateway/internal/server"
)

// TracingMiddleware owns the New Relic stages of the pipeline.
//
// It holds:
//   - server: shared deps (config, logger)
//   - nrApp: the New Relic application, nil when the agent is disabled
//
// Two stages come out of it:
//  1. NewRelicMiddleware() -> "newrelic", first in the pipeline, opens the transaction
//  2. EnhanceTracing()     -> "tracing-attributes", runs after request-context so
//     the request id and user id are already known
type TracingMiddleware struct {
	server *server.Server
	nrApp  *newrelic.Application
}

// NewTracingMiddleware constructs TracingMiddleware. nrApp may be nil.
func NewTracingMiddleware(s *server.Server, nrApp *newrelic.Application) *TracingMiddleware {
	return &TracingMiddleware{
		server: s,
		nrApp:  nrApp,
	}
}

// NewRelicMiddleware returns the "newrelic" stage.
//
// Behavior:
//   - nrApp nil: a pass-through, the request is not traced at all.
//   - nrApp set: nrecho.Middleware, which
//   - starts one transaction per request, named after the echo route
//   - stores it in the request context
//   - records latency and the final status code
//
// Everything downstream (EnhanceTracing, handleRequest, the payment client's
// external segments) finds the transaction through newrelic.FromContext.
func (tm *TracingMiddleware) NewRelicMiddleware() echo.MiddlewareFunc {
	if tm.nrApp == nil {
		return func(next echo.HandlerFunc) echo.HandlerFunc {
			return next
		}
	}
	return nrecho.Middleware(tm.nrApp)
}

// EnhanceTracing returns the "tracing-attributes" stage.
//
// It decorates the transaction opened by NewRelicMiddleware with:
//   - client IP and user agent
//   - the request id stamped by the request-id stage
//   - the authenticated user id (only known after RequireAuth has run)
//   - the response status code
//
// Errors returned down the chain are noticed with nrpkgerrors.Wrap so the
// trace carries a stack. The error is still returned unchanged: answering
// the client stays the job of GlobalErrorHandler.
func (tm *TracingMiddleware) EnhanceTracing() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			// Nil when the agent is disabled or the newrelic stage is missing.
			txn := newrelic.FromContext(c.Request().Context())
			if txn == nil {
				return next(c)
			}

			// User agents are high-cardinality; keep them as attributes, not in names.
			txn.AddAttribute("http.real_ip", c.RealIP())
			txn.AddAttribute("http.user_agent", c.Request().UserAgent())

			// Same id as the X-Request-ID header and the log lines.
			if requestID := GetRequestID(c); requestID != "" {
				txn.AddAttribute("request.id", requestID)
			}

			err := next(c)

			// RequireAuth is a route-level stage, so the user id only exists
			// once next has returned.
			if userID := GetUserID(c); userID != "" {
				txn.AddAttribute("user.id", userID)
			}

			if err != nil {
				txn.NoticeError(nrpkgerrors.Wrap(err))
			}

			// For returned errors this still reads the pre-error-handler status;
			// nrecho records the final one on the transaction itself.
			txn.AddAttribute("http.status_code", c.Response().Status)

			return err
		}
	}
}
