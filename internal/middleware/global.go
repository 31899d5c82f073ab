package middleware

import (
	"context"
	"net/http"
	"time"

	"github.com/deppfellow/campaign-gateway/internal/errs"
	"github.com/deppfellow/campaign-gateway/internal/server"
	"github.com/deppfellow/campaign-gateway/internal/sqlerr"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
)

// GlobalMiddlewares groups the stock Echo middleware every request passes
// through, configured from server config, plus the global error handler.
type GlobalMiddlewares struct {
	server *server.Server
}

func NewGlobalMiddlewares(s *server.Server) *GlobalMiddlewares {
	return &GlobalMiddlewares{
		server: s,
	}
}

// CORS allows browser clients from the configured origins.
func (global *GlobalMiddlewares) CORS() echo.MiddlewareFunc {
	return middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins:  global.server.Config.Server.CORSAllowedOrigins,
		ExposeHeaders: []string{RequestIDHeader},
	})
}

// Secure adds the standard security headers (X-XSS-Protection,
// X-Content-Type-Options, X-Frame-Options).
func (global *GlobalMiddlewares) Secure() echo.MiddlewareFunc {
	return middleware.Secure()
}

// BodyLimit rejects bodies above the configured size (e.g. "50M") with 413,
// both by Content-Length and while the body is read.
func (global *GlobalMiddlewares) BodyLimit() echo.MiddlewareFunc {
	return middleware.BodyLimit(global.server.Config.Server.BodyLimit)
}

// ContentSecurityPolicy sets only the Content-Security-Policy header.
func (global *GlobalMiddlewares) ContentSecurityPolicy() echo.MiddlewareFunc {
	return middleware.SecureWithConfig(middleware.SecureConfig{
		ContentSecurityPolicy: global.server.Config.Server.ContentSecurityPolicy,
	})
}

const requestTimeoutMessage = "The request took too long to complete"

// Timeout bounds every request to server.request_timeout.
//
// Two guards share the budget. ContextTimeout cancels c.Request().Context()
// so handlers that watch it can stop early; their deadline error becomes a
// 408. abortAfter answers 408 on the deadline even when the handler ignores
// its context, and drops whatever the handler writes afterwards. Background
// jobs already enqueued are not affected.
func (global *GlobalMiddlewares) Timeout() echo.MiddlewareFunc {
	timeout := global.server.Config.Server.RequestTimeout

	cooperative := middleware.ContextTimeoutWithConfig(middleware.ContextTimeoutConfig{
		Timeout: timeout,
		ErrorHandler: func(err error, c echo.Context) error {
			if errors.Is(err, context.DeadlineExceeded) {
				GetLogger(c).Warn().Dur("timeout", timeout).Msg("request timed out")
				return errs.NewRequestTimeoutError(requestTimeoutMessage)
			}
			return err
		},
	})

	abort := abortAfter(timeout, func(c echo.Context) {
		GetLogger(c).Warn().
			Dur("timeout", timeout).
			Str("path", c.Request().URL.Path).
			Msg("request aborted after timeout")
	})

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return abort(cooperative(next))
	}
}

// RequestLogger writes one "API" log line per request with a level derived
// from the final status.
func (global *GlobalMiddlewares) RequestLogger() echo.MiddlewareFunc {
	return middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogURI:     true,
		LogStatus:  true,
		LogError:   true,
		LogLatency: true,
		LogHost:    true,
		LogMethod:  true,
		LogURIPath: true,

		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			statusCode := v.Status

			// The error handler has not written the response yet when a
			// handler returns an error, so v.Status would read 200.
			// See https://github.com/labstack/echo/issues/2310#issuecomment-1288196898
			if v.Error != nil {
				statusCode = statusFromError(v.Error)
			}

			logger := GetLogger(c)

			var e *zerolog.Event
			switch {
			case statusCode >= 500:
				e = logger.Error().Err(v.Error)
			case statusCode >= 400:
				e = logger.Warn()
			default:
				e = logger.Info()
			}

			if requestID := GetRequestID(c); requestID != "" {
				e = e.Str("request_id", requestID)
			}
			if userID := GetUserID(c); userID != "" {
				e = e.Str("user_id", userID)
			}

			e.
				Dur("latency", v.Latency).
				Int("status", statusCode).
				Str("method", v.Method).
				Str("uri", v.URI).
				Str("host", v.Host).
				Str("ip", c.RealIP()).
				Str("user_agent", c.Request().UserAgent()).
				Msg("API")

			return nil
		},
	})
}

// Recover turns handler panics into errors for GlobalErrorHandler (500).
func (global *GlobalMiddlewares) Recover() echo.MiddlewareFunc {
	return middleware.RecoverWithConfig(middleware.RecoverConfig{
		LogErrorFunc: func(c echo.Context, err error, stack []byte) error {
			GetLogger(c).Error().Err(err).Bytes("stack", stack).Msg("recovered from panic")
			return err
		},
	})
}

func statusFromError(err error) int {
	var httpErr *errs.HTTPError
	var echoErr *echo.HTTPError

	switch {
	case errors.As(err, &httpErr):
		return httpErr.Status
	case errors.As(err, &echoErr):
		if echoErr.Code == http.StatusMethodNotAllowed {
			return http.StatusNotFound
		}
		return echoErr.Code
	default:
		return http.StatusInternalServerError
	}
}

// InvalidEndpointResponse is the body every unmatched route is answered with.
type InvalidEndpointResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

// RespondInvalidEndpoint logs the miss and writes the 404 catch-all body.
func RespondInvalidEndpoint(c echo.Context) error {
	GetLogger(c).Warn().
		Time("timestamp", time.Now().UTC()).
		Str("method", c.Request().Method).
		Str("path", c.Request().URL.Path).
		Msg("invalid endpoint")

	return c.JSON(http.StatusNotFound, InvalidEndpointResponse{
		Status:  "error",
		Message: "Invalid endpoint",
	})
}

// GlobalErrorHandler is the terminal stage: every error returned by a stage
// or handler is turned into exactly one JSON response here.
//
// Echo's 404 and 405 become the invalid endpoint body. Other errors that are
// not *errs.HTTPError go through sqlerr.HandleError, which maps database
// errors and hides everything else behind a generic 500.
func (global *GlobalMiddlewares) GlobalErrorHandler(err error, c echo.Context) {
	defer func() {
		if r := recover(); r != nil {
			global.loggerFor(c).Error().Interface("panic", r).Msg("error handler panicked")
			if !c.Response().Committed {
				c.Response().Header().Set(echo.HeaderContentType, echo.MIMEApplicationJSONCharsetUTF8)
				c.Response().WriteHeader(http.StatusInternalServerError)
				_, _ = c.Response().Write([]byte(`{"code":"INTERNAL_SERVER_ERROR","message":"Internal Server Error","status":500}`))
			}
		}
	}()

	if c.Response().Committed {
		global.loggerFor(c).Error().Err(err).Msg("error after response was committed")
		return
	}

	originalErr := err

	var echoErr *echo.HTTPError
	if errors.As(err, &echoErr) {
		switch echoErr.Code {
		case http.StatusNotFound, http.StatusMethodNotAllowed:
			_ = RespondInvalidEndpoint(c)
			return
		case http.StatusRequestEntityTooLarge:
			err = errs.NewPayloadTooLargeError("Request body is too large")
		case http.StatusUnsupportedMediaType:
			err = errs.NewUnsupportedMediaTypeError("Request body must be JSON")
		}
	}

	var httpErr *errs.HTTPError
	if !errors.As(err, &httpErr) && !errors.As(err, &echoErr) {
		err = sqlerr.HandleError(err)
	}

	var status int
	var code string
	var message string
	var fieldErrors []errs.FieldError
	var action *errs.Action
	override := false

	switch {
	case errors.As(err, &httpErr):
		status = httpErr.Status
		code = httpErr.Code
		message = httpErr.Message
		fieldErrors = httpErr.Errors
		action = httpErr.Action
		override = httpErr.Override

	case errors.As(err, &echoErr):
		status = echoErr.Code
		code = errs.MakeUpperCaseWithUnderscores(http.StatusText(status))
		if msg, ok := echoErr.Message.(string); ok {
			message = msg
		} else {
			message = http.StatusText(status)
		}

	default:
		status = http.StatusInternalServerError
		code = errs.MakeUpperCaseWithUnderscores(http.StatusText(status))
		message = http.StatusText(status)
	}

	logger := global.loggerFor(c)
	event := logger.Warn()
	if status >= 500 {
		event = logger.Error().Stack()
	}
	event.
		Err(originalErr).
		Int("status", status).
		Str("error_code", code).
		Msg(message)

	_ = c.JSON(status, errs.HTTPError{
		Code:     code,
		Message:  message,
		Status:   status,
		Override: override,
		Errors:   fieldErrors,
		Action:   action,
	})
}

// loggerFor falls back to the server logger for errors raised before the
// request-scoped logger was stamped (e.g. an early 413).
func (global *GlobalMiddlewares) loggerFor(c echo.Context) *zerolog.Logger {
	if l, ok := c.Get(LoggerKey).(*zerolog.Logger); ok {
		return l
	}
	return global.server.Logger
}
