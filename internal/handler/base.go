package handler

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/deppfellow/campaign-gateway/internal/errs"
	"github.com/deppfellow/campaign-gateway/internal/lib/payment"
	"github.com/deppfellow/campaign-gateway/internal/middleware"
	"github.com/deppfellow/campaign-gateway/internal/server"
	"github.com/deppfellow/campaign-gateway/internal/validation"
	"github.com/labstack/echo/v4"
	"github.com/newrelic/go-agent/v3/integrations/nrpkgerrors"
	"github.com/newrelic/go-agent/v3/newrelic"
)

// Handler is the base handler type that holds shared application dependencies.
type Handler struct {
	server *server.Server
}

func NewHandler(s *server.Server) Handler {
	return Handler{server: s}
}

// Request is satisfied by *T for request structs T that validate themselves.
// Handle allocates a fresh T for every request.
type Request[T any] interface {
	*T
	validation.Validatable
}

// ResponseHandler writes a successful handler result and decorates the New
// Relic transaction for that response type.
type ResponseHandler interface {
	Handle(c echo.Context, result interface{}) error

	// GetOperation names the handler type in logs.
	GetOperation() string

	AddAttributes(txn *newrelic.Transaction, result interface{})
}

// JSONResponseHandler writes JSON responses with a given status code.
type JSONResponseHandler struct {
	status int
}

func (h JSONResponseHandler) Handle(c echo.Context, result interface{}) error {
	return c.JSON(h.status, result)
}

func (h JSONResponseHandler) GetOperation() string {
	return "handler"
}

func (h JSONResponseHandler) AddAttributes(txn *newrelic.Transaction, result interface{}) {
	// http.status_code is already set by tracing middleware (EnhanceTracing).
}

// NoContentResponseHandler writes responses with no body (typically 204).
type NoContentResponseHandler struct {
	status int
}

func (h NoContentResponseHandler) Handle(c echo.Context, result interface{}) error {
	return c.NoContent(h.status)
}

func (h NoContentResponseHandler) GetOperation() string {
	return "handler_no_content"
}

func (h NoContentResponseHandler) AddAttributes(txn *newrelic.Transaction, result interface{}) {}

// PaymentResponseHandler writes a normalized payment.Result: 200 when the
// gateway call succeeded, 502 with the same body otherwise. A call that
// failed because the request deadline passed is a 408, not an upstream error.
type PaymentResponseHandler struct{}

func (h PaymentResponseHandler) Handle(c echo.Context, result interface{}) error {
	res, _ := result.(payment.Result)
	if !res.Success {
		if errors.Is(c.Request().Context().Err(), context.DeadlineExceeded) {
			return errs.NewRequestTimeoutError("The request took too long to complete")
		}
		return c.JSON(http.StatusBadGateway, res)
	}
	return c.JSON(http.StatusOK, res)
}

func (h PaymentResponseHandler) GetOperation() string {
	return "handler_payment"
}

func (h PaymentResponseHandler) AddAttributes(txn *newrelic.Transaction, result interface{}) {
	if txn == nil {
		return
	}
	if res, ok := result.(payment.Result); ok {
		txn.AddAttribute("payment.success", res.Success)
	}
}

// handleRequest is the shared execution path of every typed endpoint:
// binding and validation, the handler call, logging, New Relic attributes
// and finally the response write.
func handleRequest[Req validation.Validatable](
	c echo.Context,
	req Req,
	handler func(c echo.Context, req Req) (interface{}, error),
	responseHandler ResponseHandler,
) error {
	start := time.Now()
	method := c.Request().Method
	route := c.Path()

	txn := newrelic.FromContext(c.Request().Context())
	if txn != nil {
		txn.AddAttribute("handler.name", route)
		responseHandler.AddAttributes(txn, nil)
	}

	logger := middleware.GetLogger(c).With().
		Str("operation", responseHandler.GetOperation()).
		Str("method", method).
		Str("route", route).
		Logger()

	logger.Debug().Msg("handling request")

	validationStart := time.Now()
	if err := validation.BindAndValidate(c, req); err != nil {
		validationDuration := time.Since(validationStart)

		logger.Warn().
			Err(err).
			Dur("validation_duration", validationDuration).
			Msg("request validation failed")

		if txn != nil {
			txn.NoticeError(nrpkgerrors.Wrap(err))
			txn.AddAttribute("validation.status", "failed")
			txn.AddAttribute("validation.duration_ms", validationDuration.Milliseconds())
		}

		return err
	}

	validationDuration := time.Since(validationStart)
	if txn != nil {
		txn.AddAttribute("validation.status", "success")
		txn.AddAttribute("validation.duration_ms", validationDuration.Milliseconds())
	}

	handlerStart := time.Now()
	result, err := handler(c, req)
	handlerDuration := time.Since(handlerStart)

	if err != nil {
		totalDuration := time.Since(start)

		logger.Error().
			Err(err).
			Dur("handler_duration", handlerDuration).
			Dur("total_duration", totalDuration).
			Msg("handler execution failed")

		if txn != nil {
			txn.NoticeError(nrpkgerrors.Wrap(err))
			txn.AddAttribute("handler.status", "error")
			txn.AddAttribute("handler.duration_ms", handlerDuration.Milliseconds())
			txn.AddAttribute("total.duration_ms", totalDuration.Milliseconds())
		}
		return err
	}

	totalDuration := time.Since(start)

	if txn != nil {
		txn.AddAttribute("handler.status", "success")
		txn.AddAttribute("handler.duration_ms", handlerDuration.Milliseconds())
		txn.AddAttribute("total.duration_ms", totalDuration.Milliseconds())
		responseHandler.AddAttributes(txn, result)
	}

	logger.Info().
		Dur("handler_duration", handlerDuration).
		Dur("validation_duration", validationDuration).
		Dur("total_duration", totalDuration).
		Msg("request completed successfully")

	return responseHandler.Handle(c, result)
}

// Handle wraps a typed JSON endpoint.
//
//	g.POST("/create", handler.Handle(h.Handler, h.Create, http.StatusCreated))
func Handle[T any, PT Request[T], Res any](
	h Handler,
	handler func(c echo.Context, req PT) (Res, error),
	status int,
) echo.HandlerFunc {
	return func(c echo.Context) error {
		return handleRequest(c, PT(new(T)), func(c echo.Context, req PT) (interface{}, error) {
			return handler(c, req)
		}, JSONResponseHandler{status: status})
	}
}

// HandleNoContent wraps a typed endpoint that answers without a body.
func HandleNoContent[T any, PT Request[T]](
	h Handler,
	handler func(c echo.Context, req PT) error,
	status int,
) echo.HandlerFunc {
	return func(c echo.Context) error {
		return handleRequest(c, PT(new(T)), func(c echo.Context, req PT) (interface{}, error) {
			return nil, handler(c, req)
		}, NoContentResponseHandler{status: status})
	}
}

// HandlePayment wraps an endpoint returning a normalized payment.Result.
func HandlePayment[T any, PT Request[T]](
	h Handler,
	handler func(c echo.Context, req PT) (payment.Result, error),
) echo.HandlerFunc {
	return func(c echo.Context) error {
		return handleRequest(c, PT(new(T)), func(c echo.Context, req PT) (interface{}, error) {
			return handler(c, req)
		}, PaymentResponseHandler{})
	}
}
