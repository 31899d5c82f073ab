package handler

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/deppfellow/campaign-gateway/internal/middleware"
	"github.com/deppfellow/campaign-gateway/internal/server"
	"github.com/labstack/echo/v4"
)

// checkFailureMessage is all a caller of /status learns about a failed
// check. The underlying error is only logged.
const checkFailureMessage = "dependency check failed"

// Checker checks one dependency; a nil error means healthy.
type Checker func(ctx context.Context) error

// HealthHandler serves /status: one check per configured dependency, 200
// when all pass and 503 otherwise.
type HealthHandler struct {
	Handler
	checkers map[string]Checker
	checks   []string
	timeout  time.Duration
}

func NewHealthHandler(s *server.Server) *HealthHandler {
	checkers := map[string]Checker{}
	if s.DB != nil {
		checkers["database"] = func(ctx context.Context) error {
			return s.DB.Pool.Ping(ctx)
		}
	}
	if s.Redis != nil {
		checkers["redis"] = func(ctx context.Context) error {
			return s.Redis.Ping(ctx).Err()
		}
	}
	if s.Job != nil {
		checkers["jobs"] = s.Job.Ready
	}

	hc := s.Config.Observability.HealthChecks

	return &HealthHandler{
		Handler:  NewHandler(s),
		checkers: checkers,
		checks:   hc.Checks,
		timeout:  hc.Timeout,
	}
}

// CheckHealth runs the configured checks in order.
func (h *HealthHandler) CheckHealth(c echo.Context) error {
	start := time.Now()

	logger := middleware.GetLogger(c).With().
		Str("operation", "health_check").
		Logger()

	checks := make(map[string]interface{}, len(h.checks))
	response := map[string]interface{}{
		"status":      "healthy",
		"timestamp":   time.Now().UTC(),
		"environment": h.server.Config.Primary.Env,
		"checks":      checks,
	}

	isHealthy := true

	for _, name := range h.checks {
		checker, ok := h.checkers[name]
		if !ok {
			continue
		}

		checkStart := time.Now()
		ctx, cancel := context.WithTimeout(c.Request().Context(), h.timeout)
		err := checker(ctx)
		cancel()
		elapsed := time.Since(checkStart)

		if err != nil {
			isHealthy = false
			checks[name] = map[string]interface{}{
				"status":        "unhealthy",
				"response_time": elapsed.String(),
				"error":         checkFailureMessage,
			}

			logger.Error().
				Err(err).
				Str("check", name).
				Dur("response_time", elapsed).
				Msg("health check failed")

			h.recordFailure(name, map[string]interface{}{
				"response_time_ms": elapsed.Milliseconds(),
				"error_message":    err.Error(),
			})
			continue
		}

		checks[name] = map[string]interface{}{
			"status":        "healthy",
			"response_time": elapsed.String(),
		}

		logger.Debug().
			Str("check", name).
			Dur("response_time", elapsed).
			Msg("health check passed")
	}

	if !isHealthy {
		response["status"] = "unhealthy"

		logger.Warn().
			Dur("total_duration", time.Since(start)).
			Msg("health check failed")

		h.recordFailure("overall", map[string]interface{}{
			"total_duration_ms": time.Since(start).Milliseconds(),
		})

		return c.JSON(http.StatusServiceUnavailable, response)
	}

	if err := c.JSON(http.StatusOK, response); err != nil {
		logger.Error().Err(err).Msg("failed to write JSON response")
		return fmt.Errorf("failed to write JSON response: %w", err)
	}

	return nil
}

func (h *HealthHandler) recordFailure(check string, attrs map[string]interface{}) {
	app := h.server.LoggerService.GetApplication()
	if app == nil {
		return
	}

	attrs["check_type"] = check
	attrs["operation"] = "health_check"
	attrs["error_type"] = check + "_unhealthy"
	app.RecordCustomEvent("HealthCheckError", attrs)
}
