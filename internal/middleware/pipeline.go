package middleware

import "github.com/labstack/echo/v4"

// Stage names, in the order requests pass through them.
const (
	StageNewRelic          = "newrelic"
	StageRecover           = "recover"
	StageSecureHeaders     = "secure-headers"
	StageCORS              = "cors"
	StageBodyLimit         = "body-limit"
	StageSanitize          = "sanitize"
	StageParamPollution    = "hpp"
	StageCSP               = "csp"
	StageRequestID         = "request-id"
	StageRequestLogger     = "request-logger"
	StageRequestContext    = "request-context"
	StageTracingAttributes = "tracing-attributes"
	StageValidateBody      = "validate-body"
	StageTimeout           = "timeout"
)

// Stage is one named step of the global request pipeline.
type Stage struct {
	Name       string
	Middleware echo.MiddlewareFunc
}

// Pipeline returns the global stages in execution order. Every request,
// matched or not, runs them before any route-level middleware; errors from
// any stage short-circuit to the error handler.
func (m *Middlewares) Pipeline() []Stage {
	return []Stage{
		{StageNewRelic, m.Tracing.NewRelicMiddleware()},
		{StageRecover, m.Global.Recover()},
		{StageSecureHeaders, m.Global.Secure()},
		{StageCORS, m.Global.CORS()},
		{StageBodyLimit, m.Global.BodyLimit()},
		{StageSanitize, m.Security.Sanitize()},
		{StageParamPollution, m.Security.ParameterPollution()},
		{StageCSP, m.Global.ContentSecurityPolicy()},
		{StageRequestID, RequestID()},
		{StageRequestLogger, m.Global.RequestLogger()},
		{StageRequestContext, m.ContextEnhancer.EnhanceContext()},
		{StageTracingAttributes, m.Tracing.EnhanceTracing()},
		{StageValidateBody, m.Security.ValidateJSONBody()},
		{StageTimeout, m.Global.Timeout()},
	}
}

// Apply registers stages on e in order and installs the error handler.
func (m *Middlewares) Apply(e *echo.Echo, stages []Stage) {
	for _, stage := range stages {
		e.Use(stage.Middleware)
	}
	e.HTTPErrorHandler = m.Global.GlobalErrorHandler
}

// StageNames lists the names of stages, for logging the pipeline at boot.
func StageNames(stages []Stage) []string {
	names := make([]string, len(stages))
	for i, stage := range stages {
		names[i] = stage.Name
	}
	return names
}
