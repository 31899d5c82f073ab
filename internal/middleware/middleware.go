// Package middleware stores global and route-specific middleware.
//
// These intercept requests to handle cross-cutting concerns
// such as security headers, input sanitization, authentication,
// request logging, rate limiting, timeouts and panic recovery.
//
// The global stages and their order are declared in pipeline.go.
package middleware
