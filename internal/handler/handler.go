// Package handler is the HTTP layer that sits right after the router.
//
// Handlers bind and validate requests through the validation package, call
// the service layer and write the response. Every typed endpoint goes
// through Handle (or one of its variants) so logging and tracing look the
// same everywhere.
package handler
