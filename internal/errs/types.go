package errs

import (
	"net/http"
)

// newStatusError builds an HTTPError whose code is derived from the status text.
func newStatusError(status int, message string, override bool) *HTTPError {
	return &HTTPError{
		Code:     MakeUpperCaseWithUnderscores(http.StatusText(status)),
		Message:  message,
		Status:   status,
		Override: override,
	}
}

// NewUnauthorizedError creates a 401 Unauthorized HTTPError.
//
// override tells the error handler the message can be shown to the client as-is.
func NewUnauthorizedError(message string, override bool) *HTTPError {
	return newStatusError(http.StatusUnauthorized, message, override)
}

// NewForbiddenError creates a 403 Forbidden HTTPError.
func NewForbiddenError(message string, override bool) *HTTPError {
	return newStatusError(http.StatusForbidden, message, override)
}

// NewBadRequestError creates a 400 Bad Request HTTPError.
//
// code overrides the default "BAD_REQUEST" code when non-nil, errors carries
// field-level validation failures and action an optional client instruction.
func NewBadRequestError(message string, override bool, code *string, errors []FieldError, action *Action) *HTTPError {
	formattedCode := MakeUpperCaseWithUnderscores(http.StatusText(http.StatusBadRequest))
	if code != nil {
		formattedCode = *code
	}

	return &HTTPError{
		Code:     formattedCode,
		Message:  message,
		Status:   http.StatusBadRequest,
		Override: override,
		Errors:   errors,
		Action:   action,
	}
}

// NewNotFoundError creates a 404 Not Found HTTPError.
func NewNotFoundError(message string, override bool, code *string) *HTTPError {
	err := newStatusError(http.StatusNotFound, message, override)
	if code != nil {
		err.Code = *code
	}
	return err
}

// NewRequestTimeoutError creates a 408 raised by the pipeline's timeout guard
// when a handler exceeds its budget.
func NewRequestTimeoutError(message string) *HTTPError {
	return newStatusError(http.StatusRequestTimeout, message, true)
}

// NewPayloadTooLargeError creates a 413 for bodies above the configured limit.
func NewPayloadTooLargeError(message string) *HTTPError {
	return newStatusError(http.StatusRequestEntityTooLarge, message, true)
}

// NewUnsupportedMediaTypeError creates a 415 for bodies that are not JSON.
func NewUnsupportedMediaTypeError(message string) *HTTPError {
	return newStatusError(http.StatusUnsupportedMediaType, message, true)
}

// NewTooManyRequestsError creates a 429 used by the rate limiter.
func NewTooManyRequestsError(message string) *HTTPError {
	return newStatusError(http.StatusTooManyRequests, message, true)
}

// NewServiceUnavailableError creates a 503.
func NewServiceUnavailableError(message string) *HTTPError {
	return newStatusError(http.StatusServiceUnavailable, message, false)
}

// NewInternalServerError creates a generic 500.
//
// The message is the status text, never the real internal error.
func NewInternalServerError() *HTTPError {
	return newStatusError(http.StatusInternalServerError, http.StatusText(http.StatusInternalServerError), false)
}
