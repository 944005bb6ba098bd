package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// Error is a coded application error carrying the HTTP status the
// handlers should answer with.
type Error struct {
	Code    string
	Message string
	Status  int
	cause   error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.cause }

// Is matches on the error code so sentinel comparisons work across wrapping.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return e.Code == t.Code
}

// WithMessage returns a copy of e with a more specific message.
func (e *Error) WithMessage(msg string) *Error {
	return &Error{Code: e.Code, Message: msg, Status: e.Status, cause: e.cause}
}

// Wrap returns a copy of e carrying cause for logs while keeping the
// code and status stable for callers.
func (e *Error) Wrap(cause error) *Error {
	return &Error{Code: e.Code, Message: e.Message, Status: e.Status, cause: cause}
}

func newError(code, message string, status int) *Error {
	return &Error{Code: code, Message: message, Status: status}
}

var (
	ErrUnauthenticated  = newError("UNAUTHENTICATED", "Missing or invalid credentials", http.StatusUnauthorized)
	ErrInvalidArgument  = newError("INVALID_ARGUMENT", "Invalid request", http.StatusBadRequest)
	ErrNotFound         = newError("NOT_FOUND", "Resource not found", http.StatusNotFound)
	ErrInvalidState     = newError("INVALID_STATE", "Resource is not in the expected state", http.StatusConflict)
	ErrUpstreamFailure  = newError("UPSTREAM_FAILURE", "Upstream service failed", http.StatusBadGateway)
	ErrSignatureInvalid = newError("SIGNATURE_INVALID", "Webhook signature verification failed", http.StatusBadRequest)
	ErrInternalAnomaly  = newError("INTERNAL_ANOMALY", "Internal error", http.StatusInternalServerError)
)

// StatusOf maps any error to an HTTP status, defaulting to 500.
func StatusOf(err error) int {
	var e *Error
	if errors.As(err, &e) {
		return e.Status
	}
	return http.StatusInternalServerError
}

// CodeOf maps any error to its taxonomy code, defaulting to INTERNAL_ANOMALY.
func CodeOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ErrInternalAnomaly.Code
}

// MessageOf returns the user-facing message for err.
func MessageOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Message
	}
	return ErrInternalAnomaly.Message
}
