// Package apperror defines the error taxonomy shared by handlers,
// middleware and the response envelope.
package apperror

import (
	"errors"
	"net/http"
)

var (
	// ErrBadRequest marks malformed, missing or oversized input.
	ErrBadRequest = errors.New("bad request")
	// ErrUnauthorized marks a missing, invalid or expired credential.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrForbidden marks a valid identity with insufficient ownership.
	ErrForbidden = errors.New("forbidden")
	// ErrNotFound marks an absent resource.
	ErrNotFound = errors.New("not found")
	// ErrConflict marks a duplicate unique resource or a lost race.
	ErrConflict = errors.New("conflict")
	// ErrInternal marks an unexpected failure in the DB, remote storage or filesystem.
	ErrInternal = errors.New("internal error")
)

// Error pairs a taxonomy sentinel with a caller-safe message.
type Error struct {
	Kind    error
	Message string
	Cause   error
}

func (e *Error) Error() string {
	return e.Message
}

func (e *Error) Unwrap() error {
	if e.Cause != nil {
		return e.Cause
	}
	return e.Kind
}

// Is lets errors.Is match the taxonomy sentinel as well as the cause chain.
func (e *Error) Is(target error) bool {
	return errors.Is(e.Kind, target) || (e.Cause != nil && errors.Is(e.Cause, target))
}

// BadRequest reports invalid input with a field-specific message.
func BadRequest(message string) *Error {
	return &Error{Kind: ErrBadRequest, Message: message}
}

// Unauthorized reports a credential failure.
func Unauthorized(message string) *Error {
	return &Error{Kind: ErrUnauthorized, Message: message}
}

// Forbidden reports an ownership failure.
func Forbidden(message string) *Error {
	return &Error{Kind: ErrForbidden, Message: message}
}

// NotFound reports an absent resource.
func NotFound(message string) *Error {
	return &Error{Kind: ErrNotFound, Message: message}
}

// Conflict reports a uniqueness violation.
func Conflict(message string) *Error {
	return &Error{Kind: ErrConflict, Message: message}
}

// Internal wraps an unexpected failure. The cause is kept for logging and
// never rendered to the client in production.
func Internal(message string, cause error) *Error {
	return &Error{Kind: ErrInternal, Message: message, Cause: cause}
}

// StatusCode maps an error to the HTTP status the envelope should carry.
// Errors outside the taxonomy map to 500.
func StatusCode(err error) int {
	switch {
	case errors.Is(err, ErrBadRequest):
		return http.StatusBadRequest
	case errors.Is(err, ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrConflict):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}
