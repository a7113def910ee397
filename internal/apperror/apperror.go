package apperror

import (
	"fmt"
	"net/http"

	"github.com/pkg/errors"
)

// Kind classifies an error for the HTTP layer.
type Kind int

const (
	KindInternal Kind = iota
	KindValidation
	KindConflict
	KindAuth
	KindNotFound
	KindRateLimited
	KindUpstream
)

// Error is an error carrying a kind and, for upstream failures, the provider status code.
type Error struct {
	Kind    Kind
	Message string
	Status  int
	cause   error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.cause)
	}
	return e.Message
}

// Cause implements github.com/pkg/errors causer.
func (e *Error) Cause() error { return e.cause }

// Unwrap implements the standard library unwrapping.
func (e *Error) Unwrap() error { return e.cause }

// HTTPStatus maps the error to a response status code.
func (e *Error) HTTPStatus() int {
	switch e.Kind {
	case KindValidation, KindConflict:
		return http.StatusBadRequest
	case KindAuth:
		return http.StatusUnauthorized
	case KindNotFound:
		return http.StatusNotFound
	case KindRateLimited:
		return http.StatusTooManyRequests
	case KindUpstream:
		if e.Status >= 400 {
			return e.Status
		}
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func newError(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

func Validation(format string, args ...any) error { return newError(KindValidation, format, args...) }
func Conflict(format string, args ...any) error   { return newError(KindConflict, format, args...) }
func Auth(format string, args ...any) error       { return newError(KindAuth, format, args...) }
func NotFound(format string, args ...any) error   { return newError(KindNotFound, format, args...) }
func RateLimited(format string, args ...any) error {
	return newError(KindRateLimited, format, args...)
}

// Upstream reports a non-success response from a third-party provider.
func Upstream(status int, format string, args ...any) error {
	err := newError(KindUpstream, format, args...)
	err.Status = status
	return err
}

// Internal wraps an unexpected failure.
func Internal(err error, message string) error {
	return &Error{Kind: KindInternal, Message: message, cause: err}
}

// From extracts an *Error from err, treating anything unknown as internal.
func From(err error) *Error {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr
	}
	return &Error{Kind: KindInternal, Message: "internal error", cause: err}
}

// Is reports whether err carries the given kind.
func Is(err error, kind Kind) bool {
	var appErr *Error
	return errors.As(err, &appErr) && appErr.Kind == kind
}
