// Package apperr defines the error kinds surfaced by the incident core.
//
// Every failure that reaches a caller carries one of a small, closed set
// of kinds so that transports can map it to a stable status without
// string matching. Storage faults that are not one of the known kinds
// are reported as Internal and never leak their detail outside
// development mode.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies an error for callers.
type Kind int

const (
	Internal Kind = iota
	ValidationFailed
	AuthenticationFailed
	AuthorizationDenied
	Conflict
	NotFound
)

func (k Kind) String() string {
	switch k {
	case ValidationFailed:
		return "validation_failed"
	case AuthenticationFailed:
		return "authentication_failed"
	case AuthorizationDenied:
		return "authorization_denied"
	case Conflict:
		return "conflict"
	case NotFound:
		return "not_found"
	default:
		return "internal"
	}
}

// HTTPStatus maps the kind to the status code the HTTP layer responds with.
func (k Kind) HTTPStatus() int {
	switch k {
	case ValidationFailed:
		return http.StatusBadRequest
	case AuthenticationFailed:
		return http.StatusUnauthorized
	case AuthorizationDenied:
		return http.StatusForbidden
	case Conflict:
		return http.StatusConflict
	case NotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// Error is a classified error with a human readable message.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil && e.Message == "" {
		return e.Err.Error()
	}
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

// Is reports a match against another *Error of the same kind, so
// errors.Is(err, apperr.ErrNotFound) works for any not-found error.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Message == "" && t.Err == nil && t.Kind == e.Kind
}

// Sentinels for errors.Is comparisons.
var (
	ErrValidation     = &Error{Kind: ValidationFailed}
	ErrAuthentication = &Error{Kind: AuthenticationFailed}
	ErrAuthorization  = &Error{Kind: AuthorizationDenied}
	ErrConflict       = &Error{Kind: Conflict}
	ErrNotFound       = &Error{Kind: NotFound}
)

func newf(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

func Validation(format string, args ...any) *Error {
	return newf(ValidationFailed, format, args...)
}

func Authentication(format string, args ...any) *Error {
	return newf(AuthenticationFailed, format, args...)
}

func Authorization(format string, args ...any) *Error {
	return newf(AuthorizationDenied, format, args...)
}

func Conflictf(format string, args ...any) *Error {
	return newf(Conflict, format, args...)
}

func NotFoundf(format string, args ...any) *Error {
	return newf(NotFound, format, args...)
}

// Wrap classifies err as an internal fault.
func Wrap(err error, message string) *Error {
	return &Error{Kind: Internal, Message: message, Err: err}
}

// KindOf returns the kind of the first *Error in err's chain, or
// Internal when there is none.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return Internal
}

// PublicMessage returns the message safe to show a caller. Internal
// errors collapse to a generic message unless verbose is set.
func PublicMessage(err error, verbose bool) string {
	var e *Error
	if errors.As(err, &e) && e.Kind != Internal {
		return e.Message
	}
	if verbose && err != nil {
		return err.Error()
	}
	return "internal server error"
}
