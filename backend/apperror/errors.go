// Package apperror provides the error taxonomy of the identity service.
// Every error carries an HTTP status code and a message safe to show to the
// client; the handlers turn them into the {error:true, message} body.
package apperror

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies an error for callers that branch on it.
type Kind string

const (
	KindConflict           Kind = "conflict"
	KindNotFound           Kind = "not_found"
	KindInvalidCredential  Kind = "invalid_credential"
	KindUnauthorized       Kind = "unauthorized"
	KindForbidden          Kind = "forbidden"
	KindPreconditionFailed Kind = "precondition_failed"
	KindBadRequest         Kind = "bad_request"
	KindTransport          Kind = "transport_failure"
)

// Error is a domain error. Internal holds the underlying cause, if any.
type Error struct {
	Kind     Kind
	Code     int
	Message  string
	Internal error
}

func (e *Error) Error() string {
	if e.Internal != nil {
		return fmt.Sprintf("%s: %s (internal: %v)", e.Kind, e.Message, e.Internal)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Internal
}

func newError(kind Kind, code int, format string, args ...any) *Error {
	return &Error{Kind: kind, Code: code, Message: fmt.Sprintf(format, args...)}
}

// Conflict is returned for a duplicate registration.
func Conflict(format string, args ...any) *Error {
	return newError(KindConflict, http.StatusConflict, format, args...)
}

func NotFound(format string, args ...any) *Error {
	return newError(KindNotFound, http.StatusNotFound, format, args...)
}

func InvalidCredential(format string, args ...any) *Error {
	return newError(KindInvalidCredential, http.StatusUnauthorized, format, args...)
}

// Unauthorized means no session record exists where one is required.
func Unauthorized(format string, args ...any) *Error {
	return newError(KindUnauthorized, http.StatusUnauthorized, format, args...)
}

// Forbidden means a session exists but has not completed sign-in.
func Forbidden(format string, args ...any) *Error {
	return newError(KindForbidden, http.StatusForbidden, format, args...)
}

func PreconditionFailed(format string, args ...any) *Error {
	return newError(KindPreconditionFailed, http.StatusPreconditionFailed, format, args...)
}

func BadRequest(format string, args ...any) *Error {
	return newError(KindBadRequest, http.StatusBadRequest, format, args...)
}

// Transport wraps a failure of the session store or OTP engine. The cause
// text is part of the client message.
func Transport(message string, err error) *Error {
	e := newError(KindTransport, http.StatusBadRequest, "%s: %v", message, err)
	e.Internal = err
	return e
}

// KindOf returns the kind of err, or "" when err is not an *Error.
func KindOf(err error) Kind {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Kind
	}
	return ""
}

// Status returns the HTTP status for err. Errors outside the taxonomy are
// reported as transport failures.
func Status(err error) int {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return http.StatusBadRequest
}

// Message returns the client-facing text for err.
func Message(err error) string {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Message
	}
	return err.Error()
}
