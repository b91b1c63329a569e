// Package apierr implements the error taxonomy from spec.md §7: every
// user-visible error carries a stable code string (the API contract) and a
// human message (not part of the contract, free to reword).
package apierr

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind groups error codes by how a handler should respond: which HTTP
// status to use and whether the failure is retryable.
type Kind string

const (
	KindValidation     Kind = "validation"
	KindAuth           Kind = "auth"
	KindNotFound       Kind = "not_found"
	KindConflict       Kind = "conflict"
	KindBackpressure   Kind = "backpressure"
	KindBackend        Kind = "backend"
	KindSerialization  Kind = "serialization"
)

// Error is the typed error every handler-facing function in sideseat
// returns for a failure that should reach the API response. Code is the
// stable contract string; Message is free-text and may change between
// releases. Cause, if set, is unwrapped by errors.Unwrap for logging and
// errors.Is/As chains, but is never serialized to the client.
type Error struct {
	Kind    Kind
	Code    string
	Status  int
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.Cause }

func newErr(kind Kind, status int, code, message string) *Error {
	return &Error{Kind: kind, Status: status, Code: code, Message: message}
}

// Validation builds a 400 error with a domain validation code, e.g.
// INVALID_PROJECT_ID, INVALID_ID, FIELD_LENGTH, SCOPE_INSUFFICIENT.
func Validation(code, message string) *Error {
	return newErr(KindValidation, http.StatusBadRequest, code, message)
}

// Unauthorized builds a 401 error: missing or invalid credentials.
func Unauthorized(message string) *Error {
	return newErr(KindAuth, http.StatusUnauthorized, "UNAUTHORIZED", message)
}

// Forbidden builds a 403 error: credentials valid, scope/role insufficient.
func Forbidden(code, message string) *Error {
	if code == "" {
		code = "SCOPE_INSUFFICIENT"
	}
	return newErr(KindAuth, http.StatusForbidden, code, message)
}

// NotFound builds a 404 error with a domain not-found code, e.g.
// USER_NOT_FOUND, TRACE_NOT_FOUND.
func NotFound(code, message string) *Error {
	return newErr(KindNotFound, http.StatusNotFound, code, message)
}

// Conflict builds a 409 error: unique-constraint violation, last-owner
// removal, or similar state conflicts.
func Conflict(code, message string) *Error {
	return newErr(KindConflict, http.StatusConflict, code, message)
}

// Backpressure builds a 503 error. RetryAfterSeconds, if > 0, is surfaced
// by the HTTP layer as a Retry-After header.
type BackpressureError struct {
	*Error
	RetryAfterSeconds int
}

func Backpressure(code, message string, retryAfterSeconds int) *BackpressureError {
	return &BackpressureError{
		Error:             newErr(KindBackpressure, http.StatusServiceUnavailable, code, message),
		RetryAfterSeconds: retryAfterSeconds,
	}
}

// BackendOrigin names the subsystem a Backend error originated in, so
// logs and metrics can group 500s by origin without parsing Message.
type BackendOrigin string

const (
	OriginDatabase BackendOrigin = "database"
	OriginCache    BackendOrigin = "cache"
	OriginFiles    BackendOrigin = "files"
	OriginTopic    BackendOrigin = "topic"
)

// Backend builds a 500 error grouped by origin, wrapping cause for
// internal logging without leaking it to the client.
func Backend(origin BackendOrigin, cause error) *Error {
	e := newErr(KindBackend, http.StatusInternalServerError, "BACKEND_ERROR", string(origin)+" operation failed")
	e.Cause = cause
	return e
}

// Serialization builds a serialization error. userFacing controls whether
// it's a 400 (caller sent a bad payload) or a 500 (sideseat's own encode
// step failed).
func Serialization(userFacing bool, cause error) *Error {
	status := http.StatusInternalServerError
	if userFacing {
		status = http.StatusBadRequest
	}
	e := newErr(KindSerialization, status, "SERIALIZATION_ERROR", "failed to decode or encode payload")
	e.Cause = cause
	return e
}

// As reports whether err is (or wraps) an *Error, for handlers that need
// to branch on Status/Code after receiving an error from deeper layers.
func As(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}
