// Package errors defines the error values rendered by the HTTP API.
package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Detail points at a single offending request field.
type Detail struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// AppError is an error with a stable code and the HTTP status it maps to.
type AppError struct {
	Code       string   `json:"code"`
	Message    string   `json:"message"`
	Details    []Detail `json:"details,omitempty"`
	StatusCode int      `json:"-"`
	Internal   error    `json:"-"`
}

func (e *AppError) Error() string {
	switch {
	case e == nil:
		return "<nil>"
	case e.Internal != nil:
		return fmt.Sprintf("%s: %v", e.Message, e.Internal)
	default:
		return e.Message
	}
}

func (e *AppError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Internal
}

// Is reports whether target carries the same code and status, so copies made
// by WithInternal still match their sentinel.
func (e *AppError) Is(target error) bool {
	other, ok := target.(*AppError)
	if !ok || e == nil || other == nil {
		return false
	}
	return e.Code == other.Code && e.StatusCode == other.StatusCode
}

// WithInternal returns a copy carrying err for logs.
func (e *AppError) WithInternal(err error) *AppError {
	if e == nil {
		return nil
	}
	cp := *e
	cp.Internal = err
	return &cp
}

// WithDetails returns a copy listing per-field problems.
func (e *AppError) WithDetails(details ...Detail) *AppError {
	if e == nil {
		return nil
	}
	cp := *e
	cp.Details = append([]Detail(nil), details...)
	return &cp
}

func sentinel(status int, code, message string) *AppError {
	return &AppError{Code: code, Message: message, StatusCode: status}
}

var (
	ErrBadRequest         = sentinel(http.StatusBadRequest, "BAD_REQUEST", "Invalid request")
	ErrUnauthorized       = sentinel(http.StatusUnauthorized, "UNAUTHORIZED", "Authentication required")
	ErrInvalidCredentials = sentinel(http.StatusUnauthorized, "INVALID_CREDENTIALS", "Invalid email or password")
	ErrForbidden          = sentinel(http.StatusForbidden, "FORBIDDEN", "Permission denied")
	ErrNotFound           = sentinel(http.StatusNotFound, "NOT_FOUND", "Resource not found")
	ErrConflict           = sentinel(http.StatusConflict, "CONFLICT", "Resource already exists")
	ErrTooManyRequests    = sentinel(http.StatusTooManyRequests, "RATE_LIMITED", "Too many requests")
	ErrInternalServer     = sentinel(http.StatusInternalServerError, "INTERNAL_SERVER_ERROR", "Internal server error")
)

// New builds an application error.
func New(code, message string, statusCode int) *AppError {
	return sentinel(statusCode, code, message)
}

// NewBadRequest is ErrBadRequest with a specific message.
func NewBadRequest(message string) *AppError {
	return sentinel(ErrBadRequest.StatusCode, ErrBadRequest.Code, message)
}

// Wrap reports err as an internal failure described by message.
func Wrap(err error, message string) *AppError {
	wrapped := sentinel(http.StatusInternalServerError, "INTERNAL_ERROR", message)
	wrapped.Internal = err
	return wrapped
}

// FromError finds the AppError in err's chain. Errors without one become
// ErrInternalServer so their text never reaches clients.
func FromError(err error) *AppError {
	if err == nil {
		return nil
	}
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr
	}
	return ErrInternalServer.WithInternal(err)
}

// StatusOf returns the HTTP status err renders with.
func StatusOf(err error) int {
	appErr := FromError(err)
	if appErr == nil {
		return http.StatusOK
	}
	if appErr.StatusCode == 0 {
		return http.StatusInternalServerError
	}
	return appErr.StatusCode
}
