// Package errors provides structured error handling with HTTP status mapping.
//
// The session collects user-facing errors on a single "last error" surface;
// none of the types here are fatal to a running session.
package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrorType categorizes an error for metrics and response formatting.
type ErrorType string

const (
	// TypeValidation indicates invalid input, e.g. an unsupported file
	// extension or an over-cap ingestion (HTTP 400)
	TypeValidation ErrorType = "validation"
	// TypeNotFound indicates an unknown image or preset (HTTP 404)
	TypeNotFound ErrorType = "not_found"
	// TypeTransport indicates a failure reaching the processing service (HTTP 502)
	TypeTransport ErrorType = "transport"
	// TypeStorage indicates a history persistence failure; the session
	// degrades to in-memory history and keeps running (HTTP 500)
	TypeStorage ErrorType = "storage"
	// TypeInternal indicates an unexpected failure (HTTP 500)
	TypeInternal ErrorType = "internal"
)

// Error is a structured error with type, message, and context.
type Error struct {
	Type    ErrorType
	Message string
	Cause   error
	Context map[string]any
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Type, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// Unwrap returns the underlying cause for errors.Is/As support.
func (e *Error) Unwrap() error {
	return e.Cause
}

// HTTPStatus returns the status code for this error type.
func (e *Error) HTTPStatus() int {
	switch e.Type {
	case TypeValidation:
		return http.StatusBadRequest
	case TypeNotFound:
		return http.StatusNotFound
	case TypeTransport:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// ValidationError creates a validation error.
func ValidationError(message string) *Error {
	return &Error{Type: TypeValidation, Message: message, Context: make(map[string]any)}
}

// NotFoundError creates a not-found error.
func NotFoundError(message string) *Error {
	return &Error{Type: TypeNotFound, Message: message, Context: make(map[string]any)}
}

// TransportError creates a transport error. message should carry the
// server-supplied text when one exists, or a generic fallback.
func TransportError(message string, cause error) *Error {
	return &Error{Type: TypeTransport, Message: message, Cause: cause, Context: make(map[string]any)}
}

// StorageError creates a storage error.
func StorageError(message string, cause error) *Error {
	return &Error{Type: TypeStorage, Message: message, Cause: cause, Context: make(map[string]any)}
}

// InternalError creates an internal error.
func InternalError(message string, cause error) *Error {
	return &Error{Type: TypeInternal, Message: message, Cause: cause, Context: make(map[string]any)}
}

// WithContext adds a context field to the error (chainable).
func (e *Error) WithContext(key string, value any) *Error {
	if e.Context == nil {
		e.Context = make(map[string]any)
	}
	e.Context[key] = value
	return e
}

// ErrorResponse is the JSON structure sent to clients.
type ErrorResponse struct {
	Error   string         `json:"error"`
	Type    ErrorType      `json:"type"`
	Context map[string]any `json:"context,omitempty"`
}

// ToResponse converts an Error to its JSON form.
func (e *Error) ToResponse() ErrorResponse {
	return ErrorResponse{Error: e.Message, Type: e.Type, Context: e.Context}
}

// AsStructuredError converts any error into a structured Error, wrapping
// unknown errors as internal.
func AsStructuredError(err error) *Error {
	if err == nil {
		return nil
	}
	var structuredErr *Error
	if errors.As(err, &structuredErr) {
		return structuredErr
	}
	return InternalError("internal error", err)
}
