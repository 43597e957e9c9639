// Package errors defines structured error types shared by the codec, the
// storage backends and the HTTP API.
package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrorCode defines specific error types.
type ErrorCode string

const (
	// ErrNotObject is returned when flatten or restore is given a non-object
	ErrNotObject ErrorCode = "NOT_OBJECT"
	// ErrNotFound is returned when a key is not present in the store
	ErrNotFound ErrorCode = "NOT_FOUND"
	// ErrInvalidJSON is returned when a value cannot be encoded or decoded
	ErrInvalidJSON ErrorCode = "INVALID_JSON"
	// ErrStorageError is returned when a storage operation fails
	ErrStorageError ErrorCode = "STORAGE_ERROR"
	// ErrValidationFailed is returned when input data fails validation
	ErrValidationFailed ErrorCode = "VALIDATION_FAILED"
	// ErrUnauthorized is returned when authentication is missing or invalid
	ErrUnauthorized ErrorCode = "UNAUTHORIZED"
	// ErrRateLimited is returned when a client exceeded its request budget
	ErrRateLimited ErrorCode = "RATE_LIMITED"
	// ErrInternal is returned when an unexpected error occurs
	ErrInternal ErrorCode = "INTERNAL_ERROR"
)

// ErrorWithStatus is an error that includes an HTTP status code and error code.
type ErrorWithStatus interface {
	Error() string
	StatusCode() int
	Code() ErrorCode
	Details() map[string]any
}

// Error is a concrete error type with status code, code, and optional details.
type Error struct {
	statusCode int
	code       ErrorCode
	message    string
	details    map[string]any
	wrappedErr error
}

// New creates a new Error with the given status code and message.
func New(statusCode int, code ErrorCode, message string) *Error {
	return &Error{
		statusCode: statusCode,
		code:       code,
		message:    message,
		details:    make(map[string]any),
	}
}

// WithDetail adds a single detail to the error.
func (e *Error) WithDetail(key string, value any) *Error {
	if e.details == nil {
		e.details = make(map[string]any)
	}
	e.details[key] = value
	return e
}

// Wrap wraps an underlying error.
func (e *Error) Wrap(err error) *Error {
	e.wrappedErr = err
	return e
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.wrappedErr != nil {
		return fmt.Sprintf("%s: %v", e.message, e.wrappedErr)
	}
	return e.message
}

// StatusCode returns the HTTP status code.
func (e *Error) StatusCode() int {
	return e.statusCode
}

// Code returns the error code.
func (e *Error) Code() ErrorCode {
	return e.code
}

// Details returns additional error details.
func (e *Error) Details() map[string]any {
	return e.details
}

// Unwrap returns the wrapped error if any.
func (e *Error) Unwrap() error {
	return e.wrappedErr
}

// Is reports whether target is an *Error carrying the same code, so that
// errors.Is(err, errors.NotObject("")) matches any NOT_OBJECT error.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.code == e.code
}

// HasCode reports whether err or any error it wraps carries code.
func HasCode(err error, code ErrorCode) bool {
	var e ErrorWithStatus
	if !errors.As(err, &e) {
		return false
	}
	return e.Code() == code
}

// Predefined error constructors for common cases

// NotObject creates an error for a value that is not a key-value mapping.
func NotObject(got any) *Error {
	return New(http.StatusBadRequest, ErrNotObject, fmt.Sprintf("expected object, got %T", got))
}

// NotFound creates a 404 Not Found error for a key.
func NotFound(key string) *Error {
	return New(http.StatusNotFound, ErrNotFound, fmt.Sprintf("key %q not found", key)).WithDetail("key", key)
}

// InvalidJSON creates an error for a value that could not be encoded or decoded.
func InvalidJSON(key string, err error) *Error {
	return New(http.StatusUnprocessableEntity, ErrInvalidJSON, fmt.Sprintf("invalid JSON for key %q", key)).WithDetail("key", key).Wrap(err)
}

// Storage creates an error for a failing store operation.
func Storage(op string, err error) *Error {
	return New(http.StatusInternalServerError, ErrStorageError, "storage "+op+" failed").Wrap(err)
}

// BadRequest creates a 400 Bad Request error.
func BadRequest(message string) *Error {
	return New(http.StatusBadRequest, ErrValidationFailed, message)
}

// Unauthorized returns a 401 Unauthorized error.
func Unauthorized(message string) *Error {
	return New(http.StatusUnauthorized, ErrUnauthorized, message)
}

// RateLimited returns a 429 Too Many Requests error.
func RateLimited() *Error {
	return New(http.StatusTooManyRequests, ErrRateLimited, "Too many requests")
}

// Internal returns a 500 Internal Server Error.
func Internal(message string) *Error {
	return New(http.StatusInternalServerError, ErrInternal, message)
}
