package errors

import (
	stderrors "errors"
	"fmt"
)

// ErrorCode represents a categorized error type
type ErrorCode string

const (
	// Intake / authorization
	ErrCodeUnauthorized   ErrorCode = "UNAUTHORIZED"
	ErrCodeInvalidPayload ErrorCode = "INVALID_PAYLOAD"

	// Lifecycle
	ErrCodeInvalidTransition ErrorCode = "INVALID_TRANSITION"
	ErrCodeNotFound          ErrorCode = "NOT_FOUND"

	// Queries
	ErrCodeInvalidQuery ErrorCode = "INVALID_QUERY"

	// Notification delivery (always recoverable, never surfaced to the
	// operation that triggered it)
	ErrCodeDeliveryFailed ErrorCode = "DELIVERY_FAILED"

	// Token issuing
	ErrCodeTokenConflict ErrorCode = "TOKEN_CONFLICT"

	// Infrastructure
	ErrCodeDatabaseQuery ErrorCode = "DATABASE_QUERY"
	ErrCodeInvalidConfig ErrorCode = "INVALID_CONFIG"
	ErrCodeTimeout       ErrorCode = "TIMEOUT"
	ErrCodeInternalError ErrorCode = "INTERNAL_ERROR"
)

// AppError is a structured application error carrying a machine-readable
// code. Callers branch on the code, not the message.
type AppError struct {
	Code      ErrorCode
	Message   string
	Cause     error
	Retryable bool
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

// New creates a new AppError
func New(code ErrorCode, message string) *AppError {
	return &AppError{Code: code, Message: message}
}

// Wrap wraps an existing error with a code and context message
func Wrap(err error, code ErrorCode, message string) *AppError {
	return &AppError{Code: code, Message: message, Cause: err}
}

// WrapRetryable wraps an error and marks it as retryable
func WrapRetryable(err error, code ErrorCode, message string) *AppError {
	return &AppError{Code: code, Message: message, Cause: err, Retryable: true}
}

// IsRetryable checks if an error is retryable
func IsRetryable(err error) bool {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr.Retryable
	}
	return false
}

// HasCode reports whether err (or anything it wraps) carries the given code.
func HasCode(err error, code ErrorCode) bool {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr.Code == code
	}
	return false
}

// GetCode extracts the error code from an error
func GetCode(err error) ErrorCode {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr.Code
	}
	return ErrCodeInternalError
}
