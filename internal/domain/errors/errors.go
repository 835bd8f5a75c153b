package errors

import (
	"fmt"
)

// Error types for different domains
type ErrorType string

const (
	ErrorTypeValidation ErrorType = "validation"
	ErrorTypeStorage    ErrorType = "storage"
	ErrorTypeIntegrity  ErrorType = "integrity"
	ErrorTypeInternal   ErrorType = "internal"
	ErrorTypeNotFound   ErrorType = "not_found"
	ErrorTypeRateLimit  ErrorType = "rate_limit"
	ErrorTypeExport     ErrorType = "export"
)

// AppError represents a structured application error
type AppError struct {
	Type       ErrorType              `json:"type"`
	Code       string                 `json:"code"`
	Message    string                 `json:"message"`
	Details    map[string]interface{} `json:"details,omitempty"`
	Cause      error                  `json:"-"`
	Retryable  bool                   `json:"retryable"`
	StatusCode int                    `json:"status_code"`
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

func (e *AppError) WithDetails(details map[string]interface{}) *AppError {
	e.Details = details
	return e
}

func (e *AppError) WithCause(cause error) *AppError {
	e.Cause = cause
	return e
}

// Error constructors

func NewValidationError(code, message string) *AppError {
	return &AppError{
		Type:       ErrorTypeValidation,
		Code:       code,
		Message:    message,
		Retryable:  false,
		StatusCode: 400,
	}
}

// NewStorageError wraps a failed write or read against the backing store.
// Callers treat the cache as best-effort, so these are marked retryable.
func NewStorageError(message string) *AppError {
	return &AppError{
		Type:       ErrorTypeStorage,
		Code:       "STORAGE_FAILURE",
		Message:    message,
		Retryable:  true,
		StatusCode: 503,
	}
}

// NewIntegrityError signals that a decrypted payload's digest does not
// match the digest recorded at write time.
func NewIntegrityError(message string) *AppError {
	return &AppError{
		Type:       ErrorTypeIntegrity,
		Code:       "INTEGRITY_VIOLATION",
		Message:    message,
		Retryable:  false,
		StatusCode: 500,
	}
}

func NewNotFoundError(resource string) *AppError {
	return &AppError{
		Type:       ErrorTypeNotFound,
		Code:       "RESOURCE_NOT_FOUND",
		Message:    fmt.Sprintf("%s not found", resource),
		Retryable:  false,
		StatusCode: 404,
	}
}

func NewUnsupportedFormatError(format string) *AppError {
	return &AppError{
		Type:       ErrorTypeExport,
		Code:       "UNSUPPORTED_FORMAT",
		Message:    fmt.Sprintf("export format %q is not supported", format),
		Retryable:  false,
		StatusCode: 400,
		Details:    map[string]interface{}{"format": format},
	}
}

// NewHandlerError wraps a failure inside a format handler. Not retried
// automatically; the caller surfaces it.
func NewHandlerError(format, message string) *AppError {
	return &AppError{
		Type:       ErrorTypeExport,
		Code:       "HANDLER_FAILURE",
		Message:    message,
		Retryable:  false,
		StatusCode: 500,
		Details:    map[string]interface{}{"format": format},
	}
}

func NewRateLimitError(operation string) *AppError {
	return &AppError{
		Type:       ErrorTypeRateLimit,
		Code:       "RATE_LIMIT_EXCEEDED",
		Message:    fmt.Sprintf("rate limit exceeded for %s", operation),
		Retryable:  true,
		StatusCode: 429,
		Details:    map[string]interface{}{"operation": operation},
	}
}

func NewInternalError(message string) *AppError {
	return &AppError{
		Type:       ErrorTypeInternal,
		Code:       "INTERNAL_ERROR",
		Message:    message,
		Retryable:  true,
		StatusCode: 500,
	}
}
