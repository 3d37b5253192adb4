package errors

import (
	"errors"
	"fmt"
)

// ErrorCode represents a unique error identifier
type ErrorCode string

const (
	// Authentication & Authorization
	ErrCodeUnauthorized ErrorCode = "UNAUTHORIZED"

	// Validation
	ErrCodeValidation      ErrorCode = "VALIDATION_ERROR"
	ErrCodeInvalidInput    ErrorCode = "INVALID_INPUT"
	ErrCodeMissingRequired ErrorCode = "MISSING_REQUIRED"

	// Resource
	ErrCodeNotFound ErrorCode = "NOT_FOUND"

	// Premium codes
	ErrCodeInvalidCode      ErrorCode = "INVALID_CODE"
	ErrCodeTamperedCode     ErrorCode = "TAMPERED_CODE"
	ErrCodeCodeExpired      ErrorCode = "CODE_EXPIRED"
	ErrCodeCodeExhausted    ErrorCode = "CODE_EXHAUSTED"
	ErrCodeNotActivated     ErrorCode = "NOT_ACTIVATED"
	ErrCodeExhaustedEntropy ErrorCode = "EXHAUSTED_ENTROPY"

	// Rate Limiting
	ErrCodeRateLimitExceeded ErrorCode = "RATE_LIMIT_EXCEEDED"

	// Internal
	ErrCodeInternal           ErrorCode = "INTERNAL_ERROR"
	ErrCodeStorageUnavailable ErrorCode = "STORAGE_UNAVAILABLE"
)

// AppError is a structured error that can be returned to clients
type AppError struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
	Details any       `json:"details,omitempty"`
	cause   error
}

// Error implements the error interface
func (e *AppError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s (cause: %v)", e.Code, e.Message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying error
func (e *AppError) Unwrap() error {
	return e.cause
}

// WithCause adds a cause to the error
func (e *AppError) WithCause(err error) *AppError {
	e.cause = err
	return e
}

// WithDetails adds details to the error
func (e *AppError) WithDetails(details any) *AppError {
	e.Details = details
	return e
}

// New creates a new AppError
func New(code ErrorCode, message string) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
	}
}

// Wrap wraps an existing error with an AppError
func Wrap(code ErrorCode, message string, cause error) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		cause:   cause,
	}
}

// Common error constructors

func Unauthorized(message string) *AppError {
	return New(ErrCodeUnauthorized, message)
}

func NotFound(resource string) *AppError {
	return New(ErrCodeNotFound, fmt.Sprintf("%s not found", resource))
}

func ValidationError(message string) *AppError {
	return New(ErrCodeValidation, message)
}

func InvalidInput(field string, reason string) *AppError {
	return New(ErrCodeInvalidInput, fmt.Sprintf("Invalid %s: %s", field, reason))
}

func MissingRequired(field string) *AppError {
	return New(ErrCodeMissingRequired, fmt.Sprintf("%s is required", field))
}

// InvalidCode covers both malformed and unknown codes so callers cannot probe
// which codes exist.
func InvalidCode() *AppError {
	return New(ErrCodeInvalidCode, "Invalid code")
}

func TamperedCode() *AppError {
	return New(ErrCodeTamperedCode, "Code is corrupted or not authentic")
}

func CodeExpired() *AppError {
	return New(ErrCodeCodeExpired, "Code has expired")
}

func CodeExhausted() *AppError {
	return New(ErrCodeCodeExhausted, "Code has no remaining uses")
}

func NotActivated() *AppError {
	return New(ErrCodeNotActivated, "Code is not activated on this device")
}

func ExhaustedEntropy(attempts int) *AppError {
	return New(ErrCodeExhaustedEntropy, fmt.Sprintf("No unique code found after %d attempts", attempts))
}

func RateLimitExceeded() *AppError {
	return New(ErrCodeRateLimitExceeded, "Too many attempts, retry in a few seconds")
}

func Internal(message string) *AppError {
	return New(ErrCodeInternal, message)
}

func StorageUnavailable(cause error) *AppError {
	return Wrap(ErrCodeStorageUnavailable, "Code store unavailable", cause)
}

// IsAppError checks if an error is an AppError
func IsAppError(err error) bool {
	var appErr *AppError
	return errors.As(err, &appErr)
}

// AsAppError converts an error to an AppError if possible
func AsAppError(err error) (*AppError, bool) {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

// GetCode returns the error code if the error is an AppError, otherwise returns ErrCodeInternal
func GetCode(err error) ErrorCode {
	if appErr, ok := AsAppError(err); ok {
		return appErr.Code
	}
	return ErrCodeInternal
}
