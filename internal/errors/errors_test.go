package errors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAppError(t *testing.T) {
	t.Run("Error returns formatted string", func(t *testing.T) {
		err := New(ErrCodeNotFound, "Code not found")
		assert.Equal(t, "NOT_FOUND: Code not found", err.Error())
	})

	t.Run("Error with cause includes cause", func(t *testing.T) {
		cause := errors.New("database connection failed")
		err := Wrap(ErrCodeStorageUnavailable, "Code store unavailable", cause)
		assert.Contains(t, err.Error(), "STORAGE_UNAVAILABLE")
		assert.Contains(t, err.Error(), "Code store unavailable")
		assert.Contains(t, err.Error(), "database connection failed")
	})

	t.Run("WithCause adds cause to error", func(t *testing.T) {
		cause := errors.New("original error")
		err := New(ErrCodeInternal, "Something went wrong").WithCause(cause)
		assert.Equal(t, cause, err.Unwrap())
	})

	t.Run("WithDetails adds details to error", func(t *testing.T) {
		details := map[string]string{"field": "deviceId", "reason": "empty"}
		err := New(ErrCodeValidation, "Validation failed").WithDetails(details)
		assert.Equal(t, details, err.Details)
	})
}

func TestErrorConstructors(t *testing.T) {
	tests := []struct {
		name         string
		constructor  func() *AppError
		expectedCode ErrorCode
	}{
		{"Unauthorized", func() *AppError { return Unauthorized("test") }, ErrCodeUnauthorized},
		{"NotFound", func() *AppError { return NotFound("Code") }, ErrCodeNotFound},
		{"ValidationError", func() *AppError { return ValidationError("test") }, ErrCodeValidation},
		{"InvalidInput", func() *AppError { return InvalidInput("type", "unknown") }, ErrCodeInvalidInput},
		{"MissingRequired", func() *AppError { return MissingRequired("code") }, ErrCodeMissingRequired},
		{"InvalidCode", func() *AppError { return InvalidCode() }, ErrCodeInvalidCode},
		{"TamperedCode", func() *AppError { return TamperedCode() }, ErrCodeTamperedCode},
		{"CodeExpired", func() *AppError { return CodeExpired() }, ErrCodeCodeExpired},
		{"CodeExhausted", func() *AppError { return CodeExhausted() }, ErrCodeCodeExhausted},
		{"NotActivated", func() *AppError { return NotActivated() }, ErrCodeNotActivated},
		{"ExhaustedEntropy", func() *AppError { return ExhaustedEntropy(50) }, ErrCodeExhaustedEntropy},
		{"RateLimitExceeded", func() *AppError { return RateLimitExceeded() }, ErrCodeRateLimitExceeded},
		{"Internal", func() *AppError { return Internal("test") }, ErrCodeInternal},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.constructor()
			assert.Equal(t, tc.expectedCode, err.Code)
			assert.NotEmpty(t, err.Message)
		})
	}
}

func TestStorageUnavailable(t *testing.T) {
	t.Run("wraps store error", func(t *testing.T) {
		cause := errors.New("connection refused")
		err := StorageUnavailable(cause)
		assert.Equal(t, ErrCodeStorageUnavailable, err.Code)
		assert.Equal(t, cause, err.Unwrap())
		assert.True(t, errors.Is(err, cause))
	})
}

func TestExhaustedEntropyMessage(t *testing.T) {
	err := ExhaustedEntropy(50)
	assert.Contains(t, err.Message, "50")
}

func TestIsAppError(t *testing.T) {
	t.Run("returns true for AppError", func(t *testing.T) {
		err := New(ErrCodeNotFound, "test")
		assert.True(t, IsAppError(err))
	})

	t.Run("returns false for standard error", func(t *testing.T) {
		err := errors.New("standard error")
		assert.False(t, IsAppError(err))
	})

	t.Run("returns true for AppError wrapped with %w", func(t *testing.T) {
		wrapped := fmt.Errorf("redeem: %w", CodeExpired())
		assert.True(t, IsAppError(wrapped))
	})
}

func TestAsAppError(t *testing.T) {
	t.Run("extracts AppError", func(t *testing.T) {
		original := New(ErrCodeNotFound, "Code not found")
		extracted, ok := AsAppError(original)
		assert.True(t, ok)
		assert.Equal(t, original, extracted)
	})

	t.Run("returns false for non-AppError", func(t *testing.T) {
		err := errors.New("standard error")
		extracted, ok := AsAppError(err)
		assert.False(t, ok)
		assert.Nil(t, extracted)
	})
}

func TestGetCode(t *testing.T) {
	t.Run("returns code for AppError", func(t *testing.T) {
		err := TamperedCode()
		assert.Equal(t, ErrCodeTamperedCode, GetCode(err))
	})

	t.Run("returns ErrCodeInternal for standard error", func(t *testing.T) {
		err := errors.New("standard error")
		assert.Equal(t, ErrCodeInternal, GetCode(err))
	})
}

func TestMissingRequiredMessage(t *testing.T) {
	err := MissingRequired("deviceId")
	assert.Equal(t, "deviceId is required", err.Message)
}
