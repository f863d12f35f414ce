package errors

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAppError_MessageAndUnwrap(t *testing.T) {
	cause := errors.New("connection refused")
	err := NewProviderError("embedding request failed", cause)

	assert.Contains(t, err.Error(), "PROVIDER")
	assert.Contains(t, err.Error(), "connection refused")
	assert.ErrorIs(t, err, cause)
}

func TestTypeOf(t *testing.T) {
	testCases := []struct {
		name     string
		err      error
		expected ErrorType
	}{
		{"validation", NewValidationError("bad input"), ErrorTypeValidation},
		{"rate limited", NewRateLimitError("budget exhausted"), ErrorTypeRateLimited},
		{"timeout", NewTimeoutError("deadline", nil), ErrorTypeTimeout},
		{"provider", NewProviderError("upstream", nil), ErrorTypeProvider},
		{"wrapped provider", fmt.Errorf("stage: %w", NewProviderError("upstream", nil)), ErrorTypeProvider},
		{"plain error", errors.New("boom"), ErrorTypeInternal},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, TypeOf(tc.err))
		})
	}
}

func TestIsRetryable(t *testing.T) {
	assert.True(t, IsRetryable(NewProviderError("503 from upstream", nil)))
	assert.True(t, IsRetryable(errors.New("raw network failure")))

	assert.False(t, IsRetryable(nil))
	assert.False(t, IsRetryable(NewValidationError("bad input")))
	assert.False(t, IsRetryable(NewUnauthorizedError("bad key")))
	assert.False(t, IsRetryable(NewRateLimitError("budget exhausted")))
	assert.False(t, IsRetryable(NewTimeoutError("deadline", nil)))
	assert.False(t, IsRetryable(context.DeadlineExceeded))
	assert.False(t, IsRetryable(context.Canceled))
}
