package core

import (
	"errors"
	"fmt"
	"testing"
)

func TestIsRetryable(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected bool
	}{
		{"ErrTimeout is retryable", ErrTimeout, true},
		{"ErrConnectionFailed is retryable", ErrConnectionFailed, true},
		{"ErrCircuitBreakerOpen is retryable", ErrCircuitBreakerOpen, true},
		{"wrapped retryable error is retryable", fmt.Errorf("operation failed: %w", ErrTimeout), true},
		{"ErrLedgerNotFound is not retryable", ErrLedgerNotFound, false},
		{"ErrInvalidConfiguration is not retryable", ErrInvalidConfiguration, false},
		{"custom error is not retryable", errors.New("custom error"), false},
		{"nil error is not retryable", nil, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsRetryable(tt.err); got != tt.expected {
				t.Errorf("IsRetryable(%v) = %v, want %v", tt.err, got, tt.expected)
			}
		})
	}
}

func TestIsValidatorFailure(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected bool
	}{
		{"ErrSchemaViolation is a validator failure", ErrSchemaViolation, true},
		{"ErrFSMViolation is a validator failure", ErrFSMViolation, true},
		{"ErrInvariantViolation is a validator failure", ErrInvariantViolation, true},
		{"wrapped invariant violation is detected", fmt.Errorf("INV-002: %w", ErrInvariantViolation), true},
		{"ErrBudgetExceeded is not a validator failure", ErrBudgetExceeded, false},
		{"ErrStepTimeout is not a validator failure", ErrStepTimeout, false},
		{"nil error is not a validator failure", nil, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsValidatorFailure(tt.err); got != tt.expected {
				t.Errorf("IsValidatorFailure(%v) = %v, want %v", tt.err, got, tt.expected)
			}
		})
	}
}

func TestIsEpisodeFatal(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected bool
	}{
		{"ErrEpisodeFatal is fatal", ErrEpisodeFatal, true},
		{"ErrBudgetExceeded is fatal", ErrBudgetExceeded, true},
		{"ErrSchemaViolation is not episode-fatal", ErrSchemaViolation, false},
		{"nil error is not episode-fatal", nil, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsEpisodeFatal(tt.err); got != tt.expected {
				t.Errorf("IsEpisodeFatal(%v) = %v, want %v", tt.err, got, tt.expected)
			}
		})
	}
}

func TestIsConfigurationError(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected bool
	}{
		{"ErrInvalidConfiguration is configuration error", ErrInvalidConfiguration, true},
		{"ErrMissingConfiguration is configuration error", ErrMissingConfiguration, true},
		{"wrapped configuration error is detected", fmt.Errorf("config validation failed: %w", ErrInvalidConfiguration), true},
		{"ErrTimeout is not configuration error", ErrTimeout, false},
		{"custom error is not configuration error", errors.New("random error"), false},
		{"nil error is not configuration error", nil, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsConfigurationError(tt.err); got != tt.expected {
				t.Errorf("IsConfigurationError(%v) = %v, want %v", tt.err, got, tt.expected)
			}
		})
	}
}

func TestIsStateError(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected bool
	}{
		{"ErrAlreadyStarted is state error", ErrAlreadyStarted, true},
		{"ErrNotInitialized is state error", ErrNotInitialized, true},
		{"wrapped state error is detected", fmt.Errorf("cannot proceed: %w", ErrNotInitialized), true},
		{"ErrTimeout is not state error", ErrTimeout, false},
		{"custom error is not state error", errors.New("some other error"), false},
		{"nil error is not state error", nil, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsStateError(tt.err); got != tt.expected {
				t.Errorf("IsStateError(%v) = %v, want %v", tt.err, got, tt.expected)
			}
		})
	}
}

func TestErrorWrapping(t *testing.T) {
	baseErr := ErrLedgerNotFound
	wrappedOnce := fmt.Errorf("failed to find ledger 'corr_test': %w", baseErr)
	wrappedTwice := fmt.Errorf("operation failed: %w", wrappedOnce)

	if !errors.Is(wrappedOnce, baseErr) {
		t.Error("once-wrapped error should satisfy errors.Is")
	}
	if !errors.Is(wrappedTwice, baseErr) {
		t.Error("errors.Is should work through multiple wrapping layers")
	}
}

func TestErrorCombinations(t *testing.T) {
	if !IsRetryable(ErrCircuitBreakerOpen) {
		t.Error("ErrCircuitBreakerOpen should be retryable")
	}
	if IsConfigurationError(ErrTimeout) {
		t.Error("ErrTimeout should not be a configuration error")
	}
	if IsStateError(ErrInvalidConfiguration) {
		t.Error("ErrInvalidConfiguration should not be a state error")
	}
}

func BenchmarkIsRetryable(b *testing.B) {
	err := fmt.Errorf("wrapped: %w", ErrTimeout)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = IsRetryable(err)
	}
}

func BenchmarkIsValidatorFailure(b *testing.B) {
	err := fmt.Errorf("wrapped: %w", ErrInvariantViolation)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = IsValidatorFailure(err)
	}
}
