package domain

import (
	"errors"
	"fmt"
	"testing"
	"time"
)

func TestEngineError(t *testing.T) {
	tests := []struct {
		name      string
		code      string
		message   string
		details   string
		requestID string
	}{
		{
			name:      "Unknown panel",
			code:      ErrCodeUnknownPanel,
			message:   "Panel not found",
			details:   "catalog sophia has no panel named Exome Lite",
			requestID: "req-123",
		},
		{
			name:      "Invalid input",
			code:      ErrCodeInvalidInput,
			message:   "Invalid lab profile",
			details:   "annual_volume must be a positive integer",
			requestID: "req-456",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := NewEngineError(tt.code, tt.message, tt.details, tt.requestID)

			if err.Code != tt.code {
				t.Errorf("Expected code %s, got %s", tt.code, err.Code)
			}
			if err.Message != tt.message {
				t.Errorf("Expected message %s, got %s", tt.message, err.Message)
			}
			if err.Details != tt.details {
				t.Errorf("Expected details %s, got %s", tt.details, err.Details)
			}
			if err.RequestID != tt.requestID {
				t.Errorf("Expected requestID %s, got %s", tt.requestID, err.RequestID)
			}
			if time.Since(err.Timestamp) > time.Minute {
				t.Errorf("Timestamp should be recent, got %v", err.Timestamp)
			}

			expectedError := tt.code + ": " + tt.message
			if err.Error() != expectedError {
				t.Errorf("Expected error string %s, got %s", expectedError, err.Error())
			}
		})
	}
}

func TestValidationError(t *testing.T) {
	err := NewValidationError("cost_per_sample", "must be a non-negative finite amount", -5.0)

	if err.Field != "cost_per_sample" {
		t.Errorf("Expected field cost_per_sample, got %s", err.Field)
	}
	if err.Value != -5.0 {
		t.Errorf("Expected value -5, got %v", err.Value)
	}
	expected := "validation error for field 'cost_per_sample': must be a non-negative finite amount"
	if err.Error() != expected {
		t.Errorf("Expected error string %s, got %s", expected, err.Error())
	}
}

func TestUnknownPanelError(t *testing.T) {
	var err error = &UnknownPanelError{Catalog: "sophia", Panel: "Exome Lite"}
	wrapped := fmt.Errorf("classify: %w", err)

	if !errors.Is(wrapped, ErrUnknownPanel) {
		t.Error("Expected wrapped UnknownPanelError to match ErrUnknownPanel")
	}
	if errors.Is(wrapped, ErrNotFound) {
		t.Error("UnknownPanelError must not match ErrNotFound")
	}

	var target *UnknownPanelError
	if !errors.As(wrapped, &target) || target.Panel != "Exome Lite" {
		t.Errorf("Expected errors.As to recover the panel name, got %+v", target)
	}
}

func TestErrorCode(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected string
	}{
		{"nil", nil, ""},
		{"unknown panel", &UnknownPanelError{Catalog: "general", Panel: "x"}, ErrCodeUnknownPanel},
		{"unknown catalog", fmt.Errorf("load: %w", ErrUnknownCatalog), ErrCodeUnknownPanel},
		{"not found", fmt.Errorf("history: %w", ErrNotFound), ErrCodeNotFound},
		{"validation", NewValidationError("volume", "must be positive", 0), ErrCodeInvalidInput},
		{"gene count", ErrInvalidGeneCount, ErrCodeInvalidInput},
		{"engine error", NewEngineError(ErrCodeRateLimit, "slow down", "", ""), ErrCodeRateLimit},
		{"other", errors.New("boom"), ErrCodeInternal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ErrorCode(tt.err); got != tt.expected {
				t.Errorf("Expected %q, got %q", tt.expected, got)
			}
		})
	}
}
