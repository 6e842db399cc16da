package domain

import (
	"errors"
	"fmt"
	"time"
)

// EngineError represents a standardized error response
type EngineError struct {
	Code      string    `json:"code"`
	Message   string    `json:"message"`
	Details   string    `json:"details,omitempty"`
	Timestamp time.Time `json:"timestamp"`
	RequestID string    `json:"request_id,omitempty"`
}

// Error implements the error interface
func (e *EngineError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Error codes for different failure scenarios
const (
	ErrCodeUnknownPanel  = "UNKNOWN_PANEL"
	ErrCodeInvalidInput  = "INVALID_INPUT"
	ErrCodeNotFound      = "NOT_FOUND"
	ErrCodeInternal      = "INTERNAL_ERROR"
	ErrCodeRateLimit     = "RATE_LIMIT_EXCEEDED"
	ErrCodeUnavailable   = "SERVICE_UNAVAILABLE"
	ErrCodeInvalidFormat = "INVALID_FORMAT"
)

// ValidationError represents input validation errors
type ValidationError struct {
	Field   string      `json:"field"`
	Message string      `json:"message"`
	Value   interface{} `json:"value"`
}

// Error implements the error interface
func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error for field '%s': %s", e.Field, e.Message)
}

// UnknownPanelError is returned when a panel name is not present in the active catalog.
type UnknownPanelError struct {
	Catalog string
	Panel   string
}

func (e *UnknownPanelError) Error() string {
	return fmt.Sprintf("unknown panel %q in catalog %q", e.Panel, e.Catalog)
}

// Is makes errors.Is(err, ErrUnknownPanel) hold.
func (e *UnknownPanelError) Is(target error) bool {
	return target == ErrUnknownPanel
}

// NewEngineError creates a new EngineError with timestamp
func NewEngineError(code, message, details, requestID string) *EngineError {
	return &EngineError{
		Code:      code,
		Message:   message,
		Details:   details,
		Timestamp: time.Now().UTC(),
		RequestID: requestID,
	}
}

// NewValidationError creates a new ValidationError
func NewValidationError(field, message string, value interface{}) *ValidationError {
	return &ValidationError{
		Field:   field,
		Message: message,
		Value:   value,
	}
}

// ErrorCode maps an engine error to its response code.
func ErrorCode(err error) string {
	var engineErr *EngineError
	var validationErr *ValidationError
	switch {
	case err == nil:
		return ""
	case errors.As(err, &engineErr):
		return engineErr.Code
	case errors.Is(err, ErrUnknownPanel), errors.Is(err, ErrUnknownCatalog):
		return ErrCodeUnknownPanel
	case errors.Is(err, ErrNotFound):
		return ErrCodeNotFound
	case errors.As(err, &validationErr),
		errors.Is(err, ErrInvalidCategory),
		errors.Is(err, ErrInvalidRiskLevel),
		errors.Is(err, ErrInvalidGeneCount):
		return ErrCodeInvalidInput
	default:
		return ErrCodeInternal
	}
}
