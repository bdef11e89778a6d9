package errors

import (
	"errors"
	"fmt"
)

// Domain error types for the fee analysis pipeline

var (
	// ErrNotFound indicates a resource was not found
	ErrNotFound = errors.New("resource not found")

	// ErrInternal indicates an internal error
	ErrInternal = errors.New("internal error")
)

// Chain data-source errors

var (
	// ErrInvalidAddress indicates a wallet address malformed for the chain
	ErrInvalidAddress = errors.New("invalid wallet address")

	// ErrTransientFetch indicates a retryable data-source failure
	// (network error, rate limiting, 5xx)
	ErrTransientFetch = errors.New("transient fetch failure")

	// ErrFetch indicates a non-retryable data-source failure
	// (bad API key, not found, malformed request)
	ErrFetch = errors.New("fetch failure")

	// ErrRateLimitExceeded indicates API rate limit exceeded
	ErrRateLimitExceeded = errors.New("rate limit exceeded")

	// ErrNoData indicates the address has no transactions to analyze.
	// A recognized empty-result outcome, not a crash.
	ErrNoData = errors.New("no transactions found")
)

// ConfigurationError reports a missing or unresolvable configuration value.
// Key names the configuration entry that needs correcting.
type ConfigurationError struct {
	Key     string
	Message string
}

// Error implements the error interface
func (e *ConfigurationError) Error() string {
	if e.Key != "" {
		return fmt.Sprintf("configuration error: %s (set %s)", e.Message, e.Key)
	}
	return fmt.Sprintf("configuration error: %s", e.Message)
}

// NewConfigurationError creates a configuration error tied to a config key
func NewConfigurationError(key, message string) *ConfigurationError {
	return &ConfigurationError{Key: key, Message: message}
}

// ValidationError represents a validation error with field-specific details
type ValidationError struct {
	Field   string
	Message string
	Value   interface{}
}

// Error implements the error interface
func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error: field '%s': %s (value: %v)", e.Field, e.Message, e.Value)
}

// NewValidationError creates a new validation error
func NewValidationError(field, message string, value interface{}) *ValidationError {
	return &ValidationError{
		Field:   field,
		Message: message,
		Value:   value,
	}
}

// Helper functions

// Is checks if err is or wraps target
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's chain that matches target type
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}

// Wrap wraps an error with context
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// Wrapf wraps an error with formatted context
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), err)
}

func New(message string) error {
	return errors.New(message)
}

func Newf(format string, args ...interface{}) error {
	return fmt.Errorf(format, args...)
}
