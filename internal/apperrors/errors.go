// Package apperrors defines the error taxonomy shared across the service.
package apperrors

import (
	"errors"
	"fmt"
)

var (
	// ErrValidation marks malformed or out-of-range input, rejected before
	// any side effect.
	ErrValidation = errors.New("validation error")

	// ErrNotFound marks a scan or action that is missing or not owned by
	// the caller.
	ErrNotFound = errors.New("not found")

	// ErrProviderUnavailable marks a mailbox or LLM call that failed after
	// retries.
	ErrProviderUnavailable = errors.New("provider unavailable")

	// ErrCircuitOpen marks a provider whose circuit breaker is open. It is
	// handled internally via fallback and never surfaced as a hard failure.
	ErrCircuitOpen = errors.New("circuit open")

	// ErrUndoExpired marks an undo attempted past the undo window.
	ErrUndoExpired = errors.New("undo window expired")
)

// Validationf wraps ErrValidation with a formatted message.
func Validationf(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

// NotFoundf wraps ErrNotFound with a formatted message.
func NotFoundf(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrNotFound, fmt.Sprintf(format, args...))
}

// Providerf wraps ErrProviderUnavailable with a formatted message.
func Providerf(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrProviderUnavailable, fmt.Sprintf(format, args...))
}
