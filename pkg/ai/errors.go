// Package ai provides the capability contracts shared by the caption client's
// external providers: language models, speech output, speech input and the
// suggestion service. It defines the error classification every provider uses.
package ai

import (
	"context"
	"errors"
	"fmt"
)

// Common error types used across providers
var (
	// ErrRecoverable indicates a temporary failure that may succeed on a later request.
	// Examples: network timeout, rate limiting, 5xx from the suggestion service.
	ErrRecoverable = errors.New("recoverable provider error")

	// ErrFatal indicates a permanent failure for this input.
	// Examples: invalid API key, malformed request, unparseable response.
	ErrFatal = errors.New("fatal provider error")
)

// IsRecoverable checks if an error is recoverable
func IsRecoverable(err error) bool {
	return errors.Is(err, ErrRecoverable)
}

// IsFatal checks if an error is fatal
func IsFatal(err error) bool {
	return errors.Is(err, ErrFatal)
}

// IsCanceled reports whether err came from a request that was superseded or
// aborted. Canceled requests are never surfaced as failures.
func IsCanceled(err error) bool {
	return errors.Is(err, context.Canceled)
}

// RetryableError wraps an underlying error with a classification
type RetryableError struct {
	Underlying error
	Retryable  bool
	Message    string
}

func (e *RetryableError) Error() string {
	switch {
	case e.Message != "" && e.Underlying != nil:
		return fmt.Sprintf("%s: %v", e.Message, e.Underlying)
	case e.Message != "":
		return e.Message
	case e.Underlying != nil:
		return e.Underlying.Error()
	}
	return "provider error"
}

// Unwrap exposes both the classification sentinel and the underlying cause so
// errors.Is works against either.
func (e *RetryableError) Unwrap() []error {
	class := ErrFatal
	if e.Retryable {
		class = ErrRecoverable
	}
	if e.Underlying == nil {
		return []error{class}
	}
	return []error{class, e.Underlying}
}

// NewRecoverableError creates a recoverable error with context
func NewRecoverableError(underlying error, message string) error {
	return &RetryableError{
		Underlying: underlying,
		Retryable:  true,
		Message:    message,
	}
}

// NewFatalError creates a fatal error with context
func NewFatalError(underlying error, message string) error {
	return &RetryableError{
		Underlying: underlying,
		Retryable:  false,
		Message:    message,
	}
}
