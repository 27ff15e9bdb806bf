package remote

import (
	"errors"
	"fmt"
)

// TransientError marks a failure that is safe to retry: network faults,
// timeouts, throttling (429) and server-side errors (5xx).
type TransientError struct {
	Err error
}

func (e *TransientError) Error() string {
	return fmt.Sprintf("transient remote error: %v", e.Err)
}

func (e *TransientError) Unwrap() error { return e.Err }

// ValidationError is returned when the remote side rejected a payload.
// It is recorded against the offending record and never retried.
type ValidationError struct {
	StatusCode int
	Message    string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("remote rejected payload (status %d): %s", e.StatusCode, e.Message)
}

// IsTransient reports whether err (or anything it wraps) is retryable.
func IsTransient(err error) bool {
	var te *TransientError
	return errors.As(err, &te)
}

// IsValidation reports whether err is a remote-side payload rejection.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
