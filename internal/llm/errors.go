package llm

import (
	"errors"
	"fmt"
	"time"
)

// ErrMissingCredential is returned when no backend credential is configured.
// It is never retried.
var ErrMissingCredential = errors.New("model backend credential not configured")

// ErrEmptyResponse is returned when the backend answers with no text.
var ErrEmptyResponse = errors.New("Empty response") //nolint:staticcheck // surfaced verbatim in error reports

// APIError is a backend failure with the fields the gateway needs to decide on
// a retry. RetryAfter is zero when the backend did not suggest a delay.
type APIError struct {
	StatusCode int
	Message    string
	RetryAfter time.Duration
	Cause      error
}

func (e *APIError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("model backend error (%d): %s", e.StatusCode, e.Message)
	}
	return fmt.Sprintf("model backend error: %s", e.Message)
}

func (e *APIError) Unwrap() error {
	return e.Cause
}

// StatusCode returns the HTTP-style status carried by err, or 0.
func StatusCode(err error) int {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode
	}
	return 0
}
