package llm

import (
	"context"
	"errors"
	"regexp"
	"strconv"
	"time"
)

var (
	transientPattern = regexp.MustCompile(`(?i)\b429\b|\b503\b|quota|rate limit|temporarily unavailable`)
	retryHintPattern = regexp.MustCompile(`(?i)retry in\s+([0-9]+(?:\.[0-9]+)?)s`)
)

// RetryPolicy bounds how the gateway retries transient failures.
type RetryPolicy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
	// Sleep waits for d or until ctx is done. Tests replace it.
	Sleep func(ctx context.Context, d time.Duration) error
}

// DefaultRetryPolicy is three attempts with exponential backoff capped at 60s.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts: 3,
		BaseDelay:   time.Second,
		MaxDelay:    60 * time.Second,
		Sleep:       sleepContext,
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// IsTransient reports whether err looks like rate limiting or temporary
// unavailability. Empty responses count as transient.
func IsTransient(err error) bool {
	if err == nil || errors.Is(err, ErrMissingCredential) {
		return false
	}
	if errors.Is(err, ErrEmptyResponse) {
		return true
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) && (apiErr.StatusCode == 429 || apiErr.StatusCode == 503) {
		return true
	}
	return transientPattern.MatchString(err.Error())
}

// Delay picks the wait before the next attempt. attempt is 1-based and names
// the attempt that just failed.
func (p RetryPolicy) Delay(err error, attempt int) time.Duration {
	var d time.Duration
	var apiErr *APIError
	switch {
	case errors.As(err, &apiErr) && apiErr.RetryAfter > 0:
		d = apiErr.RetryAfter
	default:
		if hint, ok := parseRetryHint(err.Error()); ok {
			d = hint
		} else {
			d = p.BaseDelay << (attempt - 1)
		}
	}
	if p.MaxDelay > 0 && d > p.MaxDelay {
		d = p.MaxDelay
	}
	return d
}

// parseRetryHint extracts a "retry in Ns" suggestion from an error message.
func parseRetryHint(msg string) (time.Duration, bool) {
	m := retryHintPattern.FindStringSubmatch(msg)
	if m == nil {
		return 0, false
	}
	secs, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return 0, false
	}
	return time.Duration(secs * float64(time.Second)), true
}
