// Package retry wraps a single day fetch with bounded retries.
package retry

import (
	"context"
	"errors"
	"time"

	"github.com/JakeFAU/weather-harvester/internal/harvest"
	"github.com/JakeFAU/weather-harvester/internal/measurement"
)

// DefaultMaxRetries is the number of retries after the first attempt.
const DefaultMaxRetries = 3

// Policy decides whether a failed attempt is retried and how long to wait.
type Policy interface {
	// ShouldRetry reports whether another attempt follows attempt (1-based)
	// failing with err.
	ShouldRetry(err error, attempt int) bool
	// Backoff is the wait before the attempt following attempt.
	Backoff(attempt int) time.Duration
}

// FixedPolicy retries up to maxRetries times with a constant delay.
type FixedPolicy struct {
	maxRetries        int
	delay             time.Duration
	retryFormatErrors bool
}

// NewFixedPolicy builds a policy. A zero delay retries immediately. When
// retryFormatErrors is false, malformed cells fail the day on the first
// attempt instead of being fetched again.
func NewFixedPolicy(maxRetries int, delay time.Duration, retryFormatErrors bool) *FixedPolicy {
	if maxRetries < 0 {
		maxRetries = 0
	}
	if delay < 0 {
		delay = 0
	}
	return &FixedPolicy{
		maxRetries:        maxRetries,
		delay:             delay,
		retryFormatErrors: retryFormatErrors,
	}
}

// NewDefaultPolicy retries every failure three times with no delay.
func NewDefaultPolicy() *FixedPolicy {
	return NewFixedPolicy(DefaultMaxRetries, 0, true)
}

// MaxRetries returns the retry budget.
func (p *FixedPolicy) MaxRetries() int {
	return p.maxRetries
}

// ShouldRetry decides whether the error is retryable.
func (p *FixedPolicy) ShouldRetry(err error, attempt int) bool {
	if err == nil {
		return false
	}
	if attempt > p.maxRetries {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, harvest.ErrSourceUnavailable) {
		return false
	}
	var formatErr *measurement.FormatError
	if !p.retryFormatErrors && errors.As(err, &formatErr) {
		return false
	}
	return true
}

// Backoff returns the constant delay.
func (p *FixedPolicy) Backoff(int) time.Duration {
	return p.delay
}
