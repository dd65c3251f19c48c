package retry

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/weather-harvester/internal/harvest"
)

// Operation is one attempt at fetching and parsing a day.
type Operation func(ctx context.Context) ([]harvest.DayRecord, error)

// Hook observes a failed attempt that is about to be retried.
type Hook func(target harvest.CalendarTarget, attempt int, err error)

// Orchestrator runs an Operation until it succeeds or the policy gives up.
// It does not interpret failures beyond what its Policy decides.
type Orchestrator struct {
	policy  Policy
	logger  *zap.Logger
	onRetry Hook
	sleep   func(ctx context.Context, d time.Duration) error
}

// Option customizes an Orchestrator.
type Option func(*Orchestrator)

// WithRetryHook registers h to be called before every retry.
func WithRetryHook(h Hook) Option {
	return func(o *Orchestrator) {
		o.onRetry = h
	}
}

// New constructs an Orchestrator. A nil policy uses NewDefaultPolicy.
func New(policy Policy, logger *zap.Logger, opts ...Option) *Orchestrator {
	if policy == nil {
		policy = NewDefaultPolicy()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	o := &Orchestrator{
		policy: policy,
		logger: logger,
		sleep:  sleepContext,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Do invokes op for target. Failures the policy accepts are retried. Once
// the retry budget is spent the last error is returned inside a
// RetriesExhaustedError; failures the policy treats as fatal are returned
// as they are.
func (o *Orchestrator) Do(ctx context.Context, target harvest.CalendarTarget, op Operation) ([]harvest.DayRecord, error) {
	for attempt := 1; ; attempt++ {
		records, err := op(ctx)
		if err == nil {
			return records, nil
		}
		if ctx.Err() != nil {
			return nil, fmt.Errorf("day %s canceled after %d attempts: %w", target, attempt, err)
		}
		if !o.policy.ShouldRetry(err, attempt) {
			if !isBudgetSpent(o.policy, attempt) {
				return nil, err
			}
			return nil, &harvest.RetriesExhaustedError{Target: target, Attempts: attempt, Err: err}
		}

		o.logger.Warn("retrying day",
			zap.Int("month", target.Month),
			zap.Int("day", target.Day),
			zap.Int("attempt", attempt),
			zap.Error(err),
		)
		if o.onRetry != nil {
			o.onRetry(target, attempt, err)
		}
		if sleepErr := o.sleep(ctx, o.policy.Backoff(attempt)); sleepErr != nil {
			return nil, fmt.Errorf("day %s retry wait: %w", target, sleepErr)
		}
	}
}

// isBudgetSpent reports whether the policy declined because its budget ran
// out rather than because the failure class is fatal.
func isBudgetSpent(policy Policy, attempt int) bool {
	budgeted, ok := policy.(interface{ MaxRetries() int })
	if !ok {
		return true
	}
	return attempt > budgeted.MaxRetries()
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
