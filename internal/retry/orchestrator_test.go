package retry

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/JakeFAU/weather-harvester/internal/harvest"
	"github.com/JakeFAU/weather-harvester/internal/measurement"
)

var testTarget = harvest.CalendarTarget{Month: 6, Day: 15}

type countingOp struct {
	mu       sync.Mutex
	attempts int
	fails    int
	err      error
}

func (c *countingOp) run(context.Context) ([]harvest.DayRecord, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.attempts++
	if c.attempts <= c.fails {
		if c.err != nil {
			return nil, c.err
		}
		return nil, errors.New("transient error")
	}
	return []harvest.DayRecord{{Date: "2016-06-15"}}, nil
}

func TestOrchestratorSucceedsWithinBudget(t *testing.T) {
	t.Parallel()

	for maxRetries := 0; maxRetries <= 4; maxRetries++ {
		for fails := 0; fails <= maxRetries; fails++ {
			op := &countingOp{fails: fails}
			o := New(NewFixedPolicy(maxRetries, 0, true), zap.NewNop())
			records, err := o.Do(context.Background(), testTarget, op.run)
			require.NoError(t, err)
			require.Len(t, records, 1)
			require.Equal(t, fails+1, op.attempts)
		}
	}
}

func TestOrchestratorExhaustsBudget(t *testing.T) {
	t.Parallel()

	for maxRetries := 0; maxRetries <= 3; maxRetries++ {
		op := &countingOp{fails: maxRetries + 5}
		o := New(NewFixedPolicy(maxRetries, 0, true), zap.NewNop())
		_, err := o.Do(context.Background(), testTarget, op.run)

		var exhausted *harvest.RetriesExhaustedError
		require.ErrorAs(t, err, &exhausted)
		require.Equal(t, maxRetries+1, exhausted.Attempts)
		require.Equal(t, maxRetries+1, op.attempts, "operation invoked after budget was consumed")
		require.Contains(t, err.Error(), "transient error")
	}
}

func TestOrchestratorDefaultBudget(t *testing.T) {
	t.Parallel()

	op := &countingOp{fails: 10}
	_, err := New(nil, nil).Do(context.Background(), testTarget, op.run)
	require.Error(t, err)
	require.Equal(t, DefaultMaxRetries+1, op.attempts)
}

func TestOrchestratorRetryHook(t *testing.T) {
	t.Parallel()

	var seen []int
	op := &countingOp{fails: 2}
	o := New(NewFixedPolicy(3, 0, true), zap.NewNop(), WithRetryHook(func(target harvest.CalendarTarget, attempt int, err error) {
		require.Equal(t, testTarget, target)
		require.Error(t, err)
		seen = append(seen, attempt)
	}))
	_, err := o.Do(context.Background(), testTarget, op.run)
	require.NoError(t, err)
	require.Equal(t, []int{1, 2}, seen)
}

func TestOrchestratorFormatErrorClassification(t *testing.T) {
	t.Parallel()

	formatErr := &measurement.FormatError{Kind: measurement.KindCloud, Text: "57"}

	retried := &countingOp{fails: 10, err: formatErr}
	_, err := New(NewFixedPolicy(3, 0, true), zap.NewNop()).Do(context.Background(), testTarget, retried.run)
	require.Error(t, err)
	require.Equal(t, 4, retried.attempts)

	fatal := &countingOp{fails: 10, err: formatErr}
	_, err = New(NewFixedPolicy(3, 0, false), zap.NewNop()).Do(context.Background(), testTarget, fatal.run)
	require.ErrorAs(t, err, &formatErr)
	var exhausted *harvest.RetriesExhaustedError
	require.False(t, errors.As(err, &exhausted))
	require.Equal(t, 1, fatal.attempts)
}

func TestOrchestratorStopsOnCancel(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	attempts := 0
	_, err := New(NewFixedPolicy(5, 0, true), zap.NewNop()).Do(ctx, testTarget, func(context.Context) ([]harvest.DayRecord, error) {
		attempts++
		cancel()
		return nil, errors.New("navigation aborted")
	})
	require.Error(t, err)
	require.Equal(t, 1, attempts)
}

func TestOrchestratorBackoffWaits(t *testing.T) {
	t.Parallel()

	op := &countingOp{fails: 1}
	o := New(NewFixedPolicy(1, 20*time.Millisecond, true), zap.NewNop())
	start := time.Now()
	_, err := o.Do(context.Background(), testTarget, op.run)
	require.NoError(t, err)
	require.GreaterOrEqual(t, time.Since(start), 20*time.Millisecond)
}

func TestFixedPolicy(t *testing.T) {
	t.Parallel()

	p := NewFixedPolicy(2, time.Second, true)
	require.False(t, p.ShouldRetry(nil, 1))
	require.True(t, p.ShouldRetry(errors.New("x"), 1))
	require.True(t, p.ShouldRetry(errors.New("x"), 2))
	require.False(t, p.ShouldRetry(errors.New("x"), 3))
	require.False(t, p.ShouldRetry(context.Canceled, 1))
	require.False(t, p.ShouldRetry(fmt.Errorf("open: %w", harvest.ErrSourceUnavailable), 1))
	require.Equal(t, time.Second, p.Backoff(1))

	clamped := NewFixedPolicy(-1, -time.Second, true)
	require.Equal(t, 0, clamped.MaxRetries())
	require.Zero(t, clamped.Backoff(1))
}
