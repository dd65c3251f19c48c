package browser

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/JakeFAU/weather-harvester/internal/harvest"
)

var breakerTarget = harvest.CalendarTarget{Month: 6, Day: 15}

func navFailure() (harvest.RawTable, error) {
	return harvest.RawTable{}, &harvest.NavigationError{
		Target: breakerTarget,
		URL:    DefaultSourceURL,
		Err:    errors.New("net::ERR_NAME_NOT_RESOLVED"),
	}
}

func TestSourceBreakerDisabled(t *testing.T) {
	t.Parallel()

	b := newSourceBreaker(0, time.Minute, zap.NewNop())
	require.Nil(t, b)

	for range 5 {
		_, err := b.do(breakerTarget, navFailure)
		var navErr *harvest.NavigationError
		require.ErrorAs(t, err, &navErr)
	}
}

func TestSourceBreakerOpensAfterConsecutiveFailures(t *testing.T) {
	t.Parallel()

	b := newSourceBreaker(2, time.Hour, zap.NewNop())
	calls := 0
	fetch := func() (harvest.RawTable, error) {
		calls++
		return navFailure()
	}

	for range 2 {
		_, err := b.do(breakerTarget, fetch)
		var navErr *harvest.NavigationError
		require.ErrorAs(t, err, &navErr)
	}

	_, err := b.do(breakerTarget, fetch)
	require.ErrorIs(t, err, harvest.ErrSourceUnavailable)
	var dayErr *harvest.DayError
	require.ErrorAs(t, err, &dayErr)
	assert.Equal(t, breakerTarget, dayErr.Target)
	assert.Equal(t, 2, calls)
}

func TestSourceBreakerIgnoresSlowResults(t *testing.T) {
	t.Parallel()

	b := newSourceBreaker(1, time.Hour, zap.NewNop())
	pollTimeout := func() (harvest.RawTable, error) {
		return harvest.RawTable{}, &harvest.TimeoutError{Target: breakerTarget, Stage: harvest.StagePoll, Err: context.DeadlineExceeded}
	}
	for range 3 {
		_, err := b.do(breakerTarget, pollTimeout)
		require.NotErrorIs(t, err, harvest.ErrSourceUnavailable)
	}

	want := harvest.RawTable{Columns: []string{"Time", "Weather"}, Cells: []string{"2021", "Sunny"}}
	got, err := b.do(breakerTarget, func() (harvest.RawTable, error) { return want, nil })
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestSourceBreakerHalfOpenProbe(t *testing.T) {
	t.Parallel()

	b := newSourceBreaker(1, 20*time.Millisecond, zap.NewNop())
	_, err := b.do(breakerTarget, navFailure)
	require.Error(t, err)
	_, err = b.do(breakerTarget, navFailure)
	require.ErrorIs(t, err, harvest.ErrSourceUnavailable)

	time.Sleep(40 * time.Millisecond)
	_, err = b.do(breakerTarget, func() (harvest.RawTable, error) { return harvest.RawTable{}, nil })
	require.NoError(t, err)
}

func TestSourceUnreachable(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"navigation", &harvest.NavigationError{Err: errors.New("dns")}, true},
		{"form timeout", &harvest.TimeoutError{Stage: harvest.StageForm, Err: context.DeadlineExceeded}, true},
		{"poll timeout", &harvest.TimeoutError{Stage: harvest.StagePoll}, false},
		{"canceled navigation", &harvest.NavigationError{Err: context.Canceled}, false},
		{"wrapped", fmt.Errorf("day: %w", &harvest.NavigationError{Err: errors.New("reset")}), true},
		{"other", errors.New("table missing"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, sourceUnreachable(tt.err))
		})
	}
}
