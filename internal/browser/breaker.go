package browser

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"

	"github.com/JakeFAU/weather-harvester/internal/harvest"
)

const defaultBreakerCooldown = time.Minute

// sourceBreaker trips after consecutive failures to reach the history page or
// its date control. Poll timeouts and malformed tables do not count: the site
// answered, it was just slow or odd.
type sourceBreaker struct {
	cb *gobreaker.CircuitBreaker
}

func newSourceBreaker(failures int, cooldown time.Duration, logger *zap.Logger) *sourceBreaker {
	if failures <= 0 {
		return nil
	}
	if cooldown <= 0 {
		cooldown = defaultBreakerCooldown
	}
	return &sourceBreaker{cb: gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "weather-source",
		MaxRequests: 1,
		Timeout:     cooldown,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= uint32(failures)
		},
		IsSuccessful: func(err error) bool {
			return !sourceUnreachable(err)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("source breaker state change",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
		},
	})}
}

// do runs fetch through the breaker. A nil breaker calls fetch directly.
func (s *sourceBreaker) do(target harvest.CalendarTarget, fetch func() (harvest.RawTable, error)) (harvest.RawTable, error) {
	if s == nil {
		return fetch()
	}
	out, err := s.cb.Execute(func() (interface{}, error) {
		return fetch()
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return harvest.RawTable{}, &harvest.DayError{Target: target, Err: fmt.Errorf("%w: %w", harvest.ErrSourceUnavailable, err)}
	}
	if err != nil {
		return harvest.RawTable{}, err
	}
	return out.(harvest.RawTable), nil
}

func sourceUnreachable(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) {
		return false
	}
	var navErr *harvest.NavigationError
	if errors.As(err, &navErr) {
		return true
	}
	var timeoutErr *harvest.TimeoutError
	return errors.As(err, &timeoutErr) && timeoutErr.Stage == harvest.StageForm
}
