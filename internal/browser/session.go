package browser

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/weather-harvester/internal/harvest"
)

var errTitleNotSettled = errors.New("results title never reflected the query")

// pageDriver is one browser tab speaking the source page's markup.
type pageDriver interface {
	Navigate(ctx context.Context, url string) error
	WaitForm(ctx context.Context) error
	Submit(ctx context.Context, date string) error
	ResultTitle(ctx context.Context) (string, error)
	ReadTable(ctx context.Context) (harvest.RawTable, error)
	Close() error
}

// controller walks one page through navigate, await form, submit, poll and
// extract, closing it on every path.
type controller struct {
	cfg    Config
	logger *zap.Logger
	sleep  func(ctx context.Context, d time.Duration) error
}

func newController(cfg Config, logger *zap.Logger) *controller {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &controller{
		cfg:    cfg.withDefaults(),
		logger: logger,
		sleep:  sleepContext,
	}
}

// fetch runs the session for target on page and returns the raw table.
func (c *controller) fetch(ctx context.Context, target harvest.CalendarTarget, page pageDriver) (harvest.RawTable, error) {
	defer func() {
		if err := page.Close(); err != nil {
			c.logger.Debug("page close failed", zap.Stringer("target", target), zap.Error(err))
		}
	}()

	raw, err := c.run(ctx, target, page)
	if err != nil {
		return harvest.RawTable{}, &harvest.DayError{Target: target, Err: err}
	}
	return raw, nil
}

func (c *controller) run(ctx context.Context, target harvest.CalendarTarget, page pageDriver) (harvest.RawTable, error) {
	if err := c.navigate(ctx, target, page); err != nil {
		return harvest.RawTable{}, err
	}
	if err := c.awaitForm(ctx, target, page); err != nil {
		return harvest.RawTable{}, err
	}
	if err := page.Submit(ctx, target.Date(c.cfg.ReferenceYear)); err != nil {
		return harvest.RawTable{}, fmt.Errorf("submit query: %w", err)
	}
	if err := c.pollResult(ctx, target, page); err != nil {
		return harvest.RawTable{}, err
	}

	readCtx, cancel := context.WithTimeout(ctx, c.cfg.ResultTimeout)
	defer cancel()
	raw, err := page.ReadTable(readCtx)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
			return harvest.RawTable{}, &harvest.TimeoutError{Target: target, Stage: harvest.StageResult, Err: err}
		}
		return harvest.RawTable{}, fmt.Errorf("read results table: %w", err)
	}
	return raw, nil
}

func (c *controller) navigate(ctx context.Context, target harvest.CalendarTarget, page pageDriver) error {
	navCtx, cancel := context.WithTimeout(ctx, c.cfg.NavigationTimeout)
	defer cancel()
	if err := page.Navigate(navCtx, c.cfg.SourceURL); err != nil {
		return &harvest.NavigationError{Target: target, URL: c.cfg.SourceURL, Err: err}
	}
	return nil
}

func (c *controller) awaitForm(ctx context.Context, target harvest.CalendarTarget, page pageDriver) error {
	formCtx, cancel := context.WithTimeout(ctx, c.cfg.FormTimeout)
	defer cancel()
	if err := page.WaitForm(formCtx); err != nil {
		if ctx.Err() != nil {
			return fmt.Errorf("await date control: %w", ctx.Err())
		}
		return &harvest.TimeoutError{
			Target: target,
			Stage:  harvest.StageForm,
			Err:    fmt.Errorf("date control %s: %w", dateInputSelector, err),
		}
	}
	return nil
}

// pollResult waits until the results title names the requested day. The
// page keeps showing the previous query for a while after submit.
func (c *controller) pollResult(ctx context.Context, target harvest.CalendarTarget, page pageDriver) error {
	var last string
	for attempt := 1; attempt <= c.cfg.PollMaxAttempts; attempt++ {
		title, err := c.readTitle(ctx, page)
		switch {
		case ctx.Err() != nil:
			return fmt.Errorf("poll results title: %w", ctx.Err())
		case err != nil:
			c.logger.Debug("results title not ready",
				zap.Stringer("target", target), zap.Int("attempt", attempt), zap.Error(err))
		case titleShows(title, target):
			return nil
		default:
			last = title
			c.logger.Debug("results title stale",
				zap.Stringer("target", target), zap.Int("attempt", attempt), zap.String("title", title))
		}
		if attempt == c.cfg.PollMaxAttempts {
			break
		}
		if err := c.sleep(ctx, c.cfg.PollInterval); err != nil {
			return fmt.Errorf("poll results title: %w", err)
		}
	}
	return &harvest.TimeoutError{
		Target: target,
		Stage:  harvest.StagePoll,
		Err:    fmt.Errorf("%w after %d polls (last title %q)", errTitleNotSettled, c.cfg.PollMaxAttempts, last),
	}
}

func (c *controller) readTitle(ctx context.Context, page pageDriver) (string, error) {
	titleCtx, cancel := context.WithTimeout(ctx, c.cfg.ResultTimeout)
	defer cancel()
	title, err := page.ResultTitle(titleCtx)
	if err != nil {
		return "", fmt.Errorf("read results title: %w", err)
	}
	return title, nil
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
