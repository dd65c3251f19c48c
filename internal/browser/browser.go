// Package browser drives headless Chrome against the weather-history page.
// A single Browser is shared by every day fetch in a run; each fetch borrows
// its own tab and closes it before returning.
package browser

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/chromedp/cdproto/emulation"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/JakeFAU/weather-harvester/internal/harvest"
)

// Browser is the shared Chrome process plus the per-tab session controller.
type Browser struct {
	cfg             Config
	logger          *zap.Logger
	controller      *controller
	breaker         *sourceBreaker
	allocatorCancel context.CancelFunc
	browserCtx      context.Context
	browserCancel   context.CancelFunc
	sem             chan struct{}
	navLimiter      *rate.Limiter
	closeOnce       sync.Once
}

// New starts Chrome and returns the shared handle.
func New(cfg Config, logger *zap.Logger) (*Browser, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	cfg = cfg.withDefaults()
	if logger == nil {
		logger = zap.NewNop()
	}

	opts := chromedp.DefaultExecAllocatorOptions[:]
	opts = append(opts,
		chromedp.Flag("headless", cfg.Headless),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("hide-scrollbars", true),
	)
	if cfg.UserAgent != "" {
		opts = append(opts, chromedp.UserAgent(cfg.UserAgent))
	}
	allocatorCtx, allocatorCancel := chromedp.NewExecAllocator(context.Background(), opts...)
	browserCtx, browserCancel := chromedp.NewContext(allocatorCtx)
	if err := chromedp.Run(browserCtx); err != nil {
		browserCancel()
		allocatorCancel()
		return nil, fmt.Errorf("chromedp warmup: %w", err)
	}

	b := &Browser{
		cfg:             cfg,
		logger:          logger,
		controller:      newController(cfg, logger),
		breaker:         newSourceBreaker(cfg.BreakerFailures, cfg.BreakerCooldown, logger),
		allocatorCancel: allocatorCancel,
		browserCtx:      browserCtx,
		browserCancel:   browserCancel,
	}
	if cfg.MaxTabs > 0 {
		b.sem = make(chan struct{}, cfg.MaxTabs)
	}
	if cfg.NavigationQPS > 0 {
		b.navLimiter = rate.NewLimiter(rate.Limit(cfg.NavigationQPS), 1)
	}
	logger.Debug("browser started",
		zap.Bool("headless", cfg.Headless),
		zap.Int("max_tabs", cfg.MaxTabs),
		zap.Duration("poll_ceiling", cfg.PollCeiling()),
	)
	return b, nil
}

// Close shuts Chrome down. Only the first call has an effect.
func (b *Browser) Close() error {
	if b == nil {
		return nil
	}
	var err error
	b.closeOnce.Do(func() {
		if cerr := chromedp.Cancel(b.browserCtx); cerr != nil {
			err = fmt.Errorf("close browser: %w", cerr)
		}
		b.browserCancel()
		b.allocatorCancel()
	})
	return err
}

// FetchDay opens a tab, runs the page session for target and returns the
// raw results table. The tab is closed before FetchDay returns.
func (b *Browser) FetchDay(ctx context.Context, target harvest.CalendarTarget) (harvest.RawTable, error) {
	release, err := b.acquireTab(ctx)
	if err != nil {
		return harvest.RawTable{}, &harvest.DayError{Target: target, Err: err}
	}
	defer release()

	if err := b.waitNavigationBudget(ctx); err != nil {
		return harvest.RawTable{}, &harvest.DayError{Target: target, Err: err}
	}

	return b.breaker.do(target, func() (harvest.RawTable, error) {
		page, err := b.openPage(ctx)
		if err != nil {
			return harvest.RawTable{}, &harvest.DayError{Target: target, Err: err}
		}
		return b.controller.fetch(ctx, target, page)
	})
}

func (b *Browser) acquireTab(ctx context.Context) (func(), error) {
	if b.sem == nil {
		return func() {}, nil
	}
	select {
	case b.sem <- struct{}{}:
		return func() { <-b.sem }, nil
	case <-ctx.Done():
		return nil, fmt.Errorf("acquire tab slot: %w", ctx.Err())
	}
}

func (b *Browser) waitNavigationBudget(ctx context.Context) error {
	if b.navLimiter == nil {
		return nil
	}
	if err := b.navLimiter.Wait(ctx); err != nil {
		return fmt.Errorf("wait navigation limiter: %w", err)
	}
	return nil
}

// openPage allocates a new tab bounded by ctx and the navigation timeout.
func (b *Browser) openPage(ctx context.Context) (*chromePage, error) {
	tabCtx, cancelTab := chromedp.NewContext(b.browserCtx)
	var actions []chromedp.Action
	if b.cfg.UserAgent != "" {
		actions = append(actions, emulation.SetUserAgentOverride(b.cfg.UserAgent))
	}
	err := startTab(ctx, b.cfg.NavigationTimeout, cancelTab, func() error {
		return chromedp.Run(tabCtx, actions...)
	})
	if err != nil {
		return nil, err
	}
	return &chromePage{tabCtx: tabCtx, cancelTab: cancelTab}, nil
}

// startTab runs the first action batch on a new tab. The tab context must
// not carry a deadline, or the tab is torn down when it passes, so ctx and
// timeout are enforced by canceling the tab instead. The tab is canceled on
// any failure.
func startTab(ctx context.Context, timeout time.Duration, cancelTab context.CancelFunc, run func() error) error {
	openCtx, cancelOpen := context.WithTimeout(ctx, timeout)
	defer cancelOpen()

	stopForward := forwardCancel(openCtx, cancelTab)
	err := run()
	stopForward()

	if ctxErr := openCtx.Err(); ctxErr != nil {
		cancelTab()
		return fmt.Errorf("open tab: %w", ctxErr)
	}
	if err != nil {
		cancelTab()
		return fmt.Errorf("open tab: %w", err)
	}
	return nil
}

// Launcher starts a Browser per run.
type Launcher struct {
	cfg    Config
	logger *zap.Logger
}

// NewLauncher returns a Launcher for cfg.
func NewLauncher(cfg Config, logger *zap.Logger) *Launcher {
	return &Launcher{cfg: cfg, logger: logger}
}

// Launch starts Chrome. It satisfies harvest.Launcher.
func (l *Launcher) Launch(ctx context.Context) (harvest.Browser, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("launch browser: %w", err)
	}
	b, err := New(l.cfg, l.logger)
	if err != nil {
		return nil, err
	}
	return b, nil
}
