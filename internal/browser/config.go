package browser

import (
	"fmt"
	"time"

	"github.com/JakeFAU/weather-harvester/internal/harvest"
)

// DefaultSourceURL is the weather-history page every session drives.
const DefaultSourceURL = "https://www.worldweatheronline.com/yeovilton-weather-history/somerset/gb.aspx"

const (
	defaultNavigationTimeout = 45 * time.Second
	defaultFormTimeout       = 30 * time.Second
	defaultResultTimeout     = 10 * time.Second
	defaultPollInterval      = time.Second
	defaultPollMaxAttempts   = 60
)

// Config controls the shared browser and its page sessions.
type Config struct {
	// SourceURL is the history page loaded by every session.
	SourceURL string
	// ReferenceYear is written into the date control with the target month/day.
	ReferenceYear int
	// Headless runs Chrome without a window.
	Headless bool
	// UserAgent optionally overrides Chrome's user agent.
	UserAgent string
	// NavigationTimeout bounds the page load.
	NavigationTimeout time.Duration
	// FormTimeout bounds the wait for the date control.
	FormTimeout time.Duration
	// ResultTimeout bounds each wait for the results title and the table read.
	ResultTimeout time.Duration
	// PollInterval is the pause between results-title checks.
	PollInterval time.Duration
	// PollMaxAttempts caps the results-title checks before a TimeoutError.
	PollMaxAttempts int
	// MaxTabs caps concurrently open tabs; 0 leaves them unbounded.
	MaxTabs int
	// NavigationQPS throttles page loads; 0 leaves them unthrottled.
	NavigationQPS float64
	// BreakerFailures is the run of consecutive unreachable-source failures
	// that opens the breaker; 0 disables it.
	BreakerFailures int
	// BreakerCooldown is how long the breaker stays open before a probe.
	BreakerCooldown time.Duration
}

func (c Config) withDefaults() Config {
	if c.SourceURL == "" {
		c.SourceURL = DefaultSourceURL
	}
	if c.ReferenceYear <= 0 {
		c.ReferenceYear = harvest.ReferenceYear
	}
	if c.NavigationTimeout <= 0 {
		c.NavigationTimeout = defaultNavigationTimeout
	}
	if c.FormTimeout <= 0 {
		c.FormTimeout = defaultFormTimeout
	}
	if c.ResultTimeout <= 0 {
		c.ResultTimeout = defaultResultTimeout
	}
	if c.PollInterval <= 0 {
		c.PollInterval = defaultPollInterval
	}
	if c.PollMaxAttempts <= 0 {
		c.PollMaxAttempts = defaultPollMaxAttempts
	}
	return c
}

// Validate checks for obviously bad configuration combinations.
func (c Config) Validate() error {
	if c.MaxTabs < 0 {
		return fmt.Errorf("max tabs must be >= 0")
	}
	if c.NavigationQPS < 0 {
		return fmt.Errorf("navigation qps must be >= 0")
	}
	if c.PollMaxAttempts < 0 {
		return fmt.Errorf("poll max attempts must be >= 0")
	}
	if c.BreakerFailures < 0 {
		return fmt.Errorf("breaker failures must be >= 0")
	}
	return nil
}

// PollCeiling is the total time PollResult may spend across all its checks.
func (c Config) PollCeiling() time.Duration {
	c = c.withDefaults()
	return time.Duration(c.PollMaxAttempts) * c.PollInterval
}
