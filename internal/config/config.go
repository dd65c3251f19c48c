// Package config loads and validates harvester configuration via Viper.
package config

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"

	"github.com/JakeFAU/weather-harvester/internal/browser"
	"github.com/JakeFAU/weather-harvester/internal/cache"
	"github.com/JakeFAU/weather-harvester/internal/harvest"
	"github.com/JakeFAU/weather-harvester/internal/retry"
)

// Config captures all harvester configuration knobs loaded via Viper.
type Config struct {
	Source  SourceConfig  `mapstructure:"source"`
	Harvest HarvestConfig `mapstructure:"harvest"`
	Browser BrowserConfig `mapstructure:"browser"`
	Retry   RetryConfig   `mapstructure:"retry"`
	Cache   CacheConfig   `mapstructure:"cache"`
	Server  ServerConfig  `mapstructure:"server"`
	Logging LoggingConfig `mapstructure:"logging"`
}

// SourceConfig identifies the history page and the year typed into its form.
type SourceConfig struct {
	URL           string `mapstructure:"url" validate:"required,url"`
	ReferenceYear int    `mapstructure:"reference_year" validate:"gt=0"`
}

// HarvestConfig selects the calendar range.
type HarvestConfig struct {
	Months []int `mapstructure:"months" validate:"required,min=1,dive,min=1,max=12"`
}

// BrowserConfig configures Chrome and the page session bounds.
type BrowserConfig struct {
	Headless          bool          `mapstructure:"headless"`
	UserAgent         string        `mapstructure:"user_agent"`
	NavigationTimeout time.Duration `mapstructure:"navigation_timeout" validate:"gt=0"`
	FormTimeout       time.Duration `mapstructure:"form_timeout" validate:"gt=0"`
	ResultTimeout     time.Duration `mapstructure:"result_timeout" validate:"gte=0"`
	PollInterval      time.Duration `mapstructure:"poll_interval" validate:"gt=0"`
	PollMaxAttempts   int           `mapstructure:"poll_max_attempts" validate:"gt=0"`
	MaxTabs           int           `mapstructure:"max_tabs" validate:"gte=0"`
	NavigationQPS     float64       `mapstructure:"navigation_qps" validate:"gte=0"`
	BreakerFailures   int           `mapstructure:"breaker_failures" validate:"gte=0"`
	BreakerCooldown   time.Duration `mapstructure:"breaker_cooldown" validate:"gte=0"`
}

// RetryConfig controls the per-day retry budget.
type RetryConfig struct {
	MaxRetries        int           `mapstructure:"max_retries" validate:"gte=0"`
	Backoff           time.Duration `mapstructure:"backoff" validate:"gte=0"`
	RetryFormatErrors bool          `mapstructure:"retry_format_errors"`
}

// CacheConfig locates the cache directory and the optional GCS mirror.
type CacheConfig struct {
	cache.Config    `mapstructure:",squash"`
	cache.GCSConfig `mapstructure:",squash"`
}

// ServerConfig controls the optional status server. Port 0 disables it.
type ServerConfig struct {
	Port int `mapstructure:"port" validate:"gte=0,lte=65535"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool   `mapstructure:"development"`
	Level       string `mapstructure:"level" validate:"omitempty,oneof=debug info warn error dpanic panic fatal"`
}

var validate = newValidator()

// newValidator reports fields by their config key rather than Go name.
func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name, _, _ := strings.Cut(field.Tag.Get("mapstructure"), ",")
		return name
	})
	return v
}

// Load builds a Config from disk/environment. With an empty path it looks
// for harvester.{yaml,json,toml} in the working directory and then in
// $HOME/.harvester, and runs on defaults when neither exists.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("HARVESTER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("harvester")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.harvester")
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("source.url", browser.DefaultSourceURL)
	v.SetDefault("source.reference_year", harvest.ReferenceYear)
	v.SetDefault("harvest.months", []int{5, 6})
	v.SetDefault("browser.headless", true)
	v.SetDefault("browser.user_agent", "")
	v.SetDefault("browser.navigation_timeout", 45*time.Second)
	v.SetDefault("browser.form_timeout", 30*time.Second)
	v.SetDefault("browser.result_timeout", 10*time.Second)
	v.SetDefault("browser.poll_interval", time.Second)
	v.SetDefault("browser.poll_max_attempts", 60)
	v.SetDefault("browser.max_tabs", 0)
	v.SetDefault("browser.navigation_qps", 0)
	v.SetDefault("browser.breaker_failures", 0)
	v.SetDefault("browser.breaker_cooldown", time.Minute)
	v.SetDefault("retry.max_retries", retry.DefaultMaxRetries)
	v.SetDefault("retry.backoff", time.Duration(0))
	v.SetDefault("retry.retry_format_errors", true)
	v.SetDefault("cache.dir", cache.DefaultDir)
	v.SetDefault("cache.gcs_bucket", "")
	v.SetDefault("cache.gcs_prefix", "")
	v.SetDefault("server.port", 0)
	v.SetDefault("logging.development", true)
	v.SetDefault("logging.level", "")
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var fieldErrs validator.ValidationErrors
		if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
			return fieldError(fieldErrs[0])
		}
		return fmt.Errorf("validate config: %w", err)
	}
	if _, err := c.Targets(); err != nil {
		return fmt.Errorf("harvest.months: %w", err)
	}
	if strings.TrimSpace(c.Cache.Dir) == "" {
		return fmt.Errorf("cache.dir is required")
	}
	if c.Cache.Prefix != "" && c.Cache.Bucket == "" {
		return fmt.Errorf("cache.gcs_bucket must be set when cache.gcs_prefix is")
	}
	return nil
}

// fieldError renders a validation failure as "<config key> failed <rule>".
func fieldError(fe validator.FieldError) error {
	_, key, _ := strings.Cut(fe.Namespace(), ".")
	rule := fe.Tag()
	if fe.Param() != "" {
		rule += "=" + fe.Param()
	}
	return fmt.Errorf("%s failed %s (got %v)", key, rule, fe.Value())
}

// Targets enumerates the calendar targets for the configured months.
func (c Config) Targets() ([]harvest.CalendarTarget, error) {
	return harvest.TargetsFor(c.Source.ReferenceYear, c.Harvest.Months)
}

// BrowserSettings converts the browser and source sections for browser.New.
func (c Config) BrowserSettings() browser.Config {
	return browser.Config{
		SourceURL:         c.Source.URL,
		ReferenceYear:     c.Source.ReferenceYear,
		Headless:          c.Browser.Headless,
		UserAgent:         c.Browser.UserAgent,
		NavigationTimeout: c.Browser.NavigationTimeout,
		FormTimeout:       c.Browser.FormTimeout,
		ResultTimeout:     c.Browser.ResultTimeout,
		PollInterval:      c.Browser.PollInterval,
		PollMaxAttempts:   c.Browser.PollMaxAttempts,
		MaxTabs:           c.Browser.MaxTabs,
		NavigationQPS:     c.Browser.NavigationQPS,
		BreakerFailures:   c.Browser.BreakerFailures,
		BreakerCooldown:   c.Browser.BreakerCooldown,
	}
}

// RetryPolicy builds the per-day retry policy.
func (c Config) RetryPolicy() *retry.FixedPolicy {
	return retry.NewFixedPolicy(c.Retry.MaxRetries, c.Retry.Backoff, c.Retry.RetryFormatErrors)
}

// MirrorEnabled reports whether cache files are copied to GCS.
func (c Config) MirrorEnabled() bool {
	return strings.TrimSpace(c.Cache.Bucket) != ""
}
