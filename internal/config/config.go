// File: internal/config/config.go
package config

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config is the root configuration for a promptpilot process.
type Config struct {
	Logger       LoggerConfig                 `mapstructure:"logger" yaml:"logger"`
	Browser      BrowserConfig                `mapstructure:"browser" yaml:"browser"`
	API          APIConfig                    `mapstructure:"api" yaml:"api"`
	Environment  string                       `mapstructure:"environment" yaml:"environment"`
	Environments map[string]EnvironmentConfig `mapstructure:"environments" yaml:"environments"`
	Healing      HealingConfig                `mapstructure:"healing" yaml:"healing"`
	Runner       RunnerConfig                 `mapstructure:"runner" yaml:"runner"`
	Report       ReportConfig                 `mapstructure:"report" yaml:"report"`
	Database     DatabaseConfig               `mapstructure:"database" yaml:"database"`
}

// -- Logger --

// LoggerConfig holds all the configuration for the logger.
type LoggerConfig struct {
	Level       string      `mapstructure:"level" yaml:"level"`
	Format      string      `mapstructure:"format" yaml:"format"`
	AddSource   bool        `mapstructure:"add_source" yaml:"add_source"`
	ServiceName string      `mapstructure:"service_name" yaml:"service_name"`
	LogFile     string      `mapstructure:"log_file" yaml:"log_file"`
	MaxSize     int         `mapstructure:"max_size" yaml:"max_size"`
	MaxBackups  int         `mapstructure:"max_backups" yaml:"max_backups"`
	MaxAge      int         `mapstructure:"max_age" yaml:"max_age"`
	Compress    bool        `mapstructure:"compress" yaml:"compress"`
	Colors      ColorConfig `mapstructure:"colors" yaml:"colors"`
}

// ColorConfig maps log levels to terminal color names.
type ColorConfig struct {
	Debug  string `mapstructure:"debug" yaml:"debug"`
	Info   string `mapstructure:"info" yaml:"info"`
	Warn   string `mapstructure:"warn" yaml:"warn"`
	Error  string `mapstructure:"error" yaml:"error"`
	DPanic string `mapstructure:"dpanic" yaml:"dpanic"`
	Panic  string `mapstructure:"panic" yaml:"panic"`
	Fatal  string `mapstructure:"fatal" yaml:"fatal"`
}

// -- Browser --

// BrowserConfig controls the Chrome instance driven for UI steps.
type BrowserConfig struct {
	Headless          bool           `mapstructure:"headless" yaml:"headless"`
	SlowMo            time.Duration  `mapstructure:"slow_mo" yaml:"slow_mo"`
	ActionTimeout     time.Duration  `mapstructure:"action_timeout" yaml:"action_timeout"`
	NavigationTimeout time.Duration  `mapstructure:"navigation_timeout" yaml:"navigation_timeout"`
	IgnoreTLSErrors   bool           `mapstructure:"ignore_tls_errors" yaml:"ignore_tls_errors"`
	Viewport          ViewportConfig `mapstructure:"viewport" yaml:"viewport"`
	Args              []string       `mapstructure:"args" yaml:"args"`
	ScreenshotDir     string         `mapstructure:"screenshot_dir" yaml:"screenshot_dir"`
}

// ViewportConfig is the emulated window size of each tab.
type ViewportConfig struct {
	Width  int64 `mapstructure:"width" yaml:"width"`
	Height int64 `mapstructure:"height" yaml:"height"`
}

// -- API --

// APIConfig configures the HTTP client used by API steps.
type APIConfig struct {
	Timeout            time.Duration     `mapstructure:"timeout" yaml:"timeout"`
	RateLimit          float64           `mapstructure:"rate_limit" yaml:"rate_limit"`
	Burst              int               `mapstructure:"burst" yaml:"burst"`
	Headers            map[string]string `mapstructure:"headers" yaml:"headers"`
	HTTP2              bool              `mapstructure:"http2" yaml:"http2"`
	InsecureSkipVerify bool              `mapstructure:"insecure_skip_verify" yaml:"insecure_skip_verify"`
}

// -- Environments --

// EnvironmentConfig describes one application under test.
type EnvironmentConfig struct {
	BaseURL    string        `mapstructure:"base_url" yaml:"base_url"`
	APIBaseURL string        `mapstructure:"api_base_url" yaml:"api_base_url"`
	Timeout    time.Duration `mapstructure:"timeout" yaml:"timeout"`
	Headless   *bool         `mapstructure:"headless" yaml:"headless"`
	SlowMo     time.Duration `mapstructure:"slow_mo" yaml:"slow_mo"`
}

// -- Healing --

// HealingConfig controls the fallback locator engine. The maxima are the
// upper acceptance bounds for the partial attribute and loosening strategies.
type HealingConfig struct {
	Enabled             bool `mapstructure:"enabled" yaml:"enabled"`
	PartialAttributeMax int  `mapstructure:"partial_attribute_max" yaml:"partial_attribute_max"`
	LooseningMax        int  `mapstructure:"loosening_max" yaml:"loosening_max"`
}

// -- Runner --

type RunnerConfig struct {
	Parallel      int  `mapstructure:"parallel" yaml:"parallel"`
	ContinueSuite bool `mapstructure:"continue_suite" yaml:"continue_suite"`
}

// -- Report --

type ReportConfig struct {
	Format string `mapstructure:"format" yaml:"format"`
	Output string `mapstructure:"output" yaml:"output"`
}

// -- Database --

// DatabaseConfig holds the PostgreSQL connection string. An empty URL disables persistence.
type DatabaseConfig struct {
	URL string `mapstructure:"url" yaml:"url"`
}

// NewDefaultConfig returns a Config populated with the defaults from SetDefaults.
func NewDefaultConfig() *Config {
	v := viper.New()
	SetDefaults(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		// Defaults are static; this only fires on a programming error.
		panic(fmt.Sprintf("failed to unmarshal default config: %v", err))
	}
	return &cfg
}

// SetDefaults initializes default values for various configuration parameters.
func SetDefaults(v *viper.Viper) {
	// -- Logger --
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "console")
	v.SetDefault("logger.add_source", false)
	v.SetDefault("logger.service_name", "promptpilot")
	v.SetDefault("logger.log_file", "promptpilot.log")
	v.SetDefault("logger.max_size", 100)
	v.SetDefault("logger.max_backups", 5)
	v.SetDefault("logger.max_age", 30)
	v.SetDefault("logger.compress", true)
	v.SetDefault("logger.colors.debug", "cyan")
	v.SetDefault("logger.colors.info", "green")
	v.SetDefault("logger.colors.warn", "yellow")
	v.SetDefault("logger.colors.error", "red")
	v.SetDefault("logger.colors.dpanic", "magenta")
	v.SetDefault("logger.colors.panic", "magenta")
	v.SetDefault("logger.colors.fatal", "magenta")

	// -- Browser --
	v.SetDefault("browser.headless", true)
	v.SetDefault("browser.slow_mo", "0s")
	v.SetDefault("browser.action_timeout", "10s")
	v.SetDefault("browser.navigation_timeout", "30s")
	v.SetDefault("browser.ignore_tls_errors", false)
	v.SetDefault("browser.viewport.width", 1280)
	v.SetDefault("browser.viewport.height", 720)
	v.SetDefault("browser.screenshot_dir", "test-results")

	// -- API --
	v.SetDefault("api.timeout", "30s")
	v.SetDefault("api.rate_limit", 0)
	v.SetDefault("api.burst", 1)
	v.SetDefault("api.http2", true)
	v.SetDefault("api.insecure_skip_verify", false)

	// -- Environments --
	v.SetDefault("environment", "parabank")
	v.SetDefault("environments", map[string]any{
		"parabank": map[string]any{
			"base_url":     "https://parabank.parasoft.com/parabank",
			"api_base_url": "https://parabank.parasoft.com/parabank/services/bank",
			"timeout":      "30s",
			"slow_mo":      "500ms",
		},
		"contactlist": map[string]any{
			"base_url":     "https://thinking-tester-contact-list.herokuapp.com",
			"api_base_url": "https://thinking-tester-contact-list.herokuapp.com",
			"timeout":      "30s",
			"slow_mo":      "500ms",
		},
	})

	// -- Healing --
	v.SetDefault("healing.enabled", false)
	v.SetDefault("healing.partial_attribute_max", 5)
	v.SetDefault("healing.loosening_max", 10)

	// -- Runner --
	v.SetDefault("runner.parallel", 1)
	v.SetDefault("runner.continue_suite", false)

	// -- Report --
	v.SetDefault("report.format", "text")
	v.SetDefault("report.output", "stdout")
}

// NewConfigFromViper unmarshals and validates the configuration held by v.
// TEST_ENV, when set, selects the environment profile unless a flag bound to
// "environment" was given.
func NewConfigFromViper(v *viper.Viper) (*Config, error) {
	var cfg Config

	_ = v.BindEnv("database.url", "PROMPTPILOT_DATABASE_URL", "DATABASE_URL")
	_ = v.BindEnv("environment", "PROMPTPILOT_ENVIRONMENT", "TEST_ENV")

	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// Validate checks the configuration for required fields and sane values.
func (c *Config) Validate() error {
	if c.Runner.Parallel <= 0 {
		return fmt.Errorf("runner.parallel must be a positive integer")
	}
	if c.Healing.PartialAttributeMax < 1 {
		return fmt.Errorf("healing.partial_attribute_max must be at least 1")
	}
	if c.Healing.LooseningMax < 1 {
		return fmt.Errorf("healing.loosening_max must be at least 1")
	}
	if c.API.RateLimit < 0 {
		return fmt.Errorf("api.rate_limit must not be negative")
	}
	switch strings.ToLower(c.Report.Format) {
	case "text", "json", "junit":
	default:
		return fmt.Errorf("report.format %q is not supported (text, json, junit)", c.Report.Format)
	}
	if _, err := c.ActiveEnvironment(); err != nil {
		return err
	}
	return nil
}

// ActiveEnvironment returns the profile named by Environment.
func (c *Config) ActiveEnvironment() (EnvironmentConfig, error) {
	env, ok := c.Environments[c.Environment]
	if !ok {
		names := make([]string, 0, len(c.Environments))
		for name := range c.Environments {
			names = append(names, name)
		}
		sort.Strings(names)
		return EnvironmentConfig{}, fmt.Errorf("unknown environment %q (available: %s)", c.Environment, strings.Join(names, ", "))
	}
	return env, nil
}

// EffectiveBrowser merges the active environment's overrides into the browser settings.
func (c *Config) EffectiveBrowser() BrowserConfig {
	b := c.Browser
	env, err := c.ActiveEnvironment()
	if err != nil {
		return b
	}
	if env.Headless != nil {
		b.Headless = *env.Headless
	}
	if env.SlowMo > 0 {
		b.SlowMo = env.SlowMo
	}
	if env.Timeout > 0 {
		b.NavigationTimeout = env.Timeout
	}
	return b
}
