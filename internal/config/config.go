package config

import (
	"fmt"
	"os"
	"time"

	"github.com/reugn/github-pin/internal/actions"
	"github.com/reugn/github-pin/internal/logging"
	"github.com/reugn/github-pin/internal/osutil"
	"gopkg.in/yaml.v3"
)

// DefaultConfigFileName is the default name of the configuration file.
const DefaultConfigFileName = ".github-pin.yaml"

// Config represents the github-pin configuration file structure.
type Config struct {
	Run     *RunConfig     `yaml:"run,omitempty"`
	Log     *LogConfig     `yaml:"log,omitempty"`
	Resolve *ResolveConfig `yaml:"resolve,omitempty"`
}

// Validate checks all configuration values for validity.
func (c *Config) Validate() error {
	if err := c.Run.Validate(); err != nil {
		return err
	}
	if err := c.Log.Validate(); err != nil {
		return err
	}
	if err := c.Resolve.Validate(); err != nil {
		return err
	}
	return nil
}

// RunConfig specifies general runtime settings.
type RunConfig struct {
	Timeout string `yaml:"timeout"` // HTTP timeout per GitHub request (e.g., "10s")
}

// Validate checks RunConfig for invalid values.
func (r *RunConfig) Validate() error {
	if r == nil || r.Timeout == "" {
		return nil
	}
	d, err := time.ParseDuration(r.Timeout)
	if err != nil {
		return fmt.Errorf("invalid timeout %q: %w", r.Timeout, err)
	}
	if d <= 0 {
		return fmt.Errorf("timeout must be positive, got %q", r.Timeout)
	}
	return nil
}

// LogConfig specifies logging settings.
type LogConfig struct {
	Level string `yaml:"level"` // debug, info, warn or error
}

// Validate checks LogConfig for invalid values.
func (l *LogConfig) Validate() error {
	if l == nil {
		return nil
	}
	_, err := logging.ParseLevel(l.Level)
	return err
}

// ResolveConfig specifies how versions are resolved and failures are reported.
type ResolveConfig struct {
	BaseURL    string `yaml:"base-url"`    // GitHub API base URL; empty for api.github.com
	Timezone   string `yaml:"timezone"`    // IANA zone for rate-limit reset times; "Local" by default
	TimeFormat string `yaml:"time-format"` // Go layout for rate-limit reset times
}

// Validate checks ResolveConfig for invalid values.
func (r *ResolveConfig) Validate() error {
	if r == nil || r.Timezone == "" {
		return nil
	}
	if _, err := time.LoadLocation(r.Timezone); err != nil {
		return fmt.Errorf("invalid timezone %q: %w", r.Timezone, err)
	}
	return nil
}

// GetTimeout returns the configured timeout duration.
// Returns actions.DefaultTimeout if not configured or invalid.
func (c *Config) GetTimeout() time.Duration {
	if c == nil || c.Run == nil || c.Run.Timeout == "" {
		return actions.DefaultTimeout
	}
	d, err := time.ParseDuration(c.Run.Timeout)
	if err != nil || d <= 0 {
		return actions.DefaultTimeout
	}
	return d
}

// GetLogLevel returns the configured log level, or logging.DefaultLevel.
func (c *Config) GetLogLevel() string {
	if c == nil || c.Log == nil || c.Log.Level == "" {
		return logging.DefaultLevel
	}
	return c.Log.Level
}

// GetBaseURL returns the configured GitHub API base URL.
func (c *Config) GetBaseURL() string {
	if c == nil || c.Resolve == nil {
		return ""
	}
	return c.Resolve.BaseURL
}

// GetFormatter returns the formatter for rate-limit reset times.
func (c *Config) GetFormatter() actions.Formatter {
	f := actions.Formatter{Location: time.Local, Layout: actions.DefaultTimeLayout}
	if c == nil || c.Resolve == nil {
		return f
	}
	if c.Resolve.Timezone != "" {
		if loc, err := time.LoadLocation(c.Resolve.Timezone); err == nil {
			f.Location = loc
		}
	}
	if c.Resolve.TimeFormat != "" {
		f.Layout = c.Resolve.TimeFormat
	}
	return f
}

// LoadConfig loads configuration from the specified file.
// Returns defaults if file doesn't exist.
func LoadConfig(filename string) (*Config, error) {
	if filename == "" {
		filename = DefaultConfigFileName
	}

	if !osutil.IsFile(filename) {
		return NewDefaultConfig(), nil
	}

	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config file: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	cfg.ensureDefaults()
	return &cfg, nil
}

// SaveConfig saves the configuration to the specified file.
func SaveConfig(cfg *Config, filename string) error {
	if filename == "" {
		filename = DefaultConfigFileName
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config file: %w", err)
	}

	return os.WriteFile(filename, data, 0600)
}

// NewDefaultConfig creates a new Config with default values.
func NewDefaultConfig() *Config {
	return &Config{
		Run:     &RunConfig{Timeout: actions.DefaultTimeout.String()},
		Log:     &LogConfig{Level: logging.DefaultLevel},
		Resolve: &ResolveConfig{Timezone: "Local", TimeFormat: actions.DefaultTimeLayout},
	}
}

// ensureDefaults initializes nil sections with default values.
func (c *Config) ensureDefaults() {
	defaults := NewDefaultConfig()
	if c.Run == nil {
		c.Run = defaults.Run
	}
	if c.Log == nil {
		c.Log = defaults.Log
	}
	if c.Resolve == nil {
		c.Resolve = defaults.Resolve
	}
}
