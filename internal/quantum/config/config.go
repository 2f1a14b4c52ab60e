// Package config loads the YAML configuration surface for the
// reliable-sequenced delivery core, mirroring the shape of the
// teacher's per-service config packages.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v2"
)

// LogConfig mirrors the teacher's LogConfig shape.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// MetricsConfig mirrors the teacher's MetricsConfig shape.
type MetricsConfig struct {
	Enable bool   `yaml:"enable"`
	Host   string `yaml:"host"`
	Port   int    `yaml:"port"`
	Path   string `yaml:"path"`
}

// Config is the full configuration surface for a quantumcore endpoint.
type Config struct {
	// WindowSize bounds both the send and receive rings; 1-64.
	WindowSize uint32 `yaml:"window_size"`

	// MinimumResendTime and MaximumResendTime clamp the RTT-adaptive
	// resend timeout, in milliseconds.
	MinimumResendTime int `yaml:"minimum_resend_time_ms"`
	MaximumResendTime int `yaml:"maximum_resend_time_ms"`

	Log     LogConfig     `yaml:"log"`
	Metrics MetricsConfig `yaml:"metrics"`
}

const (
	defaultWindowSize        = 32
	defaultMinimumResendTime = 64
	defaultMaximumResendTime = 200
	maxWindowSize            = 64
)

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		WindowSize:        defaultWindowSize,
		MinimumResendTime: defaultMinimumResendTime,
		MaximumResendTime: defaultMaximumResendTime,
		Log: LogConfig{
			Level:  "info",
			Format: "console",
		},
		Metrics: MetricsConfig{
			Enable: false,
			Host:   "0.0.0.0",
			Port:   9090,
			Path:   "/metrics",
		},
	}
}

// Load reads and validates a YAML configuration file, starting from
// DefaultConfig and overlaying whatever the file specifies.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: failed to read %s: %w", path, err)
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: failed to parse %s: %w", path, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: invalid %s: %w", path, err)
	}

	return cfg, nil
}

// Validate checks the invariants spec.md §3 assumes the configuration
// surface already enforces.
func (c *Config) Validate() error {
	if c.WindowSize == 0 || c.WindowSize > maxWindowSize {
		return fmt.Errorf("window_size must be in [1, %d], got %d", maxWindowSize, c.WindowSize)
	}
	if c.MinimumResendTime <= 0 {
		return fmt.Errorf("minimum_resend_time_ms must be positive, got %d", c.MinimumResendTime)
	}
	if c.MaximumResendTime < c.MinimumResendTime {
		return fmt.Errorf("maximum_resend_time_ms (%d) must be >= minimum_resend_time_ms (%d)", c.MaximumResendTime, c.MinimumResendTime)
	}
	return nil
}
