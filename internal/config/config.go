// Package config defines service configuration and its loading hooks.
package config

import (
	"time"
)

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level" validate:"omitempty,oneof=debug info warn warning error DEBUG INFO WARN WARNING ERROR"`

	// LogFormat selects json or console output.
	LogFormat string `koanf:"log_format" validate:"oneof=json console"`

	// Addr configures the HTTP listen address, e.g. "0.0.0.0:8080".
	Addr string `koanf:"addr" validate:"required"`

	// HTTP server timeouts in milliseconds.
	ReadTimeoutMS       int `koanf:"read_timeout_ms" validate:"gte=0"`
	WriteTimeoutMS      int `koanf:"write_timeout_ms" validate:"gte=0"`
	IdleTimeoutMS       int `koanf:"idle_timeout_ms" validate:"gte=0"`
	ReadHeaderTimeoutMS int `koanf:"read_header_timeout_ms" validate:"gte=0"`
	ShutdownTimeoutMS   int `koanf:"shutdown_timeout_ms" validate:"gt=0"`

	// DefaultListLimit is used by GET /users when limit is omitted.
	DefaultListLimit int `koanf:"default_list_limit" validate:"gte=0,ltefield=MaxListLimit"`

	// MaxListLimit caps GET /users?limit.
	MaxListLimit int `koanf:"max_list_limit" validate:"gt=0"`

	// MaxBodyBytes caps request body size.
	MaxBodyBytes int64 `koanf:"max_body_bytes" validate:"gt=0"`

	// MetricsRefreshMS sets how often runtime gauges are refreshed.
	MetricsRefreshMS int `koanf:"metrics_refresh_ms" validate:"gt=0"`
}

// New creates a Config populated with defaults.
func New() *Config {
	return &Config{
		LogLevel:            "info",
		LogFormat:           "json",
		Addr:                "0.0.0.0:8080",
		ReadTimeoutMS:       10_000,
		WriteTimeoutMS:      10_000,
		IdleTimeoutMS:       60_000,
		ReadHeaderTimeoutMS: 5_000,
		ShutdownTimeoutMS:   30_000,
		DefaultListLimit:    10,
		MaxListLimit:        100,
		MaxBodyBytes:        1 << 20,
		MetricsRefreshMS:    10_000,
	}
}

// ReadTimeout returns ReadTimeoutMS as a duration.
func (c *Config) ReadTimeout() time.Duration { return ms(c.ReadTimeoutMS) }

// WriteTimeout returns WriteTimeoutMS as a duration.
func (c *Config) WriteTimeout() time.Duration { return ms(c.WriteTimeoutMS) }

// IdleTimeout returns IdleTimeoutMS as a duration.
func (c *Config) IdleTimeout() time.Duration { return ms(c.IdleTimeoutMS) }

// ReadHeaderTimeout returns ReadHeaderTimeoutMS as a duration.
func (c *Config) ReadHeaderTimeout() time.Duration { return ms(c.ReadHeaderTimeoutMS) }

// ShutdownTimeout returns ShutdownTimeoutMS as a duration.
func (c *Config) ShutdownTimeout() time.Duration { return ms(c.ShutdownTimeoutMS) }

// MetricsRefresh returns MetricsRefreshMS as a duration.
func (c *Config) MetricsRefresh() time.Duration { return ms(c.MetricsRefreshMS) }

func ms(v int) time.Duration {
	return time.Duration(v) * time.Millisecond
}
