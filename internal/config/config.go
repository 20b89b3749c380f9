package config

import (
	"time"

	"github.com/writify/writify/internal/ailink"
	"github.com/writify/writify/internal/gateway"
)

// Config is the complete application configuration. Values come from
// SetDefaults, then the optional YAML config file, then WRITIFY_* environment
// variables and command-line flags.
type Config struct {
	Server  ServerConfig  `mapstructure:"server"`
	Store   StoreConfig   `mapstructure:"store"`
	AILink  ailink.Config `mapstructure:"ailink"`
	Gateway GatewayConfig `mapstructure:"gateway"`
	Export  ExportConfig  `mapstructure:"export"`
	Logging LoggingConfig `mapstructure:"logging"`
	Metrics MetricsConfig `mapstructure:"metrics"`
	Health  HealthConfig  `mapstructure:"health"`
	Debug   DebugConfig   `mapstructure:"debug"`
}

// ServerConfig contains HTTP server configuration
type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	IdleTimeout     time.Duration `mapstructure:"idle_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// StoreConfig contains database configuration for libsql/Turso
type StoreConfig struct {
	Driver    string `mapstructure:"driver"`
	Path      string `mapstructure:"path"`
	URL       string `mapstructure:"url"`
	AuthToken string `mapstructure:"auth_token"`
}

// GatewayConfig holds the request limits applied in front of the AI provider.
type GatewayConfig struct {
	HourlyRequestLimit int           `mapstructure:"hourly_request_limit"`
	QuotaWindow        time.Duration `mapstructure:"quota_window"`
	MinRequestInterval time.Duration `mapstructure:"min_request_interval"`
	MaxRetries         int           `mapstructure:"max_retries"`
	RetryDelay         time.Duration `mapstructure:"retry_delay"`
	ProviderTimeout    time.Duration `mapstructure:"provider_timeout"`
	SafetyThreshold    string        `mapstructure:"safety_threshold"`

	// FallbackCooldown and ClearFallbackAfterSuccesses are off by default,
	// which keeps offline mode latched until it is reset explicitly.
	FallbackCooldown            time.Duration `mapstructure:"fallback_cooldown"`
	ClearFallbackAfterSuccesses int           `mapstructure:"clear_fallback_after_successes"`
}

// Policy converts the configured limits to a gateway policy.
func (g GatewayConfig) Policy() gateway.Policy {
	return gateway.Policy{
		HourlyRequestLimit:          g.HourlyRequestLimit,
		QuotaWindow:                 g.QuotaWindow,
		MinRequestInterval:          g.MinRequestInterval,
		MaxRetries:                  g.MaxRetries,
		RetryDelay:                  g.RetryDelay,
		ProviderTimeout:             g.ProviderTimeout,
		SafetyThreshold:             g.SafetyThreshold,
		FallbackCooldown:            g.FallbackCooldown,
		ClearFallbackAfterSuccesses: g.ClearFallbackAfterSuccesses,
	}
}

// ExportConfig controls where exported cover letters are written.
type ExportConfig struct {
	Dir string `mapstructure:"dir"`
}

// LoggingConfig contains logging configuration
// Supports progressive logging profiles per Fulmen Forge Workhorse Standard:
// - SIMPLE: Console output only, minimal configuration (CLI tools)
// - STRUCTURED: Structured sinks, correlation IDs (API services)
type LoggingConfig struct {
	// Level controls the minimum log level
	// Valid values: trace, debug, info, warn, error
	Level string `mapstructure:"level"`

	// Profile selects the logging complexity level
	Profile string `mapstructure:"profile"`
}

// MetricsConfig contains Prometheus metrics configuration
type MetricsConfig struct {
	// Enabled controls whether metrics are exposed
	Enabled bool `mapstructure:"enabled"`

	// Port is the dedicated metrics endpoint port (Prometheus format)
	Port int `mapstructure:"port"`
}

// HealthConfig contains health check configuration
type HealthConfig struct {
	Enabled bool `mapstructure:"enabled"`
}

// DebugConfig contains debug and profiling configuration
type DebugConfig struct {
	Enabled bool `mapstructure:"enabled"`

	// PprofEnabled controls whether pprof endpoints are exposed
	// WARNING: Only enable in development/staging environments
	PprofEnabled bool `mapstructure:"pprof_enabled"`
}
