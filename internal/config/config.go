package config

import (
	"time"

	"github.com/ratelens/ratelens/internal/core"
)

// Config represents the complete application configuration
// following the Fulmen Forge Workhorse Standard three-layer pattern:
// Layer 1: Crucible defaults (config/ratelens/v0/ratelens-defaults.yaml)
// Layer 2: User overrides (~/.config/ratelens/ratelens/config.yaml)
// Layer 3: Environment variables and runtime overrides
type Config struct {
	Server  ServerConfig  `mapstructure:"server"`
	Store   StoreConfig   `mapstructure:"store"`
	Logging LoggingConfig `mapstructure:"logging"`
	Metrics MetricsConfig `mapstructure:"metrics"`
	Health  HealthConfig  `mapstructure:"health"`
	Debug   DebugConfig   `mapstructure:"debug"`
	Workers int           `mapstructure:"workers"`

	// Probing configures the health prober shared by all providers.
	Probing core.HealthCheckConfig `mapstructure:"probing"`

	// Defaults is the limiter configuration applied to providers that do not
	// override it.
	Defaults core.RateLimitConfig `mapstructure:"defaults"`

	// Providers maps provider ids to their endpoint and limiter settings.
	Providers map[string]ProviderConfig `mapstructure:"providers"`
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

// ProviderConfig describes one upstream provider: how to probe it and how to
// limit calls against it.
type ProviderConfig struct {
	// Type selects the probe adapter. Valid values: http, rdap.
	Type string `mapstructure:"type"`

	// BaseURL is the provider endpoint. For rdap providers this is the RDAP
	// server base.
	BaseURL string `mapstructure:"base_url"`

	HealthPath string        `mapstructure:"health_path"`
	InfoPath   string        `mapstructure:"info_path"`
	AuthToken  string        `mapstructure:"auth_token"`
	Timeout    time.Duration `mapstructure:"timeout"`

	// RateLimit overrides the global limiter defaults when set.
	RateLimit *core.RateLimitConfig `mapstructure:"rate_limit"`
}

// LoggingConfig contains logging configuration
// Supports progressive logging profiles per Fulmen Forge Workhorse Standard:
// - SIMPLE: Console output only, minimal configuration (CLI tools)
// - STRUCTURED: Structured sinks, correlation IDs (API services)
// - ENTERPRISE: Multiple sinks, middleware, throttling, policy enforcement (production)
type LoggingConfig struct {
	// Level controls the minimum log level
	// Valid values: trace, debug, info, warn, error
	Level string `mapstructure:"level"`

	// Profile selects the logging complexity level
	// Valid values: SIMPLE, STRUCTURED, ENTERPRISE
	// See: gofulmen/docs/crucible-go/standards/observability/logging.md
	Profile string `mapstructure:"profile"`
}

// MetricsConfig contains Prometheus metrics configuration
type MetricsConfig struct {
	// Enabled controls whether metrics are exposed
	Enabled bool `mapstructure:"enabled"`

	// Port is the dedicated metrics endpoint port (Prometheus format)
	// Metrics are also available at the main HTTP port in JSON format
	Port int `mapstructure:"port"`
}

// HealthConfig contains health endpoint configuration
type HealthConfig struct {
	// Enabled controls whether health endpoints are exposed
	Enabled bool `mapstructure:"enabled"`
}

// DebugConfig contains debug and profiling configuration
type DebugConfig struct {
	// Enabled controls whether debug mode is active
	Enabled bool `mapstructure:"enabled"`

	// PprofEnabled controls whether pprof endpoints are exposed
	// WARNING: Only enable in development/staging environments
	PprofEnabled bool `mapstructure:"pprof_enabled"`
}

// LimiterConfigFor resolves the effective limiter config for a provider id.
func (c *Config) LimiterConfigFor(id string) core.RateLimitConfig {
	if c == nil {
		return core.RateLimitConfig{}
	}
	if provider, ok := c.Providers[id]; ok && provider.RateLimit != nil {
		return *provider.RateLimit
	}
	return c.Defaults
}
