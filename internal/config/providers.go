package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/ratelens/ratelens/internal/core"
)

// providersFile is the on-disk shape of a standalone providers file.
// Durations are parsed from Go duration strings.
type providersFile struct {
	Providers map[string]providerYAML `yaml:"providers"`
}

type providerYAML struct {
	Type       string         `yaml:"type"`
	BaseURL    string         `yaml:"base_url"`
	HealthPath string         `yaml:"health_path"`
	InfoPath   string         `yaml:"info_path"`
	AuthToken  string         `yaml:"auth_token"`
	Timeout    string         `yaml:"timeout"`
	RateLimit  *rateLimitYAML `yaml:"rate_limit"`
}

type rateLimitYAML struct {
	RequestsPerSecond      float64 `yaml:"requests_per_second"`
	BurstSize              int     `yaml:"burst_size"`
	QuotaPerDay            int     `yaml:"quota_per_day"`
	BackoffOnLimit         *bool   `yaml:"backoff_on_limit"`
	MaxBackoffDelay        string  `yaml:"max_backoff_delay"`
	EnableAdaptiveLimiting bool    `yaml:"enable_adaptive_limiting"`
}

// LoadProvidersFile reads a providers YAML file, as passed to --providers.
// The file carries only provider definitions; they replace any providers
// loaded through the layered config.
func LoadProvidersFile(path string) (map[string]ProviderConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read providers file: %w", err)
	}

	var file providersFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse providers file: %w", err)
	}
	if len(file.Providers) == 0 {
		return nil, fmt.Errorf("providers file %s defines no providers", path)
	}

	providers := make(map[string]ProviderConfig, len(file.Providers))
	for id, raw := range file.Providers {
		provider, err := raw.toConfig(id)
		if err != nil {
			return nil, err
		}
		providers[id] = provider
	}

	return providers, nil
}

func (p providerYAML) toConfig(id string) (ProviderConfig, error) {
	if strings.TrimSpace(id) == "" {
		return ProviderConfig{}, fmt.Errorf("provider id must not be empty")
	}

	switch p.Type {
	case "", "http", "rdap":
	default:
		return ProviderConfig{}, fmt.Errorf("provider %s: unknown type %q", id, p.Type)
	}
	if strings.TrimSpace(p.BaseURL) == "" {
		return ProviderConfig{}, fmt.Errorf("provider %s: base_url is required", id)
	}

	provider := ProviderConfig{
		Type:       p.Type,
		BaseURL:    p.BaseURL,
		HealthPath: p.HealthPath,
		InfoPath:   p.InfoPath,
		AuthToken:  p.AuthToken,
	}

	if strings.TrimSpace(p.Timeout) != "" {
		timeout, err := time.ParseDuration(p.Timeout)
		if err != nil {
			return ProviderConfig{}, fmt.Errorf("provider %s: invalid timeout: %w", id, err)
		}
		provider.Timeout = timeout
	}

	if p.RateLimit != nil {
		rateLimit, err := p.RateLimit.toConfig(id)
		if err != nil {
			return ProviderConfig{}, err
		}
		provider.RateLimit = &rateLimit
	}

	return provider, nil
}

func (r rateLimitYAML) toConfig(id string) (core.RateLimitConfig, error) {
	if r.RequestsPerSecond < 0 {
		return core.RateLimitConfig{}, fmt.Errorf("provider %s: requests_per_second must not be negative", id)
	}
	if r.BurstSize < 0 {
		return core.RateLimitConfig{}, fmt.Errorf("provider %s: burst_size must not be negative", id)
	}

	cfg := core.RateLimitConfig{
		RequestsPerSecond:      r.RequestsPerSecond,
		BurstSize:              r.BurstSize,
		QuotaPerDay:            r.QuotaPerDay,
		BackoffOnLimit:         true,
		EnableAdaptiveLimiting: r.EnableAdaptiveLimiting,
	}
	if r.BackoffOnLimit != nil {
		cfg.BackoffOnLimit = *r.BackoffOnLimit
	}
	if strings.TrimSpace(r.MaxBackoffDelay) != "" {
		delay, err := time.ParseDuration(r.MaxBackoffDelay)
		if err != nil {
			return core.RateLimitConfig{}, fmt.Errorf("provider %s: invalid max_backoff_delay: %w", id, err)
		}
		cfg.MaxBackoffDelay = delay
	}

	return cfg, nil
}
