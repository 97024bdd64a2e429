// Package provider defines the probe capability consumed by the health
// prober, plus adapters that implement it for common provider kinds.
package provider

import (
	"context"
	"time"
)

// CheckStatus is the outcome a provider reports for its own health check.
type CheckStatus string

const (
	// StatusOK means the provider answered and accepted our credentials.
	StatusOK CheckStatus = "ok"

	// StatusAuthFailed means the provider answered but rejected credentials.
	StatusAuthFailed CheckStatus = "auth_failed"

	// StatusEndpointMissing means the provider answered but the health
	// endpoint does not exist.
	StatusEndpointMissing CheckStatus = "endpoint_missing"

	// StatusUnreachable means the provider could not be reached at all.
	StatusUnreachable CheckStatus = "unreachable"
)

// CheckResult is what a provider's own health check reports.
type CheckResult struct {
	Status       CheckStatus
	ResponseTime time.Duration
	Message      string
}

// Info describes a provider's service metadata.
type Info struct {
	Version      string
	Capabilities []string
}

// Probeable is the capability a provider must expose to be health-monitored.
// Any provider implementation satisfies it structurally; the rate limiter
// consumes no provider capability at all.
type Probeable interface {
	// HealthCheck probes the provider once. Implementations should honor the
	// context deadline; the prober races them against its own timeout anyway.
	HealthCheck(ctx context.Context) (*CheckResult, error)

	// ProviderInfo returns service metadata attached to detailed probes.
	ProviderInfo(ctx context.Context) (*Info, error)
}
