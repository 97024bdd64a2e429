package engine

import (
	"context"
	"fmt"
	"net/http"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/ratelens/ratelens/internal/config"
	"github.com/ratelens/ratelens/internal/core"
	"github.com/ratelens/ratelens/internal/core/health"
	"github.com/ratelens/ratelens/internal/core/ratelimit"
	"github.com/ratelens/ratelens/internal/core/store"
	"github.com/ratelens/ratelens/internal/metrics"
	"github.com/ratelens/ratelens/internal/provider"
	"github.com/ratelens/ratelens/internal/provider/httpprobe"
	"github.com/ratelens/ratelens/internal/provider/rdapprobe"
)

// AuditStore records admission and probe events. The libsql store satisfies
// it; a nil store disables auditing.
type AuditStore interface {
	AppendEvent(ctx context.Context, event *store.Event) error
	RecentEvents(ctx context.Context, provider string, limit int) ([]store.Event, error)
}

// Service wires the admission coordinator, the health prober, and the audit
// store behind the operations the CLI and HTTP surface expose.
type Service struct {
	coordinator *ratelimit.Coordinator
	prober      *health.Prober
	audit       AuditStore
	logger      health.Logger
	clock       func() time.Time
}

// Options configures a Service beyond the provider config.
type Options struct {
	// Audit receives admission and probe events. Nil disables auditing.
	Audit AuditStore

	// Logger receives non-fatal wiring and audit failures. Nil discards them.
	Logger health.Logger
}

// New builds a Service from configuration. Providers are registered in
// lexical id order so selection policies behave deterministically across
// restarts.
func New(cfg *config.Config, opts Options) (*Service, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}

	s := &Service{
		coordinator: ratelimit.NewCoordinator(cfg.Defaults),
		prober:      health.NewProber(cfg.Probing, opts.Logger),
		audit:       opts.Audit,
		logger:      opts.Logger,
		clock:       func() time.Time { return time.Now() },
	}

	ids := make([]string, 0, len(cfg.Providers))
	for id := range cfg.Providers {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	for _, id := range ids {
		probeable, err := probeFor(id, cfg.Providers[id])
		if err != nil {
			return nil, err
		}
		s.coordinator.AddProvider(id, cfg.LimiterConfigFor(id))
		s.prober.AddProvider(id, probeable)
	}

	return s, nil
}

// probeFor builds the probe adapter for one configured provider.
func probeFor(id string, cfg config.ProviderConfig) (provider.Probeable, error) {
	switch cfg.Type {
	case "", "http":
		probe := &httpprobe.Probe{
			BaseURL:    cfg.BaseURL,
			HealthPath: cfg.HealthPath,
			InfoPath:   cfg.InfoPath,
			AuthToken:  cfg.AuthToken,
		}
		if cfg.Timeout > 0 {
			probe.Client = &http.Client{Timeout: cfg.Timeout}
		}
		return probe, nil
	case "rdap":
		return &rdapprobe.Probe{
			ServerURL: cfg.BaseURL,
			Timeout:   cfg.Timeout,
		}, nil
	default:
		return nil, fmt.Errorf("provider %s: unknown type %q", id, cfg.Type)
	}
}

// Providers returns registered provider ids in registration order.
func (s *Service) Providers() []string {
	return s.coordinator.Providers()
}

// Coordinator exposes the underlying coordinator for callers that need
// registration control.
func (s *Service) Coordinator() *ratelimit.Coordinator {
	return s.coordinator
}

// Prober exposes the underlying health prober.
func (s *Service) Prober() *health.Prober {
	return s.prober
}

// Admit runs one admission check against the provider and records the
// decision.
func (s *Service) Admit(ctx context.Context, id string) (core.RateLimitResult, error) {
	result, err := s.coordinator.CheckLimit(id)
	if err != nil {
		return core.RateLimitResult{}, err
	}

	metrics.RecordAdmission(id, result.Allowed)
	if !result.Allowed {
		s.recordEvent(ctx, store.EventAdmissionDenied, id, map[string]any{
			"wait_time_ms": result.WaitTime.Milliseconds(),
			"tokens":       result.TokensRemaining,
			"limited":      result.Status.IsLimited,
		})
	}
	return result, nil
}

// AdmitWait blocks until the provider admits a request or the context is
// canceled, recording the time spent waiting.
func (s *Service) AdmitWait(ctx context.Context, id string) (core.RateLimitResult, error) {
	start := s.clock()
	result, err := s.coordinator.WaitForSlot(ctx, id)
	if err != nil {
		return core.RateLimitResult{}, err
	}

	metrics.RecordAdmission(id, result.Allowed)
	metrics.RecordWait(id, s.clock().Sub(start))
	return result, nil
}

// Penalize reports a provider-side rate-limit rejection. Unknown provider ids
// are a no-op, matching the coordinator.
func (s *Service) Penalize(ctx context.Context, id string, resp *core.PenaltyResponse) {
	if _, err := s.coordinator.Status(id); err != nil {
		return
	}
	s.coordinator.ApplyPenalty(id, resp)

	metrics.RecordPenalty(id)
	detail := map[string]any{}
	if resp != nil && resp.RetryAfter > 0 {
		detail["retry_after_ms"] = resp.RetryAfter.Milliseconds()
	}
	s.recordEvent(ctx, store.EventPenaltyApplied, id, detail)
}

// ResetAll restores every limiter to full capacity and records the reset.
func (s *Service) ResetAll(ctx context.Context) {
	s.coordinator.ResetAll()
	for _, id := range s.coordinator.Providers() {
		s.recordEvent(ctx, store.EventLimiterReset, id, nil)
	}
}

// UpdateLimits applies a partial limiter config change to one provider.
func (s *Service) UpdateLimits(ctx context.Context, id string, update core.RateLimitConfigUpdate) error {
	if err := s.coordinator.UpdateProviderConfig(id, update); err != nil {
		return err
	}
	s.recordEvent(ctx, store.EventConfigUpdated, id, nil)
	return nil
}

// Status returns one provider's limiter snapshot.
func (s *Service) Status(id string) (core.RateLimitStatus, error) {
	return s.coordinator.Status(id)
}

// Statuses returns limiter snapshots in registration order.
func (s *Service) Statuses() []core.RateLimitStatus {
	all := s.coordinator.AllStatus()
	statuses := make([]core.RateLimitStatus, 0, len(all))
	for _, id := range s.coordinator.Providers() {
		if status, ok := all[id]; ok {
			statuses = append(statuses, status)
		}
	}
	return statuses
}

// Quotas returns quota snapshots, in registration order, for providers with a
// daily quota configured.
func (s *Service) Quotas() []core.QuotaStatus {
	all := s.coordinator.AllQuotaStatus()
	quotas := make([]core.QuotaStatus, 0, len(all))
	for _, id := range s.coordinator.Providers() {
		if quota, ok := all[id]; ok {
			quotas = append(quotas, quota)
		}
	}
	return quotas
}

// AvailableProvider returns the first eligible provider in registration order.
func (s *Service) AvailableProvider() (string, bool) {
	return s.coordinator.AvailableProvider()
}

// BestProvider returns the eligible provider with the most tokens.
func (s *Service) BestProvider() (string, bool) {
	return s.coordinator.BestProvider()
}

// Probe runs one health check against the provider and records the outcome.
func (s *Service) Probe(ctx context.Context, id string) (core.HealthCheckResult, error) {
	result, err := s.prober.CheckProviderHealth(ctx, id)
	if err != nil {
		return core.HealthCheckResult{}, err
	}

	s.recordProbe(ctx, result)
	return result, nil
}

// ProbeAll checks every registered provider, tolerating individual failures,
// and returns results in registration order.
func (s *Service) ProbeAll(ctx context.Context) []core.HealthCheckResult {
	all := s.prober.CheckAllProviders(ctx)
	results := make([]core.HealthCheckResult, 0, len(all))
	for _, id := range s.prober.Providers() {
		result, ok := all[id]
		if !ok {
			continue
		}
		s.recordProbe(ctx, result)
		results = append(results, result)
	}
	return results
}

// Health returns the last recorded probe result for the provider.
func (s *Service) Health(id string) (core.HealthCheckResult, bool) {
	return s.prober.ProviderHealth(id)
}

// History returns the in-memory probe history for the provider, oldest first.
func (s *Service) History(id string) []core.HealthCheckResult {
	return s.prober.ProviderHistory(id)
}

// AuditHistory returns recorded events for the provider, newest first. An
// empty provider matches all providers.
func (s *Service) AuditHistory(ctx context.Context, provider string, limit int) ([]store.Event, error) {
	if s.audit == nil {
		return nil, nil
	}
	return s.audit.RecentEvents(ctx, provider, limit)
}

// StartMonitoring begins periodic background probing of all providers.
func (s *Service) StartMonitoring() {
	s.prober.StartMonitoring()
}

// StopMonitoring halts background probing, keeping recorded state.
func (s *Service) StopMonitoring() {
	s.prober.StopMonitoring()
}

// Close tears down background monitoring and releases prober state.
func (s *Service) Close() {
	s.prober.Destroy()
}

func (s *Service) recordProbe(ctx context.Context, result core.HealthCheckResult) {
	metrics.RecordHealthCheck(result.Provider, string(result.Status), result.ResponseTime)

	detail := map[string]any{
		"status":           string(result.Status),
		"response_time_ms": result.ResponseTime.Milliseconds(),
	}
	if result.Error != "" {
		detail["error"] = result.Error
	}
	s.recordEvent(ctx, store.EventProbeCompleted, result.Provider, detail)
}

// recordEvent appends an audit event. Audit failures never fail the calling
// operation.
func (s *Service) recordEvent(ctx context.Context, eventType store.EventType, providerID string, detail map[string]any) {
	if s.audit == nil {
		return
	}

	event := &store.Event{
		Type:     eventType,
		Provider: providerID,
		Detail:   detail,
	}
	if err := s.audit.AppendEvent(ctx, event); err != nil && s.logger != nil {
		s.logger.Warn("failed to record audit event",
			zap.String("event_type", string(eventType)),
			zap.String("provider", providerID),
			zap.Error(err))
	}
}
