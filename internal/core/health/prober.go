package health

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/ratelens/ratelens/internal/core"
	"github.com/ratelens/ratelens/internal/provider"
)

// ErrProviderNotFound reports a health operation against an unregistered
// provider id.
var ErrProviderNotFound = errors.New("provider not registered")

// Logger is the minimal logging surface the prober needs for per-tick
// failures. The gofulmen logger satisfies it.
type Logger interface {
	Warn(msg string, fields ...zap.Field)
}

type nopLogger struct{}

func (nopLogger) Warn(string, ...zap.Field) {}

// DefaultConfig returns the prober defaults merged into per-instance config.
func DefaultConfig() core.HealthCheckConfig {
	return core.HealthCheckConfig{
		CheckInterval:        30 * time.Second,
		Timeout:              10 * time.Second,
		FailureThreshold:     3,
		EnableDetailedChecks: true,
		EnableCaching:        true,
		CacheDuration:        30 * time.Second,
	}
}

// Prober schedules health probes per provider, caches results, and maintains
// bounded histories with rolling aggregates. All methods are safe for
// concurrent use. The cache is advisory: two overlapping CheckProviderHealth
// calls inside one cache window may both probe; that relaxation is accepted.
type Prober struct {
	mu         sync.Mutex
	cfg        core.HealthCheckConfig
	logger     Logger
	clock      func() time.Time
	providers  map[string]provider.Probeable
	order      []string
	cache      map[string]core.HealthCheckResult
	histories  map[string]*history
	monitors   map[string]context.CancelFunc
	monitoring bool
	wg         sync.WaitGroup
	destroyed  bool
}

// NewProber creates a prober with the supplied config; zero fields fall back
// to DefaultConfig. A nil logger disables tick logging.
func NewProber(cfg core.HealthCheckConfig, logger Logger) *Prober {
	if logger == nil {
		logger = nopLogger{}
	}
	return &Prober{
		cfg:       mergeHealthConfig(DefaultConfig(), cfg),
		logger:    logger,
		clock:     time.Now,
		providers: make(map[string]provider.Probeable),
		cache:     make(map[string]core.HealthCheckResult),
		histories: make(map[string]*history),
		monitors:  make(map[string]context.CancelFunc),
	}
}

// AddProvider registers a probeable provider. When monitoring is already
// active its periodic timer starts immediately.
func (p *Prober) AddProvider(id string, probeable provider.Probeable) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.destroyed {
		return
	}
	if _, exists := p.providers[id]; !exists {
		p.order = append(p.order, id)
	}
	p.providers[id] = probeable
	if _, exists := p.histories[id]; !exists {
		p.histories[id] = &history{}
	}
	if p.monitoring {
		p.startMonitorLocked(id)
	}
}

// RemoveProvider cancels the provider's timer and discards its cached result
// and history.
func (p *Prober) RemoveProvider(id string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if cancel, ok := p.monitors[id]; ok {
		cancel()
		delete(p.monitors, id)
	}
	delete(p.providers, id)
	delete(p.cache, id)
	delete(p.histories, id)
	for i, existing := range p.order {
		if existing == id {
			p.order = append(p.order[:i], p.order[i+1:]...)
			break
		}
	}
}

// Providers returns registered provider ids in registration order.
func (p *Prober) Providers() []string {
	p.mu.Lock()
	defer p.mu.Unlock()

	ids := make([]string, len(p.order))
	copy(ids, p.order)
	return ids
}

// CheckProviderHealth probes one provider, honoring the advisory cache.
// Probe failures and timeouts surface as unhealthy results, never as errors;
// the only error is an unregistered id.
func (p *Prober) CheckProviderHealth(ctx context.Context, id string) (core.HealthCheckResult, error) {
	if ctx == nil {
		ctx = context.Background()
	}

	p.mu.Lock()
	probeable, ok := p.providers[id]
	if !ok {
		p.mu.Unlock()
		return core.HealthCheckResult{}, fmt.Errorf("%w: %s", ErrProviderNotFound, id)
	}
	cfg := p.cfg
	now := p.clock()
	if cfg.EnableCaching {
		if cached, ok := p.cache[id]; ok && now.Sub(cached.LastCheck) < cfg.CacheDuration {
			p.mu.Unlock()
			return cached, nil
		}
	}
	p.mu.Unlock()

	result := p.probe(ctx, id, probeable, cfg)

	p.mu.Lock()
	defer p.mu.Unlock()

	hist, ok := p.histories[id]
	if !ok {
		// Removed while the probe was in flight; report without recording.
		return result, nil
	}
	hist.append(result)
	result.Details.Performance = hist.performance()
	if len(hist.results) > 0 {
		hist.results[len(hist.results)-1].Details.Performance = result.Details.Performance
	}
	p.cache[id] = result
	return result, nil
}

// CheckAllProviders probes every registered provider. One provider's failure
// never aborts the rest: failures are folded into that provider's own
// unhealthy result.
func (p *Prober) CheckAllProviders(ctx context.Context) map[string]core.HealthCheckResult {
	results := make(map[string]core.HealthCheckResult)
	for _, id := range p.Providers() {
		result, err := p.CheckProviderHealth(ctx, id)
		if err != nil {
			// Removed between listing and probing; skip.
			continue
		}
		results[id] = result
	}
	return results
}

// ProviderHealth returns the most recent recorded result for a provider.
func (p *Prober) ProviderHealth(id string) (core.HealthCheckResult, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	result, ok := p.cache[id]
	return result, ok
}

// ProviderHistory returns a copy of the provider's bounded history, oldest
// first.
func (p *Prober) ProviderHistory(id string) []core.HealthCheckResult {
	p.mu.Lock()
	defer p.mu.Unlock()

	hist, ok := p.histories[id]
	if !ok {
		return nil
	}
	return hist.snapshot()
}

// HealthyProviders returns ids whose latest result is healthy.
func (p *Prober) HealthyProviders() []string {
	return p.providersWithStatus(core.HealthStatusHealthy)
}

// UnhealthyProviders returns ids whose latest result is unhealthy.
func (p *Prober) UnhealthyProviders() []string {
	return p.providersWithStatus(core.HealthStatusUnhealthy)
}

func (p *Prober) providersWithStatus(status core.HealthStatus) []string {
	p.mu.Lock()
	defer p.mu.Unlock()

	var ids []string
	for _, id := range p.order {
		if result, ok := p.cache[id]; ok && result.Status == status {
			ids = append(ids, id)
		}
	}
	return ids
}

// UpdateConfig applies a partial config change. An interval change while
// monitoring restarts every provider timer so the new cadence takes effect.
func (p *Prober) UpdateConfig(update core.HealthCheckConfigUpdate) {
	p.mu.Lock()
	defer p.mu.Unlock()

	intervalChanged := false
	if update.CheckInterval != nil && *update.CheckInterval > 0 && *update.CheckInterval != p.cfg.CheckInterval {
		p.cfg.CheckInterval = *update.CheckInterval
		intervalChanged = true
	}
	if update.Timeout != nil && *update.Timeout > 0 {
		p.cfg.Timeout = *update.Timeout
	}
	if update.FailureThreshold != nil && *update.FailureThreshold > 0 {
		p.cfg.FailureThreshold = *update.FailureThreshold
	}
	if update.EnableDetailedChecks != nil {
		p.cfg.EnableDetailedChecks = *update.EnableDetailedChecks
	}
	if update.EnableCaching != nil {
		p.cfg.EnableCaching = *update.EnableCaching
	}
	if update.CacheDuration != nil && *update.CacheDuration > 0 {
		p.cfg.CacheDuration = *update.CacheDuration
	}

	if intervalChanged && p.monitoring {
		for id, cancel := range p.monitors {
			cancel()
			delete(p.monitors, id)
		}
		for _, id := range p.order {
			p.startMonitorLocked(id)
		}
	}
}

// Config returns a copy of the prober's effective configuration.
func (p *Prober) Config() core.HealthCheckConfig {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.cfg
}

// probe runs one health check race: the provider capability against the
// configured timeout; whichever settles first wins.
func (p *Prober) probe(ctx context.Context, id string, probeable provider.Probeable, cfg core.HealthCheckConfig) core.HealthCheckResult {
	start := p.clock()
	result := core.HealthCheckResult{Provider: id}

	probeCtx, cancel := context.WithTimeout(ctx, cfg.Timeout)
	defer cancel()

	type outcome struct {
		check *provider.CheckResult
		info  *provider.Info
		err   error
	}

	ch := make(chan outcome, 1)
	go func() {
		check, err := probeable.HealthCheck(probeCtx)
		var info *provider.Info
		if err == nil && cfg.EnableDetailedChecks {
			// Metadata failures are not probe failures.
			info, _ = probeable.ProviderInfo(probeCtx)
		}
		ch <- outcome{check: check, info: info, err: err}
	}()

	var o outcome
	select {
	case <-probeCtx.Done():
		o = outcome{err: fmt.Errorf("health check timed out after %s", cfg.Timeout)}
	case o = <-ch:
	}

	result.ResponseTime = p.clock().Sub(start)
	result.LastCheck = p.clock()

	if o.err != nil || o.check == nil {
		result.Status = core.HealthStatusUnhealthy
		result.Details = core.HealthDetails{}
		if o.err != nil {
			result.Error = o.err.Error()
		} else {
			result.Error = "health check returned no result"
		}
		return result
	}

	result.Details = detailsFromCheck(o.check)
	if o.check.Message != "" || o.info != nil {
		result.Details.ServiceSpecific = make(map[string]any)
		if o.check.Message != "" {
			result.Details.ServiceSpecific["message"] = o.check.Message
		}
		if o.info != nil {
			result.Details.ServiceSpecific["version"] = o.info.Version
			result.Details.ServiceSpecific["capabilities"] = o.info.Capabilities
		}
	}

	result.Status = p.deriveStatus(id, result.Details)
	return result
}

// deriveStatus reclassifies fresh from the latest details plus a short
// trailing latency window; there is no hysteresis. The window reads the
// history of the provider under evaluation.
func (p *Prober) deriveStatus(id string, details core.HealthDetails) core.HealthStatus {
	if !details.Connectivity || !details.EndpointAvailable {
		return core.HealthStatusUnhealthy
	}
	if !details.Authentication {
		return core.HealthStatusDegraded
	}

	p.mu.Lock()
	var trailing time.Duration
	if hist, ok := p.histories[id]; ok {
		trailing = hist.recentAverageResponseTime(latencyWindow)
	}
	p.mu.Unlock()

	if trailing > degradedLatency {
		return core.HealthStatusDegraded
	}
	return core.HealthStatusHealthy
}

func detailsFromCheck(check *provider.CheckResult) core.HealthDetails {
	switch check.Status {
	case provider.StatusOK:
		return core.HealthDetails{Connectivity: true, Authentication: true, EndpointAvailable: true}
	case provider.StatusAuthFailed:
		return core.HealthDetails{Connectivity: true, Authentication: false, EndpointAvailable: true}
	case provider.StatusEndpointMissing:
		return core.HealthDetails{Connectivity: true, Authentication: false, EndpointAvailable: false}
	default:
		return core.HealthDetails{}
	}
}

func mergeHealthConfig(defaults, cfg core.HealthCheckConfig) core.HealthCheckConfig {
	if cfg.CheckInterval <= 0 {
		cfg.CheckInterval = defaults.CheckInterval
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaults.Timeout
	}
	if cfg.FailureThreshold <= 0 {
		cfg.FailureThreshold = defaults.FailureThreshold
	}
	if cfg.CacheDuration <= 0 {
		cfg.CacheDuration = defaults.CacheDuration
	}
	return cfg
}
