package health

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/ratelens/ratelens/internal/core"
	"github.com/ratelens/ratelens/internal/provider"
)

type stubProvider struct {
	mu     sync.Mutex
	calls  int
	result provider.CheckResult
	err    error
	delay  time.Duration
	info   *provider.Info
}

func (s *stubProvider) HealthCheck(ctx context.Context) (*provider.CheckResult, error) {
	s.mu.Lock()
	s.calls++
	result, err, delay := s.result, s.err, s.delay
	s.mu.Unlock()

	if delay > 0 {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(delay):
		}
	}
	if err != nil {
		return nil, err
	}
	out := result
	return &out, nil
}

func (s *stubProvider) ProviderInfo(context.Context) (*provider.Info, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.info == nil {
		return nil, errors.New("no info")
	}
	return s.info, nil
}

func (s *stubProvider) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

func (s *stubProvider) set(result provider.CheckResult, err error) {
	s.mu.Lock()
	s.result = result
	s.err = err
	s.mu.Unlock()
}

func newTestProber(cfg core.HealthCheckConfig) *Prober {
	if cfg.CheckInterval == 0 {
		cfg = DefaultConfig()
		cfg.EnableCaching = false
	}
	return NewProber(cfg, nil)
}

func TestCheckProviderHealthHealthy(t *testing.T) {
	p := newTestProber(core.HealthCheckConfig{})
	stub := &stubProvider{
		result: provider.CheckResult{Status: provider.StatusOK},
		info:   &provider.Info{Version: "2.1", Capabilities: []string{"lookup"}},
	}
	p.AddProvider("upstream", stub)

	result, err := p.CheckProviderHealth(context.Background(), "upstream")
	require.NoError(t, err)
	require.Equal(t, core.HealthStatusHealthy, result.Status)
	require.True(t, result.Details.Connectivity)
	require.True(t, result.Details.Authentication)
	require.True(t, result.Details.EndpointAvailable)
	require.Empty(t, result.Error)
	require.Equal(t, "2.1", result.Details.ServiceSpecific["version"])
	require.Equal(t, int64(1), result.Details.Performance.TotalChecks)
}

func TestCheckProviderHealthAuthFailureDegrades(t *testing.T) {
	p := newTestProber(core.HealthCheckConfig{})
	stub := &stubProvider{result: provider.CheckResult{Status: provider.StatusAuthFailed}}
	p.AddProvider("upstream", stub)

	result, err := p.CheckProviderHealth(context.Background(), "upstream")
	require.NoError(t, err)
	require.Equal(t, core.HealthStatusDegraded, result.Status)
	require.True(t, result.Details.Connectivity)
	require.False(t, result.Details.Authentication)
	require.True(t, result.Details.EndpointAvailable)
}

func TestCheckProviderHealthMissingEndpointUnhealthy(t *testing.T) {
	p := newTestProber(core.HealthCheckConfig{})
	stub := &stubProvider{result: provider.CheckResult{Status: provider.StatusEndpointMissing}}
	p.AddProvider("upstream", stub)

	result, err := p.CheckProviderHealth(context.Background(), "upstream")
	require.NoError(t, err)
	require.Equal(t, core.HealthStatusUnhealthy, result.Status)
}

func TestCheckProviderHealthProbeErrorUnhealthy(t *testing.T) {
	p := newTestProber(core.HealthCheckConfig{})
	stub := &stubProvider{err: errors.New("connection refused")}
	p.AddProvider("upstream", stub)

	result, err := p.CheckProviderHealth(context.Background(), "upstream")
	require.NoError(t, err)
	require.Equal(t, core.HealthStatusUnhealthy, result.Status)
	require.Contains(t, result.Error, "connection refused")
	require.False(t, result.Details.Connectivity)
	require.False(t, result.Details.EndpointAvailable)
}

func TestCheckProviderHealthTimeout(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Timeout = 20 * time.Millisecond
	cfg.EnableCaching = false
	p := newTestProber(cfg)

	stub := &stubProvider{
		result: provider.CheckResult{Status: provider.StatusOK},
		delay:  time.Second,
	}
	p.AddProvider("slow", stub)

	result, err := p.CheckProviderHealth(context.Background(), "slow")
	require.NoError(t, err)
	require.Equal(t, core.HealthStatusUnhealthy, result.Status)
	require.Contains(t, result.Error, "timed out")
}

func TestCheckProviderHealthUnknownProvider(t *testing.T) {
	p := newTestProber(core.HealthCheckConfig{})
	_, err := p.CheckProviderHealth(context.Background(), "ghost")
	require.ErrorIs(t, err, ErrProviderNotFound)
}

func TestCheckProviderHealthCaching(t *testing.T) {
	cfg := DefaultConfig()
	cfg.EnableCaching = true
	cfg.CacheDuration = time.Hour
	p := NewProber(cfg, nil)

	stub := &stubProvider{result: provider.CheckResult{Status: provider.StatusOK}}
	p.AddProvider("upstream", stub)

	first, err := p.CheckProviderHealth(context.Background(), "upstream")
	require.NoError(t, err)
	second, err := p.CheckProviderHealth(context.Background(), "upstream")
	require.NoError(t, err)

	require.Equal(t, 1, stub.callCount())
	require.Equal(t, first.LastCheck, second.LastCheck)
	require.Len(t, p.ProviderHistory("upstream"), 1)
}

func TestCheckProviderHealthCacheExpiry(t *testing.T) {
	cfg := DefaultConfig()
	cfg.EnableCaching = true
	cfg.CacheDuration = time.Minute
	p := NewProber(cfg, nil)

	now := time.Now()
	p.clock = func() time.Time { return now }

	stub := &stubProvider{result: provider.CheckResult{Status: provider.StatusOK}}
	p.AddProvider("upstream", stub)

	_, err := p.CheckProviderHealth(context.Background(), "upstream")
	require.NoError(t, err)

	now = now.Add(2 * time.Minute)
	_, err = p.CheckProviderHealth(context.Background(), "upstream")
	require.NoError(t, err)

	require.Equal(t, 2, stub.callCount())
}

func TestHistoryBounded(t *testing.T) {
	p := newTestProber(core.HealthCheckConfig{})
	stub := &stubProvider{result: provider.CheckResult{Status: provider.StatusOK}}
	p.AddProvider("upstream", stub)

	for i := 0; i < historyLimit+1; i++ {
		_, err := p.CheckProviderHealth(context.Background(), "upstream")
		require.NoError(t, err)
	}

	entries := p.ProviderHistory("upstream")
	require.Len(t, entries, historyLimit)
	require.Equal(t, int64(historyLimit+1), entries[len(entries)-1].Details.Performance.TotalChecks)
}

func TestPerformanceAggregates(t *testing.T) {
	p := newTestProber(core.HealthCheckConfig{})
	stub := &stubProvider{result: provider.CheckResult{Status: provider.StatusOK}}
	p.AddProvider("upstream", stub)

	for i := 0; i < 7; i++ {
		_, err := p.CheckProviderHealth(context.Background(), "upstream")
		require.NoError(t, err)
	}
	stub.set(provider.CheckResult{}, errors.New("down"))
	for i := 0; i < 3; i++ {
		_, err := p.CheckProviderHealth(context.Background(), "upstream")
		require.NoError(t, err)
	}

	result, ok := p.ProviderHealth("upstream")
	require.True(t, ok)
	require.InDelta(t, 0.7, result.Details.Performance.SuccessRate, 0.001)
	require.Equal(t, 3, result.Details.Performance.ConsecutiveFailures)
	require.Equal(t, int64(10), result.Details.Performance.TotalChecks)

	stub.set(provider.CheckResult{Status: provider.StatusOK}, nil)
	result, err := p.CheckProviderHealth(context.Background(), "upstream")
	require.NoError(t, err)
	require.Equal(t, 0, result.Details.Performance.ConsecutiveFailures)
}

func TestSlowTrailingLatencyDegrades(t *testing.T) {
	p := newTestProber(core.HealthCheckConfig{})
	stub := &stubProvider{result: provider.CheckResult{Status: provider.StatusOK}}
	p.AddProvider("upstream", stub)

	p.mu.Lock()
	hist := p.histories["upstream"]
	for i := 0; i < latencyWindow; i++ {
		hist.append(core.HealthCheckResult{
			Provider:     "upstream",
			Status:       core.HealthStatusHealthy,
			ResponseTime: 11 * time.Second,
		})
	}
	p.mu.Unlock()

	result, err := p.CheckProviderHealth(context.Background(), "upstream")
	require.NoError(t, err)
	require.Equal(t, core.HealthStatusDegraded, result.Status)
	require.True(t, result.Details.Connectivity)
	require.True(t, result.Details.Authentication)
}

func TestCheckAllProvidersPartialFailure(t *testing.T) {
	p := newTestProber(core.HealthCheckConfig{})
	p.AddProvider("good", &stubProvider{result: provider.CheckResult{Status: provider.StatusOK}})
	p.AddProvider("bad", &stubProvider{err: errors.New("dial tcp: connection refused")})

	results := p.CheckAllProviders(context.Background())
	require.Len(t, results, 2)
	require.Equal(t, core.HealthStatusHealthy, results["good"].Status)
	require.Equal(t, core.HealthStatusUnhealthy, results["bad"].Status)
}

func TestHealthyUnhealthyPartition(t *testing.T) {
	p := newTestProber(core.HealthCheckConfig{})
	p.AddProvider("good", &stubProvider{result: provider.CheckResult{Status: provider.StatusOK}})
	p.AddProvider("bad", &stubProvider{err: errors.New("down")})
	p.AddProvider("flaky", &stubProvider{result: provider.CheckResult{Status: provider.StatusAuthFailed}})

	p.CheckAllProviders(context.Background())

	require.Equal(t, []string{"good"}, p.HealthyProviders())
	require.Equal(t, []string{"bad"}, p.UnhealthyProviders())
}

func TestRemoveProviderDiscardsState(t *testing.T) {
	p := newTestProber(core.HealthCheckConfig{})
	p.AddProvider("upstream", &stubProvider{result: provider.CheckResult{Status: provider.StatusOK}})

	_, err := p.CheckProviderHealth(context.Background(), "upstream")
	require.NoError(t, err)

	p.RemoveProvider("upstream")
	require.Empty(t, p.Providers())
	require.Nil(t, p.ProviderHistory("upstream"))
	_, ok := p.ProviderHealth("upstream")
	require.False(t, ok)
}

func TestUpdateConfig(t *testing.T) {
	p := newTestProber(core.HealthCheckConfig{})

	timeout := 3 * time.Second
	caching := true
	p.UpdateConfig(core.HealthCheckConfigUpdate{
		Timeout:       &timeout,
		EnableCaching: &caching,
	})

	cfg := p.Config()
	require.Equal(t, 3*time.Second, cfg.Timeout)
	require.True(t, cfg.EnableCaching)
	require.Equal(t, DefaultConfig().CheckInterval, cfg.CheckInterval)
}

func TestMonitoringProbesPeriodically(t *testing.T) {
	cfg := DefaultConfig()
	cfg.CheckInterval = 10 * time.Millisecond
	cfg.EnableCaching = false
	p := NewProber(cfg, nil)

	stub := &stubProvider{result: provider.CheckResult{Status: provider.StatusOK}}
	p.AddProvider("upstream", stub)

	p.StartMonitoring()
	require.True(t, p.Monitoring())

	require.Eventually(t, func() bool {
		return stub.callCount() >= 2
	}, time.Second, 5*time.Millisecond)

	p.StopMonitoring()
	require.False(t, p.Monitoring())

	settled := stub.callCount()
	time.Sleep(50 * time.Millisecond)
	require.Equal(t, settled, stub.callCount())

	// History survives a stop.
	require.NotEmpty(t, p.ProviderHistory("upstream"))
}

func TestAddProviderWhileMonitoring(t *testing.T) {
	cfg := DefaultConfig()
	cfg.CheckInterval = 10 * time.Millisecond
	cfg.EnableCaching = false
	p := NewProber(cfg, nil)
	defer p.Destroy()

	p.StartMonitoring()

	stub := &stubProvider{result: provider.CheckResult{Status: provider.StatusOK}}
	p.AddProvider("late", stub)

	require.Eventually(t, func() bool {
		return stub.callCount() >= 1
	}, time.Second, 5*time.Millisecond)
}

func TestDestroyStopsAndClears(t *testing.T) {
	cfg := DefaultConfig()
	cfg.CheckInterval = 10 * time.Millisecond
	cfg.EnableCaching = false
	p := NewProber(cfg, nil)

	stub := &stubProvider{result: provider.CheckResult{Status: provider.StatusOK}}
	p.AddProvider("upstream", stub)
	p.StartMonitoring()

	require.Eventually(t, func() bool {
		return stub.callCount() >= 1
	}, time.Second, 5*time.Millisecond)

	p.Destroy()
	require.False(t, p.Monitoring())
	require.Empty(t, p.Providers())
}
