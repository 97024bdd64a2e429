package engine

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/ratelens/ratelens/internal/config"
	"github.com/ratelens/ratelens/internal/core"
	"github.com/ratelens/ratelens/internal/core/store"
)

type stubAudit struct {
	mu     sync.Mutex
	events []store.Event
	err    error
}

func (s *stubAudit) AppendEvent(_ context.Context, event *store.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.events = append(s.events, *event)
	return nil
}

func (s *stubAudit) RecentEvents(_ context.Context, provider string, limit int) ([]store.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	matched := make([]store.Event, 0, len(s.events))
	for i := len(s.events) - 1; i >= 0; i-- {
		if provider != "" && s.events[i].Provider != provider {
			continue
		}
		matched = append(matched, s.events[i])
		if limit > 0 && len(matched) >= limit {
			break
		}
	}
	return matched, nil
}

func (s *stubAudit) byType(eventType store.EventType) []store.Event {
	s.mu.Lock()
	defer s.mu.Unlock()

	matched := make([]store.Event, 0)
	for _, event := range s.events {
		if event.Type == eventType {
			matched = append(matched, event)
		}
	}
	return matched
}

func healthyServer(t *testing.T) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	}))
	t.Cleanup(server.Close)
	return server
}

func testConfig(baseURL string) *config.Config {
	return &config.Config{
		Defaults: core.RateLimitConfig{
			RequestsPerSecond: 100,
			BurstSize:         3,
		},
		Probing: core.HealthCheckConfig{
			CheckInterval: time.Minute,
			Timeout:       2 * time.Second,
		},
		Providers: map[string]config.ProviderConfig{
			"beta":  {Type: "http", BaseURL: baseURL},
			"alpha": {Type: "http", BaseURL: baseURL},
		},
	}
}

func newTestService(t *testing.T, audit AuditStore) *Service {
	t.Helper()

	server := healthyServer(t)
	svc, err := New(testConfig(server.URL), Options{Audit: audit})
	require.NoError(t, err)
	t.Cleanup(svc.Close)
	return svc
}

func TestNewRegistersProvidersInLexicalOrder(t *testing.T) {
	svc := newTestService(t, nil)
	require.Equal(t, []string{"alpha", "beta"}, svc.Providers())
	require.Equal(t, []string{"alpha", "beta"}, svc.Prober().Providers())
}

func TestNewRejectsUnknownProviderType(t *testing.T) {
	cfg := testConfig("http://localhost")
	cfg.Providers["gamma"] = config.ProviderConfig{Type: "carrier-pigeon", BaseURL: "http://localhost"}

	_, err := New(cfg, Options{})
	require.Error(t, err)
	require.Contains(t, err.Error(), "carrier-pigeon")
}

func TestAdmitRecordsDenialEvents(t *testing.T) {
	audit := &stubAudit{}
	svc := newTestService(t, audit)

	for i := 0; i < 3; i++ {
		result, err := svc.Admit(context.Background(), "alpha")
		require.NoError(t, err)
		require.True(t, result.Allowed)
	}
	require.Empty(t, audit.byType(store.EventAdmissionDenied))

	result, err := svc.Admit(context.Background(), "alpha")
	require.NoError(t, err)
	require.False(t, result.Allowed)

	denied := audit.byType(store.EventAdmissionDenied)
	require.Len(t, denied, 1)
	require.Equal(t, "alpha", denied[0].Provider)
}

func TestAdmitUnknownProvider(t *testing.T) {
	svc := newTestService(t, nil)

	_, err := svc.Admit(context.Background(), "nope")
	require.Error(t, err)
}

func TestAdmitWaitReturnsOnceAdmitted(t *testing.T) {
	svc := newTestService(t, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	result, err := svc.AdmitWait(ctx, "beta")
	require.NoError(t, err)
	require.True(t, result.Allowed)
}

func TestPenalizeRecordsEvent(t *testing.T) {
	audit := &stubAudit{}
	svc := newTestService(t, audit)

	svc.Penalize(context.Background(), "alpha", &core.PenaltyResponse{RetryAfter: 30 * time.Second})

	penalties := audit.byType(store.EventPenaltyApplied)
	require.Len(t, penalties, 1)
	require.Equal(t, "alpha", penalties[0].Provider)
	require.EqualValues(t, 30000, penalties[0].Detail["retry_after_ms"])

	status, err := svc.Status("alpha")
	require.NoError(t, err)
	require.True(t, status.IsLimited)
}

func TestPenalizeUnknownProviderIsNoop(t *testing.T) {
	audit := &stubAudit{}
	svc := newTestService(t, audit)

	svc.Penalize(context.Background(), "nope", nil)
	require.Empty(t, audit.byType(store.EventPenaltyApplied))
}

func TestResetAllRecordsEventPerProvider(t *testing.T) {
	audit := &stubAudit{}
	svc := newTestService(t, audit)

	svc.Penalize(context.Background(), "alpha", nil)
	svc.ResetAll(context.Background())

	resets := audit.byType(store.EventLimiterReset)
	require.Len(t, resets, 2)

	status, err := svc.Status("alpha")
	require.NoError(t, err)
	require.False(t, status.IsLimited)
}

func TestUpdateLimits(t *testing.T) {
	audit := &stubAudit{}
	svc := newTestService(t, audit)

	burst := 10
	require.NoError(t, svc.UpdateLimits(context.Background(), "alpha", core.RateLimitConfigUpdate{
		BurstSize: &burst,
	}))
	require.Len(t, audit.byType(store.EventConfigUpdated), 1)

	status, err := svc.Status("alpha")
	require.NoError(t, err)
	require.Equal(t, 10, status.BurstSize)

	require.Error(t, svc.UpdateLimits(context.Background(), "nope", core.RateLimitConfigUpdate{}))
}

func TestStatusesFollowRegistrationOrder(t *testing.T) {
	svc := newTestService(t, nil)

	statuses := svc.Statuses()
	require.Len(t, statuses, 2)
	require.Equal(t, "alpha", statuses[0].Provider)
	require.Equal(t, "beta", statuses[1].Provider)
}

func TestQuotasOnlyIncludeConfiguredQuotas(t *testing.T) {
	server := healthyServer(t)
	cfg := testConfig(server.URL)

	limited := core.RateLimitConfig{RequestsPerSecond: 1, BurstSize: 1, QuotaPerDay: 50}
	alpha := cfg.Providers["alpha"]
	alpha.RateLimit = &limited
	cfg.Providers["alpha"] = alpha

	svc, err := New(cfg, Options{})
	require.NoError(t, err)
	t.Cleanup(svc.Close)

	quotas := svc.Quotas()
	require.Len(t, quotas, 1)
	require.Equal(t, "alpha", quotas[0].Provider)
	require.Equal(t, 50, quotas[0].DailyLimit)
}

func TestProbeRecordsOutcome(t *testing.T) {
	audit := &stubAudit{}
	svc := newTestService(t, audit)

	result, err := svc.Probe(context.Background(), "alpha")
	require.NoError(t, err)
	require.Equal(t, core.HealthStatusHealthy, result.Status)

	probes := audit.byType(store.EventProbeCompleted)
	require.Len(t, probes, 1)
	require.Equal(t, "healthy", probes[0].Detail["status"])
}

func TestProbeAllToleratesFailures(t *testing.T) {
	server := healthyServer(t)
	broken := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	broken.Close()

	cfg := testConfig(server.URL)
	cfg.Providers["down"] = config.ProviderConfig{Type: "http", BaseURL: broken.URL}

	svc, err := New(cfg, Options{})
	require.NoError(t, err)
	t.Cleanup(svc.Close)

	results := svc.ProbeAll(context.Background())
	require.Len(t, results, 3)

	byProvider := make(map[string]core.HealthCheckResult, len(results))
	for _, result := range results {
		byProvider[result.Provider] = result
	}
	require.Equal(t, core.HealthStatusHealthy, byProvider["alpha"].Status)
	require.Equal(t, core.HealthStatusUnhealthy, byProvider["down"].Status)
}

func TestHealthAndHistoryAfterProbe(t *testing.T) {
	svc := newTestService(t, nil)

	_, ok := svc.Health("alpha")
	require.False(t, ok)

	_, err := svc.Probe(context.Background(), "alpha")
	require.NoError(t, err)

	cached, ok := svc.Health("alpha")
	require.True(t, ok)
	require.Equal(t, core.HealthStatusHealthy, cached.Status)
	require.Len(t, svc.History("alpha"), 1)
}

func TestAuditHistoryFiltersByProvider(t *testing.T) {
	audit := &stubAudit{}
	svc := newTestService(t, audit)

	svc.Penalize(context.Background(), "alpha", nil)
	svc.Penalize(context.Background(), "beta", nil)

	events, err := svc.AuditHistory(context.Background(), "alpha", 10)
	require.NoError(t, err)
	require.Len(t, events, 1)
	require.Equal(t, "alpha", events[0].Provider)
}

func TestAuditHistoryWithoutStore(t *testing.T) {
	svc := newTestService(t, nil)

	events, err := svc.AuditHistory(context.Background(), "alpha", 10)
	require.NoError(t, err)
	require.Empty(t, events)
}
