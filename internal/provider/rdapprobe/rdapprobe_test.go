package rdapprobe

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/ratelens/ratelens/internal/provider"
)

func helpServer(t *testing.T, handler http.HandlerFunc) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return server
}

func TestHealthCheckOK(t *testing.T) {
	server := helpServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/rdap+json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"rdapConformance": ["rdap_level_0"]}`))
	})

	probe := &Probe{ServerURL: server.URL, Timeout: 5 * time.Second}
	result, err := probe.HealthCheck(context.Background())
	require.NoError(t, err)
	require.Equal(t, provider.StatusOK, result.Status)
	require.Greater(t, result.ResponseTime, time.Duration(0))
}

func TestHealthCheckAuthRejected(t *testing.T) {
	server := helpServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	})

	probe := &Probe{ServerURL: server.URL}
	result, err := probe.HealthCheck(context.Background())
	require.NoError(t, err)
	require.Equal(t, provider.StatusAuthFailed, result.Status)
}

func TestHealthCheckHelpMissing(t *testing.T) {
	server := helpServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})

	probe := &Probe{ServerURL: server.URL}
	result, err := probe.HealthCheck(context.Background())
	require.NoError(t, err)
	require.Equal(t, provider.StatusEndpointMissing, result.Status)
}

func TestHealthCheckUnreachable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	serverURL := server.URL
	server.Close()

	probe := &Probe{ServerURL: serverURL, Timeout: time.Second}
	result, err := probe.HealthCheck(context.Background())
	require.NoError(t, err)
	require.Equal(t, provider.StatusUnreachable, result.Status)
	require.NotEmpty(t, result.Message)
}

func TestHealthCheckUnconfigured(t *testing.T) {
	probe := &Probe{}
	_, err := probe.HealthCheck(context.Background())
	require.Error(t, err)
}

func TestProviderInfoConformance(t *testing.T) {
	server := helpServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/rdap+json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"rdapConformance": ["rdap_level_0", "icann_rdap_response_profile_0"]}`))
	})

	probe := &Probe{ServerURL: server.URL}
	info, err := probe.ProviderInfo(context.Background())
	require.NoError(t, err)
	require.Equal(t, "rdap_level_0", info.Version)
	require.Equal(t, []string{"rdap_level_0", "icann_rdap_response_profile_0"}, info.Capabilities)
}
