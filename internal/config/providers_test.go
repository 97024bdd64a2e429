package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func writeProvidersFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "providers.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadProvidersFile(t *testing.T) {
	path := writeProvidersFile(t, `
providers:
  upstream:
    type: http
    base_url: https://api.example.com
    health_path: /healthz
    timeout: 5s
    rate_limit:
      requests_per_second: 10
      burst_size: 20
      quota_per_day: 1000
  registry:
    type: rdap
    base_url: https://rdap.example.org/rdap
`)

	providers, err := LoadProvidersFile(path)
	require.NoError(t, err)
	require.Len(t, providers, 2)

	upstream := providers["upstream"]
	require.Equal(t, "http", upstream.Type)
	require.Equal(t, "https://api.example.com", upstream.BaseURL)
	require.Equal(t, "/healthz", upstream.HealthPath)
	require.Equal(t, 5*time.Second, upstream.Timeout)
	require.NotNil(t, upstream.RateLimit)
	require.Equal(t, 10.0, upstream.RateLimit.RequestsPerSecond)
	require.Equal(t, 20, upstream.RateLimit.BurstSize)
	require.Equal(t, 1000, upstream.RateLimit.QuotaPerDay)

	registry := providers["registry"]
	require.Equal(t, "rdap", registry.Type)
	require.Nil(t, registry.RateLimit)
}

func TestLoadProvidersFileEmpty(t *testing.T) {
	path := writeProvidersFile(t, "providers: {}\n")
	_, err := LoadProvidersFile(path)
	require.Error(t, err)
}

func TestLoadProvidersFileMissingBaseURL(t *testing.T) {
	path := writeProvidersFile(t, `
providers:
  upstream:
    type: http
`)
	_, err := LoadProvidersFile(path)
	require.ErrorContains(t, err, "base_url is required")
}

func TestLoadProvidersFileUnknownType(t *testing.T) {
	path := writeProvidersFile(t, `
providers:
  upstream:
    type: grpc
    base_url: https://api.example.com
`)
	_, err := LoadProvidersFile(path)
	require.ErrorContains(t, err, "unknown type")
}

func TestLoadProvidersFileNotFound(t *testing.T) {
	_, err := LoadProvidersFile(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
}
