package output

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/ratelens/ratelens/internal/core"
)

func TestParseFormat(t *testing.T) {
	format, err := ParseFormat("table")
	require.NoError(t, err)
	require.Equal(t, FormatTable, format)

	format, err = ParseFormat("JSON")
	require.NoError(t, err)
	require.Equal(t, FormatJSON, format)

	format, err = ParseFormat("")
	require.NoError(t, err)
	require.Equal(t, FormatTable, format)

	_, err = ParseFormat("csv")
	require.Error(t, err)
}

func sampleStatuses() []core.RateLimitStatus {
	backoffEnd := time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC)
	return []core.RateLimitStatus{
		{
			Provider:          "upstream",
			Tokens:            4.5,
			BurstSize:         5,
			RequestsPerSecond: 2.0,
			QuotaPerDay:       100,
			QuotaUsedToday:    12,
		},
		{
			Provider:          "registry",
			Tokens:            0,
			BurstSize:         10,
			RequestsPerSecond: 0.5,
			IsLimited:         true,
			BackoffEndTime:    &backoffEnd,
		},
	}
}

func TestFormatStatusesTable(t *testing.T) {
	rendered, err := NewFormatter(FormatTable).FormatStatuses(sampleStatuses())
	require.NoError(t, err)
	require.Contains(t, rendered, "PROVIDER")
	require.Contains(t, rendered, "upstream")
	require.Contains(t, rendered, "4.5/5")
	require.Contains(t, rendered, "quota 12/100")
	require.Contains(t, rendered, "limited")
	require.Contains(t, rendered, "1/2 LIMITED")
}

func TestFormatStatusesJSON(t *testing.T) {
	rendered, err := NewFormatter(FormatJSON).FormatStatuses(sampleStatuses())
	require.NoError(t, err)
	require.Contains(t, rendered, "\"provider\": \"upstream\"")
	require.Contains(t, rendered, "\"is_limited\": true")
}

func TestFormatStatusesMarkdown(t *testing.T) {
	rendered, err := NewFormatter(FormatMarkdown).FormatStatuses(sampleStatuses())
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(rendered, "## "))
	require.Contains(t, rendered, "| Provider | Tokens | Rate | Used Today | Admission | Notes |")
	require.Contains(t, rendered, "backoff until 2026-03-15T12:00:00Z")
}

func TestFormatQuotas(t *testing.T) {
	quotas := []core.QuotaStatus{
		{
			Provider:        "upstream",
			DailyLimit:      100,
			UsedToday:       25,
			Remaining:       75,
			ResetTime:       time.Date(2026, 3, 16, 0, 0, 0, 0, time.UTC),
			UsagePercentage: 25.0,
		},
		{
			Provider: "registry",
		},
	}

	tableRendered, err := NewFormatter(FormatTable).FormatQuotas(quotas)
	require.NoError(t, err)
	require.Contains(t, tableRendered, "upstream")
	require.Contains(t, tableRendered, "25.0%")
	require.Contains(t, tableRendered, "unlimited")

	markdownRendered, err := NewFormatter(FormatMarkdown).FormatQuotas(quotas)
	require.NoError(t, err)
	require.Contains(t, markdownRendered, "| upstream | 25 | 100 | 75 | 25.0% |")
}

func TestFormatHealth(t *testing.T) {
	results := []core.HealthCheckResult{
		{
			Provider:     "upstream",
			Status:       core.HealthStatusHealthy,
			ResponseTime: 120 * time.Millisecond,
			Details: core.HealthDetails{
				Authentication:    true,
				Connectivity:      true,
				EndpointAvailable: true,
				Performance: core.PerformanceStats{
					SuccessRate: 1.0,
					TotalChecks: 42,
				},
			},
		},
		{
			Provider: "registry",
			Status:   core.HealthStatusUnhealthy,
			Error:    "connection refused",
			Details: core.HealthDetails{
				Performance: core.PerformanceStats{
					SuccessRate:         0.5,
					TotalChecks:         10,
					ConsecutiveFailures: 3,
				},
			},
		},
	}

	tableRendered, err := NewFormatter(FormatTable).FormatHealth(results)
	require.NoError(t, err)
	require.Contains(t, tableRendered, "healthy")
	require.Contains(t, tableRendered, "120ms")
	require.Contains(t, tableRendered, "100%")
	require.Contains(t, tableRendered, "connection refused")
	require.Contains(t, tableRendered, "1/2 HEALTHY")

	jsonRendered, err := NewFormatter(FormatJSON).FormatHealth(results)
	require.NoError(t, err)
	require.Contains(t, jsonRendered, "\"status\": \"unhealthy\"")
	require.Contains(t, jsonRendered, "\"consecutive_failures\": 3")
}

func TestAdmissionLabel(t *testing.T) {
	require.Equal(t, "limited", admissionLabel(core.RateLimitStatus{IsLimited: true}))
	require.Equal(t, "waiting", admissionLabel(core.RateLimitStatus{Tokens: 0.4}))
	require.Equal(t, "open", admissionLabel(core.RateLimitStatus{Tokens: 3}))
}

func TestHealthNotesDegraded(t *testing.T) {
	notes := healthNotes(core.HealthCheckResult{
		Status: core.HealthStatusDegraded,
		Details: core.HealthDetails{
			Connectivity:      true,
			EndpointAvailable: true,
			Performance:       core.PerformanceStats{ConsecutiveFailures: 2},
		},
	})
	require.Contains(t, notes, "auth failing")
	require.Contains(t, notes, "2 consecutive failures")
}

func TestMarkdownEscaping(t *testing.T) {
	rendered, err := NewFormatter(FormatMarkdown).FormatStatuses([]core.RateLimitStatus{
		{Provider: "pipe|test", Tokens: 1, BurstSize: 1},
	})
	require.NoError(t, err)
	require.Contains(t, rendered, "pipe\\|test")
}
