package output

import (
	"fmt"

	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/ratelens/ratelens/internal/core"
)

// TableFormatter renders snapshots as ASCII tables.
type TableFormatter struct{}

// FormatStatuses renders limiter snapshots as a table.
func (f *TableFormatter) FormatStatuses(statuses []core.RateLimitStatus) (string, error) {
	t := table.NewWriter()
	t.SetStyle(table.StyleRounded)
	t.AppendHeader(table.Row{"Provider", "Tokens", "Rate", "Used Today", "Admission", "Notes"})

	limited := 0
	for _, status := range statuses {
		if status.IsLimited {
			limited++
		}
		t.AppendRow(table.Row{
			status.Provider,
			formatTokens(status.Tokens, status.BurstSize),
			fmt.Sprintf("%.1f/s", status.RequestsPerSecond),
			status.QuotaUsedToday,
			admissionLabel(status),
			statusNotes(status),
		})
	}

	if len(statuses) > 0 {
		t.AppendFooter(table.Row{
			"",
			"",
			"",
			"",
			fmt.Sprintf("%d/%d limited", limited, len(statuses)),
			"",
		})
	}

	return t.Render(), nil
}

// FormatQuotas renders daily quota snapshots as a table.
func (f *TableFormatter) FormatQuotas(quotas []core.QuotaStatus) (string, error) {
	t := table.NewWriter()
	t.SetStyle(table.StyleRounded)
	t.AppendHeader(table.Row{"Provider", "Used", "Limit", "Remaining", "Usage", "Resets"})

	for _, quota := range quotas {
		t.AppendRow(table.Row{
			quota.Provider,
			quota.UsedToday,
			quotaLimitLabel(quota),
			quota.Remaining,
			fmt.Sprintf("%.1f%%", quota.UsagePercentage),
			quota.ResetTime.Format("15:04 MST"),
		})
	}

	return t.Render(), nil
}

// FormatHealth renders probe results as a table.
func (f *TableFormatter) FormatHealth(results []core.HealthCheckResult) (string, error) {
	t := table.NewWriter()
	t.SetStyle(table.StyleRounded)
	t.AppendHeader(table.Row{"Provider", "Status", "Response", "Success", "Checks", "Notes"})

	healthy := 0
	for _, result := range results {
		if result.Status == core.HealthStatusHealthy {
			healthy++
		}
		t.AppendRow(table.Row{
			result.Provider,
			string(result.Status),
			formatResponseTime(result.ResponseTime),
			formatSuccessRate(result.Details.Performance.SuccessRate),
			result.Details.Performance.TotalChecks,
			healthNotes(result),
		})
	}

	if len(results) > 0 {
		t.AppendFooter(table.Row{
			"",
			fmt.Sprintf("%d/%d healthy", healthy, len(results)),
			"",
			"",
			"",
			"",
		})
	}

	return t.Render(), nil
}

func quotaLimitLabel(quota core.QuotaStatus) string {
	if quota.DailyLimit <= 0 {
		return "unlimited"
	}
	return fmt.Sprintf("%d", quota.DailyLimit)
}
