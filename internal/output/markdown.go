package output

import (
	"fmt"
	"strings"

	"github.com/ratelens/ratelens/internal/core"
)

// MarkdownFormatter renders snapshots as markdown tables.
type MarkdownFormatter struct{}

// FormatStatuses renders limiter snapshots as Markdown.
func (f *MarkdownFormatter) FormatStatuses(statuses []core.RateLimitStatus) (string, error) {
	var sb strings.Builder
	sb.WriteString("## Provider admission status\n\n")
	sb.WriteString("| Provider | Tokens | Rate | Used Today | Admission | Notes |\n")
	sb.WriteString("|----------|--------|------|------------|-----------|-------|\n")

	for _, status := range statuses {
		sb.WriteString(fmt.Sprintf("| %s | %s | %.1f/s | %d | %s | %s |\n",
			escapeMarkdownCell(status.Provider),
			formatTokens(status.Tokens, status.BurstSize),
			status.RequestsPerSecond,
			status.QuotaUsedToday,
			admissionLabel(status),
			escapeMarkdownCell(statusNotes(status)),
		))
	}

	return sb.String(), nil
}

// FormatQuotas renders daily quota snapshots as Markdown.
func (f *MarkdownFormatter) FormatQuotas(quotas []core.QuotaStatus) (string, error) {
	var sb strings.Builder
	sb.WriteString("## Provider daily quotas\n\n")
	sb.WriteString("| Provider | Used | Limit | Remaining | Usage | Resets |\n")
	sb.WriteString("|----------|------|-------|-----------|-------|--------|\n")

	for _, quota := range quotas {
		sb.WriteString(fmt.Sprintf("| %s | %d | %s | %d | %.1f%% | %s |\n",
			escapeMarkdownCell(quota.Provider),
			quota.UsedToday,
			quotaLimitLabel(quota),
			quota.Remaining,
			quota.UsagePercentage,
			quota.ResetTime.Format("15:04 MST"),
		))
	}

	return sb.String(), nil
}

// FormatHealth renders probe results as Markdown.
func (f *MarkdownFormatter) FormatHealth(results []core.HealthCheckResult) (string, error) {
	var sb strings.Builder
	sb.WriteString("## Provider health\n\n")
	sb.WriteString("| Provider | Status | Response | Success | Checks | Notes |\n")
	sb.WriteString("|----------|--------|----------|---------|--------|-------|\n")

	for _, result := range results {
		sb.WriteString(fmt.Sprintf("| %s | %s | %s | %s | %d | %s |\n",
			escapeMarkdownCell(result.Provider),
			string(result.Status),
			formatResponseTime(result.ResponseTime),
			formatSuccessRate(result.Details.Performance.SuccessRate),
			result.Details.Performance.TotalChecks,
			escapeMarkdownCell(healthNotes(result)),
		))
	}

	return sb.String(), nil
}

func escapeMarkdownCell(value string) string {
	return strings.ReplaceAll(value, "|", "\\|")
}
