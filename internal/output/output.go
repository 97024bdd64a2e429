package output

import (
	"fmt"
	"strings"
	"time"

	"github.com/ratelens/ratelens/internal/core"
)

// Format represents an output format.
type Format string

const (
	FormatTable    Format = "table"
	FormatJSON     Format = "json"
	FormatMarkdown Format = "markdown"
)

// Formatter renders provider snapshots.
type Formatter interface {
	FormatStatuses(statuses []core.RateLimitStatus) (string, error)
	FormatQuotas(quotas []core.QuotaStatus) (string, error)
	FormatHealth(results []core.HealthCheckResult) (string, error)
}

// ParseFormat validates and normalizes a format string.
func ParseFormat(value string) (Format, error) {
	normalized := strings.ToLower(strings.TrimSpace(value))
	switch normalized {
	case "", string(FormatTable):
		return FormatTable, nil
	case string(FormatJSON):
		return FormatJSON, nil
	case string(FormatMarkdown):
		return FormatMarkdown, nil
	default:
		return "", fmt.Errorf("unsupported output format: %s", value)
	}
}

// NewFormatter returns a formatter for the requested format.
func NewFormatter(format Format) Formatter {
	switch format {
	case FormatJSON:
		return &JSONFormatter{Indent: true}
	case FormatMarkdown:
		return &MarkdownFormatter{}
	default:
		return &TableFormatter{}
	}
}

func admissionLabel(status core.RateLimitStatus) string {
	if status.IsLimited {
		return "limited"
	}
	if status.Tokens < 1 {
		return "waiting"
	}
	return "open"
}

func statusNotes(status core.RateLimitStatus) string {
	notes := make([]string, 0, 2)
	if status.BackoffEndTime != nil {
		notes = append(notes, fmt.Sprintf("backoff until %s", status.BackoffEndTime.Format(time.RFC3339)))
	}
	if status.QuotaPerDay > 0 {
		notes = append(notes, fmt.Sprintf("quota %d/%d", status.QuotaUsedToday, status.QuotaPerDay))
	}
	return strings.Join(notes, ", ")
}

func healthNotes(result core.HealthCheckResult) string {
	if result.Error != "" {
		return result.Error
	}
	notes := make([]string, 0, 2)
	if !result.Details.Authentication {
		notes = append(notes, "auth failing")
	}
	if result.Details.Performance.ConsecutiveFailures > 0 {
		notes = append(notes, fmt.Sprintf("%d consecutive failures", result.Details.Performance.ConsecutiveFailures))
	}
	return strings.Join(notes, ", ")
}

func formatTokens(tokens float64, burst int) string {
	return fmt.Sprintf("%.1f/%d", tokens, burst)
}

func formatSuccessRate(rate float64) string {
	return fmt.Sprintf("%.0f%%", rate*100)
}

func formatResponseTime(d time.Duration) string {
	if d == 0 {
		return "-"
	}
	return d.Round(time.Millisecond).String()
}
