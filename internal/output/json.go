package output

import (
	"encoding/json"

	"github.com/ratelens/ratelens/internal/core"
)

// JSONFormatter renders snapshots as JSON.
type JSONFormatter struct {
	Indent bool
}

// FormatStatuses renders limiter snapshots as JSON.
func (f *JSONFormatter) FormatStatuses(statuses []core.RateLimitStatus) (string, error) {
	return f.marshal(statuses)
}

// FormatQuotas renders daily quota snapshots as JSON.
func (f *JSONFormatter) FormatQuotas(quotas []core.QuotaStatus) (string, error) {
	return f.marshal(quotas)
}

// FormatHealth renders probe results as JSON.
func (f *JSONFormatter) FormatHealth(results []core.HealthCheckResult) (string, error) {
	return f.marshal(results)
}

func (f *JSONFormatter) marshal(value any) (string, error) {
	var (
		data []byte
		err  error
	)

	if f.Indent {
		data, err = json.MarshalIndent(value, "", "  ")
	} else {
		data, err = json.Marshal(value)
	}
	if err != nil {
		return "", err
	}

	return string(data), nil
}
