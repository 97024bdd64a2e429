// Package health probes providers on a schedule, caches results, and keeps a
// bounded per-provider history with rolling performance aggregates.
package health

import (
	"time"

	"github.com/ratelens/ratelens/internal/core"
)

const (
	// historyLimit bounds each provider's retained results.
	historyLimit = 100

	// rollingWindow is how many recent results feed the performance stats.
	rollingWindow = 10

	// latencyWindow is how many recent results feed the degraded-latency
	// signal in status derivation.
	latencyWindow = 5

	// degradedLatency is the trailing average response time above which an
	// otherwise healthy provider is classified degraded.
	degradedLatency = 10 * time.Second
)

// history is a bounded FIFO of probe results plus a lifetime counter.
// It is not safe for concurrent use; the Prober serializes access.
type history struct {
	results     []core.HealthCheckResult
	totalChecks int64
}

func (h *history) append(result core.HealthCheckResult) {
	h.results = append(h.results, result)
	if len(h.results) > historyLimit {
		h.results = h.results[1:]
	}
	h.totalChecks++
}

func (h *history) len() int {
	return len(h.results)
}

// snapshot returns a copy of the retained results, oldest first.
func (h *history) snapshot() []core.HealthCheckResult {
	out := make([]core.HealthCheckResult, len(h.results))
	copy(out, h.results)
	return out
}

// performance recomputes rolling aggregates: average response time and
// healthy fraction over the last rollingWindow entries, lifetime check count,
// and the unhealthy streak counting back from the most recent entry.
func (h *history) performance() core.PerformanceStats {
	stats := core.PerformanceStats{TotalChecks: h.totalChecks}
	if len(h.results) == 0 {
		return stats
	}

	window := h.results
	if len(window) > rollingWindow {
		window = window[len(window)-rollingWindow:]
	}

	var total time.Duration
	healthy := 0
	for _, r := range window {
		total += r.ResponseTime
		if r.Status == core.HealthStatusHealthy {
			healthy++
		}
	}
	stats.AverageResponseTime = total / time.Duration(len(window))
	stats.SuccessRate = float64(healthy) / float64(len(window))

	for i := len(h.results) - 1; i >= 0; i-- {
		if h.results[i].Status != core.HealthStatusUnhealthy {
			break
		}
		stats.ConsecutiveFailures++
	}

	return stats
}

// recentAverageResponseTime averages the response time of the last n results.
// Zero when no results are recorded.
func (h *history) recentAverageResponseTime(n int) time.Duration {
	if len(h.results) == 0 || n <= 0 {
		return 0
	}

	window := h.results
	if len(window) > n {
		window = window[len(window)-n:]
	}

	var total time.Duration
	for _, r := range window {
		total += r.ResponseTime
	}
	return total / time.Duration(len(window))
}
