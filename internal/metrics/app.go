package metrics

import (
	"time"

	"github.com/ratelens/ratelens/internal/observability"
)

// Application-level metrics following Prometheus conventions
var (
	// Admission metrics
	AdmissionsTotal = "app_admissions_total"
	PenaltiesTotal  = "app_penalties_total"
	WaitDuration    = "app_admission_wait_duration_ms"

	// Connection metrics
	ActiveConnections = "app_active_connections"

	// Health check metrics
	HealthCheckTotal    = "app_health_check_total"
	HealthCheckDuration = "app_health_check_duration_ms"

	// Server lifecycle metrics
	ServerStartTime = "app_server_start_time_seconds"
	ServerUptime    = "app_server_uptime_seconds"
)

// RecordAdmission records one admission decision for a provider
func RecordAdmission(provider string, allowed bool) {
	status := "allowed"
	if !allowed {
		status = "denied"
	}

	if observability.TelemetrySystem != nil {
		_ = observability.TelemetrySystem.Counter(
			AdmissionsTotal,
			1,
			map[string]string{
				"provider": provider,
				"status":   status,
			},
		)
	}
}

// RecordPenalty records a rate-limit penalty applied to a provider
func RecordPenalty(provider string) {
	if observability.TelemetrySystem != nil {
		_ = observability.TelemetrySystem.Counter(
			PenaltiesTotal,
			1,
			map[string]string{
				"provider": provider,
			},
		)
	}
}

// RecordWait records how long a caller blocked waiting for an admission slot
func RecordWait(provider string, duration time.Duration) {
	if observability.TelemetrySystem != nil {
		_ = observability.TelemetrySystem.Histogram(
			WaitDuration,
			duration,
			map[string]string{
				"provider": provider,
			},
		)
	}
}

// SetActiveConnections sets the current number of active connections
func SetActiveConnections(count int64) {
	if observability.TelemetrySystem != nil {
		_ = observability.TelemetrySystem.Gauge(
			ActiveConnections,
			float64(count),
			nil,
		)
	}
}

// RecordHealthCheck records a health check execution
func RecordHealthCheck(provider string, status string, duration time.Duration) {
	if observability.TelemetrySystem != nil {
		_ = observability.TelemetrySystem.Counter(
			HealthCheckTotal,
			1,
			map[string]string{
				"provider": provider,
				"status":   status,
			},
		)

		_ = observability.TelemetrySystem.Histogram(
			HealthCheckDuration,
			duration,
			map[string]string{
				"provider": provider,
			},
		)
	}
}

// SetServerStartTime records the server start time (Unix timestamp)
func SetServerStartTime(timestamp int64) {
	if observability.TelemetrySystem != nil {
		_ = observability.TelemetrySystem.Gauge(
			ServerStartTime,
			float64(timestamp),
			nil,
		)
	}
}

// SetServerUptime records the server uptime in seconds
func SetServerUptime(seconds int64) {
	if observability.TelemetrySystem != nil {
		_ = observability.TelemetrySystem.Gauge(
			ServerUptime,
			float64(seconds),
			nil,
		)
	}
}
