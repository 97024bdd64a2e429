package core

import "time"

// HealthStatus classifies a provider's health.
type HealthStatus string

const (
	HealthStatusHealthy   HealthStatus = "healthy"
	HealthStatusDegraded  HealthStatus = "degraded"
	HealthStatusUnhealthy HealthStatus = "unhealthy"
)

// RateLimitConfig configures a provider's admission limiter.
type RateLimitConfig struct {
	// RequestsPerSecond is the token refill rate.
	RequestsPerSecond float64 `json:"requests_per_second" mapstructure:"requests_per_second"`

	// BurstSize is the bucket capacity.
	BurstSize int `json:"burst_size" mapstructure:"burst_size"`

	// QuotaPerDay caps calendar-day request count. Zero disables quota tracking.
	QuotaPerDay int `json:"quota_per_day,omitempty" mapstructure:"quota_per_day"`

	// BackoffOnLimit enables a backoff window when a penalty is applied.
	BackoffOnLimit bool `json:"backoff_on_limit" mapstructure:"backoff_on_limit"`

	// MaxBackoffDelay caps the exponential backoff duration.
	MaxBackoffDelay time.Duration `json:"max_backoff_delay" mapstructure:"max_backoff_delay"`

	// EnableAdaptiveLimiting is reserved for a future limiter mode. It is
	// decoded and surfaced in status but never acted upon.
	EnableAdaptiveLimiting bool `json:"enable_adaptive_limiting,omitempty" mapstructure:"enable_adaptive_limiting"`
}

// RateLimitConfigUpdate carries a partial limiter config change.
// Nil fields leave the current value untouched.
type RateLimitConfigUpdate struct {
	RequestsPerSecond      *float64       `json:"requests_per_second,omitempty"`
	BurstSize              *int           `json:"burst_size,omitempty"`
	QuotaPerDay            *int           `json:"quota_per_day,omitempty"`
	BackoffOnLimit         *bool          `json:"backoff_on_limit,omitempty"`
	MaxBackoffDelay        *time.Duration `json:"max_backoff_delay,omitempty"`
	EnableAdaptiveLimiting *bool          `json:"enable_adaptive_limiting,omitempty"`
}

// PenaltyResponse carries the rate-limit signal reported back after a
// provider call was rejected (typically a 429).
type PenaltyResponse struct {
	// RetryAfter is the provider-supplied backoff hint, usually parsed from a
	// Retry-After header. Zero means no hint was given.
	RetryAfter time.Duration `json:"retry_after,omitempty"`
}

// RateLimitStatus is a point-in-time snapshot of a limiter's state.
type RateLimitStatus struct {
	Provider          string        `json:"provider"`
	Tokens            float64       `json:"tokens"`
	BurstSize         int           `json:"burst_size"`
	RequestsPerSecond float64       `json:"requests_per_second"`
	RequestsInPeriod  int           `json:"requests_in_period"`
	IsLimited         bool          `json:"is_limited"`
	BackoffEndTime    *time.Time    `json:"backoff_end_time,omitempty"`
	QuotaPerDay       int           `json:"quota_per_day,omitempty"`
	QuotaUsedToday    int           `json:"quota_used_today,omitempty"`
	QuotaResetTime    *time.Time    `json:"quota_reset_time,omitempty"`
	MaxBackoffDelay   time.Duration `json:"max_backoff_delay,omitempty"`
	AdaptiveLimiting  bool          `json:"adaptive_limiting,omitempty"`
}

// RateLimitResult reports a single admission decision.
type RateLimitResult struct {
	Allowed         bool            `json:"allowed"`
	TokensRemaining float64         `json:"tokens_remaining"`
	WaitTime        time.Duration   `json:"wait_time"`
	Status          RateLimitStatus `json:"status"`
}

// QuotaStatus is a derived snapshot of a provider's daily quota.
type QuotaStatus struct {
	Provider        string    `json:"provider"`
	DailyLimit      int       `json:"daily_limit"`
	UsedToday       int       `json:"used_today"`
	Remaining       int       `json:"remaining"`
	ResetTime       time.Time `json:"reset_time"`
	UsagePercentage float64   `json:"usage_percentage"`
}

// HealthCheckConfig controls probe scheduling, timeouts, and result caching.
type HealthCheckConfig struct {
	CheckInterval time.Duration `json:"check_interval" mapstructure:"check_interval"`
	Timeout       time.Duration `json:"timeout" mapstructure:"timeout"`

	// FailureThreshold is advisory: it is surfaced to callers deciding when a
	// streak of failures warrants removing a provider, but the prober itself
	// never acts on it.
	FailureThreshold int `json:"failure_threshold" mapstructure:"failure_threshold"`

	EnableDetailedChecks bool          `json:"enable_detailed_checks" mapstructure:"enable_detailed_checks"`
	EnableCaching        bool          `json:"enable_caching" mapstructure:"enable_caching"`
	CacheDuration        time.Duration `json:"cache_duration" mapstructure:"cache_duration"`
}

// HealthCheckConfigUpdate carries a partial prober config change.
type HealthCheckConfigUpdate struct {
	CheckInterval        *time.Duration `json:"check_interval,omitempty"`
	Timeout              *time.Duration `json:"timeout,omitempty"`
	FailureThreshold     *int           `json:"failure_threshold,omitempty"`
	EnableDetailedChecks *bool          `json:"enable_detailed_checks,omitempty"`
	EnableCaching        *bool          `json:"enable_caching,omitempty"`
	CacheDuration        *time.Duration `json:"cache_duration,omitempty"`
}

// PerformanceStats aggregates rolling probe performance for a provider.
type PerformanceStats struct {
	AverageResponseTime time.Duration `json:"average_response_time"`
	SuccessRate         float64       `json:"success_rate"`
	TotalChecks         int64         `json:"total_checks"`
	ConsecutiveFailures int           `json:"consecutive_failures"`
}

// HealthDetails breaks a probe result into its component signals.
type HealthDetails struct {
	Authentication    bool             `json:"authentication"`
	Connectivity      bool             `json:"connectivity"`
	EndpointAvailable bool             `json:"endpoint_available"`
	ServiceSpecific   map[string]any   `json:"service_specific,omitempty"`
	Performance       PerformanceStats `json:"performance"`
}

// HealthCheckResult reports a single probe of a provider.
type HealthCheckResult struct {
	Provider     string        `json:"provider"`
	Status       HealthStatus  `json:"status"`
	ResponseTime time.Duration `json:"response_time"`
	LastCheck    time.Time     `json:"last_check"`
	Details      HealthDetails `json:"details"`
	Error        string        `json:"error,omitempty"`
}
