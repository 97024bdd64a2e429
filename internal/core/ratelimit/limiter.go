// Package ratelimit provides per-provider admission control: a token-bucket
// limiter with daily quota tracking and penalty-driven backoff, and a
// coordinator that owns one limiter per registered provider.
package ratelimit

import (
	"context"
	"math"
	"sync"
	"time"

	"github.com/ratelens/ratelens/internal/core"
)

const (
	// baseBackoff seeds the exponential backoff applied on penalties without
	// a Retry-After hint.
	baseBackoff = time.Second

	// recoveryQuiet is the idle span after which a limited provider is
	// considered recovered: sustained silence clears the backoff window.
	recoveryQuiet = 5 * time.Second

	// penaltyTokenDrain is the number of tokens drained immediately on a
	// penalty, independent of the backoff window.
	penaltyTokenDrain = 5

	// waitSlice bounds each sleep inside WaitForSlot so cancellation and
	// quota-midnight rollovers are observed promptly.
	waitSlice = time.Second
)

// DefaultConfig returns the limiter defaults merged into provider configs at
// registration time.
func DefaultConfig() core.RateLimitConfig {
	return core.RateLimitConfig{
		RequestsPerSecond: 2,
		BurstSize:         5,
		BackoffOnLimit:    true,
		MaxBackoffDelay:   time.Minute,
	}
}

// Limiter is a token-bucket admission controller for a single provider.
// It owns its state exclusively; all methods are safe for concurrent use.
type Limiter struct {
	mu       sync.Mutex
	provider string
	cfg      core.RateLimitConfig
	clock    func() time.Time

	tokens           float64
	lastRefill       time.Time
	requestsInPeriod int
	quotaUsedToday   int
	quotaResetTime   time.Time
	isLimited        bool
	backoffEndTime   *time.Time
}

// NewLimiter creates a limiter for the named provider. Zero config fields
// fall back to DefaultConfig values.
func NewLimiter(provider string, cfg core.RateLimitConfig) *Limiter {
	cfg = mergeConfig(DefaultConfig(), cfg)
	l := &Limiter{
		provider: provider,
		cfg:      cfg,
		clock:    time.Now,
		tokens:   float64(cfg.BurstSize),
	}
	now := l.clock()
	l.lastRefill = now
	l.quotaResetTime = nextLocalMidnight(now)
	return l
}

// CheckLimit refills the bucket and decides whether one request may proceed
// now. Denial is a normal result, never an error.
func (l *Limiter) CheckLimit() core.RateLimitResult {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.clock()
	l.refill(now)

	if l.backoffEndTime != nil && now.Before(*l.backoffEndTime) {
		return l.deny(l.backoffEndTime.Sub(now))
	}

	if l.cfg.QuotaPerDay > 0 && l.quotaUsedToday >= l.cfg.QuotaPerDay {
		return l.deny(l.quotaResetTime.Sub(now))
	}

	if l.tokens < 1 {
		waitMS := math.Ceil((1 - l.tokens) * 1000 / l.cfg.RequestsPerSecond)
		return l.deny(time.Duration(waitMS) * time.Millisecond)
	}

	l.tokens--
	l.requestsInPeriod++
	if l.cfg.QuotaPerDay > 0 {
		l.quotaUsedToday++
	}

	return core.RateLimitResult{
		Allowed:         true,
		TokensRemaining: l.tokens,
		Status:          l.statusLocked(),
	}
}

// WaitForSlot blocks until a request is admitted or the context is canceled.
// It polls in bounded slices rather than taking one long sleep, so external
// cancellation, config updates, and quota-midnight resets are not overslept.
func (l *Limiter) WaitForSlot(ctx context.Context) (core.RateLimitResult, error) {
	if ctx == nil {
		ctx = context.Background()
	}

	for {
		result := l.CheckLimit()
		if result.Allowed {
			return result, nil
		}

		sleep := result.WaitTime
		if sleep > waitSlice {
			sleep = waitSlice
		}
		if sleep <= 0 {
			sleep = time.Millisecond
		}

		timer := time.NewTimer(sleep)
		select {
		case <-ctx.Done():
			timer.Stop()
			return result, ctx.Err()
		case <-timer.C:
		}
	}
}

// ApplyPenalty records an external rate-limit signal (typically a 429).
// The limiter is marked limited, up to five tokens are drained immediately,
// and, when backoff is enabled, a backoff window opens: the provider's
// Retry-After hint when present, exponential otherwise.
func (l *Limiter) ApplyPenalty(resp *core.PenaltyResponse) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.clock()
	l.isLimited = true
	l.tokens = math.Max(0, l.tokens-math.Min(penaltyTokenDrain, l.tokens))

	if !l.cfg.BackoffOnLimit {
		return
	}

	var delay time.Duration
	if resp != nil && resp.RetryAfter > 0 {
		delay = resp.RetryAfter
	} else {
		delay = l.exponentialBackoff()
	}

	end := now.Add(delay)
	l.backoffEndTime = &end
}

// Reset restores the bucket to full capacity and clears period counters and
// backoff flags. Quota counters are untouched: quota tracks calendar usage,
// not limiter resets.
func (l *Limiter) Reset() {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.tokens = float64(l.cfg.BurstSize)
	l.lastRefill = l.clock()
	l.requestsInPeriod = 0
	l.isLimited = false
	l.backoffEndTime = nil
}

// Status returns a snapshot of the limiter's current state.
func (l *Limiter) Status() core.RateLimitStatus {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.refill(l.clock())
	return l.statusLocked()
}

// QuotaStatus returns the daily quota snapshot, or nil when no quota is
// configured.
func (l *Limiter) QuotaStatus() *core.QuotaStatus {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.cfg.QuotaPerDay <= 0 {
		return nil
	}

	l.refill(l.clock())

	remaining := l.cfg.QuotaPerDay - l.quotaUsedToday
	if remaining < 0 {
		remaining = 0
	}

	return &core.QuotaStatus{
		Provider:        l.provider,
		DailyLimit:      l.cfg.QuotaPerDay,
		UsedToday:       l.quotaUsedToday,
		Remaining:       remaining,
		ResetTime:       l.quotaResetTime,
		UsagePercentage: float64(l.quotaUsedToday) / float64(l.cfg.QuotaPerDay) * 100,
	}
}

// UpdateConfig applies a partial config change. Token count is clamped when
// the burst size shrinks.
func (l *Limiter) UpdateConfig(update core.RateLimitConfigUpdate) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if update.RequestsPerSecond != nil && *update.RequestsPerSecond > 0 {
		l.cfg.RequestsPerSecond = *update.RequestsPerSecond
	}
	if update.BurstSize != nil && *update.BurstSize > 0 {
		l.cfg.BurstSize = *update.BurstSize
		if l.tokens > float64(l.cfg.BurstSize) {
			l.tokens = float64(l.cfg.BurstSize)
		}
	}
	if update.QuotaPerDay != nil {
		l.cfg.QuotaPerDay = *update.QuotaPerDay
	}
	if update.BackoffOnLimit != nil {
		l.cfg.BackoffOnLimit = *update.BackoffOnLimit
	}
	if update.MaxBackoffDelay != nil && *update.MaxBackoffDelay > 0 {
		l.cfg.MaxBackoffDelay = *update.MaxBackoffDelay
	}
	if update.EnableAdaptiveLimiting != nil {
		l.cfg.EnableAdaptiveLimiting = *update.EnableAdaptiveLimiting
	}
}

// Config returns a copy of the limiter's effective configuration.
func (l *Limiter) Config() core.RateLimitConfig {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.cfg
}

// refill adds tokens for elapsed wall time, rolls the daily quota at local
// midnight, and treats sustained quiet as recovery from a backoff window.
// Callers must hold the mutex.
func (l *Limiter) refill(now time.Time) {
	elapsed := now.Sub(l.lastRefill)
	l.lastRefill = now

	if elapsed > 0 {
		l.tokens += elapsed.Seconds() * l.cfg.RequestsPerSecond
		if l.tokens > float64(l.cfg.BurstSize) {
			l.tokens = float64(l.cfg.BurstSize)
		}
	}

	if elapsed > recoveryQuiet {
		l.isLimited = false
		l.backoffEndTime = nil
	}

	if !now.Before(l.quotaResetTime) {
		l.quotaUsedToday = 0
		l.quotaResetTime = nextLocalMidnight(now)
	}
}

func (l *Limiter) deny(wait time.Duration) core.RateLimitResult {
	if wait < 0 {
		wait = 0
	}
	return core.RateLimitResult{
		Allowed:         false,
		TokensRemaining: l.tokens,
		WaitTime:        wait,
		Status:          l.statusLocked(),
	}
}

func (l *Limiter) statusLocked() core.RateLimitStatus {
	status := core.RateLimitStatus{
		Provider:          l.provider,
		Tokens:            l.tokens,
		BurstSize:         l.cfg.BurstSize,
		RequestsPerSecond: l.cfg.RequestsPerSecond,
		RequestsInPeriod:  l.requestsInPeriod,
		IsLimited:         l.isLimited,
		QuotaPerDay:       l.cfg.QuotaPerDay,
		QuotaUsedToday:    l.quotaUsedToday,
		MaxBackoffDelay:   l.cfg.MaxBackoffDelay,
		AdaptiveLimiting:  l.cfg.EnableAdaptiveLimiting,
	}
	if l.backoffEndTime != nil {
		end := *l.backoffEndTime
		status.BackoffEndTime = &end
	}
	if l.cfg.QuotaPerDay > 0 {
		reset := l.quotaResetTime
		status.QuotaResetTime = &reset
	}
	return status
}

// exponentialBackoff doubles per request seen this period, capped at the
// configured maximum. Callers must hold the mutex.
func (l *Limiter) exponentialBackoff() time.Duration {
	max := l.cfg.MaxBackoffDelay
	if max <= 0 {
		max = DefaultConfig().MaxBackoffDelay
	}

	// 2^30s already exceeds any sane cap; avoid shifting into overflow.
	shift := l.requestsInPeriod
	if shift > 30 {
		return max
	}

	delay := baseBackoff << shift
	if delay > max || delay <= 0 {
		delay = max
	}
	return delay
}

func mergeConfig(defaults, cfg core.RateLimitConfig) core.RateLimitConfig {
	if cfg.RequestsPerSecond <= 0 {
		cfg.RequestsPerSecond = defaults.RequestsPerSecond
	}
	if cfg.BurstSize <= 0 {
		cfg.BurstSize = defaults.BurstSize
	}
	if cfg.MaxBackoffDelay <= 0 {
		cfg.MaxBackoffDelay = defaults.MaxBackoffDelay
	}
	return cfg
}

// nextLocalMidnight returns the first instant of the next calendar day in
// the supplied time's location.
func nextLocalMidnight(now time.Time) time.Time {
	year, month, day := now.Date()
	return time.Date(year, month, day+1, 0, 0, 0, 0, now.Location())
}
