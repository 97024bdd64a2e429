package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/ratelens/ratelens/internal/core"
)

type fakeClock struct {
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 8, 14, 10, 0, 0, 0, time.Local)}
}

func (f *fakeClock) Now() time.Time {
	return f.now
}

func (f *fakeClock) Advance(d time.Duration) {
	f.now = f.now.Add(d)
}

func newTestLimiter(cfg core.RateLimitConfig) (*Limiter, *fakeClock) {
	clock := newFakeClock()
	l := NewLimiter("test", cfg)
	l.clock = clock.Now
	l.lastRefill = clock.Now()
	l.quotaResetTime = nextLocalMidnight(clock.Now())
	return l, clock
}

func TestCheckLimitBurstDepletion(t *testing.T) {
	l, _ := newTestLimiter(core.RateLimitConfig{RequestsPerSecond: 1, BurstSize: 5})

	for i, want := range []float64{4, 3, 2, 1, 0} {
		result := l.CheckLimit()
		require.True(t, result.Allowed, "call %d", i+1)
		require.Equal(t, want, result.TokensRemaining, "call %d", i+1)
	}

	result := l.CheckLimit()
	require.False(t, result.Allowed)
	require.Greater(t, result.WaitTime, time.Duration(0))
	require.Equal(t, time.Second, result.WaitTime)
}

func TestRefillRestoresOneTokenPerInterval(t *testing.T) {
	l, clock := newTestLimiter(core.RateLimitConfig{RequestsPerSecond: 2, BurstSize: 4})

	for i := 0; i < 4; i++ {
		require.True(t, l.CheckLimit().Allowed)
	}
	require.False(t, l.CheckLimit().Allowed)

	// 1/rate seconds restores exactly one token.
	clock.Advance(500 * time.Millisecond)
	result := l.CheckLimit()
	require.True(t, result.Allowed)
	require.InDelta(t, 0, result.TokensRemaining, 1e-9)
}

func TestTokensStayWithinBounds(t *testing.T) {
	l, clock := newTestLimiter(core.RateLimitConfig{RequestsPerSecond: 10, BurstSize: 3})

	for i := 0; i < 20; i++ {
		l.CheckLimit()
		status := l.Status()
		require.GreaterOrEqual(t, status.Tokens, 0.0)
		require.LessOrEqual(t, status.Tokens, 3.0)
		clock.Advance(37 * time.Millisecond)
	}

	// Long idle must cap at burst, not accumulate past it.
	clock.Advance(time.Hour)
	require.Equal(t, 3.0, l.Status().Tokens)
}

func TestQuotaEnforcement(t *testing.T) {
	l, clock := newTestLimiter(core.RateLimitConfig{
		RequestsPerSecond: 100,
		BurstSize:         10,
		QuotaPerDay:       2,
	})

	require.True(t, l.CheckLimit().Allowed)
	require.True(t, l.CheckLimit().Allowed)

	result := l.CheckLimit()
	require.False(t, result.Allowed)
	require.Greater(t, result.Status.Tokens, 0.0, "denial must be quota-driven, not token-driven")
	require.Equal(t, nextLocalMidnight(clock.Now()).Sub(clock.Now()), result.WaitTime)

	quota := l.QuotaStatus()
	require.NotNil(t, quota)
	require.Equal(t, 2, quota.DailyLimit)
	require.Equal(t, 2, quota.UsedToday)
	require.Equal(t, 0, quota.Remaining)
	require.Equal(t, 100.0, quota.UsagePercentage)
}

func TestQuotaResetsAtLocalMidnight(t *testing.T) {
	l, clock := newTestLimiter(core.RateLimitConfig{
		RequestsPerSecond: 100,
		BurstSize:         10,
		QuotaPerDay:       1,
	})

	require.True(t, l.CheckLimit().Allowed)
	require.False(t, l.CheckLimit().Allowed)

	clock.Advance(nextLocalMidnight(clock.Now()).Sub(clock.Now()))
	result := l.CheckLimit()
	require.True(t, result.Allowed)

	quota := l.QuotaStatus()
	require.Equal(t, 1, quota.UsedToday)
	require.True(t, quota.ResetTime.After(clock.Now()))
}

func TestQuotaDisabledWhenUnset(t *testing.T) {
	l, _ := newTestLimiter(core.RateLimitConfig{RequestsPerSecond: 1, BurstSize: 2})

	require.Nil(t, l.QuotaStatus())
	result := l.CheckLimit()
	require.True(t, result.Allowed)
	require.Zero(t, result.Status.QuotaUsedToday)
}

func TestApplyPenaltyWithRetryAfter(t *testing.T) {
	l, _ := newTestLimiter(core.RateLimitConfig{
		RequestsPerSecond: 1,
		BurstSize:         5,
		BackoffOnLimit:    true,
	})

	l.ApplyPenalty(&core.PenaltyResponse{RetryAfter: 5 * time.Second})

	result := l.CheckLimit()
	require.False(t, result.Allowed)
	require.Equal(t, 5*time.Second, result.WaitTime)
	require.True(t, result.Status.IsLimited)
}

func TestApplyPenaltyDrainsTokens(t *testing.T) {
	l, _ := newTestLimiter(core.RateLimitConfig{
		RequestsPerSecond: 1,
		BurstSize:         8,
		BackoffOnLimit:    false,
	})

	l.ApplyPenalty(nil)
	status := l.Status()
	require.Equal(t, 3.0, status.Tokens)
	require.True(t, status.IsLimited)
	require.Nil(t, status.BackoffEndTime, "backoff disabled must not open a window")

	// Drains bottom out at zero, never negative.
	l.ApplyPenalty(nil)
	require.Equal(t, 0.0, l.Status().Tokens)
}

func TestApplyPenaltyExponentialBackoff(t *testing.T) {
	l, _ := newTestLimiter(core.RateLimitConfig{
		RequestsPerSecond: 100,
		BurstSize:         10,
		BackoffOnLimit:    true,
		MaxBackoffDelay:   time.Minute,
	})

	// Two requests this period: backoff = 1s * 2^2.
	require.True(t, l.CheckLimit().Allowed)
	require.True(t, l.CheckLimit().Allowed)
	l.ApplyPenalty(nil)

	result := l.CheckLimit()
	require.False(t, result.Allowed)
	require.Equal(t, 4*time.Second, result.WaitTime)
}

func TestApplyPenaltyBackoffCapped(t *testing.T) {
	l, _ := newTestLimiter(core.RateLimitConfig{
		RequestsPerSecond: 1000,
		BurstSize:         100,
		BackoffOnLimit:    true,
		MaxBackoffDelay:   10 * time.Second,
	})

	for i := 0; i < 40; i++ {
		l.CheckLimit()
	}
	l.ApplyPenalty(nil)

	result := l.CheckLimit()
	require.False(t, result.Allowed)
	require.Equal(t, 10*time.Second, result.WaitTime)
}

func TestSustainedQuietClearsBackoff(t *testing.T) {
	l, clock := newTestLimiter(core.RateLimitConfig{
		RequestsPerSecond: 1,
		BurstSize:         5,
		BackoffOnLimit:    true,
	})

	l.ApplyPenalty(&core.PenaltyResponse{RetryAfter: time.Hour})
	require.False(t, l.CheckLimit().Allowed)

	clock.Advance(recoveryQuiet + time.Second)
	result := l.CheckLimit()
	require.True(t, result.Allowed)
	require.False(t, result.Status.IsLimited)
	require.Nil(t, result.Status.BackoffEndTime)
}

func TestResetRestoresTokensButKeepsQuota(t *testing.T) {
	l, _ := newTestLimiter(core.RateLimitConfig{
		RequestsPerSecond: 100,
		BurstSize:         5,
		QuotaPerDay:       100,
		BackoffOnLimit:    true,
	})

	require.True(t, l.CheckLimit().Allowed)
	require.True(t, l.CheckLimit().Allowed)
	l.ApplyPenalty(nil)

	l.Reset()
	status := l.Status()
	require.Equal(t, 5.0, status.Tokens)
	require.Zero(t, status.RequestsInPeriod)
	require.False(t, status.IsLimited)
	require.Nil(t, status.BackoffEndTime)
	require.Equal(t, 2, status.QuotaUsedToday)
}

func TestUpdateConfigClampsTokens(t *testing.T) {
	l, _ := newTestLimiter(core.RateLimitConfig{RequestsPerSecond: 1, BurstSize: 10})

	burst := 3
	l.UpdateConfig(core.RateLimitConfigUpdate{BurstSize: &burst})

	status := l.Status()
	require.Equal(t, 3, status.BurstSize)
	require.Equal(t, 3.0, status.Tokens)
}

func TestWaitForSlotAdmitsAfterRefill(t *testing.T) {
	l := NewLimiter("test", core.RateLimitConfig{RequestsPerSecond: 200, BurstSize: 1})

	require.True(t, l.CheckLimit().Allowed)

	start := time.Now()
	result, err := l.WaitForSlot(context.Background())
	require.NoError(t, err)
	require.True(t, result.Allowed)
	require.Less(t, time.Since(start), time.Second)
}

func TestWaitForSlotHonorsCancellation(t *testing.T) {
	l := NewLimiter("test", core.RateLimitConfig{
		RequestsPerSecond: 0.001,
		BurstSize:         1,
		BackoffOnLimit:    true,
	})
	require.True(t, l.CheckLimit().Allowed)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	result, err := l.WaitForSlot(ctx)
	require.ErrorIs(t, err, context.DeadlineExceeded)
	require.False(t, result.Allowed)
}

func TestMergeConfigDefaults(t *testing.T) {
	l := NewLimiter("test", core.RateLimitConfig{})
	cfg := l.Config()
	require.Equal(t, DefaultConfig().RequestsPerSecond, cfg.RequestsPerSecond)
	require.Equal(t, DefaultConfig().BurstSize, cfg.BurstSize)
	require.Equal(t, DefaultConfig().MaxBackoffDelay, cfg.MaxBackoffDelay)
}
