package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/ratelens/ratelens/internal/core"
)

// ErrProviderNotFound reports a rate-limit operation against an unregistered
// provider id.
var ErrProviderNotFound = errors.New("provider not registered")

// Coordinator owns one Limiter per registered provider and applies selection
// policies across them. Providers are iterated in registration order.
type Coordinator struct {
	mu       sync.RWMutex
	limiters map[string]*Limiter
	order    []string
	defaults core.RateLimitConfig
}

// NewCoordinator creates an empty coordinator. The supplied defaults are
// merged into each provider's config at registration; zero-value defaults
// fall back to DefaultConfig.
func NewCoordinator(defaults core.RateLimitConfig) *Coordinator {
	return &Coordinator{
		limiters: make(map[string]*Limiter),
		defaults: mergeConfig(DefaultConfig(), defaults),
	}
}

// AddProvider registers a provider and creates its limiter. Re-registering
// an existing id replaces its limiter and resets its state.
func (c *Coordinator) AddProvider(id string, cfg core.RateLimitConfig) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.limiters[id]; !exists {
		c.order = append(c.order, id)
	}
	c.limiters[id] = NewLimiter(id, mergeConfig(c.defaults, cfg))
}

// RemoveProvider drops a provider and its limiter state.
func (c *Coordinator) RemoveProvider(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.limiters[id]; !exists {
		return
	}
	delete(c.limiters, id)
	for i, existing := range c.order {
		if existing == id {
			c.order = append(c.order[:i], c.order[i+1:]...)
			break
		}
	}
}

// Providers returns registered provider ids in registration order.
func (c *Coordinator) Providers() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	ids := make([]string, len(c.order))
	copy(ids, c.order)
	return ids
}

// CheckLimit runs an admission check for the provider.
func (c *Coordinator) CheckLimit(id string) (core.RateLimitResult, error) {
	limiter, err := c.limiter(id)
	if err != nil {
		return core.RateLimitResult{}, err
	}
	return limiter.CheckLimit(), nil
}

// WaitForSlot blocks until the provider admits a request or the context is
// canceled.
func (c *Coordinator) WaitForSlot(ctx context.Context, id string) (core.RateLimitResult, error) {
	limiter, err := c.limiter(id)
	if err != nil {
		return core.RateLimitResult{}, err
	}
	return limiter.WaitForSlot(ctx)
}

// ApplyPenalty reports a rate-limit signal for the provider. Unknown ids are
// a deliberate no-op: penalties arriving after a provider was removed must
// not resurrect it, and the hot path stays robust.
func (c *Coordinator) ApplyPenalty(id string, resp *core.PenaltyResponse) {
	limiter, err := c.limiter(id)
	if err != nil {
		return
	}
	limiter.ApplyPenalty(resp)
}

// UpdateProviderConfig applies a partial config change to one provider.
func (c *Coordinator) UpdateProviderConfig(id string, update core.RateLimitConfigUpdate) error {
	limiter, err := c.limiter(id)
	if err != nil {
		return err
	}
	limiter.UpdateConfig(update)
	return nil
}

// Status returns one provider's limiter snapshot.
func (c *Coordinator) Status(id string) (core.RateLimitStatus, error) {
	limiter, err := c.limiter(id)
	if err != nil {
		return core.RateLimitStatus{}, err
	}
	return limiter.Status(), nil
}

// AllStatus returns limiter snapshots keyed by provider id.
func (c *Coordinator) AllStatus() map[string]core.RateLimitStatus {
	c.mu.RLock()
	defer c.mu.RUnlock()

	all := make(map[string]core.RateLimitStatus, len(c.limiters))
	for id, limiter := range c.limiters {
		all[id] = limiter.Status()
	}
	return all
}

// AllQuotaStatus returns quota snapshots for providers that have a quota
// configured.
func (c *Coordinator) AllQuotaStatus() map[string]core.QuotaStatus {
	c.mu.RLock()
	defer c.mu.RUnlock()

	all := make(map[string]core.QuotaStatus)
	for id, limiter := range c.limiters {
		if quota := limiter.QuotaStatus(); quota != nil {
			all[id] = *quota
		}
	}
	return all
}

// AvailableProvider returns the first registered provider that is currently
// eligible: not limited, holding at least one token, with quota remaining.
// The second return is false when no provider qualifies.
func (c *Coordinator) AvailableProvider() (string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	for _, id := range c.order {
		if eligible(c.limiters[id].Status()) {
			return id, true
		}
	}
	return "", false
}

// BestProvider returns the eligible provider with the strictly greatest token
// count. Earlier registrations win ties.
func (c *Coordinator) BestProvider() (string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	best := ""
	bestTokens := -1.0
	for _, id := range c.order {
		status := c.limiters[id].Status()
		if !eligible(status) {
			continue
		}
		if status.Tokens > bestTokens {
			best = id
			bestTokens = status.Tokens
		}
	}
	return best, best != ""
}

// ResetAll restores every limiter to full capacity. Quota counters survive,
// as with Limiter.Reset.
func (c *Coordinator) ResetAll() {
	c.mu.RLock()
	defer c.mu.RUnlock()

	for _, limiter := range c.limiters {
		limiter.Reset()
	}
}

func (c *Coordinator) limiter(id string) (*Limiter, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	limiter, ok := c.limiters[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrProviderNotFound, id)
	}
	return limiter, nil
}

func eligible(status core.RateLimitStatus) bool {
	if status.IsLimited || status.Tokens <= 0 {
		return false
	}
	if status.QuotaPerDay > 0 && status.QuotaUsedToday >= status.QuotaPerDay {
		return false
	}
	return true
}
