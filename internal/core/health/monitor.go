package health

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/ratelens/ratelens/internal/provider"
)

// StartMonitoring launches a periodic probe loop for every registered
// provider. Idempotent while already active.
func (p *Prober) StartMonitoring() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.monitoring || p.destroyed {
		return
	}
	p.monitoring = true
	for _, id := range p.order {
		p.startMonitorLocked(id)
	}
}

// StopMonitoring cancels all provider timers. Registered providers, cached
// results, and histories are kept.
func (p *Prober) StopMonitoring() {
	p.mu.Lock()
	if !p.monitoring {
		p.mu.Unlock()
		return
	}
	p.monitoring = false
	for id, cancel := range p.monitors {
		cancel()
		delete(p.monitors, id)
	}
	p.mu.Unlock()

	p.wg.Wait()
}

// Destroy stops monitoring and releases all provider state. The prober must
// not be used afterwards.
func (p *Prober) Destroy() {
	p.mu.Lock()
	p.destroyed = true
	p.monitoring = false
	for id, cancel := range p.monitors {
		cancel()
		delete(p.monitors, id)
	}
	p.providers = make(map[string]provider.Probeable)
	p.mu.Unlock()

	p.wg.Wait()

	p.mu.Lock()
	p.order = nil
	p.cache = nil
	p.histories = nil
	p.mu.Unlock()
}

// Monitoring reports whether periodic probing is active.
func (p *Prober) Monitoring() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.monitoring
}

// startMonitorLocked starts one provider's probe loop. Caller holds p.mu.
func (p *Prober) startMonitorLocked(id string) {
	if _, running := p.monitors[id]; running {
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	p.monitors[id] = cancel
	interval := p.cfg.CheckInterval

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if _, err := p.CheckProviderHealth(ctx, id); err != nil {
					p.logger.Warn("periodic health check failed",
						zap.String("provider", id),
						zap.Error(err))
				}
			}
		}
	}()
}
