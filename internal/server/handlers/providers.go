package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/ratelens/ratelens/internal/core"
	"github.com/ratelens/ratelens/internal/core/health"
	apperrors "github.com/ratelens/ratelens/internal/errors"
)

// ProviderService is the slice of the engine the provider endpoints need.
type ProviderService interface {
	Statuses() []core.RateLimitStatus
	Quotas() []core.QuotaStatus
	Probe(ctx context.Context, id string) (core.HealthCheckResult, error)
	History(id string) []core.HealthCheckResult
}

// Providers serves the provider admission and health endpoints.
type Providers struct {
	Service ProviderService
}

// StatusHandler returns limiter snapshots for all providers.
func (h *Providers) StatusHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, h.Service.Statuses())
}

// QuotaHandler returns quota snapshots for providers with a daily quota.
func (h *Providers) QuotaHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, h.Service.Quotas())
}

// HealthHandler probes one provider and returns the result. Within the cache
// window this serves the last recorded probe.
func (h *Providers) HealthHandler(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	result, err := h.Service.Probe(r.Context(), id)
	if err != nil {
		if errors.Is(err, health.ErrProviderNotFound) {
			respondWithError(w, r, apperrors.NewNotFoundError("unknown provider: "+id))
			return
		}
		respondWithError(w, r, apperrors.WrapInternal(r.Context(), err, "health check failed"))
		return
	}

	writeJSON(w, result)
}

// HistoryHandler returns the recorded probe history for one provider, oldest
// first.
func (h *Providers) HistoryHandler(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	history := h.Service.History(id)
	if history == nil {
		respondWithError(w, r, apperrors.NewNotFoundError("unknown provider: "+id))
		return
	}

	writeJSON(w, history)
}

func writeJSON(w http.ResponseWriter, value any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(value)
}
