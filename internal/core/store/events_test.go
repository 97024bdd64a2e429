//go:build cgo

package store

import (
	"context"
	"testing"
	"time"

	"github.com/ratelens/ratelens/internal/config"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()

	ctx := context.Background()
	store, err := Open(ctx, config.StoreConfig{Driver: "libsql", Path: ":memory:"})
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	require.NoError(t, store.Migrate(ctx))
	return store
}

func TestAppendAndRecentEvents(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	penalty := &Event{
		Type:     EventPenaltyApplied,
		Provider: "upstream",
		Detail:   map[string]any{"retry_after": "5s"},
	}
	require.NoError(t, store.AppendEvent(ctx, penalty))
	require.NotZero(t, penalty.ID)
	require.NotEmpty(t, penalty.RequestID)
	require.False(t, penalty.CreatedAt.IsZero())

	probe := &Event{
		Type:      EventProbeCompleted,
		Provider:  "registry",
		Detail:    map[string]any{"status": "healthy"},
		CreatedAt: penalty.CreatedAt.Add(time.Second),
	}
	require.NoError(t, store.AppendEvent(ctx, probe))

	events, err := store.RecentEvents(ctx, "", 10)
	require.NoError(t, err)
	require.Len(t, events, 2)
	require.Equal(t, EventProbeCompleted, events[0].Type)
	require.Equal(t, EventPenaltyApplied, events[1].Type)
	require.Equal(t, "5s", events[1].Detail["retry_after"])
}

func TestRecentEventsFilterByProvider(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	for _, provider := range []string{"a", "b", "a"} {
		require.NoError(t, store.AppendEvent(ctx, &Event{
			Type:     EventAdmissionDenied,
			Provider: provider,
		}))
	}

	events, err := store.RecentEvents(ctx, "a", 10)
	require.NoError(t, err)
	require.Len(t, events, 2)
	for _, event := range events {
		require.Equal(t, "a", event.Provider)
	}
}

func TestRecentEventsLimit(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	base := time.Now().UTC().Add(-time.Hour)
	for i := 0; i < 5; i++ {
		require.NoError(t, store.AppendEvent(ctx, &Event{
			Type:      EventLimiterReset,
			Provider:  "upstream",
			CreatedAt: base.Add(time.Duration(i) * time.Minute),
		}))
	}

	events, err := store.RecentEvents(ctx, "upstream", 3)
	require.NoError(t, err)
	require.Len(t, events, 3)
	// Newest first.
	require.True(t, events[0].CreatedAt.After(events[2].CreatedAt))
}

func TestAppendEventValidation(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	require.Error(t, store.AppendEvent(ctx, nil))
	require.Error(t, store.AppendEvent(ctx, &Event{Provider: "upstream"}))
	require.Error(t, store.AppendEvent(ctx, &Event{Type: EventProbeCompleted}))
}

func TestPruneEvents(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	old := time.Now().UTC().Add(-48 * time.Hour)
	require.NoError(t, store.AppendEvent(ctx, &Event{
		Type:      EventProbeCompleted,
		Provider:  "upstream",
		CreatedAt: old,
	}))
	require.NoError(t, store.AppendEvent(ctx, &Event{
		Type:     EventProbeCompleted,
		Provider: "upstream",
	}))

	removed, err := store.PruneEvents(ctx, time.Now().UTC().Add(-24*time.Hour))
	require.NoError(t, err)
	require.Equal(t, int64(1), removed)

	events, err := store.RecentEvents(ctx, "upstream", 10)
	require.NoError(t, err)
	require.Len(t, events, 1)
}
