package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// EventType classifies an audit event.
type EventType string

const (
	EventAdmissionDenied EventType = "admission_denied"
	EventPenaltyApplied  EventType = "penalty_applied"
	EventLimiterReset    EventType = "limiter_reset"
	EventConfigUpdated   EventType = "config_updated"
	EventProbeCompleted  EventType = "probe_completed"
)

const defaultEventLimit = 50

// Event is one audit log entry for a provider.
type Event struct {
	ID        int64          `json:"id"`
	Type      EventType      `json:"type"`
	Provider  string         `json:"provider"`
	RequestID string         `json:"request_id,omitempty"`
	Detail    map[string]any `json:"detail,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
}

// AppendEvent records one audit event. A missing request id and timestamp
// are filled in.
func (s *Store) AppendEvent(ctx context.Context, event *Event) error {
	if s == nil || s.DB == nil {
		return errors.New("store is not initialized")
	}
	if event == nil {
		return errors.New("event is required")
	}
	if strings.TrimSpace(string(event.Type)) == "" {
		return errors.New("event type is required")
	}
	if strings.TrimSpace(event.Provider) == "" {
		return errors.New("event provider is required")
	}

	if ctx == nil {
		ctx = context.Background()
	}
	if event.RequestID == "" {
		event.RequestID = uuid.New().String()
	}
	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now().UTC()
	}

	var detail sql.NullString
	if len(event.Detail) > 0 {
		encoded, err := json.Marshal(event.Detail)
		if err != nil {
			return fmt.Errorf("encode event detail: %w", err)
		}
		detail = sql.NullString{String: string(encoded), Valid: true}
	}

	result, err := s.DB.ExecContext(ctx, `
		INSERT INTO audit_events (event_type, provider, detail, created_at, request_id)
		VALUES (?, ?, ?, ?, ?)
	`, string(event.Type), event.Provider, detail, event.CreatedAt.UTC().Unix(), event.RequestID)
	if err != nil {
		return fmt.Errorf("store audit event: %w", err)
	}

	if id, err := result.LastInsertId(); err == nil {
		event.ID = id
	}

	return nil
}

// RecentEvents returns the newest audit events, newest first. An empty
// provider matches all providers.
func (s *Store) RecentEvents(ctx context.Context, provider string, limit int) ([]Event, error) {
	if s == nil || s.DB == nil {
		return nil, errors.New("store is not initialized")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	if limit <= 0 {
		limit = defaultEventLimit
	}

	query := `
		SELECT id, event_type, provider, detail, created_at, request_id
		FROM audit_events
	`
	args := []any{}
	if strings.TrimSpace(provider) != "" {
		query += " WHERE provider = ?"
		args = append(args, provider)
	}
	query += " ORDER BY created_at DESC, id DESC LIMIT ?"
	args = append(args, limit)

	rows, err := s.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("fetch audit events: %w", err)
	}
	defer rows.Close() // nolint:errcheck // best-effort cleanup on SQL rows

	var events []Event
	for rows.Next() {
		var (
			event     Event
			eventType string
			detail    sql.NullString
			createdAt int64
			requestID sql.NullString
		)
		if err := rows.Scan(&event.ID, &eventType, &event.Provider, &detail, &createdAt, &requestID); err != nil {
			return nil, fmt.Errorf("scan audit event: %w", err)
		}

		event.Type = EventType(eventType)
		event.CreatedAt = time.Unix(createdAt, 0).UTC()
		if requestID.Valid {
			event.RequestID = requestID.String
		}
		if detail.Valid && detail.String != "" {
			if err := json.Unmarshal([]byte(detail.String), &event.Detail); err != nil {
				return nil, fmt.Errorf("decode event detail: %w", err)
			}
		}

		events = append(events, event)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate audit events: %w", err)
	}

	return events, nil
}

// PruneEvents deletes events created before the cutoff and reports how many
// were removed.
func (s *Store) PruneEvents(ctx context.Context, before time.Time) (int64, error) {
	if s == nil || s.DB == nil {
		return 0, errors.New("store is not initialized")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	result, err := s.DB.ExecContext(ctx, `
		DELETE FROM audit_events WHERE created_at < ?
	`, before.UTC().Unix())
	if err != nil {
		return 0, fmt.Errorf("prune audit events: %w", err)
	}

	removed, err := result.RowsAffected()
	if err != nil {
		return 0, nil
	}
	return removed, nil
}
