package store

import (
	"context"
	"fmt"
	"time"
)

// InboundEvent is a raw webhook payload persisted during the fast-ack
// path so the slow pipeline can pick it up asynchronously. Rows expire
// shortly after processing; this table is a buffer, not an archive.
type InboundEvent struct {
	ID         string
	Source     string // "chat" or "repo-host"
	EventType  string
	RawPayload []byte
	ReceivedAt time.Time
	ExpiresAt  time.Time
}

// InsertEvent persists a raw inbound event.
func (s *Store) InsertEvent(ctx context.Context, ev InboundEvent) error {
	_, err := s.pool.Exec(ctx, `
        INSERT INTO inbound_events (id, source, event_type, raw_payload, received_at, expires_at)
        VALUES ($1, $2, $3, $4, $5, $6)
    `, ev.ID, ev.Source, ev.EventType, ev.RawPayload, ev.ReceivedAt, ev.ExpiresAt)
	if err != nil {
		return fmt.Errorf("insert inbound event: %w", err)
	}
	return nil
}

// GetEvent loads a persisted event by id.
func (s *Store) GetEvent(ctx context.Context, id string) (*InboundEvent, error) {
	var ev InboundEvent
	err := s.pool.QueryRow(ctx, `
        SELECT id, source, event_type, raw_payload, received_at, expires_at
        FROM inbound_events WHERE id = $1
    `, id).Scan(&ev.ID, &ev.Source, &ev.EventType, &ev.RawPayload, &ev.ReceivedAt, &ev.ExpiresAt)
	if err != nil {
		return nil, fmt.Errorf("get inbound event %s: %w", id, err)
	}
	return &ev, nil
}

// DeleteEvent removes a processed event.
func (s *Store) DeleteEvent(ctx context.Context, id string) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM inbound_events WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete inbound event %s: %w", id, err)
	}
	return nil
}

// DeleteExpiredEvents clears events past their expiry. Run
// opportunistically by the report cycle.
func (s *Store) DeleteExpiredEvents(ctx context.Context) (int64, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM inbound_events WHERE expires_at < now()`)
	if err != nil {
		return 0, fmt.Errorf("delete expired events: %w", err)
	}
	return tag.RowsAffected(), nil
}
