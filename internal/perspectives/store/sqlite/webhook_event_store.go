package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	dbpkg "github.com/pixelating-community/web-sub001/internal/db"
)

// WebhookEventStore records provider event ids for delivery dedup.
type WebhookEventStore struct {
	db     *sql.DB
	writer *dbpkg.Worker
}

func NewWebhookEventStore(db *sql.DB, writer *dbpkg.Worker) *WebhookEventStore {
	return &WebhookEventStore{db: db, writer: writer}
}

func (s *WebhookEventStore) SeenEvent(ctx context.Context, providerEventID string) (bool, error) {
	var one int
	err := s.db.QueryRowContext(ctx,
		"SELECT 1 FROM webhook_events WHERE provider_event_id = ?;", providerEventID,
	).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("SeenEvent %s: %w", providerEventID, err)
	}
	return true, nil
}

func (s *WebhookEventStore) RecordEvent(ctx context.Context, providerEventID, eventType string, receivedAt time.Time) (bool, error) {
	if receivedAt.IsZero() {
		receivedAt = time.Now().UTC()
	}

	var first bool
	err := s.writer.Do(ctx, func(ctx context.Context, tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `
INSERT OR IGNORE INTO webhook_events(provider_event_id, event_type, received_at_ms)
VALUES (?, ?, ?);
`, providerEventID, eventType, receivedAt.UTC().UnixMilli())
		if err != nil {
			return fmt.Errorf("RecordEvent %s: %w", providerEventID, err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("RecordEvent rows: %w", err)
		}
		first = n == 1
		return nil
	})
	return first, err
}

// PruneEventsBefore deletes dedup rows received before the cutoff.  Uses
// the idx_webhook_events_time index for an efficient range scan.
func (s *WebhookEventStore) PruneEventsBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	cutoffMs := cutoff.UTC().UnixMilli()

	var deleted int64
	err := s.writer.Do(ctx, func(ctx context.Context, tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `
DELETE FROM webhook_events
WHERE received_at_ms < ?;
`, cutoffMs)
		if err != nil {
			return fmt.Errorf("PruneEventsBefore: %w", err)
		}
		deleted, _ = res.RowsAffected()
		return nil
	})
	return deleted, err
}
