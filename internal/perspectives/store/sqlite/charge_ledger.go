package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	dbpkg "github.com/pixelating-community/web-sub001/internal/db"
)

// ChargeLedger is the sqlite-backed payment ledger.  All writes go through
// the single-writer worker.
type ChargeLedger struct {
	db     *sql.DB
	writer *dbpkg.Worker
}

func NewChargeLedger(db *sql.DB, writer *dbpkg.Worker) *ChargeLedger {
	return &ChargeLedger{db: db, writer: writer}
}

func (l *ChargeLedger) UpsertSucceeded(ctx context.Context, chargeID, collectionID string, amount int64) error {
	nowMs := time.Now().UTC().UnixMilli()

	return l.writer.Do(ctx, func(ctx context.Context, tx *sql.Tx) error {
		if err := ensureCollection(ctx, tx, collectionID, nowMs); err != nil {
			return err
		}

		// Redelivered succeeded events refresh the amount in place.  The
		// status guard keeps a refunded charge refunded even when a stale
		// succeeded event arrives after the refund.
		if _, err := tx.ExecContext(ctx, `
INSERT INTO charges(charge_id, collection_id, amount, status, created_at_ms, updated_at_ms)
VALUES (?, ?, ?, 'succeeded', ?, ?)
ON CONFLICT(charge_id) DO UPDATE SET
  amount = excluded.amount,
  status = 'succeeded',
  updated_at_ms = excluded.updated_at_ms
WHERE charges.status != 'refunded';
`, chargeID, collectionID, amount, nowMs, nowMs); err != nil {
			return fmt.Errorf("UpsertSucceeded %s: %w", chargeID, err)
		}
		return nil
	})
}

func (l *ChargeLedger) MarkRefunded(ctx context.Context, chargeID string) error {
	nowMs := time.Now().UTC().UnixMilli()

	return l.writer.Do(ctx, func(ctx context.Context, tx *sql.Tx) error {
		// Update-if-exists.  A refund for a charge we never saw succeed is
		// a no-op; we do not invent a row in refunded state.
		if _, err := tx.ExecContext(ctx, `
UPDATE charges
SET status = 'refunded',
    updated_at_ms = ?
WHERE charge_id = ?;
`, nowMs, chargeID); err != nil {
			return fmt.Errorf("MarkRefunded %s: %w", chargeID, err)
		}
		return nil
	})
}

func (l *ChargeLedger) SucceededChargeExists(ctx context.Context, perspectiveID, chargeID string) (bool, error) {
	var one int
	err := l.db.QueryRowContext(ctx, `
SELECT 1
FROM charges c
JOIN perspectives p ON p.collection_id = c.collection_id
WHERE p.perspective_id = ?
  AND c.charge_id = ?
  AND c.status = 'succeeded';
`, perspectiveID, chargeID).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("SucceededChargeExists: %w", err)
	}
	return true, nil
}
