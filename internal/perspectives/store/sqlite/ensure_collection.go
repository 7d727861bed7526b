package sqlite

import (
	"context"
	"database/sql"
	"fmt"
)

// ensureCollection guarantees a collections row exists for collectionID so
// the charge insert's foreign-key constraint is satisfied.  Webhooks can
// reference a collection before anything else has created it.
//
// Must be called inside an existing transaction.
func ensureCollection(ctx context.Context, tx *sql.Tx, collectionID string, nowMs int64) error {
	if _, err := tx.ExecContext(ctx, `
INSERT OR IGNORE INTO collections(collection_id, created_at_ms, updated_at_ms)
VALUES (?, ?, ?);
`, collectionID, nowMs, nowMs); err != nil {
		return fmt.Errorf("ensureCollection %s: %w", collectionID, err)
	}
	return nil
}
