package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

type SeedDevOptions struct {
	// CollectionID / PerspectiveID override the dev defaults when set.
	CollectionID  string
	PerspectiveID string
}

// SeedDev inserts a starter collection and perspective so a fresh dev
// database can exercise the verify/write flow immediately.
func SeedDev(ctx context.Context, conn *sql.DB, opt SeedDevOptions) error {
	now := time.Now().UTC().UnixMilli()

	collectionID := opt.CollectionID
	if collectionID == "" {
		collectionID = "col_dev"
	}
	perspectiveID := opt.PerspectiveID
	if perspectiveID == "" {
		perspectiveID = "persp-001"
	}

	if _, err := conn.ExecContext(ctx, `
INSERT OR IGNORE INTO collections(collection_id, name, created_at_ms, updated_at_ms)
VALUES (?, 'Dev Collection', ?, ?);`, collectionID, now, now); err != nil {
		return fmt.Errorf("seed collection: %w", err)
	}

	if _, err := conn.ExecContext(ctx, `
INSERT INTO perspectives(
  perspective_id, collection_id, title,
  created_at_ms, updated_at_ms
) VALUES (?, ?, 'First Perspective', ?, ?)
ON CONFLICT(perspective_id) DO UPDATE SET
  collection_id = excluded.collection_id,
  updated_at_ms = excluded.updated_at_ms;
`, perspectiveID, collectionID, now, now); err != nil {
		return fmt.Errorf("seed perspective %s: %w", perspectiveID, err)
	}

	return nil
}
