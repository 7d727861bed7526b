package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	dbpkg "github.com/pixelating-community/web-sub001/internal/db"
	"github.com/pixelating-community/web-sub001/internal/perspectives/store"
	"github.com/pixelating-community/web-sub001/internal/perspectives/types"
)

type ReflectionStore struct {
	db     *sql.DB
	writer *dbpkg.Worker
}

func NewReflectionStore(db *sql.DB, writer *dbpkg.Worker) *ReflectionStore {
	return &ReflectionStore{db: db, writer: writer}
}

// ConsumeAndInsertReflection spends the charge and inserts the reflection
// as one transaction.  The conditional UPDATE is the consume step: it
// overwrites charge_id with a random value, so even a cryptographically
// valid write token carrying the old id can never match again.  The insert
// only happens when that UPDATE matched exactly one row.
func (s *ReflectionStore) ConsumeAndInsertReflection(ctx context.Context, perspectiveID, chargeID string, rec store.NewReflection) (types.Reflection, error) {
	nowMs := time.Now().UTC().UnixMilli()
	out := types.Reflection{
		ReflectionID:       "ref_" + uuid.NewString(),
		PerspectiveID:      perspectiveID,
		ParentReflectionID: strings.TrimSpace(rec.ParentReflectionID),
		Body:               rec.Body,
		CreatedAtMs:        nowMs,
	}

	err := s.writer.Do(ctx, func(ctx context.Context, tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `
UPDATE charges
SET charge_id = ?,
    updated_at_ms = ?
WHERE charge_id = ?
  AND status = 'succeeded'
  AND collection_id = (
    SELECT collection_id FROM perspectives WHERE perspective_id = ?
  );
`, "spent_"+uuid.NewString(), nowMs, chargeID, perspectiveID)
		if err != nil {
			return fmt.Errorf("consume charge: %w", err)
		}
		matched, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("consume charge rows: %w", err)
		}
		if matched != 1 {
			// Missing, refunded, already consumed, or bound to another
			// perspective: all identical from here out.
			return store.ErrChargeNotValid
		}

		return insertReflection(ctx, tx, out)
	})
	if err != nil {
		return types.Reflection{}, err
	}
	return out, nil
}

// InsertReflection writes a reflection without touching the ledger.  Only
// the elevated operator path reaches this.
func (s *ReflectionStore) InsertReflection(ctx context.Context, perspectiveID string, rec store.NewReflection) (types.Reflection, error) {
	out := types.Reflection{
		ReflectionID:       "ref_" + uuid.NewString(),
		PerspectiveID:      perspectiveID,
		ParentReflectionID: strings.TrimSpace(rec.ParentReflectionID),
		Body:               rec.Body,
		CreatedAtMs:        time.Now().UTC().UnixMilli(),
	}

	err := s.writer.Do(ctx, func(ctx context.Context, tx *sql.Tx) error {
		return insertReflection(ctx, tx, out)
	})
	if err != nil {
		return types.Reflection{}, err
	}
	return out, nil
}

func insertReflection(ctx context.Context, tx *sql.Tx, r types.Reflection) error {
	var parent any
	if r.ParentReflectionID != "" {
		parent = r.ParentReflectionID
	}

	if _, err := tx.ExecContext(ctx, `
INSERT INTO reflections(reflection_id, perspective_id, parent_reflection_id, body, created_at_ms)
VALUES (?, ?, ?, ?, ?);
`, r.ReflectionID, r.PerspectiveID, parent, r.Body, r.CreatedAtMs); err != nil {
		return fmt.Errorf("insert reflection: %w", err)
	}
	return nil
}

func (s *ReflectionStore) ListReflections(ctx context.Context, perspectiveID string) ([]types.Reflection, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT reflection_id, perspective_id, parent_reflection_id, body, created_at_ms
FROM reflections
WHERE perspective_id = ?
ORDER BY created_at_ms ASC, reflection_id ASC;
`, perspectiveID)
	if err != nil {
		return nil, fmt.Errorf("ListReflections: %w", err)
	}
	defer rows.Close()

	var out []types.Reflection
	for rows.Next() {
		var r types.Reflection
		var parent sql.NullString
		if err := rows.Scan(&r.ReflectionID, &r.PerspectiveID, &parent, &r.Body, &r.CreatedAtMs); err != nil {
			return nil, fmt.Errorf("ListReflections scan: %w", err)
		}
		if parent.Valid {
			r.ParentReflectionID = parent.String
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ListReflections rows: %w", err)
	}
	return out, nil
}
