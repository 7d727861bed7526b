package sqlite_test

import (
	"context"
	"database/sql"
	"fmt"
	"testing"
	"time"

	_ "modernc.org/sqlite"

	"github.com/pixelating-community/web-sub001/internal/db"
)

// openTestDB returns an in-memory SQLite connection with the same PRAGMAs
// and schema as production.  The connection is closed automatically when the
// test finishes.
func openTestDB(t *testing.T) *sql.DB {
	t.Helper()

	// Each call gets a unique in-memory database.  The shared-cache URI
	// keeps the database alive for the lifetime of the connection pool
	// (important because sql.DB may close/reopen the underlying conn).
	dsn := fmt.Sprintf(
		"file:test_%s?mode=memory&cache=shared&_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)&_pragma=busy_timeout(5000)",
		t.Name(),
	)

	conn, err := sql.Open("sqlite", dsn)
	if err != nil {
		t.Fatalf("openTestDB: sql.Open: %v", err)
	}

	// Match production: single connection for SQLite safety.
	conn.SetMaxOpenConns(1)
	conn.SetMaxIdleConns(1)
	conn.SetConnMaxLifetime(0)

	if err := conn.Ping(); err != nil {
		conn.Close()
		t.Fatalf("openTestDB: ping: %v", err)
	}

	// Apply the same migrations as production.
	if err := db.Migrate(context.Background(), conn); err != nil {
		conn.Close()
		t.Fatalf("openTestDB: migrate: %v", err)
	}

	t.Cleanup(func() { conn.Close() })
	return conn
}

// newTestWriter returns a db.Worker backed by conn.  The worker is closed
// automatically when the test finishes.
func newTestWriter(t *testing.T, conn *sql.DB) *db.Worker {
	t.Helper()

	w := db.NewWorker(conn)
	t.Cleanup(func() { w.Close() })
	return w
}

// seedPerspective inserts a collection and a perspective belonging to it.
func seedPerspective(t *testing.T, conn *sql.DB, collectionID, perspectiveID string) {
	t.Helper()

	now := time.Now().UTC().UnixMilli()
	if _, err := conn.Exec(`
INSERT OR IGNORE INTO collections(collection_id, created_at_ms, updated_at_ms)
VALUES (?, ?, ?);`, collectionID, now, now); err != nil {
		t.Fatalf("seedPerspective: insert collection: %v", err)
	}
	if _, err := conn.Exec(`
INSERT INTO perspectives(perspective_id, collection_id, created_at_ms, updated_at_ms)
VALUES (?, ?, ?, ?);`, perspectiveID, collectionID, now, now); err != nil {
		t.Fatalf("seedPerspective: insert perspective: %v", err)
	}
}

// countChargeRows returns how many ledger rows exist for the given charge id.
func countChargeRows(t *testing.T, conn *sql.DB, chargeID string) int {
	t.Helper()

	var n int
	if err := conn.QueryRow(
		"SELECT COUNT(*) FROM charges WHERE charge_id = ?;", chargeID,
	).Scan(&n); err != nil {
		t.Fatalf("countChargeRows: %v", err)
	}
	return n
}

// chargeStatus returns the status of the charge row, failing if absent.
func chargeStatus(t *testing.T, conn *sql.DB, chargeID string) string {
	t.Helper()

	var status string
	if err := conn.QueryRow(
		"SELECT status FROM charges WHERE charge_id = ?;", chargeID,
	).Scan(&status); err != nil {
		t.Fatalf("chargeStatus %s: %v", chargeID, err)
	}
	return status
}
