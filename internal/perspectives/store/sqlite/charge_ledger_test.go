package sqlite_test

import (
	"context"
	"testing"

	"github.com/pixelating-community/web-sub001/internal/perspectives/store/sqlite"
)

// ── Upsert idempotency ───────────────────────────────────────────────────────

func TestUpsertSucceeded_RedeliveryKeepsOneRow(t *testing.T) {
	conn := openTestDB(t)
	ledger := sqlite.NewChargeLedger(conn, newTestWriter(t, conn))
	ctx := context.Background()

	if err := ledger.UpsertSucceeded(ctx, "ch_abc123", "col_1", 500); err != nil {
		t.Fatalf("first upsert: %v", err)
	}
	if err := ledger.UpsertSucceeded(ctx, "ch_abc123", "col_1", 750); err != nil {
		t.Fatalf("redelivered upsert: %v", err)
	}

	if n := countChargeRows(t, conn, "ch_abc123"); n != 1 {
		t.Fatalf("expected exactly 1 row after redelivery, got %d", n)
	}

	var amount int64
	if err := conn.QueryRow(
		"SELECT amount FROM charges WHERE charge_id = ?;", "ch_abc123",
	).Scan(&amount); err != nil {
		t.Fatalf("read amount: %v", err)
	}
	if amount != 750 {
		t.Errorf("expected redelivery to refresh amount to 750, got %d", amount)
	}
}

func TestUpsertSucceeded_CreatesMissingCollection(t *testing.T) {
	conn := openTestDB(t)
	ledger := sqlite.NewChargeLedger(conn, newTestWriter(t, conn))

	// No collection seeded; the upsert must satisfy the FK itself.
	if err := ledger.UpsertSucceeded(context.Background(), "ch_new1", "col_unseen", 100); err != nil {
		t.Fatalf("upsert into unseen collection: %v", err)
	}

	if got := chargeStatus(t, conn, "ch_new1"); got != "succeeded" {
		t.Errorf("expected status succeeded, got %q", got)
	}
}

// ── Refunds ──────────────────────────────────────────────────────────────────

func TestMarkRefunded_UnknownChargeIsNoOp(t *testing.T) {
	conn := openTestDB(t)
	ledger := sqlite.NewChargeLedger(conn, newTestWriter(t, conn))

	if err := ledger.MarkRefunded(context.Background(), "ch_never_seen"); err != nil {
		t.Fatalf("refund of unknown charge: %v", err)
	}

	if n := countChargeRows(t, conn, "ch_never_seen"); n != 0 {
		t.Errorf("expected no row created for unseen refund, got %d", n)
	}
}

func TestMarkRefunded_ThenRedeliveredSucceededStaysRefunded(t *testing.T) {
	conn := openTestDB(t)
	ledger := sqlite.NewChargeLedger(conn, newTestWriter(t, conn))
	ctx := context.Background()

	if err := ledger.UpsertSucceeded(ctx, "ch_ref1", "col_1", 500); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if err := ledger.MarkRefunded(ctx, "ch_ref1"); err != nil {
		t.Fatalf("refund: %v", err)
	}

	// Stale succeeded redelivery after the refund must not revive the charge.
	if err := ledger.UpsertSucceeded(ctx, "ch_ref1", "col_1", 500); err != nil {
		t.Fatalf("stale redelivery: %v", err)
	}

	if got := chargeStatus(t, conn, "ch_ref1"); got != "refunded" {
		t.Errorf("expected refunded to be terminal, got %q", got)
	}
}

// ── Lookup through the perspective's collection ──────────────────────────────

func TestSucceededChargeExists(t *testing.T) {
	conn := openTestDB(t)
	ledger := sqlite.NewChargeLedger(conn, newTestWriter(t, conn))
	ctx := context.Background()

	seedPerspective(t, conn, "col_1", "persp-001")
	seedPerspective(t, conn, "col_2", "persp-002")

	if err := ledger.UpsertSucceeded(ctx, "ch_abc123", "col_1", 500); err != nil {
		t.Fatalf("upsert: %v", err)
	}

	ok, err := ledger.SucceededChargeExists(ctx, "persp-001", "ch_abc123")
	if err != nil {
		t.Fatalf("exists: %v", err)
	}
	if !ok {
		t.Error("expected charge to be found through its collection's perspective")
	}

	// Same charge, perspective in a different collection.
	ok, err = ledger.SucceededChargeExists(ctx, "persp-002", "ch_abc123")
	if err != nil {
		t.Fatalf("exists: %v", err)
	}
	if ok {
		t.Error("charge must not be visible from another collection's perspective")
	}

	// Refunded charges never qualify.
	if err := ledger.MarkRefunded(ctx, "ch_abc123"); err != nil {
		t.Fatalf("refund: %v", err)
	}
	ok, err = ledger.SucceededChargeExists(ctx, "persp-001", "ch_abc123")
	if err != nil {
		t.Fatalf("exists: %v", err)
	}
	if ok {
		t.Error("refunded charge must not satisfy the lookup")
	}
}
