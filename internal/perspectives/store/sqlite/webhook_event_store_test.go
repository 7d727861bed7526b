package sqlite_test

import (
	"context"
	"testing"
	"time"

	"github.com/pixelating-community/web-sub001/internal/perspectives/store/sqlite"
)

func TestRecordEvent_Dedup(t *testing.T) {
	conn := openTestDB(t)
	events := sqlite.NewWebhookEventStore(conn, newTestWriter(t, conn))
	ctx := context.Background()
	now := time.Now().UTC()

	seen, err := events.SeenEvent(ctx, "evt_1")
	if err != nil {
		t.Fatalf("seen: %v", err)
	}
	if seen {
		t.Error("expected unrecorded event id to be unseen")
	}

	first, err := events.RecordEvent(ctx, "evt_1", "charge.succeeded", now)
	if err != nil {
		t.Fatalf("record: %v", err)
	}
	if !first {
		t.Error("expected first delivery to report true")
	}

	seen, err = events.SeenEvent(ctx, "evt_1")
	if err != nil {
		t.Fatalf("seen: %v", err)
	}
	if !seen {
		t.Error("expected recorded event id to be seen")
	}

	again, err := events.RecordEvent(ctx, "evt_1", "charge.succeeded", now.Add(time.Minute))
	if err != nil {
		t.Fatalf("record redelivery: %v", err)
	}
	if again {
		t.Error("expected redelivery to report false")
	}
}

func TestPruneEventsBefore(t *testing.T) {
	conn := openTestDB(t)
	events := sqlite.NewWebhookEventStore(conn, newTestWriter(t, conn))
	ctx := context.Background()
	now := time.Now().UTC()

	if _, err := events.RecordEvent(ctx, "evt_old", "charge.succeeded", now.Add(-40*24*time.Hour)); err != nil {
		t.Fatalf("record old: %v", err)
	}
	if _, err := events.RecordEvent(ctx, "evt_new", "refund.created", now); err != nil {
		t.Fatalf("record new: %v", err)
	}

	deleted, err := events.PruneEventsBefore(ctx, now.Add(-30*24*time.Hour))
	if err != nil {
		t.Fatalf("prune: %v", err)
	}
	if deleted != 1 {
		t.Fatalf("expected 1 row pruned, got %d", deleted)
	}

	// The recent row must survive, so its redelivery still dedups.
	first, err := events.RecordEvent(ctx, "evt_new", "refund.created", now)
	if err != nil {
		t.Fatalf("record: %v", err)
	}
	if first {
		t.Error("expected surviving row to still dedup")
	}
}
