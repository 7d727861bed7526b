package service

import (
	"context"
	"log"
	"strings"
	"time"

	"github.com/pixelating-community/web-sub001/internal/metrics"
	"github.com/pixelating-community/web-sub001/internal/perspectives/store"
	"github.com/pixelating-community/web-sub001/internal/perspectives/types"
)

// WebhookProcessor reconciles provider events into ledger transitions:
// absent -> succeeded -> refunded, forward only.  Deliveries are
// at-least-once and possibly out of order; every path through Handle is
// safe to replay.
type WebhookProcessor struct {
	ledger  store.ChargeLedger
	events  store.WebhookEventStore
	logger  *log.Logger
	metrics *metrics.Metrics
}

func NewWebhookProcessor(ledger store.ChargeLedger, events store.WebhookEventStore, logger *log.Logger, m *metrics.Metrics) *WebhookProcessor {
	return &WebhookProcessor{ledger: ledger, events: events, logger: logger, metrics: m}
}

// Handle applies one verified event.  It never returns an error: a
// persistence failure is logged and the delivery is still acknowledged, so
// the provider's own redelivery handles the retry instead of a storm.
func (p *WebhookProcessor) Handle(ctx context.Context, ev types.WebhookEvent) {
	outcome := p.apply(ctx, ev)
	p.metrics.WebhookEvents.WithLabelValues(ev.Type, outcome).Inc()
}

func (p *WebhookProcessor) apply(ctx context.Context, ev types.WebhookEvent) string {
	eventID := strings.TrimSpace(ev.ID)
	if eventID != "" {
		seen, err := p.events.SeenEvent(ctx, eventID)
		if err != nil {
			// Dedup lookup failed; still attempt the ledger write, which is
			// idempotent on its own.
			p.logger.Printf("webhook dedup %s: %v", eventID, err)
		} else if seen {
			p.logger.Printf("webhook %s: duplicate delivery of %s", ev.Type, eventID)
			return "duplicate"
		}
	}

	outcome := p.mutate(ctx, ev)

	// The id is recorded only once the ledger write has landed.  A transient
	// failure leaves no dedup row, so the provider's redelivery of the same
	// event id retries the write instead of short-circuiting.
	if outcome == "applied" && eventID != "" {
		if _, err := p.events.RecordEvent(ctx, eventID, ev.Type, time.Now().UTC()); err != nil {
			p.logger.Printf("webhook dedup %s: %v", eventID, err)
		}
	}
	return outcome
}

func (p *WebhookProcessor) mutate(ctx context.Context, ev types.WebhookEvent) string {
	switch ev.Type {
	case types.EventChargeSucceeded:
		chargeID := strings.TrimSpace(ev.Data.Object.ID)
		collectionID := strings.TrimSpace(ev.Data.Object.Metadata["collection_id"])
		if chargeID == "" || collectionID == "" {
			p.logger.Printf("webhook %s: missing charge or collection id, ignoring", ev.Type)
			return "ignored"
		}
		if err := p.ledger.UpsertSucceeded(ctx, chargeID, collectionID, ev.Data.Object.Amount); err != nil {
			p.logger.Printf("webhook %s: upsert %s: %v", ev.Type, chargeID, err)
			return "error"
		}
		return "applied"

	case types.EventRefundCreated:
		chargeID := strings.TrimSpace(ev.Data.Object.Charge)
		if chargeID == "" {
			p.logger.Printf("webhook %s: missing charge id, ignoring", ev.Type)
			return "ignored"
		}
		if err := p.ledger.MarkRefunded(ctx, chargeID); err != nil {
			p.logger.Printf("webhook %s: refund %s: %v", ev.Type, chargeID, err)
			return "error"
		}
		return "applied"

	default:
		return "ignored"
	}
}
