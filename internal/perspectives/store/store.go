package store

import (
	"context"
	"errors"
	"time"

	"github.com/pixelating-community/web-sub001/internal/perspectives/types"
)

// ErrChargeNotValid is the uniform consume failure.  Refunded, missing,
// already consumed, and wrong-perspective charges all surface as this one
// error so callers cannot tell them apart.
var ErrChargeNotValid = errors.New("charge not valid")

// NewReflection is the validated input for a reflection insert.
type NewReflection struct {
	Body               string
	ParentReflectionID string
}

// ChargeLedger records payment charges and their status.  Status only moves
// forward: absent -> succeeded -> refunded.
type ChargeLedger interface {
	// UpsertSucceeded records a successful charge, keyed uniquely by
	// chargeID.  Redelivery is idempotent: the amount is refreshed, no
	// duplicate row is created, and a refunded charge is never revived.
	UpsertSucceeded(ctx context.Context, chargeID, collectionID string, amount int64) error

	// MarkRefunded moves a charge to refunded.  A chargeID that was never
	// recorded is a no-op; no row is created from nothing.
	MarkRefunded(ctx context.Context, chargeID string) error

	// SucceededChargeExists reports whether chargeID is a succeeded charge
	// against the collection that perspectiveID belongs to.
	SucceededChargeExists(ctx context.Context, perspectiveID, chargeID string) (bool, error)
}

// ReflectionStore persists reflections.  ConsumeAndInsertReflection is the
// single-use spend of a charge: it must be one atomic operation, never a
// read followed by a separate write.
type ReflectionStore interface {
	// ConsumeAndInsertReflection atomically overwrites the charge's
	// identifier with a fresh random value (so the original can never
	// match again) and inserts the reflection.  Returns ErrChargeNotValid
	// when no succeeded charge matched; nothing is inserted in that case.
	ConsumeAndInsertReflection(ctx context.Context, perspectiveID, chargeID string, rec NewReflection) (types.Reflection, error)

	// InsertReflection inserts without touching the ledger.  Elevated
	// operator path only.
	InsertReflection(ctx context.Context, perspectiveID string, rec NewReflection) (types.Reflection, error)

	ListReflections(ctx context.Context, perspectiveID string) ([]types.Reflection, error)
}

// WebhookEventStore deduplicates at-least-once provider deliveries.
type WebhookEventStore interface {
	// SeenEvent reports whether providerEventID has already been recorded.
	SeenEvent(ctx context.Context, providerEventID string) (bool, error)

	// RecordEvent stores the provider event id and reports whether this is
	// the first delivery.  Callers record only after the mutation the event
	// drives has landed; a row here means the delivery is fully settled.
	RecordEvent(ctx context.Context, providerEventID, eventType string, receivedAt time.Time) (bool, error)

	// PruneEventsBefore deletes dedup rows received before cutoff and
	// returns the number deleted.
	PruneEventsBefore(ctx context.Context, cutoff time.Time) (int64, error)
}
