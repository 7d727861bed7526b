package memory

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/pixelating-community/web-sub001/internal/perspectives/store"
	"github.com/pixelating-community/web-sub001/internal/perspectives/types"
)

type chargeRow struct {
	collectionID string
	amount       int64
	status       types.ChargeStatus
}

// Ledger is an in-memory charge ledger and reflection store for tests and
// dev environments.  It implements both store.ChargeLedger and
// store.ReflectionStore behind one mutex so the consume-and-insert is a
// single critical section, matching the sqlite store's transactional
// guarantee.
type Ledger struct {
	mu           sync.Mutex
	perspectives map[string]string // perspective id -> collection id
	charges      map[string]*chargeRow
	reflections  []types.Reflection
}

func NewLedger() *Ledger {
	return &Ledger{
		perspectives: make(map[string]string),
		charges:      make(map[string]*chargeRow),
	}
}

// AddPerspective registers a perspective under a collection.  Test/dev
// setup helper, the counterpart of seeded rows in sqlite.
func (l *Ledger) AddPerspective(perspectiveID, collectionID string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.perspectives[perspectiveID] = collectionID
}

func (l *Ledger) UpsertSucceeded(_ context.Context, chargeID, collectionID string, amount int64) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if row, ok := l.charges[chargeID]; ok {
		if row.status == types.StatusRefunded {
			return nil // refunded is terminal
		}
		row.amount = amount
		row.status = types.StatusSucceeded
		return nil
	}
	l.charges[chargeID] = &chargeRow{
		collectionID: collectionID,
		amount:       amount,
		status:       types.StatusSucceeded,
	}
	return nil
}

func (l *Ledger) MarkRefunded(_ context.Context, chargeID string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if row, ok := l.charges[chargeID]; ok {
		row.status = types.StatusRefunded
	}
	return nil
}

func (l *Ledger) SucceededChargeExists(_ context.Context, perspectiveID, chargeID string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.matchableCharge(perspectiveID, chargeID), nil
}

// matchableCharge checks charge status and collection linkage.  Callers
// hold the mutex.
func (l *Ledger) matchableCharge(perspectiveID, chargeID string) bool {
	collectionID, ok := l.perspectives[perspectiveID]
	if !ok {
		return false
	}
	row, ok := l.charges[chargeID]
	return ok && row.status == types.StatusSucceeded && row.collectionID == collectionID
}

func (l *Ledger) ConsumeAndInsertReflection(_ context.Context, perspectiveID, chargeID string, rec store.NewReflection) (types.Reflection, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if !l.matchableCharge(perspectiveID, chargeID) {
		return types.Reflection{}, store.ErrChargeNotValid
	}

	// Consume: re-key the row under a fresh random id so the original can
	// never match again.
	row := l.charges[chargeID]
	delete(l.charges, chargeID)
	l.charges["spent_"+uuid.NewString()] = row

	r := l.appendReflection(perspectiveID, rec)
	return r, nil
}

func (l *Ledger) InsertReflection(_ context.Context, perspectiveID string, rec store.NewReflection) (types.Reflection, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.appendReflection(perspectiveID, rec), nil
}

func (l *Ledger) appendReflection(perspectiveID string, rec store.NewReflection) types.Reflection {
	r := types.Reflection{
		ReflectionID:       "ref_" + uuid.NewString(),
		PerspectiveID:      perspectiveID,
		ParentReflectionID: strings.TrimSpace(rec.ParentReflectionID),
		Body:               rec.Body,
		CreatedAtMs:        time.Now().UTC().UnixMilli(),
	}
	l.reflections = append(l.reflections, r)
	return r
}

func (l *Ledger) ListReflections(_ context.Context, perspectiveID string) ([]types.Reflection, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	var out []types.Reflection
	for _, r := range l.reflections {
		if r.PerspectiveID == perspectiveID {
			out = append(out, r)
		}
	}
	return out, nil
}

// Charges returns a snapshot of the ledger keyed by current charge id.
// Test-only helper.
func (l *Ledger) Charges() map[string]types.Charge {
	l.mu.Lock()
	defer l.mu.Unlock()

	out := make(map[string]types.Charge, len(l.charges))
	for id, row := range l.charges {
		out[id] = types.Charge{
			ChargeID:     id,
			CollectionID: row.collectionID,
			Amount:       row.amount,
			Status:       row.status,
		}
	}
	return out
}

// Reflections returns a copy of all stored reflections.  Test-only helper.
func (l *Ledger) Reflections() []types.Reflection {
	l.mu.Lock()
	defer l.mu.Unlock()

	out := make([]types.Reflection, len(l.reflections))
	copy(out, l.reflections)
	return out
}
