package service

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/pixelating-community/web-sub001/internal/metrics"
	"github.com/pixelating-community/web-sub001/internal/perspectives/store"
	"github.com/pixelating-community/web-sub001/internal/perspectives/types"
)

var ErrEmptyBody = errors.New("reflection body is required")

// maxBodyRunes caps reflection length.
const maxBodyRunes = 4000

var ErrBodyTooLong = fmt.Errorf("reflection body exceeds %d characters", maxBodyRunes)

// reflectionEvent is the frame pushed to live readers after a write.
type reflectionEvent struct {
	Type       string           `json:"type"`
	Reflection types.Reflection `json:"reflection"`
}

// Notifier is the fan-out capability the write gate needs.  Satisfied by
// notify.Registry.
type Notifier interface {
	Publish(subjectID string, event any) error
}

// WriteResult is the outcome of an authorized write.  Warnings list
// best-effort side effects that failed without failing the write.
type WriteResult struct {
	Reflection types.Reflection
	Warnings   []string
}

// WriteGate converts one already-authenticated write token into exactly one
// durable reflection, spending the underlying charge as a single-use
// capability.  The elevated path inserts directly under the server-held
// operator credential and never touches the ledger.
type WriteGate struct {
	reflections store.ReflectionStore
	notifier    Notifier
	logger      *log.Logger
	metrics     *metrics.Metrics
	adminToken  string
}

type WriteGateDeps struct {
	Reflections store.ReflectionStore
	Notifier    Notifier
	Logger      *log.Logger
	Metrics     *metrics.Metrics

	// AdminToken enables the elevated path; empty disables it.
	AdminToken string
}

func NewWriteGate(d WriteGateDeps) *WriteGate {
	return &WriteGate{
		reflections: d.Reflections,
		notifier:    d.Notifier,
		logger:      d.Logger,
		metrics:     d.Metrics,
		adminToken:  d.AdminToken,
	}
}

// IsElevated reports whether credential matches the server-held operator
// token.  An unset token disables the path entirely.
func (g *WriteGate) IsElevated(credential string) bool {
	if g.adminToken == "" || credential == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(credential), []byte(g.adminToken)) == 1
}

// Submit is the consumer path: one conditional consume-and-insert against
// the ledger.  chargeID must already be authenticated (extracted from a
// verified write token); this call decides freshness.  All ineligible
// charges fail with store.ErrChargeNotValid, indistinguishably.
func (g *WriteGate) Submit(ctx context.Context, perspectiveID, chargeID string, req store.NewReflection) (WriteResult, error) {
	if err := validateBody(&req); err != nil {
		return WriteResult{}, err
	}

	ref, err := g.reflections.ConsumeAndInsertReflection(ctx, perspectiveID, chargeID, req)
	if err != nil {
		return WriteResult{}, err
	}

	g.metrics.ReflectionsWritten.WithLabelValues("consumer").Inc()
	return g.finish(perspectiveID, ref), nil
}

// SubmitElevated is the operator/backfill path.  The caller must have
// checked IsElevated first; no charge is consumed.
func (g *WriteGate) SubmitElevated(ctx context.Context, perspectiveID string, req store.NewReflection) (WriteResult, error) {
	if err := validateBody(&req); err != nil {
		return WriteResult{}, err
	}

	ref, err := g.reflections.InsertReflection(ctx, perspectiveID, req)
	if err != nil {
		return WriteResult{}, err
	}

	g.metrics.ReflectionsWritten.WithLabelValues("elevated").Inc()
	return g.finish(perspectiveID, ref), nil
}

// finish publishes the new reflection to live readers.  Publish failures
// are warnings, never write failures.
func (g *WriteGate) finish(perspectiveID string, ref types.Reflection) WriteResult {
	res := WriteResult{Reflection: ref}

	err := g.notifier.Publish(perspectiveID, reflectionEvent{
		Type:       "reflection.created",
		Reflection: ref,
	})
	if err != nil {
		g.logger.Printf("publish reflection %s: %v", ref.ReflectionID, err)
		res.Warnings = append(res.Warnings, "notify failed")
	}

	return res
}

func validateBody(req *store.NewReflection) error {
	req.Body = strings.TrimSpace(req.Body)
	if req.Body == "" {
		return ErrEmptyBody
	}
	if len([]rune(req.Body)) > maxBodyRunes {
		return ErrBodyTooLong
	}
	return nil
}
