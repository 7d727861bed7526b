// Package ratelimit is a fixed-window request counter.  State is
// process-local; multiple server instances would each keep their own
// windows and under-count, which is an accepted single-instance limitation.
package ratelimit

import (
	"sync"
	"time"
)

// MaxTrackedKeys caps the entry map.  Expired windows become eligible for
// pruning once the cap is exceeded.
const MaxTrackedKeys = 5000

// Result is the outcome of one Check call.
type Result struct {
	OK        bool
	Remaining int
	ResetAt   time.Time
}

type entry struct {
	count   int
	resetAt time.Time
}

// Limiter counts requests per composite key in fixed windows.  The counter
// always advances, including for rejected requests, so Remaining stays an
// exact account of the window.  Callers must check OK before applying side
// effects.
type Limiter struct {
	mu      sync.Mutex
	entries map[string]*entry
	now     func() time.Time
}

func NewLimiter() *Limiter {
	return &Limiter{
		entries: make(map[string]*entry),
		now:     time.Now,
	}
}

// NewLimiterWithClock is NewLimiter with an injectable clock for window
// tests.
func NewLimiterWithClock(now func() time.Time) *Limiter {
	return &Limiter{
		entries: make(map[string]*entry),
		now:     now,
	}
}

// Check records one request against key and reports whether it fits inside
// limit for the window.  A new window starts at count 1 whenever no entry
// exists or the stored window has expired.  The request that pushes the
// count to limit+1 is the first one reported not-ok, and it still counts.
func (l *Limiter) Check(key string, limit int, window time.Duration) Result {
	now := l.now()

	l.mu.Lock()
	defer l.mu.Unlock()

	e, ok := l.entries[key]
	if !ok || !now.Before(e.resetAt) {
		e = &entry{count: 1, resetAt: now.Add(window)}
		l.entries[key] = e
	} else {
		e.count++
	}

	if len(l.entries) > MaxTrackedKeys {
		l.pruneLocked(now)
	}

	remaining := limit - e.count
	if remaining < 0 {
		remaining = 0
	}
	return Result{
		OK:        e.count <= limit,
		Remaining: remaining,
		ResetAt:   e.resetAt,
	}
}

// pruneLocked drops entries whose window has expired.  Live windows are
// never removed.
func (l *Limiter) pruneLocked(now time.Time) {
	for key, e := range l.entries {
		if !now.Before(e.resetAt) {
			delete(l.entries, key)
		}
	}
}

// TrackedKeys reports how many keys currently have entries.
func (l *Limiter) TrackedKeys() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}
