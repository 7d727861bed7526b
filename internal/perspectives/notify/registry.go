// Package notify is the in-process fan-out from reflection writes to
// currently connected readers.  It is process-local by design: a
// horizontally scaled deployment would miss events published on a sibling
// instance, and that limitation is documented rather than papered over.
package notify

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// Subscriber is one live outbound connection.  Frames are delivered on a
// buffered channel; a subscriber that cannot keep up is treated as dead.
type Subscriber struct {
	ch   chan []byte
	once sync.Once
}

// NewSubscriber allocates a subscriber with the given frame buffer.
func NewSubscriber(buffer int) *Subscriber {
	if buffer < 1 {
		buffer = 8
	}
	return &Subscriber{ch: make(chan []byte, buffer)}
}

// Frames is the receive side consumed by the transport handler.
func (s *Subscriber) Frames() <-chan []byte {
	return s.ch
}

// Close releases the frame channel.  Safe to call more than once.
func (s *Subscriber) Close() {
	s.once.Do(func() { close(s.ch) })
}

// send delivers without blocking.  A full buffer means the connection has
// stopped draining; report failure so the registry drops it.
func (s *Subscriber) send(frame []byte) (ok bool) {
	defer func() {
		// Sending on a closed channel panics; a closed subscriber is just
		// a failed send.
		if recover() != nil {
			ok = false
		}
	}()

	select {
	case s.ch <- frame:
		return true
	default:
		return false
	}
}

// Registry maps a subject id to the set of subscribers currently watching
// it.  A subscriber belongs to at most one subject at a time; empty sets
// are deleted, never kept around.
type Registry struct {
	mu       sync.Mutex
	subjects map[string]map[*Subscriber]struct{}
	watching map[*Subscriber]string

	// Subscribers, when set, tracks the live subscriber count.
	Subscribers prometheus.Gauge
}

func NewRegistry() *Registry {
	return &Registry{
		subjects: make(map[string]map[*Subscriber]struct{}),
		watching: make(map[*Subscriber]string),
	}
}

// Subscribe adds sub to subjectID's set, first removing it from whatever
// subject it was watching before.
func (r *Registry) Subscribe(subjectID string, sub *Subscriber) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.removeLocked(sub)

	set, ok := r.subjects[subjectID]
	if !ok {
		set = make(map[*Subscriber]struct{})
		r.subjects[subjectID] = set
	}
	set[sub] = struct{}{}
	r.watching[sub] = subjectID

	if r.Subscribers != nil {
		r.Subscribers.Set(float64(len(r.watching)))
	}
}

// Unsubscribe removes sub from subjectID's set and deletes the set once
// empty.
func (r *Registry) Unsubscribe(subjectID string, sub *Subscriber) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.watching[sub] != subjectID {
		return
	}
	r.removeLocked(sub)

	if r.Subscribers != nil {
		r.Subscribers.Set(float64(len(r.watching)))
	}
}

func (r *Registry) removeLocked(sub *Subscriber) {
	subjectID, ok := r.watching[sub]
	if !ok {
		return
	}
	delete(r.watching, sub)

	set := r.subjects[subjectID]
	delete(set, sub)
	if len(set) == 0 {
		delete(r.subjects, subjectID)
	}
}

// Publish serializes event and pushes it to every subscriber of subjectID.
// A subscriber whose send fails is dropped from the set on the spot, so
// membership self-heals without a separate cleanup pass.
func (r *Registry) Publish(subjectID string, event any) error {
	frame, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	for sub := range r.subjects[subjectID] {
		if !sub.send(frame) {
			r.removeLocked(sub)
		}
	}

	if r.Subscribers != nil {
		r.Subscribers.Set(float64(len(r.watching)))
	}
	return nil
}

// SubscriberCount reports how many subscribers are watching subjectID.
func (r *Registry) SubscriberCount(subjectID string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.subjects[subjectID])
}
