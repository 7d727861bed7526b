package memory

import (
	"context"
	"sync"
	"time"
)

// WebhookEventStore is an in-memory dedup log of provider deliveries for
// tests and dev environments.
type WebhookEventStore struct {
	mu   sync.Mutex
	seen map[string]time.Time // provider event id -> received at
}

func NewWebhookEventStore() *WebhookEventStore {
	return &WebhookEventStore{seen: make(map[string]time.Time)}
}

func (s *WebhookEventStore) SeenEvent(_ context.Context, providerEventID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, ok := s.seen[providerEventID]
	return ok, nil
}

func (s *WebhookEventStore) RecordEvent(_ context.Context, providerEventID, _ string, receivedAt time.Time) (bool, error) {
	if receivedAt.IsZero() {
		receivedAt = time.Now().UTC()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.seen[providerEventID]; ok {
		return false, nil
	}
	s.seen[providerEventID] = receivedAt
	return true, nil
}

func (s *WebhookEventStore) PruneEventsBefore(_ context.Context, cutoff time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var deleted int64
	for id, at := range s.seen {
		if at.Before(cutoff) {
			delete(s.seen, id)
			deleted++
		}
	}
	return deleted, nil
}
