// Package inbox tracks which deliveries a service has already processed,
// keyed by queue-scoped message id, so handlers that mutate counters stay
// safe under at-least-once delivery.
//
// The store is consulted before a handler runs and written after it
// succeeds. A crash between the two leaves the message unmarked and the
// redelivered copy is processed again; that window is inherent to running
// the store and the business write in separate systems, and is the reason
// handlers should still prefer naturally idempotent writes where they can.
package inbox

import (
	"context"
	"sync"
)

// Store records processed delivery keys.
type Store interface {
	// Seen reports whether the key was already processed.
	Seen(ctx context.Context, key string) (bool, error)

	// MarkProcessed records the key. Recording the same key twice is not
	// an error.
	MarkProcessed(ctx context.Context, key string) error
}

// MemoryStore is the in-process Store used by tests and by services that
// accept redelivery dedup being lost on restart.
type MemoryStore struct {
	mu   sync.Mutex
	seen map[string]struct{}
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{seen: make(map[string]struct{})}
}

// Seen implements Store.
func (s *MemoryStore) Seen(_ context.Context, key string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.seen[key]
	return ok, nil
}

// MarkProcessed implements Store.
func (s *MemoryStore) MarkProcessed(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seen[key] = struct{}{}
	return nil
}

// Len reports how many ids the store holds.
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.seen)
}
