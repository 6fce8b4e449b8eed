package catalog

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// ErrGigNotFound is returned when a gig id resolves to nothing.
var ErrGigNotFound = errors.New("catalog: gig not found")

// MemoryStore is a map-backed Store.
type MemoryStore struct {
	mu   sync.RWMutex
	gigs map[string]*Gig
}

// NewMemoryStore creates an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{gigs: make(map[string]*Gig)}
}

// UpsertGig implements Store.
func (s *MemoryStore) UpsertGig(_ context.Context, g Gig) error {
	if g.ID == "" {
		return fmt.Errorf("catalog: missing gig id")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.gigs[g.ID]; ok {
		// Replacing a seeded gig must not wipe accumulated ratings.
		g.RatingsCount = existing.RatingsCount
		g.RatingSum = existing.RatingSum
	}
	stored := g
	s.gigs[g.ID] = &stored
	return nil
}

// Get implements Store.
func (s *MemoryStore) Get(_ context.Context, gigID string) (Gig, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	g, ok := s.gigs[gigID]
	if !ok {
		return Gig{}, fmt.Errorf("%w: %s", ErrGigNotFound, gigID)
	}
	return *g, nil
}

// ApplyRating implements Store.
func (s *MemoryStore) ApplyRating(_ context.Context, gigID string, rating int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	g, ok := s.gigs[gigID]
	if !ok {
		return fmt.Errorf("%w: %s", ErrGigNotFound, gigID)
	}
	g.RatingsCount++
	g.RatingSum += rating
	return nil
}

// Len reports the number of stored gigs.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.gigs)
}
