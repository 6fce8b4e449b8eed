package profile

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync"

	"github.com/gigmarket/backbone-go/contracts"
)

// ErrProfileNotFound is returned when a username or seller id resolves to
// nothing.
var ErrProfileNotFound = errors.New("profile: not found")

// MemoryStore is a map-backed Store. It stands in for the document store
// in tests and single-process deployments.
type MemoryStore struct {
	mu       sync.RWMutex
	profiles map[string]*Profile // keyed by username
}

// NewMemoryStore creates an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{profiles: make(map[string]*Profile)}
}

// EnsureProfile implements Store. Usernames are the natural key, so a
// replayed provisioning event lands on the existing profile instead of
// creating a second one.
func (s *MemoryStore) EnsureProfile(_ context.Context, p Profile) (bool, error) {
	if p.Username == "" {
		return false, fmt.Errorf("profile: missing username")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.profiles[p.Username]; ok {
		return false, nil
	}
	stored := p
	s.profiles[p.Username] = &stored
	return true, nil
}

// Get implements Store.
func (s *MemoryStore) Get(_ context.Context, username string) (Profile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.profiles[username]
	if !ok {
		return Profile{}, fmt.Errorf("%w: %s", ErrProfileNotFound, username)
	}
	return *p, nil
}

// AddPurchasedGigs implements Store.
func (s *MemoryStore) AddPurchasedGigs(_ context.Context, buyerID string, gigIDs []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.profiles[buyerID]
	if !ok {
		return fmt.Errorf("%w: %s", ErrProfileNotFound, buyerID)
	}
	p.PurchasedGigs = append(p.PurchasedGigs, gigIDs...)
	return nil
}

// ApplyCounterDelta implements Store.
func (s *MemoryStore) ApplyCounterDelta(_ context.Context, sellerID string, delta CounterDelta) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.profiles[sellerID]
	if !ok {
		return fmt.Errorf("%w: %s", ErrProfileNotFound, sellerID)
	}

	p.OngoingJobs += delta.OngoingJobs
	p.CompletedJobs += delta.CompletedJobs
	p.TotalEarnings += delta.TotalEarnings
	p.TotalGigs += delta.TotalGigs
	if !delta.RecentDelivery.IsZero() {
		p.RecentDelivery = delta.RecentDelivery
	}
	return nil
}

// ApplyRating implements Store.
func (s *MemoryStore) ApplyRating(_ context.Context, sellerID string, rating int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.profiles[sellerID]
	if !ok {
		return fmt.Errorf("%w: %s", ErrProfileNotFound, sellerID)
	}

	p.RatingsCount++
	p.RatingSum += rating

	var bucket *RatingCategory
	switch rating {
	case 1:
		bucket = &p.RatingCategories.One
	case 2:
		bucket = &p.RatingCategories.Two
	case 3:
		bucket = &p.RatingCategories.Three
	case 4:
		bucket = &p.RatingCategories.Four
	case 5:
		bucket = &p.RatingCategories.Five
	default:
		return fmt.Errorf("profile: rating %d out of range", rating)
	}
	bucket.Value += rating
	bucket.Count++
	return nil
}

// SampleSellers implements Store with a uniform shuffle over sellers.
func (s *MemoryStore) SampleSellers(_ context.Context, n int) ([]contracts.SellerSeed, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sellers := make([]contracts.SellerSeed, 0, len(s.profiles))
	for _, p := range s.profiles {
		if !p.IsSeller {
			continue
		}
		sellers = append(sellers, contracts.SellerSeed{
			SellerID: p.Username,
			Username: p.Username,
			Email:    p.Email,
		})
	}

	rand.Shuffle(len(sellers), func(i, j int) {
		sellers[i], sellers[j] = sellers[j], sellers[i]
	})
	if n < 0 {
		n = 0
	}
	if n < len(sellers) {
		sellers = sellers[:n]
	}
	return sellers, nil
}

// Len reports the number of stored profiles.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.profiles)
}
