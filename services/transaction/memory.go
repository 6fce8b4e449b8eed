package transaction

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/gigmarket/backbone-go/contracts"
)

// ErrOrderNotFound is returned when an order id resolves to nothing.
var ErrOrderNotFound = errors.New("transaction: order not found")

// ErrOrderExists is returned when a created order's id is already taken.
var ErrOrderExists = errors.New("transaction: order already exists")

// MemoryStore is a map-backed Store.
type MemoryStore struct {
	mu     sync.RWMutex
	orders map[string]*Order
}

// NewMemoryStore creates an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{orders: make(map[string]*Order)}
}

// CreateOrder implements Store.
func (s *MemoryStore) CreateOrder(_ context.Context, o Order) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.orders[o.ID]; ok {
		return fmt.Errorf("%w: %s", ErrOrderExists, o.ID)
	}
	stored := o
	s.orders[o.ID] = &stored
	return nil
}

// Get implements Store.
func (s *MemoryStore) Get(_ context.Context, orderID string) (Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	o, ok := s.orders[orderID]
	if !ok {
		return Order{}, fmt.Errorf("%w: %s", ErrOrderNotFound, orderID)
	}
	return *o, nil
}

// SetStatus implements Store.
func (s *MemoryStore) SetStatus(_ context.Context, orderID string, status Status, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	o, ok := s.orders[orderID]
	if !ok {
		return fmt.Errorf("%w: %s", ErrOrderNotFound, orderID)
	}
	o.Status = status
	if status == StatusDelivered {
		o.DeliveredAt = at
	}
	return nil
}

// EmbedReview implements Store.
func (s *MemoryStore) EmbedReview(_ context.Context, orderID, authorship string, r Review) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	o, ok := s.orders[orderID]
	if !ok {
		return fmt.Errorf("%w: %s", ErrOrderNotFound, orderID)
	}

	switch authorship {
	case contracts.ReviewByBuyer:
		o.BuyerReview = &r
	case contracts.ReviewBySeller:
		o.SellerReview = &r
	default:
		return fmt.Errorf("transaction: unknown review authorship %q", authorship)
	}
	return nil
}

// Len reports the number of stored orders.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.orders)
}
