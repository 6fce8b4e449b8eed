// Package transaction owns the order lifecycle. State transitions are
// applied locally and announced to the profile and notification services;
// the review fanout flows back in to be embedded on the order document.
package transaction

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/gigmarket/backbone-go/contracts"
	"github.com/gigmarket/backbone-go/messaging"
)

// Status is an order's lifecycle state.
type Status string

const (
	StatusInProgress Status = "in progress"
	StatusDelivered  Status = "delivered"
	StatusApproved   Status = "approved"
	StatusCancelled  Status = "cancelled"
)

// Review is a review embedded on an order document.
type Review struct {
	Rating    int
	Review    string
	CreatedAt time.Time
}

// Order is one purchase of a gig.
type Order struct {
	ID           string
	GigID        string
	Title        string
	BuyerID      string
	BuyerEmail   string
	SellerID     string
	SellerEmail  string
	Price        float64
	Status       Status
	CreatedAt    time.Time
	DeliveredAt  time.Time
	BuyerReview  *Review
	SellerReview *Review
}

// Store is the order service's slice of its storage engine.
type Store interface {
	// CreateOrder stores a new order. A duplicate id is an error.
	CreateOrder(ctx context.Context, o Order) error

	// Get returns an order by id.
	Get(ctx context.Context, orderID string) (Order, error)

	// SetStatus transitions an order's lifecycle state.
	SetStatus(ctx context.Context, orderID string, status Status, at time.Time) error

	// EmbedReview attaches a review to the order, on the buyer or seller
	// side per authorship.
	EmbedReview(ctx context.Context, orderID, authorship string, r Review) error
}

// Service wires the order handlers and transitions onto the backbone.
type Service struct {
	store     Store
	messenger *messaging.Messenger
	logger    *slog.Logger
	now       func() time.Time
}

// New creates the transaction service.
func New(m *messaging.Messenger, store Store) *Service {
	return &Service{
		store:     store,
		messenger: m,
		logger:    m.Logger(),
		now:       time.Now,
	}
}

// Register subscribes the order-side review consumer.
func (s *Service) Register(ctx context.Context) error {
	return s.messenger.SubscribeIdempotent(ctx, messaging.OrderReviewQueue, messaging.HandlerFunc(s.handleReview))
}

// CreateOrder stores the order and announces it: the seller's ongoing
// counter moves on the profile side and the seller is emailed. The store
// write commits first; publish failures are surfaced to the caller rather
// than unwinding the order.
func (s *Service) CreateOrder(ctx context.Context, o Order) (Order, error) {
	if o.ID == "" {
		o.ID = uuid.NewString()
	}
	o.Status = StatusInProgress
	if o.CreatedAt.IsZero() {
		o.CreatedAt = s.now().UTC()
	}

	if err := s.store.CreateOrder(ctx, o); err != nil {
		return Order{}, fmt.Errorf("transaction: creating order: %w", err)
	}

	counterErr := s.publishSellerEvent(ctx, contracts.SellerEvent{
		Kind:        contracts.SellerCreateOrder,
		SellerID:    o.SellerID,
		OngoingJobs: 1,
	})
	emailErr := s.messenger.Publish(ctx, messaging.OrderEmail, contracts.EmailJob{
		ReceiverEmail:  o.SellerEmail,
		Template:       "orderPlaced",
		OrderID:        o.ID,
		Amount:         fmt.Sprintf("%.2f", o.Price),
		BuyerUsername:  o.BuyerID,
		SellerUsername: o.SellerID,
		Title:          o.Title,
	})

	return o, errors.Join(counterErr, emailErr)
}

// DeliverOrder marks the order delivered and emails the buyer to review
// the work.
func (s *Service) DeliverOrder(ctx context.Context, orderID string) error {
	o, err := s.store.Get(ctx, orderID)
	if err != nil {
		return err
	}
	if o.Status != StatusInProgress {
		return fmt.Errorf("transaction: delivering order %s in state %q", orderID, o.Status)
	}

	now := s.now().UTC()
	if err := s.store.SetStatus(ctx, orderID, StatusDelivered, now); err != nil {
		return err
	}

	return s.messenger.Publish(ctx, messaging.OrderEmail, contracts.EmailJob{
		ReceiverEmail:  o.BuyerEmail,
		Template:       "orderDelivered",
		OrderID:        o.ID,
		BuyerUsername:  o.BuyerID,
		SellerUsername: o.SellerID,
		Title:          o.Title,
	})
}

// ApproveOrder marks a delivered order approved and settles the seller's
// aggregates: one job moves from ongoing to completed and the price is
// earned.
func (s *Service) ApproveOrder(ctx context.Context, orderID string) error {
	o, err := s.store.Get(ctx, orderID)
	if err != nil {
		return err
	}
	if o.Status != StatusDelivered {
		return fmt.Errorf("transaction: approving order %s in state %q", orderID, o.Status)
	}

	now := s.now().UTC()
	if err := s.store.SetStatus(ctx, orderID, StatusApproved, now); err != nil {
		return err
	}

	return s.publishSellerEvent(ctx, contracts.SellerEvent{
		Kind:           contracts.SellerApproveOrder,
		SellerID:       o.SellerID,
		OngoingJobs:    -1,
		CompletedJobs:  1,
		TotalEarnings:  o.Price,
		RecentDelivery: now,
	})
}

// CancelOrder cancels an in-progress order and releases the seller's
// ongoing slot.
func (s *Service) CancelOrder(ctx context.Context, orderID string) error {
	o, err := s.store.Get(ctx, orderID)
	if err != nil {
		return err
	}
	if o.Status != StatusInProgress {
		return fmt.Errorf("transaction: cancelling order %s in state %q", orderID, o.Status)
	}

	if err := s.store.SetStatus(ctx, orderID, StatusCancelled, s.now().UTC()); err != nil {
		return err
	}

	return s.publishSellerEvent(ctx, contracts.SellerEvent{
		Kind:        contracts.SellerCancelOrder,
		SellerID:    o.SellerID,
		OngoingJobs: -1,
	})
}

// handleReview embeds the broadcast review on its order document.
func (s *Service) handleReview(ctx context.Context, d messaging.Delivery) error {
	evt, err := contracts.DecodeReviewEvent(d.Body())
	if err != nil {
		return err
	}

	return s.store.EmbedReview(ctx, evt.OrderID, evt.Type, Review{
		Rating:    evt.Rating,
		Review:    evt.Review,
		CreatedAt: evt.CreatedAt,
	})
}

func (s *Service) publishSellerEvent(ctx context.Context, e contracts.SellerEvent) error {
	body, err := contracts.EncodeSellerEvent(e)
	if err != nil {
		return err
	}
	return s.messenger.PublishBody(ctx, messaging.SellerUpdate, body)
}
