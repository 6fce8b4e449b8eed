// Package profile consumes the account-provisioning, order-lifecycle, seed
// and review flows and maintains buyer/seller profile aggregates.
package profile

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/gigmarket/backbone-go/contracts"
	"github.com/gigmarket/backbone-go/messaging"
)

// Profile is a marketplace member. Buyers and sellers share the document;
// seller aggregate fields stay zero for non-sellers.
type Profile struct {
	Username       string
	Email          string
	Country        string
	ProfilePicture string
	IsSeller       bool
	CreatedAt      time.Time

	PurchasedGigs []string

	OngoingJobs    int
	CompletedJobs  int
	TotalEarnings  float64
	RecentDelivery time.Time
	TotalGigs      int

	RatingsCount     int
	RatingSum        int
	RatingCategories RatingCategories
}

// RatingCategory aggregates the reviews awarding one star value.
type RatingCategory struct {
	Value int // sum of ratings in this bucket
	Count int
}

// RatingCategories buckets ratings per star value.
type RatingCategories struct {
	One   RatingCategory
	Two   RatingCategory
	Three RatingCategory
	Four  RatingCategory
	Five  RatingCategory
}

// CounterDelta is one order-lifecycle adjustment to a seller's aggregates.
// Fields are signed deltas carried verbatim from the event.
type CounterDelta struct {
	OngoingJobs    int
	CompletedJobs  int
	TotalEarnings  float64
	RecentDelivery time.Time // applied when non-zero
	TotalGigs      int
}

// Store is what the service needs from its storage engine. The engine
// itself (document store in production, in-memory here) is an external
// collaborator; mutating methods must be safe to call with the same
// arguments twice, which the memory implementation honors via
// upsert-by-username.
type Store interface {
	// EnsureProfile creates the profile unless the username already has
	// one, and reports whether it created anything.
	EnsureProfile(ctx context.Context, p Profile) (bool, error)

	// Get returns the profile for a username.
	Get(ctx context.Context, username string) (Profile, error)

	// AddPurchasedGigs appends gig ids to a buyer's purchase history.
	AddPurchasedGigs(ctx context.Context, buyerID string, gigIDs []string) error

	// ApplyCounterDelta adjusts a seller's aggregates.
	ApplyCounterDelta(ctx context.Context, sellerID string, delta CounterDelta) error

	// ApplyRating folds one review rating into a seller's aggregates.
	ApplyRating(ctx context.Context, sellerID string, rating int) error

	// SampleSellers returns up to n randomly chosen seller profiles.
	SampleSellers(ctx context.Context, n int) ([]contracts.SellerSeed, error)
}

// Service wires the profile handlers onto the backbone.
type Service struct {
	store     Store
	messenger *messaging.Messenger
	logger    *slog.Logger
}

// New creates the profile service.
func New(m *messaging.Messenger, store Store) *Service {
	return &Service{
		store:     store,
		messenger: m,
		logger:    m.Logger(),
	}
}

// Register subscribes every profile handler. Counter-mutating queues go
// through the idempotent path; the seed request handler does not, because
// re-answering a redelivered request is harmless and the reply may have
// been lost.
func (s *Service) Register(ctx context.Context) error {
	if err := s.messenger.SubscribeIdempotent(ctx, messaging.BuyerUpdateQueue, messaging.HandlerFunc(s.handleBuyerUpdate)); err != nil {
		return err
	}
	if err := s.messenger.SubscribeIdempotent(ctx, messaging.SellerUpdateQueue, messaging.HandlerFunc(s.handleSellerUpdate)); err != nil {
		return err
	}
	if err := s.messenger.Subscribe(ctx, messaging.GigRequestQueue, messaging.HandlerFunc(s.handleSeedRequest)); err != nil {
		return err
	}
	return s.messenger.SubscribeIdempotent(ctx, messaging.ProfileReviewQueue, messaging.HandlerFunc(s.handleReview))
}

// handleBuyerUpdate serves the shared buyer queue: the type:"auth"
// provisioning event creates a default non-seller profile, anything else
// is a profile mutation command.
func (s *Service) handleBuyerUpdate(ctx context.Context, d messaging.Delivery) error {
	evt, err := contracts.DecodeBuyerEvent(d.Body())
	if err != nil {
		return err
	}

	switch evt.Kind {
	case contracts.BuyerAccountCreated:
		created, err := s.store.EnsureProfile(ctx, Profile{
			Username:       evt.Account.Username,
			Email:          evt.Account.Email,
			Country:        evt.Account.Country,
			ProfilePicture: evt.Account.ProfilePicture,
			IsSeller:       false,
			CreatedAt:      evt.Account.CreatedAt,
		})
		if err != nil {
			return fmt.Errorf("profile: provisioning %s: %w", evt.Account.Username, err)
		}
		if !created {
			s.logger.Info("profile already provisioned", "username", evt.Account.Username)
		}
		return nil

	case contracts.BuyerPurchasedGigs:
		return s.store.AddPurchasedGigs(ctx, evt.BuyerID, evt.PurchasedGigs)

	default:
		return fmt.Errorf("profile: unhandled buyer event kind %d", evt.Kind)
	}
}

// handleSellerUpdate applies one order-lifecycle transition to the
// seller's aggregates.
func (s *Service) handleSellerUpdate(ctx context.Context, d messaging.Delivery) error {
	evt, err := contracts.DecodeSellerEvent(d.Body())
	if err != nil {
		return err
	}

	switch evt.Kind {
	case contracts.SellerCreateOrder, contracts.SellerApproveOrder, contracts.SellerCancelOrder:
		return s.store.ApplyCounterDelta(ctx, evt.SellerID, CounterDelta{
			OngoingJobs:    evt.OngoingJobs,
			CompletedJobs:  evt.CompletedJobs,
			TotalEarnings:  evt.TotalEarnings,
			RecentDelivery: evt.RecentDelivery,
		})
	case contracts.SellerUpdateGigCount:
		return s.store.ApplyCounterDelta(ctx, evt.GigSellerID, CounterDelta{TotalGigs: evt.Count})
	default:
		return fmt.Errorf("profile: unhandled seller event kind %d", evt.Kind)
	}
}

// handleSeedRequest answers a catalog seed request with sampled sellers,
// echoing the request's correlation id on the reply.
func (s *Service) handleSeedRequest(ctx context.Context, d messaging.Delivery) error {
	req, err := contracts.DecodeSeedRequest(d.Body())
	if err != nil {
		return err
	}

	sellers, err := s.store.SampleSellers(ctx, req.Count)
	if err != nil {
		return fmt.Errorf("profile: sampling %d sellers: %w", req.Count, err)
	}

	reply := contracts.NewSeedReply(sellers)
	return s.messenger.PublishCorrelated(ctx, messaging.SeedGig, reply, d.CorrelationID())
}

// handleReview folds a buyer-authored review into the seller's rating
// aggregates and forwards the rating to the catalog's gig document. A
// seller reviewing a buyer does not touch seller aggregates.
func (s *Service) handleReview(ctx context.Context, d messaging.Delivery) error {
	evt, err := contracts.DecodeReviewEvent(d.Body())
	if err != nil {
		return err
	}

	if evt.Type != contracts.ReviewByBuyer {
		return nil
	}

	if err := s.store.ApplyRating(ctx, evt.SellerID, evt.Rating); err != nil {
		return fmt.Errorf("profile: rating seller %s: %w", evt.SellerID, err)
	}

	update := contracts.GigUpdate{GigID: evt.GigID, SellerID: evt.SellerID, Rating: evt.Rating}
	return s.messenger.Publish(ctx, messaging.GigUpdate, update)
}
