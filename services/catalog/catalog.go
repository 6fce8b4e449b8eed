// Package catalog consumes the seed and rating flows and maintains the gig
// documents those flows materialize.
package catalog

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/gigmarket/backbone-go/contracts"
	"github.com/gigmarket/backbone-go/messaging"
)

// Gig is one catalog listing.
type Gig struct {
	ID           string
	SellerID     string
	Username     string
	Email        string
	Title        string
	RatingsCount int
	RatingSum    int
}

// Store is the catalog's slice of its storage engine.
type Store interface {
	// UpsertGig stores the gig, replacing any document with the same id.
	UpsertGig(ctx context.Context, g Gig) error

	// Get returns a gig by id.
	Get(ctx context.Context, gigID string) (Gig, error)

	// ApplyRating folds one review rating into the gig's aggregates.
	ApplyRating(ctx context.Context, gigID string, rating int) error
}

// Service wires the catalog handlers onto the backbone.
type Service struct {
	store     Store
	messenger *messaging.Messenger
	seeder    *Seeder
	logger    *slog.Logger
}

// New creates the catalog service.
func New(m *messaging.Messenger, store Store, options ...Option) *Service {
	s := &Service{
		store:     store,
		messenger: m,
		logger:    m.Logger(),
	}
	s.seeder = newSeeder(m)
	for _, opt := range options {
		opt(s)
	}
	return s
}

// Option configures the service.
type Option func(*Service)

// WithSeederOptions configures the seed saga.
func WithSeederOptions(options ...SeederOption) Option {
	return func(s *Service) {
		for _, opt := range options {
			opt(s.seeder)
		}
	}
}

// Register subscribes the catalog handlers. Both queues mutate gig
// documents, so both take the idempotent path.
func (s *Service) Register(ctx context.Context) error {
	if err := s.messenger.SubscribeIdempotent(ctx, messaging.SeedGigQueue, messaging.HandlerFunc(s.handleSeedReply)); err != nil {
		return err
	}
	return s.messenger.SubscribeIdempotent(ctx, messaging.GigUpdateQueue, messaging.HandlerFunc(s.handleGigUpdate))
}

// SeedGigs asks the profile service for count sellers and returns the
// correlation id of the outstanding request. Gigs are materialized when
// the reply arrives.
func (s *Service) SeedGigs(ctx context.Context, count int) (string, error) {
	return s.seeder.Request(ctx, count)
}

// Outstanding reports how many seed requests await a reply.
func (s *Service) Outstanding() int {
	return s.seeder.Outstanding()
}

// Close stops the seeder's outstanding timers.
func (s *Service) Close() {
	s.seeder.Close()
}

// handleSeedReply materializes one gig per sampled seller. Gig ids derive
// from the seller id, so a redelivered or re-answered reply upserts the
// same documents instead of duplicating them.
func (s *Service) handleSeedReply(ctx context.Context, d messaging.Delivery) error {
	reply, err := contracts.DecodeSeedReply(d.Body())
	if err != nil {
		return err
	}

	if !s.seeder.resolve(d.CorrelationID()) {
		s.logger.Warn("seed reply for unknown request", "correlationId", d.CorrelationID())
	}

	for _, seller := range reply.Sellers {
		gig := Gig{
			ID:       "seed-" + seller.SellerID,
			SellerID: seller.SellerID,
			Username: seller.Username,
			Email:    seller.Email,
			Title:    fmt.Sprintf("I will deliver quality work for %s", seller.Username),
		}
		if err := s.store.UpsertGig(ctx, gig); err != nil {
			return fmt.Errorf("catalog: seeding gig for %s: %w", seller.SellerID, err)
		}
	}

	s.logger.Info("catalog seeded", "sellers", reply.Count)
	return nil
}

// handleGigUpdate folds a propagated review rating onto the gig document.
func (s *Service) handleGigUpdate(ctx context.Context, d messaging.Delivery) error {
	update, err := contracts.DecodeGigUpdate(d.Body())
	if err != nil {
		return err
	}
	return s.store.ApplyRating(ctx, update.GigID, update.Rating)
}
