// Package identity announces account provisioning: one event for the
// profile service to materialize a default profile from, one email job to
// get the address verified.
package identity

import (
	"context"
	"errors"
	"time"

	"github.com/gigmarket/backbone-go/contracts"
	"github.com/gigmarket/backbone-go/messaging"
)

// Account is a freshly provisioned account.
type Account struct {
	Username       string
	Email          string
	ProfilePicture string
	Country        string
	VerifyLink     string
	CreatedAt      time.Time
}

// Service is the identity side of the backbone. It only publishes.
type Service struct {
	messenger *messaging.Messenger
	now       func() time.Time
}

// New creates the identity service.
func New(m *messaging.Messenger) *Service {
	return &Service{messenger: m, now: time.Now}
}

// AccountCreated publishes the provisioning event and the verification
// email job. Both are attempted even if the first fails; the caller sees
// every failure.
func (s *Service) AccountCreated(ctx context.Context, a Account) error {
	if a.CreatedAt.IsZero() {
		a.CreatedAt = s.now().UTC()
	}

	evt := contracts.NewAccountCreated(a.Username, a.Email, a.ProfilePicture, a.Country, a.CreatedAt)
	provisionErr := s.messenger.Publish(ctx, messaging.BuyerUpdate, evt)

	emailErr := s.messenger.Publish(ctx, messaging.AuthEmail, contracts.EmailJob{
		ReceiverEmail: a.Email,
		Template:      "verifyEmail",
		Username:      a.Username,
		VerifyLink:    a.VerifyLink,
	})

	return errors.Join(provisionErr, emailErr)
}

// GigPurchased records a purchase against the buyer's profile.
func (s *Service) GigPurchased(ctx context.Context, buyerID string, gigIDs []string) error {
	return s.messenger.Publish(ctx, messaging.BuyerUpdate, contracts.NewPurchasedGigs(buyerID, gigIDs))
}
