// Package conversation publishes the messaging-adjacent notifications:
// when a seller extends a custom offer in a chat, the buyer gets an email.
package conversation

import (
	"context"
	"fmt"

	"github.com/gigmarket/backbone-go/contracts"
	"github.com/gigmarket/backbone-go/messaging"
)

// Offer is a custom offer extended inside a conversation.
type Offer struct {
	BuyerEmail     string
	BuyerUsername  string
	SellerUsername string
	Title          string
	Price          float64
}

// Service is the conversation side of the backbone. It only publishes.
type Service struct {
	messenger *messaging.Messenger
}

// New creates the conversation service.
func New(m *messaging.Messenger) *Service {
	return &Service{messenger: m}
}

// OfferExtended emails the buyer about a custom offer.
func (s *Service) OfferExtended(ctx context.Context, o Offer) error {
	return s.messenger.Publish(ctx, messaging.OrderEmail, contracts.EmailJob{
		ReceiverEmail:  o.BuyerEmail,
		Template:       "offer",
		Amount:         fmt.Sprintf("%.2f", o.Price),
		BuyerUsername:  o.BuyerUsername,
		SellerUsername: o.SellerUsername,
		Title:          o.Title,
	})
}
