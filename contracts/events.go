package contracts

import (
	"encoding/json"
	"fmt"
	"time"
)

// Discriminator values carried verbatim on the wire.
const (
	typeAuth           = "auth"
	typePurchasedGigs  = "purchased-gigs"
	typeCreateOrder    = "create-order"
	typeApproveOrder   = "approve-order"
	typeCancelOrder    = "cancel-order"
	typeUpdateGigCount = "update-gig-count"
	typeGetSellers     = "getSellers"
	typeReceiveSellers = "receiveSellers"
)

// AccountCreated is published by the identity service when an account is
// provisioned. The profile service materializes a default (non-seller)
// profile from it.
type AccountCreated struct {
	Username       string    `json:"username"`
	Email          string    `json:"email"`
	ProfilePicture string    `json:"profilePicture,omitempty"`
	Country        string    `json:"country"`
	CreatedAt      time.Time `json:"createdAt"`
	Type           string    `json:"type"`
}

// NewAccountCreated builds the provisioning event with its discriminator set.
func NewAccountCreated(username, email, picture, country string, createdAt time.Time) AccountCreated {
	return AccountCreated{
		Username:       username,
		Email:          email,
		ProfilePicture: picture,
		Country:        country,
		CreatedAt:      createdAt,
		Type:           typeAuth,
	}
}

// BuyerEventKind discriminates the message shapes sharing the buyer queue.
type BuyerEventKind int

const (
	// BuyerAccountCreated is the type:"auth" provisioning message.
	BuyerAccountCreated BuyerEventKind = iota + 1
	// BuyerPurchasedGigs records a purchase against the buyer's profile.
	BuyerPurchasedGigs
)

// BuyerEvent is the decoded form of a buyer-queue delivery. Exactly one of
// the payload fields is meaningful depending on Kind.
type BuyerEvent struct {
	Kind          BuyerEventKind
	Account       AccountCreated
	BuyerID       string
	PurchasedGigs []string
}

type wireBuyerEvent struct {
	Type           string    `json:"type"`
	Username       string    `json:"username"`
	Email          string    `json:"email"`
	ProfilePicture string    `json:"profilePicture"`
	Country        string    `json:"country"`
	CreatedAt      time.Time `json:"createdAt"`
	BuyerID        string    `json:"buyerId"`
	PurchasedGigs  []string  `json:"purchasedGigs"`
}

// DecodeBuyerEvent routes a buyer-queue body by its payload content. The
// queue historically carries both the provisioning event and profile
// mutation commands, so the discriminator lives in the body rather than in
// the routing key; this is the single place that fragility is handled.
func DecodeBuyerEvent(body []byte) (BuyerEvent, error) {
	var w wireBuyerEvent
	if err := json.Unmarshal(body, &w); err != nil {
		return BuyerEvent{}, &DecodeError{Err: err}
	}

	switch w.Type {
	case typeAuth:
		return BuyerEvent{
			Kind: BuyerAccountCreated,
			Account: AccountCreated{
				Username:       w.Username,
				Email:          w.Email,
				ProfilePicture: w.ProfilePicture,
				Country:        w.Country,
				CreatedAt:      w.CreatedAt,
				Type:           w.Type,
			},
		}, nil
	case typePurchasedGigs:
		return BuyerEvent{
			Kind:          BuyerPurchasedGigs,
			BuyerID:       w.BuyerID,
			PurchasedGigs: w.PurchasedGigs,
		}, nil
	default:
		return BuyerEvent{}, &DecodeError{Type: w.Type, Err: ErrUnknownEventType}
	}
}

// PurchasedGigs builds the buyer mutation command.
type PurchasedGigs struct {
	Type          string   `json:"type"`
	BuyerID       string   `json:"buyerId"`
	PurchasedGigs []string `json:"purchasedGigs"`
}

// NewPurchasedGigs builds the purchase mutation with its discriminator set.
func NewPurchasedGigs(buyerID string, gigIDs []string) PurchasedGigs {
	return PurchasedGigs{Type: typePurchasedGigs, BuyerID: buyerID, PurchasedGigs: gigIDs}
}

// SellerEventKind is the closed set of order-lifecycle transitions that
// mutate seller aggregates.
type SellerEventKind int

const (
	SellerCreateOrder SellerEventKind = iota + 1
	SellerApproveOrder
	SellerCancelOrder
	SellerUpdateGigCount
)

var sellerKindToWire = map[SellerEventKind]string{
	SellerCreateOrder:    typeCreateOrder,
	SellerApproveOrder:   typeApproveOrder,
	SellerCancelOrder:    typeCancelOrder,
	SellerUpdateGigCount: typeUpdateGigCount,
}

var sellerWireToKind = map[string]SellerEventKind{
	typeCreateOrder:    SellerCreateOrder,
	typeApproveOrder:   SellerApproveOrder,
	typeCancelOrder:    SellerCancelOrder,
	typeUpdateGigCount: SellerUpdateGigCount,
}

// String returns the wire discriminator for the kind.
func (k SellerEventKind) String() string {
	if s, ok := sellerKindToWire[k]; ok {
		return s
	}
	return fmt.Sprintf("SellerEventKind(%d)", int(k))
}

// SellerEvent is one order-lifecycle transition. Fields are present or
// zero depending on Kind, matching what the wire shape carries per type.
type SellerEvent struct {
	Kind           SellerEventKind
	SellerID       string
	OngoingJobs    int
	CompletedJobs  int
	TotalEarnings  float64
	RecentDelivery time.Time
	GigSellerID    string
	Count          int
}

type wireSellerEvent struct {
	Type           string     `json:"type"`
	SellerID       string     `json:"sellerId,omitempty"`
	OngoingJobs    int        `json:"ongoingJobs,omitempty"`
	CompletedJobs  int        `json:"completedJobs,omitempty"`
	TotalEarnings  float64    `json:"totalEarnings,omitempty"`
	RecentDelivery *time.Time `json:"recentDelivery,omitempty"`
	GigSellerID    string     `json:"gigSellerId,omitempty"`
	Count          int        `json:"count,omitempty"`
}

// DecodeSellerEvent decodes a seller-queue body into its transition kind.
func DecodeSellerEvent(body []byte) (SellerEvent, error) {
	var w wireSellerEvent
	if err := json.Unmarshal(body, &w); err != nil {
		return SellerEvent{}, &DecodeError{Err: err}
	}

	kind, ok := sellerWireToKind[w.Type]
	if !ok {
		return SellerEvent{}, &DecodeError{Type: w.Type, Err: ErrUnknownEventType}
	}

	e := SellerEvent{
		Kind:          kind,
		SellerID:      w.SellerID,
		OngoingJobs:   w.OngoingJobs,
		CompletedJobs: w.CompletedJobs,
		TotalEarnings: w.TotalEarnings,
		GigSellerID:   w.GigSellerID,
		Count:         w.Count,
	}
	if w.RecentDelivery != nil {
		e.RecentDelivery = *w.RecentDelivery
	}
	return e, nil
}

// EncodeSellerEvent serializes a transition with its verbatim wire
// discriminator.
func EncodeSellerEvent(e SellerEvent) ([]byte, error) {
	wire, ok := sellerKindToWire[e.Kind]
	if !ok {
		return nil, fmt.Errorf("contracts: encoding seller event: %w: %d", ErrUnknownEventType, int(e.Kind))
	}
	w := wireSellerEvent{
		Type:          wire,
		SellerID:      e.SellerID,
		OngoingJobs:   e.OngoingJobs,
		CompletedJobs: e.CompletedJobs,
		TotalEarnings: e.TotalEarnings,
		GigSellerID:   e.GigSellerID,
		Count:         e.Count,
	}
	if !e.RecentDelivery.IsZero() {
		t := e.RecentDelivery
		w.RecentDelivery = &t
	}
	return json.Marshal(w)
}

// SeedRequest asks the profile service for a sample of sellers to seed the
// catalog with.
type SeedRequest struct {
	Type  string `json:"type"`
	Count int    `json:"count"`
}

// NewSeedRequest builds a seed request for count sellers.
func NewSeedRequest(count int) SeedRequest {
	return SeedRequest{Type: typeGetSellers, Count: count}
}

// DecodeSeedRequest decodes and validates a seed request body.
func DecodeSeedRequest(body []byte) (SeedRequest, error) {
	var req SeedRequest
	if err := json.Unmarshal(body, &req); err != nil {
		return SeedRequest{}, &DecodeError{Err: err}
	}
	if req.Type != typeGetSellers {
		return SeedRequest{}, &DecodeError{Type: req.Type, Err: ErrUnknownEventType}
	}
	if req.Count < 0 {
		return SeedRequest{}, &DecodeError{Type: req.Type, Err: fmt.Errorf("negative seller count %d", req.Count)}
	}
	return req, nil
}

// SellerSeed is the slice of a seller profile the catalog needs to
// materialize gigs.
type SellerSeed struct {
	SellerID string   `json:"sellerId"`
	Username string   `json:"username"`
	Email    string   `json:"email"`
	Skills   []string `json:"skills,omitempty"`
}

// SeedReply answers a SeedRequest with sampled sellers.
type SeedReply struct {
	Type    string       `json:"type"`
	Sellers []SellerSeed `json:"sellers"`
	Count   int          `json:"count"`
}

// NewSeedReply builds the seed response.
func NewSeedReply(sellers []SellerSeed) SeedReply {
	return SeedReply{Type: typeReceiveSellers, Sellers: sellers, Count: len(sellers)}
}

// DecodeSeedReply decodes and validates a seed reply body.
func DecodeSeedReply(body []byte) (SeedReply, error) {
	var reply SeedReply
	if err := json.Unmarshal(body, &reply); err != nil {
		return SeedReply{}, &DecodeError{Err: err}
	}
	if reply.Type != typeReceiveSellers {
		return SeedReply{}, &DecodeError{Type: reply.Type, Err: ErrUnknownEventType}
	}
	return reply, nil
}

// GigUpdate propagates a review's rating onto the gig document owned by the
// catalog service.
type GigUpdate struct {
	GigID    string `json:"gigId"`
	SellerID string `json:"sellerId"`
	Rating   int    `json:"rating"`
}

// DecodeGigUpdate decodes a rating-propagation body.
func DecodeGigUpdate(body []byte) (GigUpdate, error) {
	var u GigUpdate
	if err := json.Unmarshal(body, &u); err != nil {
		return GigUpdate{}, &DecodeError{Err: err}
	}
	return u, nil
}

// ReviewEvent is broadcast once per submitted review; the profile and order
// services each consume their own copy.
type ReviewEvent struct {
	GigID      string    `json:"gigId"`
	ReviewerID string    `json:"reviewerId"`
	OrderID    string    `json:"orderId"`
	SellerID   string    `json:"sellerId"`
	Review     string    `json:"review"`
	Rating     int       `json:"rating"`
	Type       string    `json:"type"`
	CreatedAt  time.Time `json:"createdAt"`
}

// Review discriminators: who wrote the review. The order service embeds a
// buyer-authored review as buyerReview and a seller-authored one as
// sellerReview.
const (
	ReviewByBuyer  = "buyer-review"
	ReviewBySeller = "seller-review"
)

// DecodeReviewEvent decodes a fanout review body and rejects reviews whose
// authorship discriminator is outside the closed set.
func DecodeReviewEvent(body []byte) (ReviewEvent, error) {
	var e ReviewEvent
	if err := json.Unmarshal(body, &e); err != nil {
		return ReviewEvent{}, &DecodeError{Err: err}
	}
	if e.Type != ReviewByBuyer && e.Type != ReviewBySeller {
		return ReviewEvent{}, &DecodeError{Type: e.Type, Err: ErrUnknownEventType}
	}
	return e, nil
}

// EmailJob is handed to the notification service, which renders the named
// template and sends it. Fields beyond template and receiver are optional
// template locals.
type EmailJob struct {
	ReceiverEmail  string `json:"receiverEmail"`
	Template       string `json:"template"`
	Username       string `json:"username,omitempty"`
	VerifyLink     string `json:"verifyLink,omitempty"`
	OrderID        string `json:"orderId,omitempty"`
	OrderURL       string `json:"orderUrl,omitempty"`
	Amount         string `json:"amount,omitempty"`
	BuyerUsername  string `json:"buyerUsername,omitempty"`
	SellerUsername string `json:"sellerUsername,omitempty"`
	Title          string `json:"title,omitempty"`
}

// DecodeEmailJob decodes a notification-queue body.
func DecodeEmailJob(body []byte) (EmailJob, error) {
	var job EmailJob
	if err := json.Unmarshal(body, &job); err != nil {
		return EmailJob{}, &DecodeError{Err: err}
	}
	if job.Template == "" {
		return EmailJob{}, &DecodeError{Err: fmt.Errorf("email job missing template")}
	}
	return job, nil
}
