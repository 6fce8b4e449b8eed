package backbone_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	backbone "github.com/gigmarket/backbone-go"
	"github.com/gigmarket/backbone-go/contracts"
	"github.com/gigmarket/backbone-go/services/catalog"
	"github.com/gigmarket/backbone-go/services/conversation"
	"github.com/gigmarket/backbone-go/services/feedback"
	"github.com/gigmarket/backbone-go/services/identity"
	"github.com/gigmarket/backbone-go/services/notification"
	"github.com/gigmarket/backbone-go/services/profile"
	"github.com/gigmarket/backbone-go/services/transaction"
	"github.com/gigmarket/backbone-go/transports/inmem"
)

// marketplace wires every service onto one shared in-memory broker, the
// way the deployed system shares one RabbitMQ.
type marketplace struct {
	transport *inmem.Transport

	identity     *identity.Service
	profile      *profile.Service
	profiles     *profile.MemoryStore
	catalog      *catalog.Service
	gigs         *catalog.MemoryStore
	transaction  *transaction.Service
	orders       *transaction.MemoryStore
	feedback     *feedback.Service
	conversation *conversation.Service
	emails       *notification.RecordingSender
}

func newMarketplace(t *testing.T) *marketplace {
	t.Helper()
	ctx := context.Background()

	transport := inmem.New()
	m := &marketplace{
		transport: transport,
		profiles:  profile.NewMemoryStore(),
		gigs:      catalog.NewMemoryStore(),
		orders:    transaction.NewMemoryStore(),
		emails:    &notification.RecordingSender{},
	}

	newClient := func(name string) *backbone.Client {
		c, err := backbone.NewClient(ctx, "",
			backbone.WithServiceName(name),
			backbone.WithTransport(transport),
		)
		require.NoError(t, err)
		return c
	}

	m.identity = identity.New(newClient("identity").Messenger())

	m.profile = profile.New(newClient("profile").Messenger(), m.profiles)
	require.NoError(t, m.profile.Register(ctx))

	m.catalog = catalog.New(newClient("catalog").Messenger(), m.gigs)
	require.NoError(t, m.catalog.Register(ctx))
	t.Cleanup(m.catalog.Close)

	m.transaction = transaction.New(newClient("transaction").Messenger(), m.orders)
	require.NoError(t, m.transaction.Register(ctx))

	m.feedback = feedback.New(newClient("feedback").Messenger())
	m.conversation = conversation.New(newClient("conversation").Messenger())

	notif := notification.New(newClient("notification").Messenger(), m.emails)
	require.NoError(t, notif.Register(ctx))

	return m
}

func (m *marketplace) signup(t *testing.T, username string) {
	t.Helper()
	require.NoError(t, m.identity.AccountCreated(context.Background(), identity.Account{
		Username:   username,
		Email:      username + "@example.com",
		Country:    "DE",
		VerifyLink: "https://example.com/verify/" + username,
	}))
}

func (m *marketplace) promoteToSeller(t *testing.T, username string) {
	t.Helper()
	// Becoming a seller is a profile-service concern outside the
	// backbone; stores flip the flag directly.
	created, err := m.profiles.EnsureProfile(context.Background(), profile.Profile{
		Username: username,
		Email:    username + "@example.com",
		IsSeller: true,
	})
	require.NoError(t, err)
	require.True(t, created)
}

func TestSignupChoreography(t *testing.T) {
	m := newMarketplace(t)
	ctx := context.Background()

	m.signup(t, "dana")

	p, err := m.profiles.Get(ctx, "dana")
	require.NoError(t, err)
	assert.Equal(t, "dana@example.com", p.Email)
	assert.False(t, p.IsSeller)

	sent := m.emails.Sent()
	require.Len(t, sent, 1)
	assert.Equal(t, "verifyEmail", sent[0].Template)
	assert.Equal(t, "dana@example.com", sent[0].ReceiverEmail)

	assert.Empty(t, m.transport.DeadLetters())
}

func TestSeedChoreography(t *testing.T) {
	m := newMarketplace(t)

	for _, name := range []string{"s1", "s2", "s3"} {
		m.promoteToSeller(t, name)
	}

	_, err := m.catalog.SeedGigs(context.Background(), 2)
	require.NoError(t, err)

	// The in-memory transport is synchronous: request, reply, and
	// materialization all completed inside SeedGigs.
	assert.Equal(t, 2, m.gigs.Len())
	assert.Zero(t, m.catalog.Outstanding())
}

func TestOrderLifecycleChoreography(t *testing.T) {
	m := newMarketplace(t)
	ctx := context.Background()

	m.signup(t, "dana")
	m.promoteToSeller(t, "sam")

	o, err := m.transaction.CreateOrder(ctx, transaction.Order{
		GigID:       "gig-1",
		Title:       "logo design",
		BuyerID:     "dana",
		BuyerEmail:  "dana@example.com",
		SellerID:    "sam",
		SellerEmail: "sam@example.com",
		Price:       20,
	})
	require.NoError(t, err)

	p, err := m.profiles.Get(ctx, "sam")
	require.NoError(t, err)
	assert.Equal(t, 1, p.OngoingJobs)

	require.NoError(t, m.transaction.DeliverOrder(ctx, o.ID))
	require.NoError(t, m.transaction.ApproveOrder(ctx, o.ID))

	p, err = m.profiles.Get(ctx, "sam")
	require.NoError(t, err)
	assert.Zero(t, p.OngoingJobs)
	assert.Equal(t, 1, p.CompletedJobs)
	assert.Equal(t, 20.0, p.TotalEarnings)

	// verify, order placed, order delivered.
	templates := make([]string, 0, 3)
	for _, job := range m.emails.Sent() {
		templates = append(templates, job.Template)
	}
	assert.Equal(t, []string{"verifyEmail", "orderPlaced", "orderDelivered"}, templates)

	assert.Empty(t, m.transport.DeadLetters())
}

func TestFeedbackFanoutChoreography(t *testing.T) {
	m := newMarketplace(t)
	ctx := context.Background()

	m.promoteToSeller(t, "sam")
	require.NoError(t, m.gigs.UpsertGig(ctx, catalog.Gig{ID: "gig-1", SellerID: "sam"}))

	o, err := m.transaction.CreateOrder(ctx, transaction.Order{
		GigID:    "gig-1",
		BuyerID:  "dana",
		SellerID: "sam",
		Price:    20,
	})
	require.NoError(t, err)

	require.NoError(t, m.feedback.SubmitReview(ctx, contracts.ReviewEvent{
		GigID:      "gig-1",
		ReviewerID: "dana",
		OrderID:    o.ID,
		SellerID:   "sam",
		Review:     "great work",
		Rating:     5,
		Type:       contracts.ReviewByBuyer,
	}))

	// One broadcast, three effects: the order document, the seller's
	// aggregates, and the gig's aggregates (via the propagated update).
	stored, err := m.orders.Get(ctx, o.ID)
	require.NoError(t, err)
	require.NotNil(t, stored.BuyerReview)
	assert.Equal(t, 5, stored.BuyerReview.Rating)

	p, err := m.profiles.Get(ctx, "sam")
	require.NoError(t, err)
	assert.Equal(t, 1, p.RatingsCount)
	assert.Equal(t, 1, p.RatingCategories.Five.Count)

	g, err := m.gigs.Get(ctx, "gig-1")
	require.NoError(t, err)
	assert.Equal(t, 1, g.RatingsCount)
	assert.Equal(t, 5, g.RatingSum)

	assert.Empty(t, m.transport.DeadLetters())
}

func TestOfferChoreography(t *testing.T) {
	m := newMarketplace(t)

	require.NoError(t, m.conversation.OfferExtended(context.Background(), conversation.Offer{
		BuyerEmail:     "dana@example.com",
		BuyerUsername:  "dana",
		SellerUsername: "sam",
		Title:          "logo design",
		Price:          35,
	}))

	sent := m.emails.Sent()
	require.Len(t, sent, 1)
	assert.Equal(t, "offer", sent[0].Template)
	assert.Equal(t, "35.00", sent[0].Amount)
}
