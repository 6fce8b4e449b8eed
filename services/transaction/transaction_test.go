package transaction_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gigmarket/backbone-go/contracts"
	"github.com/gigmarket/backbone-go/messaging"
	"github.com/gigmarket/backbone-go/services/transaction"
	"github.com/gigmarket/backbone-go/transports/inmem"
)

type capture struct {
	bodies [][]byte
}

func (c *capture) handle(_ context.Context, d messaging.Delivery) error {
	c.bodies = append(c.bodies, d.Body())
	return nil
}

func newService(t *testing.T) (*inmem.Transport, *transaction.Service, *transaction.MemoryStore) {
	t.Helper()

	transport := inmem.New()
	store := transaction.NewMemoryStore()
	messenger := messaging.NewMessenger(transport, messaging.WithService("transaction"))

	svc := transaction.New(messenger, store)
	require.NoError(t, svc.Register(context.Background()))

	return transport, svc, store
}

func placeOrder(t *testing.T, svc *transaction.Service) transaction.Order {
	t.Helper()

	o, err := svc.CreateOrder(context.Background(), transaction.Order{
		GigID:       "gig-1",
		Title:       "logo design",
		BuyerID:     "dana",
		BuyerEmail:  "dana@example.com",
		SellerID:    "sam",
		SellerEmail: "sam@example.com",
		Price:       20,
	})
	require.NoError(t, err)
	return o
}

func TestCreateOrderAnnouncesCounterAndEmail(t *testing.T) {
	tr, svc, store := newService(t)
	ctx := context.Background()

	var counters, emails capture
	require.NoError(t, tr.Subscribe(ctx, messaging.SellerUpdateQueue, messaging.HandlerFunc(counters.handle)))
	require.NoError(t, tr.Subscribe(ctx, messaging.OrderEmailQueue, messaging.HandlerFunc(emails.handle)))

	o := placeOrder(t, svc)
	assert.NotEmpty(t, o.ID)
	assert.Equal(t, transaction.StatusInProgress, o.Status)

	stored, err := store.Get(ctx, o.ID)
	require.NoError(t, err)
	assert.Equal(t, transaction.StatusInProgress, stored.Status)

	require.Len(t, counters.bodies, 1)
	evt, err := contracts.DecodeSellerEvent(counters.bodies[0])
	require.NoError(t, err)
	assert.Equal(t, contracts.SellerCreateOrder, evt.Kind)
	assert.Equal(t, "sam", evt.SellerID)
	assert.Equal(t, 1, evt.OngoingJobs)

	require.Len(t, emails.bodies, 1)
	job, err := contracts.DecodeEmailJob(emails.bodies[0])
	require.NoError(t, err)
	assert.Equal(t, "orderPlaced", job.Template)
	assert.Equal(t, "sam@example.com", job.ReceiverEmail)
	assert.Equal(t, "20.00", job.Amount)
}

func TestApproveSettlesSellerAggregates(t *testing.T) {
	tr, svc, store := newService(t)
	ctx := context.Background()

	var counters capture
	require.NoError(t, tr.Subscribe(ctx, messaging.SellerUpdateQueue, messaging.HandlerFunc(counters.handle)))

	o := placeOrder(t, svc)
	require.NoError(t, svc.DeliverOrder(ctx, o.ID))
	require.NoError(t, svc.ApproveOrder(ctx, o.ID))

	stored, err := store.Get(ctx, o.ID)
	require.NoError(t, err)
	assert.Equal(t, transaction.StatusApproved, stored.Status)
	assert.False(t, stored.DeliveredAt.IsZero())

	// create-order, then approve-order.
	require.Len(t, counters.bodies, 2)
	evt, err := contracts.DecodeSellerEvent(counters.bodies[1])
	require.NoError(t, err)
	assert.Equal(t, contracts.SellerApproveOrder, evt.Kind)
	assert.Equal(t, -1, evt.OngoingJobs)
	assert.Equal(t, 1, evt.CompletedJobs)
	assert.Equal(t, 20.0, evt.TotalEarnings)
	assert.False(t, evt.RecentDelivery.IsZero())
}

func TestApproveRequiresDelivery(t *testing.T) {
	_, svc, _ := newService(t)

	o := placeOrder(t, svc)
	err := svc.ApproveOrder(context.Background(), o.ID)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "in progress")
}

func TestDeliverEmailsBuyer(t *testing.T) {
	tr, svc, _ := newService(t)
	ctx := context.Background()

	var emails capture
	require.NoError(t, tr.Subscribe(ctx, messaging.OrderEmailQueue, messaging.HandlerFunc(emails.handle)))

	o := placeOrder(t, svc)
	require.NoError(t, svc.DeliverOrder(ctx, o.ID))

	// orderPlaced, then orderDelivered.
	require.Len(t, emails.bodies, 2)
	job, err := contracts.DecodeEmailJob(emails.bodies[1])
	require.NoError(t, err)
	assert.Equal(t, "orderDelivered", job.Template)
	assert.Equal(t, "dana@example.com", job.ReceiverEmail)
}

func TestCancelReleasesOngoingSlot(t *testing.T) {
	tr, svc, store := newService(t)
	ctx := context.Background()

	var counters capture
	require.NoError(t, tr.Subscribe(ctx, messaging.SellerUpdateQueue, messaging.HandlerFunc(counters.handle)))

	o := placeOrder(t, svc)
	require.NoError(t, svc.CancelOrder(ctx, o.ID))

	stored, err := store.Get(ctx, o.ID)
	require.NoError(t, err)
	assert.Equal(t, transaction.StatusCancelled, stored.Status)

	require.Len(t, counters.bodies, 2)
	evt, err := contracts.DecodeSellerEvent(counters.bodies[1])
	require.NoError(t, err)
	assert.Equal(t, contracts.SellerCancelOrder, evt.Kind)
	assert.Equal(t, -1, evt.OngoingJobs)

	// A cancelled order cannot be delivered.
	require.Error(t, svc.DeliverOrder(ctx, o.ID))
}

func TestBroadcastReviewEmbeddedOnOrder(t *testing.T) {
	tr, svc, store := newService(t)
	ctx := context.Background()

	o := placeOrder(t, svc)

	reviewed := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	body, err := json.Marshal(contracts.ReviewEvent{
		GigID:      o.GigID,
		ReviewerID: "dana",
		OrderID:    o.ID,
		SellerID:   "sam",
		Review:     "great work",
		Rating:     5,
		Type:       contracts.ReviewByBuyer,
		CreatedAt:  reviewed,
	})
	require.NoError(t, err)
	require.NoError(t, tr.Publish(ctx, messaging.Review, contracts.NewEnvelope(body)))

	stored, err := store.Get(ctx, o.ID)
	require.NoError(t, err)
	require.NotNil(t, stored.BuyerReview)
	assert.Equal(t, 5, stored.BuyerReview.Rating)
	assert.Equal(t, "great work", stored.BuyerReview.Review)
	assert.Equal(t, reviewed, stored.BuyerReview.CreatedAt)
	assert.Nil(t, stored.SellerReview)
}

func TestRedeliveredReviewEmbeddedOnce(t *testing.T) {
	tr, svc, store := newService(t)
	ctx := context.Background()

	o := placeOrder(t, svc)

	body, err := json.Marshal(contracts.ReviewEvent{
		OrderID: o.ID,
		Rating:  4,
		Type:    contracts.ReviewBySeller,
	})
	require.NoError(t, err)
	env := contracts.NewEnvelope(body)
	require.NoError(t, tr.Publish(ctx, messaging.Review, env))
	require.NoError(t, tr.Publish(ctx, messaging.Review, env))

	stored, err := store.Get(ctx, o.ID)
	require.NoError(t, err)
	require.NotNil(t, stored.SellerReview)
	assert.Equal(t, 4, stored.SellerReview.Rating)
	assert.Empty(t, tr.DeadLetters())
}
