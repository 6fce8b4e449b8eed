package feedback_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gigmarket/backbone-go/contracts"
	"github.com/gigmarket/backbone-go/messaging"
	"github.com/gigmarket/backbone-go/services/feedback"
	"github.com/gigmarket/backbone-go/transports/inmem"
)

type capture struct {
	bodies [][]byte
}

func (c *capture) handle(_ context.Context, d messaging.Delivery) error {
	c.bodies = append(c.bodies, d.Body())
	return nil
}

func TestSubmitReviewBroadcastsToEveryQueue(t *testing.T) {
	tr := inmem.New()
	ctx := context.Background()

	var orderSide, profileSide capture
	require.NoError(t, tr.Subscribe(ctx, messaging.OrderReviewQueue, messaging.HandlerFunc(orderSide.handle)))
	require.NoError(t, tr.Subscribe(ctx, messaging.ProfileReviewQueue, messaging.HandlerFunc(profileSide.handle)))

	svc := feedback.New(messaging.NewMessenger(tr, messaging.WithService("feedback")))
	require.NoError(t, svc.SubmitReview(ctx, contracts.ReviewEvent{
		GigID:      "gig-1",
		ReviewerID: "dana",
		OrderID:    "order-1",
		SellerID:   "sam",
		Review:     "great work",
		Rating:     5,
		Type:       contracts.ReviewByBuyer,
	}))

	require.Len(t, orderSide.bodies, 1)
	require.Len(t, profileSide.bodies, 1)

	evt, err := contracts.DecodeReviewEvent(profileSide.bodies[0])
	require.NoError(t, err)
	assert.Equal(t, "order-1", evt.OrderID)
	assert.False(t, evt.CreatedAt.IsZero(), "submission time should be stamped")
}

func TestSubmitReviewRejectsBadInput(t *testing.T) {
	svc := feedback.New(messaging.NewMessenger(inmem.New(), messaging.WithService("feedback")))
	ctx := context.Background()

	err := svc.SubmitReview(ctx, contracts.ReviewEvent{Rating: 5, Type: "editorial"})
	assert.ErrorContains(t, err, "authorship")

	err = svc.SubmitReview(ctx, contracts.ReviewEvent{Rating: 6, Type: contracts.ReviewByBuyer})
	assert.ErrorContains(t, err, "out of range")
}
