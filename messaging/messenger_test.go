package messaging_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gigmarket/backbone-go/contracts"
	"github.com/gigmarket/backbone-go/messaging"
	"github.com/gigmarket/backbone-go/transports/inmem"
)

func TestPublishStampsMessageID(t *testing.T) {
	tr := inmem.New()
	m := messaging.NewMessenger(tr, messaging.WithService("test"))
	ctx := context.Background()

	var got []messaging.Delivery
	require.NoError(t, tr.Subscribe(ctx, messaging.BuyerUpdateQueue, messaging.HandlerFunc(
		func(_ context.Context, d messaging.Delivery) error {
			got = append(got, d)
			return nil
		})))

	require.NoError(t, m.Publish(ctx, messaging.BuyerUpdate, map[string]string{"type": "auth"}))
	require.NoError(t, m.Publish(ctx, messaging.BuyerUpdate, map[string]string{"type": "auth"}))

	require.Len(t, got, 2)
	assert.NotEmpty(t, got[0].MessageID())
	assert.NotEqual(t, got[0].MessageID(), got[1].MessageID(), "each publish gets a fresh id")
	assert.Empty(t, got[0].CorrelationID())
}

func TestPublishCorrelatedCarriesID(t *testing.T) {
	tr := inmem.New()
	m := messaging.NewMessenger(tr, messaging.WithService("test"))
	ctx := context.Background()

	var correlationID string
	require.NoError(t, tr.Subscribe(ctx, messaging.GigRequestQueue, messaging.HandlerFunc(
		func(_ context.Context, d messaging.Delivery) error {
			correlationID = d.CorrelationID()
			return nil
		})))

	require.NoError(t, m.PublishCorrelated(ctx, messaging.GigRequest, contracts.NewSeedRequest(3), "req-7"))
	assert.Equal(t, "req-7", correlationID)
}

func TestPublishRejectsUnencodablePayload(t *testing.T) {
	m := messaging.NewMessenger(inmem.New(), messaging.WithService("test"))

	err := m.Publish(context.Background(), messaging.BuyerUpdate, func() {})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "encoding payload")
}

func TestSubscribeIdempotentSharesOneInbox(t *testing.T) {
	tr := inmem.New()
	m := messaging.NewMessenger(tr, messaging.WithService("test"))
	ctx := context.Background()

	calls := 0
	handler := messaging.HandlerFunc(func(context.Context, messaging.Delivery) error {
		calls++
		return nil
	})
	require.NoError(t, m.SubscribeIdempotent(ctx, messaging.BuyerUpdateQueue, handler))

	env := contracts.NewEnvelope([]byte(`{"type":"auth","username":"dana"}`))
	require.NoError(t, tr.Publish(ctx, messaging.BuyerUpdate, env))
	require.NoError(t, tr.Publish(ctx, messaging.BuyerUpdate, env))

	assert.Equal(t, 1, calls)
}

func TestSubscribeIdempotentFanoutCopiesBothHandled(t *testing.T) {
	tr := inmem.New()
	m := messaging.NewMessenger(tr, messaging.WithService("test"))
	ctx := context.Background()

	calls := map[string]int{}
	subscribe := func(sub messaging.Subscription) {
		require.NoError(t, m.SubscribeIdempotent(ctx, sub, messaging.HandlerFunc(
			func(context.Context, messaging.Delivery) error {
				calls[sub.Queue]++
				return nil
			})))
	}
	subscribe(messaging.OrderReviewQueue)
	subscribe(messaging.ProfileReviewQueue)

	env := contracts.NewEnvelope([]byte(`{"orderId":"o1","type":"buyer-review","rating":5}`))
	require.NoError(t, tr.Publish(ctx, messaging.Review, env))

	// One messenger, one inbox store, two queues: the fanout copies share
	// a message id but each queue must see its own.
	assert.Equal(t, 1, calls["order-review-queue"])
	assert.Equal(t, 1, calls["profile-review-queue"])

	require.NoError(t, tr.Publish(ctx, messaging.Review, env))
	assert.Equal(t, 1, calls["order-review-queue"])
	assert.Equal(t, 1, calls["profile-review-queue"])
}

func TestTopologyQueuesAreDistinct(t *testing.T) {
	seen := make(map[string]messaging.Subscription)
	for _, sub := range messaging.Topology() {
		existing, dup := seen[sub.Queue]
		require.False(t, dup, "queue %s bound twice: %+v and %+v", sub.Queue, existing, sub)
		seen[sub.Queue] = sub
	}
	assert.Len(t, seen, 9)
}

func TestReviewFanoutHasTwoQueues(t *testing.T) {
	var queues []string
	for _, sub := range messaging.Topology() {
		if sub.Route.Exchange == messaging.Review.Exchange {
			queues = append(queues, sub.Queue)
		}
	}
	assert.ElementsMatch(t, []string{"order-review-queue", "profile-review-queue"}, queues)
}
