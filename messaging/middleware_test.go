package messaging

import (
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gigmarket/backbone-go/internal/inbox"
)

type stubDelivery struct {
	body          []byte
	messageID     string
	correlationID string
}

func (d stubDelivery) Body() []byte          { return d.body }
func (d stubDelivery) MessageID() string     { return d.messageID }
func (d stubDelivery) CorrelationID() string { return d.correlationID }

func TestChainRunsOutermostFirst(t *testing.T) {
	var order []string
	tag := func(name string) Middleware {
		return func(next Handler) Handler {
			return HandlerFunc(func(ctx context.Context, d Delivery) error {
				order = append(order, name)
				return next.Handle(ctx, d)
			})
		}
	}

	h := Chain(HandlerFunc(func(context.Context, Delivery) error {
		order = append(order, "handler")
		return nil
	}), tag("outer"), tag("inner"))

	require.NoError(t, h.Handle(context.Background(), stubDelivery{}))
	assert.Equal(t, []string{"outer", "inner", "handler"}, order)
}

func TestIdempotentDropsDuplicates(t *testing.T) {
	store := inbox.NewMemoryStore()
	calls := 0
	h := Chain(HandlerFunc(func(context.Context, Delivery) error {
		calls++
		return nil
	}), Idempotent(store, slog.Default(), "q"))

	d := stubDelivery{messageID: "msg-1"}
	require.NoError(t, h.Handle(context.Background(), d))
	require.NoError(t, h.Handle(context.Background(), d))

	assert.Equal(t, 1, calls)
}

func TestIdempotentDoesNotRecordFailures(t *testing.T) {
	store := inbox.NewMemoryStore()
	boom := errors.New("boom")
	calls := 0
	h := Chain(HandlerFunc(func(context.Context, Delivery) error {
		calls++
		if calls == 1 {
			return boom
		}
		return nil
	}), Idempotent(store, slog.Default(), "q"))

	d := stubDelivery{messageID: "msg-1"}
	require.ErrorIs(t, h.Handle(context.Background(), d), boom)

	// The retry is not a duplicate: the first attempt never applied.
	require.NoError(t, h.Handle(context.Background(), d))
	assert.Equal(t, 2, calls)

	// But a third delivery is.
	require.NoError(t, h.Handle(context.Background(), d))
	assert.Equal(t, 2, calls)
}

func TestIdempotentScopesKeysToQueue(t *testing.T) {
	store := inbox.NewMemoryStore()
	calls := map[string]int{}
	handlerFor := func(queue string) Handler {
		return Chain(HandlerFunc(func(context.Context, Delivery) error {
			calls[queue]++
			return nil
		}), Idempotent(store, slog.Default(), queue))
	}

	// A fanout hands each bound queue its own copy of the same publish:
	// identical message id, different queue. Sharing one store must not
	// make the first queue's copy shadow the second's.
	orderSide := handlerFor("order-review-queue")
	profileSide := handlerFor("profile-review-queue")

	d := stubDelivery{messageID: "msg-1"}
	require.NoError(t, orderSide.Handle(context.Background(), d))
	require.NoError(t, profileSide.Handle(context.Background(), d))

	assert.Equal(t, 1, calls["order-review-queue"])
	assert.Equal(t, 1, calls["profile-review-queue"])

	// Within a queue the second copy is still a duplicate.
	require.NoError(t, orderSide.Handle(context.Background(), d))
	assert.Equal(t, 1, calls["order-review-queue"])
}

func TestIdempotentPassesThroughUnstampedDeliveries(t *testing.T) {
	store := inbox.NewMemoryStore()
	calls := 0
	h := Chain(HandlerFunc(func(context.Context, Delivery) error {
		calls++
		return nil
	}), Idempotent(store, slog.Default(), "q"))

	d := stubDelivery{messageID: ""}
	require.NoError(t, h.Handle(context.Background(), d))
	require.NoError(t, h.Handle(context.Background(), d))

	assert.Equal(t, 2, calls)
	assert.Zero(t, store.Len())
}
