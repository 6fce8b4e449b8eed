package messaging

import (
	"context"

	"github.com/gigmarket/backbone-go/contracts"
)

// ExchangeKind is the routing discipline of an exchange.
type ExchangeKind string

const (
	// Direct routes a message to the queue(s) bound with the exact key.
	Direct ExchangeKind = "direct"
	// Fanout delivers every message to every bound queue, ignoring keys.
	Fanout ExchangeKind = "fanout"
)

// Route addresses a publish: which exchange, of which kind, under which
// routing key. Fanout routes carry an empty key.
type Route struct {
	Exchange string
	Kind     ExchangeKind
	Key      string
}

// Subscription binds a durable queue to a route. Each distinct
// (exchange, key) pair in the system maps to its own queue name; that
// mapping is the wire contract between services, enumerated in
// topology.go.
type Subscription struct {
	Route Route
	Queue string
}

// Delivery is one message handed to a handler. Acknowledgment is not
// exposed here: the transport owns it, driven by the handler's return
// value.
type Delivery interface {
	// Body is the bare JSON document to destructure.
	Body() []byte

	// MessageID is the publish's idempotency key.
	MessageID() string

	// CorrelationID links replies to requests; empty for one-way events.
	CorrelationID() string
}

// Handler processes one delivery. Returning nil acknowledges it; an error
// sends it through the transport's retry and dead-letter policy.
type Handler interface {
	Handle(ctx context.Context, d Delivery) error
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(ctx context.Context, d Delivery) error

// Handle implements Handler.
func (f HandlerFunc) Handle(ctx context.Context, d Delivery) error {
	return f(ctx, d)
}

// Transport moves envelopes between services. Implemented over AMQP for
// production and in memory for tests.
type Transport interface {
	// Publish declares the route's exchange if needed and sends the
	// envelope. The error is reported, never swallowed.
	Publish(ctx context.Context, route Route, env contracts.Envelope) error

	// Subscribe declares the subscription's exchange, queue, and binding,
	// then registers the queue's single handler.
	Subscribe(ctx context.Context, sub Subscription, handler Handler) error

	// Close releases the transport under the context's deadline.
	Close(ctx context.Context) error
}
