package messaging

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/gigmarket/backbone-go/contracts"
	"github.com/gigmarket/backbone-go/internal/inbox"
)

// Messenger is the one messaging object a service process constructs. It
// owns the transport, the idempotency store, and the middleware applied to
// every subscription, and is passed by reference to each component that
// publishes or subscribes.
type Messenger struct {
	transport Transport
	store     inbox.Store
	logger    *slog.Logger
	service   string
}

// MessengerOption configures the Messenger.
type MessengerOption func(*Messenger)

// WithMessengerLogger sets the logger.
func WithMessengerLogger(logger *slog.Logger) MessengerOption {
	return func(m *Messenger) {
		m.logger = logger
	}
}

// WithInbox sets the processed-message store used by idempotent
// subscriptions.
func WithInbox(store inbox.Store) MessengerOption {
	return func(m *Messenger) {
		m.store = store
	}
}

// WithService names the service for log attribution.
func WithService(name string) MessengerOption {
	return func(m *Messenger) {
		m.service = name
	}
}

// NewMessenger creates a messenger over the given transport. The default
// idempotency store is in-memory.
func NewMessenger(transport Transport, options ...MessengerOption) *Messenger {
	m := &Messenger{
		transport: transport,
		store:     inbox.NewMemoryStore(),
		logger:    slog.Default(),
		service:   "service",
	}

	for _, opt := range options {
		opt(m)
	}

	m.logger = m.logger.With("service", m.service)

	return m
}

// Publish JSON-encodes the payload and sends it under a fresh message id.
// The error is returned to the caller as well as logged; flows that cannot
// tolerate silent loss get to see the failure.
func (m *Messenger) Publish(ctx context.Context, route Route, payload any) error {
	return m.publish(ctx, route, payload, "")
}

// PublishCorrelated publishes a payload tied to an existing exchange of
// messages, carrying the given correlation id.
func (m *Messenger) PublishCorrelated(ctx context.Context, route Route, payload any, correlationID string) error {
	return m.publish(ctx, route, payload, correlationID)
}

// PublishBody sends an already-serialized body verbatim.
func (m *Messenger) PublishBody(ctx context.Context, route Route, body []byte) error {
	env := contracts.NewEnvelope(body)
	return m.send(ctx, route, env)
}

func (m *Messenger) publish(ctx context.Context, route Route, payload any, correlationID string) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("messaging: encoding payload for %s/%s: %w", route.Exchange, route.Key, err)
	}

	env := contracts.NewEnvelope(body)
	env.CorrelationID = correlationID
	return m.send(ctx, route, env)
}

func (m *Messenger) send(ctx context.Context, route Route, env contracts.Envelope) error {
	if err := m.transport.Publish(ctx, route, env); err != nil {
		m.logger.Error("publish failed",
			"exchange", route.Exchange,
			"routingKey", route.Key,
			"messageId", env.MessageID,
			"error", err,
		)
		return err
	}
	return nil
}

// Subscribe registers the handler on the subscription's queue with logging
// applied. Handlers registered this way must be naturally idempotent.
func (m *Messenger) Subscribe(ctx context.Context, sub Subscription, handler Handler) error {
	wrapped := Chain(handler, Logging(m.logger, sub.Queue))
	return m.transport.Subscribe(ctx, sub, wrapped)
}

// SubscribeIdempotent additionally dedups deliveries by message id through
// the inbox store. Use it for every handler whose effect is not safe to
// apply twice, counter increments above all.
func (m *Messenger) SubscribeIdempotent(ctx context.Context, sub Subscription, handler Handler) error {
	wrapped := Chain(handler,
		Logging(m.logger, sub.Queue),
		Idempotent(m.store, m.logger, sub.Queue),
	)
	return m.transport.Subscribe(ctx, sub, wrapped)
}

// Close shuts the transport down under the context's deadline.
func (m *Messenger) Close(ctx context.Context) error {
	return m.transport.Close(ctx)
}

// Logger exposes the service-scoped logger for components wired around the
// messenger.
func (m *Messenger) Logger() *slog.Logger {
	return m.logger
}
