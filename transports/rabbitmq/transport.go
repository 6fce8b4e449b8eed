// Package rabbitmq adapts the AMQP plumbing to the messaging.Transport
// contract the services program against.
package rabbitmq

import (
	"context"
	"fmt"
	"log/slog"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/gigmarket/backbone-go/contracts"
	"github.com/gigmarket/backbone-go/internal/rabbitmq"
	"github.com/gigmarket/backbone-go/messaging"
)

// Transport implements messaging.Transport over one AMQP connection.
type Transport struct {
	manager   *rabbitmq.ConnectionManager
	publisher *rabbitmq.Publisher
	consumer  *rabbitmq.Consumer
}

// TransportConfig holds the transport's construction options.
type TransportConfig struct {
	ConnectionOptions []rabbitmq.ConnectionOption
	ConsumerOptions   []rabbitmq.ConsumerOption
	Logger            *slog.Logger
}

// TransportOption configures the transport.
type TransportOption func(*TransportConfig)

// WithConnectionOptions forwards options to the connection manager.
func WithConnectionOptions(opts ...rabbitmq.ConnectionOption) TransportOption {
	return func(cfg *TransportConfig) {
		cfg.ConnectionOptions = append(cfg.ConnectionOptions, opts...)
	}
}

// WithConsumerOptions forwards options to the consumer.
func WithConsumerOptions(opts ...rabbitmq.ConsumerOption) TransportOption {
	return func(cfg *TransportConfig) {
		cfg.ConsumerOptions = append(cfg.ConsumerOptions, opts...)
	}
}

// WithTransportLogger sets the logger shared by the AMQP components.
func WithTransportLogger(logger *slog.Logger) TransportOption {
	return func(cfg *TransportConfig) {
		cfg.Logger = logger
	}
}

// NewTransport dials the broker (bounded backoff) and assembles the
// publisher and consumer over the shared channel. A terminal connection
// failure is returned so the caller can decide to keep running without
// messaging.
func NewTransport(ctx context.Context, url string, options ...TransportOption) (*Transport, error) {
	cfg := &TransportConfig{Logger: slog.Default()}
	for _, opt := range options {
		opt(cfg)
	}

	connOpts := append([]rabbitmq.ConnectionOption{rabbitmq.WithLogger(cfg.Logger)}, cfg.ConnectionOptions...)
	manager := rabbitmq.NewConnectionManager(url, connOpts...)

	if err := manager.Connect(ctx); err != nil {
		return nil, fmt.Errorf("rabbitmq transport: %w", err)
	}

	publisher := rabbitmq.NewPublisher(manager, cfg.Logger)

	consOpts := append([]rabbitmq.ConsumerOption{rabbitmq.WithConsumerLogger(cfg.Logger)}, cfg.ConsumerOptions...)
	consumer := rabbitmq.NewConsumer(manager, publisher, consOpts...)

	return &Transport{
		manager:   manager,
		publisher: publisher,
		consumer:  consumer,
	}, nil
}

// Publish implements messaging.Transport.
func (t *Transport) Publish(ctx context.Context, route messaging.Route, env contracts.Envelope) error {
	msg := amqp.Publishing{
		Body:          env.Body,
		ContentType:   "application/json",
		DeliveryMode:  amqp.Persistent,
		MessageId:     env.MessageID,
		CorrelationId: env.CorrelationID,
		Timestamp:     env.OccurredAt,
	}
	return t.publisher.Publish(ctx, route.Exchange, string(route.Kind), route.Key, msg)
}

// Subscribe implements messaging.Transport.
func (t *Transport) Subscribe(ctx context.Context, sub messaging.Subscription, handler messaging.Handler) error {
	return t.consumer.Subscribe(ctx, sub.Route.Exchange, string(sub.Route.Kind), sub.Route.Key, sub.Queue,
		func(ctx context.Context, delivery amqp.Delivery) error {
			return handler.Handle(ctx, amqpDelivery{d: delivery})
		})
}

// Close stops the consumers, then closes channel and connection under the
// context's deadline.
func (t *Transport) Close(ctx context.Context) error {
	t.consumer.StopAll()
	return t.manager.Close(ctx)
}

// IsConnected reports whether the broker connection is usable.
func (t *Transport) IsConnected() bool {
	return t.manager.IsConnected()
}

// amqpDelivery adapts an AMQP delivery to messaging.Delivery.
type amqpDelivery struct {
	d amqp.Delivery
}

func (a amqpDelivery) Body() []byte          { return a.d.Body }
func (a amqpDelivery) MessageID() string     { return a.d.MessageId }
func (a amqpDelivery) CorrelationID() string { return a.d.CorrelationId }
