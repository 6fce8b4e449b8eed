// Package backbone is the entry point for services joining the
// marketplace's asynchronous messaging backbone. A service process builds
// one Client, takes the Messenger off it, and hands that to its domain
// components.
package backbone

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/gigmarket/backbone-go/internal/inbox"
	"github.com/gigmarket/backbone-go/internal/rabbitmq"
	"github.com/gigmarket/backbone-go/messaging"
	rabbitmqTransport "github.com/gigmarket/backbone-go/transports/rabbitmq"
)

// Client owns a service's transport and messenger.
type Client struct {
	transport messaging.Transport
	messenger *messaging.Messenger
	logger    *slog.Logger
	service   string
}

type clientConfig struct {
	logger            *slog.Logger
	service           string
	inbox             inbox.Store
	transport         messaging.Transport
	connectionOptions []rabbitmq.ConnectionOption
	consumerOptions   []rabbitmq.ConsumerOption
}

// ClientOption configures the client.
type ClientOption func(*clientConfig)

// WithLogger sets the logger shared by every backbone component.
func WithLogger(logger *slog.Logger) ClientOption {
	return func(cfg *clientConfig) {
		cfg.logger = logger
	}
}

// WithServiceName names the service for log attribution.
func WithServiceName(name string) ClientOption {
	return func(cfg *clientConfig) {
		cfg.service = name
	}
}

// WithInboxStore sets the processed-message store backing idempotent
// subscriptions. Defaults to in-memory; production deployments pass the
// Postgres store so dedup survives restarts.
func WithInboxStore(store inbox.Store) ClientOption {
	return func(cfg *clientConfig) {
		cfg.inbox = store
	}
}

// WithTransport replaces the AMQP transport, for tests and local
// development. The connection URL is ignored when set.
func WithTransport(transport messaging.Transport) ClientOption {
	return func(cfg *clientConfig) {
		cfg.transport = transport
	}
}

// WithConnectionOptions forwards options to the AMQP connection manager.
func WithConnectionOptions(opts ...rabbitmq.ConnectionOption) ClientOption {
	return func(cfg *clientConfig) {
		cfg.connectionOptions = append(cfg.connectionOptions, opts...)
	}
}

// WithConsumerOptions forwards options to the AMQP consumer.
func WithConsumerOptions(opts ...rabbitmq.ConsumerOption) ClientOption {
	return func(cfg *clientConfig) {
		cfg.consumerOptions = append(cfg.consumerOptions, opts...)
	}
}

// NewClient connects to the broker and assembles the messenger. Dialing
// uses the bounded backoff policy; a broker that stays unreachable
// through every attempt surfaces here as an error rather than a crash, so
// the caller can keep serving without messaging.
func NewClient(ctx context.Context, url string, options ...ClientOption) (*Client, error) {
	cfg := &clientConfig{
		logger:  slog.Default(),
		service: "service",
		inbox:   inbox.NewMemoryStore(),
	}
	for _, opt := range options {
		opt(cfg)
	}

	transport := cfg.transport
	if transport == nil {
		var err error
		transport, err = rabbitmqTransport.NewTransport(ctx, url,
			rabbitmqTransport.WithTransportLogger(cfg.logger),
			rabbitmqTransport.WithConnectionOptions(cfg.connectionOptions...),
			rabbitmqTransport.WithConsumerOptions(cfg.consumerOptions...),
		)
		if err != nil {
			return nil, fmt.Errorf("backbone: connecting %s: %w", cfg.service, err)
		}
	}

	messenger := messaging.NewMessenger(transport,
		messaging.WithService(cfg.service),
		messaging.WithMessengerLogger(cfg.logger),
		messaging.WithInbox(cfg.inbox),
	)

	return &Client{
		transport: transport,
		messenger: messenger,
		logger:    messenger.Logger(),
		service:   cfg.service,
	}, nil
}

// Messenger returns the messenger domain components publish and subscribe
// through.
func (c *Client) Messenger() *messaging.Messenger {
	return c.messenger
}

// Logger returns the service-scoped logger.
func (c *Client) Logger() *slog.Logger {
	return c.logger
}

// ServiceName returns the name the client was built for.
func (c *Client) ServiceName() string {
	return c.service
}

// Close shuts the transport down under the context's deadline. In-flight
// handlers get to finish; the deadline bounds how long that takes.
func (c *Client) Close(ctx context.Context) error {
	c.logger.Info("closing backbone client")
	return c.messenger.Close(ctx)
}
