package rabbitmq

import (
	"context"
	"log/slog"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

// Publisher sends envelopes through the shared channel. It is channel
// agnostic: the channel is fetched lazily from the connection manager on
// every publish, so a channel reopened after a drop is picked up
// transparently.
//
// The exchange is declared before the first send to make publish order
// independent of topology setup; the declare round-trip is paid once per
// exchange and cached afterwards.
type Publisher struct {
	conn   *ConnectionManager
	logger *slog.Logger

	mu       sync.Mutex
	declared map[string]string // exchange name -> kind
}

// NewPublisher creates a publisher over the shared connection.
func NewPublisher(conn *ConnectionManager, logger *slog.Logger) *Publisher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Publisher{
		conn:     conn,
		logger:   logger,
		declared: make(map[string]string),
	}
}

// Publish declares the exchange if this process has not yet, then sends the
// message. Failures are returned to the caller, never swallowed: a lost
// order email or counter update must surface somewhere it can be acted on.
func (p *Publisher) Publish(ctx context.Context, exchange, kind, routingKey string, msg amqp.Publishing) error {
	ch, err := p.conn.Channel()
	if err != nil {
		return &PublishError{Exchange: exchange, RoutingKey: routingKey, Err: err, Timestamp: time.Now()}
	}

	if err := p.ensureExchange(ch, exchange, kind); err != nil {
		return &PublishError{Exchange: exchange, RoutingKey: routingKey, Err: err, Timestamp: time.Now()}
	}

	// No publisher confirms: the message counts as sent once the broker
	// accepts the frame. This is the accepted at-most-once edge of the
	// system; durability starts at the queue.
	if err := ch.PublishWithContext(ctx, exchange, routingKey, false, false, msg); err != nil {
		return &PublishError{Exchange: exchange, RoutingKey: routingKey, Err: err, Timestamp: time.Now()}
	}

	p.logger.Debug("published",
		"exchange", exchange,
		"routingKey", routingKey,
		"messageId", msg.MessageId,
	)

	return nil
}

// PublishRaw sends a prepared message through the same publish path,
// declaring the target as a direct exchange on first use (a no-op for the
// default exchange). Used by the retry republisher and the dead-letterer.
func (p *Publisher) PublishRaw(ctx context.Context, exchange, routingKey string, msg amqp.Publishing) error {
	return p.Publish(ctx, exchange, ExchangeDirect, routingKey, msg)
}

func (p *Publisher) ensureExchange(ch *amqp.Channel, exchange, kind string) error {
	// The default exchange always exists and cannot be declared.
	if exchange == "" {
		return nil
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.declared[exchange] == kind {
		return nil
	}
	if err := declareExchange(ch, exchange, kind); err != nil {
		return err
	}
	p.declared[exchange] = kind
	return nil
}
