package rabbitmq

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/gigmarket/backbone-go/internal/reliability"
)

// MessageHandler processes one delivery. A nil return acknowledges the
// delivery; an error puts it through the retry/dead-letter policy.
type MessageHandler func(ctx context.Context, delivery amqp.Delivery) error

// Consumer registers handlers on durable queues. Every queue gets exactly
// one consumer; deliveries on one queue are handled sequentially (per-queue
// FIFO) while distinct queues run independently.
//
// Acknowledgment policy, applied uniformly: handler success acks; handler
// failure re-enqueues a copy with an incremented attempt header up to
// maxAttempts, after which the delivery is copied to the dead-letter
// exchange and the original acked. Nothing is ever left unacknowledged.
type Consumer struct {
	conn        *ConnectionManager
	publisher   *Publisher
	dead        *reliability.DeadLetterer
	logger      *slog.Logger
	prefetch    int
	maxAttempts int

	active sync.Map // queue -> context.CancelFunc
}

// ConsumerOption configures the consumer.
type ConsumerOption func(*Consumer)

// WithPrefetch sets the per-channel prefetch count.
func WithPrefetch(count int) ConsumerOption {
	return func(c *Consumer) {
		c.prefetch = count
	}
}

// WithMaxAttempts sets how many handler attempts a delivery gets before it
// is dead-lettered.
func WithMaxAttempts(n int) ConsumerOption {
	return func(c *Consumer) {
		c.maxAttempts = n
	}
}

// WithConsumerLogger sets the logger.
func WithConsumerLogger(logger *slog.Logger) ConsumerOption {
	return func(c *Consumer) {
		c.logger = logger
	}
}

// NewConsumer creates a consumer over the shared connection. The publisher
// is used to re-enqueue retries and to feed the dead-letter exchange.
func NewConsumer(conn *ConnectionManager, publisher *Publisher, options ...ConsumerOption) *Consumer {
	c := &Consumer{
		conn:        conn,
		publisher:   publisher,
		logger:      slog.Default(),
		prefetch:    1,
		maxAttempts: 3,
	}

	for _, opt := range options {
		opt(c)
	}

	c.dead = reliability.NewDeadLetterer(publisher, c.logger)

	return c
}

// Subscribe declares the exchange and the durable queue, binds them (empty
// key for fanout exchanges), and starts the queue's single consumer.
func (c *Consumer) Subscribe(ctx context.Context, exchange, kind, routingKey, queue string, handler MessageHandler) error {
	if !c.reserve(queue) {
		return &ConsumerError{Queue: queue, Op: "subscribe", Err: ErrAlreadySubscribed, Timestamp: time.Now()}
	}
	started := false
	defer func() {
		if !started {
			c.release(queue)
		}
	}()

	ch, err := c.conn.Channel()
	if err != nil {
		return &ConsumerError{Queue: queue, Op: "subscribe", Err: err, Timestamp: time.Now()}
	}

	if err := ch.Qos(c.prefetch, 0, false); err != nil {
		return &ConsumerError{Queue: queue, Op: "qos", Err: err, Timestamp: time.Now()}
	}

	if err := declareExchange(ch, exchange, kind); err != nil {
		return &ConsumerError{Queue: queue, Op: "declare exchange", Err: err, Timestamp: time.Now()}
	}
	if _, err := declareQueue(ch, queue); err != nil {
		return &ConsumerError{Queue: queue, Op: "declare queue", Err: err, Timestamp: time.Now()}
	}
	if err := bindQueue(ch, queue, routingKey, exchange); err != nil {
		return &ConsumerError{Queue: queue, Op: "bind", Err: err, Timestamp: time.Now()}
	}

	deliveries, err := ch.Consume(
		queue,
		"",    // consumer tag, broker-assigned
		false, // auto-ack: the policy below owns acknowledgment
		false, // exclusive
		false, // no-local
		false, // no-wait
		nil,
	)
	if err != nil {
		return &ConsumerError{Queue: queue, Op: "consume", Err: err, Timestamp: time.Now()}
	}

	consumerCtx, cancel := context.WithCancel(ctx)
	c.active.Store(queue, cancel)
	started = true

	go c.consume(consumerCtx, queue, deliveries, handler)

	c.logger.Info("subscribed",
		"queue", queue,
		"exchange", exchange,
		"routingKey", routingKey,
	)

	return nil
}

// reserve claims the queue's consumer slot. The claim and the existence
// check are one atomic LoadOrStore, so concurrent Subscribes for the same
// queue cannot both pass; the placeholder is replaced with the real cancel
// once the consumer is running.
func (c *Consumer) reserve(queue string) bool {
	noop := context.CancelFunc(func() {})
	_, loaded := c.active.LoadOrStore(queue, noop)
	return !loaded
}

// release frees a reserved consumer slot after a failed subscribe.
func (c *Consumer) release(queue string) {
	c.active.Delete(queue)
}

// Unsubscribe stops the queue's consumer.
func (c *Consumer) Unsubscribe(queue string) error {
	value, ok := c.active.LoadAndDelete(queue)
	if !ok {
		return fmt.Errorf("rabbitmq: no active consumer for queue %s", queue)
	}
	value.(context.CancelFunc)()
	return nil
}

// StopAll stops every active consumer.
func (c *Consumer) StopAll() {
	c.active.Range(func(key, value any) bool {
		value.(context.CancelFunc)()
		c.active.Delete(key)
		return true
	})
}

func (c *Consumer) consume(ctx context.Context, queue string, deliveries <-chan amqp.Delivery, handler MessageHandler) {
	defer func() {
		c.active.Delete(queue)
		c.logger.Info("consumer stopped", "queue", queue)
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case delivery, ok := <-deliveries:
			if !ok {
				c.logger.Warn("delivery channel closed", "queue", queue)
				return
			}
			c.handleDelivery(ctx, queue, delivery, handler)
		}
	}
}

func (c *Consumer) handleDelivery(ctx context.Context, queue string, delivery amqp.Delivery, handler MessageHandler) {
	err := c.invoke(ctx, delivery, handler)
	if err == nil {
		c.ack(delivery)
		return
	}

	attempt := attemptOf(delivery)
	c.logger.Error("handler failed",
		"queue", queue,
		"messageId", delivery.MessageId,
		"attempt", attempt,
		"error", err,
	)

	if attempt < c.maxAttempts {
		c.requeue(ctx, queue, delivery, attempt+1)
		return
	}

	if qErr := c.dead.Quarantine(ctx, delivery, queue, attempt, err); qErr != nil {
		c.logger.Error("dead-letter publish failed, requeueing delivery",
			"queue", queue,
			"messageId", delivery.MessageId,
			"error", qErr,
		)
		c.nack(delivery, true)
		return
	}
	c.ack(delivery)
}

// invoke runs the handler with panic containment; a panicking handler must
// not take down the consume loop or strand the delivery unacked.
func (c *Consumer) invoke(ctx context.Context, delivery amqp.Delivery, handler MessageHandler) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("rabbitmq: handler panic: %v", r)
		}
	}()
	return handler(ctx, delivery)
}

// requeue publishes a copy with the bumped attempt header straight to the
// queue via the default exchange, then acks the original. If the republish
// fails the original is nacked back instead so nothing is lost.
func (c *Consumer) requeue(ctx context.Context, queue string, delivery amqp.Delivery, attempt int) {
	headers := amqp.Table{}
	for k, v := range delivery.Headers {
		headers[k] = v
	}
	headers[reliability.HeaderAttempts] = int32(attempt)

	msg := amqp.Publishing{
		Body:          delivery.Body,
		Headers:       headers,
		ContentType:   delivery.ContentType,
		MessageId:     delivery.MessageId,
		CorrelationId: delivery.CorrelationId,
		DeliveryMode:  amqp.Persistent,
	}

	if err := c.publisher.Publish(ctx, "", ExchangeDirect, queue, msg); err != nil {
		c.logger.Error("retry publish failed, requeueing delivery",
			"queue", queue,
			"messageId", delivery.MessageId,
			"error", err,
		)
		c.nack(delivery, true)
		return
	}
	c.ack(delivery)
}

func (c *Consumer) ack(delivery amqp.Delivery) {
	if err := delivery.Ack(false); err != nil {
		c.logger.Error("ack failed", "deliveryTag", delivery.DeliveryTag, "error", err)
	}
}

func (c *Consumer) nack(delivery amqp.Delivery, requeue bool) {
	if err := delivery.Nack(false, requeue); err != nil {
		c.logger.Error("nack failed", "deliveryTag", delivery.DeliveryTag, "error", err)
	}
}

// attemptOf reads the attempt counter stamped by requeue; a fresh delivery
// is attempt 1.
func attemptOf(delivery amqp.Delivery) int {
	if delivery.Headers == nil {
		return 1
	}
	switch v := delivery.Headers[reliability.HeaderAttempts].(type) {
	case int32:
		return int(v)
	case int64:
		return int(v)
	case int:
		return v
	default:
		return 1
	}
}
