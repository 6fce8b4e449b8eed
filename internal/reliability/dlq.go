package reliability

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

// DeadLetterExchange is the direct exchange quarantined deliveries are
// copied to, routed by their origin queue name.
const DeadLetterExchange = "dead-letter"

// Headers stamped onto quarantined copies.
const (
	HeaderOriginQueue = "x-origin-queue"
	HeaderLastError   = "x-last-error"
	HeaderAttempts    = "x-attempts"
	HeaderFailedAt    = "x-failed-at"
)

// RawPublisher publishes a prepared frame. Implemented by the rabbitmq
// publisher; kept narrow so the dead-letterer does not care about channel
// management.
type RawPublisher interface {
	PublishRaw(ctx context.Context, exchange, routingKey string, msg amqp.Publishing) error
}

// DeadLetterer moves deliveries that exhausted their handler attempts onto
// the dead-letter exchange. The copy keeps the original body and message id
// and records the origin queue, the final error, and the attempt count in
// headers, so an operator (or a replay tool) has everything needed to
// diagnose and re-drive it.
type DeadLetterer struct {
	publisher RawPublisher
	logger    *slog.Logger
}

// NewDeadLetterer creates a dead-letterer over the given publisher.
func NewDeadLetterer(publisher RawPublisher, logger *slog.Logger) *DeadLetterer {
	if logger == nil {
		logger = slog.Default()
	}
	return &DeadLetterer{publisher: publisher, logger: logger}
}

// Quarantine copies the delivery to the dead-letter exchange. The caller
// still owns the original delivery and must ack it once Quarantine returns
// nil; on error the original should stay unacked so the broker redelivers.
func (d *DeadLetterer) Quarantine(ctx context.Context, delivery amqp.Delivery, queue string, attempts int, cause error) error {
	headers := amqp.Table{}
	for k, v := range delivery.Headers {
		headers[k] = v
	}
	headers[HeaderOriginQueue] = queue
	headers[HeaderAttempts] = int32(attempts)
	headers[HeaderFailedAt] = time.Now().UTC().Format(time.RFC3339)
	if cause != nil {
		headers[HeaderLastError] = cause.Error()
	}

	msg := amqp.Publishing{
		Body:          delivery.Body,
		Headers:       headers,
		ContentType:   delivery.ContentType,
		MessageId:     delivery.MessageId,
		CorrelationId: delivery.CorrelationId,
		DeliveryMode:  amqp.Persistent,
	}

	if err := d.publisher.PublishRaw(ctx, DeadLetterExchange, queue, msg); err != nil {
		return fmt.Errorf("reliability: quarantine %s from %s: %w", delivery.MessageId, queue, err)
	}

	d.logger.Warn("delivery quarantined to dead-letter exchange",
		"queue", queue,
		"messageId", delivery.MessageId,
		"attempts", attempts,
		"error", cause,
	)

	return nil
}
