package messaging

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/gigmarket/backbone-go/internal/inbox"
)

// Middleware wraps a handler with cross-cutting behavior. Chains are built
// outermost-first, so Chain(a, b)(h) runs a, then b, then h.
type Middleware func(next Handler) Handler

// Chain composes middleware around a handler.
func Chain(handler Handler, middleware ...Middleware) Handler {
	for i := len(middleware) - 1; i >= 0; i-- {
		handler = middleware[i](handler)
	}
	return handler
}

// Logging records each delivery's outcome and duration.
func Logging(logger *slog.Logger, queue string) Middleware {
	return func(next Handler) Handler {
		return HandlerFunc(func(ctx context.Context, d Delivery) error {
			start := time.Now()
			err := next.Handle(ctx, d)
			if err != nil {
				logger.Error("delivery failed",
					"queue", queue,
					"messageId", d.MessageID(),
					"duration", time.Since(start),
					"error", err,
				)
				return err
			}
			logger.Debug("delivery processed",
				"queue", queue,
				"messageId", d.MessageID(),
				"duration", time.Since(start),
			)
			return nil
		})
	}
}

// Idempotent drops deliveries the store has already seen and records them
// after the handler succeeds. At-least-once delivery then cannot
// double-apply a counter mutation: the redelivered copy is acknowledged
// without re-running the handler. The store key is queue-scoped, so queues
// sharing one store (a fanout's copies above all) dedup independently.
func Idempotent(store inbox.Store, logger *slog.Logger, queue string) Middleware {
	return func(next Handler) Handler {
		return HandlerFunc(func(ctx context.Context, d Delivery) error {
			id := d.MessageID()
			if id == "" {
				// Nothing to dedup on; legacy publishers did not stamp ids.
				return next.Handle(ctx, d)
			}
			key := queue + "/" + id

			seen, err := store.Seen(ctx, key)
			if err != nil {
				return fmt.Errorf("messaging: idempotency lookup for %s: %w", id, err)
			}
			if seen {
				logger.Info("duplicate delivery dropped",
					"queue", queue,
					"messageId", id,
				)
				return nil
			}

			if err := next.Handle(ctx, d); err != nil {
				return err
			}

			if err := store.MarkProcessed(ctx, key); err != nil {
				// The effect is applied but unrecorded; failing the
				// delivery would redo the effect on retry, which is the
				// exact thing this middleware exists to prevent.
				logger.Error("failed to record processed message",
					"queue", queue,
					"messageId", id,
					"error", err,
				)
			}
			return nil
		})
	}
}
