// Package inmem is an in-process messaging.Transport used by tests and
// local development. It models the broker behaviors the backbone depends
// on: idempotent declares, direct and fanout routing, per-queue FIFO,
// buffering while a queue has no consumer, bounded handler retries, and a
// dead-letter tail for deliveries that exhaust them.
//
// Delivery is synchronous: Publish runs matching handlers before it
// returns, which keeps tests deterministic. Handlers may publish from
// inside a handler; the transport does not hold its lock while a handler
// runs.
package inmem

import (
	"context"
	"fmt"
	"sync"

	"github.com/gigmarket/backbone-go/contracts"
	"github.com/gigmarket/backbone-go/messaging"
)

// DeadLetter is a delivery that exhausted its handler attempts.
type DeadLetter struct {
	Queue    string
	Envelope contracts.Envelope
	Attempts int
	Err      error
}

type binding struct {
	queue string
	key   string
}

type queue struct {
	name    string
	handler messaging.Handler
	pending []contracts.Envelope
}

// Transport is the in-memory broker.
type Transport struct {
	mu          sync.Mutex
	exchanges   map[string]messaging.ExchangeKind
	bindings    map[string][]binding // exchange -> bindings
	queues      map[string]*queue
	deadLetters []DeadLetter
	maxAttempts int
	closed      bool
}

// Option configures the transport.
type Option func(*Transport)

// WithMaxAttempts sets how many times a failing handler is retried before
// the delivery is dead-lettered.
func WithMaxAttempts(n int) Option {
	return func(t *Transport) {
		t.maxAttempts = n
	}
}

// New creates an empty in-memory transport.
func New(options ...Option) *Transport {
	t := &Transport{
		exchanges:   make(map[string]messaging.ExchangeKind),
		bindings:    make(map[string][]binding),
		queues:      make(map[string]*queue),
		maxAttempts: 3,
	}
	for _, opt := range options {
		opt(t)
	}
	return t
}

// Publish implements messaging.Transport. The envelope is routed per the
// exchange kind and handled synchronously by every matched queue that has
// a consumer; unconsumed queues buffer it.
func (t *Transport) Publish(ctx context.Context, route messaging.Route, env contracts.Envelope) error {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return fmt.Errorf("inmem: transport closed")
	}
	if err := t.declareExchangeLocked(route.Exchange, route.Kind); err != nil {
		t.mu.Unlock()
		return err
	}

	var matched []*queue
	for _, b := range t.bindings[route.Exchange] {
		if t.exchanges[route.Exchange] == messaging.Fanout || b.key == route.Key {
			matched = append(matched, t.queues[b.queue])
		}
	}
	t.mu.Unlock()

	// A publish with no matching binding is silently dropped, as the
	// broker would.
	for _, q := range matched {
		t.enqueue(ctx, q, env)
	}

	return nil
}

// Subscribe implements messaging.Transport. One handler per queue; buffered
// messages are drained immediately.
func (t *Transport) Subscribe(ctx context.Context, sub messaging.Subscription, handler messaging.Handler) error {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return fmt.Errorf("inmem: transport closed")
	}
	if err := t.declareExchangeLocked(sub.Route.Exchange, sub.Route.Kind); err != nil {
		t.mu.Unlock()
		return err
	}

	q := t.declareQueueLocked(sub.Queue)
	if q.handler != nil {
		t.mu.Unlock()
		return fmt.Errorf("inmem: queue %s already has a consumer", sub.Queue)
	}
	q.handler = handler

	t.bindLocked(sub.Route.Exchange, sub.Queue, sub.Route.Key)

	backlog := q.pending
	q.pending = nil
	t.mu.Unlock()

	for _, env := range backlog {
		t.deliver(ctx, q, env)
	}

	return nil
}

// Bind declares the subscription's queue and binding without attaching a
// consumer, modeling a durable queue whose service is not up yet: messages
// buffer until Subscribe drains them.
func (t *Transport) Bind(sub messaging.Subscription) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if err := t.declareExchangeLocked(sub.Route.Exchange, sub.Route.Kind); err != nil {
		return err
	}
	t.declareQueueLocked(sub.Queue)
	t.bindLocked(sub.Route.Exchange, sub.Queue, sub.Route.Key)
	return nil
}

// Close implements messaging.Transport.
func (t *Transport) Close(context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.closed = true
	return nil
}

// DeadLetters returns the deliveries that exhausted their attempts.
func (t *Transport) DeadLetters() []DeadLetter {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]DeadLetter, len(t.deadLetters))
	copy(out, t.deadLetters)
	return out
}

// Pending reports how many buffered messages a queue holds.
func (t *Transport) Pending(queueName string) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	if q, ok := t.queues[queueName]; ok {
		return len(q.pending)
	}
	return 0
}

// Bindings reports how many bindings an exchange has, for asserting that
// re-binding is a no-op.
func (t *Transport) Bindings(exchange string) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.bindings[exchange])
}

func (t *Transport) declareExchangeLocked(name string, kind messaging.ExchangeKind) error {
	existing, ok := t.exchanges[name]
	if !ok {
		t.exchanges[name] = kind
		return nil
	}
	if existing != kind {
		return fmt.Errorf("inmem: exchange %s already declared as %s", name, existing)
	}
	return nil
}

func (t *Transport) declareQueueLocked(name string) *queue {
	q, ok := t.queues[name]
	if !ok {
		q = &queue{name: name}
		t.queues[name] = q
	}
	return q
}

func (t *Transport) bindLocked(exchange, queueName, key string) {
	for _, b := range t.bindings[exchange] {
		if b.queue == queueName && b.key == key {
			return // duplicate binding is a no-op
		}
	}
	t.bindings[exchange] = append(t.bindings[exchange], binding{queue: queueName, key: key})
}

func (t *Transport) enqueue(ctx context.Context, q *queue, env contracts.Envelope) {
	t.mu.Lock()
	handler := q.handler
	if handler == nil {
		q.pending = append(q.pending, env)
		t.mu.Unlock()
		return
	}
	t.mu.Unlock()

	t.deliver(ctx, q, env)
}

// deliver runs the queue's handler with the transport's retry policy:
// immediate retries up to maxAttempts, then the dead-letter tail.
func (t *Transport) deliver(ctx context.Context, q *queue, env contracts.Envelope) {
	var lastErr error
	for attempt := 1; attempt <= t.maxAttempts; attempt++ {
		lastErr = t.invoke(ctx, q.handler, env)
		if lastErr == nil {
			return
		}
	}

	t.mu.Lock()
	t.deadLetters = append(t.deadLetters, DeadLetter{
		Queue:    q.name,
		Envelope: env,
		Attempts: t.maxAttempts,
		Err:      lastErr,
	})
	t.mu.Unlock()
}

func (t *Transport) invoke(ctx context.Context, handler messaging.Handler, env contracts.Envelope) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("inmem: handler panic: %v", r)
		}
	}()
	return handler.Handle(ctx, delivery{env: env})
}

// delivery adapts an envelope to messaging.Delivery.
type delivery struct {
	env contracts.Envelope
}

func (d delivery) Body() []byte          { return d.env.Body }
func (d delivery) MessageID() string     { return d.env.MessageID }
func (d delivery) CorrelationID() string { return d.env.CorrelationID }
