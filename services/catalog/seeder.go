package catalog

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/gigmarket/backbone-go/contracts"
	"github.com/gigmarket/backbone-go/messaging"
)

const defaultSeedTimeout = 30 * time.Second

// Seeder runs the catalog half of the seed request/reply exchange. Each
// request carries a fresh correlation id; the matching reply resolves it.
// A request that stays unanswered past the timeout is re-issued once under
// the same correlation id, then given up on with a log line. The broker
// buffers the request while the profile service is down, so one re-issue
// covers a lost reply without flooding the queue.
type Seeder struct {
	messenger *messaging.Messenger
	logger    *slog.Logger
	timeout   time.Duration

	mu      sync.Mutex
	pending map[string]*seedRequest
	closed  bool
}

type seedRequest struct {
	count   int
	retried bool
	timer   *time.Timer
}

// SeederOption configures the seed saga.
type SeederOption func(*Seeder)

// WithSeedTimeout sets how long a request may stay unanswered before it is
// re-issued.
func WithSeedTimeout(d time.Duration) SeederOption {
	return func(s *Seeder) {
		s.timeout = d
	}
}

func newSeeder(m *messaging.Messenger) *Seeder {
	return &Seeder{
		messenger: m,
		logger:    m.Logger(),
		timeout:   defaultSeedTimeout,
		pending:   make(map[string]*seedRequest),
	}
}

// Request publishes a seed request for count sellers and returns its
// correlation id.
func (s *Seeder) Request(ctx context.Context, count int) (string, error) {
	correlationID := uuid.NewString()
	if err := s.send(ctx, correlationID, count); err != nil {
		return "", err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return correlationID, nil
	}
	req := &seedRequest{count: count}
	req.timer = time.AfterFunc(s.timeout, func() {
		s.expire(correlationID)
	})
	s.pending[correlationID] = req

	return correlationID, nil
}

// Outstanding reports how many requests await a reply.
func (s *Seeder) Outstanding() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pending)
}

// Close cancels the pending timers.
func (s *Seeder) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	for id, req := range s.pending {
		req.timer.Stop()
		delete(s.pending, id)
	}
}

// resolve marks the request answered. It reports whether the correlation
// id was known; an unknown id usually means a reply outlived its re-issued
// request and is harmless.
func (s *Seeder) resolve(correlationID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	req, ok := s.pending[correlationID]
	if !ok {
		return false
	}
	req.timer.Stop()
	delete(s.pending, correlationID)
	return true
}

func (s *Seeder) expire(correlationID string) {
	s.mu.Lock()
	req, ok := s.pending[correlationID]
	if !ok || s.closed {
		s.mu.Unlock()
		return
	}

	if req.retried {
		delete(s.pending, correlationID)
		s.mu.Unlock()
		s.logger.Warn("seed request unanswered, giving up",
			"correlationId", correlationID,
			"count", req.count,
		)
		return
	}

	req.retried = true
	req.timer = time.AfterFunc(s.timeout, func() {
		s.expire(correlationID)
	})
	count := req.count
	s.mu.Unlock()

	s.logger.Info("seed request unanswered, re-issuing",
		"correlationId", correlationID,
		"count", count,
	)
	if err := s.send(context.Background(), correlationID, count); err != nil {
		s.logger.Error("seed re-issue failed", "correlationId", correlationID, "error", err)
	}
}

func (s *Seeder) send(ctx context.Context, correlationID string, count int) error {
	return s.messenger.PublishCorrelated(ctx, messaging.GigRequest, contracts.NewSeedRequest(count), correlationID)
}
