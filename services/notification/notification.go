// Package notification drains the email queues and hands each job to an
// EmailSender. Rendering and delivery live behind that interface; the
// service owns only the queue discipline.
package notification

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/gigmarket/backbone-go/contracts"
	"github.com/gigmarket/backbone-go/messaging"
)

// EmailSender delivers one rendered email. Implementations are external
// collaborators (SMTP, a provider API); tests use RecordingSender.
type EmailSender interface {
	Send(ctx context.Context, job contracts.EmailJob) error
}

// Service wires the email consumers onto the backbone.
type Service struct {
	sender    EmailSender
	messenger *messaging.Messenger
	logger    *slog.Logger
}

// New creates the notification service.
func New(m *messaging.Messenger, sender EmailSender) *Service {
	return &Service{
		sender:    sender,
		messenger: m,
		logger:    m.Logger(),
	}
}

// Register subscribes both email queues. Sends go through the idempotent
// path: a redelivered job must not email anyone twice.
func (s *Service) Register(ctx context.Context) error {
	if err := s.messenger.SubscribeIdempotent(ctx, messaging.AuthEmailQueue, messaging.HandlerFunc(s.handleEmail)); err != nil {
		return err
	}
	return s.messenger.SubscribeIdempotent(ctx, messaging.OrderEmailQueue, messaging.HandlerFunc(s.handleEmail))
}

func (s *Service) handleEmail(ctx context.Context, d messaging.Delivery) error {
	job, err := contracts.DecodeEmailJob(d.Body())
	if err != nil {
		return err
	}

	if err := s.sender.Send(ctx, job); err != nil {
		return fmt.Errorf("notification: sending %s to %s: %w", job.Template, job.ReceiverEmail, err)
	}

	s.logger.Info("email sent", "template", job.Template, "receiver", job.ReceiverEmail)
	return nil
}

// RecordingSender is an EmailSender that remembers what it was asked to
// send.
type RecordingSender struct {
	mu   sync.Mutex
	sent []contracts.EmailJob

	// Fail makes every Send return this error.
	Fail error
}

// Send implements EmailSender.
func (r *RecordingSender) Send(_ context.Context, job contracts.EmailJob) error {
	if r.Fail != nil {
		return r.Fail
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, job)
	return nil
}

// Sent returns a copy of the delivered jobs.
func (r *RecordingSender) Sent() []contracts.EmailJob {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]contracts.EmailJob, len(r.sent))
	copy(out, r.sent)
	return out
}
