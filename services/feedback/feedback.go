// Package feedback broadcasts submitted reviews. It publishes to the
// review fanout and never learns who consumes it; today that is the
// profile and transaction services, each with its own queue.
package feedback

import (
	"context"
	"fmt"
	"time"

	"github.com/gigmarket/backbone-go/contracts"
	"github.com/gigmarket/backbone-go/messaging"
)

// Service is the feedback side of the backbone. It only publishes.
type Service struct {
	messenger *messaging.Messenger
	now       func() time.Time
}

// New creates the feedback service.
func New(m *messaging.Messenger) *Service {
	return &Service{messenger: m, now: time.Now}
}

// SubmitReview validates and broadcasts one review.
func (s *Service) SubmitReview(ctx context.Context, evt contracts.ReviewEvent) error {
	if evt.Type != contracts.ReviewByBuyer && evt.Type != contracts.ReviewBySeller {
		return fmt.Errorf("feedback: unknown review authorship %q", evt.Type)
	}
	if evt.Rating < 1 || evt.Rating > 5 {
		return fmt.Errorf("feedback: rating %d out of range", evt.Rating)
	}
	if evt.CreatedAt.IsZero() {
		evt.CreatedAt = s.now().UTC()
	}

	return s.messenger.Publish(ctx, messaging.Review, evt)
}
