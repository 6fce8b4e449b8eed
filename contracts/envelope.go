package contracts

import (
	"time"

	"github.com/google/uuid"
)

// Envelope is the unit a transport moves: an opaque JSON body plus the
// broker-level metadata that rides outside it.
type Envelope struct {
	// MessageID uniquely identifies this publish and doubles as the
	// idempotency key consulted by mutating handlers.
	MessageID string

	// CorrelationID links a reply to the request that caused it. Empty for
	// one-way events.
	CorrelationID string

	// OccurredAt is when the business event happened, not when the broker
	// accepted the frame.
	OccurredAt time.Time

	// Body is the bare JSON document the consuming service destructures.
	Body []byte
}

// NewEnvelope wraps a serialized body with a fresh message id.
func NewEnvelope(body []byte) Envelope {
	return Envelope{
		MessageID:  uuid.New().String(),
		OccurredAt: time.Now().UTC(),
		Body:       body,
	}
}
