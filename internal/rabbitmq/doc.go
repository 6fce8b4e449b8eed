// Package rabbitmq owns the physical AMQP plumbing: one connection and one
// multiplexed channel per service process, idempotent topology declaration,
// publishing, and consuming with an explicit acknowledgment policy.
//
// The connection is dialed with a bounded exponential backoff; exhausting
// it is a terminal, non-fatal error the service logs and survives without
// messaging. The shared channel is safe to use from every publisher in the
// process because amqp091-go serializes frame writes internally; callers
// must not assume a private channel per call.
package rabbitmq
