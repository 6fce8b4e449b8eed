// Package messaging is the broker-facing contract every marketplace
// service programs against: a Transport that can publish to and subscribe
// on the marketplace topology, and a Messenger that layers envelope
// handling, logging, retry-aware acknowledgment, and idempotent dispatch
// on top of it.
//
// The Messenger replaces the module-level channel variable of the older
// services: it is constructed once per process and passed explicitly to
// every component that publishes or subscribes, so there is no hidden
// shared state and tests can substitute an in-memory transport.
package messaging
