// Package contracts defines the event payloads the marketplace services
// exchange over the broker.
//
// Wire bodies are the bare JSON documents the peer services destructure;
// field names and `type` discriminator values are load-bearing and must not
// change while unmigrated peers exist. Message identity (idempotency key)
// and correlation travel in broker properties, never in the body, so the
// body stays byte-compatible with the older services.
//
// The `type` field is decoded exactly once, at the transport boundary, into
// a closed set of event kinds. Handlers switch on the kind, not on raw
// strings; an unknown discriminator is a decode error rather than a silent
// fallthrough.
package contracts
