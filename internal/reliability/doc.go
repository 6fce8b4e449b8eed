// Package reliability provides the retry and dead-letter building blocks
// the messaging backbone leans on.
//
// Two concerns live here:
//   - Backoff: the bounded exponential retry policy every service uses for
//     broker connections, delay = min(base * 2^attempt, cap) with a hard
//     attempt ceiling
//   - DeadLetterer: copies deliveries whose handlers exhausted their
//     attempts onto the dead-letter exchange so they are never left
//     unacknowledged
//
// Implementations are thread-safe and take context for cancellation.
package reliability
