package reliability

import (
	"context"
	"errors"
	"fmt"
	"time"
)

var (
	// ErrAttemptsExhausted is returned once the attempt ceiling is reached.
	ErrAttemptsExhausted = errors.New("reliability: maximum attempts exceeded")
)

// Backoff is a bounded exponential retry policy. The delay for attempt n
// (1-based) is min(Base * 2^n, Cap); once n exceeds MaxAttempts the policy
// reports a terminal failure instead of a further delay.
type Backoff struct {
	Base        time.Duration
	Cap         time.Duration
	MaxAttempts int
}

// ConnectBackoff is the policy every service uses when dialing the broker:
// base 1s, cap 10s, five attempts.
func ConnectBackoff() Backoff {
	return Backoff{
		Base:        time.Second,
		Cap:         10 * time.Second,
		MaxAttempts: 5,
	}
}

// Delay computes the wait before the given attempt. Attempt numbering is
// 1-based.
func (b Backoff) Delay(attempt int) time.Duration {
	d := b.Base << uint(attempt)
	if d > b.Cap || d < b.Base {
		// The shift overflowing is caught by the second condition.
		d = b.Cap
	}
	return d
}

// Next returns the delay before the given attempt, or false when the
// ceiling has been reached and no further attempt should be made.
func (b Backoff) Next(attempt int) (time.Duration, bool) {
	if attempt > b.MaxAttempts {
		return 0, false
	}
	return b.Delay(attempt), true
}

// Retry runs fn, waiting out the policy's delays between failures. It
// returns nil on the first success, the context error if cancelled while
// waiting, and otherwise the last failure wrapped with
// ErrAttemptsExhausted once the policy gives up.
func Retry(ctx context.Context, b Backoff, fn func() error) error {
	var lastErr error

	for attempt := 0; ; attempt++ {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		if err := fn(); err == nil {
			return nil
		} else {
			lastErr = err
		}

		delay, ok := b.Next(attempt + 1)
		if !ok {
			return fmt.Errorf("%w after %d attempts: %v", ErrAttemptsExhausted, attempt+1, lastErr)
		}

		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}
