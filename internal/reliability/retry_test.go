package reliability

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBackoff(t *testing.T) {
	t.Run("connect policy computes min(1s*2^n, 10s)", func(t *testing.T) {
		b := ConnectBackoff()

		tests := []struct {
			attempt  int
			expected time.Duration
		}{
			{1, 2 * time.Second},
			{2, 4 * time.Second},
			{3, 8 * time.Second},
			{4, 10 * time.Second},
			{5, 10 * time.Second},
		}

		for _, tt := range tests {
			delay, ok := b.Next(tt.attempt)
			require.True(t, ok, "attempt %d should be allowed", tt.attempt)
			assert.Equal(t, tt.expected, delay, "attempt %d", tt.attempt)
		}
	})

	t.Run("attempt past the ceiling is terminal", func(t *testing.T) {
		b := ConnectBackoff()

		delay, ok := b.Next(6)
		assert.False(t, ok)
		assert.Equal(t, time.Duration(0), delay)
	})

	t.Run("delay never exceeds the cap", func(t *testing.T) {
		b := Backoff{Base: time.Second, Cap: 10 * time.Second, MaxAttempts: 64}

		for attempt := 1; attempt <= 64; attempt++ {
			assert.LessOrEqual(t, b.Delay(attempt), 10*time.Second, "attempt %d", attempt)
		}
	})
}

func TestRetry(t *testing.T) {
	t.Run("returns nil on first success", func(t *testing.T) {
		calls := 0
		err := Retry(context.Background(), ConnectBackoff(), func() error {
			calls++
			return nil
		})

		assert.NoError(t, err)
		assert.Equal(t, 1, calls)
	})

	t.Run("stops retrying after success", func(t *testing.T) {
		b := Backoff{Base: time.Millisecond, Cap: 2 * time.Millisecond, MaxAttempts: 5}
		calls := 0
		err := Retry(context.Background(), b, func() error {
			calls++
			if calls < 3 {
				return errors.New("transient")
			}
			return nil
		})

		assert.NoError(t, err)
		assert.Equal(t, 3, calls)
	})

	t.Run("exhaustion wraps the last error", func(t *testing.T) {
		b := Backoff{Base: time.Millisecond, Cap: 2 * time.Millisecond, MaxAttempts: 2}
		calls := 0
		err := Retry(context.Background(), b, func() error {
			calls++
			return errors.New("broker down")
		})

		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrAttemptsExhausted))
		assert.Contains(t, err.Error(), "broker down")
		// Initial try plus MaxAttempts retries.
		assert.Equal(t, 3, calls)
	})

	t.Run("honors cancellation while waiting", func(t *testing.T) {
		b := Backoff{Base: time.Minute, Cap: time.Minute, MaxAttempts: 5}
		ctx, cancel := context.WithCancel(context.Background())

		done := make(chan error, 1)
		go func() {
			done <- Retry(ctx, b, func() error { return errors.New("fail") })
		}()

		cancel()

		select {
		case err := <-done:
			assert.True(t, errors.Is(err, context.Canceled))
		case <-time.After(time.Second):
			t.Fatal("retry did not observe cancellation")
		}
	})
}
