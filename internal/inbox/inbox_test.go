package inbox

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStore(t *testing.T) {
	ctx := context.Background()

	t.Run("unseen id reports false", func(t *testing.T) {
		s := NewMemoryStore()

		seen, err := s.Seen(ctx, "m1")
		require.NoError(t, err)
		assert.False(t, seen)
	})

	t.Run("marked id reports true", func(t *testing.T) {
		s := NewMemoryStore()

		require.NoError(t, s.MarkProcessed(ctx, "m1"))

		seen, err := s.Seen(ctx, "m1")
		require.NoError(t, err)
		assert.True(t, seen)
	})

	t.Run("marking twice is not an error", func(t *testing.T) {
		s := NewMemoryStore()

		require.NoError(t, s.MarkProcessed(ctx, "m1"))
		require.NoError(t, s.MarkProcessed(ctx, "m1"))
		assert.Equal(t, 1, s.Len())
	})

	t.Run("safe under concurrent use", func(t *testing.T) {
		s := NewMemoryStore()

		var wg sync.WaitGroup
		for i := 0; i < 8; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_ = s.MarkProcessed(ctx, "shared")
				_, _ = s.Seen(ctx, "shared")
			}()
		}
		wg.Wait()

		assert.Equal(t, 1, s.Len())
	})
}
