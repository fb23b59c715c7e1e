package shared

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunBatched(t *testing.T) {
	t.Run("VisitsEveryIndexOnce", func(t *testing.T) {
		var mu sync.Mutex
		seen := map[int]int{}
		err := RunBatched(context.Background(), 19, 8, 0, func(_ context.Context, i int) {
			mu.Lock()
			seen[i]++
			mu.Unlock()
		})
		require.NoError(t, err)
		assert.Len(t, seen, 19)
		for i := 0; i < 19; i++ {
			assert.Equal(t, 1, seen[i], "index %d", i)
		}
	})

	t.Run("NeverExceedsBatchSize", func(t *testing.T) {
		var inFlight, peak int32
		err := RunBatched(context.Background(), 20, 4, 0, func(_ context.Context, _ int) {
			cur := atomic.AddInt32(&inFlight, 1)
			for {
				p := atomic.LoadInt32(&peak)
				if cur <= p || atomic.CompareAndSwapInt32(&peak, p, cur) {
					break
				}
			}
			atomic.AddInt32(&inFlight, -1)
		})
		require.NoError(t, err)
		assert.LessOrEqual(t, atomic.LoadInt32(&peak), int32(4))
	})

	t.Run("Empty", func(t *testing.T) {
		called := false
		require.NoError(t, RunBatched(context.Background(), 0, 8, 0, func(context.Context, int) { called = true }))
		assert.False(t, called)
	})
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "abc", Truncate("abc", 5))
	assert.Equal(t, "ab...(truncated)", Truncate("abcdef", 2))

	out := Truncate("Crème brûlée 🍮 dessert", 12)
	assert.Equal(t, "Crème brûlée...(truncated)", out)
	assert.True(t, utf8.ValidString(Truncate("🍮🍮🍮", 1)))
}
