package cache

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type request struct {
	Days  int      `json:"days"`
	Diets []string `json:"diets"`
}

func TestKey(t *testing.T) {
	a, err := Key(request{Days: 3, Diets: []string{"vegan"}}, "free", false)
	require.NoError(t, err)
	b, err := Key(request{Days: 3, Diets: []string{"vegan"}}, "free", false)
	require.NoError(t, err)
	assert.Equal(t, a, b)

	otherTier, _ := Key(request{Days: 3, Diets: []string{"vegan"}}, "tier2", false)
	withValidation, _ := Key(request{Days: 3, Diets: []string{"vegan"}}, "free", true)
	otherDays, _ := Key(request{Days: 4, Diets: []string{"vegan"}}, "free", false)
	assert.NotEqual(t, a, otherTier)
	assert.NotEqual(t, a, withValidation)
	assert.NotEqual(t, a, otherDays)

	_, err = Key(func() {}, "free", false)
	assert.Error(t, err)
}

func TestMemoryStore(t *testing.T) {
	ctx := context.Background()
	clock := time.Date(2026, 1, 1, 8, 0, 0, 0, time.UTC)
	store := NewMemoryStore(0)
	store.now = func() time.Time { return clock }

	_, ok, err := store.Get(ctx, "k")
	require.NoError(t, err)
	assert.False(t, ok)

	payload := []byte(`{"plan":1}`)
	require.NoError(t, store.Set(ctx, "k", payload))
	payload[0] = 'X'

	got, ok, err := store.Get(ctx, "k")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, `{"plan":1}`, string(got))

	clock = clock.Add(DefaultTTL)
	_, ok, _ = store.Get(ctx, "k")
	assert.True(t, ok, "entry is still valid at exactly the TTL")

	clock = clock.Add(time.Second)
	_, ok, _ = store.Get(ctx, "k")
	assert.False(t, ok)
	assert.Equal(t, 1, store.Len())

	store.Clear()
	assert.Equal(t, 0, store.Len())
}

func TestMemoryStoreConcurrentWriters(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore(time.Hour)
	done := make(chan struct{})
	for i := 0; i < 16; i++ {
		go func() {
			_ = store.Set(ctx, "same", []byte("payload"))
			_, _, _ = store.Get(ctx, "same")
			done <- struct{}{}
		}()
	}
	for i := 0; i < 16; i++ {
		<-done
	}
	got, ok, _ := store.Get(ctx, "same")
	assert.True(t, ok)
	assert.Equal(t, "payload", string(got))
}

func TestRedisStore(t *testing.T) {
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		t.Skip("REDIS_ADDR not set")
	}
	ctx := context.Background()
	store, err := NewRedisStore(ctx, addr, os.Getenv("REDIS_PASSWORD"), 0, time.Minute)
	require.NoError(t, err)
	defer store.Close()

	key := "test:" + time.Now().Format(time.RFC3339Nano)
	_, ok, err := store.Get(ctx, key)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, store.Set(ctx, key, []byte("v")))
	got, ok, err := store.Get(ctx, key)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "v", string(got))
}
