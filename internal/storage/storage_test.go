package storage

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"meal-plan-generator/internal/database"
	"meal-plan-generator/internal/quota"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	db, err := database.Open(context.Background(), filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return NewStore(db.SQL)
}

func TestStore_Usage(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	t.Run("unknown user", func(t *testing.T) {
		_, err := store.GetUsage(ctx, "nobody")
		assert.ErrorIs(t, err, quota.ErrUserNotFound)
	})

	t.Run("save and load", func(t *testing.T) {
		last := time.Date(2026, 3, 4, 10, 0, 0, 0, time.UTC)
		require.NoError(t, store.SaveUsage(ctx, "u1", quota.Usage{Tier: quota.TierTwo, MonthlyPlanCount: 3, LastPlanDate: last}))

		usage, err := store.GetUsage(ctx, "u1")
		require.NoError(t, err)
		assert.Equal(t, quota.TierTwo, usage.Tier)
		assert.Equal(t, 3, usage.MonthlyPlanCount)
		assert.True(t, usage.LastPlanDate.Equal(last))
	})

	t.Run("set tier keeps counter", func(t *testing.T) {
		require.NoError(t, store.SetTier(ctx, "u1", quota.TierThree))
		usage, err := store.GetUsage(ctx, "u1")
		require.NoError(t, err)
		assert.Equal(t, quota.TierThree, usage.Tier)
		assert.Equal(t, 3, usage.MonthlyPlanCount)
	})

	t.Run("set tier creates user", func(t *testing.T) {
		require.NoError(t, store.SetTier(ctx, "u2", quota.TierTwo))
		usage, err := store.GetUsage(ctx, "u2")
		require.NoError(t, err)
		assert.Equal(t, quota.TierTwo, usage.Tier)
		assert.Zero(t, usage.MonthlyPlanCount)
		assert.True(t, usage.LastPlanDate.IsZero())
	})
}

func TestStore_Plans(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	now := time.Date(2026, 3, 20, 12, 0, 0, 0, time.UTC)

	for i, age := range []int{1, 3, 20} {
		require.NoError(t, store.SavePlan(ctx, StoredPlan{
			ID:        []string{"recent", "older", "stale"}[i],
			UserID:    "u1",
			Payload:   []byte(`{"days":[]}`),
			CreatedAt: now.AddDate(0, 0, -age),
		}))
	}
	require.NoError(t, store.SavePlan(ctx, StoredPlan{ID: "other", UserID: "u2", Payload: []byte(`{}`), CreatedAt: now}))

	t.Run("recent within window", func(t *testing.T) {
		plans, err := store.RecentPlans(ctx, "u1", now.AddDate(0, 0, -14), 5)
		require.NoError(t, err)
		require.Len(t, plans, 2)
		assert.Equal(t, "recent", plans[0].ID)
		assert.Equal(t, "older", plans[1].ID)
	})

	t.Run("limit", func(t *testing.T) {
		plans, err := store.RecentPlans(ctx, "u1", now.AddDate(0, 0, -30), 1)
		require.NoError(t, err)
		require.Len(t, plans, 1)
		assert.Equal(t, "recent", plans[0].ID)
	})

	t.Run("get and overwrite", func(t *testing.T) {
		require.NoError(t, store.SavePlan(ctx, StoredPlan{ID: "recent", UserID: "u1", Payload: []byte(`{"v":2}`), CreatedAt: now}))
		p, err := store.GetPlan(ctx, "recent")
		require.NoError(t, err)
		assert.Equal(t, "u1", p.UserID)
		assert.JSONEq(t, `{"v":2}`, string(p.Payload))
	})

	t.Run("missing", func(t *testing.T) {
		_, err := store.GetPlan(ctx, "nope")
		assert.ErrorIs(t, err, ErrPlanNotFound)
	})
}
