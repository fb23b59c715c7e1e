package quota

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"meal-plan-generator/internal/auth"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memoryUsers struct {
	mu    sync.Mutex
	usage map[string]Usage
	saves int
}

func newMemoryUsers() *memoryUsers {
	return &memoryUsers{usage: map[string]Usage{}}
}

func (m *memoryUsers) GetUsage(ctx context.Context, userID string) (Usage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.usage[userID]
	if !ok {
		return Usage{}, ErrUserNotFound
	}
	return u, nil
}

func (m *memoryUsers) SaveUsage(ctx context.Context, userID string, usage Usage) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.saves++
	m.usage[userID] = usage
	return nil
}

var march = time.Date(2026, 3, 15, 10, 0, 0, 0, time.UTC)

func newTestGate(users UserStore) *Gate {
	return NewGate(DefaultProfiles(), users).WithClock(func() time.Time { return march })
}

func TestGateCheck(t *testing.T) {
	ctx := context.Background()

	t.Run("FreeUserAtLimit", func(t *testing.T) {
		users := newMemoryUsers()
		users.usage["u1"] = Usage{Tier: TierFree, MonthlyPlanCount: 1, LastPlanDate: march.AddDate(0, 0, -3)}

		d, err := newTestGate(users).Check(ctx, &auth.Identity{UserID: "u1", Tier: TierFree}, TierFree)
		require.NoError(t, err)
		assert.False(t, d.Allowed)
		assert.True(t, d.LimitReached)
		assert.Equal(t, ReasonLimitReached, d.Reason)
		assert.Equal(t, 1, d.PlansUsed)
		assert.Equal(t, 0, d.Remaining)
	})

	t.Run("MonthlyReset", func(t *testing.T) {
		users := newMemoryUsers()
		users.usage["u1"] = Usage{Tier: TierTwo, MonthlyPlanCount: 10, LastPlanDate: time.Date(2026, 2, 28, 23, 0, 0, 0, time.UTC)}

		d, err := newTestGate(users).Check(ctx, &auth.Identity{UserID: "u1"}, TierTwo)
		require.NoError(t, err)
		assert.True(t, d.Allowed)
		assert.Equal(t, 0, d.PlansUsed)
		assert.Equal(t, 10, d.Remaining)
		assert.Equal(t, 0, users.usage["u1"].MonthlyPlanCount)
	})

	t.Run("AnonymousFree", func(t *testing.T) {
		d, err := newTestGate(newMemoryUsers()).Check(ctx, nil, TierFree)
		require.NoError(t, err)
		assert.True(t, d.Allowed)
		assert.Equal(t, 1, d.PlansAllowed)
	})

	t.Run("AnonymousPaidRequiresLogin", func(t *testing.T) {
		d, err := newTestGate(newMemoryUsers()).Check(ctx, nil, TierTwo)
		require.NoError(t, err)
		assert.False(t, d.Allowed)
		assert.Equal(t, ReasonRequiresLogin, d.Reason)
	})

	t.Run("RequiresUpgrade", func(t *testing.T) {
		d, err := newTestGate(newMemoryUsers()).Check(ctx, &auth.Identity{UserID: "u2", Tier: TierTwo}, TierThree)
		require.NoError(t, err)
		assert.False(t, d.Allowed)
		assert.Equal(t, ReasonRequiresUpgrade, d.Reason)
	})

	t.Run("UnlimitedTier", func(t *testing.T) {
		users := newMemoryUsers()
		users.usage["u3"] = Usage{Tier: TierThree, MonthlyPlanCount: 500, LastPlanDate: march}
		d, err := newTestGate(users).Check(ctx, &auth.Identity{UserID: "u3"}, TierThree)
		require.NoError(t, err)
		assert.True(t, d.Allowed)
		assert.Equal(t, Unlimited, d.Remaining)
	})

	t.Run("UnknownTier", func(t *testing.T) {
		_, err := newTestGate(newMemoryUsers()).Check(ctx, nil, "platinum")
		assert.ErrorIs(t, err, ErrUnknownTier)
	})
}

func TestGateRecord(t *testing.T) {
	ctx := context.Background()
	users := newMemoryUsers()
	gate := newTestGate(users)
	id := &auth.Identity{UserID: "u1", Tier: TierTwo}

	checked, err := gate.Check(ctx, id, TierTwo)
	require.NoError(t, err)
	require.True(t, checked.Reserved)

	d, err := gate.Record(ctx, id, checked)
	require.NoError(t, err)
	assert.Equal(t, 1, d.PlansUsed)
	assert.Equal(t, 9, d.Remaining)
	assert.Equal(t, Usage{Tier: TierTwo, MonthlyPlanCount: 1, LastPlanDate: march}, users.usage["u1"])
	assert.Empty(t, gate.pending)

	anon, err := gate.Check(ctx, nil, TierFree)
	require.NoError(t, err)
	_, err = gate.Record(ctx, nil, anon)
	require.NoError(t, err)
	assert.Len(t, users.usage, 1)
}

func TestGateConcurrentChecks(t *testing.T) {
	ctx := context.Background()
	users := newMemoryUsers()
	gate := newTestGate(users)
	id := &auth.Identity{UserID: "new-user", Tier: TierFree}

	const requests = 5
	decisions := make([]Decision, requests)
	var wg sync.WaitGroup
	for i := range requests {
		wg.Add(1)
		go func() {
			defer wg.Done()
			d, err := gate.Check(ctx, id, TierFree)
			assert.NoError(t, err)
			decisions[i] = d
		}()
	}
	wg.Wait()

	var granted []Decision
	for _, d := range decisions {
		if d.Allowed {
			granted = append(granted, d)
			continue
		}
		assert.Equal(t, ReasonLimitReached, d.Reason)
		assert.Equal(t, 1, d.PlansUsed)
	}
	require.Len(t, granted, 1)

	t.Run("ReleaseFreesTheSlot", func(t *testing.T) {
		gate.Release(id, granted[0])
		d, err := gate.Check(ctx, id, TierFree)
		require.NoError(t, err)
		require.True(t, d.Allowed)
		granted[0] = d
	})

	t.Run("RecordConsumesTheSlot", func(t *testing.T) {
		_, err := gate.Record(ctx, id, granted[0])
		require.NoError(t, err)
		assert.Equal(t, 1, users.usage["new-user"].MonthlyPlanCount)

		d, err := gate.Check(ctx, id, TierFree)
		require.NoError(t, err)
		assert.False(t, d.Allowed)
		assert.True(t, d.LimitReached)
	})

	t.Run("UnlimitedTierHoldsNoReservation", func(t *testing.T) {
		users.usage["u3"] = Usage{Tier: TierThree}
		d, err := gate.Check(ctx, &auth.Identity{UserID: "u3"}, TierThree)
		require.NoError(t, err)
		assert.True(t, d.Allowed)
		assert.False(t, d.Reserved)
		assert.NotContains(t, gate.pending, "u3")
	})
}

func TestGateSubscribedTier(t *testing.T) {
	ctx := context.Background()
	users := newMemoryUsers()
	users.usage["u3"] = Usage{Tier: TierThree, MonthlyPlanCount: 3, LastPlanDate: march}
	gate := newTestGate(users)

	tests := []struct {
		name     string
		identity *auth.Identity
		want     string
	}{
		{"StoredTierWins", &auth.Identity{UserID: "u3", Tier: TierFree}, TierThree},
		{"TokenTierForUnknownUser", &auth.Identity{UserID: "u9", Tier: TierTwo}, TierTwo},
		{"FreeByDefault", &auth.Identity{UserID: "u9"}, TierFree},
		{"Anonymous", nil, TierFree},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := gate.SubscribedTier(ctx, tt.identity)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestLoadProfiles(t *testing.T) {
	t.Run("EmptyPathUsesDefaults", func(t *testing.T) {
		profiles, err := LoadProfiles("")
		require.NoError(t, err)
		assert.Equal(t, DefaultProfiles(), profiles)
		assert.Equal(t, []string{TierFree, TierTwo, TierThree}, Names(profiles))
	})

	t.Run("Override", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "tiers.yaml")
		require.NoError(t, os.WriteFile(path, []byte(`
tiers:
  - name: free
    rank: 0
    monthlyPlans: 3
    swapsPerPlan: 2
    generationMethod: openai
`), 0o600))

		profiles, err := LoadProfiles(path)
		require.NoError(t, err)
		assert.Equal(t, 3, profiles[TierFree].MonthlyPlans)
		assert.Equal(t, 10, profiles[TierTwo].MonthlyPlans)
	})

	t.Run("BadMethod", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "tiers.yaml")
		require.NoError(t, os.WriteFile(path, []byte("tiers:\n  - name: free\n    generationMethod: magic\n"), 0o600))
		_, err := LoadProfiles(path)
		assert.Error(t, err)
	})
}
