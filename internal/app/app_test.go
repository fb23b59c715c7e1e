package app

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"meal-plan-generator/internal/config"
	"meal-plan-generator/internal/planner"
	"meal-plan-generator/internal/quota"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestApp(t *testing.T, secret string) *App {
	t.Helper()
	cfg := &config.Config{
		OpenAIAPIKey:                "test-key",
		OpenAIBaseURL:               "http://127.0.0.1:0",
		OpenAIModel:                 "test-model",
		DatabasePath:                filepath.Join(t.TempDir(), "app.db"),
		JWTSecret:                   secret,
		NutritionDeviationThreshold: 10,
		CacheTTL:                    time.Minute,
		ProviderTimeout:             time.Second,
	}
	a, err := New(context.Background(), cfg)
	require.NoError(t, err)
	t.Cleanup(a.Close)
	return a
}

func TestIssueToken(t *testing.T) {
	ctx := context.Background()

	t.Run("AssignsTier", func(t *testing.T) {
		a := newTestApp(t, "secret")
		token, err := a.IssueToken(ctx, "user-1", quota.TierTwo, time.Hour)
		require.NoError(t, err)
		assert.NotEmpty(t, token)

		usage, err := a.Store().GetUsage(ctx, "user-1")
		require.NoError(t, err)
		assert.Equal(t, quota.TierTwo, usage.Tier)
	})

	t.Run("UnknownTier", func(t *testing.T) {
		a := newTestApp(t, "secret")
		_, err := a.IssueToken(ctx, "user-1", "platinum", time.Hour)
		assert.ErrorIs(t, err, quota.ErrUnknownTier)
	})

	t.Run("NoSecret", func(t *testing.T) {
		a := newTestApp(t, "")
		_, err := a.IssueToken(ctx, "user-1", quota.TierFree, time.Hour)
		assert.ErrorContains(t, err, "JWT_SECRET")
	})
}

func TestGenerateMealPlanRejectsInvalidRequest(t *testing.T) {
	a := newTestApp(t, "")
	var out bytes.Buffer
	err := a.GenerateMealPlan(context.Background(), &out, "", planner.PlanRequest{DaysCount: 0, MealsPerDay: 3})
	assert.ErrorIs(t, err, planner.ErrInvalidRequest)
	assert.Zero(t, out.Len())
}

func TestCleanupMetricsOnEmptyStore(t *testing.T) {
	a := newTestApp(t, "")
	n, err := a.CleanupMetrics(context.Background(), 30)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestHandlerServesHealthAndMetrics(t *testing.T) {
	a := newTestApp(t, "")
	h := a.Handler()

	for _, path := range []string{"/health", "/metrics"} {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		assert.Equal(t, http.StatusOK, rec.Code, path)
	}
}
