package telegram

import (
	"fmt"
	"testing"

	"meal-plan-generator/internal/config"
	"meal-plan-generator/internal/metrics"
	"meal-plan-generator/internal/planner"
	"meal-plan-generator/internal/quota"
	"meal-plan-generator/internal/recipe"
	"meal-plan-generator/internal/storage"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParsePlanRequest(t *testing.T) {
	t.Run("Defaults", func(t *testing.T) {
		req, err := parsePlanRequest("")
		require.NoError(t, err)
		assert.Equal(t, 3, req.DaysCount)
		assert.Equal(t, 3, req.MealsPerDay)
	})

	t.Run("KeyValuePairs", func(t *testing.T) {
		req, err := parsePlanRequest("days=5 meals=4 diet=vegan,gluten-free allergies=peanuts time=30 likes=spicy thai food tier=tier2")
		require.NoError(t, err)
		assert.Equal(t, 5, req.DaysCount)
		assert.Equal(t, 4, req.MealsPerDay)
		assert.Equal(t, []string{"vegan", "gluten-free"}, req.DietaryPreferences)
		assert.Equal(t, []string{"peanuts"}, req.Allergies)
		assert.Equal(t, 30, req.MaxCookingTime)
		assert.Equal(t, "spicy thai food", req.Likes)
		assert.Equal(t, "tier2", req.UserTier)
	})

	t.Run("FreeTextBecomesLikes", func(t *testing.T) {
		req, err := parsePlanRequest("something with lentils")
		require.NoError(t, err)
		assert.Equal(t, "something with lentils", req.Likes)
	})

	t.Run("BadNumber", func(t *testing.T) {
		_, err := parsePlanRequest("days=many")
		assert.ErrorContains(t, err, "days must be a number")
	})

	t.Run("UnknownOption", func(t *testing.T) {
		_, err := parsePlanRequest("colour=blue")
		assert.ErrorContains(t, err, "unknown option")
	})
}

func TestParseSwapArgs(t *testing.T) {
	day, pos, err := parseSwapArgs("2 3")
	require.NoError(t, err)
	assert.Equal(t, 2, day)
	assert.Equal(t, 2, pos)

	for _, bad := range []string{"", "2", "0 1", "1 0", "a b", "1 2 3"} {
		_, _, err := parseSwapArgs(bad)
		assert.Error(t, err, "args %q", bad)
	}
}

func TestFormatPlanMarkdown(t *testing.T) {
	plan := &planner.Plan{
		Title:            "2-Day Vegan Meal Plan",
		NutritionChecked: true,
		Days: []planner.Day{
			{DayIndex: 1, DayName: "Day 1", Meals: []recipe.Meal{
				{MealType: "breakfast", RecipeName: "Oat Bowl", CookingTime: 10, Nutrition: recipe.Nutrition{Calories: 420}},
			}},
			{DayIndex: 2, DayName: "Day 2", Meals: []recipe.Meal{
				{MealType: "breakfast", RecipeName: "Tofu Scramble"},
			}},
		},
		Limits:       planner.Limits{Used: 2, Total: 5, Remaining: 3},
		SwapsAllowed: 3,
		SwapsUsed:    1,
	}

	out := formatPlanMarkdown(plan)
	assert.Contains(t, out, "📅 *2-Day Vegan Meal Plan*")
	assert.Contains(t, out, "Nutrition checked")
	assert.Contains(t, out, "*Day 1*\n1. Breakfast: Oat Bowl (10 mins) · 420 kcal")
	assert.Contains(t, out, "1. Breakfast: Tofu Scramble\n")
	assert.Contains(t, out, "Plans this month: 2/5")
	assert.Contains(t, out, "Swaps left: 2")

	plan.Limits.Total = quota.Unlimited
	plan.SwapsAllowed = quota.Unlimited
	out = formatPlanMarkdown(plan)
	assert.NotContains(t, out, "Plans this month")
	assert.Contains(t, out, "Swaps: unlimited")
}

func TestFormatError(t *testing.T) {
	limit := &planner.RejectionError{Decision: quota.Decision{LimitReached: true, PlansUsed: 5, PlansAllowed: 5, Reason: quota.ReasonLimitReached}}
	assert.Contains(t, formatError(fmt.Errorf("wrapped: %w", limit)), "5/5 plans used")

	swaps := &planner.RejectionError{Decision: quota.Decision{PlansUsed: 3, PlansAllowed: 3, Reason: planner.ReasonSwapLimitReached}}
	assert.Contains(t, formatError(swaps), "No swaps left")

	login := &planner.RejectionError{Decision: quota.Decision{Reason: quota.ReasonRequiresLogin}}
	assert.Contains(t, formatError(login), "requires an account")

	assert.Contains(t, formatError(fmt.Errorf("%w: bad days", planner.ErrInvalidRequest)), "bad days")
	assert.Contains(t, formatError(planner.ErrGenerationExhausted), "try again")
	assert.Equal(t, "❌ Something went wrong while planning.", formatError(fmt.Errorf("boom")))
}

func TestDecodePlan(t *testing.T) {
	plan, err := decodePlan(storage.StoredPlan{ID: "p1", Payload: []byte(`{"id":"p1","title":"T","swapsUsed":1}`)})
	require.NoError(t, err)
	assert.Equal(t, "p1", plan.ID)
	assert.Equal(t, 1, plan.SwapsUsed)

	_, err = decodePlan(storage.StoredPlan{ID: "p2", Payload: []byte("not json")})
	assert.ErrorContains(t, err, "p2")
}

func TestFormatMetricsReport(t *testing.T) {
	out := formatMetricsReport(
		[]metrics.DailyUsage{{Date: "2026-03-01", TotalPrompt: 100, TotalCompletion: 50, TotalExecution: 3, Failures: 1}},
		metrics.SysHealth{Uptime: "1h0m0s", AllocMB: 12, SysMB: 30, Goroutines: 9, DataDiskSize: "2.0 KB"},
	)
	assert.Contains(t, out, "• *2026-03-01*: 150 tokens (3 execs, 1 failed)")
	assert.Contains(t, out, "RAM: 12MB (Alloc) / 30MB (Sys)")
	assert.Contains(t, out, "Disk Data: 2.0 KB")

	assert.Contains(t, formatMetricsReport(nil, metrics.SysHealth{}), "_No data yet_")
}

func TestIsAllowed(t *testing.T) {
	open := &config.Config{}
	assert.True(t, isAllowed(open, 42))

	restricted := &config.Config{TelegramAllowedUserIDs: []int64{1, 2}}
	assert.True(t, isAllowed(restricted, 2))
	assert.False(t, isAllowed(restricted, 42))
}
