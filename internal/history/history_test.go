package history

import (
	"testing"
	"time"

	"meal-plan-generator/internal/recipe"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var now = time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC)

func fixedFilter() *Filter {
	return &Filter{Now: func() time.Time { return now }}
}

func daysAgo(n int) time.Time {
	return now.Add(-time.Duration(n) * 24 * time.Hour)
}

func TestFilterProteinRule(t *testing.T) {
	f := fixedFilter()
	candidate := recipe.Meal{RecipeName: "Chicken Tacos", PrimaryProtein: "chicken", BaseCarb: "tortilla"}

	yesterday := []Entry{{Title: "Chicken Curry", PrimaryProtein: "chicken", BaseCarb: "none", DateUsed: daysAgo(1)}}
	ex, excluded := f.Check(candidate, yesterday)
	require.True(t, excluded)
	assert.Equal(t, "protein", ex.Rule)

	fourDays := []Entry{{Title: "Chicken Curry", PrimaryProtein: "chicken", BaseCarb: "none", DateUsed: daysAgo(4)}}
	assert.False(t, f.Excluded(candidate, fourDays))
}

func TestFilterCarbRule(t *testing.T) {
	f := fixedFilter()
	candidate := recipe.Meal{PrimaryProtein: "tofu", BaseCarb: "rice"}

	ex, excluded := f.Check(candidate, []Entry{{BaseCarb: "rice", DateUsed: daysAgo(5)}})
	require.True(t, excluded)
	assert.Equal(t, "carb", ex.Rule)

	assert.False(t, f.Excluded(candidate, []Entry{{BaseCarb: "rice", DateUsed: daysAgo(6)}}))
}

func TestFilterCuisineRule(t *testing.T) {
	f := fixedFilter()
	candidate := recipe.Meal{PrimaryProtein: "tofu", BaseCarb: "none", Cuisine: []string{"italian"}}

	once := []Entry{{Cuisine: []string{"Italian"}, DateUsed: daysAgo(2)}}
	assert.False(t, f.Excluded(candidate, once))

	twice := append(once, Entry{Cuisine: []string{"italian", "mediterranean"}, DateUsed: daysAgo(6)})
	ex, excluded := f.Check(candidate, twice)
	require.True(t, excluded)
	assert.Equal(t, "cuisine", ex.Rule)

	stale := append(once, Entry{Cuisine: []string{"italian"}, DateUsed: daysAgo(8)})
	assert.False(t, f.Excluded(candidate, stale))
}

func TestFilterIgnoresDefaultLabels(t *testing.T) {
	f := fixedFilter()
	candidate := recipe.Meal{PrimaryProtein: recipe.DefaultProtein, BaseCarb: recipe.DefaultCarb}
	entries := []Entry{{PrimaryProtein: recipe.DefaultProtein, BaseCarb: recipe.DefaultCarb, DateUsed: daysAgo(0)}}
	assert.False(t, f.Excluded(candidate, entries))
}

func TestFromMeals(t *testing.T) {
	meals := []recipe.Meal{
		{RecipeName: "Salmon Rice Bowl", Ingredients: []recipe.Ingredient{{Name: "salmon"}, {Name: "rice"}}, Cuisine: []string{"japanese"}},
		{RecipeName: "Salmon Rice Bowl"},
	}
	entries := FromMeals(now, meals)
	require.Len(t, entries, 2)
	assert.Equal(t, "salmon", entries[0].PrimaryProtein)
	assert.Equal(t, "rice", entries[0].BaseCarb)
	assert.Equal(t, []string{"salmon", "rice"}, entries[0].Ingredients)
	assert.Equal(t, now, entries[0].DateUsed)
	assert.Equal(t, []string{"Salmon Rice Bowl"}, Titles(entries))
}
