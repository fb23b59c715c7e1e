package recipe

import (
	"errors"
	"testing"

	"meal-plan-generator/internal/llm"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleMeal = `{
	"recipeName": "Lemon Herb Chicken with Rice",
	"ingredients": [
		{"name": "chicken breast", "quantity": 200, "unit": "g"},
		{"name": "jasmine rice", "quantity": "1/2", "unit": "cup"},
		{"name": "lemon"}
	],
	"instructions": ["1. Cook the rice.", "2. Grill the chicken."],
	"cookingTime": "35 minutes",
	"servings": 2,
	"nutrition": {"calories": 520, "protein": "42g", "carbs": 48, "fat": 14},
	"cuisine": "Mediterranean",
	"tags": ["High-Protein"]
}`

func TestExtractJSON(t *testing.T) {
	tests := []struct {
		name   string
		output llm.ProviderOutput
		want   string
	}{
		{"PlainText", llm.Text(`{"a":1}`), `{"a":1}`},
		{"Fenced", llm.Text("```json\n{\"a\":1}\n```"), `{"a":1}`},
		{"SurroundingProse", llm.Text(`Here is your meal: {"a":{"b":"}"}} Enjoy!`), `{"a":{"b":"}"}}`},
		{"Array", llm.Text(`result: [1,2,[3]] done`), `[1,2,[3]]`},
		{"TrailingComma", llm.Text(`{"a":[1,2,],}`), `{"a":[1,2]}`},
		{"SingleQuotes", llm.Text(`{'name': 'Chef's Salad', 'n': 1}`), `{"name": "Chef's Salad", "n": 1}`},
		{"BracketedProseBeforeObject", llm.Text(`Here is your recipe [serves 2]: {"recipeName":"Lentil Soup","servings":2}`), `{"recipeName":"Lentil Soup","servings":2}`},
		{"BracedProseBeforeArray", llm.Text(`Meals {two of them}: [{"recipeName":"A"},{"recipeName":"B"}]`), `[{"recipeName":"A"},{"recipeName":"B"}]`},
		{"ContentBlocks",llm.ContentBlocks{{Type: "text", Text: `{"a":`}, {Type: "image"}, {Type: "text", Text: `2}`}}, `{"a":2}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ExtractJSON(tt.output)
			require.NoError(t, err)
			assert.JSONEq(t, tt.want, got)
		})
	}

	t.Run("Unrecoverable", func(t *testing.T) {
		_, err := ExtractJSON(llm.Text("I'm sorry, I cannot help with that."))
		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrMalformedOutput))
	})

	t.Run("Nil", func(t *testing.T) {
		_, err := ExtractJSON(nil)
		assert.True(t, errors.Is(err, ErrMalformedOutput))
	})
}

func TestNormalizeMeal(t *testing.T) {
	t.Run("FullMeal", func(t *testing.T) {
		m, err := NormalizeMeal(sampleMeal, Defaults{MealType: "dinner", Source: SourceOpenAI, DietaryTags: []string{"Gluten-Free"}})
		require.NoError(t, err)

		assert.Equal(t, "dinner", m.MealType)
		assert.Equal(t, "Lemon Herb Chicken with Rice", m.RecipeName)
		require.Len(t, m.Ingredients, 3)
		assert.Equal(t, 0.5, m.Ingredients[1].Quantity)
		assert.Equal(t, "unit", m.Ingredients[2].Unit)
		assert.Equal(t, 1.0, m.Ingredients[2].Quantity)
		assert.Equal(t, []string{"Cook the rice.", "Grill the chicken."}, m.Instructions)
		assert.Equal(t, 35, m.CookingTime)
		assert.Equal(t, 2, m.Servings)
		assert.Equal(t, 42.0, m.Nutrition.ProteinG)
		assert.True(t, m.Nutrition.Estimated)
		assert.False(t, m.Nutrition.Verified)
		assert.Equal(t, []string{"mediterranean"}, m.Cuisine)
		assert.Equal(t, []string{"high-protein", "gluten-free"}, m.Tags)
		assert.Equal(t, "chicken", m.PrimaryProtein)
		assert.Equal(t, "rice", m.BaseCarb)
		assert.Equal(t, SourceOpenAI, m.RecipeSource)
		assert.NoError(t, m.Validate())
	})

	t.Run("MissingFieldsGetDefaults", func(t *testing.T) {
		raw := `{"meal": {"name": "Bean Stew", "ingredients": ["2 cups cannellini beans, drained", "1 onion"], "instructions": "Simmer.\nServe.", "calories": 300}}`
		m, err := NormalizeMeal(raw, Defaults{MealType: "lunch", MaxCookingTime: 20, Servings: 3})
		require.NoError(t, err)

		assert.Equal(t, 20, m.CookingTime)
		assert.Equal(t, 3, m.Servings)
		assert.Equal(t, Ingredient{Name: "cannellini beans", Quantity: 2, Unit: "cup", Notes: "drained"}, m.Ingredients[0])
		assert.Equal(t, "unit", m.Ingredients[1].Unit)
		assert.Equal(t, []string{"Simmer.", "Serve."}, m.Instructions)
		assert.Equal(t, 300.0, m.Nutrition.Calories)
		assert.Equal(t, "beans", m.PrimaryProtein)
		assert.Equal(t, DefaultCarb, m.BaseCarb)
	})

	t.Run("CookingTimeFallbackCappedAtThirty", func(t *testing.T) {
		m, err := NormalizeMeal(`{"name":"Toast"}`, Defaults{MaxCookingTime: 90})
		require.NoError(t, err)
		assert.Equal(t, 30, m.CookingTime)
		assert.Error(t, m.Validate())
	})

	t.Run("NotAnObject", func(t *testing.T) {
		_, err := NormalizeMeal(`"just a string"`, Defaults{})
		assert.True(t, errors.Is(err, ErrMalformedOutput))
	})
}

func TestNormalizeMeals(t *testing.T) {
	raw := `{"days":[{"meals":[{"recipeName":"Oat Bowl","ingredients":["1 cup oats"]}]},{"meals":[{"recipeName":"Tofu Curry","ingredients":["200 g tofu"]},{"recipeName":"Salmon Plate"}]}]}`
	meals, err := NormalizeMeals(raw, Defaults{Source: SourceHybridBatch})
	require.NoError(t, err)
	require.Len(t, meals, 3)
	assert.Equal(t, "Oat Bowl", meals[0].RecipeName)
	assert.Equal(t, "oats", meals[0].BaseCarb)
	assert.Equal(t, "tofu", meals[1].PrimaryProtein)
	assert.Equal(t, SourceHybridBatch, meals[2].RecipeSource)

	_, err = NormalizeMeals(`{"days":[]}`, Defaults{})
	assert.True(t, errors.Is(err, ErrMalformedOutput))
}

func TestParseQuantity(t *testing.T) {
	tests := []struct {
		in   string
		qty  float64
		rest string
	}{
		{"2 cups", 2, "cups"},
		{"1/2 cup milk", 0.5, "cup milk"},
		{"1 1/2 tbsp", 1.5, "tbsp"},
		{"½ tsp", 0.5, "tsp"},
		{"a pinch", 0, "a pinch"},
	}
	for _, tt := range tests {
		qty, rest := ParseQuantity(tt.in)
		assert.InDelta(t, tt.qty, qty, 0.0001, tt.in)
		assert.Equal(t, tt.rest, rest, tt.in)
	}
}

func TestFormatQuantity(t *testing.T) {
	assert.Equal(t, "2", FormatQuantity(2.0))
	assert.Equal(t, "1.5", FormatQuantity(1.50))
	assert.Equal(t, "0.33", FormatQuantity(1.0/3))
}
