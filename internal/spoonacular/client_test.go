package spoonacular

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"meal-plan-generator/internal/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return NewClient(&config.Config{SpoonacularAPIKey: "key", SpoonacularBaseURL: server.URL, ProviderTimeout: 2 * time.Second})
}

func TestNewClientWithoutKey(t *testing.T) {
	assert.Nil(t, NewClient(&config.Config{}))
}

func TestParseIngredients(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/recipes/parseIngredients", r.URL.Path)
		assert.Equal(t, "key", r.URL.Query().Get("apiKey"))
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "200 g chicken\n1 cup rice", r.PostForm.Get("ingredientList"))
		assert.Equal(t, "2", r.PostForm.Get("servings"))
		_, _ = w.Write([]byte(`[
			{"name":"chicken","nutrition":{"nutrients":[{"name":"Calories","amount":220,"unit":"kcal"},{"name":"Protein","amount":40,"unit":"g"}]}},
			{"name":"rice","nutrition":{"nutrients":[{"name":"Calories","amount":100,"unit":"kcal"},{"name":"Carbohydrates","amount":22,"unit":"g"}]}}
		]`))
	})

	nutrients, err := client.ParseIngredients(context.Background(), []string{"200 g chicken", "1 cup rice"}, 2)
	require.NoError(t, err)
	assert.Equal(t, []Nutrient{
		{Name: "Calories", Amount: 320, Unit: "kcal"},
		{Name: "Protein", Amount: 40, Unit: "g"},
		{Name: "Carbohydrates", Amount: 22, Unit: "g"},
	}, nutrients)
}

func TestSearchRecipes(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		assert.Equal(t, "/recipes/complexSearch", r.URL.Path)
		assert.Equal(t, "chicken healthy", q.Get("query"))
		assert.Equal(t, "vegetarian", q.Get("diet"))
		assert.Equal(t, "peanut,dairy", q.Get("intolerances"))
		assert.Equal(t, "30", q.Get("maxReadyTime"))
		assert.Equal(t, "", q.Get("cuisine"))
		_, _ = w.Write([]byte(`{"results":[{"id":7,"title":"Veg Bowl","readyInMinutes":20,"servings":2,"pricePerServing":150.5,"dishTypes":["lunch"]}],"totalResults":1}`))
	})

	results, err := client.SearchRecipes(context.Background(), SearchParams{
		Query: "chicken healthy", Diet: "vegetarian", Intolerances: []string{"peanut", "dairy"}, MaxReadyTime: 30,
	})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, 7, results[0].ID)
	assert.Equal(t, []string{"lunch"}, results[0].DishTypes)
}

func TestRecipeInformation(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/recipes/42/information", r.URL.Path)
		assert.Equal(t, "true", r.URL.Query().Get("includeNutrition"))
		_, _ = w.Write([]byte(`{"id":42,"title":"Pancakes","extendedIngredients":[{"name":"flour","amount":1,"unit":"cup"}],"analyzedInstructions":[{"steps":[{"number":1,"step":"Mix."}]}],"nutrition":{"nutrients":[{"name":"Calories","amount":300,"unit":"kcal"}]}}`))
	})

	detail, err := client.RecipeInformation(context.Background(), 42)
	require.NoError(t, err)
	assert.Equal(t, "Pancakes", detail.Title)
	assert.Equal(t, "Mix.", detail.AnalyzedInstructions[0].Steps[0].Step)
	assert.Equal(t, 300.0, detail.Nutrition.Nutrients[0].Amount)
}

func TestErrorStatus(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"message":"daily points limit"}`, http.StatusPaymentRequired)
	})
	_, err := client.SearchRecipes(context.Background(), SearchParams{Query: "x"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUnavailable))
}
