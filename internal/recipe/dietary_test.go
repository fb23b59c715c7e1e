package recipe

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAllergenKeywords(t *testing.T) {
	assert.Equal(t, []string{"groundnut", "peanut"}, AllergenKeywords([]string{"Peanuts"}))
	assert.Contains(t, AllergenKeywords([]string{"tree nuts"}), "cashew")
	assert.Equal(t, []string{"kiwi"}, AllergenKeywords([]string{"Kiwis"}))
}

func TestViolations(t *testing.T) {
	meal := Meal{
		RecipeName: "Satay Noodles",
		Ingredients: []Ingredient{
			{Name: "rice noodles"},
			{Name: "peanut butter"},
			{Name: "coconut milk"},
			{Name: "eggplant"},
		},
	}

	t.Run("Allergen", func(t *testing.T) {
		v := Violations(meal, nil, []string{"peanuts"})
		assert.Len(t, v, 1)
		assert.Contains(t, v[0], "peanut butter")
	})

	t.Run("VeganAllowsPlantSubstitutes", func(t *testing.T) {
		assert.Empty(t, Violations(meal, []string{"vegan"}, nil))
	})

	t.Run("VeganRejectsAnimalProducts", func(t *testing.T) {
		m := Meal{RecipeName: "Omelette", Ingredients: []Ingredient{{Name: "eggs"}, {Name: "butter"}}}
		assert.Len(t, Violations(m, []string{"Vegan"}, nil), 2)
	})

	t.Run("VegetarianRejectsMeatInName", func(t *testing.T) {
		m := Meal{RecipeName: "Bacon Pancakes", Ingredients: []Ingredient{{Name: "flour"}}}
		assert.NotEmpty(t, Violations(m, []string{"vegetarian"}, nil))
		assert.Empty(t, Violations(m, []string{"keto"}, nil))
	})
}

func TestDeriveProfile(t *testing.T) {
	m := Meal{Ingredients: []Ingredient{{Name: "olive oil"}, {Name: "salmon fillets"}, {Name: "sweet potatoes"}}}
	m.DeriveProfile()
	assert.Equal(t, "salmon", m.PrimaryProtein)
	assert.Equal(t, "potato", m.BaseCarb)

	empty := Meal{Ingredients: []Ingredient{{Name: "kale"}}}
	empty.DeriveProfile()
	assert.Equal(t, DefaultProtein, empty.PrimaryProtein)
	assert.Equal(t, DefaultCarb, empty.BaseCarb)
}
