package recipe

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateFromTemplate(t *testing.T) {
	t.Run("AlwaysStructurallyValid", func(t *testing.T) {
		for _, mealType := range []string{"breakfast", "lunch", "dinner", "snack", "brunch"} {
			for seq := 0; seq < 8; seq++ {
				m := GenerateFromTemplate(TemplateSlot{MealType: mealType, Sequence: seq}, nil)
				require.NoError(t, m.Validate(), "%s #%d", mealType, seq)
				assert.Equal(t, SourceOpenAIFallback, m.RecipeSource)
				assert.True(t, m.Nutrition.Estimated)
			}
		}
	})

	t.Run("HonoursDietAndAllergies", func(t *testing.T) {
		slot := TemplateSlot{MealType: "lunch", Diets: []string{"vegan"}, Allergies: []string{"peanuts", "soy"}}
		for seq := 0; seq < 6; seq++ {
			slot.Sequence = seq
			m := GenerateFromTemplate(slot, nil)
			assert.Empty(t, Violations(m, slot.Diets, slot.Allergies), m.RecipeName)
			assert.Contains(t, m.Tags, "vegan")
		}
	})

	t.Run("Deterministic", func(t *testing.T) {
		slot := TemplateSlot{MealType: "dinner", Sequence: 4, Servings: 2}
		assert.Equal(t, GenerateFromTemplate(slot, nil), GenerateFromTemplate(slot, nil))
	})

	t.Run("SkipsRejectedCandidates", func(t *testing.T) {
		first := GenerateFromTemplate(TemplateSlot{MealType: "dinner"}, nil)
		next := GenerateFromTemplate(TemplateSlot{MealType: "dinner"}, func(m Meal) bool {
			return m.RecipeName == first.RecipeName
		})
		assert.NotEqual(t, first.RecipeName, next.RecipeName)
	})

	t.Run("ScalesQuantitiesAndCapsTime", func(t *testing.T) {
		one := GenerateFromTemplate(TemplateSlot{MealType: "breakfast"}, nil)
		two := GenerateFromTemplate(TemplateSlot{MealType: "breakfast", Servings: 2, MaxCookingTime: 5}, nil)
		assert.LessOrEqual(t, two.CookingTime, 5)
		assert.Equal(t, 2, two.Servings)
		assert.NotEqual(t, one.RecipeName, "")
	})

	t.Run("LastResortStripsForbiddenIngredients", func(t *testing.T) {
		slot := TemplateSlot{MealType: "snack", Allergies: []string{"hummus", "berries", "chickpeas", "apple", "edamame"}}
		m := GenerateFromTemplate(slot, nil)
		require.NoError(t, m.Validate())
		assert.Empty(t, Violations(m, nil, slot.Allergies))
	})
}
