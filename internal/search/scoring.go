package search

import (
	"sort"
	"strings"

	"meal-plan-generator/internal/recipe"
)

var dishTypesByMeal = map[string][]string{
	"breakfast": {"breakfast", "morning meal", "brunch"},
	"lunch":     {"lunch", "salad", "soup", "main course", "main dish"},
	"dinner":    {"dinner", "main course", "main dish"},
	"snack":     {"snack", "appetizer", "fingerfood", "antipasti", "side dish"},
}

var titleKeywordsByMeal = map[string][]string{
	"breakfast": {"pancake", "oat", "oatmeal", "omelet", "omelette", "egg", "smoothie", "toast", "muffin", "granola", "waffle", "yogurt", "parfait", "scramble", "frittata"},
	"lunch":     {"salad", "sandwich", "wrap", "soup", "bowl", "quesadilla"},
	"dinner":    {"roast", "curry", "stew", "steak", "casserole", "pasta", "stir", "chili", "baked", "lasagna", "risotto"},
	"snack":     {"bite", "dip", "bar", "chip", "hummus", "energy", "trail", "popcorn"},
}

type candidate struct {
	meal      recipe.Meal
	dishTypes []string
}

// ScoreMealType rates how well a recipe suits a meal type from its dish types,
// title keywords, ready time and yield.
func ScoreMealType(title string, dishTypes []string, readyInMinutes, servings int, mealType string) int {
	score := 0
	for _, dt := range dishTypes {
		for _, want := range dishTypesByMeal[mealType] {
			if strings.EqualFold(dt, want) {
				score += 3
				break
			}
		}
	}
	lower := strings.ToLower(title)
	for _, kw := range titleKeywordsByMeal[mealType] {
		if strings.Contains(lower, kw) {
			score += 2
			break
		}
	}
	switch mealType {
	case "breakfast":
		if readyInMinutes > 0 && readyInMinutes <= 20 {
			score++
		}
	case "snack":
		if readyInMinutes > 0 && readyInMinutes <= 15 {
			score++
		}
	case "dinner":
		if readyInMinutes >= 25 {
			score++
		}
		if servings >= 2 {
			score++
		}
	case "lunch":
		if readyInMinutes > 0 && readyInMinutes <= 30 {
			score++
		}
	}
	return score
}

func (c candidate) score(mealType string) int {
	return ScoreMealType(c.meal.RecipeName, c.dishTypes, c.meal.CookingTime, c.meal.Servings, mealType)
}

// bucket returns the candidates suited to mealType, best first.
func bucket(pool []candidate, mealType string) []candidate {
	var out []candidate
	for _, c := range pool {
		if c.score(mealType) > 0 {
			out = append(out, c)
		}
	}
	sortByScore(out, mealType)
	return out
}

func sortByScore(pool []candidate, mealType string) {
	sort.SliceStable(pool, func(i, j int) bool {
		return pool[i].score(mealType) > pool[j].score(mealType)
	})
}
