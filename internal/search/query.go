package search

import (
	"sort"
	"strings"

	"meal-plan-generator/internal/recipe"
	"meal-plan-generator/internal/spoonacular"
)

// Criteria is the part of a plan request the adapter searches with.
type Criteria struct {
	Likes          string
	Dislikes       string
	Cuisine        string
	Goal           string
	CookingMethod  string
	BudgetLevel    string
	Diets          []string
	Allergies      []string
	MaxCookingTime int
	Servings       int
}

var likedProteins = []string{
	"chicken", "beef", "pork", "turkey", "lamb", "salmon", "tuna", "shrimp", "fish",
	"tofu", "tempeh", "lentils", "chickpeas", "beans", "eggs",
}

type cuisineMapping struct {
	filter  string
	keyword string
}

var cuisineMap = map[string]cuisineMapping{
	"italian":        {"Italian", "pasta"},
	"mexican":        {"Mexican", "tacos"},
	"asian":          {"Asian", "stir fry"},
	"chinese":        {"Chinese", "stir fry"},
	"japanese":       {"Japanese", "teriyaki"},
	"korean":         {"Korean", "bibimbap"},
	"thai":           {"Thai", "curry"},
	"indian":         {"Indian", "curry"},
	"mediterranean":  {"Mediterranean", "mediterranean"},
	"greek":          {"Greek", "greek"},
	"middle eastern": {"Middle Eastern", "shawarma"},
	"french":         {"French", "french"},
	"american":       {"American", ""},
	"caribbean":      {"Caribbean", "jerk"},
	"latin american": {"Latin American", ""},
}

var goalMap = map[string]string{
	"weight_loss": "low calorie healthy",
	"muscle_gain": "high protein",
	"maintenance": "balanced",
}

var cookingMethodMap = map[string]string{
	"grill":       "grilled",
	"grilled":     "grilled",
	"bake":        "baked",
	"baked":       "baked",
	"oven":        "baked",
	"slow cooker": "slow cooker",
	"crockpot":    "slow cooker",
	"instant pot": "instant pot",
	"air fryer":   "air fryer",
	"one pot":     "one pot",
	"sheet pan":   "sheet pan",
	"stir fry":    "stir fry",
	"no cook":     "no cook",
}

var dietMap = map[string]string{
	"vegan":       "vegan",
	"vegetarian":  "vegetarian",
	"gluten-free": "gluten free",
	"gluten free": "gluten free",
	"keto":        "ketogenic",
	"ketogenic":   "ketogenic",
	"pescatarian": "pescetarian",
	"pescetarian": "pescetarian",
	"paleo":       "paleo",
	"whole30":     "whole30",
}

var intoleranceMap = map[string]string{
	"peanut": "peanut", "peanuts": "peanut", "tree nut": "tree nut", "tree nuts": "tree nut",
	"nuts": "tree nut", "dairy": "dairy", "milk": "dairy", "lactose": "dairy", "egg": "egg",
	"eggs": "egg", "gluten": "gluten", "wheat": "wheat", "shellfish": "shellfish",
	"fish": "seafood", "seafood": "seafood", "soy": "soy", "sesame": "sesame", "sulfite": "sulfite",
}

// Price ceilings per serving, in US cents, by budget level. Zero means no ceiling.
var priceCeilings = map[string]float64{
	"low":    250,
	"medium": 500,
	"high":   0,
}

func normalizeKey(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// proteinsFromLikes returns the proteins named in free-text likes, in table order.
func proteinsFromLikes(likes string) []string {
	var out []string
	for _, p := range likedProteins {
		if recipe.ContainsWord(likes, strings.TrimSuffix(p, "s")) {
			out = append(out, p)
		}
	}
	return out
}

func goalKeyword(goal string) string {
	key := strings.NewReplacer(" ", "_", "-", "_").Replace(normalizeKey(goal))
	switch key {
	case "lose_weight", "weightloss":
		key = "weight_loss"
	case "gain_muscle", "build_muscle":
		key = "muscle_gain"
	}
	return goalMap[key]
}

func cookingMethodKeyword(method string) string {
	return cookingMethodMap[normalizeKey(strings.ReplaceAll(method, "-", " "))]
}

// BuildQuery composes free-text search keywords from the criteria.
func BuildQuery(c Criteria) string {
	var words []string
	words = append(words, proteinsFromLikes(c.Likes)...)
	if m, ok := cuisineMap[normalizeKey(c.Cuisine)]; ok && m.keyword != "" {
		words = append(words, m.keyword)
	}
	if g := goalKeyword(c.Goal); g != "" {
		words = append(words, g)
	}
	if m := cookingMethodKeyword(c.CookingMethod); m != "" {
		words = append(words, m)
	}
	return strings.Join(dedupe(words), " ")
}

// queryVariations returns progressively looser non-empty queries.
func queryVariations(c Criteria) []string {
	proteins := strings.Join(proteinsFromLikes(c.Likes), " ")
	var cuisine string
	if m, ok := cuisineMap[normalizeKey(c.Cuisine)]; ok {
		cuisine = m.keyword
	}
	var out []string
	for _, q := range dedupe([]string{BuildQuery(c), proteins, cuisine, goalKeyword(c.Goal)}) {
		if q != "" {
			out = append(out, q)
		}
	}
	return out
}

// baseParams builds the hard filters shared by every query variation.
func baseParams(c Criteria) spoonacular.SearchParams {
	p := spoonacular.SearchParams{MaxReadyTime: c.MaxCookingTime}
	if m, ok := cuisineMap[normalizeKey(c.Cuisine)]; ok {
		p.Cuisine = m.filter
	}

	var diets []string
	for _, d := range c.Diets {
		if v, ok := dietMap[normalizeKey(d)]; ok {
			diets = append(diets, v)
		}
	}
	p.Diet = strings.Join(dedupe(diets), ",")

	var intolerances []string
	for _, a := range c.Allergies {
		if v, ok := intoleranceMap[normalizeKey(a)]; ok {
			intolerances = append(intolerances, v)
		}
	}
	p.Intolerances = dedupe(intolerances)

	var exclude []string
	for _, d := range strings.Split(c.Dislikes, ",") {
		if d = normalizeKey(d); d != "" {
			exclude = append(exclude, d)
		}
	}
	exclude = append(exclude, recipe.AllergenKeywords(c.Allergies)...)
	p.ExcludeIngredients = dedupe(exclude)
	sort.Strings(p.ExcludeIngredients)
	return p
}

func priceCeiling(budget string) float64 {
	return priceCeilings[normalizeKey(budget)]
}

// allowed applies the post-filters a search provider cannot be trusted with.
func allowed(s spoonacular.RecipeSummary, c Criteria) bool {
	if ceiling := priceCeiling(c.BudgetLevel); ceiling > 0 && s.PricePerServing > ceiling {
		return false
	}
	return len(recipe.Violations(recipe.Meal{RecipeName: s.Title}, c.Diets, c.Allergies)) == 0
}

func dedupe(values []string) []string {
	seen := map[string]bool{}
	out := make([]string, 0, len(values))
	for _, v := range values {
		if seen[v] {
			continue
		}
		seen[v] = true
		out = append(out, v)
	}
	return out
}
