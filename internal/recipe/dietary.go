package recipe

import (
	"fmt"
	"sort"
	"strings"
)

var allergenKeywords = map[string][]string{
	"peanut":    {"peanut", "groundnut"},
	"tree nut":  {"almond", "cashew", "walnut", "pecan", "pistachio", "hazelnut", "macadamia"},
	"nut":       {"peanut", "groundnut", "almond", "cashew", "walnut", "pecan", "pistachio", "hazelnut", "macadamia"},
	"dairy":     {"milk", "cheese", "butter", "cream", "yogurt", "yoghurt", "ghee", "whey", "parmesan", "mozzarella", "feta", "cheddar"},
	"milk":      {"milk", "cheese", "butter", "cream", "yogurt", "yoghurt", "ghee", "whey", "parmesan", "mozzarella", "feta", "cheddar"},
	"lactose":   {"milk", "cheese", "cream", "yogurt", "yoghurt", "whey"},
	"gluten":    {"wheat", "flour", "bread", "pasta", "spaghetti", "couscous", "barley", "rye", "seitan", "soy sauce", "breadcrumb", "tortilla"},
	"wheat":     {"wheat", "flour", "bread", "pasta", "spaghetti", "couscous", "seitan", "breadcrumb"},
	"shellfish": {"shrimp", "prawn", "crab", "lobster", "clam", "mussel", "oyster", "scallop"},
	"fish":      {"fish", "salmon", "tuna", "cod", "tilapia", "anchovy", "sardine", "trout", "halibut", "mackerel"},
	"egg":       {"egg", "mayonnaise", "mayo"},
	"soy":       {"soy", "soya", "tofu", "tempeh", "edamame", "miso"},
	"sesame":    {"sesame", "tahini"},
}

var meatKeywords = []string{
	"chicken", "turkey", "beef", "pork", "bacon", "ham", "sausage", "lamb", "steak", "prosciutto",
	"salami", "pepperoni", "veal", "duck", "venison", "chorizo", "mutton", "brisket",
}

var seafoodKeywords = []string{
	"fish", "salmon", "tuna", "cod", "tilapia", "shrimp", "prawn", "crab", "lobster", "anchovy",
	"sardine", "trout", "clam", "mussel", "oyster", "scallop", "halibut", "mackerel",
}

var animalProductKeywords = []string{
	"egg", "milk", "cheese", "butter", "cream", "yogurt", "yoghurt", "honey", "ghee", "whey",
	"gelatin", "mayonnaise", "parmesan", "mozzarella", "feta", "cheddar",
}

// normalizeAllergy maps free-form allergy names onto the keyword table keys.
func normalizeAllergy(allergy string) string {
	a := strings.ToLower(strings.TrimSpace(allergy))
	a = strings.TrimSuffix(a, " allergy")
	switch a {
	case "tree nuts", "treenuts", "tree-nuts":
		return "tree nut"
	case "eggs":
		return "egg"
	case "nuts":
		return "nut"
	}
	if strings.HasSuffix(a, "s") && !strings.HasSuffix(a, "ss") {
		a = strings.TrimSuffix(a, "s")
	}
	return a
}

// AllergenKeywords expands allergy names into ingredient keywords.
func AllergenKeywords(allergies []string) []string {
	seen := map[string]bool{}
	var out []string
	for _, a := range allergies {
		key := normalizeAllergy(a)
		if key == "" {
			continue
		}
		kws, ok := allergenKeywords[key]
		if !ok {
			kws = []string{key}
		}
		for _, kw := range kws {
			if !seen[kw] {
				seen[kw] = true
				out = append(out, kw)
			}
		}
	}
	sort.Strings(out)
	return out
}

// ForbiddenKeywords returns the ingredient keywords excluded by the given diets.
func ForbiddenKeywords(diets []string) []string {
	seen := map[string]bool{}
	var out []string
	add := func(kws []string) {
		for _, kw := range kws {
			if !seen[kw] {
				seen[kw] = true
				out = append(out, kw)
			}
		}
	}
	for _, d := range diets {
		switch strings.ToLower(strings.TrimSpace(d)) {
		case "vegan", "plant-based", "plant based":
			add(meatKeywords)
			add(seafoodKeywords)
			add(animalProductKeywords)
		case "vegetarian":
			add(meatKeywords)
			add(seafoodKeywords)
		case "pescatarian", "pescetarian":
			add(meatKeywords)
		case "gluten-free", "gluten free":
			add(allergenKeywords["gluten"])
		case "dairy-free", "dairy free":
			add(allergenKeywords["dairy"])
		}
	}
	sort.Strings(out)
	return out
}

// Violations lists the forbidden keywords found in the meal's name or ingredients.
func Violations(m Meal, diets, allergies []string) []string {
	var out []string
	check := func(kind string, keywords []string) {
		if len(keywords) == 0 {
			return
		}
		if kw, ok := matchForbidden(m.RecipeName, keywords); ok {
			out = append(out, fmt.Sprintf("%s %q in recipe name", kind, kw))
		}
		for _, ing := range m.Ingredients {
			if kw, ok := matchForbidden(ing.Name, keywords); ok {
				out = append(out, fmt.Sprintf("%s %q in ingredient %q", kind, kw, ing.Name))
			}
		}
	}
	check("allergen", AllergenKeywords(allergies))
	check("diet", ForbiddenKeywords(diets))
	return out
}

// StripIngredients removes every ingredient that names one of the keywords.
func StripIngredients(ingredients []Ingredient, keywords []string) []Ingredient {
	out := make([]Ingredient, 0, len(ingredients))
	for _, ing := range ingredients {
		if _, ok := matchForbidden(ing.Name, keywords); !ok {
			out = append(out, ing)
		}
	}
	return out
}

var dairyWords = map[string]bool{"milk": true, "butter": true, "cream": true, "cheese": true, "yogurt": true, "yoghurt": true, "mayonnaise": true, "mayo": true}

var plantQualifiers = []string{"vegan", "coconut", "almond", "oat", "soy", "rice", "cashew", "plant", "peanut", "nut", "non-dairy", "dairy-free"}

// matchForbidden is firstWordMatch that lets plant-based dairy substitutes through.
func matchForbidden(text string, keywords []string) (string, bool) {
	lower := strings.ToLower(text)
	for _, kw := range keywords {
		if !containsAnyWord(text, []string{kw}) {
			continue
		}
		if dairyWords[kw] && hasPlantQualifier(lower) {
			continue
		}
		return kw, true
	}
	return "", false
}

func hasPlantQualifier(lower string) bool {
	for _, q := range plantQualifiers {
		if strings.Contains(q, "-") {
			if strings.Contains(lower, q) {
				return true
			}
			continue
		}
		if containsAnyWord(lower, []string{q}) {
			return true
		}
	}
	return false
}
