package recipe

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

// Recipe sources recorded on every meal.
const (
	SourceHybrid         = "hybrid"
	SourceHybridBatch    = "hybrid-batch"
	SourceOpenAI         = "openai"
	SourceOpenAIFallback = "openai-fallback"
	SourceSpoonacular    = "spoonacular"
)

const (
	DefaultProtein = "vegetarian"
	DefaultCarb    = "none"
)

// Meal is the canonical recipe shape produced by every generation path.
type Meal struct {
	MealType       string              `json:"mealType"`
	RecipeName     string              `json:"recipeName"`
	Ingredients    []Ingredient        `json:"ingredients"`
	CookingTime    int                 `json:"cookingTime"`
	Servings       int                 `json:"servings"`
	Instructions   []string            `json:"instructions"`
	Nutrition      Nutrition           `json:"nutrition"`
	RecipeSource   string              `json:"recipeSource"`
	Cuisine        []string            `json:"cuisine,omitempty"`
	Tags           []string            `json:"tags,omitempty"`
	PrimaryProtein string              `json:"primaryProtein"`
	BaseCarb       string              `json:"baseCarb"`
	ExternalID     int                 `json:"externalId,omitempty"`
	Validation     *ValidationSnapshot `json:"validation,omitempty"`
}

type Ingredient struct {
	Name     string  `json:"name"`
	Quantity float64 `json:"quantity"`
	Unit     string  `json:"unit"`
	Notes    string  `json:"notes,omitempty"`
}

// Nutrition is a per-serving macro estimate.
type Nutrition struct {
	Calories  float64 `json:"calories"`
	ProteinG  float64 `json:"protein_g"`
	CarbsG    float64 `json:"carbs_g"`
	FatG      float64 `json:"fat_g"`
	FiberG    float64 `json:"fiber_g,omitempty"`
	SugarG    float64 `json:"sugar_g,omitempty"`
	Estimated bool    `json:"estimated"`
	Verified  bool    `json:"verified"`
}

// Macros holds the four macros compared during validation.
type Macros struct {
	Calories float64 `json:"calories"`
	ProteinG float64 `json:"protein_g"`
	CarbsG   float64 `json:"carbs_g"`
	FatG     float64 `json:"fat_g"`
}

// Deviations are per-macro percentage differences.
type Deviations struct {
	Calories float64 `json:"calories"`
	Protein  float64 `json:"protein"`
	Carbs    float64 `json:"carbs"`
	Fat      float64 `json:"fat"`
}

// ValidationSnapshot records the outcome of checking a meal against measured nutrition.
type ValidationSnapshot struct {
	Estimated    Macros     `json:"estimated"`
	Actual       Macros     `json:"actual"`
	Deviations   Deviations `json:"deviations"`
	MaxDeviation float64    `json:"maxDeviation"`
	IsValid      bool       `json:"isValid"`
	Reconciled   bool       `json:"reconciled,omitempty"`
	Discrepancy  bool       `json:"discrepancy,omitempty"`
}

// Macros returns the macro part of the estimate.
func (n Nutrition) Macros() Macros {
	return Macros{Calories: n.Calories, ProteinG: n.ProteinG, CarbsG: n.CarbsG, FatG: n.FatG}
}

// Validate reports whether the meal is structurally usable.
func (m Meal) Validate() error {
	if utf8.RuneCountInString(strings.TrimSpace(m.RecipeName)) < 3 {
		return fmt.Errorf("%w: recipe name %q too short", ErrMalformedOutput, m.RecipeName)
	}
	if len(m.Ingredients) == 0 {
		return fmt.Errorf("%w: no ingredients", ErrMalformedOutput)
	}
	if len(m.Instructions) == 0 {
		return fmt.Errorf("%w: no instructions", ErrMalformedOutput)
	}
	if m.Nutrition.Calories <= 0 {
		return fmt.Errorf("%w: missing calorie estimate", ErrMalformedOutput)
	}
	return nil
}

// IngredientLines renders ingredients as "quantity unit name" strings.
func (m Meal) IngredientLines() []string {
	lines := make([]string, 0, len(m.Ingredients))
	for _, ing := range m.Ingredients {
		lines = append(lines, ing.String())
	}
	return lines
}

func (i Ingredient) String() string {
	parts := make([]string, 0, 3)
	if i.Quantity > 0 {
		parts = append(parts, FormatQuantity(i.Quantity))
	}
	if i.Unit != "" && i.Unit != "unit" {
		parts = append(parts, i.Unit)
	}
	parts = append(parts, i.Name)
	return strings.Join(parts, " ")
}

// DeriveProfile fills PrimaryProtein and BaseCarb from the ingredient names.
func (m *Meal) DeriveProfile() {
	m.PrimaryProtein = matchTable(m.Ingredients, proteinTable, DefaultProtein)
	m.BaseCarb = matchTable(m.Ingredients, carbTable, DefaultCarb)
}

type keywordGroup struct {
	label    string
	keywords []string
}

var proteinTable = []keywordGroup{
	{"chicken", []string{"chicken"}},
	{"turkey", []string{"turkey"}},
	{"beef", []string{"beef", "steak", "brisket"}},
	{"pork", []string{"pork", "bacon", "ham", "sausage", "prosciutto"}},
	{"lamb", []string{"lamb", "mutton"}},
	{"salmon", []string{"salmon"}},
	{"tuna", []string{"tuna"}},
	{"shrimp", []string{"shrimp", "prawn"}},
	{"fish", []string{"fish", "cod", "tilapia", "halibut", "trout", "sardine", "mackerel"}},
	{"tofu", []string{"tofu"}},
	{"tempeh", []string{"tempeh", "seitan"}},
	{"egg", []string{"egg"}},
	{"lentil", []string{"lentil"}},
	{"chickpea", []string{"chickpea", "garbanzo"}},
	{"beans", []string{"bean"}},
}

var carbTable = []keywordGroup{
	{"rice", []string{"rice"}},
	{"pasta", []string{"pasta", "spaghetti", "penne", "macaroni", "linguine", "fettuccine"}},
	{"noodle", []string{"noodle", "ramen", "udon", "soba"}},
	{"quinoa", []string{"quinoa"}},
	{"potato", []string{"potato"}},
	{"bread", []string{"bread", "toast", "bun", "pita", "baguette"}},
	{"tortilla", []string{"tortilla", "wrap"}},
	{"couscous", []string{"couscous"}},
	{"oats", []string{"oat", "oatmeal", "granola"}},
	{"barley", []string{"barley"}},
}

// matchTable returns the label of the first ingredient that names a table keyword.
func matchTable(ingredients []Ingredient, table []keywordGroup, def string) string {
	for _, ing := range ingredients {
		for _, group := range table {
			if containsAnyWord(ing.Name, group.keywords) {
				return group.label
			}
		}
	}
	return def
}

// containsAnyWord matches keywords against whole words, accepting simple plurals.
// ContainsWord reports whether text names keyword as whole words. A plural ending on the
// keyword's last word still matches.
func ContainsWord(text, keyword string) bool {
	return containsAnyWord(text, []string{keyword})
}

func containsAnyWord(text string, keywords []string) bool {
	_, ok := firstWordMatch(text, keywords)
	return ok
}

func firstWordMatch(text string, keywords []string) (string, bool) {
	words := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !(r >= 'a' && r <= 'z')
	})
	for _, kw := range keywords {
		kwWords := strings.Fields(kw)
		for i := range words {
			if matchesAt(words, i, kwWords) {
				return kw, true
			}
		}
	}
	return "", false
}

func matchesAt(words []string, i int, kwWords []string) bool {
	if len(kwWords) == 0 || i+len(kwWords) > len(words) {
		return false
	}
	for j, kw := range kwWords {
		w := words[i+j]
		if j < len(kwWords)-1 {
			if w != kw {
				return false
			}
			continue
		}
		if w != kw && w != kw+"s" && w != kw+"es" {
			return false
		}
	}
	return true
}
