package recipe

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"unicode"

	"meal-plan-generator/internal/llm"
	"meal-plan-generator/internal/shared"

	"github.com/tidwall/gjson"
)

// ErrMalformedOutput is returned when provider output cannot be turned into a meal.
var ErrMalformedOutput = errors.New("malformed provider output")

const defaultCookingTime = 30

// Defaults fills fields the provider left out.
type Defaults struct {
	MealType       string
	MaxCookingTime int
	Servings       int
	Cuisine        string
	DietaryTags    []string
	Source         string
}

var (
	fencePattern         = regexp.MustCompile("(?s)```[a-zA-Z]*\\s*(.*?)```")
	trailingCommaPattern = regexp.MustCompile(`,\s*([}\]])`)
	leadingNumberPattern = regexp.MustCompile(`^\s*(\d+(?:\.\d+)?)`)
	stepPrefixPattern    = regexp.MustCompile(`^\s*(?:step\s*)?\d+[.):]\s*`)
)

// ExtractJSON pulls the first JSON document out of a provider payload.
func ExtractJSON(out llm.ProviderOutput) (string, error) {
	var raw string
	switch v := out.(type) {
	case llm.Text:
		raw = string(v)
	case llm.ContentBlocks:
		var sb strings.Builder
		for _, b := range v {
			if b.Type == "" || b.Type == "text" {
				sb.WriteString(b.Text)
			}
		}
		raw = sb.String()
	case nil:
		return "", fmt.Errorf("%w: empty output", ErrMalformedOutput)
	default:
		return "", fmt.Errorf("%w: unsupported output %T", ErrMalformedOutput, out)
	}
	return CleanJSON(raw)
}

// CleanJSON strips fences and prose around a JSON document and repairs common defects.
func CleanJSON(raw string) (string, error) {
	s := strings.TrimSpace(raw)
	if m := fencePattern.FindStringSubmatch(s); m != nil {
		s = strings.TrimSpace(m[1])
	}
	if s == "" {
		return "", fmt.Errorf("%w: empty output", ErrMalformedOutput)
	}
	if json.Valid([]byte(s)) && (strings.HasPrefix(s, "{") || strings.HasPrefix(s, "[")) {
		return s, nil
	}

	// A balanced span that does not parse is prose ("[serves 2]"); the search resumes after it.
	// An unbalanced opener swallows the rest of the payload, so the search stops there.
	for start := strings.IndexAny(s, "{["); start >= 0; {
		end := balancedEnd(s, start)
		if end < 0 {
			break
		}
		candidate := s[start:end]
		if json.Valid([]byte(candidate)) {
			return candidate, nil
		}
		if repaired := repairJSON(candidate); json.Valid([]byte(repaired)) {
			return repaired, nil
		}
		next := strings.IndexAny(s[end:], "{[")
		if next < 0 {
			break
		}
		start = end + next
	}

	repaired := repairJSON(s)
	if json.Valid([]byte(repaired)) && (strings.HasPrefix(repaired, "{") || strings.HasPrefix(repaired, "[")) {
		return repaired, nil
	}
	return "", fmt.Errorf("%w: %s", ErrMalformedOutput, shared.Truncate(s, 120))
}

// balancedEnd returns the index just past the object or array opening at start, or -1
// when it never closes or closes with the wrong bracket.
func balancedEnd(s string, start int) int {
	var stack []byte
	inString := false
	escaped := false
	for i := start; i < len(s); i++ {
		c := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			stack = append(stack, '}')
		case '[':
			stack = append(stack, ']')
		case '}', ']':
			if len(stack) == 0 || stack[len(stack)-1] != c {
				return -1
			}
			stack = stack[:len(stack)-1]
			if len(stack) == 0 {
				return i + 1
			}
		}
	}
	return -1
}

// repairJSON removes trailing commas and rewrites single-quoted strings.
func repairJSON(s string) string {
	var sb strings.Builder
	inDouble, inSingle, escaped := false, false, false
	for i := 0; i < len(s); i++ {
		c := s[i]
		if escaped {
			escaped = false
			sb.WriteByte(c)
			continue
		}
		if c == '\\' {
			if inSingle && i+1 < len(s) && s[i+1] == '\'' {
				sb.WriteByte('\'')
				i++
				continue
			}
			escaped = inDouble || inSingle
			sb.WriteByte(c)
			continue
		}
		switch {
		case inDouble:
			if c == '"' {
				inDouble = false
			}
		case inSingle:
			if c == '"' {
				sb.WriteString(`\"`)
				continue
			}
			if c == '\'' && closesSingle(s, i+1) {
				inSingle = false
				sb.WriteByte('"')
				continue
			}
		case c == '"':
			inDouble = true
		case c == '\'':
			inSingle = true
			sb.WriteByte('"')
			continue
		}
		sb.WriteByte(c)
	}
	return trailingCommaPattern.ReplaceAllString(sb.String(), "$1")
}

// closesSingle reports whether a quote at i-1 ends a string rather than being an apostrophe.
func closesSingle(s string, i int) bool {
	for ; i < len(s); i++ {
		if unicode.IsSpace(rune(s[i])) {
			continue
		}
		return strings.ContainsRune(":,}]", rune(s[i]))
	}
	return true
}

// NormalizeMeal converts a single-meal JSON document into a Meal.
func NormalizeMeal(raw string, d Defaults) (Meal, error) {
	if !gjson.Valid(raw) {
		return Meal{}, fmt.Errorf("%w: invalid json", ErrMalformedOutput)
	}
	node := unwrapMeal(gjson.Parse(raw))
	if !node.IsObject() {
		return Meal{}, fmt.Errorf("%w: expected a meal object", ErrMalformedOutput)
	}
	return normalizeNode(node, d), nil
}

// NormalizeMeals converts a multi-meal JSON document into meals in document order.
func NormalizeMeals(raw string, d Defaults) ([]Meal, error) {
	if !gjson.Valid(raw) {
		return nil, fmt.Errorf("%w: invalid json", ErrMalformedOutput)
	}
	var nodes []gjson.Result
	collectMeals(gjson.Parse(raw), &nodes)
	if len(nodes) == 0 {
		return nil, fmt.Errorf("%w: no meals in batch output", ErrMalformedOutput)
	}
	meals := make([]Meal, 0, len(nodes))
	for _, n := range nodes {
		meals = append(meals, normalizeNode(n, d))
	}
	return meals, nil
}

func unwrapMeal(node gjson.Result) gjson.Result {
	if node.IsArray() {
		arr := node.Array()
		if len(arr) == 0 {
			return gjson.Result{}
		}
		return unwrapMeal(arr[0])
	}
	for _, key := range []string{"meal", "recipe"} {
		if v := node.Get(key); v.IsObject() {
			return v
		}
	}
	if v := node.Get("meals"); v.IsArray() {
		return unwrapMeal(v)
	}
	return node
}

func collectMeals(node gjson.Result, out *[]gjson.Result) {
	switch {
	case node.IsArray():
		for _, n := range node.Array() {
			collectMeals(n, out)
		}
	case node.IsObject():
		if meal := node.Get("meal"); meal.IsObject() {
			collectMeals(meal, out)
			return
		}
		if days := node.Get("days"); days.IsArray() {
			collectMeals(days, out)
			return
		}
		if meals := node.Get("meals"); meals.IsArray() {
			collectMeals(meals, out)
			return
		}
		if firstString(node, "recipeName", "name", "title", "recipe_name") != "" {
			*out = append(*out, node)
		}
	}
}

func normalizeNode(node gjson.Result, d Defaults) Meal {
	m := Meal{
		MealType:     d.MealType,
		RecipeName:   strings.TrimSpace(firstString(node, "recipeName", "name", "title", "recipe_name")),
		Ingredients:  readIngredients(firstExisting(node, "ingredients", "ingredientList")),
		Instructions: readInstructions(firstExisting(node, "instructions", "steps", "directions", "method")),
		RecipeSource: d.Source,
	}
	if m.MealType == "" {
		m.MealType = strings.ToLower(firstString(node, "mealType", "meal_type", "type"))
	}

	m.CookingTime = int(readNumber(firstExisting(node, "cookingTime", "cooking_time", "cookTime", "readyInMinutes", "totalTime", "prepTime")))
	if m.CookingTime <= 0 {
		m.CookingTime = defaultCookingTime
		if d.MaxCookingTime > 0 && d.MaxCookingTime < m.CookingTime {
			m.CookingTime = d.MaxCookingTime
		}
	}

	m.Servings = int(readNumber(firstExisting(node, "servings", "portions", "yield")))
	if m.Servings <= 0 {
		m.Servings = d.Servings
	}
	if m.Servings <= 0 {
		m.Servings = 1
	}

	nutrition := firstExisting(node, "nutrition", "nutritionEstimate", "nutrition_estimate", "macros")
	if !nutrition.Exists() {
		nutrition = node
	}
	m.Nutrition = Nutrition{
		Calories:  readNumber(firstExisting(nutrition, "calories", "kcal", "energy")),
		ProteinG:  readNumber(firstExisting(nutrition, "protein_g", "protein", "proteinG", "protein_grams")),
		CarbsG:    readNumber(firstExisting(nutrition, "carbs_g", "carbs", "carbsG", "carbohydrates", "carbohydrates_g")),
		FatG:      readNumber(firstExisting(nutrition, "fat_g", "fat", "fatG", "total_fat")),
		FiberG:    readNumber(firstExisting(nutrition, "fiber_g", "fiber", "fiberG")),
		SugarG:    readNumber(firstExisting(nutrition, "sugar_g", "sugar", "sugarG")),
		Estimated: true,
	}

	m.Cuisine = readStringSet(firstExisting(node, "cuisine", "cuisines"))
	if len(m.Cuisine) == 0 && d.Cuisine != "" {
		m.Cuisine = []string{strings.ToLower(d.Cuisine)}
	}
	m.Tags = mergeSet(readStringSet(firstExisting(node, "tags", "labels")), d.DietaryTags)
	m.DeriveProfile()
	return m
}

func firstExisting(node gjson.Result, keys ...string) gjson.Result {
	for _, k := range keys {
		if v := node.Get(k); v.Exists() && v.Type != gjson.Null {
			return v
		}
	}
	return gjson.Result{}
}

func firstString(node gjson.Result, keys ...string) string {
	for _, k := range keys {
		if v := node.Get(k); v.Type == gjson.String && strings.TrimSpace(v.String()) != "" {
			return v.String()
		}
	}
	return ""
}

// readNumber accepts numbers and strings like "25g" or "30 minutes".
func readNumber(v gjson.Result) float64 {
	switch v.Type {
	case gjson.Number:
		return v.Float()
	case gjson.String:
		if m := leadingNumberPattern.FindStringSubmatch(v.String()); m != nil {
			f, _ := strconv.ParseFloat(m[1], 64)
			return f
		}
	}
	return 0
}

func readIngredients(v gjson.Result) []Ingredient {
	var out []Ingredient
	for _, item := range v.Array() {
		var ing Ingredient
		switch {
		case item.Type == gjson.String:
			ing = ParseIngredientLine(item.String())
		case item.IsObject():
			ing = Ingredient{
				Name:  strings.TrimSpace(firstString(item, "name", "item", "ingredient", "original")),
				Unit:  strings.TrimSpace(firstString(item, "unit", "units", "measure")),
				Notes: strings.TrimSpace(firstString(item, "notes", "note", "preparation")),
			}
			q := firstExisting(item, "quantity", "amount", "qty")
			if q.Type == gjson.String {
				qty, rest := ParseQuantity(q.String())
				ing.Quantity = qty
				if ing.Unit == "" {
					ing.Unit = strings.TrimSpace(rest)
				}
			} else {
				ing.Quantity = q.Float()
			}
		default:
			continue
		}
		if ing.Name == "" {
			continue
		}
		if ing.Unit == "" {
			ing.Unit = "unit"
		}
		if ing.Quantity <= 0 {
			ing.Quantity = 1
		}
		out = append(out, ing)
	}
	return out
}

func readInstructions(v gjson.Result) []string {
	var steps []string
	add := func(s string) {
		s = strings.TrimSpace(stepPrefixPattern.ReplaceAllString(s, ""))
		if s != "" {
			steps = append(steps, s)
		}
	}
	switch {
	case v.IsArray():
		for _, item := range v.Array() {
			if item.IsObject() {
				add(firstString(item, "step", "text", "instruction"))
				continue
			}
			add(item.String())
		}
	case v.Type == gjson.String:
		for _, line := range strings.Split(v.String(), "\n") {
			add(line)
		}
	}
	return steps
}

func readStringSet(v gjson.Result) []string {
	var values []string
	if v.IsArray() {
		for _, item := range v.Array() {
			values = append(values, item.String())
		}
	} else if v.Type == gjson.String {
		values = strings.Split(v.String(), ",")
	}
	return mergeSet(nil, values)
}

// mergeSet appends lower-cased, trimmed values to base, skipping duplicates.
func mergeSet(base []string, values []string) []string {
	seen := make(map[string]bool, len(base)+len(values))
	out := make([]string, 0, len(base)+len(values))
	for _, s := range append(append([]string{}, base...), values...) {
		s = strings.ToLower(strings.TrimSpace(s))
		if s == "" || seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
	}
	return out
}

var unicodeFractions = map[rune]float64{'½': 0.5, '¼': 0.25, '¾': 0.75, '⅓': 1.0 / 3, '⅔': 2.0 / 3, '⅛': 0.125}

// ParseQuantity reads a leading quantity ("2", "1.5", "1/2", "1 1/2", "½") and returns the rest.
func ParseQuantity(s string) (float64, string) {
	fields := strings.Fields(s)
	total := 0.0
	consumed := 0
	for consumed < len(fields) && consumed < 2 {
		v, ok := parseQuantityToken(fields[consumed])
		if !ok {
			break
		}
		total += v
		consumed++
	}
	return total, strings.Join(fields[consumed:], " ")
}

func parseQuantityToken(tok string) (float64, bool) {
	if r := []rune(tok); len(r) == 1 {
		if v, ok := unicodeFractions[r[0]]; ok {
			return v, true
		}
	}
	if num, den, ok := strings.Cut(tok, "/"); ok {
		n, err1 := strconv.ParseFloat(num, 64)
		dv, err2 := strconv.ParseFloat(den, 64)
		if err1 != nil || err2 != nil || dv == 0 {
			return 0, false
		}
		return n / dv, true
	}
	v, err := strconv.ParseFloat(tok, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}

var knownUnits = map[string]string{
	"cup": "cup", "cups": "cup", "tbsp": "tbsp", "tablespoon": "tbsp", "tablespoons": "tbsp",
	"tsp": "tsp", "teaspoon": "tsp", "teaspoons": "tsp", "g": "g", "gram": "g", "grams": "g",
	"kg": "kg", "ml": "ml", "l": "l", "liter": "l", "liters": "l", "oz": "oz", "ounce": "oz",
	"ounces": "oz", "lb": "lb", "lbs": "lb", "pound": "lb", "pounds": "lb", "clove": "clove",
	"cloves": "clove", "slice": "slice", "slices": "slice", "can": "can", "cans": "can",
	"pinch": "pinch", "handful": "handful", "piece": "piece", "pieces": "piece", "bunch": "bunch",
}

// ParseIngredientLine splits "2 cups brown rice, rinsed" into quantity, unit, name and notes.
func ParseIngredientLine(line string) Ingredient {
	qty, rest := ParseQuantity(strings.TrimSpace(line))
	ing := Ingredient{Quantity: qty, Unit: "unit"}
	if fields := strings.Fields(rest); len(fields) > 1 {
		if unit, ok := knownUnits[strings.ToLower(strings.TrimSuffix(fields[0], "."))]; ok {
			ing.Unit = unit
			rest = strings.Join(fields[1:], " ")
		}
	}
	name, notes, _ := strings.Cut(rest, ",")
	ing.Name = strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(name), "of "))
	ing.Notes = strings.TrimSpace(notes)
	if ing.Quantity <= 0 {
		ing.Quantity = 1
	}
	return ing
}

// FormatQuantity renders a quantity with at most two decimals and no trailing zeros.
func FormatQuantity(q float64) string {
	return strconv.FormatFloat(Round2(q), 'f', -1, 64)
}

// Round2 rounds to two decimal places.
func Round2(v float64) float64 {
	return math.Round(v*100) / 100
}
