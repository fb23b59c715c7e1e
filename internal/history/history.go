package history

import (
	"fmt"
	"strings"
	"time"

	"meal-plan-generator/internal/recipe"
)

const (
	DefaultLookbackDays = 14
	DefaultPlanLimit    = 5

	ProteinWindow         = 3 * 24 * time.Hour
	CarbWindow            = 5 * 24 * time.Hour
	CuisineWindow         = 7 * 24 * time.Hour
	CuisineMaxOccurrences = 2
)

// Entry is one previously planned meal.
type Entry struct {
	Title          string
	Ingredients    []string
	Cuisine        []string
	DateUsed       time.Time
	PrimaryProtein string
	BaseCarb       string
}

// FromMeals builds history entries for the meals of a plan created at created.
func FromMeals(created time.Time, meals []recipe.Meal) []Entry {
	entries := make([]Entry, 0, len(meals))
	for _, m := range meals {
		names := make([]string, 0, len(m.Ingredients))
		for _, ing := range m.Ingredients {
			names = append(names, ing.Name)
		}
		protein, carb := m.PrimaryProtein, m.BaseCarb
		if protein == "" && carb == "" {
			m.DeriveProfile()
			protein, carb = m.PrimaryProtein, m.BaseCarb
		}
		entries = append(entries, Entry{
			Title:          m.RecipeName,
			Ingredients:    names,
			Cuisine:        m.Cuisine,
			DateUsed:       created,
			PrimaryProtein: protein,
			BaseCarb:       carb,
		})
	}
	return entries
}

// Titles returns the distinct titles in the history.
func Titles(entries []Entry) []string {
	seen := map[string]bool{}
	var out []string
	for _, e := range entries {
		key := strings.ToLower(strings.TrimSpace(e.Title))
		if key == "" || seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, e.Title)
	}
	return out
}

// Filter applies the recency rules to candidate meals.
type Filter struct {
	Now func() time.Time
}

func NewFilter() *Filter {
	return &Filter{Now: time.Now}
}

// Exclusion explains why a candidate was rejected.
type Exclusion struct {
	Rule   string
	Detail string
}

func (e Exclusion) String() string {
	return fmt.Sprintf("%s: %s", e.Rule, e.Detail)
}

// Check returns the first rule the candidate breaks against the history, if any.
// The default protein and carb labels never count as repeats.
func (f *Filter) Check(candidate recipe.Meal, entries []Entry) (Exclusion, bool) {
	now := f.Now()
	within := func(e Entry, window time.Duration) bool {
		age := now.Sub(e.DateUsed)
		return age >= 0 && age <= window
	}

	if p := candidate.PrimaryProtein; p != "" && p != recipe.DefaultProtein {
		for _, e := range entries {
			if e.PrimaryProtein == p && within(e, ProteinWindow) {
				return Exclusion{Rule: "protein", Detail: fmt.Sprintf("%s used by %q on %s", p, e.Title, e.DateUsed.Format(time.DateOnly))}, true
			}
		}
	}

	if c := candidate.BaseCarb; c != "" && c != recipe.DefaultCarb {
		for _, e := range entries {
			if e.BaseCarb == c && within(e, CarbWindow) {
				return Exclusion{Rule: "carb", Detail: fmt.Sprintf("%s used by %q on %s", c, e.Title, e.DateUsed.Format(time.DateOnly))}, true
			}
		}
	}

	for _, cuisine := range candidate.Cuisine {
		count := 0
		for _, e := range entries {
			if within(e, CuisineWindow) && containsFold(e.Cuisine, cuisine) {
				count++
			}
		}
		if count >= CuisineMaxOccurrences {
			return Exclusion{Rule: "cuisine", Detail: fmt.Sprintf("%s used %d times in 7 days", cuisine, count)}, true
		}
	}

	return Exclusion{}, false
}

// Excluded reports whether any rule rejects the candidate.
func (f *Filter) Excluded(candidate recipe.Meal, entries []Entry) bool {
	_, excluded := f.Check(candidate, entries)
	return excluded
}

func containsFold(values []string, s string) bool {
	for _, v := range values {
		if strings.EqualFold(v, s) {
			return true
		}
	}
	return false
}
