// Package search fills plan slots from an external recipe-search provider.
package search

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"meal-plan-generator/internal/nutrition"
	"meal-plan-generator/internal/recipe"
	"meal-plan-generator/internal/shared"
	"meal-plan-generator/internal/spoonacular"

	"github.com/PuerkitoBio/goquery"
	log "github.com/sirupsen/logrus"
)

// ErrNoCandidates is returned when every query variation, including the generic
// popularity search, produced nothing usable.
var ErrNoCandidates = errors.New("no recipe candidates found")

// Provider is the recipe-search API the adapter depends on.
type Provider interface {
	SearchRecipes(ctx context.Context, params spoonacular.SearchParams) ([]spoonacular.RecipeSummary, error)
	RecipeInformation(ctx context.Context, id int) (*spoonacular.RecipeDetail, error)
}

// Slot is one meal position in a plan.
type Slot struct {
	Day      int
	Position int
	MealType string
}

type Adapter struct {
	provider Provider
	cooldown time.Duration
	pageSize int
}

func NewAdapter(provider Provider, cooldown time.Duration) *Adapter {
	return &Adapter{provider: provider, cooldown: cooldown, pageSize: 20}
}

// Fill assigns a recipe to every slot. used holds external ids already in the plan and
// is updated with every assignment. skip marks candidates to avoid when an alternative
// exists. The returned meals align with slots.
func (a *Adapter) Fill(ctx context.Context, c Criteria, slots []Slot, used map[int]bool, skip func(recipe.Meal) bool) ([]recipe.Meal, error) {
	if len(slots) == 0 {
		return nil, nil
	}
	summaries, err := a.searchCandidates(ctx, c, len(slots))
	if err != nil {
		return nil, err
	}

	limit := min(len(summaries), max(2*len(slots), shared.DefaultBatchSize))
	pool := a.fetchDetails(ctx, summaries[:limit], c)
	if len(pool) == 0 {
		return nil, fmt.Errorf("%w: no candidate survived detail checks", ErrNoCandidates)
	}
	return distribute(pool, slots, used, skip), nil
}

// searchCandidates runs query variations until enough distinct summaries are collected,
// finishing with a popularity-sorted generic search.
func (a *Adapter) searchCandidates(ctx context.Context, c Criteria, needed int) ([]spoonacular.RecipeSummary, error) {
	base := baseParams(c)
	base.Number = a.pageSize

	seen := map[int]bool{}
	var out []spoonacular.RecipeSummary
	var lastErr error

	run := func(params spoonacular.SearchParams) {
		results, err := a.provider.SearchRecipes(ctx, params)
		if err != nil {
			lastErr = err
			log.WithError(err).WithFields(log.Fields{
				"provider": "spoonacular",
				"query":    params.Query,
			}).Warn("recipe search failed")
			return
		}
		for _, r := range results {
			if seen[r.ID] || !allowed(r, c) {
				continue
			}
			seen[r.ID] = true
			out = append(out, r)
		}
	}

	for _, q := range queryVariations(c) {
		params := base
		params.Query = q
		run(params)
		if len(out) >= needed {
			return out, nil
		}
	}

	generic := base
	generic.Sort = "popularity"
	run(generic)

	if len(out) == 0 {
		if lastErr != nil {
			return nil, fmt.Errorf("%w: %v", ErrNoCandidates, lastErr)
		}
		return nil, ErrNoCandidates
	}
	return out, nil
}

// fetchDetails resolves summaries into meals in bounded batches, dropping failures,
// structurally incomplete recipes and any that break the diet or allergy rules.
func (a *Adapter) fetchDetails(ctx context.Context, summaries []spoonacular.RecipeSummary, c Criteria) []candidate {
	results := make([]*candidate, len(summaries))
	err := shared.RunBatched(ctx, len(summaries), shared.DefaultBatchSize, a.cooldown, func(ctx context.Context, i int) {
		detail, err := a.provider.RecipeInformation(ctx, summaries[i].ID)
		if err != nil {
			log.WithError(err).WithField("recipe_id", summaries[i].ID).Warn("recipe detail lookup failed")
			return
		}
		m := MealFromDetail(detail, c.Diets)
		if err := m.Validate(); err != nil {
			return
		}
		if v := recipe.Violations(m, c.Diets, c.Allergies); len(v) > 0 {
			log.WithFields(log.Fields{"recipe_id": detail.ID, "violations": v}).Debug("dropping search result")
			return
		}
		results[i] = &candidate{meal: m, dishTypes: detail.DishTypes}
	})
	if err != nil {
		log.WithError(err).Warn("recipe detail fetch interrupted")
	}

	pool := make([]candidate, 0, len(results))
	for _, r := range results {
		if r != nil {
			pool = append(pool, *r)
		}
	}
	return pool
}

// distribute walks slots position by position, rotating across days, and takes the best
// unused candidate from the slot's bucket, then from the whole pool, before reusing.
func distribute(pool []candidate, slots []Slot, used map[int]bool, skip func(recipe.Meal) bool) []recipe.Meal {
	order := make([]int, len(slots))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(i, j int) bool {
		a, b := slots[order[i]], slots[order[j]]
		if a.Position != b.Position {
			return a.Position < b.Position
		}
		return a.Day < b.Day
	})

	buckets := map[string][]candidate{}
	out := make([]recipe.Meal, len(slots))
	reuse := 0
	for _, idx := range order {
		slot := slots[idx]
		mealType := strings.ToLower(slot.MealType)
		if _, ok := buckets[mealType]; !ok {
			buckets[mealType] = bucket(pool, mealType)
		}

		global := append([]candidate(nil), pool...)
		sortByScore(global, mealType)

		pick, ok := firstUnused(buckets[mealType], used, skip)
		if !ok {
			pick, ok = firstUnused(global, used, skip)
		}
		if !ok {
			pick, ok = firstUnused(buckets[mealType], used, nil)
		}
		if !ok {
			pick, ok = firstUnused(global, used, nil)
		}
		if !ok {
			pick = global[reuse%len(global)]
			reuse++
		}

		used[pick.meal.ExternalID] = true
		m := pick.meal
		m.MealType = slot.MealType
		out[idx] = m
	}
	return out
}

func firstUnused(pool []candidate, used map[int]bool, skip func(recipe.Meal) bool) (candidate, bool) {
	for _, c := range pool {
		if used[c.meal.ExternalID] {
			continue
		}
		if skip != nil && skip(c.meal) {
			continue
		}
		return c, true
	}
	return candidate{}, false
}

// MealFromDetail converts a provider recipe into the canonical meal shape.
func MealFromDetail(d *spoonacular.RecipeDetail, diets []string) recipe.Meal {
	m := recipe.Meal{
		RecipeName:   strings.TrimSpace(d.Title),
		CookingTime:  d.ReadyInMinutes,
		Servings:     max(d.Servings, 1),
		RecipeSource: recipe.SourceSpoonacular,
		ExternalID:   d.ID,
	}

	for _, ing := range d.ExtendedIngredients {
		unit := strings.TrimSpace(ing.Unit)
		if unit == "" {
			unit = "unit"
		}
		qty := ing.Amount
		if qty <= 0 {
			qty = 1
		}
		m.Ingredients = append(m.Ingredients, recipe.Ingredient{Name: ing.Name, Quantity: recipe.Round2(qty), Unit: unit})
	}

	for _, block := range d.AnalyzedInstructions {
		for _, step := range block.Steps {
			if s := strings.TrimSpace(step.Step); s != "" {
				m.Instructions = append(m.Instructions, s)
			}
		}
	}
	if len(m.Instructions) == 0 {
		m.Instructions = FlattenInstructions(d.Instructions)
	}

	nutrients := d.Nutrition.Nutrients
	m.Nutrition = recipe.Nutrition{
		Calories: nutrition.FindNutrient(nutrients, "calories"),
		ProteinG: nutrition.FindNutrient(nutrients, "protein"),
		CarbsG:   nutrition.FindNutrient(nutrients, "carbohydrates"),
		FatG:     nutrition.FindNutrient(nutrients, "fat"),
		FiberG:   nutrition.FindNutrient(nutrients, "fiber"),
		SugarG:   nutrition.FindNutrient(nutrients, "sugar"),
		Verified: true,
	}

	for _, c := range d.Cuisines {
		m.Cuisine = append(m.Cuisine, strings.ToLower(c))
	}
	tags := append([]string{}, d.Diets...)
	tags = append(tags, diets...)
	seen := map[string]bool{}
	for _, t := range tags {
		t = strings.ToLower(strings.TrimSpace(t))
		if t != "" && !seen[t] {
			seen[t] = true
			m.Tags = append(m.Tags, t)
		}
	}
	m.DeriveProfile()
	return m
}

// FlattenInstructions turns an HTML or plain-text instruction blob into steps.
func FlattenInstructions(html string) []string {
	if strings.TrimSpace(html) == "" {
		return nil
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil
	}

	var steps []string
	doc.Find("li").Each(func(i int, s *goquery.Selection) {
		if text := strings.TrimSpace(s.Text()); text != "" {
			steps = append(steps, text)
		}
	})
	if len(steps) > 0 {
		return steps
	}

	doc.Find("p").Each(func(i int, s *goquery.Selection) {
		if text := strings.TrimSpace(s.Text()); text != "" {
			steps = append(steps, text)
		}
	})
	if len(steps) > 0 {
		return steps
	}

	for _, line := range strings.Split(doc.Text(), "\n") {
		if line = strings.TrimSpace(line); line != "" {
			steps = append(steps, line)
		}
	}
	return steps
}
