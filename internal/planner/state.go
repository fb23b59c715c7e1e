package planner

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"meal-plan-generator/internal/history"
	"meal-plan-generator/internal/llm"
	"meal-plan-generator/internal/quota"
	"meal-plan-generator/internal/recipe"
	"meal-plan-generator/internal/shared"
)

var errCandidateRejected = errors.New("candidate rejected")

// Attempt outcomes recorded on AgentMeta.
const (
	OutcomeSuccess   = "success"
	OutcomeTimeout   = "timeout"
	OutcomeTransport = "transport_error"
	OutcomeMalformed = "malformed"
	OutcomeRejected  = "rejected"
	OutcomeError     = "error"
)

type slot struct {
	day      int
	pos      int
	mealType string
}

// planState is owned by a single GeneratePlan or SwapMeal call.
type planState struct {
	req        PlanRequest
	profile    quota.TierProfile
	mealTypes  []string
	meals      [][]recipe.Meal
	filled     [][]bool
	history    []history.Entry
	avoid      []string
	exclusions []string
	titles     map[string]bool
	used       map[int]bool
	metas      []shared.AgentMeta
}

func newPlanState(req PlanRequest, profile quota.TierProfile) *planState {
	s := &planState{
		req:        req,
		profile:    profile,
		mealTypes:  MealTypes(req.MealsPerDay),
		meals:      make([][]recipe.Meal, req.DaysCount),
		filled:     make([][]bool, req.DaysCount),
		exclusions: recipe.AllergenKeywords(req.Allergies),
		titles:     map[string]bool{},
		used:       map[int]bool{},
	}
	for d := range s.meals {
		s.meals[d] = make([]recipe.Meal, req.MealsPerDay)
		s.filled[d] = make([]bool, req.MealsPerDay)
	}
	return s
}

// stateFromPlan rebuilds the state of an existing plan with one slot opened for a swap.
func stateFromPlan(plan *Plan, profile quota.TierProfile, dayIndex, position int) *planState {
	s := newPlanState(plan.Request, profile)
	for d, day := range plan.Days {
		if d >= len(s.meals) {
			break
		}
		for i, m := range day.Meals {
			if i >= len(s.meals[d]) {
				break
			}
			s.meals[d][i] = m
			s.markUsed(m)
			s.filled[d][i] = !(d == dayIndex-1 && i == position)
		}
	}
	return s
}

func (s *planState) defaults(mealType, source string) recipe.Defaults {
	return recipe.Defaults{
		MealType:       mealType,
		MaxCookingTime: s.req.MaxCookingTime,
		Servings:       s.req.Portions,
		Cuisine:        s.req.Cuisine,
		DietaryTags:    s.req.DietaryPreferences,
		Source:         source,
	}
}

// open lists unfilled slots, day-major.
func (s *planState) open() []slot {
	var out []slot
	for d := range s.meals {
		for i := range s.meals[d] {
			if !s.filled[d][i] {
				out = append(out, slot{day: d, pos: i, mealType: s.mealTypes[i]})
			}
		}
	}
	return out
}

func (s *planState) stillOpen(slots []slot) []slot {
	var out []slot
	for _, sl := range slots {
		if !s.filled[sl.day][sl.pos] {
			out = append(out, sl)
		}
	}
	return out
}

func (s *planState) place(sl slot, m recipe.Meal) {
	m.MealType = sl.mealType
	s.meals[sl.day][sl.pos] = m
	s.filled[sl.day][sl.pos] = true
	s.markUsed(m)
}

func (s *planState) markUsed(m recipe.Meal) {
	if key := titleKey(m.RecipeName); key != "" {
		s.titles[key] = true
	}
	if m.ExternalID != 0 {
		s.used[m.ExternalID] = true
	}
}

func (s *planState) hasTitle(name string) bool {
	return s.titles[titleKey(name)]
}

// avoidList is the "do not repeat" list: history titles followed by titles already planned.
func (s *planState) avoidList() []string {
	out := append([]string(nil), s.avoid...)
	for d := range s.meals {
		for i, m := range s.meals[d] {
			if s.filled[d][i] && m.RecipeName != "" {
				out = append(out, m.RecipeName)
			}
		}
	}
	return out
}

// targets returns the meals nutrition validation should check.
func (s *planState) targets() []*recipe.Meal {
	var out []*recipe.Meal
	for d := range s.meals {
		for i := range s.meals[d] {
			if m := &s.meals[d][i]; !m.Nutrition.Verified {
				out = append(out, m)
			}
		}
	}
	return out
}

func (s *planState) build() (*Plan, error) {
	if open := s.open(); len(open) > 0 {
		return nil, fmt.Errorf("%w: %d slots unfilled", ErrGenerationExhausted, len(open))
	}
	plan := &Plan{
		Title:            planTitle(s.req),
		Tier:             s.req.UserTier,
		GenerationMethod: s.profile.GenerationMethod,
		CanSave:          s.profile.CanSave,
		SwapsAllowed:     s.profile.SwapsPerPlan,
		Request:          s.req,
		Days:             make([]Day, len(s.meals)),
	}
	for d := range s.meals {
		plan.Days[d] = Day{
			DayIndex: d + 1,
			DayName:  fmt.Sprintf("Day %d", d+1),
			Meals:    append([]recipe.Meal(nil), s.meals[d]...),
		}
	}
	return plan, nil
}

func planTitle(req PlanRequest) string {
	var parts []string
	if req.Cuisine != "" {
		parts = append(parts, titleCase(req.Cuisine))
	}
	if len(req.DietaryPreferences) > 0 {
		parts = append(parts, titleCase(strings.Join(req.DietaryPreferences, " ")))
	}
	label := strings.Join(parts, " ")
	if label != "" {
		label += " "
	}
	return fmt.Sprintf("%d-Day %sMeal Plan", req.DaysCount, label)
}

func titleCase(s string) string {
	words := strings.Fields(s)
	for i, w := range words {
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}

func titleKey(name string) string {
	return strings.ToLower(strings.Join(strings.Fields(name), " "))
}

func outcome(err error) string {
	switch {
	case err == nil:
		return OutcomeSuccess
	case errors.Is(err, context.DeadlineExceeded):
		return OutcomeTimeout
	case errors.Is(err, llm.ErrProviderTransport):
		return OutcomeTransport
	case errors.Is(err, recipe.ErrMalformedOutput):
		return OutcomeMalformed
	case errors.Is(err, errCandidateRejected):
		return OutcomeRejected
	default:
		return OutcomeError
	}
}
