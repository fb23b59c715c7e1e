package planner

import (
	"context"
	"fmt"

	"meal-plan-generator/internal/auth"
	"meal-plan-generator/internal/history"
	"meal-plan-generator/internal/quota"
	"meal-plan-generator/internal/recipe"
	"meal-plan-generator/internal/shared"

	log "github.com/sirupsen/logrus"
)

// SwapMeal replaces the meal at dayIndex (1-based) and position (0-based) with a new one
// produced by the same ladder. The replacement differs from every meal already in the plan.
// Swaps are bounded by the tier's SwapsPerPlan and do not count against the monthly quota.
func (p *Planner) SwapMeal(ctx context.Context, identity *auth.Identity, plan *Plan, dayIndex, position int) (*Plan, []shared.AgentMeta, error) {
	current, ok := plan.Meal(dayIndex, position)
	if !ok {
		return nil, nil, fmt.Errorf("%w: no meal at day %d position %d", ErrInvalidRequest, dayIndex, position)
	}
	profile, ok := p.gate.Profile(plan.Tier)
	if !ok {
		return nil, nil, fmt.Errorf("%w: unknown tier %q", ErrInvalidRequest, plan.Tier)
	}
	if profile.SwapsPerPlan != quota.Unlimited && plan.SwapsUsed >= profile.SwapsPerPlan {
		p.collectors.Rejection(ReasonSwapLimitReached)
		return nil, nil, &RejectionError{Decision: quota.Decision{
			LimitReached: true,
			PlansUsed:    plan.SwapsUsed,
			PlansAllowed: profile.SwapsPerPlan,
			Reason:       ReasonSwapLimitReached,
			Profile:      profile,
		}}
	}

	s := stateFromPlan(plan, profile, dayIndex, position)
	s.history = p.loadHistory(ctx, identity)
	s.avoid = append([]string{current.RecipeName}, history.Titles(s.history)...)

	p.fill(ctx, s, plan.SwapsUsed+1)

	sl := slot{day: dayIndex - 1, pos: position, mealType: s.mealTypes[position]}
	if plan.NutritionChecked {
		p.validateMeals(ctx, []*recipe.Meal{&s.meals[sl.day][sl.pos]})
	}

	updated, err := s.build()
	if err != nil {
		return nil, s.metas, err
	}
	updated.ID = plan.ID
	updated.Tier = plan.Tier
	updated.NutritionChecked = plan.NutritionChecked
	updated.Limits = plan.Limits
	updated.CreatedAt = plan.CreatedAt
	updated.SwapsUsed = plan.SwapsUsed + 1

	replacement := s.meals[sl.day][sl.pos]
	p.collectors.Meal(replacement.RecipeSource)
	log.WithFields(log.Fields{
		"plan":   plan.ID,
		"day":    dayIndex,
		"from":   current.RecipeName,
		"to":     replacement.RecipeName,
		"source": replacement.RecipeSource,
	}).Info("meal swapped")

	p.persist(ctx, identity, updated)
	return updated, s.metas, nil
}
