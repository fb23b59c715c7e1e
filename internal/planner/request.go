package planner

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"meal-plan-generator/internal/quota"
	"meal-plan-generator/internal/search"

	"github.com/go-playground/validator/v10"
)

const (
	DefaultPortions       = 1
	DefaultMaxCookingTime = 45
	MaxDays               = 7
	MaxMealsPerDay        = 8
)

// PlanRequest is what a user asks for. It is never mutated after submission;
// Normalized returns a cleaned copy.
type PlanRequest struct {
	Province           string   `json:"province"`
	Goal               string   `json:"goal"`
	BudgetLevel        string   `json:"budgetLevel" validate:"omitempty,oneof=low medium high"`
	DaysCount          int      `json:"daysCount" validate:"min=1,max=7"`
	MealsPerDay        int      `json:"mealsPerDay" validate:"min=1,max=8"`
	MaxCookingTime     int      `json:"maxCookingTime" validate:"min=0,max=480"`
	Cuisine            string   `json:"cuisine"`
	Portions           int      `json:"portions" validate:"min=0,max=20"`
	DietaryPreferences []string `json:"dietaryPreferences" validate:"max=10,dive,max=40"`
	Allergies          []string `json:"allergies" validate:"max=20,dive,max=40"`
	Likes              string   `json:"likes" validate:"max=500"`
	Dislikes           string   `json:"dislikes" validate:"max=500"`
	CookingMethod      string   `json:"cookingMethod"`
	SkillLevel         string   `json:"skillLevel" validate:"omitempty,oneof=beginner intermediate advanced"`
	UserTier           string   `json:"userTier"`
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks field ranges. Call it on a normalized request.
func (r PlanRequest) Validate() error {
	if err := validate.Struct(r); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			fe := verrs[0]
			return fmt.Errorf("%w: field %s failed %q", ErrInvalidRequest, fe.Field(), fe.Tag())
		}
		return fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}
	return nil
}

// Normalized returns a copy with trimmed lower-case text, de-duplicated sorted sets and defaults,
// so equivalent requests compare and hash equal.
func (r PlanRequest) Normalized() PlanRequest {
	n := r
	n.Province = clean(r.Province)
	n.Goal = clean(r.Goal)
	n.BudgetLevel = clean(r.BudgetLevel)
	n.Cuisine = clean(r.Cuisine)
	n.Likes = clean(r.Likes)
	n.Dislikes = clean(r.Dislikes)
	n.CookingMethod = clean(r.CookingMethod)
	n.SkillLevel = clean(r.SkillLevel)
	n.UserTier = clean(r.UserTier)
	n.DietaryPreferences = cleanSet(r.DietaryPreferences)
	n.Allergies = cleanSet(r.Allergies)

	if n.Portions <= 0 {
		n.Portions = DefaultPortions
	}
	if n.MaxCookingTime <= 0 {
		n.MaxCookingTime = DefaultMaxCookingTime
	}
	if n.UserTier == "" {
		n.UserTier = quota.TierFree
	}
	if n.Cuisine == "any" {
		n.Cuisine = ""
	}
	return n
}

// SearchCriteria projects the request onto the external search adapter's inputs.
func (r PlanRequest) SearchCriteria() search.Criteria {
	return search.Criteria{
		Likes:          r.Likes,
		Dislikes:       r.Dislikes,
		Cuisine:        r.Cuisine,
		Goal:           r.Goal,
		CookingMethod:  r.CookingMethod,
		BudgetLevel:    r.BudgetLevel,
		Diets:          r.DietaryPreferences,
		Allergies:      r.Allergies,
		MaxCookingTime: r.MaxCookingTime,
		Servings:       r.Portions,
	}
}

func clean(s string) string {
	return strings.ToLower(strings.Join(strings.Fields(s), " "))
}

func cleanSet(values []string) []string {
	seen := make(map[string]struct{}, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		v = clean(v)
		if v == "" {
			continue
		}
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}
