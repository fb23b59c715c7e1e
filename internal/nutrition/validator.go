package nutrition

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"meal-plan-generator/internal/recipe"
	"meal-plan-generator/internal/shared"
	"meal-plan-generator/internal/spoonacular"

	log "github.com/sirupsen/logrus"
)

// ErrValidationUnavailable marks a validation that could not reach a usable measurement.
var ErrValidationUnavailable = errors.New("nutrition validation unavailable")

// UntrustedDeviation is the deviation reported when nothing could be measured.
const UntrustedDeviation = 100

// Validation is the outcome of measuring a meal's ingredients.
type Validation = recipe.ValidationSnapshot

// Provider computes nutrients for a list of ingredient lines.
type Provider interface {
	ParseIngredients(ctx context.Context, lines []string, servings int) ([]spoonacular.Nutrient, error)
}

type Validator struct {
	provider  Provider
	threshold float64
	cooldown  time.Duration
}

// NewValidator creates a validator. threshold is the maximum accepted deviation in percent.
func NewValidator(provider Provider, threshold float64, cooldown time.Duration) *Validator {
	return &Validator{provider: provider, threshold: threshold, cooldown: cooldown}
}

// Threshold returns the configured deviation threshold.
func (v *Validator) Threshold() float64 { return v.threshold }

// Validate measures the ingredients and compares the result with the estimate.
// A failed or empty measurement yields an invalid validation with the untrusted deviation.
func (v *Validator) Validate(ctx context.Context, estimated recipe.Nutrition, ingredients []recipe.Ingredient, servings int) (Validation, error) {
	result := Validation{Estimated: estimated.Macros()}

	lines := make([]string, 0, len(ingredients))
	for _, ing := range ingredients {
		lines = append(lines, ing.String())
	}

	nutrients, err := v.provider.ParseIngredients(ctx, lines, servings)
	if err != nil {
		result.MaxDeviation = UntrustedDeviation
		return result, fmt.Errorf("%w: %v", ErrValidationUnavailable, err)
	}
	if len(nutrients) == 0 {
		result.MaxDeviation = UntrustedDeviation
		return result, fmt.Errorf("%w: empty nutrient list", ErrValidationUnavailable)
	}

	result.Actual = recipe.Macros{
		Calories: FindNutrient(nutrients, "calories"),
		ProteinG: FindNutrient(nutrients, "protein"),
		CarbsG:   FindNutrient(nutrients, "carbohydrates"),
		FatG:     FindNutrient(nutrients, "fat"),
	}
	result.Deviations = recipe.Deviations{
		Calories: CalculateDeviation(result.Estimated.Calories, result.Actual.Calories),
		Protein:  CalculateDeviation(result.Estimated.ProteinG, result.Actual.ProteinG),
		Carbs:    CalculateDeviation(result.Estimated.CarbsG, result.Actual.CarbsG),
		Fat:      CalculateDeviation(result.Estimated.FatG, result.Actual.FatG),
	}
	result.MaxDeviation = MaxDeviation(result.Deviations)
	result.IsValid = result.MaxDeviation <= v.threshold
	return result, nil
}

// Outcome summarises what validation did to one meal.
type Outcome struct {
	Validation Validation
	Reconciled bool
	Err        error
}

// ValidateAll validates and reconciles every meal in place, running provider calls in
// bounded batches. Failures are absorbed and reported per meal.
func (v *Validator) ValidateAll(ctx context.Context, meals []*recipe.Meal) []Outcome {
	outcomes := make([]Outcome, len(meals))
	err := shared.RunBatched(ctx, len(meals), shared.DefaultBatchSize, v.cooldown, func(ctx context.Context, i int) {
		m := meals[i]
		validation, err := v.Validate(ctx, m.Nutrition, m.Ingredients, m.Servings)
		if err != nil {
			log.WithError(err).WithFields(log.Fields{
				"recipe":   m.RecipeName,
				"provider": "spoonacular",
			}).Warn("nutrition validation unavailable, keeping estimate")
		}
		reconciled, rec := Apply(*m, validation, v.threshold)
		*m = reconciled
		outcomes[i] = Outcome{Validation: validation, Reconciled: rec, Err: err}
	})
	if err != nil {
		log.WithError(err).Warn("nutrition validation batch interrupted")
	}
	return outcomes
}

// FindNutrient returns the amount of the first nutrient whose name contains key,
// case-insensitively, preferring an exact name match.
func FindNutrient(nutrients []spoonacular.Nutrient, key string) float64 {
	key = strings.ToLower(key)
	for _, n := range nutrients {
		if strings.ToLower(n.Name) == key {
			return n.Amount
		}
	}
	for _, n := range nutrients {
		if strings.Contains(strings.ToLower(n.Name), key) {
			return n.Amount
		}
	}
	return 0
}

// CalculateDeviation returns |actual-estimated|/estimated*100 rounded to two decimals,
// or 100 when estimated is zero.
func CalculateDeviation(estimated, actual float64) float64 {
	if estimated == 0 {
		return UntrustedDeviation
	}
	return recipe.Round2(math.Abs(actual-estimated) / estimated * 100)
}

// MaxDeviation returns the largest of the four macro deviations.
func MaxDeviation(d recipe.Deviations) float64 {
	return math.Max(math.Max(d.Calories, d.Protein), math.Max(d.Carbs, d.Fat))
}
