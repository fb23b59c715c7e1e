package nutrition

import (
	"math"

	"meal-plan-generator/internal/recipe"
)

const (
	minScaleFactor = 0.5
	maxScaleFactor = 2.0
)

// ScaleFactor returns estimated/actual calories, or 0 when actual is zero.
func ScaleFactor(v Validation) float64 {
	if v.Actual.Calories == 0 {
		return 0
	}
	return v.Estimated.Calories / v.Actual.Calories
}

// Reconcile scales servings, ingredient quantities and the measured macros by the
// calorie scale factor when it lies strictly between 0.5 and 2. Outside that band the
// meal is returned unchanged. The bool reports whether scaling happened.
func Reconcile(m recipe.Meal, v Validation) (recipe.Meal, bool) {
	f := ScaleFactor(v)
	if f <= minScaleFactor || f >= maxScaleFactor {
		return m, false
	}

	servings := int(math.Round(float64(m.Servings) * f))
	if servings < 1 {
		servings = 1
	}
	m.Servings = servings

	ingredients := make([]recipe.Ingredient, len(m.Ingredients))
	for i, ing := range m.Ingredients {
		ing.Quantity = recipe.Round2(ing.Quantity * f)
		ingredients[i] = ing
	}
	m.Ingredients = ingredients

	m.Nutrition.Calories = recipe.Round2(v.Actual.Calories * f)
	m.Nutrition.ProteinG = recipe.Round2(v.Actual.ProteinG * f)
	m.Nutrition.CarbsG = recipe.Round2(v.Actual.CarbsG * f)
	m.Nutrition.FatG = recipe.Round2(v.Actual.FatG * f)
	m.Nutrition.Estimated = false
	m.Nutrition.Verified = true
	return m, true
}

// Apply folds a validation into a meal: measured macros replace the estimate when the
// deviation is within threshold, otherwise Reconcile runs and an unreconciled result is
// flagged as a known discrepancy. The validation snapshot is attached either way.
func Apply(m recipe.Meal, v Validation, threshold float64) (recipe.Meal, bool) {
	snapshot := v

	if v.IsValid && v.MaxDeviation <= threshold {
		m.Nutrition.Calories = v.Actual.Calories
		m.Nutrition.ProteinG = v.Actual.ProteinG
		m.Nutrition.CarbsG = v.Actual.CarbsG
		m.Nutrition.FatG = v.Actual.FatG
		m.Nutrition.Estimated = false
		m.Nutrition.Verified = true
		m.Validation = &snapshot
		return m, false
	}

	reconciled, ok := Reconcile(m, v)
	snapshot.Reconciled = ok
	snapshot.Discrepancy = !ok
	reconciled.Validation = &snapshot
	return reconciled, ok
}
