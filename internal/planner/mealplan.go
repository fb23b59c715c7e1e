package planner

import (
	"time"

	"meal-plan-generator/internal/recipe"
)

// Limits is the quota snapshot returned with a plan.
type Limits struct {
	Used      int `json:"used"`
	Total     int `json:"total"`
	Remaining int `json:"remaining"`
}

// Day holds the meals of one plan day, ordered by the meal-type table.
type Day struct {
	DayIndex int           `json:"dayIndex"`
	DayName  string        `json:"dayName"`
	Meals    []recipe.Meal `json:"meals"`
}

// Plan is a generated multi-day meal plan. It is immutable apart from single-meal swaps.
type Plan struct {
	ID               string      `json:"id"`
	Title            string      `json:"title"`
	Days             []Day       `json:"days"`
	Tier             string      `json:"tier"`
	GenerationMethod string      `json:"generationMethod"`
	NutritionChecked bool        `json:"nutritionValidated"`
	CanSave          bool        `json:"canSave"`
	Limits           Limits      `json:"limits"`
	SwapsUsed        int         `json:"swapsUsed"`
	SwapsAllowed     int         `json:"swapsAllowed"`
	Request          PlanRequest `json:"request"`
	CreatedAt        time.Time   `json:"createdAt"`
}

// Meals returns every meal in day order.
func (p *Plan) Meals() []recipe.Meal {
	var meals []recipe.Meal
	for _, d := range p.Days {
		meals = append(meals, d.Meals...)
	}
	return meals
}

// Meal returns a pointer to the meal at a 1-based day index and 0-based position.
func (p *Plan) Meal(dayIndex, position int) (*recipe.Meal, bool) {
	if dayIndex < 1 || dayIndex > len(p.Days) {
		return nil, false
	}
	day := &p.Days[dayIndex-1]
	if position < 0 || position >= len(day.Meals) {
		return nil, false
	}
	return &day.Meals[position], true
}
