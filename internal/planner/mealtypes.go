package planner

const (
	MealBreakfast = "breakfast"
	MealLunch     = "lunch"
	MealDinner    = "dinner"
	MealSnack     = "snack"
)

var mealTypeTable = map[int][]string{
	1: {MealLunch},
	2: {MealBreakfast, MealDinner},
	3: {MealBreakfast, MealLunch, MealDinner},
	4: {MealBreakfast, MealLunch, MealSnack, MealDinner},
	5: {MealBreakfast, MealSnack, MealLunch, MealSnack, MealDinner},
}

// MealTypes returns the meal type for each position of a day with mealsPerDay meals.
// Counts above five extend the five-meal day with snacks.
func MealTypes(mealsPerDay int) []string {
	if mealsPerDay <= 0 {
		return nil
	}
	if types, ok := mealTypeTable[mealsPerDay]; ok {
		return append([]string(nil), types...)
	}
	types := append([]string(nil), mealTypeTable[5]...)
	for len(types) < mealsPerDay {
		types = append(types, MealSnack)
	}
	return types
}
