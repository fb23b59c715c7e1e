package recipe

import "strings"

type mealTemplate struct {
	name         string
	cuisine      string
	cookingTime  int
	ingredients  []Ingredient
	instructions []string
	nutrition    Nutrition
}

func ing(qty float64, unit, name string) Ingredient {
	return Ingredient{Name: name, Quantity: qty, Unit: unit}
}

var templatePool = map[string][]mealTemplate{
	"breakfast": {
		{"Overnight Oats with Berries", "american", 10,
			[]Ingredient{ing(0.5, "cup", "rolled oats"), ing(1, "cup", "almond milk"), ing(1, "tbsp", "chia seeds"), ing(0.5, "cup", "mixed berries"), ing(1, "tsp", "maple syrup")},
			[]string{"Combine oats, chia seeds and almond milk in a jar.", "Refrigerate overnight.", "Top with berries and maple syrup before serving."},
			Nutrition{Calories: 380, ProteinG: 12, CarbsG: 58, FatG: 11}},
		{"Tofu Scramble with Spinach", "american", 15,
			[]Ingredient{ing(150, "g", "firm tofu"), ing(1, "cup", "spinach"), ing(0.5, "unit", "red bell pepper"), ing(0.25, "tsp", "turmeric"), ing(1, "tsp", "olive oil")},
			[]string{"Heat oil in a skillet and soften the pepper.", "Crumble in the tofu with turmeric and cook for 5 minutes.", "Fold in spinach until wilted and season to taste."},
			Nutrition{Calories: 290, ProteinG: 22, CarbsG: 10, FatG: 17}},
		{"Banana Chia Pudding", "american", 10,
			[]Ingredient{ing(3, "tbsp", "chia seeds"), ing(1, "cup", "coconut milk"), ing(1, "unit", "banana"), ing(0.25, "tsp", "cinnamon")},
			[]string{"Whisk chia seeds into coconut milk with cinnamon.", "Rest for 10 minutes, stirring twice.", "Top with sliced banana."},
			Nutrition{Calories: 340, ProteinG: 8, CarbsG: 38, FatG: 18}},
		{"Avocado Toast with Tomato", "american", 10,
			[]Ingredient{ing(2, "slice", "whole grain bread"), ing(1, "unit", "avocado"), ing(0.5, "cup", "cherry tomatoes"), ing(1, "tsp", "lemon juice")},
			[]string{"Toast the bread.", "Mash avocado with lemon juice and a pinch of salt.", "Spread on toast and top with halved tomatoes."},
			Nutrition{Calories: 390, ProteinG: 10, CarbsG: 40, FatG: 22}},
		{"Veggie Egg Muffins", "american", 25,
			[]Ingredient{ing(2, "unit", "eggs"), ing(0.5, "cup", "spinach"), ing(0.5, "cup", "cherry tomatoes"), ing(2, "tbsp", "feta cheese")},
			[]string{"Heat the oven to 180C and grease a muffin tin.", "Whisk eggs and fold in chopped vegetables and feta.", "Bake for 18 minutes until set."},
			Nutrition{Calories: 260, ProteinG: 18, CarbsG: 6, FatG: 17}},
		{"Greek Yogurt Parfait", "greek", 5,
			[]Ingredient{ing(1, "cup", "greek yogurt"), ing(0.25, "cup", "granola"), ing(1, "tsp", "honey"), ing(0.5, "cup", "strawberries")},
			[]string{"Layer yogurt, strawberries and granola in a glass.", "Drizzle with honey."},
			Nutrition{Calories: 330, ProteinG: 20, CarbsG: 42, FatG: 8}},
	},
	"lunch": {
		{"Chickpea Quinoa Salad", "mediterranean", 25,
			[]Ingredient{ing(0.5, "cup", "quinoa"), ing(0.75, "cup", "chickpeas"), ing(0.5, "unit", "cucumber"), ing(0.5, "cup", "cherry tomatoes"), ing(1, "tbsp", "lemon juice"), ing(1, "tbsp", "olive oil"), ing(2, "tbsp", "parsley")},
			[]string{"Cook quinoa according to package directions and let cool.", "Dice cucumber and halve tomatoes.", "Toss everything with lemon juice, olive oil and parsley."},
			Nutrition{Calories: 480, ProteinG: 18, CarbsG: 62, FatG: 17}},
		{"Lentil Vegetable Soup", "mediterranean", 35,
			[]Ingredient{ing(0.5, "cup", "dried lentils"), ing(1, "unit", "carrot"), ing(1, "unit", "celery stalk"), ing(0.5, "unit", "onion"), ing(2, "cup", "vegetable broth"), ing(0.5, "tsp", "cumin")},
			[]string{"Saute diced onion, carrot and celery for 5 minutes.", "Add lentils, broth and cumin.", "Simmer for 25 minutes until lentils are tender."},
			Nutrition{Calories: 360, ProteinG: 22, CarbsG: 58, FatG: 3}},
		{"Black Bean Burrito Bowl", "mexican", 20,
			[]Ingredient{ing(0.75, "cup", "black beans"), ing(0.5, "cup", "brown rice"), ing(0.25, "cup", "corn"), ing(0.25, "cup", "salsa"), ing(0.5, "unit", "avocado")},
			[]string{"Cook rice and warm the beans.", "Assemble rice, beans and corn in a bowl.", "Top with salsa and sliced avocado."},
			Nutrition{Calories: 520, ProteinG: 18, CarbsG: 88, FatG: 13}},
		{"Mediterranean Hummus Wrap", "mediterranean", 10,
			[]Ingredient{ing(1, "unit", "whole wheat tortilla"), ing(3, "tbsp", "hummus"), ing(0.5, "unit", "cucumber"), ing(0.25, "cup", "roasted red pepper"), ing(1, "cup", "spinach")},
			[]string{"Spread hummus over the tortilla.", "Layer vegetables down the middle.", "Roll tightly and slice in half."},
			Nutrition{Calories: 410, ProteinG: 13, CarbsG: 52, FatG: 16}},
		{"Grilled Chicken Salad", "american", 20,
			[]Ingredient{ing(150, "g", "chicken breast"), ing(2, "cup", "mixed greens"), ing(0.5, "cup", "cherry tomatoes"), ing(0.5, "unit", "cucumber"), ing(1, "tbsp", "olive oil"), ing(1, "tbsp", "balsamic vinegar")},
			[]string{"Season and grill the chicken for 6 minutes per side.", "Rest, then slice.", "Toss greens and vegetables with oil and vinegar and top with chicken."},
			Nutrition{Calories: 420, ProteinG: 40, CarbsG: 12, FatG: 22}},
		{"Tuna Lettuce Wraps", "american", 10,
			[]Ingredient{ing(1, "can", "tuna"), ing(2, "tbsp", "greek yogurt"), ing(1, "unit", "celery stalk"), ing(4, "unit", "lettuce leaves")},
			[]string{"Mix tuna with yogurt and diced celery.", "Spoon into lettuce leaves."},
			Nutrition{Calories: 300, ProteinG: 35, CarbsG: 8, FatG: 12}},
	},
	"dinner": {
		{"Vegetable Stir-Fry with Tofu", "asian", 25,
			[]Ingredient{ing(150, "g", "firm tofu"), ing(1, "cup", "broccoli florets"), ing(1, "unit", "bell pepper"), ing(1, "tbsp", "tamari"), ing(2, "clove", "garlic"), ing(0.5, "cup", "brown rice")},
			[]string{"Cook the rice.", "Pan-fry cubed tofu until golden and set aside.", "Stir-fry vegetables with garlic, return tofu and toss with tamari.", "Serve over rice."},
			Nutrition{Calories: 480, ProteinG: 26, CarbsG: 55, FatG: 17}},
		{"Chickpea and Spinach Curry", "indian", 30,
			[]Ingredient{ing(1, "cup", "chickpeas"), ing(2, "cup", "spinach"), ing(0.5, "can", "diced tomatoes"), ing(0.25, "cup", "coconut milk"), ing(1, "tbsp", "curry powder"), ing(0.5, "cup", "basmati rice")},
			[]string{"Cook the rice.", "Toast curry powder in a pan, add tomatoes and coconut milk.", "Stir in chickpeas and simmer 10 minutes, then wilt in spinach.", "Serve with rice."},
			Nutrition{Calories: 540, ProteinG: 19, CarbsG: 78, FatG: 17}},
		{"Pasta Primavera", "italian", 25,
			[]Ingredient{ing(85, "g", "pasta"), ing(1, "unit", "zucchini"), ing(0.5, "cup", "cherry tomatoes"), ing(1, "tbsp", "olive oil"), ing(2, "clove", "garlic"), ing(2, "tbsp", "fresh basil")},
			[]string{"Boil pasta until al dente.", "Saute garlic, zucchini and tomatoes in olive oil.", "Toss with pasta and basil."},
			Nutrition{Calories: 470, ProteinG: 15, CarbsG: 72, FatG: 14}},
		{"Stuffed Peppers with Lentils", "mediterranean", 40,
			[]Ingredient{ing(2, "unit", "bell peppers"), ing(0.5, "cup", "cooked lentils"), ing(0.5, "cup", "cooked rice"), ing(0.5, "cup", "tomato sauce"), ing(0.5, "unit", "onion")},
			[]string{"Heat the oven to 190C.", "Mix lentils, rice, onion and half the sauce.", "Fill the halved peppers, top with remaining sauce and bake 30 minutes."},
			Nutrition{Calories: 430, ProteinG: 20, CarbsG: 70, FatG: 6}},
		{"Baked Salmon with Roasted Vegetables", "american", 30,
			[]Ingredient{ing(150, "g", "salmon fillet"), ing(1, "unit", "zucchini"), ing(1, "unit", "sweet potato"), ing(1, "tbsp", "olive oil"), ing(0.5, "unit", "lemon")},
			[]string{"Heat the oven to 200C.", "Roast cubed sweet potato and zucchini for 10 minutes.", "Add salmon to the tray and roast 12 more minutes.", "Finish with lemon juice."},
			Nutrition{Calories: 520, ProteinG: 36, CarbsG: 30, FatG: 28}},
		{"Turkey Chili", "american", 40,
			[]Ingredient{ing(150, "g", "ground turkey"), ing(0.5, "cup", "kidney beans"), ing(0.5, "can", "diced tomatoes"), ing(0.5, "unit", "onion"), ing(1, "tbsp", "chili powder")},
			[]string{"Brown turkey with onion.", "Add tomatoes, beans and chili powder.", "Simmer for 25 minutes."},
			Nutrition{Calories: 480, ProteinG: 38, CarbsG: 40, FatG: 16}},
	},
	"snack": {
		{"Hummus with Veggie Sticks", "mediterranean", 5,
			[]Ingredient{ing(0.25, "cup", "hummus"), ing(1, "cup", "carrot sticks"), ing(0.5, "unit", "cucumber")},
			[]string{"Slice vegetables into sticks.", "Serve with hummus."},
			Nutrition{Calories: 180, ProteinG: 6, CarbsG: 18, FatG: 10}},
		{"Fresh Fruit Salad", "american", 5,
			[]Ingredient{ing(0.5, "cup", "mixed berries"), ing(1, "unit", "orange"), ing(1, "tsp", "fresh mint")},
			[]string{"Segment the orange.", "Toss with berries and chopped mint."},
			Nutrition{Calories: 120, ProteinG: 2, CarbsG: 30, FatG: 0.5}},
		{"Roasted Chickpeas", "mediterranean", 30,
			[]Ingredient{ing(0.5, "cup", "chickpeas"), ing(1, "tsp", "olive oil"), ing(0.5, "tsp", "smoked paprika")},
			[]string{"Heat the oven to 200C.", "Toss dried chickpeas with oil and paprika.", "Roast 25 minutes until crisp."},
			Nutrition{Calories: 190, ProteinG: 8, CarbsG: 24, FatG: 7}},
		{"Apple with Almond Butter", "american", 5,
			[]Ingredient{ing(1, "unit", "apple"), ing(1, "tbsp", "almond butter")},
			[]string{"Slice the apple.", "Serve with almond butter for dipping."},
			Nutrition{Calories: 200, ProteinG: 4, CarbsG: 27, FatG: 9}},
		{"Edamame with Sea Salt", "asian", 5,
			[]Ingredient{ing(1, "cup", "edamame"), ing(0.25, "tsp", "sea salt")},
			[]string{"Steam edamame for 4 minutes.", "Sprinkle with sea salt."},
			Nutrition{Calories: 190, ProteinG: 17, CarbsG: 14, FatG: 8}},
	},
}

var lastResortTemplate = mealTemplate{
	"Steamed Seasonal Vegetables", "", 15,
	[]Ingredient{ing(2, "cup", "seasonal vegetables"), ing(1, "tbsp", "olive oil"), ing(1, "pinch", "salt")},
	[]string{"Steam the vegetables until just tender.", "Dress with olive oil and salt."},
	Nutrition{Calories: 150, ProteinG: 5, CarbsG: 18, FatG: 8},
}

// TemplateSlot describes the meal the template generator must fill.
type TemplateSlot struct {
	MealType       string
	Sequence       int
	Diets          []string
	Allergies      []string
	MaxCookingTime int
	Servings       int
}

// GenerateFromTemplate builds a meal without any external call. It honours diets and
// allergies and prefers candidates that skip rejects, falling back to stripping
// forbidden ingredients when no template fits.
func GenerateFromTemplate(slot TemplateSlot, skip func(Meal) bool) Meal {
	pool, ok := templatePool[strings.ToLower(slot.MealType)]
	if !ok {
		pool = templatePool["lunch"]
	}

	var safe, timely []Meal
	for _, t := range pool {
		m := slot.build(t)
		if len(Violations(m, slot.Diets, slot.Allergies)) > 0 {
			continue
		}
		safe = append(safe, m)
		if slot.MaxCookingTime <= 0 || t.cookingTime <= slot.MaxCookingTime {
			timely = append(timely, m)
		}
	}

	candidates := timely
	if len(candidates) == 0 {
		candidates = safe
	}
	if len(candidates) == 0 {
		m := slot.build(lastResortTemplate)
		forbidden := append(AllergenKeywords(slot.Allergies), ForbiddenKeywords(slot.Diets)...)
		m.Ingredients = StripIngredients(m.Ingredients, forbidden)
		if len(m.Ingredients) == 0 {
			m.Ingredients = []Ingredient{ing(2, "cup", "mixed greens")}
		}
		m.DeriveProfile()
		return m
	}

	start := slot.Sequence % len(candidates)
	for i := range candidates {
		m := candidates[(start+i)%len(candidates)]
		if skip == nil || !skip(m) {
			return m
		}
	}
	return candidates[start]
}

func (s TemplateSlot) build(t mealTemplate) Meal {
	servings := s.Servings
	if servings <= 0 {
		servings = 1
	}
	ingredients := make([]Ingredient, len(t.ingredients))
	for i, in := range t.ingredients {
		in.Quantity = Round2(in.Quantity * float64(servings))
		ingredients[i] = in
	}
	cookingTime := t.cookingTime
	if s.MaxCookingTime > 0 && cookingTime > s.MaxCookingTime {
		cookingTime = s.MaxCookingTime
	}
	nutrition := t.nutrition
	nutrition.Estimated = true

	m := Meal{
		MealType:     s.MealType,
		RecipeName:   t.name,
		Ingredients:  ingredients,
		CookingTime:  cookingTime,
		Servings:     servings,
		Instructions: append([]string(nil), t.instructions...),
		Nutrition:    nutrition,
		RecipeSource: SourceOpenAIFallback,
		Tags:         mergeSet(nil, s.Diets),
	}
	if t.cuisine != "" {
		m.Cuisine = []string{t.cuisine}
	}
	m.DeriveProfile()
	return m
}
