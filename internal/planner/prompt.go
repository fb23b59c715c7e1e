package planner

import (
	"bytes"
	_ "embed"
	"fmt"
	"strings"
	"text/template"
)

//go:embed meal_prompt.md
var mealPrompt string

//go:embed batch_prompt.md
var batchPrompt string

const systemPrompt = "You are a meal planning assistant. You always answer with valid JSON only."

var promptFuncs = template.FuncMap{"join": strings.Join}

var (
	mealTemplate  = template.Must(template.New("meal").Funcs(promptFuncs).Parse(mealPrompt))
	batchTemplate = template.Must(template.New("batch").Funcs(promptFuncs).Parse(batchPrompt))
)

type promptSlot struct {
	Day      int
	MealType string
}

type promptData struct {
	Request     PlanRequest
	DaysCount   int
	MealsPerDay int
	MealOrder   []string
	MealType    string
	DayIndex    int
	Slots       []promptSlot
	Exclusions  []string
	Avoid       []string
}

func buildMealPrompt(data promptData) (string, error) {
	return render(mealTemplate, data)
}

func buildBatchPrompt(data promptData) (string, error) {
	return render(batchTemplate, data)
}

func render(tmpl *template.Template, data promptData) (string, error) {
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("failed to render %s prompt: %w", tmpl.Name(), err)
	}
	return buf.String(), nil
}
