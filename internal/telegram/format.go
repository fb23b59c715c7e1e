package telegram

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"meal-plan-generator/internal/metrics"
	"meal-plan-generator/internal/planner"
	"meal-plan-generator/internal/quota"
	"meal-plan-generator/internal/storage"
)

const helpText = `👋 *Meal Planner*

Send /plan followed by options, for example:
/plan days=3 meals=3 diet=vegan allergies=peanuts time=30

Options: days, meals, diet, allergies, cuisine, time, portions, goal, budget, skill, likes, dislikes, method, province, tier
Lists are comma-separated.

/swap <day> <meal number> replaces one meal of your latest plan.`

// parsePlanRequest reads "key=value" pairs. Plain text without pairs becomes the likes field.
func parsePlanRequest(args string) (planner.PlanRequest, error) {
	req := planner.PlanRequest{DaysCount: 3, MealsPerDay: 3}
	args = strings.TrimSpace(args)
	if args == "" {
		return req, nil
	}
	if !strings.Contains(args, "=") {
		req.Likes = args
		return req, nil
	}

	for _, field := range splitPairs(args) {
		key, value, ok := strings.Cut(field, "=")
		if !ok {
			return req, fmt.Errorf("option %q must look like key=value", field)
		}
		key = strings.ToLower(strings.TrimSpace(key))
		value = strings.TrimSpace(value)

		var err error
		switch key {
		case "days":
			req.DaysCount, err = atoi(key, value)
		case "meals":
			req.MealsPerDay, err = atoi(key, value)
		case "time":
			req.MaxCookingTime, err = atoi(key, value)
		case "portions":
			req.Portions, err = atoi(key, value)
		case "diet":
			req.DietaryPreferences = splitList(value)
		case "allergies":
			req.Allergies = splitList(value)
		case "cuisine":
			req.Cuisine = value
		case "goal":
			req.Goal = value
		case "budget":
			req.BudgetLevel = value
		case "skill":
			req.SkillLevel = value
		case "likes":
			req.Likes = value
		case "dislikes":
			req.Dislikes = value
		case "method":
			req.CookingMethod = value
		case "province":
			req.Province = value
		case "tier":
			req.UserTier = value
		default:
			return req, fmt.Errorf("unknown option %q", key)
		}
		if err != nil {
			return req, err
		}
	}
	return req, nil
}

// splitPairs splits on whitespace but keeps values that continue past a space
// (likes=spicy thai food) attached to their key.
func splitPairs(args string) []string {
	var out []string
	for _, word := range strings.Fields(args) {
		if strings.Contains(word, "=") || len(out) == 0 {
			out = append(out, word)
			continue
		}
		out[len(out)-1] += " " + word
	}
	return out
}

func splitList(value string) []string {
	var out []string
	for _, part := range strings.Split(value, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func atoi(key, value string) (int, error) {
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("%s must be a number, got %q", key, value)
	}
	return n, nil
}

// parseSwapArgs reads "<day> <meal number>", both 1-based. The returned position is 0-based.
func parseSwapArgs(args string) (int, int, error) {
	fields := strings.Fields(args)
	if len(fields) != 2 {
		return 0, 0, errors.New("expected two numbers")
	}
	day, err := strconv.Atoi(fields[0])
	if err != nil || day < 1 {
		return 0, 0, fmt.Errorf("invalid day %q", fields[0])
	}
	meal, err := strconv.Atoi(fields[1])
	if err != nil || meal < 1 {
		return 0, 0, fmt.Errorf("invalid meal number %q", fields[1])
	}
	return day, meal - 1, nil
}

func decodePlan(sp storage.StoredPlan) (*planner.Plan, error) {
	var plan planner.Plan
	if err := json.Unmarshal(sp.Payload, &plan); err != nil {
		return nil, fmt.Errorf("failed to decode plan %s: %w", sp.ID, err)
	}
	return &plan, nil
}

func formatPlanMarkdown(plan *planner.Plan) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "📅 *%s*\n", plan.Title)
	if plan.NutritionChecked {
		sb.WriteString("✅ _Nutrition checked_\n")
	}
	sb.WriteString("\n")

	for _, day := range plan.Days {
		fmt.Fprintf(&sb, "*%s*\n", day.DayName)
		for i, m := range day.Meals {
			fmt.Fprintf(&sb, "%d. %s: %s", i+1, capitalize(m.MealType), m.RecipeName)
			if m.CookingTime > 0 {
				fmt.Fprintf(&sb, " (%d mins)", m.CookingTime)
			}
			if m.Nutrition.Calories > 0 {
				fmt.Fprintf(&sb, " · %.0f kcal", m.Nutrition.Calories)
			}
			sb.WriteString("\n")
		}
		sb.WriteString("\n")
	}

	if plan.Limits.Total != quota.Unlimited && plan.Limits.Total > 0 {
		fmt.Fprintf(&sb, "📊 Plans this month: %d/%d\n", plan.Limits.Used, plan.Limits.Total)
	}
	if plan.SwapsAllowed != 0 {
		if plan.SwapsAllowed == quota.Unlimited {
			sb.WriteString("🔁 Swaps: unlimited\n")
		} else {
			fmt.Fprintf(&sb, "🔁 Swaps left: %d\n", plan.SwapsAllowed-plan.SwapsUsed)
		}
	}
	return sb.String()
}

func formatError(err error) string {
	var rej *planner.RejectionError
	switch {
	case errors.As(err, &rej):
		return formatRejection(rej)
	case errors.Is(err, planner.ErrInvalidRequest):
		return "❌ " + err.Error()
	case errors.Is(err, planner.ErrGenerationExhausted):
		return "😓 Could not build a plan right now. Please try again in a moment."
	default:
		return "❌ Something went wrong while planning."
	}
}

func formatRejection(rej *planner.RejectionError) string {
	switch rej.Reason() {
	case quota.ReasonLimitReached:
		return fmt.Sprintf("🚫 *Monthly limit reached*: %d/%d plans used. Upgrade for more.",
			rej.Decision.PlansUsed, rej.Decision.PlansAllowed)
	case planner.ReasonSwapLimitReached:
		return fmt.Sprintf("🚫 *No swaps left* for this plan (%d/%d used).",
			rej.Decision.PlansUsed, rej.Decision.PlansAllowed)
	case quota.ReasonRequiresLogin:
		return "🔒 This tier requires an account."
	case quota.ReasonRequiresUpgrade:
		return "⬆️ Your subscription does not include that tier."
	default:
		return fmt.Sprintf("🚫 Request refused: %s", rej.Reason())
	}
}

func formatMetricsReport(usage []metrics.DailyUsage, health metrics.SysHealth) string {
	var sb strings.Builder
	sb.WriteString("📊 *Usage & Health Report*\n\n")

	sb.WriteString("🗓 *Recent LLM Activity*\n")
	if len(usage) == 0 {
		sb.WriteString("_No data yet_\n")
	}
	for _, d := range usage {
		fmt.Fprintf(&sb, "• *%s*: %d tokens (%d execs, %d failed)\n",
			d.Date, d.TotalPrompt+d.TotalCompletion, d.TotalExecution, d.Failures)
	}

	sb.WriteString("\n🧠 *System Health*\n")
	fmt.Fprintf(&sb, "• Uptime: %s\n", health.Uptime)
	fmt.Fprintf(&sb, "• RAM: %dMB (Alloc) / %dMB (Sys)\n", health.AllocMB, health.SysMB)
	fmt.Fprintf(&sb, "• Goroutines: %d\n", health.Goroutines)
	fmt.Fprintf(&sb, "• Disk Data: %s\n", health.DataDiskSize)
	return sb.String()
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
