package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"meal-plan-generator/internal/app"
	"meal-plan-generator/internal/config"
	"meal-plan-generator/internal/planner"

	"github.com/joho/godotenv"
	log "github.com/sirupsen/logrus"
)

func main() {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.WithError(err).Warn("failed to load .env file")
	}

	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	cfg, err := config.NewFromEnv()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	cfg.ConfigureLogging()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	application, err := app.New(ctx, cfg)
	if err != nil {
		log.Fatalf("Failed to initialize application: %v", err)
	}
	defer application.Close()

	if err := run(ctx, application, cfg, os.Args[1], os.Args[2:]); err != nil {
		log.Errorf("%s failed: %v", os.Args[1], err)
		application.Close()
		os.Exit(1)
	}
}

func run(ctx context.Context, application *app.App, cfg *config.Config, command string, args []string) error {
	switch command {
	case "generate":
		fs := flag.NewFlagSet("generate", flag.ExitOnError)
		days := fs.Int("days", 3, "Number of days (1-7)")
		meals := fs.Int("meals", 3, "Meals per day (1-8)")
		diet := fs.String("diet", "", "Comma-separated dietary preferences")
		allergies := fs.String("allergies", "", "Comma-separated allergies")
		cuisine := fs.String("cuisine", "", "Preferred cuisine")
		maxTime := fs.Int("time", 0, "Max cooking time in minutes")
		portions := fs.Int("portions", 0, "Servings per meal")
		goal := fs.String("goal", "", "Nutrition goal")
		budget := fs.String("budget", "", "Budget level: low, medium, high")
		skill := fs.String("skill", "", "Skill level: beginner, intermediate, advanced")
		likes := fs.String("likes", "", "Foods the user likes")
		dislikes := fs.String("dislikes", "", "Foods the user dislikes")
		tier := fs.String("tier", "", "Requested tier")
		user := fs.String("user", "", "User id (anonymous when empty)")
		_ = fs.Parse(args)

		return application.GenerateMealPlan(ctx, os.Stdout, *user, planner.PlanRequest{
			DaysCount:          *days,
			MealsPerDay:        *meals,
			DietaryPreferences: splitList(*diet),
			Allergies:          splitList(*allergies),
			Cuisine:            *cuisine,
			MaxCookingTime:     *maxTime,
			Portions:           *portions,
			Goal:               *goal,
			BudgetLevel:        *budget,
			SkillLevel:         *skill,
			Likes:              *likes,
			Dislikes:           *dislikes,
			UserTier:           *tier,
		})

	case "serve":
		fs := flag.NewFlagSet("serve", flag.ExitOnError)
		port := fs.String("port", cfg.Port, "Port to listen on")
		_ = fs.Parse(args)
		return application.Serve(ctx, ":"+*port)

	case "metrics-cleanup":
		fs := flag.NewFlagSet("metrics-cleanup", flag.ExitOnError)
		days := fs.Int("days", 30, "Keep records for the last N days")
		_ = fs.Parse(args)

		affected, err := application.CleanupMetrics(ctx, *days)
		if err != nil {
			return err
		}
		fmt.Printf("Successfully removed %d old metric records.\n", affected)
		return nil

	case "token":
		fs := flag.NewFlagSet("token", flag.ExitOnError)
		user := fs.String("user", "", "User id")
		tier := fs.String("tier", "free", "Subscription tier")
		ttl := fs.Duration("ttl", 30*24*time.Hour, "Token lifetime")
		_ = fs.Parse(args)
		if *user == "" {
			return fmt.Errorf("-user is required")
		}

		token, err := application.IssueToken(ctx, *user, *tier, *ttl)
		if err != nil {
			return err
		}
		fmt.Println(token)
		return nil

	default:
		printUsage()
		return fmt.Errorf("unknown command: %s", command)
	}
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func printUsage() {
	fmt.Println("Usage: meal-planner <command> [arguments]")
	fmt.Println("\nCommands:")
	fmt.Println("  generate           Generate a meal plan and print it as JSON")
	fmt.Println("  serve              Run the HTTP API")
	fmt.Println("  metrics-cleanup    Remove old metric records")
	fmt.Println("  token              Assign a tier to a user and print a bearer token")
}
