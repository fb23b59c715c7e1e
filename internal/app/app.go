package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"time"

	"meal-plan-generator/internal/auth"
	"meal-plan-generator/internal/cache"
	"meal-plan-generator/internal/config"
	"meal-plan-generator/internal/database"
	"meal-plan-generator/internal/httpapi"
	"meal-plan-generator/internal/llm"
	"meal-plan-generator/internal/metrics"
	"meal-plan-generator/internal/nutrition"
	"meal-plan-generator/internal/planner"
	"meal-plan-generator/internal/quota"
	"meal-plan-generator/internal/search"
	"meal-plan-generator/internal/spoonacular"
	"meal-plan-generator/internal/storage"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	log "github.com/sirupsen/logrus"
)

// App holds the application's dependencies.
type App struct {
	cfg           *config.Config
	db            *database.DB
	store         *storage.Store
	metricsStore  *metrics.Store
	registry      *prometheus.Registry
	authenticator *auth.Authenticator
	mealPlanner   *planner.Planner
	profiles      map[string]quota.TierProfile
	closers       []io.Closer
}

// New wires the planner and its collaborators from configuration.
func New(ctx context.Context, cfg *config.Config) (*App, error) {
	a := &App{cfg: cfg, authenticator: auth.NewAuthenticator(cfg.JWTSecret)}

	db, err := database.Open(ctx, cfg.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	a.db = db
	a.store = storage.NewStore(db.SQL)
	a.metricsStore = metrics.NewStore(db.SQL)

	a.registry = prometheus.NewRegistry()
	a.registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	coll := metrics.NewCollectors(a.registry)

	primary, secondary, err := a.generators(ctx)
	if err != nil {
		a.Close()
		return nil, err
	}

	profiles, err := quota.LoadProfiles(cfg.TierProfilesPath)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.profiles = profiles

	responseCache, err := a.responseCache(ctx)
	if err != nil {
		a.Close()
		return nil, err
	}

	deps := planner.Deps{
		Gate:            quota.NewGate(profiles, a.store),
		Generator:       primary,
		BatchGenerator:  secondary,
		Cache:           responseCache,
		Plans:           a.store,
		Collectors:      coll,
		ProviderTimeout: cfg.ProviderTimeout,
		PreferSearch:    cfg.PreferExternalSearch,
		LookbackDays:    cfg.HistoryLookbackDays,
		PlanLimit:       cfg.HistoryPlanLimit,
	}
	// The Spoonacular client is nil without an API key; validation and search stay off.
	if client := spoonacular.NewClient(cfg); client != nil {
		deps.Validator = nutrition.NewValidator(client, cfg.NutritionDeviationThreshold, cfg.BatchCooldown)
		deps.Search = search.NewAdapter(client, cfg.BatchCooldown)
	} else {
		log.Warn("SPOONACULAR_API_KEY not set: nutrition validation and recipe search disabled")
	}
	a.mealPlanner = planner.NewPlanner(deps)
	return a, nil
}

// generators returns the per-meal generator and the batch generator. OpenAI is primary
// when configured; Gemini takes the batch rung, or both when it is the only provider.
func (a *App) generators(ctx context.Context) (llm.TextGenerator, llm.TextGenerator, error) {
	var gemini llm.TextGenerator
	if a.cfg.GeminiAPIKey != "" {
		client, err := llm.NewGeminiClient(ctx, a.cfg)
		if err != nil {
			return nil, nil, err
		}
		a.closers = append(a.closers, client)
		gemini = client
	}
	if a.cfg.OpenAIAPIKey == "" {
		return gemini, gemini, nil
	}
	openai := llm.NewOpenAIClient(a.cfg)
	if gemini == nil {
		return openai, openai, nil
	}
	return openai, gemini, nil
}

func (a *App) responseCache(ctx context.Context) (cache.Store, error) {
	if a.cfg.RedisAddr == "" {
		return cache.NewMemoryStore(a.cfg.CacheTTL), nil
	}
	store, err := cache.NewRedisStore(ctx, a.cfg.RedisAddr, a.cfg.RedisPassword, a.cfg.RedisDB, a.cfg.CacheTTL)
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, store)
	log.WithField("addr", a.cfg.RedisAddr).Info("using redis response cache")
	return store, nil
}

// Close releases every opened resource.
func (a *App) Close() {
	for _, c := range a.closers {
		if err := c.Close(); err != nil {
			log.WithError(err).Warn("failed to close resource")
		}
	}
	if a.db != nil {
		if err := a.db.Close(); err != nil {
			log.WithError(err).Warn("failed to close database")
		}
	}
}

func (a *App) Planner() *planner.Planner { return a.mealPlanner }

func (a *App) Store() *storage.Store { return a.store }

func (a *App) Metrics() *metrics.Store { return a.metricsStore }

func (a *App) Registry() *prometheus.Registry { return a.registry }

// DataDir is the directory holding the database, reported by health checks.
func (a *App) DataDir() string { return filepath.Dir(a.cfg.DatabasePath) }

// GenerateMealPlan creates a meal plan for userID (anonymous when empty) and writes it as JSON.
func (a *App) GenerateMealPlan(ctx context.Context, w io.Writer, userID string, req planner.PlanRequest) error {
	var identity *auth.Identity
	if userID != "" {
		identity = &auth.Identity{UserID: userID}
	}

	plan, metas, err := a.mealPlanner.GeneratePlan(ctx, identity, req)
	for _, meta := range metas {
		if errRec := a.metricsStore.RecordMeta(ctx, meta); errRec != nil {
			log.WithError(errRec).WithField("agent", meta.AgentName).Warn("failed to record metrics")
		}
	}
	if err != nil {
		return fmt.Errorf("failed to generate plan: %w", err)
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(plan)
}

// Handler returns the HTTP API.
func (a *App) Handler() http.Handler {
	return httpapi.NewRouter(httpapi.Options{
		Planner:       a.mealPlanner,
		Plans:         a.store,
		Authenticator: a.authenticator,
		Metrics:       a.metricsStore,
		Gatherer:      a.registry,
		DataDir:       a.DataDir(),
	})
}

// Serve runs the HTTP API until ctx is cancelled.
func (a *App) Serve(ctx context.Context, addr string) error {
	srv := &http.Server{Addr: addr, Handler: a.Handler()}

	errCh := make(chan error, 1)
	go func() {
		log.WithField("addr", addr).Info("http api listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("server failed: %w", err)
	case <-ctx.Done():
	}

	log.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// CleanupMetrics removes execution metrics older than days.
func (a *App) CleanupMetrics(ctx context.Context, days int) (int64, error) {
	return a.metricsStore.Cleanup(ctx, days)
}

// IssueToken assigns tier to userID and returns a bearer token for it.
func (a *App) IssueToken(ctx context.Context, userID, tier string, ttl time.Duration) (string, error) {
	if a.cfg.JWTSecret == "" {
		return "", errors.New("JWT_SECRET environment variable not set")
	}
	if _, ok := a.profiles[tier]; !ok {
		return "", fmt.Errorf("%w: %q", quota.ErrUnknownTier, tier)
	}
	if err := a.store.SetTier(ctx, userID, tier); err != nil {
		return "", err
	}
	token, err := a.authenticator.IssueToken(userID, tier, ttl)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return token, nil
}
