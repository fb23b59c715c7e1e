package planner

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"meal-plan-generator/internal/auth"
	"meal-plan-generator/internal/cache"
	"meal-plan-generator/internal/history"
	"meal-plan-generator/internal/llm"
	"meal-plan-generator/internal/metrics"
	"meal-plan-generator/internal/nutrition"
	"meal-plan-generator/internal/quota"
	"meal-plan-generator/internal/recipe"
	"meal-plan-generator/internal/search"
	"meal-plan-generator/internal/shared"
	"meal-plan-generator/internal/storage"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
)

const (
	maxAttempts        = 3
	mealTokens         = 900
	batchTokensPerSlot = 650
	batchTokensBase    = 400
	batchTokensCap     = 12000
)

var temperatures = []float32{0.7, 0.85, 1.0}

// PlanStore persists generated plans and supplies the recent ones for deduplication.
type PlanStore interface {
	SavePlan(ctx context.Context, plan storage.StoredPlan) error
	GetPlan(ctx context.Context, id string) (storage.StoredPlan, error)
	RecentPlans(ctx context.Context, userID string, since time.Time, limit int) ([]storage.StoredPlan, error)
}

// Deps bundles the collaborators of a Planner. Gate and Generator are required.
type Deps struct {
	Gate            *quota.Gate
	Generator       llm.TextGenerator
	BatchGenerator  llm.TextGenerator
	Validator       *nutrition.Validator
	Search          *search.Adapter
	Cache           cache.Store
	Plans           PlanStore
	Collectors      *metrics.Collectors
	ProviderTimeout time.Duration
	PreferSearch    bool
	LookbackDays    int
	PlanLimit       int
}

// Planner turns plan requests into plans: quota check, cache lookup, generation ladder,
// nutrition validation, cache write and usage accounting.
type Planner struct {
	gate           *quota.Gate
	generator      llm.TextGenerator
	batchGenerator llm.TextGenerator
	validator      *nutrition.Validator
	search         *search.Adapter
	cache          cache.Store
	plans          PlanStore
	collectors     *metrics.Collectors
	filter         *history.Filter
	timeout        time.Duration
	preferSearch   bool
	lookbackDays   int
	planLimit      int
	now            func() time.Time
}

// NewPlanner creates a new Planner instance.
func NewPlanner(d Deps) *Planner {
	p := &Planner{
		gate:           d.Gate,
		generator:      d.Generator,
		batchGenerator: d.BatchGenerator,
		validator:      d.Validator,
		search:         d.Search,
		cache:          d.Cache,
		plans:          d.Plans,
		collectors:     d.Collectors,
		filter:         history.NewFilter(),
		timeout:        d.ProviderTimeout,
		preferSearch:   d.PreferSearch,
		lookbackDays:   d.LookbackDays,
		planLimit:      d.PlanLimit,
		now:            time.Now,
	}
	if p.batchGenerator == nil {
		p.batchGenerator = p.generator
	}
	if p.timeout <= 0 {
		p.timeout = 8 * time.Second
	}
	if p.lookbackDays <= 0 {
		p.lookbackDays = history.DefaultLookbackDays
	}
	if p.planLimit <= 0 {
		p.planLimit = history.DefaultPlanLimit
	}
	return p
}

// WithClock overrides the planner's clock, including the recency filter.
func (p *Planner) WithClock(now func() time.Time) *Planner {
	p.now = now
	p.filter.Now = now
	return p
}

// GeneratePlan runs one plan request end to end. Only a quota rejection, an invalid request
// or an exhausted ladder are returned as errors; every other failure degrades the output.
// The returned metas describe every provider call made.
func (p *Planner) GeneratePlan(ctx context.Context, identity *auth.Identity, req PlanRequest) (*Plan, []shared.AgentMeta, error) {
	// Signed-in users without an explicit tier plan on the tier they subscribe to.
	if identity != nil && strings.TrimSpace(req.UserTier) == "" {
		tier, err := p.gate.SubscribedTier(ctx, identity)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to resolve subscription tier: %w", err)
		}
		req.UserTier = tier
	}
	req = req.Normalized()
	if err := req.Validate(); err != nil {
		return nil, nil, err
	}

	decision, err := p.gate.Check(ctx, identity, req.UserTier)
	if errors.Is(err, quota.ErrUnknownTier) {
		return nil, nil, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}
	if err != nil {
		return nil, nil, fmt.Errorf("failed to check quota: %w", err)
	}
	if !decision.Allowed {
		p.collectors.Rejection(decision.Reason)
		return nil, nil, &RejectionError{Decision: decision}
	}

	plan, metas, err := p.produce(ctx, identity, req, decision.Profile)
	if err != nil {
		p.gate.Release(identity, decision)
		return nil, metas, err
	}
	return p.finish(ctx, identity, decision, plan), metas, nil
}

// produce serves the plan from cache or runs the ladder, validation and cache write.
func (p *Planner) produce(ctx context.Context, identity *auth.Identity, req PlanRequest, profile quota.TierProfile) (*Plan, []shared.AgentMeta, error) {
	validation := profile.NutritionValidation && p.validator != nil

	key, err := cache.Key(req, req.UserTier, validation)
	if err != nil {
		return nil, nil, err
	}
	if plan, ok := p.cached(ctx, key); ok {
		log.WithFields(log.Fields{"tier": req.UserTier, "key": key}).Info("serving plan from cache")
		return plan, nil, nil
	}

	s := newPlanState(req, profile)
	s.history = p.loadHistory(ctx, identity)
	s.avoid = history.Titles(s.history)

	p.fill(ctx, s, 0)
	if validation {
		p.validateMeals(ctx, s.targets())
	}

	plan, err := s.build()
	if err != nil {
		return nil, s.metas, err
	}
	plan.NutritionChecked = validation
	for _, m := range plan.Meals() {
		p.collectors.Meal(m.RecipeSource)
	}

	if p.cache != nil {
		if payload, err := json.Marshal(plan); err != nil {
			log.WithError(err).Warn("failed to marshal plan for cache")
		} else if err := p.cache.Set(ctx, key, payload); err != nil {
			log.WithError(err).Warn("failed to write plan cache")
		}
	}
	return plan, s.metas, nil
}

// finish stamps a fresh identity on the plan, counts it against the quota and persists it.
func (p *Planner) finish(ctx context.Context, identity *auth.Identity, checked quota.Decision, plan *Plan) *Plan {
	plan.ID = uuid.NewString()
	plan.CreatedAt = p.now().UTC()

	decision, err := p.gate.Record(ctx, identity, checked)
	if err != nil {
		log.WithError(err).WithField("plan", plan.ID).Error("failed to record plan usage")
		decision = checked
		decision.PlansUsed++
		if decision.Remaining > 0 {
			decision.Remaining--
		}
	}
	plan.Limits = Limits{Used: decision.PlansUsed, Total: decision.PlansAllowed, Remaining: decision.Remaining}

	p.persist(ctx, identity, plan)
	return plan
}

func (p *Planner) cached(ctx context.Context, key string) (*Plan, bool) {
	if p.cache == nil {
		return nil, false
	}
	payload, ok, err := p.cache.Get(ctx, key)
	if err != nil {
		log.WithError(err).Warn("plan cache lookup failed")
	}
	if !ok || err != nil {
		p.collectors.CacheLookup(false)
		return nil, false
	}
	var plan Plan
	if err := json.Unmarshal(payload, &plan); err != nil {
		log.WithError(err).Warn("discarding unreadable cached plan")
		p.collectors.CacheLookup(false)
		return nil, false
	}
	p.collectors.CacheLookup(true)
	return &plan, true
}

func (p *Planner) persist(ctx context.Context, identity *auth.Identity, plan *Plan) {
	if identity == nil || p.plans == nil {
		return
	}
	payload, err := json.Marshal(plan)
	if err != nil {
		log.WithError(err).Error("failed to marshal plan")
		return
	}
	err = p.plans.SavePlan(ctx, storage.StoredPlan{
		ID:        plan.ID,
		UserID:    identity.UserID,
		Payload:   payload,
		CreatedAt: plan.CreatedAt,
	})
	if err != nil {
		log.WithError(err).WithField("plan", plan.ID).Error("failed to persist plan")
	}
}

// loadHistory builds recency entries from the user's latest plans.
func (p *Planner) loadHistory(ctx context.Context, identity *auth.Identity) []history.Entry {
	if identity == nil || p.plans == nil {
		return nil
	}
	since := p.now().AddDate(0, 0, -p.lookbackDays)
	stored, err := p.plans.RecentPlans(ctx, identity.UserID, since, p.planLimit)
	if err != nil {
		log.WithError(err).WithField("user", identity.UserID).Warn("failed to load plan history")
		return nil
	}

	var entries []history.Entry
	for _, sp := range stored {
		var plan Plan
		if err := json.Unmarshal(sp.Payload, &plan); err != nil {
			log.WithError(err).WithField("plan", sp.ID).Warn("skipping unreadable plan in history")
			continue
		}
		entries = append(entries, history.FromMeals(sp.CreatedAt, plan.Meals())...)
	}
	return entries
}

// fill runs the fallback ladder until every slot holds a meal. The template rung never fails.
func (p *Planner) fill(ctx context.Context, s *planState, templateOffset int) {
	canSearch := s.profile.ExternalSearch && p.search != nil
	searched := false
	if canSearch && p.preferSearch {
		p.fillFromSearch(ctx, s)
		searched = true
	}

	if s.profile.GenerationMethod == quota.MethodHybrid {
		for _, sl := range s.open() {
			p.fillSlot(ctx, s, sl, recipe.SourceHybrid)
		}
		if open := s.open(); len(open) > 0 {
			p.fillBatch(ctx, s, open, 1, recipe.SourceHybridBatch)
		}
	} else if open := s.open(); len(open) > 0 {
		p.fillBatch(ctx, s, open, maxAttempts, recipe.SourceOpenAI)
	}

	if canSearch && !searched && len(s.open()) > 0 {
		p.fillFromSearch(ctx, s)
	}

	for _, sl := range s.open() {
		m := recipe.GenerateFromTemplate(recipe.TemplateSlot{
			MealType:       sl.mealType,
			Sequence:       sl.day*len(s.mealTypes) + sl.pos + templateOffset,
			Diets:          s.req.DietaryPreferences,
			Allergies:      s.req.Allergies,
			MaxCookingTime: s.req.MaxCookingTime,
			Servings:       s.req.Portions,
		}, func(m recipe.Meal) bool { return p.skip(s, m) })
		log.WithFields(log.Fields{"day": sl.day + 1, "mealType": sl.mealType, "recipe": m.RecipeName}).
			Warn("using template fallback meal")
		s.place(sl, m)
	}
}

// fillSlot runs up to maxAttempts single-meal generations with escalating parameters.
func (p *Planner) fillSlot(ctx context.Context, s *planState, sl slot, source string) bool {
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		err := p.generateMeal(ctx, s, sl, attempt, source)
		if err == nil {
			return true
		}
		log.WithError(err).WithFields(log.Fields{
			"attempt":  attempt,
			"provider": p.generator.Provider(),
			"day":      sl.day + 1,
			"mealType": sl.mealType,
		}).Warn("meal generation attempt failed")
	}
	return false
}

func (p *Planner) generateMeal(ctx context.Context, s *planState, sl slot, attempt int, source string) error {
	prompt, err := buildMealPrompt(promptData{
		Request:     s.req,
		DaysCount:   s.req.DaysCount,
		MealsPerDay: s.req.MealsPerDay,
		MealOrder:   s.mealTypes,
		MealType:    sl.mealType,
		DayIndex:    sl.day + 1,
		Exclusions:  s.exclusions,
		Avoid:       s.avoidList(),
	})
	if err != nil {
		return err
	}

	temperature, maxTokens := escalate(attempt, mealTokens)
	resp, meta, err := p.call(ctx, p.generator, llm.Request{
		Prompt:      prompt,
		System:      systemPrompt,
		Temperature: temperature,
		MaxTokens:   maxTokens,
	}, "MealGenerator", attempt, p.timeout)

	if err == nil {
		err = func() error {
			raw, err := recipe.ExtractJSON(resp.Output)
			if err != nil {
				return fmt.Errorf("%w (payload: %s)", err, shared.Truncate(outputText(resp.Output), 300))
			}
			m, err := recipe.NormalizeMeal(raw, s.defaults(sl.mealType, source))
			if err != nil {
				return err
			}
			return p.accept(s, sl, m)
		}()
	}
	p.record(s, meta, err)
	return err
}

// fillBatch asks for all given slots in one call, retrying the still-open ones.
func (p *Planner) fillBatch(ctx context.Context, s *planState, slots []slot, attempts int, source string) {
	for attempt := 1; attempt <= attempts && len(slots) > 0; attempt++ {
		err := p.generateBatch(ctx, s, slots, attempt, source)
		if err != nil {
			log.WithError(err).WithFields(log.Fields{
				"attempt":  attempt,
				"provider": p.batchGenerator.Provider(),
				"slots":    len(slots),
			}).Warn("batch generation attempt failed")
		}
		slots = s.stillOpen(slots)
	}
}

func (p *Planner) generateBatch(ctx context.Context, s *planState, slots []slot, attempt int, source string) error {
	ps := make([]promptSlot, len(slots))
	for i, sl := range slots {
		ps[i] = promptSlot{Day: sl.day + 1, MealType: sl.mealType}
	}
	prompt, err := buildBatchPrompt(promptData{
		Request:     s.req,
		DaysCount:   s.req.DaysCount,
		MealsPerDay: s.req.MealsPerDay,
		MealOrder:   s.mealTypes,
		Slots:       ps,
		Exclusions:  s.exclusions,
		Avoid:       s.avoidList(),
	})
	if err != nil {
		return err
	}

	temperature, maxTokens := escalate(attempt, batchTokensBase+batchTokensPerSlot*len(slots))
	resp, meta, err := p.call(ctx, p.batchGenerator, llm.Request{
		Prompt:      prompt,
		System:      systemPrompt,
		Temperature: temperature,
		MaxTokens:   min(maxTokens, batchTokensCap),
	}, "BatchGenerator", attempt, 3*p.timeout)

	if err == nil {
		err = func() error {
			raw, err := recipe.ExtractJSON(resp.Output)
			if err != nil {
				return fmt.Errorf("%w (payload: %s)", err, shared.Truncate(outputText(resp.Output), 300))
			}
			meals, err := recipe.NormalizeMeals(raw, s.defaults("", source))
			if err != nil {
				return err
			}
			if placed := p.assignBatch(s, meals, slots); placed == 0 {
				return fmt.Errorf("%w: none of %d batch meals accepted", errCandidateRejected, len(meals))
			}
			return nil
		}()
	}
	p.record(s, meta, err)
	return err
}

// assignBatch places batch meals into open slots of the same meal type, in order.
// Meals without a type take the next open slot.
func (p *Planner) assignBatch(s *planState, meals []recipe.Meal, slots []slot) int {
	remaining := append([]slot(nil), slots...)
	placed := 0
	for _, m := range meals {
		idx := -1
		for i, sl := range remaining {
			if m.MealType == "" || m.MealType == sl.mealType {
				idx = i
				break
			}
		}
		if idx < 0 {
			continue
		}
		if err := p.accept(s, remaining[idx], m); err != nil {
			log.WithError(err).WithField("recipe", m.RecipeName).Debug("batch meal rejected")
			continue
		}
		remaining = append(remaining[:idx], remaining[idx+1:]...)
		placed++
	}
	return placed
}

func (p *Planner) fillFromSearch(ctx context.Context, s *planState) {
	open := s.open()
	if len(open) == 0 {
		return
	}
	slots := make([]search.Slot, len(open))
	for i, sl := range open {
		slots[i] = search.Slot{Day: sl.day + 1, Position: sl.pos, MealType: sl.mealType}
	}

	meals, err := p.search.Fill(ctx, s.req.SearchCriteria(), slots, s.used, func(m recipe.Meal) bool { return p.skip(s, m) })
	if err != nil {
		log.WithError(err).WithField("slots", len(slots)).Warn("external recipe search failed")
		return
	}
	for i, m := range meals {
		if i >= len(open) {
			break
		}
		if err := p.accept(s, open[i], m); err != nil {
			log.WithError(err).WithField("recipe", m.RecipeName).Debug("search result rejected")
		}
	}
}

// accept checks a candidate and places it. Rejections are errCandidateRejected.
func (p *Planner) accept(s *planState, sl slot, m recipe.Meal) error {
	m.MealType = sl.mealType
	if err := m.Validate(); err != nil {
		return err
	}
	if v := recipe.Violations(m, s.req.DietaryPreferences, s.req.Allergies); len(v) > 0 {
		return fmt.Errorf("%w: %q contains %v", errCandidateRejected, m.RecipeName, v)
	}
	if s.hasTitle(m.RecipeName) {
		return fmt.Errorf("%w: %q already in plan", errCandidateRejected, m.RecipeName)
	}
	if ex, excluded := p.filter.Check(m, s.history); excluded {
		return fmt.Errorf("%w: %q excluded by recent history (%s)", errCandidateRejected, m.RecipeName, ex)
	}
	s.place(sl, m)
	return nil
}

func (p *Planner) skip(s *planState, m recipe.Meal) bool {
	return s.hasTitle(m.RecipeName) || p.filter.Excluded(m, s.history)
}

func (p *Planner) validateMeals(ctx context.Context, meals []*recipe.Meal) {
	if p.validator == nil || len(meals) == 0 {
		return
	}
	for _, o := range p.validator.ValidateAll(ctx, meals) {
		p.collectors.Deviation(o.Validation.MaxDeviation)
	}
}

// call invokes a provider with a call-local timeout.
func (p *Planner) call(ctx context.Context, gen llm.TextGenerator, req llm.Request, agent string, attempt int, timeout time.Duration) (llm.ContentResponse, shared.AgentMeta, error) {
	callCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	start := time.Now()
	resp, err := gen.GenerateContent(callCtx, req)
	meta := shared.AgentMeta{
		AgentName: agent,
		Provider:  gen.Provider(),
		Attempt:   attempt,
		Usage:     resp.Usage,
		Latency:   time.Since(start),
	}
	if err == nil && callCtx.Err() != nil {
		err = callCtx.Err()
	}
	return resp, meta, err
}

func (p *Planner) record(s *planState, meta shared.AgentMeta, err error) {
	meta.Outcome = outcome(err)
	s.metas = append(s.metas, meta)
	p.collectors.Attempt(meta.Provider, meta.Outcome)
	p.collectors.Tokens(meta.Provider, meta.Usage.PromptTokens, meta.Usage.CompletionTokens)
}

// escalate returns the temperature and output cap for a 1-based attempt.
func escalate(attempt, baseTokens int) (float32, int) {
	i := min(max(attempt, 1), len(temperatures)) - 1
	return temperatures[i], baseTokens + baseTokens*i/2
}

func outputText(out llm.ProviderOutput) string {
	switch v := out.(type) {
	case llm.Text:
		return string(v)
	case llm.ContentBlocks:
		var s string
		for _, b := range v {
			s += b.Text
		}
		return s
	default:
		return ""
	}
}
