package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Collectors holds the service's Prometheus instruments. A nil *Collectors is a no-op.
type Collectors struct {
	attempts       *prometheus.CounterVec
	meals          *prometheus.CounterVec
	cacheLookups   *prometheus.CounterVec
	rejections     *prometheus.CounterVec
	deviation      prometheus.Histogram
	providerTokens *prometheus.CounterVec
}

// NewCollectors creates the instruments and registers them on reg.
func NewCollectors(reg prometheus.Registerer) *Collectors {
	c := &Collectors{
		attempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "meal_planner_generation_attempts_total",
			Help: "Batch generation attempts by provider and outcome.",
		}, []string{"provider", "outcome"}),
		meals: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "meal_planner_meals_total",
			Help: "Generated meals by the recipe source that produced them.",
		}, []string{"source"}),
		cacheLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "meal_planner_cache_lookups_total",
			Help: "Response cache lookups by result.",
		}, []string{"result"}),
		rejections: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "meal_planner_quota_rejections_total",
			Help: "Requests rejected by the quota gate.",
		}, []string{"reason"}),
		deviation: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "meal_planner_nutrition_deviation_percent",
			Help:    "Maximum macro deviation between estimated and verified nutrition.",
			Buckets: []float64{2.5, 5, 10, 20, 35, 50, 75, 100},
		}),
		providerTokens: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "meal_planner_provider_tokens_total",
			Help: "Tokens consumed by provider and kind.",
		}, []string{"provider", "kind"}),
	}
	if reg != nil {
		reg.MustRegister(c.attempts, c.meals, c.cacheLookups, c.rejections, c.deviation, c.providerTokens)
	}
	return c
}

func (c *Collectors) Attempt(provider, outcome string) {
	if c == nil {
		return
	}
	c.attempts.WithLabelValues(provider, outcome).Inc()
}

// Meal counts one meal placed in a plan by its source.
func (c *Collectors) Meal(source string) {
	if c == nil {
		return
	}
	c.meals.WithLabelValues(source).Inc()
}

func (c *Collectors) CacheLookup(hit bool) {
	if c == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	c.cacheLookups.WithLabelValues(result).Inc()
}

func (c *Collectors) Rejection(reason string) {
	if c == nil {
		return
	}
	c.rejections.WithLabelValues(reason).Inc()
}

func (c *Collectors) Deviation(percent float64) {
	if c == nil {
		return
	}
	c.deviation.Observe(percent)
}

func (c *Collectors) Tokens(provider string, prompt, completion int) {
	if c == nil {
		return
	}
	c.providerTokens.WithLabelValues(provider, "prompt").Add(float64(prompt))
	c.providerTokens.WithLabelValues(provider, "completion").Add(float64(completion))
}
