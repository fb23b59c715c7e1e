// Package httpapi exposes plan generation over HTTP.
package httpapi

import (
	"context"
	"time"

	"meal-plan-generator/internal/auth"
	"meal-plan-generator/internal/metrics"
	"meal-plan-generator/internal/planner"
	"meal-plan-generator/internal/shared"
	"meal-plan-generator/internal/storage"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"
)

// PlanService generates and edits plans.
type PlanService interface {
	GeneratePlan(ctx context.Context, identity *auth.Identity, req planner.PlanRequest) (*planner.Plan, []shared.AgentMeta, error)
	SwapMeal(ctx context.Context, identity *auth.Identity, plan *planner.Plan, dayIndex, position int) (*planner.Plan, []shared.AgentMeta, error)
}

// PlanReader loads persisted plans.
type PlanReader interface {
	GetPlan(ctx context.Context, id string) (storage.StoredPlan, error)
}

// MetaRecorder stores provider-call metadata.
type MetaRecorder interface {
	RecordMeta(ctx context.Context, meta shared.AgentMeta) error
}

// Options configures the router.
type Options struct {
	Planner       PlanService
	Plans         PlanReader
	Authenticator *auth.Authenticator
	Metrics       MetaRecorder
	Gatherer      prometheus.Gatherer
	DataDir       string
}

// NewRouter registers the API routes.
func NewRouter(opts Options) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), requestLogger())

	h := &planHandler{
		planner: opts.Planner,
		plans:   opts.Plans,
		metrics: opts.Metrics,
	}

	r.GET("/health", func(c *gin.Context) {
		c.JSON(200, metrics.GetSysHealth(opts.DataDir))
	})
	if opts.Gatherer != nil {
		r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(opts.Gatherer, promhttp.HandlerOpts{})))
	}

	api := r.Group("/api")
	api.Use(identityMiddleware(opts.Authenticator))
	api.POST("/plans", h.Create)
	api.GET("/plans/:id", h.Get)
	api.POST("/plans/:id/swap", h.Swap)

	return r
}

const identityKey = "identity"

// identityMiddleware resolves the bearer token. Missing or invalid credentials leave the
// request anonymous.
func identityMiddleware(a *auth.Authenticator) gin.HandlerFunc {
	return func(c *gin.Context) {
		if a == nil {
			c.Next()
			return
		}
		identity, err := a.Resolve(c.GetHeader("Authorization"))
		if err != nil {
			log.WithError(err).WithField("path", c.FullPath()).Info("ignoring invalid credential")
		}
		if identity != nil {
			c.Set(identityKey, identity)
		}
		c.Next()
	}
}

func identityFrom(c *gin.Context) *auth.Identity {
	v, ok := c.Get(identityKey)
	if !ok {
		return nil
	}
	identity, _ := v.(*auth.Identity)
	return identity
}

func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		log.WithFields(log.Fields{
			"method":  c.Request.Method,
			"path":    c.Request.URL.Path,
			"status":  c.Writer.Status(),
			"latency": time.Since(start).String(),
		}).Info("request handled")
	}
}
