package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"meal-plan-generator/internal/planner"
	"meal-plan-generator/internal/shared"
	"meal-plan-generator/internal/storage"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
)

type planHandler struct {
	planner PlanService
	plans   PlanReader
	metrics MetaRecorder
}

type swapRequest struct {
	DayIndex int `json:"dayIndex" binding:"required,min=1"`
	Position int `json:"position" binding:"min=0"`
}

// Create generates a plan.
func (h *planHandler) Create(c *gin.Context) {
	var req planner.PlanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	plan, metas, err := h.planner.GeneratePlan(c.Request.Context(), identityFrom(c), req)
	h.record(c.Request.Context(), metas)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"plan": plan, "limits": plan.Limits})
}

// Get returns a stored plan owned by the caller.
func (h *planHandler) Get(c *gin.Context) {
	plan, ok := h.ownedPlan(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{"plan": plan})
}

// Swap replaces one meal of a stored plan.
func (h *planHandler) Swap(c *gin.Context) {
	var req swapRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	plan, ok := h.ownedPlan(c)
	if !ok {
		return
	}

	updated, metas, err := h.planner.SwapMeal(c.Request.Context(), identityFrom(c), plan, req.DayIndex, req.Position)
	h.record(c.Request.Context(), metas)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"plan": updated})
}

func (h *planHandler) ownedPlan(c *gin.Context) (*planner.Plan, bool) {
	identity := identityFrom(c)
	if identity == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "login required"})
		return nil, false
	}
	if h.plans == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "plan not found"})
		return nil, false
	}

	stored, err := h.plans.GetPlan(c.Request.Context(), c.Param("id"))
	if errors.Is(err, storage.ErrPlanNotFound) || (err == nil && stored.UserID != identity.UserID) {
		c.JSON(http.StatusNotFound, gin.H{"error": "plan not found"})
		return nil, false
	}
	if err != nil {
		log.WithError(err).Error("failed to load plan")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "load plan failed"})
		return nil, false
	}

	var plan planner.Plan
	if err := json.Unmarshal(stored.Payload, &plan); err != nil {
		log.WithError(err).WithField("plan", stored.ID).Error("stored plan is unreadable")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "load plan failed"})
		return nil, false
	}
	return &plan, true
}

func (h *planHandler) record(ctx context.Context, metas []shared.AgentMeta) {
	if h.metrics == nil {
		return
	}
	for _, m := range metas {
		if err := h.metrics.RecordMeta(ctx, m); err != nil {
			log.WithError(err).Warn("failed to record execution metric")
		}
	}
}

func writeError(c *gin.Context, err error) {
	var rejection *planner.RejectionError
	switch {
	case errors.As(err, &rejection):
		d := rejection.Decision
		c.JSON(http.StatusForbidden, gin.H{
			"error":        d.Reason,
			"allowed":      false,
			"limitReached": d.LimitReached,
			"plansUsed":    d.PlansUsed,
			"plansAllowed": d.PlansAllowed,
			"remaining":    d.Remaining,
		})
	case errors.Is(err, planner.ErrInvalidRequest):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, planner.ErrGenerationExhausted):
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "plan generation failed"})
	default:
		log.WithError(err).Error("plan request failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}
