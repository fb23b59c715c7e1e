package quota

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"meal-plan-generator/internal/auth"
)

// Rejection reasons.
const (
	ReasonLimitReached    = "limitReached"
	ReasonRequiresLogin   = "requiresLogin"
	ReasonRequiresUpgrade = "requiresUpgrade"
)

var (
	ErrUnknownTier  = errors.New("unknown tier")
	ErrUserNotFound = errors.New("user not found")
)

// Usage is the per-user state the gate reads and mutates.
type Usage struct {
	Tier             string
	MonthlyPlanCount int
	LastPlanDate     time.Time
}

// UserStore persists usage counters.
type UserStore interface {
	GetUsage(ctx context.Context, userID string) (Usage, error)
	SaveUsage(ctx context.Context, userID string, usage Usage) error
}

// Decision is the gate's answer for one request.
type Decision struct {
	Allowed      bool        `json:"allowed"`
	LimitReached bool        `json:"limitReached"`
	PlansUsed    int         `json:"plansUsed"`
	PlansAllowed int         `json:"plansAllowed"`
	Remaining    int         `json:"remaining"`
	Reason       string      `json:"reason,omitempty"`
	Profile      TierProfile `json:"-"`
	// Reserved marks an allowed decision holding one slot of a limited quota.
	// The slot is held until Record or Release.
	Reserved bool `json:"-"`
}

type Gate struct {
	profiles map[string]TierProfile
	users    UserStore
	now      func() time.Time

	mu      sync.Mutex
	pending map[string]int
}

func NewGate(profiles map[string]TierProfile, users UserStore) *Gate {
	return &Gate{profiles: profiles, users: users, now: time.Now, pending: map[string]int{}}
}

// WithClock overrides the gate's clock.
func (g *Gate) WithClock(now func() time.Time) *Gate {
	g.now = now
	return g
}

// Profile looks up a tier.
func (g *Gate) Profile(tier string) (TierProfile, bool) {
	p, ok := g.profiles[tier]
	return p, ok
}

// SubscribedTier returns the tier identity is subscribed to: the stored tier, else the
// token's tier, else free.
func (g *Gate) SubscribedTier(ctx context.Context, identity *auth.Identity) (string, error) {
	if identity == nil {
		return TierFree, nil
	}
	g.mu.Lock()
	defer g.mu.Unlock()

	usage, err := g.currentUsage(ctx, identity)
	if err != nil {
		return "", err
	}
	return usage.Tier, nil
}

// Check decides whether identity may generate a plan on tier. A stale monthly counter is
// reset as part of the check. An allowed decision on a limited tier reserves a slot, so
// concurrent checks for the same user cannot overrun the quota; pass the decision to
// Record once the plan is delivered, or to Release when it is not.
func (g *Gate) Check(ctx context.Context, identity *auth.Identity, tier string) (Decision, error) {
	profile, ok := g.profiles[tier]
	if !ok {
		return Decision{}, fmt.Errorf("%w: %q", ErrUnknownTier, tier)
	}

	if identity == nil {
		if profile.RequireLogin {
			return Decision{Reason: ReasonRequiresLogin, PlansAllowed: profile.MonthlyPlans, Profile: profile}, nil
		}
		return Decision{Allowed: true, PlansAllowed: profile.MonthlyPlans, Remaining: profile.MonthlyPlans, Profile: profile}, nil
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	usage, err := g.currentUsage(ctx, identity)
	if err != nil {
		return Decision{}, err
	}
	used := usage.MonthlyPlanCount + g.pending[identity.UserID]

	subscribed, ok := g.profiles[usage.Tier]
	if !ok {
		subscribed = g.profiles[TierFree]
	}
	if profile.Rank > subscribed.Rank {
		return Decision{Reason: ReasonRequiresUpgrade, PlansUsed: used, PlansAllowed: profile.MonthlyPlans, Profile: profile}, nil
	}

	d := Decision{
		Allowed:      true,
		PlansUsed:    used,
		PlansAllowed: profile.MonthlyPlans,
		Remaining:    Unlimited,
		Profile:      profile,
	}
	if profile.MonthlyPlans == Unlimited {
		return d, nil
	}
	d.Remaining = max(profile.MonthlyPlans-used, 0)
	if used >= profile.MonthlyPlans {
		d.Allowed = false
		d.LimitReached = true
		d.Reason = ReasonLimitReached
		return d, nil
	}
	g.pending[identity.UserID]++
	d.Reserved = true
	return d, nil
}

// Record counts one accepted plan for the decision Check returned and returns the updated
// limits. The decision's reservation is released even when saving fails.
// Anonymous requests are not counted.
func (g *Gate) Record(ctx context.Context, identity *auth.Identity, checked Decision) (Decision, error) {
	profile := checked.Profile
	if identity == nil {
		return Decision{Allowed: true, PlansAllowed: profile.MonthlyPlans, Remaining: profile.MonthlyPlans, Profile: profile}, nil
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	g.release(identity.UserID, checked)

	usage, err := g.currentUsage(ctx, identity)
	if err != nil {
		return Decision{}, err
	}
	usage.MonthlyPlanCount++
	usage.LastPlanDate = g.now()
	if err := g.users.SaveUsage(ctx, identity.UserID, usage); err != nil {
		return Decision{}, fmt.Errorf("failed to record plan usage: %w", err)
	}

	d := Decision{Allowed: true, PlansUsed: usage.MonthlyPlanCount, PlansAllowed: profile.MonthlyPlans, Remaining: Unlimited, Profile: profile}
	if profile.MonthlyPlans != Unlimited {
		d.Remaining = max(profile.MonthlyPlans-usage.MonthlyPlanCount, 0)
	}
	return d, nil
}

// Release gives back the slot held by a decision whose plan was never delivered.
func (g *Gate) Release(identity *auth.Identity, checked Decision) {
	if identity == nil || !checked.Reserved {
		return
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	g.release(identity.UserID, checked)
}

func (g *Gate) release(userID string, checked Decision) {
	if !checked.Reserved {
		return
	}
	if g.pending[userID] <= 1 {
		delete(g.pending, userID)
		return
	}
	g.pending[userID]--
}

// currentUsage loads usage and applies the monthly reset.
func (g *Gate) currentUsage(ctx context.Context, identity *auth.Identity) (Usage, error) {
	usage, err := g.users.GetUsage(ctx, identity.UserID)
	if errors.Is(err, ErrUserNotFound) {
		usage = Usage{Tier: identity.Tier}
	} else if err != nil {
		return Usage{}, fmt.Errorf("failed to load usage: %w", err)
	}
	if usage.Tier == "" {
		usage.Tier = identity.Tier
	}
	if usage.Tier == "" {
		usage.Tier = TierFree
	}

	now := g.now()
	monthStart := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())
	if usage.MonthlyPlanCount > 0 && usage.LastPlanDate.Before(monthStart) {
		usage.MonthlyPlanCount = 0
		if err := g.users.SaveUsage(ctx, identity.UserID, usage); err != nil {
			return Usage{}, fmt.Errorf("failed to reset monthly usage: %w", err)
		}
	}
	return usage, nil
}
