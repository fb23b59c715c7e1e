package planner

import (
	"errors"
	"fmt"

	"meal-plan-generator/internal/quota"
)

var (
	ErrInvalidRequest      = errors.New("invalid plan request")
	ErrGenerationExhausted = errors.New("every generation strategy failed")
)

// ReasonSwapLimitReached is reported when a plan has used all of its swaps.
const ReasonSwapLimitReached = "swapLimitReached"

// RejectionError is returned when the quota gate refuses a request. It carries the
// gate's decision so callers can render the reason and counters.
type RejectionError struct {
	Decision quota.Decision
}

func (e *RejectionError) Error() string {
	return fmt.Sprintf("plan request rejected: %s (%d/%d used)", e.Decision.Reason, e.Decision.PlansUsed, e.Decision.PlansAllowed)
}

// Reason returns the machine-readable rejection reason.
func (e *RejectionError) Reason() string {
	return e.Decision.Reason
}
