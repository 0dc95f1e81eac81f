package access

import (
	"time"

	"poll-app/internal/domain/billing"
)

// ComputeAccessState maps a company's current subscription to what the
// product lets it do: trial|full|limited|locked.
func ComputeAccessState(now time.Time, sub *billing.Subscription) AccessState {
	// No subscription at all
	if sub == nil {
		return AccessLocked
	}

	switch sub.Status {
	case billing.StatusTrialing:
		return AccessTrial
	case billing.StatusActive:
		return AccessFull
	case billing.StatusPastDue, billing.StatusAwaitingConfirmation:
		return AccessLimited
	case billing.StatusCanceled:
		// Read-only until the paid-through date
		if now.Before(sub.CurrentPeriodEnd) {
			return AccessLimited
		}
		return AccessLocked
	default:
		return AccessLocked
	}
}
