package access

import (
	"time"

	"poll-app/internal/domain/billing"
	"poll-app/internal/domain/plans"
)

type Policy struct {
	State        AccessState  `json:"state"`
	Capabilities []string     `json:"capabilities"`
	Limits       plans.Limits `json:"limits"`
	// DaysLeft counts whole days until the trial ends for trials, or until
	// the current period ends for canceled subscriptions still inside it.
	DaysLeft *int `json:"daysLeft,omitempty"`
}

func ComputePolicy(now time.Time, sub *billing.Subscription) Policy {
	state := ComputeAccessState(now, sub)

	p := Policy{
		State:        state,
		Capabilities: []string{},
	}
	if sub == nil {
		return p
	}

	p.Limits = sub.Snapshot().Limits
	p.Capabilities = CapabilitiesFor(state, p.Limits)
	switch {
	case state == AccessTrial:
		days := max(0, daysUntil(now, sub.TrialEnd()))
		p.DaysLeft = &days
	case sub.Status == billing.StatusCanceled && state == AccessLimited:
		days := daysUntil(now, sub.CurrentPeriodEnd)
		p.DaysLeft = &days
	}
	return p
}

func daysUntil(now, end time.Time) int {
	return int(end.Sub(now).Hours() / 24)
}
