package usersapi

import (
	"time"

	"poll-app/internal/domain/access"
	"poll-app/internal/domain/billing"
	"poll-app/internal/domain/companies"
)

func BuildSubscriptionDTO(s *billing.Subscription) *SubscriptionDTO {
	if s == nil {
		return nil
	}
	return &SubscriptionDTO{
		ID:                s.ID,
		Status:            string(s.Status),
		PlanID:            s.PlanID,
		PlanName:          s.Snapshot().Name,
		Gateway:           string(s.Gateway),
		StartsAt:          s.StartDate,
		CurrentPeriodEnd:  s.CurrentPeriodEnd,
		CancelAtPeriodEnd: s.CancelAtPeriodEnd,
		PendingInvoiceID:  s.PendingInvoiceID,
	}
}

func BuildCompanyDTO(now time.Time, c companies.Company, sub *billing.Subscription) CompanyDTO {
	return CompanyDTO{
		ID:           c.ID,
		Name:         c.Name,
		Slug:         c.Slug,
		Subscription: BuildSubscriptionDTO(sub),
		Access:       access.ComputePolicy(now, sub),
	}
}
