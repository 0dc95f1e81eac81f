package billing

import (
	"time"

	"poll-app/internal/domain/plans"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// PlanSnapshot freezes the commercial terms of a plan at subscribe or
// switch time. Later catalog edits do not reach existing subscriptions.
type PlanSnapshot struct {
	Slug          string              `json:"slug"`
	Name          string              `json:"name"`
	Price         int64               `json:"price"`
	Currency      string              `json:"currency"`
	BillingPeriod plans.BillingPeriod `json:"billingPeriod"`
	TrialDays     int                 `json:"trialDays,omitempty"`
	Limits        plans.Limits        `json:"limits"`
}

func SnapshotOf(p *plans.Plan) PlanSnapshot {
	return PlanSnapshot{
		Slug:          p.Slug,
		Name:          p.Name,
		Price:         p.Price,
		Currency:      p.Currency,
		BillingPeriod: p.BillingPeriod,
		TrialDays:     p.TrialDays,
		Limits:        p.Limits.Data(),
	}
}

func newSnapshotColumn(p *plans.Plan) datatypes.JSONType[PlanSnapshot] {
	return datatypes.NewJSONType(SnapshotOf(p))
}

type Subscription struct {
	ID                    string                           `gorm:"primaryKey;size:36" json:"id"`
	CompanyID             string                           `gorm:"index;not null" json:"companyId"`
	CompanyName           string                           `json:"companyName"`
	PlanID                string                           `gorm:"not null" json:"planId"`
	PlanSnapshot          datatypes.JSONType[PlanSnapshot] `json:"planSnapshot"`
	Status                SubscriptionStatus               `gorm:"size:32;not null" json:"status"`
	StartDate             time.Time                        `json:"startDate"`
	CurrentPeriodStart    time.Time                        `json:"currentPeriodStart"`
	CurrentPeriodEnd      time.Time                        `json:"currentPeriodEnd"`
	CancelAtPeriodEnd     bool                             `json:"cancelAtPeriodEnd"`
	PaymentMethod         string                           `json:"paymentMethod,omitempty"`
	PendingInvoiceID      *string                          `json:"pendingInvoiceId,omitempty"`
	Notes                 string                           `json:"notes,omitempty"`
	Gateway               Gateway                          `gorm:"size:32" json:"gateway,omitempty"`
	GatewaySubscriptionID *string                          `gorm:"index" json:"gatewaySubscriptionId,omitempty"`
	Version               int                              `gorm:"not null;default:1" json:"version"`
	CreatedAt             time.Time                        `json:"createdAt"`
	UpdatedAt             time.Time                        `json:"updatedAt"`
}

func (s *Subscription) BeforeCreate(tx *gorm.DB) error {
	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	if s.Version == 0 {
		s.Version = 1
	}
	return nil
}

// Snapshot returns the captured plan terms.
func (s *Subscription) Snapshot() PlanSnapshot {
	return s.PlanSnapshot.Data()
}

// TrialEnd is StartDate plus the snapshot's trial days. Subscriptions
// captured without trial days fall back to the current period end.
func (s *Subscription) TrialEnd() time.Time {
	if days := s.Snapshot().TrialDays; days > 0 && !s.StartDate.IsZero() {
		return s.StartDate.AddDate(0, 0, days)
	}
	return s.CurrentPeriodEnd
}
