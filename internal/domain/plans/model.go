package plans

import (
	"time"

	"gorm.io/datatypes"
)

type BillingPeriod string

const (
	Monthly BillingPeriod = "monthly"
	Yearly  BillingPeriod = "yearly"
)

// Days is the length of one billing period.
func (p BillingPeriod) Days() int {
	if p == Yearly {
		return 365
	}
	return 30
}

func (p BillingPeriod) Duration() time.Duration {
	return time.Duration(p.Days()) * 24 * time.Hour
}

// Limits are per-company quotas. Zero means unlimited.
type Limits struct {
	PollsPerMonth int `json:"pollsPerMonth"`
	ActivePolls   int `json:"activePolls"`
	Profiles      int `json:"profiles"`
	TeamMembers   int `json:"teamMembers"`
	StorageMB     int `json:"storageMb"`
}

type Plan struct {
	ID            string                      `gorm:"primaryKey;size:64" json:"id"`
	Slug          string                      `gorm:"size:64;not null;uniqueIndex:idx_plans_slug" json:"slug"`
	Name          string                      `gorm:"size:120;not null" json:"name"`
	Price         int64                       `gorm:"not null;default:0" json:"price"` // minor units
	Currency      string                      `gorm:"size:3;not null" json:"currency"`
	BillingPeriod BillingPeriod               `gorm:"size:16;not null" json:"billingPeriod"`
	TrialDays     int                         `gorm:"not null;default:0" json:"trialDays"`
	Limits        datatypes.JSONType[Limits]  `json:"limits"`
	Features      datatypes.JSONSlice[string] `json:"features"`
	Active        bool                        `gorm:"not null;default:true" json:"active"`
	SortOrder     int                         `gorm:"not null;default:0;index" json:"sortOrder"`
	Metadata      datatypes.JSONMap           `json:"metadata,omitempty"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func (p Plan) HasTrial() bool {
	return p.TrialDays > 0
}

// StripePriceID returns the Stripe price recorded by the price sync. It is
// empty when no price was synced or when the plan's amount changed after the
// sync.
func (p Plan) StripePriceID() string {
	id, _ := p.Metadata["stripePriceId"].(string)
	if id == "" {
		return ""
	}
	switch amount := p.Metadata["stripePriceAmount"].(type) {
	case float64:
		if int64(amount) != p.Price {
			return ""
		}
	case int64:
		if amount != p.Price {
			return ""
		}
	default:
		return ""
	}
	return id
}
