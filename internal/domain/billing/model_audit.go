package billing

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type SubscriptionAudit struct {
	ID             string              `gorm:"primaryKey;size:36" json:"id"`
	SubscriptionID string              `gorm:"index;not null" json:"subscriptionId"`
	ActorID        string              `json:"actorId,omitempty"`
	ActorName      string              `json:"actorName,omitempty"`
	FromPlan       *string             `json:"fromPlan,omitempty"`
	ToPlan         *string             `json:"toPlan,omitempty"`
	FromStatus     *SubscriptionStatus `json:"fromStatus,omitempty"`
	ToStatus       *SubscriptionStatus `json:"toStatus,omitempty"`
	Notes          string              `json:"notes,omitempty"`
	CreatedAt      time.Time           `json:"createdAt"`
}

func (SubscriptionAudit) TableName() string {
	return "subscription_audit"
}

func (a *SubscriptionAudit) BeforeCreate(tx *gorm.DB) error {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	return nil
}

// Actor identifies who triggered a change. Webhooks use the gateway name.
type Actor struct {
	ID   string
	Name string
}

var SystemActor = Actor{ID: "system", Name: "system"}

func GatewayActor(g Gateway) Actor {
	return Actor{ID: "webhook:" + string(g), Name: string(g)}
}
