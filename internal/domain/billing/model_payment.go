package billing

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Payment is an insert-only ledger row for one charge attempt.
type Payment struct {
	ID             string         `gorm:"primaryKey;size:36" json:"id"`
	SubscriptionID string         `gorm:"index;not null" json:"subscriptionId"`
	InvoiceID      string         `gorm:"index" json:"invoiceId"`
	Amount         int64          `json:"amount"`
	Currency       string         `json:"currency"`
	Status         PaymentStatus  `gorm:"size:32;not null" json:"status"`
	Gateway        Gateway        `gorm:"size:32" json:"gateway"`
	DueDate        time.Time      `json:"dueDate"`
	PaidAt         *time.Time     `json:"paidAt,omitempty"`
	FailureReason  *string        `json:"failureReason,omitempty"`
	RawPayload     datatypes.JSON `json:"rawPayload,omitempty"`
	CreatedAt      time.Time      `json:"createdAt"`
}

func (p *Payment) BeforeCreate(tx *gorm.DB) error {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	return nil
}
