package billing

import (
	"context"
	"encoding/json"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/datatypes"
)

type RecordPaymentInput struct {
	SubscriptionID string
	InvoiceID      string
	Amount         int64
	Currency       string
	Status         PaymentStatus
	Gateway        Gateway
	DueDate        time.Time
	PaidAt         *time.Time
	FailureReason  string
	RawPayload     []byte
}

// RecordPayment appends a ledger row. Rows are never updated, so repeated
// deliveries of the same invoice produce repeated rows.
func (s *Service) RecordPayment(ctx context.Context, in RecordPaymentInput) (*Payment, error) {
	if in.SubscriptionID == "" {
		return nil, fmt.Errorf("%w: subscriptionId is required", ErrInvalidInput)
	}
	if !in.Status.Valid() {
		return nil, fmt.Errorf("%w: payment status %q", ErrInvalidStatus, in.Status)
	}

	p := Payment{
		SubscriptionID: in.SubscriptionID,
		InvoiceID:      in.InvoiceID,
		Amount:         in.Amount,
		Currency:       strings.ToLower(in.Currency),
		Status:         in.Status,
		Gateway:        in.Gateway,
		DueDate:        in.DueDate,
		PaidAt:         in.PaidAt,
		RawPayload:     rawJSON(in.RawPayload),
	}
	if p.InvoiceID == "" {
		p.InvoiceID = "local_" + uuid.NewString()
	}
	if p.DueDate.IsZero() {
		p.DueDate = s.now()
	}
	if in.FailureReason != "" {
		reason := in.FailureReason
		p.FailureReason = &reason
	}

	if err := s.db.WithContext(ctx).Create(&p).Error; err != nil {
		return nil, fmt.Errorf("record payment: %w", err)
	}

	s.log.WithFields(logrus.Fields{
		"subscription_id": p.SubscriptionID,
		"invoice_id":      p.InvoiceID,
		"status":          p.Status,
		"gateway":         p.Gateway,
	}).Info("payment recorded")
	s.metrics.ObservePayment(string(p.Gateway), string(p.Status))
	return &p, nil
}

// ListPaymentsBySubscription returns the ledger of a subscription ordered
// by due date, latest first.
func (s *Service) ListPaymentsBySubscription(ctx context.Context, subscriptionID string) ([]Payment, error) {
	var rows []Payment
	if err := s.db.WithContext(ctx).Where("subscription_id = ?", subscriptionID).Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("list payments for %s: %w", subscriptionID, err)
	}
	slices.SortStableFunc(rows, func(a, b Payment) int {
		return b.DueDate.Compare(a.DueDate)
	})
	return rows, nil
}

// rawJSON keeps vendor payloads as JSON; anything else is stored as a JSON
// string so the column stays valid.
func rawJSON(b []byte) datatypes.JSON {
	if len(b) == 0 {
		return nil
	}
	if json.Valid(b) {
		return datatypes.JSON(b)
	}
	quoted, _ := json.Marshal(string(b))
	return datatypes.JSON(quoted)
}
