package billing

import "strings"

type SubscriptionStatus string

const (
	StatusTrialing             SubscriptionStatus = "TRIALING"
	StatusActive               SubscriptionStatus = "ACTIVE"
	StatusAwaitingConfirmation SubscriptionStatus = "AWAITING_CONFIRMATION"
	StatusPastDue              SubscriptionStatus = "PAST_DUE"
	StatusCanceled             SubscriptionStatus = "CANCELED"
)

func (s SubscriptionStatus) Valid() bool {
	switch s {
	case StatusTrialing, StatusActive, StatusAwaitingConfirmation, StatusPastDue, StatusCanceled:
		return true
	}
	return false
}

// Entitled reports whether the company may use paid features.
func (s SubscriptionStatus) Entitled() bool {
	return s == StatusActive || s == StatusTrialing
}

// ParseSubscriptionStatus accepts any casing and surrounding whitespace.
func ParseSubscriptionStatus(s string) (SubscriptionStatus, bool) {
	st := SubscriptionStatus(strings.ToUpper(strings.TrimSpace(s)))
	return st, st.Valid()
}

type PaymentStatus string

const (
	PaymentPending              PaymentStatus = "PENDING"
	PaymentAwaitingConfirmation PaymentStatus = "AWAITING_CONFIRMATION"
	PaymentPaid                 PaymentStatus = "PAID"
	PaymentFailed               PaymentStatus = "FAILED"
	PaymentRefunded             PaymentStatus = "REFUNDED"
)

func (s PaymentStatus) Valid() bool {
	switch s {
	case PaymentPending, PaymentAwaitingConfirmation, PaymentPaid, PaymentFailed, PaymentRefunded:
		return true
	}
	return false
}

// SubscriptionStatusFor returns the subscription status a payment outcome
// moves the subscription to. Only settled and failed payments have one.
func SubscriptionStatusFor(p PaymentStatus) (SubscriptionStatus, bool) {
	switch p {
	case PaymentPaid:
		return StatusActive, true
	case PaymentFailed:
		return StatusPastDue, true
	}
	return "", false
}

type Gateway string

const (
	GatewayStripe  Gateway = "stripe"
	GatewayPagarme Gateway = "pagarme"
	GatewayManual  Gateway = "manual"
)
