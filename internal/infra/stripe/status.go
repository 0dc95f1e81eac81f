package stripe

import (
	"strings"

	"poll-app/internal/domain/billing"
)

// MapPaymentStatus translates invoice, checkout and payment intent states.
// Unknown values map to PENDING.
func MapPaymentStatus(s string) billing.PaymentStatus {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "paid", "succeeded":
		return billing.PaymentPaid
	case "open", "processing", "requires_action", "requires_confirmation", "requires_capture":
		return billing.PaymentAwaitingConfirmation
	case "uncollectible", "void", "canceled", "failed", "requires_payment_method":
		return billing.PaymentFailed
	case "refunded":
		return billing.PaymentRefunded
	default:
		return billing.PaymentPending
	}
}

// MapSubscriptionStatus translates a Stripe subscription status. The bool
// is false for states with no local equivalent.
func MapSubscriptionStatus(s string) (billing.SubscriptionStatus, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "active":
		return billing.StatusActive, true
	case "trialing":
		return billing.StatusTrialing, true
	case "past_due", "unpaid":
		return billing.StatusPastDue, true
	case "canceled", "incomplete_expired":
		return billing.StatusCanceled, true
	case "incomplete", "paused":
		return billing.StatusAwaitingConfirmation, true
	default:
		return "", false
	}
}
