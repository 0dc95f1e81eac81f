package pagarme

import (
	"strings"

	"poll-app/internal/domain/billing"
)

// MapPaymentStatus translates a Pagar.me transaction status. Unknown values
// map to PENDING so new vendor states never block a postback.
func MapPaymentStatus(s string) billing.PaymentStatus {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "paid", "captured", "overpaid":
		return billing.PaymentPaid
	case "processing", "authorized", "waiting_payment", "analyzing", "pending_review", "pending", "underpaid":
		return billing.PaymentAwaitingConfirmation
	case "refused", "chargedback", "canceled", "failed", "with_error", "not_authorized":
		return billing.PaymentFailed
	case "refunded", "pending_refund", "partial_refunded":
		return billing.PaymentRefunded
	default:
		return billing.PaymentPending
	}
}
