package stripe

import (
	"encoding/json"
	"fmt"
	"time"

	"poll-app/internal/domain/billing"

	stripeapi "github.com/stripe/stripe-go/v75"
	"github.com/stripe/stripe-go/v75/webhook"
)

// VerifyEvent checks the Stripe-Signature header against the endpoint
// secret and decodes the event.
func VerifyEvent(payload []byte, signature, secret string) (stripeapi.Event, error) {
	return webhook.ConstructEventWithOptions(payload, signature, secret, webhook.ConstructEventOptions{
		IgnoreAPIVersionMismatch: true,
	})
}

// InvoiceCompanyID looks for the company id on the invoice, its lines and
// the expanded subscription.
func InvoiceCompanyID(inv *stripeapi.Invoice) string {
	if id := billing.CompanyIDFromMetadata(inv.Metadata); id != "" {
		return id
	}
	if inv.Lines != nil {
		for _, line := range inv.Lines.Data {
			if line == nil {
				continue
			}
			if id := billing.CompanyIDFromMetadata(line.Metadata); id != "" {
				return id
			}
		}
	}
	if inv.Subscription != nil {
		return billing.CompanyIDFromMetadata(inv.Subscription.Metadata)
	}
	return ""
}

// InvoiceOutcome turns an invoice event into a payment outcome with the
// given status.
func InvoiceOutcome(inv *stripeapi.Invoice, status billing.PaymentStatus, raw json.RawMessage) billing.PaymentOutcome {
	out := billing.PaymentOutcome{
		Gateway:        billing.GatewayStripe,
		Status:         status,
		ExternalStatus: string(inv.Status),
		CompanyID:      InvoiceCompanyID(inv),
		InvoiceID:      inv.ID,
		Amount:         inv.AmountDue,
		Currency:       string(inv.Currency),
		RawPayload:     raw,
	}
	if inv.Subscription != nil {
		out.GatewaySubscriptionID = inv.Subscription.ID
	}
	switch {
	case inv.DueDate > 0:
		out.DueDate = time.Unix(inv.DueDate, 0).UTC()
	case inv.Created > 0:
		out.DueDate = time.Unix(inv.Created, 0).UTC()
	}
	if status == billing.PaymentPaid {
		out.Amount = inv.AmountPaid
		if inv.StatusTransitions != nil && inv.StatusTransitions.PaidAt > 0 {
			paidAt := time.Unix(inv.StatusTransitions.PaidAt, 0).UTC()
			out.PaidAt = &paidAt
		}
	}
	if status == billing.PaymentFailed {
		out.FailureReason = "invoice payment failed"
		if inv.PaymentIntent != nil && inv.PaymentIntent.LastPaymentError != nil && inv.PaymentIntent.LastPaymentError.Msg != "" {
			out.FailureReason = inv.PaymentIntent.LastPaymentError.Msg
		}
	}
	return out
}

// SessionCompanyID prefers session metadata and falls back to the client
// reference id set at checkout.
func SessionCompanyID(s *stripeapi.CheckoutSession) string {
	if id := billing.CompanyIDFromMetadata(s.Metadata); id != "" {
		return id
	}
	return s.ClientReferenceID
}

// SessionOutcome builds the payment outcome of a completed checkout.
func SessionOutcome(s *stripeapi.CheckoutSession, raw json.RawMessage) billing.PaymentOutcome {
	out := billing.PaymentOutcome{
		Gateway:        billing.GatewayStripe,
		Status:         MapPaymentStatus(string(s.PaymentStatus)),
		ExternalStatus: string(s.PaymentStatus),
		CompanyID:      SessionCompanyID(s),
		Amount:         s.AmountTotal,
		Currency:       string(s.Currency),
		RawPayload:     raw,
	}
	if s.Invoice != nil {
		out.InvoiceID = s.Invoice.ID
	}
	if out.InvoiceID == "" {
		out.InvoiceID = s.ID
	}
	if s.Subscription != nil {
		out.GatewaySubscriptionID = s.Subscription.ID
	}
	if s.Created > 0 {
		out.DueDate = time.Unix(s.Created, 0).UTC()
	}
	if out.Status == billing.PaymentPaid {
		paidAt := out.DueDate
		if paidAt.IsZero() {
			paidAt = time.Now().UTC()
		}
		out.PaidAt = &paidAt
	}
	return out
}

// Period returns the current billing window of a Stripe subscription.
func Period(sub *stripeapi.Subscription) (time.Time, time.Time, error) {
	if sub.CurrentPeriodStart == 0 || sub.CurrentPeriodEnd == 0 {
		return time.Time{}, time.Time{}, fmt.Errorf("subscription %s has no current period", sub.ID)
	}
	return time.Unix(sub.CurrentPeriodStart, 0).UTC(), time.Unix(sub.CurrentPeriodEnd, 0).UTC(), nil
}
