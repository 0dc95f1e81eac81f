package billing

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
)

// PaymentOutcome is a gateway payment event already translated into the
// internal vocabulary.
type PaymentOutcome struct {
	Gateway               Gateway
	Status                PaymentStatus
	ExternalStatus        string
	CompanyID             string
	GatewaySubscriptionID string
	InvoiceID             string
	Amount                int64
	Currency              string
	DueDate               time.Time
	PaidAt                *time.Time
	FailureReason         string
	RawPayload            []byte
}

type ReconcileResult string

const (
	// ResultApplied: payment recorded and subscription status changed.
	ResultApplied ReconcileResult = "applied"
	// ResultRecorded: payment recorded, subscription left as is.
	ResultRecorded ReconcileResult = "recorded"
	// ResultIgnored: no subscription could be matched, or the event names
	// a gateway subscription that has been superseded.
	ResultIgnored ReconcileResult = "ignored"
	// ResultNoop: the status has no consequence.
	ResultNoop ReconcileResult = "noop"
)

type Reconciler struct {
	svc *Service
	log logrus.FieldLogger
}

func NewReconciler(svc *Service, log logrus.FieldLogger) *Reconciler {
	return &Reconciler{svc: svc, log: log.WithField("component", "reconciler")}
}

// Service exposes the store the reconciler writes to.
func (r *Reconciler) Service() *Service {
	return r.svc
}

// ResolveSubscription finds the subscription a gateway event refers to. A
// subscription linked to gatewaySubID wins; otherwise the company's
// subscription is used unless it is already linked to another gateway
// subscription, in which case the event is stale and nil is returned.
func (r *Reconciler) ResolveSubscription(ctx context.Context, gateway Gateway, companyID, gatewaySubID string) (*Subscription, error) {
	if gatewaySubID != "" {
		sub, err := r.svc.GetByGatewaySubscriptionID(ctx, gateway, gatewaySubID)
		if err != nil || sub != nil {
			return sub, err
		}
	}
	if companyID == "" {
		return nil, nil
	}

	sub, err := r.svc.GetSubscriptionByCompany(ctx, companyID)
	if err != nil || sub == nil {
		return sub, err
	}
	if gatewaySubID != "" && sub.GatewaySubscriptionID != nil && *sub.GatewaySubscriptionID != "" && *sub.GatewaySubscriptionID != gatewaySubID {
		r.log.WithFields(logrus.Fields{
			"subscription_id": sub.ID,
			"linked_to":       *sub.GatewaySubscriptionID,
			"event_for":       gatewaySubID,
		}).Info("event for superseded gateway subscription")
		return nil, nil
	}
	return sub, nil
}

// ApplyPaymentOutcome records a settled or failed payment and moves the
// subscription to ACTIVE or PAST_DUE. Other statuses change nothing.
// Canceled subscriptions keep their status.
func (r *Reconciler) ApplyPaymentOutcome(ctx context.Context, out PaymentOutcome) (ReconcileResult, error) {
	log := r.log.WithFields(logrus.Fields{
		"gateway":         out.Gateway,
		"company_id":      out.CompanyID,
		"invoice_id":      out.InvoiceID,
		"payment_status":  out.Status,
		"external_status": out.ExternalStatus,
	})

	sub, err := r.ResolveSubscription(ctx, out.Gateway, out.CompanyID, out.GatewaySubscriptionID)
	if err != nil {
		return "", err
	}
	if sub == nil {
		log.Info("no subscription matches payment event, ignoring")
		return ResultIgnored, nil
	}
	log = log.WithField("subscription_id", sub.ID)

	target, ok := SubscriptionStatusFor(out.Status)
	if !ok {
		log.Info("payment status has no subscription consequence")
		return ResultNoop, nil
	}

	currency := out.Currency
	if currency == "" {
		currency = sub.Snapshot().Currency
	}
	if _, err := r.svc.RecordPayment(ctx, RecordPaymentInput{
		SubscriptionID: sub.ID,
		InvoiceID:      out.InvoiceID,
		Amount:         out.Amount,
		Currency:       currency,
		Status:         out.Status,
		Gateway:        out.Gateway,
		DueDate:        out.DueDate,
		PaidAt:         out.PaidAt,
		FailureReason:  out.FailureReason,
		RawPayload:     out.RawPayload,
	}); err != nil {
		return "", err
	}

	if sub.Status == StatusCanceled {
		log.Warn("payment event for canceled subscription, status unchanged")
		return ResultRecorded, nil
	}

	upd := StatusUpdate{
		ActorID:   GatewayActor(out.Gateway).ID,
		ActorName: GatewayActor(out.Gateway).Name,
		Notes:     fmt.Sprintf("payment %s via %s", out.Status, out.Gateway),
	}
	if out.Status == PaymentFailed {
		upd.InvoiceID = out.InvoiceID
		if out.FailureReason != "" {
			upd.Notes += ": " + out.FailureReason
		}
	}
	if err := r.svc.UpdateSubscriptionStatus(ctx, sub.ID, target, upd); err != nil {
		return "", err
	}
	return ResultApplied, nil
}
