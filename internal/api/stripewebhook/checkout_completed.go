package stripewebhooks

import (
	"encoding/json"
	"fmt"

	"poll-app/internal/domain/billing"
	stripeinfra "poll-app/internal/infra/stripe"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/stripe/stripe-go/v75"
)

// handleCheckoutSessionCompleted creates the subscription when the company
// has none, moves it to the purchased plan, links the Stripe subscription
// and applies the payment when the session is already paid.
func (h *Handler) handleCheckoutSessionCompleted(c *gin.Context, session *stripe.CheckoutSession, raw json.RawMessage) (billing.ReconcileResult, error) {
	ctx := c.Request.Context()

	companyID := stripeinfra.SessionCompanyID(session)
	planID := session.Metadata["planId"]
	gatewaySubID := ""
	if session.Subscription != nil {
		gatewaySubID = session.Subscription.ID
	}

	sub, err := h.checkoutSubscription(c, companyID, gatewaySubID)
	if err != nil {
		return "", err
	}

	actor := billing.GatewayActor(billing.GatewayStripe)
	switch {
	case sub == nil || sub.Status == billing.StatusCanceled:
		if companyID == "" || planID == "" {
			h.log.WithField("session_id", session.ID).Info("checkout session without company or plan, ignoring")
			return billing.ResultIgnored, nil
		}
		companyName := ""
		if session.CustomerDetails != nil {
			companyName = session.CustomerDetails.Name
		}
		id, err := h.svc.CreateSubscription(ctx, billing.CreateSubscriptionInput{
			CompanyID:             companyID,
			CompanyName:           companyName,
			PlanID:                planID,
			PaymentMethod:         "card",
			Gateway:               billing.GatewayStripe,
			GatewaySubscriptionID: gatewaySubID,
			Actor:                 actor,
		})
		if err != nil {
			return "", fmt.Errorf("create subscription from checkout: %w", err)
		}
		h.log.WithField("subscription_id", id).Info("subscription created from checkout")

	case planID != "" && sub.PlanID != planID:
		if err := h.svc.SwitchSubscriptionPlan(ctx, sub.ID, planID, actor.ID, actor.Name); err != nil {
			return "", fmt.Errorf("switch plan from checkout: %w", err)
		}
		fallthrough

	default:
		if gatewaySubID != "" {
			if err := h.cancelSuperseded(c, sub, gatewaySubID); err != nil {
				return "", err
			}
			if err := h.svc.LinkGatewaySubscription(ctx, sub.ID, billing.GatewayStripe, gatewaySubID); err != nil {
				return "", fmt.Errorf("link stripe subscription: %w", err)
			}
		}
	}

	return h.reconciler.ApplyPaymentOutcome(ctx, stripeinfra.SessionOutcome(session, raw))
}

// checkoutSubscription resolves by company first: a completed checkout is
// the event that moves a company onto a new Stripe subscription.
func (h *Handler) checkoutSubscription(c *gin.Context, companyID, gatewaySubID string) (*billing.Subscription, error) {
	ctx := c.Request.Context()
	if companyID != "" {
		sub, err := h.svc.GetSubscriptionByCompany(ctx, companyID)
		if err != nil || sub != nil {
			return sub, err
		}
	}
	return h.svc.GetByGatewaySubscriptionID(ctx, billing.GatewayStripe, gatewaySubID)
}

// cancelSuperseded cancels the Stripe subscription sub was linked to before
// this checkout. It runs before the re-link so a failed cancel is retried
// with the next delivery.
func (h *Handler) cancelSuperseded(c *gin.Context, sub *billing.Subscription, gatewaySubID string) error {
	if sub.Gateway != billing.GatewayStripe || sub.GatewaySubscriptionID == nil {
		return nil
	}
	old := *sub.GatewaySubscriptionID
	if old == "" || old == gatewaySubID {
		return nil
	}

	log := h.log.WithFields(logrus.Fields{
		"subscription_id":     sub.ID,
		"superseded":          old,
		"stripe_subscription": gatewaySubID,
	})
	if h.canceller == nil {
		log.Warn("superseded stripe subscription left running, no stripe key configured")
		return nil
	}
	if err := h.canceller.Cancel(c.Request.Context(), old); err != nil {
		return fmt.Errorf("cancel superseded stripe subscription %s: %w", old, err)
	}
	log.Info("superseded stripe subscription canceled")
	return nil
}
