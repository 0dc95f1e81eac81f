package stripewebhooks

import (
	"fmt"

	"poll-app/internal/domain/billing"
	stripeinfra "poll-app/internal/infra/stripe"

	"github.com/gin-gonic/gin"
	"github.com/stripe/stripe-go/v75"
)

// handleSubscriptionUpdated mirrors the Stripe billing window and
// cancellation flag, then the status when Stripe reports a different one.
func (h *Handler) handleSubscriptionUpdated(c *gin.Context, sub *stripe.Subscription) (billing.ReconcileResult, error) {
	if sub.ID == "" {
		return billing.ResultIgnored, nil
	}
	ctx := c.Request.Context()

	local, err := h.reconciler.ResolveSubscription(ctx, billing.GatewayStripe, billing.CompanyIDFromMetadata(sub.Metadata), sub.ID)
	if err != nil {
		return "", err
	}
	if local == nil {
		// acknowledge to avoid Stripe retries for companies we do not know
		return billing.ResultIgnored, nil
	}

	if local.GatewaySubscriptionID == nil || *local.GatewaySubscriptionID != sub.ID {
		if err := h.svc.LinkGatewaySubscription(ctx, local.ID, billing.GatewayStripe, sub.ID); err != nil {
			return "", err
		}
	}

	start, end, err := stripeinfra.Period(sub)
	if err != nil {
		return "", err
	}
	if err := h.svc.UpdateSubscriptionPeriodAndCancellation(ctx, local.ID, start, end, sub.CancelAtPeriodEnd); err != nil {
		return "", err
	}

	target, ok := stripeinfra.MapSubscriptionStatus(string(sub.Status))
	if !ok || target == local.Status || local.Status == billing.StatusCanceled {
		return billing.ResultRecorded, nil
	}

	actor := billing.GatewayActor(billing.GatewayStripe)
	if err := h.svc.UpdateSubscriptionStatus(ctx, local.ID, target, billing.StatusUpdate{
		Notes:     fmt.Sprintf("stripe subscription status %s", sub.Status),
		ActorID:   actor.ID,
		ActorName: actor.Name,
	}); err != nil {
		return "", err
	}
	return billing.ResultApplied, nil
}
