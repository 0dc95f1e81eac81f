package stripewebhooks

import (
	"poll-app/internal/domain/billing"

	"github.com/gin-gonic/gin"
	"github.com/stripe/stripe-go/v75"
)

func (h *Handler) handleSubscriptionDeleted(c *gin.Context, sub *stripe.Subscription) (billing.ReconcileResult, error) {
	if sub.ID == "" {
		return billing.ResultIgnored, nil
	}
	ctx := c.Request.Context()

	local, err := h.reconciler.ResolveSubscription(ctx, billing.GatewayStripe, billing.CompanyIDFromMetadata(sub.Metadata), sub.ID)
	if err != nil {
		return "", err
	}
	if local == nil {
		return billing.ResultIgnored, nil
	}
	if local.Status == billing.StatusCanceled {
		return billing.ResultNoop, nil
	}

	actor := billing.GatewayActor(billing.GatewayStripe)
	if err := h.svc.UpdateSubscriptionStatus(ctx, local.ID, billing.StatusCanceled, billing.StatusUpdate{
		Notes:     "stripe subscription deleted",
		ActorID:   actor.ID,
		ActorName: actor.Name,
	}); err != nil {
		return "", err
	}
	return billing.ResultApplied, nil
}
