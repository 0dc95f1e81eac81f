package plansapi

import (
	"net/http"
	"strings"

	stripeinfra "poll-app/internal/infra/stripe"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// SyncStripePrices records the Stripe price and product ids on the plans
// they are tagged for. Prices whose amount or currency disagree with the
// plan are skipped; checkout always charges the plan price.
func (h *Handler) SyncStripePrices(c *gin.Context) {
	if h.prices == nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Stripe key not configured"})
		return
	}
	ctx := c.Request.Context()

	found, skipped, err := h.prices.ListPlanPrices(ctx)
	if err != nil {
		h.log.WithError(err).Error("failed to list stripe prices")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch Stripe prices", "details": stripeinfra.ErrorMessage(err)})
		return
	}

	synced := 0
	mismatched := make([]string, 0)
	for _, pp := range found {
		log := h.log.WithFields(logrus.Fields{"plan_id": pp.PlanID, "price_id": pp.PriceID})

		plan, err := h.catalog.Resolve(ctx, pp.PlanID)
		if err != nil {
			log.WithError(err).Warn("stripe price tagged with unknown plan")
			skipped++
			continue
		}
		if plan.Price != pp.Amount || !strings.EqualFold(plan.Currency, pp.Currency) {
			log.Warn("stripe price does not match plan terms")
			mismatched = append(mismatched, pp.PriceID)
			skipped++
			continue
		}

		if err := h.catalog.AnnotateMetadata(ctx, plan.ID, map[string]interface{}{
			"stripePriceId":     pp.PriceID,
			"stripePriceAmount": pp.Amount,
			"stripeProductId":   pp.ProductID,
		}); err != nil {
			log.WithError(err).Error("failed to annotate plan")
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update plan", "details": err.Error()})
			return
		}
		synced++
	}

	c.JSON(http.StatusOK, gin.H{
		"synced":     synced,
		"skipped":    skipped,
		"mismatched": mismatched,
	})
}
