package plansapi

import (
	"context"
	"net/http"

	"poll-app/internal/domain/plans"
	stripeinfra "poll-app/internal/infra/stripe"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

type Catalog interface {
	List(ctx context.Context) ([]plans.Plan, plans.Source)
	EnsureSeeded(ctx context.Context) error
	Resolve(ctx context.Context, id string) (*plans.Plan, error)
	AnnotateMetadata(ctx context.Context, id string, kv map[string]interface{}) error
}

type PriceLister interface {
	ListPlanPrices(ctx context.Context) ([]stripeinfra.PlanPrice, int, error)
}

type Handler struct {
	catalog Catalog
	prices  PriceLister
	log     logrus.FieldLogger
}

// NewHandler accepts a nil prices lister when Stripe is not configured.
func NewHandler(catalog Catalog, prices PriceLister, log logrus.FieldLogger) *Handler {
	return &Handler{catalog: catalog, prices: prices, log: log.WithField("component", "plans_api")}
}

// ListPlans never fails: when the store is unavailable the seed catalog is
// served and source says so.
func (h *Handler) ListPlans(c *gin.Context) {
	all, source := h.catalog.List(c.Request.Context())

	out := make([]plans.Plan, 0, len(all))
	for _, p := range all {
		if p.Active || c.Query("all") == "true" {
			out = append(out, p)
		}
	}
	c.JSON(http.StatusOK, gin.H{"plans": out, "source": source})
}

func (h *Handler) SeedPlans(c *gin.Context) {
	if err := h.catalog.EnsureSeeded(c.Request.Context()); err != nil {
		h.log.WithError(err).Error("plan seeding failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to seed plans", "details": err.Error()})
		return
	}
	all, source := h.catalog.List(c.Request.Context())
	c.JSON(http.StatusOK, gin.H{"ok": true, "plans": len(all), "source": source})
}
