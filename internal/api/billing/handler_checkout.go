package billingapi

import (
	"errors"
	"net/http"
	"strings"

	"poll-app/internal/app/http/middleware"
	"poll-app/internal/domain/plans"
	stripeinfra "poll-app/internal/infra/stripe"

	"github.com/gin-gonic/gin"
)

type stripeCheckoutRequest struct {
	CompanyID   string `json:"companyId"`
	CompanyName string `json:"companyName"`
	PlanID      string `json:"planId"`
	Email       string `json:"email"`
}

// CreateStripeCheckout starts a hosted checkout. The subscription itself is
// created or updated when Stripe reports checkout.session.completed.
func (h *Handler) CreateStripeCheckout(c *gin.Context) {
	if h.checkout == nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Stripe key not configured"})
		return
	}

	var body stripeCheckoutRequest
	if err := c.ShouldBindJSON(&body); err != nil || strings.TrimSpace(body.CompanyID) == "" || strings.TrimSpace(body.PlanID) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "companyId and planId are required"})
		return
	}

	if !middleware.AuthorizeCompany(c, h.companies, body.CompanyID, h.log) {
		return
	}

	ctx := c.Request.Context()
	plan, _, err := h.plans.GetByID(ctx, body.PlanID)
	if err != nil {
		if errors.Is(err, plans.ErrPlanNotFound) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Unknown plan"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load plan"})
		return
	}
	if plan.Price <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Plan does not require payment"})
		return
	}

	req := stripeinfra.CheckoutRequest{
		CompanyID:     body.CompanyID,
		CompanyName:   body.CompanyName,
		CustomerEmail: body.Email,
		Plan:          plan,
	}
	if req.CustomerEmail == "" {
		req.CustomerEmail = c.GetString("email")
	}
	if existing, err := h.svc.GetSubscriptionByCompany(ctx, body.CompanyID); err == nil && existing != nil {
		req.SubscriptionID = existing.ID
	}

	s, err := h.checkout.CreateSession(ctx, req)
	if err != nil {
		h.log.WithError(err).WithField("company_id", body.CompanyID).Error("stripe checkout failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create checkout session", "details": stripeinfra.ErrorMessage(err)})
		return
	}

	c.JSON(http.StatusOK, gin.H{"url": s.URL})
}
