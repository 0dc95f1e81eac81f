package billingapi

import (
	"errors"
	"net/http"
	"strings"

	"poll-app/internal/app/http/middleware"
	"poll-app/internal/domain/billing"
	stripeinfra "poll-app/internal/infra/stripe"

	"github.com/gin-gonic/gin"
)

type createSubscriptionRequest struct {
	CompanyID     string `json:"companyId"`
	CompanyName   string `json:"companyName"`
	PlanID        string `json:"planId"`
	PaymentMethod string `json:"paymentMethod"`
	Status        string `json:"status"`
}

func (h *Handler) CreateSubscription(c *gin.Context) {
	var body createSubscriptionRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}
	if strings.TrimSpace(body.CompanyID) == "" || strings.TrimSpace(body.CompanyName) == "" || strings.TrimSpace(body.PlanID) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "companyId, companyName and planId are required"})
		return
	}

	var status billing.SubscriptionStatus
	if body.Status != "" {
		st, ok := billing.ParseSubscriptionStatus(body.Status)
		if !ok {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Unknown status"})
			return
		}
		if !middleware.IsAdmin(c) {
			c.JSON(http.StatusForbidden, gin.H{"error": "Only admins may set the initial status"})
			return
		}
		status = st
	}
	if !middleware.AuthorizeCompany(c, h.companies, body.CompanyID, h.log) {
		return
	}

	actorID, actorName := actorFrom(c, "", "")
	id, err := h.svc.CreateSubscription(c.Request.Context(), billing.CreateSubscriptionInput{
		CompanyID:     body.CompanyID,
		CompanyName:   body.CompanyName,
		PlanID:        body.PlanID,
		PaymentMethod: body.PaymentMethod,
		Status:        status,
		Gateway:       billing.GatewayManual,
		Actor:         billing.Actor{ID: actorID, Name: actorName},
	})
	if err != nil {
		h.log.WithError(err).WithField("company_id", body.CompanyID).Error("create subscription failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create subscription"})
		return
	}

	c.JSON(http.StatusCreated, gin.H{"subscriptionId": id})
}

func (h *Handler) GetSubscription(c *gin.Context) {
	companyID := strings.TrimSpace(c.Query("companyId"))
	if companyID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "companyId is required"})
		return
	}
	if !middleware.AuthorizeCompany(c, h.companies, companyID, h.log) {
		return
	}

	sub, err := h.svc.GetSubscriptionByCompany(c.Request.Context(), companyID)
	if err != nil {
		h.log.WithError(err).WithField("company_id", companyID).Error("load subscription failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load subscription"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"subscription": sub})
}

type updateStatusRequest struct {
	Status    string `json:"status"`
	Notes     string `json:"notes"`
	InvoiceID string `json:"invoiceId"`
	ActorID   string `json:"actorId"`
	ActorName string `json:"actorName"`
}

func (h *Handler) UpdateStatus(c *gin.Context) {
	var body updateStatusRequest
	if err := c.ShouldBindJSON(&body); err != nil || strings.TrimSpace(body.Status) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "status is required"})
		return
	}
	status, ok := billing.ParseSubscriptionStatus(body.Status)
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Unknown status"})
		return
	}
	// Owners may only cancel; every other transition is an admin action.
	if status != billing.StatusCanceled && !middleware.IsAdmin(c) {
		c.JSON(http.StatusForbidden, gin.H{"error": "Only admins may set this status"})
		return
	}
	if _, ok := h.authorizedSubscription(c, "Failed to update subscription status"); !ok {
		return
	}

	actorID, actorName := actorFrom(c, body.ActorID, body.ActorName)
	err := h.svc.UpdateSubscriptionStatus(c.Request.Context(), c.Param("id"), status, billing.StatusUpdate{
		Notes:     body.Notes,
		ActorID:   actorID,
		ActorName: actorName,
		InvoiceID: body.InvoiceID,
	})
	if err != nil {
		h.log.WithError(err).WithField("subscription_id", c.Param("id")).Error("update status failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update subscription status"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"ok": true})
}

type switchPlanRequest struct {
	PlanID    string `json:"planId"`
	ActorID   string `json:"actorId"`
	ActorName string `json:"actorName"`
}

func (h *Handler) SwitchPlan(c *gin.Context) {
	var body switchPlanRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}
	actorID, actorName := actorFrom(c, body.ActorID, body.ActorName)
	if strings.TrimSpace(body.PlanID) == "" || actorID == "" || actorName == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "planId, actorId and actorName are required"})
		return
	}

	sub, ok := h.authorizedSubscription(c, "Failed to switch plan")
	if !ok {
		return
	}
	ctx := c.Request.Context()
	if sub.Gateway == billing.GatewayStripe && sub.GatewaySubscriptionID != nil && *sub.GatewaySubscriptionID != "" {
		if !h.switchStripePlan(c, *sub.GatewaySubscriptionID, body.PlanID) {
			return
		}
	}

	err := h.svc.SwitchSubscriptionPlan(ctx, sub.ID, body.PlanID, actorID, actorName)
	if err != nil {
		if errors.Is(err, billing.ErrConcurrentUpdate) {
			c.JSON(http.StatusConflict, gin.H{"error": "Subscription changed concurrently, retry"})
			return
		}
		h.log.WithError(err).WithField("subscription_id", c.Param("id")).Error("switch plan failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to switch plan"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"ok": true})
}

// switchStripePlan moves the linked Stripe subscription first so the local
// switch never runs ahead of what Stripe bills.
func (h *Handler) switchStripePlan(c *gin.Context, gatewaySubID, planID string) bool {
	if h.stripePlans == nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Stripe key not configured"})
		return false
	}
	ctx := c.Request.Context()
	plan, _, err := h.plans.GetByID(ctx, planID)
	if err != nil {
		h.log.WithError(err).WithField("plan_id", planID).Error("switch plan failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to switch plan"})
		return false
	}
	if _, err := h.stripePlans.ChangePlan(ctx, gatewaySubID, plan); err != nil {
		h.log.WithError(err).WithField("stripe_subscription_id", gatewaySubID).Error("stripe plan change failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to switch plan", "details": stripeinfra.ErrorMessage(err)})
		return false
	}
	return true
}
