package billingapi

import (
	"context"
	"net/http"

	"poll-app/internal/app/http/middleware"
	"poll-app/internal/domain/billing"
	"poll-app/internal/domain/plans"
	stripeinfra "poll-app/internal/infra/stripe"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/stripe/stripe-go/v75"
)

type PlanGetter interface {
	GetByID(ctx context.Context, id string) (*plans.Plan, plans.Source, error)
}

type CheckoutSessions interface {
	CreateSession(ctx context.Context, req stripeinfra.CheckoutRequest) (*stripe.CheckoutSession, error)
}

// StripePlans moves a linked Stripe subscription onto another plan.
type StripePlans interface {
	ChangePlan(ctx context.Context, gatewaySubID string, plan *plans.Plan) (*stripe.Subscription, error)
}

// Handler serves the subscription, payment and Stripe checkout endpoints.
type Handler struct {
	svc         *billing.Service
	plans       PlanGetter
	companies   middleware.CompanyAuthorizer
	checkout    CheckoutSessions
	stripePlans StripePlans
	log         logrus.FieldLogger
}

type Options struct {
	Service     *billing.Service
	Plans       PlanGetter
	Companies   middleware.CompanyAuthorizer
	Checkout    CheckoutSessions
	StripePlans StripePlans
	Log         logrus.FieldLogger
}

// NewHandler accepts nil Checkout and StripePlans when Stripe is not
// configured.
func NewHandler(opts Options) *Handler {
	return &Handler{
		svc:         opts.Service,
		plans:       opts.Plans,
		companies:   opts.Companies,
		checkout:    opts.Checkout,
		stripePlans: opts.StripePlans,
		log:         opts.Log.WithField("component", "billing_api"),
	}
}

// actorFrom falls back to the authenticated caller when the body names no
// actor. Only admins may record another actor.
func actorFrom(c *gin.Context, id, name string) (string, string) {
	if !middleware.IsAdmin(c) {
		id, name = "", ""
	}
	if id == "" {
		id = c.GetString("user_id")
	}
	if name == "" {
		name = c.GetString("name")
		if name == "" {
			name = c.GetString("email")
		}
	}
	return id, name
}

// authorizedSubscription loads the subscription named by the :id parameter
// and checks the caller may manage its company. Lookup failures answer 500
// like the rest of the subscription endpoints.
func (h *Handler) authorizedSubscription(c *gin.Context, failMsg string) (*billing.Subscription, bool) {
	sub, err := h.svc.GetSubscription(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.log.WithError(err).WithField("subscription_id", c.Param("id")).Error("load subscription failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": failMsg})
		return nil, false
	}
	if !middleware.AuthorizeCompany(c, h.companies, sub.CompanyID, h.log) {
		return nil, false
	}
	return sub, true
}
