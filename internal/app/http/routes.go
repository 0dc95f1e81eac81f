package routes

import (
	adminapi "poll-app/internal/api/admin"
	authapi "poll-app/internal/api/auth"
	billingapi "poll-app/internal/api/billing"
	companiesapi "poll-app/internal/api/companies"
	pagarmeapi "poll-app/internal/api/pagarme"
	plansapi "poll-app/internal/api/plans"
	pollsapi "poll-app/internal/api/polls"
	stripewebhooks "poll-app/internal/api/stripewebhook"
	usersapi "poll-app/internal/api/users"
	"poll-app/internal/app/http/middleware"
	"poll-app/internal/infra/metrics"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// Dependencies are the handlers and middleware the router mounts.
type Dependencies struct {
	Auth          *middleware.Authenticator
	Owners        middleware.CompanyAuthorizer
	Subscriptions middleware.SubscriptionLookup
	Metrics       *metrics.Metrics
	Log           logrus.FieldLogger

	Billing        *billingapi.Handler
	Plans          *plansapi.Handler
	Pagarme        *pagarmeapi.Handler
	StripeWebhooks *stripewebhooks.Handler
	Companies      *companiesapi.Handler
	Polls          *pollsapi.Handler
	Users          *usersapi.Handler
	Admin          *adminapi.Handler

	// Login is nil when Google sign-in is not configured.
	Login *authapi.Handler
}

func RegisterRoutes(r *gin.Engine, d Dependencies) {
	r.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(d.Metrics.Handler()))

	// Gateways sign the raw body, so webhooks skip sanitizing
	r.POST("/api/stripe/webhook", d.StripeWebhooks.StripeWebhook)
	r.POST("/api/pagarme/webhook", d.Pagarme.Webhook)

	r.GET("/api/plans", d.Plans.ListPlans)

	if d.Login != nil {
		r.GET("/auth/google", d.Login.GoogleStart)
		r.GET("/auth/google/callback", d.Login.GoogleCallback)
	}

	public := r.Group("/api")
	public.Use(middleware.SanitizeAndCleanInputMiddleware())
	public.GET("/polls", d.Polls.ListPolls)
	public.GET("/polls/:id", d.Polls.GetPoll)
	public.GET("/polls/:id/comments", d.Polls.ListComments)
	public.GET("/companies/:id", d.Companies.GetCompany)

	// Authenticated
	auth := r.Group("/api")
	auth.Use(d.Auth.Middleware())

	auth.GET("/me", d.Users.GetCurrentUser)
	auth.POST("/subscriptions", d.Billing.CreateSubscription)
	auth.GET("/subscriptions", d.Billing.GetSubscription)
	auth.PATCH("/subscriptions/:id/status", d.Billing.UpdateStatus)
	auth.PATCH("/subscriptions/:id/plan", d.Billing.SwitchPlan)
	auth.GET("/subscriptions/:id/payments", d.Billing.ListPayments)
	auth.POST("/stripe/checkout", d.Billing.CreateStripeCheckout)
	auth.POST("/pagarme/checkout", d.Pagarme.Checkout)

	content := auth.Group("")
	content.Use(middleware.SanitizeAndCleanInputMiddleware())
	content.GET("/companies", d.Companies.ListMyCompanies)
	content.POST("/companies", d.Companies.CreateCompany)
	content.PUT("/companies/:id", d.Companies.UpdateCompany)
	content.POST("/polls", d.Polls.CreatePoll)
	content.POST("/polls/:id/close", d.Polls.ClosePoll)
	content.POST("/polls/:id/vote", d.Polls.Vote)
	content.POST("/polls/:id/comments", d.Polls.AddComment)
	content.POST("/polls/:id/reactions", d.Polls.React)

	// Subscribed companies
	subscribed := content.Group("/companies/:id")
	subscribed.Use(
		middleware.RequireCompanyOwner(d.Owners, "id", d.Log),
		middleware.RequireActiveSubscription(d.Subscriptions, "id", d.Log),
	)
	subscribed.POST("/polls", d.Polls.CreateCompanyPoll)

	// Admin routes
	admin := r.Group("/admin")
	admin.Use(d.Auth.Middleware(), middleware.RequireRole("admin"))
	admin.POST("/plans/seed", d.Plans.SeedPlans)
	admin.POST("/plans/sync-stripe", d.Plans.SyncStripePrices)
	admin.GET("/stats", d.Admin.GetStats)
	admin.GET("/subscriptions", d.Admin.ListSubscriptions)
	admin.GET("/payments", d.Admin.ListPayments)
	admin.GET("/subscriptions/:id/audit", d.Billing.ListAudit)
}
