package middleware

import (
	"context"
	"net/http"

	"poll-app/internal/domain/billing"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// SubscriptionKey holds the company's *billing.Subscription once the guard
// has passed.
const SubscriptionKey = "subscription"

type SubscriptionLookup interface {
	GetSubscriptionByCompany(ctx context.Context, companyID string) (*billing.Subscription, error)
}

// RequireActiveSubscription rejects requests for a company whose
// subscription is not ACTIVE or TRIALING. The company id is read from the
// named route parameter.
func RequireActiveSubscription(subs SubscriptionLookup, param string, log logrus.FieldLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		companyID := c.Param(param)
		sub, err := subs.GetSubscriptionByCompany(c.Request.Context(), companyID)
		if err != nil {
			log.WithError(err).WithField("company_id", companyID).Error("subscription lookup failed")
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Failed to check subscription"})
			return
		}
		if sub == nil {
			c.AbortWithStatusJSON(http.StatusPaymentRequired, gin.H{"error": "Company has no subscription"})
			return
		}
		if !sub.Status.Entitled() {
			c.AbortWithStatusJSON(http.StatusPaymentRequired, gin.H{
				"error":  "Subscription is not active",
				"status": sub.Status,
			})
			return
		}

		c.Set(SubscriptionKey, sub)
		c.Next()
	}
}
