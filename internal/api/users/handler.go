package usersapi

import (
	"context"
	"net/http"
	"time"

	"poll-app/internal/domain/billing"
	"poll-app/internal/domain/companies"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

type CompanyLister interface {
	ListByOwner(ctx context.Context, ownerID string) ([]companies.Company, error)
}

type SubscriptionLookup interface {
	GetSubscriptionByCompany(ctx context.Context, companyID string) (*billing.Subscription, error)
}

type Handler struct {
	companies     CompanyLister
	subscriptions SubscriptionLookup
	log           logrus.FieldLogger
	now           func() time.Time
}

func NewHandler(companies CompanyLister, subscriptions SubscriptionLookup, log logrus.FieldLogger) *Handler {
	return &Handler{
		companies:     companies,
		subscriptions: subscriptions,
		log:           log.WithField("component", "users_api"),
		now:           time.Now,
	}
}

// GetCurrentUser returns the token identity plus every company the caller
// owns with its subscription and effective access.
func (h *Handler) GetCurrentUser(c *gin.Context) {
	userID := c.GetString("user_id")
	if userID == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}

	ctx := c.Request.Context()
	owned, err := h.companies.ListByOwner(ctx, userID)
	if err != nil {
		h.log.WithError(err).WithField("user_id", userID).Error("list companies failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load companies"})
		return
	}

	now := h.now()
	resp := MeResponse{
		User: UserDTO{
			ID:    userID,
			Email: c.GetString("email"),
			Name:  c.GetString("name"),
			Role:  c.GetString("role"),
		},
		Companies: make([]CompanyDTO, 0, len(owned)),
	}
	for _, company := range owned {
		sub, err := h.subscriptions.GetSubscriptionByCompany(ctx, company.ID)
		if err != nil {
			h.log.WithError(err).WithField("company_id", company.ID).Error("load subscription failed")
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load subscription"})
			return
		}
		resp.Companies = append(resp.Companies, BuildCompanyDTO(now, company, sub))
	}

	c.JSON(http.StatusOK, resp)
}
