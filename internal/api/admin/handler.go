package adminapi

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"poll-app/internal/domain/billing"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

const defaultRecentDays = 30

type Reports interface {
	ListSubscriptions(ctx context.Context, f billing.SubscriptionFilter) ([]billing.Subscription, error)
	ListPayments(ctx context.Context, f billing.PaymentFilter) ([]billing.Payment, error)
	GetSubscription(ctx context.Context, id string) (*billing.Subscription, error)
	Stats(ctx context.Context, since time.Time) (*billing.Stats, error)
}

type AdminSubscription struct {
	ID                string    `json:"id"`
	CompanyID         string    `json:"companyId"`
	CompanyName       string    `json:"companyName"`
	PlanID            string    `json:"planId"`
	PlanName          string    `json:"planName"`
	Status            string    `json:"status"`
	Gateway           string    `json:"gateway,omitempty"`
	CurrentPeriodEnd  time.Time `json:"currentPeriodEnd"`
	CancelAtPeriodEnd bool      `json:"cancelAtPeriodEnd"`
	CreatedAt         string    `json:"createdAt"`
}

type AdminPayment struct {
	ID             string  `json:"id"`
	SubscriptionID string  `json:"subscriptionId"`
	CompanyName    string  `json:"companyName,omitempty"`
	PlanName       string  `json:"planName,omitempty"`
	Amount         int64   `json:"amount"`
	Currency       string  `json:"currency"`
	Status         string  `json:"status"`
	Gateway        string  `json:"gateway"`
	InvoiceID      string  `json:"invoiceId"`
	FailureReason  *string `json:"failureReason,omitempty"`
	DueDate        string  `json:"dueDate"`
}

type Handler struct {
	reports Reports
	log     logrus.FieldLogger
	now     func() time.Time
}

func NewHandler(reports Reports, log logrus.FieldLogger) *Handler {
	return &Handler{reports: reports, log: log.WithField("component", "admin_api"), now: time.Now}
}

func (h *Handler) ListSubscriptions(c *gin.Context) {
	f := billing.SubscriptionFilter{
		Limit:  queryInt(c, "limit"),
		Offset: queryInt(c, "offset"),
	}
	if raw := c.Query("status"); raw != "" {
		st, ok := billing.ParseSubscriptionStatus(raw)
		if !ok {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid status"})
			return
		}
		f.Status = st
	}
	gw, ok := parseGateway(c.Query("gateway"))
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid gateway"})
		return
	}
	f.Gateway = gw

	subs, err := h.reports.ListSubscriptions(c.Request.Context(), f)
	if err != nil {
		h.log.WithError(err).Error("list subscriptions failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load subscriptions"})
		return
	}

	result := make([]AdminSubscription, 0, len(subs))
	for _, s := range subs {
		result = append(result, AdminSubscription{
			ID:                s.ID,
			CompanyID:         s.CompanyID,
			CompanyName:       s.CompanyName,
			PlanID:            s.PlanID,
			PlanName:          s.Snapshot().Name,
			Status:            string(s.Status),
			Gateway:           string(s.Gateway),
			CurrentPeriodEnd:  s.CurrentPeriodEnd,
			CancelAtPeriodEnd: s.CancelAtPeriodEnd,
			CreatedAt:         s.CreatedAt.Format("2006-01-02 15:04"),
		})
	}

	c.JSON(http.StatusOK, result)
}

func (h *Handler) ListPayments(c *gin.Context) {
	f := billing.PaymentFilter{Limit: queryInt(c, "limit")}
	if raw := c.Query("status"); raw != "" {
		st := billing.PaymentStatus(strings.ToUpper(strings.TrimSpace(raw)))
		if !st.Valid() {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid status"})
			return
		}
		f.Status = st
	}
	gw, ok := parseGateway(c.Query("gateway"))
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid gateway"})
		return
	}
	f.Gateway = gw
	if days := queryInt(c, "days"); days > 0 {
		f.Since = h.now().AddDate(0, 0, -days)
	}

	ctx := c.Request.Context()
	payments, err := h.reports.ListPayments(ctx, f)
	if err != nil {
		h.log.WithError(err).Error("list payments failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load payments"})
		return
	}

	subs := map[string]*billing.Subscription{}
	result := make([]AdminPayment, 0, len(payments))
	for _, p := range payments {
		sub, seen := subs[p.SubscriptionID]
		if !seen {
			sub, err = h.reports.GetSubscription(ctx, p.SubscriptionID)
			if err != nil {
				h.log.WithError(err).WithField("subscription_id", p.SubscriptionID).Warn("payment without subscription")
			}
			subs[p.SubscriptionID] = sub
		}

		row := AdminPayment{
			ID:             p.ID,
			SubscriptionID: p.SubscriptionID,
			Amount:         p.Amount,
			Currency:       p.Currency,
			Status:         string(p.Status),
			Gateway:        string(p.Gateway),
			InvoiceID:      p.InvoiceID,
			FailureReason:  p.FailureReason,
			DueDate:        p.DueDate.Format("2006-01-02 15:04"),
		}
		if sub != nil {
			row.CompanyName = sub.CompanyName
			row.PlanName = sub.Snapshot().Name
		}
		result = append(result, row)
	}

	c.JSON(http.StatusOK, result)
}

func (h *Handler) GetStats(c *gin.Context) {
	days := queryInt(c, "days")
	if days <= 0 {
		days = defaultRecentDays
	}

	stats, err := h.reports.Stats(c.Request.Context(), h.now().AddDate(0, 0, -days))
	if err != nil {
		h.log.WithError(err).Error("admin stats failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load stats"})
		return
	}

	c.JSON(http.StatusOK, stats)
}

func parseGateway(raw string) (billing.Gateway, bool) {
	gw := billing.Gateway(strings.ToLower(strings.TrimSpace(raw)))
	switch gw {
	case "", billing.GatewayStripe, billing.GatewayPagarme, billing.GatewayManual:
		return gw, true
	}
	return "", false
}

// queryInt reads a non-negative integer query value; anything else is 0.
func queryInt(c *gin.Context, key string) int {
	n, err := strconv.Atoi(c.Query(key))
	if err != nil || n < 0 {
		return 0
	}
	return n
}
