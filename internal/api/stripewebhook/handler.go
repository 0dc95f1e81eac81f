package stripewebhooks

import (
	"context"
	"encoding/json"
	"io"
	"net/http"

	"poll-app/internal/domain/billing"
	"poll-app/internal/infra/metrics"
	stripeinfra "poll-app/internal/infra/stripe"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/stripe/stripe-go/v75"
)

const maxBodyBytes = 65536

// SubscriptionCanceller ends a Stripe subscription that a newer checkout
// has replaced.
type SubscriptionCanceller interface {
	Cancel(ctx context.Context, gatewaySubID string) error
}

// Handler verifies Stripe webhook deliveries and applies them to the
// subscription store.
type Handler struct {
	svc        *billing.Service
	reconciler *billing.Reconciler
	secret     string
	canceller  SubscriptionCanceller
	metrics    *metrics.Metrics
	log        logrus.FieldLogger
}

type Options struct {
	Reconciler *billing.Reconciler
	Secret     string
	Canceller  SubscriptionCanceller
	Metrics    *metrics.Metrics
	Log        logrus.FieldLogger
}

// NewHandler accepts a nil Canceller when no Stripe key is configured;
// superseded subscriptions are then only logged.
func NewHandler(opts Options) *Handler {
	return &Handler{
		svc:        opts.Reconciler.Service(),
		reconciler: opts.Reconciler,
		secret:     opts.Secret,
		canceller:  opts.Canceller,
		metrics:    opts.Metrics,
		log:        opts.Log.WithField("component", "stripe_webhook"),
	}
}

func (h *Handler) StripeWebhook(c *gin.Context) {
	if h.secret == "" {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "STRIPE_WEBHOOK_SECRET not configured"})
		return
	}

	payload, err := readStripeBody(c, maxBodyBytes)
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Error reading request body"})
		return
	}

	event, err := stripeinfra.VerifyEvent(payload, c.GetHeader("Stripe-Signature"), h.secret)
	if err != nil {
		h.log.WithError(err).Warn("stripe signature verification failed")
		h.metrics.ObserveWebhook("stripe", "bad_signature")
		c.JSON(http.StatusBadRequest, gin.H{"error": "Signature verification failed"})
		return
	}

	log := h.log.WithFields(logrus.Fields{"event_id": event.ID, "event_type": event.Type})

	var result billing.ReconcileResult
	switch event.Type {
	case "checkout.session.completed":
		var session stripe.CheckoutSession
		if err := json.Unmarshal(event.Data.Raw, &session); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Failed to parse session"})
			return
		}
		result, err = h.handleCheckoutSessionCompleted(c, &session, event.Data.Raw)

	case "invoice.paid", "invoice.payment_succeeded", "invoice.payment_failed":
		var inv stripe.Invoice
		if err := json.Unmarshal(event.Data.Raw, &inv); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Failed to parse invoice"})
			return
		}
		status := billing.PaymentPaid
		if event.Type == "invoice.payment_failed" {
			status = billing.PaymentFailed
		}
		result, err = h.reconciler.ApplyPaymentOutcome(c.Request.Context(), stripeinfra.InvoiceOutcome(&inv, status, event.Data.Raw))

	case "customer.subscription.updated":
		var sub stripe.Subscription
		if err := json.Unmarshal(event.Data.Raw, &sub); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Failed to parse subscription"})
			return
		}
		result, err = h.handleSubscriptionUpdated(c, &sub)

	case "customer.subscription.deleted":
		var sub stripe.Subscription
		if err := json.Unmarshal(event.Data.Raw, &sub); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Failed to parse subscription"})
			return
		}
		result, err = h.handleSubscriptionDeleted(c, &sub)

	default:
		// Acknowledge unknown events to avoid retries
		h.metrics.ObserveWebhook("stripe", "unhandled")
		c.JSON(http.StatusOK, gin.H{"status": "ignored"})
		return
	}

	if err != nil {
		// 500 makes Stripe retry the delivery
		log.WithError(err).Error("stripe webhook handling failed")
		h.metrics.ObserveWebhook("stripe", "error")
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	log.WithField("result", result).Info("stripe webhook processed")
	h.metrics.ObserveWebhook("stripe", string(result))
	c.JSON(http.StatusOK, gin.H{"status": "received", "result": result})
}

func readStripeBody(c *gin.Context, maxBytes int64) ([]byte, error) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
	return io.ReadAll(c.Request.Body)
}
