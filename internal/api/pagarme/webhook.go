package pagarmeapi

import (
	"errors"
	"io"
	"net/http"

	"poll-app/internal/domain/billing"
	"poll-app/internal/infra/pagarme"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

const maxBodyBytes = 65536

// Webhook handles Pagar.me postbacks. Anything that parses is acknowledged
// with 200 so the gateway stops retrying; failures are only logged. Bodies
// over the size limit are acknowledged as ignored.
func (h *Handler) Webhook(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBodyBytes)
	body, err := io.ReadAll(c.Request.Body)
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		h.log.WithField("limit_bytes", tooLarge.Limit).Warn("pagarme postback body too large, ignoring")
		h.metrics.ObserveWebhook("pagarme", string(billing.ResultIgnored))
		c.JSON(http.StatusOK, gin.H{"status": "ignored"})
		return
	}
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Error reading request body"})
		return
	}

	if h.webhookSecret != "" && !pagarme.VerifySignature(body, c.GetHeader(pagarme.SignatureHeader), h.webhookSecret) {
		h.log.Warn("pagarme signature verification failed")
		h.metrics.ObserveWebhook("pagarme", "bad_signature")
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid signature"})
		return
	}

	tx, raw, shape, err := pagarme.ExtractTransaction(body)
	switch {
	case errors.Is(err, pagarme.ErrMalformedPayload):
		h.metrics.ObserveWebhook("pagarme", "malformed")
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid JSON"})
		return
	case err != nil:
		h.log.WithError(err).Info("pagarme postback without transaction, ignoring")
		h.metrics.ObserveWebhook("pagarme", string(billing.ResultIgnored))
		c.JSON(http.StatusOK, gin.H{"status": "ignored"})
		return
	}

	status := pagarme.MapPaymentStatus(tx.Status)
	out := billing.PaymentOutcome{
		Gateway:               billing.GatewayPagarme,
		Status:                status,
		ExternalStatus:        tx.Status,
		CompanyID:             billing.CompanyIDFromAny(tx.Metadata),
		GatewaySubscriptionID: tx.SubscriptionID.String(),
		InvoiceID:             tx.ID.String(),
		Amount:                tx.Amount,
		DueDate:               tx.DueDate(),
		PaidAt:                tx.PaidAt(),
		FailureReason:         tx.FailureReason(),
		RawPayload:            raw,
	}
	if status == billing.PaymentPaid {
		out.Amount = tx.PaidValue()
	}

	log := h.log.WithFields(logrus.Fields{"transaction_id": tx.ID, "shape": shape})
	result, err := h.reconciler.ApplyPaymentOutcome(c.Request.Context(), out)
	if err != nil {
		log.WithError(err).Error("pagarme postback handling failed")
		h.metrics.ObserveWebhook("pagarme", "error")
		c.JSON(http.StatusOK, gin.H{"status": "error"})
		return
	}

	log.WithField("result", result).Info("pagarme postback processed")
	h.metrics.ObserveWebhook("pagarme", string(result))
	c.JSON(http.StatusOK, gin.H{"status": "received", "result": result})
}
