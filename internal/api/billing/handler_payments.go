package billingapi

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

func (h *Handler) ListPayments(c *gin.Context) {
	sub, ok := h.authorizedSubscription(c, "Failed to load payments")
	if !ok {
		return
	}
	payments, err := h.svc.ListPaymentsBySubscription(c.Request.Context(), sub.ID)
	if err != nil {
		h.log.WithError(err).WithField("subscription_id", c.Param("id")).Error("list payments failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load payments"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"payments": payments})
}

// ListAudit is admin only.
func (h *Handler) ListAudit(c *gin.Context) {
	rows, err := h.svc.ListAudit(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.log.WithError(err).WithField("subscription_id", c.Param("id")).Error("list audit failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load audit trail"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"audit": rows})
}
