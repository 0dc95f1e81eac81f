package pagarmeapi

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"poll-app/internal/app/http/middleware"
	"poll-app/internal/domain/billing"
	"poll-app/internal/domain/plans"
	"poll-app/internal/infra/pagarme"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

type checkoutCustomer struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Document string `json:"document"`
	Phone    string `json:"phone"`
}

type checkoutRequest struct {
	CompanyID     string            `json:"companyId"`
	CompanyName   string            `json:"companyName"`
	PlanID        string            `json:"planId"`
	PaymentMethod string            `json:"paymentMethod"`
	CardHash      string            `json:"cardHash"`
	CardID        string            `json:"cardId"`
	Installments  int               `json:"installments"`
	Customer      *checkoutCustomer `json:"customer"`
}

var paymentMethods = map[string]bool{
	"credit_card": true,
	"boleto":      true,
	"pix":         true,
}

// Checkout charges the plan price directly and books the result. The
// subscription is created (or moved to the plan) before the charge so that
// the postback always finds it.
func (h *Handler) Checkout(c *gin.Context) {
	if h.client == nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Pagar.me key not configured"})
		return
	}

	var body checkoutRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}
	body.PaymentMethod = strings.ToLower(strings.TrimSpace(body.PaymentMethod))
	if strings.TrimSpace(body.CompanyID) == "" || strings.TrimSpace(body.PlanID) == "" || body.PaymentMethod == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "companyId, planId and paymentMethod are required"})
		return
	}
	if !paymentMethods[body.PaymentMethod] {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Unsupported payment method"})
		return
	}
	if body.PaymentMethod == "credit_card" && body.CardHash == "" && body.CardID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "cardHash or cardId is required for credit_card"})
		return
	}

	if !middleware.AuthorizeCompany(c, h.companies, body.CompanyID, h.log) {
		return
	}

	ctx := c.Request.Context()
	log := h.log.WithFields(logrus.Fields{"company_id": body.CompanyID, "plan_id": body.PlanID})

	plan, err := h.plans.Resolve(ctx, body.PlanID)
	if err != nil {
		if errors.Is(err, plans.ErrPlanNotFound) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Unknown plan"})
			return
		}
		log.WithError(err).Error("failed to resolve plan")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load plan"})
		return
	}
	if plan.Price <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Plan does not require payment"})
		return
	}

	subID, err := h.prepareSubscription(c, body)
	if err != nil {
		log.WithError(err).Error("failed to prepare subscription")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to prepare subscription"})
		return
	}
	log = log.WithField("subscription_id", subID)

	tx, raw, err := h.client.CreateTransaction(ctx, pagarme.CreateTransactionRequest{
		Amount:        plan.Price,
		PaymentMethod: body.PaymentMethod,
		CardHash:      body.CardHash,
		CardID:        body.CardID,
		Installments:  body.Installments,
		Customer:      customerFor(c, body),
		Metadata: map[string]interface{}{
			"companyId":      body.CompanyID,
			"planId":         plan.ID,
			"subscriptionId": subID,
		},
	})
	if err != nil {
		if pagarme.IsClientError(err) {
			log.WithError(err).Warn("pagarme rejected transaction")
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		log.WithError(err).Error("pagarme transaction failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create transaction"})
		return
	}

	status := pagarme.MapPaymentStatus(tx.Status)
	amount := tx.Amount
	if status == billing.PaymentPaid {
		amount = tx.PaidValue()
	}
	if _, err := h.svc.RecordPayment(ctx, billing.RecordPaymentInput{
		SubscriptionID: subID,
		InvoiceID:      tx.ID.String(),
		Amount:         amount,
		Currency:       plan.Currency,
		Status:         status,
		Gateway:        billing.GatewayPagarme,
		DueDate:        tx.DueDate(),
		PaidAt:         tx.PaidAt(),
		FailureReason:  tx.FailureReason(),
		RawPayload:     raw,
	}); err != nil {
		// the charge exists at Pagar.me; the postback will book it again
		log.WithError(err).Error("failed to record pagarme payment")
	}

	if target, ok := billing.SubscriptionStatusFor(status); ok {
		actor := billing.GatewayActor(billing.GatewayPagarme)
		upd := billing.StatusUpdate{
			Notes:     fmt.Sprintf("payment %s via pagarme checkout", status),
			ActorID:   actor.ID,
			ActorName: actor.Name,
		}
		if status == billing.PaymentFailed {
			upd.InvoiceID = tx.ID.String()
			if reason := tx.FailureReason(); reason != "" {
				upd.Notes += ": " + reason
			}
		}
		if err := h.svc.UpdateSubscriptionStatus(ctx, subID, target, upd); err != nil {
			log.WithError(err).Error("failed to apply checkout payment status")
		}
	}

	log.WithFields(logrus.Fields{"transaction_id": tx.ID, "payment_status": status}).Info("pagarme checkout processed")
	c.JSON(http.StatusCreated, gin.H{
		"subscriptionId": subID,
		"transaction":    raw,
		"paymentStatus":  status,
	})
}

// prepareSubscription returns the id of the subscription the charge pays
// for, creating one when the company has none or only a canceled one.
func (h *Handler) prepareSubscription(c *gin.Context, body checkoutRequest) (string, error) {
	ctx := c.Request.Context()
	actorID := c.GetString("user_id")
	actorName := c.GetString("name")
	if actorName == "" {
		actorName = c.GetString("email")
	}

	sub, err := h.svc.GetSubscriptionByCompany(ctx, body.CompanyID)
	if err != nil {
		return "", err
	}
	if sub == nil || sub.Status == billing.StatusCanceled {
		return h.svc.CreateSubscription(ctx, billing.CreateSubscriptionInput{
			CompanyID:     body.CompanyID,
			CompanyName:   body.CompanyName,
			PlanID:        body.PlanID,
			PaymentMethod: body.PaymentMethod,
			Status:        billing.StatusAwaitingConfirmation,
			Gateway:       billing.GatewayPagarme,
			Actor:         billing.Actor{ID: actorID, Name: actorName},
		})
	}
	if sub.PlanID != body.PlanID {
		if err := h.svc.SwitchSubscriptionPlan(ctx, sub.ID, body.PlanID, actorID, actorName); err != nil {
			return "", err
		}
	}
	return sub.ID, nil
}

func customerFor(c *gin.Context, body checkoutRequest) *pagarme.Customer {
	cust := &pagarme.Customer{
		ExternalID: body.CompanyID,
		Name:       body.CompanyName,
		Email:      c.GetString("email"),
		Type:       "corporation",
		Country:    "br",
	}
	if body.Customer == nil {
		return cust
	}
	if body.Customer.Name != "" {
		cust.Name = body.Customer.Name
	}
	if body.Customer.Email != "" {
		cust.Email = body.Customer.Email
	}
	if doc := digits(body.Customer.Document); doc != "" {
		docType := "cnpj"
		if len(doc) == 11 {
			docType = "cpf"
			cust.Type = "individual"
		}
		cust.Documents = []pagarme.Document{{Type: docType, Number: doc}}
	}
	if phone := digits(body.Customer.Phone); phone != "" {
		cust.PhoneNumbers = []string{"+" + phone}
	}
	return cust
}

func digits(s string) string {
	return strings.Map(func(r rune) rune {
		if r >= '0' && r <= '9' {
			return r
		}
		return -1
	}, s)
}
