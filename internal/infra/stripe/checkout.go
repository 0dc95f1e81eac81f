package stripe

import (
	"context"
	"errors"
	"fmt"

	"poll-app/internal/domain/plans"
	"poll-app/internal/infra/metrics"

	stripeapi "github.com/stripe/stripe-go/v75"
	checkoutsession "github.com/stripe/stripe-go/v75/checkout/session"
)

type CheckoutRequest struct {
	CompanyID      string
	CompanyName    string
	CustomerEmail  string
	SubscriptionID string
	Plan           *plans.Plan
}

// CheckoutClient creates hosted checkout sessions in subscription mode.
// Plans with a synced Stripe price are billed against it; the rest send the
// price inline, so no Stripe price objects need to exist beforehand.
type CheckoutClient struct {
	sessions *checkoutsession.Client
	appURL   string
	metrics  *metrics.Metrics
}

// NewCheckoutClient uses the default API backend when backend is nil.
func NewCheckoutClient(secretKey string, backend stripeapi.Backend, appURL string, m *metrics.Metrics) *CheckoutClient {
	if backend == nil {
		backend = stripeapi.GetBackend(stripeapi.APIBackend)
	}
	return &CheckoutClient{
		sessions: &checkoutsession.Client{B: backend, Key: secretKey},
		appURL:   appURL,
		metrics:  m,
	}
}

func (c *CheckoutClient) CreateSession(ctx context.Context, req CheckoutRequest) (*stripeapi.CheckoutSession, error) {
	if req.Plan == nil {
		return nil, fmt.Errorf("checkout: plan is required")
	}
	if req.Plan.Price <= 0 {
		return nil, fmt.Errorf("checkout: plan %s has no price", req.Plan.ID)
	}

	metadata := map[string]string{
		"companyId": req.CompanyID,
		"planId":    req.Plan.ID,
	}
	if req.SubscriptionID != "" {
		metadata["subscriptionId"] = req.SubscriptionID
	}

	params := &stripeapi.CheckoutSessionParams{
		SuccessURL:        stripeapi.String(c.appURL + "/company/billing?checkout=success"),
		CancelURL:         stripeapi.String(c.appURL + "/company/billing?checkout=canceled"),
		Mode:              stripeapi.String(string(stripeapi.CheckoutSessionModeSubscription)),
		ClientReferenceID: stripeapi.String(req.CompanyID),
		LineItems:         []*stripeapi.CheckoutSessionLineItemParams{lineItem(req.Plan)},
		SubscriptionData: &stripeapi.CheckoutSessionSubscriptionDataParams{
			Metadata: metadata,
		},
	}
	if req.CustomerEmail != "" {
		params.CustomerEmail = stripeapi.String(req.CustomerEmail)
	}
	for k, v := range metadata {
		params.AddMetadata(k, v)
	}
	params.Context = ctx

	s, err := c.sessions.New(params)
	c.metrics.ObserveGatewayCall("stripe", "checkout_session", err)
	if err != nil {
		return nil, err
	}
	return s, nil
}

func lineItem(p *plans.Plan) *stripeapi.CheckoutSessionLineItemParams {
	if id := p.StripePriceID(); id != "" {
		return &stripeapi.CheckoutSessionLineItemParams{
			Quantity: stripeapi.Int64(1),
			Price:    stripeapi.String(id),
		}
	}
	return &stripeapi.CheckoutSessionLineItemParams{
		Quantity: stripeapi.Int64(1),
		PriceData: &stripeapi.CheckoutSessionLineItemPriceDataParams{
			Currency:   stripeapi.String(p.Currency),
			UnitAmount: stripeapi.Int64(p.Price),
			ProductData: &stripeapi.CheckoutSessionLineItemPriceDataProductDataParams{
				Name: stripeapi.String(p.Name),
			},
			Recurring: &stripeapi.CheckoutSessionLineItemPriceDataRecurringParams{
				Interval: stripeapi.String(recurringInterval(p)),
			},
		},
	}
}

func recurringInterval(p *plans.Plan) string {
	if p.BillingPeriod == plans.Yearly {
		return string(stripeapi.PriceRecurringIntervalYear)
	}
	return string(stripeapi.PriceRecurringIntervalMonth)
}

// ErrorMessage extracts the vendor message from a Stripe API error.
func ErrorMessage(err error) string {
	var se *stripeapi.Error
	if errors.As(err, &se) && se.Msg != "" {
		return se.Msg
	}
	return err.Error()
}
