package stripe

import (
	"context"
	"strings"

	"poll-app/internal/infra/metrics"

	stripeapi "github.com/stripe/stripe-go/v75"
	"github.com/stripe/stripe-go/v75/price"
)

// PlanPrice is a recurring Stripe price tagged with a local plan id.
type PlanPrice struct {
	PlanID    string
	PriceID   string
	ProductID string
	Amount    int64
	Currency  string
	Interval  string
}

type PriceClient struct {
	prices  *price.Client
	metrics *metrics.Metrics
}

func NewPriceClient(secretKey string, backend stripeapi.Backend, m *metrics.Metrics) *PriceClient {
	if backend == nil {
		backend = stripeapi.GetBackend(stripeapi.APIBackend)
	}
	return &PriceClient{prices: &price.Client{B: backend, Key: secretKey}, metrics: m}
}

// ListPlanPrices walks the active recurring prices and keeps those whose
// metadata names a plan ("planId", or "plan" as set from the dashboard).
// The second result counts prices that were skipped.
func (c *PriceClient) ListPlanPrices(ctx context.Context) ([]PlanPrice, int, error) {
	params := &stripeapi.PriceListParams{}
	params.Context = ctx
	params.Active = stripeapi.Bool(true)
	params.Type = stripeapi.String(string(stripeapi.PriceTypeRecurring))
	params.AddExpand("data.product")

	var out []PlanPrice
	skipped := 0
	it := c.prices.List(params)
	for it.Next() {
		p := it.Price()
		if !p.Active || p.Recurring == nil || p.Product == nil || !p.Product.Active {
			skipped++
			continue
		}
		if p.Metadata["visible"] == "false" {
			skipped++
			continue
		}

		planID := strings.TrimSpace(p.Metadata["planId"])
		if planID == "" {
			planID = strings.TrimSpace(p.Metadata["plan"])
		}
		if planID == "" {
			skipped++
			continue
		}

		out = append(out, PlanPrice{
			PlanID:    planID,
			PriceID:   p.ID,
			ProductID: p.Product.ID,
			Amount:    p.UnitAmount,
			Currency:  string(p.Currency),
			Interval:  string(p.Recurring.Interval),
		})
	}

	err := it.Err()
	c.metrics.ObserveGatewayCall("stripe", "list_prices", err)
	if err != nil {
		return nil, 0, err
	}
	return out, skipped, nil
}
