package stripe

import (
	"context"
	"errors"
	"fmt"

	"poll-app/internal/domain/plans"
	"poll-app/internal/infra/metrics"

	stripeapi "github.com/stripe/stripe-go/v75"
	"github.com/stripe/stripe-go/v75/subscription"
)

// SubscriptionClient changes and cancels Stripe subscriptions that are
// already linked to a local subscription.
type SubscriptionClient struct {
	subs    *subscription.Client
	metrics *metrics.Metrics
}

func NewSubscriptionClient(secretKey string, backend stripeapi.Backend, m *metrics.Metrics) *SubscriptionClient {
	if backend == nil {
		backend = stripeapi.GetBackend(stripeapi.APIBackend)
	}
	return &SubscriptionClient{subs: &subscription.Client{B: backend, Key: secretKey}, metrics: m}
}

// ChangePlan swaps the subscription's price item to the plan's price,
// prorated. The synced price is used when present, otherwise an inline price
// on the item's current product. A subscription already on the synced price
// is returned unchanged.
func (c *SubscriptionClient) ChangePlan(ctx context.Context, gatewaySubID string, plan *plans.Plan) (*stripeapi.Subscription, error) {
	if plan == nil || plan.Price <= 0 {
		return nil, fmt.Errorf("change plan: plan has no price")
	}

	getParams := &stripeapi.SubscriptionParams{}
	getParams.Context = ctx
	sub, err := c.subs.Get(gatewaySubID, getParams)
	c.metrics.ObserveGatewayCall("stripe", "get_subscription", err)
	if err != nil {
		return nil, err
	}
	if sub.Items == nil || len(sub.Items.Data) == 0 || sub.Items.Data[0].Price == nil {
		return nil, errors.New("change plan: subscription has no price item")
	}

	item := sub.Items.Data[0]
	priceID := plan.StripePriceID()
	if priceID != "" && item.Price.ID == priceID {
		return sub, nil
	}

	swap := &stripeapi.SubscriptionItemsParams{ID: stripeapi.String(item.ID)}
	if priceID != "" {
		swap.Price = stripeapi.String(priceID)
	} else {
		if item.Price.Product == nil || item.Price.Product.ID == "" {
			return nil, errors.New("change plan: subscription item has no product")
		}
		swap.PriceData = &stripeapi.SubscriptionItemPriceDataParams{
			Currency:   stripeapi.String(plan.Currency),
			Product:    stripeapi.String(item.Price.Product.ID),
			UnitAmount: stripeapi.Int64(plan.Price),
			Recurring: &stripeapi.SubscriptionItemPriceDataRecurringParams{
				Interval: stripeapi.String(recurringInterval(plan)),
			},
		}
	}

	params := &stripeapi.SubscriptionParams{
		Items:             []*stripeapi.SubscriptionItemsParams{swap},
		ProrationBehavior: stripeapi.String("create_prorations"),
	}
	params.AddMetadata("planId", plan.ID)
	params.Context = ctx

	updated, err := c.subs.Update(gatewaySubID, params)
	c.metrics.ObserveGatewayCall("stripe", "update_subscription", err)
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// Cancel ends a Stripe subscription immediately. A subscription Stripe no
// longer knows about counts as canceled.
func (c *SubscriptionClient) Cancel(ctx context.Context, gatewaySubID string) error {
	params := &stripeapi.SubscriptionCancelParams{}
	params.Context = ctx
	_, err := c.subs.Cancel(gatewaySubID, params)
	c.metrics.ObserveGatewayCall("stripe", "cancel_subscription", err)

	var se *stripeapi.Error
	if errors.As(err, &se) && se.Code == stripeapi.ErrorCodeResourceMissing {
		return nil
	}
	return err
}
