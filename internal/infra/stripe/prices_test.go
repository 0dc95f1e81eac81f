package stripe

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestListPlanPricesFiltersTaggedRecurringPrices(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/prices", r.URL.Path)
		assert.Equal(t, "true", r.URL.Query().Get("active"))
		assert.Equal(t, "recurring", r.URL.Query().Get("type"))
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"object": "list",
			"url": "/v1/prices",
			"has_more": false,
			"data": [
				{"id":"price_pro","object":"price","active":true,"currency":"brl","unit_amount":7990,
				 "recurring":{"interval":"month"},"metadata":{"planId":"plan_pro_monthly"},
				 "product":{"id":"prod_1","object":"product","active":true}},
				{"id":"price_biz","object":"price","active":true,"currency":"brl","unit_amount":79900,
				 "recurring":{"interval":"year"},"metadata":{"plan":"plan_business_yearly"},
				 "product":{"id":"prod_2","object":"product","active":true}},
				{"id":"price_untagged","object":"price","active":true,"currency":"brl","unit_amount":100,
				 "recurring":{"interval":"month"},"metadata":{},
				 "product":{"id":"prod_3","object":"product","active":true}},
				{"id":"price_hidden","object":"price","active":true,"currency":"brl","unit_amount":100,
				 "recurring":{"interval":"month"},"metadata":{"planId":"plan_basic_monthly","visible":"false"},
				 "product":{"id":"prod_4","object":"product","active":true}},
				{"id":"price_archived","object":"price","active":true,"currency":"brl","unit_amount":100,
				 "recurring":{"interval":"month"},"metadata":{"planId":"plan_basic_monthly"},
				 "product":{"id":"prod_5","object":"product","active":false}}
			]
		}`))
	}))
	defer srv.Close()

	c := NewPriceClient("sk_test_123", testBackend(srv.URL), nil)
	got, skipped, err := c.ListPlanPrices(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, skipped)
	assert.Equal(t, []PlanPrice{
		{PlanID: "plan_pro_monthly", PriceID: "price_pro", ProductID: "prod_1", Amount: 7990, Currency: "brl", Interval: "month"},
		{PlanID: "plan_business_yearly", PriceID: "price_biz", ProductID: "prod_2", Amount: 79900, Currency: "brl", Interval: "year"},
	}, got)
}

func TestListPlanPricesPropagatesErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"error":{"type":"invalid_request_error","message":"Invalid API Key provided"}}`))
	}))
	defer srv.Close()

	c := NewPriceClient("sk_bad", testBackend(srv.URL), nil)
	_, _, err := c.ListPlanPrices(context.Background())
	require.Error(t, err)
	assert.Equal(t, "Invalid API Key provided", ErrorMessage(err))
}
