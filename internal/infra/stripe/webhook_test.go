package stripe

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"poll-app/internal/domain/billing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	stripeapi "github.com/stripe/stripe-go/v75"
)

const testSecret = "whsec_test"

func sign(payload []byte, secret string, ts time.Time) string {
	mac := hmac.New(sha256.New, []byte(secret))
	fmt.Fprintf(mac, "%d.%s", ts.Unix(), payload)
	return fmt.Sprintf("t=%d,v1=%s", ts.Unix(), hex.EncodeToString(mac.Sum(nil)))
}

func TestVerifyEvent(t *testing.T) {
	payload := []byte(`{"id":"evt_1","object":"event","type":"invoice.paid","api_version":"2020-08-27","data":{"object":{"id":"in_1","object":"invoice"}}}`)

	evt, err := VerifyEvent(payload, sign(payload, testSecret, time.Now()), testSecret)
	require.NoError(t, err)
	assert.Equal(t, "invoice.paid", string(evt.Type))

	_, err = VerifyEvent(payload, sign(payload, "whsec_other", time.Now()), testSecret)
	assert.Error(t, err)

	_, err = VerifyEvent(payload, "", testSecret)
	assert.Error(t, err)
}

func TestInvoiceOutcome(t *testing.T) {
	raw := json.RawMessage(`{
		"id": "in_1",
		"object": "invoice",
		"status": "paid",
		"currency": "brl",
		"amount_due": 7990,
		"amount_paid": 7990,
		"created": 1767225600,
		"subscription": "sub_1",
		"status_transitions": {"paid_at": 1767229200},
		"lines": {"object": "list", "data": [{"id": "il_1", "object": "line_item", "metadata": {"company_id": "C1"}}]}
	}`)
	var inv stripeapi.Invoice
	require.NoError(t, json.Unmarshal(raw, &inv))

	out := InvoiceOutcome(&inv, billing.PaymentPaid, raw)
	assert.Equal(t, billing.GatewayStripe, out.Gateway)
	assert.Equal(t, "C1", out.CompanyID)
	assert.Equal(t, "sub_1", out.GatewaySubscriptionID)
	assert.Equal(t, "in_1", out.InvoiceID)
	assert.Equal(t, int64(7990), out.Amount)
	assert.Equal(t, time.Unix(1767225600, 0).UTC(), out.DueDate)
	require.NotNil(t, out.PaidAt)
	assert.Equal(t, time.Unix(1767229200, 0).UTC(), *out.PaidAt)
	assert.Empty(t, out.FailureReason)
}

func TestInvoiceOutcomeFailureReason(t *testing.T) {
	raw := json.RawMessage(`{
		"id": "in_2",
		"object": "invoice",
		"status": "open",
		"amount_due": 2990,
		"metadata": {"companyId": "C9"},
		"payment_intent": {"id": "pi_1", "object": "payment_intent", "last_payment_error": {"message": "Your card was declined."}}
	}`)
	var inv stripeapi.Invoice
	require.NoError(t, json.Unmarshal(raw, &inv))

	out := InvoiceOutcome(&inv, billing.PaymentFailed, raw)
	assert.Equal(t, "C9", out.CompanyID)
	assert.Equal(t, int64(2990), out.Amount)
	assert.Equal(t, "Your card was declined.", out.FailureReason)
	assert.Nil(t, out.PaidAt)
}

func TestSessionOutcome(t *testing.T) {
	raw := json.RawMessage(`{
		"id": "cs_1",
		"object": "checkout.session",
		"client_reference_id": "C5",
		"payment_status": "paid",
		"amount_total": 7990,
		"currency": "brl",
		"subscription": "sub_5",
		"invoice": "in_5",
		"created": 1767225600
	}`)
	var s stripeapi.CheckoutSession
	require.NoError(t, json.Unmarshal(raw, &s))

	out := SessionOutcome(&s, raw)
	assert.Equal(t, "C5", out.CompanyID)
	assert.Equal(t, billing.PaymentPaid, out.Status)
	assert.Equal(t, "in_5", out.InvoiceID)
	assert.Equal(t, "sub_5", out.GatewaySubscriptionID)
	require.NotNil(t, out.PaidAt)
}

func TestPeriod(t *testing.T) {
	start, end, err := Period(&stripeapi.Subscription{ID: "sub_1", CurrentPeriodStart: 100, CurrentPeriodEnd: 200})
	require.NoError(t, err)
	assert.Equal(t, int64(100), start.Unix())
	assert.Equal(t, int64(200), end.Unix())

	_, _, err = Period(&stripeapi.Subscription{ID: "sub_2"})
	assert.Error(t, err)
}
