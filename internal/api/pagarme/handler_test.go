package pagarmeapi

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"poll-app/internal/domain/billing"
	"poll-app/internal/domain/companies"
	"poll-app/internal/domain/plans"
	"poll-app/internal/infra/pagarme"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type fakeGateway struct {
	calls  int
	got    pagarme.CreateTransactionRequest
	status string
	err    error
}

func (f *fakeGateway) CreateTransaction(_ context.Context, req pagarme.CreateTransactionRequest) (*pagarme.Transaction, json.RawMessage, error) {
	f.calls++
	f.got = req
	if f.err != nil {
		return nil, nil, f.err
	}
	raw := json.RawMessage(fmt.Sprintf(`{"id":4242,"status":%q,"amount":%d,"refuse_reason":"acquirer","date_created":"2026-01-10T12:00:00.000Z","date_updated":"2026-01-10T12:00:05.000Z"}`, f.status, req.Amount))
	var tx pagarme.Transaction
	if err := json.Unmarshal(raw, &tx); err != nil {
		return nil, nil, err
	}
	return &tx, raw, nil
}

type testEnv struct {
	db      *gorm.DB
	svc     *billing.Service
	gateway *fakeGateway
	router  *gin.Engine
}

func newEnv(t *testing.T, secret string) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })
	require.NoError(t, db.AutoMigrate(&plans.Plan{}, &companies.Company{}, &billing.Subscription{}, &billing.Payment{}, &billing.SubscriptionAudit{}))
	require.NoError(t, db.Create(&[]companies.Company{
		{ID: "C1", OwnerID: "user-1", Name: "Acme", Slug: "acme"},
		{ID: "victim-co", OwnerID: "user-2", Name: "Victim", Slug: "victim"},
	}).Error)

	log := logrus.New()
	log.SetOutput(io.Discard)

	catalog := plans.NewCatalog(db, log)
	svc := billing.NewService(db, catalog, nil, log, nil)
	gateway := &fakeGateway{status: "paid"}
	h := NewHandler(Options{
		Reconciler:    billing.NewReconciler(svc, log),
		Plans:         catalog,
		Companies:     companies.NewService(db, log),
		Client:        gateway,
		WebhookSecret: secret,
		Log:           log,
	})

	r := gin.New()
	r.Use(func(c *gin.Context) {
		c.Set("user_id", "user-1")
		c.Set("email", "owner@acme.test")
		c.Next()
	})
	r.POST("/api/pagarme/checkout", h.Checkout)
	r.POST("/api/pagarme/webhook", h.Webhook)
	return &testEnv{db: db, svc: svc, gateway: gateway, router: r}
}

func (e *testEnv) post(path, body string, header map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	for k, v := range header {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func (e *testEnv) payments(t *testing.T) []billing.Payment {
	t.Helper()
	var rows []billing.Payment
	require.NoError(t, e.db.Find(&rows).Error)
	return rows
}

func (e *testEnv) subscription(t *testing.T, companyID string) *billing.Subscription {
	t.Helper()
	sub, err := e.svc.GetSubscriptionByCompany(context.Background(), companyID)
	require.NoError(t, err)
	return sub
}

func (e *testEnv) seedSubscription(t *testing.T, companyID, planID string, status billing.SubscriptionStatus) string {
	t.Helper()
	id, err := e.svc.CreateSubscription(context.Background(), billing.CreateSubscriptionInput{
		CompanyID:   companyID,
		CompanyName: "Acme",
		PlanID:      planID,
		Status:      status,
	})
	require.NoError(t, err)
	return id
}

const cardCheckout = `{"companyId":"C1","companyName":"Acme","planId":"plan_pro_monthly","paymentMethod":"credit_card","cardHash":"hash_1"}`

func TestCheckoutValidation(t *testing.T) {
	env := newEnv(t, "")

	cases := map[string]string{
		"not json":         `{`,
		"missing company":  `{"planId":"plan_pro_monthly","paymentMethod":"pix"}`,
		"missing method":   `{"companyId":"C1","planId":"plan_pro_monthly"}`,
		"unknown method":   `{"companyId":"C1","planId":"plan_pro_monthly","paymentMethod":"cheque"}`,
		"card without ids": `{"companyId":"C1","planId":"plan_pro_monthly","paymentMethod":"credit_card"}`,
		"unknown plan":     `{"companyId":"C1","planId":"plan_gold","paymentMethod":"pix"}`,
		"free plan":        `{"companyId":"C1","planId":"plan_free","paymentMethod":"pix"}`,
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			w := env.post("/api/pagarme/checkout", body, nil)
			assert.Equal(t, http.StatusBadRequest, w.Code, w.Body.String())
		})
	}
	assert.Zero(t, env.gateway.calls)
	assert.Nil(t, env.subscription(t, "C1"))
}

func TestCheckoutPaidActivatesSubscription(t *testing.T) {
	env := newEnv(t, "")

	w := env.post("/api/pagarme/checkout", cardCheckout, nil)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var resp struct {
		SubscriptionID string          `json:"subscriptionId"`
		Transaction    json.RawMessage `json:"transaction"`
		PaymentStatus  string          `json:"paymentStatus"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "PAID", resp.PaymentStatus)
	assert.Contains(t, string(resp.Transaction), `"id":4242`)

	sub := env.subscription(t, "C1")
	require.NotNil(t, sub)
	assert.Equal(t, resp.SubscriptionID, sub.ID)
	assert.Equal(t, billing.StatusActive, sub.Status)
	assert.Equal(t, billing.GatewayPagarme, sub.Gateway)

	assert.Equal(t, int64(7990), env.gateway.got.Amount)
	assert.Equal(t, "C1", env.gateway.got.Metadata["companyId"])
	assert.Equal(t, sub.ID, env.gateway.got.Metadata["subscriptionId"])
	assert.Equal(t, "owner@acme.test", env.gateway.got.Customer.Email)

	rows := env.payments(t)
	require.Len(t, rows, 1)
	assert.Equal(t, billing.PaymentPaid, rows[0].Status)
	assert.Equal(t, "4242", rows[0].InvoiceID)
	assert.Equal(t, "brl", rows[0].Currency)
	assert.NotNil(t, rows[0].PaidAt)
}

func TestCheckoutRefusedMarksPastDue(t *testing.T) {
	env := newEnv(t, "")
	env.gateway.status = "refused"

	w := env.post("/api/pagarme/checkout", cardCheckout, nil)
	require.Equal(t, http.StatusCreated, w.Code)

	sub := env.subscription(t, "C1")
	assert.Equal(t, billing.StatusPastDue, sub.Status)
	require.NotNil(t, sub.PendingInvoiceID)
	assert.Equal(t, "4242", *sub.PendingInvoiceID)

	rows := env.payments(t)
	require.Len(t, rows, 1)
	assert.Equal(t, billing.PaymentFailed, rows[0].Status)
	require.NotNil(t, rows[0].FailureReason)
	assert.Equal(t, "acquirer", *rows[0].FailureReason)
}

func TestCheckoutBoletoAwaitsConfirmation(t *testing.T) {
	env := newEnv(t, "")
	env.gateway.status = "waiting_payment"

	w := env.post("/api/pagarme/checkout", `{"companyId":"C1","planId":"plan_basic_monthly","paymentMethod":"boleto","customer":{"document":"123.456.789-09"}}`, nil)
	require.Equal(t, http.StatusCreated, w.Code)

	assert.Equal(t, billing.StatusAwaitingConfirmation, env.subscription(t, "C1").Status)
	rows := env.payments(t)
	require.Len(t, rows, 1)
	assert.Equal(t, billing.PaymentAwaitingConfirmation, rows[0].Status)

	cust := env.gateway.got.Customer
	assert.Equal(t, "individual", cust.Type)
	assert.Equal(t, []pagarme.Document{{Type: "cpf", Number: "12345678909"}}, cust.Documents)
}

func TestCheckoutSwitchesExistingSubscription(t *testing.T) {
	env := newEnv(t, "")
	id := env.seedSubscription(t, "C1", "plan_basic_monthly", billing.StatusActive)

	w := env.post("/api/pagarme/checkout", cardCheckout, nil)
	require.Equal(t, http.StatusCreated, w.Code)

	sub := env.subscription(t, "C1")
	assert.Equal(t, id, sub.ID)
	assert.Equal(t, "plan_pro_monthly", sub.PlanID)
	assert.Equal(t, billing.StatusActive, sub.Status)
}

func TestCheckoutReplacesCanceledSubscription(t *testing.T) {
	env := newEnv(t, "")
	old := env.seedSubscription(t, "C1", "plan_pro_monthly", billing.StatusCanceled)

	w := env.post("/api/pagarme/checkout", cardCheckout, nil)
	require.Equal(t, http.StatusCreated, w.Code)

	sub := env.subscription(t, "C1")
	assert.NotEqual(t, old, sub.ID)
	assert.Equal(t, billing.StatusActive, sub.Status)
}

func TestCheckoutGatewayErrors(t *testing.T) {
	env := newEnv(t, "")

	env.gateway.err = &pagarme.APIError{StatusCode: 400, Errors: []pagarme.APIErrorDetail{{Message: "card_hash inválido"}}}
	w := env.post("/api/pagarme/checkout", cardCheckout, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "card_hash inválido")

	env.gateway.err = &pagarme.APIError{StatusCode: 502}
	w = env.post("/api/pagarme/checkout", cardCheckout, nil)
	assert.Equal(t, http.StatusInternalServerError, w.Code)

	assert.Empty(t, env.payments(t))
}

func TestCheckoutWithoutClient(t *testing.T) {
	log := logrus.New()
	log.SetOutput(io.Discard)
	env := newEnv(t, "")
	h := NewHandler(Options{Reconciler: billing.NewReconciler(env.svc, log), Log: log})
	r := gin.New()
	r.POST("/checkout", h.Checkout)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/checkout", strings.NewReader(cardCheckout)))
	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

func TestWebhookPaidActivates(t *testing.T) {
	env := newEnv(t, "")
	env.seedSubscription(t, "C1", "plan_pro_monthly", billing.StatusAwaitingConfirmation)

	w := env.post("/api/pagarme/webhook", `{"id":99,"status":"paid","amount":7990,"metadata":{"companyId":"C1"}}`, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"result":"applied"`)

	assert.Equal(t, billing.StatusActive, env.subscription(t, "C1").Status)
	rows := env.payments(t)
	require.Len(t, rows, 1)
	assert.Equal(t, billing.PaymentPaid, rows[0].Status)
	assert.Equal(t, "99", rows[0].InvoiceID)
}

func TestWebhookRefusedMarksPastDue(t *testing.T) {
	env := newEnv(t, "")
	env.seedSubscription(t, "C1", "plan_pro_monthly", billing.StatusActive)

	w := env.post("/api/pagarme/webhook", `{"data":{"object":{"id":"tx_7","status":"refused","refuse_reason":"antifraud","metadata":{"company_id":"C1"}}}}`, nil)
	require.Equal(t, http.StatusOK, w.Code)

	assert.Equal(t, billing.StatusPastDue, env.subscription(t, "C1").Status)
	rows := env.payments(t)
	require.Len(t, rows, 1)
	assert.Equal(t, billing.PaymentFailed, rows[0].Status)
}

func TestWebhookWithoutConsequence(t *testing.T) {
	env := newEnv(t, "")
	env.seedSubscription(t, "C1", "plan_pro_monthly", billing.StatusAwaitingConfirmation)

	w := env.post("/api/pagarme/webhook", `{"transaction":{"id":1,"status":"processing","metadata":{"companyId":"C1"}}}`, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"result":"noop"`)
	assert.Equal(t, billing.StatusAwaitingConfirmation, env.subscription(t, "C1").Status)
	assert.Empty(t, env.payments(t))
}

func TestWebhookUnrecognizablePayload(t *testing.T) {
	env := newEnv(t, "")
	env.seedSubscription(t, "C1", "plan_pro_monthly", billing.StatusAwaitingConfirmation)

	for _, body := range []string{`{"hello":"world"}`, `[]`, `{"data":"x"}`} {
		w := env.post("/api/pagarme/webhook", body, nil)
		assert.Equal(t, http.StatusOK, w.Code, body)
		assert.JSONEq(t, `{"status":"ignored"}`, w.Body.String())
	}
	assert.Empty(t, env.payments(t))
	assert.Equal(t, billing.StatusAwaitingConfirmation, env.subscription(t, "C1").Status)
}

func TestWebhookUnknownCompanyIsAcknowledged(t *testing.T) {
	env := newEnv(t, "")
	w := env.post("/api/pagarme/webhook", `{"id":1,"status":"paid","metadata":{"companyId":"ghost"}}`, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"result":"ignored"`)
	assert.Empty(t, env.payments(t))
}

func TestWebhookMalformedJSON(t *testing.T) {
	env := newEnv(t, "")
	w := env.post("/api/pagarme/webhook", `status=paid`, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestWebhookSignature(t *testing.T) {
	env := newEnv(t, "postback-secret")
	env.seedSubscription(t, "C1", "plan_pro_monthly", billing.StatusAwaitingConfirmation)
	body := `{"id":5,"status":"paid","metadata":{"companyId":"C1"}}`

	w := env.post("/api/pagarme/webhook", body, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = env.post("/api/pagarme/webhook", body, map[string]string{pagarme.SignatureHeader: pagarme.Sign([]byte(body), "other")})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Empty(t, env.payments(t))

	w = env.post("/api/pagarme/webhook", body, map[string]string{pagarme.SignatureHeader: pagarme.Sign([]byte(body), "postback-secret")})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, billing.StatusActive, env.subscription(t, "C1").Status)
}

func TestCheckoutForAnotherCompanyIsForbidden(t *testing.T) {
	env := newEnv(t, "")

	w := env.post("/api/pagarme/checkout", `{"companyId":"victim-co","companyName":"Victim","planId":"plan_pro_monthly","paymentMethod":"pix"}`, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = env.post("/api/pagarme/checkout", `{"companyId":"ghost","companyName":"Ghost","planId":"plan_pro_monthly","paymentMethod":"pix"}`, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	assert.Zero(t, env.gateway.calls)
	assert.Nil(t, env.subscription(t, "victim-co"))
}

func TestWebhookOversizedBodyIsIgnored(t *testing.T) {
	env := newEnv(t, "")
	env.seedSubscription(t, "C1", "plan_pro_monthly", billing.StatusAwaitingConfirmation)

	padding := strings.Repeat("x", maxBodyBytes)
	body := fmt.Sprintf(`{"id":7,"status":"paid","metadata":{"companyId":"C1"},"note":%q}`, padding)
	w := env.post("/api/pagarme/webhook", body, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ignored"}`, w.Body.String())

	assert.Empty(t, env.payments(t))
	assert.Equal(t, billing.StatusAwaitingConfirmation, env.subscription(t, "C1").Status)
}
