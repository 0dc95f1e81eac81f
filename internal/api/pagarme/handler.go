package pagarmeapi

import (
	"context"
	"encoding/json"

	"poll-app/internal/app/http/middleware"
	"poll-app/internal/domain/billing"
	"poll-app/internal/domain/plans"
	"poll-app/internal/infra/metrics"
	"poll-app/internal/infra/pagarme"

	"github.com/sirupsen/logrus"
)

type PlanResolver interface {
	Resolve(ctx context.Context, id string) (*plans.Plan, error)
}

type TransactionCreator interface {
	CreateTransaction(ctx context.Context, req pagarme.CreateTransactionRequest) (*pagarme.Transaction, json.RawMessage, error)
}

// Handler serves the Pagar.me checkout and postback endpoints.
type Handler struct {
	svc           *billing.Service
	reconciler    *billing.Reconciler
	plans         PlanResolver
	companies     middleware.CompanyAuthorizer
	client        TransactionCreator
	webhookSecret string
	metrics       *metrics.Metrics
	log           logrus.FieldLogger
}

type Options struct {
	Reconciler    *billing.Reconciler
	Plans         PlanResolver
	Companies     middleware.CompanyAuthorizer
	Client        TransactionCreator
	WebhookSecret string
	Metrics       *metrics.Metrics
	Log           logrus.FieldLogger
}

// NewHandler accepts a nil Client; checkout then answers 500 while
// postbacks are still processed.
func NewHandler(opts Options) *Handler {
	return &Handler{
		svc:           opts.Reconciler.Service(),
		reconciler:    opts.Reconciler,
		plans:         opts.Plans,
		companies:     opts.Companies,
		client:        opts.Client,
		webhookSecret: opts.WebhookSecret,
		metrics:       opts.Metrics,
		log:           opts.Log.WithField("component", "pagarme_api"),
	}
}
