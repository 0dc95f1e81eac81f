package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"poll-app/config"
	"poll-app/database"
	adminapi "poll-app/internal/api/admin"
	authapi "poll-app/internal/api/auth"
	billingapi "poll-app/internal/api/billing"
	companiesapi "poll-app/internal/api/companies"
	pagarmeapi "poll-app/internal/api/pagarme"
	plansapi "poll-app/internal/api/plans"
	pollsapi "poll-app/internal/api/polls"
	stripewebhooks "poll-app/internal/api/stripewebhook"
	usersapi "poll-app/internal/api/users"
	routes "poll-app/internal/app/http"
	"poll-app/internal/app/http/middleware"
	"poll-app/internal/domain/billing"
	"poll-app/internal/domain/companies"
	"poll-app/internal/domain/plans"
	"poll-app/internal/domain/polls"
	"poll-app/internal/infra/events"
	"poll-app/internal/infra/logging"
	"poll-app/internal/infra/metrics"
	"poll-app/internal/infra/pagarme"
	stripeinfra "poll-app/internal/infra/stripe"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logrus.WithError(err).Fatal("invalid configuration")
	}

	format := cfg.LogFormat
	if cfg.IsProduction() {
		format = "json"
		gin.SetMode(gin.ReleaseMode)
	}
	log := logging.New(cfg.LogLevel, format, nil)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.WithError(err).Fatal("server stopped")
	}
	log.Info("shutdown complete")
}

const shutdownTimeout = 10 * time.Second

// run wires the service and serves until ctx is canceled. Resources opened
// here are released before it returns.
func run(ctx context.Context, cfg *config.Config, log logrus.FieldLogger) error {
	db, err := database.Open(cfg, log)
	if err != nil {
		return fmt.Errorf("database unavailable: %w", err)
	}
	if err := database.Migrate(db); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	m := metrics.New()

	var publisher events.Publisher = events.NopPublisher{}
	if cfg.AMQPURL != "" {
		amqpPub, err := events.DialAMQP(cfg.AMQPURL, cfg.AMQPExchange, log)
		if err != nil {
			return fmt.Errorf("amqp unavailable: %w", err)
		}
		defer func() {
			if err := amqpPub.Close(); err != nil {
				log.WithError(err).Warn("amqp close failed")
			}
		}()
		publisher = amqpPub
	}

	catalog := plans.NewCatalog(db, log)
	if err := catalog.EnsureSeeded(ctx); err != nil {
		// reads fall back to the seed list until the store recovers
		log.WithError(err).Error("plan seeding failed")
	}

	svc := billing.NewService(db, catalog, publisher, log, m)
	reconciler := billing.NewReconciler(svc, log)
	companySvc := companies.NewService(db, log)

	auth, err := middleware.NewAuthenticator(ctx, cfg, log)
	if err != nil {
		return fmt.Errorf("auth setup failed: %w", err)
	}

	var login *authapi.Handler
	if cfg.GoogleLoginEnabled() {
		verifier, err := authapi.NewGoogleVerifier(ctx, cfg.GoogleClientID)
		if err != nil {
			return fmt.Errorf("google sign-in setup failed: %w", err)
		}
		login = authapi.NewHandler(authapi.Options{
			OAuth:        authapi.GoogleOAuthConfig(cfg),
			Verifier:     verifier,
			Secret:       cfg.JWTSecret,
			SessionTTL:   cfg.SessionTTL,
			AdminEmails:  cfg.AdminEmails,
			RedirectURL:  cfg.LoginRedirectURL,
			SecureCookie: cfg.IsProduction(),
			Log:          log,
		})
	} else {
		log.Warn("google sign-in disabled")
	}

	var checkout billingapi.CheckoutSessions
	var prices plansapi.PriceLister
	var stripePlans billingapi.StripePlans
	var canceller stripewebhooks.SubscriptionCanceller
	if cfg.StripeSecretKey != "" {
		checkout = stripeinfra.NewCheckoutClient(cfg.StripeSecretKey, nil, cfg.AppURL, m)
		prices = stripeinfra.NewPriceClient(cfg.StripeSecretKey, nil, m)
		stripeSubs := stripeinfra.NewSubscriptionClient(cfg.StripeSecretKey, nil, m)
		stripePlans, canceller = stripeSubs, stripeSubs
	} else {
		log.Warn("STRIPE_SECRET_KEY not set, stripe checkout disabled")
	}

	var transactions pagarmeapi.TransactionCreator
	if cfg.PagarmeAPIKey != "" {
		client, err := pagarme.NewClient(pagarme.ClientConfig{
			APIKey:      cfg.PagarmeAPIKey,
			BaseURL:     cfg.PagarmeBaseURL,
			PostbackURL: cfg.PagarmePostbackURL,
			Timeout:     cfg.PagarmeTimeout,
			Metrics:     m,
		})
		if err != nil {
			return fmt.Errorf("pagarme client setup failed: %w", err)
		}
		transactions = client
	} else {
		log.Warn("PAGARME_API_KEY not set, pagarme checkout disabled")
	}

	r := gin.New()
	r.Use(gin.Recovery(), logging.RequestLogger(log), m.Middleware())
	r.Use(cors.New(cors.Config{
		AllowOrigins:     []string{cfg.CORSOrigin},
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	routes.RegisterRoutes(r, routes.Dependencies{
		Auth:          auth,
		Subscriptions: svc,
		Owners:        companySvc,
		Metrics:       m,
		Log:           log,

		Billing: billingapi.NewHandler(billingapi.Options{
			Service:     svc,
			Plans:       catalog,
			Companies:   companySvc,
			Checkout:    checkout,
			StripePlans: stripePlans,
			Log:         log,
		}),
		Plans: plansapi.NewHandler(catalog, prices, log),
		Pagarme: pagarmeapi.NewHandler(pagarmeapi.Options{
			Reconciler:    reconciler,
			Plans:         catalog,
			Companies:     companySvc,
			Client:        transactions,
			WebhookSecret: cfg.PagarmeWebhookSecret,
			Metrics:       m,
			Log:           log,
		}),
		StripeWebhooks: stripewebhooks.NewHandler(stripewebhooks.Options{
			Reconciler: reconciler,
			Secret:     cfg.StripeWebhookSecret,
			Canceller:  canceller,
			Metrics:    m,
			Log:        log,
		}),
		Companies: companiesapi.NewHandler(companySvc, log),
		Polls:     pollsapi.NewHandler(polls.NewService(db, svc, log), companySvc, log),
		Users:          usersapi.NewHandler(companySvc, svc, log),
		Admin:          adminapi.NewHandler(svc, log),
		Login:          login,
	})

	srv := &http.Server{Addr: ":" + cfg.Port, Handler: r}
	serveErr := make(chan error, 1)
	go func() {
		log.WithField("port", cfg.Port).Info("listening")
		serveErr <- srv.ListenAndServe()
	}()

	select {
	case err := <-serveErr:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http shutdown: %w", err)
	}
	return nil
}
