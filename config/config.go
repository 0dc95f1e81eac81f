package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Port   string
	AppEnv string
	AppURL string

	DBDialect string
	DBURL     string
	DBPath    string

	JWTSecret    string
	OIDCIssuer   string
	OIDCClientID string
	CORSOrigin   string

	GoogleClientID     string
	GoogleClientSecret string
	GoogleRedirectURL  string
	LoginRedirectURL   string
	AdminEmails        []string
	SessionTTL         time.Duration

	StripeSecretKey     string
	StripeWebhookSecret string

	PagarmeAPIKey        string
	PagarmeBaseURL       string
	PagarmeWebhookSecret string
	PagarmePostbackURL   string
	PagarmeTimeout       time.Duration

	AMQPURL      string
	AMQPExchange string

	LogLevel  string
	LogFormat string
}

// Load reads .env (when present) and then the process environment.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found. Using system environment variables.")
	}
	return FromEnv()
}

// FromEnv builds a Config from the current environment only.
func FromEnv() (*Config, error) {
	cfg := &Config{
		Port:   getEnv("PORT", "8080"),
		AppEnv: getEnv("APP_ENV", "development"),
		AppURL: strings.TrimRight(getEnv("APP_URL", "http://localhost:5173"), "/"),

		DBDialect: strings.ToLower(getEnv("DB_DIALECT", "postgres")),
		DBURL:     getEnv("DB_URL", ""),
		DBPath:    getEnv("DB_PATH", "poll-app.db"),

		JWTSecret:    getEnv("JWT_SECRET", ""),
		OIDCIssuer:   getEnv("OIDC_ISSUER", ""),
		OIDCClientID: getEnv("OIDC_CLIENT_ID", ""),
		CORSOrigin:   getEnv("CORS_ORIGIN", "http://localhost:5173"),

		GoogleClientID:     getEnv("GOOGLE_CLIENT_ID", ""),
		GoogleClientSecret: getEnv("GOOGLE_CLIENT_SECRET", ""),
		GoogleRedirectURL:  getEnv("GOOGLE_REDIRECT_URL", "http://localhost:8080/auth/google/callback"),
		LoginRedirectURL:   getEnv("LOGIN_REDIRECT_URL", ""),
		AdminEmails:        getList("ADMIN_EMAILS"),

		StripeSecretKey:     getEnv("STRIPE_SECRET_KEY", ""),
		StripeWebhookSecret: getEnv("STRIPE_WEBHOOK_SECRET", ""),

		PagarmeAPIKey:        getEnv("PAGARME_API_KEY", ""),
		PagarmeBaseURL:       strings.TrimRight(getEnv("PAGARME_BASE_URL", "https://api.pagar.me/1"), "/"),
		PagarmeWebhookSecret: getEnv("PAGARME_WEBHOOK_SECRET", ""),
		PagarmePostbackURL:   getEnv("PAGARME_POSTBACK_URL", ""),

		AMQPURL:      getEnv("AMQP_URL", ""),
		AMQPExchange: getEnv("AMQP_EXCHANGE", "subscriptions"),

		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "text"),
	}

	timeout, err := getDuration("PAGARME_TIMEOUT", 15*time.Second)
	if err != nil {
		return nil, err
	}
	cfg.PagarmeTimeout = timeout

	ttl, err := getDuration("SESSION_TTL", 24*time.Hour)
	if err != nil {
		return nil, err
	}
	cfg.SessionTTL = ttl

	switch cfg.DBDialect {
	case "postgres":
		if cfg.DBURL == "" {
			return nil, fmt.Errorf("missing required environment variable: DB_URL")
		}
	case "sqlite":
	default:
		return nil, fmt.Errorf("unsupported DB_DIALECT %q", cfg.DBDialect)
	}

	if cfg.JWTSecret == "" && cfg.OIDCIssuer == "" {
		return nil, fmt.Errorf("missing required environment variable: JWT_SECRET or OIDC_ISSUER")
	}

	return cfg, nil
}

func (c *Config) IsProduction() bool {
	return c.AppEnv == "production"
}

// GoogleLoginEnabled reports whether the OAuth login can both run and
// issue session tokens.
func (c *Config) GoogleLoginEnabled() bool {
	return c.GoogleClientID != "" && c.GoogleClientSecret != "" && c.JWTSecret != ""
}

func getEnv(key string, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

// getList splits a comma separated value, dropping blanks and lowercasing.
func getList(key string) []string {
	var out []string
	for _, part := range strings.Split(os.Getenv(key), ",") {
		if v := strings.ToLower(strings.TrimSpace(part)); v != "" {
			out = append(out, v)
		}
	}
	return out
}

// getDuration accepts Go durations ("20s") or a bare number of seconds.
func getDuration(key string, fallback time.Duration) (time.Duration, error) {
	v, ok := os.LookupEnv(key)
	if !ok || strings.TrimSpace(v) == "" {
		return fallback, nil
	}
	if secs, err := strconv.Atoi(v); err == nil {
		return time.Duration(secs) * time.Second, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, v, err)
	}
	return d, nil
}
