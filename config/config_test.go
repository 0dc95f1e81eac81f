package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromEnvDefaults(t *testing.T) {
	t.Setenv("DB_DIALECT", "sqlite")
	t.Setenv("JWT_SECRET", "secret")

	cfg, err := FromEnv()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, "sqlite", cfg.DBDialect)
	assert.Equal(t, "poll-app.db", cfg.DBPath)
	assert.Equal(t, "https://api.pagar.me/1", cfg.PagarmeBaseURL)
	assert.Equal(t, 15*time.Second, cfg.PagarmeTimeout)
	assert.Equal(t, "subscriptions", cfg.AMQPExchange)
	assert.False(t, cfg.IsProduction())
}

func TestFromEnvPostgresRequiresURL(t *testing.T) {
	t.Setenv("DB_DIALECT", "postgres")
	t.Setenv("DB_URL", "")
	t.Setenv("JWT_SECRET", "secret")

	_, err := FromEnv()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "DB_URL")
}

func TestFromEnvRejectsUnknownDialect(t *testing.T) {
	t.Setenv("DB_DIALECT", "oracle")
	t.Setenv("JWT_SECRET", "secret")

	_, err := FromEnv()
	require.Error(t, err)
}

func TestFromEnvRequiresSomeAuth(t *testing.T) {
	t.Setenv("DB_DIALECT", "sqlite")
	t.Setenv("JWT_SECRET", "")
	t.Setenv("OIDC_ISSUER", "")

	_, err := FromEnv()
	require.Error(t, err)

	t.Setenv("OIDC_ISSUER", "https://securetoken.google.com/poll-app")
	_, err = FromEnv()
	require.NoError(t, err)
}

func TestFromEnvPagarmeTimeout(t *testing.T) {
	t.Setenv("DB_DIALECT", "sqlite")
	t.Setenv("JWT_SECRET", "secret")

	t.Setenv("PAGARME_TIMEOUT", "30")
	cfg, err := FromEnv()
	require.NoError(t, err)
	assert.Equal(t, 30*time.Second, cfg.PagarmeTimeout)

	t.Setenv("PAGARME_TIMEOUT", "1m")
	cfg, err = FromEnv()
	require.NoError(t, err)
	assert.Equal(t, time.Minute, cfg.PagarmeTimeout)

	t.Setenv("PAGARME_TIMEOUT", "soon")
	_, err = FromEnv()
	require.Error(t, err)
}

func TestTrailingSlashesTrimmed(t *testing.T) {
	t.Setenv("DB_DIALECT", "sqlite")
	t.Setenv("JWT_SECRET", "secret")
	t.Setenv("APP_URL", "https://polls.example.com/")
	t.Setenv("PAGARME_BASE_URL", "https://sandbox.pagar.me/1/")

	cfg, err := FromEnv()
	require.NoError(t, err)
	assert.Equal(t, "https://polls.example.com", cfg.AppURL)
	assert.Equal(t, "https://sandbox.pagar.me/1", cfg.PagarmeBaseURL)
}

func TestGoogleLoginSettings(t *testing.T) {
	t.Setenv("DB_DIALECT", "sqlite")
	t.Setenv("JWT_SECRET", "secret")
	t.Setenv("GOOGLE_CLIENT_ID", "client")
	t.Setenv("GOOGLE_CLIENT_SECRET", "")
	t.Setenv("ADMIN_EMAILS", " Ops@Example.com, ,billing@example.com")

	cfg, err := FromEnv()
	require.NoError(t, err)
	assert.False(t, cfg.GoogleLoginEnabled())
	assert.Equal(t, []string{"ops@example.com", "billing@example.com"}, cfg.AdminEmails)
	assert.Equal(t, 24*time.Hour, cfg.SessionTTL)

	t.Setenv("GOOGLE_CLIENT_SECRET", "shh")
	t.Setenv("SESSION_TTL", "2h")
	cfg, err = FromEnv()
	require.NoError(t, err)
	assert.True(t, cfg.GoogleLoginEnabled())
	assert.Equal(t, 2*time.Hour, cfg.SessionTTL)
}
