package authapi

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"slices"
	"strings"
	"time"

	"poll-app/config"

	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/sirupsen/logrus"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
)

const (
	googleIssuer   = "https://accounts.google.com"
	stateCookie    = "oauth_state"
	stateCookieTTL = 300
	sessionIssuer  = "poll-app"
	defaultSession = 24 * time.Hour
)

type IDTokenVerifier interface {
	Verify(ctx context.Context, rawIDToken string) (*oidc.IDToken, error)
}

func GoogleOAuthConfig(cfg *config.Config) *oauth2.Config {
	return &oauth2.Config{
		ClientID:     cfg.GoogleClientID,
		ClientSecret: cfg.GoogleClientSecret,
		RedirectURL:  cfg.GoogleRedirectURL,
		Scopes: []string{
			oidc.ScopeOpenID,
			"email",
			"profile",
		},
		Endpoint: google.Endpoint,
	}
}

// NewGoogleVerifier discovers Google's signing keys.
func NewGoogleVerifier(ctx context.Context, clientID string) (*oidc.IDTokenVerifier, error) {
	provider, err := oidc.NewProvider(ctx, googleIssuer)
	if err != nil {
		return nil, fmt.Errorf("google oidc discovery: %w", err)
	}
	return provider.Verifier(&oidc.Config{ClientID: clientID}), nil
}

type Options struct {
	OAuth    *oauth2.Config
	Verifier IDTokenVerifier
	// Secret signs the session tokens the auth middleware accepts.
	Secret       string
	SessionTTL   time.Duration
	AdminEmails  []string
	RedirectURL  string
	SecureCookie bool
	Log          logrus.FieldLogger
}

// Handler runs the Google sign-in flow and exchanges a verified Google
// identity for a poll-app session token.
type Handler struct {
	oauth        *oauth2.Config
	verifier     IDTokenVerifier
	secret       []byte
	ttl          time.Duration
	admins       []string
	redirectURL  string
	secureCookie bool
	log          logrus.FieldLogger
	now          func() time.Time
}

func NewHandler(opts Options) *Handler {
	ttl := opts.SessionTTL
	if ttl <= 0 {
		ttl = defaultSession
	}
	admins := make([]string, 0, len(opts.AdminEmails))
	for _, e := range opts.AdminEmails {
		admins = append(admins, strings.ToLower(e))
	}
	return &Handler{
		oauth:        opts.OAuth,
		verifier:     opts.Verifier,
		secret:       []byte(opts.Secret),
		ttl:          ttl,
		admins:       admins,
		redirectURL:  opts.RedirectURL,
		secureCookie: opts.SecureCookie,
		log:          opts.Log.WithField("component", "auth_api"),
		now:          time.Now,
	}
}

func randomState() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

// GET /auth/google
func (h *Handler) GoogleStart(c *gin.Context) {
	state, err := randomState()
	if err != nil {
		h.log.WithError(err).Error("oauth state generation failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to generate state"})
		return
	}

	c.SetCookie(stateCookie, state, stateCookieTTL, "/", "", h.secureCookie, true)
	c.Redirect(http.StatusFound, h.oauth.AuthCodeURL(state, oauth2.AccessTypeOnline))
}

// GET /auth/google/callback
func (h *Handler) GoogleCallback(c *gin.Context) {
	state := c.Query("state")
	code := c.Query("code")
	if code == "" || state == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing code/state"})
		return
	}

	cookieState, err := c.Cookie(stateCookie)
	if err != nil || cookieState != state {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid oauth state"})
		return
	}
	c.SetCookie(stateCookie, "", -1, "/", "", h.secureCookie, true)

	ctx := c.Request.Context()
	tok, err := h.oauth.Exchange(ctx, code)
	if err != nil {
		h.log.WithError(err).Warn("oauth code exchange failed")
		c.JSON(http.StatusUnauthorized, gin.H{"error": "failed to exchange code"})
		return
	}

	rawIDToken, ok := tok.Extra("id_token").(string)
	if !ok || rawIDToken == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing id_token"})
		return
	}

	claims, err := h.verifyIDToken(ctx, rawIDToken)
	if err != nil {
		h.log.WithError(err).Warn("google id token rejected")
		c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
		return
	}

	token, expiresAt, err := h.issueSessionToken(claims)
	if err != nil {
		h.log.WithError(err).Error("session token signing failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not create token"})
		return
	}

	h.log.WithFields(logrus.Fields{"user_id": claims.Sub, "role": h.roleFor(claims)}).Info("google sign-in")

	if h.redirectURL == "" {
		c.JSON(http.StatusOK, gin.H{"token": token, "expiresAt": expiresAt})
		return
	}
	target, err := url.Parse(h.redirectURL)
	if err != nil {
		h.log.WithError(err).Error("invalid login redirect url")
		c.JSON(http.StatusOK, gin.H{"token": token, "expiresAt": expiresAt})
		return
	}
	q := target.Query()
	q.Set("token", token)
	target.RawQuery = q.Encode()
	c.Redirect(http.StatusFound, target.String())
}

/* ---------------- helpers ---------------- */

type googleIDClaims struct {
	Sub           string `json:"sub"`
	Email         string `json:"email"`
	EmailVerified bool   `json:"email_verified"`
	Name          string `json:"name"`
	GivenName     string `json:"given_name"`
}

func (h *Handler) verifyIDToken(ctx context.Context, raw string) (*googleIDClaims, error) {
	idToken, err := h.verifier.Verify(ctx, raw)
	if err != nil {
		return nil, errors.New("invalid id_token")
	}

	var claims googleIDClaims
	if err := idToken.Claims(&claims); err != nil {
		return nil, errors.New("failed to decode token claims")
	}
	if claims.Sub == "" {
		claims.Sub = idToken.Subject
	}
	if claims.Email == "" || claims.Sub == "" {
		return nil, errors.New("token missing required claims")
	}
	return &claims, nil
}

// roleFor grants admin only to verified addresses on the allow list.
func (h *Handler) roleFor(gc *googleIDClaims) string {
	if gc.EmailVerified && slices.Contains(h.admins, strings.ToLower(gc.Email)) {
		return "admin"
	}
	return "user"
}

func (h *Handler) issueSessionToken(gc *googleIDClaims) (string, time.Time, error) {
	now := h.now()
	exp := now.Add(h.ttl)
	t := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"iss":   sessionIssuer,
		"sub":   gc.Sub,
		"email": gc.Email,
		"name":  firstNonEmpty(gc.Name, gc.GivenName),
		"role":  h.roleFor(gc),
		"iat":   now.Unix(),
		"exp":   exp.Unix(),
	})
	s, err := t.SignedString(h.secret)
	return s, exp, err
}

func firstNonEmpty(s ...string) string {
	for _, v := range s {
		if v != "" {
			return v
		}
	}
	return ""
}
