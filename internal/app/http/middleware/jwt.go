package middleware

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"poll-app/config"

	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/sirupsen/logrus"
)

// Authenticator accepts ID tokens from the identity provider and, when a
// shared secret is configured, HS256 service tokens.
type Authenticator struct {
	verifier *oidc.IDTokenVerifier
	secret   []byte
	log      logrus.FieldLogger
}

type identity struct {
	UserID string
	Email  string
	Name   string
	Role   string
}

// NewAuthenticator discovers the OIDC provider when OIDC_ISSUER is set.
func NewAuthenticator(ctx context.Context, cfg *config.Config, log logrus.FieldLogger) (*Authenticator, error) {
	var verifier *oidc.IDTokenVerifier
	if cfg.OIDCIssuer != "" {
		provider, err := oidc.NewProvider(ctx, cfg.OIDCIssuer)
		if err != nil {
			return nil, fmt.Errorf("oidc discovery: %w", err)
		}
		verifier = provider.Verifier(&oidc.Config{
			ClientID:          cfg.OIDCClientID,
			SkipClientIDCheck: cfg.OIDCClientID == "",
		})
	}
	return NewAuthenticatorWithVerifier(verifier, cfg.JWTSecret, log), nil
}

func NewAuthenticatorWithVerifier(verifier *oidc.IDTokenVerifier, secret string, log logrus.FieldLogger) *Authenticator {
	return &Authenticator{verifier: verifier, secret: []byte(secret), log: log}
}

func (a *Authenticator) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Authorization header missing"})
			return
		}

		tokenString := strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer "))
		if tokenString == authHeader || tokenString == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Bearer token malformed"})
			return
		}

		id, err := a.authenticate(c.Request.Context(), tokenString)
		if err != nil {
			a.log.WithError(err).Debug("token rejected")
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid or expired token"})
			return
		}

		c.Set("user_id", id.UserID)
		c.Set("email", id.Email)
		c.Set("name", id.Name)
		c.Set("role", id.Role)
		c.Next()
	}
}

func (a *Authenticator) authenticate(ctx context.Context, raw string) (*identity, error) {
	var errs []error
	if a.verifier != nil {
		id, err := a.verifyIDToken(ctx, raw)
		if err == nil {
			return id, nil
		}
		errs = append(errs, err)
	}
	if len(a.secret) > 0 {
		id, err := a.verifyServiceToken(raw)
		if err == nil {
			return id, nil
		}
		errs = append(errs, err)
	}
	if len(errs) == 0 {
		return nil, errors.New("no token verifier configured")
	}
	return nil, errors.Join(errs...)
}

func (a *Authenticator) verifyIDToken(ctx context.Context, raw string) (*identity, error) {
	tok, err := a.verifier.Verify(ctx, raw)
	if err != nil {
		return nil, err
	}
	var claims struct {
		Email string `json:"email"`
		Name  string `json:"name"`
		Role  string `json:"role"`
	}
	if err := tok.Claims(&claims); err != nil {
		return nil, err
	}
	return &identity{UserID: tok.Subject, Email: claims.Email, Name: claims.Name, Role: claims.Role}, nil
}

func (a *Authenticator) verifyServiceToken(raw string) (*identity, error) {
	token, err := jwt.Parse(raw, func(token *jwt.Token) (interface{}, error) {
		return a.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return nil, err
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, errors.New("invalid token claims")
	}

	id := &identity{}
	id.UserID, _ = claims.GetSubject()
	if id.UserID == "" {
		switch v := claims["user_id"].(type) {
		case string:
			id.UserID = v
		case float64:
			id.UserID = fmt.Sprintf("%.0f", v)
		}
	}
	if id.UserID == "" {
		return nil, errors.New("token has no subject")
	}
	id.Email, _ = claims["email"].(string)
	id.Name, _ = claims["name"].(string)
	id.Role, _ = claims["role"].(string)
	return id, nil
}

func RequireRole(role string) gin.HandlerFunc {
	return func(c *gin.Context) {
		value, exists := c.Get("role")
		if !exists {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Role not found in token"})
			return
		}

		if value != role {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "Access denied"})
			return
		}

		c.Next()
	}
}
