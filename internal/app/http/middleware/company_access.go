package middleware

import (
	"context"
	"errors"
	"net/http"

	"poll-app/internal/domain/companies"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

type CompanyAuthorizer interface {
	Authorize(ctx context.Context, companyID, userID, role string) error
}

// AuthorizeCompany checks that the authenticated caller owns companyID or is
// an admin. On failure it aborts the request and returns false.
func AuthorizeCompany(c *gin.Context, authz CompanyAuthorizer, companyID string, log logrus.FieldLogger) bool {
	userID := c.GetString("user_id")
	err := authz.Authorize(c.Request.Context(), companyID, userID, c.GetString("role"))
	switch {
	case err == nil:
		return true
	case errors.Is(err, companies.ErrCompanyNotFound):
		c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "Company not found"})
	case errors.Is(err, companies.ErrNotOwner):
		log.WithFields(logrus.Fields{"company_id": companyID, "user_id": userID}).Warn("company access denied")
		c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "Access denied"})
	default:
		log.WithError(err).WithField("company_id", companyID).Error("company lookup failed")
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Failed to check company access"})
	}
	return false
}

// RequireCompanyOwner runs AuthorizeCompany against the named route
// parameter. Mount it ahead of RequireActiveSubscription so callers without
// access never learn the subscription state.
func RequireCompanyOwner(authz CompanyAuthorizer, param string, log logrus.FieldLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !AuthorizeCompany(c, authz, c.Param(param), log) {
			return
		}
		c.Next()
	}
}

// IsAdmin reports whether the authenticated caller holds the admin role.
func IsAdmin(c *gin.Context) bool {
	return c.GetString("role") == companies.RoleAdmin
}
