package companiesapi

import (
	"errors"
	"net/http"

	"poll-app/internal/domain/companies"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

type Handler struct {
	svc *companies.Service
	log logrus.FieldLogger
}

func NewHandler(svc *companies.Service, log logrus.FieldLogger) *Handler {
	return &Handler{svc: svc, log: log.WithField("component", "companies_api")}
}

func mustUserID(c *gin.Context) (string, bool) {
	userID := c.GetString("user_id")
	if userID == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return "", false
	}
	return userID, true
}

func (h *Handler) writeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, companies.ErrInvalidInput):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, companies.ErrCompanyNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "Company not found"})
	case errors.Is(err, companies.ErrNotOwner):
		c.JSON(http.StatusForbidden, gin.H{"error": "Only the owner can change this company"})
	default:
		h.log.WithError(err).WithField("path", c.FullPath()).Error("company request failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal error"})
	}
}

func (h *Handler) CreateCompany(c *gin.Context) {
	userID, ok := mustUserID(c)
	if !ok {
		return
	}
	var req companies.Input
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	company, err := h.svc.Create(c.Request.Context(), userID, req)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"company": company})
}

// ListMyCompanies returns the companies owned by the caller.
func (h *Handler) ListMyCompanies(c *gin.Context) {
	userID, ok := mustUserID(c)
	if !ok {
		return
	}
	out, err := h.svc.ListByOwner(c.Request.Context(), userID)
	if err != nil {
		h.writeError(c, err)
		return
	}
	if out == nil {
		out = []companies.Company{}
	}
	c.JSON(http.StatusOK, gin.H{"companies": out})
}

func (h *Handler) GetCompany(c *gin.Context) {
	company, err := h.svc.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"company": company})
}

func (h *Handler) UpdateCompany(c *gin.Context) {
	userID, ok := mustUserID(c)
	if !ok {
		return
	}
	var req companies.Input
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	company, err := h.svc.Update(c.Request.Context(), c.Param("id"), userID, req)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"company": company})
}
