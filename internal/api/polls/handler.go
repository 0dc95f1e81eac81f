package pollsapi

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"poll-app/internal/app/http/middleware"
	"poll-app/internal/domain/polls"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

type Handler struct {
	svc       *polls.Service
	companies middleware.CompanyAuthorizer
	log       logrus.FieldLogger
}

func NewHandler(svc *polls.Service, companies middleware.CompanyAuthorizer, log logrus.FieldLogger) *Handler {
	return &Handler{svc: svc, companies: companies, log: log.WithField("component", "polls_api")}
}

func mustUserID(c *gin.Context) (string, bool) {
	userID := c.GetString("user_id")
	if userID == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return "", false
	}
	return userID, true
}

// writeError maps domain errors to status codes.
func (h *Handler) writeError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, polls.ErrInvalidInput), errors.Is(err, polls.ErrOptionNotFound):
		status = http.StatusBadRequest
	case errors.Is(err, polls.ErrPollNotFound):
		status = http.StatusNotFound
	case errors.Is(err, polls.ErrSubscriptionRequired):
		status = http.StatusPaymentRequired
	case errors.Is(err, polls.ErrPlanLimitReached), errors.Is(err, polls.ErrNotAuthor):
		status = http.StatusForbidden
	case errors.Is(err, polls.ErrAlreadyVoted), errors.Is(err, polls.ErrPollClosed):
		status = http.StatusConflict
	}
	if status == http.StatusInternalServerError {
		h.log.WithError(err).WithField("path", c.FullPath()).Error("poll request failed")
		c.JSON(status, gin.H{"error": "Internal error"})
		return
	}
	c.JSON(status, gin.H{"error": err.Error()})
}

type createPollRequest struct {
	CompanyID   string     `json:"companyId"`
	Title       string     `json:"title" binding:"required"`
	Description string     `json:"description"`
	Options     []string   `json:"options" binding:"required"`
	ClosesAt    *time.Time `json:"closesAt"`
}

func (h *Handler) CreatePoll(c *gin.Context) {
	h.createPoll(c, "")
}

// CreateCompanyPoll serves POST /api/companies/:id/polls, behind the
// ownership check and the subscription guard.
func (h *Handler) CreateCompanyPoll(c *gin.Context) {
	h.createPoll(c, c.Param("id"))
}

func (h *Handler) createPoll(c *gin.Context, companyID string) {
	userID, ok := mustUserID(c)
	if !ok {
		return
	}
	var req createPollRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if companyID == "" {
		companyID = req.CompanyID
	}
	// Only owners (or admins) publish polls in a company's name.
	if companyID != "" && !middleware.AuthorizeCompany(c, h.companies, companyID, h.log) {
		return
	}

	p, err := h.svc.CreatePoll(c.Request.Context(), polls.CreatePollInput{
		AuthorID:    userID,
		CompanyID:   companyID,
		Title:       req.Title,
		Description: req.Description,
		Options:     req.Options,
		ClosesAt:    req.ClosesAt,
	})
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"poll": p})
}

func (h *Handler) ListPolls(c *gin.Context) {
	limit, _ := strconv.Atoi(c.Query("limit"))
	offset, _ := strconv.Atoi(c.Query("offset"))

	out, err := h.svc.ListPolls(c.Request.Context(), polls.ListFilter{
		CompanyID: c.Query("companyId"),
		AuthorID:  c.Query("authorId"),
		Status:    polls.PollStatus(c.Query("status")),
		Limit:     limit,
		Offset:    offset,
	})
	if err != nil {
		h.writeError(c, err)
		return
	}
	if out == nil {
		out = []polls.Poll{}
	}
	c.JSON(http.StatusOK, gin.H{"polls": out})
}

func (h *Handler) GetPoll(c *gin.Context) {
	p, err := h.svc.GetPoll(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"poll": p})
}

func (h *Handler) ClosePoll(c *gin.Context) {
	userID, ok := mustUserID(c)
	if !ok {
		return
	}
	p, err := h.svc.ClosePoll(c.Request.Context(), c.Param("id"), userID)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"poll": p})
}
