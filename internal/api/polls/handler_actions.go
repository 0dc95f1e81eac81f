package pollsapi

import (
	"net/http"

	"poll-app/internal/domain/polls"

	"github.com/gin-gonic/gin"
)

type voteRequest struct {
	OptionID string `json:"optionId" binding:"required"`
}

func (h *Handler) Vote(c *gin.Context) {
	userID, ok := mustUserID(c)
	if !ok {
		return
	}
	var req voteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "optionId is required"})
		return
	}

	p, err := h.svc.Vote(c.Request.Context(), c.Param("id"), req.OptionID, userID)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"poll": p})
}

type commentRequest struct {
	Body string `json:"body"`
}

func (h *Handler) AddComment(c *gin.Context) {
	userID, ok := mustUserID(c)
	if !ok {
		return
	}
	var req commentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	name := c.GetString("name")
	if name == "" {
		name = c.GetString("email")
	}

	comment, err := h.svc.AddComment(c.Request.Context(), c.Param("id"), userID, name, req.Body)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"comment": comment})
}

func (h *Handler) ListComments(c *gin.Context) {
	out, err := h.svc.ListComments(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	if out == nil {
		out = []polls.Comment{}
	}
	c.JSON(http.StatusOK, gin.H{"comments": out})
}

type reactionRequest struct {
	Kind polls.ReactionKind `json:"kind"`
}

func (h *Handler) React(c *gin.Context) {
	userID, ok := mustUserID(c)
	if !ok {
		return
	}
	var req reactionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	state, err := h.svc.React(c.Request.Context(), c.Param("id"), userID, req.Kind)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, state)
}
