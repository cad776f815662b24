package handlers

import (
	"net/http"

	"github.com/complyard/complyard/internal/aichat"
	"github.com/complyard/complyard/internal/apperr"
	"github.com/gin-gonic/gin"
)

// ChatHandler proxies conversations to the configured AI provider.
type ChatHandler struct {
	client *aichat.Client
}

// NewChatHandler creates the chat handler.
func NewChatHandler(client *aichat.Client) *ChatHandler {
	return &ChatHandler{client: client}
}

type chatRequest struct {
	Messages []aichat.Message `json:"messages" binding:"required,min=1"`
}

// Complete forwards the conversation and returns the assistant reply together
// with the model that produced it.
func (h *ChatHandler) Complete(c *gin.Context) {
	var req chatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		Error(c, apperr.New(apperr.BadRequest, "at least one message is required"))
		return
	}

	model, reply, err := h.client.Complete(c.Request.Context(), req.Messages)
	if err != nil {
		Error(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"model": model, "message": reply})
}
