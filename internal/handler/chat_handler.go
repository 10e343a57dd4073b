package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/berrihq/berri-api/internal/dto"
	"github.com/berrihq/berri-api/internal/models"
	"github.com/berrihq/berri-api/internal/service"
	appErrors "github.com/berrihq/berri-api/pkg/errors"
	"github.com/berrihq/berri-api/pkg/response"
)

type contextService interface {
	Answer(ctx context.Context, actor *models.Actor, query string, fileIDs []string, history []service.ChatMessage) (string, *service.RetrievedContext, error)
}

// ChatHandler answers questions through the context retrieval decision tree.
type ChatHandler struct {
	service contextService
}

// NewChatHandler constructs the handler.
func NewChatHandler(service contextService) *ChatHandler {
	return &ChatHandler{service: service}
}

// Ask handles POST /chat.
func (h *ChatHandler) Ask(c *gin.Context) {
	if h.service == nil {
		response.Error(c, appErrors.Clone(appErrors.ErrInternal, "chat service not configured"))
		return
	}
	actor := actorFromContext(c)
	if actor == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var req dto.ChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid chat payload"))
		return
	}
	history := make([]service.ChatMessage, 0, len(req.History))
	for _, msg := range req.History {
		history = append(history, service.ChatMessage{Role: msg.Role, Content: msg.Content})
	}
	answer, retrieved, err := h.service.Answer(c.Request.Context(), actor, req.Query, req.FileIDs, history)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, gin.H{
		"answer":     answer,
		"mode":       retrieved.Mode,
		"sources":    retrieved.Sources,
		"disclaimer": retrieved.Disclaimer,
	}, nil)
}
