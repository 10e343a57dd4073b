package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/berrihq/berri-api/internal/dto"
	"github.com/berrihq/berri-api/internal/models"
	appErrors "github.com/berrihq/berri-api/pkg/errors"
	"github.com/berrihq/berri-api/pkg/response"
)

type redactionService interface {
	AddRedaction(ctx context.Context, actor *models.Actor, fileID string, red *models.Redaction) (*models.Redaction, error)
	ListRedactions(ctx context.Context, actor *models.Actor, fileID string) ([]models.Redaction, error)
	DeleteRedaction(ctx context.Context, actor *models.Actor, fileID, redactionID string) error
	Suggest(ctx context.Context, actor *models.Actor, fileID string) ([]models.RedactionSuggestion, error)
	Preview(ctx context.Context, actor *models.Actor, fileID string) (string, error)
}

// RedactionHandler manages the review-stage redaction endpoints.
type RedactionHandler struct {
	service redactionService
}

// NewRedactionHandler constructs the handler.
func NewRedactionHandler(service redactionService) *RedactionHandler {
	return &RedactionHandler{service: service}
}

// Add handles POST /files/:id/redactions.
func (h *RedactionHandler) Add(c *gin.Context) {
	if h.service == nil {
		response.Error(c, appErrors.Clone(appErrors.ErrInternal, "redaction service not configured"))
		return
	}
	actor := actorFromContext(c)
	if actor == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var req dto.CreateRedactionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid redaction payload"))
		return
	}
	red := &models.Redaction{
		Type:          models.RedactionType(req.Type),
		StartOffset:   req.StartOffset,
		EndOffset:     req.EndOffset,
		Pattern:       req.Pattern,
		SemanticLabel: req.SemanticLabel,
	}
	created, err := h.service.AddRedaction(c.Request.Context(), actor, c.Param("id"), red)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, created)
}

// List handles GET /files/:id/redactions.
func (h *RedactionHandler) List(c *gin.Context) {
	if h.service == nil {
		response.Error(c, appErrors.Clone(appErrors.ErrInternal, "redaction service not configured"))
		return
	}
	actor := actorFromContext(c)
	if actor == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	spans, err := h.service.ListRedactions(c.Request.Context(), actor, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, spans, nil)
}

// Delete handles DELETE /files/:id/redactions/:redactionId.
func (h *RedactionHandler) Delete(c *gin.Context) {
	if h.service == nil {
		response.Error(c, appErrors.Clone(appErrors.ErrInternal, "redaction service not configured"))
		return
	}
	actor := actorFromContext(c)
	if actor == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	if err := h.service.DeleteRedaction(c.Request.Context(), actor, c.Param("id"), c.Param("redactionId")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// Suggest handles GET /files/:id/redactions/suggestions.
func (h *RedactionHandler) Suggest(c *gin.Context) {
	if h.service == nil {
		response.Error(c, appErrors.Clone(appErrors.ErrInternal, "redaction service not configured"))
		return
	}
	actor := actorFromContext(c)
	if actor == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	suggestions, err := h.service.Suggest(c.Request.Context(), actor, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, suggestions, nil)
}

// Preview handles GET /files/:id/redactions/preview.
func (h *RedactionHandler) Preview(c *gin.Context) {
	if h.service == nil {
		response.Error(c, appErrors.Clone(appErrors.ErrInternal, "redaction service not configured"))
		return
	}
	actor := actorFromContext(c)
	if actor == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	preview, err := h.service.Preview(c.Request.Context(), actor, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, gin.H{"preview": preview}, nil)
}
