package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/berrihq/berri-api/internal/models"
	appErrors "github.com/berrihq/berri-api/pkg/errors"
	"github.com/berrihq/berri-api/pkg/response"
)

type pipelineService interface {
	Status(ctx context.Context, actor *models.Actor, fileID string) (*models.DocumentProcessing, error)
	RequestExtraction(ctx context.Context, actor *models.Actor, fileID string) error
	CommitRedactions(ctx context.Context, actor *models.Actor, fileID string) (*models.DocumentProcessing, error)
	RequestIndex(ctx context.Context, actor *models.Actor, fileID string) error
	RequestFullPipeline(ctx context.Context, actor *models.Actor, fileID string) error
}

// PipelineHandler exposes the document processing state machine over HTTP.
type PipelineHandler struct {
	service pipelineService
}

// NewPipelineHandler constructs the handler.
func NewPipelineHandler(service pipelineService) *PipelineHandler {
	return &PipelineHandler{service: service}
}

// Status handles GET /files/:id/processing.
func (h *PipelineHandler) Status(c *gin.Context) {
	if h.service == nil {
		response.Error(c, appErrors.Clone(appErrors.ErrInternal, "pipeline service not configured"))
		return
	}
	actor := actorFromContext(c)
	if actor == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	rec, err := h.service.Status(c.Request.Context(), actor, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, rec, nil)
}

// Extract handles POST /files/:id/processing/extract.
func (h *PipelineHandler) Extract(c *gin.Context) {
	if h.service == nil {
		response.Error(c, appErrors.Clone(appErrors.ErrInternal, "pipeline service not configured"))
		return
	}
	actor := actorFromContext(c)
	if actor == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	if err := h.service.RequestExtraction(c.Request.Context(), actor, c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusAccepted, gin.H{"queued": true}, nil)
}

// Commit handles POST /files/:id/processing/commit. Irreversible: the raw
// pre-redaction text is destroyed on success.
func (h *PipelineHandler) Commit(c *gin.Context) {
	if h.service == nil {
		response.Error(c, appErrors.Clone(appErrors.ErrInternal, "pipeline service not configured"))
		return
	}
	actor := actorFromContext(c)
	if actor == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	rec, err := h.service.CommitRedactions(c.Request.Context(), actor, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, rec, nil)
}

// Full handles POST /files/:id/processing/full: straight-through extract,
// commit and index with no review pause. Commit rights are checked before
// anything is queued.
func (h *PipelineHandler) Full(c *gin.Context) {
	if h.service == nil {
		response.Error(c, appErrors.Clone(appErrors.ErrInternal, "pipeline service not configured"))
		return
	}
	actor := actorFromContext(c)
	if actor == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	if err := h.service.RequestFullPipeline(c.Request.Context(), actor, c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusAccepted, gin.H{"queued": true}, nil)
}

// Index handles POST /files/:id/processing/index.
func (h *PipelineHandler) Index(c *gin.Context) {
	if h.service == nil {
		response.Error(c, appErrors.Clone(appErrors.ErrInternal, "pipeline service not configured"))
		return
	}
	actor := actorFromContext(c)
	if actor == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	if err := h.service.RequestIndex(c.Request.Context(), actor, c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusAccepted, gin.H{"queued": true}, nil)
}
