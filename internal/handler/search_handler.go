package handler

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/berrihq/berri-api/internal/dto"
	"github.com/berrihq/berri-api/internal/models"
	"github.com/berrihq/berri-api/internal/service"
	appErrors "github.com/berrihq/berri-api/pkg/errors"
	"github.com/berrihq/berri-api/pkg/response"
)

type searchService interface {
	SearchSimilar(ctx context.Context, actor *models.Actor, query string, opts service.SearchOptions) ([]models.SimilarChunk, error)
	ListQueryLogs(ctx context.Context, actor *models.Actor, limit, offset int) ([]models.QueryLog, error)
}

// SearchHandler serves similarity search and the audit log.
type SearchHandler struct {
	service searchService
}

// NewSearchHandler constructs the handler.
func NewSearchHandler(service searchService) *SearchHandler {
	return &SearchHandler{service: service}
}

// Search handles POST /search.
func (h *SearchHandler) Search(c *gin.Context) {
	if h.service == nil {
		response.Error(c, appErrors.Clone(appErrors.ErrInternal, "search service not configured"))
		return
	}
	actor := actorFromContext(c)
	if actor == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var req dto.SearchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid search payload"))
		return
	}
	opts := service.SearchOptions{
		Limit:     req.Limit,
		Threshold: req.Threshold,
		FileIDs:   req.FileIDs,
		IPAddress: c.ClientIP(),
		UserAgent: c.Request.UserAgent(),
	}
	chunks, err := h.service.SearchSimilar(c.Request.Context(), actor, req.Query, opts)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, chunks, nil)
}

// QueryLogs handles GET /search/logs. Super admins only.
func (h *SearchHandler) QueryLogs(c *gin.Context) {
	if h.service == nil {
		response.Error(c, appErrors.Clone(appErrors.ErrInternal, "search service not configured"))
		return
	}
	actor := actorFromContext(c)
	if actor == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))
	logs, err := h.service.ListQueryLogs(c.Request.Context(), actor, limit, offset)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, logs, nil)
}
