package handler

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/berrihq/berri-api/internal/dto"
	"github.com/berrihq/berri-api/internal/models"
	"github.com/berrihq/berri-api/internal/service"
	appErrors "github.com/berrihq/berri-api/pkg/errors"
	"github.com/berrihq/berri-api/pkg/response"
)

type folderService interface {
	Create(ctx context.Context, actor *models.Actor, input service.CreateFolderInput) (*models.Folder, error)
	Get(ctx context.Context, actor *models.Actor, id string) (*models.Folder, error)
	ListChildren(ctx context.Context, actor *models.Actor, parentID *string) ([]models.Folder, error)
	Rename(ctx context.Context, actor *models.Actor, id, newName string) (*models.Folder, error)
	Move(ctx context.Context, actor *models.Actor, id string, newParentID *string) error
	SoftDelete(ctx context.Context, actor *models.Actor, id string) error
	Restore(ctx context.Context, actor *models.Actor, id string) (*models.Folder, error)
}

// FolderHandler manages folder tree HTTP endpoints.
type FolderHandler struct {
	service folderService
}

// NewFolderHandler constructs the handler.
func NewFolderHandler(service folderService) *FolderHandler {
	return &FolderHandler{service: service}
}

// Create handles POST /folders.
func (h *FolderHandler) Create(c *gin.Context) {
	if h.service == nil {
		response.Error(c, appErrors.Clone(appErrors.ErrInternal, "folder service not configured"))
		return
	}
	actor := actorFromContext(c)
	if actor == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var req dto.CreateFolderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid folder payload"))
		return
	}
	input := service.CreateFolderInput{
		Name:        req.Name,
		ParentID:    req.ParentID,
		OwnerTeamID: req.OwnerTeamID,
	}
	if req.InheritPermissions != nil {
		input.InheritPermissions = *req.InheritPermissions
	} else {
		input.InheritPermissions = true
	}
	folder, err := h.service.Create(c.Request.Context(), actor, input)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, folder)
}

// Get handles GET /folders/:id.
func (h *FolderHandler) Get(c *gin.Context) {
	if h.service == nil {
		response.Error(c, appErrors.Clone(appErrors.ErrInternal, "folder service not configured"))
		return
	}
	actor := actorFromContext(c)
	if actor == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	folder, err := h.service.Get(c.Request.Context(), actor, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, folder, nil)
}

// List handles GET /folders. An absent parent_id lists the root level.
func (h *FolderHandler) List(c *gin.Context) {
	if h.service == nil {
		response.Error(c, appErrors.Clone(appErrors.ErrInternal, "folder service not configured"))
		return
	}
	actor := actorFromContext(c)
	if actor == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var parentID *string
	if raw := strings.TrimSpace(c.Query("parent_id")); raw != "" {
		parentID = &raw
	}
	folders, err := h.service.ListChildren(c.Request.Context(), actor, parentID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, folders, nil)
}

// Rename handles PATCH /folders/:id/name.
func (h *FolderHandler) Rename(c *gin.Context) {
	if h.service == nil {
		response.Error(c, appErrors.Clone(appErrors.ErrInternal, "folder service not configured"))
		return
	}
	actor := actorFromContext(c)
	if actor == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var req dto.RenameRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "name is required"))
		return
	}
	folder, err := h.service.Rename(c.Request.Context(), actor, c.Param("id"), req.Name)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, folder, nil)
}

// Move handles POST /folders/:id/move.
func (h *FolderHandler) Move(c *gin.Context) {
	if h.service == nil {
		response.Error(c, appErrors.Clone(appErrors.ErrInternal, "folder service not configured"))
		return
	}
	actor := actorFromContext(c)
	if actor == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var req dto.MoveFolderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid move payload"))
		return
	}
	if err := h.service.Move(c.Request.Context(), actor, c.Param("id"), req.NewParentID); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// Delete handles DELETE /folders/:id.
func (h *FolderHandler) Delete(c *gin.Context) {
	if h.service == nil {
		response.Error(c, appErrors.Clone(appErrors.ErrInternal, "folder service not configured"))
		return
	}
	actor := actorFromContext(c)
	if actor == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	if err := h.service.SoftDelete(c.Request.Context(), actor, c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// Restore handles POST /folders/:id/restore.
func (h *FolderHandler) Restore(c *gin.Context) {
	if h.service == nil {
		response.Error(c, appErrors.Clone(appErrors.ErrInternal, "folder service not configured"))
		return
	}
	actor := actorFromContext(c)
	if actor == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	folder, err := h.service.Restore(c.Request.Context(), actor, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, folder, nil)
}
