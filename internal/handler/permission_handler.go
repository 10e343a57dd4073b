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

type permissionService interface {
	Grant(ctx context.Context, actor *models.Actor, resourceType models.ResourceType, resourceID string, granteeType models.GranteeType, granteeID string, role models.Role) (*models.PermissionEntry, error)
	Deny(ctx context.Context, actor *models.Actor, resourceType models.ResourceType, resourceID string, granteeType models.GranteeType, granteeID string) (*models.PermissionEntry, error)
	Revoke(ctx context.Context, actor *models.Actor, resourceType models.ResourceType, resourceID string, granteeType models.GranteeType, granteeID string) error
	ListPermissions(ctx context.Context, actor *models.Actor, resourceType models.ResourceType, resourceID string) ([]models.PermissionEntry, error)
	EffectiveRole(ctx context.Context, actor *models.Actor, resourceType models.ResourceType, resourceID string) (models.Role, bool)
}

// PermissionHandler manages grant, deny and revoke endpoints. One instance
// is mounted per resource type so folder and file routes share the code.
type PermissionHandler struct {
	service      permissionService
	resourceType models.ResourceType
}

// NewPermissionHandler constructs a handler bound to one resource type.
func NewPermissionHandler(service permissionService, resourceType models.ResourceType) *PermissionHandler {
	return &PermissionHandler{service: service, resourceType: resourceType}
}

// Grant handles POST /{resource}/:id/permissions.
func (h *PermissionHandler) Grant(c *gin.Context) {
	if h.service == nil {
		response.Error(c, appErrors.Clone(appErrors.ErrInternal, "permission service not configured"))
		return
	}
	actor := actorFromContext(c)
	if actor == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var req dto.GrantPermissionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid grant payload"))
		return
	}
	entry, err := h.service.Grant(c.Request.Context(), actor, h.resourceType, c.Param("id"),
		models.GranteeType(req.GranteeType), req.GranteeID, models.Role(req.Role))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, entry)
}

// Deny handles POST /{resource}/:id/permissions/deny.
func (h *PermissionHandler) Deny(c *gin.Context) {
	if h.service == nil {
		response.Error(c, appErrors.Clone(appErrors.ErrInternal, "permission service not configured"))
		return
	}
	actor := actorFromContext(c)
	if actor == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var req dto.DenyPermissionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid deny payload"))
		return
	}
	entry, err := h.service.Deny(c.Request.Context(), actor, h.resourceType, c.Param("id"),
		models.GranteeType(req.GranteeType), req.GranteeID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, entry)
}

// Revoke handles DELETE /{resource}/:id/permissions.
func (h *PermissionHandler) Revoke(c *gin.Context) {
	if h.service == nil {
		response.Error(c, appErrors.Clone(appErrors.ErrInternal, "permission service not configured"))
		return
	}
	actor := actorFromContext(c)
	if actor == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var req dto.RevokePermissionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid revoke payload"))
		return
	}
	err := h.service.Revoke(c.Request.Context(), actor, h.resourceType, c.Param("id"),
		models.GranteeType(req.GranteeType), req.GranteeID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// List handles GET /{resource}/:id/permissions.
func (h *PermissionHandler) List(c *gin.Context) {
	if h.service == nil {
		response.Error(c, appErrors.Clone(appErrors.ErrInternal, "permission service not configured"))
		return
	}
	actor := actorFromContext(c)
	if actor == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	entries, err := h.service.ListPermissions(c.Request.Context(), actor, h.resourceType, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, entries, nil)
}

// EffectiveRole handles GET /{resource}/:id/permissions/effective. It
// reports the caller's own resolved role, mainly for UI gating.
func (h *PermissionHandler) EffectiveRole(c *gin.Context) {
	if h.service == nil {
		response.Error(c, appErrors.Clone(appErrors.ErrInternal, "permission service not configured"))
		return
	}
	actor := actorFromContext(c)
	if actor == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	role, allowed := h.service.EffectiveRole(c.Request.Context(), actor, h.resourceType, c.Param("id"))
	body := gin.H{"allowed": allowed}
	if allowed {
		body["role"] = role
	}
	response.JSON(c, http.StatusOK, body, nil)
}
