package service

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/berrihq/berri-api/internal/authz"
	"github.com/berrihq/berri-api/internal/models"
	appErrors "github.com/berrihq/berri-api/pkg/errors"
)

const maxResourceNameLen = 255

type folderStore interface {
	Create(ctx context.Context, folder *models.Folder) error
	GetByID(ctx context.Context, orgID, id string) (*models.Folder, error)
	GetNode(ctx context.Context, orgID, id string) (*models.ResourceNode, error)
	ListChildren(ctx context.Context, orgID string, parentID *string) ([]models.Folder, error)
	SiblingNameExists(ctx context.Context, orgID string, parentID *string, name, excludeID string) (bool, error)
	Rename(ctx context.Context, orgID, id, name string) error
	Move(ctx context.Context, orgID, id string, newParentID *string) error
	SoftDelete(ctx context.Context, orgID, id, deletedBy string) error
	Restore(ctx context.Context, orgID, id string) error
}

type accessChecker interface {
	AssertAccess(ctx context.Context, actor *models.Actor, resourceType models.ResourceType, resourceID string, action authz.Action) error
	CanAccess(ctx context.Context, actor *models.Actor, resourceType models.ResourceType, resourceID string, action authz.Action) bool
}

// CreateFolderInput carries a folder creation request.
type CreateFolderInput struct {
	Name               string
	ParentID           *string
	OwnerTeamID        *string
	InheritPermissions bool
}

// FolderService implements the folder half of the resource tree: CRUD,
// move, soft delete and restore, each gated by the permission resolver.
type FolderService struct {
	folders folderStore
	perms   accessChecker
	logger  *zap.Logger
}

// NewFolderService constructs the service.
func NewFolderService(folders folderStore, perms accessChecker, logger *zap.Logger) *FolderService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FolderService{folders: folders, perms: perms, logger: logger}
}

// validateResourceName rejects names that would break listings or paths.
func validateResourceName(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", appErrors.Clone(appErrors.ErrValidation, "name is required")
	}
	if len([]rune(name)) > maxResourceNameLen {
		return "", appErrors.Clone(appErrors.ErrValidation, "name exceeds 255 characters")
	}
	if strings.ContainsAny(name, "/\x00") {
		return "", appErrors.Clone(appErrors.ErrValidation, "name contains invalid characters")
	}
	return name, nil
}

// Create makes a folder. Creating under a parent requires editor on that
// parent; root folders require membership of the owning team (or
// super-admin).
func (s *FolderService) Create(ctx context.Context, actor *models.Actor, input CreateFolderInput) (*models.Folder, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	name, err := validateResourceName(input.Name)
	if err != nil {
		return nil, err
	}

	if input.ParentID != nil {
		if err := s.perms.AssertAccess(ctx, actor, models.ResourceFolder, *input.ParentID, authz.ActionCreate); err != nil {
			return nil, err
		}
	} else if !actor.SuperAdmin {
		if input.OwnerTeamID == nil || !actor.InTeam(*input.OwnerTeamID) {
			return nil, appErrors.Clone(appErrors.ErrForbidden, "root folders must be owned by one of your teams")
		}
	}

	exists, err := s.folders.SiblingNameExists(ctx, actor.OrganizationID, input.ParentID, name, "")
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check sibling names")
	}
	if exists {
		return nil, appErrors.ErrDuplicateName
	}

	folder := &models.Folder{
		OrganizationID:     actor.OrganizationID,
		OwnerTeamID:        input.OwnerTeamID,
		ParentID:           input.ParentID,
		Name:               name,
		InheritPermissions: input.InheritPermissions,
		CreatedBy:          actor.UserID,
	}
	if err := s.folders.Create(ctx, folder); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create folder")
	}
	return folder, nil
}

// Get returns one live folder.
func (s *FolderService) Get(ctx context.Context, actor *models.Actor, id string) (*models.Folder, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	if err := s.perms.AssertAccess(ctx, actor, models.ResourceFolder, id, authz.ActionView); err != nil {
		return nil, err
	}
	folder, err := s.folders.GetByID(ctx, actor.OrganizationID, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "folder not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load folder")
	}
	if folder.DeletedAt != nil {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "folder not found")
	}
	return folder, nil
}

// ListChildren lists the live subfolders the actor can see. At the root
// (nil parent) each candidate is filtered through the resolver; under a
// parent, list access on the parent suffices.
func (s *FolderService) ListChildren(ctx context.Context, actor *models.Actor, parentID *string) ([]models.Folder, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	if parentID != nil {
		if err := s.perms.AssertAccess(ctx, actor, models.ResourceFolder, *parentID, authz.ActionList); err != nil {
			return nil, err
		}
	}
	folders, err := s.folders.ListChildren(ctx, actor.OrganizationID, parentID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list folders")
	}
	if parentID != nil {
		return folders, nil
	}

	visible := make([]models.Folder, 0, len(folders))
	for _, folder := range folders {
		if s.perms.CanAccess(ctx, actor, models.ResourceFolder, folder.ID, authz.ActionView) {
			visible = append(visible, folder)
		}
	}
	return visible, nil
}

// Rename changes the folder name, keeping sibling uniqueness.
func (s *FolderService) Rename(ctx context.Context, actor *models.Actor, id, newName string) (*models.Folder, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	name, err := validateResourceName(newName)
	if err != nil {
		return nil, err
	}
	if err := s.perms.AssertAccess(ctx, actor, models.ResourceFolder, id, authz.ActionRename); err != nil {
		return nil, err
	}

	folder, err := s.folders.GetByID(ctx, actor.OrganizationID, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "folder not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load folder")
	}

	exists, err := s.folders.SiblingNameExists(ctx, actor.OrganizationID, folder.ParentID, name, id)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check sibling names")
	}
	if exists {
		return nil, appErrors.ErrDuplicateName
	}

	if err := s.folders.Rename(ctx, actor.OrganizationID, id, name); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "folder not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to rename folder")
	}
	folder.Name = name
	return folder, nil
}

// Move reparents a folder. Requires editor on the folder and create rights
// at the destination; moving a folder into its own subtree is refused.
func (s *FolderService) Move(ctx context.Context, actor *models.Actor, id string, newParentID *string) error {
	if actor == nil {
		return appErrors.ErrUnauthorized
	}
	if err := s.perms.AssertAccess(ctx, actor, models.ResourceFolder, id, authz.ActionMove); err != nil {
		return err
	}
	if newParentID != nil {
		if *newParentID == id {
			return appErrors.ErrCircularMove
		}
		if err := s.perms.AssertAccess(ctx, actor, models.ResourceFolder, *newParentID, authz.ActionCreate); err != nil {
			return err
		}
		if err := s.assertNotDescendant(ctx, actor.OrganizationID, id, *newParentID); err != nil {
			return err
		}
	}

	folder, err := s.folders.GetByID(ctx, actor.OrganizationID, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "folder not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load folder")
	}

	exists, err := s.folders.SiblingNameExists(ctx, actor.OrganizationID, newParentID, folder.Name, id)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check sibling names")
	}
	if exists {
		return appErrors.ErrDuplicateName
	}

	if err := s.folders.Move(ctx, actor.OrganizationID, id, newParentID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "folder not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to move folder")
	}
	return nil
}

// assertNotDescendant walks up from candidate; finding folderID on the way
// means candidate sits inside folderID's subtree. The walk is bounded and
// cycle-protected the same way the permission resolver's is.
func (s *FolderService) assertNotDescendant(ctx context.Context, orgID, folderID, candidateID string) error {
	visited := make(map[string]struct{}, 8)
	current := candidateID
	for depth := 0; depth < maxAncestorDepth; depth++ {
		if current == folderID {
			return appErrors.ErrCircularMove
		}
		if _, seen := visited[current]; seen {
			return appErrors.ErrCircularMove
		}
		visited[current] = struct{}{}

		node, err := s.folders.GetNode(ctx, orgID, current)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return appErrors.Clone(appErrors.ErrNotFound, "destination folder not found")
			}
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to walk destination ancestry")
		}
		if node.ParentID == nil {
			return nil
		}
		current = *node.ParentID
	}
	return appErrors.ErrCircularMove
}

// SoftDelete marks the folder deleted. Children stay in place; they vanish
// from listings because resolution denies deleted subtrees.
func (s *FolderService) SoftDelete(ctx context.Context, actor *models.Actor, id string) error {
	if actor == nil {
		return appErrors.ErrUnauthorized
	}
	if err := s.perms.AssertAccess(ctx, actor, models.ResourceFolder, id, authz.ActionDelete); err != nil {
		return err
	}
	if err := s.folders.SoftDelete(ctx, actor.OrganizationID, id, actor.UserID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrConflict, "folder is already deleted or missing")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete folder")
	}
	return nil
}

// Restore brings a soft-deleted folder back, rechecking that no live
// sibling has claimed its name in the meantime.
func (s *FolderService) Restore(ctx context.Context, actor *models.Actor, id string) (*models.Folder, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	folder, err := s.folders.GetByID(ctx, actor.OrganizationID, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "folder not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load folder")
	}
	if folder.DeletedAt == nil {
		return nil, appErrors.Clone(appErrors.ErrConflict, "folder is not deleted")
	}

	// The resolver denies deleted resources, so restore rights are checked
	// against ownership and super-admin rather than resolved role.
	if !s.canRestore(actor, folder.OwnerTeamID) {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "restore requires the owning team or super-admin")
	}

	exists, err := s.folders.SiblingNameExists(ctx, actor.OrganizationID, folder.ParentID, folder.Name, id)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check sibling names")
	}
	if exists {
		return nil, appErrors.Clone(appErrors.ErrDuplicateName, "a live sibling now uses this name; rename it before restoring")
	}

	if err := s.folders.Restore(ctx, actor.OrganizationID, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrConflict, "folder is not deleted")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to restore folder")
	}
	folder.DeletedAt = nil
	folder.DeletedBy = nil
	folder.UpdatedAt = time.Now().UTC()
	return folder, nil
}

func (s *FolderService) canRestore(actor *models.Actor, ownerTeamID *string) bool {
	if actor.SuperAdmin {
		return true
	}
	return ownerTeamID != nil && actor.InTeam(*ownerTeamID)
}
