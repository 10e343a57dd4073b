package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/berrihq/berri-api/internal/models"
)

// FolderRepository handles folder persistence.
type FolderRepository struct {
	db *sqlx.DB
}

// NewFolderRepository constructs the repository.
func NewFolderRepository(db *sqlx.DB) *FolderRepository {
	return &FolderRepository{db: db}
}

// Create stores a new folder row.
func (r *FolderRepository) Create(ctx context.Context, folder *models.Folder) error {
	if folder.ID == "" {
		folder.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if folder.CreatedAt.IsZero() {
		folder.CreatedAt = now
	}
	folder.UpdatedAt = now
	const query = `INSERT INTO folders
	(id, organization_id, owner_team_id, parent_id, name, inherit_permissions, created_by, created_at, updated_at, deleted_at, deleted_by)
	VALUES (:id, :organization_id, :owner_team_id, :parent_id, :name, :inherit_permissions, :created_by, :created_at, :updated_at, :deleted_at, :deleted_by)`
	if _, err := r.db.NamedExecContext(ctx, query, folder); err != nil {
		return fmt.Errorf("create folder: %w", err)
	}
	return nil
}

// GetByID retrieves one folder row, deleted or not.
func (r *FolderRepository) GetByID(ctx context.Context, orgID, id string) (*models.Folder, error) {
	const query = `SELECT id, organization_id, owner_team_id, parent_id, name, inherit_permissions,
	created_by, created_at, updated_at, deleted_at, deleted_by
	FROM folders WHERE id = $1 AND organization_id = $2`
	var folder models.Folder
	if err := r.db.GetContext(ctx, &folder, query, id, orgID); err != nil {
		return nil, err
	}
	return &folder, nil
}

// GetNode returns the resolver projection of a folder.
func (r *FolderRepository) GetNode(ctx context.Context, orgID, id string) (*models.ResourceNode, error) {
	const query = `SELECT id, organization_id, owner_team_id, parent_id, inherit_permissions,
	(deleted_at IS NOT NULL) AS deleted
	FROM folders WHERE id = $1 AND organization_id = $2`
	var node models.ResourceNode
	if err := r.db.GetContext(ctx, &node, query, id, orgID); err != nil {
		return nil, err
	}
	return &node, nil
}

// ListChildren returns the live folders directly under a parent. A nil
// parent lists root folders.
func (r *FolderRepository) ListChildren(ctx context.Context, orgID string, parentID *string) ([]models.Folder, error) {
	const base = `SELECT id, organization_id, owner_team_id, parent_id, name, inherit_permissions,
	created_by, created_at, updated_at, deleted_at, deleted_by
	FROM folders WHERE organization_id = $1 AND deleted_at IS NULL`
	var folders []models.Folder
	var err error
	if parentID == nil {
		err = r.db.SelectContext(ctx, &folders, base+" AND parent_id IS NULL ORDER BY name", orgID)
	} else {
		err = r.db.SelectContext(ctx, &folders, base+" AND parent_id = $2 ORDER BY name", orgID, *parentID)
	}
	if err != nil {
		return nil, fmt.Errorf("list child folders: %w", err)
	}
	return folders, nil
}

// SiblingNameExists reports whether a live sibling already uses the name.
// excludeID skips the resource itself on rename.
func (r *FolderRepository) SiblingNameExists(ctx context.Context, orgID string, parentID *string, name, excludeID string) (bool, error) {
	const base = `SELECT EXISTS (SELECT 1 FROM folders
	WHERE organization_id = $1 AND name = $2 AND id <> $3 AND deleted_at IS NULL AND `
	var exists bool
	var err error
	if parentID == nil {
		err = r.db.GetContext(ctx, &exists, base+"parent_id IS NULL)", orgID, name, excludeID)
	} else {
		err = r.db.GetContext(ctx, &exists, base+"parent_id = $4)", orgID, name, excludeID, *parentID)
	}
	if err != nil {
		return false, fmt.Errorf("check folder sibling name: %w", err)
	}
	return exists, nil
}

// Rename updates the folder name.
func (r *FolderRepository) Rename(ctx context.Context, orgID, id, name string) error {
	const query = `UPDATE folders SET name = $3, updated_at = $4
	WHERE id = $1 AND organization_id = $2 AND deleted_at IS NULL`
	return r.execExpectingRow(ctx, query, id, orgID, name, time.Now().UTC())
}

// Move reparents the folder.
func (r *FolderRepository) Move(ctx context.Context, orgID, id string, newParentID *string) error {
	const query = `UPDATE folders SET parent_id = $3, updated_at = $4
	WHERE id = $1 AND organization_id = $2 AND deleted_at IS NULL`
	return r.execExpectingRow(ctx, query, id, orgID, newParentID, time.Now().UTC())
}

// SoftDelete marks the folder deleted.
func (r *FolderRepository) SoftDelete(ctx context.Context, orgID, id, deletedBy string) error {
	const query = `UPDATE folders SET deleted_at = $3, deleted_by = $4, updated_at = $3
	WHERE id = $1 AND organization_id = $2 AND deleted_at IS NULL`
	return r.execExpectingRow(ctx, query, id, orgID, time.Now().UTC(), deletedBy)
}

// Restore clears the soft-delete markers.
func (r *FolderRepository) Restore(ctx context.Context, orgID, id string) error {
	const query = `UPDATE folders SET deleted_at = NULL, deleted_by = NULL, updated_at = $3
	WHERE id = $1 AND organization_id = $2 AND deleted_at IS NOT NULL`
	return r.execExpectingRow(ctx, query, id, orgID, time.Now().UTC())
}

func (r *FolderRepository) execExpectingRow(ctx context.Context, query string, args ...interface{}) error {
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("update folder: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("check folder update rows: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}
