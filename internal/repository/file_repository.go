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

// FileRepository handles file metadata persistence.
type FileRepository struct {
	db *sqlx.DB
}

// NewFileRepository constructs the repository.
func NewFileRepository(db *sqlx.DB) *FileRepository {
	return &FileRepository{db: db}
}

// Create stores a new file row.
func (r *FileRepository) Create(ctx context.Context, file *models.File) error {
	if file.ID == "" {
		file.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if file.CreatedAt.IsZero() {
		file.CreatedAt = now
	}
	file.UpdatedAt = now
	const query = `INSERT INTO files
	(id, organization_id, owner_team_id, folder_id, name, mime_type, size_bytes, storage_path, inherit_permissions, created_by, created_at, updated_at, deleted_at, deleted_by)
	VALUES (:id, :organization_id, :owner_team_id, :folder_id, :name, :mime_type, :size_bytes, :storage_path, :inherit_permissions, :created_by, :created_at, :updated_at, :deleted_at, :deleted_by)`
	if _, err := r.db.NamedExecContext(ctx, query, file); err != nil {
		return fmt.Errorf("create file: %w", err)
	}
	return nil
}

// GetByID retrieves one file row, deleted or not.
func (r *FileRepository) GetByID(ctx context.Context, orgID, id string) (*models.File, error) {
	const query = `SELECT id, organization_id, owner_team_id, folder_id, name, mime_type, size_bytes,
	storage_path, inherit_permissions, created_by, created_at, updated_at, deleted_at, deleted_by
	FROM files WHERE id = $1 AND organization_id = $2`
	var file models.File
	if err := r.db.GetContext(ctx, &file, query, id, orgID); err != nil {
		return nil, err
	}
	return &file, nil
}

// GetNode returns the resolver projection of a file. The parent pointer is
// the containing folder.
func (r *FileRepository) GetNode(ctx context.Context, orgID, id string) (*models.ResourceNode, error) {
	const query = `SELECT id, organization_id, owner_team_id, folder_id AS parent_id, inherit_permissions,
	(deleted_at IS NOT NULL) AS deleted
	FROM files WHERE id = $1 AND organization_id = $2`
	var node models.ResourceNode
	if err := r.db.GetContext(ctx, &node, query, id, orgID); err != nil {
		return nil, err
	}
	return &node, nil
}

// ListByFolder returns the live files directly under a folder. A nil folder
// lists root files.
func (r *FileRepository) ListByFolder(ctx context.Context, orgID string, folderID *string) ([]models.File, error) {
	const base = `SELECT id, organization_id, owner_team_id, folder_id, name, mime_type, size_bytes,
	storage_path, inherit_permissions, created_by, created_at, updated_at, deleted_at, deleted_by
	FROM files WHERE organization_id = $1 AND deleted_at IS NULL`
	var files []models.File
	var err error
	if folderID == nil {
		err = r.db.SelectContext(ctx, &files, base+" AND folder_id IS NULL ORDER BY name", orgID)
	} else {
		err = r.db.SelectContext(ctx, &files, base+" AND folder_id = $2 ORDER BY name", orgID, *folderID)
	}
	if err != nil {
		return nil, fmt.Errorf("list files: %w", err)
	}
	return files, nil
}

// SiblingNameExists reports whether a live sibling file already uses the name.
func (r *FileRepository) SiblingNameExists(ctx context.Context, orgID string, folderID *string, name, excludeID string) (bool, error) {
	const base = `SELECT EXISTS (SELECT 1 FROM files
	WHERE organization_id = $1 AND name = $2 AND id <> $3 AND deleted_at IS NULL AND `
	var exists bool
	var err error
	if folderID == nil {
		err = r.db.GetContext(ctx, &exists, base+"folder_id IS NULL)", orgID, name, excludeID)
	} else {
		err = r.db.GetContext(ctx, &exists, base+"folder_id = $4)", orgID, name, excludeID, *folderID)
	}
	if err != nil {
		return false, fmt.Errorf("check file sibling name: %w", err)
	}
	return exists, nil
}

// Rename updates the file name.
func (r *FileRepository) Rename(ctx context.Context, orgID, id, name string) error {
	const query = `UPDATE files SET name = $3, updated_at = $4
	WHERE id = $1 AND organization_id = $2 AND deleted_at IS NULL`
	return r.execExpectingRow(ctx, query, id, orgID, name, time.Now().UTC())
}

// Move reparents the file into another folder.
func (r *FileRepository) Move(ctx context.Context, orgID, id string, newFolderID *string) error {
	const query = `UPDATE files SET folder_id = $3, updated_at = $4
	WHERE id = $1 AND organization_id = $2 AND deleted_at IS NULL`
	return r.execExpectingRow(ctx, query, id, orgID, newFolderID, time.Now().UTC())
}

// SoftDelete marks the file deleted.
func (r *FileRepository) SoftDelete(ctx context.Context, orgID, id, deletedBy string) error {
	const query = `UPDATE files SET deleted_at = $3, deleted_by = $4, updated_at = $3
	WHERE id = $1 AND organization_id = $2 AND deleted_at IS NULL`
	return r.execExpectingRow(ctx, query, id, orgID, time.Now().UTC(), deletedBy)
}

// Restore clears the soft-delete markers.
func (r *FileRepository) Restore(ctx context.Context, orgID, id string) error {
	const query = `UPDATE files SET deleted_at = NULL, deleted_by = NULL, updated_at = $3
	WHERE id = $1 AND organization_id = $2 AND deleted_at IS NOT NULL`
	return r.execExpectingRow(ctx, query, id, orgID, time.Now().UTC())
}

func (r *FileRepository) execExpectingRow(ctx context.Context, query string, args ...interface{}) error {
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("update file: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("check file update rows: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}
