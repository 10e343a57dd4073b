package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/berrihq/berri-api/internal/models"
)

// PermissionRepository handles explicit grant/deny persistence.
type PermissionRepository struct {
	db *sqlx.DB
}

// NewPermissionRepository constructs the repository.
func NewPermissionRepository(db *sqlx.DB) *PermissionRepository {
	return &PermissionRepository{db: db}
}

// Upsert writes a permission entry, overwriting any existing entry for the
// same (resource, grantee) pair. The unique constraint on
// (resource_type, resource_id, grantee_type, grantee_id) is the
// concurrency boundary; racing grants converge on the last writer.
func (r *PermissionRepository) Upsert(ctx context.Context, entry *models.PermissionEntry) error {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = now
	}
	entry.UpdatedAt = now
	const query = `INSERT INTO permissions
	(id, resource_type, resource_id, grantee_type, grantee_id, role, kind, created_by, created_at, updated_at)
	VALUES (:id, :resource_type, :resource_id, :grantee_type, :grantee_id, :role, :kind, :created_by, :created_at, :updated_at)
	ON CONFLICT (resource_type, resource_id, grantee_type, grantee_id)
	DO UPDATE SET role = EXCLUDED.role, kind = EXCLUDED.kind, created_by = EXCLUDED.created_by, updated_at = EXCLUDED.updated_at`
	if _, err := r.db.NamedExecContext(ctx, query, entry); err != nil {
		return fmt.Errorf("upsert permission: %w", err)
	}
	return nil
}

// Delete removes the entry for a (resource, grantee) pair.
func (r *PermissionRepository) Delete(ctx context.Context, resourceType models.ResourceType, resourceID string, granteeType models.GranteeType, granteeID string) error {
	const query = `DELETE FROM permissions
	WHERE resource_type = $1 AND resource_id = $2 AND grantee_type = $3 AND grantee_id = $4`
	res, err := r.db.ExecContext(ctx, query, resourceType, resourceID, granteeType, granteeID)
	if err != nil {
		return fmt.Errorf("delete permission: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("check permission delete rows: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// ListByResource returns every entry on a resource.
func (r *PermissionRepository) ListByResource(ctx context.Context, resourceType models.ResourceType, resourceID string) ([]models.PermissionEntry, error) {
	const query = `SELECT id, resource_type, resource_id, grantee_type, grantee_id, role, kind, created_by, created_at, updated_at
	FROM permissions WHERE resource_type = $1 AND resource_id = $2 ORDER BY created_at`
	var entries []models.PermissionEntry
	if err := r.db.SelectContext(ctx, &entries, query, resourceType, resourceID); err != nil {
		return nil, fmt.Errorf("list permissions: %w", err)
	}
	return entries, nil
}

// ListApplicable returns the entries on a resource that apply to the user
// directly or through any of their teams.
func (r *PermissionRepository) ListApplicable(ctx context.Context, resourceType models.ResourceType, resourceID, userID string, teamIDs []string) ([]models.PermissionEntry, error) {
	const query = `SELECT id, resource_type, resource_id, grantee_type, grantee_id, role, kind, created_by, created_at, updated_at
	FROM permissions
	WHERE resource_type = $1 AND resource_id = $2
	AND ((grantee_type = 'user' AND grantee_id = $3)
	  OR (grantee_type = 'team' AND grantee_id = ANY($4)))`
	var entries []models.PermissionEntry
	if err := r.db.SelectContext(ctx, &entries, query, resourceType, resourceID, userID, pq.Array(teamIDs)); err != nil {
		return nil, fmt.Errorf("list applicable permissions: %w", err)
	}
	return entries, nil
}
