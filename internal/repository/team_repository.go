package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
)

// TeamRepository resolves team membership for permission resolution.
type TeamRepository struct {
	db *sqlx.DB
}

// NewTeamRepository constructs the repository.
func NewTeamRepository(db *sqlx.DB) *TeamRepository {
	return &TeamRepository{db: db}
}

// ListTeamIDsByUser returns the ids of every team the user belongs to
// within the organization.
func (r *TeamRepository) ListTeamIDsByUser(ctx context.Context, orgID, userID string) ([]string, error) {
	const query = `SELECT t.id FROM teams t
	JOIN team_members tm ON tm.team_id = t.id
	WHERE t.organization_id = $1 AND tm.user_id = $2`
	var ids []string
	if err := r.db.SelectContext(ctx, &ids, query, orgID, userID); err != nil {
		return nil, fmt.Errorf("list team ids: %w", err)
	}
	return ids, nil
}

// IsMember reports whether the user belongs to the organization.
func (r *TeamRepository) IsMember(ctx context.Context, orgID, userID string) (bool, error) {
	const query = `SELECT EXISTS (SELECT 1 FROM users WHERE id = $1 AND organization_id = $2 AND active)`
	var exists bool
	if err := r.db.GetContext(ctx, &exists, query, userID, orgID); err != nil {
		return false, fmt.Errorf("check org membership: %w", err)
	}
	return exists, nil
}
