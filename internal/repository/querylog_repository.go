package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/berrihq/berri-api/internal/models"
)

// QueryLogRepository appends similarity-search audit records.
type QueryLogRepository struct {
	db *sqlx.DB
}

// NewQueryLogRepository constructs the repository.
func NewQueryLogRepository(db *sqlx.DB) *QueryLogRepository {
	return &QueryLogRepository{db: db}
}

// Create appends one audit record. There is no update or delete path; the
// log is append-only by construction.
func (r *QueryLogRepository) Create(ctx context.Context, log *models.QueryLog) error {
	if log.ID == "" {
		log.ID = uuid.NewString()
	}
	if log.CreatedAt.IsZero() {
		log.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO query_logs
	(id, organization_id, user_id, query_text, embedding, matched_file_ids, result_count, duration_ms, ip_address, user_agent, created_at)
	VALUES (:id, :organization_id, :user_id, :query_text, :embedding, :matched_file_ids, :result_count, :duration_ms, :ip_address, :user_agent, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, log); err != nil {
		return fmt.Errorf("create query log: %w", err)
	}
	return nil
}

// List returns recent audit records for an organization, newest first.
func (r *QueryLogRepository) List(ctx context.Context, orgID string, limit, offset int) ([]models.QueryLog, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	const query = `SELECT id, organization_id, user_id, query_text, embedding, matched_file_ids,
	result_count, duration_ms, ip_address, user_agent, created_at
	FROM query_logs WHERE organization_id = $1 ORDER BY created_at DESC LIMIT $2 OFFSET $3`
	var logs []models.QueryLog
	if err := r.db.SelectContext(ctx, &logs, query, orgID, limit, offset); err != nil {
		return nil, fmt.Errorf("list query logs: %w", err)
	}
	return logs, nil
}
