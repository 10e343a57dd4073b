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

// RedactionRepository persists redaction spans.
type RedactionRepository struct {
	db *sqlx.DB
}

// NewRedactionRepository constructs the repository.
func NewRedactionRepository(db *sqlx.DB) *RedactionRepository {
	return &RedactionRepository{db: db}
}

// Create stores a redaction span.
func (r *RedactionRepository) Create(ctx context.Context, red *models.Redaction) error {
	if red.ID == "" {
		red.ID = uuid.NewString()
	}
	if red.CreatedAt.IsZero() {
		red.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO redactions
	(id, file_id, type, start_offset, end_offset, pattern, semantic_label, created_by, created_at)
	VALUES (:id, :file_id, :type, :start_offset, :end_offset, :pattern, :semantic_label, :created_by, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, red); err != nil {
		return fmt.Errorf("create redaction: %w", err)
	}
	return nil
}

// ListByFile returns every span for a file ordered by start offset.
func (r *RedactionRepository) ListByFile(ctx context.Context, fileID string) ([]models.Redaction, error) {
	const query = `SELECT id, file_id, type, start_offset, end_offset, pattern, semantic_label, created_by, created_at
	FROM redactions WHERE file_id = $1 ORDER BY start_offset`
	var spans []models.Redaction
	if err := r.db.SelectContext(ctx, &spans, query, fileID); err != nil {
		return nil, fmt.Errorf("list redactions: %w", err)
	}
	return spans, nil
}

// Delete removes one span.
func (r *RedactionRepository) Delete(ctx context.Context, fileID, redactionID string) error {
	const query = `DELETE FROM redactions WHERE id = $1 AND file_id = $2`
	res, err := r.db.ExecContext(ctx, query, redactionID, fileID)
	if err != nil {
		return fmt.Errorf("delete redaction: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("check redaction delete rows: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}
