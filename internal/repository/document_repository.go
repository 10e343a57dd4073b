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

// DocumentRepository persists processing records, raw text and AI-safe text.
//
// Every state transition is a conditional UPDATE carrying its own status
// precondition; a racing pipeline run loses at the database and surfaces as
// sql.ErrNoRows instead of observing stale state.
type DocumentRepository struct {
	db *sqlx.DB
}

// NewDocumentRepository constructs the repository.
func NewDocumentRepository(db *sqlx.DB) *DocumentRepository {
	return &DocumentRepository{db: db}
}

// CreateProcessing inserts the pipeline record for a file. A second insert
// for the same file is a no-op.
func (r *DocumentRepository) CreateProcessing(ctx context.Context, rec *models.DocumentProcessing) error {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.Status == "" {
		rec.Status = models.StatusPendingExtraction
	}
	now := time.Now().UTC()
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = now
	}
	rec.UpdatedAt = now
	const query = `INSERT INTO document_processing
	(id, file_id, organization_id, status, chunk_count, created_at, updated_at)
	VALUES (:id, :file_id, :organization_id, :status, :chunk_count, :created_at, :updated_at)
	ON CONFLICT (file_id) DO NOTHING`
	if _, err := r.db.NamedExecContext(ctx, query, rec); err != nil {
		return fmt.Errorf("create processing record: %w", err)
	}
	return nil
}

// GetByFileID retrieves the processing record for a file.
func (r *DocumentRepository) GetByFileID(ctx context.Context, orgID, fileID string) (*models.DocumentProcessing, error) {
	const query = `SELECT id, file_id, organization_id, status, extracted_at, committed_at, committed_by,
	indexed_at, chunk_count, embedding_model, last_error, created_at, updated_at
	FROM document_processing WHERE file_id = $1 AND organization_id = $2`
	var rec models.DocumentProcessing
	if err := r.db.GetContext(ctx, &rec, query, fileID, orgID); err != nil {
		return nil, err
	}
	return &rec, nil
}

// MarkExtracted advances to pending_redaction. Allowed only from
// pending_extraction or extraction_failed.
func (r *DocumentRepository) MarkExtracted(ctx context.Context, fileID string, at time.Time) error {
	const query = `UPDATE document_processing
	SET status = 'pending_redaction', extracted_at = $2, last_error = NULL, updated_at = $2
	WHERE file_id = $1 AND status IN ('pending_extraction', 'extraction_failed')`
	return r.execExpectingRow(ctx, query, fileID, at)
}

// MarkExtractionFailed records the extraction error.
func (r *DocumentRepository) MarkExtractionFailed(ctx context.Context, fileID, errMsg string) error {
	const query = `UPDATE document_processing
	SET status = 'extraction_failed', last_error = $2, updated_at = $3
	WHERE file_id = $1 AND status IN ('pending_extraction', 'extraction_failed')`
	return r.execExpectingRow(ctx, query, fileID, errMsg, time.Now().UTC())
}

// SetStatus moves between the redaction-phase states.
func (r *DocumentRepository) SetStatus(ctx context.Context, fileID string, from []models.ProcessingStatus, to models.ProcessingStatus) error {
	query, args, err := sqlx.In(`UPDATE document_processing
	SET status = ?, updated_at = ?
	WHERE file_id = ? AND status IN (?)`, to, time.Now().UTC(), fileID, from)
	if err != nil {
		return fmt.Errorf("build status update: %w", err)
	}
	return r.execExpectingRow(ctx, r.db.Rebind(query), args...)
}

// MarkCommitted is the point of no return. The WHERE clause enforces both
// the allowed source states and single commit (committed_at still null).
func (r *DocumentRepository) MarkCommitted(ctx context.Context, fileID, committedBy string, at time.Time) error {
	const query = `UPDATE document_processing
	SET status = 'committed', committed_at = $2, committed_by = $3, updated_at = $2
	WHERE file_id = $1 AND committed_at IS NULL
	AND status IN ('pending_redaction', 'redaction_in_progress', 'pending_commit')`
	return r.execExpectingRow(ctx, query, fileID, at, committedBy)
}

// RevertCommit rolls the record back after a failed AI-safe text write.
func (r *DocumentRepository) RevertCommit(ctx context.Context, fileID string, to models.ProcessingStatus) error {
	const query = `UPDATE document_processing
	SET status = $2, committed_at = NULL, committed_by = NULL, updated_at = $3
	WHERE file_id = $1 AND status = 'committed'`
	return r.execExpectingRow(ctx, query, fileID, to, time.Now().UTC())
}

// MarkIndexing claims the indexing phase. Allowed once committed and not
// already indexed; retryable from indexing_failed.
func (r *DocumentRepository) MarkIndexing(ctx context.Context, fileID string) error {
	const query = `UPDATE document_processing
	SET status = 'indexing', updated_at = $2
	WHERE file_id = $1 AND committed_at IS NOT NULL AND status IN ('committed', 'indexing_failed')`
	return r.execExpectingRow(ctx, query, fileID, time.Now().UTC())
}

// MarkIndexed finishes the pipeline with chunk count and model id.
func (r *DocumentRepository) MarkIndexed(ctx context.Context, fileID string, chunkCount int, embeddingModel string, at time.Time) error {
	const query = `UPDATE document_processing
	SET status = 'indexed', indexed_at = $2, chunk_count = $3, embedding_model = $4, last_error = NULL, updated_at = $2
	WHERE file_id = $1 AND status = 'indexing'`
	return r.execExpectingRow(ctx, query, fileID, at, chunkCount, embeddingModel)
}

// MarkIndexingFailed captures the error and leaves the record retryable.
func (r *DocumentRepository) MarkIndexingFailed(ctx context.Context, fileID, errMsg string) error {
	const query = `UPDATE document_processing
	SET status = 'indexing_failed', last_error = $2, updated_at = $3
	WHERE file_id = $1 AND status = 'indexing'`
	return r.execExpectingRow(ctx, query, fileID, errMsg, time.Now().UTC())
}

// SaveRawText stores extracted, pre-redaction content.
func (r *DocumentRepository) SaveRawText(ctx context.Context, text *models.RawText) error {
	if text.CreatedAt.IsZero() {
		text.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO raw_texts (file_id, organization_id, content, created_at)
	VALUES (:file_id, :organization_id, :content, :created_at)
	ON CONFLICT (file_id) DO UPDATE SET content = EXCLUDED.content, created_at = EXCLUDED.created_at`
	if _, err := r.db.NamedExecContext(ctx, query, text); err != nil {
		return fmt.Errorf("save raw text: %w", err)
	}
	return nil
}

// GetRawText retrieves the pre-redaction content.
func (r *DocumentRepository) GetRawText(ctx context.Context, orgID, fileID string) (*models.RawText, error) {
	const query = `SELECT file_id, organization_id, content, created_at
	FROM raw_texts WHERE file_id = $1 AND organization_id = $2`
	var text models.RawText
	if err := r.db.GetContext(ctx, &text, query, fileID, orgID); err != nil {
		return nil, err
	}
	return &text, nil
}

// DeleteRawText permanently removes the pre-redaction content.
func (r *DocumentRepository) DeleteRawText(ctx context.Context, orgID, fileID string) error {
	const query = `DELETE FROM raw_texts WHERE file_id = $1 AND organization_id = $2`
	if _, err := r.db.ExecContext(ctx, query, fileID, orgID); err != nil {
		return fmt.Errorf("delete raw text: %w", err)
	}
	return nil
}

// SaveSafeText stores the committed, redaction-applied content.
func (r *DocumentRepository) SaveSafeText(ctx context.Context, text *models.AISafeText) error {
	if text.CreatedAt.IsZero() {
		text.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO ai_safe_texts (file_id, organization_id, content, created_at)
	VALUES (:file_id, :organization_id, :content, :created_at)
	ON CONFLICT (file_id) DO UPDATE SET content = EXCLUDED.content, created_at = EXCLUDED.created_at`
	if _, err := r.db.NamedExecContext(ctx, query, text); err != nil {
		return fmt.Errorf("save ai-safe text: %w", err)
	}
	return nil
}

// GetSafeText retrieves the committed content.
func (r *DocumentRepository) GetSafeText(ctx context.Context, orgID, fileID string) (*models.AISafeText, error) {
	const query = `SELECT file_id, organization_id, content, created_at
	FROM ai_safe_texts WHERE file_id = $1 AND organization_id = $2`
	var text models.AISafeText
	if err := r.db.GetContext(ctx, &text, query, fileID, orgID); err != nil {
		return nil, err
	}
	return &text, nil
}

func (r *DocumentRepository) execExpectingRow(ctx context.Context, query string, args ...interface{}) error {
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("update processing record: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("check processing update rows: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}
