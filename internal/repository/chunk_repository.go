package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pgvector/pgvector-go"

	"github.com/berrihq/berri-api/internal/models"
)

// ChunkRepository persists embedded chunks and runs similarity lookups.
type ChunkRepository struct {
	db *sqlx.DB
}

// NewChunkRepository constructs the repository.
func NewChunkRepository(db *sqlx.DB) *ChunkRepository {
	return &ChunkRepository{db: db}
}

// ReplaceForFile atomically swaps the chunk set of a file. Re-indexing
// replaces wholesale; readers never see a partial set.
func (r *ChunkRepository) ReplaceForFile(ctx context.Context, fileID string, chunks []models.DocumentChunk) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin chunk replace: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err := tx.ExecContext(ctx, `DELETE FROM document_chunks WHERE file_id = $1`, fileID); err != nil {
		return fmt.Errorf("clear prior chunks: %w", err)
	}

	const query = `INSERT INTO document_chunks
	(id, file_id, organization_id, chunk_index, content, char_start, char_end, embedding, embedding_model, created_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`
	now := time.Now().UTC()
	for i := range chunks {
		if chunks[i].ID == "" {
			chunks[i].ID = uuid.NewString()
		}
		chunks[i].CreatedAt = now
		if _, err := tx.ExecContext(ctx, query,
			chunks[i].ID,
			chunks[i].FileID,
			chunks[i].OrganizationID,
			chunks[i].ChunkIndex,
			chunks[i].Content,
			chunks[i].CharStart,
			chunks[i].CharEnd,
			chunks[i].Embedding,
			chunks[i].EmbeddingModel,
			chunks[i].CreatedAt,
		); err != nil {
			return fmt.Errorf("insert chunk %d: %w", chunks[i].ChunkIndex, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit chunk replace: %w", err)
	}
	return nil
}

// DeleteForFile removes every chunk of a file.
func (r *ChunkRepository) DeleteForFile(ctx context.Context, fileID string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM document_chunks WHERE file_id = $1`, fileID); err != nil {
		return fmt.Errorf("delete chunks: %w", err)
	}
	return nil
}

// SearchSimilar delegates to the permission-aware match_document_chunks
// database function. The function joins the caller's effective access and
// never crosses organization boundaries; fileIDs optionally narrows the
// candidate set.
func (r *ChunkRepository) SearchSimilar(ctx context.Context, userID, orgID string, embedding pgvector.Vector, limit int, threshold float64, fileIDs []string) ([]models.SimilarChunk, error) {
	const query = `SELECT chunk_id, file_id, file_name, chunk_index, content, similarity
	FROM match_document_chunks($1, $2, $3, $4, $5, $6)`
	var ids interface{}
	if len(fileIDs) > 0 {
		ids = pq.Array(fileIDs)
	}
	var rows []models.SimilarChunk
	if err := r.db.SelectContext(ctx, &rows, query, userID, orgID, embedding, limit, threshold, ids); err != nil {
		return nil, fmt.Errorf("similarity search: %w", err)
	}
	return rows, nil
}
