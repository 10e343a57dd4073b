package models

import (
	"time"

	"github.com/pgvector/pgvector-go"
)

// DocumentChunk is one embedded slice of a file's AI-safe text. Chunks are
// ordered, contiguous and fully cover the text.
type DocumentChunk struct {
	ID             string          `db:"id" json:"id"`
	FileID         string          `db:"file_id" json:"file_id"`
	OrganizationID string          `db:"organization_id" json:"organization_id"`
	ChunkIndex     int             `db:"chunk_index" json:"chunk_index"`
	Content        string          `db:"content" json:"content"`
	CharStart      int             `db:"char_start" json:"char_start"`
	CharEnd        int             `db:"char_end" json:"char_end"`
	Embedding      pgvector.Vector `db:"embedding" json:"-"`
	EmbeddingModel string          `db:"embedding_model" json:"embedding_model"`
	CreatedAt      time.Time       `db:"created_at" json:"created_at"`
}

// SimilarChunk is one ranked similarity-search result row.
type SimilarChunk struct {
	ChunkID    string  `db:"chunk_id" json:"chunk_id"`
	FileID     string  `db:"file_id" json:"file_id"`
	FileName   string  `db:"file_name" json:"file_name"`
	ChunkIndex int     `db:"chunk_index" json:"chunk_index"`
	Content    string  `db:"content" json:"content"`
	Similarity float64 `db:"similarity" json:"similarity"`
}
