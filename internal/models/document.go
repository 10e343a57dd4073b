package models

import "time"

// ProcessingStatus drives the per-file pipeline state machine.
type ProcessingStatus string

const (
	StatusPendingExtraction   ProcessingStatus = "pending_extraction"
	StatusExtractionFailed    ProcessingStatus = "extraction_failed"
	StatusPendingRedaction    ProcessingStatus = "pending_redaction"
	StatusRedactionInProgress ProcessingStatus = "redaction_in_progress"
	StatusPendingCommit       ProcessingStatus = "pending_commit"
	StatusCommitted           ProcessingStatus = "committed"
	StatusIndexing            ProcessingStatus = "indexing"
	StatusIndexed             ProcessingStatus = "indexed"
	StatusIndexingFailed      ProcessingStatus = "indexing_failed"
)

// DocumentProcessing tracks the pipeline run for one file.
type DocumentProcessing struct {
	ID             string           `db:"id" json:"id"`
	FileID         string           `db:"file_id" json:"file_id"`
	OrganizationID string           `db:"organization_id" json:"organization_id"`
	Status         ProcessingStatus `db:"status" json:"status"`
	ExtractedAt    *time.Time       `db:"extracted_at" json:"extracted_at,omitempty"`
	CommittedAt    *time.Time       `db:"committed_at" json:"committed_at,omitempty"`
	CommittedBy    *string          `db:"committed_by" json:"committed_by,omitempty"`
	IndexedAt      *time.Time       `db:"indexed_at" json:"indexed_at,omitempty"`
	ChunkCount     int              `db:"chunk_count" json:"chunk_count"`
	EmbeddingModel *string          `db:"embedding_model" json:"embedding_model,omitempty"`
	LastError      *string          `db:"last_error" json:"last_error,omitempty"`
	CreatedAt      time.Time        `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time        `db:"updated_at" json:"updated_at"`
}

// RawText is the extracted, pre-redaction content. It exists only between
// extraction and commit and is never referenced by search.
type RawText struct {
	FileID         string    `db:"file_id" json:"file_id"`
	OrganizationID string    `db:"organization_id" json:"organization_id"`
	Content        string    `db:"content" json:"-"`
	CreatedAt      time.Time `db:"created_at" json:"created_at"`
}

// AISafeText is the committed, redaction-applied content — the only text
// ever chunked or embedded.
type AISafeText struct {
	FileID         string    `db:"file_id" json:"file_id"`
	OrganizationID string    `db:"organization_id" json:"organization_id"`
	Content        string    `db:"content" json:"content"`
	CreatedAt      time.Time `db:"created_at" json:"created_at"`
}

// RedactionType categorizes what a span hides.
type RedactionType string

const (
	RedactionManual     RedactionType = "manual"
	RedactionEmail      RedactionType = "email"
	RedactionPhone      RedactionType = "phone"
	RedactionNationalID RedactionType = "national_id"
	RedactionCardNumber RedactionType = "card_number"
)

// Redaction is a half-open character range [StartOffset, EndOffset) into a
// file's raw text. Immutable once the owning document is committed.
type Redaction struct {
	ID            string        `db:"id" json:"id"`
	FileID        string        `db:"file_id" json:"file_id"`
	Type          RedactionType `db:"type" json:"type"`
	StartOffset   int           `db:"start_offset" json:"start_offset"`
	EndOffset     int           `db:"end_offset" json:"end_offset"`
	Pattern       *string       `db:"pattern" json:"pattern,omitempty"`
	SemanticLabel *string       `db:"semantic_label" json:"semantic_label,omitempty"`
	CreatedBy     string        `db:"created_by" json:"created_by"`
	CreatedAt     time.Time     `db:"created_at" json:"created_at"`
}

// RedactionSuggestion is a detected PII candidate. Suggestions are never
// auto-applied; a human must persist them as Redaction records.
type RedactionSuggestion struct {
	Type        RedactionType `json:"type"`
	StartOffset int           `json:"start_offset"`
	EndOffset   int           `json:"end_offset"`
	Excerpt     string        `json:"excerpt"`
}
