package models

import (
	"time"

	"github.com/lib/pq"
	"github.com/pgvector/pgvector-go"
)

// QueryLog is an append-only audit record of a similarity search. Ordinary
// users can only write these; reading is restricted to elevated roles.
type QueryLog struct {
	ID             string          `db:"id" json:"id"`
	OrganizationID string          `db:"organization_id" json:"organization_id"`
	UserID         string          `db:"user_id" json:"user_id"`
	QueryText      string          `db:"query_text" json:"query_text"`
	Embedding      pgvector.Vector `db:"embedding" json:"-"`
	MatchedFileIDs pq.StringArray  `db:"matched_file_ids" json:"matched_file_ids"`
	ResultCount    int             `db:"result_count" json:"result_count"`
	DurationMs     int64           `db:"duration_ms" json:"duration_ms"`
	IPAddress      string          `db:"ip_address" json:"ip_address"`
	UserAgent      string          `db:"user_agent" json:"user_agent"`
	CreatedAt      time.Time       `db:"created_at" json:"created_at"`
}
