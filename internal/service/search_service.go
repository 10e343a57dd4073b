package service

import (
	"context"
	"strings"
	"time"

	"github.com/pgvector/pgvector-go"
	"go.uber.org/zap"

	"github.com/berrihq/berri-api/internal/metrics"
	"github.com/berrihq/berri-api/internal/models"
	appErrors "github.com/berrihq/berri-api/pkg/errors"
)

const (
	maxSearchLimit  = 50
	embeddingQuery  = "[raw embedding]"
	maxQueryLogText = 2000
)

type similaritySearcher interface {
	SearchSimilar(ctx context.Context, userID, orgID string, embedding pgvector.Vector, limit int, threshold float64, fileIDs []string) ([]models.SimilarChunk, error)
}

type queryEmbedder interface {
	GenerateEmbedding(ctx context.Context, text string) (pgvector.Vector, error)
}

type auditWriter interface {
	Create(ctx context.Context, log *models.QueryLog) error
	List(ctx context.Context, orgID string, limit, offset int) ([]models.QueryLog, error)
}

// SearchOptions narrows a similarity search.
type SearchOptions struct {
	Limit     int
	Threshold float64
	FileIDs   []string
	IPAddress string
	UserAgent string
}

// SearchService runs permission-filtered similarity searches. Row-level
// permission filtering happens inside the database function; this layer
// owns org scoping, embedding and the audit trail.
type SearchService struct {
	chunks           similaritySearcher
	embedder         queryEmbedder
	audit            auditWriter
	logger           *zap.Logger
	defaultLimit     int
	defaultThreshold float64
	auditEnabled     bool
}

// NewSearchService constructs the service.
func NewSearchService(chunks similaritySearcher, embedder queryEmbedder, audit auditWriter, logger *zap.Logger, defaultLimit int, defaultThreshold float64, auditEnabled bool) *SearchService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if defaultLimit <= 0 {
		defaultLimit = 10
	}
	if defaultThreshold <= 0 || defaultThreshold >= 1 {
		defaultThreshold = 0.3
	}
	return &SearchService{
		chunks:           chunks,
		embedder:         embedder,
		audit:            audit,
		logger:           logger,
		defaultLimit:     defaultLimit,
		defaultThreshold: defaultThreshold,
		auditEnabled:     auditEnabled,
	}
}

// SearchSimilar embeds the query and returns permission-filtered matches
// within the actor's organization. Every call is audited, hit or miss.
func (s *SearchService) SearchSimilar(ctx context.Context, actor *models.Actor, query string, opts SearchOptions) ([]models.SimilarChunk, error) {
	if actor == nil || actor.OrganizationID == "" {
		return nil, appErrors.ErrUnauthorized
	}
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "query text is required")
	}

	embedding, err := s.embedder.GenerateEmbedding(ctx, query)
	if err != nil {
		metrics.SearchesTotal.WithLabelValues("embed_error").Inc()
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to embed query")
	}
	return s.searchWithEmbedding(ctx, actor, query, embedding, opts)
}

// SearchByEmbedding searches with a caller-supplied vector. The audit record
// carries a placeholder instead of query text.
func (s *SearchService) SearchByEmbedding(ctx context.Context, actor *models.Actor, embedding pgvector.Vector, opts SearchOptions) ([]models.SimilarChunk, error) {
	if actor == nil || actor.OrganizationID == "" {
		return nil, appErrors.ErrUnauthorized
	}
	if len(embedding.Slice()) == 0 {
		return nil, appErrors.Clone(appErrors.ErrValidation, "embedding is required")
	}
	return s.searchWithEmbedding(ctx, actor, embeddingQuery, embedding, opts)
}

func (s *SearchService) searchWithEmbedding(ctx context.Context, actor *models.Actor, queryText string, embedding pgvector.Vector, opts SearchOptions) ([]models.SimilarChunk, error) {
	limit := opts.Limit
	if limit <= 0 {
		limit = s.defaultLimit
	}
	if limit > maxSearchLimit {
		limit = maxSearchLimit
	}
	threshold := opts.Threshold
	if threshold <= 0 || threshold >= 1 {
		threshold = s.defaultThreshold
	}

	started := time.Now()
	results, err := s.chunks.SearchSimilar(ctx, actor.UserID, actor.OrganizationID, embedding, limit, threshold, opts.FileIDs)
	elapsed := time.Since(started)
	metrics.SearchDuration.Observe(elapsed.Seconds())

	if err != nil {
		metrics.SearchesTotal.WithLabelValues("error").Inc()
		s.writeAudit(ctx, actor, queryText, embedding, nil, elapsed, opts)
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "similarity search failed")
	}

	metrics.SearchesTotal.WithLabelValues("success").Inc()
	s.writeAudit(ctx, actor, queryText, embedding, results, elapsed, opts)
	return results, nil
}

// writeAudit appends the audit record. Audit failures are logged and
// swallowed; they never fail the search itself.
func (s *SearchService) writeAudit(ctx context.Context, actor *models.Actor, queryText string, embedding pgvector.Vector, results []models.SimilarChunk, elapsed time.Duration, opts SearchOptions) {
	if !s.auditEnabled || s.audit == nil {
		return
	}
	if len([]rune(queryText)) > maxQueryLogText {
		queryText = string([]rune(queryText)[:maxQueryLogText])
	}

	seen := make(map[string]struct{}, len(results))
	var matched []string
	for _, r := range results {
		if _, dup := seen[r.FileID]; dup {
			continue
		}
		seen[r.FileID] = struct{}{}
		matched = append(matched, r.FileID)
	}

	record := &models.QueryLog{
		OrganizationID: actor.OrganizationID,
		UserID:         actor.UserID,
		QueryText:      queryText,
		Embedding:      embedding,
		MatchedFileIDs: matched,
		ResultCount:    len(results),
		DurationMs:     elapsed.Milliseconds(),
		IPAddress:      opts.IPAddress,
		UserAgent:      opts.UserAgent,
	}
	if err := s.audit.Create(ctx, record); err != nil {
		s.logger.Error("failed to write search audit record",
			zap.String("user_id", actor.UserID),
			zap.String("organization_id", actor.OrganizationID),
			zap.Error(err))
	}
}

// ListQueryLogs exposes the audit trail to organization super-admins.
func (s *SearchService) ListQueryLogs(ctx context.Context, actor *models.Actor, limit, offset int) ([]models.QueryLog, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	if !actor.SuperAdmin {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "query logs require super-admin")
	}
	if s.audit == nil {
		return nil, nil
	}
	logs, err := s.audit.List(ctx, actor.OrganizationID, limit, offset)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list query logs")
	}
	return logs, nil
}
