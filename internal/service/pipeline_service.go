package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/pgvector/pgvector-go"
	"go.uber.org/zap"

	"github.com/berrihq/berri-api/internal/authz"
	"github.com/berrihq/berri-api/internal/metrics"
	"github.com/berrihq/berri-api/internal/models"
	appErrors "github.com/berrihq/berri-api/pkg/errors"
	"github.com/berrihq/berri-api/pkg/jobs"
)

// Job types handled by the pipeline queue.
const (
	JobExtract      = "pipeline.extract"
	JobIndex        = "pipeline.index"
	JobFullPipeline = "pipeline.full"
)

const embedBatchSize = 64

// PipelineJob is the queue payload for background pipeline work.
type PipelineJob struct {
	Op             string `json:"op"`
	OrganizationID string `json:"organization_id"`
	FileID         string `json:"file_id"`
	RequestedBy    string `json:"requested_by"`
}

type processingStore interface {
	CreateProcessing(ctx context.Context, rec *models.DocumentProcessing) error
	GetByFileID(ctx context.Context, orgID, fileID string) (*models.DocumentProcessing, error)
	MarkExtracted(ctx context.Context, fileID string, at time.Time) error
	MarkExtractionFailed(ctx context.Context, fileID, errMsg string) error
	SetStatus(ctx context.Context, fileID string, from []models.ProcessingStatus, to models.ProcessingStatus) error
	MarkCommitted(ctx context.Context, fileID, committedBy string, at time.Time) error
	RevertCommit(ctx context.Context, fileID string, to models.ProcessingStatus) error
	MarkIndexing(ctx context.Context, fileID string) error
	MarkIndexed(ctx context.Context, fileID string, chunkCount int, embeddingModel string, at time.Time) error
	MarkIndexingFailed(ctx context.Context, fileID, errMsg string) error
	SaveRawText(ctx context.Context, text *models.RawText) error
	GetRawText(ctx context.Context, orgID, fileID string) (*models.RawText, error)
	DeleteRawText(ctx context.Context, orgID, fileID string) error
	SaveSafeText(ctx context.Context, text *models.AISafeText) error
	GetSafeText(ctx context.Context, orgID, fileID string) (*models.AISafeText, error)
}

type chunkStore interface {
	ReplaceForFile(ctx context.Context, fileID string, chunks []models.DocumentChunk) error
	DeleteForFile(ctx context.Context, fileID string) error
}

type fileGetter interface {
	GetByID(ctx context.Context, orgID, id string) (*models.File, error)
}

type blobReader interface {
	Read(filename string) ([]byte, error)
}

type textExtractor interface {
	Supported(mimeType string) bool
	ExtractText(data []byte, mimeType string) (string, error)
}

type chunkEmbedder interface {
	Model() string
	GenerateBatchEmbeddings(ctx context.Context, texts []string) ([]pgvector.Vector, error)
}

type spanLister interface {
	ListByFile(ctx context.Context, fileID string) ([]models.Redaction, error)
}

type redactor interface {
	ApplyRedactions(text string, spans []models.Redaction) string
}

type jobEnqueuer interface {
	Enqueue(job jobs.Job) error
}

// PipelineService runs the extract → redact → commit → index state machine.
// Every transition is a conditional update in the store; a concurrent run
// that lost the race sees sql.ErrNoRows and stops.
type PipelineService struct {
	docs       processingStore
	chunks     chunkStore
	files      fileGetter
	blobs      blobReader
	redactions spanLister
	redactor   redactor
	extractor  textExtractor
	embedder   chunkEmbedder
	perms      accessAsserter
	queue      jobEnqueuer
	chunker    *Chunker
	logger     *zap.Logger
}

// NewPipelineService constructs the service. queue may be nil in tests;
// enqueues then become synchronous no-ops that are logged.
func NewPipelineService(
	docs processingStore,
	chunks chunkStore,
	files fileGetter,
	blobs blobReader,
	redactions spanLister,
	red redactor,
	extractor textExtractor,
	embedder chunkEmbedder,
	perms accessAsserter,
	queue jobEnqueuer,
	chunker *Chunker,
	logger *zap.Logger,
) *PipelineService {
	if chunker == nil {
		chunker = NewChunker(0, 0, 0)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PipelineService{
		docs:       docs,
		chunks:     chunks,
		files:      files,
		blobs:      blobs,
		redactions: redactions,
		redactor:   red,
		extractor:  extractor,
		embedder:   embedder,
		perms:      perms,
		queue:      queue,
		chunker:    chunker,
		logger:     logger,
	}
}

// EnqueueUploadProcessing registers the processing record for a fresh upload
// and schedules extraction in the background. Errors never reach the
// uploader; the upload response must not depend on pipeline health.
func (s *PipelineService) EnqueueUploadProcessing(ctx context.Context, orgID, fileID, uploadedBy string) {
	rec := &models.DocumentProcessing{FileID: fileID, OrganizationID: orgID}
	if err := s.docs.CreateProcessing(ctx, rec); err != nil {
		s.logger.Error("failed to create processing record",
			zap.String("file_id", fileID), zap.Error(err))
		return
	}
	s.enqueue(PipelineJob{Op: JobExtract, OrganizationID: orgID, FileID: fileID, RequestedBy: uploadedBy})
}

// Status reports a document's current processing record.
func (s *PipelineService) Status(ctx context.Context, actor *models.Actor, fileID string) (*models.DocumentProcessing, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	if err := s.perms.AssertAccess(ctx, actor, models.ResourceFile, fileID, authz.ActionView); err != nil {
		return nil, err
	}
	rec, err := s.docs.GetByFileID(ctx, actor.OrganizationID, fileID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "no processing record for file")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load processing record")
	}
	return rec, nil
}

// RequestExtraction re-runs extraction on demand. Allowed only while the
// document sits in pending_extraction or extraction_failed.
func (s *PipelineService) RequestExtraction(ctx context.Context, actor *models.Actor, fileID string) error {
	if actor == nil {
		return appErrors.ErrUnauthorized
	}
	if err := s.perms.AssertAccess(ctx, actor, models.ResourceFile, fileID, authz.ActionIndex); err != nil {
		return err
	}
	rec, err := s.docs.GetByFileID(ctx, actor.OrganizationID, fileID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "no processing record for file")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load processing record")
	}
	if rec.Status != models.StatusPendingExtraction && rec.Status != models.StatusExtractionFailed {
		return appErrors.Clone(appErrors.ErrInvalidState, fmt.Sprintf("cannot re-extract from status %s", rec.Status))
	}
	s.enqueue(PipelineJob{Op: JobExtract, OrganizationID: actor.OrganizationID, FileID: fileID, RequestedBy: actor.UserID})
	return nil
}

// ProcessExtraction reads the stored file bytes, extracts raw text and
// advances the record to pending_redaction. A job delivered after the
// document left the extraction phase is dropped without writing anything:
// a replayed extract job on a committed document must never bring the
// destroyed raw text back.
func (s *PipelineService) ProcessExtraction(ctx context.Context, orgID, fileID string) error {
	rec, err := s.docs.GetByFileID(ctx, orgID, fileID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			s.logger.Warn("dropping extract job with no processing record", zap.String("file_id", fileID))
			return nil
		}
		return fmt.Errorf("load processing record for extraction: %w", err)
	}
	if rec.Status != models.StatusPendingExtraction && rec.Status != models.StatusExtractionFailed {
		s.logger.Warn("dropping stale extract job",
			zap.String("file_id", fileID),
			zap.String("status", string(rec.Status)))
		return nil
	}

	file, err := s.files.GetByID(ctx, orgID, fileID)
	if err != nil {
		return fmt.Errorf("load file for extraction: %w", err)
	}
	if !s.extractor.Supported(file.MimeType) {
		return s.failExtraction(ctx, fileID, fmt.Sprintf("unsupported mime type %q", file.MimeType))
	}

	data, err := s.blobs.Read(file.StoragePath)
	if err != nil {
		return s.failExtraction(ctx, fileID, fmt.Sprintf("read stored bytes: %v", err))
	}

	text, err := s.extractor.ExtractText(data, file.MimeType)
	if err != nil {
		return s.failExtraction(ctx, fileID, err.Error())
	}

	if err := s.docs.SaveRawText(ctx, &models.RawText{
		FileID:         fileID,
		OrganizationID: orgID,
		Content:        text,
	}); err != nil {
		return s.failExtraction(ctx, fileID, fmt.Sprintf("store raw text: %v", err))
	}

	if err := s.docs.MarkExtracted(ctx, fileID, time.Now().UTC()); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			// Another run advanced the record between the status check and
			// the save. If it advanced past commit, the row we just wrote
			// resurrected destroyed content and must go.
			s.discardRawIfCommitted(ctx, orgID, fileID)
			return nil
		}
		return fmt.Errorf("mark extracted: %w", err)
	}

	metrics.ExtractionsTotal.WithLabelValues("success").Inc()
	s.logger.Info("extraction complete",
		zap.String("file_id", fileID),
		zap.Int("chars", len([]rune(text))))
	return nil
}

// discardRawIfCommitted handles an extraction run that lost the MarkExtracted
// race. A concurrent extraction advancing the record is harmless (the raw
// content is identical), but a commit destroyed the raw text and the losing
// run just wrote it back, so the row has to be deleted again.
func (s *PipelineService) discardRawIfCommitted(ctx context.Context, orgID, fileID string) {
	rec, err := s.docs.GetByFileID(ctx, orgID, fileID)
	if err == nil && rec.CommittedAt == nil {
		s.logger.Warn("extraction finished but record already advanced", zap.String("file_id", fileID))
		return
	}
	if err != nil {
		s.logger.Error("failed to reload processing record after lost extraction race",
			zap.String("file_id", fileID), zap.Error(err))
		// Fall through and delete anyway; losing a duplicate raw copy only
		// forces a re-extraction, keeping one past commit leaks content.
	}
	if delErr := s.docs.DeleteRawText(ctx, orgID, fileID); delErr != nil && !errors.Is(delErr, sql.ErrNoRows) {
		metrics.RawTextRetainedTotal.Inc()
		s.logger.Error("SECURITY: raw text written by stale extraction could not be deleted",
			zap.String("file_id", fileID),
			zap.String("organization_id", orgID),
			zap.Error(delErr))
		return
	}
	s.logger.Warn("discarded raw text written by stale extraction",
		zap.String("file_id", fileID))
}

func (s *PipelineService) failExtraction(ctx context.Context, fileID, reason string) error {
	metrics.ExtractionsTotal.WithLabelValues("failure").Inc()
	s.logger.Warn("extraction failed", zap.String("file_id", fileID), zap.String("reason", reason))
	if err := s.docs.MarkExtractionFailed(ctx, fileID, reason); err != nil && !errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("record extraction failure: %w", err)
	}
	return nil
}

// CommitRedactions is the point of no return. It applies every redaction to
// the raw text, persists the AI-safe result, marks the record committed and
// destroys the raw text. After this the original content is gone for good.
func (s *PipelineService) CommitRedactions(ctx context.Context, actor *models.Actor, fileID string) (*models.DocumentProcessing, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	if err := s.perms.AssertAccess(ctx, actor, models.ResourceFile, fileID, authz.ActionCommit); err != nil {
		return nil, err
	}
	return s.commit(ctx, actor.OrganizationID, fileID, actor.UserID)
}

func (s *PipelineService) commit(ctx context.Context, orgID, fileID, committedBy string) (*models.DocumentProcessing, error) {
	rec, err := s.docs.GetByFileID(ctx, orgID, fileID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "no processing record for file")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load processing record")
	}
	if rec.CommittedAt != nil {
		return nil, appErrors.Clone(appErrors.ErrAlreadyCommitted, "document already committed")
	}

	raw, err := s.docs.GetRawText(ctx, orgID, fileID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrInvalidState, "no raw text; extraction has not completed")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load raw text")
	}

	spans, err := s.redactions.ListByFile(ctx, fileID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list redactions")
	}
	safe := s.redactor.ApplyRedactions(raw.Content, spans)

	now := time.Now().UTC()
	if err := s.docs.MarkCommitted(ctx, fileID, committedBy, now); err != nil {
		metrics.CommitsTotal.WithLabelValues("failure").Inc()
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrInvalidState, fmt.Sprintf("cannot commit from status %s", rec.Status))
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to mark committed")
	}

	if err := s.docs.SaveSafeText(ctx, &models.AISafeText{
		FileID:         fileID,
		OrganizationID: orgID,
		Content:        safe,
	}); err != nil {
		// Roll back before anything is deleted so the raw text survives.
		if revertErr := s.docs.RevertCommit(ctx, fileID, rec.Status); revertErr != nil {
			s.logger.Error("failed to revert commit after safe-text write failure",
				zap.String("file_id", fileID), zap.Error(revertErr))
		}
		metrics.CommitsTotal.WithLabelValues("failure").Inc()
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to persist redacted text")
	}

	if err := s.docs.DeleteRawText(ctx, orgID, fileID); err != nil {
		// The commit stands: AI-safe text exists and the record is
		// committed. Retained raw text is a security incident, not a
		// rollback trigger.
		metrics.RawTextRetainedTotal.Inc()
		s.logger.Error("SECURITY: raw pre-redaction text could not be deleted after commit",
			zap.String("file_id", fileID),
			zap.String("organization_id", orgID),
			zap.Error(err))
	}

	metrics.CommitsTotal.WithLabelValues("success").Inc()
	s.logger.Info("redactions committed",
		zap.String("file_id", fileID),
		zap.Int("redactions", len(spans)),
		zap.String("committed_by", committedBy))

	s.enqueue(PipelineJob{Op: JobIndex, OrganizationID: orgID, FileID: fileID, RequestedBy: committedBy})
	return s.docs.GetByFileID(ctx, orgID, fileID)
}

// RequestIndex schedules (re-)indexing of a committed document.
func (s *PipelineService) RequestIndex(ctx context.Context, actor *models.Actor, fileID string) error {
	if actor == nil {
		return appErrors.ErrUnauthorized
	}
	if err := s.perms.AssertAccess(ctx, actor, models.ResourceFile, fileID, authz.ActionIndex); err != nil {
		return err
	}
	rec, err := s.docs.GetByFileID(ctx, actor.OrganizationID, fileID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "no processing record for file")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load processing record")
	}
	if rec.CommittedAt == nil {
		return appErrors.Clone(appErrors.ErrNotCommitted, "document must be committed before indexing")
	}
	s.enqueue(PipelineJob{Op: JobIndex, OrganizationID: actor.OrganizationID, FileID: fileID, RequestedBy: actor.UserID})
	return nil
}

// IndexDocument chunks and embeds the AI-safe text, then atomically swaps
// the file's chunk set. Retryable: any failure parks the record at
// indexing_failed without touching existing chunks.
func (s *PipelineService) IndexDocument(ctx context.Context, orgID, fileID string) error {
	if err := s.docs.MarkIndexing(ctx, fileID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotCommitted, "document is not in an indexable state")
		}
		return fmt.Errorf("claim indexing: %w", err)
	}

	safe, err := s.docs.GetSafeText(ctx, orgID, fileID)
	if err != nil {
		return s.failIndexing(ctx, fileID, fmt.Sprintf("load redacted text: %v", err))
	}

	spans := s.chunker.Split(safe.Content)
	if err := ValidateChunks(spans, len([]rune(safe.Content))); err != nil {
		return s.failIndexing(ctx, fileID, fmt.Sprintf("chunk validation: %v", err))
	}

	if len(spans) == 0 {
		// Everything was redacted away. An empty index is a valid outcome.
		if err := s.chunks.DeleteForFile(ctx, fileID); err != nil {
			return s.failIndexing(ctx, fileID, fmt.Sprintf("clear chunks: %v", err))
		}
		if err := s.docs.MarkIndexed(ctx, fileID, 0, s.embedder.Model(), time.Now().UTC()); err != nil {
			return fmt.Errorf("mark indexed: %w", err)
		}
		metrics.IndexRunsTotal.WithLabelValues("success").Inc()
		return nil
	}

	chunks := make([]models.DocumentChunk, 0, len(spans))
	for batchStart := 0; batchStart < len(spans); batchStart += embedBatchSize {
		batchEnd := batchStart + embedBatchSize
		if batchEnd > len(spans) {
			batchEnd = len(spans)
		}
		batch := spans[batchStart:batchEnd]
		texts := make([]string, len(batch))
		for i, span := range batch {
			texts[i] = span.Content
		}

		vectors, err := s.embedder.GenerateBatchEmbeddings(ctx, texts)
		if err != nil {
			return s.failIndexing(ctx, fileID, fmt.Sprintf("embed batch at chunk %d: %v", batchStart, err))
		}
		if len(vectors) != len(batch) {
			return s.failIndexing(ctx, fileID, fmt.Sprintf("embedding count mismatch: %d texts, %d vectors", len(batch), len(vectors)))
		}

		for i, span := range batch {
			chunks = append(chunks, models.DocumentChunk{
				ID:             uuid.NewString(),
				FileID:         fileID,
				OrganizationID: orgID,
				ChunkIndex:     span.Index,
				Content:        span.Content,
				CharStart:      span.Start,
				CharEnd:        span.End,
				Embedding:      vectors[i],
				EmbeddingModel: s.embedder.Model(),
			})
		}
	}

	if err := s.chunks.ReplaceForFile(ctx, fileID, chunks); err != nil {
		return s.failIndexing(ctx, fileID, fmt.Sprintf("store chunks: %v", err))
	}

	if err := s.docs.MarkIndexed(ctx, fileID, len(chunks), s.embedder.Model(), time.Now().UTC()); err != nil {
		return fmt.Errorf("mark indexed: %w", err)
	}

	metrics.IndexRunsTotal.WithLabelValues("success").Inc()
	metrics.ChunksIndexedTotal.Add(float64(len(chunks)))
	s.logger.Info("document indexed",
		zap.String("file_id", fileID),
		zap.Int("chunks", len(chunks)),
		zap.String("model", s.embedder.Model()))
	return nil
}

func (s *PipelineService) failIndexing(ctx context.Context, fileID, reason string) error {
	metrics.IndexRunsTotal.WithLabelValues("failure").Inc()
	s.logger.Warn("indexing failed", zap.String("file_id", fileID), zap.String("reason", reason))
	if err := s.docs.MarkIndexingFailed(ctx, fileID, reason); err != nil && !errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("record indexing failure: %w", err)
	}
	return nil
}

// RequestFullPipeline schedules straight-through processing: extract, commit
// with whatever redaction spans exist, then index, all in one background job.
// Committing is part of the run, so the caller needs commit rights up front.
func (s *PipelineService) RequestFullPipeline(ctx context.Context, actor *models.Actor, fileID string) error {
	if actor == nil {
		return appErrors.ErrUnauthorized
	}
	if err := s.perms.AssertAccess(ctx, actor, models.ResourceFile, fileID, authz.ActionCommit); err != nil {
		return err
	}
	rec, err := s.docs.GetByFileID(ctx, actor.OrganizationID, fileID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "no processing record for file")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load processing record")
	}
	if rec.CommittedAt != nil {
		return appErrors.Clone(appErrors.ErrAlreadyCommitted, "document already committed")
	}
	s.enqueue(PipelineJob{Op: JobFullPipeline, OrganizationID: actor.OrganizationID, FileID: fileID, RequestedBy: actor.UserID})
	return nil
}

// ProcessFullPipeline runs extraction, commits with whatever redactions
// exist, then indexes. Used for uploads the committer explicitly marked for
// straight-through processing; the human review pause is skipped on their
// authority.
func (s *PipelineService) ProcessFullPipeline(ctx context.Context, orgID, fileID, committedBy string) error {
	if err := s.ProcessExtraction(ctx, orgID, fileID); err != nil {
		return err
	}
	rec, err := s.docs.GetByFileID(ctx, orgID, fileID)
	if err != nil {
		return fmt.Errorf("reload processing record: %w", err)
	}
	if rec.Status != models.StatusPendingRedaction {
		// Extraction failed or someone else advanced the record.
		return nil
	}
	if _, err := s.commit(ctx, orgID, fileID, committedBy); err != nil {
		return err
	}
	return s.IndexDocument(ctx, orgID, fileID)
}

// HandleJob is the queue handler entry point.
func (s *PipelineService) HandleJob(ctx context.Context, job jobs.Job) error {
	payload, err := decodePipelineJob(job.Payload)
	if err != nil {
		s.logger.Error("unprocessable pipeline job", zap.String("job_id", job.ID), zap.Error(err))
		return nil
	}

	switch payload.Op {
	case JobExtract:
		return s.ProcessExtraction(ctx, payload.OrganizationID, payload.FileID)
	case JobIndex:
		err := s.IndexDocument(ctx, payload.OrganizationID, payload.FileID)
		var typed *appErrors.Error
		if errors.As(err, &typed) && typed.Code == appErrors.ErrNotCommitted.Code {
			// Stale job; nothing to retry.
			return nil
		}
		return err
	case JobFullPipeline:
		return s.ProcessFullPipeline(ctx, payload.OrganizationID, payload.FileID, payload.RequestedBy)
	default:
		s.logger.Error("unknown pipeline job type", zap.String("op", payload.Op))
		return nil
	}
}

func decodePipelineJob(payload interface{}) (PipelineJob, error) {
	switch p := payload.(type) {
	case PipelineJob:
		return p, nil
	case *PipelineJob:
		return *p, nil
	case []byte:
		var job PipelineJob
		if err := json.Unmarshal(p, &job); err != nil {
			return PipelineJob{}, fmt.Errorf("decode pipeline job: %w", err)
		}
		return job, nil
	default:
		return PipelineJob{}, fmt.Errorf("unsupported pipeline payload %T", payload)
	}
}

func (s *PipelineService) enqueue(payload PipelineJob) {
	if s.queue == nil {
		s.logger.Debug("no pipeline queue configured, dropping job", zap.String("op", payload.Op))
		return
	}
	job := jobs.Job{ID: uuid.NewString(), Type: payload.Op, Payload: payload}
	if err := s.queue.Enqueue(job); err != nil {
		s.logger.Error("failed to enqueue pipeline job",
			zap.String("op", payload.Op),
			zap.String("file_id", payload.FileID),
			zap.Error(err))
	}
}
