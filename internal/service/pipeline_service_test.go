package service

import (
	"context"
	"database/sql"
	"strings"
	"testing"
	"time"

	"github.com/pgvector/pgvector-go"
	"github.com/stretchr/testify/require"

	"github.com/berrihq/berri-api/internal/extract"
	"github.com/berrihq/berri-api/internal/models"
	appErrors "github.com/berrihq/berri-api/pkg/errors"
	"github.com/berrihq/berri-api/pkg/jobs"
)

// pipelineDocsStub mirrors the store's conditional-update semantics: a
// transition whose precondition fails returns sql.ErrNoRows.
type pipelineDocsStub struct {
	recs          map[string]*models.DocumentProcessing
	raw           map[string]string
	safe          map[string]string
	failSafeSave  bool
	failRawDelete bool
	reverted      bool
}

func newPipelineDocsStub() *pipelineDocsStub {
	return &pipelineDocsStub{
		recs: make(map[string]*models.DocumentProcessing),
		raw:  make(map[string]string),
		safe: make(map[string]string),
	}
}

func (s *pipelineDocsStub) CreateProcessing(_ context.Context, rec *models.DocumentProcessing) error {
	if _, exists := s.recs[rec.FileID]; exists {
		return nil
	}
	if rec.Status == "" {
		rec.Status = models.StatusPendingExtraction
	}
	clone := *rec
	s.recs[rec.FileID] = &clone
	return nil
}

func (s *pipelineDocsStub) GetByFileID(_ context.Context, _, fileID string) (*models.DocumentProcessing, error) {
	rec, ok := s.recs[fileID]
	if !ok {
		return nil, sql.ErrNoRows
	}
	clone := *rec
	return &clone, nil
}

func (s *pipelineDocsStub) MarkExtracted(_ context.Context, fileID string, at time.Time) error {
	rec, ok := s.recs[fileID]
	if !ok || (rec.Status != models.StatusPendingExtraction && rec.Status != models.StatusExtractionFailed) {
		return sql.ErrNoRows
	}
	rec.Status = models.StatusPendingRedaction
	rec.ExtractedAt = &at
	rec.LastError = nil
	return nil
}

func (s *pipelineDocsStub) MarkExtractionFailed(_ context.Context, fileID, errMsg string) error {
	rec, ok := s.recs[fileID]
	if !ok || (rec.Status != models.StatusPendingExtraction && rec.Status != models.StatusExtractionFailed) {
		return sql.ErrNoRows
	}
	rec.Status = models.StatusExtractionFailed
	rec.LastError = &errMsg
	return nil
}

func (s *pipelineDocsStub) SetStatus(_ context.Context, fileID string, from []models.ProcessingStatus, to models.ProcessingStatus) error {
	rec, ok := s.recs[fileID]
	if !ok {
		return sql.ErrNoRows
	}
	for _, status := range from {
		if rec.Status == status {
			rec.Status = to
			return nil
		}
	}
	return sql.ErrNoRows
}

func (s *pipelineDocsStub) MarkCommitted(_ context.Context, fileID, committedBy string, at time.Time) error {
	rec, ok := s.recs[fileID]
	if !ok || rec.CommittedAt != nil {
		return sql.ErrNoRows
	}
	switch rec.Status {
	case models.StatusPendingRedaction, models.StatusRedactionInProgress, models.StatusPendingCommit:
	default:
		return sql.ErrNoRows
	}
	rec.Status = models.StatusCommitted
	rec.CommittedAt = &at
	rec.CommittedBy = &committedBy
	return nil
}

func (s *pipelineDocsStub) RevertCommit(_ context.Context, fileID string, to models.ProcessingStatus) error {
	rec, ok := s.recs[fileID]
	if !ok || rec.Status != models.StatusCommitted {
		return sql.ErrNoRows
	}
	rec.Status = to
	rec.CommittedAt = nil
	rec.CommittedBy = nil
	s.reverted = true
	return nil
}

func (s *pipelineDocsStub) MarkIndexing(_ context.Context, fileID string) error {
	rec, ok := s.recs[fileID]
	if !ok || rec.CommittedAt == nil {
		return sql.ErrNoRows
	}
	if rec.Status != models.StatusCommitted && rec.Status != models.StatusIndexingFailed {
		return sql.ErrNoRows
	}
	rec.Status = models.StatusIndexing
	return nil
}

func (s *pipelineDocsStub) MarkIndexed(_ context.Context, fileID string, chunkCount int, embeddingModel string, at time.Time) error {
	rec, ok := s.recs[fileID]
	if !ok || rec.Status != models.StatusIndexing {
		return sql.ErrNoRows
	}
	rec.Status = models.StatusIndexed
	rec.IndexedAt = &at
	rec.ChunkCount = chunkCount
	rec.EmbeddingModel = &embeddingModel
	rec.LastError = nil
	return nil
}

func (s *pipelineDocsStub) MarkIndexingFailed(_ context.Context, fileID, errMsg string) error {
	rec, ok := s.recs[fileID]
	if !ok || rec.Status != models.StatusIndexing {
		return sql.ErrNoRows
	}
	rec.Status = models.StatusIndexingFailed
	rec.LastError = &errMsg
	return nil
}

func (s *pipelineDocsStub) SaveRawText(_ context.Context, text *models.RawText) error {
	s.raw[text.FileID] = text.Content
	return nil
}

func (s *pipelineDocsStub) GetRawText(_ context.Context, _, fileID string) (*models.RawText, error) {
	content, ok := s.raw[fileID]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return &models.RawText{FileID: fileID, Content: content}, nil
}

func (s *pipelineDocsStub) DeleteRawText(_ context.Context, _, fileID string) error {
	if s.failRawDelete {
		return sql.ErrConnDone
	}
	delete(s.raw, fileID)
	return nil
}

func (s *pipelineDocsStub) SaveSafeText(_ context.Context, text *models.AISafeText) error {
	if s.failSafeSave {
		return sql.ErrConnDone
	}
	s.safe[text.FileID] = text.Content
	return nil
}

func (s *pipelineDocsStub) GetSafeText(_ context.Context, _, fileID string) (*models.AISafeText, error) {
	content, ok := s.safe[fileID]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return &models.AISafeText{FileID: fileID, Content: content}, nil
}

type pipelineChunksStub struct {
	chunks       map[string][]models.DocumentChunk
	replaceCalls int
}

func (s *pipelineChunksStub) ReplaceForFile(_ context.Context, fileID string, chunks []models.DocumentChunk) error {
	s.replaceCalls++
	s.chunks[fileID] = chunks
	return nil
}

func (s *pipelineChunksStub) DeleteForFile(_ context.Context, fileID string) error {
	delete(s.chunks, fileID)
	return nil
}

type fileGetterStub struct {
	files map[string]*models.File
}

func (s *fileGetterStub) GetByID(_ context.Context, _, id string) (*models.File, error) {
	f, ok := s.files[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return f, nil
}

type blobStub struct {
	blobs map[string][]byte
}

func (s *blobStub) Read(filename string) ([]byte, error) {
	data, ok := s.blobs[filename]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return data, nil
}

type embedderStub struct {
	fail  bool
	calls int
}

func (s *embedderStub) Model() string { return "test-embedding-model" }

func (s *embedderStub) GenerateBatchEmbeddings(_ context.Context, texts []string) ([]pgvector.Vector, error) {
	s.calls++
	if s.fail {
		return nil, sql.ErrConnDone
	}
	vectors := make([]pgvector.Vector, len(texts))
	for i := range texts {
		vectors[i] = pgvector.NewVector([]float32{float32(len(texts[i])), 1, 0})
	}
	return vectors, nil
}

type enqueueSpy struct {
	jobs []jobs.Job
}

func (s *enqueueSpy) Enqueue(job jobs.Job) error {
	s.jobs = append(s.jobs, job)
	return nil
}

type pipelineFixture struct {
	svc      *PipelineService
	docs     *pipelineDocsStub
	chunks   *pipelineChunksStub
	files    *fileGetterStub
	blobs    *blobStub
	spans    *redactionStoreStub
	embedder *embedderStub
	queue    *enqueueSpy
}

func newPipelineFixture() *pipelineFixture {
	docs := newPipelineDocsStub()
	chunks := &pipelineChunksStub{chunks: make(map[string][]models.DocumentChunk)}
	files := &fileGetterStub{files: make(map[string]*models.File)}
	blobs := &blobStub{blobs: make(map[string][]byte)}
	spans := &redactionStoreStub{spans: make(map[string][]models.Redaction)}
	embedder := &embedderStub{}
	queue := &enqueueSpy{}
	red := NewRedactionService(spans, docs, &asserterStub{}, nil)

	svc := NewPipelineService(docs, chunks, files, blobs, spans, red,
		extract.New(), embedder, &asserterStub{}, queue, NewChunker(100, 20, 10), nil)
	return &pipelineFixture{svc: svc, docs: docs, chunks: chunks, files: files,
		blobs: blobs, spans: spans, embedder: embedder, queue: queue}
}

func (f *pipelineFixture) seedUpload(t *testing.T, fileID, content string) {
	t.Helper()
	f.files.files[fileID] = &models.File{
		ID: fileID, OrganizationID: "org-1", Name: fileID + ".txt",
		MimeType: "text/plain", StoragePath: "org-1/" + fileID,
	}
	f.blobs.blobs["org-1/"+fileID] = []byte(content)
	require.NoError(t, f.docs.CreateProcessing(context.Background(),
		&models.DocumentProcessing{FileID: fileID, OrganizationID: "org-1"}))
}

func TestProcessExtractionStoresRawTextAndAdvances(t *testing.T) {
	f := newPipelineFixture()
	f.seedUpload(t, "file-1", "This document has plenty of extractable text in it.")

	require.NoError(t, f.svc.ProcessExtraction(context.Background(), "org-1", "file-1"))

	rec := f.docs.recs["file-1"]
	require.Equal(t, models.StatusPendingRedaction, rec.Status)
	require.NotNil(t, rec.ExtractedAt)
	require.Equal(t, "This document has plenty of extractable text in it.", f.docs.raw["file-1"])
}

func TestProcessExtractionUnsupportedMimeHaltsAtFailed(t *testing.T) {
	f := newPipelineFixture()
	f.seedUpload(t, "file-1", "irrelevant")
	f.files.files["file-1"].MimeType = "image/png"

	require.NoError(t, f.svc.ProcessExtraction(context.Background(), "org-1", "file-1"))

	rec := f.docs.recs["file-1"]
	require.Equal(t, models.StatusExtractionFailed, rec.Status)
	require.NotNil(t, rec.LastError)
	require.Contains(t, *rec.LastError, "image/png")
}

func TestProcessExtractionRejectsTrivialText(t *testing.T) {
	f := newPipelineFixture()
	f.seedUpload(t, "file-1", "hi")

	require.NoError(t, f.svc.ProcessExtraction(context.Background(), "org-1", "file-1"))
	require.Equal(t, models.StatusExtractionFailed, f.docs.recs["file-1"].Status)
}

func TestStaleExtractJobCannotResurrectRawText(t *testing.T) {
	f := newPipelineFixture()
	f.seedUpload(t, "file-1", strings.Repeat("x", 50))
	require.NoError(t, f.svc.ProcessExtraction(context.Background(), "org-1", "file-1"))

	_, err := f.svc.CommitRedactions(context.Background(), actorWith(), "file-1")
	require.NoError(t, err)
	_, rawExists := f.docs.raw["file-1"]
	require.False(t, rawExists)

	// A retried extract job queued before the commit lands afterwards.
	require.NoError(t, f.svc.ProcessExtraction(context.Background(), "org-1", "file-1"))

	_, rawExists = f.docs.raw["file-1"]
	require.False(t, rawExists, "raw text must stay absent after commit")
	require.Equal(t, models.StatusCommitted, f.docs.recs["file-1"].Status)
}

func commitReady(t *testing.T, f *pipelineFixture, fileID, raw string) {
	t.Helper()
	f.seedUpload(t, fileID, raw)
	require.NoError(t, f.svc.ProcessExtraction(context.Background(), "org-1", fileID))
	require.Equal(t, models.StatusPendingRedaction, f.docs.recs[fileID].Status)
}

func TestCommitAppliesRedactionsAndDestroysRawText(t *testing.T) {
	f := newPipelineFixture()
	commitReady(t, f, "file-1", strings.Repeat("x", 50))
	f.spans.spans["file-1"] = []models.Redaction{
		{ID: "r1", FileID: "file-1", StartOffset: 10, EndOffset: 15},
		{ID: "r2", FileID: "file-1", StartOffset: 30, EndOffset: 40},
	}

	rec, err := f.svc.CommitRedactions(context.Background(), actorWith(), "file-1")
	require.NoError(t, err)
	require.Equal(t, models.StatusCommitted, rec.Status)
	require.NotNil(t, rec.CommittedAt)

	require.Len(t, f.docs.safe["file-1"], 35)
	_, rawExists := f.docs.raw["file-1"]
	require.False(t, rawExists, "raw text must be destroyed after commit")

	require.Len(t, f.queue.jobs, 1)
	require.Equal(t, JobIndex, f.queue.jobs[0].Type)
}

func TestCommitIsIrreversible(t *testing.T) {
	f := newPipelineFixture()
	commitReady(t, f, "file-1", strings.Repeat("x", 50))

	_, err := f.svc.CommitRedactions(context.Background(), actorWith(), "file-1")
	require.NoError(t, err)

	_, err = f.svc.CommitRedactions(context.Background(), actorWith(), "file-1")
	require.Error(t, err)
	require.Equal(t, appErrors.ErrAlreadyCommitted.Code, appErrors.FromError(err).Code)
}

func TestCommitRevertsWhenSafeTextWriteFails(t *testing.T) {
	f := newPipelineFixture()
	commitReady(t, f, "file-1", strings.Repeat("x", 50))
	f.docs.failSafeSave = true

	_, err := f.svc.CommitRedactions(context.Background(), actorWith(), "file-1")
	require.Error(t, err)
	require.True(t, f.docs.reverted, "commit must be rolled back")

	rec := f.docs.recs["file-1"]
	require.Equal(t, models.StatusPendingRedaction, rec.Status)
	require.Nil(t, rec.CommittedAt)
	require.Contains(t, f.docs.raw, "file-1", "raw text must survive a rolled-back commit")

	// And the document is still committable once the store recovers.
	f.docs.failSafeSave = false
	_, err = f.svc.CommitRedactions(context.Background(), actorWith(), "file-1")
	require.NoError(t, err)
}

func TestCommitStandsWhenRawDeleteFails(t *testing.T) {
	f := newPipelineFixture()
	commitReady(t, f, "file-1", strings.Repeat("x", 50))
	f.docs.failRawDelete = true

	rec, err := f.svc.CommitRedactions(context.Background(), actorWith(), "file-1")
	require.NoError(t, err, "retained raw text never rolls back a commit")
	require.Equal(t, models.StatusCommitted, rec.Status)
	require.Contains(t, f.docs.raw, "file-1")
}

func TestIndexDocumentEmbedsAndMarksIndexed(t *testing.T) {
	f := newPipelineFixture()
	commitReady(t, f, "file-1", strings.Repeat("A readable sentence of filler. ", 20))
	_, err := f.svc.CommitRedactions(context.Background(), actorWith(), "file-1")
	require.NoError(t, err)

	require.NoError(t, f.svc.IndexDocument(context.Background(), "org-1", "file-1"))

	rec := f.docs.recs["file-1"]
	require.Equal(t, models.StatusIndexed, rec.Status)
	require.NotNil(t, rec.IndexedAt)
	require.Equal(t, len(f.chunks.chunks["file-1"]), rec.ChunkCount)
	require.Greater(t, rec.ChunkCount, 1)
	require.Equal(t, "test-embedding-model", *rec.EmbeddingModel)
	for _, chunk := range f.chunks.chunks["file-1"] {
		require.Equal(t, "org-1", chunk.OrganizationID)
		require.Equal(t, "test-embedding-model", chunk.EmbeddingModel)
	}
}

func TestIndexDocumentRequiresCommit(t *testing.T) {
	f := newPipelineFixture()
	commitReady(t, f, "file-1", strings.Repeat("x", 50))

	err := f.svc.IndexDocument(context.Background(), "org-1", "file-1")
	require.Error(t, err)
	require.Equal(t, appErrors.ErrNotCommitted.Code, appErrors.FromError(err).Code)
}

func TestIndexDocumentFailureIsRetryable(t *testing.T) {
	f := newPipelineFixture()
	commitReady(t, f, "file-1", strings.Repeat("A readable sentence of filler. ", 20))
	_, err := f.svc.CommitRedactions(context.Background(), actorWith(), "file-1")
	require.NoError(t, err)

	f.embedder.fail = true
	require.NoError(t, f.svc.IndexDocument(context.Background(), "org-1", "file-1"))
	rec := f.docs.recs["file-1"]
	require.Equal(t, models.StatusIndexingFailed, rec.Status)
	require.NotNil(t, rec.LastError)
	require.Empty(t, f.chunks.chunks["file-1"], "failed run must not write partial chunks")

	f.embedder.fail = false
	require.NoError(t, f.svc.IndexDocument(context.Background(), "org-1", "file-1"))
	require.Equal(t, models.StatusIndexed, f.docs.recs["file-1"].Status)
}

func TestProcessFullPipelineRunsStraightThrough(t *testing.T) {
	f := newPipelineFixture()
	f.seedUpload(t, "file-1", strings.Repeat("A readable sentence of filler. ", 20))

	require.NoError(t, f.svc.ProcessFullPipeline(context.Background(), "org-1", "file-1", "user-1"))

	rec := f.docs.recs["file-1"]
	require.Equal(t, models.StatusIndexed, rec.Status)
	require.NotNil(t, rec.CommittedAt)
	_, rawExists := f.docs.raw["file-1"]
	require.False(t, rawExists)
}

func TestRequestFullPipelineEnqueuesJob(t *testing.T) {
	f := newPipelineFixture()
	f.seedUpload(t, "file-1", strings.Repeat("x", 50))

	require.NoError(t, f.svc.RequestFullPipeline(context.Background(), actorWith(), "file-1"))

	require.Len(t, f.queue.jobs, 1)
	require.Equal(t, JobFullPipeline, f.queue.jobs[0].Type)
	payload, ok := f.queue.jobs[0].Payload.(PipelineJob)
	require.True(t, ok)
	require.Equal(t, "file-1", payload.FileID)
	require.Equal(t, actorWith().UserID, payload.RequestedBy)
}

func TestRequestFullPipelineRejectsCommittedDocument(t *testing.T) {
	f := newPipelineFixture()
	commitReady(t, f, "file-1", strings.Repeat("x", 50))
	_, err := f.svc.CommitRedactions(context.Background(), actorWith(), "file-1")
	require.NoError(t, err)
	f.queue.jobs = nil

	err = f.svc.RequestFullPipeline(context.Background(), actorWith(), "file-1")
	require.Error(t, err)
	require.Equal(t, appErrors.ErrAlreadyCommitted.Code, appErrors.FromError(err).Code)
	require.Empty(t, f.queue.jobs)
}

func TestProcessFullPipelineStopsAfterFailedExtraction(t *testing.T) {
	f := newPipelineFixture()
	f.seedUpload(t, "file-1", "hi")

	require.NoError(t, f.svc.ProcessFullPipeline(context.Background(), "org-1", "file-1", "user-1"))
	require.Equal(t, models.StatusExtractionFailed, f.docs.recs["file-1"].Status)
}

func TestHandleJobDispatchesExtraction(t *testing.T) {
	f := newPipelineFixture()
	f.seedUpload(t, "file-1", "This document has plenty of extractable text in it.")

	job := jobs.Job{ID: "j1", Type: JobExtract, Payload: PipelineJob{
		Op: JobExtract, OrganizationID: "org-1", FileID: "file-1",
	}}
	require.NoError(t, f.svc.HandleJob(context.Background(), job))
	require.Equal(t, models.StatusPendingRedaction, f.docs.recs["file-1"].Status)
}

func TestHandleJobIgnoresStaleIndexJob(t *testing.T) {
	f := newPipelineFixture()
	commitReady(t, f, "file-1", strings.Repeat("x", 50))

	job := jobs.Job{ID: "j1", Type: JobIndex, Payload: PipelineJob{
		Op: JobIndex, OrganizationID: "org-1", FileID: "file-1",
	}}
	require.NoError(t, f.svc.HandleJob(context.Background(), job), "uncommitted file is not a retryable job error")
}
