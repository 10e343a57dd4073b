package service

import (
	"context"
	"database/sql"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/berrihq/berri-api/internal/authz"
	"github.com/berrihq/berri-api/internal/models"
	appErrors "github.com/berrihq/berri-api/pkg/errors"
)

type redactionStoreStub struct {
	spans   map[string][]models.Redaction
	created int
}

func (s *redactionStoreStub) Create(_ context.Context, red *models.Redaction) error {
	s.created++
	s.spans[red.FileID] = append(s.spans[red.FileID], *red)
	return nil
}

func (s *redactionStoreStub) ListByFile(_ context.Context, fileID string) ([]models.Redaction, error) {
	return s.spans[fileID], nil
}

func (s *redactionStoreStub) Delete(_ context.Context, fileID, redactionID string) error {
	existing := s.spans[fileID]
	for i, red := range existing {
		if red.ID == redactionID {
			s.spans[fileID] = append(existing[:i], existing[i+1:]...)
			return nil
		}
	}
	return sql.ErrNoRows
}

type docReaderStub struct {
	records  map[string]*models.DocumentProcessing
	rawTexts map[string]string
	statuses []models.ProcessingStatus
}

func (s *docReaderStub) GetByFileID(_ context.Context, _, fileID string) (*models.DocumentProcessing, error) {
	rec, ok := s.records[fileID]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return rec, nil
}

func (s *docReaderStub) GetRawText(_ context.Context, _, fileID string) (*models.RawText, error) {
	content, ok := s.rawTexts[fileID]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return &models.RawText{FileID: fileID, Content: content}, nil
}

func (s *docReaderStub) SetStatus(_ context.Context, _ string, _ []models.ProcessingStatus, to models.ProcessingStatus) error {
	s.statuses = append(s.statuses, to)
	return nil
}

type asserterStub struct {
	err error
}

func (s *asserterStub) AssertAccess(_ context.Context, _ *models.Actor, _ models.ResourceType, _ string, _ authz.Action) error {
	return s.err
}

func newRedactionFixture() (*RedactionService, *redactionStoreStub, *docReaderStub) {
	store := &redactionStoreStub{spans: make(map[string][]models.Redaction)}
	docs := &docReaderStub{
		records:  make(map[string]*models.DocumentProcessing),
		rawTexts: make(map[string]string),
	}
	svc := NewRedactionService(store, docs, &asserterStub{}, nil)
	return svc, store, docs
}

func TestApplyRedactionsNoSpansIsIdentity(t *testing.T) {
	svc, _, _ := newRedactionFixture()
	require.Equal(t, "untouched text", svc.ApplyRedactions("untouched text", nil))
}

func TestApplyRedactionsLengthArithmetic(t *testing.T) {
	svc, _, _ := newRedactionFixture()
	text := strings.Repeat("x", 50)
	spans := []models.Redaction{
		{StartOffset: 10, EndOffset: 15},
		{StartOffset: 30, EndOffset: 40},
	}
	safe := svc.ApplyRedactions(text, spans)
	require.Len(t, safe, 35)
}

func TestApplyRedactionsRemovesCorrectRunes(t *testing.T) {
	svc, _, _ := newRedactionFixture()
	text := "call 555-0100 or mail bob@example.com today"
	spans := []models.Redaction{
		{StartOffset: 5, EndOffset: 13},  // the phone number
		{StartOffset: 22, EndOffset: 37}, // the email
	}
	safe := svc.ApplyRedactions(text, spans)
	require.Equal(t, "call  or mail  today", safe)
	require.NotContains(t, safe, "555-0100")
	require.NotContains(t, safe, "bob@example.com")
}

func TestApplyRedactionsOrderIndependent(t *testing.T) {
	svc, _, _ := newRedactionFixture()
	text := "abcdefghijklmnopqrstuvwxyz"
	forward := []models.Redaction{{StartOffset: 2, EndOffset: 5}, {StartOffset: 10, EndOffset: 12}}
	backward := []models.Redaction{{StartOffset: 10, EndOffset: 12}, {StartOffset: 2, EndOffset: 5}}
	require.Equal(t, svc.ApplyRedactions(text, forward), svc.ApplyRedactions(text, backward))
}

func TestApplyRedactionsOverlappingSpansRemoveExactlyTheirUnion(t *testing.T) {
	svc, _, _ := newRedactionFixture()
	text := "abcdefghijklmnopqrst"
	spans := []models.Redaction{
		{StartOffset: 5, EndOffset: 10},
		{StartOffset: 8, EndOffset: 12},
	}
	require.Equal(t, "abcdemnopqrst", svc.ApplyRedactions(text, spans),
		"only the union [5,12) may disappear; nothing past it")
}

func TestApplyRedactionsSkipsInvalidSpans(t *testing.T) {
	svc, _, _ := newRedactionFixture()
	text := "0123456789"
	spans := []models.Redaction{
		{StartOffset: -1, EndOffset: 3},
		{StartOffset: 4, EndOffset: 2},
		{StartOffset: 8, EndOffset: 99},
		{StartOffset: 0, EndOffset: 2},
	}
	require.Equal(t, "23456789", svc.ApplyRedactions(text, spans))
}

func TestBuildPreviewMarkersAtOriginalPositions(t *testing.T) {
	svc, _, _ := newRedactionFixture()
	text := strings.Repeat("x", 50)
	spans := []models.Redaction{
		{StartOffset: 10, EndOffset: 15},
		{StartOffset: 30, EndOffset: 40},
	}
	preview := svc.BuildPreview(text, spans)
	require.Equal(t, 2, strings.Count(preview, "[REDACTED]"))
	require.Equal(t, strings.Repeat("x", 10)+"[REDACTED]", preview[:20])
	// 50 chars minus 15 redacted plus two 10-char markers.
	require.Len(t, preview, 55)
}

func TestMergeSpansOverlapAndAdjacency(t *testing.T) {
	spans := []models.Redaction{
		{StartOffset: 20, EndOffset: 25, Type: models.RedactionManual},
		{StartOffset: 0, EndOffset: 5, Type: models.RedactionManual},
		{StartOffset: 3, EndOffset: 10, Type: models.RedactionEmail},
		{StartOffset: 10, EndOffset: 12, Type: models.RedactionManual},
	}
	merged := MergeSpans(spans)
	require.Len(t, merged, 2)
	require.Equal(t, 0, merged[0].StartOffset)
	require.Equal(t, 12, merged[0].EndOffset)
	require.Equal(t, models.RedactionEmail, merged[0].Type, "semantic type wins over manual")
	require.Equal(t, 20, merged[1].StartOffset)
}

func TestSuggestPIIDetectsKnownShapes(t *testing.T) {
	svc, _, _ := newRedactionFixture()
	text := "Reach alice@corp.example or call +1 415-555-0100. SSN 123-45-6789 on file."
	suggestions := svc.SuggestPII(text)

	byType := make(map[models.RedactionType]int)
	for _, sg := range suggestions {
		byType[sg.Type]++
		// Excerpt must reproduce the flagged range exactly.
		runes := []rune(text)
		require.Equal(t, string(runes[sg.StartOffset:sg.EndOffset]), sg.Excerpt)
	}
	require.Equal(t, 1, byType[models.RedactionEmail])
	require.Equal(t, 1, byType[models.RedactionNationalID])
	require.GreaterOrEqual(t, byType[models.RedactionPhone], 1)
}

func TestSuggestPIICleanTextYieldsNothing(t *testing.T) {
	svc, _, _ := newRedactionFixture()
	require.Empty(t, svc.SuggestPII("Quarterly revenue grew in every region."))
}

func TestAddRedactionValidatesOffsets(t *testing.T) {
	svc, _, docs := newRedactionFixture()
	docs.records["file-1"] = &models.DocumentProcessing{FileID: "file-1", Status: models.StatusPendingRedaction}
	docs.rawTexts["file-1"] = strings.Repeat("a", 20)

	_, err := svc.AddRedaction(context.Background(), actorWith(), "file-1", &models.Redaction{StartOffset: 5, EndOffset: 30})
	require.Error(t, err)
	require.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestAddRedactionDefaultsToManualAndAdvancesStatus(t *testing.T) {
	svc, store, docs := newRedactionFixture()
	docs.records["file-1"] = &models.DocumentProcessing{FileID: "file-1", Status: models.StatusPendingRedaction}
	docs.rawTexts["file-1"] = strings.Repeat("a", 20)

	red, err := svc.AddRedaction(context.Background(), actorWith(), "file-1", &models.Redaction{StartOffset: 5, EndOffset: 10})
	require.NoError(t, err)
	require.Equal(t, models.RedactionManual, red.Type)
	require.Equal(t, "user-1", red.CreatedBy)
	require.Equal(t, 1, store.created)
	require.Contains(t, docs.statuses, models.StatusRedactionInProgress)
}

func TestAddRedactionAbsorbsOverlappingSpans(t *testing.T) {
	svc, store, docs := newRedactionFixture()
	docs.records["file-1"] = &models.DocumentProcessing{FileID: "file-1", Status: models.StatusRedactionInProgress}
	docs.rawTexts["file-1"] = "abcdefghijklmnopqrst"
	store.spans["file-1"] = []models.Redaction{
		{ID: "red-1", FileID: "file-1", StartOffset: 5, EndOffset: 10, Type: models.RedactionManual},
	}

	red, err := svc.AddRedaction(context.Background(), actorWith(), "file-1",
		&models.Redaction{StartOffset: 8, EndOffset: 12, Type: models.RedactionEmail})
	require.NoError(t, err)
	require.Equal(t, 5, red.StartOffset)
	require.Equal(t, 12, red.EndOffset)
	require.Equal(t, models.RedactionEmail, red.Type)

	stored := store.spans["file-1"]
	require.Len(t, stored, 1, "overlapping spans must collapse into one")
	require.Equal(t, 5, stored[0].StartOffset)
	require.Equal(t, 12, stored[0].EndOffset)

	safe := svc.ApplyRedactions(docs.rawTexts["file-1"], stored)
	require.Equal(t, "abcdemnopqrst", safe)
}

func TestAddRedactionDisjointSpansStaySeparate(t *testing.T) {
	svc, store, docs := newRedactionFixture()
	docs.records["file-1"] = &models.DocumentProcessing{FileID: "file-1", Status: models.StatusRedactionInProgress}
	docs.rawTexts["file-1"] = strings.Repeat("a", 30)
	store.spans["file-1"] = []models.Redaction{
		{ID: "red-1", FileID: "file-1", StartOffset: 0, EndOffset: 5},
	}

	_, err := svc.AddRedaction(context.Background(), actorWith(), "file-1",
		&models.Redaction{StartOffset: 10, EndOffset: 15})
	require.NoError(t, err)
	require.Len(t, store.spans["file-1"], 2)
}

func TestAddRedactionRejectedAfterCommit(t *testing.T) {
	svc, store, docs := newRedactionFixture()
	now := time.Now()
	docs.records["file-1"] = &models.DocumentProcessing{FileID: "file-1", Status: models.StatusCommitted, CommittedAt: &now}
	docs.rawTexts["file-1"] = strings.Repeat("a", 20)

	_, err := svc.AddRedaction(context.Background(), actorWith(), "file-1", &models.Redaction{StartOffset: 0, EndOffset: 5})
	require.Error(t, err)
	require.Equal(t, appErrors.ErrAlreadyCommitted.Code, appErrors.FromError(err).Code)
	require.Zero(t, store.created)
}

func TestDeleteRedactionRejectedAfterCommit(t *testing.T) {
	svc, store, docs := newRedactionFixture()
	now := time.Now()
	docs.records["file-1"] = &models.DocumentProcessing{FileID: "file-1", Status: models.StatusCommitted, CommittedAt: &now}
	store.spans["file-1"] = []models.Redaction{{ID: "red-1", FileID: "file-1", StartOffset: 0, EndOffset: 5}}

	err := svc.DeleteRedaction(context.Background(), actorWith(), "file-1", "red-1")
	require.Error(t, err)
	require.Equal(t, appErrors.ErrAlreadyCommitted.Code, appErrors.FromError(err).Code)
	require.Len(t, store.spans["file-1"], 1)
}

func TestSuggestScansStoredRawText(t *testing.T) {
	svc, _, docs := newRedactionFixture()
	docs.rawTexts["file-1"] = "write to ada@example.org please"

	suggestions, err := svc.Suggest(context.Background(), actorWith(), "file-1")
	require.NoError(t, err)
	require.Len(t, suggestions, 1)
	require.Equal(t, models.RedactionEmail, suggestions[0].Type)
}

func TestSuggestRequiresRawTextAccess(t *testing.T) {
	store := &redactionStoreStub{spans: make(map[string][]models.Redaction)}
	docs := &docReaderStub{records: make(map[string]*models.DocumentProcessing), rawTexts: make(map[string]string)}
	svc := NewRedactionService(store, docs, &asserterStub{err: appErrors.ErrForbidden}, nil)

	_, err := svc.Suggest(context.Background(), actorWith(), "file-1")
	require.Error(t, err)
	require.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)
}

func TestPreviewRequiresRawTextAccess(t *testing.T) {
	store := &redactionStoreStub{spans: make(map[string][]models.Redaction)}
	docs := &docReaderStub{records: make(map[string]*models.DocumentProcessing), rawTexts: make(map[string]string)}
	svc := NewRedactionService(store, docs, &asserterStub{err: appErrors.ErrForbidden}, nil)

	_, err := svc.Preview(context.Background(), actorWith(), "file-1")
	require.Error(t, err)
	require.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)
}

func TestPreviewRendersMarkers(t *testing.T) {
	svc, store, docs := newRedactionFixture()
	docs.rawTexts["file-1"] = "the secret is hunter2 ok"
	store.spans["file-1"] = []models.Redaction{{ID: "red-1", FileID: "file-1", StartOffset: 14, EndOffset: 21}}

	preview, err := svc.Preview(context.Background(), actorWith(), "file-1")
	require.NoError(t, err)
	require.Equal(t, "the secret is [REDACTED] ok", preview)
}
