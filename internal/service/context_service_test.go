package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/berrihq/berri-api/internal/adapter/websearch"
	"github.com/berrihq/berri-api/internal/models"
)

type internalSearcherStub struct {
	results []models.SimilarChunk
	err     error

	calls      int
	gotFileIDs []string
}

func (s *internalSearcherStub) SearchSimilar(_ context.Context, _ *models.Actor, _ string, opts SearchOptions) ([]models.SimilarChunk, error) {
	s.calls++
	s.gotFileIDs = opts.FileIDs
	return s.results, s.err
}

type externalSpy struct {
	enabled bool
	healthy bool

	searchResults []websearch.SearchResult
	searchErr     error
	crawlResults  []websearch.CrawlResult
	crawlErr      error

	searchCalls int
	crawlCalls  int
}

func (s *externalSpy) Enabled() bool                  { return s.enabled }
func (s *externalSpy) Healthy(_ context.Context) bool { return s.healthy }

func (s *externalSpy) Search(_ context.Context, _ string) ([]websearch.SearchResult, error) {
	s.searchCalls++
	return s.searchResults, s.searchErr
}

func (s *externalSpy) Crawl(_ context.Context, _ []string) ([]websearch.CrawlResult, error) {
	s.crawlCalls++
	return s.crawlResults, s.crawlErr
}

type chatStub struct {
	err       error
	failOnce  bool
	calls     int
	gotSystem []string
}

func (s *chatStub) Complete(_ context.Context, systemPrompt, _ string) (string, error) {
	s.calls++
	s.gotSystem = append(s.gotSystem, systemPrompt)
	if s.err != nil {
		if s.failOnce {
			err := s.err
			s.err = nil
			return "", err
		}
		return "", s.err
	}
	return "model answer", nil
}

type contextFixture struct {
	svc      *ContextService
	internal *internalSearcherStub
	external *externalSpy
	files    *fileGetterStub
	chat     *chatStub
}

func newContextFixture() *contextFixture {
	internal := &internalSearcherStub{}
	external := &externalSpy{}
	files := &fileGetterStub{files: make(map[string]*models.File)}
	chat := &chatStub{}
	svc := NewContextService(internal, external, files, chat, nil)
	return &contextFixture{svc: svc, internal: internal, external: external, files: files, chat: chat}
}

func TestRetrieveExplicitFilesHitIsInternal(t *testing.T) {
	f := newContextFixture()
	f.external.enabled = true
	f.external.healthy = true
	f.internal.results = []models.SimilarChunk{
		{ChunkID: "c1", FileID: "f1", FileName: "roadmap.txt", Content: "ship the beta in june"},
	}

	got, err := f.svc.Retrieve(context.Background(), actorWith(), "when does the beta ship", []string{"f1"})
	require.NoError(t, err)
	require.Equal(t, ModeInternal, got.Mode)
	require.Equal(t, []string{"f1"}, f.internal.gotFileIDs, "search must be restricted to the named files")
	require.Contains(t, got.UserPrompt, "ship the beta in june")
	require.Contains(t, got.UserPrompt, "roadmap.txt")
	require.Equal(t, internalSystemPrompt, got.SystemPrompt)
	require.Zero(t, f.external.searchCalls)
	require.Zero(t, f.external.crawlCalls)
}

func TestRetrieveExplicitFilesMissNeverGoesExternal(t *testing.T) {
	f := newContextFixture()
	f.external.enabled = true
	f.external.healthy = true
	f.external.searchResults = []websearch.SearchResult{{URL: "https://example.com", Title: "hit"}}
	f.files.files["f1"] = &models.File{ID: "f1", Name: "roadmap.txt"}

	got, err := f.svc.Retrieve(context.Background(), actorWith(), "unrelated question", []string{"f1"})
	require.NoError(t, err)
	require.Equal(t, ModeGeneral, got.Mode)
	require.Contains(t, got.Disclaimer, "roadmap.txt")
	require.Zero(t, f.external.searchCalls, "explicitly named files must never trigger web search")
	require.Zero(t, f.external.crawlCalls)
}

func TestRetrieveUnrestrictedHitIsInternal(t *testing.T) {
	f := newContextFixture()
	f.external.enabled = true
	f.external.healthy = true
	f.internal.results = []models.SimilarChunk{{ChunkID: "c1", FileID: "f1", FileName: "notes.txt", Content: "relevant"}}

	got, err := f.svc.Retrieve(context.Background(), actorWith(), "question", nil)
	require.NoError(t, err)
	require.Equal(t, ModeInternal, got.Mode)
	require.Nil(t, f.internal.gotFileIDs)
	require.Zero(t, f.external.searchCalls)
}

func TestRetrieveFallsBackToExternal(t *testing.T) {
	f := newContextFixture()
	f.external.enabled = true
	f.external.healthy = true
	f.external.searchResults = []websearch.SearchResult{{URL: "https://example.com/a", Title: "Article"}}
	f.external.crawlResults = []websearch.CrawlResult{
		{URL: "https://example.com/a", Title: "Article", Content: "web content body", Success: true},
	}

	got, err := f.svc.Retrieve(context.Background(), actorWith(), "question", nil)
	require.NoError(t, err)
	require.Equal(t, ModeExternal, got.Mode)
	require.Equal(t, externalSystemPrompt, got.SystemPrompt)
	require.Contains(t, got.UserPrompt, "web content body")
	require.Contains(t, got.UserPrompt, "https://example.com/a")
	require.Len(t, got.Sources, 1)
	require.Equal(t, "https://example.com/a", got.Sources[0].URL)
	require.Empty(t, got.Chunks, "external mode must carry no internal chunks")
}

func TestRetrieveSkipsExternalWhenDisabled(t *testing.T) {
	f := newContextFixture()
	f.external.enabled = false
	f.external.searchResults = []websearch.SearchResult{{URL: "https://example.com"}}

	got, err := f.svc.Retrieve(context.Background(), actorWith(), "question", nil)
	require.NoError(t, err)
	require.Equal(t, ModeGeneral, got.Mode)
	require.Zero(t, f.external.searchCalls)
}

func TestRetrieveSkipsExternalWhenUnhealthy(t *testing.T) {
	f := newContextFixture()
	f.external.enabled = true
	f.external.healthy = false

	got, err := f.svc.Retrieve(context.Background(), actorWith(), "question", nil)
	require.NoError(t, err)
	require.Equal(t, ModeGeneral, got.Mode)
	require.Zero(t, f.external.searchCalls)
}

func TestRetrieveDegradesWhenExternalSearchFails(t *testing.T) {
	f := newContextFixture()
	f.external.enabled = true
	f.external.healthy = true
	f.external.searchErr = errors.New("search engine down")

	got, err := f.svc.Retrieve(context.Background(), actorWith(), "question", nil)
	require.NoError(t, err, "external failure is a fallback, not an error")
	require.Equal(t, ModeGeneral, got.Mode)
}

func TestRetrieveDegradesWhenCrawlYieldsNothing(t *testing.T) {
	f := newContextFixture()
	f.external.enabled = true
	f.external.healthy = true
	f.external.searchResults = []websearch.SearchResult{{URL: "https://example.com/a"}}
	f.external.crawlResults = []websearch.CrawlResult{
		{URL: "https://example.com/a", Success: false, Error: "timeout"},
	}

	got, err := f.svc.Retrieve(context.Background(), actorWith(), "question", nil)
	require.NoError(t, err)
	require.Equal(t, ModeGeneral, got.Mode)
}

func TestRetrieveDegradesWhenInternalSearchErrors(t *testing.T) {
	f := newContextFixture()
	f.internal.err = errors.New("db down")

	got, err := f.svc.Retrieve(context.Background(), actorWith(), "question", []string{"f1"})
	require.NoError(t, err)
	require.Equal(t, ModeGeneral, got.Mode, "resolution errors degrade, never leak")
}

func TestSystemPromptsAreDisjointPerMode(t *testing.T) {
	require.NotEqual(t, internalSystemPrompt, externalSystemPrompt)
	require.NotEqual(t, internalSystemPrompt, generalSystemPrompt)
	require.NotEqual(t, externalSystemPrompt, generalSystemPrompt)
	// The internal instruction to answer from documents must not appear in
	// the external prompt, and vice versa.
	require.NotContains(t, externalSystemPrompt, "document excerpts provided")
	require.NotContains(t, internalSystemPrompt, "web search")
}

func TestAnswerPrefixesDisclaimer(t *testing.T) {
	f := newContextFixture()
	f.files.files["f1"] = &models.File{ID: "f1", Name: "roadmap.txt"}

	answer, got, err := f.svc.Answer(context.Background(), actorWith(), "question", []string{"f1"}, nil)
	require.NoError(t, err)
	require.Equal(t, ModeGeneral, got.Mode)
	require.Contains(t, answer, "roadmap.txt")
	require.Contains(t, answer, "model answer")
}

func TestBuildPromptIncludesHistory(t *testing.T) {
	f := newContextFixture()
	retrieved := &RetrievedContext{Mode: ModeGeneral, SystemPrompt: generalSystemPrompt, UserPrompt: "Question: follow-up"}

	system, user := f.svc.BuildPrompt(retrieved, []ChatMessage{
		{Role: "user", Content: "what is our refund policy"},
		{Role: "assistant", Content: "thirty days"},
	})
	require.Equal(t, generalSystemPrompt, system)
	require.Contains(t, user, "what is our refund policy")
	require.Contains(t, user, "thirty days")
	require.Contains(t, user, "Question: follow-up")
}

func TestAnswerRetriesInGeneralModeAfterCompletionFailure(t *testing.T) {
	f := newContextFixture()
	f.internal.results = []models.SimilarChunk{{ChunkID: "c1", FileID: "f1", FileName: "notes.txt", Content: "x"}}
	f.chat.err = errors.New("model overloaded")
	f.chat.failOnce = true

	answer, got, err := f.svc.Answer(context.Background(), actorWith(), "question", nil, nil)
	require.NoError(t, err)
	require.Equal(t, "model answer", answer[len(answer)-len("model answer"):])
	require.Equal(t, ModeGeneral, got.Mode)
	require.Equal(t, 2, f.chat.calls)
	require.Equal(t, generalSystemPrompt, f.chat.gotSystem[1])
}
