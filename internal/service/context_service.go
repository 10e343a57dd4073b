package service

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/berrihq/berri-api/internal/adapter/websearch"
	"github.com/berrihq/berri-api/internal/metrics"
	"github.com/berrihq/berri-api/internal/models"
	appErrors "github.com/berrihq/berri-api/pkg/errors"
)

// ContextMode identifies which trust boundary a prompt was assembled from.
// Modes are mutually exclusive; internal and external content never share a
// prompt.
type ContextMode string

const (
	ModeInternal ContextMode = "internal"
	ModeExternal ContextMode = "external"
	ModeGeneral  ContextMode = "general_knowledge"
)

const maxExternalExcerptRunes = 4000

// System prompt templates. One per mode, deliberately non-overlapping.
const (
	internalSystemPrompt = `You are an assistant answering questions about the user's own documents.
Answer ONLY from the document excerpts provided in the user message.
If the excerpts do not contain the answer, say so plainly.
Cite the document name when you use an excerpt. Never invent content that is not in the excerpts.`

	externalSystemPrompt = `You are an assistant answering from web search results.
The material provided is NOT from the user's documents; make that clear in your answer.
Cite the source URL for every claim you take from the material.
Never fabricate a citation or attribute content to a URL that did not contain it.`

	generalSystemPrompt = `You are a helpful assistant.
Answer from your general knowledge. No documents or web sources are available for this question.`
)

// ContextSource names one piece of supporting material in the prompt.
type ContextSource struct {
	Name string `json:"name"`
	URL  string `json:"url,omitempty"`
}

// RetrievedContext is the decision tree's output: a mode, the two prompt
// halves and the sources cited in them.
type RetrievedContext struct {
	Mode         ContextMode           `json:"mode"`
	SystemPrompt string                `json:"-"`
	UserPrompt   string                `json:"-"`
	Sources      []ContextSource       `json:"sources,omitempty"`
	Chunks       []models.SimilarChunk `json:"chunks,omitempty"`
	Disclaimer   string                `json:"disclaimer,omitempty"`
}

type internalSearcher interface {
	SearchSimilar(ctx context.Context, actor *models.Actor, query string, opts SearchOptions) ([]models.SimilarChunk, error)
}

type externalSearcher interface {
	Enabled() bool
	Healthy(ctx context.Context) bool
	Search(ctx context.Context, query string) ([]websearch.SearchResult, error)
	Crawl(ctx context.Context, urls []string) ([]websearch.CrawlResult, error)
}

type chatCompleter interface {
	Complete(ctx context.Context, systemPrompt, userPrompt string) (string, error)
}

// ContextService decides, per query, whether the assistant answers from
// internal documents, external web content or general knowledge. External
// content lives only in memory for the single request.
type ContextService struct {
	search   internalSearcher
	external externalSearcher
	files    fileGetter
	chat     chatCompleter
	logger   *zap.Logger
}

// NewContextService constructs the service. external may be nil when the
// deployment has no web-search tier.
func NewContextService(search internalSearcher, external externalSearcher, files fileGetter, chat chatCompleter, logger *zap.Logger) *ContextService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ContextService{search: search, external: external, files: files, chat: chat, logger: logger}
}

// Retrieve walks the decision tree and assembles the prompt for one query.
func (s *ContextService) Retrieve(ctx context.Context, actor *models.Actor, query string, fileIDs []string) (*RetrievedContext, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "query text is required")
	}

	var result *RetrievedContext
	if len(fileIDs) > 0 {
		result = s.retrieveRestricted(ctx, actor, query, fileIDs)
	} else {
		result = s.retrieveUnrestricted(ctx, actor, query)
	}
	metrics.ContextModeTotal.WithLabelValues(string(result.Mode)).Inc()
	return result, nil
}

// retrieveRestricted handles explicitly named files. A miss falls straight
// to general knowledge; the web is never consulted for a question the user
// tied to specific documents.
func (s *ContextService) retrieveRestricted(ctx context.Context, actor *models.Actor, query string, fileIDs []string) *RetrievedContext {
	chunks, err := s.search.SearchSimilar(ctx, actor, query, SearchOptions{FileIDs: fileIDs})
	if err != nil {
		s.logger.Warn("restricted document search failed, degrading to general knowledge", zap.Error(err))
		chunks = nil
	}
	if len(chunks) > 0 {
		return s.internalContext(query, chunks)
	}

	names := s.fileNames(ctx, actor.OrganizationID, fileIDs)
	disclaimer := fmt.Sprintf("No relevant content was found in the requested document(s): %s. Answering from general knowledge instead.", strings.Join(names, ", "))
	return s.generalContext(query, disclaimer)
}

// retrieveUnrestricted searches all accessible documents first, then falls
// back to the web tier when it is enabled and healthy, then to general
// knowledge.
func (s *ContextService) retrieveUnrestricted(ctx context.Context, actor *models.Actor, query string) *RetrievedContext {
	chunks, err := s.search.SearchSimilar(ctx, actor, query, SearchOptions{})
	if err != nil {
		s.logger.Warn("document search failed, trying fallback tiers", zap.Error(err))
		chunks = nil
	}
	if len(chunks) > 0 {
		return s.internalContext(query, chunks)
	}

	if s.external != nil && s.external.Enabled() && s.external.Healthy(ctx) {
		if result := s.retrieveExternal(ctx, query); result != nil {
			return result
		}
	}
	return s.generalContext(query, "")
}

// retrieveExternal runs search → crawl → compose. Any failure returns nil
// and the caller degrades to general knowledge.
func (s *ContextService) retrieveExternal(ctx context.Context, query string) *RetrievedContext {
	hits, err := s.external.Search(ctx, query)
	if err != nil || len(hits) == 0 {
		if err != nil {
			s.logger.Warn("external search failed", zap.Error(err))
		}
		return nil
	}

	urls := make([]string, 0, len(hits))
	titleByURL := make(map[string]string, len(hits))
	for _, hit := range hits {
		urls = append(urls, hit.URL)
		titleByURL[hit.URL] = hit.Title
	}

	crawled, err := s.external.Crawl(ctx, urls)
	if err != nil {
		s.logger.Warn("crawl failed", zap.Error(err))
		return nil
	}

	var b strings.Builder
	var sources []ContextSource
	for _, page := range crawled {
		if !page.Success || strings.TrimSpace(page.Content) == "" {
			continue
		}
		title := page.Title
		if title == "" {
			title = titleByURL[page.URL]
		}
		content := truncateRunes(strings.TrimSpace(page.Content), maxExternalExcerptRunes)
		fmt.Fprintf(&b, "Source: %s (%s)\n%s\n\n", title, page.URL, content)
		sources = append(sources, ContextSource{Name: title, URL: page.URL})
	}
	if len(sources) == 0 {
		return nil
	}

	userPrompt := fmt.Sprintf("Web material:\n\n%sQuestion: %s", b.String(), query)
	return &RetrievedContext{
		Mode:         ModeExternal,
		SystemPrompt: externalSystemPrompt,
		UserPrompt:   userPrompt,
		Sources:      sources,
	}
}

func (s *ContextService) internalContext(query string, chunks []models.SimilarChunk) *RetrievedContext {
	var b strings.Builder
	seen := make(map[string]struct{})
	var sources []ContextSource
	for _, chunk := range chunks {
		fmt.Fprintf(&b, "[%s]\n%s\n\n", chunk.FileName, chunk.Content)
		if _, dup := seen[chunk.FileID]; !dup {
			seen[chunk.FileID] = struct{}{}
			sources = append(sources, ContextSource{Name: chunk.FileName})
		}
	}
	userPrompt := fmt.Sprintf("Document excerpts:\n\n%sQuestion: %s", b.String(), query)
	return &RetrievedContext{
		Mode:         ModeInternal,
		SystemPrompt: internalSystemPrompt,
		UserPrompt:   userPrompt,
		Sources:      sources,
		Chunks:       chunks,
	}
}

func (s *ContextService) generalContext(query, disclaimer string) *RetrievedContext {
	return &RetrievedContext{
		Mode:         ModeGeneral,
		SystemPrompt: generalSystemPrompt,
		UserPrompt:   fmt.Sprintf("Question: %s", query),
		Disclaimer:   disclaimer,
	}
}

// fileNames resolves ids to display names for the general-mode disclaimer,
// falling back to the id itself when lookup fails.
func (s *ContextService) fileNames(ctx context.Context, orgID string, fileIDs []string) []string {
	names := make([]string, 0, len(fileIDs))
	for _, id := range fileIDs {
		if s.files != nil {
			if file, err := s.files.GetByID(ctx, orgID, id); err == nil {
				names = append(names, file.Name)
				continue
			}
		}
		names = append(names, id)
	}
	return names
}

// ChatMessage is one prior turn included in the prompt.
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// BuildPrompt folds prior conversation turns into the retrieved context's
// user prompt. The system prompt stays fixed by the mode.
func (s *ContextService) BuildPrompt(retrieved *RetrievedContext, history []ChatMessage) (string, string) {
	if len(history) == 0 {
		return retrieved.SystemPrompt, retrieved.UserPrompt
	}
	var b strings.Builder
	b.WriteString("Conversation so far:\n")
	for _, msg := range history {
		fmt.Fprintf(&b, "%s: %s\n", msg.Role, msg.Content)
	}
	b.WriteString("\n")
	b.WriteString(retrieved.UserPrompt)
	return retrieved.SystemPrompt, b.String()
}

// Answer runs the full ask: retrieve context, call the model, prefix the
// disclaimer if one applies. Prompt failures degrade to general knowledge
// rather than erroring at the user.
func (s *ContextService) Answer(ctx context.Context, actor *models.Actor, query string, fileIDs []string, history []ChatMessage) (string, *RetrievedContext, error) {
	retrieved, err := s.Retrieve(ctx, actor, query, fileIDs)
	if err != nil {
		return "", nil, err
	}

	systemPrompt, userPrompt := s.BuildPrompt(retrieved, history)
	answer, err := s.chat.Complete(ctx, systemPrompt, userPrompt)
	if err != nil && retrieved.Mode != ModeGeneral {
		s.logger.Warn("completion failed, retrying in general-knowledge mode",
			zap.String("mode", string(retrieved.Mode)), zap.Error(err))
		retrieved = s.generalContext(query, "The assistant could not use the retrieved material for this answer.")
		answer, err = s.chat.Complete(ctx, retrieved.SystemPrompt, retrieved.UserPrompt)
	}
	if err != nil {
		return "", nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "assistant is unavailable")
	}

	if retrieved.Disclaimer != "" {
		answer = retrieved.Disclaimer + "\n\n" + answer
	}
	return answer, retrieved, nil
}

func truncateRunes(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max])
}
