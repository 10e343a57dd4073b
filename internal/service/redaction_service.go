package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"regexp"
	"sort"

	"go.uber.org/zap"

	"github.com/berrihq/berri-api/internal/authz"
	"github.com/berrihq/berri-api/internal/models"
	appErrors "github.com/berrihq/berri-api/pkg/errors"
)

type redactionStore interface {
	Create(ctx context.Context, red *models.Redaction) error
	ListByFile(ctx context.Context, fileID string) ([]models.Redaction, error)
	Delete(ctx context.Context, fileID, redactionID string) error
}

type processingReader interface {
	GetByFileID(ctx context.Context, orgID, fileID string) (*models.DocumentProcessing, error)
	GetRawText(ctx context.Context, orgID, fileID string) (*models.RawText, error)
	SetStatus(ctx context.Context, fileID string, from []models.ProcessingStatus, to models.ProcessingStatus) error
}

type accessAsserter interface {
	AssertAccess(ctx context.Context, actor *models.Actor, resourceType models.ResourceType, resourceID string, action authz.Action) error
}

// PII suggestion patterns. Offsets they produce are suggestions only and
// never become redactions without a human persisting them.
var (
	emailPattern      = regexp.MustCompile(`[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}`)
	phonePattern      = regexp.MustCompile(`\+?\d[\d\s\-().]{7,14}\d`)
	nationalIDPattern = regexp.MustCompile(`\b\d{3}-\d{2}-\d{4}\b`)
	cardPattern       = regexp.MustCompile(`\b(?:\d[ \-]?){13,19}\b`)
)

// RedactionService manages redaction spans and computes AI-safe text.
type RedactionService struct {
	redactions redactionStore
	docs       processingReader
	perms      accessAsserter
	logger     *zap.Logger
}

// NewRedactionService constructs the service.
func NewRedactionService(redactions redactionStore, docs processingReader, perms accessAsserter, logger *zap.Logger) *RedactionService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RedactionService{redactions: redactions, docs: docs, perms: perms, logger: logger}
}

// ApplyRedactions removes every span from text. Overlapping or adjacent
// spans are merged first, then the disjoint set is spliced from the highest
// start offset downward so earlier removals never shift later offsets; what
// disappears is exactly the union of the input spans. Invalid spans are
// skipped with a warning, not fatal. Removal is destructive: no placeholder
// remains.
func (s *RedactionService) ApplyRedactions(text string, spans []models.Redaction) string {
	if len(spans) == 0 {
		return text
	}
	runes := []rune(text)

	valid := make([]models.Redaction, 0, len(spans))
	for _, span := range spans {
		if span.StartOffset < 0 || span.EndOffset > len(runes) || span.StartOffset >= span.EndOffset {
			s.logger.Warn("skipping redaction with invalid bounds",
				zap.String("redaction_id", span.ID),
				zap.Int("start", span.StartOffset),
				zap.Int("end", span.EndOffset),
				zap.Int("text_len", len(runes)))
			continue
		}
		valid = append(valid, span)
	}

	// MergeSpans returns ascending disjoint spans; splicing in reverse
	// keeps every remaining offset stable.
	merged := MergeSpans(valid)
	for i := len(merged) - 1; i >= 0; i-- {
		runes = append(runes[:merged[i].StartOffset], runes[merged[i].EndOffset:]...)
	}
	return string(runes)
}

// BuildPreview renders text with [REDACTED] markers at each span's original
// position. This is an admin review aid; markers never reach the AI path.
func (s *RedactionService) BuildPreview(text string, spans []models.Redaction) string {
	if len(spans) == 0 {
		return text
	}
	runes := []rune(text)
	marker := []rune("[REDACTED]")

	sorted := make([]models.Redaction, len(spans))
	copy(sorted, spans)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].StartOffset > sorted[j].StartOffset })

	for _, span := range sorted {
		if span.StartOffset < 0 || span.EndOffset > len(runes) || span.StartOffset >= span.EndOffset {
			continue
		}
		tail := append([]rune{}, runes[span.EndOffset:]...)
		runes = append(append(runes[:span.StartOffset], marker...), tail...)
	}
	return string(runes)
}

// MergeSpans collapses overlapping or adjacent spans, keeping the most
// specific redaction type of the merged group.
func MergeSpans(spans []models.Redaction) []models.Redaction {
	if len(spans) <= 1 {
		return spans
	}
	sorted := make([]models.Redaction, len(spans))
	copy(sorted, spans)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].StartOffset < sorted[j].StartOffset })

	merged := []models.Redaction{sorted[0]}
	for _, span := range sorted[1:] {
		last := &merged[len(merged)-1]
		if span.StartOffset <= last.EndOffset {
			if span.EndOffset > last.EndOffset {
				last.EndOffset = span.EndOffset
			}
			if typeSpecificity(span.Type) > typeSpecificity(last.Type) {
				last.Type = span.Type
			}
			continue
		}
		merged = append(merged, span)
	}
	return merged
}

// typeSpecificity ranks semantic PII types above generic manual spans.
func typeSpecificity(t models.RedactionType) int {
	if t == models.RedactionManual {
		return 0
	}
	return 1
}

// SuggestPII scans text for PII-like patterns. The result is advisory.
func (s *RedactionService) SuggestPII(text string) []models.RedactionSuggestion {
	runes := []rune(text)
	var suggestions []models.RedactionSuggestion

	detect := func(re *regexp.Regexp, kind models.RedactionType) {
		for _, loc := range re.FindAllStringIndex(text, -1) {
			start := len([]rune(text[:loc[0]]))
			end := len([]rune(text[:loc[1]]))
			suggestions = append(suggestions, models.RedactionSuggestion{
				Type:        kind,
				StartOffset: start,
				EndOffset:   end,
				Excerpt:     string(runes[start:end]),
			})
		}
	}

	detect(emailPattern, models.RedactionEmail)
	detect(nationalIDPattern, models.RedactionNationalID)
	detect(cardPattern, models.RedactionCardNumber)
	detect(phonePattern, models.RedactionPhone)

	sort.SliceStable(suggestions, func(i, j int) bool { return suggestions[i].StartOffset < suggestions[j].StartOffset })
	return dedupeSuggestions(suggestions)
}

// dedupeSuggestions drops suggestions fully contained in an earlier one —
// card and phone patterns frequently shadow each other.
func dedupeSuggestions(suggestions []models.RedactionSuggestion) []models.RedactionSuggestion {
	var out []models.RedactionSuggestion
	for _, s := range suggestions {
		contained := false
		for _, kept := range out {
			if s.StartOffset >= kept.StartOffset && s.EndOffset <= kept.EndOffset {
				contained = true
				break
			}
		}
		if !contained {
			out = append(out, s)
		}
	}
	return out
}

// AddRedaction persists a span on an uncommitted document. A span that
// overlaps or touches existing spans absorbs them: the stored set stays
// disjoint, so applying spans independently always removes exactly their
// union.
func (s *RedactionService) AddRedaction(ctx context.Context, actor *models.Actor, fileID string, red *models.Redaction) (*models.Redaction, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	if err := s.perms.AssertAccess(ctx, actor, models.ResourceFile, fileID, authz.ActionRedact); err != nil {
		return nil, err
	}

	rec, err := s.docs.GetByFileID(ctx, actor.OrganizationID, fileID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "no processing record for file")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load processing record")
	}
	if rec.CommittedAt != nil {
		return nil, appErrors.Clone(appErrors.ErrAlreadyCommitted, "redactions are immutable after commit")
	}

	raw, err := s.docs.GetRawText(ctx, actor.OrganizationID, fileID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrInvalidState, "no raw text to redact; run extraction first")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load raw text")
	}

	textLen := len([]rune(raw.Content))
	if red.StartOffset < 0 || red.EndOffset > textLen || red.StartOffset >= red.EndOffset {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("invalid redaction offsets [%d,%d) for %d chars", red.StartOffset, red.EndOffset, textLen))
	}
	if red.Type == "" {
		red.Type = models.RedactionManual
	}
	red.FileID = fileID
	red.CreatedBy = actor.UserID

	existing, err := s.redactions.ListByFile(ctx, fileID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list redactions")
	}
	var absorbed []models.Redaction
	group := []models.Redaction{*red}
	for _, span := range existing {
		if span.StartOffset <= red.EndOffset && span.EndOffset >= red.StartOffset {
			absorbed = append(absorbed, span)
			group = append(group, span)
		}
	}
	if len(absorbed) > 0 {
		// Every member of group touches the new span, so the merge yields
		// one contiguous span covering the union.
		merged := MergeSpans(group)[0]
		red.ID = ""
		red.StartOffset = merged.StartOffset
		red.EndOffset = merged.EndOffset
		red.Type = merged.Type
		for _, span := range absorbed {
			if err := s.redactions.Delete(ctx, fileID, span.ID); err != nil && !errors.Is(err, sql.ErrNoRows) {
				return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to absorb overlapping redaction")
			}
		}
	}

	if err := s.redactions.Create(ctx, red); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store redaction")
	}

	// First redaction moves the document into redaction_in_progress. A
	// no-op if it already advanced.
	_ = s.docs.SetStatus(ctx, fileID, []models.ProcessingStatus{models.StatusPendingRedaction}, models.StatusRedactionInProgress)
	return red, nil
}

// ListRedactions returns the spans on a file.
func (s *RedactionService) ListRedactions(ctx context.Context, actor *models.Actor, fileID string) ([]models.Redaction, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	if err := s.perms.AssertAccess(ctx, actor, models.ResourceFile, fileID, authz.ActionRedact); err != nil {
		return nil, err
	}
	spans, err := s.redactions.ListByFile(ctx, fileID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list redactions")
	}
	return spans, nil
}

// DeleteRedaction removes an uncommitted span.
func (s *RedactionService) DeleteRedaction(ctx context.Context, actor *models.Actor, fileID, redactionID string) error {
	if actor == nil {
		return appErrors.ErrUnauthorized
	}
	if err := s.perms.AssertAccess(ctx, actor, models.ResourceFile, fileID, authz.ActionRedact); err != nil {
		return err
	}
	rec, err := s.docs.GetByFileID(ctx, actor.OrganizationID, fileID)
	if err == nil && rec.CommittedAt != nil {
		return appErrors.Clone(appErrors.ErrAlreadyCommitted, "redactions are immutable after commit")
	}
	if err := s.redactions.Delete(ctx, fileID, redactionID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "redaction not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete redaction")
	}
	return nil
}

// Suggest scans the raw text for PII candidates. Editors may request
// suggestions, but the excerpts expose raw content, so the admin-level
// raw-text gate applies.
func (s *RedactionService) Suggest(ctx context.Context, actor *models.Actor, fileID string) ([]models.RedactionSuggestion, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	if err := s.perms.AssertAccess(ctx, actor, models.ResourceFile, fileID, authz.ActionReadRawText); err != nil {
		return nil, err
	}
	raw, err := s.docs.GetRawText(ctx, actor.OrganizationID, fileID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "raw text unavailable")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load raw text")
	}
	return s.SuggestPII(raw.Content), nil
}

// Preview renders the admin-only marker view of the raw text.
func (s *RedactionService) Preview(ctx context.Context, actor *models.Actor, fileID string) (string, error) {
	if actor == nil {
		return "", appErrors.ErrUnauthorized
	}
	if err := s.perms.AssertAccess(ctx, actor, models.ResourceFile, fileID, authz.ActionReadRawText); err != nil {
		return "", err
	}
	raw, err := s.docs.GetRawText(ctx, actor.OrganizationID, fileID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", appErrors.Clone(appErrors.ErrNotFound, "raw text unavailable")
		}
		return "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load raw text")
	}
	spans, err := s.redactions.ListByFile(ctx, fileID)
	if err != nil {
		return "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list redactions")
	}
	return s.BuildPreview(raw.Content, spans), nil
}
