package enhance

import (
	"context"
	"strings"

	"github.com/hsnksc/mp4totext-backend/internal/errors"
	"github.com/hsnksc/mp4totext-backend/internal/services/search"
)

const (
	maxQueryWords    = 12
	maxSearchResults = 5
)

// WebEnrichStage searches the web for material related to the transcript and
// synthesizes it into background context for the enhance stage. Failures
// disable enrichment for this job only.
type WebEnrichStage struct {
	searcher search.Searcher
	enhancer TextEnhancer
}

// NewWebEnrichStage creates the web enrichment stage.
func NewWebEnrichStage(searcher search.Searcher, enhancer TextEnhancer) *WebEnrichStage {
	return &WebEnrichStage{
		searcher: searcher,
		enhancer: enhancer,
	}
}

func (s *WebEnrichStage) Name() string { return StageWebEnrich }

func (s *WebEnrichStage) Run(ctx context.Context, d *Draft) error {
	query := DeriveQuery(d.Best())
	if query == "" {
		return errors.NewEnhancementError("transcript too short to derive a search query", "ENRICH_EMPTY_QUERY", nil)
	}

	results, err := s.searcher.Search(ctx, query, maxSearchResults)
	if err != nil {
		return errors.NewEnhancementError("web search failed", "ENRICH_SEARCH_FAILED", err)
	}
	if len(results) == 0 {
		return errors.NewEnhancementError("web search returned no results", "ENRICH_NO_RESULTS", nil)
	}

	resp, err := s.enhancer.Enhance(ctx, Request{
		Text:     d.Best(),
		Language: d.Language,
		Mode:     ModeSynthesize,
		Context:  search.FormatResults(results),
	})
	if err != nil {
		return errors.NewEnhancementError("failed to synthesize search results", "ENRICH_SYNTHESIS_FAILED", err)
	}

	d.Context = resp.EnhancedText
	return nil
}

// DeriveQuery builds a short search query from the opening of the transcript.
func DeriveQuery(text string) string {
	words := strings.Fields(text)
	if len(words) == 0 {
		return ""
	}
	if len(words) > maxQueryWords {
		words = words[:maxQueryWords]
	}
	query := strings.Join(words, " ")
	return strings.Trim(query, ".,!?;: ")
}
