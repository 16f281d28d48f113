package enhance

import (
	"context"

	"github.com/hsnksc/mp4totext-backend/internal/errors"
)

// AIStage runs the model-backed enhancement pass over the best available
// text, folding in any web-enrichment context gathered earlier in the chain.
type AIStage struct {
	enhancer TextEnhancer
	model    string
}

// NewAIStage creates the AI enhancement stage.
func NewAIStage(enhancer TextEnhancer, model string) *AIStage {
	return &AIStage{enhancer: enhancer, model: model}
}

func (s *AIStage) Name() string { return StageEnhance }

func (s *AIStage) Run(ctx context.Context, d *Draft) error {
	resp, err := s.enhancer.Enhance(ctx, Request{
		Text:     d.Best(),
		Language: d.Language,
		Mode:     ModeEnhance,
		Context:  d.Context,
		Model:    s.model,
	})
	if err != nil {
		return errors.NewEnhancementError("AI enhancement failed", "ENHANCE_STAGE_FAILED", err)
	}
	if resp.EnhancedText == "" {
		return errors.NewEnhancementError("AI enhancement returned empty text", "ENHANCE_EMPTY_RESULT", nil)
	}

	d.Enhanced = resp.EnhancedText
	d.Summary = resp.Summary
	d.Improvements = resp.Improvements
	return nil
}
