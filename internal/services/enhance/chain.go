package enhance

import (
	"context"
	"log/slog"
)

// Stage names recorded in Draft.Stages.
const (
	StageClean     = "clean"
	StageWebEnrich = "web_enrich"
	StageEnhance   = "ai_enhance"
)

// StageOK marks a stage that completed in Draft.Stages; any other value is
// the failure reason.
const StageOK = "ok"

// Draft carries the best-available text through the post-processing chain.
type Draft struct {
	Raw          string
	Cleaned      string
	Enhanced     string
	Summary      string
	Improvements []string
	// Context holds web-enrichment output consumed by the enhance stage.
	Context  string
	Language string
	Stages   map[string]string
}

// NewDraft starts a chain run from a raw transcript.
func NewDraft(raw, language string) *Draft {
	return &Draft{
		Raw:      raw,
		Language: language,
		Stages:   make(map[string]string),
	}
}

// Best returns the most-enhanced text available: enhanced, then cleaned,
// then raw.
func (d *Draft) Best() string {
	if d.Enhanced != "" {
		return d.Enhanced
	}
	if d.Cleaned != "" {
		return d.Cleaned
	}
	return d.Raw
}

// Succeeded reports whether the named stage ran and completed.
func (d *Draft) Succeeded(stage string) bool {
	return d.Stages[stage] == StageOK
}

// Stage is one optional, independently-failable post-processing step.
type Stage interface {
	Name() string
	Run(ctx context.Context, d *Draft) error
}

// Chain runs stages in order. A failing stage is recorded on the draft and
// logged; it never stops the chain or the job.
type Chain struct {
	stages []Stage
}

// NewChain builds a chain from the given stages.
func NewChain(stages ...Stage) *Chain {
	return &Chain{stages: stages}
}

// Run executes every stage against the draft.
func (c *Chain) Run(ctx context.Context, d *Draft) {
	for _, stage := range c.stages {
		if err := stage.Run(ctx, d); err != nil {
			d.Stages[stage.Name()] = err.Error()
			slog.Warn("post-processing stage failed, continuing with best available text",
				"stage", stage.Name(), "error", err)
			continue
		}
		d.Stages[stage.Name()] = StageOK
	}
}
