package enhance

import "context"

// ProviderType represents the type of AI enhancement provider
type ProviderType string

const (
	ProviderOpenAI ProviderType = "openai"
	ProviderGroq   ProviderType = "groq"
)

// Modes accepted by Enhance.
const (
	// ModeEnhance rewrites a transcript into polished text with a summary.
	ModeEnhance = "enhance"
	// ModeSynthesize folds web search context into a short background note.
	ModeSynthesize = "synthesize"
)

// Request is the input to a single enhancement call.
type Request struct {
	Text     string
	Language string
	Mode     string
	// Context is optional supporting material (web enrichment output).
	Context string
	Model   string
}

// Response is the enhancer's output.
type Response struct {
	EnhancedText string   `json:"enhanced_text"`
	Summary      string   `json:"summary,omitempty"`
	Improvements []string `json:"improvements,omitempty"`
}

// TextEnhancer defines the interface for AI text enhancement providers
type TextEnhancer interface {
	Enhance(ctx context.Context, req Request) (*Response, error)
}
