package enhance

import (
	"context"
	"encoding/json"

	"github.com/hsnksc/mp4totext-backend/internal/errors"
)

const groqDefaultModel = "llama-3.3-70b"

// GroqEnhancer implements TextEnhancer through Groq's OpenAI-compatible
// chat API.
type GroqEnhancer struct {
	apiKey  string
	baseURL string
	model   string
}

// NewGroqEnhancer creates a Groq-backed enhancer. model may be empty to use
// the default.
func NewGroqEnhancer(apiKey, model string) *GroqEnhancer {
	if model == "" {
		model = groqDefaultModel
	}
	return &GroqEnhancer{
		apiKey:  apiKey,
		baseURL: "https://api.groq.com/openai/v1",
		model:   model,
	}
}

func (e *GroqEnhancer) Enhance(ctx context.Context, req Request) (*Response, error) {
	model := req.Model
	if model == "" {
		model = e.model
	}

	userContent := req.Text
	if req.Context != "" {
		userContent += "\n\n<SEARCH_RESULTS>\n" + req.Context + "\n</SEARCH_RESULTS>"
	}

	content, err := callChat(ctx, e.baseURL, e.apiKey, "groq", model,
		BuildEnhancePrompt(req.Mode, req.Language), userContent)
	if err != nil {
		return nil, err
	}

	var out Response
	if err := json.Unmarshal([]byte(content), &out); err != nil {
		return nil, errors.NewEnhancementError("failed to parse enhancement response", "PARSE_RESPONSE_ERROR", err)
	}
	return &out, nil
}
