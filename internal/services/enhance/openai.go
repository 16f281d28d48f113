package enhance

import (
	"context"
	"encoding/json"

	"github.com/hsnksc/mp4totext-backend/internal/errors"
)

const openAIDefaultModel = "gpt-4o-mini"

// OpenAIEnhancer implements TextEnhancer through OpenAI chat completions.
type OpenAIEnhancer struct {
	apiKey  string
	baseURL string
	model   string
}

// NewOpenAIEnhancer creates an OpenAI-backed enhancer. model may be empty to
// use the default.
func NewOpenAIEnhancer(apiKey, model string) *OpenAIEnhancer {
	if model == "" {
		model = openAIDefaultModel
	}
	return &OpenAIEnhancer{
		apiKey:  apiKey,
		baseURL: "https://api.openai.com/v1",
		model:   model,
	}
}

func (e *OpenAIEnhancer) Enhance(ctx context.Context, req Request) (*Response, error) {
	model := req.Model
	if model == "" {
		model = e.model
	}

	userContent := req.Text
	if req.Context != "" {
		userContent += "\n\n<SEARCH_RESULTS>\n" + req.Context + "\n</SEARCH_RESULTS>"
	}

	content, err := callChat(ctx, e.baseURL, e.apiKey, "openai", model,
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
