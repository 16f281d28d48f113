package enhance

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/hsnksc/mp4totext-backend/internal/errors"
	"github.com/hsnksc/mp4totext-backend/internal/httpclient"
	"github.com/hsnksc/mp4totext-backend/internal/metrics"
)

type chatRequest struct {
	Model          string          `json:"model"`
	Messages       []chatMessage   `json:"messages"`
	ResponseFormat *responseFormat `json:"response_format,omitempty"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type responseFormat struct {
	Type string `json:"type"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// callChat posts a chat-completions request to an OpenAI-compatible endpoint
// in JSON mode and returns the first choice's content.
func callChat(ctx context.Context, baseURL, apiKey, provider, model, systemPrompt, userContent string) (string, error) {
	startTime := time.Now()
	defer func() {
		duration := time.Since(startTime).Seconds()
		attrs := []attribute.KeyValue{attribute.String("provider", provider)}
		if metrics.AIEnhancementDuration != nil {
			metrics.AIEnhancementDuration.Record(ctx, duration, metric.WithAttributes(attrs...))
		}
		if metrics.ExternalAPICallsTotal != nil {
			metrics.ExternalAPICallsTotal.Add(ctx, 1, metric.WithAttributes(attrs...))
		}
	}()

	req := chatRequest{
		Model: model,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: userContent},
		},
		ResponseFormat: &responseFormat{Type: "json_object"},
	}

	body, err := json.Marshal(req)
	if err != nil {
		return "", errors.NewInternalError("failed to marshal chat request", "CHAT_MARSHAL_ERROR", err)
	}

	httpReq, err := http.NewRequestWithContext(httpclient.WithProvider(ctx, provider),
		http.MethodPost, baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", errors.NewInternalError("failed to create chat request", "CHAT_REQUEST_ERROR", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+apiKey)
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := httpclient.InstrumentedClient.Do(httpReq)
	if err != nil {
		return "", errors.NewEnhancementError("failed to call chat completions API", "CHAT_API_ERROR", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", errors.NewEnhancementError("failed to read chat response", "READ_RESPONSE_ERROR", err)
	}
	if resp.StatusCode == http.StatusTooManyRequests {
		return "", errors.NewRateLimitError(string(respBody), "CHAT_RATE_LIMITED", "Wait for the provider rate limit to reset.")
	}
	if resp.StatusCode >= 400 {
		return "", errors.NewEnhancementError("chat completions API error: "+string(respBody), "CHAT_API_HTTP_ERROR", nil)
	}

	var parsed chatResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return "", errors.NewEnhancementError("failed to parse chat response", "PARSE_RESPONSE_ERROR", err)
	}
	if len(parsed.Choices) == 0 {
		return "", errors.NewEnhancementError("no choices in chat response", "CHAT_EMPTY_RESPONSE", nil)
	}
	return parsed.Choices[0].Message.Content, nil
}
