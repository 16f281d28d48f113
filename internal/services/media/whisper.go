package media

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/hsnksc/mp4totext-backend/internal/errors"
	"github.com/hsnksc/mp4totext-backend/internal/httpclient"
)

// WhisperProvider talks to a self-hosted whisper.cpp server. It is the
// default backend and cannot attribute speakers.
type WhisperProvider struct {
	baseURL    string
	httpClient *http.Client
}

// NewWhisperProvider creates a provider for the whisper server at baseURL.
func NewWhisperProvider(baseURL string) *WhisperProvider {
	return &WhisperProvider{
		baseURL:    baseURL,
		httpClient: httpclient.NewInstrumentedClient(10 * time.Minute),
	}
}

func (p *WhisperProvider) ID() string { return ProviderWhisper }

func (p *WhisperProvider) Capabilities() Capabilities {
	return Capabilities{Diarization: false}
}

type whisperSegment struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
	Text  string  `json:"text"`
}

type whisperResponse struct {
	Text     string           `json:"text"`
	Language string           `json:"language"`
	Duration float64          `json:"duration"`
	Segments []whisperSegment `json:"segments"`
}

// Transcribe sends the audio to the whisper server's inference endpoint.
func (p *WhisperProvider) Transcribe(ctx context.Context, req Request) (*Response, error) {
	fields := map[string]string{
		"response_format": "verbose_json",
	}
	if req.Language != "" {
		fields["language"] = req.Language
	}

	body, contentType, err := multipartAudio(req.AudioPath, fields)
	if err != nil {
		return nil, err
	}

	ctx = httpclient.WithProvider(ctx, ProviderWhisper)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/inference", body)
	if err != nil {
		return nil, errors.NewInternalError("failed to create whisper request", "WHISPER_REQUEST_ERROR", err)
	}
	httpReq.Header.Set("Content-Type", contentType)

	resp, err := p.httpClient.Do(httpReq)
	if err != nil {
		return nil, errors.NewProviderTransientError("failed to call whisper server", "WHISPER_API_ERROR", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.NewProviderTransientError("failed to read whisper response", "READ_RESPONSE_ERROR", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, classifyStatus(ProviderWhisper, resp.StatusCode, respBody)
	}

	var parsed whisperResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return nil, errors.NewProviderPermanentError("failed to parse whisper response", "PARSE_RESPONSE_ERROR", err)
	}

	out := &Response{
		Text:            parsed.Text,
		Language:        parsed.Language,
		DurationSeconds: parsed.Duration,
		Segments:        make([]Segment, 0, len(parsed.Segments)),
	}
	for _, s := range parsed.Segments {
		out.Segments = append(out.Segments, Segment{Start: s.Start, End: s.End, Text: s.Text})
	}
	return out, nil
}
