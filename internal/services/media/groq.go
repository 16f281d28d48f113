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

// GroqProvider transcribes through Groq's hosted whisper-large-v3 model.
// Fast and cheap, no speaker attribution.
type GroqProvider struct {
	apiKey     string
	httpClient *http.Client
	baseURL    string
}

// NewGroqProvider creates a new Groq transcription provider.
func NewGroqProvider(apiKey string) *GroqProvider {
	return &GroqProvider{
		apiKey:     apiKey,
		httpClient: httpclient.NewInstrumentedClient(3 * time.Minute),
		baseURL:    "https://api.groq.com/openai/v1",
	}
}

func (p *GroqProvider) ID() string { return ProviderGroq }

func (p *GroqProvider) Capabilities() Capabilities {
	return Capabilities{Diarization: false}
}

type groqSegment struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
	Text  string  `json:"text"`
}

type groqTranscription struct {
	Text     string        `json:"text"`
	Language string        `json:"language"`
	Duration float64       `json:"duration"`
	Segments []groqSegment `json:"segments"`
}

// Transcribe uploads the audio to Groq's transcription API with verbose
// output so segment timings come back.
func (p *GroqProvider) Transcribe(ctx context.Context, req Request) (*Response, error) {
	fields := map[string]string{
		"model":           "whisper-large-v3-turbo",
		"response_format": "verbose_json",
	}
	if req.Language != "" {
		fields["language"] = req.Language
	}

	body, contentType, err := multipartAudio(req.AudioPath, fields)
	if err != nil {
		return nil, err
	}

	ctx = httpclient.WithProvider(ctx, ProviderGroq)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/audio/transcriptions", body)
	if err != nil {
		return nil, errors.NewInternalError("failed to create Groq request", "GROQ_REQUEST_ERROR", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+p.apiKey)
	httpReq.Header.Set("Content-Type", contentType)

	resp, err := p.httpClient.Do(httpReq)
	if err != nil {
		return nil, errors.NewProviderTransientError("failed to call Groq transcription API", "GROQ_API_ERROR", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.NewProviderTransientError("failed to read Groq response", "READ_RESPONSE_ERROR", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, classifyStatus(ProviderGroq, resp.StatusCode, respBody)
	}

	var parsed groqTranscription
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return nil, errors.NewProviderPermanentError("failed to parse Groq response", "PARSE_RESPONSE_ERROR", err)
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
