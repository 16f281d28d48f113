package media

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/hsnksc/mp4totext-backend/internal/errors"
	"github.com/hsnksc/mp4totext-backend/internal/httpclient"
)

// WhisperXProvider talks to a cloud WhisperX deployment that exposes
// transcription and diarization as separate endpoints. When diarization is
// requested, both calls run concurrently and the speaker turns are merged
// into the transcript segments by maximal temporal overlap.
type WhisperXProvider struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// NewWhisperXProvider creates a provider for the WhisperX service.
func NewWhisperXProvider(baseURL, apiKey string) *WhisperXProvider {
	return &WhisperXProvider{
		baseURL:    baseURL,
		apiKey:     apiKey,
		httpClient: httpclient.NewInstrumentedClient(10 * time.Minute),
	}
}

func (p *WhisperXProvider) ID() string { return ProviderWhisperX }

func (p *WhisperXProvider) Capabilities() Capabilities {
	return Capabilities{Diarization: true}
}

type whisperxTranscription struct {
	Text     string    `json:"text"`
	Language string    `json:"language"`
	Duration float64   `json:"duration"`
	Segments []Segment `json:"segments"`
}

type whisperxDiarization struct {
	Turns       []SpeakerTurn `json:"turns"`
	NumSpeakers int           `json:"num_speakers"`
}

// Transcribe runs the transcription call, plus a concurrent diarization call
// when the job asked for speakers.
func (p *WhisperXProvider) Transcribe(ctx context.Context, req Request) (*Response, error) {
	var transcript whisperxTranscription
	var diarization whisperxDiarization

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		fields := map[string]string{}
		if req.Language != "" {
			fields["language"] = req.Language
		}
		return p.post(gctx, "/v1/transcribe", req.AudioPath, fields, &transcript)
	})

	if req.Diarization {
		g.Go(func() error {
			fields := map[string]string{}
			if req.MinSpeakers > 0 {
				fields["min_speakers"] = strconv.Itoa(req.MinSpeakers)
			}
			if req.MaxSpeakers > 0 {
				fields["max_speakers"] = strconv.Itoa(req.MaxSpeakers)
			}
			return p.post(gctx, "/v1/diarize", req.AudioPath, fields, &diarization)
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	segments := transcript.Segments
	speakerCount := 0
	if req.Diarization {
		segments = MergeSpeakers(segments, diarization.Turns)
		speakerCount = diarization.NumSpeakers
		if speakerCount == 0 {
			speakerCount = CountSpeakers(segments)
		}
	}

	return &Response{
		Text:            transcript.Text,
		Language:        transcript.Language,
		DurationSeconds: transcript.Duration,
		Segments:        segments,
		SpeakerCount:    speakerCount,
	}, nil
}

func (p *WhisperXProvider) post(ctx context.Context, path, audioPath string, fields map[string]string, out any) error {
	body, contentType, err := multipartAudio(audioPath, fields)
	if err != nil {
		return err
	}

	ctx = httpclient.WithProvider(ctx, ProviderWhisperX)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+path, body)
	if err != nil {
		return errors.NewInternalError("failed to create WhisperX request", "WHISPERX_REQUEST_ERROR", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+p.apiKey)
	httpReq.Header.Set("Content-Type", contentType)

	resp, err := p.httpClient.Do(httpReq)
	if err != nil {
		return errors.NewProviderTransientError("failed to call WhisperX service", "WHISPERX_API_ERROR", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return errors.NewProviderTransientError("failed to read WhisperX response", "READ_RESPONSE_ERROR", err)
	}
	if resp.StatusCode != http.StatusOK {
		return classifyStatus(ProviderWhisperX, resp.StatusCode, respBody)
	}

	if err := json.Unmarshal(respBody, out); err != nil {
		return errors.NewProviderPermanentError("failed to parse WhisperX response", "PARSE_RESPONSE_ERROR", err)
	}
	return nil
}
