package media

import (
	"context"
)

// Provider identifiers registered by default.
const (
	ProviderWhisper  = "whisper"  // local whisper.cpp server, no diarization
	ProviderGroq     = "groq"     // Groq-hosted whisper-large-v3, no diarization
	ProviderWhisperX = "whisperx" // cloud WhisperX service with diarization
)

// Request holds everything a provider needs to transcribe one file.
type Request struct {
	AudioPath   string
	Language    string
	Diarization bool
	MinSpeakers int
	MaxSpeakers int
}

// Segment is a time-aligned transcript slice as returned by a provider.
type Segment struct {
	Start   float64 `json:"start"`
	End     float64 `json:"end"`
	Text    string  `json:"text"`
	Speaker string  `json:"speaker,omitempty"`
}

// Response is the provider's transcription result.
type Response struct {
	Text            string
	Language        string
	DurationSeconds float64
	Segments        []Segment
	SpeakerCount    int
}

// Capabilities describes what a provider can do. The selector uses this to
// reject invalid provider/feature combinations before the expensive call.
type Capabilities struct {
	Diarization bool
}

// Provider is the contract every transcription backend implements. Transient
// failures (network, 5xx) and permanent ones (invalid input, quota) are
// signalled through the errors.AppError taxonomy.
type Provider interface {
	ID() string
	Capabilities() Capabilities
	Transcribe(ctx context.Context, req Request) (*Response, error)
}
