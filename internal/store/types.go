package store

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// JobStatus is the lifecycle state of a transcription job.
type JobStatus string

const (
	JobStatusPending    JobStatus = "pending"
	JobStatusProcessing JobStatus = "processing"
	JobStatusCompleted  JobStatus = "completed"
	JobStatusFailed     JobStatus = "failed"
)

// IsTerminal reports whether the status allows no further transitions.
func (s JobStatus) IsTerminal() bool {
	return s == JobStatusCompleted || s == JobStatusFailed
}

// EntryKind classifies a ledger entry.
type EntryKind string

const (
	EntryTranscription   EntryKind = "transcription"
	EntryEnhancement     EntryKind = "enhancement"
	EntryFeature         EntryKind = "feature"
	EntryPurchase        EntryKind = "purchase"
	EntryRefund          EntryKind = "refund"
	EntryAdminAdjustment EntryKind = "admin_adjustment"
	EntryBonus           EntryKind = "bonus"
)

// Segment is a time-aligned slice of the transcript.
type Segment struct {
	Start   float64 `json:"start"`
	End     float64 `json:"end"`
	Text    string  `json:"text"`
	Speaker string  `json:"speaker,omitempty"`
}

// EnhancementConfig controls the optional AI enhancement stage.
type EnhancementConfig struct {
	Enabled  bool   `json:"enabled"`
	Provider string `json:"provider,omitempty"`
	Model    string `json:"model,omitempty"`
}

// JobConfig is the user-supplied configuration for a job.
type JobConfig struct {
	// Provider is an explicit per-job provider override. Empty means the
	// selector decides based on operator flags.
	Provider    string            `json:"provider,omitempty"`
	Diarization bool              `json:"diarization"`
	MinSpeakers int               `json:"min_speakers,omitempty"`
	MaxSpeakers int               `json:"max_speakers,omitempty"`
	Language    string            `json:"language,omitempty"`
	Enhancement EnhancementConfig `json:"enhancement"`
	WebSearch   bool              `json:"web_search"`
}

// JobResult holds everything the pipeline produced for a completed job.
type JobResult struct {
	Text            string            `json:"text"`
	CleanedText     string            `json:"cleaned_text,omitempty"`
	EnhancedText    string            `json:"enhanced_text,omitempty"`
	Summary         string            `json:"summary,omitempty"`
	Segments        []Segment         `json:"segments,omitempty"`
	Language        string            `json:"language,omitempty"`
	SpeakerCount    int               `json:"speaker_count,omitempty"`
	DurationSeconds float64           `json:"duration_seconds"`
	Stages          map[string]string `json:"stages,omitempty"`
}

// JobError records why a job failed and how often it was retried.
type JobError struct {
	Message    string `json:"message"`
	Category   string `json:"category"`
	RetryCount int    `json:"retry_count"`
}

// Job is one user-submitted transcription request and its lifecycle record.
// It is mutated only by the orchestrator and is immutable once terminal,
// except for compensating ledger references stored in Metadata.
type Job struct {
	ID          uuid.UUID
	UserID      uuid.UUID
	BlobRef     string
	Config      JobConfig
	Status      JobStatus
	Progress    int
	CreatedAt   time.Time
	StartedAt   *time.Time
	CompletedAt *time.Time
	Result      *JobResult
	Error       *JobError
	Metadata    map[string]string
}

// LedgerEntry is one immutable row of the append-only credit log. Entries are
// the sole source of truth for a user's balance; BalanceAfter snapshots the
// balance immediately after the entry was applied.
type LedgerEntry struct {
	ID           uuid.UUID
	UserID       uuid.UUID
	Amount       decimal.Decimal
	Kind         EntryKind
	JobID        *uuid.UUID
	Metadata     map[string]string
	BalanceAfter decimal.Decimal
	CreatedAt    time.Time
}

// User carries the cached credit balance. Balance is only ever written by a
// ledger operation that appends an entry in the same transaction.
type User struct {
	ID        uuid.UUID
	Balance   decimal.Decimal
	CreatedAt time.Time
	UpdatedAt time.Time
}
