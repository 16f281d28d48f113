package worker

import (
	"encoding/json"

	"github.com/hibiken/asynq"
)

// Task type constants
const (
	TypeProcessTranscription = "process:transcription"
	TypeCleanupBlobs         = "cleanup:blobs"
)

// ProcessTranscriptionPayload is the payload for transcription tasks
type ProcessTranscriptionPayload struct {
	JobID  string `json:"job_id"`
	UserID string `json:"user_id"`
}

// CleanupBlobsPayload is the payload for blob cleanup tasks
type CleanupBlobsPayload struct {
	JobID   string `json:"job_id"`
	BlobRef string `json:"blob_ref"`
}

// NewProcessTranscriptionTask creates a new transcription task. The job
// itself carries the configuration; the payload only identifies it.
func NewProcessTranscriptionTask(payload ProcessTranscriptionPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TypeProcessTranscription, data), nil
}

// NewCleanupBlobsTask creates a task that removes a job's media object after
// the retention window.
func NewCleanupBlobsTask(payload CleanupBlobsPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TypeCleanupBlobs, data), nil
}
