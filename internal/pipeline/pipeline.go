package pipeline

import (
	"context"

	"github.com/google/uuid"

	"github.com/hsnksc/mp4totext-backend/internal/services/media"
)

// ProgressUpdate is a realtime notification about a job's lifecycle.
type ProgressUpdate struct {
	JobID    string `json:"job_id"`
	Status   string `json:"status"`
	Progress int    `json:"progress"`
	Message  string `json:"message"`
}

// Notifier pushes progress updates to listening clients. Delivery is
// best-effort; a failed publish never affects the job.
type Notifier interface {
	Publish(ctx context.Context, userID uuid.UUID, update ProgressUpdate)
}

// BlobStore fetches and removes the media objects jobs reference.
type BlobStore interface {
	// Fetch downloads the object to a local file and returns its path.
	Fetch(ctx context.Context, blobRef string) (string, error)
	Delete(ctx context.Context, blobRef string) error
}

// BlobJanitor schedules removal of a job's media object once the job is
// terminal with no retry pending. When no janitor is wired the orchestrator
// deletes the blob inline.
type BlobJanitor interface {
	ScheduleCleanup(ctx context.Context, jobID uuid.UUID, blobRef string) error
}

// FlagSource supplies the operator flags snapshot a job runs under.
type FlagSource interface {
	Current(ctx context.Context) media.OperatorFlags
}
