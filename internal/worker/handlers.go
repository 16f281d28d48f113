package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"

	"github.com/hsnksc/mp4totext-backend/internal/pipeline"
)

// BlobCleaner removes media objects once a job no longer needs them.
type BlobCleaner interface {
	Delete(ctx context.Context, blobRef string) error
}

// TranscriptionProcessor adapts the pipeline orchestrator to asynq handlers.
type TranscriptionProcessor struct {
	orchestrator *pipeline.Orchestrator
	blobs        BlobCleaner
	metrics      *WorkerMetrics
}

func NewTranscriptionProcessor(orchestrator *pipeline.Orchestrator, blobs BlobCleaner, metrics *WorkerMetrics) *TranscriptionProcessor {
	return &TranscriptionProcessor{
		orchestrator: orchestrator,
		blobs:        blobs,
		metrics:      metrics,
	}
}

// Handlers returns the task-type to handler map for Start.
func (p *TranscriptionProcessor) Handlers() map[string]asynq.HandlerFunc {
	return map[string]asynq.HandlerFunc{
		TypeProcessTranscription: p.HandleProcessTranscription,
		TypeCleanupBlobs:         p.HandleCleanupBlobs,
	}
}

// HandleProcessTranscription runs one job through the orchestrator. The
// orchestrator returns an error only when the job should be redelivered;
// terminal failures are persisted on the job and absorbed here.
func (p *TranscriptionProcessor) HandleProcessTranscription(ctx context.Context, t *asynq.Task) error {
	var payload ProcessTranscriptionPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("failed to unmarshal payload: %w", asynq.SkipRetry)
	}

	jobID, err := uuid.Parse(payload.JobID)
	if err != nil {
		return fmt.Errorf("invalid job id %q: %w", payload.JobID, asynq.SkipRetry)
	}

	retryCount, _ := asynq.GetRetryCount(ctx)
	slog.Info("Processing transcription", "job_id", jobID, "retry_count", retryCount)

	started := time.Now()
	err = p.orchestrator.Run(ctx, jobID, retryCount)

	status := "ok"
	if err != nil {
		status = "requeued"
	}
	p.metrics.RecordJob(ctx, t.Type(), status, time.Since(started).Seconds())

	return err
}

// HandleCleanupBlobs deletes a job's media object from storage.
func (p *TranscriptionProcessor) HandleCleanupBlobs(ctx context.Context, t *asynq.Task) error {
	var payload CleanupBlobsPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("failed to unmarshal payload: %w", asynq.SkipRetry)
	}

	if err := p.blobs.Delete(ctx, payload.BlobRef); err != nil {
		return fmt.Errorf("failed to delete blob %s: %w", payload.BlobRef, err)
	}

	slog.Info("Cleaned up media object", "job_id", payload.JobID, "blob_ref", payload.BlobRef)
	return nil
}
