package pipeline

import (
	"context"
	stderrors "errors"
	"fmt"
	"log/slog"
	"os"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/hsnksc/mp4totext-backend/internal/errors"
	"github.com/hsnksc/mp4totext-backend/internal/ledger"
	"github.com/hsnksc/mp4totext-backend/internal/metrics"
	"github.com/hsnksc/mp4totext-backend/internal/pricing"
	"github.com/hsnksc/mp4totext-backend/internal/services/enhance"
	"github.com/hsnksc/mp4totext-backend/internal/services/media"
	"github.com/hsnksc/mp4totext-backend/internal/services/search"
	"github.com/hsnksc/mp4totext-backend/internal/services/storage"
	"github.com/hsnksc/mp4totext-backend/internal/store"
)

// Orchestrator drives a job through its full lifecycle: select provider,
// fetch media, transcribe, bill, post-process, complete. It is the only
// component that writes job state, and it writes the ledger only through the
// ledger service.
type Orchestrator struct {
	store    store.Store
	ledger   *ledger.Service
	pricing  *pricing.Calculator
	registry *media.Registry
	enhancer enhance.TextEnhancer
	searcher search.Searcher
	blobs    BlobStore
	janitor  BlobJanitor
	notifier Notifier
	flags    FlagSource

	// softTimeout bounds wall-clock processing time; it is checked between
	// pipeline phases, so a job can only exceed it by one phase.
	softTimeout time.Duration
}

// Options carries the orchestrator's collaborators.
type Options struct {
	Store       store.Store
	Ledger      *ledger.Service
	Pricing     *pricing.Calculator
	Registry    *media.Registry
	Enhancer    enhance.TextEnhancer
	Searcher    search.Searcher
	Blobs       BlobStore
	Janitor     BlobJanitor
	Notifier    Notifier
	Flags       FlagSource
	SoftTimeout time.Duration
}

// NewOrchestrator creates a job orchestrator.
func NewOrchestrator(opts Options) *Orchestrator {
	if opts.SoftTimeout <= 0 {
		opts.SoftTimeout = 10 * time.Minute
	}
	return &Orchestrator{
		store:       opts.Store,
		ledger:      opts.Ledger,
		pricing:     opts.Pricing,
		registry:    opts.Registry,
		enhancer:    opts.Enhancer,
		searcher:    opts.Searcher,
		blobs:       opts.Blobs,
		janitor:     opts.Janitor,
		notifier:    opts.Notifier,
		flags:       opts.Flags,
		softTimeout: opts.SoftTimeout,
	}
}

// Run processes one job to a terminal state, or returns a retryable error so
// the queue can redeliver it. retryCount is how many times this job has
// already been retried; at most one retry is ever attempted.
func (o *Orchestrator) Run(ctx context.Context, jobID uuid.UUID, retryCount int) error {
	job, err := o.store.GetJob(ctx, jobID)
	if err != nil {
		return fmt.Errorf("failed to load job %s: %w", jobID, err)
	}
	if job.Status.IsTerminal() {
		slog.Info("Job already terminal, skipping", "job_id", jobID, "status", job.Status)
		return nil
	}

	started := time.Now()
	job.Status = store.JobStatusProcessing
	job.Progress = 0
	job.StartedAt = &started
	if err := o.store.UpdateJob(ctx, job); err != nil {
		return fmt.Errorf("failed to mark job processing: %w", err)
	}
	o.notify(ctx, job, "Preparing job...")

	run := &jobRun{job: job, retryCount: retryCount, started: started}
	err = o.process(ctx, run)
	o.recordOutcome(ctx, job, started, err)
	return err
}

// jobRun tracks per-run billing state so deductions can be compensated.
type jobRun struct {
	job        *store.Job
	retryCount int
	started    time.Time
	deductions []*store.LedgerEntry
}

func (o *Orchestrator) process(ctx context.Context, run *jobRun) error {
	job := run.job

	flags := o.flags.Current(ctx)
	provider, err := o.registry.Select(job.Config, flags)
	if err != nil {
		// Invalid provider/feature combinations fail before any billable
		// work and are never retried.
		return o.fail(ctx, run, err)
	}
	o.progress(ctx, job, 10, fmt.Sprintf("Selected provider %s", provider.ID()))

	ok, err := o.ledger.CheckSufficient(ctx, job.UserID, o.pricing.MinimumCharge())
	if err != nil {
		return o.fail(ctx, run, errors.NewInternalError("failed to read credit balance", "LEDGER_READ_FAILED", err))
	}
	if !ok {
		return o.fail(ctx, run, errors.NewInsufficientCreditsError(
			fmt.Sprintf("balance below minimum charge of %s credits", o.pricing.MinimumCharge()), nil))
	}

	o.progress(ctx, job, 20, "Fetching media...")
	audioPath, err := o.blobs.Fetch(ctx, job.BlobRef)
	if err != nil {
		if ctx.Err() != nil {
			return o.timeout(ctx, run, errors.NewTimeoutError(
				"media fetch exceeded the processing deadline", "HARD_TIMEOUT", ctx.Err()))
		}
		if stderrors.Is(err, storage.ErrNotFound) {
			return o.fail(ctx, run, errors.NewProviderPermanentError(
				fmt.Sprintf("media object %s does not exist", job.BlobRef), "BLOB_NOT_FOUND", err))
		}
		return o.retryOrFail(ctx, run,
			errors.NewProviderTransientError("failed to fetch media", "BLOB_FETCH_FAILED", err))
	}
	defer os.Remove(audioPath)

	if err := o.checkTimeouts(ctx, run); err != nil {
		return err
	}

	o.progress(ctx, job, 30, "Transcribing...")
	resp, err := provider.Transcribe(ctx, media.Request{
		AudioPath:   audioPath,
		Language:    job.Config.Language,
		Diarization: job.Config.Diarization,
		MinSpeakers: job.Config.MinSpeakers,
		MaxSpeakers: job.Config.MaxSpeakers,
	})
	if err != nil {
		if ctx.Err() != nil {
			return o.timeout(ctx, run, errors.NewTimeoutError(
				"transcription exceeded the processing deadline", "HARD_TIMEOUT", ctx.Err()))
		}
		return o.retryOrFail(ctx, run, err)
	}

	if resp.DurationSeconds <= 0 {
		// Some providers omit the duration; derive it from the container so
		// billing stays proportional to the media length.
		if probed, perr := media.ProbeDuration(ctx, audioPath); perr == nil {
			resp.DurationSeconds = probed
		} else if n := len(resp.Segments); n > 0 {
			resp.DurationSeconds = resp.Segments[n-1].End
		} else {
			slog.Warn("Could not determine media duration, transcription will not be billed",
				"job_id", job.ID, "probe_error", perr)
		}
	}

	// The raw transcript and its duration are persisted before any money
	// moves, so every deduction is backed by a stored result.
	segments := make([]store.Segment, len(resp.Segments))
	for i, s := range resp.Segments {
		segments[i] = store.Segment{Start: s.Start, End: s.End, Text: s.Text, Speaker: s.Speaker}
	}
	job.Result = &store.JobResult{
		Text:            resp.Text,
		Segments:        segments,
		Language:        resp.Language,
		SpeakerCount:    resp.SpeakerCount,
		DurationSeconds: resp.DurationSeconds,
	}
	if err := o.store.UpdateJob(ctx, job); err != nil {
		// Nothing has been billed yet; let the queue redeliver.
		return fmt.Errorf("failed to persist transcription result: %w", err)
	}

	o.progress(ctx, job, 60, "Billing transcription...")
	cost := o.pricing.TranscriptionCost(resp.DurationSeconds, provider.ID())
	if cost.IsPositive() {
		entry, err := o.ledger.Deduct(ctx, job.UserID, cost, store.EntryTranscription, &job.ID, map[string]string{
			"provider":         provider.ID(),
			"duration_seconds": fmt.Sprintf("%.2f", resp.DurationSeconds),
		})
		if err != nil {
			if store.IsInsufficientCredits(err) {
				return o.fail(ctx, run, errors.NewInsufficientCreditsError(
					fmt.Sprintf("insufficient credits for %s credit transcription", cost), err))
			}
			return o.fail(ctx, run, errors.NewInternalError("failed to deduct transcription cost", "LEDGER_DEDUCT_FAILED", err))
		}
		run.deductions = append(run.deductions, entry)
		o.countDeduction(ctx, cost, store.EntryTranscription)
	}

	if err := o.checkTimeouts(ctx, run); err != nil {
		return err
	}

	o.progress(ctx, job, 70, "Post-processing transcript...")
	draft := enhance.NewDraft(resp.Text, resp.Language)
	chain := o.buildChain(job.Config)
	chain.Run(ctx, draft)

	if err := o.checkTimeouts(ctx, run); err != nil {
		return err
	}

	if err := o.billPostProcessing(ctx, run, draft, resp.Text); err != nil {
		return err
	}

	if err := o.checkTimeouts(ctx, run); err != nil {
		return err
	}

	return o.complete(ctx, run, resp, draft)
}

// buildChain assembles the post-processing stages this job asked for. The
// cleaning stage always runs.
func (o *Orchestrator) buildChain(cfg store.JobConfig) *enhance.Chain {
	stages := []enhance.Stage{enhance.NewCleanStage()}
	if cfg.WebSearch && o.searcher != nil && o.enhancer != nil {
		stages = append(stages, enhance.NewWebEnrichStage(o.searcher, o.enhancer))
	}
	if cfg.Enhancement.Enabled && o.enhancer != nil {
		stages = append(stages, enhance.NewAIStage(o.enhancer, cfg.Enhancement.Model))
	}
	return enhance.NewChain(stages...)
}

// billPostProcessing deducts for the optional stages that actually
// succeeded. Failed stages are never billed.
func (o *Orchestrator) billPostProcessing(ctx context.Context, run *jobRun, draft *enhance.Draft, rawText string) error {
	job := run.job

	if job.Config.WebSearch && draft.Succeeded(enhance.StageWebEnrich) {
		cost := o.pricing.FeatureCost(pricing.FeatureWebSearch)
		if cost.IsPositive() {
			entry, err := o.ledger.Deduct(ctx, job.UserID, cost, store.EntryFeature, &job.ID, map[string]string{
				"feature": pricing.FeatureWebSearch,
			})
			if err != nil {
				return o.billingFailure(ctx, run, err, "web search")
			}
			run.deductions = append(run.deductions, entry)
			o.countDeduction(ctx, cost, store.EntryFeature)
		}
	}

	if job.Config.Enhancement.Enabled && draft.Succeeded(enhance.StageEnhance) {
		cost := o.pricing.EnhancementCost(utf8.RuneCountInString(rawText), job.Config.Enhancement.Model)
		if cost.IsPositive() {
			entry, err := o.ledger.Deduct(ctx, job.UserID, cost, store.EntryEnhancement, &job.ID, map[string]string{
				"model":      job.Config.Enhancement.Model,
				"char_count": fmt.Sprintf("%d", utf8.RuneCountInString(rawText)),
			})
			if err != nil {
				return o.billingFailure(ctx, run, err, "enhancement")
			}
			run.deductions = append(run.deductions, entry)
			o.countDeduction(ctx, cost, store.EntryEnhancement)
		}
	}

	return nil
}

// billingFailure handles a mid-pipeline deduction failure: earlier
// deductions are refunded so the user is not charged for a failed job.
func (o *Orchestrator) billingFailure(ctx context.Context, run *jobRun, err error, what string) error {
	if store.IsInsufficientCredits(err) {
		o.refundAll(ctx, run, "insufficient credits mid-job")
		return o.fail(ctx, run, errors.NewInsufficientCreditsError(
			fmt.Sprintf("insufficient credits for %s", what), err))
	}
	o.refundAll(ctx, run, "billing error mid-job")
	return o.fail(ctx, run, errors.NewInternalError(
		fmt.Sprintf("failed to deduct %s cost", what), "LEDGER_DEDUCT_FAILED", err))
}

// complete fills in the post-processing results and marks the job done. The
// raw transcript and duration were already persisted before billing.
func (o *Orchestrator) complete(ctx context.Context, run *jobRun, resp *media.Response, draft *enhance.Draft) error {
	job := run.job

	now := time.Now()
	job.Status = store.JobStatusCompleted
	job.Progress = 100
	job.CompletedAt = &now
	job.Error = nil
	job.Result.CleanedText = draft.Cleaned
	job.Result.EnhancedText = draft.Enhanced
	job.Result.Summary = draft.Summary
	job.Result.Stages = draft.Stages

	if err := o.store.UpdateJob(ctx, job); err != nil {
		// The queue will redeliver and the next attempt bills from scratch,
		// so compensate this run's charges first.
		o.refundAll(ctx, run, "failed to persist completion")
		return fmt.Errorf("failed to persist completed job: %w", err)
	}

	o.cleanupBlob(ctx, job)
	o.notify(ctx, job, "Transcription complete")
	slog.Info("Job completed",
		"job_id", job.ID, "provider_duration", resp.DurationSeconds,
		"stages", draft.Stages, "elapsed", time.Since(run.started))
	return nil
}

// checkTimeouts fails the job with a full refund when the hard deadline has
// fired or the wall clock has run past the soft limit. Checked between
// pipeline phases, so a dead context never reaches billing or completion.
func (o *Orchestrator) checkTimeouts(ctx context.Context, run *jobRun) error {
	if ctx.Err() != nil {
		return o.timeout(ctx, run, errors.NewTimeoutError(
			"job exceeded the processing deadline", "HARD_TIMEOUT", ctx.Err()))
	}
	if time.Since(run.started) <= o.softTimeout {
		return nil
	}
	return o.timeout(ctx, run, errors.NewTimeoutError(
		fmt.Sprintf("job exceeded the soft processing limit of %s", o.softTimeout),
		"SOFT_TIMEOUT", nil))
}

// timeout refunds everything deducted during this run and marks the job
// failed. Timeouts are terminal; the single retry budget is reserved for
// transient provider failures.
func (o *Orchestrator) timeout(ctx context.Context, run *jobRun, terr *errors.AppError) error {
	// The deadline may already have fired; detach so the refund and the
	// terminal write still go through.
	ctx = context.WithoutCancel(ctx)
	o.refundAll(ctx, run, "processing timeout")
	return o.fail(ctx, run, terr)
}

// retryOrFail hands a failure to the queue for one retry if it is transient
// and the retry budget is unspent; otherwise the job fails permanently.
func (o *Orchestrator) retryOrFail(ctx context.Context, run *jobRun, err error) error {
	if errors.IsRetryable(err) && run.retryCount < 1 {
		job := run.job
		job.Status = store.JobStatusPending
		job.StartedAt = nil
		if uerr := o.store.UpdateJob(ctx, job); uerr != nil {
			slog.Error("Failed to reset job for retry", "job_id", job.ID, "error", uerr)
		}
		o.notify(ctx, job, "Temporary provider problem, retrying...")
		slog.Warn("Job failed with transient error, requeueing",
			"job_id", job.ID, "retry_count", run.retryCount, "error", err)
		return err
	}
	return o.fail(ctx, run, err)
}

// fail moves the job to its terminal failed state.
func (o *Orchestrator) fail(ctx context.Context, run *jobRun, err error) error {
	job := run.job
	now := time.Now()
	job.Status = store.JobStatusFailed
	job.CompletedAt = &now
	job.Error = &store.JobError{
		Message:    err.Error(),
		Category:   string(errors.TypeOf(err)),
		RetryCount: run.retryCount,
	}

	if uerr := o.store.UpdateJob(ctx, job); uerr != nil {
		slog.Error("Failed to persist failed job", "job_id", job.ID, "error", uerr)
	}

	o.cleanupBlob(ctx, job)
	o.notify(ctx, job, err.Error())
	slog.Error("Job failed",
		"job_id", job.ID, "category", errors.TypeOf(err), "retry_count", run.retryCount, "error", err)

	// The job is terminal; the queue must not redeliver it.
	return nil
}

// cleanupBlob disposes of the job's media object. Only terminal transitions
// call this; a pending retry keeps the blob in place.
func (o *Orchestrator) cleanupBlob(ctx context.Context, job *store.Job) {
	if o.janitor != nil {
		err := o.janitor.ScheduleCleanup(ctx, job.ID, job.BlobRef)
		if err == nil {
			return
		}
		slog.Warn("Failed to schedule blob cleanup, deleting inline",
			"job_id", job.ID, "blob_ref", job.BlobRef, "error", err)
	}
	if o.blobs == nil {
		return
	}
	if err := o.blobs.Delete(ctx, job.BlobRef); err != nil {
		slog.Warn("Failed to delete media object",
			"job_id", job.ID, "blob_ref", job.BlobRef, "error", err)
	}
}

// refundAll compensates every deduction made during this run, newest first.
func (o *Orchestrator) refundAll(ctx context.Context, run *jobRun, reason string) {
	for i := len(run.deductions) - 1; i >= 0; i-- {
		entry := run.deductions[i]
		refund, err := o.ledger.Refund(ctx, entry.ID, reason)
		if err != nil {
			slog.Error("Failed to refund deduction",
				"job_id", run.job.ID, "entry_id", entry.ID, "error", err)
			continue
		}
		if metrics.CreditsRefundedTotal != nil {
			amount, _ := refund.Amount.Float64()
			metrics.CreditsRefundedTotal.Add(ctx, amount, metric.WithAttributes(
				attribute.String("reason", reason)))
		}
	}
	run.deductions = nil
}

func (o *Orchestrator) countDeduction(ctx context.Context, cost decimal.Decimal, kind store.EntryKind) {
	if metrics.CreditsDeductedTotal == nil {
		return
	}
	amount, _ := cost.Float64()
	metrics.CreditsDeductedTotal.Add(ctx, amount, metric.WithAttributes(
		attribute.String("kind", string(kind))))
}

func (o *Orchestrator) recordOutcome(ctx context.Context, job *store.Job, started time.Time, err error) {
	status := string(job.Status)
	if err != nil {
		status = "requeued"
	}
	if metrics.TranscriptionJobsTotal != nil {
		metrics.TranscriptionJobsTotal.Add(ctx, 1, metric.WithAttributes(
			attribute.String("status", status)))
	}
	if metrics.TranscriptionJobDuration != nil {
		metrics.TranscriptionJobDuration.Record(ctx, time.Since(started).Seconds(), metric.WithAttributes(
			attribute.String("status", status)))
	}
}

// progress persists the progress percentage and notifies listeners.
func (o *Orchestrator) progress(ctx context.Context, job *store.Job, pct int, message string) {
	job.Progress = pct
	if err := o.store.UpdateJob(ctx, job); err != nil {
		slog.Warn("Failed to persist job progress", "job_id", job.ID, "error", err)
	}
	o.notify(ctx, job, message)
}

func (o *Orchestrator) notify(ctx context.Context, job *store.Job, message string) {
	if o.notifier == nil {
		return
	}
	o.notifier.Publish(ctx, job.UserID, ProgressUpdate{
		JobID:    job.ID.String(),
		Status:   string(job.Status),
		Progress: job.Progress,
		Message:  message,
	})
}
