package api

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"github.com/shopspring/decimal"

	"github.com/hsnksc/mp4totext-backend/internal/config"
	"github.com/hsnksc/mp4totext-backend/internal/errors"
	"github.com/hsnksc/mp4totext-backend/internal/ledger"
	"github.com/hsnksc/mp4totext-backend/internal/middleware"
	"github.com/hsnksc/mp4totext-backend/internal/store"
	"github.com/hsnksc/mp4totext-backend/internal/worker"
)

// maxUploadBytes bounds a direct media upload (500 MB).
const maxUploadBytes = 500 << 20

// BlobUploader stores uploaded media and returns a blob reference.
type BlobUploader interface {
	Upload(ctx context.Context, filename string, data []byte, contentType string) (string, error)
}

type Server struct {
	cfg         *config.Config
	store       store.Store
	ledger      *ledger.Service
	asynqClient *asynq.Client
	uploads     BlobUploader
}

func NewServer(cfg *config.Config, st store.Store, ledgerSvc *ledger.Service, asynqClient *asynq.Client, uploads BlobUploader) *Server {
	return &Server{
		cfg:         cfg,
		store:       st,
		ledger:      ledgerSvc,
		asynqClient: asynqClient,
		uploads:     uploads,
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, err error) {
	var appErr *errors.AppError
	if stderrors.As(err, &appErr) {
		writeJSON(w, appErr.StatusCode, map[string]interface{}{
			"error":      appErr.Message,
			"error_code": appErr.ErrorCode,
			"recovery":   appErr.Recovery,
		})
		return
	}
	writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
}

// ensureUser creates the ledger row for first-time users.
func (s *Server) ensureUser(ctx context.Context, userID uuid.UUID) error {
	_, err := s.store.GetUser(ctx, userID)
	if stderrors.Is(err, store.ErrUserNotFound) {
		return s.store.CreateUser(ctx, &store.User{ID: userID, Balance: decimal.Zero})
	}
	return err
}

func (s *Server) authedUser(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	raw, ok := middleware.GetUserID(r.Context())
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return uuid.Nil, false
	}
	userID, err := uuid.Parse(raw)
	if err != nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return uuid.Nil, false
	}
	return userID, true
}

type SubmitTranscriptionRequest struct {
	BlobRef string          `json:"blob_ref"`
	Config  store.JobConfig `json:"config"`
}

type SubmitTranscriptionResponse struct {
	JobID   string `json:"job_id"`
	Status  string `json:"status"`
	BlobRef string `json:"blob_ref"`
}

// HandleSubmitTranscription accepts a job either as JSON referencing an
// already-uploaded blob, or as a multipart upload carrying the media file
// and an optional "config" JSON part.
func (s *Server) HandleSubmitTranscription(w http.ResponseWriter, r *http.Request) {
	userID, ok := s.authedUser(w, r)
	if !ok {
		return
	}

	var req SubmitTranscriptionRequest
	var err error
	if isMultipart(r) {
		req, err = s.parseMultipartSubmission(r)
	} else {
		err = json.NewDecoder(r.Body).Decode(&req)
	}
	if err != nil {
		writeError(w, errors.NewValidationError("invalid request body", "INVALID_REQUEST_BODY",
			"Send a JSON body with blob_ref, or a multipart upload with a file part."))
		return
	}

	if req.BlobRef == "" {
		writeError(w, errors.NewValidationError("blob_ref is required", "BLOB_REF_REQUIRED",
			"Upload a file or reference an existing blob."))
		return
	}
	if err := validateJobConfig(req.Config); err != nil {
		writeError(w, err)
		return
	}

	if err := s.ensureUser(r.Context(), userID); err != nil {
		writeError(w, errors.NewInternalError("failed to prepare user account", "USER_INIT_FAILED", err))
		return
	}

	job := &store.Job{
		ID:        uuid.New(),
		UserID:    userID,
		BlobRef:   req.BlobRef,
		Config:    req.Config,
		Status:    store.JobStatusPending,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.store.CreateJob(r.Context(), job); err != nil {
		writeError(w, errors.NewInternalError("failed to create job", "JOB_CREATE_FAILED", err))
		return
	}

	_, err = worker.EnqueueTranscription(r.Context(), s.asynqClient, worker.ProcessTranscriptionPayload{
		JobID:  job.ID.String(),
		UserID: userID.String(),
	}, s.cfg.Worker.HardTimeout)
	if err != nil {
		writeError(w, errors.NewInternalError("failed to enqueue job", "JOB_ENQUEUE_FAILED", err))
		return
	}

	slog.Info("Transcription job submitted", "job_id", job.ID, "user_id", userID)
	writeJSON(w, http.StatusAccepted, SubmitTranscriptionResponse{
		JobID:   job.ID.String(),
		Status:  string(job.Status),
		BlobRef: job.BlobRef,
	})
}

func isMultipart(r *http.Request) bool {
	ct := r.Header.Get("Content-Type")
	return len(ct) >= 19 && ct[:19] == "multipart/form-data"
}

func (s *Server) parseMultipartSubmission(r *http.Request) (SubmitTranscriptionRequest, error) {
	var req SubmitTranscriptionRequest

	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		return req, err
	}

	if raw := r.FormValue("config"); raw != "" {
		if err := json.Unmarshal([]byte(raw), &req.Config); err != nil {
			return req, err
		}
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		return req, err
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, maxUploadBytes))
	if err != nil {
		return req, err
	}

	contentType := header.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	blobRef, err := s.uploads.Upload(r.Context(), header.Filename, data, contentType)
	if err != nil {
		return req, err
	}
	req.BlobRef = blobRef
	return req, nil
}

func validateJobConfig(cfg store.JobConfig) error {
	if cfg.MinSpeakers < 0 || cfg.MaxSpeakers < 0 {
		return errors.NewValidationError("speaker counts must be non-negative", "INVALID_SPEAKER_COUNT",
			"Use positive min_speakers and max_speakers, or omit them.")
	}
	if cfg.MinSpeakers > 0 && cfg.MaxSpeakers > 0 && cfg.MinSpeakers > cfg.MaxSpeakers {
		return errors.NewValidationError("min_speakers cannot exceed max_speakers", "INVALID_SPEAKER_RANGE",
			"Swap or adjust the speaker bounds.")
	}
	if (cfg.MinSpeakers > 0 || cfg.MaxSpeakers > 0) && !cfg.Diarization {
		return errors.NewValidationError("speaker bounds require diarization", "SPEAKER_BOUNDS_WITHOUT_DIARIZATION",
			"Enable diarization or drop the speaker bounds.")
	}
	return nil
}

type JobResponse struct {
	ID          string           `json:"id"`
	Status      string           `json:"status"`
	Progress    int              `json:"progress"`
	Config      store.JobConfig  `json:"config"`
	Result      *store.JobResult `json:"result,omitempty"`
	Error       *store.JobError  `json:"error,omitempty"`
	CreatedAt   string           `json:"created_at"`
	StartedAt   string           `json:"started_at,omitempty"`
	CompletedAt string           `json:"completed_at,omitempty"`
}

func toJobResponse(job *store.Job) JobResponse {
	resp := JobResponse{
		ID:        job.ID.String(),
		Status:    string(job.Status),
		Progress:  job.Progress,
		Config:    job.Config,
		Result:    job.Result,
		Error:     job.Error,
		CreatedAt: job.CreatedAt.Format(time.RFC3339),
	}
	if job.StartedAt != nil {
		resp.StartedAt = job.StartedAt.Format(time.RFC3339)
	}
	if job.CompletedAt != nil {
		resp.CompletedAt = job.CompletedAt.Format(time.RFC3339)
	}
	return resp
}

func (s *Server) HandleGetTranscription(w http.ResponseWriter, r *http.Request) {
	userID, ok := s.authedUser(w, r)
	if !ok {
		return
	}

	jobID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, errors.NewValidationError("invalid job id", "INVALID_JOB_ID", "Use the UUID returned on submission."))
		return
	}

	job, err := s.store.GetJob(r.Context(), jobID)
	if stderrors.Is(err, store.ErrJobNotFound) {
		writeError(w, errors.NewNotFoundError("job not found", "JOB_NOT_FOUND", ""))
		return
	}
	if err != nil {
		writeError(w, errors.NewInternalError("failed to load job", "JOB_LOAD_FAILED", err))
		return
	}
	if job.UserID != userID {
		// Do not reveal that the job exists.
		writeError(w, errors.NewNotFoundError("job not found", "JOB_NOT_FOUND", ""))
		return
	}

	writeJSON(w, http.StatusOK, toJobResponse(job))
}

func (s *Server) HandleListTranscriptions(w http.ResponseWriter, r *http.Request) {
	userID, ok := s.authedUser(w, r)
	if !ok {
		return
	}

	jobs, err := s.store.ListJobsByUser(r.Context(), userID)
	if err != nil {
		writeError(w, errors.NewInternalError("failed to list jobs", "JOB_LIST_FAILED", err))
		return
	}

	out := make([]JobResponse, len(jobs))
	for i, job := range jobs {
		out[i] = toJobResponse(job)
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"jobs": out})
}

type BalanceResponse struct {
	Balance string `json:"balance"`
}

func (s *Server) HandleGetBalance(w http.ResponseWriter, r *http.Request) {
	userID, ok := s.authedUser(w, r)
	if !ok {
		return
	}

	if err := s.ensureUser(r.Context(), userID); err != nil {
		writeError(w, errors.NewInternalError("failed to prepare user account", "USER_INIT_FAILED", err))
		return
	}

	balance, err := s.ledger.GetBalance(r.Context(), userID)
	if err != nil {
		writeError(w, errors.NewInternalError("failed to read balance", "BALANCE_READ_FAILED", err))
		return
	}

	writeJSON(w, http.StatusOK, BalanceResponse{Balance: balance.StringFixed(2)})
}

type LedgerEntryResponse struct {
	ID           string            `json:"id"`
	Amount       string            `json:"amount"`
	Kind         string            `json:"kind"`
	JobID        string            `json:"job_id,omitempty"`
	Metadata     map[string]string `json:"metadata,omitempty"`
	BalanceAfter string            `json:"balance_after"`
	CreatedAt    string            `json:"created_at"`
}

func (s *Server) HandleCreditHistory(w http.ResponseWriter, r *http.Request) {
	userID, ok := s.authedUser(w, r)
	if !ok {
		return
	}

	entries, err := s.ledger.History(r.Context(), userID)
	if err != nil {
		writeError(w, errors.NewInternalError("failed to read credit history", "HISTORY_READ_FAILED", err))
		return
	}

	out := make([]LedgerEntryResponse, len(entries))
	for i, e := range entries {
		out[i] = LedgerEntryResponse{
			ID:           e.ID.String(),
			Amount:       e.Amount.StringFixed(2),
			Kind:         string(e.Kind),
			Metadata:     e.Metadata,
			BalanceAfter: e.BalanceAfter.StringFixed(2),
			CreatedAt:    e.CreatedAt.Format(time.RFC3339),
		}
		if e.JobID != nil {
			out[i].JobID = e.JobID.String()
		}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"entries": out})
}

type PurchaseRequest struct {
	Amount string `json:"amount"`
}

func (s *Server) HandlePurchaseCredits(w http.ResponseWriter, r *http.Request) {
	userID, ok := s.authedUser(w, r)
	if !ok {
		return
	}

	var req PurchaseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, errors.NewValidationError("invalid request body", "INVALID_REQUEST_BODY", ""))
		return
	}

	amount, err := decimal.NewFromString(req.Amount)
	if err != nil || !amount.IsPositive() {
		writeError(w, errors.NewValidationError("amount must be a positive decimal string", "INVALID_AMOUNT",
			`Send e.g. {"amount": "10.00"}.`))
		return
	}

	if err := s.ensureUser(r.Context(), userID); err != nil {
		writeError(w, errors.NewInternalError("failed to prepare user account", "USER_INIT_FAILED", err))
		return
	}

	entry, err := s.ledger.Add(r.Context(), userID, amount, store.EntryPurchase, map[string]string{
		"source": "api_purchase",
	})
	if err != nil {
		writeError(w, errors.NewInternalError("failed to credit purchase", "PURCHASE_FAILED", err))
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"entry_id": entry.ID.String(),
		"balance":  entry.BalanceAfter.StringFixed(2),
	})
}
