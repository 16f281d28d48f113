package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/hsnksc/mp4totext-backend/internal/config"
	"github.com/hsnksc/mp4totext-backend/internal/ledger"
	"github.com/hsnksc/mp4totext-backend/internal/middleware"
	"github.com/hsnksc/mp4totext-backend/internal/store"
)

func withUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, middleware.UserIDKey, userID)
}

func withJobID(req *http.Request, id string) *http.Request {
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add("id", id)
	return req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))
}

func newTestServer() (*Server, *store.MemoryStore) {
	m := store.NewMemoryStore()
	return NewServer(&config.Config{}, m, ledger.NewService(m), nil, nil), m
}

func TestHandleSubmitTranscription_Unauthorized(t *testing.T) {
	srv, _ := newTestServer()

	body, _ := json.Marshal(SubmitTranscriptionRequest{BlobRef: "uploads/a.mp3"})
	req := httptest.NewRequest("POST", "/api/transcriptions", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()

	srv.HandleSubmitTranscription(rr, req)

	if rr.Code != http.StatusUnauthorized {
		t.Errorf("expected status %d, got %d", http.StatusUnauthorized, rr.Code)
	}
}

func TestHandleSubmitTranscription_MissingBlobRef(t *testing.T) {
	srv, _ := newTestServer()

	body, _ := json.Marshal(SubmitTranscriptionRequest{})
	req := httptest.NewRequest("POST", "/api/transcriptions", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req = req.WithContext(withUserID(req.Context(), uuid.New().String()))
	rr := httptest.NewRecorder()

	srv.HandleSubmitTranscription(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Errorf("expected status %d, got %d", http.StatusBadRequest, rr.Code)
	}

	var resp map[string]interface{}
	json.NewDecoder(rr.Body).Decode(&resp)
	if resp["error_code"] != "BLOB_REF_REQUIRED" {
		t.Errorf("expected BLOB_REF_REQUIRED, got %v", resp["error_code"])
	}
}

func TestHandleSubmitTranscription_InvalidConfig(t *testing.T) {
	tests := []struct {
		name string
		cfg  store.JobConfig
		code string
	}{
		{
			name: "negative speaker count",
			cfg:  store.JobConfig{Diarization: true, MinSpeakers: -1},
			code: "INVALID_SPEAKER_COUNT",
		},
		{
			name: "min above max",
			cfg:  store.JobConfig{Diarization: true, MinSpeakers: 5, MaxSpeakers: 2},
			code: "INVALID_SPEAKER_RANGE",
		},
		{
			name: "speaker bounds without diarization",
			cfg:  store.JobConfig{MinSpeakers: 2, MaxSpeakers: 4},
			code: "SPEAKER_BOUNDS_WITHOUT_DIARIZATION",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv, _ := newTestServer()

			body, _ := json.Marshal(SubmitTranscriptionRequest{BlobRef: "uploads/a.mp3", Config: tt.cfg})
			req := httptest.NewRequest("POST", "/api/transcriptions", bytes.NewReader(body))
			req.Header.Set("Content-Type", "application/json")
			req = req.WithContext(withUserID(req.Context(), uuid.New().String()))
			rr := httptest.NewRecorder()

			srv.HandleSubmitTranscription(rr, req)

			if rr.Code != http.StatusBadRequest {
				t.Errorf("expected status %d, got %d", http.StatusBadRequest, rr.Code)
			}
			var resp map[string]interface{}
			json.NewDecoder(rr.Body).Decode(&resp)
			if resp["error_code"] != tt.code {
				t.Errorf("expected %s, got %v", tt.code, resp["error_code"])
			}
		})
	}
}

func TestHandleGetTranscription_InvalidJobID(t *testing.T) {
	srv, _ := newTestServer()

	req := httptest.NewRequest("GET", "/api/transcriptions/not-a-uuid", nil)
	req = req.WithContext(withUserID(req.Context(), uuid.New().String()))
	req = withJobID(req, "not-a-uuid")
	rr := httptest.NewRecorder()

	srv.HandleGetTranscription(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Errorf("expected status %d, got %d", http.StatusBadRequest, rr.Code)
	}
}

func TestHandleGetTranscription_OtherUsersJobIsHidden(t *testing.T) {
	srv, m := newTestServer()

	owner := uuid.New()
	job := &store.Job{
		ID:        uuid.New(),
		UserID:    owner,
		BlobRef:   "uploads/a.mp3",
		Status:    store.JobStatusPending,
		CreatedAt: time.Now().UTC(),
	}
	if err := m.CreateJob(context.Background(), job); err != nil {
		t.Fatalf("failed to create job: %v", err)
	}

	req := httptest.NewRequest("GET", "/api/transcriptions/"+job.ID.String(), nil)
	req = req.WithContext(withUserID(req.Context(), uuid.New().String())) // not the owner
	req = withJobID(req, job.ID.String())
	rr := httptest.NewRecorder()

	srv.HandleGetTranscription(rr, req)

	// Another user's job must look exactly like a missing one.
	if rr.Code != http.StatusNotFound {
		t.Errorf("expected status %d, got %d", http.StatusNotFound, rr.Code)
	}
}

func TestHandleGetTranscription_Found(t *testing.T) {
	srv, m := newTestServer()

	owner := uuid.New()
	job := &store.Job{
		ID:        uuid.New(),
		UserID:    owner,
		BlobRef:   "uploads/a.mp3",
		Status:    store.JobStatusPending,
		Progress:  0,
		CreatedAt: time.Now().UTC(),
	}
	if err := m.CreateJob(context.Background(), job); err != nil {
		t.Fatalf("failed to create job: %v", err)
	}

	req := httptest.NewRequest("GET", "/api/transcriptions/"+job.ID.String(), nil)
	req = req.WithContext(withUserID(req.Context(), owner.String()))
	req = withJobID(req, job.ID.String())
	rr := httptest.NewRecorder()

	srv.HandleGetTranscription(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, rr.Code)
	}
	var resp JobResponse
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.ID != job.ID.String() {
		t.Errorf("expected job id %s, got %s", job.ID, resp.ID)
	}
	if resp.Status != string(store.JobStatusPending) {
		t.Errorf("expected status pending, got %s", resp.Status)
	}
}

func TestHandleGetBalance_NewUserStartsAtZero(t *testing.T) {
	srv, _ := newTestServer()

	req := httptest.NewRequest("GET", "/api/credits/balance", nil)
	req = req.WithContext(withUserID(req.Context(), uuid.New().String()))
	rr := httptest.NewRecorder()

	srv.HandleGetBalance(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, rr.Code)
	}
	var resp BalanceResponse
	json.NewDecoder(rr.Body).Decode(&resp)
	if resp.Balance != "0.00" {
		t.Errorf("expected balance 0.00, got %s", resp.Balance)
	}
}

func TestHandlePurchaseCredits(t *testing.T) {
	srv, _ := newTestServer()
	userID := uuid.New().String()

	body, _ := json.Marshal(PurchaseRequest{Amount: "10.00"})
	req := httptest.NewRequest("POST", "/api/credits/purchase", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req = req.WithContext(withUserID(req.Context(), userID))
	rr := httptest.NewRecorder()

	srv.HandlePurchaseCredits(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, rr.Code)
	}
	var resp map[string]string
	json.NewDecoder(rr.Body).Decode(&resp)
	if resp["balance"] != "10.00" {
		t.Errorf("expected balance 10.00, got %s", resp["balance"])
	}

	// The purchase shows up in the history with its balance snapshot.
	histReq := httptest.NewRequest("GET", "/api/credits/history", nil)
	histReq = histReq.WithContext(withUserID(histReq.Context(), userID))
	histRR := httptest.NewRecorder()

	srv.HandleCreditHistory(histRR, histReq)

	if histRR.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, histRR.Code)
	}
	var hist struct {
		Entries []LedgerEntryResponse `json:"entries"`
	}
	json.NewDecoder(histRR.Body).Decode(&hist)
	if len(hist.Entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(hist.Entries))
	}
	if hist.Entries[0].Kind != string(store.EntryPurchase) {
		t.Errorf("expected purchase entry, got %s", hist.Entries[0].Kind)
	}
	if hist.Entries[0].BalanceAfter != "10.00" {
		t.Errorf("expected balance_after 10.00, got %s", hist.Entries[0].BalanceAfter)
	}
}

func TestHandlePurchaseCredits_InvalidAmount(t *testing.T) {
	srv, _ := newTestServer()

	for _, amount := range []string{"", "abc", "0", "-5.00"} {
		body, _ := json.Marshal(PurchaseRequest{Amount: amount})
		req := httptest.NewRequest("POST", "/api/credits/purchase", bytes.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		req = req.WithContext(withUserID(req.Context(), uuid.New().String()))
		rr := httptest.NewRecorder()

		srv.HandlePurchaseCredits(rr, req)

		if rr.Code != http.StatusBadRequest {
			t.Errorf("amount %q: expected status %d, got %d", amount, http.StatusBadRequest, rr.Code)
		}
	}
}

func TestValidateJobConfigAcceptsDefaults(t *testing.T) {
	if err := validateJobConfig(store.JobConfig{}); err != nil {
		t.Errorf("expected empty config to validate, got %v", err)
	}
	if err := validateJobConfig(store.JobConfig{Diarization: true, MinSpeakers: 2, MaxSpeakers: 4}); err != nil {
		t.Errorf("expected diarized config with bounds to validate, got %v", err)
	}
}
