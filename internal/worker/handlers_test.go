package worker

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

type MockBlobCleaner struct {
	mock.Mock
}

func (m *MockBlobCleaner) Delete(ctx context.Context, blobRef string) error {
	args := m.Called(ctx, blobRef)
	return args.Error(0)
}

func TestHandleProcessTranscription_MalformedPayload(t *testing.T) {
	processor := NewTranscriptionProcessor(nil, nil, nil)

	task := asynq.NewTask(TypeProcessTranscription, []byte("not json"))
	err := processor.HandleProcessTranscription(context.Background(), task)

	// A payload that cannot be parsed will never succeed; skip the retry.
	assert.Error(t, err)
	assert.True(t, errors.Is(err, asynq.SkipRetry))
}

func TestHandleProcessTranscription_InvalidJobID(t *testing.T) {
	processor := NewTranscriptionProcessor(nil, nil, nil)

	payload, _ := json.Marshal(ProcessTranscriptionPayload{JobID: "not-a-uuid"})
	task := asynq.NewTask(TypeProcessTranscription, payload)
	err := processor.HandleProcessTranscription(context.Background(), task)

	assert.Error(t, err)
	assert.True(t, errors.Is(err, asynq.SkipRetry))
}

func TestHandleCleanupBlobs(t *testing.T) {
	cleaner := new(MockBlobCleaner)
	cleaner.On("Delete", mock.Anything, "uploads/old.mp3").Return(nil)

	processor := NewTranscriptionProcessor(nil, cleaner, nil)

	payload, _ := json.Marshal(CleanupBlobsPayload{JobID: "job-1", BlobRef: "uploads/old.mp3"})
	task := asynq.NewTask(TypeCleanupBlobs, payload)

	err := processor.HandleCleanupBlobs(context.Background(), task)

	assert.NoError(t, err)
	cleaner.AssertExpectations(t)
}

func TestHandleCleanupBlobs_DeleteFails(t *testing.T) {
	cleaner := new(MockBlobCleaner)
	cleaner.On("Delete", mock.Anything, "uploads/old.mp3").Return(errors.New("storage unavailable"))

	processor := NewTranscriptionProcessor(nil, cleaner, nil)

	payload, _ := json.Marshal(CleanupBlobsPayload{JobID: "job-1", BlobRef: "uploads/old.mp3"})
	task := asynq.NewTask(TypeCleanupBlobs, payload)

	err := processor.HandleCleanupBlobs(context.Background(), task)

	// Returned so asynq retries the cleanup later.
	assert.Error(t, err)
	assert.False(t, errors.Is(err, asynq.SkipRetry))
}

func TestHandlersCoverAllTaskTypes(t *testing.T) {
	processor := NewTranscriptionProcessor(nil, nil, nil)
	handlers := processor.Handlers()

	assert.Contains(t, handlers, TypeProcessTranscription)
	assert.Contains(t, handlers, TypeCleanupBlobs)
}
