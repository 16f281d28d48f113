package worker

import (
	"context"
	"crypto/tls"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
)

// QueueTranscriptions is the queue transcription jobs run on.
const QueueTranscriptions = "transcriptions"

// ParseRedisURL parses a Redis URL and returns asynq.RedisClientOpt
func ParseRedisURL(redisURL string) (asynq.RedisClientOpt, error) {
	// Handle plain host:port format
	if !strings.HasPrefix(redisURL, "redis://") && !strings.HasPrefix(redisURL, "rediss://") {
		return asynq.RedisClientOpt{Addr: redisURL}, nil
	}

	u, err := url.Parse(redisURL)
	if err != nil {
		return asynq.RedisClientOpt{}, err
	}

	opt := asynq.RedisClientOpt{
		Addr: u.Host,
	}

	if u.User != nil {
		opt.Username = u.User.Username()
		if password, ok := u.User.Password(); ok {
			opt.Password = password
		}
	}

	// For rediss:// (TLS), we need to set TLS config
	if u.Scheme == "rediss" {
		opt.TLSConfig = &tls.Config{InsecureSkipVerify: false}
	}

	return opt, nil
}

// NewClient creates a new Asynq client for enqueueing tasks
func NewClient(redisURL string) *asynq.Client {
	opt, err := ParseRedisURL(redisURL)
	if err != nil {
		panic("failed to parse Redis URL: " + err.Error())
	}
	return asynq.NewClient(opt)
}

// EnqueueTranscription enqueues a transcription job with the pipeline's
// delivery policy: at most one retry, and a hard deadline enforced by the
// queue regardless of what the handler does.
func EnqueueTranscription(ctx context.Context, client *asynq.Client, payload ProcessTranscriptionPayload, hardTimeout time.Duration) (*asynq.TaskInfo, error) {
	task, err := NewProcessTranscriptionTask(payload)
	if err != nil {
		return nil, err
	}
	return client.EnqueueContext(ctx, task,
		asynq.Queue(QueueTranscriptions),
		asynq.MaxRetry(1),
		asynq.Timeout(hardTimeout),
	)
}

// Close closes the client connection
func Close(client *asynq.Client) error {
	return client.Close()
}

// CleanupScheduler enqueues blob cleanup tasks for jobs that reached a
// terminal state, implementing the pipeline's BlobJanitor over asynq.
type CleanupScheduler struct {
	client *asynq.Client
	delay  time.Duration
}

// NewCleanupScheduler creates a scheduler that removes a job's media object
// delay after the job turns terminal.
func NewCleanupScheduler(client *asynq.Client, delay time.Duration) *CleanupScheduler {
	if delay <= 0 {
		delay = time.Minute
	}
	return &CleanupScheduler{client: client, delay: delay}
}

func (s *CleanupScheduler) ScheduleCleanup(ctx context.Context, jobID uuid.UUID, blobRef string) error {
	task, err := NewCleanupBlobsTask(CleanupBlobsPayload{JobID: jobID.String(), BlobRef: blobRef})
	if err != nil {
		return err
	}
	_, err = s.client.EnqueueContext(ctx, task,
		asynq.ProcessIn(s.delay),
		asynq.MaxRetry(5),
	)
	return err
}
