package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/hsnksc/mp4totext-backend/internal/pipeline"
)

// RedisNotifier publishes progress updates on a per-user Redis pub/sub
// channel. Publishing is fire-and-forget: a failed publish is logged and the
// job carries on.
type RedisNotifier struct {
	client        *redis.Client
	channelPrefix string
}

// NewRedisNotifier creates a notifier publishing on
// "<prefix>:user:<user_id>".
func NewRedisNotifier(client *redis.Client, channelPrefix string) *RedisNotifier {
	if channelPrefix == "" {
		channelPrefix = "transcription:progress"
	}
	return &RedisNotifier{
		client:        client,
		channelPrefix: channelPrefix,
	}
}

// Channel returns the pub/sub channel for a user, for subscribing clients.
func (n *RedisNotifier) Channel(userID uuid.UUID) string {
	return fmt.Sprintf("%s:user:%s", n.channelPrefix, userID)
}

// Publish implements pipeline.Notifier.
func (n *RedisNotifier) Publish(ctx context.Context, userID uuid.UUID, update pipeline.ProgressUpdate) {
	if n.client == nil {
		return
	}

	payload, err := json.Marshal(update)
	if err != nil {
		slog.Warn("Failed to marshal progress update", "job_id", update.JobID, "error", err)
		return
	}

	if err := n.client.Publish(ctx, n.Channel(userID), payload).Err(); err != nil {
		slog.Warn("Failed to publish progress update",
			"job_id", update.JobID, "channel", n.Channel(userID), "error", err)
	}
}
