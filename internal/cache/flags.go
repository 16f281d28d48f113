package cache

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/hsnksc/mp4totext-backend/internal/services/media"
)

const flagsKey = "operator:flags"

// FlagsCache reads operator flags from Redis with a short in-process TTL so
// the worker does not hit Redis on every job. A missing or unreadable key
// yields the provided defaults; flag reads never fail a job.
type FlagsCache struct {
	client   *redis.Client
	defaults media.OperatorFlags
	ttl      time.Duration

	mu        sync.Mutex
	cached    media.OperatorFlags
	fetchedAt time.Time
}

// NewFlagsCache creates a flags cache with the given defaults.
func NewFlagsCache(client *redis.Client, defaults media.OperatorFlags, ttl time.Duration) *FlagsCache {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &FlagsCache{
		client:   client,
		defaults: defaults,
		ttl:      ttl,
	}
}

// Current returns the operator flags, refreshing from Redis when the cached
// copy is older than the TTL.
func (f *FlagsCache) Current(ctx context.Context) media.OperatorFlags {
	f.mu.Lock()
	defer f.mu.Unlock()

	if time.Since(f.fetchedAt) < f.ttl {
		return f.cached
	}

	f.cached = f.fetch(ctx)
	f.fetchedAt = time.Now()
	return f.cached
}

func (f *FlagsCache) fetch(ctx context.Context) media.OperatorFlags {
	if f.client == nil {
		return f.defaults
	}

	data, err := f.client.Get(ctx, flagsKey).Result()
	if err == redis.Nil {
		return f.defaults
	}
	if err != nil {
		slog.Warn("Redis flags read failed, using defaults", "error", err)
		return f.defaults
	}

	flags := f.defaults
	if err := json.Unmarshal([]byte(data), &flags); err != nil {
		slog.Warn("Failed to unmarshal operator flags, using defaults", "error", err)
		return f.defaults
	}

	return flags
}

// Set writes operator flags to Redis, for admin tooling and tests.
func (f *FlagsCache) Set(ctx context.Context, flags media.OperatorFlags) error {
	data, err := json.Marshal(flags)
	if err != nil {
		return err
	}
	if err := f.client.Set(ctx, flagsKey, data, 0).Err(); err != nil {
		return err
	}

	f.mu.Lock()
	f.cached = flags
	f.fetchedAt = time.Now()
	f.mu.Unlock()
	return nil
}
