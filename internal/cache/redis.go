// Package cache keeps a copy of the last status snapshot in Redis so a
// restarted worker can report what happened before it went down.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"recon_sync/ingestion/internal/metrics"
	"recon_sync/ingestion/internal/status"
)

// SnapshotKey is the Redis key holding the last settled snapshot
const SnapshotKey = "recon_sync:status"

// DefaultSnapshotTTL is used when Config.SnapshotTTL is zero
const DefaultSnapshotTTL = 7 * 24 * time.Hour

// ErrNotFound is returned when no snapshot has been saved yet
var ErrNotFound = errors.New("snapshot not found")

// Config holds Redis configuration
type Config struct {
	// Addr is host:port
	Addr        string
	Password    string
	DB          int
	SnapshotTTL time.Duration
}

// RedisCache stores status snapshots in Redis
type RedisCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisCache connects to Redis and verifies the connection
func NewRedisCache(cfg Config) (*RedisCache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to ping redis: %w", err)
	}

	return newRedisCache(client, cfg.SnapshotTTL), nil
}

func newRedisCache(client *redis.Client, ttl time.Duration) *RedisCache {
	if ttl <= 0 {
		ttl = DefaultSnapshotTTL
	}
	return &RedisCache{client: client, ttl: ttl}
}

// Close closes the Redis connection
func (c *RedisCache) Close() error {
	return c.client.Close()
}

// SaveSnapshot stores snap under SnapshotKey
func (c *RedisCache) SaveSnapshot(ctx context.Context, snap status.Snapshot) error {
	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("failed to marshal snapshot: %w", err)
	}

	if err := c.client.Set(ctx, SnapshotKey, data, c.ttl).Err(); err != nil {
		metrics.RecordCacheOperation("set", "error")
		return fmt.Errorf("failed to save snapshot: %w", err)
	}

	metrics.RecordCacheOperation("set", "success")
	log.Debug().Str("key", SnapshotKey).Msg("Snapshot cached")
	return nil
}

// LoadSnapshot returns the stored snapshot or ErrNotFound
func (c *RedisCache) LoadSnapshot(ctx context.Context) (status.Snapshot, error) {
	data, err := c.client.Get(ctx, SnapshotKey).Bytes()
	if errors.Is(err, redis.Nil) {
		metrics.RecordCacheOperation("get", "miss")
		return status.Snapshot{}, ErrNotFound
	}
	if err != nil {
		metrics.RecordCacheOperation("get", "error")
		return status.Snapshot{}, fmt.Errorf("failed to load snapshot: %w", err)
	}

	var snap status.Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		metrics.RecordCacheOperation("get", "error")
		return status.Snapshot{}, fmt.Errorf("failed to decode snapshot: %w", err)
	}

	metrics.RecordCacheOperation("get", "hit")
	return snap, nil
}
