//go:build integration

package cache

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"recon_sync/ingestion/internal/status"
)

// Run with: go test -v -tags=integration ./internal/cache/...

func setupTestCache(t *testing.T) *RedisCache {
	port := os.Getenv("REDIS_PORT")
	if port == "" {
		port = "6379"
	}

	c, err := NewRedisCache(Config{Addr: "localhost:" + port, DB: 15, SnapshotTTL: time.Minute})
	require.NoError(t, err, "Failed to connect to test redis")

	t.Cleanup(func() {
		_ = c.client.Del(context.Background(), SnapshotKey).Err()
		_ = c.Close()
	})
	return c
}

func TestRedisCache_RoundTrip(t *testing.T) {
	c := setupTestCache(t)
	ctx := context.Background()

	_, err := c.LoadSnapshot(ctx)
	assert.ErrorIs(t, err, ErrNotFound)

	at := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	snap := status.Snapshot{
		CurrentState:        status.PhaseIdle,
		LastOutcome:         status.OutcomePartial,
		LastAttemptAt:       &at,
		ConsecutiveFailures: 0,
		Batches: []status.BatchSummary{
			{Table: "teams", Attempted: 3, Succeeded: 2, FailedIDs: []string{"7"}},
		},
	}
	require.NoError(t, c.SaveSnapshot(ctx, snap))

	got, err := c.LoadSnapshot(ctx)
	require.NoError(t, err)
	assert.Equal(t, status.OutcomePartial, got.LastOutcome)
	require.NotNil(t, got.LastAttemptAt)
	assert.True(t, at.Equal(*got.LastAttemptAt))
	assert.Equal(t, snap.Batches, got.Batches)

	ttl, err := c.client.TTL(ctx, SnapshotKey).Result()
	require.NoError(t, err)
	assert.Greater(t, ttl, time.Duration(0))
	assert.LessOrEqual(t, ttl, time.Minute)
}
