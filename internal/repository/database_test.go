//go:build integration

package repository

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"recon_sync/ingestion/internal/models"
	"recon_sync/ingestion/internal/query"
)

// Integration tests for database operations
// Run with: go test -v -tags=integration ./internal/repository/...
// Apply database/schema.sql to the test database first.

func setupTestDB(t *testing.T) (*Database, context.Context) {
	ctx := context.Background()

	cfg := Config{
		Host:     envOr("DATABASE_HOST", "localhost"),
		Port:     envOr("DATABASE_PORT", "5432"),
		Database: envOr("DATABASE_NAME", "recon_sync_test"),
		User:     envOr("DATABASE_USER", "recon_user"),
		Password: envOr("DATABASE_PASSWORD", "recon_password"),
		SSLMode:  "disable",
	}

	db, err := NewDatabase(ctx, cfg)
	require.NoError(t, err, "Failed to connect to test database")

	return db, ctx
}

func teardownTestDB(t *testing.T, db *Database) {
	db.Close()
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func TestDatabaseConnection(t *testing.T) {
	db, ctx := setupTestDB(t)
	defer teardownTestDB(t, db)

	// Test health check
	err := db.Health(ctx)
	assert.NoError(t, err, "Database health check should pass")

	// Test stats
	stats := db.PoolStats()
	assert.NotNil(t, stats, "Should return connection pool stats")
	assert.GreaterOrEqual(t, stats["max_conns"].(int32), int32(1), "Should have at least 1 max connection")
}

func TestDatabasePing(t *testing.T) {
	db, ctx := setupTestDB(t)
	defer teardownTestDB(t, db)

	// Ping with timeout
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	err := db.Pool.Ping(ctx)
	assert.NoError(t, err, "Should successfully ping database")
}

func TestSink_PersistIsIdempotent(t *testing.T) {
	db, ctx := setupTestDB(t)
	defer teardownTestDB(t, db)

	records := []models.Record{
		&models.Team{ID: ptr(int64(9001)), Number: ptr(int64(9001)), Name: ptr("Idempotent One")},
		&models.Team{ID: ptr(int64(9002)), Number: ptr(int64(9002)), Name: ptr("Idempotent Two")},
	}
	defer func() {
		_, _ = db.Pool.Exec(ctx, `DELETE FROM teams WHERE id IN (9001, 9002)`)
	}()

	sink := NewSink(db.Pool, query.ModeUpsert)

	first, err := sink.Persist(ctx, models.KindTeam, records)
	require.NoError(t, err)
	assert.Equal(t, 2, first.Succeeded)

	before, err := db.Count(ctx, models.KindTeam)
	require.NoError(t, err)

	second, err := sink.Persist(ctx, models.KindTeam, records)
	require.NoError(t, err)
	assert.Equal(t, 2, second.Succeeded)
	assert.Empty(t, second.Failed)

	after, err := db.Count(ctx, models.KindTeam)
	require.NoError(t, err)
	assert.Equal(t, before, after, "Re-persisting the same batch should not add rows")
}

func TestSink_InsertModeReportsDuplicates(t *testing.T) {
	db, ctx := setupTestDB(t)
	defer teardownTestDB(t, db)

	records := []models.Record{
		&models.Team{ID: ptr(int64(9101)), Number: ptr(int64(9101)), Name: ptr("Duplicate")},
	}
	defer func() {
		_, _ = db.Pool.Exec(ctx, `DELETE FROM teams WHERE id = 9101`)
	}()

	sink := NewSink(db.Pool, query.ModeInsert)

	_, err := sink.Persist(ctx, models.KindTeam, records)
	require.NoError(t, err)

	result, err := sink.Persist(ctx, models.KindTeam, records)
	require.NoError(t, err)
	assert.Equal(t, []string{"9101"}, result.FailedIDs())
}
