//go:build integration

package repository

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"recon_sync/ingestion/internal/models"
	"recon_sync/ingestion/internal/query"
)

func TestEvents_PersistAndRead(t *testing.T) {
	db, ctx := setupTestDB(t)
	defer teardownTestDB(t, db)

	start := time.Date(2016, 10, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2016, 10, 2, 0, 0, 0, 0, time.UTC)
	event := &models.Event{
		ID:     ptr(int64(7001)),
		Name:   ptr("Kickoff Qualifier"),
		Venue:  ptr("USNYNYKQ"),
		Date:   models.EventDates{Start: &start, End: &end},
		Season: ptr(int64(247)),
		Type:   ptr("Qualifier"),
		Location: models.EventLocation{
			Street:     ptr("1 Main St"),
			PostalCode: ptr("10001"),
			City:       ptr("New York"),
			State:      ptr("NY"),
			Country:    ptr("US"),
		},
	}
	defer func() {
		_, _ = db.Pool.Exec(ctx, `DELETE FROM events WHERE id = 7001`)
	}()

	result, err := NewSink(db.Pool, query.ModeUpsert).Persist(ctx, models.KindEvent, []models.Record{event})
	require.NoError(t, err)
	require.Equal(t, 1, result.Succeeded)

	var got models.Event
	err = db.Pool.QueryRow(ctx, `
		SELECT name, season, date_start, date_end, city
		FROM events
		WHERE id = $1
	`, 7001).Scan(&got.Name, &got.Season, &got.Date.Start, &got.Date.End, &got.Location.City)
	require.NoError(t, err)

	assert.Equal(t, "Kickoff Qualifier", *got.Name)
	assert.Equal(t, int64(247), *got.Season)
	assert.True(t, start.Equal(*got.Date.Start))
	assert.True(t, end.Equal(*got.Date.End))
	assert.Equal(t, "New York", *got.Location.City)

	count, err := db.Events.Count(ctx)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, count, int64(1))
}
