package repository

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"recon_sync/ingestion/internal/models"
	"recon_sync/ingestion/internal/query"
)

type execCall struct {
	sql  string
	args []any
}

// fakeExecer records every statement and fails the ones whose first argument
// matches failID
type fakeExecer struct {
	calls  []execCall
	failID int64
}

func (f *fakeExecer) Exec(_ context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	f.calls = append(f.calls, execCall{sql: sql, args: args})
	if id, ok := args[0].(*int64); ok && id != nil && *id == f.failID {
		return pgconn.CommandTag{}, errors.New("duplicate key value violates unique constraint")
	}
	return pgconn.NewCommandTag("INSERT 0 1"), nil
}

func ptr[T any](v T) *T { return &v }

func teams() []models.Record {
	return []models.Record{
		&models.Team{ID: ptr(int64(1)), Number: ptr(int64(100)), Name: ptr("Alpha")},
		&models.Team{ID: ptr(int64(2)), Number: ptr(int64(200)), Name: ptr("Beta")},
		&models.Team{ID: ptr(int64(3)), Number: ptr(int64(300)), Name: ptr("Gamma")},
	}
}

func TestSink_Persist(t *testing.T) {
	exec := &fakeExecer{}
	sink := NewSink(exec, query.ModeUpsert)

	result, err := sink.Persist(context.Background(), models.KindTeam, teams())
	require.NoError(t, err)

	assert.Equal(t, "teams", result.Table)
	assert.Equal(t, 3, result.Attempted)
	assert.Equal(t, 3, result.Succeeded)
	assert.Empty(t, result.Failed)

	require.Len(t, exec.calls, 3)
	assert.True(t, strings.HasPrefix(exec.calls[0].sql, `INSERT INTO "teams"`))
	assert.Contains(t, exec.calls[0].sql, "ON CONFLICT")
	assert.Len(t, exec.calls[0].args, 3)
}

func TestSink_FailureDoesNotAbortBatch(t *testing.T) {
	exec := &fakeExecer{failID: 2}
	sink := NewSink(exec, query.ModeInsert)

	result, err := sink.Persist(context.Background(), models.KindTeam, teams())
	require.NoError(t, err, "Per-record failures are reported in the result")

	assert.Len(t, exec.calls, 3, "Every statement should still be attempted")
	assert.Equal(t, 3, result.Attempted)
	assert.Equal(t, 2, result.Succeeded)
	require.Len(t, result.Failed, 1)
	assert.Equal(t, "2", result.Failed[0].RecordID)
	assert.Contains(t, result.Failed[0].Err.Error(), "duplicate key")
	assert.Equal(t, []string{"2"}, result.FailedIDs())
}

func TestSink_WrongKindBuildsNothing(t *testing.T) {
	exec := &fakeExecer{}
	sink := NewSink(exec, query.ModeInsert)

	_, err := sink.Persist(context.Background(), models.KindEvent, teams())
	assert.Error(t, err)
	assert.Empty(t, exec.calls, "No statement should run when construction fails")

	_, err = sink.Persist(context.Background(), models.Kind(0), teams())
	assert.ErrorIs(t, err, query.ErrUnsupportedTable)
}

func TestSink_EmptyBatch(t *testing.T) {
	exec := &fakeExecer{}
	result, err := NewSink(exec, query.ModeUpsert).Persist(context.Background(), models.KindEvent, nil)
	require.NoError(t, err)
	assert.Equal(t, "events", result.Table)
	assert.Zero(t, result.Attempted)
	assert.Empty(t, exec.calls)
}

func TestSink_ContextCancelled(t *testing.T) {
	exec := &fakeExecer{}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	result, err := NewSink(exec, query.ModeUpsert).Persist(ctx, models.KindTeam, teams())
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, exec.calls)
	assert.Zero(t, result.Attempted, "Statements that never ran are not attempted")
	assert.Len(t, result.Failed, 3)
}

// cancelAfterExecer cancels the batch context once n statements ran
type cancelAfterExecer struct {
	n      int
	calls  int
	cancel context.CancelFunc
}

func (c *cancelAfterExecer) Exec(context.Context, string, ...any) (pgconn.CommandTag, error) {
	c.calls++
	if c.calls == c.n {
		c.cancel()
	}
	return pgconn.NewCommandTag("INSERT 0 1"), nil
}

func TestSink_ContextCancelledMidBatch(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	exec := &cancelAfterExecer{n: 1, cancel: cancel}

	result, err := NewSink(exec, query.ModeUpsert).Persist(ctx, models.KindTeam, teams())
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, exec.calls)
	assert.Equal(t, 1, result.Attempted)
	assert.Equal(t, 1, result.Succeeded)
	assert.Equal(t, []string{"2", "3"}, result.FailedIDs())
}

func TestSink_DryRun(t *testing.T) {
	var buf bytes.Buffer
	sink := NewDryRunSink(&buf, query.ModeInsert)

	records := []models.Record{
		&models.Team{ID: ptr(int64(9)), Number: ptr(int64(9)), Name: ptr("Rock 'n' Robots")},
	}
	result, err := sink.Persist(context.Background(), models.KindTeam, records)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Succeeded)
	assert.Equal(t,
		`INSERT INTO "teams" ("id", "number", "name") VALUES (9, 9, 'Rock ''n'' Robots');`+"\n",
		buf.String())
}
