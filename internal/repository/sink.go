package repository

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/rs/zerolog/log"

	"recon_sync/ingestion/internal/metrics"
	"recon_sync/ingestion/internal/models"
	"recon_sync/ingestion/internal/query"
)

// Execer runs a single statement. *pgxpool.Pool satisfies it.
type Execer interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
}

// RecordFailure describes one record that could not be written
type RecordFailure struct {
	RecordID string
	Err      error
}

// BatchResult reports what happened to every record of a batch
type BatchResult struct {
	Table     string
	Attempted int
	Succeeded int
	Failed    []RecordFailure
}

// FailedIDs returns the record ids of every failed record
func (r BatchResult) FailedIDs() []string {
	ids := make([]string, 0, len(r.Failed))
	for _, f := range r.Failed {
		ids = append(ids, f.RecordID)
	}
	return ids
}

// Sink writes normalized records one statement at a time. A failing record is
// logged and reported in the BatchResult; it never stops the rest of the batch.
type Sink struct {
	exec   Execer
	mode   query.Mode
	dryRun io.Writer
}

// NewSink creates a sink executing statements through exec
func NewSink(exec Execer, mode query.Mode) *Sink {
	return &Sink{exec: exec, mode: mode}
}

// NewDryRunSink creates a sink that prints each statement as literal SQL to w
// instead of executing it
func NewDryRunSink(w io.Writer, mode query.Mode) *Sink {
	return &Sink{mode: mode, dryRun: w}
}

// Persist writes records into the table of kind. The returned error is set
// only when no statement could be built or the context ended mid-batch;
// per-record failures are reported through the result.
func (s *Sink) Persist(ctx context.Context, kind models.Kind, records []models.Record) (BatchResult, error) {
	result := BatchResult{Table: kind.Table()}

	stmts, err := query.BuildInserts(kind.Table(), records, s.mode)
	if err != nil {
		return result, fmt.Errorf("failed to build statements for %s: %w", kind.Table(), err)
	}

	for i, stmt := range stmts {
		if err := ctx.Err(); err != nil {
			for _, rest := range stmts[i:] {
				result.Failed = append(result.Failed, RecordFailure{RecordID: rest.RecordID, Err: err})
			}
			metrics.RecordBatch(result.Table, result.Succeeded, len(result.Failed))
			return result, fmt.Errorf("batch for %s interrupted: %w", kind.Table(), err)
		}

		result.Attempted++
		if err := s.execute(ctx, stmt); err != nil {
			log.Error().
				Err(err).
				Str("table", stmt.Table).
				Str("record_id", stmt.RecordID).
				Msg("Failed to save record")
			log.Debug().Str("statement", stmt.Literal()).Msg("Failed statement")
			result.Failed = append(result.Failed, RecordFailure{RecordID: stmt.RecordID, Err: err})
			continue
		}
		result.Succeeded++
	}

	metrics.RecordBatch(result.Table, result.Succeeded, len(result.Failed))

	log.Info().
		Str("table", result.Table).
		Int("attempted", result.Attempted).
		Int("succeeded", result.Succeeded).
		Int("failed", len(result.Failed)).
		Msg("Batch persisted")

	return result, nil
}

func (s *Sink) execute(ctx context.Context, stmt query.Statement) error {
	if s.dryRun != nil {
		_, err := fmt.Fprintln(s.dryRun, stmt.Literal()+";")
		return err
	}

	start := time.Now()
	_, err := s.exec.Exec(ctx, stmt.SQL(), stmt.Args...)
	status := "success"
	if err != nil {
		status = "error"
		metrics.RecordError("sink", "exec")
	}
	metrics.RecordDBQuery(string(stmt.Mode), stmt.Table, status, time.Since(start).Seconds())
	return err
}
