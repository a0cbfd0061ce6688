package scheduler

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"recon_sync/ingestion/internal/client"
	"recon_sync/ingestion/internal/config"
	"recon_sync/ingestion/internal/export"
	"recon_sync/ingestion/internal/metrics"
	"recon_sync/ingestion/internal/models"
	"recon_sync/ingestion/internal/repository"
	"recon_sync/ingestion/internal/status"
)

// Searcher fetches one page of hits for a kind. *client.Client satisfies it.
type Searcher interface {
	Search(ctx context.Context, kind models.Kind) (*client.SearchResult, error)
}

// Persister writes a batch of normalized records. *repository.Sink satisfies it.
type Persister interface {
	Persist(ctx context.Context, kind models.Kind, records []models.Record) (repository.BatchResult, error)
}

// SnapshotStore receives every settled snapshot. *cache.RedisCache satisfies it.
type SnapshotStore interface {
	SaveSnapshot(ctx context.Context, snap status.Snapshot) error
}

// StatsRefresher publishes table statistics after a cycle wrote data.
// *repository.Database satisfies it.
type StatsRefresher interface {
	RefreshStats(ctx context.Context)
}

// Option customizes a Scheduler
type Option func(*Scheduler)

// WithClock replaces time.Now
func WithClock(now func() time.Time) Option {
	return func(s *Scheduler) { s.now = now }
}

// WithSnapshotStore publishes settled snapshots to store
func WithSnapshotStore(store SnapshotStore) Option {
	return func(s *Scheduler) { s.store = store }
}

// WithStatsRefresher refreshes table statistics after every cycle that wrote data
func WithStatsRefresher(r StatsRefresher) Option {
	return func(s *Scheduler) { s.stats = r }
}

// Report describes one settled cycle
type Report struct {
	Outcome   status.Outcome
	Err       error
	Batches   []repository.BatchResult
	StartedAt time.Time
	SettledAt time.Time
	NextRunAt time.Time
}

// Scheduler drives the fetch, transform and persist cycle. At most one cycle
// runs at a time and the next one is armed only once the current one settled.
type Scheduler struct {
	kinds     []models.Kind
	interval  time.Duration
	exportDir string

	search  Searcher
	sink    Persister
	tracker *status.Tracker
	store   SnapshotStore
	stats   StatsRefresher

	schedule cron.Schedule
	backoff  *backoff.ExponentialBackOff
	now      func() time.Time

	started  atomic.Bool
	stopChan chan struct{}
	done     chan struct{}
	stopOnce sync.Once
}

// NewScheduler creates a new scheduler instance
func NewScheduler(cfg *config.Config, search Searcher, sink Persister, tracker *status.Tracker, opts ...Option) (*Scheduler, error) {
	kinds := cfg.Kinds()
	if len(kinds) == 0 {
		return nil, fmt.Errorf("no record kinds enabled")
	}

	interval := cfg.Interval()
	if interval <= 0 {
		return nil, fmt.Errorf("sync interval must be positive, got %s", interval)
	}

	var schedule cron.Schedule = cron.Every(interval)
	if cfg.SyncCron != "" {
		parsed, err := cron.ParseStandard(cfg.SyncCron)
		if err != nil {
			return nil, fmt.Errorf("failed to parse sync schedule %q: %w", cfg.SyncCron, err)
		}
		schedule = parsed
	}

	s := &Scheduler{
		kinds:     kinds,
		interval:  interval,
		exportDir: cfg.ExportDir,
		search:    search,
		sink:      sink,
		tracker:   tracker,
		schedule:  schedule,
		now:       time.Now,
		stopChan:  make(chan struct{}),
		done:      make(chan struct{}),
	}

	if cfg.SyncBackoffInitial > 0 {
		b := backoff.NewExponentialBackOff()
		b.InitialInterval = cfg.SyncBackoffInitial
		b.RandomizationFactor = 0
		b.Multiplier = 2
		b.MaxInterval = interval
		b.Reset()
		s.backoff = b
	}

	for _, opt := range opts {
		opt(s)
	}

	return s, nil
}

// Start runs the first cycle immediately and keeps cycling in the background
// until ctx is cancelled or Stop is called
func (s *Scheduler) Start(ctx context.Context) error {
	log.Info().
		Strs("tables", tableNames(s.kinds)).
		Dur("interval", s.interval).
		Bool("backoff", s.backoff != nil).
		Msg("Scheduler starting...")

	if !s.started.CompareAndSwap(false, true) {
		return fmt.Errorf("scheduler already started")
	}
	go s.run(ctx)
	return nil
}

// Stop stops the scheduler and waits for an in-flight cycle to return
func (s *Scheduler) Stop() {
	log.Info().Msg("Stopping scheduler...")
	s.stopOnce.Do(func() { close(s.stopChan) })
	if s.started.Load() {
		<-s.done
	}
	log.Info().Msg("Scheduler stopped")
}

func (s *Scheduler) run(ctx context.Context) {
	defer close(s.done)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		select {
		case <-s.stopChan:
			cancel()
		case <-ctx.Done():
		}
	}()

	timer := time.NewTimer(0)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("Context cancelled, stopping sync cycle")
			return
		case <-timer.C:
			report := s.RunCycle(ctx)
			if ctx.Err() != nil {
				return
			}
			wait := report.NextRunAt.Sub(s.now())
			if wait < 0 {
				wait = 0
			}
			timer.Reset(wait)
		}
	}
}

// RunCycle performs one full pass: every enabled kind is fetched
// concurrently, then each batch is transformed and persisted in kind order.
// A failed fetch skips persistence entirely.
func (s *Scheduler) RunCycle(ctx context.Context) Report {
	report := Report{StartedAt: s.now()}
	started := report.StartedAt

	s.tracker.Update(func(snap *status.Snapshot) {
		snap.LastAttemptAt = &started
		snap.NextRunAt = nil
	})
	s.tracker.SetPhase(status.PhaseDownloading)
	log.Info().Strs("tables", tableNames(s.kinds)).Msg("Sync cycle started")

	results, err := s.fetch(ctx)
	if err != nil {
		report.Err = err
		report.Outcome = status.OutcomeFailure
		metrics.RecordError("scheduler", "fetch")
		log.Error().Err(err).Msg("Fetch failed, no records persisted")
		return s.settle(ctx, report)
	}

	s.tracker.SetPhase(status.PhaseProcessing)
	report.Outcome = status.OutcomeSuccess

	for i, kind := range s.kinds {
		batch, clean, err := s.process(ctx, kind, results[i])
		report.Batches = append(report.Batches, batch)
		if err != nil {
			report.Err = err
			report.Outcome = status.OutcomeFailure
			break
		}
		if !clean {
			report.Outcome = status.OutcomePartial
		}
	}

	return s.settle(ctx, report)
}

func (s *Scheduler) fetch(ctx context.Context) ([]*client.SearchResult, error) {
	results := make([]*client.SearchResult, len(s.kinds))

	g, gctx := errgroup.WithContext(ctx)
	for i, kind := range s.kinds {
		g.Go(func() error {
			res, err := s.search.Search(gctx, kind)
			if err != nil {
				return err
			}
			if res == nil {
				res = &client.SearchResult{Kind: kind}
			}
			results[i] = res
			log.Info().
				Str("index", kind.Index()).
				Int("hits", len(res.Hits)).
				Int64("total", res.Total).
				Int("skipped", res.Skipped).
				Msg("Fetched")
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// process normalizes and persists one batch. clean is false when any hit
// was rejected or lacked a source, or any record failed to persist.
func (s *Scheduler) process(ctx context.Context, kind models.Kind, res *client.SearchResult) (repository.BatchResult, bool, error) {
	records, rejected := models.NormalizeAll(kind, res.Hits)
	for _, err := range rejected {
		metrics.RecordError("transform", kind.String())
		log.Warn().Err(err).Str("table", kind.Table()).Msg("Dropped malformed hit")
	}
	if res.Skipped > 0 {
		metrics.RecordError("transform", kind.String())
		log.Warn().Int("count", res.Skipped).Str("table", kind.Table()).Msg("Dropped hits without _source")
	}

	batch, err := s.sink.Persist(ctx, kind, records)
	if err != nil {
		return batch, false, fmt.Errorf("failed to persist %s: %w", kind.Table(), err)
	}

	if s.exportDir != "" {
		if err := export.WriteRecords(s.exportDir, kind, records); err != nil {
			metrics.RecordError("export", kind.Table())
			log.Error().Err(err).Str("table", kind.Table()).Msg("Failed to export records")
		}
	}

	return batch, len(rejected) == 0 && res.Skipped == 0 && len(batch.Failed) == 0, nil
}

func (s *Scheduler) settle(ctx context.Context, report Report) Report {
	report.SettledAt = s.now()
	report.NextRunAt = s.nextRun(report.SettledAt, report.Outcome == status.OutcomeFailure)

	settled, next := report.SettledAt, report.NextRunAt
	s.tracker.Update(func(snap *status.Snapshot) {
		snap.LastOutcome = report.Outcome
		snap.NextRunAt = &next
		snap.Batches = summarize(report.Batches)
		if report.Err != nil {
			snap.LastError = report.Err.Error()
			snap.ConsecutiveFailures++
			return
		}
		snap.LastError = ""
		snap.LastSuccessAt = &settled
		snap.ConsecutiveFailures = 0
	})
	s.tracker.SetPhase(status.PhaseIdle)

	metrics.RecordCycle(string(report.Outcome), report.SettledAt.Sub(report.StartedAt).Seconds())

	event := log.Info()
	if report.Err != nil {
		event = log.Warn().Err(report.Err)
	}
	event.
		Str("outcome", string(report.Outcome)).
		Time("next_run_at", report.NextRunAt).
		Dur("duration", report.SettledAt.Sub(report.StartedAt)).
		Msg("Sync cycle settled")

	s.publish(ctx, report)
	return report
}

// publish hands the settled state to the optional snapshot store and stats
// refresher. It runs even when ctx is done so a shutdown still records the
// last outcome.
func (s *Scheduler) publish(ctx context.Context, report Report) {
	pubCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()

	if s.store != nil {
		if err := s.store.SaveSnapshot(pubCtx, s.tracker.Snapshot()); err != nil {
			log.Warn().Err(err).Msg("Failed to cache status snapshot")
		}
	}

	if s.stats != nil && report.Outcome != status.OutcomeFailure {
		s.stats.RefreshStats(pubCtx)
	}
}

// nextRun returns when the next cycle starts. Failures back off
// exponentially when configured, never waiting longer than the interval.
func (s *Scheduler) nextRun(settled time.Time, failed bool) time.Time {
	if s.backoff == nil {
		return s.schedule.Next(settled)
	}
	if !failed {
		s.backoff.Reset()
		return s.schedule.Next(settled)
	}

	delay := s.backoff.NextBackOff()
	if delay <= 0 || delay > s.interval {
		delay = s.interval
	}
	return settled.Add(delay)
}

func summarize(batches []repository.BatchResult) []status.BatchSummary {
	if len(batches) == 0 {
		return nil
	}
	out := make([]status.BatchSummary, 0, len(batches))
	for _, b := range batches {
		summary := status.BatchSummary{
			Table:     b.Table,
			Attempted: b.Attempted,
			Succeeded: b.Succeeded,
		}
		if len(b.Failed) > 0 {
			summary.FailedIDs = b.FailedIDs()
		}
		out = append(out, summary)
	}
	return out
}

func tableNames(kinds []models.Kind) []string {
	names := make([]string, len(kinds))
	for i, k := range kinds {
		names[i] = k.Table()
	}
	return names
}
