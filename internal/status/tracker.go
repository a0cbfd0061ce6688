// Package status holds the sync agent's observable state and serves it over
// HTTP.
package status

import (
	"sync/atomic"
	"time"

	"recon_sync/ingestion/internal/metrics"
)

// Phase is the current phase of the sync cycle
type Phase string

const (
	// PhaseIdle means no cycle is running
	PhaseIdle Phase = "IDLE"
	// PhaseDownloading means the cycle is fetching from the search index
	PhaseDownloading Phase = "DOWNLOADING"
	// PhaseProcessing means the cycle is transforming and persisting records
	PhaseProcessing Phase = "PROCESSING"
)

var allPhases = []string{string(PhaseIdle), string(PhaseDownloading), string(PhaseProcessing)}

// Outcome summarizes how the last settled cycle ended
type Outcome string

const (
	OutcomeNever   Outcome = "never"
	OutcomeSuccess Outcome = "success"
	// OutcomePartial means every fetch succeeded but some records failed to persist
	OutcomePartial Outcome = "partial"
	OutcomeFailure Outcome = "failure"
)

// BatchSummary is the persisted result for one table in the last cycle
type BatchSummary struct {
	Table     string   `json:"table"`
	Attempted int      `json:"attempted"`
	Succeeded int      `json:"succeeded"`
	FailedIDs []string `json:"failedIds,omitempty"`
}

// Snapshot is a point-in-time copy of the agent's state
type Snapshot struct {
	CurrentState        Phase          `json:"currentState"`
	LastOutcome         Outcome        `json:"lastOutcome"`
	LastError           string         `json:"lastError,omitempty"`
	LastAttemptAt       *time.Time     `json:"lastAttemptAt,omitempty"`
	LastSuccessAt       *time.Time     `json:"lastSuccessAt,omitempty"`
	NextRunAt           *time.Time     `json:"nextRunAt,omitempty"`
	ConsecutiveFailures int            `json:"consecutiveFailures"`
	Batches             []BatchSummary `json:"batches,omitempty"`
}

// Tracker owns the snapshot. It is written by the sync cycle only and read
// concurrently by the status handler; every write swaps in a fresh copy.
type Tracker struct {
	snap atomic.Pointer[Snapshot]
}

// NewTracker returns a tracker in the idle phase
func NewTracker() *Tracker {
	t := &Tracker{}
	t.snap.Store(&Snapshot{CurrentState: PhaseIdle, LastOutcome: OutcomeNever})
	metrics.SetPhase(string(PhaseIdle), allPhases)
	return t
}

// Phase returns the current phase
func (t *Tracker) Phase() Phase {
	return t.snap.Load().CurrentState
}

// Snapshot returns a copy of the current state
func (t *Tracker) Snapshot() Snapshot {
	return t.snap.Load().clone()
}

// SetPhase moves the tracker to phase
func (t *Tracker) SetPhase(phase Phase) {
	t.Update(func(s *Snapshot) { s.CurrentState = phase })
	metrics.SetPhase(string(phase), allPhases)
}

// Update applies fn to a copy of the snapshot and publishes the result
func (t *Tracker) Update(fn func(*Snapshot)) {
	next := t.snap.Load().clone()
	fn(&next)
	t.snap.Store(&next)
}

// Restore seeds the tracker with a snapshot saved by a previous process.
// The phase is always reset to idle since no cycle survives a restart.
func (t *Tracker) Restore(s Snapshot) {
	s = s.clone()
	s.CurrentState = PhaseIdle
	s.NextRunAt = nil
	if s.LastOutcome == "" {
		s.LastOutcome = OutcomeNever
	}
	t.snap.Store(&s)
	metrics.SetPhase(string(PhaseIdle), allPhases)
}

func (s *Snapshot) clone() Snapshot {
	out := *s
	out.LastAttemptAt = cloneTime(s.LastAttemptAt)
	out.LastSuccessAt = cloneTime(s.LastSuccessAt)
	out.NextRunAt = cloneTime(s.NextRunAt)
	if s.Batches != nil {
		out.Batches = make([]BatchSummary, len(s.Batches))
		for i, b := range s.Batches {
			b.FailedIDs = append([]string(nil), b.FailedIDs...)
			out.Batches[i] = b
		}
	}
	return out
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}
