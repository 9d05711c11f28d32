package store

import (
	"context"
	"log/slog"
	"sync"

	"github.com/roach88/cadence/internal/ir"
)

// RunRecorder writes engine trace events into one run. It satisfies
// engine.Recorder; write failures are logged and the first one is kept
// for Err so the caller can fail the run after it stops.
type RunRecorder struct {
	store  *Store
	runID  string
	logger *slog.Logger

	mu      sync.Mutex
	err     error
	written int
}

// Recorder returns a RunRecorder bound to runID. The run must already
// exist (see BeginRun).
func (s *Store) Recorder(runID string, logger *slog.Logger) *RunRecorder {
	if logger == nil {
		logger = slog.Default()
	}
	return &RunRecorder{store: s, runID: runID, logger: logger}
}

// Record persists ev.
func (r *RunRecorder) Record(ev ir.TraceEvent) {
	err := r.store.WriteEvent(context.Background(), r.runID, ev)

	r.mu.Lock()
	defer r.mu.Unlock()
	if err != nil {
		if r.err == nil {
			r.err = err
		}
		r.logger.Error("trace write failed",
			"run_id", r.runID,
			"seq", ev.Seq,
			"error", err)
		return
	}
	r.written++
}

// RunID returns the run this recorder writes to.
func (r *RunRecorder) RunID() string { return r.runID }

// Written returns the number of events persisted so far.
func (r *RunRecorder) Written() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.written
}

// Err returns the first write failure, if any.
func (r *RunRecorder) Err() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.err
}
