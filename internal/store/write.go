package store

import (
	"context"
	"fmt"

	"github.com/roach88/cadence/internal/ir"
)

// Run is one persisted engine session.
type Run struct {
	ID            string
	Label         string
	SpecDigest    string
	EngineVersion string
	TraceVersion  string
	Ticks         int64
	TraceDigest   string
	Finished      bool
}

// BeginRun inserts a run row. Empty version fields default to the
// running engine's versions. A duplicate id is an error: runs are never
// reopened.
func (s *Store) BeginRun(ctx context.Context, run Run) error {
	if run.ID == "" {
		return fmt.Errorf("begin run: id is required")
	}
	if run.EngineVersion == "" {
		run.EngineVersion = ir.EngineVersion
	}
	if run.TraceVersion == "" {
		run.TraceVersion = ir.TraceVersion
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO runs (id, label, spec_digest, engine_version, trace_version)
		VALUES (?, ?, ?, ?, ?)
	`, run.ID, run.Label, run.SpecDigest, run.EngineVersion, run.TraceVersion)
	if err != nil {
		return fmt.Errorf("begin run %s: %w", run.ID, err)
	}
	return nil
}

// WriteEvent appends one trace event to a run.
// Uses ON CONFLICT DO NOTHING: a (run, seq) pair is written once.
func (s *Store) WriteEvent(ctx context.Context, runID string, ev ir.TraceEvent) error {
	valueJSON, err := marshalValue(ev.Value)
	if err != nil {
		return fmt.Errorf("write event %d: %w", ev.Seq, err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO trace_events
		(run_id, seq, tick, node_id, name, type, status, step, steps, cycle, value)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(run_id, seq) DO NOTHING
	`,
		runID,
		ev.Seq,
		ev.Tick,
		ev.NodeID,
		ev.Name,
		string(ev.Type),
		string(ev.Status),
		ev.Step,
		ev.Steps,
		ev.Cycle,
		valueJSON,
	)
	if err != nil {
		return fmt.Errorf("write event %d: %w", ev.Seq, err)
	}
	return nil
}

// FinishRun records the final tick count and computes the trace digest
// from the stored events.
func (s *Store) FinishRun(ctx context.Context, runID string, ticks int64) (string, error) {
	events, err := s.ReadTrace(ctx, runID)
	if err != nil {
		return "", fmt.Errorf("finish run %s: %w", runID, err)
	}
	digest, err := ir.TraceDigest(events)
	if err != nil {
		return "", fmt.Errorf("finish run %s: %w", runID, err)
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE runs SET ticks = ?, trace_digest = ?, finished = 1
		WHERE id = ?
	`, ticks, digest, runID)
	if err != nil {
		return "", fmt.Errorf("finish run %s: %w", runID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return "", fmt.Errorf("finish run %s: %w", runID, err)
	}
	if n == 0 {
		return "", fmt.Errorf("finish run %s: %w", runID, ErrRunNotFound)
	}
	return digest, nil
}

func marshalValue(v ir.Value) (string, error) {
	data, err := ir.MarshalCanonical(v)
	if err != nil {
		return "", fmt.Errorf("marshal value: %w", err)
	}
	return string(data), nil
}
