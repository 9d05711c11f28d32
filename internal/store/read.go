package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/roach88/cadence/internal/ir"
)

// ErrRunNotFound is returned when a run id has no row.
var ErrRunNotFound = errors.New("run not found")

// GetRun returns a single run.
func (s *Store) GetRun(ctx context.Context, runID string) (Run, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, label, spec_digest, engine_version, trace_version, ticks, trace_digest, finished
		FROM runs
		WHERE id = ?
	`, runID)

	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Run{}, fmt.Errorf("get run %s: %w", runID, ErrRunNotFound)
	}
	if err != nil {
		return Run{}, fmt.Errorf("get run %s: %w", runID, err)
	}
	return run, nil
}

// ListRuns returns every run ordered by id.
//
// Returns an empty slice (not nil) when the store holds no runs.
func (s *Store) ListRuns(ctx context.Context) ([]Run, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, label, spec_digest, engine_version, trace_version, ticks, trace_digest, finished
		FROM runs
		ORDER BY id COLLATE BINARY ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	runs := []Run{}
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate runs: %w", err)
	}
	return runs, nil
}

// TraceFilter narrows ReadTraceFiltered. Empty fields match everything.
type TraceFilter struct {
	NodeID string
	Name   string
	Type   ir.TraceType
}

// ReadTrace returns all events of a run ordered by seq.
//
// Returns an empty slice (not nil) if the run has no events.
func (s *Store) ReadTrace(ctx context.Context, runID string) ([]ir.TraceEvent, error) {
	return s.ReadTraceFiltered(ctx, runID, TraceFilter{})
}

// ReadTraceFiltered returns the events of a run matching filter, ordered
// by seq.
func (s *Store) ReadTraceFiltered(ctx context.Context, runID string, filter TraceFilter) ([]ir.TraceEvent, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT seq, tick, node_id, name, type, status, step, steps, cycle, value
		FROM trace_events
		WHERE run_id = ?
		  AND (? = '' OR node_id = ?)
		  AND (? = '' OR name = ?)
		  AND (? = '' OR type = ?)
		ORDER BY seq ASC
	`,
		runID,
		filter.NodeID, filter.NodeID,
		filter.Name, filter.Name,
		string(filter.Type), string(filter.Type),
	)
	if err != nil {
		return nil, fmt.Errorf("query trace: %w", err)
	}
	defer rows.Close()

	events := []ir.TraceEvent{}
	for rows.Next() {
		ev, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		events = append(events, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate trace: %w", err)
	}
	return events, nil
}

// CountEvents returns how many events of the given type a run holds.
// An empty type counts every event.
func (s *Store) CountEvents(ctx context.Context, runID string, typ ir.TraceType) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM trace_events
		WHERE run_id = ? AND (? = '' OR type = ?)
	`, runID, string(typ), string(typ)).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count events: %w", err)
	}
	return n, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(row scanner) (Run, error) {
	var run Run
	var finished int
	if err := row.Scan(
		&run.ID,
		&run.Label,
		&run.SpecDigest,
		&run.EngineVersion,
		&run.TraceVersion,
		&run.Ticks,
		&run.TraceDigest,
		&finished,
	); err != nil {
		return Run{}, err
	}
	run.Finished = finished != 0
	return run, nil
}

func scanEvent(row scanner) (ir.TraceEvent, error) {
	var (
		ev        ir.TraceEvent
		typ       string
		status    string
		valueJSON string
	)
	if err := row.Scan(
		&ev.Seq,
		&ev.Tick,
		&ev.NodeID,
		&ev.Name,
		&typ,
		&status,
		&ev.Step,
		&ev.Steps,
		&ev.Cycle,
		&valueJSON,
	); err != nil {
		return ir.TraceEvent{}, fmt.Errorf("scan event: %w", err)
	}
	ev.Type = ir.TraceType(typ)
	ev.Status = ir.Status(status)

	val, err := ir.UnmarshalValue([]byte(valueJSON))
	if err != nil {
		return ir.TraceEvent{}, fmt.Errorf("unmarshal event %d value: %w", ev.Seq, err)
	}
	ev.Value = val
	return ev, nil
}
