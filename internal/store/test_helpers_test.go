package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/roach88/cadence/internal/ir"
)

// createTestStore opens a fresh store under t.TempDir.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

// createTestRun inserts a run with the given id.
func createTestRun(t *testing.T, s *Store, id string) {
	t.Helper()
	require.NoError(t, s.BeginRun(context.Background(), Run{ID: id, Label: "test"}))
}

// createTestEvent builds an event with enough fields to round-trip.
func createTestEvent(seq int64, nodeID, name string, typ ir.TraceType, v ir.Value) ir.TraceEvent {
	return ir.TraceEvent{
		Seq:    seq,
		Tick:   seq,
		NodeID: nodeID,
		Name:   name,
		Type:   typ,
		Status: ir.StatusActive,
		Value:  v,
	}
}
