package harness

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/cadence/internal/ir"
	"github.com/roach88/cadence/internal/store"
)

func sampleTrace() []ir.TraceEvent {
	return []ir.TraceEvent{
		{Seq: 1, NodeID: "box", Name: "x", Type: ir.TraceActivate},
		{Seq: 2, Tick: 1, NodeID: "box", Name: "x", Type: ir.TraceDone, Value: ir.Number(5)},
		{Seq: 3, Tick: 1, NodeID: "box", Name: "y", Type: ir.TraceActivate},
		{Seq: 4, Tick: 2, NodeID: "box", Name: "y", Type: ir.TraceStep, Step: 1, Steps: 2},
		{Seq: 5, Tick: 3, NodeID: "box", Name: "y", Type: ir.TraceStep, Step: 2, Steps: 2},
	}
}

func intPtr(n int) *int { return &n }

func TestAssertTraceOrder_InOrder(t *testing.T) {
	a := Assertion{Type: AssertTraceOrder, Events: []string{"box.x:done", "box.y:step"}}
	assert.NoError(t, assertTraceOrder(sampleTrace(), a))
}

func TestAssertTraceOrder_WrongOrder(t *testing.T) {
	a := Assertion{Type: AssertTraceOrder, Events: []string{"box.y:activate", "box.x:done"}}
	err := assertTraceOrder(sampleTrace(), a)
	require.Error(t, err)

	var assertErr *AssertionError
	require.ErrorAs(t, err, &assertErr)
	assert.Equal(t, AssertTraceOrder, assertErr.Type)
	assert.Contains(t, assertErr.Actual, "box.y:activate (seq 3) should be before box.x:done (seq 2)")
}

func TestAssertTraceOrder_Missing(t *testing.T) {
	a := Assertion{Type: AssertTraceOrder, Events: []string{"box.x:done", "box.z:done"}}
	err := assertTraceOrder(sampleTrace(), a)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing event: box.z:done")
}

func TestAssertTraceOrder_UsesFirstOccurrence(t *testing.T) {
	a := Assertion{Type: AssertTraceOrder, Events: []string{"box.y:step", "box.y:activate"}}
	assert.Error(t, assertTraceOrder(sampleTrace(), a))
}

func TestAssertTraceCount(t *testing.T) {
	a := Assertion{Type: AssertTraceCount, Node: "box", Name: "y", Trace: "step", Count: intPtr(2)}
	assert.NoError(t, assertTraceCount(sampleTrace(), a))

	a.Count = intPtr(3)
	err := assertTraceCount(sampleTrace(), a)
	require.Error(t, err)

	var assertErr *AssertionError
	require.ErrorAs(t, err, &assertErr)
	assert.Equal(t, "2 times", assertErr.Actual)
	assert.Len(t, assertErr.Trace, 3, "trace is narrowed to the directive")
}

func TestAssertionError_Format(t *testing.T) {
	err := &AssertionError{
		Type:     AssertValue,
		Expected: "box.x = 1",
		Actual:   "2",
		Trace:    sampleTrace()[1:2],
	}
	msg := err.Error()
	assert.Contains(t, msg, "Assertion failed: value")
	assert.Contains(t, msg, "Expected: box.x = 1")
	assert.Contains(t, msg, "Actual: 2")
	assert.Contains(t, msg, "[2] tick 1 box.x done step 0/0 cycle 0 = 5")
}

func TestAssertStored(t *testing.T) {
	st, err := store.Open(":memory:")
	require.NoError(t, err)
	defer st.Close()

	ctx := context.Background()
	require.NoError(t, st.BeginRun(ctx, store.Run{ID: "r1"}))
	for _, ev := range sampleTrace() {
		require.NoError(t, st.WriteEvent(ctx, "r1", ev))
	}

	actx := &AssertionContext{Ctx: ctx, Store: st, RunID: "r1"}
	assert.NoError(t, assertStored(actx, Assertion{Type: AssertStored, Count: intPtr(5)}))
	assert.NoError(t, assertStored(actx, Assertion{Type: AssertStored, Trace: "step", Count: intPtr(2)}))

	err = assertStored(actx, Assertion{Type: AssertStored, Trace: "done", Count: intPtr(4)})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "4 stored done events")
}

func TestEvaluateAssertions_CollectsEveryFailure(t *testing.T) {
	result := &Result{Trace: sampleTrace()}
	assertions := []Assertion{
		{Type: AssertTraceOrder, Events: []string{"box.x:done", "box.y:step"}},
		{Type: AssertTraceCount, Node: "box", Name: "x", Trace: "done", Count: intPtr(2)},
		{Type: AssertTraceOrder, Events: []string{"box.q:done"}},
	}
	errs := EvaluateAssertions(result, assertions, &AssertionContext{Ctx: context.Background()})
	require.Len(t, errs, 2)
	assert.Contains(t, errs[0], "assertion 1 (trace_count)")
	assert.Contains(t, errs[1], "assertion 2 (trace_order)")
}
