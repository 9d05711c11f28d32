package engine_test

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/cadence/internal/compiler"
	"github.com/roach88/cadence/internal/engine"
	"github.com/roach88/cadence/internal/ir"
	"github.com/roach88/cadence/internal/testutil"
)

type fixture struct {
	eng    *engine.Engine
	clock  *testutil.FakeClock
	trace  *testutil.TraceRecorder
	render *testutil.RecordingRenderer
	loader *testutil.FakeLoader
	events *testutil.ManualEvents
	layout *testutil.StaticLayout
}

func newFixture(t *testing.T, opts ...engine.EngineOption) *fixture {
	t.Helper()
	f := &fixture{
		clock:  testutil.NewFakeClock(),
		trace:  &testutil.TraceRecorder{},
		render: &testutil.RecordingRenderer{},
		loader: testutil.NewFakeLoader(),
		events: &testutil.ManualEvents{},
		layout: &testutil.StaticLayout{Hidden: map[string]bool{}},
	}
	base := []engine.EngineOption{
		engine.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		engine.WithWallClock(f.clock),
		engine.WithIDs(engine.NewSequenceGenerator("id-")),
		engine.WithRecorder(f.trace),
		engine.WithRenderer(f.render),
		engine.WithLoader(f.loader),
		engine.WithEvents(f.events),
		engine.WithLayout(f.layout),
	}
	f.eng = engine.New(append(base, opts...)...)
	f.loader.Bind(f.eng)
	return f
}

func (f *fixture) add(t *testing.T, id string, spec ir.Spec) {
	t.Helper()
	_, err := f.eng.AddNode("", spec, engine.WithNodeID(id))
	require.NoError(t, err)
}

func (f *fixture) ticks(n int) {
	for i := 0; i < n; i++ {
		f.eng.Tick()
	}
}

// idle ticks until no work remains and returns the number of ticks.
func (f *fixture) idle(t *testing.T) int {
	t.Helper()
	ran, err := f.eng.RunUntilIdle(context.Background(), 0, 500)
	require.NoError(t, err)
	require.False(t, f.eng.Pending(), "engine still busy after %d ticks", ran)
	return ran
}

func (f *fixture) status(t *testing.T, node, name string) ir.Status {
	t.Helper()
	st, ok := f.eng.State(node, name)
	require.True(t, ok, "no state for %s.%s", node, name)
	return st.Status
}

func nums(vals ...float64) []ir.Value {
	out := make([]ir.Value, len(vals))
	for i, v := range vals {
		out[i] = ir.Number(v)
	}
	return out
}

func TestEngine_ConvergesInSteps(t *testing.T) {
	f := newFixture(t)
	f.add(t, "box", ir.S("x", []any{100, 4}))

	f.ticks(1)
	assert.Equal(t, ir.StatusUpdating, f.status(t, "box", "x"))
	assert.Equal(t, ir.Null{}, f.eng.Value("box", "x"))

	f.ticks(4)
	assert.Equal(t, ir.Number(100), f.eng.Value("box", "x"))
	assert.Equal(t, ir.StatusDone, f.status(t, "box", "x"))
	assert.Equal(t, nums(25, 50, 75, 100), f.render.Values("box", "x"))

	f.ticks(1)
	assert.Equal(t, ir.StatusComplete, f.status(t, "box", "x"))
	assert.False(t, f.eng.Pending())
}

func TestEngine_LiteralCompletesImmediately(t *testing.T) {
	f := newFixture(t)
	f.add(t, "box", ir.S("color", "red"))

	f.ticks(1)
	assert.Equal(t, ir.String("red"), f.eng.Value("box", "color"))
	assert.Equal(t, ir.StatusDone, f.status(t, "box", "color"))
	assert.Equal(t,
		[]ir.TraceType{ir.TraceActivate, ir.TraceDone},
		f.trace.Types("box", "color"))

	f.ticks(1)
	assert.Equal(t, ir.StatusComplete, f.status(t, "box", "color"))
}

func TestEngine_StatusNeverSkips(t *testing.T) {
	f := newFixture(t)
	f.add(t, "box", ir.S("x", []any{10, 3}))

	var seen []ir.Status
	for f.eng.Pending() {
		f.eng.Tick()
		st := f.status(t, "box", "x")
		if len(seen) == 0 || seen[len(seen)-1] != st {
			seen = append(seen, st)
		}
	}
	assert.Equal(t, []ir.Status{ir.StatusUpdating, ir.StatusDone, ir.StatusComplete}, seen)
}

func TestEngine_CyclesReResolve(t *testing.T) {
	f := newFixture(t)
	f.add(t, "box", ir.S("x", ir.S(
		"value", func(s ir.Scope) any { return s.Cycle * 10 },
		"cycles", 2,
	)))

	f.idle(t)
	assert.Equal(t, nums(0, 10, 20), f.render.Values("box", "x"))

	st, ok := f.eng.State("box", "x")
	require.True(t, ok)
	assert.Equal(t, 1, st.ExecutionCount)
	assert.Equal(t, 2, st.Cycle)
}

func TestEngine_ListVisitsEveryEntry(t *testing.T) {
	f := newFixture(t)
	f.add(t, "box", ir.S("x", ir.S("list", []any{0, 50, 100}, "steps", 2)))

	f.idle(t)
	assert.Equal(t, nums(0, 25, 50, 75, 100), f.render.Values("box", "x"))
}

func TestEngine_ListPerCycleSteps(t *testing.T) {
	f := newFixture(t)
	f.add(t, "box", ir.S("x", ir.S("list", []any{0, 10, 30}, "steps", []any{1, 2})))

	f.idle(t)
	assert.Equal(t, nums(0, 10, 20, 30), f.render.Values("box", "x"))
}

func TestEngine_HintedArrayBecomesList(t *testing.T) {
	f := newFixture(t)
	f.add(t, "box", ir.S("x", []any{[]any{1, 2, 3}, 0}))

	f.idle(t)
	assert.Equal(t, nums(1, 2, 3), f.render.Values("box", "x"))
}

func TestEngine_ComputedResultIsResolvedAgain(t *testing.T) {
	f := newFixture(t)
	f.add(t, "box", ir.S("x", func(ir.Scope) any { return []any{8, 2} }))

	f.idle(t)
	assert.Equal(t, nums(4, 8), f.render.Values("box", "x"))
}

func TestEngine_ResolutionIsIdempotent(t *testing.T) {
	f := newFixture(t)
	double := func(s ir.Scope) any { return s.Value("base").(ir.Number) * 2 }
	f.add(t, "box", ir.S("base", 4, "w", double))
	f.idle(t)
	require.Equal(t, ir.Number(8), f.eng.Value("box", "w"))

	require.NoError(t, f.eng.AddDirectives("box", ir.S("w", double)))
	f.idle(t)
	assert.Equal(t, ir.Number(8), f.eng.Value("box", "w"))
	assert.Equal(t, nums(8, 8), f.render.Values("box", "w"))
}

func TestEngine_EqualValueSkipsSteps(t *testing.T) {
	f := newFixture(t)
	f.add(t, "box", ir.S("x", 100))
	f.idle(t)

	require.NoError(t, f.eng.AddDirectives("box", ir.S("x", []any{100, 5})))
	f.ticks(1)

	assert.Equal(t, ir.StatusDone, f.status(t, "box", "x"))
	for _, ev := range f.trace.For("box", "x") {
		assert.NotEqual(t, ir.TraceStep, ev.Type, "equal target must not step")
	}
}

func TestEngine_IntervalPacing(t *testing.T) {
	f := newFixture(t)
	f.add(t, "box", ir.S("x", []any{100, 2, 50}))

	f.ticks(2)
	assert.Empty(t, f.render.Values("box", "x"), "no step before the interval elapses")

	f.clock.Advance(50 * time.Millisecond)
	f.ticks(1)
	assert.Equal(t, nums(50), f.render.Values("box", "x"))

	// A long gap consumes several steps at once.
	f.clock.Advance(120 * time.Millisecond)
	f.ticks(1)
	assert.Equal(t, nums(50, 100), f.render.Values("box", "x"))
	assert.Equal(t, ir.StatusDone, f.status(t, "box", "x"))
}

func TestEngine_IntervalGatesSteps(t *testing.T) {
	f := newFixture(t)
	f.add(t, "box", ir.S("x", ir.S("value", 100, "steps", 4, "interval", 100)))
	f.ticks(1)

	f.ticks(3)
	f.clock.Advance(99 * time.Millisecond)
	f.ticks(1)
	assert.Empty(t, f.render.Values("box", "x"), "ticks inside one interval advance nothing")

	f.clock.Advance(time.Millisecond)
	f.ticks(1)
	assert.Equal(t, nums(25), f.render.Values("box", "x"))

	// 250ms covers two whole intervals. The remaining 50ms is dropped.
	f.clock.Advance(250 * time.Millisecond)
	f.ticks(1)
	assert.Equal(t, nums(25, 75), f.render.Values("box", "x"))

	f.clock.Advance(50 * time.Millisecond)
	f.ticks(1)
	assert.Equal(t, nums(25, 75), f.render.Values("box", "x"))
	assert.Equal(t, ir.StatusUpdating, f.status(t, "box", "x"))

	f.clock.Advance(50 * time.Millisecond)
	f.ticks(1)
	assert.Equal(t, nums(25, 75, 100), f.render.Values("box", "x"))
	assert.Equal(t, ir.StatusDone, f.status(t, "box", "x"))

	steps := 0
	for _, typ := range f.trace.Types("box", "x") {
		if typ == ir.TraceStep {
			steps++
		}
	}
	assert.Equal(t, 3, steps)
}

func TestEngine_ImmediateContinuationReceivesPrev(t *testing.T) {
	f := newFixture(t)
	f.add(t, "box", ir.S(
		"a", []any{10, 2},
		"b$", func(s ir.Scope) any { return s.Prev },
	))

	f.ticks(3)
	_, started := f.eng.State("box", "b")
	assert.True(t, started, "b activates once a is done")

	f.idle(t)
	assert.Equal(t, ir.Number(10), f.eng.Value("box", "b"))
	assert.Less(t, f.trace.First("box", "a", ir.TraceDone), f.trace.First("box", "b", ir.TraceActivate))
}

func TestEngine_BarrierWaitsForEveryEarlierDirective(t *testing.T) {
	f := newFixture(t)
	f.add(t, "box", ir.S(
		"a", []any{100, 5},
		"b", []any{50, 2},
		"c$$", 1,
	))

	f.idle(t)
	assert.Equal(t, ir.Number(1), f.eng.Value("box", "c"))

	cStart := f.trace.First("box", "c", ir.TraceActivate)
	require.NotZero(t, cStart)
	assert.Less(t, f.trace.First("box", "a", ir.TraceComplete), cStart)
	assert.Less(t, f.trace.First("box", "b", ir.TraceComplete), cStart)
}

func TestEngine_BarrierIgnoresDormantDirectives(t *testing.T) {
	f := newFixture(t)
	f.add(t, "box", ir.S(
		"a", 1,
		"onClick", ir.S("value", 1, "steps", 3),
		"_glow", []any{1, 2},
		"z$$", true,
	))

	f.idle(t)
	assert.Equal(t, ir.Bool(true), f.eng.Value("box", "z"))
	_, ran := f.eng.State("box", "glow")
	assert.False(t, ran)
}

func TestEngine_EventDirective(t *testing.T) {
	f := newFixture(t)
	f.add(t, "btn", ir.S("onClick", ir.S("value", 1)))

	f.ticks(3)
	_, ran := f.eng.State("btn", "onClick")
	assert.False(t, ran, "event directives wait for the event")

	f.events.Fire("btn", "click")
	f.ticks(1)
	assert.Equal(t, ir.Number(1), f.eng.Value("btn", "onClick"))
}

func TestEngine_InactiveUntilActivated(t *testing.T) {
	f := newFixture(t)
	f.add(t, "box", ir.S("_glow", 5))

	f.ticks(2)
	assert.Equal(t, ir.Null{}, f.eng.Value("box", "glow"))

	require.NoError(t, f.eng.Activate("box", "glow"))
	f.ticks(1)
	assert.Equal(t, ir.Number(5), f.eng.Value("box", "glow"))

	assert.True(t, engine.IsUnknownDirective(f.eng.Activate("box", "nope")))
	assert.True(t, engine.IsUnknownNode(f.eng.Activate("ghost", "glow")))
}

func TestEngine_EligibilityAndAlwaysResolve(t *testing.T) {
	f := newFixture(t)
	f.layout.Hidden["box"] = true
	f.add(t, "box", ir.S("x", 5, "y+", 6))

	f.ticks(2)
	assert.Equal(t, ir.Null{}, f.eng.Value("box", "x"))
	assert.Equal(t, ir.Number(6), f.eng.Value("box", "y"))

	f.layout.Hidden["box"] = false
	f.ticks(1)
	assert.Equal(t, ir.Number(5), f.eng.Value("box", "x"))
}

func TestEngine_ScopeCarriesGeometry(t *testing.T) {
	f := newFixture(t)
	f.layout.Geometries = map[string]ir.Geometry{"box": {Width: 300}}
	f.add(t, "box", ir.S("half", func(s ir.Scope) any { return s.Geometry.Width / 2 }))

	f.idle(t)
	assert.Equal(t, ir.Number(150), f.eng.Value("box", "half"))
}

func TestEngine_Loop(t *testing.T) {
	f := newFixture(t)
	runs := 0
	f.add(t, "box", ir.S("x", ir.S(
		"value", func(ir.Scope) any { runs++; return runs },
		"loop", func(ir.Scope) bool { return runs < 3 },
	)))

	f.idle(t)
	assert.Equal(t, 3, runs)
	st, _ := f.eng.State("box", "x")
	assert.Equal(t, 3, st.ExecutionCount)
	assert.Equal(t, ir.Number(3), f.eng.Value("box", "x"))
}

func TestEngine_EnabledOnGatesExecution(t *testing.T) {
	f := newFixture(t)
	open := false
	f.add(t, "box", ir.S("x", ir.S(
		"value", 9,
		"enabledOn", func(ir.Scope) bool { return open },
	)))

	f.ticks(3)
	assert.Equal(t, ir.StatusActive, f.status(t, "box", "x"))

	open = true
	f.ticks(1)
	assert.Equal(t, ir.Number(9), f.eng.Value("box", "x"))
}

func TestEngine_Callbacks(t *testing.T) {
	f := newFixture(t)
	var events []string
	f.add(t, "box", ir.S("x", ir.S(
		"value", 2,
		"steps", 2,
		"onValueChange", func(n ir.Notice) { events = append(events, "change:"+ir.Format(n.Value)) },
		"onStep", func(n ir.Notice) { events = append(events, "step") },
		"onStepsEnd", func() { events = append(events, "stepsEnd") },
		"onEnd", func(n ir.Notice) { events = append(events, "end") },
	)))

	f.idle(t)
	assert.Equal(t, []string{"change:1", "step", "change:2", "step", "stepsEnd", "end"}, events)
}

func TestEngine_NodeLevelStepEndHooks(t *testing.T) {
	f := newFixture(t)
	var got []string
	f.add(t, "box", ir.S(
		"x", []any{4, 2},
		"onXStep", func(n ir.Notice) { got = append(got, "step") },
		"onXEnd", func(n ir.Notice) { got = append(got, "end") },
	))

	f.idle(t)
	assert.Equal(t, []string{"step", "step", "end"}, got)
}

func TestEngine_PanicsAreRecovered(t *testing.T) {
	f := newFixture(t)
	f.add(t, "box", ir.S(
		"x", func(ir.Scope) any { panic("boom") },
		"y", ir.S("value", 1, "onEnd", func() { panic("callback boom") }),
		"z", 3,
	))

	require.NotPanics(t, func() { f.idle(t) })
	assert.Equal(t, ir.StatusComplete, f.status(t, "box", "x"))
	assert.Equal(t, ir.Number(1), f.eng.Value("box", "y"))
	assert.Equal(t, ir.Number(3), f.eng.Value("box", "z"))
}

func TestEngine_ResolveDepthIsBounded(t *testing.T) {
	f := newFixture(t, engine.WithMaxResolveDepth(4))
	var forever ir.ComputedFunc
	forever = func(ir.Scope) any { return forever }
	f.add(t, "box", ir.S("x", forever, "y", 2))

	f.idle(t)
	assert.Equal(t, ir.Null{}, f.eng.Value("box", "x"))
	assert.Equal(t, ir.Number(2), f.eng.Value("box", "y"))
}

func TestEngine_ResolvingReportsCurrentDirective(t *testing.T) {
	f := newFixture(t)
	var node, name string
	f.add(t, "box", ir.S("x", func(ir.Scope) any {
		node, name, _ = f.eng.Resolving()
		return 1
	}))

	f.idle(t)
	assert.Equal(t, "box", node)
	assert.Equal(t, "x", name)
	_, _, ok := f.eng.Resolving()
	assert.False(t, ok)
}

func TestEngine_ChildrenCreation(t *testing.T) {
	f := newFixture(t)
	f.add(t, "list", ir.S("items", []any{
		ir.S("width", 10),
		ir.S("width", 20),
	}))

	f.ticks(1)
	n, ok := f.eng.Node("list")
	require.True(t, ok)
	kids := n.Children()
	require.Len(t, kids, 2)
	assert.Equal(t, "id-1", kids[0].ID)
	assert.Equal(t, "items", kids[0].CreatedBy)
	assert.Equal(t, ir.StatusDone, f.status(t, "list", "items"))

	f.ticks(1)
	assert.Equal(t, ir.StatusDone, f.status(t, "list", "items"), "waits for children")

	f.idle(t)
	assert.Equal(t, ir.StatusComplete, f.status(t, "list", "items"))
	assert.Equal(t, ir.Number(20), f.eng.Value("id-2", "width"))

	st, _ := f.eng.State("list", "items")
	assert.Equal(t, ir.Array{ir.String("id-1"), ir.String("id-2")}, st.Value)
}

func TestEngine_ChildrenCyclesOneBatchPerTick(t *testing.T) {
	f := newFixture(t)
	f.add(t, "list", ir.S("children", ir.S(
		"value", func(s ir.Scope) any { return []any{ir.S("x", s.Cycle)} },
		"cycles", 2,
	)))

	f.ticks(1)
	n, _ := f.eng.Node("list")
	assert.Len(t, n.Children(), 1)

	f.idle(t)
	require.Len(t, n.Children(), 3)
	assert.Equal(t, ir.Number(2), n.Children()[2].Value("x"))
}

func TestEngine_FetchFanOutQueuesInputs(t *testing.T) {
	f := newFixture(t)
	f.loader.Respond("/a", true, "A")
	f.loader.Respond("/b", true, "B")
	f.add(t, "feed", ir.S(
		"fetch", []any{"/a", "/b"},
		"show$", ir.S("value", func(s ir.Scope) any { return s.Prev }, "steps", 0),
	))

	f.idle(t)
	assert.Equal(t, []ir.Value{ir.String("A"), ir.String("B")}, f.render.Values("feed", "show"))
	assert.Equal(t, ir.Array{ir.String("A"), ir.String("B")}, f.eng.Value("feed", "fetch"))
	assert.Contains(t, f.trace.Types("feed", "show"), ir.TraceQueued)
	assert.True(t, f.eng.IsLoadingComplete("feed", "fetch"))
	assert.True(t, f.eng.IsLoadingSuccessful("feed", "fetch"))

	reqs := f.loader.Requests()
	require.Len(t, reqs, 2)
	assert.Equal(t, "feed", reqs[0].NodeID)
	assert.Equal(t, "/b", reqs[1].URL)
}

func TestEngine_FetchWaitsForEveryResult(t *testing.T) {
	f := newFixture(t)
	f.add(t, "feed", ir.S("fetch", "/slow"))

	f.ticks(3)
	assert.Equal(t, ir.StatusFetching, f.status(t, "feed", "fetch"))
	assert.False(t, f.eng.IsLoadingComplete("feed", "fetch"))

	require.Equal(t, 1, f.loader.Resolve("/slow", true, map[string]any{"n": 1}))
	f.ticks(1)
	assert.Equal(t, ir.StatusDone, f.status(t, "feed", "fetch"))
	assert.Equal(t, ir.Object{"n": ir.Number(1)}, f.eng.Value("feed", "fetch"))
	assert.True(t, f.eng.IsLoadingComplete("feed", "fetch"))
}

func TestEngine_FetchErrors(t *testing.T) {
	f := newFixture(t)
	var errMsg string
	f.loader.Respond("/bad", false, "boom")
	f.add(t, "feed", ir.S("fetch", ir.S(
		"fetch", "/bad",
		"onError", func(n ir.Notice) { errMsg = n.Err },
	)))

	f.idle(t)
	assert.Equal(t, "boom", errMsg)
	assert.Equal(t, ir.Object{"error": ir.String("boom")}, f.eng.Value("feed", "fetch"))
	assert.Equal(t, 1, f.eng.ErrorCount())
	assert.True(t, f.eng.IsLoadingComplete("feed", "fetch"))
	assert.False(t, f.eng.IsLoadingSuccessful("feed", "fetch"))
}

func TestEngine_FetchWithoutLoader(t *testing.T) {
	eng := engine.New(
		engine.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		engine.WithIDs(engine.NewSequenceGenerator("f-")),
	)
	_, err := eng.AddNode("", ir.S("fetch", "/x"), engine.WithNodeID("n"))
	require.NoError(t, err)

	_, err = eng.RunUntilIdle(context.Background(), 0, 20)
	require.NoError(t, err)
	assert.Equal(t, ir.Object{"error": ir.String("no loader configured")}, eng.Value("n", "fetch"))
}

func TestEngine_ImperativeOverridePausesDeclarative(t *testing.T) {
	f := newFixture(t)
	var ended ir.Notice
	f.add(t, "box", ir.S(
		"x", []any{100, 4},
		compiler.HookImperativeEnd, func(n ir.Notice) { ended = n },
	))
	f.ticks(2)
	require.Equal(t, ir.Number(25), f.eng.Value("box", "x"))

	require.NoError(t, f.eng.SetDirective("box", "x", 0, engine.WithSteps(2)))
	f.ticks(3)
	assert.Equal(t, nums(25, 12.5, 0), f.render.Values("box", "x"))
	assert.True(t, ended.Imperative)
	assert.Equal(t, "x", ended.Name)

	imp, ok := f.eng.ImperativeState("box", "x")
	require.True(t, ok)
	assert.True(t, imp.IsImperative)
	assert.Equal(t, "x", imp.OriginalName)

	f.idle(t)
	assert.Equal(t, ir.Number(100), f.eng.Value("box", "x"), "declarative resumes to its target")
	vals := f.render.Values("box", "x")
	assert.InDelta(t, 33.33, float64(vals[3].(ir.Number)), 0.01)
}

func TestEngine_ChainActivationWaitsForRunningOverride(t *testing.T) {
	f := newFixture(t)
	var notices []ir.Notice
	f.add(t, "box", ir.S(
		"a", []any{10, 2},
		"x$", ir.S("value", 50, "steps", 4, "onStep", func(n ir.Notice) { notices = append(notices, n) }),
	))
	f.ticks(1)
	require.NoError(t, f.eng.SetDirective("box", "x", 1000, engine.WithSteps(10)))

	// a finishes and activates x while the override is mid-way.
	f.ticks(4)
	decl, ok := f.eng.State("box", "x")
	require.True(t, ok)
	assert.Equal(t, ir.StatusActive, decl.Status)
	assert.True(t, decl.Paused())

	f.idle(t)
	assert.Equal(t, ir.Number(50), f.eng.Value("box", "x"))
	assert.Equal(t,
		nums(100, 200, 300, 400, 500, 600, 700, 800, 900, 1000, 762.5, 525, 287.5, 50),
		f.render.Values("box", "x"), "one writer at a time")

	require.Len(t, notices, 14)
	for i, n := range notices {
		assert.Equal(t, i < 10, n.Imperative, "notice %d", i)
	}
}

func TestEngine_EventActivationWaitsForRunningOverride(t *testing.T) {
	f := newFixture(t)
	f.add(t, "btn", ir.S("onClick", ir.S("value", 1, "steps", 2)))
	require.NoError(t, f.eng.SetDirective("btn", "onClick", 9, engine.WithSteps(3)))
	f.ticks(1)

	f.events.Fire("btn", "click")
	f.ticks(1)
	decl, ok := f.eng.State("btn", "onClick")
	require.True(t, ok)
	assert.True(t, decl.Paused())

	f.idle(t)
	vals := f.render.Values("btn", "onClick")
	require.Len(t, vals, 5)
	assert.Equal(t, ir.Number(9), vals[2], "the override finishes first")
	assert.Equal(t, ir.Number(1), f.eng.Value("btn", "onClick"))
}

func TestEngine_ImperativeSupersedes(t *testing.T) {
	f := newFixture(t)
	f.add(t, "box", ir.S("x", 1))
	f.idle(t)

	require.NoError(t, f.eng.SetDirective("box", "x", 10, engine.WithSteps(3)))
	require.NoError(t, f.eng.SetDirective("box", "x", 20))
	f.idle(t)

	assert.Equal(t, ir.Number(20), f.eng.Value("box", "x"))
	assert.Equal(t,
		[]ir.TraceType{ir.TraceImperative, ir.TraceSuperseded, ir.TraceImperative, ir.TraceDone, ir.TraceComplete},
		f.trace.Types("box", "x#imperative"))
}

func TestEngine_ImperativeRoutesToOriginalCallbacks(t *testing.T) {
	f := newFixture(t)
	var steps []ir.Notice
	f.add(t, "box", ir.S(
		"x", ir.S("value", 5, "onStep", func(n ir.Notice) { steps = append(steps, n) }),
		"y$", func(s ir.Scope) any { return s.Prev },
	))
	f.idle(t)
	steps = nil

	require.NoError(t, f.eng.SetDirective("box", "x", 9, engine.WithSteps(2), engine.WithEasing("linear")))
	f.idle(t)

	require.Len(t, steps, 2)
	assert.True(t, steps[0].Imperative)
	assert.Equal(t, ir.Number(9), f.eng.Value("box", "y"), "the chain continues from the override")
}

func TestEngine_ImperativeOnUndeclaredProperty(t *testing.T) {
	f := newFixture(t)
	f.add(t, "box", ir.S())

	require.NoError(t, f.eng.SetDirective("box", "y", "on"))
	f.ticks(1)
	assert.Equal(t, ir.String("on"), f.eng.Value("box", "y"))
	assert.True(t, engine.IsUnknownNode(f.eng.SetDirective("ghost", "y", 1)))
}

func TestEngine_PostFromAnotherGoroutine(t *testing.T) {
	f := newFixture(t)
	f.add(t, "box", ir.S("x", 1))
	f.idle(t)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		f.eng.Post(engine.Command{NodeID: "box", Name: "x", Value: 7})
	}()
	wg.Wait()

	f.idle(t)
	assert.Equal(t, ir.Number(7), f.eng.Value("box", "x"))
}

func TestEngine_RemoveNodeDiscardsSilently(t *testing.T) {
	f := newFixture(t)
	called := false
	f.add(t, "feed", ir.S("fetch", ir.S("fetch", "/slow", "onSuccess", func() { called = true })))
	f.ticks(1)

	require.NoError(t, f.eng.RemoveNode("feed"))
	assert.False(t, f.eng.Pending())
	_, ok := f.eng.Node("feed")
	assert.False(t, ok)

	f.loader.Resolve("/slow", true, "late")
	require.NotPanics(t, func() { f.ticks(2) })
	assert.False(t, called)
	assert.True(t, engine.IsUnknownNode(f.eng.RemoveNode("feed")))
}

func TestEngine_RemoveChildDetaches(t *testing.T) {
	f := newFixture(t)
	f.add(t, "root", ir.S())
	_, err := f.eng.AddNode("root", ir.S("x", []any{1, 10}), engine.WithNodeID("kid"))
	require.NoError(t, err)

	require.NoError(t, f.eng.RemoveNode("kid"))
	root, _ := f.eng.Node("root")
	assert.Empty(t, root.Children())
	assert.False(t, f.eng.Pending())
}

func TestEngine_AddNodeErrors(t *testing.T) {
	f := newFixture(t)
	f.add(t, "a", ir.S())

	_, err := f.eng.AddNode("", ir.S(), engine.WithNodeID("a"))
	var re *engine.RuntimeError
	require.ErrorAs(t, err, &re)
	assert.Equal(t, engine.ErrCodeDuplicateNode, re.Code)

	_, err = f.eng.AddNode("missing", ir.S())
	assert.True(t, engine.IsUnknownNode(err))
	assert.True(t, engine.IsUnknownNode(f.eng.AddDirectives("missing", ir.S("x", 1))))
}

func TestEngine_ControlsAreStoredNotStepped(t *testing.T) {
	f := newFixture(t)
	f.add(t, "box", ir.S("element", ir.S("tag", "div"), "x", 1))
	f.idle(t)

	n, _ := f.eng.Node("box")
	v, ok := n.Control("element")
	require.True(t, ok)
	assert.Equal(t, ir.Object{"tag": ir.String("div")}, v)
	assert.Empty(t, f.trace.For("box", "element"))
	assert.Equal(t, ir.Null{}, f.eng.Value("box", "element"))
}

func TestEngine_PrimitiveControlIsAlsoALiteral(t *testing.T) {
	f := newFixture(t)
	f.add(t, "box", ir.S("canHaveDom", true, "element", "div"))
	f.idle(t)

	assert.Equal(t, ir.Bool(true), f.eng.Value("box", "canHaveDom"))
	assert.Equal(t, ir.String("div"), f.eng.Value("box", "element"))
	assert.Equal(t, ir.StatusComplete, f.status(t, "box", "canHaveDom"))
	assert.Equal(t, []ir.Value{ir.Bool(true)}, f.render.Values("box", "canHaveDom"))

	n, _ := f.eng.Node("box")
	v, ok := n.Control("canHaveDom")
	require.True(t, ok)
	assert.Equal(t, ir.Bool(true), v)
}

func TestEngine_TraceSeqIsStrictlyIncreasing(t *testing.T) {
	f := newFixture(t)
	f.add(t, "a", ir.S("x", []any{3, 3}, "y$", 1))
	f.add(t, "b", ir.S("x", []any{1, 2}))
	f.idle(t)

	require.NotEmpty(t, f.trace.Events)
	for i := 1; i < len(f.trace.Events); i++ {
		assert.Greater(t, f.trace.Events[i].Seq, f.trace.Events[i-1].Seq)
	}
}

type acceptAnimator struct {
	prop    string
	batches map[string][]engine.Transition
}

func (a *acceptAnimator) Accepts(_, name string) bool { return name == a.prop }

func (a *acceptAnimator) Animate(nodeID string, batch []engine.Transition) {
	a.batches[nodeID] = append(a.batches[nodeID], batch...)
}

func TestEngine_AnimatorTakesAcceptedProperties(t *testing.T) {
	anim := &acceptAnimator{prop: "opacity", batches: map[string][]engine.Transition{}}
	f := newFixture(t, engine.WithAnimator(anim))
	f.add(t, "box", ir.S("opacity", []any{1, 4}, "x", []any{2, 2}))

	f.idle(t)
	require.Len(t, anim.batches["box"], 1)
	tr := anim.batches["box"][0]
	assert.Equal(t, "opacity", tr.Name)
	assert.Equal(t, ir.Number(1), tr.To)
	assert.Equal(t, 4, tr.Steps)

	assert.Empty(t, f.render.Values("box", "opacity"))
	assert.Equal(t, ir.Number(1), f.eng.Value("box", "opacity"))
	assert.Len(t, f.render.Values("box", "x"), 2)
}

type countingObserver struct{ stats []engine.TickStats }

func (o *countingObserver) ObserveTick(s engine.TickStats) { o.stats = append(o.stats, s) }

func TestEngine_TickObserver(t *testing.T) {
	obs := &countingObserver{}
	f := newFixture(t, engine.WithObserver(obs))
	f.add(t, "box", ir.S("x", 1))

	ran := f.idle(t)
	require.Len(t, obs.stats, ran)
	assert.Equal(t, int64(1), obs.stats[0].Tick)
	assert.True(t, obs.stats[0].Pending)
	assert.False(t, obs.stats[len(obs.stats)-1].Pending)
	assert.Equal(t, int64(ran), f.eng.TickCount())
}

func TestEngine_RunStopsOnCancel(t *testing.T) {
	f := newFixture(t)
	f.add(t, "box", ir.S("x", 1))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- f.eng.Run(ctx, time.Millisecond) }()

	time.Sleep(20 * time.Millisecond)
	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("Run did not stop")
	}
	assert.False(t, f.eng.Post(engine.Command{NodeID: "box", Name: "x", Value: 2}), "queue closed after Run returns")
}
