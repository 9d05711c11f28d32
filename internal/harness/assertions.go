package harness

import (
	"context"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/roach88/cadence/internal/compiler"
	"github.com/roach88/cadence/internal/engine"
	"github.com/roach88/cadence/internal/ir"
	"github.com/roach88/cadence/internal/store"
	"github.com/roach88/cadence/internal/testutil"
)

// AssertionError is returned when an assertion fails.
// It includes detailed context to help debug the failure.
type AssertionError struct {
	Type     string          // Assertion type for categorization
	Expected string          // Human-readable expected outcome
	Actual   string          // Human-readable actual outcome
	Trace    []ir.TraceEvent // Events of the addressed directive, if any
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	if len(e.Trace) > 0 {
		fmt.Fprintf(&buf, "\nTrace:\n")
		for _, ev := range e.Trace {
			fmt.Fprintf(&buf, "  [%d] tick %d %s.%s %s step %d/%d cycle %d = %s\n",
				ev.Seq, ev.Tick, ev.NodeID, ev.Name, ev.Type, ev.Step, ev.Steps, ev.Cycle, ir.Format(ev.Value))
		}
	}
	return buf.String()
}

// AssertionContext provides what assertions read besides the trace.
type AssertionContext struct {
	Ctx      context.Context
	Store    *store.Store
	RunID    string
	Engine   *engine.Engine
	Renderer *testutil.RecordingRenderer
}

// EvaluateAssertions runs every assertion and returns failure messages.
func EvaluateAssertions(result *Result, assertions []Assertion, actx *AssertionContext) []string {
	var errs []string
	for i, a := range assertions {
		if err := evaluate(result, a, actx); err != nil {
			errs = append(errs, fmt.Sprintf("assertion %d (%s): %v", i, a.Type, err))
		}
	}
	return errs
}

func evaluate(result *Result, a Assertion, actx *AssertionContext) error {
	switch a.Type {
	case AssertValue:
		return assertValue(result.Trace, a, actx.Engine)
	case AssertStatus:
		return assertStatus(result.Trace, a, actx.Engine)
	case AssertRenders:
		return assertRenders(a, actx.Renderer)
	case AssertTraceOrder:
		return assertTraceOrder(result.Trace, a)
	case AssertTraceCount:
		return assertTraceCount(result.Trace, a)
	case AssertStored:
		return assertStored(actx, a)
	case AssertIdle:
		if actx.Engine.Pending() {
			return &AssertionError{Type: AssertIdle, Expected: "no pending work", Actual: "engine busy"}
		}
		return nil
	}
	return fmt.Errorf("unknown assertion type %q", a.Type)
}

func directiveTrace(trace []ir.TraceEvent, node, name string) []ir.TraceEvent {
	var out []ir.TraceEvent
	for _, ev := range trace {
		if ev.NodeID == node && ev.Name == name {
			out = append(out, ev)
		}
	}
	return out
}

func expectedValue(node *yaml.Node) (ir.Value, error) {
	raw, err := decodeValue(node)
	if err != nil {
		return nil, err
	}
	return compiler.LiteralOf(raw), nil
}

// assertValue compares the present value of a property (deep equality).
func assertValue(trace []ir.TraceEvent, a Assertion, eng *engine.Engine) error {
	want, err := expectedValue(&a.Expect)
	if err != nil {
		return err
	}
	got := eng.Value(a.Node, a.Name)
	if !ir.DeepEqual(want, got) {
		return &AssertionError{
			Type:     AssertValue,
			Expected: fmt.Sprintf("%s.%s = %s", a.Node, a.Name, ir.Format(want)),
			Actual:   ir.Format(got),
			Trace:    directiveTrace(trace, a.Node, a.Name),
		}
	}
	return nil
}

// assertStatus checks the lifecycle status of the declarative state.
func assertStatus(trace []ir.TraceEvent, a Assertion, eng *engine.Engine) error {
	want := ir.Status(a.Status)
	if a.Status == "idle" {
		want = ir.StatusIdle
	}
	got := ir.StatusIdle
	if st, ok := eng.State(a.Node, a.Name); ok {
		got = st.Status
	}
	if got != want {
		return &AssertionError{
			Type:     AssertStatus,
			Expected: fmt.Sprintf("%s.%s status %s", a.Node, a.Name, statusName(want)),
			Actual:   statusName(got),
			Trace:    directiveTrace(trace, a.Node, a.Name),
		}
	}
	return nil
}

func statusName(s ir.Status) string {
	if s == ir.StatusIdle {
		return "idle"
	}
	return string(s)
}

// assertRenders checks the exact sequence of values pushed to the renderer.
func assertRenders(a Assertion, r *testutil.RecordingRenderer) error {
	var want []ir.Value
	for _, item := range a.Expect.Content {
		v, err := expectedValue(item)
		if err != nil {
			return err
		}
		want = append(want, v)
	}
	got := r.Values(a.Node, a.Name)

	match := len(want) == len(got)
	for i := 0; match && i < len(want); i++ {
		match = ir.DeepEqual(want[i], got[i])
	}
	if !match {
		return &AssertionError{
			Type:     AssertRenders,
			Expected: fmt.Sprintf("%s.%s renders %s", a.Node, a.Name, formatValues(want)),
			Actual:   formatValues(got),
		}
	}
	return nil
}

func formatValues(vs []ir.Value) string {
	parts := make([]string, len(vs))
	for i, v := range vs {
		parts[i] = ir.Format(v)
	}
	return "[" + strings.Join(parts, ", ") + "]"
}

// eventRef is a parsed "node.name:type" reference.
type eventRef struct {
	node string
	name string
	typ  ir.TraceType
}

func (r eventRef) String() string {
	return fmt.Sprintf("%s.%s:%s", r.node, r.name, r.typ)
}

func parseEventRef(s string) (eventRef, error) {
	target, typ, ok := strings.Cut(s, ":")
	if !ok || typ == "" {
		return eventRef{}, fmt.Errorf("event %q: want node.name:type", s)
	}
	node, name, ok := strings.Cut(target, ".")
	if !ok || node == "" || name == "" {
		return eventRef{}, fmt.Errorf("event %q: want node.name:type", s)
	}
	return eventRef{node: node, name: name, typ: ir.TraceType(typ)}, nil
}

// assertTraceOrder checks that the first occurrence of each referenced
// event appears in the given order. Intervening events are allowed.
func assertTraceOrder(trace []ir.TraceEvent, a Assertion) error {
	positions := make([]int, len(a.Events))
	refs := make([]eventRef, len(a.Events))
	for i, s := range a.Events {
		ref, err := parseEventRef(s)
		if err != nil {
			return err
		}
		refs[i] = ref
		positions[i] = -1
		for j, ev := range trace {
			if ev.NodeID == ref.node && ev.Name == ref.name && ev.Type == ref.typ {
				positions[i] = j
				break
			}
		}
		if positions[i] < 0 {
			return &AssertionError{
				Type:     AssertTraceOrder,
				Expected: fmt.Sprintf("all events present: %v", a.Events),
				Actual:   fmt.Sprintf("missing event: %s", ref),
				Trace:    trace,
			}
		}
	}

	for i := 1; i < len(refs); i++ {
		if positions[i-1] >= positions[i] {
			return &AssertionError{
				Type:     AssertTraceOrder,
				Expected: fmt.Sprintf("events in order: %v", a.Events),
				Actual: fmt.Sprintf("%s (seq %d) should be before %s (seq %d)",
					refs[i-1], trace[positions[i-1]].Seq, refs[i], trace[positions[i]].Seq),
				Trace: trace,
			}
		}
	}
	return nil
}

// assertTraceCount checks how many events of a type a directive emitted.
func assertTraceCount(trace []ir.TraceEvent, a Assertion) error {
	events := directiveTrace(trace, a.Node, a.Name)
	count := 0
	for _, ev := range events {
		if ev.Type == ir.TraceType(a.Trace) {
			count++
		}
	}
	if count != *a.Count {
		return &AssertionError{
			Type:     AssertTraceCount,
			Expected: fmt.Sprintf("%s.%s emits %s %d times", a.Node, a.Name, a.Trace, *a.Count),
			Actual:   fmt.Sprintf("%d times", count),
			Trace:    events,
		}
	}
	return nil
}

// assertStored counts persisted events of a type (all types when empty).
func assertStored(actx *AssertionContext, a Assertion) error {
	n, err := actx.Store.CountEvents(actx.Ctx, actx.RunID, ir.TraceType(a.Trace))
	if err != nil {
		return err
	}
	if n != *a.Count {
		label := a.Trace
		if label == "" {
			label = "all"
		}
		return &AssertionError{
			Type:     AssertStored,
			Expected: fmt.Sprintf("%d stored %s events", *a.Count, label),
			Actual:   fmt.Sprintf("%d", n),
		}
	}
	return nil
}
