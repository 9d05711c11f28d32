package harness

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/roach88/cadence/internal/engine"
	"github.com/roach88/cadence/internal/ir"
	"github.com/roach88/cadence/internal/store"
	"github.com/roach88/cadence/internal/testutil"
)

// DefaultMaxIdleTicks bounds an idle step.
const DefaultMaxIdleTicks = 1000

// Result is the outcome of a scenario execution.
type Result struct {
	// Name is the scenario name.
	Name string `json:"name"`

	// Pass is true if every assertion held.
	Pass bool `json:"pass"`

	// Errors holds assertion failures. Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`

	// Trace is the persisted trace, read back from the store.
	Trace []ir.TraceEvent `json:"trace"`

	// Ticks is the engine tick count at the end of the run.
	Ticks int64 `json:"ticks"`

	// Digest is the trace digest stored with the run.
	Digest string `json:"digest"`
}

// AddError records an assertion failure and marks the result failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// Option configures Run.
type Option func(*options)

type options struct {
	logger       *slog.Logger
	database     string
	maxIdleTicks int
}

// WithLogger routes engine logs. By default logs are discarded.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		o.logger = l
	}
}

// WithDatabase persists the run to a SQLite file instead of memory.
func WithDatabase(path string) Option {
	return func(o *options) {
		o.database = path
	}
}

// WithMaxIdleTicks bounds each idle step.
func WithMaxIdleTicks(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.maxIdleTicks = n
		}
	}
}

// Harness holds the collaborators of one scenario run.
type Harness struct {
	scenario *Scenario
	opts     options

	store    *store.Store
	engine   *engine.Engine
	clock    *testutil.FakeClock
	loader   *testutil.FakeLoader
	events   *testutil.ManualEvents
	renderer *testutil.RecordingRenderer
	recorder *store.RunRecorder
}

// Run executes a scenario and returns the result.
//
// Each scenario gets a fresh store, a fake wall clock starting at
// testutil.Epoch, sequential ids, and fake loader and event sources, so
// repeated runs produce identical traces.
//
// An error means the scenario could not be executed (bad node spec,
// store failure, step addressing an unknown node). Failed assertions are
// reported in Result.Errors instead.
func Run(scenario *Scenario, opts ...Option) (*Result, error) {
	o := options{
		logger:       slog.New(slog.NewTextHandler(io.Discard, nil)),
		database:     ":memory:",
		maxIdleTicks: DefaultMaxIdleTicks,
	}
	for _, opt := range opts {
		opt(&o)
	}

	st, err := store.Open(o.database)
	if err != nil {
		return nil, fmt.Errorf("failed to open store: %w", err)
	}
	defer st.Close()

	h, err := newHarness(scenario, o, st)
	if err != nil {
		return nil, err
	}
	return h.run(context.Background())
}

func newHarness(scenario *Scenario, o options, st *store.Store) (*Harness, error) {
	ctx := context.Background()
	if err := st.BeginRun(ctx, store.Run{ID: scenario.Name, Label: scenario.Description}); err != nil {
		return nil, err
	}

	h := &Harness{
		scenario: scenario,
		opts:     o,
		store:    st,
		clock:    testutil.NewFakeClock(),
		loader:   testutil.NewFakeLoader(),
		events:   &testutil.ManualEvents{},
		renderer: &testutil.RecordingRenderer{},
		recorder: st.Recorder(scenario.Name, o.logger),
	}

	layout := &testutil.StaticLayout{Hidden: map[string]bool{}}
	if l := scenario.Layout; l != nil {
		for _, id := range l.Hidden {
			layout.Hidden[id] = true
		}
		layout.Geometries = l.Geometries
	}

	for _, r := range scenario.Responses {
		result, err := decodeValue(&r.Result)
		if err != nil {
			return nil, fmt.Errorf("response %s: %w", r.URL, err)
		}
		h.loader.Respond(r.URL, r.Succeeded(), result)
	}

	h.engine = engine.New(
		engine.WithLogger(o.logger),
		engine.WithWallClock(h.clock),
		engine.WithIDs(engine.NewSequenceGenerator("id-")),
		engine.WithRecorder(h.recorder),
		engine.WithRenderer(h.renderer),
		engine.WithLoader(h.loader),
		engine.WithEvents(h.events),
		engine.WithLayout(layout),
	)
	h.loader.Bind(h.engine)
	return h, nil
}

func (h *Harness) run(ctx context.Context) (*Result, error) {
	roots, err := h.scenario.RootNodes()
	if err != nil {
		return nil, err
	}
	for _, root := range roots {
		if _, err := h.engine.AddNode("", root.Spec, engine.WithNodeID(root.ID)); err != nil {
			return nil, fmt.Errorf("node %s: %w", root.ID, err)
		}
	}

	for i, step := range h.scenario.Steps {
		if err := h.execute(ctx, step); err != nil {
			return nil, fmt.Errorf("step %d: %w", i, err)
		}
	}

	if err := h.recorder.Err(); err != nil {
		return nil, fmt.Errorf("trace write failed: %w", err)
	}
	trace, err := h.store.ReadTrace(ctx, h.scenario.Name)
	if err != nil {
		return nil, err
	}
	ticks := h.engine.TickCount()
	digest, err := h.store.FinishRun(ctx, h.scenario.Name, ticks)
	if err != nil {
		return nil, err
	}

	result := &Result{
		Name:   h.scenario.Name,
		Pass:   true,
		Errors: []string{},
		Trace:  trace,
		Ticks:  ticks,
		Digest: digest,
	}
	actx := &AssertionContext{
		Ctx:      ctx,
		Store:    h.store,
		RunID:    h.scenario.Name,
		Engine:   h.engine,
		Renderer: h.renderer,
	}
	for _, msg := range EvaluateAssertions(result, h.scenario.Assertions, actx) {
		result.AddError(msg)
	}
	return result, nil
}

// execute performs one step.
func (h *Harness) execute(ctx context.Context, step Step) error {
	eng := h.engine
	switch {
	case step.Tick > 0:
		for n := 0; n < step.Tick; n++ {
			eng.Tick()
		}
	case step.Idle:
		if _, err := eng.RunUntilIdle(ctx, 0, h.opts.maxIdleTicks); err != nil {
			return err
		}
		if eng.Pending() {
			return fmt.Errorf("engine still busy after %d idle ticks", h.opts.maxIdleTicks)
		}
	case step.AdvanceMS > 0:
		h.clock.Advance(time.Duration(step.AdvanceMS) * time.Millisecond)
	case step.Set != nil:
		return h.set(step.Set)
	case step.Resolve != nil:
		result, err := decodeValue(&step.Resolve.Result)
		if err != nil {
			return fmt.Errorf("resolve %s: %w", step.Resolve.URL, err)
		}
		if h.loader.Resolve(step.Resolve.URL, step.Resolve.Succeeded(), result) == 0 {
			return fmt.Errorf("resolve %s: no outstanding fetch", step.Resolve.URL)
		}
	case step.Event != nil:
		if _, ok := eng.Node(step.Event.Node); !ok {
			return engine.NewUnknownNodeError(step.Event.Node)
		}
		h.events.Fire(step.Event.Node, step.Event.Event)
	case step.Activate != nil:
		return eng.Activate(step.Activate.Node, step.Activate.Name)
	case step.Add != nil:
		return h.add(step.Add)
	case step.Remove != "":
		return eng.RemoveNode(step.Remove)
	}
	return nil
}

func (h *Harness) set(s *SetStep) error {
	value, err := decodeValue(&s.Value)
	if err != nil {
		return fmt.Errorf("set %s.%s: %w", s.Node, s.Name, err)
	}
	var opts []engine.SetOption
	if s.Steps != nil {
		opts = append(opts, engine.WithSteps(*s.Steps))
	}
	if s.Interval != nil {
		opts = append(opts, engine.WithInterval(*s.Interval))
	}
	if s.Easing != "" {
		opts = append(opts, engine.WithEasing(s.Easing))
	}
	return h.engine.SetDirective(s.Node, s.Name, value, opts...)
}

func (h *Harness) add(a *AddStep) error {
	raw, err := decodeValue(&a.Directives)
	if err != nil {
		return fmt.Errorf("add %s: %w", a.Node, err)
	}
	spec, _ := raw.(ir.Spec)
	if _, exists := h.engine.Node(a.Node); exists {
		return h.engine.AddDirectives(a.Node, spec)
	}
	_, err = h.engine.AddNode(a.Parent, spec, engine.WithNodeID(a.Node))
	return err
}
