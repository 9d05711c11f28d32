package engine

import (
	"github.com/roach88/cadence/internal/compiler"
	"github.com/roach88/cadence/internal/ir"
)

// SetOption configures SetDirective.
type SetOption func(*setConfig)

type setConfig struct {
	steps    *int
	interval *int
	easing   *ir.Easing
}

// WithSteps animates the override over n steps.
func WithSteps(n int) SetOption {
	return func(c *setConfig) {
		c.steps = &n
	}
}

// WithInterval spaces override steps ms milliseconds apart.
func WithInterval(ms int) SetOption {
	return func(c *setConfig) {
		c.interval = &ms
	}
}

// WithEasing sets the override curve: a catalogue name or a custom
// function. Unknown names are ignored.
func WithEasing(curve any) SetOption {
	return func(c *setConfig) {
		if ez, ok := compiler.EasingOf(curve); ok {
			c.easing = &ez
		}
	}
}

// Command is a SetDirective or Activate call posted from another goroutine.
type Command struct {
	NodeID   string
	Name     string
	Value    any
	Options  []SetOption
	Activate bool
}

// Post enqueues cmd for the next tick.
// Thread-safe: may be called from any goroutine.
// Returns false if the engine has been stopped.
func (e *Engine) Post(cmd Command) bool {
	return e.queue.Enqueue(Event{Type: EventTypeCommand, Command: cmd})
}

func (e *Engine) execCommand(cmd Command) {
	var err error
	if cmd.Activate {
		err = e.Activate(cmd.NodeID, cmd.Name)
	} else {
		err = e.SetDirective(cmd.NodeID, cmd.Name, cmd.Value, cmd.Options...)
	}
	if err != nil {
		e.logger.Warn("posted command failed", "node", cmd.NodeID, "name", cmd.Name, "error", err)
	}
}

// SetDirective overrides a property imperatively.
//
// The override runs in its own state next to the declarative one, which
// pauses until the override is done and then resumes from the value the
// override left. A second call while an override is running replaces it.
// Step and end callbacks go to the declarative directive's on<Name>Step
// and on<Name>End, falling back to the node's onImperativeStep and
// onImperativeEnd hooks.
//
// Must be called from the ticking goroutine; use Post elsewhere.
func (e *Engine) SetDirective(nodeID, name string, value any, opts ...SetOption) error {
	n, ok := e.nodes[nodeID]
	if !ok {
		return NewUnknownNodeError(nodeID)
	}
	var cfg setConfig
	for _, opt := range opts {
		opt(&cfg)
	}

	order := len(n.directives)
	deep := false
	if orig, ok := n.byName[name]; ok {
		order = orig.Order
		deep = orig.DeepEquality()
	}

	key := name + imperativeSuffix
	d := &ir.Directive{
		Name:                key,
		Key:                 key,
		Order:               order,
		Kind:                ir.KindParams,
		DerivedImperativeOf: name,
		Params:              &ir.Params{Value: ir.Source{Raw: value}},
	}
	switch inner := compiler.Classify(resultKey, value, order); inner.Kind {
	case ir.KindParams, ir.KindShorthand, ir.KindList:
		d.Kind = inner.Kind
		d.Params = inner.Params
	case ir.KindComputed:
		d.Params.Value = ir.Source{Func: inner.Compute}
	}
	if cfg.steps != nil {
		d.Params.Steps = ir.FixedCount(*cfg.steps)
		d.Params.Hinted = true
	}
	if cfg.interval != nil {
		d.Params.Interval = ir.FixedCount(*cfg.interval)
	}
	if cfg.easing != nil {
		d.Params.Easing = *cfg.easing
	}
	d.Params.DeepEquality = deep

	if prev, ok := n.states[key]; ok && prev.Status != ir.StatusComplete && prev.Status != ir.StatusIdle {
		e.record(n, prev, ir.TraceSuperseded)
	}

	st := newState(key, d)
	st.IsImperative = true
	st.OriginalName = name
	st.OriginalNode = n.ID
	st.Value = n.Value(name)
	n.states[key] = st

	if decl, ok := n.states[name]; ok && decl.Status.Busy() {
		decl.paused = true
	}

	st.Status = ir.StatusActive
	n.markActive(key)
	e.record(n, st, ir.TraceImperative)
	return nil
}

// endOverride resumes the declarative state an override paused, rebased
// on the present value.
func (e *Engine) endOverride(n *Node, st *State) {
	decl, ok := n.states[st.OriginalName]
	if !ok || !decl.paused {
		return
	}
	decl.paused = false
	decl.Value = n.Value(st.OriginalName)
	decl.Initial = decl.Value
	if decl.Status == ir.StatusUpdating {
		decl.Steps -= decl.Step
		decl.Step = 0
		decl.ScheduledAt = e.now
	}
}
