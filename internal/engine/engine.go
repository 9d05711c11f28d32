package engine

import (
	"context"
	"log/slog"
	"slices"
	"time"

	"github.com/roach88/cadence/internal/compiler"
	"github.com/roach88/cadence/internal/ir"
)

// DefaultMaxResolveDepth bounds how many times a computed descriptor may
// return another descriptor before resolution gives up.
const DefaultMaxResolveDepth = 16

// Engine drives directives on a tree of nodes, one tick at a time.
//
// CRITICAL: All node and state mutation happens on the goroutine that
// calls Tick (directly or through Run). Loaders and other goroutines talk
// to the engine only through Complete and Post, which enqueue events that
// the next tick drains.
//
// Thread-safety model:
//   - Complete(), Post(), Stop(): safe from any goroutine
//   - everything else: ticking goroutine only, including callbacks
//
// INVARIANTS:
//   - nodes are visited depth-first in insertion order every tick
//   - each active state makes at most one status transition per tick
//   - trace events are stamped from Clock in emission order
type Engine struct {
	logger  *slog.Logger
	clock   *Clock
	wall    WallClock
	ids     IDGenerator
	queue   *eventQueue
	tracker tracker

	layout    Layout
	renderer  Renderer
	animator  Animator
	loader    Loader
	events    EventSource
	recorders []Recorder
	observers []TickObserver
	maxDepth  int

	nodes      map[string]*Node
	roots      []*Node
	actions    map[string]*fetchAction
	batch      map[string][]Transition
	batchOrder []string
	tick       int64
	now        time.Time
	errorCount int
}

// EngineOption allows configuration of engine collaborators.
type EngineOption func(*Engine)

// WithLogger sets the structured logger. Default: slog.Default().
func WithLogger(l *slog.Logger) EngineOption {
	return func(e *Engine) {
		e.logger = l
	}
}

// WithLayout installs the eligibility and geometry collaborator.
// Without one every node is eligible and geometry is zero.
func WithLayout(l Layout) EngineOption {
	return func(e *Engine) {
		e.layout = l
	}
}

// WithRenderer installs the collaborator that receives property writes.
func WithRenderer(r Renderer) EngineOption {
	return func(e *Engine) {
		e.renderer = r
	}
}

// WithAnimator installs the native-transition collaborator.
func WithAnimator(a Animator) EngineOption {
	return func(e *Engine) {
		e.animator = a
	}
}

// WithLoader installs the fetch collaborator. Without one every fetch
// completes with an error result.
func WithLoader(l Loader) EngineOption {
	return func(e *Engine) {
		e.loader = l
	}
}

// WithEvents installs the input event collaborator.
func WithEvents(s EventSource) EngineOption {
	return func(e *Engine) {
		e.events = s
	}
}

// WithRecorder adds a trace recorder. May be given more than once.
func WithRecorder(r Recorder) EngineOption {
	return func(e *Engine) {
		e.recorders = append(e.recorders, r)
	}
}

// WithObserver adds a per-tick observer. May be given more than once.
func WithObserver(o TickObserver) EngineOption {
	return func(e *Engine) {
		e.observers = append(e.observers, o)
	}
}

// WithWallClock sets the time source used for interval pacing.
func WithWallClock(c WallClock) EngineOption {
	return func(e *Engine) {
		e.wall = c
	}
}

// WithClock sets the logical clock, e.g. to continue a stored run.
func WithClock(c *Clock) EngineOption {
	return func(e *Engine) {
		e.clock = c
	}
}

// WithIDs sets the generator for child node and fetch ids.
func WithIDs(g IDGenerator) EngineOption {
	return func(e *Engine) {
		e.ids = g
	}
}

// WithMaxResolveDepth overrides DefaultMaxResolveDepth.
func WithMaxResolveDepth(n int) EngineOption {
	return func(e *Engine) {
		if n > 0 {
			e.maxDepth = n
		}
	}
}

// New creates an Engine with no nodes.
func New(opts ...EngineOption) *Engine {
	e := &Engine{
		logger:   slog.Default(),
		clock:    NewClock(),
		wall:     SystemClock{},
		ids:      UUIDv7Generator{},
		queue:    newEventQueue(),
		maxDepth: DefaultMaxResolveDepth,
		nodes:    make(map[string]*Node),
		actions:  make(map[string]*fetchAction),
		batch:    make(map[string][]Transition),
	}
	for _, opt := range opts {
		opt(e)
	}
	e.now = e.wall.Now()
	return e
}

// NodeOption configures AddNode.
type NodeOption func(*nodeConfig)

type nodeConfig struct {
	id string
}

// WithNodeID fixes the id of the new node instead of generating one.
func WithNodeID(id string) NodeOption {
	return func(c *nodeConfig) {
		c.id = id
	}
}

// AddNode registers a node under parentID (empty for a root), compiles
// spec, and activates its eligible directives. Returns the node id.
func (e *Engine) AddNode(parentID string, spec ir.Spec, opts ...NodeOption) (string, error) {
	var cfg nodeConfig
	for _, opt := range opts {
		opt(&cfg)
	}

	var parent *Node
	if parentID != "" {
		p, ok := e.nodes[parentID]
		if !ok {
			return "", NewUnknownNodeError(parentID)
		}
		parent = p
	}

	id := cfg.id
	if id == "" {
		id = e.ids.Generate()
	}
	if _, dup := e.nodes[id]; dup {
		return "", NewDuplicateNodeError(id)
	}

	n := e.insertNode(id, parent)
	e.register(n, compiler.Compile(spec, 0))
	e.logger.Debug("node added", "node", id, "directives", len(n.directives))
	return id, nil
}

// AddDirectives compiles spec onto an existing node. A directive whose name
// already exists replaces it in place and discards its runtime state.
func (e *Engine) AddDirectives(nodeID string, spec ir.Spec) error {
	n, ok := e.nodes[nodeID]
	if !ok {
		return NewUnknownNodeError(nodeID)
	}
	e.register(n, compiler.Compile(spec, len(n.directives)))
	return nil
}

// RemoveNode drops a node and its descendants. Their states, pending
// inputs, and outstanding fetches are discarded without callbacks.
func (e *Engine) RemoveNode(nodeID string) error {
	n, ok := e.nodes[nodeID]
	if !ok {
		return NewUnknownNodeError(nodeID)
	}
	for _, m := range n.preorder(nil) {
		m.removed = true
		delete(e.nodes, m.ID)
		delete(e.batch, m.ID)
	}
	for id, act := range e.actions {
		if _, live := e.nodes[act.nodeID]; !live {
			delete(e.actions, id)
		}
	}
	if n.parent != nil {
		n.parent.detach(n)
	} else {
		e.roots = slices.DeleteFunc(e.roots, func(r *Node) bool { return r == n })
	}
	e.logger.Debug("node removed", "node", nodeID)
	return nil
}

// Activate starts a directive that was declared inactive (leading "_").
func (e *Engine) Activate(nodeID, name string) error {
	n, ok := e.nodes[nodeID]
	if !ok {
		return NewUnknownNodeError(nodeID)
	}
	if _, ok := n.byName[name]; !ok {
		return NewUnknownDirectiveError(nodeID, name)
	}
	e.activate(n, name, ir.Null{})
	return nil
}

// Tick runs one pass over every node and reports whether work remains.
func (e *Engine) Tick() bool {
	started := time.Now()
	e.tick++
	e.now = e.wall.Now()

	e.drain()

	var order []*Node
	for _, r := range e.roots {
		order = r.preorder(order)
	}
	active := 0
	for _, n := range order {
		if n.removed {
			continue
		}
		e.processNode(n)
		active += len(n.active)
	}

	e.flushAnimations()

	pending := e.Pending()
	stats := TickStats{
		Tick:     e.tick,
		Nodes:    len(e.nodes),
		Active:   active,
		Pending:  pending,
		Duration: time.Since(started),
	}
	for _, o := range e.observers {
		o.ObserveTick(stats)
	}
	return pending
}

// Run ticks every interval until ctx is cancelled or Stop is called.
//
// Errors inside a tick never stop the loop: user code failures are
// logged and the affected directive degrades.
func (e *Engine) Run(ctx context.Context, interval time.Duration) error {
	e.logger.Info("engine starting", "interval", interval)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			e.logger.Info("engine stopping: context cancelled")
			e.queue.Close()
			return ctx.Err()
		case <-ticker.C:
			e.Tick()
		}
	}
}

// RunUntilIdle ticks until no work remains, maxTicks is reached (0 means
// no limit), or ctx is cancelled. With interval <= 0 ticks run back to
// back. Returns the number of ticks run.
func (e *Engine) RunUntilIdle(ctx context.Context, interval time.Duration, maxTicks int) (int, error) {
	var tick <-chan time.Time
	if interval > 0 {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		tick = ticker.C
	}

	ran := 0
	for maxTicks <= 0 || ran < maxTicks {
		if tick != nil {
			select {
			case <-ctx.Done():
				return ran, ctx.Err()
			case <-tick:
			}
		} else if err := ctx.Err(); err != nil {
			return ran, err
		}
		ran++
		if !e.Tick() {
			return ran, nil
		}
	}
	e.logger.Warn("tick limit reached with work pending", "ticks", ran)
	return ran, nil
}

// Stop closes the input queue; later Complete and Post calls are dropped.
func (e *Engine) Stop() {
	e.queue.Close()
}

// Pending reports whether any node has work left or input is queued.
func (e *Engine) Pending() bool {
	if e.queue.Len() > 0 || len(e.actions) > 0 {
		return true
	}
	for _, n := range e.nodes {
		if len(n.active) > 0 || len(n.barriers) > 0 {
			return true
		}
	}
	return false
}

// Node returns a registered node.
func (e *Engine) Node(id string) (*Node, bool) {
	n, ok := e.nodes[id]
	return n, ok
}

// Roots returns the root nodes in insertion order.
func (e *Engine) Roots() []*Node {
	return slices.Clone(e.roots)
}

// Value returns the present value of a node property, Null when unknown.
func (e *Engine) Value(nodeID, name string) ir.Value {
	if n, ok := e.nodes[nodeID]; ok {
		return n.Value(name)
	}
	return ir.Null{}
}

// State returns a snapshot of a directive's runtime state.
func (e *Engine) State(nodeID, name string) (State, bool) {
	n, ok := e.nodes[nodeID]
	if !ok {
		return State{}, false
	}
	st, ok := n.states[name]
	if !ok {
		return State{}, false
	}
	return st.snapshot(), true
}

// ImperativeState returns the snapshot of the override state for name.
func (e *Engine) ImperativeState(nodeID, name string) (State, bool) {
	return e.State(nodeID, name+imperativeSuffix)
}

// Resolving returns the directive whose user code is currently running.
func (e *Engine) Resolving() (nodeID, name string, ok bool) {
	fr, ok := e.tracker.current()
	if !ok {
		return "", "", false
	}
	return fr.node.ID, fr.name, true
}

// Clock returns the logical clock.
func (e *Engine) Clock() *Clock {
	return e.clock
}

// TickCount returns the number of ticks run.
func (e *Engine) TickCount() int64 {
	return e.tick
}

// QueueLen returns the number of undrained events.
func (e *Engine) QueueLen() int {
	return e.queue.Len()
}

// ErrorCount returns the number of failed fetches so far.
func (e *Engine) ErrorCount() int {
	return e.errorCount
}

func (e *Engine) insertNode(id string, parent *Node) *Node {
	createdBy := ""
	if fr, ok := e.tracker.current(); ok && fr.node == parent {
		createdBy = fr.name
	}
	n := newNode(id, parent, createdBy)
	e.nodes[id] = n
	if parent != nil {
		parent.children = append(parent.children, n)
	} else {
		e.roots = append(e.roots, n)
	}
	return n
}

// register merges compiled directives into n, relinks the chain, and
// activates what should run at registration.
func (e *Engine) register(n *Node, ds []*ir.Directive) {
	for _, d := range ds {
		if old, ok := n.byName[d.Name]; ok {
			d.Order = old.Order
			n.directives[slices.Index(n.directives, old)] = d
			e.discard(n, d.Name)
		} else {
			d.Order = len(n.directives)
			n.directives = append(n.directives, d)
		}
		n.byName[d.Name] = d
	}
	compiler.Link(n.directives)

	for _, d := range ds {
		if n.byName[d.Name] != d {
			continue // replaced again later in the same batch
		}
		e.install(n, d)
	}
}

func (e *Engine) install(n *Node, d *ir.Directive) {
	if d.Kind == ir.KindLiteral && compiler.IsControl(d.Name) {
		n.controls[d.Name] = d.Literal
	}
	switch d.Kind {
	case ir.KindControl:
		n.controls[d.Name] = d.Literal
		return
	case ir.KindHook:
		n.hooks[d.Name] = d.Hook
		return
	}
	if d.Inactive || d.Event != "" {
		return
	}
	switch d.Continuation {
	case ir.ContinueNone:
		e.activate(n, d.Name, ir.Null{})
	case ir.ContinueBarrier:
		n.arm(d.Name)
	}
}

// discard drops the runtime state of a replaced directive.
func (e *Engine) discard(n *Node, name string) {
	delete(n.states, name)
	delete(n.hooks, name)
	delete(n.controls, name)
	n.unmarkActive(name)
	n.disarm(name)
}

func (e *Engine) processNode(n *Node) {
	eligible := e.layout == nil || e.layout.Eligible(n)
	if eligible {
		e.checkEvents(n)
		e.checkBarriers(n)
	}

	for _, key := range n.activeOrder() {
		if n.removed {
			return
		}
		st, ok := n.states[key]
		if !ok {
			n.unmarkActive(key)
			continue
		}
		if !eligible && !st.directive.AlwaysResolve {
			continue
		}
		e.advance(n, st)
	}
}

// drain handles the events queued before this tick started. Events queued
// while draining wait for the next tick.
func (e *Engine) drain() {
	for n := e.queue.Len(); n > 0; n-- {
		ev, ok := e.queue.TryDequeue()
		if !ok {
			return
		}
		switch ev.Type {
		case EventTypeFetchResult:
			e.deliver(ev)
		case EventTypeCommand:
			e.execCommand(ev.Command)
		default:
			e.logger.Error("unknown event type", "type", ev.Type)
		}
	}
}

func (e *Engine) record(n *Node, st *State, typ ir.TraceType) {
	e.recordValue(n, st, typ, st.Value)
}

func (e *Engine) recordValue(n *Node, st *State, typ ir.TraceType, v ir.Value) {
	if v == nil {
		v = ir.Null{}
	}
	ev := ir.TraceEvent{
		Seq:    e.clock.Next(),
		Tick:   e.tick,
		NodeID: n.ID,
		Name:   st.Name,
		Type:   typ,
		Status: st.Status,
		Step:   st.Step,
		Steps:  st.Steps,
		Cycle:  st.Cycle,
		Value:  v,
	}
	for _, r := range e.recorders {
		r.Record(ev)
	}
	e.logger.Debug("directive event",
		"node", n.ID,
		"name", st.Name,
		"type", typ,
		"status", st.Status,
		"seq", ev.Seq,
	)
}

func (e *Engine) flushAnimations() {
	for _, id := range e.batchOrder {
		if batch := e.batch[id]; len(batch) > 0 {
			e.animator.Animate(id, batch)
		}
		delete(e.batch, id)
	}
	e.batchOrder = e.batchOrder[:0]
}
