package engine

import (
	"slices"

	"github.com/roach88/cadence/internal/compiler"
	"github.com/roach88/cadence/internal/ir"
)

// activate starts a directive with prev as its input. A busy directive
// queues the input and reruns once it is done.
func (e *Engine) activate(n *Node, name string, prev ir.Value) {
	d, ok := n.byName[name]
	if !ok || !d.Kind.Executable() {
		return
	}
	st, ok := n.states[name]
	if !ok {
		st = newState(name, d)
		n.states[name] = st
	}
	st.directive = d

	if st.Status.Busy() {
		st.pending = append(st.pending, prev)
		e.recordValue(n, st, ir.TraceQueued, prev)
		return
	}
	e.start(n, st, prev)
}

// start resets st for a new activation.
func (e *Engine) start(n *Node, st *State, prev ir.Value) {
	if prev == nil {
		prev = ir.Null{}
	}
	st.prev = prev
	st.Status = ir.StatusActive
	st.Executed = false
	st.Cycle = 0
	st.Step = 0
	st.prior = 0
	st.paused = !st.IsImperative && overridden(n, st.Name)
	n.markActive(st.Name)
	e.record(n, st, ir.TraceActivate)
}

// overridden reports whether an imperative override on name is still
// running. The declarative state waits for it and endOverride resumes it.
func overridden(n *Node, name string) bool {
	imp, ok := n.states[name+imperativeSuffix]
	return ok && imp.Status.Busy()
}

// chainDirective is the directive whose Next link st follows. An override
// continues the chain of the directive it shadows.
func (e *Engine) chainDirective(n *Node, st *State) *ir.Directive {
	if st.IsImperative {
		return n.byName[st.OriginalName]
	}
	return st.directive
}

// continueChain activates or arms the successor of a done state.
func (e *Engine) continueChain(n *Node, st *State) {
	d := e.chainDirective(n, st)
	if d == nil || d.Next == "" {
		return
	}
	next, ok := n.byName[d.Next]
	if !ok {
		return
	}
	switch next.Continuation {
	case ir.ContinueImmediate:
		// Fetch results were handed over one by one as they arrived.
		if d.Kind == ir.KindFetch && !st.IsImperative && st.fetch != nil && st.fetch.expected > 0 {
			return
		}
		e.activate(n, next.Name, st.Value)
	case ir.ContinueBarrier:
		n.arm(next.Name)
	}
}

// checkBarriers activates every armed barrier whose earlier directives
// have all completed.
func (e *Engine) checkBarriers(n *Node) {
	for _, name := range slices.Clone(n.barriers) {
		d, ok := n.byName[name]
		if !ok {
			n.disarm(name)
			continue
		}
		if !e.priorComplete(n, d) {
			continue
		}
		n.disarm(name)
		prev := ir.Value(ir.Null{})
		if ps, ok := n.states[d.Prev]; ok {
			prev = ps.Value
		}
		e.activate(n, name, prev)
	}
}

// priorComplete reports whether every executable directive declared
// before d is complete. Literals count as complete. Inactive and
// event-bound directives that never ran are ignored.
func (e *Engine) priorComplete(n *Node, d *ir.Directive) bool {
	for _, other := range n.directives {
		if other.Order >= d.Order {
			break
		}
		if !other.Kind.Executable() || other.IsLiteral() {
			continue
		}
		st, ok := n.states[other.Name]
		if !ok || st.Status == ir.StatusIdle {
			if other.Inactive || other.Event != "" {
				continue
			}
			return false
		}
		if st.Status != ir.StatusComplete {
			return false
		}
		if imp, ok := n.states[other.Name+imperativeSuffix]; ok && imp.Status != ir.StatusComplete {
			return false
		}
	}
	return true
}

// checkEvents activates event-bound directives whose event fired.
func (e *Engine) checkEvents(n *Node) {
	if e.events == nil {
		return
	}
	for _, d := range n.directives {
		if d.Event == "" || !d.Kind.Executable() {
			continue
		}
		if st, ok := n.states[d.Name]; ok && st.Status.Busy() {
			continue
		}
		if e.events.Matches(n.ID, d.Event) {
			e.activate(n, d.Name, ir.Null{})
		}
	}
}

// spawn creates one batch of child nodes. With cycles set, later batches
// follow on later ticks.
func (e *Engine) spawn(n *Node, st *State, scope ir.Scope) {
	d := st.directive
	raw := d.Params.Value.Raw
	if fn := d.Params.Value.Func; fn != nil {
		var err error
		if raw, err = e.call(n, st, fn, scope); err != nil {
			e.logger.Warn("children resolution failed", "node", n.ID, "name", st.Name, "error", err)
			raw = nil
		}
	}

	if !st.Executed {
		st.ExecutionCount++
		st.Executed = true
		st.children = nil
	}

	created := ir.Array{}
	err := e.tracker.run(n, st.Name, func() {
		for _, spec := range childSpecs(raw) {
			child := e.insertNode(e.ids.Generate(), n)
			e.register(child, compiler.Compile(spec, 0))
			st.children = append(st.children, child.ID)
			created = append(created, ir.String(child.ID))
		}
	})
	if err != nil {
		e.logger.Warn("child creation failed", "node", n.ID, "name", st.Name, "error", err)
	}
	st.Value = created
	e.record(n, st, ir.TraceChildren)

	if st.Cycle < d.Params.Cycles.Eval(st.Cycle, st.prior) {
		st.Cycle++
		return
	}
	e.finish(n, st)
}

func childSpecs(raw any) []ir.Spec {
	if obj, ok := compiler.ObjectOf(raw); ok {
		return []ir.Spec{obj}
	}
	arr, ok := compiler.ArrayOf(raw)
	if !ok {
		return nil
	}
	specs := make([]ir.Spec, 0, len(arr))
	for _, elem := range arr {
		if obj, ok := compiler.ObjectOf(elem); ok {
			specs = append(specs, obj)
		}
	}
	return specs
}
