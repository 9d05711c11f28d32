package engine

import (
	"time"

	"github.com/roach88/cadence/internal/compiler"
	"github.com/roach88/cadence/internal/ir"
)

// advance makes at most one status transition for st.
func (e *Engine) advance(n *Node, st *State) {
	if st.paused {
		return
	}
	switch st.Status {
	case ir.StatusActive:
		e.execute(n, st)
	case ir.StatusUpdating:
		e.progress(n, st)
	case ir.StatusFetching:
		e.pollFetch(n, st)
	case ir.StatusDone:
		e.settle(n, st)
	default:
		n.unmarkActive(st.Name)
	}
}

// execute resolves an active state and moves it to updating, fetching, or
// done.
func (e *Engine) execute(n *Node, st *State) {
	d := st.directive
	scope := e.scope(n, st)
	if d.Params != nil && d.Params.EnabledOn != nil && !e.predicate(n, st, d.Params.EnabledOn, scope) {
		return
	}

	switch d.Kind {
	case ir.KindFetch:
		e.startFetch(n, st, scope)
		return
	case ir.KindChildren:
		e.spawn(n, st, scope)
		return
	}

	e.adopt(n, st, e.resolve(n, st, scope), true)
	if st.Step < st.Steps {
		st.Status = ir.StatusUpdating
		e.queueTransition(n, st)
		return
	}
	e.writeValue(n, st, st.Target)
	e.finishCycle(n, st)
}

// adopt installs a resolution outcome on st. fresh is false when a later
// cycle of the same activation re-resolves.
func (e *Engine) adopt(n *Node, st *State, out outcome, fresh bool) {
	st.Executed = true
	if fresh {
		st.ExecutionCount++
		st.Cycle = 0
	}
	st.prior = st.Cycles
	st.Cycles = out.Cycles
	st.ScheduledAt = e.now

	if len(out.List) > 0 {
		st.listDriven = true
		st.ValueList = out.List
		st.StepList = out.StepList
		st.IntervalList = out.IntervalList
		st.EasingList = out.EasingList
		st.baseSteps, st.baseInterval, st.baseEasing = out.Steps, out.Interval, out.Easing
		st.Cycles = len(out.List) - 1

		// The first entry is consumed at once.
		e.writeValue(n, st, out.List[0])
		if len(out.List) == 1 {
			st.Initial, st.Target = out.List[0], out.List[0]
			st.Step, st.Steps = 0, 0
			return
		}
		st.Cycle = 1
		e.enterListCycle(n, st)
		return
	}

	st.listDriven = false
	current := n.Value(st.property())
	if _, unset := current.(ir.Null); unset && out.Initial != nil {
		current = out.Initial
	}
	st.Initial = current
	st.Target = out.Value
	st.Steps = out.Steps
	st.Interval = out.Interval
	st.Easing = out.Easing
	st.Step = 0
	if st.Steps == 0 || ir.Equal(current, out.Value, st.directive.DeepEquality()) {
		st.Step = st.Steps
	}
}

// enterListCycle targets ValueList[Cycle] from the present value.
func (e *Engine) enterListCycle(n *Node, st *State) {
	c := st.Cycle
	st.Initial = st.Value
	st.Target = st.ValueList[c]
	st.Steps = pick(st.StepList, c-1, st.baseSteps)
	st.Interval = pick(st.IntervalList, c-1, st.baseInterval)
	st.Easing = pick(st.EasingList, c-1, st.baseEasing)
	st.Step = 0
	st.ScheduledAt = e.now
	if st.Steps == 0 || ir.Equal(st.Initial, st.Target, st.directive.DeepEquality()) {
		st.Step = st.Steps
	}
}

// pick returns list[i], the last element past the end, or def when empty.
func pick[T any](list []T, i int, def T) T {
	switch {
	case len(list) == 0:
		return def
	case i < len(list):
		return list[i]
	default:
		return list[len(list)-1]
	}
}

// progress moves an updating state forward by the steps its interval
// allows since the last step.
func (e *Engine) progress(n *Node, st *State) {
	if st.Step >= st.Steps {
		e.writeValue(n, st, st.Target)
		e.finishCycle(n, st)
		return
	}

	advance := 1
	if st.Interval > 0 {
		interval := time.Duration(st.Interval) * time.Millisecond
		elapsed := e.now.Sub(st.ScheduledAt)
		if elapsed < interval {
			return
		}
		advance = max(1, int(elapsed/interval))
	}
	st.Step = min(st.Steps, st.Step+advance)
	st.ScheduledAt = e.now

	e.writeValue(n, st, morph(st.Initial, st.Target, st.Step, st.Steps, st.Easing))
	e.fire(n, st, e.stepHook(n, st), st.Value, "")
	e.record(n, st, ir.TraceStep)

	if st.Step == st.Steps {
		e.fire(n, st, e.callbacksFor(n, st).OnStepsEnd, st.Value, "")
		e.finishCycle(n, st)
	}
}

// finishCycle runs when a cycle reaches its target: the next list entry,
// the next re-resolution, a loop restart, or done.
func (e *Engine) finishCycle(n *Node, st *State) {
	d := st.directive

	if st.listDriven {
		if st.Cycle < len(st.ValueList)-1 {
			st.Cycle++
			e.enterListCycle(n, st)
			st.Status = ir.StatusUpdating
			e.queueTransition(n, st)
			e.record(n, st, ir.TraceCycle)
			return
		}
	} else if st.Cycle < st.Cycles {
		st.Cycle++
		e.adopt(n, st, e.resolve(n, st, e.scope(n, st)), false)
		st.Status = ir.StatusUpdating
		if st.Step < st.Steps {
			e.queueTransition(n, st)
		}
		e.record(n, st, ir.TraceCycle)
		return
	}

	if d.Params != nil && d.Params.Loop != nil && e.predicate(n, st, d.Params.Loop, e.scope(n, st)) {
		st.Status = ir.StatusActive
		st.Executed = false
		st.Cycle = 0
		e.record(n, st, ir.TraceCycle)
		return
	}

	e.finish(n, st)
}

// finish moves st to done and fires what follows it.
func (e *Engine) finish(n *Node, st *State) {
	st.Status = ir.StatusDone
	e.record(n, st, ir.TraceDone)
	e.fire(n, st, e.endHook(n, st), st.Value, "")
	if st.IsImperative {
		e.endOverride(n, st)
	}
	e.continueChain(n, st)
}

// settle handles a done state: rerun with a queued input, or complete once
// nothing it started is still outstanding.
func (e *Engine) settle(n *Node, st *State) {
	if len(st.pending) > 0 {
		prev := st.pending[0]
		st.pending = st.pending[1:]
		e.start(n, st, prev)
		return
	}
	if !e.settled(n, st) {
		return
	}
	st.Status = ir.StatusComplete
	st.fetch = nil
	st.children = nil
	n.unmarkActive(st.Name)
	e.record(n, st, ir.TraceComplete)
}

func (e *Engine) settled(n *Node, st *State) bool {
	if b := st.fetch; b != nil && b.arrived < b.expected {
		return false
	}
	for _, id := range st.children {
		if c, ok := e.nodes[id]; ok && c.Busy() {
			return false
		}
	}
	if d := e.chainDirective(n, st); d != nil && d.Next != "" {
		if next, ok := n.states[d.Next]; ok && len(next.pending) > 0 {
			return false
		}
	}
	return true
}

// writeValue stores v as the present value and pushes it out.
func (e *Engine) writeValue(n *Node, st *State, v ir.Value) {
	prop := st.property()
	old := n.Value(prop)
	st.Value = v
	n.values[prop] = v

	animated := st.Steps > 0 && e.animator != nil && e.animator.Accepts(n.ID, prop)
	if e.renderer != nil && !animated {
		e.renderer.Apply(n.ID, prop, v)
	}
	if !ir.Equal(old, v, st.directive.DeepEquality()) {
		e.fire(n, st, e.callbacksFor(n, st).OnValueChange, v, "")
	}
}

func (e *Engine) queueTransition(n *Node, st *State) {
	prop := st.property()
	if e.animator == nil || !e.animator.Accepts(n.ID, prop) {
		return
	}
	if _, seen := e.batch[n.ID]; !seen {
		e.batchOrder = append(e.batchOrder, n.ID)
	}
	e.batch[n.ID] = append(e.batch[n.ID], Transition{
		Name:     prop,
		From:     st.Initial,
		To:       st.Target,
		Steps:    st.Steps,
		Interval: st.Interval,
		Easing:   st.Easing.Name,
	})
}

// callbacksFor returns the callbacks that observe st. An override reports
// to the directive it shadows.
func (e *Engine) callbacksFor(n *Node, st *State) ir.Callbacks {
	if st.IsImperative {
		if orig, ok := n.byName[st.OriginalName]; ok {
			return orig.Callbacks
		}
		return ir.Callbacks{}
	}
	return st.directive.Callbacks
}

func (e *Engine) stepHook(n *Node, st *State) ir.Callback {
	if cb := e.callbacksFor(n, st).OnStep; cb != nil {
		return cb
	}
	if cb := n.hooks[compiler.StepEndHookName(st.property(), "Step")]; cb != nil {
		return cb
	}
	if st.IsImperative {
		return n.hooks[compiler.HookImperativeStep]
	}
	return nil
}

func (e *Engine) endHook(n *Node, st *State) ir.Callback {
	if cb := e.callbacksFor(n, st).OnEnd; cb != nil {
		return cb
	}
	if cb := n.hooks[compiler.StepEndHookName(st.property(), "End")]; cb != nil {
		return cb
	}
	if st.IsImperative {
		return n.hooks[compiler.HookImperativeEnd]
	}
	return nil
}

// fire runs a callback inside the tracker. A panicking callback is logged
// and ignored.
func (e *Engine) fire(n *Node, st *State, cb ir.Callback, v ir.Value, errMsg string) {
	if cb == nil {
		return
	}
	notice := ir.Notice{
		NodeID:     n.ID,
		Name:       st.property(),
		Value:      v,
		Step:       st.Step,
		Steps:      st.Steps,
		Cycle:      st.Cycle,
		Imperative: st.IsImperative,
		Err:        errMsg,
	}
	if err := e.tracker.run(n, st.Name, func() { cb(notice) }); err != nil {
		e.logger.Warn("callback failed", "node", n.ID, "name", st.Name, "error", err)
	}
}
