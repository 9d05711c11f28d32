package engine

import (
	"github.com/roach88/cadence/internal/compiler"
	"github.com/roach88/cadence/internal/ir"
)

// resultKey names computed results when they are classified again.
const resultKey = "value"

// outcome is a fully resolved descriptor: a target value with its
// progression parameters, or a list of values.
type outcome struct {
	Value    ir.Value
	Initial  ir.Value
	Steps    int
	Interval int
	Cycles   int
	Easing   ir.Easing

	List         []ir.Value
	StepList     []int
	IntervalList []int
	EasingList   []ir.Easing
}

// resolve evaluates the directive behind st. It never fails: a panic or
// runaway nesting is logged and the present value is kept with no steps.
func (e *Engine) resolve(n *Node, st *State, scope ir.Scope) outcome {
	out, err := e.resolveDirective(n, st, st.directive, scope)
	if err != nil {
		e.logger.Warn("directive resolution failed",
			"node", n.ID,
			"name", st.Name,
			"error", err,
		)
		return outcome{Value: n.Value(st.property())}
	}
	if out.Value == nil {
		out.Value = ir.Null{}
	}
	return out
}

func (e *Engine) resolveDirective(n *Node, st *State, d *ir.Directive, scope ir.Scope) (outcome, error) {
	switch d.Kind {
	case ir.KindLiteral, ir.KindControl:
		return outcome{Value: d.Literal}, nil
	case ir.KindComputed:
		raw, err := e.call(n, st, d.Compute, scope)
		if err != nil {
			return outcome{}, err
		}
		return e.resolveRaw(n, st, raw, scope, 1)
	case ir.KindParams, ir.KindShorthand:
		return e.resolveParams(n, st, d.Params, scope, 0)
	case ir.KindList:
		return e.resolveList(n, st, d.Params, scope, 0)
	}
	return outcome{Value: ir.Null{}}, nil
}

// resolveRaw classifies a computed result and resolves it again.
func (e *Engine) resolveRaw(n *Node, st *State, raw any, scope ir.Scope, depth int) (outcome, error) {
	if depth > e.maxDepth {
		return outcome{}, NewResolveDepthError(n.ID, st.Name, e.maxDepth)
	}
	if obj, ok := compiler.ObjectOf(raw); ok && !compiler.IsDescriptorObject(obj) {
		return outcome{Value: compiler.LiteralOf(raw)}, nil
	}

	inner := compiler.Classify(resultKey, raw, st.directive.Order)
	switch inner.Kind {
	case ir.KindComputed:
		next, err := e.call(n, st, inner.Compute, scope)
		if err != nil {
			return outcome{}, err
		}
		return e.resolveRaw(n, st, next, scope, depth+1)
	case ir.KindParams, ir.KindShorthand:
		return e.resolveParams(n, st, inner.Params, scope, depth+1)
	case ir.KindList:
		return e.resolveList(n, st, inner.Params, scope, depth+1)
	case ir.KindLiteral:
		return outcome{Value: inner.Literal}, nil
	}
	return outcome{Value: compiler.LiteralOf(raw)}, nil
}

func (e *Engine) resolveParams(n *Node, st *State, p *ir.Params, scope ir.Scope, depth int) (outcome, error) {
	if depth > e.maxDepth {
		return outcome{}, NewResolveDepthError(n.ID, st.Name, e.maxDepth)
	}

	out := outcome{
		Steps:    p.Steps.Eval(scope.Cycle, st.prior),
		Interval: p.Interval.Eval(scope.Cycle, st.prior),
		Cycles:   p.Cycles.Eval(scope.Cycle, st.prior),
		Easing:   p.Easing,
		Initial:  p.Initial,
	}

	raw := p.Value.Raw
	if p.Value.Func != nil {
		var err error
		raw, err = e.call(n, st, p.Value.Func, scope)
		if err != nil {
			return outcome{}, err
		}
	}

	// An array of primitives next to progression hints is a list.
	if arr, ok := compiler.ArrayOf(raw); ok && p.Hinted && len(arr) > 0 {
		vals := make([]ir.Value, len(arr))
		primitive := true
		for i, elem := range arr {
			vals[i] = compiler.LiteralOf(elem)
			if !ir.IsPrimitive(vals[i]) {
				primitive = false
				break
			}
		}
		if primitive {
			out.List = vals
			out.StepList = p.StepList
			out.IntervalList = p.IntervalList
			out.EasingList = p.EasingList
			out.Cycles = len(vals) - 1
			return out, nil
		}
	}

	if nested(raw) {
		inner, err := e.resolveRaw(n, st, raw, scope, depth+1)
		if err != nil {
			return outcome{}, err
		}
		out.Value = inner.Value
		if len(inner.List) > 0 {
			out.List = inner.List
			out.StepList = inner.StepList
			out.IntervalList = inner.IntervalList
			out.EasingList = inner.EasingList
			out.Cycles = inner.Cycles
		}
		if !p.Steps.Set {
			out.Steps = inner.Steps
		}
		if !p.Interval.Set {
			out.Interval = inner.Interval
		}
		if !p.Cycles.Set && len(inner.List) == 0 {
			out.Cycles = inner.Cycles
		}
		if p.Easing.IsZero() {
			out.Easing = inner.Easing
		}
		return out, nil
	}

	out.Value = compiler.LiteralOf(raw)
	return out, nil
}

func (e *Engine) resolveList(n *Node, st *State, p *ir.Params, scope ir.Scope, depth int) (outcome, error) {
	vals := make([]ir.Value, 0, len(p.List))
	for _, raw := range p.List {
		if !nested(raw) {
			vals = append(vals, compiler.LiteralOf(raw))
			continue
		}
		inner, err := e.resolveRaw(n, st, raw, scope, depth+1)
		if err != nil {
			return outcome{}, err
		}
		vals = append(vals, inner.Value)
	}
	if len(vals) == 0 {
		return outcome{Value: ir.Null{}}, nil
	}
	return outcome{
		Steps:        p.Steps.Eval(scope.Cycle, st.prior),
		Interval:     p.Interval.Eval(scope.Cycle, st.prior),
		Easing:       p.Easing,
		Cycles:       len(vals) - 1,
		List:         vals,
		StepList:     p.StepList,
		IntervalList: p.IntervalList,
		EasingList:   p.EasingList,
	}, nil
}

// nested reports whether raw is itself a descriptor to resolve.
func nested(raw any) bool {
	if _, ok := compiler.ComputedOf(raw); ok {
		return true
	}
	if obj, ok := compiler.ObjectOf(raw); ok {
		return compiler.IsDescriptorObject(obj)
	}
	return false
}

// call runs a user function inside the resolution tracker.
func (e *Engine) call(n *Node, st *State, fn ir.ComputedFunc, scope ir.Scope) (any, error) {
	var raw any
	err := e.tracker.run(n, st.Name, func() {
		raw = fn(scope)
	})
	return raw, err
}

// scope builds the resolution context for st.
func (e *Engine) scope(n *Node, st *State) ir.Scope {
	prop := st.property()
	s := ir.Scope{
		NodeID: n.ID,
		Name:   prop,
		Cycle:  st.Cycle,
		Last:   n.Value(prop),
		Prev:   st.prev,
		Get:    n.Value,
	}
	if e.layout != nil {
		s.Geometry = e.layout.Geometry(n)
	}
	return s
}

// predicate evaluates enabledOn or loop. A panic counts as false.
func (e *Engine) predicate(n *Node, st *State, p ir.Predicate, scope ir.Scope) bool {
	var ok bool
	if err := e.tracker.run(n, st.Name, func() { ok = p(scope) }); err != nil {
		e.logger.Warn("predicate failed", "node", n.ID, "name", st.Name, "error", err)
		return false
	}
	return ok
}
