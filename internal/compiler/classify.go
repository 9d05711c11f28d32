package compiler

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/tanema/gween/ease"

	"github.com/roach88/cadence/internal/easing"
	"github.com/roach88/cadence/internal/ir"
)

// parseName strips the naming markers from an authored key.
//
//	_name   inactive until activated by a chain or command
//	name$   continues from the previous directive's value
//	name$$  waits until every earlier directive is complete
//	name+   resolves even when the node is not eligible
//
// Trailing markers may appear in any order ("x$+" and "x+$" are equal).
func parseName(key string) *ir.Directive {
	d := &ir.Directive{Key: key}
	name := key

	if strings.HasPrefix(name, "_") && len(name) > 1 {
		d.Inactive = true
		name = name[1:]
	}

	dollars := 0
markers:
	for len(name) > 1 {
		switch name[len(name)-1] {
		case '$':
			dollars++
		case '+':
			d.AlwaysResolve = true
		default:
			break markers
		}
		name = name[:len(name)-1]
	}
	switch {
	case dollars >= 2:
		d.Continuation = ir.ContinueBarrier
	case dollars == 1:
		d.Continuation = ir.ContinueImmediate
	}
	d.Name = name
	return d
}

// Classify compiles one raw descriptor. It never fails: shapes it cannot
// interpret become literals.
//
// Priority order:
//  1. structural keyword name with an object value -> control
//  2. node hook name with a callback value         -> hook
//  3. fetch/fetchImage name                        -> fetch
//  4. not a plain object (primitive, func, array)  -> literal/computed/shorthand/children
//  5. object with list, fetch, callbacks, or expr  -> list/fetch/params
//  6. object scored as child-shaped (c - t >= 1)   -> children
//  7. any other object                             -> params
func Classify(key string, raw any, order int) *ir.Directive {
	d := parseName(key)
	d.Order = order

	if ev, ok := EventOf(d.Name); ok {
		d.Event = ev
	}

	switch {
	case IsControl(d.Name):
		if _, ok := objectOf(raw); !ok {
			// A primitive keyword is still a literal value.
			classifyBody(d, raw)
			return d
		}
		d.Kind = ir.KindControl
		d.Literal = literalOf(raw)
		return d
	case d.Event == "" && isHookName(d.Name):
		if cb, ok := callbackOf(raw); ok {
			d.Kind = ir.KindHook
			d.Hook = cb
			return d
		}
	case d.Name == keyFetch || d.Name == keyFetchImage:
		classifyFetch(d, raw, d.Name == keyFetchImage)
		return d
	case d.Name == keyChildren:
		classifyChildren(d, raw)
		return d
	}

	classifyBody(d, raw)
	return d
}

func isHookName(name string) bool {
	if name == HookImperativeStep || name == HookImperativeEnd {
		return true
	}
	_, _, ok := IsStepEndCallback(name)
	return ok
}

func classifyBody(d *ir.Directive, raw any) {
	if fn, ok := computedOf(raw); ok {
		d.Kind = ir.KindComputed
		d.Compute = fn
		return
	}

	if obj, ok := objectOf(raw); ok {
		classifyObject(d, obj)
		return
	}

	if arr, ok := arrayOf(raw); ok {
		switch {
		case isChildArray(arr):
			d.Kind = ir.KindChildren
			d.Params = &ir.Params{Value: ir.Source{Raw: arr}}
		default:
			if p, ok := parseShorthand(arr); ok {
				d.Kind = ir.KindShorthand
				d.Params = p
				return
			}
			d.Kind = ir.KindLiteral
			d.Literal = literalOf(arr)
		}
		return
	}

	d.Kind = ir.KindLiteral
	d.Literal = literalOf(raw)
}

func classifyObject(d *ir.Directive, obj ir.Spec) {
	switch {
	case obj.Has(keyList):
		d.Kind = ir.KindList
		d.Params, d.Callbacks = parseParams(obj)
		return
	case obj.Has(keyFetch) || obj.Has(keyFetchImage):
		d.Kind = ir.KindFetch
		d.Image = obj.Has(keyFetchImage)
		d.Params, d.Callbacks = parseParams(obj)
		src, _ := obj.Get(keyFetch)
		if d.Image {
			src, _ = obj.Get(keyFetchImage)
		}
		d.Params.Value = sourceOf(src)
		return
	case hasCallbacks(obj) || obj.Has(keyExpr):
		d.Kind = ir.KindParams
		d.Params, d.Callbacks = parseParams(obj)
		return
	}

	if childScore(obj) >= 1 {
		d.Kind = ir.KindChildren
		d.Params = &ir.Params{Value: ir.Source{Raw: obj}}
		return
	}
	d.Kind = ir.KindParams
	d.Params, d.Callbacks = parseParams(obj)
}

// childScore returns c - t: directive-shaped keys minus data-bearing keys.
// An object produces children iff the score is at least 1. The threshold
// is long-standing behavior that authors rely on and is pinned by tests.
func childScore(obj ir.Spec) int {
	c, t := 0, 0
	for _, e := range obj {
		if isDirectiveShaped(e.Name) {
			c++
		} else {
			t++
		}
	}
	return c - t
}

func isChildArray(arr []any) bool {
	if len(arr) == 0 {
		return false
	}
	for _, elem := range arr {
		obj, ok := objectOf(elem)
		if !ok || childScore(obj) < 1 {
			return false
		}
	}
	return true
}

func hasCallbacks(obj ir.Spec) bool {
	for _, e := range obj {
		if isCallbackKey(e.Name) {
			return true
		}
	}
	return false
}

func classifyFetch(d *ir.Directive, raw any, image bool) {
	d.Kind = ir.KindFetch
	d.Image = image
	if obj, ok := objectOf(raw); ok && !obj.Has(keyValue) {
		if src, ok := obj.Get(keyFetch); ok {
			d.Params, d.Callbacks = parseParams(obj)
			d.Params.Value = sourceOf(src)
			return
		}
	}
	if obj, ok := objectOf(raw); ok {
		d.Params, d.Callbacks = parseParams(obj)
		return
	}
	d.Params = &ir.Params{Value: sourceOf(raw)}
}

func classifyChildren(d *ir.Directive, raw any) {
	d.Kind = ir.KindChildren
	if obj, ok := objectOf(raw); ok && (obj.Has(keyValue) || obj.Has(keyCycles) || hasCallbacks(obj)) {
		d.Params, d.Callbacks = parseParams(obj)
		return
	}
	d.Params = &ir.Params{Value: sourceOf(raw)}
}

// parseShorthand destructures [value, steps?, interval?, (cycles|easing)?, cycles?].
func parseShorthand(arr []any) (*ir.Params, bool) {
	if len(arr) == 0 || len(arr) > 5 {
		return nil, false
	}
	p := &ir.Params{Value: sourceOf(arr[0])}

	if len(arr) > 1 {
		c, ok := countOf(arr[1])
		if !ok {
			return nil, false
		}
		p.Steps = c
		p.Hinted = true
	}
	if len(arr) > 2 {
		c, ok := countOf(arr[2])
		if !ok {
			return nil, false
		}
		p.Interval = c
	}
	if len(arr) > 3 {
		if c, ok := countOf(arr[3]); ok {
			if len(arr) > 4 {
				return nil, false
			}
			p.Cycles = c
		} else if e, ok := easingOf(arr[3]); ok {
			p.Easing = e
			if len(arr) > 4 {
				c, ok := countOf(arr[4])
				if !ok {
					return nil, false
				}
				p.Cycles = c
			}
		} else {
			return nil, false
		}
	}
	return p, true
}

// ParseShorthand exposes the positional grammar to the resolver, which must
// re-interpret arrays returned by computed descriptors.
func ParseShorthand(arr []any) (*ir.Params, bool) {
	return parseShorthand(arr)
}

func parseParams(obj ir.Spec) (*ir.Params, ir.Callbacks) {
	p := &ir.Params{}
	var cbs ir.Callbacks

	for _, e := range obj {
		switch e.Name {
		case keyValue:
			p.Value = sourceOf(e.Raw)
		case keyExpr:
			if src, ok := e.Raw.(string); ok {
				if fn, err := CompileExpr(src); err == nil {
					p.Value = ir.Source{Func: fn}
				} else {
					p.Value = ir.Source{Raw: ir.Null{}}
				}
			}
		case keyList:
			if arr, ok := arrayOf(e.Raw); ok {
				p.List = arr
			} else {
				p.List = []any{e.Raw}
			}
		case keySteps:
			if list, ok := intList(e.Raw); ok {
				p.StepList = list
			} else if c, ok := countOf(e.Raw); ok {
				p.Steps = c
			}
			p.Hinted = true
		case keyInterval:
			if list, ok := intList(e.Raw); ok {
				p.IntervalList = list
			} else if c, ok := countOf(e.Raw); ok {
				p.Interval = c
			}
			p.Hinted = true
		case keyCycles:
			if c, ok := countOf(e.Raw); ok {
				p.Cycles = c
			}
			p.Hinted = true
		case keyEasing:
			if arr, ok := arrayOf(e.Raw); ok {
				for _, elem := range arr {
					ez, _ := easingOf(elem)
					p.EasingList = append(p.EasingList, ez)
				}
			} else if ez, ok := easingOf(e.Raw); ok {
				p.Easing = ez
			}
			p.Hinted = true
		case keyEnabledOn:
			p.EnabledOn = predicateOf(e.Raw)
		case keyLoop:
			p.Loop = predicateOf(e.Raw)
		case keyDeepEquality:
			b, _ := e.Raw.(bool)
			p.DeepEquality = b
		case keyInitialValue:
			p.Initial = literalOf(e.Raw)
		case keyOnValueChange:
			cbs.OnValueChange, _ = callbackOf(e.Raw)
		case keyOnStepsEnd:
			cbs.OnStepsEnd, _ = callbackOf(e.Raw)
		case keyOnStep:
			cbs.OnStep, _ = callbackOf(e.Raw)
		case keyOnEnd:
			cbs.OnEnd, _ = callbackOf(e.Raw)
		case keyOnSuccess:
			cbs.OnSuccess, _ = callbackOf(e.Raw)
		case keyOnError:
			cbs.OnError, _ = callbackOf(e.Raw)
		default:
			if _, kind, ok := IsStepEndCallback(e.Name); ok {
				cb, _ := callbackOf(e.Raw)
				if kind == "Step" {
					cbs.OnStep = cb
				} else {
					cbs.OnEnd = cb
				}
			}
		}
	}
	return p, cbs
}

// objectOf returns raw as an ordered Spec when it is a plain object.
func objectOf(raw any) (ir.Spec, bool) {
	switch v := raw.(type) {
	case ir.Spec:
		return v, true
	case map[string]any:
		return ir.SpecFromMap(v), true
	case ir.Object:
		spec := make(ir.Spec, 0, len(v))
		for _, k := range v.SortedKeys() {
			spec = append(spec, ir.Entry{Name: k, Raw: v[k]})
		}
		return spec, true
	}
	return nil, false
}

// arrayOf returns raw as []any when it is any kind of slice.
func arrayOf(raw any) ([]any, bool) {
	switch v := raw.(type) {
	case []any:
		return v, true
	case ir.Array:
		out := make([]any, len(v))
		for i, elem := range v {
			out[i] = elem
		}
		return out, true
	case ir.Spec:
		return nil, false
	case nil:
		return nil, false
	}
	rv := reflect.ValueOf(raw)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return nil, false
	}
	out := make([]any, rv.Len())
	for i := range out {
		out[i] = rv.Index(i).Interface()
	}
	return out, true
}

// ArrayOf is exported for the resolver.
func ArrayOf(raw any) ([]any, bool) {
	return arrayOf(raw)
}

// ObjectOf is exported for the resolver.
func ObjectOf(raw any) (ir.Spec, bool) {
	return objectOf(raw)
}

func computedOf(raw any) (ir.ComputedFunc, bool) {
	switch fn := raw.(type) {
	case ir.ComputedFunc:
		return fn, fn != nil
	case func(ir.Scope) any:
		return fn, fn != nil
	case func(cycle int, last ir.Value) any:
		return func(s ir.Scope) any { return fn(s.Cycle, s.Last) }, fn != nil
	case func() any:
		return func(ir.Scope) any { return fn() }, fn != nil
	}
	return nil, false
}

// ComputedOf is exported for the resolver.
func ComputedOf(raw any) (ir.ComputedFunc, bool) {
	return computedOf(raw)
}

func sourceOf(raw any) ir.Source {
	if fn, ok := computedOf(raw); ok {
		return ir.Source{Func: fn}
	}
	return ir.Source{Raw: raw}
}

func countOf(raw any) (ir.Count, bool) {
	switch v := raw.(type) {
	case ir.CountFunc:
		return ir.Count{Func: v, Set: true}, v != nil
	case func(cycle, prior int) int:
		return ir.Count{Func: v, Set: true}, v != nil
	case ir.Count:
		return v, true
	}
	if n, ok := numberOf(raw); ok {
		return ir.FixedCount(int(n)), true
	}
	return ir.Count{}, false
}

func numberOf(raw any) (float64, bool) {
	switch v := raw.(type) {
	case ir.Number:
		return float64(v), true
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64, float32, float64:
		val, err := ir.FromGo(v)
		if err != nil {
			return 0, false
		}
		return float64(val.(ir.Number)), true
	}
	return 0, false
}

func intList(raw any) ([]int, bool) {
	arr, ok := arrayOf(raw)
	if !ok {
		return nil, false
	}
	out := make([]int, len(arr))
	for i, elem := range arr {
		n, ok := numberOf(elem)
		if !ok {
			return nil, false
		}
		out[i] = max(int(n), 0)
	}
	return out, true
}

func easingOf(raw any) (ir.Easing, bool) {
	switch v := raw.(type) {
	case string:
		if easing.Known(v) {
			return ir.Easing{Name: v}, true
		}
	case ir.String:
		if easing.Known(string(v)) {
			return ir.Easing{Name: string(v)}, true
		}
	case ir.Easing:
		return v, true
	case func(float64) float64:
		return ir.Easing{Name: "custom", Func: v}, v != nil
	case easing.Func:
		return ir.Easing{Name: "custom", Func: v}, v != nil
	case ease.TweenFunc:
		return ir.Easing{Name: "custom", Func: easing.Normalize(v)}, v != nil
	case func(t, b, c, d float32) float32:
		return ir.Easing{Name: "custom", Func: easing.Normalize(v)}, v != nil
	}
	return ir.Easing{}, false
}

// EasingOf is exported for the resolver.
func EasingOf(raw any) (ir.Easing, bool) {
	return easingOf(raw)
}

func predicateOf(raw any) ir.Predicate {
	switch v := raw.(type) {
	case bool:
		return func(ir.Scope) bool { return v }
	case ir.Predicate:
		return v
	case func(ir.Scope) bool:
		return v
	case func() bool:
		return func(ir.Scope) bool { return v() }
	}
	return nil
}

func callbackOf(raw any) (ir.Callback, bool) {
	switch v := raw.(type) {
	case ir.Callback:
		return v, v != nil
	case func(ir.Notice):
		return v, v != nil
	case func():
		return func(ir.Notice) { v() }, v != nil
	}
	return nil, false
}

// literalOf converts raw data to a value, degrading unconvertible data to
// its printed form.
func literalOf(raw any) ir.Value {
	v, err := ir.FromGo(raw)
	if err != nil {
		return ir.String(fmt.Sprint(raw))
	}
	return v
}

// LiteralOf is exported for the resolver.
func LiteralOf(raw any) ir.Value {
	return literalOf(raw)
}

// IsDescriptorObject reports whether a computed result object should be
// read as a parameter object rather than plain data.
func IsDescriptorObject(obj ir.Spec) bool {
	for _, key := range []string{keyValue, keyList, keySteps, keyInterval, keyCycles, keyEasing, keyExpr} {
		if obj.Has(key) {
			return true
		}
	}
	return false
}
