package ir

import "fmt"

// Kind is the compiled shape of a directive, decided once by the compiler.
type Kind int

const (
	// KindLiteral is a primitive or opaque value used as-is.
	KindLiteral Kind = iota + 1
	// KindComputed is a function of the resolution scope.
	KindComputed
	// KindParams is an object with value/steps/interval/cycles/easing fields.
	KindParams
	// KindList is a sequence consumed one element per cycle.
	KindList
	// KindShorthand is the positional [value, steps, interval, cycles|easing, cycles] form.
	KindShorthand
	// KindChildren produces child nodes instead of a property value.
	KindChildren
	// KindFetch triggers the loader and adopts its results as value.
	KindFetch
	// KindControl is a structural or style keyword, stored but never stepped.
	KindControl
	// KindHook is a node-level callback such as onImperativeEnd.
	KindHook
)

var kindNames = map[Kind]string{
	KindLiteral:   "literal",
	KindComputed:  "computed",
	KindParams:    "params",
	KindList:      "list",
	KindShorthand: "shorthand",
	KindChildren:  "children",
	KindFetch:     "fetch",
	KindControl:   "control",
	KindHook:      "hook",
}

func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// Executable reports whether directives of this kind run through the
// activation, progression, and completion lifecycle.
func (k Kind) Executable() bool {
	return k != KindControl && k != KindHook
}

// Continuation says when a directive activates relative to its predecessor.
type Continuation int

const (
	// ContinueNone activates at registration unless the directive is inactive.
	ContinueNone Continuation = iota
	// ContinueImmediate activates each time the predecessor yields a terminal value.
	ContinueImmediate
	// ContinueBarrier activates once every earlier directive on the node is complete.
	ContinueBarrier
)

func (c Continuation) String() string {
	switch c {
	case ContinueImmediate:
		return "immediate"
	case ContinueBarrier:
		return "barrier"
	default:
		return "none"
	}
}

// Status is the lifecycle position of a runtime state.
type Status string

const (
	StatusIdle     Status = ""
	StatusActive   Status = "active"
	StatusUpdating Status = "updating"
	StatusFetching Status = "fetching"
	StatusDone     Status = "done"
	StatusComplete Status = "complete"
)

// Busy reports whether the status still has work to do this activation.
func (s Status) Busy() bool {
	return s == StatusActive || s == StatusUpdating || s == StatusFetching
}

// Geometry is the layout rectangle supplied for a node.
type Geometry struct {
	X      float64 `json:"x" yaml:"x"`
	Y      float64 `json:"y" yaml:"y"`
	Width  float64 `json:"width" yaml:"width"`
	Height float64 `json:"height" yaml:"height"`
}

// Scope is the resolution context handed to computed descriptors.
type Scope struct {
	NodeID   string
	Name     string
	Cycle    int
	Last     Value // the directive's current value
	Prev     Value // value handed over by the preceding directive
	Geometry Geometry

	// Get reads another present value on the same node.
	Get func(name string) Value
}

// Value reads another property of the node, Null when absent.
func (s Scope) Value(name string) Value {
	if s.Get == nil {
		return Null{}
	}
	if v := s.Get(name); v != nil {
		return v
	}
	return Null{}
}

// ComputedFunc produces a raw descriptor from the current scope.
// The result is resolved again, so it may be a literal, a shorthand
// array, a parameter object, or a list.
type ComputedFunc func(Scope) any

// CountFunc computes steps, interval or cycles from (cycle, priorCycles).
type CountFunc func(cycle, prior int) int

// Predicate is a scope-dependent switch (enabledOn, loop).
type Predicate func(Scope) bool

// Count is an integer parameter that is either fixed or computed.
type Count struct {
	Fixed int
	Func  CountFunc
	Set   bool
}

// FixedCount returns a Count holding n.
func FixedCount(n int) Count {
	return Count{Fixed: n, Set: true}
}

// Eval returns the parameter for the given cycle. Negative results clamp to 0.
func (c Count) Eval(cycle, prior int) int {
	n := c.Fixed
	if c.Func != nil {
		n = c.Func(cycle, prior)
	}
	return max(n, 0)
}

// Easing names a curve from the standard catalogue or carries a custom
// normalized function mapping [0,1] to [0,1].
type Easing struct {
	Name string
	Func func(t float64) float64
}

// IsZero reports whether no easing was specified (linear).
func (e Easing) IsZero() bool {
	return e.Name == "" && e.Func == nil
}

// Source is the value slot of a parameter object: literal raw data or a
// computed function.
type Source struct {
	Raw  any
	Func ComputedFunc
}

// Params is the normalized form of parameter objects, shorthand arrays,
// lists, and fetch descriptors.
type Params struct {
	Value    Source
	Steps    Count
	Interval Count // milliseconds per step
	Cycles   Count
	Easing   Easing

	EnabledOn    Predicate
	Loop         Predicate
	DeepEquality bool
	Initial      Value

	// List-driven directives.
	List         []any
	StepList     []int
	IntervalList []int
	EasingList   []Easing

	// Hinted is true when the object carried any of steps, interval,
	// easing, or cycles, which lets an array-of-primitives result be
	// reinterpreted as a list.
	Hinted bool
}

// Notice is passed to lifecycle callbacks.
type Notice struct {
	NodeID     string
	Name       string
	Value      Value
	Step       int
	Steps      int
	Cycle      int
	Imperative bool
	Err        string
}

// Callback observes a lifecycle event.
type Callback func(Notice)

// Callbacks are the lifecycle hooks carried by a parameter object.
type Callbacks struct {
	OnValueChange Callback
	OnStepsEnd    Callback
	OnStep        Callback // on<Name>Step
	OnEnd         Callback // on<Name>End
	OnSuccess     Callback
	OnError       Callback
}

// Any reports whether at least one callback is set.
func (c Callbacks) Any() bool {
	return c.OnValueChange != nil || c.OnStepsEnd != nil || c.OnStep != nil ||
		c.OnEnd != nil || c.OnSuccess != nil || c.OnError != nil
}

// Directive is a compiled descriptor.
//
// INVARIANTS:
//   - Kind never changes after compilation
//   - Name has every marker stripped; Key keeps the authored spelling
//   - Prev and Next only ever point backward and forward in Order
type Directive struct {
	Name  string
	Key   string
	Order int
	Kind  Kind

	Continuation        Continuation
	Inactive            bool   // leading "_": not activated at registration
	AlwaysResolve       bool   // trailing "+": resolve even when the node is not eligible
	DerivedImperativeOf string // set on states created by SetDirective
	Event               string // bound to an input event when non-empty

	Prev string // directive this one continues from
	Next string // directive activated after this one

	Literal Value        // KindLiteral, KindControl
	Compute ComputedFunc // KindComputed
	Params  *Params      // KindParams, KindList, KindShorthand, KindChildren, KindFetch
	Image   bool         // KindFetch: fetchImage
	Hook    Callback     // KindHook

	Callbacks Callbacks
}

// IsLiteral reports whether the directive is trivially complete.
func (d *Directive) IsLiteral() bool {
	return d.Kind == KindLiteral
}

// DeepEquality reports whether value changes compare deeply.
func (d *Directive) DeepEquality() bool {
	return d.Params != nil && d.Params.DeepEquality
}
