package engine

import (
	"time"

	"github.com/roach88/cadence/internal/ir"
)

// State is the runtime record of one directive on one node.
//
// Value is the present value; Initial and Target bound the transition in
// progress. Step counts from 0 to Steps within a cycle.
type State struct {
	Name   string // state key
	Status ir.Status

	Value   ir.Value
	Initial ir.Value
	Target  ir.Value

	Step     int
	Steps    int
	Interval int
	Easing   ir.Easing
	Cycle    int
	Cycles   int

	IsImperative bool
	OriginalName string
	OriginalNode string

	ExecutionCount int
	Executed       bool
	ScheduledAt    time.Time

	// List-driven progression.
	ValueList    []ir.Value
	StepList     []int
	IntervalList []int
	EasingList   []ir.Easing

	LoadErrors int

	directive    *ir.Directive
	listDriven   bool
	baseSteps    int
	baseInterval int
	baseEasing   ir.Easing
	prev         ir.Value
	pending      []ir.Value
	paused       bool
	fetch        *fetchBatch
	children     []string
	prior        int // cycles of the previous resolution
}

func newState(key string, d *ir.Directive) *State {
	return &State{
		Name:      key,
		Value:     ir.Null{},
		Initial:   ir.Null{},
		Target:    ir.Null{},
		prev:      ir.Null{},
		directive: d,
	}
}

// property is the node property the state writes.
func (s *State) property() string {
	if s.IsImperative {
		return s.OriginalName
	}
	return s.Name
}

func (s *State) order() int {
	return s.directive.Order
}

// Pending returns the number of queued activations.
func (s *State) Pending() int {
	return len(s.pending)
}

// Paused reports whether an imperative override suspended this state.
func (s *State) Paused() bool {
	return s.paused
}

// snapshot copies the exported fields for callers outside the tick.
func (s *State) snapshot() State {
	out := *s
	out.ValueList = append([]ir.Value(nil), s.ValueList...)
	out.pending = append([]ir.Value(nil), s.pending...)
	out.fetch = nil
	out.children = nil
	return out
}
