package engine

import (
	"time"

	"github.com/roach88/cadence/internal/ir"
)

// IDGenerator generates identifiers for created child nodes and fetch actions.
// Implemented by UUIDv7Generator (production) and FixedGenerator (tests).
type IDGenerator interface {
	Generate() string
}

// Layout decides which nodes are eligible for processing and supplies
// their geometry to computed descriptors.
type Layout interface {
	Eligible(n *Node) bool
	Geometry(n *Node) ir.Geometry
}

// Renderer receives every value the engine writes to a node property.
type Renderer interface {
	Apply(nodeID, name string, v ir.Value)
}

// Transition describes one property the engine hands to an Animator.
type Transition struct {
	Name     string
	From     ir.Value
	To       ir.Value
	Steps    int
	Interval int
	Easing   string
}

// Animator drives selected properties with native transitions. The engine
// still steps accepted properties to track their lifecycle but does not
// push intermediate values to the Renderer for them.
type Animator interface {
	Accepts(nodeID, name string) bool
	Animate(nodeID string, batch []Transition)
}

// FetchRequest is one outstanding load.
type FetchRequest struct {
	ID     string
	NodeID string
	Name   string
	URL    string
	Image  bool
}

// Loader performs fetches asynchronously. Implementations must not block
// and report back through Engine.Complete.
type Loader interface {
	Fetch(req FetchRequest)
}

// EventSource reports input events for event-bound directives.
type EventSource interface {
	Matches(nodeID, event string) bool
}

// Recorder observes every trace event in seq order.
type Recorder interface {
	Record(ev ir.TraceEvent)
}

// TickStats summarizes one tick.
type TickStats struct {
	Tick     int64
	Nodes    int
	Active   int
	Pending  bool
	Duration time.Duration
}

// TickObserver receives a summary after every tick.
type TickObserver interface {
	ObserveTick(stats TickStats)
}
