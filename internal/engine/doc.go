// Package engine implements the cadence directive engine.
//
// The engine owns a tree of nodes. Each node carries compiled directives
// (see package compiler) and one runtime State per directive. Every call
// to Tick walks the tree depth-first and lets each active state make one
// status transition:
//
//	"" -> active -> updating -> done -> complete
//	          \-> fetching -/
//
// ARCHITECTURE:
//
// Single-Writer Tick Loop:
// All node and state mutation happens on the ticking goroutine. Loaders
// run their requests elsewhere and report back through Complete; other
// goroutines use Post. Both enqueue events that the next tick drains
// before visiting any node.
//
// Tick Processing:
//  1. Drain queued fetch results and posted commands
//  2. For each eligible node: fire event-bound directives, release barriers
//  3. For each active state in declaration order: advance one transition
//  4. Hand batched transitions to the Animator
//  5. Report TickStats to observers
//
// Activation Chain:
// A directive marked with "$" activates each time its predecessor is done,
// receiving the predecessor's value as Prev. "$$" waits until every earlier
// directive on the node is complete. A busy directive queues inputs and
// reruns for each.
//
// Imperative Overrides:
// SetDirective runs a separate state keyed name#imperative. The declarative
// state pauses meanwhile and resumes from the value the override left.
//
// CRITICAL PATTERNS:
//
// Logical Clock:
// Trace events are stamped with a monotonic seq from Clock.Next(). Wall
// time (WallClock) only paces intervals.
//
// Totality:
// User functions run inside a tracker frame that recovers panics. A
// failing resolution keeps the present value and completes the cycle.
package engine
