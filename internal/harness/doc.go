// Package harness runs directive scenarios against the engine.
//
// A scenario declares a node tree, canned fetch responses, a script of
// steps and assertions over the resulting state and trace:
//
//	name: chain
//	description: "x resolves first, y follows from x"
//	nodes:
//	  box:
//	    x: 5
//	    y$: [10, 2]
//	steps:
//	  - idle: true
//	assertions:
//	  - type: value
//	    node: box
//	    name: y
//	    expect: 10
//	  - type: trace_order
//	    events: ["box.x:done", "box.y:activate"]
//
// # Steps
//
//   - tick: run N ticks
//   - idle: tick until nothing is pending
//   - advance_ms: move the fake clock
//   - set: imperative override of one property
//   - resolve: deliver a response to matching outstanding fetches
//   - event: fire a named event on a node
//   - activate: start an inactive directive
//   - add / remove: change the tree
//
// # Assertion Types
//
//   - value: present value of a property (deep equality)
//   - status: lifecycle status of a directive
//   - renders: exact sequence of values written to the renderer
//   - trace_order: first occurrences of events appear in order. An
//     override of x is traced as box.x#imperative
//   - trace_count: a directive emitted an event type N times
//   - stored: number of events persisted for the run
//   - idle: the engine has no pending work
//
// # Deterministic Testing
//
// Every run uses a fake clock, sequential ids and an in-memory SQLite
// store, so traces are identical across runs and can be compared with
// golden snapshots (see Snapshot and RunWithGolden).
package harness
