package engine

import (
	"slices"

	"github.com/roach88/cadence/internal/ir"
)

// imperativeSuffix marks the state key of an imperative override.
const imperativeSuffix = "#imperative"

// Node is one element of the tree the engine drives.
//
// INVARIANTS:
//   - directives stay in declaration order; a replaced directive keeps its slot
//   - every key in active names a state in states
//   - only the ticking goroutine reads or writes a Node
type Node struct {
	ID        string
	CreatedBy string // directive on the parent that created this node

	parent   *Node
	children []*Node

	directives []*ir.Directive
	byName     map[string]*ir.Directive
	states     map[string]*State
	values     map[string]ir.Value
	controls   map[string]ir.Value
	hooks      map[string]ir.Callback

	active   []string // state keys that still need evaluation
	barriers []string // armed barrier directives
	removed  bool
}

func newNode(id string, parent *Node, createdBy string) *Node {
	return &Node{
		ID:        id,
		CreatedBy: createdBy,
		parent:    parent,
		byName:    make(map[string]*ir.Directive),
		states:    make(map[string]*State),
		values:    make(map[string]ir.Value),
		controls:  make(map[string]ir.Value),
		hooks:     make(map[string]ir.Callback),
	}
}

// Parent returns the parent node, nil for roots.
func (n *Node) Parent() *Node {
	return n.parent
}

// Children returns the child nodes in creation order.
func (n *Node) Children() []*Node {
	return slices.Clone(n.children)
}

// Value returns the present value of a property, Null when unset.
func (n *Node) Value(name string) ir.Value {
	if v, ok := n.values[name]; ok {
		return v
	}
	return ir.Null{}
}

// Values returns a copy of every present value.
func (n *Node) Values() ir.Object {
	out := make(ir.Object, len(n.values))
	for k, v := range n.values {
		out[k] = v
	}
	return out
}

// Control returns a structural keyword value.
func (n *Node) Control(name string) (ir.Value, bool) {
	v, ok := n.controls[name]
	return v, ok
}

// Directive returns the compiled directive registered under name.
func (n *Node) Directive(name string) (*ir.Directive, bool) {
	d, ok := n.byName[name]
	return d, ok
}

// Directives returns the compiled directives in declaration order.
func (n *Node) Directives() []*ir.Directive {
	return slices.Clone(n.directives)
}

// Active returns the state keys still being evaluated.
func (n *Node) Active() []string {
	return slices.Clone(n.active)
}

// Busy reports whether the node or any descendant has outstanding work.
func (n *Node) Busy() bool {
	for _, key := range n.active {
		if st := n.states[key]; st != nil && st.Status != ir.StatusComplete && st.Status != ir.StatusIdle {
			return true
		}
	}
	if len(n.barriers) > 0 {
		return true
	}
	for _, c := range n.children {
		if c.Busy() {
			return true
		}
	}
	return false
}

func (n *Node) markActive(key string) {
	if !slices.Contains(n.active, key) {
		n.active = append(n.active, key)
	}
}

func (n *Node) unmarkActive(key string) {
	n.active = slices.DeleteFunc(n.active, func(k string) bool { return k == key })
}

func (n *Node) arm(name string) {
	if !slices.Contains(n.barriers, name) {
		n.barriers = append(n.barriers, name)
	}
}

func (n *Node) disarm(name string) {
	n.barriers = slices.DeleteFunc(n.barriers, func(k string) bool { return k == name })
}

// activeOrder returns the active keys in processing order: declaration
// order, with an imperative override right after the state it shadows.
func (n *Node) activeOrder() []string {
	keys := slices.Clone(n.active)
	slices.SortStableFunc(keys, func(a, b string) int {
		sa, sb := n.states[a], n.states[b]
		if d := sa.order() - sb.order(); d != 0 {
			return d
		}
		if sa.IsImperative != sb.IsImperative {
			if sa.IsImperative {
				return 1
			}
			return -1
		}
		return 0
	})
	return keys
}

// preorder appends n and its descendants depth-first.
func (n *Node) preorder(out []*Node) []*Node {
	out = append(out, n)
	for _, c := range n.children {
		out = c.preorder(out)
	}
	return out
}

func (n *Node) detach(child *Node) {
	n.children = slices.DeleteFunc(n.children, func(c *Node) bool { return c == child })
}
