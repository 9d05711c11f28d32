package engine

// frame identifies the directive whose user code is running.
type frame struct {
	node *Node
	name string
}

// tracker holds the stack of directives currently resolving. Child nodes
// and fetch actions created while a frame is on the stack are attributed
// to it.
type tracker struct {
	stack []frame
}

// run pushes a frame, calls fn, and restores the previous frame even when
// fn panics. A panic is converted to a RESOLVE_PANIC error.
func (t *tracker) run(node *Node, name string, fn func()) (err error) {
	t.stack = append(t.stack, frame{node: node, name: name})
	defer func() {
		t.stack = t.stack[:len(t.stack)-1]
		if r := recover(); r != nil {
			err = NewResolvePanicError(node.ID, name, r)
		}
	}()
	fn()
	return nil
}

func (t *tracker) current() (frame, bool) {
	if len(t.stack) == 0 {
		return frame{}, false
	}
	return t.stack[len(t.stack)-1], true
}
