package engine

import (
	"fmt"

	"github.com/roach88/cadence/internal/compiler"
	"github.com/roach88/cadence/internal/ir"
)

// errNoLoader is the error result of fetches started without a Loader.
const errNoLoader = "no loader configured"

// fetchBatch tracks the loads started by one activation of a fetch
// directive.
type fetchBatch struct {
	expected int
	arrived  int
	results  []ir.Value
}

// fetchAction is one outstanding load, keyed by its id.
type fetchAction struct {
	nodeID string
	key    string
	index  int
	batch  *fetchBatch
}

// startFetch issues one request per source URL and moves st to fetching.
func (e *Engine) startFetch(n *Node, st *State, scope ir.Scope) {
	d := st.directive
	raw := d.Params.Value.Raw
	if fn := d.Params.Value.Func; fn != nil {
		var err error
		if raw, err = e.call(n, st, fn, scope); err != nil {
			e.logger.Warn("fetch source resolution failed", "node", n.ID, "name", st.Name, "error", err)
			raw = nil
		}
	}
	urls := fetchURLs(raw)

	batch := &fetchBatch{expected: len(urls), results: make([]ir.Value, len(urls))}
	st.fetch = batch
	st.LoadErrors = 0
	st.Executed = true
	st.ExecutionCount++
	st.Status = ir.StatusFetching
	e.recordValue(n, st, ir.TraceFetch, ir.MustFromGo(urls))

	for i, url := range urls {
		id := e.ids.Generate()
		e.actions[id] = &fetchAction{nodeID: n.ID, key: st.Name, index: i, batch: batch}
		if e.loader == nil {
			e.queue.Enqueue(Event{Type: EventTypeFetchResult, ActionID: id, Result: ir.String(errNoLoader)})
			continue
		}
		req := FetchRequest{ID: id, NodeID: n.ID, Name: st.Name, URL: url, Image: d.Image}
		if err := e.tracker.run(n, st.Name, func() { e.loader.Fetch(req) }); err != nil {
			e.logger.Warn("loader failed", "node", n.ID, "url", url, "error", err)
			e.queue.Enqueue(Event{Type: EventTypeFetchResult, ActionID: id, Result: ir.String(err.Error())})
		}
	}
}

func fetchURLs(raw any) []string {
	var urls []string
	add := func(v any) {
		switch s := v.(type) {
		case string:
			urls = append(urls, s)
		case ir.String:
			urls = append(urls, string(s))
		}
	}
	if arr, ok := compiler.ArrayOf(raw); ok {
		for _, elem := range arr {
			add(elem)
		}
		return urls
	}
	add(raw)
	return urls
}

// Complete reports the result of a fetch. result is any authored value;
// an error result on failure becomes its message.
//
// Thread-safe: may be called from any goroutine, including from inside
// Loader.Fetch. The result is applied on the next tick. Returns false if
// the engine has been stopped.
func (e *Engine) Complete(id string, success bool, result any) bool {
	var v ir.Value
	switch r := result.(type) {
	case error:
		v = ir.String(r.Error())
	default:
		conv, err := ir.FromGo(result)
		if err != nil {
			conv = ir.String(fmt.Sprint(result))
		}
		v = conv
	}
	return e.queue.Enqueue(Event{Type: EventTypeFetchResult, ActionID: id, Success: success, Result: v})
}

// deliver applies one fetch result drained from the queue.
func (e *Engine) deliver(ev Event) {
	act, ok := e.actions[ev.ActionID]
	if !ok {
		e.logger.Warn("result for unknown fetch", "id", ev.ActionID)
		return
	}
	delete(e.actions, ev.ActionID)

	n, ok := e.nodes[act.nodeID]
	if !ok {
		return // node removed while the fetch was outstanding
	}
	st, ok := n.states[act.key]
	if !ok || st.fetch != act.batch {
		return // superseded by a newer activation
	}

	val := ev.Result
	if val == nil {
		val = ir.Null{}
	}
	cbs := e.callbacksFor(n, st)
	if ev.Success {
		e.fire(n, st, cbs.OnSuccess, val, "")
	} else {
		msg := ir.Format(val)
		if s, ok := val.(ir.String); ok {
			msg = string(s)
		}
		val = ir.Object{"error": ir.String(msg)}
		st.LoadErrors++
		e.errorCount++
		e.logger.Warn("fetch failed", "node", n.ID, "name", st.Name, "id", ev.ActionID, "error", msg)
		e.fire(n, st, cbs.OnError, val, msg)
	}

	act.batch.results[act.index] = val
	act.batch.arrived++
	e.recordValue(n, st, ir.TraceResult, val)

	if next := st.directive.Next; next != "" {
		if nd, ok := n.byName[next]; ok && nd.Continuation == ir.ContinueImmediate {
			e.activate(n, next, val)
		}
	}
}

// pollFetch completes a fetching state once every result has arrived.
func (e *Engine) pollFetch(n *Node, st *State) {
	b := st.fetch
	if b == nil || b.arrived < b.expected {
		return
	}
	var v ir.Value = ir.Array(b.results)
	if b.expected == 1 {
		v = b.results[0]
	}
	e.writeValue(n, st, v)
	e.finish(n, st)
}

// IsLoadingComplete reports whether every load started by the latest
// activation of the fetch directive has arrived.
func (e *Engine) IsLoadingComplete(nodeID, name string) bool {
	n, ok := e.nodes[nodeID]
	if !ok {
		return false
	}
	st, ok := n.states[name]
	if !ok || !st.Executed {
		return false
	}
	if b := st.fetch; b != nil {
		return b.arrived == b.expected
	}
	return st.Status != ir.StatusFetching
}

// IsLoadingSuccessful reports whether loading completed without errors.
func (e *Engine) IsLoadingSuccessful(nodeID, name string) bool {
	if !e.IsLoadingComplete(nodeID, name) {
		return false
	}
	st := e.nodes[nodeID].states[name]
	return st.LoadErrors == 0
}
