package testutil

import (
	"slices"
	"sync"

	"github.com/roach88/cadence/internal/engine"
	"github.com/roach88/cadence/internal/ir"
)

// Completer receives fetch results. Implemented by *engine.Engine.
type Completer interface {
	Complete(id string, success bool, result any) bool
}

// Response is a canned loader answer.
type Response struct {
	Success bool
	Result  any
}

// FakeLoader records fetch requests and answers them from Responses.
//
// A URL with a canned response completes synchronously inside Fetch;
// others stay outstanding until Resolve is called.
//
// Thread-safety: All methods are safe for concurrent use via internal mutex.
type FakeLoader struct {
	mu        sync.Mutex
	target    Completer
	responses map[string]Response
	requests  []engine.FetchRequest
	open      []engine.FetchRequest
}

// NewFakeLoader creates a loader with no canned responses.
func NewFakeLoader() *FakeLoader {
	return &FakeLoader{responses: make(map[string]Response)}
}

// Bind sets the engine that receives completions.
func (l *FakeLoader) Bind(c Completer) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.target = c
}

// Respond registers a canned response for url.
func (l *FakeLoader) Respond(url string, success bool, result any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.responses[url] = Response{Success: success, Result: result}
}

// Fetch implements engine.Loader.
func (l *FakeLoader) Fetch(req engine.FetchRequest) {
	l.mu.Lock()
	l.requests = append(l.requests, req)
	resp, canned := l.responses[req.URL]
	target := l.target
	if !canned {
		l.open = append(l.open, req)
	}
	l.mu.Unlock()

	if canned && target != nil {
		target.Complete(req.ID, resp.Success, resp.Result)
	}
}

// Resolve completes every outstanding request for url and returns how
// many were completed.
func (l *FakeLoader) Resolve(url string, success bool, result any) int {
	l.mu.Lock()
	var matched []engine.FetchRequest
	l.open = slices.DeleteFunc(l.open, func(r engine.FetchRequest) bool {
		if r.URL == url {
			matched = append(matched, r)
			return true
		}
		return false
	})
	target := l.target
	l.mu.Unlock()

	for _, r := range matched {
		if target != nil {
			target.Complete(r.ID, success, result)
		}
	}
	return len(matched)
}

// Requests returns every request seen, in order.
func (l *FakeLoader) Requests() []engine.FetchRequest {
	l.mu.Lock()
	defer l.mu.Unlock()
	return slices.Clone(l.requests)
}

// Outstanding returns the number of unanswered requests.
func (l *FakeLoader) Outstanding() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.open)
}

// Write is one renderer call.
type Write struct {
	NodeID string
	Name   string
	Value  ir.Value
}

// RecordingRenderer implements engine.Renderer by keeping every write.
type RecordingRenderer struct {
	Writes []Write
}

// Apply implements engine.Renderer.
func (r *RecordingRenderer) Apply(nodeID, name string, v ir.Value) {
	r.Writes = append(r.Writes, Write{NodeID: nodeID, Name: name, Value: v})
}

// Values returns the written values for one property, in order.
func (r *RecordingRenderer) Values(nodeID, name string) []ir.Value {
	var out []ir.Value
	for _, w := range r.Writes {
		if w.NodeID == nodeID && w.Name == name {
			out = append(out, w.Value)
		}
	}
	return out
}

// TraceRecorder implements engine.Recorder by keeping every event.
type TraceRecorder struct {
	Events []ir.TraceEvent
}

// Record implements engine.Recorder.
func (r *TraceRecorder) Record(ev ir.TraceEvent) {
	r.Events = append(r.Events, ev)
}

// For returns the events of one state.
func (r *TraceRecorder) For(nodeID, name string) []ir.TraceEvent {
	var out []ir.TraceEvent
	for _, ev := range r.Events {
		if ev.NodeID == nodeID && ev.Name == name {
			out = append(out, ev)
		}
	}
	return out
}

// Types returns the event types of one state, in order.
func (r *TraceRecorder) Types(nodeID, name string) []ir.TraceType {
	var out []ir.TraceType
	for _, ev := range r.For(nodeID, name) {
		out = append(out, ev.Type)
	}
	return out
}

// First returns the seq of the first event of a type, 0 when absent.
func (r *TraceRecorder) First(nodeID, name string, typ ir.TraceType) int64 {
	for _, ev := range r.For(nodeID, name) {
		if ev.Type == typ {
			return ev.Seq
		}
	}
	return 0
}

// ManualEvents implements engine.EventSource. Fired events match once.
type ManualEvents struct {
	fired map[string]int
}

// Fire queues one occurrence of event on nodeID.
func (m *ManualEvents) Fire(nodeID, event string) {
	if m.fired == nil {
		m.fired = make(map[string]int)
	}
	m.fired[nodeID+"/"+event]++
}

// Matches implements engine.EventSource.
func (m *ManualEvents) Matches(nodeID, event string) bool {
	key := nodeID + "/" + event
	if m.fired[key] == 0 {
		return false
	}
	m.fired[key]--
	return true
}

// StaticLayout implements engine.Layout from fixed tables.
type StaticLayout struct {
	Hidden     map[string]bool
	Geometries map[string]ir.Geometry
}

// Eligible implements engine.Layout.
func (l *StaticLayout) Eligible(n *engine.Node) bool {
	return !l.Hidden[n.ID]
}

// Geometry implements engine.Layout.
func (l *StaticLayout) Geometry(n *engine.Node) ir.Geometry {
	return l.Geometries[n.ID]
}
