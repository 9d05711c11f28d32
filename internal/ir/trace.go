package ir

// TraceType identifies a lifecycle event in the engine trace.
type TraceType string

const (
	TraceActivate   TraceType = "activate"
	TraceQueued     TraceType = "queued"
	TraceStep       TraceType = "step"
	TraceCycle      TraceType = "cycle"
	TraceDone       TraceType = "done"
	TraceComplete   TraceType = "complete"
	TraceFetch      TraceType = "fetch"
	TraceResult     TraceType = "result"
	TraceChildren   TraceType = "children"
	TraceImperative TraceType = "imperative"
	TraceSuperseded TraceType = "superseded"
)

// TraceEvent records one lifecycle transition.
//
// Seq is the engine's logical clock; Tick is the tick counter at the time
// of the event. Ordering is always by Seq.
type TraceEvent struct {
	Seq    int64     `json:"seq"`
	Tick   int64     `json:"tick"`
	NodeID string    `json:"node_id"`
	Name   string    `json:"name"`
	Type   TraceType `json:"type"`
	Status Status    `json:"status"`
	Step   int       `json:"step"`
	Steps  int       `json:"steps"`
	Cycle  int       `json:"cycle"`
	Value  Value     `json:"value"`
}

// Object renders the event as a Value for canonical serialization.
func (e TraceEvent) Object() Object {
	val := e.Value
	if val == nil {
		val = Null{}
	}
	return Object{
		"seq":     Number(e.Seq),
		"tick":    Number(e.Tick),
		"node_id": String(e.NodeID),
		"name":    String(e.Name),
		"type":    String(e.Type),
		"status":  String(e.Status),
		"step":    Number(e.Step),
		"steps":   Number(e.Steps),
		"cycle":   Number(e.Cycle),
		"value":   val,
	}
}
