package engine

import (
	"sync"

	"github.com/roach88/cadence/internal/ir"
)

// EventType distinguishes between event kinds.
type EventType int

const (
	// EventTypeFetchResult carries a loader completion.
	EventTypeFetchResult EventType = iota + 1
	// EventTypeCommand carries a command posted from another goroutine.
	EventTypeCommand
)

// Event is an input handed to the engine between ticks.
type Event struct {
	Type EventType

	// EventTypeFetchResult
	ActionID string
	Success  bool
	Result   ir.Value

	// EventTypeCommand
	Command Command
}

// eventQueue is a thread-safe FIFO queue for events.
//
// Loaders complete from their own goroutines; the engine drains the
// queue at the start of every tick so all state mutation stays on the
// ticking goroutine.
//
// The queue uses a channel for signaling so a caller can wait for input
// with select alongside ctx.Done().
type eventQueue struct {
	mu     sync.Mutex
	events []Event
	closed bool
	signal chan struct{} // buffered, size 1
}

// newEventQueue creates an empty event queue.
func newEventQueue() *eventQueue {
	return &eventQueue{
		events: make([]Event, 0, 64),
		signal: make(chan struct{}, 1),
	}
}

// Enqueue adds an event to the back of the queue.
// Thread-safe: may be called from any goroutine.
// Returns false if the queue is closed.
func (q *eventQueue) Enqueue(e Event) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return false
	}

	q.events = append(q.events, e)

	// Non-blocking: the buffer of 1 coalesces multiple signals.
	select {
	case q.signal <- struct{}{}:
	default:
	}

	return true
}

// TryDequeue attempts to dequeue without blocking.
// Returns (Event{}, false) if queue is empty.
func (q *eventQueue) TryDequeue() (Event, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.events) == 0 {
		return Event{}, false
	}

	e := q.events[0]

	// Nil out the slot so the backing array does not retain results.
	q.events[0] = Event{}

	if len(q.events) == 1 {
		q.events = q.events[:0]
	} else {
		q.events = q.events[1:]
	}

	return e, true
}

// Wait returns a channel that signals when events may be available.
func (q *eventQueue) Wait() <-chan struct{} {
	return q.signal
}

// Len returns the current queue length.
func (q *eventQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.events)
}

// Close signals that no more events will be enqueued.
func (q *eventQueue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return
	}

	q.closed = true
	close(q.signal)
}
