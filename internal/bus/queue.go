package bus

import (
	"context"
	"errors"
	"sync"

	"main/internal/schema"
)

var (
	ErrQueueFull   = errors.New("event queue full")
	ErrQueueClosed = errors.New("event queue closed")
)

// EventKind classifies bus events.
type EventKind uint8

const (
	EventUnknown EventKind = iota
	EventOrderUpdated
	EventFillApplied
	EventPositionUpdated
	EventPositionClosed
)

func (k EventKind) String() string {
	switch k {
	case EventOrderUpdated:
		return "OrderUpdated"
	case EventFillApplied:
		return "FillApplied"
	case EventPositionUpdated:
		return "PositionUpdated"
	case EventPositionClosed:
		return "PositionClosed"
	default:
		return "Unknown"
	}
}

// Event is the unit passed through the in-memory bus. Order and Position are
// snapshots taken at publish time, never shared mutable state.
type Event struct {
	Kind     EventKind
	Order    *schema.Order
	Report   *schema.ExecutionReport
	Position *schema.Position
}

// Queue is a bounded, non-blocking event queue.
type Queue struct {
	ch     chan Event
	mu     sync.RWMutex
	closed bool
}

// NewQueue allocates a queue with the given capacity.
func NewQueue(capacity int) *Queue {
	if capacity <= 0 {
		capacity = 1
	}
	return &Queue{ch: make(chan Event, capacity)}
}

// TryPublish enqueues an event without blocking. The lock is held across the
// send so Close can never close the channel under a publisher in flight.
func (q *Queue) TryPublish(e Event) error {
	q.mu.RLock()
	defer q.mu.RUnlock()
	if q.closed {
		return ErrQueueClosed
	}
	select {
	case q.ch <- e:
		return nil
	default:
		return ErrQueueFull
	}
}

// Close stops the queue from accepting new events.
func (q *Queue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return
	}
	q.closed = true
	close(q.ch)
}

// Run consumes events until the context is done or the queue is closed.
func (q *Queue) Run(ctx context.Context, handler func(Event)) {
	for {
		select {
		case <-ctx.Done():
			return
		case e, ok := <-q.ch:
			if !ok {
				return
			}
			handler(e)
		}
	}
}
