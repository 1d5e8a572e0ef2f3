package bus

import (
	"errors"

	"main/internal/obs"
	"main/internal/schema"
)

// Publisher bridges engine callbacks onto a Queue. Full or closed queues are
// counted and the event dropped, never blocking the apply path.
type Publisher struct {
	queue   *Queue
	metrics *obs.Metrics
}

// NewPublisher wraps a queue with drop accounting.
func NewPublisher(queue *Queue, metrics *obs.Metrics) *Publisher {
	return &Publisher{queue: queue, metrics: metrics}
}

// OnOrderUpdated publishes an order state change.
func (p *Publisher) OnOrderUpdated(order schema.Order) {
	p.publish(Event{Kind: EventOrderUpdated, Order: &order})
}

// OnFillApplied publishes an applied fill with the post-fill order state.
func (p *Publisher) OnFillApplied(order schema.Order, report schema.ExecutionReport) {
	p.publish(Event{Kind: EventFillApplied, Order: &order, Report: &report})
}

// OnPositionUpdated publishes a position change.
func (p *Publisher) OnPositionUpdated(position schema.Position) {
	p.publish(Event{Kind: EventPositionUpdated, Position: &position})
}

// OnPositionClosed publishes a position returning to flat.
func (p *Publisher) OnPositionClosed(position schema.Position) {
	p.publish(Event{Kind: EventPositionClosed, Position: &position})
}

func (p *Publisher) publish(e Event) {
	if p == nil || p.queue == nil {
		return
	}
	if err := p.queue.TryPublish(e); err != nil {
		if errors.Is(err, ErrQueueClosed) {
			p.metrics.IncQueueClosed()
			return
		}
		p.metrics.IncQueueDrop()
	}
}
