// Package oms holds the in-memory order table and its state machine. Every
// mutation is first durably logged by the WAL store; the engine enforces
// that ordering, the table enforces transition legality, fill deduplication,
// and the overfill invariant.
package oms

import (
	"sync"

	"github.com/yanun0323/errors"

	"main/internal/schema"
)

var (
	ErrUnknownOrder      = errors.New("order not found")
	ErrDuplicateOrder    = errors.New("order already exists")
	ErrInvalidTransition = errors.New("invalid order state transition")
	ErrInvalidFill       = errors.New("invalid fill quantity")
	ErrOverfill          = errors.New("fill exceeds order quantity")
)

// maxAppliedExecutionIDs bounds the per-order dedup set; the oldest IDs are
// evicted first.
const maxAppliedExecutionIDs = 1024

// Filter selects orders from List. Zero values match everything.
type Filter struct {
	Symbol     string
	StrategyID string
	Status     schema.OrderStatus
	ActiveOnly bool
}

// Table is the in-memory map of client order ID to order. Mutation goes
// through Check/Apply; reads return deep copies so callers never observe a
// half-applied transition.
type Table struct {
	mu     sync.RWMutex
	orders map[string]*schema.Order
}

// NewTable creates an empty order table.
func NewTable() *Table {
	return &Table{orders: make(map[string]*schema.Order)}
}

// Insert registers a new order. The order keeps its caller-assigned client
// order ID forever; closed orders remain queryable.
func (t *Table) Insert(order schema.Order) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.orders[order.ClientOrderID]; ok {
		return ErrDuplicateOrder
	}
	cp := order.Clone()
	t.orders[order.ClientOrderID] = &cp
	return nil
}

// Get returns a copy of the order.
func (t *Table) Get(clientOrderID string) (schema.Order, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	o, ok := t.orders[clientOrderID]
	if !ok {
		return schema.Order{}, false
	}
	return o.Clone(), true
}

// List returns copies of all orders matching the filter.
func (t *Table) List(filter Filter) []schema.Order {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]schema.Order, 0, len(t.orders))
	for _, o := range t.orders {
		if filter.Symbol != "" && o.Symbol != filter.Symbol {
			continue
		}
		if filter.StrategyID != "" && o.StrategyID != filter.StrategyID {
			continue
		}
		if filter.Status != schema.OrderStatusUnknown && o.Status != filter.Status {
			continue
		}
		if filter.ActiveOnly && o.Status.IsTerminal() {
			continue
		}
		out = append(out, o.Clone())
	}
	return out
}

// Count returns the number of tracked orders.
func (t *Table) Count() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.orders)
}

// Check validates a report against current state without mutating anything.
// It returns noop=true when the report is a duplicate fill that must be
// absorbed silently. The engine calls Check before the WAL append so invalid
// reports never reach the log.
func (t *Table) Check(report schema.ExecutionReport) (noop bool, err error) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	o, ok := t.orders[report.ClientOrderID]
	if !ok {
		return false, ErrUnknownOrder
	}
	return t.checkOrder(o, report)
}

func (t *Table) checkOrder(o *schema.Order, report schema.ExecutionReport) (bool, error) {
	if report.Delta == schema.DeltaFill && o.HasExecution(report.ExecutionID) {
		return true, nil
	}
	if !canTransition(o.Status, report.Delta) {
		return false, errors.Wrap(ErrInvalidTransition, o.Status.String()+" -> "+report.Delta.String())
	}
	if report.Delta == schema.DeltaFill {
		if !report.FillQty.IsPositive() {
			return false, ErrInvalidFill
		}
		if o.FilledQuantity.Add(report.FillQty).GreaterThan(o.Quantity) {
			return false, ErrOverfill
		}
	}
	return false, nil
}

// Apply mutates the order per the report's status delta and returns a copy
// of the updated order. Duplicate fills are an idempotent no-op returning
// the unchanged order; this is what makes replay and at-least-once delivery
// safe. The caller must have durably logged the record first.
func (t *Table) Apply(report schema.ExecutionReport, nowNs int64) (schema.Order, bool, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	o, ok := t.orders[report.ClientOrderID]
	if !ok {
		return schema.Order{}, false, ErrUnknownOrder
	}
	noop, err := t.checkOrder(o, report)
	if err != nil {
		return o.Clone(), false, err
	}
	if noop {
		return o.Clone(), true, nil
	}

	if report.ExchangeOrderID != "" && o.ExchangeOrderID == "" {
		o.ExchangeOrderID = report.ExchangeOrderID
	}

	switch report.Delta {
	case schema.DeltaFill:
		t.applyFill(o, report)
	default:
		o.Status = nextStatus(report.Delta)
	}
	o.UpdatedAtNs = nowNs
	return o.Clone(), false, nil
}

// applyFill books the fill: filled quantity grows, the average fill price is
// recomputed as the fill-quantity-weighted mean over all applied fills, and
// the execution ID joins the bounded dedup set.
func (t *Table) applyFill(o *schema.Order, report schema.ExecutionReport) {
	prevNotional := o.AvgFillPrice.Mul(o.FilledQuantity)
	fillNotional := report.FillPrice.Mul(report.FillQty)
	o.FilledQuantity = o.FilledQuantity.Add(report.FillQty)
	o.AvgFillPrice = prevNotional.Add(fillNotional).Div(o.FilledQuantity)

	o.AppliedExecutionIDs = append(o.AppliedExecutionIDs, report.ExecutionID)
	if len(o.AppliedExecutionIDs) > maxAppliedExecutionIDs {
		o.AppliedExecutionIDs = o.AppliedExecutionIDs[len(o.AppliedExecutionIDs)-maxAppliedExecutionIDs:]
	}

	if o.FilledQuantity.Equal(o.Quantity) {
		o.Status = schema.OrderStatusFilled
	} else {
		o.Status = schema.OrderStatusPartiallyFilled
	}
}

// Restore replaces the table contents with a checkpoint snapshot.
func (t *Table) Restore(orders []schema.Order) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.orders = make(map[string]*schema.Order, len(orders))
	for i := range orders {
		cp := orders[i].Clone()
		t.orders[cp.ClientOrderID] = &cp
	}
}

// SnapshotAll returns copies of every order, for checkpointing.
func (t *Table) SnapshotAll() []schema.Order {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]schema.Order, 0, len(t.orders))
	for _, o := range t.orders {
		out = append(out, o.Clone())
	}
	return out
}
