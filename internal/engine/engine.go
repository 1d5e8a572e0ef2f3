// Package engine coordinates the durable order path: validate, append to the
// write-ahead log, then apply to the in-memory order table and position
// ledger. Nothing mutates state before its record is on disk, which is what
// lets recovery rebuild the exact same state by replaying the log.
package engine

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"github.com/yanun0323/logs"

	"main/internal/codec"
	"main/internal/obs"
	"main/internal/oms"
	"main/internal/position"
	"main/internal/risk"
	"main/internal/schema"
	"main/internal/wal"
)

var (
	ErrNotRecovered = errors.New("engine has not completed recovery")
	ErrUnavailable  = errors.New("engine unavailable after durability failure")
	ErrRiskRejected = errors.New("order rejected by pre-trade checks")
	ErrInvalidOrder = errors.New("invalid order request")
)

// Observer receives state change notifications after the change is durable
// and applied. Callbacks must not block.
type Observer interface {
	OnOrderUpdated(order schema.Order)
	OnFillApplied(order schema.Order, report schema.ExecutionReport)
	OnPositionUpdated(position schema.Position)
	OnPositionClosed(position schema.Position)
}

// Config tunes engine behavior outside the log itself.
type Config struct {
	// CheckpointInterval is the number of applied records between automatic
	// checkpoints. Zero disables automatic checkpointing.
	CheckpointInterval int
}

// Engine is the single writer over the log, table, and ledger. All mutations
// serialize through its mutex; reads go through the table's and ledger's own
// locks and return copies.
type Engine struct {
	cfg       Config
	store     *wal.Store
	table     *oms.Table
	ledger    *position.Ledger
	checker   *risk.Engine
	metrics   *obs.Metrics
	observers []Observer

	mu              sync.Mutex
	recovered       bool
	unavailable     bool
	sinceCheckpoint int

	nowFn func() int64
}

// New wires an engine over an opened store. Recover must be called before any
// operation is accepted.
func New(cfg Config, store *wal.Store, table *oms.Table, ledger *position.Ledger, checker *risk.Engine, metrics *obs.Metrics, observers ...Observer) *Engine {
	return &Engine{
		cfg:       cfg,
		store:     store,
		table:     table,
		ledger:    ledger,
		checker:   checker,
		metrics:   metrics,
		observers: observers,
		nowFn:     func() int64 { return time.Now().UTC().UnixNano() },
	}
}

func (e *Engine) gateLocked() error {
	if e.unavailable {
		return ErrUnavailable
	}
	if !e.recovered {
		return ErrNotRecovered
	}
	return nil
}

// PlaceOrder validates and durably accepts a new order. The order is logged
// and inserted in the New status; acknowledgment arrives later as an
// execution report.
func (e *Engine) PlaceOrder(req schema.PlaceOrderRequest) (schema.Order, error) {
	var emits []func()
	defer runEmits(&emits)
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.gateLocked(); err != nil {
		return schema.Order{}, err
	}
	if err := validatePlace(req); err != nil {
		return schema.Order{}, err
	}
	if _, ok := e.table.Get(req.ClientOrderID); ok {
		return schema.Order{}, oms.ErrDuplicateOrder
	}

	decision := e.checker.Evaluate(req, e.ledger.View(req.Symbol))
	if !decision.Allowed {
		e.metrics.IncRiskRejection()
		return schema.Order{}, fmt.Errorf("%s: %w", decision.Reason, ErrRiskRejected)
	}

	now := e.nowFn()
	order := schema.Order{
		ClientOrderID: req.ClientOrderID,
		Symbol:        req.Symbol,
		Side:          req.Side,
		Type:          req.Type,
		Price:         req.Price,
		Quantity:      req.Quantity,
		Status:        schema.OrderStatusNew,
		StrategyID:    req.StrategyID,
		CreatedAtNs:   now,
		UpdatedAtNs:   now,
	}
	payload, err := codec.EncodeOrderNew(order)
	if err != nil {
		return schema.Order{}, err
	}
	if err := e.appendLocked(schema.RecordOrderNew, payload); err != nil {
		return schema.Order{}, err
	}
	if err := e.table.Insert(order); err != nil {
		return schema.Order{}, err
	}
	emits = append(emits, func() { e.notifyOrder(order) })
	e.recordAppliedLocked()
	return order, nil
}

// HandleExecutionReport applies a venue report through the log. Duplicate
// fills return the unchanged order without touching the log; invalid reports
// are rejected before any record is written.
func (e *Engine) HandleExecutionReport(report schema.ExecutionReport) (schema.Order, error) {
	var emits []func()
	defer runEmits(&emits)
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.gateLocked(); err != nil {
		return schema.Order{}, err
	}

	start := time.Now()
	noop, err := e.table.Check(report)
	if err != nil {
		switch {
		case errors.Is(err, oms.ErrUnknownOrder):
			e.metrics.IncUnknownOrder()
			logs.Warnf("report for unknown order %s dropped", report.ClientOrderID)
		case errors.Is(err, oms.ErrOverfill):
			e.metrics.IncOverfill()
			logs.Errorf("overfill rejected for order %s, execution %s", report.ClientOrderID, report.ExecutionID)
		}
		return schema.Order{}, err
	}
	if noop {
		e.metrics.IncDuplicateFill()
		order, _ := e.table.Get(report.ClientOrderID)
		return order, nil
	}

	payload, err := codec.EncodeExecution(report)
	if err != nil {
		return schema.Order{}, err
	}
	if err := e.appendLocked(recordTypeFor(report.Delta), payload); err != nil {
		return schema.Order{}, err
	}

	order, err := e.applyReportLocked(report, &emits)
	if err != nil {
		return schema.Order{}, err
	}
	e.metrics.ObserveApply(time.Since(start))
	e.recordAppliedLocked()
	return order, nil
}

// applyReportLocked mutates in-memory state for a report whose record is
// already durable. Recovery replays through this same path with a nil emits
// slice, suppressing notifications. Timestamps come from the report when
// present so replayed state matches the state the live run produced.
// Notifications are queued onto emits and fired by the caller after the
// engine lock is released; callbacks never run under the lock.
func (e *Engine) applyReportLocked(report schema.ExecutionReport, emits *[]func()) (schema.Order, error) {
	now := report.TimestampNs
	if now == 0 {
		now = e.nowFn()
	}
	order, noop, err := e.table.Apply(report, now)
	if err != nil {
		return schema.Order{}, err
	}
	if noop {
		return order, nil
	}
	if emits != nil {
		*emits = append(*emits, func() { e.notifyOrder(order) })
	}
	if report.Delta == schema.DeltaFill {
		pos := e.ledger.ApplyFill(order.Symbol, order.Side, report.FillPrice, report.FillQty, report.Fee, now, order.ClientOrderID)
		if emits != nil {
			*emits = append(*emits, func() {
				for _, ob := range e.observers {
					ob.OnFillApplied(order, report)
					ob.OnPositionUpdated(pos)
					if pos.IsFlat() {
						ob.OnPositionClosed(pos)
					}
				}
			})
		}
	}
	return order, nil
}

// CancelOrder validates that a cancel can be requested for the order. The
// state change itself lands later as a cancel report from the venue.
func (e *Engine) CancelOrder(req schema.CancelOrderRequest) (schema.Order, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.gateLocked(); err != nil {
		return schema.Order{}, err
	}
	order, ok := e.table.Get(req.ClientOrderID)
	if !ok {
		return schema.Order{}, oms.ErrUnknownOrder
	}
	if order.Status.IsTerminal() {
		return schema.Order{}, fmt.Errorf("cancel of %s order: %w", order.Status, oms.ErrInvalidTransition)
	}
	if order.Status == schema.OrderStatusNew {
		return schema.Order{}, fmt.Errorf("cancel before acknowledgment: %w", oms.ErrInvalidTransition)
	}
	return order, nil
}

func (e *Engine) appendLocked(recordType schema.RecordType, payload []byte) error {
	start := time.Now()
	_, err := e.store.Append(recordType, payload)
	if err != nil {
		if errors.Is(err, wal.ErrDurability) {
			e.unavailable = true
			logs.Errorf("durability failure, engine halted: %+v", err)
		}
		return err
	}
	e.metrics.IncRecord(recordType)
	e.metrics.ObserveAppend(time.Since(start))
	return nil
}

func (e *Engine) recordAppliedLocked() {
	if e.cfg.CheckpointInterval <= 0 {
		return
	}
	e.sinceCheckpoint++
	if e.sinceCheckpoint < e.cfg.CheckpointInterval {
		return
	}
	if err := e.checkpointLocked(); err != nil {
		logs.Errorf("periodic checkpoint failed: %+v", err)
		return
	}
	e.sinceCheckpoint = 0
}

func (e *Engine) notifyOrder(order schema.Order) {
	for _, ob := range e.observers {
		ob.OnOrderUpdated(order)
	}
}

func runEmits(emits *[]func()) {
	for _, f := range *emits {
		f()
	}
}

// GetOrder returns a copy of the order.
func (e *Engine) GetOrder(clientOrderID string) (schema.Order, bool) {
	return e.table.Get(clientOrderID)
}

// ListOrders returns copies of orders matching the filter.
func (e *Engine) ListOrders(filter oms.Filter) []schema.Order {
	return e.table.List(filter)
}

// GetPosition returns the current position for a symbol.
func (e *Engine) GetPosition(symbol string) (schema.Position, bool) {
	return e.ledger.Get(symbol)
}

// PositionSnapshot returns a marked view of one position.
func (e *Engine) PositionSnapshot(symbol string, markPrice decimal.Decimal) (schema.PositionSnapshot, bool) {
	return e.ledger.Snapshot(symbol, markPrice)
}

// AggregatePositions returns a marked view across all positions.
func (e *Engine) AggregatePositions(markPrices map[string]decimal.Decimal) schema.AggregateSnapshot {
	return e.ledger.Aggregate(markPrices)
}

// ReconcilePosition compares the ledger size for a symbol against a
// venue-reported size. Drift is counted and logged, never auto-corrected.
func (e *Engine) ReconcilePosition(symbol string, venueSize decimal.Decimal) (bool, decimal.Decimal) {
	pos := e.ledger.View(symbol)
	diff := pos.Size.Sub(venueSize)
	if diff.IsZero() {
		return true, diff
	}
	e.metrics.IncReconcileDrift()
	logs.Warnf("position drift on %s: ledger %s, venue %s", symbol, pos.Size.String(), venueSize.String())
	return false, diff
}

// Metrics returns a snapshot of engine counters.
func (e *Engine) Metrics() obs.Snapshot {
	return e.metrics.Snapshot()
}

// Close writes a final checkpoint when possible and closes the log.
func (e *Engine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.recovered && !e.unavailable {
		if err := e.checkpointLocked(); err != nil {
			logs.Errorf("final checkpoint failed: %+v", err)
		}
	}
	return e.store.Close()
}

func validatePlace(req schema.PlaceOrderRequest) error {
	if req.ClientOrderID == "" {
		return fmt.Errorf("empty client order id: %w", ErrInvalidOrder)
	}
	if req.Symbol == "" {
		return fmt.Errorf("empty symbol: %w", ErrInvalidOrder)
	}
	if req.StrategyID == "" {
		return fmt.Errorf("empty strategy id: %w", ErrInvalidOrder)
	}
	if req.Side != schema.OrderSideBuy && req.Side != schema.OrderSideSell {
		return fmt.Errorf("unknown side: %w", ErrInvalidOrder)
	}
	if !req.Quantity.IsPositive() {
		return fmt.Errorf("quantity must be positive: %w", ErrInvalidOrder)
	}
	if req.Type == schema.OrderTypeLimit && !req.Price.IsPositive() {
		return fmt.Errorf("limit order requires positive price: %w", ErrInvalidOrder)
	}
	return nil
}

func recordTypeFor(delta schema.StatusDelta) schema.RecordType {
	switch delta {
	case schema.DeltaFill:
		return schema.RecordOrderFill
	case schema.DeltaCancel:
		return schema.RecordOrderCancel
	default:
		return schema.RecordOrderUpdate
	}
}
