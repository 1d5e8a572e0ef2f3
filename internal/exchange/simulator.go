package exchange

import (
	"context"
	"errors"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"main/internal/schema"
)

var (
	ErrSimulatorClosed = errors.New("simulator closed")
	ErrSimUnknownOrder = errors.New("simulator does not know this order")
)

// SimulatorConfig tunes the built-in venue simulator.
type SimulatorConfig struct {
	Seed int64
	// FillSlice is the number of partial fills a filled order is split into.
	FillSlice int
	// RejectRate is the probability an order is rejected instead of acked.
	RejectRate float64
	// QueueSize bounds the report channel.
	QueueSize int
}

type simOrder struct {
	order     schema.Order
	remaining decimal.Decimal
}

// Simulator is an in-process venue. Every accepted order is acked and then
// filled completely at its limit price, split into FillSlice partial fills.
// Reports carry fresh execution IDs so the engine's dedup path sees realistic
// input.
type Simulator struct {
	cfg SimulatorConfig

	mu     sync.Mutex
	rng    *rand.Rand
	open   map[string]*simOrder
	out    chan schema.ExecutionReport
	closed bool
}

// NewSimulator creates a simulator with validated defaults.
func NewSimulator(cfg SimulatorConfig) *Simulator {
	if cfg.FillSlice <= 0 {
		cfg.FillSlice = 1
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 256
	}
	if cfg.Seed == 0 {
		cfg.Seed = time.Now().UTC().UnixNano()
	}
	return &Simulator{
		cfg:  cfg,
		rng:  rand.New(rand.NewSource(cfg.Seed)),
		open: make(map[string]*simOrder),
		out:  make(chan schema.ExecutionReport, cfg.QueueSize),
	}
}

// PlaceOrder acks or rejects the order, then emits its fills.
func (s *Simulator) PlaceOrder(ctx context.Context, order schema.Order) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrSimulatorClosed
	}

	now := time.Now().UTC().UnixNano()
	if s.cfg.RejectRate > 0 && s.rng.Float64() < s.cfg.RejectRate {
		s.emitLocked(ctx, schema.ExecutionReport{
			ClientOrderID: order.ClientOrderID,
			Delta:         schema.DeltaReject,
			TimestampNs:   now,
		})
		return nil
	}

	exchangeID := uuid.NewString()
	s.open[order.ClientOrderID] = &simOrder{order: order, remaining: order.Quantity}
	s.emitLocked(ctx, schema.ExecutionReport{
		ClientOrderID:   order.ClientOrderID,
		ExchangeOrderID: exchangeID,
		Delta:           schema.DeltaAck,
		TimestampNs:     now,
	})
	s.fillLocked(ctx, order.ClientOrderID, exchangeID)
	return nil
}

// fillLocked splits the order quantity into FillSlice fills at the limit
// price. The last slice absorbs rounding so the fills sum exactly to the
// order quantity.
func (s *Simulator) fillLocked(ctx context.Context, clientOrderID, exchangeID string) {
	so, ok := s.open[clientOrderID]
	if !ok {
		return
	}
	slices := s.cfg.FillSlice
	per := so.order.Quantity.Div(decimal.NewFromInt(int64(slices))).Truncate(8)
	for i := 0; i < slices; i++ {
		qty := per
		if i == slices-1 {
			qty = so.remaining
		}
		if !qty.IsPositive() {
			break
		}
		so.remaining = so.remaining.Sub(qty)
		s.emitLocked(ctx, schema.ExecutionReport{
			ClientOrderID:   clientOrderID,
			ExchangeOrderID: exchangeID,
			ExecutionID:     uuid.NewString(),
			Delta:           schema.DeltaFill,
			FillPrice:       so.order.Price,
			FillQty:         qty,
			TimestampNs:     time.Now().UTC().UnixNano(),
		})
	}
	if !so.remaining.IsPositive() {
		delete(s.open, clientOrderID)
	}
}

// CancelOrder cancels whatever quantity is still open.
func (s *Simulator) CancelOrder(ctx context.Context, clientOrderID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrSimulatorClosed
	}
	so, ok := s.open[clientOrderID]
	if !ok {
		return ErrSimUnknownOrder
	}
	delete(s.open, clientOrderID)
	s.emitLocked(ctx, schema.ExecutionReport{
		ClientOrderID:   clientOrderID,
		ExchangeOrderID: so.order.ExchangeOrderID,
		Delta:           schema.DeltaCancel,
		TimestampNs:     time.Now().UTC().UnixNano(),
	})
	return nil
}

// Reports returns the report stream. The channel closes on Close.
func (s *Simulator) Reports() <-chan schema.ExecutionReport {
	return s.out
}

// Close stops the simulator and closes the report stream.
func (s *Simulator) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	close(s.out)
	return nil
}

func (s *Simulator) emitLocked(ctx context.Context, report schema.ExecutionReport) {
	select {
	case s.out <- report:
	case <-ctx.Done():
	}
}
