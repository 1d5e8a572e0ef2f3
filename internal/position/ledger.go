// Package position derives cost basis and PnL from the same fill stream
// that mutates the order table.
package position

import (
	"sync"

	"github.com/shopspring/decimal"

	"main/internal/schema"
)

// Ledger is the in-memory map of symbol to position. The cost basis method
// is fixed at construction for the ledger's lifetime. All mutation is
// exclusive; snapshot and aggregate reads never observe a half-applied fill.
type Ledger struct {
	mu        sync.RWMutex
	method    schema.CostBasisMethod
	positions map[string]*schema.Position
}

// NewLedger creates an empty ledger using the given cost basis method.
func NewLedger(method schema.CostBasisMethod) *Ledger {
	return &Ledger{
		method:    method,
		positions: make(map[string]*schema.Position),
	}
}

// Method returns the ledger's cost basis method.
func (l *Ledger) Method() schema.CostBasisMethod {
	return l.method
}

// View returns a copy of the position for a symbol, or an empty flat one if
// the symbol has never traded. It never creates a ledger entry; only
// ApplyFill does.
func (l *Ledger) View(symbol string) schema.Position {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if p, ok := l.positions[symbol]; ok {
		return p.Clone()
	}
	return schema.Position{
		Symbol:      symbol,
		Size:        decimal.Zero,
		AvgPrice:    decimal.Zero,
		RealizedPnL: decimal.Zero,
		Fees:        decimal.Zero,
		Method:      l.method,
	}
}

// Get returns a copy of the position if the symbol has traded.
func (l *Ledger) Get(symbol string) (schema.Position, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	p, ok := l.positions[symbol]
	if !ok {
		return schema.Position{}, false
	}
	return p.Clone(), true
}

func (l *Ledger) getOrCreateLocked(symbol string) *schema.Position {
	if p, ok := l.positions[symbol]; ok {
		return p
	}
	p := &schema.Position{
		Symbol:      symbol,
		Size:        decimal.Zero,
		AvgPrice:    decimal.Zero,
		RealizedPnL: decimal.Zero,
		Fees:        decimal.Zero,
		Method:      l.method,
	}
	l.positions[symbol] = p
	return p
}

// ApplyFill books one fill against the symbol's position and returns a copy
// of the updated position. Buy adds to size, sell subtracts; a fill that
// reduces the position realizes PnL per the cost basis method, and a fill
// that crosses through flat opens the remainder at the fill price.
func (l *Ledger) ApplyFill(symbol string, side schema.OrderSide, price, qty, fee decimal.Decimal, timestampNs int64, sourceOrderID string) schema.Position {
	l.mu.Lock()
	defer l.mu.Unlock()

	p := l.getOrCreateLocked(symbol)
	signedQty := qty
	if side == schema.OrderSideSell {
		signedQty = qty.Neg()
	}

	extending := p.Size.IsZero() || p.Size.Sign() == signedQty.Sign()
	if extending {
		l.extend(p, price, qty, signedQty, timestampNs, sourceOrderID)
	} else {
		l.reduce(p, price, qty, signedQty, timestampNs, sourceOrderID)
	}

	p.Fees = p.Fees.Add(fee)
	p.UpdatedAtNs = timestampNs
	return p.Clone()
}

func (l *Ledger) extend(p *schema.Position, price, qty, signedQty decimal.Decimal, timestampNs int64, sourceOrderID string) {
	switch l.method {
	case schema.CostBasisFIFO:
		p.Lots = append(p.Lots, schema.PositionLot{
			Quantity:      qty,
			Price:         price,
			TimestampNs:   timestampNs,
			SourceOrderID: sourceOrderID,
		})
		p.Size = p.Size.Add(signedQty)
		p.AvgPrice = lotWeightedAvg(p.Lots)
	default:
		oldAbs := p.Size.Abs()
		newAbs := oldAbs.Add(qty)
		p.AvgPrice = p.AvgPrice.Mul(oldAbs).Add(price.Mul(qty)).Div(newAbs)
		p.Size = p.Size.Add(signedQty)
	}
}

func (l *Ledger) reduce(p *schema.Position, price, qty, signedQty decimal.Decimal, timestampNs int64, sourceOrderID string) {
	openAbs := p.Size.Abs()
	closeQty := decimal.Min(qty, openAbs)
	// Direction sign of the position being closed: +1 long, -1 short.
	dir := decimal.NewFromInt(int64(p.Size.Sign()))

	switch l.method {
	case schema.CostBasisFIFO:
		remaining := closeQty
		for remaining.IsPositive() && len(p.Lots) > 0 {
			lot := &p.Lots[0]
			consumed := decimal.Min(lot.Quantity, remaining)
			p.RealizedPnL = p.RealizedPnL.Add(price.Sub(lot.Price).Mul(consumed).Mul(dir))
			lot.Quantity = lot.Quantity.Sub(consumed)
			remaining = remaining.Sub(consumed)
			if lot.Quantity.IsZero() {
				p.Lots = p.Lots[1:]
			}
		}
	default:
		p.RealizedPnL = p.RealizedPnL.Add(price.Sub(p.AvgPrice).Mul(closeQty).Mul(dir))
	}

	p.Size = p.Size.Add(signedQty)
	switch {
	case p.Size.IsZero():
		p.AvgPrice = decimal.Zero
		p.Lots = nil
	case p.Size.Sign() != dir.Sign():
		// Crossed through flat; the remainder opens at the fill price.
		p.AvgPrice = price
		if l.method == schema.CostBasisFIFO {
			p.Lots = []schema.PositionLot{{
				Quantity:      p.Size.Abs(),
				Price:         price,
				TimestampNs:   timestampNs,
				SourceOrderID: sourceOrderID,
			}}
		}
	default:
		// Partially reduced: avg price unchanged for the open remainder.
		if l.method == schema.CostBasisFIFO {
			p.AvgPrice = lotWeightedAvg(p.Lots)
		}
	}
}

func lotWeightedAvg(lots []schema.PositionLot) decimal.Decimal {
	total := decimal.Zero
	notional := decimal.Zero
	for _, lot := range lots {
		total = total.Add(lot.Quantity)
		notional = notional.Add(lot.Price.Mul(lot.Quantity))
	}
	if total.IsZero() {
		return decimal.Zero
	}
	return notional.Div(total)
}

// Snapshot returns a point-in-time view of one position marked at a price.
func (l *Ledger) Snapshot(symbol string, markPrice decimal.Decimal) (schema.PositionSnapshot, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	p, ok := l.positions[symbol]
	if !ok {
		return schema.PositionSnapshot{}, false
	}
	return schema.PositionSnapshot{
		Symbol:        p.Symbol,
		Size:          p.Size,
		AvgPrice:      p.AvgPrice,
		RealizedPnL:   p.RealizedPnL,
		UnrealizedPnL: markPrice.Sub(p.AvgPrice).Mul(p.Size),
		Fees:          p.Fees,
	}, true
}

// Aggregate returns book-wide PnL and exposure. Symbols without a mark price
// contribute realized PnL only.
func (l *Ledger) Aggregate(markPrices map[string]decimal.Decimal) schema.AggregateSnapshot {
	l.mu.RLock()
	defer l.mu.RUnlock()
	agg := schema.AggregateSnapshot{
		TotalRealizedPnL:   decimal.Zero,
		TotalUnrealizedPnL: decimal.Zero,
		TotalNotional:      decimal.Zero,
	}
	for symbol, p := range l.positions {
		agg.TotalRealizedPnL = agg.TotalRealizedPnL.Add(p.RealizedPnL)
		mark, ok := markPrices[symbol]
		if !ok {
			continue
		}
		agg.TotalUnrealizedPnL = agg.TotalUnrealizedPnL.Add(mark.Sub(p.AvgPrice).Mul(p.Size))
		agg.TotalNotional = agg.TotalNotional.Add(p.Size.Abs().Mul(mark))
	}
	return agg
}

// Restore replaces the ledger contents with a checkpoint snapshot.
func (l *Ledger) Restore(positions []schema.Position) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.positions = make(map[string]*schema.Position, len(positions))
	for i := range positions {
		cp := positions[i].Clone()
		l.positions[cp.Symbol] = &cp
	}
}

// SnapshotAll returns copies of every position, for checkpointing.
func (l *Ledger) SnapshotAll() []schema.Position {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]schema.Position, 0, len(l.positions))
	for _, p := range l.positions {
		out = append(out, p.Clone())
	}
	return out
}

// Count returns the number of tracked symbols.
func (l *Ledger) Count() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.positions)
}
