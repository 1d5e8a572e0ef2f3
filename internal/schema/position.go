package schema

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// CostBasisMethod selects how realized PnL is booked when a position is
// reduced. The method is fixed for a ledger's lifetime.
type CostBasisMethod uint16

const (
	CostBasisWeightedAverage CostBasisMethod = iota
	CostBasisFIFO
)

func (m CostBasisMethod) String() string {
	switch m {
	case CostBasisWeightedAverage:
		return "WeightedAverage"
	case CostBasisFIFO:
		return "FIFO"
	default:
		return fmt.Sprintf("Unknown(%d)", uint16(m))
	}
}

// PositionLot is a single open lot, tracked only under FIFO.
type PositionLot struct {
	Quantity      decimal.Decimal `json:"quantity"`
	Price         decimal.Decimal `json:"price"`
	TimestampNs   int64           `json:"timestampNs"`
	SourceOrderID string          `json:"sourceOrderId"`
}

// Position is the aggregate of all signed fill quantities applied to a
// symbol. Size is positive for long, negative for short. A position is never
// deleted, even when size returns to zero.
type Position struct {
	Symbol      string          `json:"symbol"`
	Size        decimal.Decimal `json:"size"`
	AvgPrice    decimal.Decimal `json:"avgPrice"`
	RealizedPnL decimal.Decimal `json:"realizedPnl"`
	Fees        decimal.Decimal `json:"fees"`
	Method      CostBasisMethod `json:"method"`
	Lots        []PositionLot   `json:"lots,omitempty"`
	UpdatedAtNs int64           `json:"updatedAtNs"`
}

// IsFlat reports whether the position size is zero.
func (p *Position) IsFlat() bool {
	return p.Size.IsZero()
}

// Clone returns a deep copy safe to hand to readers and observers.
func (p *Position) Clone() Position {
	cp := *p
	if len(p.Lots) > 0 {
		cp.Lots = make([]PositionLot, len(p.Lots))
		copy(cp.Lots, p.Lots)
	}
	return cp
}

// PositionSnapshot is a point-in-time view of a position marked at a price.
type PositionSnapshot struct {
	Symbol        string          `json:"symbol"`
	Size          decimal.Decimal `json:"size"`
	AvgPrice      decimal.Decimal `json:"avgPrice"`
	RealizedPnL   decimal.Decimal `json:"realizedPnl"`
	UnrealizedPnL decimal.Decimal `json:"unrealizedPnl"`
	Fees          decimal.Decimal `json:"fees"`
}

// AggregateSnapshot is the book-wide PnL and exposure view.
type AggregateSnapshot struct {
	TotalRealizedPnL   decimal.Decimal `json:"totalRealizedPnl"`
	TotalUnrealizedPnL decimal.Decimal `json:"totalUnrealizedPnl"`
	TotalNotional      decimal.Decimal `json:"totalNotional"`
}
