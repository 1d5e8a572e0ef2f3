package schema

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Reserved strategy IDs covering non-algorithmic order origins.
const (
	StrategyManual   = "manual"
	StrategyExternal = "external"
	StrategySystem   = "system"
)

// OrderSide describes order direction.
type OrderSide uint16

const (
	OrderSideUnknown OrderSide = iota
	OrderSideBuy
	OrderSideSell
)

func (s OrderSide) String() string {
	switch s {
	case OrderSideBuy:
		return "Buy"
	case OrderSideSell:
		return "Sell"
	default:
		return fmt.Sprintf("Unknown(%d)", uint16(s))
	}
}

// OrderType describes order type.
type OrderType uint16

const (
	OrderTypeUnknown OrderType = iota
	OrderTypeLimit
	OrderTypeMarket
)

func (t OrderType) String() string {
	switch t {
	case OrderTypeLimit:
		return "Limit"
	case OrderTypeMarket:
		return "Market"
	default:
		return fmt.Sprintf("Unknown(%d)", uint16(t))
	}
}

// OrderStatus tracks the lifecycle of an order.
type OrderStatus uint16

const (
	OrderStatusUnknown OrderStatus = iota
	OrderStatusNew
	OrderStatusAccepted
	OrderStatusPartiallyFilled
	OrderStatusFilled
	OrderStatusCancelled
	OrderStatusRejected
	OrderStatusExpired
)

func (s OrderStatus) String() string {
	switch s {
	case OrderStatusNew:
		return "New"
	case OrderStatusAccepted:
		return "Accepted"
	case OrderStatusPartiallyFilled:
		return "PartiallyFilled"
	case OrderStatusFilled:
		return "Filled"
	case OrderStatusCancelled:
		return "Cancelled"
	case OrderStatusRejected:
		return "Rejected"
	case OrderStatusExpired:
		return "Expired"
	default:
		return fmt.Sprintf("Unknown(%d)", uint16(s))
	}
}

// IsTerminal reports whether no further transitions are allowed from s.
func (s OrderStatus) IsTerminal() bool {
	switch s {
	case OrderStatusFilled, OrderStatusCancelled, OrderStatusRejected, OrderStatusExpired:
		return true
	default:
		return false
	}
}

// Order is the engine's view of a single order. ClientOrderID is the
// caller-assigned primary key; it never changes once the order is logged.
type Order struct {
	ClientOrderID       string          `json:"clientOrderId"`
	ExchangeOrderID     string          `json:"exchangeOrderId,omitempty"`
	Symbol              string          `json:"symbol"`
	Side                OrderSide       `json:"side"`
	Type                OrderType       `json:"type"`
	Price               decimal.Decimal `json:"price"`
	Quantity            decimal.Decimal `json:"quantity"`
	FilledQuantity      decimal.Decimal `json:"filledQuantity"`
	AvgFillPrice        decimal.Decimal `json:"avgFillPrice"`
	Status              OrderStatus     `json:"status"`
	StrategyID          string          `json:"strategyId"`
	AppliedExecutionIDs []string        `json:"appliedExecutionIds,omitempty"`
	CreatedAtNs         int64           `json:"createdAtNs"`
	UpdatedAtNs         int64           `json:"updatedAtNs"`
}

// Remaining returns the unfilled quantity.
func (o *Order) Remaining() decimal.Decimal {
	return o.Quantity.Sub(o.FilledQuantity)
}

// HasExecution reports whether a fill with the given execution ID was applied.
func (o *Order) HasExecution(executionID string) bool {
	for _, id := range o.AppliedExecutionIDs {
		if id == executionID {
			return true
		}
	}
	return false
}

// Clone returns a deep copy safe to hand to readers and observers.
func (o *Order) Clone() Order {
	cp := *o
	if len(o.AppliedExecutionIDs) > 0 {
		cp.AppliedExecutionIDs = make([]string, len(o.AppliedExecutionIDs))
		copy(cp.AppliedExecutionIDs, o.AppliedExecutionIDs)
	}
	return cp
}
