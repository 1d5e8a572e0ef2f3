package schema

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// StatusDelta describes the state transition carried by an execution report.
type StatusDelta uint16

const (
	DeltaUnknown StatusDelta = iota
	DeltaAck
	DeltaReject
	DeltaFill
	DeltaCancel
	DeltaExpire
)

func (d StatusDelta) String() string {
	switch d {
	case DeltaAck:
		return "Ack"
	case DeltaReject:
		return "Reject"
	case DeltaFill:
		return "Fill"
	case DeltaCancel:
		return "Cancel"
	case DeltaExpire:
		return "Expire"
	default:
		return fmt.Sprintf("Unknown(%d)", uint16(d))
	}
}

// ExecutionReport is a venue- or simulator-sourced notification of an order
// acknowledgment, fill, cancellation, or expiry. The engine treats all
// sources identically.
type ExecutionReport struct {
	ClientOrderID   string          `json:"clientOrderId"`
	ExchangeOrderID string          `json:"exchangeOrderId,omitempty"`
	ExecutionID     string          `json:"executionId,omitempty"`
	Delta           StatusDelta     `json:"delta"`
	FillPrice       decimal.Decimal `json:"fillPrice,omitempty"`
	FillQty         decimal.Decimal `json:"fillQty,omitempty"`
	Fee             decimal.Decimal `json:"fee,omitempty"`
	TimestampNs     int64           `json:"timestampNs"`
}

// PlaceOrderRequest asks the engine to accept a new order for logging.
type PlaceOrderRequest struct {
	ClientOrderID string          `json:"clientOrderId"`
	Symbol        string          `json:"symbol"`
	Side          OrderSide       `json:"side"`
	Type          OrderType       `json:"type"`
	Price         decimal.Decimal `json:"price,omitempty"`
	Quantity      decimal.Decimal `json:"quantity"`
	StrategyID    string          `json:"strategyId"`
}

// CancelOrderRequest asks the engine to validate a cancel for an open order.
type CancelOrderRequest struct {
	ClientOrderID string `json:"clientOrderId"`
}
