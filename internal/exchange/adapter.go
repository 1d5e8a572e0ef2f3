// Package exchange abstracts the venue connection. Live adapters translate a
// real venue's order entry and drop-copy feeds into execution reports; the
// simulator produces the same reports locally for development and tests.
package exchange

import (
	"context"

	"main/internal/schema"
)

// Adapter is the outbound venue interface. Implementations deliver all state
// changes back through the report stream; the engine never trusts the
// submission path alone.
type Adapter interface {
	PlaceOrder(ctx context.Context, order schema.Order) error
	CancelOrder(ctx context.Context, clientOrderID string) error
	Reports() <-chan schema.ExecutionReport
	Close() error
}
