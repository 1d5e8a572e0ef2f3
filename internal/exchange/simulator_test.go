package exchange

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"main/internal/schema"
)

func testOrder(id, qty string) schema.Order {
	q, _ := decimal.NewFromString(qty)
	p, _ := decimal.NewFromString("100")
	return schema.Order{
		ClientOrderID: id,
		Symbol:        "BTCUSDT",
		Side:          schema.OrderSideBuy,
		Type:          schema.OrderTypeLimit,
		Price:         p,
		Quantity:      q,
		Status:        schema.OrderStatusNew,
	}
}

func drain(s *Simulator, n int) []schema.ExecutionReport {
	out := make([]schema.ExecutionReport, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, <-s.Reports())
	}
	return out
}

func TestSimulatorAcksThenFills(t *testing.T) {
	s := NewSimulator(SimulatorConfig{Seed: 1, FillSlice: 3})
	defer s.Close()

	require.NoError(t, s.PlaceOrder(context.Background(), testOrder("o1", "1")))
	reports := drain(s, 4)

	require.Equal(t, schema.DeltaAck, reports[0].Delta)
	require.NotEmpty(t, reports[0].ExchangeOrderID)

	total := decimal.Zero
	seen := map[string]bool{}
	for _, rep := range reports[1:] {
		require.Equal(t, schema.DeltaFill, rep.Delta)
		require.Equal(t, reports[0].ExchangeOrderID, rep.ExchangeOrderID)
		require.False(t, seen[rep.ExecutionID])
		seen[rep.ExecutionID] = true
		total = total.Add(rep.FillQty)
	}
	require.True(t, total.Equal(decimal.NewFromInt(1)), "fills must sum to the order quantity, got %s", total)
}

func TestSimulatorCancelUnknownOrder(t *testing.T) {
	s := NewSimulator(SimulatorConfig{Seed: 1})
	defer s.Close()

	err := s.CancelOrder(context.Background(), "nope")
	require.ErrorIs(t, err, ErrSimUnknownOrder)
}

func TestSimulatorRejectAll(t *testing.T) {
	s := NewSimulator(SimulatorConfig{Seed: 1, RejectRate: 1})
	defer s.Close()

	require.NoError(t, s.PlaceOrder(context.Background(), testOrder("o1", "1")))
	rep := <-s.Reports()
	require.Equal(t, schema.DeltaReject, rep.Delta)
	require.Equal(t, "o1", rep.ClientOrderID)
}

func TestSimulatorClosedRejectsCalls(t *testing.T) {
	s := NewSimulator(SimulatorConfig{Seed: 1})
	require.NoError(t, s.Close())
	require.ErrorIs(t, s.PlaceOrder(context.Background(), testOrder("o1", "1")), ErrSimulatorClosed)
}
