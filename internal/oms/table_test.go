package oms

import (
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"main/internal/schema"
)

func newOrder(id string, qty string) schema.Order {
	return schema.Order{
		ClientOrderID: id,
		Symbol:        "BTCUSDT",
		Side:          schema.OrderSideBuy,
		Type:          schema.OrderTypeLimit,
		Price:         decimal.RequireFromString("100"),
		Quantity:      decimal.RequireFromString(qty),
		Status:        schema.OrderStatusNew,
		StrategyID:    schema.StrategyManual,
		CreatedAtNs:   time.Now().UnixNano(),
	}
}

func ack(id string) schema.ExecutionReport {
	return schema.ExecutionReport{
		ClientOrderID:   id,
		ExchangeOrderID: "X-" + id,
		Delta:           schema.DeltaAck,
	}
}

func fill(id, execID, price, qty string) schema.ExecutionReport {
	return schema.ExecutionReport{
		ClientOrderID: id,
		ExecutionID:   execID,
		Delta:         schema.DeltaFill,
		FillPrice:     decimal.RequireFromString(price),
		FillQty:       decimal.RequireFromString(qty),
	}
}

func TestOrderLifecycleWithWeightedAvgFill(t *testing.T) {
	table := NewTable()
	require.NoError(t, table.Insert(newOrder("o1", "1.0")))

	ord, noop, err := table.Apply(ack("o1"), 1)
	require.NoError(t, err)
	require.False(t, noop)
	assert.Equal(t, schema.OrderStatusAccepted, ord.Status)
	assert.Equal(t, "X-o1", ord.ExchangeOrderID)

	ord, _, err = table.Apply(fill("o1", "e1", "100", "0.4"), 2)
	require.NoError(t, err)
	assert.Equal(t, schema.OrderStatusPartiallyFilled, ord.Status)
	assert.Equal(t, "0.4", ord.FilledQuantity.String())
	assert.Equal(t, "100", ord.AvgFillPrice.String())

	ord, _, err = table.Apply(fill("o1", "e2", "110", "0.6"), 3)
	require.NoError(t, err)
	assert.Equal(t, schema.OrderStatusFilled, ord.Status)
	assert.Equal(t, "1", ord.FilledQuantity.String())
	assert.Equal(t, "106", ord.AvgFillPrice.String())
}

func TestDuplicateFillIsIdempotentNoop(t *testing.T) {
	table := NewTable()
	require.NoError(t, table.Insert(newOrder("o1", "1.0")))
	_, _, err := table.Apply(ack("o1"), 1)
	require.NoError(t, err)

	first, noop, err := table.Apply(fill("o1", "e1", "100", "0.4"), 2)
	require.NoError(t, err)
	require.False(t, noop)

	second, noop, err := table.Apply(fill("o1", "e1", "100", "0.4"), 3)
	require.NoError(t, err)
	assert.True(t, noop)
	assert.Equal(t, first.FilledQuantity.String(), second.FilledQuantity.String())
	assert.Equal(t, first.AvgFillPrice.String(), second.AvgFillPrice.String())
	assert.Equal(t, first.Status, second.Status)
}

func TestOverfillRejectedAndOrderUnchanged(t *testing.T) {
	table := NewTable()
	require.NoError(t, table.Insert(newOrder("o1", "1.0")))
	_, _, err := table.Apply(ack("o1"), 1)
	require.NoError(t, err)
	_, _, err = table.Apply(fill("o1", "e1", "100", "0.7"), 2)
	require.NoError(t, err)

	_, _, err = table.Apply(fill("o1", "e2", "100", "0.5"), 3)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrOverfill))

	ord, ok := table.Get("o1")
	require.True(t, ok)
	assert.Equal(t, "0.7", ord.FilledQuantity.String())
	assert.Equal(t, schema.OrderStatusPartiallyFilled, ord.Status)
}

func TestTerminalStatusNeverTransitions(t *testing.T) {
	table := NewTable()
	require.NoError(t, table.Insert(newOrder("o1", "0.5")))
	_, _, err := table.Apply(ack("o1"), 1)
	require.NoError(t, err)
	_, _, err = table.Apply(fill("o1", "e1", "100", "0.5"), 2)
	require.NoError(t, err)

	for _, report := range []schema.ExecutionReport{
		ack("o1"),
		fill("o1", "e9", "100", "0.1"),
		{ClientOrderID: "o1", Delta: schema.DeltaCancel},
		{ClientOrderID: "o1", Delta: schema.DeltaExpire},
	} {
		_, _, err := table.Apply(report, 3)
		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrInvalidTransition))
	}

	ord, _ := table.Get("o1")
	assert.Equal(t, schema.OrderStatusFilled, ord.Status)
}

func TestRejectCancelExpirePaths(t *testing.T) {
	table := NewTable()

	require.NoError(t, table.Insert(newOrder("rejected", "1")))
	ord, _, err := table.Apply(schema.ExecutionReport{ClientOrderID: "rejected", Delta: schema.DeltaReject}, 1)
	require.NoError(t, err)
	assert.Equal(t, schema.OrderStatusRejected, ord.Status)

	require.NoError(t, table.Insert(newOrder("cancelled", "1")))
	_, _, err = table.Apply(ack("cancelled"), 2)
	require.NoError(t, err)
	ord, _, err = table.Apply(schema.ExecutionReport{ClientOrderID: "cancelled", Delta: schema.DeltaCancel}, 3)
	require.NoError(t, err)
	assert.Equal(t, schema.OrderStatusCancelled, ord.Status)

	require.NoError(t, table.Insert(newOrder("expired", "1")))
	_, _, err = table.Apply(ack("expired"), 4)
	require.NoError(t, err)
	ord, _, err = table.Apply(schema.ExecutionReport{ClientOrderID: "expired", Delta: schema.DeltaExpire}, 5)
	require.NoError(t, err)
	assert.Equal(t, schema.OrderStatusExpired, ord.Status)
}

func TestFillBeforeAckIsInvalid(t *testing.T) {
	table := NewTable()
	require.NoError(t, table.Insert(newOrder("o1", "1")))
	_, _, err := table.Apply(fill("o1", "e1", "100", "0.5"), 1)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInvalidTransition))
}

func TestUnknownOrderSignalled(t *testing.T) {
	table := NewTable()
	noop, err := table.Check(fill("ghost", "e1", "100", "0.5"))
	require.Error(t, err)
	assert.False(t, noop)
	assert.True(t, errors.Is(err, ErrUnknownOrder))
}

func TestDuplicateInsertRejected(t *testing.T) {
	table := NewTable()
	require.NoError(t, table.Insert(newOrder("o1", "1")))
	err := table.Insert(newOrder("o1", "2"))
	assert.True(t, errors.Is(err, ErrDuplicateOrder))
}

func TestListFilters(t *testing.T) {
	table := NewTable()
	a := newOrder("a", "1")
	b := newOrder("b", "1")
	b.Symbol = "ETHUSDT"
	b.StrategyID = "alpha-1"
	require.NoError(t, table.Insert(a))
	require.NoError(t, table.Insert(b))
	_, _, err := table.Apply(ack("a"), 1)
	require.NoError(t, err)
	_, _, err = table.Apply(schema.ExecutionReport{ClientOrderID: "a", Delta: schema.DeltaCancel}, 2)
	require.NoError(t, err)

	assert.Len(t, table.List(Filter{}), 2)
	assert.Len(t, table.List(Filter{Symbol: "ETHUSDT"}), 1)
	assert.Len(t, table.List(Filter{StrategyID: "alpha-1"}), 1)
	assert.Len(t, table.List(Filter{ActiveOnly: true}), 1)
	assert.Len(t, table.List(Filter{Status: schema.OrderStatusCancelled}), 1)
}

func TestRestoreRebuildsDedupState(t *testing.T) {
	table := NewTable()
	require.NoError(t, table.Insert(newOrder("o1", "1.0")))
	_, _, err := table.Apply(ack("o1"), 1)
	require.NoError(t, err)
	_, _, err = table.Apply(fill("o1", "e1", "100", "0.4"), 2)
	require.NoError(t, err)

	restored := NewTable()
	restored.Restore(table.SnapshotAll())

	_, noop, err := restored.Apply(fill("o1", "e1", "100", "0.4"), 3)
	require.NoError(t, err)
	assert.True(t, noop, "dedup set must survive snapshot restore")
}
