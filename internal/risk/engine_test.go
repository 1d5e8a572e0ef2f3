package risk

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"main/internal/schema"
)

func req(side schema.OrderSide, price, qty string) schema.PlaceOrderRequest {
	return schema.PlaceOrderRequest{
		ClientOrderID: "o1",
		Symbol:        "BTCUSDT",
		Side:          side,
		Type:          schema.OrderTypeLimit,
		Price:         decimal.RequireFromString(price),
		Quantity:      decimal.RequireFromString(qty),
		StrategyID:    schema.StrategyManual,
	}
}

func TestKillSwitchDeniesEverything(t *testing.T) {
	e := NewEngine(Config{KillSwitch: true})
	decision := e.Evaluate(req(schema.OrderSideBuy, "1", "0.001"), schema.Position{})
	assert.False(t, decision.Allowed)
	assert.Equal(t, ReasonKillSwitch, decision.Reason)
}

func TestMaxQtyAndNotional(t *testing.T) {
	e := NewEngine(Config{
		MaxOrderQty:      decimal.RequireFromString("5"),
		MaxOrderNotional: decimal.RequireFromString("10000"),
	})

	assert.True(t, e.Evaluate(req(schema.OrderSideBuy, "100", "5"), schema.Position{}).Allowed)

	decision := e.Evaluate(req(schema.OrderSideBuy, "100", "6"), schema.Position{})
	assert.Equal(t, ReasonMaxQty, decision.Reason)

	decision = e.Evaluate(req(schema.OrderSideBuy, "5000", "3"), schema.Position{})
	assert.Equal(t, ReasonMaxNotional, decision.Reason)
}

func TestPositionLimitUsesResultingSize(t *testing.T) {
	e := NewEngine(Config{MaxPosition: decimal.RequireFromString("10")})
	long := schema.Position{Size: decimal.RequireFromString("8")}

	assert.True(t, e.Evaluate(req(schema.OrderSideBuy, "100", "2"), long).Allowed)
	assert.False(t, e.Evaluate(req(schema.OrderSideBuy, "100", "3"), long).Allowed)

	// Selling out of a long reduces exposure and is always fine here.
	assert.True(t, e.Evaluate(req(schema.OrderSideSell, "100", "8"), long).Allowed)
}
