// Package risk evaluates pre-trade checks against order and position data.
// Denied orders are rejected before anything reaches the WAL.
package risk

import (
	"fmt"

	"github.com/shopspring/decimal"

	"main/internal/schema"
)

// Config defines static pre-trade limits. Zero values disable a check.
type Config struct {
	KillSwitch       bool            `json:"killSwitch"`
	MaxOrderQty      decimal.Decimal `json:"maxOrderQty"`
	MaxOrderNotional decimal.Decimal `json:"maxOrderNotional"`
	MaxPosition      decimal.Decimal `json:"maxPosition"`
}

// Reason is a coarse reason code for risk denials.
type Reason uint16

const (
	ReasonNone Reason = iota
	ReasonKillSwitch
	ReasonMaxQty
	ReasonMaxNotional
	ReasonPositionLimit
)

func (r Reason) String() string {
	switch r {
	case ReasonNone:
		return "None"
	case ReasonKillSwitch:
		return "KillSwitch"
	case ReasonMaxQty:
		return "MaxQty"
	case ReasonMaxNotional:
		return "MaxNotional"
	case ReasonPositionLimit:
		return "PositionLimit"
	default:
		return fmt.Sprintf("Unknown(%d)", uint16(r))
	}
}

// Decision is the outcome of a pre-trade evaluation.
type Decision struct {
	Allowed bool
	Reason  Reason
}

func allow() Decision {
	return Decision{Allowed: true, Reason: ReasonNone}
}

func deny(reason Reason) Decision {
	return Decision{Allowed: false, Reason: reason}
}

// Engine evaluates risk decisions against static limits.
type Engine struct {
	cfg Config
}

// NewEngine creates a risk engine with static limits.
func NewEngine(cfg Config) *Engine {
	return &Engine{cfg: cfg}
}

// Evaluate applies pre-trade checks to a place-order request given the
// current position for the request's symbol.
func (e *Engine) Evaluate(req schema.PlaceOrderRequest, position schema.Position) Decision {
	if e.cfg.KillSwitch {
		return deny(ReasonKillSwitch)
	}

	if e.cfg.MaxOrderQty.IsPositive() && req.Quantity.GreaterThan(e.cfg.MaxOrderQty) {
		return deny(ReasonMaxQty)
	}

	if e.cfg.MaxOrderNotional.IsPositive() && req.Type == schema.OrderTypeLimit {
		if req.Price.Mul(req.Quantity).GreaterThan(e.cfg.MaxOrderNotional) {
			return deny(ReasonMaxNotional)
		}
	}

	if e.cfg.MaxPosition.IsPositive() {
		next := position.Size
		switch req.Side {
		case schema.OrderSideBuy:
			next = next.Add(req.Quantity)
		case schema.OrderSideSell:
			next = next.Sub(req.Quantity)
		}
		if next.Abs().GreaterThan(e.cfg.MaxPosition) {
			return deny(ReasonPositionLimit)
		}
	}

	return allow()
}
