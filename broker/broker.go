// Package broker computes the commission and regulatory fees the engine
// charges on every executed buy or sell. A Broker is a pure policy object:
// given a quantity, price and side it returns a fee in dollars, with no
// side effects and no reference back to the engine.
package broker

import (
	"github.com/shopspring/decimal"
)

// Side is which side of a swap a fee is being computed for. Declared here
// rather than in package engine so broker has no dependency on it.
type Side int

// The two sides a Broker.CalculateFees call can be asked about.
const (
	Buy Side = iota
	Sell
)

// Broker computes commission/regulatory fees for one executed order.
// CalculateFees must be pure: same inputs, same fee, every time.
type Broker interface {
	CalculateFees(qty uint64, price float64, side Side) float64
}

// d converts a float64 engine-boundary value into a Decimal for the fee
// arithmetic: summing many small per-share fees over a long backtest is
// the one place float64 rounding error compounds enough to matter, so
// fee math stays in decimal.Decimal while candle/account fields elsewhere
// stay float64.
func d(f float64) decimal.Decimal { return decimal.NewFromFloat(f) }

func clamp(v, lo, hi decimal.Decimal) decimal.Decimal {
	if v.LessThan(lo) {
		v = lo
	}
	if v.GreaterThan(hi) {
		v = hi
	}
	return v
}
