package broker

import "github.com/shopspring/decimal"

var (
	alpacaTAFRate    = decimal.NewFromFloat(0.000195)
	alpacaTAFCap     = decimal.NewFromFloat(9.79)
	alpacaTAFQtyCap  = decimal.NewFromInt(50205)
	alpacaCATRate    = decimal.NewFromFloat(0.0000265)
	cent             = decimal.NewFromFloat(100)
)

// Alpaca is Alpaca's zero-commission policy: no commission at all, FINRA
// TAF on sells only (capped, rounded up to the cent), FINRA CAT on every
// execution.
type Alpaca struct {
	Slippage float64
}

// NewAlpaca returns an Alpaca broker with an optional slippage rate
// (fraction of notional, 0 for none).
func NewAlpaca(slippage float64) *Alpaca {
	return &Alpaca{Slippage: slippage}
}

// CalculateFees implements Broker.
func (b *Alpaca) CalculateFees(qty uint64, price float64, side Side) float64 {
	qtyD, priceD := decimal.NewFromInt(int64(qty)), d(price)
	notional := qtyD.Mul(priceD)

	fee := decimal.Zero
	if side == Sell {
		tafQty := qtyD
		if tafQty.GreaterThan(alpacaTAFQtyCap) {
			tafQty = alpacaTAFQtyCap
		}
		taf := tafQty.Mul(alpacaTAFRate)
		if taf.GreaterThan(alpacaTAFCap) {
			taf = alpacaTAFCap
		}
		taf = taf.Mul(cent).Ceil().Div(cent) // round up to the cent
		fee = fee.Add(taf)
	}
	fee = fee.Add(qtyD.Mul(alpacaCATRate))
	fee = fee.Add(notional.Mul(d(b.Slippage)))

	f, _ := fee.Float64()
	return f
}
