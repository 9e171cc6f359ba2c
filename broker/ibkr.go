package broker

import "github.com/shopspring/decimal"

// IBKRTier selects which of IBKR's two commission schedules applies.
type IBKRTier int

// The two commission schedules IBKR supports.
const (
	Fixed IBKRTier = iota
	Tiered
)

// finraTAFRate and finraCATRate are charged on sells only, regardless of
// tier.
var (
	finraTAFRate = decimal.NewFromFloat(0.000166)
	finraCATRate = decimal.NewFromFloat(0.000022)
)

// Tiered-only pass-through rates.
var (
	clearingRate    = decimal.NewFromFloat(0.00020)
	nysePassRate    = decimal.NewFromFloat(0.000175)
	finraPassRate   = decimal.NewFromFloat(0.00056)
)

// IBKR is the Interactive Brokers fee policy: a per-share commission
// clamped to a minimum and a 1% of notional ceiling, plus FINRA TAF/CAT on
// sells, plus (tiered only) clearing and exchange pass-through fees.
type IBKR struct {
	Tier     IBKRTier
	Slippage float64
}

// NewIBKR returns an IBKR broker for the given tier with an optional
// slippage rate (fraction of notional, 0 for none).
func NewIBKR(tier IBKRTier, slippage float64) *IBKR {
	return &IBKR{Tier: tier, Slippage: slippage}
}

func (b *IBKR) perShareAndMin() (perShare, minFee decimal.Decimal) {
	if b.Tier == Tiered {
		return decimal.NewFromFloat(0.0035), decimal.NewFromFloat(0.35)
	}
	return decimal.NewFromFloat(0.005), decimal.NewFromFloat(1.00)
}

// CalculateFees implements Broker.
func (b *IBKR) CalculateFees(qty uint64, price float64, side Side) float64 {
	qtyD, priceD := decimal.NewFromInt(int64(qty)), d(price)
	notional := qtyD.Mul(priceD)

	perShare, minFee := b.perShareAndMin()
	commission := clamp(qtyD.Mul(perShare), minFee, notional.Mul(decimal.NewFromFloat(0.01)))

	fee := commission
	if side == Sell {
		fee = fee.Add(qtyD.Mul(finraTAFRate)).Add(qtyD.Mul(finraCATRate))
	}
	if b.Tier == Tiered {
		fee = fee.Add(qtyD.Mul(clearingRate))
		fee = fee.Add(commission.Mul(nysePassRate))
		fee = fee.Add(commission.Mul(finraPassRate))
	}
	fee = fee.Add(notional.Mul(d(b.Slippage)))

	f, _ := fee.Float64()
	return f
}
