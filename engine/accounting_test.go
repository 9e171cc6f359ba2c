package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thrasher-corp/eqbacktester/broker"
	"github.com/thrasher-corp/eqbacktester/strategy"
	"github.com/thrasher-corp/eqbacktester/timeframe"
)

func newTestEngine(t *testing.T, startCash float64, b broker.Broker) *Engine {
	t.Helper()
	strat, err := strategy.New(map[timeframe.Timeframe]strategy.TimeframeConfig{
		timeframe.OneDay: {Count: 1, Main: true},
	}, func(strategy.Context) error { return nil }, nil)
	require.NoError(t, err)
	e, err := New(Config{
		Strategy: strat, StartDate: 0, EndDate: dayMs * 10,
		StartCashBalance: startCash, Broker: b, Source: newFakeSource(),
	})
	require.NoError(t, err)
	return e
}

func TestBuyInsufficientCash(t *testing.T) {
	e := newTestEngine(t, 1000, broker.NewAlpaca(0))
	err := e.buy("AAPL", 100, 50, 0, nil)
	require.ErrorIs(t, err, ErrInsufficientCash)
	assert.Equal(t, 1000.0, e.CashBalance())
	assert.Equal(t, uint64(0), e.StockBalance("AAPL"))
}

func TestSellInsufficientShares(t *testing.T) {
	e := newTestEngine(t, 1000, broker.NewAlpaca(0))
	err := e.sell("AAPL", 10, 50, 0)
	require.ErrorIs(t, err, ErrInsufficientShares)
}

func TestBuySellRoundTrip(t *testing.T) {
	e := newTestEngine(t, 10000, broker.NewAlpaca(0))
	require.NoError(t, e.buy("AAPL", 10, 100, 0, nil))
	assert.Equal(t, uint64(10), e.StockBalance("AAPL"))
	require.NoError(t, e.sell("AAPL", 10, 110, dayMs))

	require.Len(t, e.Trades(), 1)
	trade := e.Trades()[0]
	proceeds := 10.0 * 110
	// profit + matchedCost + matchedFees + sellFee == proceeds exactly.
	buyCost := 10.0 * 100
	buyFee := e.Swaps()[0].Fee
	sellFee := e.Swaps()[1].Fee
	assert.InDelta(t, proceeds, trade.Profit+buyCost+buyFee+sellFee, 1e-9)
	assert.Equal(t, uint64(0), e.StockBalance("AAPL"))
}

func TestBuyAttachesFeaturesCarriedToTrade(t *testing.T) {
	e := newTestEngine(t, 10000, broker.NewAlpaca(0))
	require.NoError(t, e.buy("AAPL", 10, 100, 0, []float64{1.5, 2.5}))
	require.NoError(t, e.sell("AAPL", 10, 110, dayMs))
	require.Len(t, e.Trades(), 1)
	assert.Equal(t, []float64{1.5, 2.5}, e.Trades()[0].Features)
	// Fully closed: feature vector and holdSince are cleared.
	require.NoError(t, e.buy("AAPL", 5, 90, 2*dayMs, nil))
	require.NoError(t, e.sell("AAPL", 5, 95, 3*dayMs))
	assert.Nil(t, e.Trades()[1].Features)
}

func TestTotalFeesMatchesSumOfSwapFees(t *testing.T) {
	e := newTestEngine(t, 10000, broker.NewIBKR(broker.Tiered, 0))
	require.NoError(t, e.buy("AAPL", 10, 100, 0, nil))
	require.NoError(t, e.buy("MSFT", 5, 200, 0, nil))
	require.NoError(t, e.sell("AAPL", 10, 105, dayMs))

	var sum float64
	for _, s := range e.Swaps() {
		sum += s.Fee
	}
	assert.InDelta(t, sum, e.TotalFees(), 1e-9)
}

func TestInvalidOrderRejectsNonPositiveQtyOrPrice(t *testing.T) {
	e := newTestEngine(t, 10000, broker.NewAlpaca(0))
	require.ErrorIs(t, e.buy("AAPL", 0, 100, 0, nil), ErrInvalidOrder)
	require.ErrorIs(t, e.buy("AAPL", 10, 0, 0, nil), ErrInvalidOrder)
}

func TestSplitSellAttributesAllCostToFirstClosingSell(t *testing.T) {
	// A position closed across two sells attributes all matched buy cost
	// to the first sell; the second sees zero matched cost and
	// profitPercent 0 — see the split-sell bookkeeping in sell().
	e := newTestEngine(t, 10000, broker.NewAlpaca(0))
	require.NoError(t, e.buy("AAPL", 10, 100, 0, nil))
	require.NoError(t, e.sell("AAPL", 6, 110, dayMs))
	require.NoError(t, e.sell("AAPL", 4, 110, 2*dayMs))

	require.Len(t, e.Trades(), 2)
	// The first sell's walk-back collects the full 10-share buy, so its
	// matched cost is 1000 even though only 6 shares were sold.
	buyCost := 10.0 * 100
	want := (6.0*110 - buyCost - e.Swaps()[0].Fee - e.Swaps()[1].Fee) / buyCost
	assert.InDelta(t, want, e.Trades()[0].ProfitPercent, 1e-9)
	assert.Equal(t, 0.0, e.Trades()[1].ProfitPercent)
}
