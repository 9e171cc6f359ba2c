package engine

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thrasher-corp/eqbacktester/broker"
	"github.com/thrasher-corp/eqbacktester/candle"
	"github.com/thrasher-corp/eqbacktester/strategy"
	"github.com/thrasher-corp/eqbacktester/timeframe"
)

func sineCandles(n int, startTs int64, amp, period float64) []candle.Candle {
	cs := make([]candle.Candle, n)
	for i := 0; i < n; i++ {
		price := 100 + amp*math.Sin(2*math.Pi*float64(i)/period)
		ts := startTs + int64(i)*dayMs
		cs[i] = candle.New(price, price+1, price-1, price, 1000, 10, ts)
	}
	return cs
}

func sma(cs []candle.Candle) float64 {
	var sum float64
	for _, c := range cs {
		sum += c.Close
	}
	return sum / float64(len(cs))
}

func TestLookbackBoundarySingleSymbol(t *testing.T) {
	src := newFakeSource()
	src.add("AAPL", sineCandles(300, 0, 10, 50))

	var firstBarIndex = -1
	var barCount int
	strat, err := strategy.New(map[timeframe.Timeframe]strategy.TimeframeConfig{
		timeframe.OneDay: {Count: 50, Main: true},
	}, func(ctx strategy.Context) error {
		if firstBarIndex == -1 {
			cs, ok, err := ctx.GetCandles(timeframe.OneDay, 50)
			require.NoError(t, err)
			require.True(t, ok)
			require.Len(t, cs, 50)
			firstBarIndex = barCount
		}
		barCount++
		return nil
	}, nil)
	require.NoError(t, err)

	e, err := New(Config{
		Strategy: strat, StartDate: 0, EndDate: int64(300) * dayMs,
		StartCashBalance: 10000, Broker: broker.NewAlpaca(0), Source: src,
	})
	require.NoError(t, err)

	_, err = e.RunOnStock(context.Background(), "AAPL")
	require.NoError(t, err)
	assert.Equal(t, 0, firstBarIndex, "the callback's first invocation must already have 50 bars of lookback")
	assert.Equal(t, len(e.EquityCurve()), barCount, "equity curve length must equal the number of dispatched bars")
}

func TestSMACrossoverSingleSymbol(t *testing.T) {
	src := newFakeSource()
	candles := sineCandles(300, 0, 10, 50)
	src.add("AAPL", candles)

	strat, err := strategy.New(map[timeframe.Timeframe]strategy.TimeframeConfig{
		timeframe.OneDay: {Count: 50, Main: true},
	}, func(ctx strategy.Context) error {
		fast, ok, err := ctx.GetCandles(timeframe.OneDay, 25)
		if err != nil {
			return err
		}
		if !ok {
			return nil
		}
		slow, ok, err := ctx.GetCandles(timeframe.OneDay, 50)
		if err != nil {
			return err
		}
		if !ok {
			return nil
		}
		fastSMA, slowSMA := sma(fast), sma(slow)
		if ctx.StockBalance() == 0 && fastSMA > slowSMA {
			return ctx.Buy(3, ctx.Candle().Close)
		}
		if ctx.StockBalance() > 0 && fastSMA < slowSMA {
			return ctx.Sell(ctx.StockBalance(), ctx.Candle().Close)
		}
		return nil
	}, nil)
	require.NoError(t, err)

	e, err := New(Config{
		Strategy: strat, StartDate: 0, EndDate: int64(300) * dayMs,
		StartCashBalance: 10000, Broker: broker.NewAlpaca(0), Source: src,
	})
	require.NoError(t, err)

	_, err = e.RunOnStock(context.Background(), "AAPL")
	require.NoError(t, err)

	assert.GreaterOrEqual(t, e.CashBalance(), 0.0)
	lastClose := candles[len(candles)-1].Close
	totalValue := e.CashBalance() + float64(e.StockBalance("AAPL"))*lastClose
	last := e.EquityCurve()[len(e.EquityCurve())-1]
	assert.InDelta(t, last.TotalValue, totalValue, 1e-6)

	for _, tr := range e.Trades() {
		assert.Len(t, tr.Features, 0)
	}
}

func TestGetCandlesLookaheadViolation(t *testing.T) {
	src := newFakeSource()
	src.add("AAPL", sineCandles(60, 0, 5, 20))

	strat, err := strategy.New(map[timeframe.Timeframe]strategy.TimeframeConfig{
		timeframe.OneDay: {Count: 5, Main: true},
	}, func(ctx strategy.Context) error {
		_, _, err := ctx.GetCandlesAt(timeframe.OneDay, 5, ctx.Candle().Timestamp+dayMs)
		return err
	}, nil)
	require.NoError(t, err)

	e, err := New(Config{
		Strategy: strat, StartDate: 0, EndDate: int64(60) * dayMs,
		StartCashBalance: 10000, Broker: broker.NewAlpaca(0), Source: src,
	})
	require.NoError(t, err)

	_, err = e.RunOnStock(context.Background(), "AAPL")
	require.ErrorIs(t, err, ErrLookaheadViolation)
}

func TestNoTradesYieldsEmptyTradesAndZeroMetrics(t *testing.T) {
	src := newFakeSource()
	src.add("AAPL", sineCandles(60, 0, 5, 20))

	strat, err := strategy.New(map[timeframe.Timeframe]strategy.TimeframeConfig{
		timeframe.OneDay: {Count: 5, Main: true},
	}, func(strategy.Context) error { return nil }, nil)
	require.NoError(t, err)

	e, err := New(Config{
		Strategy: strat, StartDate: 0, EndDate: int64(60) * dayMs,
		StartCashBalance: 10000, Broker: broker.NewAlpaca(0), Source: src,
	})
	require.NoError(t, err)

	m, err := e.RunOnStock(context.Background(), "AAPL")
	require.NoError(t, err)
	assert.Empty(t, e.Trades())
	assert.Equal(t, 0.0, e.TotalFees())
	assert.Equal(t, 0.0, m.TotalReturn)
	assert.Equal(t, 0.0, m.Sharpe)
	assert.Equal(t, 0.0, m.MaxDrawdown)
}
