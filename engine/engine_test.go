package engine

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thrasher-corp/eqbacktester/broker"
	"github.com/thrasher-corp/eqbacktester/strategy"
	"github.com/thrasher-corp/eqbacktester/timeframe"
)

func validStrategy(t *testing.T) *strategy.Strategy {
	t.Helper()
	strat, err := strategy.New(map[timeframe.Timeframe]strategy.TimeframeConfig{
		timeframe.OneDay: {Count: 1, Main: true},
	}, func(strategy.Context) error { return nil }, nil)
	require.NoError(t, err)
	return strat
}

func TestNewRejectsNilStrategy(t *testing.T) {
	_, err := New(Config{
		EndDate: 1, StartCashBalance: 100, Broker: broker.NewAlpaca(0), Source: newFakeSource(),
	})
	require.ErrorIs(t, err, ErrInvalidConfig)
}

func TestNewRejectsEndDateNotAfterStartDate(t *testing.T) {
	_, err := New(Config{
		Strategy: validStrategy(t), StartDate: 10, EndDate: 10,
		StartCashBalance: 100, Broker: broker.NewAlpaca(0), Source: newFakeSource(),
	})
	require.ErrorIs(t, err, ErrInvalidConfig)
}

func TestNewRejectsNilBroker(t *testing.T) {
	_, err := New(Config{
		Strategy: validStrategy(t), EndDate: 1,
		StartCashBalance: 100, Source: newFakeSource(),
	})
	require.ErrorIs(t, err, ErrInvalidConfig)
}

func TestNewRejectsNilSource(t *testing.T) {
	_, err := New(Config{
		Strategy: validStrategy(t), EndDate: 1,
		StartCashBalance: 100, Broker: broker.NewAlpaca(0),
	})
	require.ErrorIs(t, err, ErrInvalidConfig)
}

func TestNewRejectsNegativeStartCash(t *testing.T) {
	_, err := New(Config{
		Strategy: validStrategy(t), EndDate: 1,
		StartCashBalance: -1, Broker: broker.NewAlpaca(0), Source: newFakeSource(),
	})
	require.ErrorIs(t, err, ErrInvalidConfig)
}

func TestNewStartsWithFullCashAndNoPositions(t *testing.T) {
	e, err := New(Config{
		Strategy: validStrategy(t), EndDate: 1,
		StartCashBalance: 5000, Broker: broker.NewAlpaca(0), Source: newFakeSource(),
	})
	require.NoError(t, err)
	assert.Equal(t, 5000.0, e.CashBalance())
	assert.Equal(t, uint64(0), e.StockBalance("AAPL"))
	assert.Empty(t, e.Swaps())
	assert.Empty(t, e.Trades())
	assert.Empty(t, e.EquityCurve())
}

func TestRunOnStockRejectsStrategyWithoutOnTick(t *testing.T) {
	strat, err := strategy.New(map[timeframe.Timeframe]strategy.TimeframeConfig{
		timeframe.OneDay: {Count: 1, Main: true},
	}, nil, func(strategy.MultiContext) error { return nil })
	require.NoError(t, err)
	e, err := New(Config{
		Strategy: strat, EndDate: dayMs, StartCashBalance: 100,
		Broker: broker.NewAlpaca(0), Source: newFakeSource(),
	})
	require.NoError(t, err)
	_, err = e.RunOnStock(context.Background(), "AAPL")
	require.ErrorIs(t, err, ErrInvalidConfig)
}

func TestRunOnAllStocksRejectsStrategyWithoutOnAllTick(t *testing.T) {
	e, err := New(Config{
		Strategy: validStrategy(t), EndDate: dayMs, StartCashBalance: 100,
		Broker: broker.NewAlpaca(0), Source: newFakeSource(),
	})
	require.NoError(t, err)
	_, err = e.RunOnAllStocks(context.Background())
	require.ErrorIs(t, err, ErrInvalidConfig)
}
