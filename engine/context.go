package engine

import (
	"context"
	"errors"
	"fmt"

	"github.com/thrasher-corp/eqbacktester/candle"
	"github.com/thrasher-corp/eqbacktester/candlebuffer"
	"github.com/thrasher-corp/eqbacktester/stock"
	"github.com/thrasher-corp/eqbacktester/strategy"
	"github.com/thrasher-corp/eqbacktester/timeframe"
)

// singleContext is the per-bar context RunOnStock hands to a strategy's
// OnTick callback. It exists only for the duration of one bar; holding a
// reference back to the engine is a short-lived borrow, not shared
// ownership.
type singleContext struct {
	e            *Engine
	ticker       string
	candle       candle.Candle
	stockBalance uint64
	currentTs    int64
	buffers      map[timeframe.Timeframe]*candlebuffer.Buffer
	pendingFeatures []float64
	ctx          context.Context
}

var _ strategy.Context = (*singleContext)(nil)

func (s *singleContext) Ticker() string        { return s.ticker }
func (s *singleContext) Candle() candle.Candle { return s.candle }
func (s *singleContext) StockBalance() uint64  { return s.stockBalance }

func (s *singleContext) Buy(qty uint64, price float64) error {
	features := s.pendingFeatures
	s.pendingFeatures = nil
	return s.e.buy(s.ticker, qty, price, s.currentTs, features)
}

func (s *singleContext) Sell(qty uint64, price float64) error {
	return s.e.sell(s.ticker, qty, price, s.currentTs)
}

func (s *singleContext) SetFeatures(features []float64) {
	s.pendingFeatures = features
}

func (s *singleContext) GetCandles(tf timeframe.Timeframe, count int) ([]candle.Candle, bool, error) {
	return s.GetCandlesAt(tf, count, s.currentTs)
}

// GetCandlesAt serves a preloaded timeframe from its CandleBuffer;
// anything else falls back to a direct datastore query for the newest
// count candles strictly before atTs.
func (s *singleContext) GetCandlesAt(tf timeframe.Timeframe, count int, atTs int64) ([]candle.Candle, bool, error) {
	if atTs > s.currentTs {
		return nil, false, fmt.Errorf("%w: requested %d, current bar is %d", ErrLookaheadViolation, atTs, s.currentTs)
	}
	if buf, ok := s.buffers[tf]; ok {
		cs, err := buf.GetLast(count, atTs)
		if err != nil {
			if errors.Is(err, candlebuffer.ErrInsufficientLookback) {
				return nil, false, nil
			}
			return nil, false, err
		}
		return cs, true, nil
	}
	rows, err := s.e.source.Lookback(s.ctx, s.ticker, tf, 0, atTs-1, 2*count)
	if err != nil {
		return nil, false, err
	}
	if len(rows) < count {
		return nil, false, nil
	}
	return rows[:count], true, nil
}

// multiContext is the per-tick context RunOnAllStocks hands to a
// strategy's OnAllTick callback.
type multiContext struct {
	e         *Engine
	currentTs int64
	entries   []strategy.SymbolEntry
	raw       map[string]candle.Candle

	mainTf    timeframe.Timeframe
	stocks    map[string]*stock.Stock
	preloaded map[timeframe.Timeframe]map[string]*stock.Stock

	pendingFeatures map[string][]float64
	ctx             context.Context
}

var _ strategy.MultiContext = (*multiContext)(nil)

func (m *multiContext) CurrentTimestamp() int64                { return m.currentTs }
func (m *multiContext) Entries() []strategy.SymbolEntry        { return m.entries }
func (m *multiContext) Raw() map[string]candle.Candle          { return m.raw }
func (m *multiContext) SetFeatures(ticker string, f []float64) { m.pendingFeatures[ticker] = f }

func (m *multiContext) Buy(ticker string, qty uint64, price float64) error {
	features := m.pendingFeatures[ticker]
	delete(m.pendingFeatures, ticker)
	return m.e.buy(ticker, qty, price, m.currentTs, features)
}

func (m *multiContext) Sell(ticker string, qty uint64, price float64) error {
	return m.e.sell(ticker, qty, price, m.currentTs)
}

// GetCandles serves an ad-hoc lookback request: it reads the main
// timeframe from the chunk's per-symbol Stock, a preloaded timeframe from
// its sliding window, and falls back to a direct datastore query
// otherwise (or when the Stock can't satisfy the request).
func (m *multiContext) GetCandles(ticker string, tf timeframe.Timeframe, count int) ([]candle.Candle, bool, error) {
	if tf == m.mainTf {
		if st, ok := m.stocks[ticker]; ok {
			if cs, ok2 := candlesFromStock(st, count, m.currentTs); ok2 {
				return cs, true, nil
			}
		}
	} else if byTf, ok := m.preloaded[tf]; ok {
		if st, ok2 := byTf[ticker]; ok2 {
			if cs, ok3 := candlesFromStock(st, count, m.currentTs); ok3 {
				return cs, true, nil
			}
		}
	}
	rows, err := m.e.source.Lookback(m.ctx, ticker, tf, 0, m.currentTs-1, 2*count)
	if err != nil {
		return nil, false, err
	}
	if len(rows) < count {
		return nil, false, nil
	}
	return rows[:count], true, nil
}

// candlesFromStock returns the newest count candles at or before ts from
// st, newest-first, or ok=false if st can't satisfy the request: idx < 0,
// idx-count+1 < 0, or fewer than count rows are materialized.
func candlesFromStock(st *stock.Stock, count int, ts int64) ([]candle.Candle, bool) {
	if st == nil {
		return nil, false
	}
	idx := st.GetIndex(ts)
	if idx >= st.Size() {
		idx = st.Size() - 1
	}
	if idx >= 0 {
		if c, ok := st.GetCandle(idx); ok && c.Timestamp > ts {
			idx--
		}
	}
	if idx < 0 || idx-count+1 < 0 {
		return nil, false
	}
	out := make([]candle.Candle, count)
	for i := 0; i < count; i++ {
		c, ok := st.GetCandle(idx - i)
		if !ok {
			return nil, false
		}
		out[i] = c
	}
	return out, true
}
