package engine

import (
	"context"
	"sort"

	"github.com/thrasher-corp/eqbacktester/candle"
	"github.com/thrasher-corp/eqbacktester/timeframe"
)

// fakeSource is an in-memory datasource.Source over a fixed set of
// symbols' candles, for exercising Engine without a real DB.
type fakeSource struct {
	bySymbol map[string][]candle.Candle
}

func newFakeSource() *fakeSource {
	return &fakeSource{bySymbol: map[string][]candle.Candle{}}
}

func (f *fakeSource) add(symbol string, cs []candle.Candle) {
	f.bySymbol[symbol] = cs
}

func (f *fakeSource) Range(_ context.Context, symbol string, _ timeframe.Timeframe, startMs, endMs int64) ([]candle.Candle, error) {
	var out []candle.Candle
	for _, c := range f.bySymbol[symbol] {
		if c.Timestamp >= startMs && c.Timestamp < endMs {
			out = append(out, c)
		}
	}
	return out, nil
}

func (f *fakeSource) Prefetch(_ context.Context, symbol string, _ timeframe.Timeframe, fromMs int64, limit int) ([]candle.Candle, error) {
	var out []candle.Candle
	for _, c := range f.bySymbol[symbol] {
		if c.Timestamp >= fromMs {
			out = append(out, c)
			if len(out) >= limit {
				break
			}
		}
	}
	return out, nil
}

func (f *fakeSource) Lookback(_ context.Context, symbol string, _ timeframe.Timeframe, atLeastMs, atMostMs int64, limit int) ([]candle.Candle, error) {
	cs := f.bySymbol[symbol]
	var out []candle.Candle
	for i := len(cs) - 1; i >= 0; i-- {
		c := cs[i]
		if c.Timestamp <= atMostMs && c.Timestamp >= atLeastMs {
			out = append(out, c)
			if len(out) >= limit {
				break
			}
		}
	}
	return out, nil
}

func (f *fakeSource) AllSymbolsRange(_ context.Context, _ timeframe.Timeframe, startMs, endMs int64) (map[string][]candle.Candle, error) {
	out := make(map[string][]candle.Candle)
	for sym, cs := range f.bySymbol {
		for _, c := range cs {
			if c.Timestamp >= startMs && c.Timestamp <= endMs {
				out[sym] = append(out[sym], c)
			}
		}
	}
	return out, nil
}

func (f *fakeSource) Symbols(context.Context) ([]string, error) {
	out := make([]string, 0, len(f.bySymbol))
	for sym := range f.bySymbol {
		out = append(out, sym)
	}
	sort.Strings(out)
	return out, nil
}

const dayMs = 86_400_000
