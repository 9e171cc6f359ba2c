package engine

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/thrasher-corp/eqbacktester/candle"
	"github.com/thrasher-corp/eqbacktester/metrics"
	"github.com/thrasher-corp/eqbacktester/stock"
	"github.com/thrasher-corp/eqbacktester/strategy"
	"github.com/thrasher-corp/eqbacktester/timeframe"
)

// preloadWindow is a sliding buffer of every symbol's candles at one
// non-main preloaded timeframe, refreshed whenever the tick loop reaches
// its end.
type preloadWindow struct {
	end    int64
	stocks map[string]*stock.Stock
}

// maxDelistAbsence is the number of consecutive missing-bar ticks a
// held ticker tolerates before being dropped from stockBalances.
const maxDelistAbsence = 10

// RunOnAllStocks replays the strategy across every known symbol at once:
// the main timeframe's natural tick sequence drives the loop (weekends
// skipped, daily ticks normalized to 16:00 America/New_York), each chunk
// of ticks bulk-loads its main-timeframe window, non-main preloaded
// timeframes keep their own sliding window, and a ticker absent for more
// than 10 consecutive ticks is delisted.
func (e *Engine) RunOnAllStocks(ctx context.Context) (metrics.Metrics, error) {
	if e.strategy.OnAllTick == nil {
		return metrics.Metrics{}, fmt.Errorf("%w: strategy has no OnAllTick callback for all-symbols mode", ErrInvalidConfig)
	}

	mainTf := e.strategy.MainTimeframe()
	mainLookback := e.strategy.MainLookback()

	ticks, err := e.buildTicks(mainTf)
	if err != nil {
		return metrics.Metrics{}, err
	}
	if len(ticks) == 0 {
		return e.computeMetrics(mainTf), nil
	}

	chunkSize := mainTf.AllStocksPreloadAmount()
	if chunkSize <= 0 {
		chunkSize = len(ticks)
	}

	var nonMainPreload []timeframe.Timeframe
	for _, tf := range e.strategy.PreloadTimeframes() {
		if tf != mainTf {
			nonMainPreload = append(nonMainPreload, tf)
		}
	}
	preloadWindows := make(map[timeframe.Timeframe]*preloadWindow)

	dayMs := timeframe.OneDay.GranularityMs()

	for start := 0; start < len(ticks); start += chunkSize {
		end := start + chunkSize
		if end > len(ticks) {
			end = len(ticks)
		}
		chunkTicks := ticks[start:end]
		firstTick, lastTick := chunkTicks[0], chunkTicks[len(chunkTicks)-1]

		raw, err := e.source.AllSymbolsRange(ctx, mainTf, firstTick-int64(2*mainLookback)*dayMs, lastTick+4*dayMs)
		if err != nil {
			return metrics.Metrics{}, err
		}
		stocks := buildStocks(raw, mainTf)

		for _, tick := range chunkTicks {
			if isWeekend(tick) {
				continue
			}

			for _, tf := range nonMainPreload {
				w := preloadWindows[tf]
				if w == nil || tick >= w.end {
					cfg := e.strategy.Timeframes[tf]
					w, err = e.refreshPreloadWindow(ctx, tf, tick, cfg.Count)
					if err != nil {
						return metrics.Metrics{}, err
					}
					preloadWindows[tf] = w
				}
			}

			entriesRaw := make(map[string]candle.Candle)
			for sym, st := range stocks {
				if idx, ok := st.GetIndexByTimestamp(tick); ok {
					c, _ := st.GetCandle(idx)
					entriesRaw[sym] = c
					e.stockPrices[sym] = c.Close
				}
			}

			for ticker := range e.stockBalances {
				if _, present := entriesRaw[ticker]; !present {
					e.delistCounter[ticker]++
					if e.delistCounter[ticker] > maxDelistAbsence {
						delete(e.stockBalances, ticker)
						delete(e.holdSince, ticker)
						delete(e.stockFeatures, ticker)
						delete(e.delistCounter, ticker)
					}
				} else {
					delete(e.delistCounter, ticker)
				}
			}

			if len(entriesRaw) == 0 {
				continue
			}

			entries := make([]strategy.SymbolEntry, 0, len(entriesRaw))
			for sym, c := range entriesRaw {
				entries = append(entries, strategy.SymbolEntry{Ticker: sym, Candle: c, StockBalance: e.stockBalances[sym]})
			}
			sort.Slice(entries, func(i, j int) bool { return entries[i].Ticker < entries[j].Ticker })

			preloadedStocks := make(map[timeframe.Timeframe]map[string]*stock.Stock, len(preloadWindows))
			for tf, w := range preloadWindows {
				preloadedStocks[tf] = w.stocks
			}

			mc := &multiContext{
				e: e, currentTs: tick, entries: entries, raw: entriesRaw,
				mainTf: mainTf, stocks: stocks, preloaded: preloadedStocks,
				pendingFeatures: make(map[string][]float64), ctx: ctx,
			}
			if err := e.strategy.OnAllTick(mc); err != nil {
				return metrics.Metrics{}, err
			}

			e.equityCurve = append(e.equityCurve, EquityPoint{
				Timestamp: tick, TotalValue: e.totalValue(), CashBalance: e.cashBalance,
			})
		}
	}

	return e.computeMetrics(mainTf), nil
}

// buildTicks enumerates the main timeframe's natural tick sequence over
// [startDate, endDate]. Daily ticks are normalized to 16:00
// America/New_York using the standard library's timezone database rather
// than hand-rolled offset math, since daylight saving shifts the UTC
// offset of that wall-clock close time across the year.
func (e *Engine) buildTicks(tf timeframe.Timeframe) ([]int64, error) {
	if tf == timeframe.OneDay {
		loc, err := time.LoadLocation("America/New_York")
		if err != nil {
			return nil, fmt.Errorf("engine: load America/New_York: %w", err)
		}
		start := time.UnixMilli(e.startDate).UTC()
		end := time.UnixMilli(e.endDate).UTC()
		var out []int64
		for d := time.Date(start.Year(), start.Month(), start.Day(), 0, 0, 0, 0, time.UTC); !d.After(end); d = d.AddDate(0, 0, 1) {
			close := time.Date(d.Year(), d.Month(), d.Day(), 16, 0, 0, 0, loc)
			ms := close.UnixMilli()
			if ms < e.startDate || ms > e.endDate {
				continue
			}
			out = append(out, ms)
		}
		return out, nil
	}

	step := tf.NaturalStep().Milliseconds()
	if step <= 0 {
		return nil, fmt.Errorf("%w: unsupported main timeframe %s", ErrInvalidConfig, tf)
	}
	var out []int64
	for ts := e.startDate; ts <= e.endDate; ts += step {
		out = append(out, ts)
	}
	return out, nil
}

func isWeekend(tickMs int64) bool {
	wd := time.UnixMilli(tickMs).UTC().Weekday()
	return wd == time.Saturday || wd == time.Sunday
}

func buildStocks(raw map[string][]candle.Candle, tf timeframe.Timeframe) map[string]*stock.Stock {
	out := make(map[string]*stock.Stock, len(raw))
	for sym, candles := range raw {
		st := stock.New(sym, tf)
		for _, c := range candles {
			if err := st.Push(c); err != nil {
				// A duplicate or out-of-order row from an overlapping chunk
				// fetch; drop it rather than aborting the whole chunk.
				continue
			}
		}
		st.Finish()
		out[sym] = st
	}
	return out
}

// refreshPreloadWindow bulk-loads every symbol's candles at tf over a
// window trailing 3*count bars behind currentTs and extending tf's
// preload duration ahead of it.
func (e *Engine) refreshPreloadWindow(ctx context.Context, tf timeframe.Timeframe, currentTs int64, count int) (*preloadWindow, error) {
	granMs := tf.GranularityMs()
	start := currentTs - int64(3*count)*granMs
	end := currentTs + tf.PreloadWindow().Milliseconds()
	raw, err := e.source.AllSymbolsRange(ctx, tf, start, end)
	if err != nil {
		return nil, err
	}
	return &preloadWindow{end: end, stocks: buildStocks(raw, tf)}, nil
}
