package engine

import (
	"context"
	"fmt"

	"github.com/thrasher-corp/eqbacktester/candlebuffer"
	"github.com/thrasher-corp/eqbacktester/metrics"
	"github.com/thrasher-corp/eqbacktester/timeframe"
)

// RunOnStock replays the strategy bar-by-bar over one ticker's main
// timeframe: the main timeframe drives the loop, every preloaded
// timeframe is kept buffered alongside it, and the callback is first
// invoked once the main lookback window is full.
func (e *Engine) RunOnStock(ctx context.Context, ticker string) (metrics.Metrics, error) {
	if e.strategy.OnTick == nil {
		return metrics.Metrics{}, fmt.Errorf("%w: strategy has no OnTick callback for single-symbol mode", ErrInvalidConfig)
	}

	main := e.strategy.MainTimeframe()
	lookback := e.strategy.MainLookback()

	buffers := make(map[timeframe.Timeframe]*candlebuffer.Buffer)
	for _, tf := range e.strategy.PreloadTimeframes() {
		cfg := e.strategy.Timeframes[tf]
		buf := candlebuffer.New(e.source, ticker, tf, e.startDate, e.endDate, cfg.Count)
		if err := buf.Ensure(ctx, e.startDate); err != nil {
			return metrics.Metrics{}, err
		}
		buffers[tf] = buf
	}
	mainBuf := buffers[main]

	for i := lookback - 1; ; i++ {
		for mainBuf.Len() <= i && !mainBuf.Done() {
			last, _ := mainBuf.LastTimestamp()
			if err := mainBuf.Ensure(ctx, last); err != nil {
				return metrics.Metrics{}, err
			}
		}
		c, ok := mainBuf.At(i)
		if !ok {
			break
		}
		if c.Timestamp >= e.endDate {
			break
		}

		for _, buf := range buffers {
			if err := buf.Ensure(ctx, c.Timestamp); err != nil {
				return metrics.Metrics{}, err
			}
		}

		e.stockPrices[ticker] = c.Close

		sc := &singleContext{
			e:            e,
			ticker:       ticker,
			candle:       c,
			stockBalance: e.stockBalances[ticker],
			currentTs:    c.Timestamp,
			buffers:      buffers,
			ctx:          ctx,
		}
		if err := e.strategy.OnTick(sc); err != nil {
			return metrics.Metrics{}, err
		}

		e.equityCurve = append(e.equityCurve, EquityPoint{
			Timestamp: c.Timestamp, TotalValue: e.totalValue(), CashBalance: e.cashBalance,
		})
	}

	return e.computeMetrics(main), nil
}
