// Package datasource is the engine's abstraction over the external
// time-series datastore: a columnar DB reachable by SQL plus a CSV export
// endpoint for streaming large scans. The store itself lives outside this
// module; this package specifies and implements the interface the engine
// talks to it through.
package datasource

import (
	"context"
	"errors"
	"fmt"

	"github.com/thrasher-corp/eqbacktester/candle"
	"github.com/thrasher-corp/eqbacktester/timeframe"
)

// ErrDataSource wraps any network/DB/CSV failure surfaced to a caller.
// The current run aborts when this is returned from inside the tick loop.
var ErrDataSource = errors.New("datasource: request failed")

// wrap tags an underlying error as a DataSourceError while preserving it
// for errors.Is/errors.As.
func wrap(op string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%w: %s: %w", ErrDataSource, op, err)
}

// Source is the external time-series datastore's query surface. The
// concrete implementations in this package (SQLSource, CSVSource) satisfy
// it against a Postgres/SQLite candles_{tf} table or a CSV export stream,
// respectively; tests may supply an in-memory fake.
type Source interface {
	// Range loads candles_{tf} for symbol with startMs <= timestamp <
	// endMs, ascending.
	Range(ctx context.Context, symbol string, tf timeframe.Timeframe, startMs, endMs int64) ([]candle.Candle, error)

	// Prefetch loads up to limit candles for symbol with timestamp >=
	// fromMs, ascending. Used by CandleBuffer's chunked prefetch.
	Prefetch(ctx context.Context, symbol string, tf timeframe.Timeframe, fromMs int64, limit int) ([]candle.Candle, error)

	// Lookback loads up to limit candles for symbol with
	// atLeastMs <= timestamp <= atMostMs, returned newest-first. Used for
	// ad-hoc non-preloaded-timeframe getCandles calls.
	Lookback(ctx context.Context, symbol string, tf timeframe.Timeframe, atLeastMs, atMostMs int64, limit int) ([]candle.Candle, error)

	// AllSymbolsRange loads every symbol's candles_{tf} in
	// [startMs, endMs] (both ends inclusive), ascending per symbol. Used by runOnAllStocks'
	// chunked bulk load.
	AllSymbolsRange(ctx context.Context, tf timeframe.Timeframe, startMs, endMs int64) (map[string][]candle.Candle, error)

	// Symbols enumerates every distinct ticker known to the daily table.
	Symbols(ctx context.Context) ([]string, error)
}
