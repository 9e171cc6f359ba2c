// Package strategy holds the immutable, user-supplied decision procedure
// the engine replays bar-by-bar: which timeframes it needs, how many bars
// of lookback at each, and the callback(s) invoked once per dispatched
// bar. Strategy has no dependency on package engine; the callbacks are
// typed against small interfaces here, and package engine's unexported
// per-bar context types satisfy them structurally.
package strategy

import (
	"errors"
	"fmt"

	"github.com/thrasher-corp/eqbacktester/candle"
	"github.com/thrasher-corp/eqbacktester/timeframe"
)

// ErrInvalidConfig is returned by New when the timeframe map is malformed:
// zero or more than one main timeframe, or a non-positive lookback count.
var ErrInvalidConfig = errors.New("strategy: invalid configuration")

// TimeframeConfig is one timeframe's lookback requirement.
type TimeframeConfig struct {
	// Count is the number of trailing bars a strategy needs at this
	// timeframe. Must be >= 1.
	Count int
	// Main marks the timeframe that drives the tick loop. Exactly one
	// entry in a Strategy's Timeframes map may set this.
	Main bool
	// Preload hints that this timeframe's bars should be streamed ahead
	// of need via a CandleBuffer rather than fetched per getCandles call.
	// The main timeframe is always implicitly preloaded.
	Preload bool
}

// Context is what a single-symbol OnTick callback can do: inspect the
// current bar and lookback windows, and place orders on the one ticker
// the run is driving.
type Context interface {
	Ticker() string
	Candle() candle.Candle
	StockBalance() uint64
	GetCandles(tf timeframe.Timeframe, count int) ([]candle.Candle, bool, error)
	GetCandlesAt(tf timeframe.Timeframe, count int, atTs int64) ([]candle.Candle, bool, error)
	Buy(qty uint64, price float64) error
	Sell(qty uint64, price float64) error
	SetFeatures(features []float64)
}

// SymbolEntry is one ticker's view of a single all-symbols tick, passed to
// MultiContext.Entries.
type SymbolEntry struct {
	Ticker       string
	Candle       candle.Candle
	StockBalance uint64
}

// MultiContext is what an OnAllTick callback can do: inspect every
// symbol's bar at the current tick and place orders on any of them.
type MultiContext interface {
	CurrentTimestamp() int64
	Entries() []SymbolEntry
	Raw() map[string]candle.Candle
	GetCandles(ticker string, tf timeframe.Timeframe, count int) ([]candle.Candle, bool, error)
	Buy(ticker string, qty uint64, price float64) error
	Sell(ticker string, qty uint64, price float64) error
	SetFeatures(ticker string, features []float64)
}

// OnTickFunc is invoked once per bar in single-symbol mode (Engine.RunOnStock).
type OnTickFunc func(ctx Context) error

// OnAllTickFunc is invoked once per tick in all-symbols mode (Engine.RunOnAllStocks).
type OnAllTickFunc func(ctx MultiContext) error

// Strategy is the immutable configuration a run is driven by: a map of
// per-timeframe lookback requirements with exactly one main timeframe,
// and the callback(s) the engine invokes each bar.
type Strategy struct {
	Timeframes map[timeframe.Timeframe]TimeframeConfig
	OnTick     OnTickFunc
	OnAllTick  OnAllTickFunc
}

// New validates and returns a Strategy. Exactly one entry in timeframes
// must set Main = true; every entry's Count must be >= 1. The main
// timeframe's Preload flag is forced true regardless of its input value.
func New(timeframes map[timeframe.Timeframe]TimeframeConfig, onTick OnTickFunc, onAllTick OnAllTickFunc) (*Strategy, error) {
	if len(timeframes) == 0 {
		return nil, fmt.Errorf("%w: no timeframes configured", ErrInvalidConfig)
	}
	mains := 0
	out := make(map[timeframe.Timeframe]TimeframeConfig, len(timeframes))
	for tf, cfg := range timeframes {
		if cfg.Count < 1 {
			return nil, fmt.Errorf("%w: %s lookback count %d must be >= 1", ErrInvalidConfig, tf, cfg.Count)
		}
		if cfg.Main {
			mains++
			cfg.Preload = true
		}
		out[tf] = cfg
	}
	if mains != 1 {
		return nil, fmt.Errorf("%w: exactly one main timeframe required, found %d", ErrInvalidConfig, mains)
	}
	if onTick == nil && onAllTick == nil {
		return nil, fmt.Errorf("%w: no callback configured", ErrInvalidConfig)
	}
	return &Strategy{Timeframes: out, OnTick: onTick, OnAllTick: onAllTick}, nil
}

// MainTimeframe returns the single timeframe configured with Main = true.
// Callers may assume New has already validated exactly one exists.
func (s *Strategy) MainTimeframe() timeframe.Timeframe {
	for tf, cfg := range s.Timeframes {
		if cfg.Main {
			return tf
		}
	}
	return 0
}

// MainLookback returns the main timeframe's Count.
func (s *Strategy) MainLookback() int {
	return s.Timeframes[s.MainTimeframe()].Count
}

// PreloadTimeframes returns every timeframe marked Preload, main included.
func (s *Strategy) PreloadTimeframes() []timeframe.Timeframe {
	var out []timeframe.Timeframe
	for tf, cfg := range s.Timeframes {
		if cfg.Preload {
			out = append(out, tf)
		}
	}
	return out
}
