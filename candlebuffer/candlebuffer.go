// Package candlebuffer implements the streaming prefetch ring a strategy's
// lookback requests are served from, so a strategy never needs the full
// history loaded just to see its trailing window. It sits between
// datasource.Source and the engine's tick loop.
package candlebuffer

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/thrasher-corp/eqbacktester/candle"
	"github.com/thrasher-corp/eqbacktester/datasource"
	"github.com/thrasher-corp/eqbacktester/timeframe"
)

// PrefetchFactor sizes each chunk fetch as lookback * PrefetchFactor
// candles, amortizing datastore round-trips across many ticks.
const PrefetchFactor = 10

// ErrInsufficientLookback is returned by GetLast when fewer than count
// candles with timestamp <= currentTs are available. This is expected
// during a series' early bars and is not a fatal condition.
var ErrInsufficientLookback = errors.New("candlebuffer: insufficient lookback")

// Buffer is a streaming prefetch ring over one (symbol, timeframe) pair.
// buffer is append-only and ascending in time; nextTs marks where the
// next chunk fetch begins.
type Buffer struct {
	source datasource.Source

	Symbol   string
	TF       timeframe.Timeframe
	startTs  int64
	endTs    int64
	lookback int

	prefetchCount int
	buffer        []candle.Candle
	nextTs        int64
	done          bool
}

// New returns a Buffer ready to stream candles for symbol/tf starting
// lookback bars before startTs, up to endTs. No candle is fetched until
// the first Ensure call.
func New(source datasource.Source, symbol string, tf timeframe.Timeframe, startTs, endTs int64, lookback int) *Buffer {
	return &Buffer{
		source:        source,
		Symbol:        symbol,
		TF:            tf,
		startTs:       startTs,
		endTs:         endTs,
		lookback:      lookback,
		prefetchCount: lookback * PrefetchFactor,
		nextTs:        startTs - int64(lookback)*tf.GranularityMs(),
	}
}

// Len returns the number of candles currently materialized in the buffer.
func (b *Buffer) Len() int { return len(b.buffer) }

// Done reports whether the buffer has reached endTs or the source has run
// dry; no further fetch will occur.
func (b *Buffer) Done() bool { return b.done }

// At returns the i'th buffered candle, oldest first.
func (b *Buffer) At(i int) (candle.Candle, bool) {
	if i < 0 || i >= len(b.buffer) {
		return candle.Candle{}, false
	}
	return b.buffer[i], true
}

// LastTimestamp returns the timestamp of the most recently buffered
// candle, or ok=false if the buffer is empty.
func (b *Buffer) LastTimestamp() (int64, bool) {
	if len(b.buffer) == 0 {
		return 0, false
	}
	return b.buffer[len(b.buffer)-1].Timestamp, true
}

// Ensure extends buffer if, given lookback and prefetch, currentTs is
// within one lookback window of the last buffered bar, or the buffer is
// still empty. It is idempotent: once done, or once currentTs is well
// inside the buffered window, it issues no I/O.
func (b *Buffer) Ensure(ctx context.Context, currentTs int64) error {
	for {
		if b.done {
			return nil
		}
		last, ok := b.LastTimestamp()
		if ok && currentTs < last-int64(b.lookback)*b.TF.GranularityMs() {
			return nil
		}
		chunk, err := b.source.Prefetch(ctx, b.Symbol, b.TF, b.nextTs, b.prefetchCount)
		if err != nil {
			return fmt.Errorf("candlebuffer: prefetch %s %s: %w", b.Symbol, b.TF, err)
		}
		if len(chunk) == 0 {
			b.done = true
			return nil
		}
		b.buffer = append(b.buffer, chunk...)
		lastLoaded := chunk[len(chunk)-1]
		b.nextTs = lastLoaded.Timestamp + 1
		if len(chunk) < b.prefetchCount || b.nextTs >= b.endTs {
			b.done = true
		}
		if !ok {
			// First fetch: loop once more so the loop-exit condition above
			// is evaluated against real data instead of an empty buffer.
			continue
		}
		return nil
	}
}

// GetLast returns the last count candles with timestamp <= currentTs,
// newest first. Returns ErrInsufficientLookback if fewer than count such
// candles are buffered.
func (b *Buffer) GetLast(count int, currentTs int64) ([]candle.Candle, error) {
	// upTo is the count of buffered candles with timestamp <= currentTs.
	upTo := sort.Search(len(b.buffer), func(i int) bool {
		return b.buffer[i].Timestamp > currentTs
	})
	if upTo < count {
		return nil, fmt.Errorf("%w: have %d, need %d", ErrInsufficientLookback, upTo, count)
	}
	out := make([]candle.Candle, count)
	for i := 0; i < count; i++ {
		out[i] = b.buffer[upTo-1-i]
	}
	return out, nil
}
