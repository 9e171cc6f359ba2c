// Package stock holds one symbol's candles at one timeframe as a
// struct-of-arrays: hot fields (close, timestamp) stay contiguous for the
// tick loop's lookback scans, and rows are stored without per-candle heap
// allocation until a caller actually asks for a materialized Candle.
package stock

import (
	"errors"
	"fmt"
	"sort"

	"github.com/thrasher-corp/eqbacktester/candle"
	"github.com/thrasher-corp/eqbacktester/column"
	"github.com/thrasher-corp/eqbacktester/timeframe"
)

// ErrInvalidOrder is returned by Push when the new candle's timestamp is
// not strictly greater than the previous one, or when Push is called after
// Finish.
var ErrInvalidOrder = errors.New("stock: candle out of order or store already finished")

// Stock is one symbol's candles at one timeframe.
type Stock struct {
	Symbol      string
	Granularity timeframe.Timeframe

	open, high, low, close column.Float
	volume, transactions   column.Uint
	timestamps              column.Int

	tsIndex map[int64]int

	finished bool
}

// New returns an empty Stock ready to receive candles in ascending time
// order via Push.
func New(symbol string, granularity timeframe.Timeframe) *Stock {
	return &Stock{
		Symbol:      symbol,
		Granularity: granularity,
		tsIndex:     make(map[int64]int),
	}
}

// Push appends a candle. Candles must arrive in strictly ascending
// timestamp order; Push fails once the store has been Finish-ed.
func (s *Stock) Push(c candle.Candle) error {
	if s.finished {
		return fmt.Errorf("%w: push after finish", ErrInvalidOrder)
	}
	n := s.timestamps.Len()
	if n > 0 && c.Timestamp <= s.timestamps.At(n-1) {
		return fmt.Errorf("%w: timestamp %d not after previous %d", ErrInvalidOrder, c.Timestamp, s.timestamps.At(n-1))
	}
	s.open.Push(c.Open)
	s.high.Push(c.High)
	s.low.Push(c.Low)
	s.close.Push(c.Close)
	s.volume.Push(c.Volume)
	s.transactions.Push(c.Transactions)
	s.timestamps.Push(c.Timestamp)
	s.tsIndex[c.Timestamp] = n
	return nil
}

// Finish shrink-wraps the columns and forbids further Push calls.
func (s *Stock) Finish() {
	s.open.Shrink()
	s.high.Shrink()
	s.low.Shrink()
	s.close.Shrink()
	s.volume.Shrink()
	s.transactions.Shrink()
	s.timestamps.Shrink()
	s.finished = true
}

// Size returns the row count.
func (s *Stock) Size() int { return s.timestamps.Len() }

// GetCandle materializes row i as a Candle. ok is false for an
// out-of-range index.
func (s *Stock) GetCandle(i int) (c candle.Candle, ok bool) {
	if i < 0 || i >= s.Size() {
		return candle.Candle{}, false
	}
	return candle.Candle{
		Open:         s.open.At(i),
		High:         s.high.At(i),
		Low:          s.low.At(i),
		Close:        s.close.At(i),
		Volume:       s.volume.At(i),
		Transactions: s.transactions.At(i),
		Timestamp:    s.timestamps.At(i),
	}, true
}

// Close returns row i's close without materializing a full Candle —
// the field the tick loop reads every bar for mark-to-market.
func (s *Stock) Close(i int) float64 { return s.close.At(i) }

// Timestamp returns row i's timestamp without materializing a full Candle.
func (s *Stock) Timestamp(i int) int64 { return s.timestamps.At(i) }

// GetIndexByTimestamp looks up the row whose timestamp exactly equals ts,
// in O(1) via the timestamp map populated by Push.
func (s *Stock) GetIndexByTimestamp(ts int64) (int, bool) {
	i, ok := s.tsIndex[ts]
	return i, ok
}

// GetIndex returns the row whose timestamp is <= ts and closest to it
// (ties broken toward the later row), via binary search over the
// timestamps column. Returns 0 if ts precedes every row, Size() if ts is
// strictly after the last row.
func (s *Stock) GetIndex(ts int64) int {
	n := s.Size()
	if n == 0 {
		return 0
	}
	if ts < s.timestamps.At(0) {
		return 0
	}
	if ts > s.timestamps.At(n-1) {
		return n
	}
	// cnt is the number of rows with timestamp <= ts; since we've already
	// handled ts beyond the last row, cnt is in [1, n] here, and cnt-1 is
	// the closest row at or before ts.
	cnt := sort.Search(n, func(i int) bool {
		return s.timestamps.At(i) > ts
	})
	return cnt - 1
}

// GetCandlesInRange returns the inclusive row range
// [GetIndex(startTs), GetIndex(endTs)].
func (s *Stock) GetCandlesInRange(startTs, endTs int64) []candle.Candle {
	from := s.GetIndex(startTs)
	to := s.GetIndex(endTs)
	if from >= s.Size() || to < from {
		return nil
	}
	if to >= s.Size() {
		to = s.Size() - 1
	}
	out := make([]candle.Candle, 0, to-from+1)
	for i := from; i <= to; i++ {
		c, _ := s.GetCandle(i)
		out = append(out, c)
	}
	return out
}

// Each calls fn for every row in ascending-time order, stopping early if
// fn returns false.
func (s *Stock) Each(fn func(i int, c candle.Candle) bool) {
	for i := 0; i < s.Size(); i++ {
		c, _ := s.GetCandle(i)
		if !fn(i, c) {
			return
		}
	}
}
