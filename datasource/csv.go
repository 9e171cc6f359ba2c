package datasource

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"sort"
	"strconv"

	"github.com/thrasher-corp/eqbacktester/candle"
	"github.com/thrasher-corp/eqbacktester/timeframe"
)

// CSVSource is a Source backed by a single timeframe's full CSV export,
// consulted instead of SQLSource when streaming a large scan is cheaper
// than many small queries. Rows are read once at construction time via
// encoding/csv with a sequential column-by-column strconv.Parse* per
// field, then held in memory sorted per ticker.
type CSVSource struct {
	tf      timeframe.Timeframe
	candles map[string][]candle.Candle
}

var _ Source = (*CSVSource)(nil)

// NewCSVSource reads every row of r, a CSV export for timeframe tf, into
// memory. Each row is either 7 columns (ticker, open, high, low, close,
// volume, timestamp) or 8 (with a transactions count inserted before
// timestamp); a 7-column row is treated as carrying zero transactions
// rather than an error, since older exports omit the column entirely.
func NewCSVSource(tf timeframe.Timeframe, r io.Reader) (*CSVSource, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1 // rows may be 7 or 8 columns

	out := make(map[string][]candle.Candle)
	for {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, wrap("read csv row", err)
		}
		c, ticker, err := parseCSVRow(row)
		if err != nil {
			return nil, wrap("parse csv row", err)
		}
		out[ticker] = append(out[ticker], c)
	}
	for ticker := range out {
		sort.Slice(out[ticker], func(i, j int) bool {
			return out[ticker][i].Timestamp < out[ticker][j].Timestamp
		})
	}
	return &CSVSource{tf: tf, candles: out}, nil
}

func parseCSVRow(row []string) (candle.Candle, string, error) {
	if len(row) != 7 && len(row) != 8 {
		return candle.Candle{}, "", fmt.Errorf("datasource: csv row has %d columns, want 7 or 8", len(row))
	}
	ticker := row[0]
	open, err := strconv.ParseFloat(row[1], 64)
	if err != nil {
		return candle.Candle{}, "", fmt.Errorf("datasource: csv open: %w", err)
	}
	high, err := strconv.ParseFloat(row[2], 64)
	if err != nil {
		return candle.Candle{}, "", fmt.Errorf("datasource: csv high: %w", err)
	}
	low, err := strconv.ParseFloat(row[3], 64)
	if err != nil {
		return candle.Candle{}, "", fmt.Errorf("datasource: csv low: %w", err)
	}
	closePrice, err := strconv.ParseFloat(row[4], 64)
	if err != nil {
		return candle.Candle{}, "", fmt.Errorf("datasource: csv close: %w", err)
	}
	volume, err := strconv.ParseUint(row[5], 10, 64)
	if err != nil {
		return candle.Candle{}, "", fmt.Errorf("datasource: csv volume: %w", err)
	}

	var transactions uint64
	tsCol := row[6]
	if len(row) == 8 {
		transactions, err = strconv.ParseUint(row[6], 10, 64)
		if err != nil {
			return candle.Candle{}, "", fmt.Errorf("datasource: csv transactions: %w", err)
		}
		tsCol = row[7]
	}
	ts, err := strconv.ParseInt(tsCol, 10, 64)
	if err != nil {
		return candle.Candle{}, "", fmt.Errorf("datasource: csv timestamp: %w", err)
	}

	return candle.New(open, high, low, closePrice, volume, transactions, ts), ticker, nil
}

func (c *CSVSource) rowsInRange(symbol string, startMs, endMs int64, inclusiveEnd bool) []candle.Candle {
	var out []candle.Candle
	for _, row := range c.candles[symbol] {
		if row.Timestamp < startMs {
			continue
		}
		if inclusiveEnd && row.Timestamp > endMs {
			continue
		}
		if !inclusiveEnd && row.Timestamp >= endMs {
			continue
		}
		out = append(out, row)
	}
	return out
}

// Range implements Source over the in-memory export.
func (c *CSVSource) Range(_ context.Context, symbol string, _ timeframe.Timeframe, startMs, endMs int64) ([]candle.Candle, error) {
	return c.rowsInRange(symbol, startMs, endMs, false), nil
}

// Prefetch implements Source over the in-memory export.
func (c *CSVSource) Prefetch(_ context.Context, symbol string, _ timeframe.Timeframe, fromMs int64, limit int) ([]candle.Candle, error) {
	var out []candle.Candle
	for _, row := range c.candles[symbol] {
		if row.Timestamp < fromMs {
			continue
		}
		out = append(out, row)
		if len(out) >= limit {
			break
		}
	}
	return out, nil
}

// Lookback implements Source, returning results newest-first.
func (c *CSVSource) Lookback(_ context.Context, symbol string, _ timeframe.Timeframe, atLeastMs, atMostMs int64, limit int) ([]candle.Candle, error) {
	rows := c.candles[symbol]
	var out []candle.Candle
	for i := len(rows) - 1; i >= 0; i-- {
		row := rows[i]
		if row.Timestamp > atMostMs || row.Timestamp < atLeastMs {
			continue
		}
		out = append(out, row)
		if len(out) >= limit {
			break
		}
	}
	return out, nil
}

// AllSymbolsRange implements Source.
func (c *CSVSource) AllSymbolsRange(_ context.Context, _ timeframe.Timeframe, startMs, endMs int64) (map[string][]candle.Candle, error) {
	out := make(map[string][]candle.Candle)
	for symbol := range c.candles {
		if rows := c.rowsInRange(symbol, startMs, endMs, true); len(rows) > 0 {
			out[symbol] = rows
		}
	}
	return out, nil
}

// Symbols implements Source.
func (c *CSVSource) Symbols(context.Context) ([]string, error) {
	out := make([]string, 0, len(c.candles))
	for symbol := range c.candles {
		out = append(out, symbol)
	}
	sort.Strings(out)
	return out, nil
}
