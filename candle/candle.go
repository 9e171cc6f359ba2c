// Package candle defines the immutable OHLCV record the rest of the engine
// is built on.
package candle

// Candle is one bar of OHLCV data for a symbol at a single timeframe.
// Candle is immutable once constructed; row storage lives in package
// stock, which materializes a Candle only when a strategy actually reads
// one.
type Candle struct {
	Open         float64
	High         float64
	Low          float64
	Close        float64
	Volume       uint64
	Transactions uint64
	// Timestamp is milliseconds since the Unix epoch, UTC.
	Timestamp int64
}

// New constructs a Candle. It does not validate low <= open,close <= high;
// historical data is trusted rather than re-checked on every read.
func New(open, high, low, close float64, volume, transactions uint64, timestampMs int64) Candle {
	return Candle{
		Open:         open,
		High:         high,
		Low:          low,
		Close:        close,
		Volume:       volume,
		Transactions: transactions,
		Timestamp:    timestampMs,
	}
}
