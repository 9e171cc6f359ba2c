package datasource

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	// Driver registrations for the two supported dialects. SQLSource talks
	// to the candles_{tf} tables directly via database/sql rather than
	// through a generated model layer: the schema is one narrow table per
	// timeframe, and
	// a codegen ORM's main payoff — typed accessors over a large, evolving
	// schema — isn't worth the build step here.
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"

	"github.com/thrasher-corp/eqbacktester/candle"
	"github.com/thrasher-corp/eqbacktester/timeframe"
)

// Dialect selects the SQL driver/placeholder style SQLSource speaks.
type Dialect int

// The two supported dialects.
const (
	Postgres Dialect = iota
	SQLite
)

// SQLSource is a Source backed by a SQL table per timeframe, named
// candles_{tf}.
type SQLSource struct {
	db      *sql.DB
	dialect Dialect
	timeout time.Duration
}

// OpenPostgres opens a connection pool against a Postgres DSN. maxConns
// should stay small — only one logical reader is ever outstanding except
// during a bar's parallel Ensure calls across timeframes.
func OpenPostgres(dsn string, maxConns int, timeout time.Duration) (*SQLSource, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, wrap("open postgres", err)
	}
	db.SetMaxOpenConns(maxConns)
	return &SQLSource{db: db, dialect: Postgres, timeout: timeout}, nil
}

// OpenSQLite opens a connection pool against a SQLite file, for local
// development and tests that don't require a live Postgres instance.
func OpenSQLite(path string, timeout time.Duration) (*SQLSource, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, wrap("open sqlite3", err)
	}
	db.SetMaxOpenConns(1) // go-sqlite3 serializes writers anyway
	return &SQLSource{db: db, dialect: SQLite, timeout: timeout}, nil
}

// Close releases the underlying connection pool.
func (s *SQLSource) Close() error { return s.db.Close() }

func (s *SQLSource) table(tf timeframe.Timeframe) string {
	return fmt.Sprintf("candles_%s", tf.String())
}

func (s *SQLSource) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, s.timeout)
}

func scanCandles(rows *sql.Rows) ([]candle.Candle, error) {
	defer rows.Close()
	var out []candle.Candle
	for rows.Next() {
		var (
			ticker                       string
			open, high, low, close       float64
			volume                       uint64
			transactions                 sql.NullInt64
			tsMicros                     int64
		)
		if err := rows.Scan(&ticker, &open, &high, &low, &close, &volume, &transactions, &tsMicros); err != nil {
			return nil, wrap("scan row", err)
		}
		tx := uint64(0)
		if transactions.Valid {
			tx = uint64(transactions.Int64)
		}
		out = append(out, candle.New(open, high, low, close, volume, tx, tsMicros/1000))
	}
	if err := rows.Err(); err != nil {
		return nil, wrap("iterate rows", err)
	}
	return out, nil
}

const candleColumns = "ticker, open, high, low, close, volume, transactions, timestamp"

// Range implements Source.
func (s *SQLSource) Range(ctx context.Context, symbol string, tf timeframe.Timeframe, startMs, endMs int64) ([]candle.Candle, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	q := fmt.Sprintf(`SELECT %s FROM %s WHERE ticker = $1 AND timestamp >= $2 AND timestamp < $3 ORDER BY timestamp ASC`,
		candleColumns, s.table(tf))
	rows, err := s.db.QueryContext(ctx, s.placeholders(q), symbol, startMs*1000, endMs*1000)
	if err != nil {
		return nil, wrap("range query", err)
	}
	return scanCandles(rows)
}

// Prefetch implements Source.
func (s *SQLSource) Prefetch(ctx context.Context, symbol string, tf timeframe.Timeframe, fromMs int64, limit int) ([]candle.Candle, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	q := fmt.Sprintf(`SELECT %s FROM %s WHERE ticker = $1 AND timestamp >= $2 ORDER BY timestamp ASC LIMIT $3`,
		candleColumns, s.table(tf))
	rows, err := s.db.QueryContext(ctx, s.placeholders(q), symbol, fromMs*1000, limit)
	if err != nil {
		return nil, wrap("prefetch query", err)
	}
	return scanCandles(rows)
}

// Lookback implements Source. Results come back newest-first per the
// query's own ORDER BY, matching the ad-hoc getCandles contract.
func (s *SQLSource) Lookback(ctx context.Context, symbol string, tf timeframe.Timeframe, atLeastMs, atMostMs int64, limit int) ([]candle.Candle, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	q := fmt.Sprintf(`SELECT %s FROM %s WHERE ticker = $1 AND timestamp <= $2 AND timestamp >= $3 ORDER BY timestamp DESC LIMIT $4`,
		candleColumns, s.table(tf))
	rows, err := s.db.QueryContext(ctx, s.placeholders(q), symbol, atMostMs*1000, atLeastMs*1000, limit)
	if err != nil {
		return nil, wrap("lookback query", err)
	}
	return scanCandles(rows)
}

// AllSymbolsRange implements Source.
func (s *SQLSource) AllSymbolsRange(ctx context.Context, tf timeframe.Timeframe, startMs, endMs int64) (map[string][]candle.Candle, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	q := fmt.Sprintf(`SELECT %s FROM %s WHERE timestamp >= $1 AND timestamp <= $2 ORDER BY timestamp ASC`,
		candleColumns, s.table(tf))
	rows, err := s.db.QueryContext(ctx, s.placeholders(q), startMs*1000, endMs*1000)
	if err != nil {
		return nil, wrap("all symbols range query", err)
	}
	defer rows.Close()
	out := make(map[string][]candle.Candle)
	for rows.Next() {
		var (
			ticker                 string
			open, high, low, close float64
			volume                 uint64
			transactions           sql.NullInt64
			tsMicros                int64
		)
		if err := rows.Scan(&ticker, &open, &high, &low, &close, &volume, &transactions, &tsMicros); err != nil {
			return nil, wrap("scan row", err)
		}
		tx := uint64(0)
		if transactions.Valid {
			tx = uint64(transactions.Int64)
		}
		out[ticker] = append(out[ticker], candle.New(open, high, low, close, volume, tx, tsMicros/1000))
	}
	if err := rows.Err(); err != nil {
		return nil, wrap("iterate rows", err)
	}
	return out, nil
}

// Symbols implements Source.
func (s *SQLSource) Symbols(ctx context.Context) ([]string, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	rows, err := s.db.QueryContext(ctx, `SELECT DISTINCT ticker FROM candles_1d`)
	if err != nil {
		return nil, wrap("symbols query", err)
	}
	defer rows.Close()
	var out []string
	for rows.Next() {
		var ticker string
		if err := rows.Scan(&ticker); err != nil {
			return nil, wrap("scan symbol", err)
		}
		out = append(out, ticker)
	}
	if err := rows.Err(); err != nil {
		return nil, wrap("iterate symbols", err)
	}
	return out, nil
}

// placeholders rewrites $N placeholders to ? for SQLite; Postgres keeps
// them as-is via lib/pq.
func (s *SQLSource) placeholders(q string) string {
	if s.dialect == Postgres {
		return q
	}
	out := make([]byte, 0, len(q))
	for i := 0; i < len(q); i++ {
		if q[i] == '$' {
			for i+1 < len(q) && q[i+1] >= '0' && q[i+1] <= '9' {
				i++
			}
			out = append(out, '?')
			continue
		}
		out = append(out, q[i])
	}
	return string(out)
}
