// Package engine is the tick driver: it owns cash, positions, the equity
// curve and the closed-trade log, and orchestrates either a
// single-symbol or an all-symbols run, calling back into the user's
// strategy once per dispatched bar.
package engine

import (
	"fmt"

	"github.com/gofrs/uuid"

	"github.com/thrasher-corp/eqbacktester/broker"
	"github.com/thrasher-corp/eqbacktester/datasource"
	"github.com/thrasher-corp/eqbacktester/internal/log"
	"github.com/thrasher-corp/eqbacktester/metrics"
	"github.com/thrasher-corp/eqbacktester/strategy"
	"github.com/thrasher-corp/eqbacktester/timeframe"
)

// Swap is one executed buy or sell, logged individually and never
// mutated after being appended.
type Swap struct {
	ID        uuid.UUID
	Side      broker.Side
	Ticker    string
	Qty       uint64
	Price     float64
	Fee       float64
	Timestamp int64
}

// Trade is a completed round trip, recorded on the closing sell. SwapID
// is the closing sell's Swap.ID, a stable join key a host report can use
// to line the trade back up with the swaps that settled it.
type Trade struct {
	ID            uuid.UUID
	SwapID        uuid.UUID
	Ticker        string
	Qty           uint64
	Price         float64
	Timestamp     int64
	Fee           float64
	Profit        float64
	ProfitPercent float64
	Features      []float64
}

// EquityPoint is one sample of the equity curve, taken once per
// dispatched bar.
type EquityPoint struct {
	Timestamp   int64
	TotalValue  float64
	CashBalance float64
}

// Config constructs an Engine. Strategy, Broker and Source are required;
// EndDate must be strictly after StartDate.
type Config struct {
	Strategy         *strategy.Strategy
	StartDate        int64
	EndDate          int64
	StartCashBalance float64
	Broker           broker.Broker
	Source           datasource.Source
	Logger           *log.SubLogger
}

// Engine is the tick driver. Its mutable state (balances, swaps, trades,
// equity curve) is touched by exactly one bar at a time, so it carries no
// lock.
type Engine struct {
	strategy         *strategy.Strategy
	startDate        int64
	endDate          int64
	startCashBalance float64
	broker           broker.Broker
	source           datasource.Source
	logger           *log.SubLogger

	cashBalance   float64
	stockBalances map[string]uint64
	stockPrices   map[string]float64
	holdSince     map[string]int64
	stockFeatures map[string][]float64
	swaps         []Swap
	trades        []Trade
	equityCurve   []EquityPoint
	delistCounter map[string]int
	totalFees     float64
}

// New validates cfg and returns a ready-to-run Engine with a full
// starting cash balance and no positions.
func New(cfg Config) (*Engine, error) {
	if cfg.Strategy == nil {
		return nil, fmt.Errorf("%w: nil strategy", ErrInvalidConfig)
	}
	if cfg.EndDate <= cfg.StartDate {
		return nil, fmt.Errorf("%w: endDate must be after startDate", ErrInvalidConfig)
	}
	if cfg.Broker == nil {
		return nil, fmt.Errorf("%w: nil broker", ErrInvalidConfig)
	}
	if cfg.Source == nil {
		return nil, fmt.Errorf("%w: nil data source", ErrInvalidConfig)
	}
	if cfg.StartCashBalance < 0 {
		return nil, fmt.Errorf("%w: negative starting cash balance", ErrInvalidConfig)
	}
	logger := cfg.Logger
	if logger == nil {
		logger = log.NewSubLogger("engine")
	}
	return &Engine{
		strategy:         cfg.Strategy,
		startDate:        cfg.StartDate,
		endDate:          cfg.EndDate,
		startCashBalance: cfg.StartCashBalance,
		cashBalance:      cfg.StartCashBalance,
		broker:           cfg.Broker,
		source:           cfg.Source,
		logger:           logger,
		stockBalances:    map[string]uint64{},
		stockPrices:      map[string]float64{},
		holdSince:        map[string]int64{},
		stockFeatures:    map[string][]float64{},
		delistCounter:    map[string]int{},
	}, nil
}

// CashBalance returns the current cash balance.
func (e *Engine) CashBalance() float64 { return e.cashBalance }

// StockBalance returns ticker's current share count, 0 if none is held.
func (e *Engine) StockBalance(ticker string) uint64 { return e.stockBalances[ticker] }

// TotalFees returns the accumulated fee total across every swap.
func (e *Engine) TotalFees() float64 { return e.totalFees }

// Swaps returns every executed buy/sell, in execution order.
func (e *Engine) Swaps() []Swap { return e.swaps }

// Trades returns every closed round trip, in closing order.
func (e *Engine) Trades() []Trade { return e.trades }

// EquityCurve returns every sampled (timestamp, totalValue, cashBalance)
// point, in dispatch order.
func (e *Engine) EquityCurve() []EquityPoint { return e.equityCurve }

// totalValue is cashBalance plus the mark-to-market value of every held
// position.
func (e *Engine) totalValue() float64 {
	v := e.cashBalance
	for ticker, qty := range e.stockBalances {
		v += float64(qty) * e.stockPrices[ticker]
	}
	return v
}

func (e *Engine) computeMetrics(main timeframe.Timeframe) metrics.Metrics {
	curve := make([]metrics.EquityPoint, len(e.equityCurve))
	for i, p := range e.equityCurve {
		curve[i] = metrics.EquityPoint{Timestamp: p.Timestamp, TotalValue: p.TotalValue, CashBalance: p.CashBalance}
	}
	trades := make([]metrics.TradeInput, len(e.trades))
	for i, tr := range e.trades {
		trades[i] = metrics.TradeInput{Profit: tr.Profit, ProfitPercent: tr.ProfitPercent, Features: tr.Features}
	}
	return metrics.Compute(e.startCashBalance, curve, trades, e.startDate, e.endDate, main.PeriodsPerYear(), e.totalFees)
}
