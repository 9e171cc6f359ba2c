// Package metrics computes summary risk/return statistics — CAGR, Sharpe,
// max drawdown, geometric returns, win rate and feature correlations — as
// a pure function over an equity curve and a closed-trade log. It has no
// dependency on package engine: engine converts its own
// EquityPoint/Trade records into this package's lightweight input types
// at the call boundary, so metrics stays independently testable and
// engine stays the only package that knows about orders and balances.
package metrics

import (
	"math"
	"sort"

	"github.com/thrasher-corp/eqbacktester/internal/stat"
)

// EquityPoint is one sampled (timestamp, totalValue, cashBalance) triple
// from the equity curve.
type EquityPoint struct {
	Timestamp   int64
	TotalValue  float64
	CashBalance float64
}

// TradeInput is the subset of a closed trade Compute needs: its
// profitability and the feature vector (if any) attached at buy time.
type TradeInput struct {
	Profit        float64
	ProfitPercent float64
	Features      []float64
}

// Metrics is the summary statistics computed over one run's equity curve
// and trade log.
type Metrics struct {
	TotalReturn        float64
	CAGR               float64
	Sharpe             float64
	GeoPeriodReturn    float64
	GeoAnnualReturn    float64
	MaxDrawdown        float64
	MeanReturn         float64 // historically called AvgDaily; the arithmetic mean of per-step returns at the main timeframe's granularity
	WinRate            float64
	TotalFees          float64
	NumTrades          int
	FeatureCorrelations map[int]float64
}

const msPerYear = 365 * 24 * 60 * 60 * 1000

// Compute derives Metrics from a sampled equity curve and a closed-trade
// log. curve need not arrive sorted; Compute sorts a copy by timestamp
// before computing per-step returns, so calling Compute twice on the same
// (possibly differently-ordered) curve returns bit-identical values.
// periodsPerYear is the main timeframe's Timeframe.PeriodsPerYear().
func Compute(startCashBalance float64, curve []EquityPoint, trades []TradeInput, startDateMs, endDateMs int64, periodsPerYear float64, totalFees float64) Metrics {
	m := Metrics{TotalFees: totalFees, NumTrades: len(trades), FeatureCorrelations: map[int]float64{}}
	if len(curve) < 2 {
		return m
	}

	sorted := make([]EquityPoint, len(curve))
	copy(sorted, curve)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Timestamp < sorted[j].Timestamp })

	n := len(sorted)
	endEquity := sorted[n-1].TotalValue
	if startCashBalance != 0 {
		m.TotalReturn = endEquity/startCashBalance - 1
	}

	years := float64(endDateMs-startDateMs) / float64(msPerYear)
	if years > 0 {
		m.CAGR = math.Pow(1+m.TotalReturn, 1/years) - 1
	}

	returns := make([]float64, 0, n-1)
	for i := 1; i < n; i++ {
		prev := sorted[i-1].TotalValue
		if prev == 0 {
			returns = append(returns, 0)
			continue
		}
		returns = append(returns, sorted[i].TotalValue/prev-1)
	}

	m.MeanReturn = stat.ArithmeticMean(returns)
	stdRet := stat.PopulationStdDev(returns)
	if stdRet > 0 {
		m.Sharpe = (m.MeanReturn / stdRet) * math.Sqrt(periodsPerYear)
	}

	m.GeoPeriodReturn = stat.FinancialGeometricMean(returns)
	m.GeoAnnualReturn = math.Pow(1+m.GeoPeriodReturn, periodsPerYear) - 1

	m.MaxDrawdown = maxDrawdown(sorted)

	if len(trades) > 0 {
		wins := 0
		for _, tr := range trades {
			if tr.Profit > 0 {
				wins++
			}
		}
		m.WinRate = float64(wins) / float64(len(trades))
	}

	m.FeatureCorrelations = featureCorrelations(trades)

	return m
}

// maxDrawdown returns min_i (e_i - peak_i)/peak_i, a non-positive number,
// where peak_i = max(e_0..e_i).
func maxDrawdown(curve []EquityPoint) float64 {
	if len(curve) == 0 {
		return 0
	}
	peak := curve[0].TotalValue
	worst := 0.0
	for _, p := range curve {
		if p.TotalValue > peak {
			peak = p.TotalValue
		}
		if peak == 0 {
			continue
		}
		dd := (p.TotalValue - peak) / peak
		if dd < worst {
			worst = dd
		}
	}
	return worst
}

// featureCorrelations computes Pearson's r between each feature index and
// profitPercent, across trades carrying a feature vector long enough to
// have that index. An index absent from the result means fewer than two
// qualifying trades or a zero denominator.
func featureCorrelations(trades []TradeInput) map[int]float64 {
	out := map[int]float64{}
	maxLen := 0
	for _, tr := range trades {
		if len(tr.Features) > maxLen {
			maxLen = len(tr.Features)
		}
	}
	for k := 0; k < maxLen; k++ {
		var x, y []float64
		for _, tr := range trades {
			if len(tr.Features) > k {
				x = append(x, tr.Features[k])
				y = append(y, tr.ProfitPercent)
			}
		}
		r := stat.PearsonCorrelation(x, y)
		if !math.IsNaN(r) {
			out[k] = r
		}
	}
	return out
}
