package engine

import (
	"github.com/thrasher-corp/eqbacktester/metrics"
	"github.com/thrasher-corp/eqbacktester/report"
)

// LogMetrics writes a human-readable summary of m through the Engine's
// logger.
func (e *Engine) LogMetrics(m metrics.Metrics) {
	e.logger.Infof("total return: %.4f%%", m.TotalReturn*100)
	e.logger.Infof("CAGR: %.4f%%", m.CAGR*100)
	e.logger.Infof("sharpe ratio: %.4f", m.Sharpe)
	e.logger.Infof("geometric annual return: %.4f%%", m.GeoAnnualReturn*100)
	e.logger.Infof("max drawdown: %.4f%%", m.MaxDrawdown*100)
	e.logger.Infof("win rate: %.2f%%", m.WinRate*100)
	e.logger.Infof("trades: %d, total fees: $%.2f", m.NumTrades, m.TotalFees)
	for k, r := range m.FeatureCorrelations {
		e.logger.Infof("feature[%d] correlation with profit%%: %.4f", k, r)
	}
}

// BuildReport renders a self-contained HTML report for m over this
// Engine's equity curve.
func (e *Engine) BuildReport(m metrics.Metrics) (string, error) {
	curve := make([]report.EquityPoint, len(e.equityCurve))
	for i, p := range e.equityCurve {
		curve[i] = report.EquityPoint{Timestamp: p.Timestamp, TotalValue: p.TotalValue}
	}
	return report.Build(m, curve)
}
