// Package report renders a self-contained HTML summary of a backtest run:
// an equity curve, a drawdown chart, and the headline statistics, using
// html/template plus a client-side charting widget fed by a plain data
// struct, scoped to one equity-curve chart and one drawdown chart.
package report

import (
	"bytes"
	"encoding/json"
	"html/template"

	"github.com/thrasher-corp/eqbacktester/metrics"
)

// EquityPoint is one point on the rendered equity/drawdown chart.
type EquityPoint struct {
	Timestamp  int64
	TotalValue float64
}

// LinePlot is one (x, y) point of a Chart.js-compatible series, the shape
// the embedded chart script expects.
type LinePlot struct {
	UnixMilli int64
	Value     float64
}

// chartData is what the report template renders into an inline <script>
// block: Go-side data kept separate from client-side rendering.
type chartData struct {
	Metrics        metrics.Metrics
	EquityPlotJSON template.JS
	DrawdownPlotJSON template.JS
}

var tpl = template.Must(template.New("report").Parse(reportTemplate))

// Build renders a self-contained HTML report string for m over curve.
// curve need not be sorted; Build renders it in timestamp order.
func Build(m metrics.Metrics, curve []EquityPoint) (string, error) {
	sorted := make([]EquityPoint, len(curve))
	copy(sorted, curve)
	for i := 1; i < len(sorted); i++ {
		for j := i; j > 0 && sorted[j].Timestamp < sorted[j-1].Timestamp; j-- {
			sorted[j], sorted[j-1] = sorted[j-1], sorted[j]
		}
	}

	equityPlot := make([]LinePlot, len(sorted))
	drawdownPlot := make([]LinePlot, len(sorted))
	peak := 0.0
	for i, p := range sorted {
		equityPlot[i] = LinePlot{UnixMilli: p.Timestamp, Value: p.TotalValue}
		if p.TotalValue > peak {
			peak = p.TotalValue
		}
		dd := 0.0
		if peak > 0 {
			dd = (p.TotalValue - peak) / peak
		}
		drawdownPlot[i] = LinePlot{UnixMilli: p.Timestamp, Value: dd}
	}

	equityJSON, err := json.Marshal(equityPlot)
	if err != nil {
		return "", err
	}
	drawdownJSON, err := json.Marshal(drawdownPlot)
	if err != nil {
		return "", err
	}

	var buf bytes.Buffer
	data := chartData{
		Metrics:          m,
		EquityPlotJSON:   template.JS(equityJSON),
		DrawdownPlotJSON: template.JS(drawdownJSON),
	}
	if err := tpl.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}

const reportTemplate = `<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<title>Backtest report</title>
<script src="https://cdn.jsdelivr.net/npm/chart.js"></script>
</head>
<body>
<h1>Backtest report</h1>
<ul>
<li>Total return: {{printf "%.2f" .Metrics.TotalReturn}}</li>
<li>CAGR: {{printf "%.4f" .Metrics.CAGR}}</li>
<li>Sharpe ratio: {{printf "%.4f" .Metrics.Sharpe}}</li>
<li>Max drawdown: {{printf "%.4f" .Metrics.MaxDrawdown}}</li>
<li>Win rate: {{printf "%.4f" .Metrics.WinRate}}</li>
<li>Trades: {{.Metrics.NumTrades}}</li>
<li>Total fees: {{printf "%.2f" .Metrics.TotalFees}}</li>
</ul>
<canvas id="equityChart"></canvas>
<canvas id="drawdownChart"></canvas>
<script>
const equityData = {{.EquityPlotJSON}};
const drawdownData = {{.DrawdownPlotJSON}};
new Chart(document.getElementById('equityChart'), {
  type: 'line',
  data: {datasets: [{label: 'Equity', data: equityData.map(p => ({x: p.UnixMilli, y: p.Value}))}]},
});
new Chart(document.getElementById('drawdownChart'), {
  type: 'line',
  data: {datasets: [{label: 'Drawdown', data: drawdownData.map(p => ({x: p.UnixMilli, y: p.Value}))}]},
});
</script>
</body>
</html>
`
