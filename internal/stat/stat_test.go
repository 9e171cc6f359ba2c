package stat

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestArithmeticMean(t *testing.T) {
	assert.Equal(t, 0.0, ArithmeticMean(nil))
	assert.Equal(t, 2.0, ArithmeticMean([]float64{1, 2, 3}))
}

func TestPopulationStdDev(t *testing.T) {
	assert.Equal(t, 0.0, PopulationStdDev(nil))
	assert.InDelta(t, math.Sqrt(2.0/3.0), PopulationStdDev([]float64{1, 2, 3}), 1e-9)
}

func TestFinancialGeometricMean(t *testing.T) {
	assert.Equal(t, 0.0, FinancialGeometricMean(nil))
	// (1.1 * 0.9)^0.5 - 1
	want := math.Sqrt(1.1*0.9) - 1
	assert.InDelta(t, want, FinancialGeometricMean([]float64{0.1, -0.1}), 1e-9)
	assert.Equal(t, 0.0, FinancialGeometricMean([]float64{-1.5}))
}

func TestPearsonCorrelationPerfectPositive(t *testing.T) {
	x := []float64{1, 2, 3, 4}
	y := []float64{2, 4, 6, 8}
	assert.InDelta(t, 1.0, PearsonCorrelation(x, y), 1e-9)
}

func TestPearsonCorrelationPerfectNegative(t *testing.T) {
	x := []float64{1, 2, 3, 4}
	y := []float64{8, 6, 4, 2}
	assert.InDelta(t, -1.0, PearsonCorrelation(x, y), 1e-9)
}

func TestPearsonCorrelationNaNOnTooFewPoints(t *testing.T) {
	assert.True(t, math.IsNaN(PearsonCorrelation([]float64{1}, []float64{1})))
}

func TestPearsonCorrelationNaNOnZeroVariance(t *testing.T) {
	x := []float64{1, 1, 1}
	y := []float64{1, 2, 3}
	assert.True(t, math.IsNaN(PearsonCorrelation(x, y)))
}
