package stats

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCorrelationPerfectPositive(t *testing.T) {
	corr := Correlation([]float64{1, 2, 3, 4, 5}, []float64{2, 4, 6, 8, 10})
	assert.InDelta(t, 1.0, corr, 1e-6)
}

func TestCorrelationPerfectNegative(t *testing.T) {
	corr := Correlation([]float64{1, 2, 3, 4, 5}, []float64{10, 8, 6, 4, 2})
	assert.InDelta(t, -1.0, corr, 1e-6)
}

func TestCorrelationConstantSeries(t *testing.T) {
	corr := Correlation([]float64{5, 5, 5, 5}, []float64{1, 2, 3, 4})
	assert.True(t, math.IsNaN(corr))

	corr = Correlation([]float64{5, 5, 5}, []float64{7, 7, 7})
	assert.True(t, math.IsNaN(corr))
}

func TestCorrelationLengthMismatch(t *testing.T) {
	corr := Correlation([]float64{1, 2, 3}, []float64{1, 2})
	assert.True(t, math.IsNaN(corr))
}

func TestCorrelationBounds(t *testing.T) {
	a := []float64{3, 7, 1, 9, 4, 6, 2}
	b := []float64{5, 2, 8, 1, 7, 3, 9}

	corr := Correlation(a, b)
	assert.False(t, math.IsNaN(corr))
	assert.GreaterOrEqual(t, corr, -1.0)
	assert.LessOrEqual(t, corr, 1.0)
}

func TestCorrelationStrength(t *testing.T) {
	tests := []struct {
		correlation float64
		expected    string
	}{
		{0.95, "strong"},
		{-0.8, "strong"},
		{0.5, "moderate"},
		{0.25, "weak"},
		{0.05, "none"},
		{math.NaN(), "undefined"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.expected, CorrelationStrength(tt.correlation))
	}
}
