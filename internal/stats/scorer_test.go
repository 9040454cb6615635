package stats

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCalculateZScores(t *testing.T) {
	tests := []struct {
		name string
		data []float64
	}{
		{"empty", []float64{}},
		{"single value", []float64{42}},
		{"identical values", []float64{5, 5, 5, 5}},
		{"mixed values", []float64{50, 52, 51, 90, 95, 93}},
		{"negative values", []float64{-10, -20, -30, -5}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			scores := CalculateZScores(tt.data)
			require.Len(t, scores, len(tt.data))
			for i, z := range scores {
				assert.False(t, math.IsNaN(z), "NaN at index %d", i)
				assert.False(t, math.IsInf(z, 0), "Inf at index %d", i)
			}
		})
	}
}

func TestCalculateZScoresZeroVariance(t *testing.T) {
	// Zero stddev is substituted with 1, so every score collapses to 0.
	scores := CalculateZScores([]float64{7, 7, 7})
	for _, z := range scores {
		assert.Equal(t, 0.0, z)
	}
}

func TestDetectAnomalies(t *testing.T) {
	assert.False(t, DetectAnomalies([]float64{}, 3))
	assert.False(t, DetectAnomalies([]float64{1, 2, 3, 2, 1}, 3))

	// One extreme outlier in a tight population pushes |z| past 3.
	data := []float64{10, 10, 10, 10, 10, 10, 10, 10, 10, 10, 10, 10, 100}
	assert.True(t, DetectAnomalies(data, 3))
}

func TestScoreValue(t *testing.T) {
	assert.Equal(t, 0.0, ScoreValue(nil, 42))
	assert.Equal(t, 0.0, ScoreValue([]float64{}, 42))

	baseline := []float64{50, 52, 51}
	z := ScoreValue(baseline, 90)
	assert.Greater(t, z, 0.0)

	// Scoring must not mutate the baseline.
	assert.Equal(t, []float64{50, 52, 51}, baseline)

	// A value right at the mean scores ~0.
	assert.InDelta(t, 0.0, ScoreValue([]float64{10, 20, 30}, 20), 1e-9)
}

func TestClassifySeverity(t *testing.T) {
	tests := []struct {
		absZ     float64
		expected string
	}{
		{0, SeverityLow},
		{1.9, SeverityLow},
		{2.0, SeverityLow},
		{2.01, SeverityMedium},
		{3.0, SeverityMedium},
		{3.01, SeverityHigh},
		{50, SeverityHigh},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.expected, ClassifySeverity(tt.absZ), "absZ=%v", tt.absZ)
	}
}

func TestClassifySeverityMonotonic(t *testing.T) {
	rank := map[string]int{SeverityLow: 0, SeverityMedium: 1, SeverityHigh: 2}

	prev := 0
	for z := 0.0; z <= 10; z += 0.1 {
		current := rank[ClassifySeverity(z)]
		assert.GreaterOrEqual(t, current, prev)
		prev = current
	}
}

func TestAlertSeverity(t *testing.T) {
	assert.Equal(t, SeverityLow, AlertSeverity(1))
	assert.Equal(t, SeverityMedium, AlertSeverity(2.5))
	assert.Equal(t, SeverityHigh, AlertSeverity(3.2))
	assert.Equal(t, SeverityCritical, AlertSeverity(3.5))
	assert.Equal(t, SeverityCritical, AlertSeverity(10))
}

func TestPercentile(t *testing.T) {
	values := []float64{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}

	assert.Equal(t, 0.0, Percentile(nil, 95))
	assert.InDelta(t, 5.5, Percentile(values, 50), 1e-9)
	assert.InDelta(t, 10.0, Percentile(values, 100), 1e-9)
	assert.InDelta(t, 1.0, Percentile(values, 0), 1e-9)
}
