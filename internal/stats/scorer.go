// Package stats provides the pure statistical primitives used by the
// anomaly detection pipeline: z-scoring, severity classification and
// Pearson correlation.
package stats

import (
	"math"
	"sort"
)

// Severity buckets derived from z-score magnitude.
const (
	SeverityLow      = "low"
	SeverityMedium   = "medium"
	SeverityHigh     = "high"
	SeverityCritical = "critical"
)

// Mean computes the arithmetic mean. Empty input returns 0.
func Mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

// StdDev computes the population (uncorrected) standard deviation.
func StdDev(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	mean := Mean(values)
	var variance float64
	for _, v := range values {
		diff := v - mean
		variance += diff * diff
	}
	return math.Sqrt(variance / float64(len(values)))
}

// CalculateZScores returns (x - mean) / stddev for each element. A zero
// standard deviation is substituted with 1 so the result never contains
// NaN or Inf for finite input. Empty input returns an empty slice.
func CalculateZScores(data []float64) []float64 {
	if len(data) == 0 {
		return []float64{}
	}

	mean := Mean(data)
	stdDev := StdDev(data)
	if stdDev == 0 {
		stdDev = 1
	}

	scores := make([]float64, len(data))
	for i, v := range data {
		scores[i] = (v - mean) / stdDev
	}
	return scores
}

// DetectAnomalies reports whether any |z-score| in data exceeds threshold.
func DetectAnomalies(data []float64, threshold float64) bool {
	for _, z := range CalculateZScores(data) {
		if math.Abs(z) > threshold {
			return true
		}
	}
	return false
}

// ScoreValue appends value to the population, recomputes z-scores and
// returns the z-score of the appended value. An empty baseline returns 0.
func ScoreValue(data []float64, value float64) float64 {
	if len(data) == 0 {
		return 0
	}
	population := make([]float64, 0, len(data)+1)
	population = append(population, data...)
	population = append(population, value)

	scores := CalculateZScores(population)
	return scores[len(scores)-1]
}

// ClassifySeverity maps |z| to a severity tier: >3 high, >2 medium,
// else low. Total over all real inputs.
func ClassifySeverity(absZScore float64) string {
	switch {
	case absZScore > 3:
		return SeverityHigh
	case absZScore > 2:
		return SeverityMedium
	default:
		return SeverityLow
	}
}

// AlertSeverity extends ClassifySeverity with a critical tier at |z| >= 3.5,
// used when recording alerts.
func AlertSeverity(absZScore float64) string {
	if absZScore >= 3.5 {
		return SeverityCritical
	}
	return ClassifySeverity(absZScore)
}

// Percentile calculates the nth percentile with linear interpolation
// between closest ranks. Empty input returns 0.
func Percentile(values []float64, percentile float64) float64 {
	if len(values) == 0 {
		return 0
	}

	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)

	index := (percentile / 100.0) * float64(len(sorted)-1)
	lower := int(math.Floor(index))
	upper := int(math.Ceil(index))

	if lower == upper {
		return sorted[lower]
	}

	weight := index - float64(lower)
	return sorted[lower]*(1-weight) + sorted[upper]*weight
}
