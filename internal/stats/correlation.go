package stats

import "math"

// Correlation computes the Pearson correlation coefficient over two
// equal-length series. A length mismatch or a constant series (zero
// variance) yields NaN: correlation is undefined there, and callers are
// expected to check math.IsNaN before using the result.
func Correlation(seriesA, seriesB []float64) float64 {
	if len(seriesA) != len(seriesB) || len(seriesA) < 2 {
		return math.NaN()
	}

	n := float64(len(seriesA))

	var sumX, sumY float64
	for i := range seriesA {
		sumX += seriesA[i]
		sumY += seriesB[i]
	}
	meanX := sumX / n
	meanY := sumY / n

	var numerator, denomX, denomY float64
	for i := range seriesA {
		dx := seriesA[i] - meanX
		dy := seriesB[i] - meanY
		numerator += dx * dy
		denomX += dx * dx
		denomY += dy * dy
	}

	if denomX == 0 || denomY == 0 {
		return math.NaN()
	}

	return numerator / math.Sqrt(denomX*denomY)
}

// CorrelationStrength categorizes a coefficient for reporting. NaN maps
// to "undefined".
func CorrelationStrength(correlation float64) string {
	if math.IsNaN(correlation) {
		return "undefined"
	}
	absCorr := math.Abs(correlation)
	switch {
	case absCorr >= 0.7:
		return "strong"
	case absCorr >= 0.4:
		return "moderate"
	case absCorr >= 0.2:
		return "weak"
	}
	return "none"
}
