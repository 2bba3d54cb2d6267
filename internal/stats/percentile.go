package stats

import (
	"math"
	"sort"
)

// Quantile returns the q-th quantile (0-1) of values using linear interpolation
// between order statistics: h = q*(n-1), result = x[floor(h)] + (h-floor(h))*(x[ceil(h)]-x[floor(h)]).
// This is the numpy/pandas "linear" convention. q is clamped to [0, 1].
// values is not modified. Returns NaN for an empty slice.
func Quantile(values []float64, q float64) float64 {
	if len(values) == 0 {
		return math.NaN()
	}
	sorted := sortedCopy(values)
	return quantileSorted(sorted, q)
}

// Quantiles computes several quantiles with a single sort.
func Quantiles(values []float64, qs ...float64) []float64 {
	results := make([]float64, len(qs))
	if len(values) == 0 {
		for i := range results {
			results[i] = math.NaN()
		}
		return results
	}

	sorted := sortedCopy(values)
	for i, q := range qs {
		results[i] = quantileSorted(sorted, q)
	}
	return results
}

// Percentile is Quantile with p expressed in 0-100.
func Percentile(values []float64, p float64) float64 {
	return Quantile(values, p/100.0)
}

func Median(values []float64) float64 {
	return Quantile(values, 0.5)
}

func Mean(values []float64) float64 {
	if len(values) == 0 {
		return math.NaN()
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

// AllFinite reports whether values contains no NaN or infinities.
func AllFinite(values []float64) bool {
	for _, v := range values {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

func quantileSorted(sorted []float64, q float64) float64 {
	if q < 0 {
		q = 0
	}
	if q > 1 {
		q = 1
	}

	index := q * float64(len(sorted)-1)
	lower := int(math.Floor(index))
	upper := int(math.Ceil(index))

	if lower == upper {
		return sorted[lower]
	}

	weight := index - float64(lower)
	return sorted[lower] + weight*(sorted[upper]-sorted[lower])
}

func sortedCopy(values []float64) []float64 {
	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)
	return sorted
}
