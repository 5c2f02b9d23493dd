package engine

import (
	"math"

	"github.com/statatlas/statatlas/internal/domain"
)

// degenerateNorm is the value assigned to every tract when a column is
// constant statewide (max == min): the midpoint, not a division by zero.
const degenerateNorm = 0.5

// Normalize fills every tract's *_norm columns from the statewide extrema
// of each source column and returns the per-column stats used. Inverted
// columns are flipped (max − v) before scaling so all normalized columns
// read "higher is better". Missing sources normalize to NaN.
func Normalize(tracts []*domain.Tract) map[domain.Column]domain.ColumnStats {
	stats := make(map[domain.Column]domain.ColumnStats, len(domain.ColumnSpecs()))
	values := make([]float64, len(tracts))

	for _, spec := range domain.ColumnSpecs() {
		for i, t := range tracts {
			values[i] = spec.Source(t)
		}
		if spec.Invert {
			invert(values)
		}

		st := columnStats(values)
		stats[spec.Column] = st
		for i, t := range tracts {
			t.Norms[spec.Column] = MinMax(values[i], st)
		}
	}
	return stats
}

// MinMax rescales v into [0,1] against st. NaN passes through, a
// degenerate column (max == min) maps every present value to 0.5.
func MinMax(v float64, st domain.ColumnStats) float64 {
	if math.IsNaN(v) {
		return v
	}
	if math.IsNaN(st.Min) || math.IsNaN(st.Max) {
		return math.NaN()
	}
	if st.Max == st.Min {
		return degenerateNorm
	}
	return (v - st.Min) / (st.Max - st.Min)
}

// invert replaces each present value with max − v, flipping the column's
// direction while preserving its spread. All-NaN columns are left as is.
func invert(values []float64) {
	max := nanMax(values)
	if math.IsNaN(max) {
		return
	}
	for i, v := range values {
		if !math.IsNaN(v) {
			values[i] = max - v
		}
	}
}

// columnStats computes extrema over the present values of one column.
// Returns NaN stats when every value is missing.
func columnStats(values []float64) domain.ColumnStats {
	st := domain.ColumnStats{Min: math.NaN(), Max: math.NaN()}
	for _, v := range values {
		if math.IsNaN(v) {
			continue
		}
		if math.IsNaN(st.Min) || v < st.Min {
			st.Min = v
		}
		if math.IsNaN(st.Max) || v > st.Max {
			st.Max = v
		}
	}
	return st
}

func nanMax(values []float64) float64 {
	max := math.NaN()
	for _, v := range values {
		if math.IsNaN(v) {
			continue
		}
		if math.IsNaN(max) || v > max {
			max = v
		}
	}
	return max
}

// nanMean averages the present values, NaN when none are present.
func nanMean(values []float64) float64 {
	sum, n := 0.0, 0
	for _, v := range values {
		if math.IsNaN(v) {
			continue
		}
		sum += v
		n++
	}
	if n == 0 {
		return math.NaN()
	}
	return sum / float64(n)
}
