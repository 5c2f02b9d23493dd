package engine

import (
	"math"
	"runtime"
	"sync"

	"gonum.org/v1/gonum/mat"

	"github.com/statatlas/statatlas/internal/domain"
)

// Default composite quality-of-life weights over the four normalized
// inputs. For a tract missing some of the four, the remaining weights are
// renormalized so the score stays a convex combination in [0,1].
var qualityWeights = []struct {
	col    domain.Column
	weight float64
}{
	{domain.ColWalkability, 0.35},
	{domain.ColNonAutoShare, 0.25},
	{domain.ColPollution, 0.20},
	{domain.ColTraffic, 0.20},
}

// parallelRowThreshold is the row count above which the scoring kernel
// splits work across GOMAXPROCS goroutines. Below it the goroutine
// overhead outweighs the work.
const parallelRowThreshold = 2048

// WeightedScores computes, for every row of m, the weighted sum over the
// non-NaN features of that row. Missing features are skipped entirely —
// their weight contributes nothing, they are never treated as zero. The
// result is identical whether rows are scored sequentially or in parallel.
func WeightedScores(m *mat.Dense, weights []float64) []float64 {
	sums, _ := scoreRows(m, weights)
	return sums
}

// scoreRows returns the skip-on-NaN weighted sum per row together with the
// total weight of the features that were present, for callers that
// renormalize over the present subset.
func scoreRows(m *mat.Dense, weights []float64) (sums, mass []float64) {
	rows, cols := m.Dims()
	if cols != len(weights) {
		panic("engine: weight vector length does not match matrix columns")
	}
	sums = make([]float64, rows)
	mass = make([]float64, rows)

	raw := m.RawMatrix()
	score := func(lo, hi int) {
		for i := lo; i < hi; i++ {
			row := raw.Data[i*raw.Stride : i*raw.Stride+cols]
			var sum, wsum float64
			for j, v := range row {
				if math.IsNaN(v) {
					continue
				}
				sum += weights[j] * v
				wsum += weights[j]
			}
			sums[i] = sum
			mass[i] = wsum
		}
	}

	if rows < parallelRowThreshold {
		score(0, rows)
		return sums, mass
	}

	workers := runtime.GOMAXPROCS(0)
	chunk := (rows + workers - 1) / workers
	var wg sync.WaitGroup
	for lo := 0; lo < rows; lo += chunk {
		hi := lo + chunk
		if hi > rows {
			hi = rows
		}
		wg.Add(1)
		go func(lo, hi int) {
			defer wg.Done()
			score(lo, hi)
		}(lo, hi)
	}
	wg.Wait()
	return sums, mass
}

// CompositeScores writes the quality-of-life score onto every tract: the
// weighted average of its present composite inputs, with weights
// renormalized over the present subset. A tract with all four inputs
// missing gets NaN (undefined), never zero.
func CompositeScores(tracts []*domain.Tract) {
	if len(tracts) == 0 {
		return
	}

	cols := len(qualityWeights)
	weights := make([]float64, cols)
	m := mat.NewDense(len(tracts), cols, nil)
	for j, qw := range qualityWeights {
		weights[j] = qw.weight
		for i, t := range tracts {
			m.Set(i, j, t.Norm(qw.col))
		}
	}

	sums, mass := scoreRows(m, weights)
	for i, t := range tracts {
		if mass[i] == 0 {
			t.QualityOfLifeScore = math.NaN()
			continue
		}
		t.QualityOfLifeScore = sums[i] / mass[i]
	}
}
