package engine

import (
	"fmt"
	"math"
	"math/rand"
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"github.com/statatlas/statatlas/internal/domain"
)

// clusterFeature is one dimension of the fitting feature space. Order
// matters: centroids are stored in this order.
type clusterFeature struct {
	name   string
	source func(*domain.Tract) float64
}

var clusterFeatures = []clusterFeature{
	{"pollution_score", func(t *domain.Tract) float64 { return t.PollutionScore }},
	{"walkability_index", func(t *domain.Tract) float64 { return t.WalkabilityIndex }},
	{"non_auto_share", func(t *domain.Tract) float64 { return t.NonAutoShare }},
	{"asthma_rate", func(t *domain.Tract) float64 { return t.AsthmaRate }},
	{"poverty_pct", func(t *domain.Tract) float64 { return t.PovertyPct }},
	{"hazard_risk_score", func(t *domain.Tract) float64 { return t.HazardRiskScore }},
	{"hazard_resilience_score", func(t *domain.Tract) float64 { return t.HazardResilienceScore }},
	{"ozone_exceedance_days", func(t *domain.Tract) float64 { return t.OzoneExceedanceDays }},
}

// ClusterFeatureNames returns the ordered names of the fitting dimensions.
func ClusterFeatureNames() []string {
	names := make([]string, len(clusterFeatures))
	for i, f := range clusterFeatures {
		names[i] = f.name
	}
	return names
}

// KMeansConfig controls cluster fitting. The fixed seed makes re-runs on
// unchanged input reproduce identical cluster ids, which keeps labels
// meaningful to users across pipeline runs.
type KMeansConfig struct {
	K         int
	Seed      int64
	MaxIter   int
	Tolerance float64
}

func (c KMeansConfig) withDefaults() KMeansConfig {
	if c.K <= 0 {
		c.K = 5
	}
	if c.Seed == 0 {
		c.Seed = 42
	}
	if c.MaxIter <= 0 {
		c.MaxIter = 300
	}
	if c.Tolerance <= 0 {
		c.Tolerance = 1e-6
	}
	return c
}

// KMeansModel holds fitted centroids in the scaled feature space.
type KMeansModel struct {
	Centroids *mat.Dense // k × features
}

// Assign returns the id of the centroid nearest to row (Euclidean).
// Re-scoring the same vector against a persisted model always reproduces
// the same id.
func (m *KMeansModel) Assign(row []float64) int {
	k, _ := m.Centroids.Dims()
	best, bestDist := 0, math.Inf(1)
	for c := 0; c < k; c++ {
		d := floats.Distance(row, m.Centroids.RawRowView(c), 2)
		if d < bestDist {
			best, bestDist = c, d
		}
	}
	return best
}

// ErrTooFewTracts signals that clustering was skipped because fewer tracts
// than k had complete feature vectors. Callers degrade softly: every tract
// keeps the Unclustered fallback label.
type ErrTooFewTracts struct {
	Complete int
	K        int
}

func (e ErrTooFewTracts) Error() string {
	return fmt.Sprintf("clustering skipped: %d tracts with complete features, need at least k=%d", e.Complete, e.K)
}

// ClusterTracts fits K-Means over the fixed feature vector, assigns every
// tract a cluster id and label, and returns one profile per cluster.
// Incomplete feature values are median-imputed and all dimensions are
// standard-scaled before fitting, since centroid distances are meaningless
// on mixed raw scales.
func ClusterTracts(tracts []*domain.Tract, cfg KMeansConfig) ([]domain.ClusterProfile, error) {
	cfg = cfg.withDefaults()

	matrix, complete := clusterMatrix(tracts)
	if complete < cfg.K {
		markUnclustered(tracts)
		return nil, ErrTooFewTracts{Complete: complete, K: cfg.K}
	}

	model := fitKMeans(matrix, cfg)

	for i, t := range tracts {
		t.ClusterID = model.Assign(matrix.RawRowView(i))
	}

	profiles := buildProfiles(tracts, model, cfg.K)
	labelProfiles(profiles, newLabelStats(tracts))
	applyLabels(tracts, profiles)
	return profiles, nil
}

func markUnclustered(tracts []*domain.Tract) {
	for _, t := range tracts {
		t.ClusterID = domain.UnclusteredID
		t.ClusterLabel = domain.UnclusteredLabel
	}
}

// clusterMatrix builds the scaled fitting matrix and counts the tracts
// whose raw feature vector had no missing values.
func clusterMatrix(tracts []*domain.Tract) (*mat.Dense, int) {
	rows, cols := len(tracts), len(clusterFeatures)
	m := mat.NewDense(rows, cols, nil)
	for j, f := range clusterFeatures {
		for i, t := range tracts {
			m.Set(i, j, f.source(t))
		}
	}

	complete := 0
	for i := 0; i < rows; i++ {
		if !rowHasNaN(m.RawRowView(i)) {
			complete++
		}
	}

	imputeMedians(m)
	standardScale(m)
	return m, complete
}

func rowHasNaN(row []float64) bool {
	for _, v := range row {
		if math.IsNaN(v) {
			return true
		}
	}
	return false
}

// imputeMedians replaces missing values with the column median. A column
// with no present values at all falls back to zero.
func imputeMedians(m *mat.Dense) {
	rows, cols := m.Dims()
	present := make([]float64, 0, rows)
	for j := 0; j < cols; j++ {
		present = present[:0]
		for i := 0; i < rows; i++ {
			if v := m.At(i, j); !math.IsNaN(v) {
				present = append(present, v)
			}
		}
		median := 0.0
		if len(present) > 0 {
			sort.Float64s(present)
			median = stat.Quantile(0.5, stat.Empirical, present, nil)
		}
		for i := 0; i < rows; i++ {
			if math.IsNaN(m.At(i, j)) {
				m.Set(i, j, median)
			}
		}
	}
}

// standardScale centers each column on its mean and divides by its
// standard deviation. Constant columns scale to zero.
func standardScale(m *mat.Dense) {
	rows, cols := m.Dims()
	col := make([]float64, rows)
	for j := 0; j < cols; j++ {
		mat.Col(col, j, m)
		mean, std := stat.MeanStdDev(col, nil)
		for i := 0; i < rows; i++ {
			if std == 0 || math.IsNaN(std) {
				m.Set(i, j, 0)
				continue
			}
			m.Set(i, j, (m.At(i, j)-mean)/std)
		}
	}
}

// fitKMeans runs Lloyd's algorithm with k-means++ seeding from a fixed
// random source. One seeded initialization keeps the fit deterministic.
func fitKMeans(m *mat.Dense, cfg KMeansConfig) *KMeansModel {
	rows, cols := m.Dims()
	rng := rand.New(rand.NewSource(cfg.Seed))

	centroids := seedCentroids(m, cfg.K, rng)
	assignments := make([]int, rows)
	counts := make([]int, cfg.K)
	next := mat.NewDense(cfg.K, cols, nil)

	for iter := 0; iter < cfg.MaxIter; iter++ {
		model := &KMeansModel{Centroids: centroids}
		for i := 0; i < rows; i++ {
			assignments[i] = model.Assign(m.RawRowView(i))
		}

		next.Zero()
		for i := range counts {
			counts[i] = 0
		}
		for i := 0; i < rows; i++ {
			c := assignments[i]
			counts[c]++
			row := m.RawRowView(i)
			for j := 0; j < cols; j++ {
				next.Set(c, j, next.At(c, j)+row[j])
			}
		}
		shift := 0.0
		for c := 0; c < cfg.K; c++ {
			if counts[c] == 0 {
				// Empty cluster: keep its previous centroid.
				next.SetRow(c, centroids.RawRowView(c))
				continue
			}
			for j := 0; j < cols; j++ {
				next.Set(c, j, next.At(c, j)/float64(counts[c]))
			}
			shift += floats.Distance(next.RawRowView(c), centroids.RawRowView(c), 2)
		}

		centroids, next = next, centroids
		if shift < cfg.Tolerance {
			break
		}
	}

	return &KMeansModel{Centroids: centroids}
}

// seedCentroids picks k initial centroids with k-means++: the first row
// uniformly, each subsequent one weighted by squared distance to the
// nearest centroid chosen so far.
func seedCentroids(m *mat.Dense, k int, rng *rand.Rand) *mat.Dense {
	rows, cols := m.Dims()
	centroids := mat.NewDense(k, cols, nil)
	centroids.SetRow(0, m.RawRowView(rng.Intn(rows)))

	dist2 := make([]float64, rows)
	for c := 1; c < k; c++ {
		total := 0.0
		for i := 0; i < rows; i++ {
			best := math.Inf(1)
			for prev := 0; prev < c; prev++ {
				d := floats.Distance(m.RawRowView(i), centroids.RawRowView(prev), 2)
				if dd := d * d; dd < best {
					best = dd
				}
			}
			dist2[i] = best
			total += best
		}
		if total == 0 {
			// All remaining rows coincide with existing centroids.
			centroids.SetRow(c, m.RawRowView(rng.Intn(rows)))
			continue
		}
		target := rng.Float64() * total
		cum := 0.0
		chosen := rows - 1
		for i := 0; i < rows; i++ {
			cum += dist2[i]
			if cum >= target {
				chosen = i
				break
			}
		}
		centroids.SetRow(c, m.RawRowView(chosen))
	}
	return centroids
}

// buildProfiles computes, per cluster, the member count and raw-scale mean
// metrics used for labeling and summaries.
func buildProfiles(tracts []*domain.Tract, model *KMeansModel, k int) []domain.ClusterProfile {
	profiles := make([]domain.ClusterProfile, k)
	members := make(map[int][]*domain.Tract, k)
	for _, t := range tracts {
		members[t.ClusterID] = append(members[t.ClusterID], t)
	}

	for c := 0; c < k; c++ {
		ms := members[c]
		centroid := make([]float64, len(clusterFeatures))
		copy(centroid, model.Centroids.RawRowView(c))
		profiles[c] = domain.ClusterProfile{
			ID:                   c,
			TractCount:           len(ms),
			Centroid:             centroid,
			MeanPollution:        memberMean(ms, func(t *domain.Tract) float64 { return t.PollutionScore }),
			MeanWalkability:      memberMean(ms, func(t *domain.Tract) float64 { return t.WalkabilityIndex }),
			MeanNonAutoShare:     memberMean(ms, func(t *domain.Tract) float64 { return t.NonAutoShare }),
			MeanAsthma:           memberMean(ms, func(t *domain.Tract) float64 { return t.AsthmaRate }),
			MeanPoverty:          memberMean(ms, func(t *domain.Tract) float64 { return t.PovertyPct }),
			MeanHazardRisk:       memberMean(ms, func(t *domain.Tract) float64 { return t.HazardRiskScore }),
			MeanHazardResilience: memberMean(ms, func(t *domain.Tract) float64 { return t.HazardResilienceScore }),
			MeanOzoneDays:        memberMean(ms, func(t *domain.Tract) float64 { return t.OzoneExceedanceDays }),
			MeanQuality:          memberMean(ms, func(t *domain.Tract) float64 { return t.QualityOfLifeScore }),
		}
	}
	return profiles
}

func memberMean(tracts []*domain.Tract, value func(*domain.Tract) float64) float64 {
	values := make([]float64, len(tracts))
	for i, t := range tracts {
		values[i] = value(t)
	}
	return nanMean(values)
}

func applyLabels(tracts []*domain.Tract, profiles []domain.ClusterProfile) {
	labels := make(map[int]string, len(profiles))
	for _, p := range profiles {
		labels[p.ID] = p.Label
	}
	for _, t := range tracts {
		if label, ok := labels[t.ClusterID]; ok {
			t.ClusterLabel = label
		} else {
			t.ClusterLabel = domain.UnclusteredLabel
		}
	}
}
