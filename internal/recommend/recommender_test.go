package recommend

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/statatlas/statatlas/internal/domain"
)

func candidate(geoid, county string, norms map[domain.Column]float64) *domain.Tract {
	t := domain.NewTract(geoid)
	t.CountyName = county
	for col, v := range norms {
		t.Norms[col] = v
	}
	return t
}

func TestRecommend_RanksByWeightedScore(t *testing.T) {
	tracts := []*domain.Tract{
		candidate("06001400100", "Alameda", map[domain.Column]float64{
			domain.ColWalkability: 0.2,
			domain.ColPollution:   0.9,
		}),
		candidate("06001400200", "Alameda", map[domain.Column]float64{
			domain.ColWalkability: 0.9,
			domain.ColPollution:   0.8,
		}),
	}

	results, err := Recommend(tracts, Request{Weights: map[string]float64{
		string(domain.ColWalkability): 2.0,
		string(domain.ColPollution):   1.0,
	}})
	require.NoError(t, err)
	require.Len(t, results, 2)

	assert.Equal(t, "06001400200", results[0].Tract.GEOID)
	assert.InDelta(t, 2.0*0.9+1.0*0.8, results[0].Score, 1e-12)
	assert.Equal(t, "06001400100", results[1].Tract.GEOID)
	assert.InDelta(t, 2.0*0.2+1.0*0.9, results[1].Score, 1e-12)
}

func TestRecommend_MissingValuesContributeNothing(t *testing.T) {
	full := candidate("06001400100", "Alameda", map[domain.Column]float64{
		domain.ColWalkability: 0.5,
		domain.ColPollution:   0.5,
	})
	partial := candidate("06001400200", "Alameda", map[domain.Column]float64{
		domain.ColWalkability: 0.9,
		// pollution never measured
	})

	results, err := Recommend([]*domain.Tract{full, partial}, Request{Weights: map[string]float64{
		string(domain.ColWalkability): 1.0,
		string(domain.ColPollution):   1.0,
	}})
	require.NoError(t, err)

	// The partial tract's score is just its walkability term.
	require.Len(t, results, 2)
	assert.Equal(t, "06001400100", results[0].Tract.GEOID)
	assert.InDelta(t, 1.0, results[0].Score, 1e-12)
	assert.InDelta(t, 0.9, results[1].Score, 1e-12)
	assert.Len(t, results[1].Factors, 1)
}

func TestRecommend_AllMissingScoresZeroAndSortsLast(t *testing.T) {
	scored := candidate("06001400200", "Alameda", map[domain.Column]float64{
		domain.ColWalkability: 0.1,
	})
	unscored := candidate("06001400100", "Alameda", nil)

	results, err := Recommend([]*domain.Tract{unscored, scored}, Request{Weights: map[string]float64{
		string(domain.ColWalkability): 1.0,
	}})
	require.NoError(t, err)

	require.Len(t, results, 2)
	assert.Equal(t, "06001400200", results[0].Tract.GEOID)
	assert.Equal(t, "06001400100", results[1].Tract.GEOID)
	assert.Equal(t, 0.0, results[1].Score)
	assert.Empty(t, results[1].Factors)
}

func TestRecommend_TiesBreakOnAscendingGEOID(t *testing.T) {
	norms := map[domain.Column]float64{domain.ColWalkability: 0.5}
	tracts := []*domain.Tract{
		candidate("06037100300", "Los Angeles", norms),
		candidate("06037100100", "Los Angeles", norms),
		candidate("06037100200", "Los Angeles", norms),
	}

	results, err := Recommend(tracts, Request{Weights: map[string]float64{
		string(domain.ColWalkability): 1.0,
	}})
	require.NoError(t, err)

	geoids := make([]string, len(results))
	for i, r := range results {
		geoids[i] = r.Tract.GEOID
	}
	assert.Equal(t, []string{"06037100100", "06037100200", "06037100300"}, geoids)
}

func TestRecommend_CountyFilter(t *testing.T) {
	tracts := []*domain.Tract{
		candidate("06001400100", "Alameda", map[domain.Column]float64{domain.ColWalkability: 0.9}),
		candidate("06037100100", "Los Angeles", map[domain.Column]float64{domain.ColWalkability: 0.8}),
	}

	t.Run("matching county", func(t *testing.T) {
		results, err := Recommend(tracts, Request{
			Weights:  map[string]float64{string(domain.ColWalkability): 1.0},
			Counties: []string{"Alameda"},
		})
		require.NoError(t, err)
		require.Len(t, results, 1)
		assert.Equal(t, "06001400100", results[0].Tract.GEOID)
	})

	t.Run("multiple counties", func(t *testing.T) {
		results, err := Recommend(tracts, Request{
			Weights:  map[string]float64{string(domain.ColWalkability): 1.0},
			Counties: []string{"Alameda", "Los Angeles"},
		})
		require.NoError(t, err)
		assert.Len(t, results, 2)
	})

	t.Run("unknown county is empty, not an error", func(t *testing.T) {
		results, err := Recommend(tracts, Request{
			Weights:  map[string]float64{string(domain.ColWalkability): 1.0},
			Counties: []string{"Atlantis"},
		})
		require.NoError(t, err)
		assert.Empty(t, results)
	})

	t.Run("county match is exact, not fuzzy", func(t *testing.T) {
		results, err := Recommend(tracts, Request{
			Weights:  map[string]float64{string(domain.ColWalkability): 1.0},
			Counties: []string{"alameda"},
		})
		require.NoError(t, err)
		assert.Empty(t, results)
	})
}

func TestRecommend_TopNCapsResults(t *testing.T) {
	tracts := make([]*domain.Tract, 0, 15)
	for i := 0; i < 15; i++ {
		tracts = append(tracts, candidate(fmt.Sprintf("060014001%02d", i), "Alameda", map[domain.Column]float64{
			domain.ColWalkability: float64(i) / 15,
		}))
	}
	weights := map[string]float64{string(domain.ColWalkability): 1.0}

	t.Run("explicit top_n", func(t *testing.T) {
		results, err := Recommend(tracts, Request{Weights: weights, TopN: 3})
		require.NoError(t, err)
		assert.Len(t, results, 3)
	})

	t.Run("zero means default limit", func(t *testing.T) {
		results, err := Recommend(tracts, Request{Weights: weights})
		require.NoError(t, err)
		assert.Len(t, results, defaultTopN)
	})

	t.Run("negative is rejected", func(t *testing.T) {
		_, err := Recommend(tracts, Request{Weights: weights, TopN: -1})
		assert.ErrorIs(t, err, ErrInvalidTopN)
	})
}

func TestRecommend_WeightValidation(t *testing.T) {
	tracts := []*domain.Tract{
		candidate("06001400100", "Alameda", map[domain.Column]float64{domain.ColWalkability: 0.5}),
	}

	t.Run("nil weights select the default profile", func(t *testing.T) {
		results, err := Recommend(tracts, Request{})
		require.NoError(t, err)
		require.Len(t, results, 1)
		require.Len(t, results[0].Factors, 1)
		assert.Equal(t, domain.ColWalkability, results[0].Factors[0].Column)
		assert.InDelta(t, 3.5*0.5, results[0].Score, 1e-12)
	})

	t.Run("empty weights are rejected", func(t *testing.T) {
		_, err := Recommend(tracts, Request{Weights: map[string]float64{}})
		assert.ErrorIs(t, err, ErrEmptyWeights)
	})

	t.Run("unknown column is rejected with its name", func(t *testing.T) {
		_, err := Recommend(tracts, Request{Weights: map[string]float64{"school_quality_norm": 1.0}})
		require.ErrorIs(t, err, ErrUnknownWeightColumn)
		assert.Contains(t, err.Error(), "school_quality_norm")
	})

	t.Run("negative weight is rejected with its name", func(t *testing.T) {
		_, err := Recommend(tracts, Request{Weights: map[string]float64{
			string(domain.ColWalkability): -1.0,
		}})
		require.ErrorIs(t, err, ErrNegativeWeight)
		assert.Contains(t, err.Error(), string(domain.ColWalkability))
	})

	t.Run("negative weight cannot promote a no-data tract", func(t *testing.T) {
		// With a negative weight a scored tract would fall below the zero
		// assigned to tracts missing every weighted column, inverting the
		// "no data sorts last" guarantee, so the request must not score.
		mixed := []*domain.Tract{
			candidate("06001400100", "Alameda", map[domain.Column]float64{domain.ColWalkability: 0.9}),
			candidate("06001400200", "Alameda", nil),
		}
		results, err := Recommend(mixed, Request{Weights: map[string]float64{
			string(domain.ColWalkability): -1.0,
		}})
		require.ErrorIs(t, err, ErrNegativeWeight)
		assert.Nil(t, results)
	})

	t.Run("zero weight is allowed", func(t *testing.T) {
		_, err := Recommend(tracts, Request{Weights: map[string]float64{
			string(domain.ColWalkability): 0,
			string(domain.ColPollution):   1.0,
		}})
		assert.NoError(t, err)
	})
}

func TestRecommend_RationaleNamesTopFactors(t *testing.T) {
	tract := candidate("06001400100", "Alameda", map[domain.Column]float64{
		domain.ColWalkability: 0.9,
		domain.ColPollution:   0.2,
	})

	results, err := Recommend([]*domain.Tract{tract}, Request{Weights: map[string]float64{
		string(domain.ColWalkability): 2.0,
		string(domain.ColPollution):   1.0,
	}})
	require.NoError(t, err)
	require.Len(t, results, 1)

	assert.Contains(t, results[0].Rationale, "walkability & transit access")
}

func TestDefaultWeights_CoversEveryColumn(t *testing.T) {
	weights := DefaultWeights()
	require.Len(t, weights, len(domain.Columns()))
	for name, w := range weights {
		assert.True(t, domain.KnownColumn(name), name)
		assert.Positive(t, w, name)
	}

	// Boosted preferences sit above the baseline.
	assert.InDelta(t, 3.5, weights[string(domain.ColWalkability)], 1e-12)
	assert.InDelta(t, 3.0, weights[string(domain.ColNonAutoShare)], 1e-12)
	assert.InDelta(t, 3.0, weights[string(domain.ColHazardResilience)], 1e-12)
	assert.InDelta(t, 3.0, weights[string(domain.ColCESDelta)], 1e-12)
	assert.InDelta(t, 2.0, weights[string(domain.ColPollution)], 1e-12)
}
