package engine

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/statatlas/statatlas/internal/domain"
)

func summaryTract(geoid, county string, quality, pop float64) *domain.Tract {
	t := domain.NewTract(geoid)
	t.CountyName = county
	t.QualityOfLifeScore = quality
	t.Population = pop
	t.ClusterLabel = domain.UnclusteredLabel
	return t
}

func TestBuildSummary_Aggregates(t *testing.T) {
	tracts := []*domain.Tract{
		summaryTract("06001400100", "Alameda", 0.8, 4000),
		summaryTract("06001400200", "Alameda", 0.4, 3000),
		summaryTract("06037100100", "Los Angeles", 0.6, 5000),
	}
	builtAt := time.Date(2026, 8, 25, 12, 0, 0, 0, time.UTC)

	s := BuildSummary(tracts, domain.WHOContext{CaliforniaPM25Mean: 12.5}, 2021, builtAt)

	assert.InDelta(t, 0.6, s.Aggregates.AvgQuality, 1e-12)
	assert.Equal(t, 2021, s.CDCLatestYear)
	assert.Equal(t, builtAt, s.BuiltAt)
	assert.InDelta(t, 12.5, s.WHO.CaliforniaPM25Mean, 1e-12)
}

func TestBuildSummary_CountiesSortedWithPopulationTotals(t *testing.T) {
	tracts := []*domain.Tract{
		summaryTract("06037100100", "Los Angeles", 0.5, 5000),
		summaryTract("06001400100", "Alameda", 0.9, 4000),
		summaryTract("06001400200", "Alameda", 0.7, 3000),
	}

	s := BuildSummary(tracts, domain.WHOContext{}, 0, time.Time{})

	require.Len(t, s.Counties, 2)
	assert.Equal(t, "Alameda", s.Counties[0].County)
	assert.Equal(t, "Los Angeles", s.Counties[1].County)
	assert.Equal(t, 2, s.Counties[0].Tracts)
	assert.InDelta(t, 7000, s.Counties[0].Population, 1e-9)
	assert.InDelta(t, 0.8, s.Counties[0].AvgQuality, 1e-12)
}

func TestBuildSummary_MissingValuesExcludedFromMeans(t *testing.T) {
	withScore := summaryTract("06001400100", "Alameda", 0.6, 4000)
	noScore := summaryTract("06001400200", "Alameda", domain.Missing(), domain.Missing())

	s := BuildSummary([]*domain.Tract{withScore, noScore}, domain.WHOContext{}, 0, time.Time{})

	// A tract without a score does not drag the mean toward zero, and a
	// missing population adds nothing to the total.
	assert.InDelta(t, 0.6, s.Aggregates.AvgQuality, 1e-12)
	require.Len(t, s.Counties, 1)
	assert.InDelta(t, 4000, s.Counties[0].Population, 1e-9)
}

func TestBuildSummary_ClustersGroupedByLabel(t *testing.T) {
	a := summaryTract("06001400100", "Alameda", 0.8, 4000)
	a.ClusterLabel = "Low Pollution / High Walkability"
	b := summaryTract("06001400200", "Alameda", 0.6, 3000)
	b.ClusterLabel = "Low Pollution / High Walkability"
	c := summaryTract("06037100100", "Los Angeles", 0.2, 5000)
	c.ClusterLabel = "Critical Hotspots"

	s := BuildSummary([]*domain.Tract{a, b, c}, domain.WHOContext{}, 0, time.Time{})

	require.Len(t, s.Clusters, 2)
	assert.Equal(t, "Critical Hotspots", s.Clusters[0].Label)
	assert.Equal(t, 1, s.Clusters[0].Tracts)
	assert.Equal(t, "Low Pollution / High Walkability", s.Clusters[1].Label)
	assert.Equal(t, 2, s.Clusters[1].Tracts)
	assert.InDelta(t, 0.7, s.Clusters[1].AvgQuality, 1e-12)
}

func TestBuildSummary_AllMissingMetricIsNaN(t *testing.T) {
	tracts := []*domain.Tract{
		summaryTract("06001400100", "Alameda", domain.Missing(), 1000),
	}

	s := BuildSummary(tracts, domain.WHOContext{}, 0, time.Time{})

	assert.True(t, math.IsNaN(s.Aggregates.AvgQuality))
}
