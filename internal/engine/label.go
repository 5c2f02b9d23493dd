package engine

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"

	"github.com/statatlas/statatlas/internal/domain"
)

// Cluster labels are a deterministic function of centroid statistics
// measured against statewide reference points, never of cluster id
// ordering — fitted ids are arbitrary and change across re-fits with a
// different k or seed.

// LabelStats holds the statewide reference points the label rules compare
// cluster means against.
type LabelStats struct {
	MedianPollution   float64
	MedianWalkability float64
	MedianNonAuto     float64
	P75Pollution      float64
	P75HazardRisk     float64
}

func newLabelStats(tracts []*domain.Tract) LabelStats {
	return LabelStats{
		MedianPollution:   nanQuantile(tracts, 0.5, func(t *domain.Tract) float64 { return t.PollutionScore }),
		MedianWalkability: nanQuantile(tracts, 0.5, func(t *domain.Tract) float64 { return t.WalkabilityIndex }),
		MedianNonAuto:     nanQuantile(tracts, 0.5, func(t *domain.Tract) float64 { return t.NonAutoShare }),
		P75Pollution:      nanQuantile(tracts, 0.75, func(t *domain.Tract) float64 { return t.PollutionScore }),
		P75HazardRisk:     nanQuantile(tracts, 0.75, func(t *domain.Tract) float64 { return t.HazardRiskScore }),
	}
}

func nanQuantile(tracts []*domain.Tract, q float64, value func(*domain.Tract) float64) float64 {
	present := make([]float64, 0, len(tracts))
	for _, t := range tracts {
		if v := value(t); !math.IsNaN(v) {
			present = append(present, v)
		}
	}
	if len(present) == 0 {
		return math.NaN()
	}
	sort.Float64s(present)
	return stat.Quantile(q, stat.Empirical, present, nil)
}

// labelRule is one row of the labeling decision table.
type labelRule struct {
	label   string
	matches func(p domain.ClusterProfile, s LabelStats) bool
}

// labelRules is evaluated top to bottom; the first match wins. A cluster
// whose means are NaN fails every comparison and falls through to the
// neutral default.
var labelRules = []labelRule{
	{
		label: "Critical Hotspots",
		matches: func(p domain.ClusterProfile, s LabelStats) bool {
			return p.MeanPollution >= s.P75Pollution && p.MeanHazardRisk >= s.P75HazardRisk
		},
	},
	{
		label: "Low Pollution / High Walkability",
		matches: func(p domain.ClusterProfile, s LabelStats) bool {
			return p.MeanPollution < s.MedianPollution && p.MeanWalkability > s.MedianWalkability
		},
	},
	{
		label: "Low Pollution / Emerging Walkability",
		matches: func(p domain.ClusterProfile, s LabelStats) bool {
			return p.MeanPollution < s.MedianPollution
		},
	},
	{
		label: "Elevated Pollution / Auto Dependent",
		matches: func(p domain.ClusterProfile, s LabelStats) bool {
			return p.MeanPollution >= s.MedianPollution && p.MeanNonAutoShare < s.MedianNonAuto
		},
	},
}

// neutralLabel is the fallback when no rule matches.
const neutralLabel = "Moderate Risk / Balanced Mobility"

// LabelFor evaluates the decision table for one cluster profile.
func LabelFor(p domain.ClusterProfile, s LabelStats) string {
	for _, rule := range labelRules {
		if rule.matches(p, s) {
			return rule.label
		}
	}
	return neutralLabel
}

func labelProfiles(profiles []domain.ClusterProfile, s LabelStats) {
	for i := range profiles {
		profiles[i].Label = LabelFor(profiles[i], s)
	}
}
