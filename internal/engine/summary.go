package engine

import (
	"sort"
	"time"

	"github.com/statatlas/statatlas/internal/domain"
)

// BuildSummary precomputes the statewide, per-county, and per-cluster
// aggregate statistics served by the summary endpoint. All means skip
// missing values.
func BuildSummary(tracts []*domain.Tract, who domain.WHOContext, cdcLatestYear int, builtAt time.Time) *domain.Summary {
	return &domain.Summary{
		Aggregates:    buildAggregates(tracts),
		Counties:      buildCountySummaries(tracts),
		Clusters:      buildClusterSummaries(tracts),
		WHO:           who,
		CDCLatestYear: cdcLatestYear,
		BuiltAt:       builtAt,
	}
}

func buildAggregates(tracts []*domain.Tract) domain.Aggregates {
	return domain.Aggregates{
		AvgQuality:           memberMean(tracts, func(t *domain.Tract) float64 { return t.QualityOfLifeScore }),
		AvgWalkability:       memberMean(tracts, func(t *domain.Tract) float64 { return t.WalkabilityIndex }),
		AvgPollution:         memberMean(tracts, func(t *domain.Tract) float64 { return t.PollutionScore }),
		AvgHazardRisk:        memberMean(tracts, func(t *domain.Tract) float64 { return t.HazardRiskScore }),
		AvgResilience:        memberMean(tracts, func(t *domain.Tract) float64 { return t.HazardResilienceScore }),
		AvgOzoneDays:         memberMean(tracts, func(t *domain.Tract) float64 { return t.OzoneExceedanceDays }),
		AvgPM25Days:          memberMean(tracts, func(t *domain.Tract) float64 { return t.PM25PersonDays }),
		AvgNonAutoShare:      memberMean(tracts, func(t *domain.Tract) float64 { return t.NonAutoShare }),
		AvgDriveAloneShare:   memberMean(tracts, func(t *domain.Tract) float64 { return t.DriveAloneShare }),
		AvgTransitShare:      memberMean(tracts, func(t *domain.Tract) float64 { return t.TransitShare }),
		AvgActiveCommute:     memberMean(tracts, func(t *domain.Tract) float64 { return t.ActiveCommuteShare }),
		AvgWorkFromHomeShare: memberMean(tracts, func(t *domain.Tract) float64 { return t.WorkFromHomeShare }),
	}
}

func buildCountySummaries(tracts []*domain.Tract) []domain.CountySummary {
	byCounty := make(map[string][]*domain.Tract)
	for _, t := range tracts {
		byCounty[t.CountyName] = append(byCounty[t.CountyName], t)
	}

	counties := make([]domain.CountySummary, 0, len(byCounty))
	for county, members := range byCounty {
		counties = append(counties, domain.CountySummary{
			County:               county,
			Tracts:               len(members),
			Population:           nanSum(members, func(t *domain.Tract) float64 { return t.Population }),
			AvgQuality:           memberMean(members, func(t *domain.Tract) float64 { return t.QualityOfLifeScore }),
			AvgWalkability:       memberMean(members, func(t *domain.Tract) float64 { return t.WalkabilityIndex }),
			AvgHazardRisk:        memberMean(members, func(t *domain.Tract) float64 { return t.HazardRiskScore }),
			AvgResilience:        memberMean(members, func(t *domain.Tract) float64 { return t.HazardResilienceScore }),
			AvgPollution:         memberMean(members, func(t *domain.Tract) float64 { return t.PollutionScore }),
			AvgOzoneDays:         memberMean(members, func(t *domain.Tract) float64 { return t.OzoneExceedanceDays }),
			AvgPM25Days:          memberMean(members, func(t *domain.Tract) float64 { return t.PM25PersonDays }),
			AvgNonAutoShare:      memberMean(members, func(t *domain.Tract) float64 { return t.NonAutoShare }),
			AvgDriveAloneShare:   memberMean(members, func(t *domain.Tract) float64 { return t.DriveAloneShare }),
			AvgTransitShare:      memberMean(members, func(t *domain.Tract) float64 { return t.TransitShare }),
			AvgActiveCommute:     memberMean(members, func(t *domain.Tract) float64 { return t.ActiveCommuteShare }),
			AvgWorkFromHomeShare: memberMean(members, func(t *domain.Tract) float64 { return t.WorkFromHomeShare }),
		})
	}
	sort.Slice(counties, func(i, j int) bool { return counties[i].County < counties[j].County })
	return counties
}

func buildClusterSummaries(tracts []*domain.Tract) []domain.ClusterSummary {
	byLabel := make(map[string][]*domain.Tract)
	for _, t := range tracts {
		byLabel[t.ClusterLabel] = append(byLabel[t.ClusterLabel], t)
	}

	clusters := make([]domain.ClusterSummary, 0, len(byLabel))
	for label, members := range byLabel {
		clusters = append(clusters, domain.ClusterSummary{
			Label:          label,
			Tracts:         len(members),
			AvgQuality:     memberMean(members, func(t *domain.Tract) float64 { return t.QualityOfLifeScore }),
			AvgPollution:   memberMean(members, func(t *domain.Tract) float64 { return t.PollutionScore }),
			AvgWalkability: memberMean(members, func(t *domain.Tract) float64 { return t.WalkabilityIndex }),
			AvgHazardRisk:  memberMean(members, func(t *domain.Tract) float64 { return t.HazardRiskScore }),
			AvgResilience:  memberMean(members, func(t *domain.Tract) float64 { return t.HazardResilienceScore }),
		})
	}
	sort.Slice(clusters, func(i, j int) bool { return clusters[i].Label < clusters[j].Label })
	return clusters
}

func nanSum(tracts []*domain.Tract, value func(*domain.Tract) float64) float64 {
	sum := 0.0
	for _, t := range tracts {
		if v := value(t); !domain.IsMissing(v) {
			sum += v
		}
	}
	return sum
}
