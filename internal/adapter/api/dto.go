package api

import (
	"time"

	"github.com/statatlas/statatlas/internal/artifact"
	"github.com/statatlas/statatlas/internal/domain"
	"github.com/statatlas/statatlas/internal/recommend"
)

// Response types mirror the domain structs with missing values rendered as
// JSON null. Encoders reject NaN, and clients should not have to guess
// whether a zero is real data.

func optional(v float64) *float64 {
	if domain.IsMissing(v) {
		return nil
	}
	return &v
}

type tractResponse struct {
	GEOID        string              `json:"geoid"`
	TractLabel   string              `json:"tract_label,omitempty"`
	CountyName   string              `json:"county_name"`
	CountyFIPS   string              `json:"county_fips"`
	Population   *float64            `json:"population"`
	CentroidLat  *float64            `json:"centroid_lat"`
	CentroidLon  *float64            `json:"centroid_lon"`
	CESScore     *float64            `json:"ces_score"`
	Pollution    *float64            `json:"pollution_score"`
	Traffic      *float64            `json:"traffic_score"`
	Asthma       *float64            `json:"asthma_rate"`
	Poverty      *float64            `json:"poverty_pct"`
	HazardRisk   *float64            `json:"hazard_risk_score"`
	Resilience   *float64            `json:"hazard_resilience_score"`
	OzoneDays    *float64            `json:"ozone_exceedance_days"`
	PM25Days     *float64            `json:"pm25_person_days"`
	PM25Annual   *float64            `json:"pm25_annual_avg"`
	Walkability  *float64            `json:"walkability_index"`
	NonAuto      *float64            `json:"non_auto_share"`
	DriveAlone   *float64            `json:"drive_alone_share"`
	Transit      *float64            `json:"public_transit_share"`
	WFH          *float64            `json:"work_from_home_share"`
	CESDelta     *float64            `json:"ces_score_delta"`
	PM25Gap      *float64            `json:"pm25_gap_vs_who_ca"`
	Quality      *float64            `json:"quality_of_life_score"`
	Norms        map[string]*float64 `json:"norms"`
	ClusterID    int                 `json:"cluster_id"`
	ClusterLabel string              `json:"cluster_label"`
}

func newTractResponse(t *domain.Tract) tractResponse {
	norms := make(map[string]*float64, len(t.Norms))
	for col, v := range t.Norms {
		norms[string(col)] = optional(v)
	}
	return tractResponse{
		GEOID:        t.GEOID,
		TractLabel:   t.TractLabel,
		CountyName:   t.CountyName,
		CountyFIPS:   t.CountyFIPS,
		Population:   optional(t.Population),
		CentroidLat:  optional(t.CentroidLat),
		CentroidLon:  optional(t.CentroidLon),
		CESScore:     optional(t.CESScore),
		Pollution:    optional(t.PollutionScore),
		Traffic:      optional(t.TrafficScore),
		Asthma:       optional(t.AsthmaRate),
		Poverty:      optional(t.PovertyPct),
		HazardRisk:   optional(t.HazardRiskScore),
		Resilience:   optional(t.HazardResilienceScore),
		OzoneDays:    optional(t.OzoneExceedanceDays),
		PM25Days:     optional(t.PM25PersonDays),
		PM25Annual:   optional(t.PM25AnnualAvg),
		Walkability:  optional(t.WalkabilityIndex),
		NonAuto:      optional(t.NonAutoShare),
		DriveAlone:   optional(t.DriveAloneShare),
		Transit:      optional(t.TransitShare),
		WFH:          optional(t.WorkFromHomeShare),
		CESDelta:     optional(t.CESScoreDelta),
		PM25Gap:      optional(t.PM25GapVsWHO),
		Quality:      optional(t.QualityOfLifeScore),
		Norms:        norms,
		ClusterID:    t.ClusterID,
		ClusterLabel: t.ClusterLabel,
	}
}

type tractsPageResponse struct {
	Total   int             `json:"total"`
	Offset  int             `json:"offset"`
	Limit   int             `json:"limit"`
	Tracts  []tractResponse `json:"tracts"`
	BuiltAt time.Time       `json:"built_at"`
}

type aggregatesResponse struct {
	AvgQuality       *float64 `json:"avg_quality"`
	AvgWalkability   *float64 `json:"avg_walkability"`
	AvgPollution     *float64 `json:"avg_pollution"`
	AvgHazardRisk    *float64 `json:"avg_nri_risk"`
	AvgResilience    *float64 `json:"avg_resilience"`
	AvgOzoneDays     *float64 `json:"avg_ozone_days"`
	AvgPM25Days      *float64 `json:"avg_pm25_days"`
	AvgNonAutoShare  *float64 `json:"avg_non_auto_share"`
	AvgDriveAlone    *float64 `json:"avg_drive_alone_share"`
	AvgTransit       *float64 `json:"avg_transit_share"`
	AvgActiveCommute *float64 `json:"avg_active_commute_share"`
	AvgWFH           *float64 `json:"avg_work_from_home_share"`
}

type countySummaryResponse struct {
	County         string   `json:"county_name"`
	Tracts         int      `json:"tracts"`
	Population     *float64 `json:"population"`
	AvgQuality     *float64 `json:"avg_quality"`
	AvgWalkability *float64 `json:"avg_walkability"`
	AvgHazardRisk  *float64 `json:"avg_risk"`
	AvgResilience  *float64 `json:"avg_resilience"`
	AvgPollution   *float64 `json:"avg_pollution"`
	AvgOzoneDays   *float64 `json:"avg_ozone"`
	AvgPM25Days    *float64 `json:"avg_pm25"`
	AvgNonAuto     *float64 `json:"avg_non_auto_share"`
}

type clusterSummaryResponse struct {
	Label          string   `json:"cluster_label"`
	Tracts         int      `json:"tracts"`
	AvgQuality     *float64 `json:"avg_quality"`
	AvgPollution   *float64 `json:"avg_pollution"`
	AvgWalkability *float64 `json:"avg_walkability"`
	AvgHazardRisk  *float64 `json:"avg_risk"`
	AvgResilience  *float64 `json:"avg_resilience"`
}

type whoResponse struct {
	WorldPM25Mean      *float64 `json:"world_pm25_mean"`
	USAPM25Mean        *float64 `json:"usa_pm25_mean"`
	CaliforniaPM25Mean *float64 `json:"california_pm25_mean"`
	CaliforniaNO2Mean  *float64 `json:"california_no2_mean"`
}

type summaryResponse struct {
	Aggregates    aggregatesResponse       `json:"aggregates"`
	Counties      []countySummaryResponse  `json:"counties"`
	Clusters      []clusterSummaryResponse `json:"clusters"`
	WHO           whoResponse              `json:"who"`
	CDCLatestYear int                      `json:"cdc_latest_year"`
	BuiltAt       time.Time                `json:"built_at"`
}

func newSummaryResponse(s *domain.Summary) summaryResponse {
	counties := make([]countySummaryResponse, len(s.Counties))
	for i, c := range s.Counties {
		counties[i] = countySummaryResponse{
			County:         c.County,
			Tracts:         c.Tracts,
			Population:     optional(c.Population),
			AvgQuality:     optional(c.AvgQuality),
			AvgWalkability: optional(c.AvgWalkability),
			AvgHazardRisk:  optional(c.AvgHazardRisk),
			AvgResilience:  optional(c.AvgResilience),
			AvgPollution:   optional(c.AvgPollution),
			AvgOzoneDays:   optional(c.AvgOzoneDays),
			AvgPM25Days:    optional(c.AvgPM25Days),
			AvgNonAuto:     optional(c.AvgNonAutoShare),
		}
	}
	clusters := make([]clusterSummaryResponse, len(s.Clusters))
	for i, c := range s.Clusters {
		clusters[i] = clusterSummaryResponse{
			Label:          c.Label,
			Tracts:         c.Tracts,
			AvgQuality:     optional(c.AvgQuality),
			AvgPollution:   optional(c.AvgPollution),
			AvgWalkability: optional(c.AvgWalkability),
			AvgHazardRisk:  optional(c.AvgHazardRisk),
			AvgResilience:  optional(c.AvgResilience),
		}
	}
	return summaryResponse{
		Aggregates: aggregatesResponse{
			AvgQuality:       optional(s.Aggregates.AvgQuality),
			AvgWalkability:   optional(s.Aggregates.AvgWalkability),
			AvgPollution:     optional(s.Aggregates.AvgPollution),
			AvgHazardRisk:    optional(s.Aggregates.AvgHazardRisk),
			AvgResilience:    optional(s.Aggregates.AvgResilience),
			AvgOzoneDays:     optional(s.Aggregates.AvgOzoneDays),
			AvgPM25Days:      optional(s.Aggregates.AvgPM25Days),
			AvgNonAutoShare:  optional(s.Aggregates.AvgNonAutoShare),
			AvgDriveAlone:    optional(s.Aggregates.AvgDriveAloneShare),
			AvgTransit:       optional(s.Aggregates.AvgTransitShare),
			AvgActiveCommute: optional(s.Aggregates.AvgActiveCommute),
			AvgWFH:           optional(s.Aggregates.AvgWorkFromHomeShare),
		},
		Counties: counties,
		Clusters: clusters,
		WHO: whoResponse{
			WorldPM25Mean:      optional(s.WHO.WorldPM25Mean),
			USAPM25Mean:        optional(s.WHO.USAPM25Mean),
			CaliforniaPM25Mean: optional(s.WHO.CaliforniaPM25Mean),
			CaliforniaNO2Mean:  optional(s.WHO.CaliforniaNO2Mean),
		},
		CDCLatestYear: s.CDCLatestYear,
		BuiltAt:       s.BuiltAt,
	}
}

type clusterProfileResponse struct {
	ID              int       `json:"cluster_id"`
	Label           string    `json:"label"`
	TractCount      int       `json:"tract_count"`
	FeatureNames    []string  `json:"feature_names"`
	Centroid        []float64 `json:"centroid"`
	MeanPollution   *float64  `json:"mean_pollution"`
	MeanWalkability *float64  `json:"mean_walkability"`
	MeanNonAuto     *float64  `json:"mean_non_auto_share"`
	MeanHazardRisk  *float64  `json:"mean_hazard_risk"`
	MeanQuality     *float64  `json:"mean_quality"`
}

type factorResponse struct {
	Column       string  `json:"column"`
	Weight       float64 `json:"weight"`
	Value        float64 `json:"value"`
	Contribution float64 `json:"contribution"`
	Description  string  `json:"description"`
}

type recommendationResponse struct {
	GEOID        string           `json:"geoid"`
	CountyName   string           `json:"county_name"`
	ClusterLabel string           `json:"cluster_label"`
	Score        float64          `json:"score"`
	Quality      *float64         `json:"quality_of_life_score"`
	Rationale    string           `json:"rationale"`
	Factors      []factorResponse `json:"factors"`
}

func newRecommendationResponses(recs []recommend.Recommendation) []recommendationResponse {
	out := make([]recommendationResponse, len(recs))
	for i, r := range recs {
		factors := make([]factorResponse, len(r.Factors))
		for j, f := range r.Factors {
			factors[j] = factorResponse{
				Column:       string(f.Column),
				Weight:       f.Weight,
				Value:        f.Value,
				Contribution: f.Contribution,
				Description:  domain.ColumnDescriptions[f.Column],
			}
		}
		out[i] = recommendationResponse{
			GEOID:        r.Tract.GEOID,
			CountyName:   r.Tract.CountyName,
			ClusterLabel: r.Tract.ClusterLabel,
			Score:        r.Score,
			Quality:      optional(r.Tract.QualityOfLifeScore),
			Rationale:    r.Rationale,
			Factors:      factors,
		}
	}
	return out
}

func newTractsPage(snap *artifact.Snapshot, offset, limit int) tractsPageResponse {
	page := snap.TractPage(offset, limit)
	tracts := make([]tractResponse, len(page))
	for i, t := range page {
		tracts[i] = newTractResponse(t)
	}
	return tractsPageResponse{
		Total:   len(snap.Tracts),
		Offset:  offset,
		Limit:   limit,
		Tracts:  tracts,
		BuiltAt: snap.BuiltAt,
	}
}
