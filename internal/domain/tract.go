package domain

import (
	"math"
	"time"
)

// Missing returns the NaN sentinel used for absent numeric values.
func Missing() float64 {
	return math.NaN()
}

// IsMissing reports whether v is the missing-value sentinel.
func IsMissing(v float64) bool {
	return math.IsNaN(v)
}

// UnclusteredID marks tracts that could not be assigned to a cluster,
// either because fitting was skipped or the tract lacked feature data.
const UnclusteredID = -1

// UnclusteredLabel is the fallback label applied when cluster fitting is
// skipped (fewer complete tracts than the configured cluster count).
const UnclusteredLabel = "Unclustered"

// Tract is one census tract row: raw source attributes, derived metrics,
// normalized mirror columns, and the cluster assignment. Records are built
// once per pipeline run and treated as read-only afterwards.
type Tract struct {
	GEOID      string `json:"geoid"`
	TractLabel string `json:"tract_label,omitempty"`
	CountyName string `json:"county_name"`
	CountyFIPS string `json:"county_fips"`

	Population  float64 `json:"population"`
	CentroidLat float64 `json:"centroid_lat"`
	CentroidLon float64 `json:"centroid_lon"`

	// Commute mode shares from ACS B08301, each a fraction in [0,1].
	DriveAloneShare   float64 `json:"drive_alone_share"`
	TransitShare      float64 `json:"public_transit_share"`
	BikeShare         float64 `json:"bike_share"`
	WalkShare         float64 `json:"walk_share"`
	WorkFromHomeShare float64 `json:"work_from_home_share"`

	// Environmental, health, and hazard inputs.
	CESScore              float64 `json:"ces_score"`
	PollutionScore        float64 `json:"pollution_score"`
	TrafficScore          float64 `json:"traffic_score"`
	AsthmaRate            float64 `json:"asthma_rate"`
	PovertyPct            float64 `json:"poverty_pct"`
	HazardRiskScore       float64 `json:"hazard_risk_score"`
	HazardResilienceScore float64 `json:"hazard_resilience_score"`
	OzoneExceedanceDays   float64 `json:"ozone_exceedance_days"`
	PM25PersonDays        float64 `json:"pm25_person_days"`
	PM25AnnualAvg         float64 `json:"pm25_annual_avg"`
	CES3Score             float64 `json:"ces3_score"`

	// Derived metrics, computed by the pipeline, never user-supplied.
	ActiveCommuteShare  float64 `json:"active_commute_share"`
	NonAutoShare        float64 `json:"non_auto_share"`
	WalkabilityIndex    float64 `json:"walkability_index"`
	CarDependencyIndex  float64 `json:"car_dependency_index"`
	LackOfCarDependency float64 `json:"lack_of_car_dependency"`
	CESScoreDelta       float64 `json:"ces_score_delta"`
	PM25GapVsWHO        float64 `json:"pm25_gap_vs_who_ca"`
	QualityOfLifeScore  float64 `json:"quality_of_life_score"`

	// Norms holds every *_norm column, keyed by the closed Column set.
	// Values lie in [0,1] when the source is present, NaN otherwise.
	Norms map[Column]float64 `json:"norms"`

	ClusterID    int    `json:"cluster_id"`
	ClusterLabel string `json:"cluster_label"`
}

// NewTract returns a Tract with every numeric field set to the missing
// sentinel and no cluster assignment. Loaders fill in what their source
// provides; anything untouched stays NaN.
func NewTract(geoid string) *Tract {
	nan := Missing()
	return &Tract{
		GEOID:                 geoid,
		Population:            nan,
		CentroidLat:           nan,
		CentroidLon:           nan,
		DriveAloneShare:       nan,
		TransitShare:          nan,
		BikeShare:             nan,
		WalkShare:             nan,
		WorkFromHomeShare:     nan,
		CESScore:              nan,
		PollutionScore:        nan,
		TrafficScore:          nan,
		AsthmaRate:            nan,
		PovertyPct:            nan,
		HazardRiskScore:       nan,
		HazardResilienceScore: nan,
		OzoneExceedanceDays:   nan,
		PM25PersonDays:        nan,
		PM25AnnualAvg:         nan,
		CES3Score:             nan,
		ActiveCommuteShare:    nan,
		NonAutoShare:          nan,
		WalkabilityIndex:      nan,
		CarDependencyIndex:    nan,
		LackOfCarDependency:   nan,
		CESScoreDelta:         nan,
		PM25GapVsWHO:          nan,
		QualityOfLifeScore:    nan,
		Norms:                 make(map[Column]float64, len(Columns())),
		ClusterID:             UnclusteredID,
	}
}

// Norm returns the normalized value for col, or NaN when the column was
// never populated for this tract.
func (t *Tract) Norm(col Column) float64 {
	if v, ok := t.Norms[col]; ok {
		return v
	}
	return Missing()
}

// ClusterProfile describes one fitted cluster: its centroid in the scaled
// feature space, the member count, and raw-scale mean metrics used for
// labeling and summaries. Profiles are written once per pipeline run and
// read-only afterwards.
type ClusterProfile struct {
	ID         int       `json:"cluster_id"`
	Label      string    `json:"label"`
	TractCount int       `json:"tract_count"`
	Centroid   []float64 `json:"centroid"`

	MeanPollution        float64 `json:"mean_pollution"`
	MeanWalkability      float64 `json:"mean_walkability"`
	MeanNonAutoShare     float64 `json:"mean_non_auto_share"`
	MeanAsthma           float64 `json:"mean_asthma"`
	MeanPoverty          float64 `json:"mean_poverty"`
	MeanHazardRisk       float64 `json:"mean_hazard_risk"`
	MeanHazardResilience float64 `json:"mean_hazard_resilience"`
	MeanOzoneDays        float64 `json:"mean_ozone_days"`
	MeanQuality          float64 `json:"mean_quality"`
}

// ColumnStats holds the statewide extrema a normalized column was scaled
// with. Min and Max refer to the post-inversion values for inverted columns.
type ColumnStats struct {
	Min float64 `json:"min"`
	Max float64 `json:"max"`
}

// WHOContext carries WHO air-quality benchmark values served alongside the
// summary. All values may be NaN when the context file is absent.
type WHOContext struct {
	WorldPM25Mean      float64 `json:"world_pm25_mean"`
	USAPM25Mean        float64 `json:"usa_pm25_mean"`
	CaliforniaPM25Mean float64 `json:"california_pm25_mean"`
	CaliforniaNO2Mean  float64 `json:"california_no2_mean"`
}

// Aggregates holds statewide mean metrics across all tracts.
type Aggregates struct {
	AvgQuality           float64 `json:"avg_quality"`
	AvgWalkability       float64 `json:"avg_walkability"`
	AvgPollution         float64 `json:"avg_pollution"`
	AvgHazardRisk        float64 `json:"avg_nri_risk"`
	AvgResilience        float64 `json:"avg_resilience"`
	AvgOzoneDays         float64 `json:"avg_ozone_days"`
	AvgPM25Days          float64 `json:"avg_pm25_days"`
	AvgNonAutoShare      float64 `json:"avg_non_auto_share"`
	AvgDriveAloneShare   float64 `json:"avg_drive_alone_share"`
	AvgTransitShare      float64 `json:"avg_transit_share"`
	AvgActiveCommute     float64 `json:"avg_active_commute_share"`
	AvgWorkFromHomeShare float64 `json:"avg_work_from_home_share"`
}

// CountySummary holds per-county aggregate means.
type CountySummary struct {
	County               string  `json:"county_name"`
	Tracts               int     `json:"tracts"`
	Population           float64 `json:"population"`
	AvgQuality           float64 `json:"avg_quality"`
	AvgWalkability       float64 `json:"avg_walkability"`
	AvgHazardRisk        float64 `json:"avg_risk"`
	AvgResilience        float64 `json:"avg_resilience"`
	AvgPollution         float64 `json:"avg_pollution"`
	AvgOzoneDays         float64 `json:"avg_ozone"`
	AvgPM25Days          float64 `json:"avg_pm25"`
	AvgNonAutoShare      float64 `json:"avg_non_auto_share"`
	AvgDriveAloneShare   float64 `json:"avg_drive_alone_share"`
	AvgTransitShare      float64 `json:"avg_transit_share"`
	AvgActiveCommute     float64 `json:"avg_active_commute_share"`
	AvgWorkFromHomeShare float64 `json:"avg_work_from_home_share"`
}

// ClusterSummary holds per-cluster aggregate means, keyed by label so the
// arbitrary fitted cluster ids never leak into consumer-facing output.
type ClusterSummary struct {
	Label          string  `json:"cluster_label"`
	Tracts         int     `json:"tracts"`
	AvgQuality     float64 `json:"avg_quality"`
	AvgPollution   float64 `json:"avg_pollution"`
	AvgWalkability float64 `json:"avg_walkability"`
	AvgHazardRisk  float64 `json:"avg_risk"`
	AvgResilience  float64 `json:"avg_resilience"`
}

// Summary is the precomputed statistics artifact consumed by the API and
// the recommender display layer.
type Summary struct {
	Aggregates    Aggregates       `json:"aggregates"`
	Counties      []CountySummary  `json:"counties"`
	Clusters      []ClusterSummary `json:"clusters"`
	WHO           WHOContext       `json:"who"`
	CDCLatestYear int              `json:"cdc_latest_year"`
	BuiltAt       time.Time        `json:"built_at"`
}
