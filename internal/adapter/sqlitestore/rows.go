package sqlitestore

import (
	"fmt"

	"github.com/goccy/go-json"

	"github.com/statatlas/statatlas/internal/domain"
)

// nullable maps the missing sentinel to SQL NULL.
func nullable(v float64) *float64 {
	if domain.IsMissing(v) {
		return nil
	}
	return &v
}

// value maps SQL NULL back to the missing sentinel.
func value(p *float64) float64 {
	if p == nil {
		return domain.Missing()
	}
	return *p
}

// tractRow is the flat persistence form of a Tract. Every numeric column
// is nullable.
type tractRow struct {
	GEOID      string `db:"geoid"`
	TractLabel string `db:"tract_label"`
	CountyName string `db:"county_name"`
	CountyFIPS string `db:"county_fips"`

	Population  *float64 `db:"population"`
	CentroidLat *float64 `db:"centroid_lat"`
	CentroidLon *float64 `db:"centroid_lon"`

	DriveAloneShare   *float64 `db:"drive_alone_share"`
	TransitShare      *float64 `db:"transit_share"`
	BikeShare         *float64 `db:"bike_share"`
	WalkShare         *float64 `db:"walk_share"`
	WorkFromHomeShare *float64 `db:"wfh_share"`

	CESScore              *float64 `db:"ces_score"`
	PollutionScore        *float64 `db:"pollution_score"`
	TrafficScore          *float64 `db:"traffic_score"`
	AsthmaRate            *float64 `db:"asthma_rate"`
	PovertyPct            *float64 `db:"poverty_pct"`
	HazardRiskScore       *float64 `db:"hazard_risk_score"`
	HazardResilienceScore *float64 `db:"hazard_resilience_score"`
	OzoneExceedanceDays   *float64 `db:"ozone_days"`
	PM25PersonDays        *float64 `db:"pm25_person_days"`
	PM25AnnualAvg         *float64 `db:"pm25_annual_avg"`
	CES3Score             *float64 `db:"ces3_score"`

	ActiveCommuteShare  *float64 `db:"active_commute_share"`
	NonAutoShare        *float64 `db:"non_auto_share"`
	WalkabilityIndex    *float64 `db:"walkability_index"`
	CarDependencyIndex  *float64 `db:"car_dependency_index"`
	LackOfCarDependency *float64 `db:"lack_of_car_dependency"`
	CESScoreDelta       *float64 `db:"ces_score_delta"`
	PM25GapVsWHO        *float64 `db:"pm25_gap_who"`
	QualityOfLifeScore  *float64 `db:"quality_score"`

	ClusterID    int    `db:"cluster_id"`
	ClusterLabel string `db:"cluster_label"`
}

func newTractRow(t *domain.Tract) tractRow {
	return tractRow{
		GEOID:                 t.GEOID,
		TractLabel:            t.TractLabel,
		CountyName:            t.CountyName,
		CountyFIPS:            t.CountyFIPS,
		Population:            nullable(t.Population),
		CentroidLat:           nullable(t.CentroidLat),
		CentroidLon:           nullable(t.CentroidLon),
		DriveAloneShare:       nullable(t.DriveAloneShare),
		TransitShare:          nullable(t.TransitShare),
		BikeShare:             nullable(t.BikeShare),
		WalkShare:             nullable(t.WalkShare),
		WorkFromHomeShare:     nullable(t.WorkFromHomeShare),
		CESScore:              nullable(t.CESScore),
		PollutionScore:        nullable(t.PollutionScore),
		TrafficScore:          nullable(t.TrafficScore),
		AsthmaRate:            nullable(t.AsthmaRate),
		PovertyPct:            nullable(t.PovertyPct),
		HazardRiskScore:       nullable(t.HazardRiskScore),
		HazardResilienceScore: nullable(t.HazardResilienceScore),
		OzoneExceedanceDays:   nullable(t.OzoneExceedanceDays),
		PM25PersonDays:        nullable(t.PM25PersonDays),
		PM25AnnualAvg:         nullable(t.PM25AnnualAvg),
		CES3Score:             nullable(t.CES3Score),
		ActiveCommuteShare:    nullable(t.ActiveCommuteShare),
		NonAutoShare:          nullable(t.NonAutoShare),
		WalkabilityIndex:      nullable(t.WalkabilityIndex),
		CarDependencyIndex:    nullable(t.CarDependencyIndex),
		LackOfCarDependency:   nullable(t.LackOfCarDependency),
		CESScoreDelta:         nullable(t.CESScoreDelta),
		PM25GapVsWHO:          nullable(t.PM25GapVsWHO),
		QualityOfLifeScore:    nullable(t.QualityOfLifeScore),
		ClusterID:             t.ClusterID,
		ClusterLabel:          t.ClusterLabel,
	}
}

func (r tractRow) toDomain() *domain.Tract {
	t := domain.NewTract(r.GEOID)
	t.TractLabel = r.TractLabel
	t.CountyName = r.CountyName
	t.CountyFIPS = r.CountyFIPS
	t.Population = value(r.Population)
	t.CentroidLat = value(r.CentroidLat)
	t.CentroidLon = value(r.CentroidLon)
	t.DriveAloneShare = value(r.DriveAloneShare)
	t.TransitShare = value(r.TransitShare)
	t.BikeShare = value(r.BikeShare)
	t.WalkShare = value(r.WalkShare)
	t.WorkFromHomeShare = value(r.WorkFromHomeShare)
	t.CESScore = value(r.CESScore)
	t.PollutionScore = value(r.PollutionScore)
	t.TrafficScore = value(r.TrafficScore)
	t.AsthmaRate = value(r.AsthmaRate)
	t.PovertyPct = value(r.PovertyPct)
	t.HazardRiskScore = value(r.HazardRiskScore)
	t.HazardResilienceScore = value(r.HazardResilienceScore)
	t.OzoneExceedanceDays = value(r.OzoneExceedanceDays)
	t.PM25PersonDays = value(r.PM25PersonDays)
	t.PM25AnnualAvg = value(r.PM25AnnualAvg)
	t.CES3Score = value(r.CES3Score)
	t.ActiveCommuteShare = value(r.ActiveCommuteShare)
	t.NonAutoShare = value(r.NonAutoShare)
	t.WalkabilityIndex = value(r.WalkabilityIndex)
	t.CarDependencyIndex = value(r.CarDependencyIndex)
	t.LackOfCarDependency = value(r.LackOfCarDependency)
	t.CESScoreDelta = value(r.CESScoreDelta)
	t.PM25GapVsWHO = value(r.PM25GapVsWHO)
	t.QualityOfLifeScore = value(r.QualityOfLifeScore)
	t.ClusterID = r.ClusterID
	t.ClusterLabel = r.ClusterLabel
	return t
}

// profileRow is the flat persistence form of a ClusterProfile.
type profileRow struct {
	ID         int    `db:"id"`
	Label      string `db:"label"`
	TractCount int    `db:"tract_count"`
	Centroid   string `db:"centroid"`

	MeanPollution        *float64 `db:"mean_pollution"`
	MeanWalkability      *float64 `db:"mean_walkability"`
	MeanNonAutoShare     *float64 `db:"mean_non_auto_share"`
	MeanAsthma           *float64 `db:"mean_asthma"`
	MeanPoverty          *float64 `db:"mean_poverty"`
	MeanHazardRisk       *float64 `db:"mean_hazard_risk"`
	MeanHazardResilience *float64 `db:"mean_hazard_resilience"`
	MeanOzoneDays        *float64 `db:"mean_ozone_days"`
	MeanQuality          *float64 `db:"mean_quality"`
}

func (r profileRow) toDomain() (domain.ClusterProfile, error) {
	var centroid []float64
	if err := json.Unmarshal([]byte(r.Centroid), &centroid); err != nil {
		return domain.ClusterProfile{}, fmt.Errorf("decode centroid for cluster %d: %w", r.ID, err)
	}
	return domain.ClusterProfile{
		ID:                   r.ID,
		Label:                r.Label,
		TractCount:           r.TractCount,
		Centroid:             centroid,
		MeanPollution:        value(r.MeanPollution),
		MeanWalkability:      value(r.MeanWalkability),
		MeanNonAutoShare:     value(r.MeanNonAutoShare),
		MeanAsthma:           value(r.MeanAsthma),
		MeanPoverty:          value(r.MeanPoverty),
		MeanHazardRisk:       value(r.MeanHazardRisk),
		MeanHazardResilience: value(r.MeanHazardResilience),
		MeanOzoneDays:        value(r.MeanOzoneDays),
		MeanQuality:          value(r.MeanQuality),
	}, nil
}
