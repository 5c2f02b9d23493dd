package domain

// Column names a normalized (*_norm) column. The set is closed: these are
// the only keys accepted in recommender weight mappings, and every scoring
// consumer treats all of them uniformly as "higher is better".
type Column string

const (
	ColWalkability      Column = "walkability_index_norm"
	ColNonAutoShare     Column = "non_auto_share_norm"
	ColPollution        Column = "pollution_score_norm"
	ColTraffic          Column = "traffic_norm"
	ColAsthma           Column = "asthma_norm"
	ColPoverty          Column = "poverty_norm"
	ColHazardRisk       Column = "hazard_risk_norm"
	ColHazardResilience Column = "hazard_resilience_norm"
	ColOzoneDays        Column = "ozone_days_norm"
	ColPM25PersonDays   Column = "pm25_person_days_norm"
	ColCESDelta         Column = "ces_delta_norm"
)

// ColumnSpec describes how one normalized column is produced: where the raw
// value comes from and whether it is inverted (max − v) before min-max
// scaling because higher raw values represent worse outcomes.
type ColumnSpec struct {
	Column Column
	Invert bool
	Source func(*Tract) float64
}

// columnSpecs is ordered: normalization, persistence, and summaries all
// iterate it so output is deterministic.
var columnSpecs = []ColumnSpec{
	{ColWalkability, false, func(t *Tract) float64 { return t.WalkabilityIndex }},
	{ColNonAutoShare, false, func(t *Tract) float64 { return t.NonAutoShare }},
	{ColPollution, true, func(t *Tract) float64 { return t.PollutionScore }},
	{ColTraffic, true, func(t *Tract) float64 { return t.TrafficScore }},
	{ColAsthma, true, func(t *Tract) float64 { return t.AsthmaRate }},
	{ColPoverty, true, func(t *Tract) float64 { return t.PovertyPct }},
	{ColHazardRisk, true, func(t *Tract) float64 { return t.HazardRiskScore }},
	{ColHazardResilience, false, func(t *Tract) float64 { return t.HazardResilienceScore }},
	{ColOzoneDays, true, func(t *Tract) float64 { return t.OzoneExceedanceDays }},
	{ColPM25PersonDays, true, func(t *Tract) float64 { return t.PM25PersonDays }},
	{ColCESDelta, false, func(t *Tract) float64 { return t.CESScoreDelta }},
}

// ColumnSpecs returns the ordered normalization specs for every column.
func ColumnSpecs() []ColumnSpec {
	return columnSpecs
}

// Columns returns every normalized column name in canonical order.
func Columns() []Column {
	cols := make([]Column, len(columnSpecs))
	for i, spec := range columnSpecs {
		cols[i] = spec.Column
	}
	return cols
}

// KnownColumn reports whether name is a member of the closed column set.
func KnownColumn(name string) bool {
	for _, spec := range columnSpecs {
		if string(spec.Column) == name {
			return true
		}
	}
	return false
}

// ColumnDescriptions maps each column to the user-facing preference it
// represents, used when rendering recommendation rationales.
var ColumnDescriptions = map[Column]string{
	ColWalkability:      "walkability & transit access",
	ColNonAutoShare:     "low car dependence",
	ColPollution:        "low pollution burden",
	ColTraffic:          "low traffic volumes",
	ColAsthma:           "low asthma burden",
	ColPoverty:          "low poverty rates",
	ColHazardRisk:       "low hazard risk",
	ColHazardResilience: "resilient infrastructure",
	ColOzoneDays:        "few ozone exceedance days",
	ColPM25PersonDays:   "low PM2.5 exposure",
	ColCESDelta:         "improvement since CES 3.0",
}
