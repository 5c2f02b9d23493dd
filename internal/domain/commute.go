package domain

// Derived commute metrics. All of these are pure functions of one tract's
// mode shares; a NaN share propagates to NaN output rather than aborting
// the batch. Structural absence of a share column is a loader-level schema
// error, not handled here.

// walkability index weights: active commuting (walk + bike) and transit
// dominate, remote work counts at half weight.
const (
	walkabilityActiveWeight  = 0.4
	walkabilityTransitWeight = 0.4
	walkabilityWFHWeight     = 0.2
)

// WalkabilityIndex blends active-commute, transit, and work-from-home
// shares into a single [0,1] walkability measure.
func WalkabilityIndex(walkShare, bikeShare, transitShare, wfhShare float64) float64 {
	active := walkShare + bikeShare
	return walkabilityActiveWeight*active + walkabilityTransitWeight*transitShare + walkabilityWFHWeight*wfhShare
}

// NonAutoShare is the share of commuters who do not drive alone.
func NonAutoShare(driveAloneShare float64) float64 {
	return 1 - driveAloneShare
}

// LackOfCarDependency is an alias of NonAutoShare kept so scoring code
// reads in the "higher is better" direction.
func LackOfCarDependency(driveAloneShare float64) float64 {
	return NonAutoShare(driveAloneShare)
}

// DeriveCommuteMetrics computes every commute-derived field on t from its
// raw mode shares. It mutates only the derived fields.
func DeriveCommuteMetrics(t *Tract) {
	t.ActiveCommuteShare = t.WalkShare + t.BikeShare
	t.NonAutoShare = NonAutoShare(t.DriveAloneShare)
	t.LackOfCarDependency = LackOfCarDependency(t.DriveAloneShare)
	t.CarDependencyIndex = t.DriveAloneShare
	t.WalkabilityIndex = WalkabilityIndex(t.WalkShare, t.BikeShare, t.TransitShare, t.WorkFromHomeShare)
}

// DeriveContextMetrics computes the cross-dataset derived fields: the
// CES 4.0−3.0 score delta and the PM2.5 gap against the WHO California
// city average. NaN inputs propagate.
func DeriveContextMetrics(t *Tract, whoCaliforniaPM25 float64) {
	t.CESScoreDelta = t.CESScore - t.CES3Score
	t.PM25GapVsWHO = t.PM25AnnualAvg - whoCaliforniaPM25
}
