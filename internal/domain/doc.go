// Package domain models California census-tract environmental, hazard, and
// commute data and the derived metrics built on top of it.
//
// # Data Sources
//
// Each tract record is a merge of five public datasets, joined on the 11-digit
// tract GEOID (state FIPS + county FIPS + tract code, zero-padded):
//
//	CalEnviroScreen 4.0 (OEHHA):   pollution burden, traffic density, asthma
//	                               ED visits, poverty percentage, total
//	                               population, tract geometry.
//	ACS 5-year table B08301:       commute mode counts (drive alone, transit,
//	                               bicycle, walk, work from home), converted
//	                               to per-tract shares.
//	FEMA National Risk Index:      composite hazard risk and community
//	                               resilience scores (0-100).
//	CDC Tracking Network:          county-level ozone exceedance days and
//	                               PM2.5 person-days/annual average, latest
//	                               monitor-only year.
//	CalEnviroScreen 3.0 results:   historical score used for the 4.0-3.0 delta.
//
// An upstream collector fetches and caches the raw files; this service only
// reads them from disk. WHO city-level PM2.5 averages are carried as read-only
// benchmark context.
//
// # Missing Data
//
// Every numeric attribute uses NaN as the missing-value sentinel. Missing
// values are never coerced to zero: they propagate through derived metrics,
// normalize to NaN, and are skipped (weight excluded, not zeroed) by every
// weighted aggregation downstream.
//
// # Normalized Columns
//
// Each scoring input has a parallel *_norm column produced by statewide
// min-max scaling. Columns where a higher raw value is a worse outcome
// (pollution, traffic, hazard risk, asthma, poverty, ozone days, PM2.5) are
// inverted before scaling, so every normalized column reads "higher is
// better". [Column] enumerates the closed set of normalized column names; it
// is the only vocabulary the recommender accepts for user weight keys.
package domain
