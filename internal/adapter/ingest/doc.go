// Package ingest loads and merges the raw source files into domain tracts:
// CalEnviroScreen 4.0 GeoJSON, ACS B08301 commute CSV, FEMA NRI tract CSV,
// CDC air quality CSV, the CalEnviroScreen 3.0 score CSV, and the optional
// WHO benchmark JSON. Each source contributes the fields it has; anything a
// source lacks stays at the missing sentinel.
package ingest
