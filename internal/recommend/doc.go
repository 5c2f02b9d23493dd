// Package recommend ranks census tracts against a caller-supplied weight
// profile over the normalized columns. Scoring is a plain weighted sum that
// skips missing values, so a tract is never penalized below zero for data
// its sources simply lack, and results are deterministic: equal scores tie
// break on ascending GEOID.
package recommend
