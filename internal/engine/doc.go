// Package engine implements the numeric core of the pipeline: statewide
// min-max normalization, the skip-on-NaN composite scoring kernel,
// deterministic K-Means clustering with rule-based labeling, and the
// precomputed summary statistics.
//
// Every aggregation in this package follows the same missing-data
// discipline: NaN values are excluded from sums and means (their weight is
// removed, not zeroed), so a tract is never penalized for data its sources
// did not report.
package engine
