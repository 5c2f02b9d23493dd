package recommend

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/statatlas/statatlas/internal/domain"
)

var (
	// ErrEmptyWeights rejects an explicitly empty weight mapping. Callers
	// that want the default profile omit the mapping instead.
	ErrEmptyWeights = errors.New("weight mapping is empty")

	// ErrUnknownWeightColumn rejects weight keys outside the closed
	// normalized column set.
	ErrUnknownWeightColumn = errors.New("unknown weight column")

	// ErrNegativeWeight rejects negative weights. Every normalized column
	// is oriented higher-is-better, so a negative weight would invert the
	// ranking and push no-data tracts above scored ones.
	ErrNegativeWeight = errors.New("negative weight")

	// ErrInvalidTopN rejects non-positive result limits.
	ErrInvalidTopN = errors.New("top_n must be positive")
)

const defaultTopN = 10

// rationaleFactors is how many top contributing factors a rationale names.
const rationaleFactors = 3

// Request is one recommendation query. A nil Weights map selects the
// default profile; an empty one is an error. Counties optionally restricts
// results to tracts whose county name matches one of the entries exactly.
type Request struct {
	Weights  map[string]float64
	Counties []string
	TopN     int
}

// Factor records one weight's contribution to a tract's personalized score.
type Factor struct {
	Column       domain.Column `json:"column"`
	Weight       float64       `json:"weight"`
	Value        float64       `json:"value"`
	Contribution float64       `json:"contribution"`
}

// Recommendation is one ranked result.
type Recommendation struct {
	Tract     *domain.Tract `json:"tract"`
	Score     float64       `json:"score"`
	Factors   []Factor      `json:"factors"`
	Rationale string        `json:"rationale"`
}

// defaultWeightHints raises the baseline weight for the preferences most
// users care about; every other column defaults to the baseline.
var defaultWeightHints = map[domain.Column]float64{
	domain.ColWalkability:      3.5,
	domain.ColNonAutoShare:     3.0,
	domain.ColHazardResilience: 3.0,
	domain.ColCESDelta:         3.0,
}

const defaultBaselineWeight = 2.0

// DefaultWeights is the profile applied when a request carries no weight
// mapping: every column at the baseline, with walkability, car
// independence, resilience, and CES improvement boosted.
func DefaultWeights() map[string]float64 {
	weights := make(map[string]float64, len(domain.Columns()))
	for _, col := range domain.Columns() {
		w := defaultBaselineWeight
		if hint, ok := defaultWeightHints[col]; ok {
			w = hint
		}
		weights[string(col)] = w
	}
	return weights
}

// Recommend scores every candidate tract against the request weights and
// returns the top results ordered by descending score, ties broken by
// ascending GEOID. Unknown county names yield an empty result, not an error.
func Recommend(tracts []*domain.Tract, req Request) ([]Recommendation, error) {
	weights, err := resolveWeights(req.Weights)
	if err != nil {
		return nil, err
	}
	topN := req.TopN
	if topN == 0 {
		topN = defaultTopN
	}
	if topN < 0 {
		return nil, fmt.Errorf("%w, got %d", ErrInvalidTopN, req.TopN)
	}

	counties := countySet(req.Counties)
	results := make([]Recommendation, 0, len(tracts))
	for _, t := range tracts {
		if counties != nil && !counties[t.CountyName] {
			continue
		}
		score, factors := scoreTract(t, weights)
		results = append(results, Recommendation{
			Tract:     t,
			Score:     score,
			Factors:   factors,
			Rationale: rationale(factors),
		})
	}

	sort.SliceStable(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].Tract.GEOID < results[j].Tract.GEOID
	})

	if len(results) > topN {
		results = results[:topN]
	}
	return results, nil
}

// countySet returns nil for an unfiltered (statewide) request.
func countySet(names []string) map[string]bool {
	if len(names) == 0 {
		return nil
	}
	set := make(map[string]bool, len(names))
	for _, n := range names {
		set[n] = true
	}
	return set
}

// resolveWeights validates the request mapping and returns it in canonical
// column order so factor lists and scores are deterministic.
func resolveWeights(raw map[string]float64) ([]Factor, error) {
	if raw == nil {
		raw = DefaultWeights()
	}
	if len(raw) == 0 {
		return nil, ErrEmptyWeights
	}
	for name, w := range raw {
		if !domain.KnownColumn(name) {
			return nil, fmt.Errorf("%w: %q", ErrUnknownWeightColumn, name)
		}
		if w < 0 {
			return nil, fmt.Errorf("%w: %q", ErrNegativeWeight, name)
		}
	}

	weights := make([]Factor, 0, len(raw))
	for _, col := range domain.Columns() {
		if w, ok := raw[string(col)]; ok {
			weights = append(weights, Factor{Column: col, Weight: w})
		}
	}
	return weights, nil
}

// scoreTract computes the plain weighted sum over present normalized
// values. Missing values contribute nothing, so a tract with every weighted
// column missing scores exactly zero and sorts last.
func scoreTract(t *domain.Tract, weights []Factor) (float64, []Factor) {
	score := 0.0
	factors := make([]Factor, 0, len(weights))
	for _, w := range weights {
		v := t.Norm(w.Column)
		if domain.IsMissing(v) {
			continue
		}
		w.Value = v
		w.Contribution = w.Weight * v
		score += w.Contribution
		factors = append(factors, w)
	}
	return score, factors
}

// rationale names the preferences a tract satisfies best, in contribution
// order.
func rationale(factors []Factor) string {
	if len(factors) == 0 {
		return "No preference data available for this tract."
	}

	ranked := make([]Factor, len(factors))
	copy(ranked, factors)
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Contribution > ranked[j].Contribution
	})
	if len(ranked) > rationaleFactors {
		ranked = ranked[:rationaleFactors]
	}

	parts := make([]string, len(ranked))
	for i, f := range ranked {
		parts[i] = domain.ColumnDescriptions[f.Column]
	}
	return "Strong on " + strings.Join(parts, ", ") + "."
}
