package ingest

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/statatlas/statatlas/internal/domain"
)

// Source file names under the raw data directory.
const (
	cesFile      = "calenviroscreen40.geojson"
	acsFile      = "acs_b08301_commute.csv"
	nriFile      = "fema_nri_tracts.csv"
	cdcFile      = "cdc_air_quality.csv"
	cesPriorFile = "calenviroscreen30.csv"
)

// FileLoader reads the raw source files from a directory. It implements
// pipeline.Loader.
type FileLoader struct {
	rawDir  string
	whoPath string
	logger  *slog.Logger
}

// NewFileLoader creates a loader rooted at rawDir. whoPath may point at a
// file that does not exist; WHO context is optional.
func NewFileLoader(rawDir, whoPath string, logger *slog.Logger) *FileLoader {
	return &FileLoader{rawDir: rawDir, whoPath: whoPath, logger: logger}
}

// Load reads every source file and merges them into one dataset keyed by
// GEOID. The CES GeoJSON is required; it defines the tract universe. Other
// sources enrich tracts they match and are skipped with a warning when the
// file is absent.
func (l *FileLoader) Load(ctx context.Context) (*domain.Dataset, error) {
	tracts := make(map[string]*domain.Tract)

	if err := l.loadCES(filepath.Join(l.rawDir, cesFile), tracts); err != nil {
		return nil, fmt.Errorf("load %s: %w", cesFile, err)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if err := l.loadACS(filepath.Join(l.rawDir, acsFile), tracts); err != nil {
		return nil, fmt.Errorf("load %s: %w", acsFile, err)
	}
	if err := l.loadNRI(filepath.Join(l.rawDir, nriFile), tracts); err != nil {
		return nil, fmt.Errorf("load %s: %w", nriFile, err)
	}
	if err := l.loadCESPrior(filepath.Join(l.rawDir, cesPriorFile), tracts); err != nil {
		return nil, fmt.Errorf("load %s: %w", cesPriorFile, err)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	latestYear, err := l.loadCDC(filepath.Join(l.rawDir, cdcFile), tracts)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", cdcFile, err)
	}

	who, err := l.loadWHO(l.whoPath)
	if err != nil {
		return nil, fmt.Errorf("load WHO context: %w", err)
	}

	sorted := make([]*domain.Tract, 0, len(tracts))
	for _, t := range tracts {
		sorted = append(sorted, t)
	}
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].GEOID < sorted[j].GEOID })

	l.logger.Info("raw sources merged",
		"tracts", len(sorted),
		"cdc_latest_year", latestYear)

	return &domain.Dataset{Tracts: sorted, WHO: who, CDCLatestYear: latestYear}, nil
}

// tractFor returns the record for geoid, creating it on first sight.
func tractFor(tracts map[string]*domain.Tract, geoid string) *domain.Tract {
	if t, ok := tracts[geoid]; ok {
		return t
	}
	t := domain.NewTract(geoid)
	tracts[geoid] = t
	return t
}

// normalizeGEOID left-pads a tract id to the canonical 11 digits. Source
// files that store GEOIDs numerically drop the leading zero of the state
// FIPS.
func normalizeGEOID(raw string) string {
	raw = strings.TrimSpace(raw)
	if i := strings.Index(raw, "US"); i >= 0 {
		// ACS-style "1400000US06001400100" prefix.
		raw = raw[i+2:]
	}
	if len(raw) >= 11 {
		return raw
	}
	return strings.Repeat("0", 11-len(raw)) + raw
}

// parseFloat returns the missing sentinel for empty or unparsable values
// instead of failing the whole load on one dirty cell.
func parseFloat(s string) float64 {
	s = strings.TrimSpace(s)
	if s == "" {
		return domain.Missing()
	}
	v, err := strconv.ParseFloat(strings.ReplaceAll(s, ",", ""), 64)
	if err != nil {
		return domain.Missing()
	}
	return v
}

// share divides count by total, yielding NaN when the total is zero or
// either value is missing. A tract with no commuters has undefined shares,
// not zero shares.
func share(count, total float64) float64 {
	if domain.IsMissing(count) || domain.IsMissing(total) || total == 0 {
		return math.NaN()
	}
	return count / total
}
