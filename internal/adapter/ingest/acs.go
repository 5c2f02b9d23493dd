package ingest

import (
	"encoding/csv"
	"fmt"
	"os"
	"strings"

	"github.com/statatlas/statatlas/internal/domain"
)

// ACS B08301 variable codes: means of transportation to work.
const (
	acsGeoID      = "GEO_ID"
	acsName       = "NAME"
	acsTotal      = "B08301_001E"
	acsDroveAlone = "B08301_003E"
	acsTransit    = "B08301_010E"
	acsBicycle    = "B08301_018E"
	acsWalked     = "B08301_019E"
	acsWorkAtHome = "B08301_021E"
)

var acsRequired = []string{acsGeoID, acsName, acsTotal, acsDroveAlone, acsTransit, acsBicycle, acsWalked, acsWorkAtHome}

// loadACS merges commute mode shares from the ACS B08301 table. Counts are
// converted to fractions of the tract's total commuters; a tract reporting
// zero commuters gets missing shares rather than zeros.
func (l *FileLoader) loadACS(path string, tracts map[string]*domain.Tract) error {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			l.logger.Warn("commute file absent, shares stay missing", "path", path)
			return nil
		}
		return err
	}
	defer f.Close()

	r := csv.NewReader(f)
	header, err := r.Read()
	if err != nil {
		return fmt.Errorf("read header: %w", err)
	}
	cols, err := columnIndex(header, acsRequired)
	if err != nil {
		return err
	}

	rows, err := r.ReadAll()
	if err != nil {
		return fmt.Errorf("read rows: %w", err)
	}
	for _, row := range rows {
		geoidRaw := row[cols[acsGeoID]]
		if strings.Contains(geoidRaw, "GEO_ID") || strings.Contains(geoidRaw, "Geography") {
			// Census exports carry a second, human-readable header row.
			continue
		}
		geoid := normalizeGEOID(geoidRaw)
		t := tractFor(tracts, geoid)

		total := parseFloat(row[cols[acsTotal]])
		t.DriveAloneShare = share(parseFloat(row[cols[acsDroveAlone]]), total)
		t.TransitShare = share(parseFloat(row[cols[acsTransit]]), total)
		t.BikeShare = share(parseFloat(row[cols[acsBicycle]]), total)
		t.WalkShare = share(parseFloat(row[cols[acsWalked]]), total)
		t.WorkFromHomeShare = share(parseFloat(row[cols[acsWorkAtHome]]), total)

		if t.CountyName == "" {
			t.CountyName = countyFromACSName(row[cols[acsName]])
		}
	}
	return nil
}

// countyFromACSName extracts the county from an ACS NAME like
// "Census Tract 4001; Alameda County; California".
func countyFromACSName(name string) string {
	parts := strings.Split(name, ";")
	if len(parts) < 2 {
		return ""
	}
	county := strings.TrimSpace(parts[1])
	return strings.TrimSuffix(county, " County")
}

// columnIndex locates each required column in the header, failing loudly on
// a schema change instead of silently mis-mapping fields.
func columnIndex(header, required []string) (map[string]int, error) {
	idx := make(map[string]int, len(header))
	for i, name := range header {
		idx[strings.TrimSpace(name)] = i
	}
	for _, name := range required {
		if _, ok := idx[name]; !ok {
			return nil, fmt.Errorf("missing required column %q", name)
		}
	}
	return idx, nil
}
