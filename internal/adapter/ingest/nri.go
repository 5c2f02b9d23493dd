package ingest

import (
	"encoding/csv"
	"fmt"
	"os"

	"github.com/statatlas/statatlas/internal/domain"
)

const (
	nriTractFIPS = "TRACTFIPS"
	nriRiskScore = "RISK_SCORE"
	nriReslScore = "RESL_SCORE"
)

var nriRequired = []string{nriTractFIPS, nriRiskScore, nriReslScore}

// loadNRI merges FEMA National Risk Index scores: composite hazard risk and
// community resilience, both tract-level.
func (l *FileLoader) loadNRI(path string, tracts map[string]*domain.Tract) error {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			l.logger.Warn("hazard file absent, risk scores stay missing", "path", path)
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
	cols, err := columnIndex(header, nriRequired)
	if err != nil {
		return err
	}

	rows, err := r.ReadAll()
	if err != nil {
		return fmt.Errorf("read rows: %w", err)
	}
	for _, row := range rows {
		geoid := normalizeGEOID(row[cols[nriTractFIPS]])
		t := tractFor(tracts, geoid)
		t.HazardRiskScore = parseFloat(row[cols[nriRiskScore]])
		t.HazardResilienceScore = parseFloat(row[cols[nriReslScore]])
	}
	return nil
}
