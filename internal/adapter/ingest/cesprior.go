package ingest

import (
	"encoding/csv"
	"fmt"
	"os"

	"github.com/statatlas/statatlas/internal/domain"
)

const (
	cesPriorTract = "Census Tract"
	cesPriorScore = "CES 3.0 Score"
)

var cesPriorRequired = []string{cesPriorTract, cesPriorScore}

// loadCESPrior merges the CalEnviroScreen 3.0 score, kept only to compute
// the score delta against the current 4.0 release.
func (l *FileLoader) loadCESPrior(path string, tracts map[string]*domain.Tract) error {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			l.logger.Warn("prior CES file absent, score deltas stay missing", "path", path)
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
	cols, err := columnIndex(header, cesPriorRequired)
	if err != nil {
		return err
	}

	rows, err := r.ReadAll()
	if err != nil {
		return fmt.Errorf("read rows: %w", err)
	}
	for _, row := range rows {
		geoid := normalizeGEOID(row[cols[cesPriorTract]])
		t := tractFor(tracts, geoid)
		t.CES3Score = parseFloat(row[cols[cesPriorScore]])
	}
	return nil
}
