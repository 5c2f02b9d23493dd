package ingest

import (
	"os"

	"github.com/goccy/go-json"

	"github.com/statatlas/statatlas/internal/domain"
)

// whoDocument is the preprocessed WHO ambient air quality extract: regional
// mean concentrations used as display benchmarks.
type whoDocument struct {
	WorldPM25Mean      *float64 `json:"world_pm25_mean"`
	USAPM25Mean        *float64 `json:"usa_pm25_mean"`
	CaliforniaPM25Mean *float64 `json:"california_pm25_mean"`
	CaliforniaNO2Mean  *float64 `json:"california_no2_mean"`
}

// loadWHO reads the optional WHO benchmark file. A missing file yields an
// all-missing context, not an error; the benchmarks are display-only.
func (l *FileLoader) loadWHO(path string) (domain.WHOContext, error) {
	missing := domain.WHOContext{
		WorldPM25Mean:      domain.Missing(),
		USAPM25Mean:        domain.Missing(),
		CaliforniaPM25Mean: domain.Missing(),
		CaliforniaNO2Mean:  domain.Missing(),
	}
	if path == "" {
		return missing, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			l.logger.Warn("WHO benchmark file absent, context stays missing", "path", path)
			return missing, nil
		}
		return missing, err
	}

	var doc whoDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return missing, err
	}

	ctx := missing
	if doc.WorldPM25Mean != nil {
		ctx.WorldPM25Mean = *doc.WorldPM25Mean
	}
	if doc.USAPM25Mean != nil {
		ctx.USAPM25Mean = *doc.USAPM25Mean
	}
	if doc.CaliforniaPM25Mean != nil {
		ctx.CaliforniaPM25Mean = *doc.CaliforniaPM25Mean
	}
	if doc.CaliforniaNO2Mean != nil {
		ctx.CaliforniaNO2Mean = *doc.CaliforniaNO2Mean
	}
	return ctx, nil
}
