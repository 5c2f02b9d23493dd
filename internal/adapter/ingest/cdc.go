package ingest

import (
	"encoding/csv"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/statatlas/statatlas/internal/domain"
)

// CDC Environmental Public Health Tracking measure ids for air quality.
const (
	measureOzoneDays      = "83" // days above the ozone standard
	measurePM25PersonDays = "86" // person-days above the PM2.5 standard
	measurePM25AnnualAvg  = "87" // annual average PM2.5 concentration
)

const (
	cdcMeasureID  = "MeasureId"
	cdcStateFips  = "StateFips"
	cdcCountyFips = "CountyFips"
	cdcReportYear = "ReportYear"
	cdcValue      = "Value"
	cdcDataOrigin = "DataOrigin"
)

var cdcRequired = []string{cdcMeasureID, cdcStateFips, cdcCountyFips, cdcReportYear, cdcValue, cdcDataOrigin}

const californiaStateFips = "6"

type cdcCountyValues struct {
	ozoneDays      float64
	pm25PersonDays float64
	pm25AnnualAvg  float64
}

// loadCDC merges county-level air quality measures onto every tract in the
// county. Only California rows from monitored (not modeled) data are used,
// and only the most recent report year present in the file.
func (l *FileLoader) loadCDC(path string, tracts map[string]*domain.Tract) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			l.logger.Warn("air quality file absent, CDC measures stay missing", "path", path)
			return 0, nil
		}
		return 0, err
	}
	defer f.Close()

	r := csv.NewReader(f)
	header, err := r.Read()
	if err != nil {
		return 0, fmt.Errorf("read header: %w", err)
	}
	cols, err := columnIndex(header, cdcRequired)
	if err != nil {
		return 0, err
	}

	rows, err := r.ReadAll()
	if err != nil {
		return 0, fmt.Errorf("read rows: %w", err)
	}

	latestYear := 0
	for _, row := range rows {
		if !californiaMonitorRow(row, cols) {
			continue
		}
		if year, err := strconv.Atoi(strings.TrimSpace(row[cols[cdcReportYear]])); err == nil && year > latestYear {
			latestYear = year
		}
	}
	if latestYear == 0 {
		l.logger.Warn("no usable monitor rows in air quality file", "path", path)
		return 0, nil
	}

	byCounty := make(map[string]*cdcCountyValues)
	for _, row := range rows {
		if !californiaMonitorRow(row, cols) {
			continue
		}
		if year, err := strconv.Atoi(strings.TrimSpace(row[cols[cdcReportYear]])); err != nil || year != latestYear {
			continue
		}

		fips := normalizeCountyFIPS(row[cols[cdcCountyFips]])
		cv, ok := byCounty[fips]
		if !ok {
			nan := domain.Missing()
			cv = &cdcCountyValues{ozoneDays: nan, pm25PersonDays: nan, pm25AnnualAvg: nan}
			byCounty[fips] = cv
		}
		value := parseFloat(row[cols[cdcValue]])
		switch strings.TrimSpace(row[cols[cdcMeasureID]]) {
		case measureOzoneDays:
			cv.ozoneDays = value
		case measurePM25PersonDays:
			cv.pm25PersonDays = value
		case measurePM25AnnualAvg:
			cv.pm25AnnualAvg = value
		}
	}

	for _, t := range tracts {
		cv, ok := byCounty[t.CountyFIPS]
		if !ok {
			continue
		}
		t.OzoneExceedanceDays = cv.ozoneDays
		t.PM25PersonDays = cv.pm25PersonDays
		t.PM25AnnualAvg = cv.pm25AnnualAvg
	}
	return latestYear, nil
}

func californiaMonitorRow(row []string, cols map[string]int) bool {
	state := strings.TrimLeft(strings.TrimSpace(row[cols[cdcStateFips]]), "0")
	if state != californiaStateFips {
		return false
	}
	return strings.EqualFold(strings.TrimSpace(row[cols[cdcDataOrigin]]), "Monitor Only")
}

// normalizeCountyFIPS pads to the 5-digit state+county form the tract
// GEOID prefix uses.
func normalizeCountyFIPS(raw string) string {
	raw = strings.TrimSpace(raw)
	if len(raw) >= 5 {
		return raw
	}
	return strings.Repeat("0", 5-len(raw)) + raw
}
