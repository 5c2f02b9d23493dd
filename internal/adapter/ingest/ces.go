package ingest

import (
	"fmt"
	"os"
	"strconv"

	"github.com/goccy/go-json"

	"github.com/statatlas/statatlas/internal/domain"
)

// cesFeatureCollection mirrors the CalEnviroScreen 4.0 GeoJSON export.
// Property names are the dataset's own field names.
type cesFeatureCollection struct {
	Features []struct {
		Properties struct {
			Tract      json.Number `json:"Tract"`
			County     string      `json:"County"`
			ApproxLoc  string      `json:"ApproxLoc"`
			Population json.Number `json:"TotPop19"`
			CESScore   json.Number `json:"CIscore"`
			PolBurdSc  json.Number `json:"PolBurdSc"`
			Traffic    json.Number `json:"Traffic"`
			Asthma     json.Number `json:"Asthma"`
			Poverty    json.Number `json:"Poverty"`
		} `json:"properties"`
		Geometry struct {
			Type        string          `json:"type"`
			Coordinates json.RawMessage `json:"coordinates"`
		} `json:"geometry"`
	} `json:"features"`
}

// loadCES reads the CalEnviroScreen GeoJSON and creates the base tract
// records: identity, population, environmental scores, and a centroid
// approximated as the mean of the polygon vertices.
func (l *FileLoader) loadCES(path string, tracts map[string]*domain.Tract) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	var fc cesFeatureCollection
	if err := json.Unmarshal(data, &fc); err != nil {
		return fmt.Errorf("parse geojson: %w", err)
	}
	if len(fc.Features) == 0 {
		return fmt.Errorf("no features in %s", path)
	}

	for _, f := range fc.Features {
		geoid := normalizeGEOID(f.Properties.Tract.String())
		t := tractFor(tracts, geoid)
		t.CountyName = f.Properties.County
		t.CountyFIPS = countyFIPS(geoid)
		t.TractLabel = f.Properties.ApproxLoc
		t.Population = numberValue(f.Properties.Population)
		t.CESScore = numberValue(f.Properties.CESScore)
		t.PollutionScore = numberValue(f.Properties.PolBurdSc)
		t.TrafficScore = numberValue(f.Properties.Traffic)
		t.AsthmaRate = numberValue(f.Properties.Asthma)
		t.PovertyPct = numberValue(f.Properties.Poverty)

		lat, lon, ok := polygonCentroid(f.Geometry.Type, f.Geometry.Coordinates)
		if ok {
			t.CentroidLat, t.CentroidLon = lat, lon
		}
	}
	return nil
}

// countyFIPS is the first five GEOID digits: state plus county.
func countyFIPS(geoid string) string {
	if len(geoid) < 5 {
		return ""
	}
	return geoid[:5]
}

// numberValue converts a json.Number to float64, treating absent or
// non-numeric values as missing.
func numberValue(n json.Number) float64 {
	if n.String() == "" {
		return domain.Missing()
	}
	v, err := strconv.ParseFloat(n.String(), 64)
	if err != nil {
		return domain.Missing()
	}
	return v
}

// polygonCentroid averages every vertex of a Polygon or MultiPolygon. A
// vertex mean is a crude centroid but is stable and good enough for
// county-scale mapping.
func polygonCentroid(geomType string, coords json.RawMessage) (lat, lon float64, ok bool) {
	sumLat, sumLon, n := 0.0, 0.0, 0

	accumulate := func(rings [][][]float64) {
		for _, ring := range rings {
			for _, pt := range ring {
				if len(pt) < 2 {
					continue
				}
				sumLon += pt[0]
				sumLat += pt[1]
				n++
			}
		}
	}

	switch geomType {
	case "Polygon":
		var rings [][][]float64
		if err := json.Unmarshal(coords, &rings); err != nil {
			return 0, 0, false
		}
		accumulate(rings)
	case "MultiPolygon":
		var polys [][][][]float64
		if err := json.Unmarshal(coords, &polys); err != nil {
			return 0, 0, false
		}
		for _, rings := range polys {
			accumulate(rings)
		}
	default:
		return 0, 0, false
	}

	if n == 0 {
		return 0, 0, false
	}
	return sumLat / float64(n), sumLon / float64(n), true
}
