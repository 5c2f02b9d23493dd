package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/statatlas/statatlas/internal/artifact"
	"github.com/statatlas/statatlas/internal/domain"
	"github.com/statatlas/statatlas/internal/engine"
	"github.com/statatlas/statatlas/internal/observability"
)

type readyFunc func(ctx context.Context) error

func (f readyFunc) CheckReadiness(ctx context.Context) error { return f(ctx) }

var alwaysReady = readyFunc(func(context.Context) error { return nil })

func apiTract(geoid, county string, quality float64) *domain.Tract {
	t := domain.NewTract(geoid)
	t.CountyName = county
	t.QualityOfLifeScore = quality
	t.ClusterLabel = domain.UnclusteredLabel
	t.Norms[domain.ColWalkability] = quality
	t.Norms[domain.ColPollution] = 0.5
	return t
}

func publishedServer(t *testing.T, tracts []*domain.Tract) *Server {
	t.Helper()
	store := artifact.NewStore()
	builtAt := time.Date(2026, 8, 25, 10, 0, 0, 0, time.UTC)
	summary := engine.BuildSummary(tracts, domain.WHOContext{CaliforniaPM25Mean: 10.2, WorldPM25Mean: domain.Missing(), USAPM25Mean: domain.Missing(), CaliforniaNO2Mean: domain.Missing()}, 2021, builtAt)
	profiles := []domain.ClusterProfile{{ID: 0, Label: "Critical Hotspots", TractCount: len(tracts), Centroid: []float64{1, -1, 0, 0, 0, 0, 0, 0}}}
	store.Publish(artifact.NewSnapshot(tracts, profiles, summary, nil, builtAt))
	return NewServer(":0", store, alwaysReady, observability.NewMetricsForTesting(), slog.New(slog.DiscardHandler))
}

func emptyServer() *Server {
	return NewServer(":0", artifact.NewStore(),
		readyFunc(func(context.Context) error { return errors.New("no snapshot published yet") }),
		observability.NewMetricsForTesting(), slog.New(slog.DiscardHandler))
}

func doRequest(s *Server, method, target, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)
	return rec
}

func TestServer_Health(t *testing.T) {
	rec := doRequest(emptyServer(), http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "healthy")
}

func TestServer_Readiness(t *testing.T) {
	t.Run("not ready before first snapshot", func(t *testing.T) {
		rec := doRequest(emptyServer(), http.MethodGet, "/readyz", "")
		assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	})

	t.Run("ready after publish", func(t *testing.T) {
		s := publishedServer(t, []*domain.Tract{apiTract("06001400100", "Alameda", 0.5)})
		rec := doRequest(s, http.MethodGet, "/readyz", "")
		assert.Equal(t, http.StatusOK, rec.Code)
	})
}

func TestServer_TractsBeforeSnapshotIs503(t *testing.T) {
	rec := doRequest(emptyServer(), http.MethodGet, "/api/tracts", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestServer_TractsPagination(t *testing.T) {
	s := publishedServer(t, []*domain.Tract{
		apiTract("06001400100", "Alameda", 0.9),
		apiTract("06001400200", "Alameda", 0.8),
		apiTract("06037100100", "Los Angeles", 0.7),
	})

	rec := doRequest(s, http.MethodGet, "/api/tracts?limit=2&offset=1", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var page struct {
		Total  int `json:"total"`
		Offset int `json:"offset"`
		Tracts []struct {
			GEOID   string   `json:"geoid"`
			Quality *float64 `json:"quality_of_life_score"`
			Asthma  *float64 `json:"asthma_rate"`
		} `json:"tracts"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &page))

	assert.Equal(t, 3, page.Total)
	assert.Equal(t, 1, page.Offset)
	require.Len(t, page.Tracts, 2)
	// Snapshot ordering is ascending GEOID.
	assert.Equal(t, "06001400200", page.Tracts[0].GEOID)
	require.NotNil(t, page.Tracts[0].Quality)
	assert.InDelta(t, 0.8, *page.Tracts[0].Quality, 1e-12)
	// Never-measured values render as null, not zero.
	assert.Nil(t, page.Tracts[0].Asthma)
}

func TestServer_TractsRejectsBadPaging(t *testing.T) {
	s := publishedServer(t, []*domain.Tract{apiTract("06001400100", "Alameda", 0.5)})

	assert.Equal(t, http.StatusBadRequest, doRequest(s, http.MethodGet, "/api/tracts?limit=0", "").Code)
	assert.Equal(t, http.StatusBadRequest, doRequest(s, http.MethodGet, "/api/tracts?limit=501", "").Code)
	assert.Equal(t, http.StatusBadRequest, doRequest(s, http.MethodGet, "/api/tracts?limit=abc", "").Code)
	assert.Equal(t, http.StatusBadRequest, doRequest(s, http.MethodGet, "/api/tracts?offset=-1", "").Code)
}

func TestServer_Summary(t *testing.T) {
	s := publishedServer(t, []*domain.Tract{
		apiTract("06001400100", "Alameda", 0.9),
		apiTract("06037100100", "Los Angeles", 0.5),
	})

	rec := doRequest(s, http.MethodGet, "/api/summary", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Aggregates struct {
			AvgQuality *float64 `json:"avg_quality"`
		} `json:"aggregates"`
		Counties []struct {
			County string `json:"county_name"`
		} `json:"counties"`
		WHO struct {
			CaliforniaPM25Mean *float64 `json:"california_pm25_mean"`
			WorldPM25Mean      *float64 `json:"world_pm25_mean"`
		} `json:"who"`
		CDCLatestYear int `json:"cdc_latest_year"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))

	require.NotNil(t, resp.Aggregates.AvgQuality)
	assert.InDelta(t, 0.7, *resp.Aggregates.AvgQuality, 1e-12)
	require.Len(t, resp.Counties, 2)
	assert.Equal(t, "Alameda", resp.Counties[0].County)
	assert.Equal(t, 2021, resp.CDCLatestYear)
	require.NotNil(t, resp.WHO.CaliforniaPM25Mean)
	assert.InDelta(t, 10.2, *resp.WHO.CaliforniaPM25Mean, 1e-12)
	assert.Nil(t, resp.WHO.WorldPM25Mean)
}

func TestServer_Clusters(t *testing.T) {
	s := publishedServer(t, []*domain.Tract{apiTract("06001400100", "Alameda", 0.5)})

	rec := doRequest(s, http.MethodGet, "/api/clusters", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Clusters []struct {
			Label        string   `json:"label"`
			FeatureNames []string `json:"feature_names"`
		} `json:"clusters"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Clusters, 1)
	assert.Equal(t, "Critical Hotspots", resp.Clusters[0].Label)
	assert.Equal(t, engine.ClusterFeatureNames(), resp.Clusters[0].FeatureNames)
}

func TestServer_Recommendations(t *testing.T) {
	s := publishedServer(t, []*domain.Tract{
		apiTract("06001400100", "Alameda", 0.9),
		apiTract("06001400200", "Alameda", 0.4),
		apiTract("06037100100", "Los Angeles", 0.7),
	})

	t.Run("explicit weights rank by score", func(t *testing.T) {
		body := `{"weights": {"walkability_index_norm": 2.0}, "top_n": 2}`
		rec := doRequest(s, http.MethodPost, "/api/recommendations", body)
		require.Equal(t, http.StatusOK, rec.Code)

		var resp struct {
			Recommendations []struct {
				GEOID     string  `json:"geoid"`
				Score     float64 `json:"score"`
				Rationale string  `json:"rationale"`
			} `json:"recommendations"`
		}
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		require.Len(t, resp.Recommendations, 2)
		assert.Equal(t, "06001400100", resp.Recommendations[0].GEOID)
		assert.InDelta(t, 1.8, resp.Recommendations[0].Score, 1e-12)
		assert.NotEmpty(t, resp.Recommendations[0].Rationale)
	})

	t.Run("absent weights use default profile", func(t *testing.T) {
		rec := doRequest(s, http.MethodPost, "/api/recommendations", `{}`)
		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("empty weights map is rejected", func(t *testing.T) {
		rec := doRequest(s, http.MethodPost, "/api/recommendations", `{"weights": {}}`)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("unknown weight column is rejected", func(t *testing.T) {
		rec := doRequest(s, http.MethodPost, "/api/recommendations", `{"weights": {"nope_norm": 1}}`)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Contains(t, rec.Body.String(), "nope_norm")
	})

	t.Run("county filter", func(t *testing.T) {
		body := `{"weights": {"walkability_index_norm": 1.0}, "counties": ["Los Angeles"]}`
		rec := doRequest(s, http.MethodPost, "/api/recommendations", body)
		require.Equal(t, http.StatusOK, rec.Code)

		var resp struct {
			Recommendations []struct {
				GEOID string `json:"geoid"`
			} `json:"recommendations"`
		}
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		require.Len(t, resp.Recommendations, 1)
		assert.Equal(t, "06037100100", resp.Recommendations[0].GEOID)
	})

	t.Run("unknown county is empty not error", func(t *testing.T) {
		body := `{"weights": {"walkability_index_norm": 1.0}, "counties": ["Atlantis"]}`
		rec := doRequest(s, http.MethodPost, "/api/recommendations", body)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), `"recommendations":[]`)
	})

	t.Run("malformed body", func(t *testing.T) {
		rec := doRequest(s, http.MethodPost, "/api/recommendations", `{not json`)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("negative weight is rejected", func(t *testing.T) {
		rec := doRequest(s, http.MethodPost, "/api/recommendations", `{"weights": {"walkability_index_norm": -1}}`)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Contains(t, rec.Body.String(), "walkability_index_norm")
	})

	t.Run("oversize top_n returns all eligible tracts", func(t *testing.T) {
		body := `{"weights": {"walkability_index_norm": 1.0}, "top_n": 5000}`
		rec := doRequest(s, http.MethodPost, "/api/recommendations", body)
		require.Equal(t, http.StatusOK, rec.Code)

		var resp struct {
			Recommendations []struct {
				GEOID string `json:"geoid"`
			} `json:"recommendations"`
		}
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Len(t, resp.Recommendations, 3)
	})

	t.Run("negative top_n is rejected", func(t *testing.T) {
		rec := doRequest(s, http.MethodPost, "/api/recommendations", `{"top_n": -1}`)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}
