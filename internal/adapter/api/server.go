// Package api exposes the scored snapshot over HTTP: tract pages, the
// precomputed summary, cluster profiles, and personalized recommendations,
// plus the health, readiness, and metrics endpoints.
package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"
	"github.com/goccy/go-json"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/statatlas/statatlas/internal/artifact"
	"github.com/statatlas/statatlas/internal/engine"
	"github.com/statatlas/statatlas/internal/observability"
	"github.com/statatlas/statatlas/internal/recommend"
)

const (
	defaultPageLimit = 100
	maxPageLimit     = 500
)

// ReadinessChecker reports whether the service is ready to serve traffic.
type ReadinessChecker interface {
	CheckReadiness(ctx context.Context) error
}

// Server exposes the data API over HTTP.
type Server struct {
	httpServer *http.Server
	store      *artifact.Store
	metrics    *observability.Metrics
	validate   *validator.Validate
	logger     *slog.Logger
}

// NewServer creates the HTTP server and its routes.
func NewServer(addr string, store *artifact.Store, ready ReadinessChecker, metrics *observability.Metrics, logger *slog.Logger) *Server {
	s := &Server{
		store:    store,
		metrics:  metrics,
		validate: validator.New(),
		logger:   logger,
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", s.handleHealth)
	r.Get("/readyz", s.handleReady(ready))
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Get("/tracts", s.handleTracts)
		r.Get("/summary", s.handleSummary)
		r.Get("/clusters", s.handleClusters)
		r.Post("/recommendations", s.handleRecommendations)
	})

	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	return s
}

// Start begins listening. Returns http.ErrServerClosed on graceful shutdown.
func (s *Server) Start() error {
	s.logger.Info("http server starting", "addr", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully drains connections within the given context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// ServeHTTP delegates to the underlying handler, useful for testing.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.httpServer.Handler.ServeHTTP(w, r)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

func (s *Server) handleReady(checker ReadinessChecker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		if err := checker.CheckReadiness(ctx); err != nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{
				"status": "not ready",
				"error":  err.Error(),
			})
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
	}
}

// snapshot returns the current snapshot or replies 503 when none has been
// published yet.
func (s *Server) snapshot(w http.ResponseWriter) *artifact.Snapshot {
	snap := s.store.Current()
	if snap == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "no data available yet"})
	}
	return snap
}

func (s *Server) handleTracts(w http.ResponseWriter, r *http.Request) {
	snap := s.snapshot(w)
	if snap == nil {
		return
	}

	limit := queryInt(r, "limit", defaultPageLimit)
	if limit <= 0 || limit > maxPageLimit {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "limit must be between 1 and 500"})
		return
	}
	offset := queryInt(r, "offset", 0)
	if offset < 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "offset must not be negative"})
		return
	}

	writeJSON(w, http.StatusOK, newTractsPage(snap, offset, limit))
}

func (s *Server) handleSummary(w http.ResponseWriter, _ *http.Request) {
	snap := s.snapshot(w)
	if snap == nil {
		return
	}
	writeJSON(w, http.StatusOK, newSummaryResponse(snap.Summary))
}

func (s *Server) handleClusters(w http.ResponseWriter, _ *http.Request) {
	snap := s.snapshot(w)
	if snap == nil {
		return
	}
	names := engine.ClusterFeatureNames()
	profiles := make([]clusterProfileResponse, len(snap.Profiles))
	for i, p := range snap.Profiles {
		profiles[i] = clusterProfileResponse{
			ID:              p.ID,
			Label:           p.Label,
			TractCount:      p.TractCount,
			FeatureNames:    names,
			Centroid:        p.Centroid,
			MeanPollution:   optional(p.MeanPollution),
			MeanWalkability: optional(p.MeanWalkability),
			MeanNonAuto:     optional(p.MeanNonAutoShare),
			MeanHazardRisk:  optional(p.MeanHazardRisk),
			MeanQuality:     optional(p.MeanQuality),
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{"clusters": profiles})
}

// recommendationRequest is the POST /api/recommendations body. A nil
// weights map selects the default profile; counties absent or empty means
// statewide.
type recommendationRequest struct {
	Weights  map[string]float64 `json:"weights"`
	Counties []string           `json:"counties" validate:"max=60,dive,max=64"`
	TopN     int                `json:"top_n" validate:"gte=0"`
}

func (s *Server) handleRecommendations(w http.ResponseWriter, r *http.Request) {
	snap := s.snapshot(w)
	if snap == nil {
		return
	}

	var req recommendationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.metrics.RecommendRequests.WithLabelValues("invalid").Inc()
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "malformed request body"})
		return
	}
	if err := s.validate.Struct(req); err != nil {
		s.metrics.RecommendRequests.WithLabelValues("invalid").Inc()
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	recs, err := recommend.Recommend(snap.Tracts, recommend.Request{
		Weights:  req.Weights,
		Counties: req.Counties,
		TopN:     req.TopN,
	})
	if err != nil {
		s.metrics.RecommendRequests.WithLabelValues("invalid").Inc()
		status := http.StatusBadRequest
		if !errors.Is(err, recommend.ErrEmptyWeights) &&
			!errors.Is(err, recommend.ErrUnknownWeightColumn) &&
			!errors.Is(err, recommend.ErrNegativeWeight) &&
			!errors.Is(err, recommend.ErrInvalidTopN) {
			status = http.StatusInternalServerError
		}
		writeJSON(w, status, map[string]string{"error": err.Error()})
		return
	}

	if len(recs) == 0 {
		s.metrics.RecommendRequests.WithLabelValues("empty").Inc()
	} else {
		s.metrics.RecommendRequests.WithLabelValues("success").Inc()
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"recommendations": newRecommendationResponses(recs),
	})
}

func queryInt(r *http.Request, name string, fallback int) int {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return fallback
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return -1
	}
	return v
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v) //nolint:errcheck // best-effort response write
}
