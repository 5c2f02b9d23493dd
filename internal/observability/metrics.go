package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus counters, histograms, and gauges for the
// scoring pipeline and recommender.
type Metrics struct {
	PipelineRuns     prometheus.Counter
	PipelineFailures prometheus.Counter
	PipelineRunning  prometheus.Gauge
	TractsLoaded     prometheus.Gauge
	TractsClustered  prometheus.Gauge

	StageDuration *prometheus.HistogramVec // label: stage={load,derive,normalize,score,cluster,summarize,persist,export}

	RecommendRequests *prometheus.CounterVec // label: outcome={success,invalid,empty}
	ExportedTracts    prometheus.Counter
	ExportErrors      prometheus.Counter
}

// NewMetrics creates and registers all metrics with the default Prometheus
// registry.
func NewMetrics() *Metrics {
	m := newMetrics()
	prometheus.MustRegister(
		m.PipelineRuns,
		m.PipelineFailures,
		m.PipelineRunning,
		m.TractsLoaded,
		m.TractsClustered,
		m.StageDuration,
		m.RecommendRequests,
		m.ExportedTracts,
		m.ExportErrors,
	)
	return m
}

// NewMetricsForTesting creates Metrics without registering them, avoiding
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return newMetrics()
}

func newMetrics() *Metrics {
	return &Metrics{
		PipelineRuns: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "statatlas",
			Name:      "pipeline_runs_total",
			Help:      "Total completed pipeline runs.",
		}),
		PipelineFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "statatlas",
			Name:      "pipeline_failures_total",
			Help:      "Total pipeline runs that ended in error.",
		}),
		PipelineRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "statatlas",
			Name:      "pipeline_running",
			Help:      "1 while a pipeline run is in progress, 0 otherwise.",
		}),
		TractsLoaded: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "statatlas",
			Name:      "tracts_loaded",
			Help:      "Tracts in the most recently published snapshot.",
		}),
		TractsClustered: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "statatlas",
			Name:      "tracts_clustered",
			Help:      "Tracts assigned to a fitted cluster in the latest run.",
		}),
		StageDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "statatlas",
			Name:      "pipeline_stage_duration_seconds",
			Help:      "Duration of each pipeline stage.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 2.5, 5, 10, 30},
		}, []string{"stage"}),
		RecommendRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "statatlas",
			Name:      "recommend_requests_total",
			Help:      "Recommendation requests by outcome.",
		}, []string{"outcome"}),
		ExportedTracts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "statatlas",
			Name:      "exported_tracts_total",
			Help:      "Tract records written to the export topic.",
		}),
		ExportErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "statatlas",
			Name:      "export_errors_total",
			Help:      "Failed export writes.",
		}),
	}
}
