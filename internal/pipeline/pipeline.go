// Package pipeline orchestrates one build: load raw sources, derive
// metrics, normalize, score, cluster, summarize, persist, and publish the
// snapshot for the API to serve.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jonboulle/clockwork"

	"github.com/statatlas/statatlas/internal/artifact"
	"github.com/statatlas/statatlas/internal/domain"
	"github.com/statatlas/statatlas/internal/engine"
	"github.com/statatlas/statatlas/internal/observability"
)

// Loader reads and merges the raw source files.
type Loader interface {
	Load(ctx context.Context) (*domain.Dataset, error)
}

// Persister stores the built snapshot durably.
type Persister interface {
	SaveSnapshot(ctx context.Context, snap *artifact.Snapshot) error
}

// Exporter streams scored tracts to an external consumer. Export failures
// never fail a run; the snapshot is already published.
type Exporter interface {
	ExportTracts(ctx context.Context, tracts []*domain.Tract) error
}

// Pipeline builds snapshots and publishes them to the store.
type Pipeline struct {
	loader    Loader
	persister Persister
	exporter  Exporter // nil when export is disabled
	store     *artifact.Store
	cluster   engine.KMeansConfig
	clock     clockwork.Clock
	logger    *slog.Logger
	metrics   *observability.Metrics
}

// New creates a Pipeline. exporter may be nil.
func New(loader Loader, persister Persister, exporter Exporter, store *artifact.Store, cluster engine.KMeansConfig, clock clockwork.Clock, logger *slog.Logger, metrics *observability.Metrics) *Pipeline {
	return &Pipeline{
		loader:    loader,
		persister: persister,
		exporter:  exporter,
		store:     store,
		cluster:   cluster,
		clock:     clock,
		logger:    logger,
		metrics:   metrics,
	}
}

// CheckReadiness returns nil once a snapshot has been published, or an
// error describing why the service cannot serve data yet.
func (p *Pipeline) CheckReadiness(_ context.Context) error {
	if p.store.Current() == nil {
		return errors.New("no snapshot published yet")
	}
	return nil
}

// Run executes one full build. On success the new snapshot is persisted and
// published atomically; on error the previously published snapshot, if any,
// keeps serving.
func (p *Pipeline) Run(ctx context.Context) error {
	p.metrics.PipelineRunning.Set(1)
	defer p.metrics.PipelineRunning.Set(0)

	snap, err := p.build(ctx)
	if err != nil {
		p.metrics.PipelineFailures.Inc()
		return err
	}

	if err := p.stage(ctx, "persist", func(ctx context.Context) error {
		return p.persister.SaveSnapshot(ctx, snap)
	}); err != nil {
		p.metrics.PipelineFailures.Inc()
		return fmt.Errorf("persist snapshot: %w", err)
	}

	p.store.Publish(snap)
	p.metrics.PipelineRuns.Inc()
	p.metrics.TractsLoaded.Set(float64(len(snap.Tracts)))
	p.logger.Info("snapshot published",
		"tracts", len(snap.Tracts),
		"clusters", len(snap.Profiles),
		"built_at", snap.BuiltAt)

	if p.exporter != nil {
		if err := p.stage(ctx, "export", func(ctx context.Context) error {
			return p.exporter.ExportTracts(ctx, snap.Tracts)
		}); err != nil {
			// Non-fatal: the snapshot is already live.
			p.logger.Error("tract export failed", "error", err)
		}
	}
	return nil
}

// Publish republishes a previously persisted snapshot, used at startup to
// serve the last build before the first fresh run completes.
func (p *Pipeline) Publish(snap *artifact.Snapshot) {
	p.store.Publish(snap)
	p.metrics.TractsLoaded.Set(float64(len(snap.Tracts)))
}

func (p *Pipeline) build(ctx context.Context) (*artifact.Snapshot, error) {
	var ds *domain.Dataset
	if err := p.stage(ctx, "load", func(ctx context.Context) error {
		var err error
		ds, err = p.loader.Load(ctx)
		return err
	}); err != nil {
		return nil, fmt.Errorf("load sources: %w", err)
	}
	if len(ds.Tracts) == 0 {
		return nil, errors.New("no tracts loaded")
	}

	p.timed("derive", func() {
		for _, t := range ds.Tracts {
			domain.DeriveCommuteMetrics(t)
			domain.DeriveContextMetrics(t, ds.WHO.CaliforniaPM25Mean)
		}
	})

	var stats map[domain.Column]domain.ColumnStats
	p.timed("normalize", func() {
		stats = engine.Normalize(ds.Tracts)
	})

	p.timed("score", func() {
		engine.CompositeScores(ds.Tracts)
	})

	var profiles []domain.ClusterProfile
	if err := p.stage(ctx, "cluster", func(context.Context) error {
		var err error
		profiles, err = engine.ClusterTracts(ds.Tracts, p.cluster)
		var tooFew engine.ErrTooFewTracts
		if errors.As(err, &tooFew) {
			// Soft degradation: every tract keeps the Unclustered label.
			p.logger.Warn("clustering skipped", "complete", tooFew.Complete, "k", tooFew.K)
			return nil
		}
		return err
	}); err != nil {
		return nil, fmt.Errorf("cluster tracts: %w", err)
	}

	clustered := 0
	for _, t := range ds.Tracts {
		if t.ClusterID != domain.UnclusteredID {
			clustered++
		}
	}
	p.metrics.TractsClustered.Set(float64(clustered))

	builtAt := p.clock.Now().UTC()
	var summary *domain.Summary
	p.timed("summarize", func() {
		summary = engine.BuildSummary(ds.Tracts, ds.WHO, ds.CDCLatestYear, builtAt)
	})

	return artifact.NewSnapshot(ds.Tracts, profiles, summary, stats, builtAt), nil
}

// stage runs fn and records its duration under the stage label.
func (p *Pipeline) stage(ctx context.Context, name string, fn func(context.Context) error) error {
	start := p.clock.Now()
	err := fn(ctx)
	p.metrics.StageDuration.WithLabelValues(name).Observe(p.clock.Since(start).Seconds())
	if err != nil {
		return err
	}
	p.logger.Debug("stage complete", "stage", name, "duration", p.clock.Since(start))
	return nil
}

// timed is stage for steps that cannot fail.
func (p *Pipeline) timed(name string, fn func()) {
	start := p.clock.Now()
	fn()
	p.metrics.StageDuration.WithLabelValues(name).Observe(p.clock.Since(start).Seconds())
	p.logger.Debug("stage complete", "stage", name, "duration", p.clock.Since(start))
}
