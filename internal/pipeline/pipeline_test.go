package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"testing"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/statatlas/statatlas/internal/artifact"
	"github.com/statatlas/statatlas/internal/domain"
	"github.com/statatlas/statatlas/internal/engine"
	"github.com/statatlas/statatlas/internal/observability"
)

type fakeLoader struct {
	dataset *domain.Dataset
	err     error
}

func (f *fakeLoader) Load(context.Context) (*domain.Dataset, error) {
	return f.dataset, f.err
}

type fakePersister struct {
	saved *artifact.Snapshot
	err   error
}

func (f *fakePersister) SaveSnapshot(_ context.Context, snap *artifact.Snapshot) error {
	if f.err != nil {
		return f.err
	}
	f.saved = snap
	return nil
}

type fakeExporter struct {
	exported []*domain.Tract
	err      error
}

func (f *fakeExporter) ExportTracts(_ context.Context, tracts []*domain.Tract) error {
	if f.err != nil {
		return f.err
	}
	f.exported = tracts
	return nil
}

// testDataset builds enough varied tracts for a k=2 fit.
func testDataset(n int) *domain.Dataset {
	tracts := make([]*domain.Tract, n)
	for i := range tracts {
		t := domain.NewTract(fmt.Sprintf("06001%06d", i))
		t.CountyName = "Alameda"
		t.WalkShare = 0.05 + float64(i%7)*0.02
		t.BikeShare = 0.02
		t.TransitShare = 0.1 + float64(i%5)*0.03
		t.WorkFromHomeShare = 0.1
		t.DriveAloneShare = 0.6 - float64(i%4)*0.05
		t.PollutionScore = 2 + float64(i%9)
		t.TrafficScore = 500 + float64(i*13%700)
		t.AsthmaRate = 20 + float64(i%11)*4
		t.PovertyPct = 10 + float64(i%6)*5
		t.HazardRiskScore = 15 + float64(i%8)*6
		t.HazardResilienceScore = 70 - float64(i%8)*4
		t.OzoneExceedanceDays = float64(i % 20)
		t.CESScore = 20 + float64(i%10)
		t.CES3Score = 18 + float64(i%10)
		t.PM25AnnualAvg = 8 + float64(i%4)
		tracts[i] = t
	}
	return &domain.Dataset{
		Tracts:        tracts,
		WHO:           domain.WHOContext{CaliforniaPM25Mean: 10.0, WorldPM25Mean: 24.0, USAPM25Mean: domain.Missing(), CaliforniaNO2Mean: domain.Missing()},
		CDCLatestYear: 2021,
	}
}

func newTestPipeline(loader Loader, persister Persister, exporter Exporter) (*Pipeline, *artifact.Store) {
	store := artifact.NewStore()
	p := New(loader, persister, exporter, store,
		engine.KMeansConfig{K: 2, Seed: 42},
		clockwork.NewFakeClock(),
		slog.New(slog.DiscardHandler),
		observability.NewMetricsForTesting())
	return p, store
}

func TestPipeline_RunPublishesSnapshot(t *testing.T) {
	loader := &fakeLoader{dataset: testDataset(40)}
	persister := &fakePersister{}
	exporter := &fakeExporter{}
	p, store := newTestPipeline(loader, persister, exporter)

	require.NoError(t, p.Run(context.Background()))

	snap := store.Current()
	require.NotNil(t, snap)
	assert.Len(t, snap.Tracts, 40)
	assert.Same(t, snap, persister.saved)
	assert.Len(t, exporter.exported, 40)

	// The full chain ran: derived metrics, norms, composite score,
	// cluster labels, summary.
	first := snap.Tracts[0]
	assert.False(t, domain.IsMissing(first.WalkabilityIndex))
	assert.False(t, domain.IsMissing(first.QualityOfLifeScore))
	assert.NotEqual(t, domain.UnclusteredID, first.ClusterID)
	assert.NotEmpty(t, first.ClusterLabel)
	require.NotNil(t, snap.Summary)
	assert.Equal(t, 2021, snap.Summary.CDCLatestYear)
	assert.NotEmpty(t, snap.Stats)
	assert.Len(t, snap.Profiles, 2)
}

func TestPipeline_Readiness(t *testing.T) {
	p, store := newTestPipeline(&fakeLoader{dataset: testDataset(10)}, &fakePersister{}, nil)

	require.Error(t, p.CheckReadiness(context.Background()))

	store.Publish(artifact.NewSnapshot(nil, nil, nil, nil, clockwork.NewFakeClock().Now()))
	assert.NoError(t, p.CheckReadiness(context.Background()))
}

func TestPipeline_LoadFailure(t *testing.T) {
	p, store := newTestPipeline(&fakeLoader{err: errors.New("disk gone")}, &fakePersister{}, nil)

	err := p.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk gone")
	assert.Nil(t, store.Current())
}

func TestPipeline_PersistFailureKeepsPreviousSnapshot(t *testing.T) {
	persister := &fakePersister{}
	p, store := newTestPipeline(&fakeLoader{dataset: testDataset(20)}, persister, nil)

	require.NoError(t, p.Run(context.Background()))
	previous := store.Current()
	require.NotNil(t, previous)

	persister.err = errors.New("database locked")
	err := p.Run(context.Background())
	require.Error(t, err)
	assert.Same(t, previous, store.Current())
}

func TestPipeline_ExportFailureIsNonFatal(t *testing.T) {
	exporter := &fakeExporter{err: errors.New("broker unreachable")}
	p, store := newTestPipeline(&fakeLoader{dataset: testDataset(20)}, &fakePersister{}, exporter)

	require.NoError(t, p.Run(context.Background()))
	assert.NotNil(t, store.Current())
}

func TestPipeline_TooFewCompleteTractsStillPublishes(t *testing.T) {
	ds := testDataset(3)
	// Leave every tract missing a cluster feature.
	for _, tr := range ds.Tracts {
		tr.AsthmaRate = domain.Missing()
	}
	p, store := newTestPipeline(&fakeLoader{dataset: ds}, &fakePersister{}, nil)

	// k defaults stay at 2; zero complete rows means clustering is skipped
	// but the run still publishes with Unclustered labels.
	require.NoError(t, p.Run(context.Background()))

	snap := store.Current()
	require.NotNil(t, snap)
	assert.Empty(t, snap.Profiles)
	for _, tr := range snap.Tracts {
		assert.Equal(t, domain.UnclusteredID, tr.ClusterID)
		assert.Equal(t, domain.UnclusteredLabel, tr.ClusterLabel)
	}
}

func TestPipeline_EmptyDatasetIsAnError(t *testing.T) {
	p, _ := newTestPipeline(&fakeLoader{dataset: &domain.Dataset{}}, &fakePersister{}, nil)
	err := p.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no tracts")
}
