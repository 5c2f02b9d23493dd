// Package artifact holds the immutable output of one pipeline run and the
// store that publishes it to readers atomically.
package artifact

import (
	"sort"
	"sync/atomic"
	"time"

	"github.com/statatlas/statatlas/internal/domain"
)

// Snapshot is everything one pipeline run produced. Once published a
// snapshot is never mutated; the next run builds a fresh one and swaps it
// in wholesale, so API readers never observe a half-updated dataset.
type Snapshot struct {
	Tracts   []*domain.Tract                     `json:"tracts"`
	Profiles []domain.ClusterProfile             `json:"profiles"`
	Summary  *domain.Summary                     `json:"summary"`
	Stats    map[domain.Column]domain.ColumnStats `json:"stats"`
	BuiltAt  time.Time                           `json:"built_at"`
}

// NewSnapshot assembles a snapshot, sorting tracts by ascending GEOID so
// paginated reads are stable across requests.
func NewSnapshot(tracts []*domain.Tract, profiles []domain.ClusterProfile, summary *domain.Summary, stats map[domain.Column]domain.ColumnStats, builtAt time.Time) *Snapshot {
	sorted := make([]*domain.Tract, len(tracts))
	copy(sorted, tracts)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].GEOID < sorted[j].GEOID })
	return &Snapshot{
		Tracts:   sorted,
		Profiles: profiles,
		Summary:  summary,
		Stats:    stats,
		BuiltAt:  builtAt,
	}
}

// TractPage returns one page of tracts. Offsets past the end yield an empty
// page, never an error.
func (s *Snapshot) TractPage(offset, limit int) []*domain.Tract {
	if offset < 0 {
		offset = 0
	}
	if offset >= len(s.Tracts) {
		return nil
	}
	end := len(s.Tracts)
	if limit > 0 && offset+limit < end {
		end = offset + limit
	}
	return s.Tracts[offset:end]
}

// Store publishes snapshots to concurrent readers. Current returns nil
// until the first Publish, which readiness checks use to hold traffic off
// an empty service.
type Store struct {
	current atomic.Pointer[Snapshot]
}

// NewStore returns an empty store.
func NewStore() *Store {
	return &Store{}
}

// Current returns the most recently published snapshot, or nil before the
// first pipeline run completes.
func (s *Store) Current() *Snapshot {
	return s.current.Load()
}

// Publish swaps in a new snapshot. Readers holding the previous snapshot
// keep a consistent view until they drop it.
func (s *Store) Publish(snap *Snapshot) {
	s.current.Store(snap)
}
