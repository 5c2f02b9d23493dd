// Package sqlitestore persists the pipeline's snapshot to SQLite so a
// restarted service can serve the last build without re-ingesting the raw
// files. Missing values map to SQL NULL, never to zero.
package sqlitestore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/goccy/go-json"
	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/statatlas/statatlas/internal/artifact"
	"github.com/statatlas/statatlas/internal/domain"
	"github.com/statatlas/statatlas/internal/engine"
)

const schema = `
CREATE TABLE IF NOT EXISTS snapshot_meta (
	id              INTEGER PRIMARY KEY CHECK (id = 1),
	built_at        TEXT    NOT NULL,
	cdc_latest_year INTEGER NOT NULL,
	who_world_pm25  REAL,
	who_usa_pm25    REAL,
	who_ca_pm25     REAL,
	who_ca_no2      REAL
);

CREATE TABLE IF NOT EXISTS tracts (
	geoid                   TEXT PRIMARY KEY,
	tract_label             TEXT NOT NULL DEFAULT '',
	county_name             TEXT NOT NULL DEFAULT '',
	county_fips             TEXT NOT NULL DEFAULT '',
	population              REAL,
	centroid_lat            REAL,
	centroid_lon            REAL,
	drive_alone_share       REAL,
	transit_share           REAL,
	bike_share              REAL,
	walk_share              REAL,
	wfh_share               REAL,
	ces_score               REAL,
	pollution_score         REAL,
	traffic_score           REAL,
	asthma_rate             REAL,
	poverty_pct             REAL,
	hazard_risk_score       REAL,
	hazard_resilience_score REAL,
	ozone_days              REAL,
	pm25_person_days        REAL,
	pm25_annual_avg         REAL,
	ces3_score              REAL,
	active_commute_share    REAL,
	non_auto_share          REAL,
	walkability_index       REAL,
	car_dependency_index    REAL,
	lack_of_car_dependency  REAL,
	ces_score_delta         REAL,
	pm25_gap_who            REAL,
	quality_score           REAL,
	cluster_id              INTEGER NOT NULL,
	cluster_label           TEXT    NOT NULL
);

CREATE TABLE IF NOT EXISTS norms (
	geoid TEXT NOT NULL,
	col   TEXT NOT NULL,
	value REAL,
	PRIMARY KEY (geoid, col)
);

CREATE TABLE IF NOT EXISTS column_stats (
	col TEXT PRIMARY KEY,
	min REAL,
	max REAL
);

CREATE TABLE IF NOT EXISTS cluster_profiles (
	id                     INTEGER PRIMARY KEY,
	label                  TEXT    NOT NULL,
	tract_count            INTEGER NOT NULL,
	centroid               TEXT    NOT NULL,
	mean_pollution         REAL,
	mean_walkability       REAL,
	mean_non_auto_share    REAL,
	mean_asthma            REAL,
	mean_poverty           REAL,
	mean_hazard_risk       REAL,
	mean_hazard_resilience REAL,
	mean_ozone_days        REAL,
	mean_quality           REAL
);
`

// Store persists snapshots in a single SQLite file. It implements
// pipeline.Persister.
type Store struct {
	db     *sqlx.DB
	logger *slog.Logger
}

// Open opens (or creates) the database at path with WAL enabled and the
// schema applied.
func Open(path string, logger *slog.Logger) (*Store, error) {
	db, err := sqlx.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return &Store{db: db, logger: logger}, nil
}

// Close releases the database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// SaveSnapshot replaces the stored snapshot wholesale in one transaction,
// so a crash mid-save leaves the previous snapshot intact.
func (s *Store) SaveSnapshot(ctx context.Context, snap *artifact.Snapshot) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	for _, table := range []string{"snapshot_meta", "tracts", "norms", "column_stats", "cluster_profiles"} {
		if _, err := tx.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return fmt.Errorf("clear %s: %w", table, err)
		}
	}

	if err := saveMeta(ctx, tx, snap); err != nil {
		return err
	}
	for _, t := range snap.Tracts {
		if err := saveTract(ctx, tx, t); err != nil {
			return fmt.Errorf("save tract %s: %w", t.GEOID, err)
		}
	}
	for col, st := range snap.Stats {
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO column_stats (col, min, max) VALUES (?, ?, ?)",
			string(col), nullable(st.Min), nullable(st.Max)); err != nil {
			return fmt.Errorf("save stats %s: %w", col, err)
		}
	}
	for _, p := range snap.Profiles {
		if err := saveProfile(ctx, tx, p); err != nil {
			return fmt.Errorf("save profile %d: %w", p.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	s.logger.Info("snapshot persisted", "tracts", len(snap.Tracts), "profiles", len(snap.Profiles))
	return nil
}

func saveMeta(ctx context.Context, tx *sqlx.Tx, snap *artifact.Snapshot) error {
	var who domain.WHOContext
	cdcYear := 0
	if snap.Summary != nil {
		who = snap.Summary.WHO
		cdcYear = snap.Summary.CDCLatestYear
	}
	_, err := tx.ExecContext(ctx, `
		INSERT INTO snapshot_meta (id, built_at, cdc_latest_year, who_world_pm25, who_usa_pm25, who_ca_pm25, who_ca_no2)
		VALUES (1, ?, ?, ?, ?, ?, ?)`,
		snap.BuiltAt.UTC().Format(time.RFC3339Nano), cdcYear,
		nullable(who.WorldPM25Mean), nullable(who.USAPM25Mean),
		nullable(who.CaliforniaPM25Mean), nullable(who.CaliforniaNO2Mean))
	if err != nil {
		return fmt.Errorf("save meta: %w", err)
	}
	return nil
}

func saveTract(ctx context.Context, tx *sqlx.Tx, t *domain.Tract) error {
	if _, err := tx.NamedExecContext(ctx, `
		INSERT INTO tracts (
			geoid, tract_label, county_name, county_fips,
			population, centroid_lat, centroid_lon,
			drive_alone_share, transit_share, bike_share, walk_share, wfh_share,
			ces_score, pollution_score, traffic_score, asthma_rate, poverty_pct,
			hazard_risk_score, hazard_resilience_score,
			ozone_days, pm25_person_days, pm25_annual_avg, ces3_score,
			active_commute_share, non_auto_share, walkability_index,
			car_dependency_index, lack_of_car_dependency, ces_score_delta,
			pm25_gap_who, quality_score, cluster_id, cluster_label
		) VALUES (
			:geoid, :tract_label, :county_name, :county_fips,
			:population, :centroid_lat, :centroid_lon,
			:drive_alone_share, :transit_share, :bike_share, :walk_share, :wfh_share,
			:ces_score, :pollution_score, :traffic_score, :asthma_rate, :poverty_pct,
			:hazard_risk_score, :hazard_resilience_score,
			:ozone_days, :pm25_person_days, :pm25_annual_avg, :ces3_score,
			:active_commute_share, :non_auto_share, :walkability_index,
			:car_dependency_index, :lack_of_car_dependency, :ces_score_delta,
			:pm25_gap_who, :quality_score, :cluster_id, :cluster_label
		)`, newTractRow(t)); err != nil {
		return err
	}
	for _, col := range domain.Columns() {
		v, ok := t.Norms[col]
		if !ok {
			continue
		}
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO norms (geoid, col, value) VALUES (?, ?, ?)",
			t.GEOID, string(col), nullable(v)); err != nil {
			return err
		}
	}
	return nil
}

func saveProfile(ctx context.Context, tx *sqlx.Tx, p domain.ClusterProfile) error {
	centroid, err := json.Marshal(p.Centroid)
	if err != nil {
		return fmt.Errorf("encode centroid: %w", err)
	}
	_, err = tx.ExecContext(ctx, `
		INSERT INTO cluster_profiles (
			id, label, tract_count, centroid,
			mean_pollution, mean_walkability, mean_non_auto_share, mean_asthma,
			mean_poverty, mean_hazard_risk, mean_hazard_resilience, mean_ozone_days, mean_quality
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		p.ID, p.Label, p.TractCount, string(centroid),
		nullable(p.MeanPollution), nullable(p.MeanWalkability), nullable(p.MeanNonAutoShare),
		nullable(p.MeanAsthma), nullable(p.MeanPoverty), nullable(p.MeanHazardRisk),
		nullable(p.MeanHazardResilience), nullable(p.MeanOzoneDays), nullable(p.MeanQuality))
	return err
}

// LoadSnapshot rebuilds the last persisted snapshot. Returns (nil, nil)
// when nothing has been saved yet. The summary is recomputed from the
// stored tracts; it is derived data.
func (s *Store) LoadSnapshot(ctx context.Context) (*artifact.Snapshot, error) {
	var meta struct {
		BuiltAt       string   `db:"built_at"`
		CDCLatestYear int      `db:"cdc_latest_year"`
		WorldPM25     *float64 `db:"who_world_pm25"`
		USAPM25       *float64 `db:"who_usa_pm25"`
		CAPM25        *float64 `db:"who_ca_pm25"`
		CANO2         *float64 `db:"who_ca_no2"`
	}
	err := s.db.GetContext(ctx, &meta, "SELECT built_at, cdc_latest_year, who_world_pm25, who_usa_pm25, who_ca_pm25, who_ca_no2 FROM snapshot_meta WHERE id = 1")
	if err != nil {
		if isNoRows(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("load meta: %w", err)
	}
	builtAt, err := time.Parse(time.RFC3339Nano, meta.BuiltAt)
	if err != nil {
		return nil, fmt.Errorf("parse built_at: %w", err)
	}
	who := domain.WHOContext{
		WorldPM25Mean:      value(meta.WorldPM25),
		USAPM25Mean:        value(meta.USAPM25),
		CaliforniaPM25Mean: value(meta.CAPM25),
		CaliforniaNO2Mean:  value(meta.CANO2),
	}

	tracts, err := s.loadTracts(ctx)
	if err != nil {
		return nil, err
	}
	stats, err := s.loadStats(ctx)
	if err != nil {
		return nil, err
	}
	profiles, err := s.loadProfiles(ctx)
	if err != nil {
		return nil, err
	}

	summary := engine.BuildSummary(tracts, who, meta.CDCLatestYear, builtAt)
	return artifact.NewSnapshot(tracts, profiles, summary, stats, builtAt), nil
}

func (s *Store) loadTracts(ctx context.Context) ([]*domain.Tract, error) {
	var rows []tractRow
	if err := s.db.SelectContext(ctx, &rows, "SELECT * FROM tracts ORDER BY geoid"); err != nil {
		return nil, fmt.Errorf("load tracts: %w", err)
	}

	tracts := make([]*domain.Tract, len(rows))
	byGEOID := make(map[string]*domain.Tract, len(rows))
	for i := range rows {
		t := rows[i].toDomain()
		tracts[i] = t
		byGEOID[t.GEOID] = t
	}

	var norms []struct {
		GEOID string   `db:"geoid"`
		Col   string   `db:"col"`
		Value *float64 `db:"value"`
	}
	if err := s.db.SelectContext(ctx, &norms, "SELECT geoid, col, value FROM norms"); err != nil {
		return nil, fmt.Errorf("load norms: %w", err)
	}
	for _, n := range norms {
		if t, ok := byGEOID[n.GEOID]; ok {
			t.Norms[domain.Column(n.Col)] = value(n.Value)
		}
	}
	return tracts, nil
}

func (s *Store) loadStats(ctx context.Context) (map[domain.Column]domain.ColumnStats, error) {
	var rows []struct {
		Col string   `db:"col"`
		Min *float64 `db:"min"`
		Max *float64 `db:"max"`
	}
	if err := s.db.SelectContext(ctx, &rows, "SELECT col, min, max FROM column_stats"); err != nil {
		return nil, fmt.Errorf("load stats: %w", err)
	}
	stats := make(map[domain.Column]domain.ColumnStats, len(rows))
	for _, r := range rows {
		stats[domain.Column(r.Col)] = domain.ColumnStats{Min: value(r.Min), Max: value(r.Max)}
	}
	return stats, nil
}

func (s *Store) loadProfiles(ctx context.Context) ([]domain.ClusterProfile, error) {
	var rows []profileRow
	if err := s.db.SelectContext(ctx, &rows, "SELECT * FROM cluster_profiles ORDER BY id"); err != nil {
		return nil, fmt.Errorf("load profiles: %w", err)
	}
	profiles := make([]domain.ClusterProfile, len(rows))
	for i, r := range rows {
		p, err := r.toDomain()
		if err != nil {
			return nil, err
		}
		profiles[i] = p
	}
	return profiles, nil
}

func isNoRows(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}
