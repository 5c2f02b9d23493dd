package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/jonboulle/clockwork"
	"github.com/spf13/cobra"

	"github.com/statatlas/statatlas/internal/adapter/api"
	"github.com/statatlas/statatlas/internal/adapter/ingest"
	"github.com/statatlas/statatlas/internal/adapter/kafkaexport"
	"github.com/statatlas/statatlas/internal/adapter/sqlitestore"
	"github.com/statatlas/statatlas/internal/artifact"
	"github.com/statatlas/statatlas/internal/config"
	"github.com/statatlas/statatlas/internal/engine"
	"github.com/statatlas/statatlas/internal/observability"
	"github.com/statatlas/statatlas/internal/pipeline"
)

func main() {
	root := &cobra.Command{
		Use:           "statatlas",
		Short:         "Census tract environmental scoring service",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(buildCmd(), serveCmd())

	if err := root.Execute(); err != nil {
		slog.Error("command failed", "error", err)
		os.Exit(1)
	}
}

func buildCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "build",
		Short: "Run one pipeline build and persist the snapshot",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			logger := observability.NewLogger(cfg.LogLevel, cfg.LogFormat)
			metrics := observability.NewMetrics()

			app, err := newApp(cfg, logger, metrics)
			if err != nil {
				return err
			}
			defer app.close(logger)

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			return app.pipeline.Run(ctx)
		},
	}
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Build a snapshot and serve it over HTTP",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			logger := observability.NewLogger(cfg.LogLevel, cfg.LogFormat)
			metrics := observability.NewMetrics()

			app, err := newApp(cfg, logger, metrics)
			if err != nil {
				return err
			}
			defer app.close(logger)

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			// Serve the last persisted snapshot, if any, while the fresh
			// build runs.
			if snap, err := app.db.LoadSnapshot(ctx); err != nil {
				logger.Warn("could not load persisted snapshot", "error", err)
			} else if snap != nil {
				app.pipeline.Publish(snap)
				logger.Info("persisted snapshot restored", "tracts", len(snap.Tracts), "built_at", snap.BuiltAt)
			}

			srv := api.NewServer(cfg.HTTPAddr, app.store, app.pipeline, metrics, logger)

			go func() {
				if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					logger.Error("http server error", "error", err)
				}
			}()

			go func() {
				if err := app.pipeline.Run(ctx); err != nil {
					logger.Error("pipeline error", "error", err)
				}
			}()

			<-ctx.Done()
			logger.Info("shutting down")

			shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
			defer cancel()

			if err := srv.Shutdown(shutdownCtx); err != nil {
				logger.Error("http server shutdown error", "error", err)
			}
			logger.Info("shutdown complete")
			return nil
		},
	}
}

// app bundles the wired adapters shared by the build and serve commands.
type app struct {
	db       *sqlitestore.Store
	exporter *kafkaexport.Writer // nil when export is disabled
	store    *artifact.Store
	pipeline *pipeline.Pipeline
}

func newApp(cfg *config.Config, logger *slog.Logger, metrics *observability.Metrics) (*app, error) {
	db, err := sqlitestore.Open(cfg.Data.DatabasePath, logger)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	var exporter *kafkaexport.Writer
	if cfg.Kafka.Enabled {
		exporter = kafkaexport.NewWriter(cfg.Kafka, metrics, logger)
		logger.Info("kafka export enabled", "topic", cfg.Kafka.Topic, "brokers", cfg.Kafka.Brokers)
	} else {
		logger.Info("kafka export disabled")
	}

	loader := ingest.NewFileLoader(cfg.Data.RawDir, cfg.Data.WHOPath, logger)
	store := artifact.NewStore()

	// The Exporter interface holds a typed nil if built from a nil *Writer,
	// so only pass it when enabled.
	var exp pipeline.Exporter
	if exporter != nil {
		exp = exporter
	}

	p := pipeline.New(loader, db, exp, store,
		engine.KMeansConfig{K: cfg.Cluster.Count, Seed: cfg.Cluster.Seed},
		clockwork.NewRealClock(), logger, metrics)

	return &app{db: db, exporter: exporter, store: store, pipeline: p}, nil
}

func (a *app) close(logger *slog.Logger) {
	if a.exporter != nil {
		if err := a.exporter.Close(); err != nil {
			logger.Error("kafka writer close error", "error", err)
		}
	}
	if err := a.db.Close(); err != nil {
		logger.Error("database close error", "error", err)
	}
}
