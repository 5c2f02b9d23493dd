// Package kafkaexport streams scored tract records to a Kafka topic for
// downstream consumers (dashboards, warehouse loaders). The export is an
// optional, feature-flagged side channel; the snapshot remains the source
// of truth.
package kafkaexport

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/goccy/go-json"
	kafkago "github.com/segmentio/kafka-go"

	"github.com/statatlas/statatlas/internal/config"
	"github.com/statatlas/statatlas/internal/domain"
	"github.com/statatlas/statatlas/internal/observability"
)

// tractRecord is the export wire format: the fields downstream consumers
// key on, with missing values as JSON null.
type tractRecord struct {
	GEOID        string   `json:"geoid"`
	CountyName   string   `json:"county_name"`
	ClusterID    int      `json:"cluster_id"`
	ClusterLabel string   `json:"cluster_label"`
	Quality      *float64 `json:"quality_of_life_score"`
	Walkability  *float64 `json:"walkability_index"`
	Pollution    *float64 `json:"pollution_score"`
	HazardRisk   *float64 `json:"hazard_risk_score"`
}

// Writer produces tract records to the export topic. It implements
// pipeline.Exporter.
type Writer struct {
	writer  *kafkago.Writer
	metrics *observability.Metrics
	logger  *slog.Logger
}

// NewWriter creates a Kafka producer for the configured export topic.
func NewWriter(cfg config.KafkaConfig, metrics *observability.Metrics, logger *slog.Logger) *Writer {
	w := &kafkago.Writer{
		Addr:         kafkago.TCP(cfg.Brokers...),
		Topic:        cfg.Topic,
		Balancer:     &kafkago.LeastBytes{},
		RequiredAcks: kafkago.RequireAll,
	}
	return &Writer{writer: w, metrics: metrics, logger: logger}
}

// ExportTracts serializes and publishes every tract in a single
// WriteMessages call. Records are keyed by GEOID so compacted topics keep
// only the latest build per tract.
func (w *Writer) ExportTracts(ctx context.Context, tracts []*domain.Tract) error {
	if len(tracts) == 0 {
		return nil
	}
	msgs := make([]kafkago.Message, len(tracts))
	for i, t := range tracts {
		msg, err := serializeToMessage(t)
		if err != nil {
			w.metrics.ExportErrors.Inc()
			return err
		}
		msgs[i] = msg
	}
	if err := w.writer.WriteMessages(ctx, msgs...); err != nil {
		w.metrics.ExportErrors.Inc()
		return fmt.Errorf("write export messages: %w", err)
	}
	w.metrics.ExportedTracts.Add(float64(len(msgs)))
	w.logger.Info("tracts exported", "count", len(msgs), "topic", w.writer.Topic)
	return nil
}

func (w *Writer) Close() error {
	return w.writer.Close()
}

func serializeToMessage(t *domain.Tract) (kafkago.Message, error) {
	rec := tractRecord{
		GEOID:        t.GEOID,
		CountyName:   t.CountyName,
		ClusterID:    t.ClusterID,
		ClusterLabel: t.ClusterLabel,
		Quality:      exportValue(t.QualityOfLifeScore),
		Walkability:  exportValue(t.WalkabilityIndex),
		Pollution:    exportValue(t.PollutionScore),
		HazardRisk:   exportValue(t.HazardRiskScore),
	}
	data, err := json.Marshal(rec)
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("serialize tract %s: %w", t.GEOID, err)
	}
	return kafkago.Message{
		Key:   []byte(t.GEOID),
		Value: data,
		Headers: []kafkago.Header{
			{Key: "county", Value: []byte(t.CountyName)},
			{Key: "cluster_label", Value: []byte(t.ClusterLabel)},
		},
	}, nil
}

// exportValue maps the missing sentinel to JSON null.
func exportValue(v float64) *float64 {
	if domain.IsMissing(v) {
		return nil
	}
	return &v
}
