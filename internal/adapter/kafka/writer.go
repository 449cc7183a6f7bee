package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	kafkago "github.com/segmentio/kafka-go"

	"github.com/couchcryptid/air-demand-etl/internal/config"
	"github.com/couchcryptid/air-demand-etl/internal/domain"
)

// Writer publishes enriched district rows to a Kafka topic.
// It implements pipeline.BatchLoader.
type Writer struct {
	writer *kafkago.Writer
	logger *slog.Logger
}

// NewWriter creates a Kafka producer for the configured topic.
func NewWriter(cfg *config.Config, logger *slog.Logger) *Writer {
	w := &kafkago.Writer{
		Addr:         kafkago.TCP(cfg.KafkaBrokers...),
		Topic:        cfg.KafkaTopic,
		Balancer:     &kafkago.Hash{},
		RequiredAcks: kafkago.RequireAll,
	}
	return &Writer{writer: w, logger: logger}
}

// Name identifies the sink in logs.
func (w *Writer) Name() string { return "kafka" }

// LoadBatch serializes and publishes rows in a single WriteMessages call.
// Rows are keyed by district name so updates for a district land on the
// same partition.
func (w *Writer) LoadBatch(ctx context.Context, rows []domain.EnrichedRow) error {
	if len(rows) == 0 {
		return nil
	}
	msgs := make([]kafkago.Message, len(rows))
	for i := range rows {
		msg, err := serializeToMessage(rows[i])
		if err != nil {
			return err
		}
		msgs[i] = msg
	}
	if err := w.writer.WriteMessages(ctx, msgs...); err != nil {
		return fmt.Errorf("publish %d rows to %s: %w", len(msgs), w.writer.Topic, err)
	}
	w.logger.Info("published enriched rows", "topic", w.writer.Topic, "count", len(msgs))
	return nil
}

func (w *Writer) Close() error {
	return w.writer.Close()
}

// serializeToMessage marshals an EnrichedRow into a Kafka message.
func serializeToMessage(row domain.EnrichedRow) (kafkago.Message, error) {
	data, err := json.Marshal(row)
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("serialize enriched row: %w", err)
	}
	headers := []kafkago.Header{
		{Key: "geography", Value: []byte(row.Geography)},
	}
	if row.Region != nil {
		headers = append(headers, kafkago.Header{Key: "region", Value: []byte(*row.Region)})
	}
	return kafkago.Message{
		Key:     []byte(row.Name),
		Value:   data,
		Headers: headers,
	}, nil
}
