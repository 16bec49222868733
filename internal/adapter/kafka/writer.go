package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/couchcryptid/baidu-place-harvester/internal/config"
	"github.com/couchcryptid/baidu-place-harvester/internal/domain"
	kafkago "github.com/segmentio/kafka-go"
)

// Writer produces place records to a Kafka topic.
// It implements harvest.BatchLoader.
type Writer struct {
	writer *kafkago.Writer
	logger *slog.Logger
}

// NewWriter creates a Kafka producer for the configured places topic.
func NewWriter(cfg *config.Config, logger *slog.Logger) *Writer {
	w := &kafkago.Writer{
		Addr:         kafkago.TCP(cfg.KafkaBrokers...),
		Topic:        cfg.KafkaTopic,
		Balancer:     &kafkago.Hash{},
		RequiredAcks: kafkago.RequireAll,
	}
	return &Writer{writer: w, logger: logger}
}

// LoadBatch serializes and publishes place records in a single
// WriteMessages call. Records are keyed by place uid so updates to the same
// place land on the same partition.
func (w *Writer) LoadBatch(ctx context.Context, records []domain.PlaceRecord) error {
	if len(records) == 0 {
		return nil
	}
	msgs := make([]kafkago.Message, len(records))
	for i := range records {
		msg, err := serializeToMessage(records[i])
		if err != nil {
			return err
		}
		msgs[i] = msg
	}
	if err := w.writer.WriteMessages(ctx, msgs...); err != nil {
		return fmt.Errorf("write %d places: %w", len(msgs), err)
	}
	w.logger.Debug("places written", "count", len(msgs), "topic", w.writer.Topic)
	return nil
}

func (w *Writer) Close() error {
	return w.writer.Close()
}

// serializeToMessage marshals a PlaceRecord into a Kafka message.
func serializeToMessage(rec domain.PlaceRecord) (kafkago.Message, error) {
	data, err := json.Marshal(rec)
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("serialize place record: %w", err)
	}
	var key []byte
	if uid := rec.Place.UID(); uid != "" {
		key = []byte(uid)
	}
	return kafkago.Message{
		Key:   key,
		Value: data,
		Headers: []kafkago.Header{
			{Key: "query", Value: []byte(rec.Query)},
			{Key: "harvested_at", Value: []byte(rec.HarvestedAt.Format(time.RFC3339))},
		},
	}, nil
}
