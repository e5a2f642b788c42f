package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	kafkago "github.com/segmentio/kafka-go"

	"github.com/couchcryptid/fire-risk-service/internal/config"
	"github.com/couchcryptid/fire-risk-service/internal/domain"
)

// AssessmentWriter produces risk assessment events to a Kafka topic.
// It implements session.Publisher.
type AssessmentWriter struct {
	writer *kafkago.Writer
	logger *slog.Logger
}

// NewAssessmentWriter creates a Kafka producer for the configured assessment topic.
func NewAssessmentWriter(cfg *config.Config, logger *slog.Logger) *AssessmentWriter {
	w := &kafkago.Writer{
		Addr:         kafkago.TCP(cfg.KafkaBrokers...),
		Topic:        cfg.KafkaAssessmentTopic,
		Balancer:     &kafkago.Hash{},
		RequiredAcks: kafkago.RequireAll,
		BatchTimeout: 50 * time.Millisecond,
	}
	return &AssessmentWriter{writer: w, logger: logger}
}

// Publish serializes and writes one assessment event. Events are keyed by
// session so a session's assessments stay ordered within a partition.
func (w *AssessmentWriter) Publish(ctx context.Context, event domain.AssessmentEvent) error {
	msg, err := serializeToMessage(event)
	if err != nil {
		return err
	}
	if err := w.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("write assessment event: %w", err)
	}
	w.logger.Debug("assessment published", "session_id", event.SessionID, "level", event.Level)
	return nil
}

func (w *AssessmentWriter) Close() error {
	return w.writer.Close()
}

// serializeToMessage marshals an AssessmentEvent into a Kafka message.
func serializeToMessage(event domain.AssessmentEvent) (kafkago.Message, error) {
	data, err := json.Marshal(event)
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("serialize assessment event: %w", err)
	}
	return kafkago.Message{
		Key:   []byte(event.SessionID),
		Value: data,
		Headers: []kafkago.Header{
			{Key: "risk_level", Value: []byte(event.Level)},
			{Key: "assessed_at", Value: []byte(event.AssessedAt.Format(time.RFC3339))},
		},
	}, nil
}
