package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	kafkago "github.com/segmentio/kafka-go"

	"github.com/bluemoonski/bluemoon-data/internal/config"
)

// KafkaPublisher produces delivery messages to the notification topic.
// It implements Publisher.
type KafkaPublisher struct {
	writer *kafkago.Writer
	logger *slog.Logger
}

// NewKafkaPublisher creates a producer for the configured delivery topic.
func NewKafkaPublisher(cfg *config.Config, logger *slog.Logger) *KafkaPublisher {
	w := &kafkago.Writer{
		Addr:         kafkago.TCP(cfg.KafkaBrokers...),
		Topic:        cfg.KafkaTopic,
		Balancer:     &kafkago.LeastBytes{},
		RequiredAcks: kafkago.RequireAll,
	}
	return &KafkaPublisher{writer: w, logger: logger}
}

// Publish serializes the message and writes it to the delivery topic. The
// returned delivery ID doubles as the Kafka message key so downstream
// consumers can deduplicate.
func (p *KafkaPublisher) Publish(ctx context.Context, msg Message) (string, error) {
	deliveryID := uuid.NewString()

	data, err := json.Marshal(msg)
	if err != nil {
		return "", fmt.Errorf("serialize message: %w", err)
	}

	err = p.writer.WriteMessages(ctx, kafkago.Message{
		Key:   []byte(deliveryID),
		Value: data,
		Headers: []kafkago.Header{
			{Key: "kind", Value: []byte(msg.Kind)},
			{Key: "topic", Value: []byte(msg.Topic)},
		},
	})
	if err != nil {
		return "", fmt.Errorf("publish %s message: %w", msg.Kind, err)
	}

	p.logger.Info("Message published",
		"kind", msg.Kind, "resort", msg.ResortSlug, "delivery_id", deliveryID)
	return deliveryID, nil
}

// Close flushes and closes the underlying writer.
func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}
