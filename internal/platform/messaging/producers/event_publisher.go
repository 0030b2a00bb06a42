package producers

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/segmentio/kafka-go"

	"github.com/sportsbook-betting-core/internal/config"
)

// EventMessageProducer publishes domain events (bet placed, bet settled,
// wallet movements) to the betting events topic. Messages are keyed by
// aggregate id so events for one wallet or bet stay ordered within a
// partition.
type EventMessageProducer struct {
	logger *slog.Logger
	writer KafkaWriter
	topic  string
}

func NewEventMessageProducer(ctx context.Context, logger *slog.Logger, cfg *config.KafkaConfig) (*EventMessageProducer, error) {
	if cfg.EventsTopic == "" {
		return nil, fmt.Errorf("kafka events topic is not configured")
	}

	conn, err := kafka.Dial("tcp", cfg.Brokers)
	if err != nil {
		return nil, fmt.Errorf("failed to dial kafka for event producer: %w", err)
	}
	defer conn.Close()

	err = createKafkaTopicIfNotExists(conn, cfg.EventsTopic, cfg.NumPartitions, cfg.ReplicationFactor, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to ensure events topic %s exists for event producer: %w", cfg.EventsTopic, err)
	}

	writer := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers),
		Topic:        cfg.EventsTopic,
		Balancer:     &kafka.Hash{}, // Keep per-aggregate ordering
		RequiredAcks: kafka.RequireOne,
		Async:        true,
		WriteTimeout: cfg.MaxWait,
		Completion: func(messages []kafka.Message, err error) {
			if err != nil {
				logger.Error("Failed to write event messages asynchronously", "topic", cfg.EventsTopic, "error", err, "count", len(messages))
			} else {
				logger.Debug("Successfully wrote event messages asynchronously", "topic", cfg.EventsTopic, "count", len(messages))
			}
		},
	}

	return &EventMessageProducer{
		logger: logger,
		writer: writer,
		topic:  cfg.EventsTopic,
	}, nil
}

func (p *EventMessageProducer) Publish(ctx context.Context, key string, value interface{}) error {
	jsonValue, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to marshal message value for event producer: %w", err)
	}

	msg := kafka.Message{
		Key:   []byte(key),
		Value: jsonValue,
	}

	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		p.logger.Error("Failed to publish event",
			"topic", p.topic,
			"key", key,
			"error", err,
		)
		return fmt.Errorf("failed to publish event to %s: %w", p.topic, err)
	}

	p.logger.Debug("Published event",
		"topic", p.topic,
		"key", key,
	)
	return nil
}

func (p *EventMessageProducer) Close() error {
	p.logger.Info("Closing event Kafka message producer", "topic", p.topic)
	if err := p.writer.Close(); err != nil {
		return fmt.Errorf("failed to close event kafka writer for topic %s: %w", p.topic, err)
	}
	return nil
}
