package producers

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/segmentio/kafka-go"
	"github.com/unifarm-balance-ledger/internal/config"
)

// DepositEventProducer publishes verified TON deposit events from the API
// gateway to the deposit topic for asynchronous, idempotent application.
type DepositEventProducer struct {
	logger *slog.Logger
	writer KafkaWriter // Interface for testability
	topic  string
}

// NewDepositEventProducer creates the gateway-side producer and ensures the
// deposit topic exists.
func NewDepositEventProducer(ctx context.Context, logger *slog.Logger, cfg *config.KafkaConfig) (*DepositEventProducer, error) {
	if cfg.DepositTopic == "" {
		return nil, fmt.Errorf("kafka deposit topic is not configured")
	}

	conn, err := kafka.Dial("tcp", cfg.Brokers)
	if err != nil {
		return nil, fmt.Errorf("failed to dial kafka for deposit event producer: %w", err)
	}
	defer conn.Close()

	err = createKafkaTopicIfNotExists(conn, cfg.DepositTopic, cfg.NumPartitions, cfg.ReplicationFactor, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to ensure deposit topic %s exists: %w", cfg.DepositTopic, err)
	}

	writer := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers),
		Topic:        cfg.DepositTopic,
		Balancer:     &kafka.Hash{}, // Key by user id so one user's deposits stay ordered
		RequiredAcks: kafka.RequireOne,
		Async:        true, // Using async for high throughput
		WriteTimeout: cfg.MaxWait,
		Completion: func(messages []kafka.Message, err error) {
			if err != nil {
				logger.Error("Failed to write messages asynchronously", "topic", cfg.DepositTopic, "error", err, "count", len(messages))
			} else {
				logger.Debug("Successfully wrote messages asynchronously", "topic", cfg.DepositTopic, "count", len(messages))
			}
		},
	}

	return &DepositEventProducer{
		logger: logger,
		writer: writer,
		topic:  cfg.DepositTopic,
	}, nil
}

func (p *DepositEventProducer) Publish(ctx context.Context, key string, value interface{}) error {
	jsonValue, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to marshal message value for deposit event producer: %w", err)
	}

	msg := kafka.Message{
		Key:   []byte(key),
		Value: jsonValue,
	}

	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		p.logger.Error("Failed to publish message via deposit event producer",
			"topic", p.topic,
			"key", key,
			"error", err,
		)
		return fmt.Errorf("failed to publish message to %s via deposit event producer: %w", p.topic, err)
	}

	p.logger.Debug("Published message via deposit event producer",
		"topic", p.topic,
		"key", key,
	)
	return nil
}

func (p *DepositEventProducer) Close() error {
	if p.writer == nil {
		return nil
	}
	p.logger.Info("Closing deposit event Kafka producer", "topic", p.topic)
	if err := p.writer.Close(); err != nil {
		return fmt.Errorf("failed to close kafka writer for topic %s: %w", p.topic, err)
	}
	return nil
}
