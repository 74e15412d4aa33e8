package producers

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/segmentio/kafka-go"

	"github.com/platform-finance-ledger/internal/config"
)

// InvoiceReceivedProducer publishes carrier invoice webhook payloads onto the
// invoice topic, where the settlement worker picks them up for ingestion.
type InvoiceReceivedProducer struct {
	logger *slog.Logger
	writer KafkaWriter // Interface for testability
	topic  string
}

// NewInvoiceReceivedProducer creates the webhook-side producer and ensures
// the invoice topic exists.
func NewInvoiceReceivedProducer(ctx context.Context, logger *slog.Logger, cfg *config.KafkaConfig) (*InvoiceReceivedProducer, error) {
	if cfg.InvoiceTopic == "" {
		return nil, fmt.Errorf("kafka invoice topic is not configured")
	}

	conn, err := kafka.Dial("tcp", cfg.Brokers)
	if err != nil {
		return nil, fmt.Errorf("failed to dial kafka for invoice producer: %w", err)
	}
	defer conn.Close()

	err = createKafkaTopicIfNotExists(conn, cfg.InvoiceTopic, cfg.NumPartitions, cfg.ReplicationFactor, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to ensure invoice topic %s exists: %w", cfg.InvoiceTopic, err)
	}

	writer := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers),
		Topic:        cfg.InvoiceTopic,
		Balancer:     &kafka.LeastBytes{},
		RequiredAcks: kafka.RequireOne,
		Async:        true, // Using async for high throughput
		WriteTimeout: cfg.MaxWait,
		Completion: func(messages []kafka.Message, err error) {
			if err != nil {
				logger.Error("Failed to write messages asynchronously", "topic", cfg.InvoiceTopic, "error", err, "count", len(messages))
			} else {
				logger.Debug("Successfully wrote messages asynchronously", "topic", cfg.InvoiceTopic, "count", len(messages))
			}
		},
	}

	return &InvoiceReceivedProducer{
		logger: logger,
		writer: writer,
		topic:  cfg.InvoiceTopic,
	}, nil
}

// Publish writes one invoice payload keyed by its carrier/invoice natural key
// so redeliveries of the same invoice land on the same partition.
func (p *InvoiceReceivedProducer) Publish(ctx context.Context, key string, value interface{}) error {
	jsonValue, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to marshal invoice message value: %w", err)
	}

	msg := kafka.Message{
		Key:   []byte(key),
		Value: jsonValue,
	}

	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		p.logger.Error("Failed to publish invoice message",
			"topic", p.topic,
			"key", key,
			"error", err,
		)
		return fmt.Errorf("failed to publish invoice message to %s: %w", p.topic, err)
	}

	p.logger.Debug("Published invoice message",
		"topic", p.topic,
		"key", key,
	)
	return nil
}

func (p *InvoiceReceivedProducer) Close() error {
	p.logger.Info("Closing invoice Kafka message producer", "topic", p.topic)
	if err := p.writer.Close(); err != nil {
		return fmt.Errorf("failed to close invoice kafka writer for topic %s: %w", p.topic, err)
	}
	return nil
}
