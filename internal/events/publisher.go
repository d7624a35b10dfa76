// Package events publishes run lifecycle events to Kafka so downstream
// consumers can react to finished synthesis runs.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/segmentio/kafka-go"
)

// Event types emitted on the run topic.
const (
	EventRunCompleted = "run.completed"
	EventRunRefused   = "run.refused"
	EventRunFailed    = "run.failed"
)

// RunEvent is the message body published for a terminal run. The payload is
// the exported snapshot document.
type RunEvent struct {
	EventType string          `json:"event_type"`
	RunID     uuid.UUID       `json:"run_id"`
	Query     string          `json:"query"`
	Status    string          `json:"status"`
	Payload   json.RawMessage `json:"payload,omitempty"`
	EmittedAt time.Time       `json:"emitted_at"`
}

// Publisher sends run events. The NopPublisher is used when Kafka is
// disabled so callers never branch on configuration.
type Publisher interface {
	PublishRunEvent(ctx context.Context, event RunEvent) error
	Close() error
}

// Config holds Kafka publisher configuration.
type Config struct {
	// Brokers is the list of Kafka broker addresses.
	Brokers []string
	// Topic is the topic run events are published to.
	Topic string
	// BatchSize is the maximum number of messages per batch.
	BatchSize int
	// BatchTimeout is the maximum time to wait for a batch to fill.
	BatchTimeout time.Duration
}

// KafkaPublisher publishes run events to a Kafka topic.
type KafkaPublisher struct {
	writer *kafka.Writer
	logger zerolog.Logger
}

var _ Publisher = (*KafkaPublisher)(nil)

// NewKafkaPublisher creates a publisher writing to the configured topic.
// Messages are keyed by run ID so all events for a run land on one partition.
func NewKafkaPublisher(cfg Config, logger zerolog.Logger) (*KafkaPublisher, error) {
	if len(cfg.Brokers) == 0 {
		return nil, fmt.Errorf("at least one broker is required")
	}
	if cfg.Topic == "" {
		return nil, fmt.Errorf("topic is required")
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 100
	}
	if cfg.BatchTimeout <= 0 {
		cfg.BatchTimeout = time.Second
	}

	writer := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Topic:        cfg.Topic,
		Balancer:     &kafka.Hash{},
		BatchSize:    cfg.BatchSize,
		BatchTimeout: cfg.BatchTimeout,
		RequiredAcks: kafka.RequireOne,
	}

	return &KafkaPublisher{
		writer: writer,
		logger: logger.With().Str("component", "event-publisher").Logger(),
	}, nil
}

// PublishRunEvent sends one run event. The caller treats failures as
// advisory; a lost event never fails a run.
func (p *KafkaPublisher) PublishRunEvent(ctx context.Context, event RunEvent) error {
	if event.EmittedAt.IsZero() {
		event.EmittedAt = time.Now().UTC()
	}

	value, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal run event: %w", err)
	}

	msg := kafka.Message{
		Key:   []byte(event.RunID.String()),
		Value: value,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(event.EventType)},
		},
	}

	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("failed to publish %s event: %w", event.EventType, err)
	}

	p.logger.Debug().
		Str("event_type", event.EventType).
		Str("run_id", event.RunID.String()).
		Msg("run event published")
	return nil
}

// Close flushes pending messages and releases the writer.
func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}

// NopPublisher discards all events. Used when Kafka is disabled.
type NopPublisher struct{}

var _ Publisher = (*NopPublisher)(nil)

func (NopPublisher) PublishRunEvent(context.Context, RunEvent) error { return nil }
func (NopPublisher) Close() error                                    { return nil }

// EventTypeForStatus maps a terminal run status to its event type.
func EventTypeForStatus(status string) string {
	switch status {
	case "completed":
		return EventRunCompleted
	case "refused":
		return EventRunRefused
	default:
		return EventRunFailed
	}
}
