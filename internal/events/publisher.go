// Package events announces completed uploads to downstream consumers.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/claude/healthexport/internal/models"
	"github.com/segmentio/kafka-go"
)

// TypeDatasetIngested is the event type emitted after an upload is stored.
const TypeDatasetIngested = "dataset.ingested"

// DatasetIngested describes one stored upload.
type DatasetIngested struct {
	Type       string        `json:"type"`
	UserID     string        `json:"userId"`
	UploadID   string        `json:"uploadId"`
	Inserted   int           `json:"insertedCount"`
	Counts     models.Counts `json:"counts"`
	OccurredAt time.Time     `json:"occurredAt"`
}

// Publisher delivers events.
type Publisher interface {
	Publish(ctx context.Context, ev DatasetIngested) error
	Close() error
}

// KafkaPublisher writes events to one topic, keyed by user so a user's
// uploads stay ordered within a partition.
type KafkaPublisher struct {
	mu     sync.Mutex
	writer *kafka.Writer
}

// NewKafkaPublisher creates a publisher for topic on brokers.
func NewKafkaPublisher(brokers []string, topic string) *KafkaPublisher {
	return &KafkaPublisher{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Topic:        topic,
			Balancer:     &kafka.Hash{},
			RequiredAcks: kafka.RequireAll,
			Compression:  kafka.Snappy,
			Async:        false,
		},
	}
}

func (p *KafkaPublisher) Publish(ctx context.Context, ev DatasetIngested) error {
	msg, err := Message(ev)
	if err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("publishing %s: %w", ev.Type, err)
	}
	return nil
}

func (p *KafkaPublisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.writer.Close()
}

// Message encodes ev as a Kafka message keyed by user id.
func Message(ev DatasetIngested) (kafka.Message, error) {
	if ev.Type == "" {
		ev.Type = TypeDatasetIngested
	}
	body, err := json.Marshal(ev)
	if err != nil {
		return kafka.Message{}, fmt.Errorf("encoding event: %w", err)
	}
	return kafka.Message{
		Key:   []byte(ev.UserID),
		Value: body,
		Time:  ev.OccurredAt,
		Headers: []kafka.Header{
			{Key: "type", Value: []byte(ev.Type)},
		},
	}, nil
}

// Noop drops every event.
type Noop struct{}

func (Noop) Publish(context.Context, DatasetIngested) error { return nil }
func (Noop) Close() error                                   { return nil }
