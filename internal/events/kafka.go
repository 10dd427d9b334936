package events

import (
	"context"
	"encoding/json"
	"time"

	"campushub/server/internal/models"

	"github.com/segmentio/kafka-go"
)

// messageWriter is the part of kafka.Writer the publisher uses
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaPublisher writes events to a topic keyed by group, so every group
// keeps its order within one partition.
type KafkaPublisher struct {
	writer messageWriter
}

// NewKafkaPublisher creates a producer for topic
func NewKafkaPublisher(brokers []string, topic string) *KafkaPublisher {
	w := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireOne,
		BatchTimeout: 50 * time.Millisecond,
	}
	return &KafkaPublisher{writer: w}
}

// MessageCreated implements Publisher
func (p *KafkaPublisher) MessageCreated(ctx context.Context, msg *models.Message) error {
	groupKey := msg.GroupKey()
	b, err := json.Marshal(Envelope{
		Type:       TypeMessageCreated,
		OccurredAt: msg.CreatedAt,
		GroupID:    groupKey,
		Message:    msg,
	})
	if err != nil {
		return err
	}

	return p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(groupKey),
		Value: b,
		Time:  msg.CreatedAt,
		Headers: []kafka.Header{
			{Key: "event-type", Value: []byte(TypeMessageCreated)},
		},
	})
}

// Close flushes pending writes
func (p *KafkaPublisher) Close() error {
	if p.writer == nil {
		return nil
	}
	return p.writer.Close()
}
