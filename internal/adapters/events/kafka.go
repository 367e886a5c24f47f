// Package events publishes challenge lifecycle events, to Kafka in
// production and to the log otherwise.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/segmentio/kafka-go"

	"github.com/alejandrodnm/propbet/internal/domain"
	"github.com/alejandrodnm/propbet/internal/ports"
)

// messageWriter is the part of *kafka.Writer the publisher uses.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaPublisher writes one message per event, keyed by challenge ID so a
// challenge's events stay ordered within a partition.
type KafkaPublisher struct {
	w messageWriter
}

var _ ports.EventPublisher = (*KafkaPublisher)(nil)

// NewWriter builds a writer for a comma-separated broker list.
func NewWriter(brokers, topic string) *kafka.Writer {
	return &kafka.Writer{
		Addr:                   kafka.TCP(strings.Split(brokers, ",")...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireOne,
		AllowAutoTopicCreation: true,
	}
}

func NewKafkaPublisher(w messageWriter) *KafkaPublisher {
	return &KafkaPublisher{w: w}
}

func (p *KafkaPublisher) Publish(ctx context.Context, event domain.ChallengeEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("events.Publish: marshal %s: %w", event.Type, err)
	}
	msg := kafka.Message{
		Key:   []byte(event.ChallengeID),
		Value: payload,
		Time:  event.OccurredAt,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(event.Type)},
			{Key: "event_id", Value: []byte(event.ID)},
		},
	}
	if err := p.w.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("events.Publish: write %s for %s: %w", event.Type, event.ChallengeID, err)
	}
	return nil
}

func (p *KafkaPublisher) Close() error {
	return p.w.Close()
}
