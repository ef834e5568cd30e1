// Package eventpub publishes transaction events after they are committed.
package eventpub

import (
	"context"
	"encoding/json"
	"strconv"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/go-petr/pet-wallet/internal/domain"
)

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Kafka writes one message per event, keyed by account id so that the events
// of an account stay ordered within a partition.
type Kafka struct {
	writer messageWriter
}

// NewKafka returns a Kafka publisher writing to topic.
func NewKafka(brokers []string, topic string) *Kafka {
	return &Kafka{
		writer: &kafka.Writer{
			Addr:                   kafka.TCP(brokers...),
			Topic:                  topic,
			Balancer:               &kafka.Hash{},
			RequiredAcks:           kafka.RequireOne,
			MaxAttempts:            3,
			BatchTimeout:           10 * time.Millisecond,
			WriteTimeout:           5 * time.Second,
			AllowAutoTopicCreation: true,
		},
	}
}

// Publish encodes event as JSON and writes it.
func (k *Kafka) Publish(ctx context.Context, event domain.TransactionEvent) error {
	msg, err := Message(event)
	if err != nil {
		return err
	}

	return k.writer.WriteMessages(ctx, msg)
}

// Close flushes pending messages and closes the writer.
func (k *Kafka) Close() error {
	return k.writer.Close()
}

// Message builds the kafka message carrying event.
func Message(event domain.TransactionEvent) (kafka.Message, error) {
	data, err := json.Marshal(event)
	if err != nil {
		return kafka.Message{}, err
	}

	return kafka.Message{
		Key:   []byte(strconv.FormatInt(event.AccountID, 10)),
		Value: data,
		Time:  event.CreatedAt,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(event.Type)},
		},
	}, nil
}

// Nop drops every event.
type Nop struct{}

// Publish does nothing.
func (Nop) Publish(context.Context, domain.TransactionEvent) error { return nil }

// Close does nothing.
func (Nop) Close() error { return nil }
