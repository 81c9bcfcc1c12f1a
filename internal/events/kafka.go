package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/segmentio/kafka-go"
)

// Publisher is what the reconciliation flow needs from the event bus.
type Publisher interface {
	Publish(ctx context.Context, topic, key string, evt Envelope) error
}

type Producer struct{ w *kafka.Writer }

func NewProducer(brokers []string) *Producer {
	if len(brokers) == 0 {
		brokers = []string{"localhost:9092"}
	}
	return &Producer{
		w: &kafka.Writer{
			Addr:                   kafka.TCP(brokers...),
			Balancer:               &kafka.Hash{}, // partition by session reference
			AllowAutoTopicCreation: true,
			RequiredAcks:           kafka.RequireOne,
		},
	}
}

func (p *Producer) Close() error { return p.w.Close() }

// Envelope is the event schema published on the reservations topic.
type Envelope struct {
	EventType    string          `json:"eventType"`
	EventVersion string          `json:"eventVersion"`
	OccurredAt   time.Time       `json:"occurredAt"`
	AggregateID  string          `json:"aggregateId"` // session reference
	Data         json.RawMessage `json:"data"`
}

// NewEnvelope builds a v1 envelope around data.
func NewEnvelope(eventType, aggregateID string, data any) (Envelope, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return Envelope{}, fmt.Errorf("encode %s payload: %w", eventType, err)
	}
	return Envelope{
		EventType:    eventType,
		EventVersion: "v1",
		AggregateID:  aggregateID,
		Data:         raw,
	}, nil
}

// Publish writes a single message to Kafka. key keeps one attempt's events
// on one partition.
func (p *Producer) Publish(ctx context.Context, topic, key string, evt Envelope) error {
	evt.OccurredAt = time.Now().UTC()
	val, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("encode %s envelope: %w", evt.EventType, err)
	}
	return p.w.WriteMessages(ctx, kafka.Message{
		Topic: topic,
		Key:   []byte(key),
		Value: val,
	})
}

// LogPublisher stands in for Kafka in local runs.
type LogPublisher struct{}

func (LogPublisher) Publish(_ context.Context, topic, key string, evt Envelope) error {
	log.Printf("[%s] key=%s type=%s data=%s", topic, key, evt.EventType, string(evt.Data))
	return nil
}
