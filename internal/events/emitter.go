package events

import (
	"time"

	"github.com/google/uuid"
	kafkago "github.com/segmentio/kafka-go"

	kafkax "github.com/hendraw/partshub/internal/kafka"
)

// Emitter publishes versioned envelopes to the topic registered for each
// event type. Workflows call it after their transaction commits; delivery is
// best-effort and asynchronous.
type Emitter interface {
	Emit(eventType, orderID string, payload any)
}

type KafkaEmitter struct {
	Service   string
	Producers map[string]*kafkax.Producer // topic -> producer
}

var topicFor = map[string]string{
	EventOrderCreated:     TopicOrderCreated,
	EventOrderCompleted:   TopicOrderCompleted,
	EventPaymentCompleted: TopicPaymentCompleted,
}

func (e *KafkaEmitter) Emit(eventType, orderID string, payload any) {
	topic, ok := topicFor[eventType]
	if !ok {
		return
	}
	p, ok := e.Producers[topic]
	if !ok {
		return
	}
	ev := Envelope{
		EventID:       uuid.NewString(),
		EventType:     eventType,
		EventVersion:  1,
		OccurredAt:    time.Now().UTC(),
		Producer:      e.Service,
		CorrelationID: orderID,
		Payload:       kafkax.MustMarshal(payload),
	}
	p.Publish(PartitionKey(orderID), kafkax.MustMarshal(ev),
		kafkago.Header{Key: "x-event-type", Value: []byte(eventType)},
		kafkago.Header{Key: "x-event-version", Value: []byte("1")},
	)
}

// NopEmitter drops every event. Used where the bus is not wired.
type NopEmitter struct{}

func (NopEmitter) Emit(string, string, any) {}
