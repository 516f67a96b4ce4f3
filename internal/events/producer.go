package events

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
)

const producerName = "freshmart-core"

// Publisher emits order lifecycle events to Kafka. A nil Publisher is valid
// and drops everything, so callers never need to branch on configuration.
type Publisher struct {
	w     *kafka.Writer
	inbox chan kafka.Message
}

// NewPublisher returns nil when no brokers are configured.
func NewPublisher(brokers []string, topic string, buf int) *Publisher {
	if len(brokers) == 0 {
		return nil
	}
	return &Publisher{
		w: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Topic:        topic,
			Balancer:     &kafka.Hash{},
			RequiredAcks: kafka.RequireAll,
		},
		inbox: make(chan kafka.Message, buf),
	}
}

// Start drains the inbox until ctx is cancelled, then flushes what is
// already queued and closes the writer. The inbox is never closed: a Publish
// racing shutdown lands in a buffer nobody reads instead of panicking on a
// closed channel.
func (p *Publisher) Start(ctx context.Context) {
	if p == nil {
		return
	}
	go func() {
		for {
			select {
			case <-ctx.Done():
				for {
					select {
					case m := <-p.inbox:
						p.write(m)
					default:
						_ = p.w.Close()
						return
					}
				}
			case m := <-p.inbox:
				p.write(m)
			}
		}
	}()
}

func (p *Publisher) write(m kafka.Message) {
	if err := p.w.WriteMessages(context.Background(), m); err != nil {
		log.Printf("[Events] publish failed: %v", err)
	}
}

// Publish enqueues one enveloped event keyed by the correlation id so all
// events for one order land in the same partition.
func (p *Publisher) Publish(eventType, correlationID string, payload any) {
	if p == nil {
		return
	}
	env := Envelope{
		EventID:       uuid.NewString(),
		EventType:     eventType,
		EventVersion:  1,
		OccurredAt:    time.Now().UTC(),
		Producer:      producerName,
		CorrelationID: correlationID,
		Payload:       mustMarshal(payload),
	}
	value, err := json.Marshal(env)
	if err != nil {
		log.Printf("[Events] marshal failed: %v", err)
		return
	}
	msg := kafka.Message{
		Key:   []byte(correlationID),
		Value: value,
		Time:  time.Now(),
		Headers: []kafka.Header{
			{Key: "x-event-type", Value: []byte(eventType)},
			{Key: "x-event-version", Value: []byte("1")},
		},
	}
	select {
	case p.inbox <- msg:
	default:
		log.Printf("[Events] inbox full, dropping %s for %s", eventType, correlationID)
	}
}
