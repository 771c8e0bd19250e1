package broker

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"time"

	"github.com/quocanhngo/lighttalk/internal/model"
	"github.com/segmentio/kafka-go"
)

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// MirroredEvent is the record written to Kafka for every published event
type MirroredEvent struct {
	Destination string          `json:"destination"`
	Event       model.ChatEvent `json:"event"`
	PublishedAt time.Time       `json:"published_at"`
}

// KafkaMirror forwards events to the next publisher and copies them to a
// Kafka topic for downstream consumers (analytics, search indexing). The
// mirror never fails a publish.
type KafkaMirror struct {
	next   Publisher
	writer messageWriter
	logger *slog.Logger
}

// NewKafkaMirror writes asynchronously; delivery errors surface in the logs only
func NewKafkaMirror(next Publisher, brokers, topic string, logger *slog.Logger) *KafkaMirror {
	w := &kafka.Writer{
		Addr:         kafka.TCP(strings.Split(brokers, ",")...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		BatchTimeout: 50 * time.Millisecond,
		RequiredAcks: kafka.RequireOne,
		Async:        true,
		Completion: func(messages []kafka.Message, err error) {
			if err != nil {
				logger.Warn("kafka mirror write failed", "count", len(messages), "error", err)
			}
		},
	}
	return newKafkaMirror(next, w, logger)
}

func newKafkaMirror(next Publisher, w messageWriter, logger *slog.Logger) *KafkaMirror {
	return &KafkaMirror{next: next, writer: w, logger: logger}
}

func (m *KafkaMirror) Publish(ctx context.Context, destination string, event model.ChatEvent) error {
	err := m.next.Publish(ctx, destination, event)

	value, mErr := json.Marshal(MirroredEvent{
		Destination: destination,
		Event:       event,
		PublishedAt: time.Now().UTC(),
	})
	if mErr != nil {
		m.logger.Warn("kafka mirror encode failed", "destination", destination, "error", mErr)
		return err
	}
	// keyed by destination so events of one room stay ordered in one partition
	if wErr := m.writer.WriteMessages(ctx, kafka.Message{Key: []byte(destination), Value: value}); wErr != nil {
		m.logger.Warn("kafka mirror publish failed", "destination", destination, "error", wErr)
	}
	return err
}

func (m *KafkaMirror) Close() error {
	return m.writer.Close()
}
