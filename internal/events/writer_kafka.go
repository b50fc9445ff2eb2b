package events

import (
	"context"
	"encoding/json"
	"time"

	cloudevents "github.com/cloudevents/sdk-go/v2"
	"github.com/segmentio/kafka-go"
)

// KafkaWriter publishes events to a Kafka topic.
type KafkaWriter struct {
	writer *kafka.Writer
}

func NewKafkaWriter(brokers []string) *KafkaWriter {
	return &KafkaWriter{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Balancer:     &kafka.LeastBytes{},
			BatchTimeout: 10 * time.Millisecond,
			RequiredAcks: kafka.RequireAll,
			Async:        false,
		},
	}
}

func (w *KafkaWriter) Write(ctx context.Context, topic string, e cloudevents.Event) error {
	data, err := json.Marshal(e)
	if err != nil {
		return err
	}

	return w.writer.WriteMessages(ctx, kafka.Message{
		Topic: topic,
		Key:   []byte(e.ID()),
		Value: data,
	})
}

func (w *KafkaWriter) Close(_ context.Context) error {
	return w.writer.Close()
}
