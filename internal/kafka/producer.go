package kafka

import (
	"context"
	"encoding/json"
	"time"

	"github.com/segmentio/kafka-go"

	"linkchecker/internal/linkurl"
	"linkchecker/internal/models"
	"linkchecker/internal/stream"
)

//go:generate mockgen -destination=../../mocks/mock_publisher.go -package=mocks linkchecker/internal/kafka StatusPublisher

// StatusPublisher announces committed link statuses to downstream consumers.
type StatusPublisher interface {
	PublishResults(ctx context.Context, runID string, results []models.LinkCheckResult, checkedAt time.Time) error
}

// Producer wraps a Kafka writer for publishing link status events.
type Producer struct {
	writer stream.MessageWriter
}

// NewProducer creates a Kafka producer for the given broker and topic. Messages are keyed by
// host and hash-balanced so one host's events stay ordered within a partition.
func NewProducer(broker, topic string) *Producer {
	return &Producer{
		writer: &kafka.Writer{
			Addr:                   kafka.TCP(broker),
			Topic:                  topic,
			Balancer:               &kafka.Hash{},
			AllowAutoTopicCreation: false,
		},
	}
}

// NewProducerWithWriter builds a producer using a custom writer (tests).
func NewProducerWithWriter(writer stream.MessageWriter) *Producer {
	return &Producer{writer: writer}
}

// Close shuts down the underlying writer.
func (p *Producer) Close() error {
	return p.writer.Close()
}

// PublishResults writes one LinkStatusEvent per result in a single batch.
func (p *Producer) PublishResults(ctx context.Context, runID string, results []models.LinkCheckResult, checkedAt time.Time) error {
	if len(results) == 0 {
		return nil
	}
	now := time.Now().UTC()
	msgs := make([]kafka.Message, 0, len(results))
	for _, result := range results {
		payload, err := json.Marshal(models.NewLinkStatusEvent(runID, result, checkedAt))
		if err != nil {
			return err
		}
		msgs = append(msgs, kafka.Message{
			Key:   []byte(messageKey(result.URL)),
			Value: payload,
			Time:  now,
		})
	}
	return p.writer.WriteMessages(ctx, msgs...)
}

func messageKey(rawURL string) string {
	if host := linkurl.HostKey(rawURL); host != "" {
		return host
	}
	return rawURL
}
