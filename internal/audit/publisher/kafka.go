// Package publisher exports audit entries to a Kafka-compatible broker.
package publisher

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/twmb/franz-go/pkg/kadm"
	"github.com/twmb/franz-go/pkg/kerr"
	"github.com/twmb/franz-go/pkg/kgo"

	"onboard/internal/audit"
)

// Kafka publishes each entry as a JSON record keyed by subject, so all entries
// for one roster record land on the same partition in order.
type Kafka struct {
	client *kgo.Client
	topic  string
	logger *slog.Logger
}

type Option func(k *Kafka)

func WithLogger(logger *slog.Logger) Option {
	return func(k *Kafka) {
		k.logger = logger
	}
}

// NewKafka connects to the given seed brokers. The connection is lazy: broker
// errors surface on the first publish.
func NewKafka(brokers []string, topic string, opts ...Option) (*Kafka, error) {
	if len(brokers) == 0 {
		return nil, errors.New("kafka: no brokers configured")
	}
	if topic == "" {
		return nil, errors.New("kafka: topic is required")
	}
	client, err := kgo.NewClient(
		kgo.SeedBrokers(brokers...),
		kgo.DefaultProduceTopic(topic),
		kgo.AllowAutoTopicCreation(),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka: create client: %w", err)
	}
	k := &Kafka{client: client, topic: topic}
	for _, opt := range opts {
		opt(k)
	}
	return k, nil
}

// EnsureTopic creates the audit topic if it does not exist yet.
func (k *Kafka) EnsureTopic(ctx context.Context, partitions int32, replicas int16) error {
	adm := kadm.NewClient(k.client)
	resp, err := adm.CreateTopic(ctx, partitions, replicas, nil, k.topic)
	if err != nil {
		return fmt.Errorf("kafka: create topic %s: %w", k.topic, err)
	}
	if resp.Err != nil && !errors.Is(resp.Err, kerr.TopicAlreadyExists) {
		return fmt.Errorf("kafka: create topic %s: %w", k.topic, resp.Err)
	}
	return nil
}

// Publish implements audit.Sink.
func (k *Kafka) Publish(ctx context.Context, entry audit.Entry) error {
	payload, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("kafka: marshal entry: %w", err)
	}
	record := &kgo.Record{
		Key:   []byte(entry.Subject),
		Value: payload,
		Headers: []kgo.RecordHeader{
			{Key: "action", Value: []byte(entry.Action)},
		},
	}
	if err := k.client.ProduceSync(ctx, record).FirstErr(); err != nil {
		return fmt.Errorf("kafka: produce: %w", err)
	}
	if k.logger != nil {
		k.logger.DebugContext(ctx, "audit entry exported", "entry_id", entry.ID, "topic", k.topic)
	}
	return nil
}

// Close flushes pending records and releases the client.
func (k *Kafka) Close() {
	k.client.Close()
}
