// Package kafka wires the shared message transport. Producers and consumers
// speak JSON payloads keyed by the saga correlation id; delivery is
// at-least-once per topic with no cross-topic ordering, so saga consumers
// guard every transition against stale messages.
package kafka

import (
	"context"
	"errors"
	"fmt"

	"github.com/twmb/franz-go/pkg/kadm"
	"github.com/twmb/franz-go/pkg/kerr"
	"github.com/twmb/franz-go/pkg/kgo"

	"github.com/josuedanielbust/docucol/internal/platform/config"
)

// NewProducerClient builds a produce-only client.
func NewProducerClient(cfg config.Kafka) (*kgo.Client, error) {
	client, err := kgo.NewClient(
		kgo.SeedBrokers(cfg.Brokers...),
		kgo.ProducerBatchCompression(kgo.SnappyCompression()),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka producer client: %w", err)
	}
	return client, nil
}

// NewConsumerClient builds a consuming client for the given topics. Commits
// are explicit: the consumer loop acks a record only after its handler and,
// if needed, its dead-letter produce have run.
func NewConsumerClient(cfg config.Kafka, group string, topics ...string) (*kgo.Client, error) {
	client, err := kgo.NewClient(
		kgo.SeedBrokers(cfg.Brokers...),
		kgo.ConsumerGroup(group),
		kgo.ConsumeTopics(topics...),
		kgo.DisableAutoCommit(),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka consumer client: %w", err)
	}
	return client, nil
}

// EnsureTopics creates the given topics (single partition, replication 1)
// if they do not already exist. Safe to run at every startup.
func EnsureTopics(ctx context.Context, client *kgo.Client, topics ...string) error {
	adm := kadm.NewClient(client)
	responses, err := adm.CreateTopics(ctx, 1, 1, nil, topics...)
	if err != nil {
		return fmt.Errorf("create topics: %w", err)
	}
	for _, res := range responses {
		if res.Err != nil && !errors.Is(res.Err, kerr.TopicAlreadyExists) {
			return fmt.Errorf("create topic %s: %w", res.Topic, res.Err)
		}
	}
	return nil
}

// DeadLetterTopic returns the dead-letter twin of a topic.
func DeadLetterTopic(topic string) string {
	return topic + ".dlq"
}
