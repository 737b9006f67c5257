package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/twmb/franz-go/pkg/kgo"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/josuedanielbust/docucol/internal/platform/metrics"
)

// Publisher produces JSON-encoded saga messages keyed by correlation id.
type Publisher struct {
	client  *kgo.Client
	logger  *slog.Logger
	metrics *metrics.Metrics
	tracer  trace.Tracer
}

// NewPublisher constructs a publisher over an existing client.
func NewPublisher(client *kgo.Client, logger *slog.Logger, m *metrics.Metrics) *Publisher {
	return &Publisher{
		client:  client,
		logger:  logger,
		metrics: m,
		tracer:  otel.Tracer("docucol/kafka"),
	}
}

// Publish marshals payload and produces it synchronously. The key is the
// transferId so all messages of one saga land on the same partition.
func (p *Publisher) Publish(ctx context.Context, topic, key string, payload any) error {
	ctx, span := p.tracer.Start(ctx, "publish "+topic,
		trace.WithSpanKind(trace.SpanKindProducer),
		trace.WithAttributes(
			attribute.String("messaging.destination.name", topic),
			attribute.String("messaging.kafka.message.key", key),
		),
	)
	defer span.End()

	value, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal payload for %s: %w", topic, err)
	}

	record := &kgo.Record{Topic: topic, Key: []byte(key), Value: value}
	if err := p.client.ProduceSync(ctx, record).FirstErr(); err != nil {
		return fmt.Errorf("produce to %s: %w", topic, err)
	}

	p.metrics.MessagesPublished.WithLabelValues(topic).Inc()
	p.logger.DebugContext(ctx, "message published", "topic", topic, "key", key)
	return nil
}
