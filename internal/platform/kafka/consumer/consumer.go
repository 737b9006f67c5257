// Package consumer runs the per-service message consumption loop. One
// logical consumer serves all of a service's topics: records are handled
// sequentially and committed unconditionally, so a poison message can never
// wedge the queue. Handler failures get a bounded retry and then land on the
// topic's dead-letter twin instead of being silently dropped.
package consumer

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/twmb/franz-go/pkg/kgo"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/josuedanielbust/docucol/internal/platform/kafka"
	"github.com/josuedanielbust/docucol/internal/platform/metrics"
	"github.com/josuedanielbust/docucol/pkg/requestcontext"
)

// Message is the transport-agnostic view handlers receive.
type Message struct {
	Topic     string
	Key       []byte
	Value     []byte
	Timestamp time.Time
}

// Handler processes a single message. Returning an error triggers the
// retry/dead-letter path; business-level failures that should halt a saga
// are published to an error topic by the handler itself, which then returns
// nil so the record is acked without retries.
type Handler interface {
	Handle(ctx context.Context, msg *Message) error
}

// HandlerFunc adapts a function to the Handler interface.
type HandlerFunc func(ctx context.Context, msg *Message) error

func (f HandlerFunc) Handle(ctx context.Context, msg *Message) error { return f(ctx, msg) }

// Consumer polls a client and dispatches records to a handler.
type Consumer struct {
	client      *kgo.Client
	handler     Handler
	logger      *slog.Logger
	metrics     *metrics.Metrics
	tracer      trace.Tracer
	maxAttempts uint64
	maxInterval time.Duration
}

// Option configures a Consumer.
type Option func(*Consumer)

// WithMaxAttempts overrides how many times a failing handler is invoked
// before the record is dead-lettered. Default 3.
func WithMaxAttempts(n uint64) Option {
	return func(c *Consumer) { c.maxAttempts = n }
}

// New constructs a consumer over an existing client.
func New(client *kgo.Client, handler Handler, logger *slog.Logger, m *metrics.Metrics, opts ...Option) *Consumer {
	c := &Consumer{
		client:      client,
		handler:     handler,
		logger:      logger,
		metrics:     m,
		tracer:      otel.Tracer("docucol/kafka"),
		maxAttempts: 3,
		maxInterval: 5 * time.Second,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Run polls until ctx is canceled or the client is closed. A record's
// processing runs to completion before the next record is dequeued.
func (c *Consumer) Run(ctx context.Context) error {
	for {
		fetches := c.client.PollFetches(ctx)
		if fetches.IsClientClosed() {
			return nil
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		fetches.EachError(func(topic string, partition int32, err error) {
			c.logger.ErrorContext(ctx, "fetch error",
				"topic", topic, "partition", partition, "error", err)
		})

		var commit []*kgo.Record
		fetches.EachRecord(func(record *kgo.Record) {
			c.process(ctx, record)
			commit = append(commit, record)
		})

		if len(commit) > 0 {
			if err := c.client.CommitRecords(ctx, commit...); err != nil {
				c.logger.ErrorContext(ctx, "commit failed", "error", err)
			}
		}
	}
}

func (c *Consumer) process(ctx context.Context, record *kgo.Record) {
	ctx, span := c.tracer.Start(ctx, "consume "+record.Topic,
		trace.WithSpanKind(trace.SpanKindConsumer),
		trace.WithAttributes(
			attribute.String("messaging.destination.name", record.Topic),
			attribute.String("messaging.kafka.message.key", string(record.Key)),
		),
	)
	defer span.End()

	// The record key is the saga correlation id; downstream log lines and
	// handlers pick it up from the context.
	ctx = requestcontext.WithTransferID(ctx, string(record.Key))

	msg := &Message{
		Topic:     record.Topic,
		Key:       record.Key,
		Value:     record.Value,
		Timestamp: record.Timestamp,
	}

	start := time.Now()
	c.metrics.MessagesConsumed.WithLabelValues(record.Topic).Inc()

	policy := backoff.WithContext(backoff.WithMaxRetries(newBackOff(c.maxInterval), c.maxAttempts-1), ctx)
	err := backoff.Retry(func() error {
		handleErr := c.handler.Handle(ctx, msg)
		if handleErr != nil {
			c.logger.WarnContext(ctx, "handler attempt failed",
				"topic", record.Topic, "key", string(record.Key), "error", handleErr)
		}
		return handleErr
	}, policy)

	c.metrics.HandlerDurationMs.WithLabelValues(record.Topic).
		Observe(float64(time.Since(start).Milliseconds()))

	if err != nil && !errors.Is(err, context.Canceled) {
		c.deadLetter(ctx, record, err)
	}
}

// deadLetter parks an unprocessable record on the topic's dead-letter twin.
// The original key and value are preserved so the saga can be replayed after
// the defect is fixed.
func (c *Consumer) deadLetter(ctx context.Context, record *kgo.Record, cause error) {
	dlq := kafka.DeadLetterTopic(record.Topic)
	parked := &kgo.Record{
		Topic: dlq,
		Key:   record.Key,
		Value: record.Value,
		Headers: []kgo.RecordHeader{
			{Key: "x-dead-letter-cause", Value: []byte(cause.Error())},
			{Key: "x-original-topic", Value: []byte(record.Topic)},
		},
	}
	if err := c.client.ProduceSync(ctx, parked).FirstErr(); err != nil {
		c.logger.ErrorContext(ctx, "dead-letter produce failed; record dropped",
			"topic", record.Topic, "key", string(record.Key), "error", err)
		return
	}
	c.metrics.MessagesDeadLetter.WithLabelValues(record.Topic).Inc()
	c.logger.ErrorContext(ctx, "record dead-lettered",
		"topic", record.Topic, "dlq", dlq, "key", string(record.Key), "cause", cause)
}

func newBackOff(maxInterval time.Duration) backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 100 * time.Millisecond
	b.MaxInterval = maxInterval
	return b
}
