// Package metrics registers the Prometheus instruments shared by the saga
// coordinators and the message transport.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for a docucol process.
type Metrics struct {
	TransfersInitiated prometheus.Counter
	TransfersDelivered prometheus.Counter
	TransfersFailed    prometheus.Counter
	TransfersRejected  prometheus.Counter

	MessagesPublished  *prometheus.CounterVec
	MessagesConsumed   *prometheus.CounterVec
	MessagesDeadLetter *prometheus.CounterVec
	StaleMessages      *prometheus.CounterVec
	HandlerDurationMs  *prometheus.HistogramVec

	DocumentsMaterialized prometheus.Counter
	DocumentsFailed       prometheus.Counter
	EmailsSent            prometheus.Counter
}

// New creates and registers all metrics on the default registry.
func New() *Metrics {
	return NewWith(prometheus.DefaultRegisterer)
}

// NewWith registers all metrics on reg. Tests pass a fresh registry so
// parallel suites don't collide on duplicate registration.
func NewWith(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		TransfersInitiated: factory.NewCounter(prometheus.CounterOpts{
			Name: "docucol_transfers_initiated_total",
			Help: "Total number of outbound transfer sagas started",
		}),
		TransfersDelivered: factory.NewCounter(prometheus.CounterOpts{
			Name: "docucol_transfers_delivered_total",
			Help: "Total number of outbound transfer sagas delivered to a destination operator",
		}),
		TransfersFailed: factory.NewCounter(prometheus.CounterOpts{
			Name: "docucol_transfers_failed_total",
			Help: "Total number of transfer sagas halted in a failed state",
		}),
		TransfersRejected: factory.NewCounter(prometheus.CounterOpts{
			Name: "docucol_transfers_rejected_total",
			Help: "Total number of inbound transfers rejected by the citizen",
		}),
		MessagesPublished: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "docucol_messages_published_total",
			Help: "Messages published to the transport, by topic",
		}, []string{"topic"}),
		MessagesConsumed: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "docucol_messages_consumed_total",
			Help: "Messages consumed from the transport, by topic",
		}, []string{"topic"}),
		MessagesDeadLetter: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "docucol_messages_dead_letter_total",
			Help: "Messages routed to a dead-letter topic after exhausted retries, by source topic",
		}, []string{"topic"}),
		StaleMessages: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "docucol_stale_messages_total",
			Help: "Duplicate or out-of-order messages discarded by the saga state guard, by topic",
		}, []string{"topic"}),
		HandlerDurationMs: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "docucol_handler_duration_ms",
			Help:    "Latency of message handlers in milliseconds",
			Buckets: []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000, 5000, 30000},
		}, []string{"topic"}),
		DocumentsMaterialized: factory.NewCounter(prometheus.CounterOpts{
			Name: "docucol_documents_materialized_total",
			Help: "Documents re-uploaded from a foreign operator during an inbound transfer",
		}),
		DocumentsFailed: factory.NewCounter(prometheus.CounterOpts{
			Name: "docucol_documents_failed_total",
			Help: "Documents that failed to download or re-upload during an inbound transfer",
		}),
		EmailsSent: factory.NewCounter(prometheus.CounterOpts{
			Name: "docucol_emails_sent_total",
			Help: "Notification emails delivered",
		}),
	}
}
