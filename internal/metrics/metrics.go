// Package metrics provides Prometheus metrics for the message queue service.
// It tracks message throughput, rejected pushes, long-poll waits and broker
// latencies to help identify stuck consumers and undersized queues.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	namespace = "mqueue"
)

// Message metrics track queue throughput.
var (
	// MessagesPushedTotal counts messages appended to a queue.
	MessagesPushedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "messages_pushed_total",
			Help:      "Total number of messages appended to a queue",
		},
		[]string{"queue"},
	)

	// MessagesPulledTotal counts messages removed from a queue.
	MessagesPulledTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "messages_pulled_total",
			Help:      "Total number of messages removed from a queue",
		},
		[]string{"queue", "mode"}, // mode: single, batch
	)

	// PushRejectedTotal counts pushes that appended nothing.
	PushRejectedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "push_rejected_total",
			Help:      "Total number of rejected push requests",
		},
		[]string{"queue", "reason"}, // reason: missing, full, invalid
	)

	// LongPollWait measures how long a batch pull waited for its first message.
	LongPollWait = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "long_poll_wait_seconds",
			Help:      "Time a batch pull waited for its first message in seconds",
			Buckets:   []float64{.001, .01, .05, .1, .5, 1, 2.5, 5, 10, 20, 30},
		},
	)
)

// Broker metrics track calls to the ordered-list store.
var (
	// BrokerOperationLatency measures latency of broker calls.
	BrokerOperationLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "broker_operation_latency_seconds",
			Help:      "Latency of broker operations in seconds",
			Buckets:   []float64{.0001, .0005, .001, .005, .01, .025, .05, .1, .25, .5},
		},
		[]string{"operation"},
	)

	// BrokerErrorsTotal counts failed broker calls.
	BrokerErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "broker_errors_total",
			Help:      "Total number of failed broker operations",
		},
		[]string{"operation"},
	)
)

// Access metrics track authorization decisions.
var (
	// AuthDecisionsTotal counts access control outcomes per operation.
	AuthDecisionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "auth_decisions_total",
			Help:      "Total number of access control decisions",
		},
		[]string{"operation", "outcome"}, // outcome: allowed, unauthorized, forbidden, bypassed
	)
)

// Storage metrics track the audit repository.
var (
	// StorageOperationLatency measures latency of audit storage operations.
	StorageOperationLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "storage_operation_latency_seconds",
			Help:      "Latency of storage operations in seconds",
			Buckets:   []float64{.0001, .0005, .001, .005, .01, .025, .05, .1, .25, .5},
		},
		[]string{"store", "operation"}, // store: postgres, memory; operation: read, write
	)
)
