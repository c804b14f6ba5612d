package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "wagerledger"

// Metrics holds all Prometheus metrics
type Metrics struct {
	// Ledger metrics
	LedgerMutations   *prometheus.CounterVec
	MutationDuration  *prometheus.HistogramVec
	InsufficientFunds prometheus.Counter
	Settlements       *prometheus.CounterVec

	// Exchange rate metrics
	RateRefreshes *prometheus.CounterVec

	// Broadcast metrics
	WSConnections   prometheus.Gauge
	WSDropped       prometheus.Counter
	WSDelivered     prometheus.Counter
	RemoteBroadcast *prometheus.CounterVec

	// Outbox metrics
	OutboxPublished prometheus.Counter
	OutboxFailures  prometheus.Counter

	// API metrics
	HTTPRequests *prometheus.CounterVec
	HTTPDuration *prometheus.HistogramVec
	HTTPInFlight prometheus.Gauge

	// Rate limiting metrics
	RateLimitHits prometheus.Counter

	// Authentication metrics
	AuthFailures *prometheus.CounterVec
}

// New creates all metrics and registers them with reg. A nil reg registers with
// the default registry.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &Metrics{
		// Ledger metrics
		LedgerMutations: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "ledger_mutations_total",
				Help:      "Committed balance mutations by transaction kind",
			},
			[]string{"kind"},
		),
		MutationDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "ledger_mutation_duration_seconds",
				Help:      "Time from lock request to commit of a ledger mutation",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"reason"},
		),
		InsufficientFunds: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ledger_insufficient_funds_total",
			Help:      "Debits rejected for insufficient funds",
		}),
		Settlements: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "rounds_settled_total",
				Help:      "Settled game rounds by outcome",
			},
			[]string{"outcome"},
		),

		// Exchange rate metrics
		RateRefreshes: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "rate_refreshes_total",
				Help:      "Exchange rate snapshot refreshes by source",
			},
			[]string{"source"},
		),

		// Broadcast metrics
		WSConnections: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "ws_connections",
			Help:      "Open balance subscription connections",
		}),
		WSDropped: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ws_messages_dropped_total",
			Help:      "Balance updates dropped for slow subscribers",
		}),
		WSDelivered: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ws_messages_delivered_total",
			Help:      "Balance updates queued to subscribers",
		}),
		RemoteBroadcast: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "remote_broadcast_total",
				Help:      "Balance updates relayed through Redis by direction",
			},
			[]string{"direction"},
		),

		// Outbox metrics
		OutboxPublished: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "outbox_published_total",
			Help:      "Outbox events published",
		}),
		OutboxFailures: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "outbox_publish_failures_total",
			Help:      "Outbox events that failed to publish",
		}),

		// API metrics
		HTTPRequests: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "Total HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		HTTPDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request duration in seconds",
				Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
			},
			[]string{"method", "path"},
		),
		HTTPInFlight: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "http_requests_in_flight",
			Help:      "Number of HTTP requests currently being processed",
		}),

		// Rate limiting metrics
		RateLimitHits: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rate_limit_hits_total",
			Help:      "Requests rejected by the rate limiter",
		}),

		// Authentication metrics
		AuthFailures: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "auth_failures_total",
				Help:      "Total authentication failures",
			},
			[]string{"reason"},
		),
	}
}
