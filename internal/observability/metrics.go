// Package observability provides Prometheus metrics for monitoring.
package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the application.
type Metrics struct {
	// Feed metrics
	TransactionsReceived prometheus.Counter
	DecodeErrors         prometheus.Counter
	Reconnects           prometheus.Counter

	// Simulation metrics
	SimulationOutcomes *prometheus.CounterVec
	SimulationLatency  prometheus.Histogram
	RPCCallLatency     *prometheus.HistogramVec

	// Inference metrics
	TradesInferred *prometheus.CounterVec
	BatchesFlushed prometheus.Counter
	BatchSize      prometheus.Histogram
	SinkErrors     *prometheus.CounterVec

	// Price metrics
	SOLPrice         prometheus.Gauge
	PriceFetchErrors prometheus.Counter

	// Database metrics
	DBQueryDuration *prometheus.HistogramVec
	DBQueryErrors   *prometheus.CounterVec
	DBRowsSkipped   *prometheus.CounterVec
}

// NewMetrics creates a new Metrics instance with all metrics registered.
func NewMetrics(namespace string) *Metrics {
	if namespace == "" {
		namespace = "mempool_flow"
	}

	return &Metrics{
		TransactionsReceived: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "feed",
			Name:      "transactions_received_total",
			Help:      "Total number of pending transactions received from the feed",
		}),
		DecodeErrors: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "feed",
			Name:      "decode_errors_total",
			Help:      "Total number of feed packets that could not be decoded",
		}),
		Reconnects: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "feed",
			Name:      "reconnects_total",
			Help:      "Total number of subscription reconnect attempts",
		}),

		SimulationOutcomes: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "simulation",
			Name:      "outcomes_total",
			Help:      "Total number of simulations by outcome (ok, empty, error)",
		}, []string{"outcome"}),
		SimulationLatency: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "simulation",
			Name:      "latency_seconds",
			Help:      "Latency of simulateTransaction calls",
			Buckets:   []float64{.01, .025, .05, .1, .25, .5, 1, 2.5, 5},
		}),
		RPCCallLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "rpc",
			Name:      "call_latency_seconds",
			Help:      "RPC call latency by method",
			Buckets:   []float64{.01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		}, []string{"method"}),

		TradesInferred: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "inference",
			Name:      "trades_total",
			Help:      "Total number of inferred trades by side",
		}, []string{"side"}),
		BatchesFlushed: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "sink",
			Name:      "batches_flushed_total",
			Help:      "Total number of trade batches flushed to sinks",
		}),
		BatchSize: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "sink",
			Name:      "batch_size",
			Help:      "Number of trades per flushed batch",
			Buckets:   []float64{1, 2, 5, 10, 25, 50, 100},
		}),
		SinkErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "sink",
			Name:      "errors_total",
			Help:      "Total number of sink emit errors by sink",
		}, []string{"sink"}),

		SOLPrice: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "price",
			Name:      "sol_usd",
			Help:      "Last successfully fetched SOL/USD price",
		}),
		PriceFetchErrors: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "price",
			Name:      "fetch_errors_total",
			Help:      "Total number of failed price refreshes",
		}),

		DBQueryDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "db",
			Name:      "query_duration_seconds",
			Help:      "Database query duration by database and operation",
			Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
		}, []string{"database", "operation"}),
		DBQueryErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "db",
			Name:      "query_errors_total",
			Help:      "Total number of database query errors",
		}, []string{"database", "operation"}),
		DBRowsSkipped: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "db",
			Name:      "rows_skipped_total",
			Help:      "Total number of records dropped before insert for lacking a key",
		}, []string{"database"}),
	}
}

// Handler returns an HTTP handler for the /metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// DefaultMetrics is the default metrics instance.
var DefaultMetrics = NewMetrics("")

// RecordTransactionReceived increments the received transactions counter.
func RecordTransactionReceived() {
	DefaultMetrics.TransactionsReceived.Inc()
}

// RecordDecodeError increments the undecodable packet counter.
func RecordDecodeError() {
	DefaultMetrics.DecodeErrors.Inc()
}

// RecordReconnect increments the reconnect counter.
func RecordReconnect() {
	DefaultMetrics.Reconnects.Inc()
}

// RecordSimulationOutcome records a simulation result: ok, empty or error.
func RecordSimulationOutcome(outcome string) {
	DefaultMetrics.SimulationOutcomes.WithLabelValues(outcome).Inc()
}

// RecordSimulationLatency records simulation latency.
func RecordSimulationLatency(seconds float64) {
	DefaultMetrics.SimulationLatency.Observe(seconds)
}

// RecordRPCLatency records RPC call latency.
func RecordRPCLatency(method string, seconds float64) {
	DefaultMetrics.RPCCallLatency.WithLabelValues(method).Observe(seconds)
}

// RecordTradeInferred increments the inferred trades counter.
func RecordTradeInferred(side string) {
	DefaultMetrics.TradesInferred.WithLabelValues(side).Inc()
}

// RecordBatchFlushed records a flushed batch of n trades.
func RecordBatchFlushed(n int) {
	DefaultMetrics.BatchesFlushed.Inc()
	DefaultMetrics.BatchSize.Observe(float64(n))
}

// RecordSinkError records a failed emit on the named sink.
func RecordSinkError(sink string) {
	DefaultMetrics.SinkErrors.WithLabelValues(sink).Inc()
}

// UpdateSOLPrice sets the SOL price gauge.
func UpdateSOLPrice(p float64) {
	DefaultMetrics.SOLPrice.Set(p)
}

// RecordPriceFetchError increments the price fetch error counter.
func RecordPriceFetchError() {
	DefaultMetrics.PriceFetchErrors.Inc()
}

// RecordDBQuery records database query metrics.
func RecordDBQuery(database, operation string, seconds float64, err error) {
	DefaultMetrics.DBQueryDuration.WithLabelValues(database, operation).Observe(seconds)
	if err != nil {
		DefaultMetrics.DBQueryErrors.WithLabelValues(database, operation).Inc()
	}
}

// RecordDBRowsSkipped counts records a store dropped from a batch.
func RecordDBRowsSkipped(database string, n int) {
	if n > 0 {
		DefaultMetrics.DBRowsSkipped.WithLabelValues(database).Add(float64(n))
	}
}
