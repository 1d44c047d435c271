package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the production service metrics. All Record methods are safe
// to call on a nil *Metrics.
type Metrics struct {
	registry *prometheus.Registry

	// HTTP metrics
	HTTPRequestsTotal    *prometheus.CounterVec
	HTTPRequestDuration  *prometheus.HistogramVec
	HTTPRequestsInFlight prometheus.Gauge

	// Kafka metrics
	KafkaEventsPublished *prometheus.CounterVec
	KafkaPublishDuration *prometheus.HistogramVec

	// Outbox metrics
	OutboxPending   prometheus.Gauge
	OutboxPublished *prometheus.CounterVec
	OutboxRetries   *prometheus.CounterVec

	// Workflow metrics
	StepsAdvanced       *prometheus.CounterVec
	StepDuration        *prometheus.HistogramVec
	RequestsCreated     *prometheus.CounterVec
	RequestsFailed      *prometheus.CounterVec
	TransactionRetries  *prometheus.CounterVec
	TransactionFailures *prometheus.CounterVec

	// Matching and allocation
	MatchesTotal    *prometheus.CounterVec
	BinAllocations  *prometheus.CounterVec
	OrdersProcessed *prometheus.CounterVec
	DefectsRecorded *prometheus.CounterVec

	// Circuit breaker metrics
	CircuitBreakerState *prometheus.GaugeVec
}

// Config holds metrics configuration
type Config struct {
	ServiceName string
	Namespace   string
}

// DefaultConfig returns default metrics configuration
func DefaultConfig(serviceName string) *Config {
	return &Config{
		ServiceName: serviceName,
		Namespace:   "production",
	}
}

// New creates a new Metrics instance on its own registry
func New(config *Config) *Metrics {
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector())
	registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	ns := config.Namespace
	constLabels := prometheus.Labels{"service": config.ServiceName}
	durationBuckets := []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5}

	m := &Metrics{registry: registry}

	m.HTTPRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: ns, Subsystem: "http", Name: "requests_total",
		Help: "Total number of HTTP requests", ConstLabels: constLabels,
	}, []string{"method", "path", "status"})
	m.HTTPRequestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: ns, Subsystem: "http", Name: "request_duration_seconds",
		Help: "HTTP request duration in seconds", ConstLabels: constLabels, Buckets: durationBuckets,
	}, []string{"method", "path"})
	m.HTTPRequestsInFlight = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: ns, Subsystem: "http", Name: "requests_in_flight",
		Help: "Number of HTTP requests currently being served", ConstLabels: constLabels,
	})

	m.KafkaEventsPublished = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: ns, Subsystem: "kafka", Name: "events_published_total",
		Help: "Total number of events published to Kafka", ConstLabels: constLabels,
	}, []string{"topic", "event_type", "status"})
	m.KafkaPublishDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: ns, Subsystem: "kafka", Name: "publish_duration_seconds",
		Help: "Kafka publish duration in seconds", ConstLabels: constLabels, Buckets: durationBuckets,
	}, []string{"topic"})

	m.OutboxPending = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: ns, Subsystem: "outbox", Name: "pending_events",
		Help: "Unpublished events seen by the last outbox poll", ConstLabels: constLabels,
	})
	m.OutboxPublished = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: ns, Subsystem: "outbox", Name: "published_total",
		Help: "Outbox events relayed to Kafka", ConstLabels: constLabels,
	}, []string{"event_type", "status"})
	m.OutboxRetries = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: ns, Subsystem: "outbox", Name: "retries_total",
		Help: "Outbox publish retries", ConstLabels: constLabels,
	}, []string{"event_type"})

	m.StepsAdvanced = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: ns, Subsystem: "workflow", Name: "steps_advanced_total",
		Help: "Request steps advanced", ConstLabels: constLabels,
	}, []string{"request_type", "step", "status"})
	m.StepDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: ns, Subsystem: "workflow", Name: "step_duration_seconds",
		Help: "Time to advance a request step including retries", ConstLabels: constLabels, Buckets: durationBuckets,
	}, []string{"request_type"})
	m.RequestsCreated = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: ns, Subsystem: "workflow", Name: "requests_created_total",
		Help: "Production requests created", ConstLabels: constLabels,
	}, []string{"request_type"})
	m.RequestsFailed = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: ns, Subsystem: "workflow", Name: "requests_failed_total",
		Help: "Production requests failed", ConstLabels: constLabels,
	}, []string{"request_type"})
	m.TransactionRetries = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: ns, Subsystem: "store", Name: "transaction_retries_total",
		Help: "Transactions retried after a transient failure", ConstLabels: constLabels,
	}, []string{"operation"})
	m.TransactionFailures = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: ns, Subsystem: "store", Name: "transaction_failures_total",
		Help: "Transactions that exhausted their retries", ConstLabels: constLabels,
	}, []string{"operation"})

	m.MatchesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: ns, Subsystem: "inventory", Name: "matches_total",
		Help: "Inventory match attempts by resulting tier", ConstLabels: constLabels,
	}, []string{"tier"})
	m.BinAllocations = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: ns, Subsystem: "bins", Name: "allocations_total",
		Help: "Bin allocations by bin type and outcome", ConstLabels: constLabels,
	}, []string{"bin_type", "status"})
	m.OrdersProcessed = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: ns, Subsystem: "orders", Name: "processed_total",
		Help: "Orders processed by outcome", ConstLabels: constLabels,
	}, []string{"status"})
	m.DefectsRecorded = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: ns, Subsystem: "quality", Name: "defects_total",
		Help: "Defects recorded by category and severity", ConstLabels: constLabels,
	}, []string{"category", "severity"})

	m.CircuitBreakerState = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: ns, Subsystem: "circuit_breaker", Name: "state",
		Help: "Circuit breaker state (0=closed, 1=half-open, 2=open)", ConstLabels: constLabels,
	}, []string{"name"})

	registry.MustRegister(
		m.HTTPRequestsTotal, m.HTTPRequestDuration, m.HTTPRequestsInFlight,
		m.KafkaEventsPublished, m.KafkaPublishDuration,
		m.OutboxPending, m.OutboxPublished, m.OutboxRetries,
		m.StepsAdvanced, m.StepDuration, m.RequestsCreated, m.RequestsFailed,
		m.TransactionRetries, m.TransactionFailures,
		m.MatchesTotal, m.BinAllocations, m.OrdersProcessed, m.DefectsRecorded,
		m.CircuitBreakerState,
	)

	return m
}

// Handler returns the Prometheus HTTP handler for this registry
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{EnableOpenMetrics: true})
}

// Registry returns the underlying registry
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

func status(success bool) string {
	if success {
		return "success"
	}
	return "failure"
}

// RecordHTTPRequest records an HTTP request
func (m *Metrics) RecordHTTPRequest(method, path string, code int, duration time.Duration) {
	if m == nil {
		return
	}
	m.HTTPRequestsTotal.WithLabelValues(method, path, strconv.Itoa(code)).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

// IncrementHTTPRequestsInFlight increments the in-flight gauge
func (m *Metrics) IncrementHTTPRequestsInFlight() {
	if m != nil {
		m.HTTPRequestsInFlight.Inc()
	}
}

// DecrementHTTPRequestsInFlight decrements the in-flight gauge
func (m *Metrics) DecrementHTTPRequestsInFlight() {
	if m != nil {
		m.HTTPRequestsInFlight.Dec()
	}
}

// RecordKafkaPublish records a Kafka publish
func (m *Metrics) RecordKafkaPublish(topic, eventType string, success bool, duration time.Duration) {
	if m == nil {
		return
	}
	m.KafkaEventsPublished.WithLabelValues(topic, eventType, status(success)).Inc()
	m.KafkaPublishDuration.WithLabelValues(topic).Observe(duration.Seconds())
}

// SetOutboxPending records the size of the last outbox batch
func (m *Metrics) SetOutboxPending(count int) {
	if m != nil {
		m.OutboxPending.Set(float64(count))
	}
}

// RecordOutboxPublish records the outcome of relaying one outbox event
func (m *Metrics) RecordOutboxPublish(eventType string, success bool) {
	if m != nil {
		m.OutboxPublished.WithLabelValues(eventType, status(success)).Inc()
	}
}

// RecordOutboxRetry records an outbox retry
func (m *Metrics) RecordOutboxRetry(eventType string) {
	if m != nil {
		m.OutboxRetries.WithLabelValues(eventType).Inc()
	}
}

// RecordStep records a step advance attempt and its duration
func (m *Metrics) RecordStep(requestType, step string, success bool, duration time.Duration) {
	if m == nil {
		return
	}
	m.StepsAdvanced.WithLabelValues(requestType, step, status(success)).Inc()
	m.StepDuration.WithLabelValues(requestType).Observe(duration.Seconds())
}

// RecordRequestCreated records a new production request
func (m *Metrics) RecordRequestCreated(requestType string) {
	if m != nil {
		m.RequestsCreated.WithLabelValues(requestType).Inc()
	}
}

// RecordRequestFailed records a failed production request
func (m *Metrics) RecordRequestFailed(requestType string) {
	if m != nil {
		m.RequestsFailed.WithLabelValues(requestType).Inc()
	}
}

// RecordTransactionRetry records a transaction retry for operation
func (m *Metrics) RecordTransactionRetry(operation string) {
	if m != nil {
		m.TransactionRetries.WithLabelValues(operation).Inc()
	}
}

// RecordTransactionFailure records a transaction that exhausted its retries
func (m *Metrics) RecordTransactionFailure(operation string) {
	if m != nil {
		m.TransactionFailures.WithLabelValues(operation).Inc()
	}
}

// RecordMatch records a match attempt; tier is "NONE" when nothing matched
func (m *Metrics) RecordMatch(tier string) {
	if m != nil {
		m.MatchesTotal.WithLabelValues(tier).Inc()
	}
}

// RecordBinAllocation records a bin allocation outcome
func (m *Metrics) RecordBinAllocation(binType string, success bool) {
	if m != nil {
		m.BinAllocations.WithLabelValues(binType, status(success)).Inc()
	}
}

// RecordOrderProcessed records the outcome of processing an order
func (m *Metrics) RecordOrderProcessed(outcome string) {
	if m != nil {
		m.OrdersProcessed.WithLabelValues(outcome).Inc()
	}
}

// RecordDefect records a reported defect
func (m *Metrics) RecordDefect(category, severity string) {
	if m != nil {
		m.DefectsRecorded.WithLabelValues(category, severity).Inc()
	}
}

// SetCircuitBreakerState records a circuit breaker state
func (m *Metrics) SetCircuitBreakerState(name string, state int) {
	if m != nil {
		m.CircuitBreakerState.WithLabelValues(name).Set(float64(state))
	}
}
