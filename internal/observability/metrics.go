package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "ordermgmt"

// Metrics groups the service's Prometheus collectors.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	Requests  *prometheus.CounterVec
	LatencyMS *prometheus.HistogramVec

	ordersCreated      prometheus.Counter
	ordersCancelled    prometheus.Counter
	sideEffectFailures *prometheus.CounterVec
	cacheRequests      *prometheus.CounterVec
	outboxDeliveries   *prometheus.CounterVec
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests.",
		}, []string{"route", "method", "status"}),
		LatencyMS: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_ms",
			Help:      "HTTP request latency in milliseconds.",
			Buckets:   []float64{5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000},
		}, []string{"route"}),
		ordersCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "orders_created_total",
			Help:      "Orders persisted with status Created.",
		}),
		ordersCancelled: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "orders_cancelled_total",
			Help:      "Orders transitioned to Cancelled.",
		}),
		sideEffectFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "order_side_effect_failures_total",
			Help:      "Post-commit webhook/publish/invalidate failures.",
		}, []string{"stage"}),
		cacheRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "order_cache_requests_total",
			Help:      "Cache-aside lookups by result.",
		}, []string{"result"}),
		outboxDeliveries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "outbox_deliveries_total",
			Help:      "Outbox redelivery outcomes.",
		}, []string{"channel", "result"}),
	}

	reg.MustRegister(
		m.Requests, m.LatencyMS,
		m.ordersCreated, m.ordersCancelled,
		m.sideEffectFailures, m.cacheRequests, m.outboxDeliveries,
	)
	return m
}

func (m *Metrics) OrderCreated() {
	if m == nil {
		return
	}
	m.ordersCreated.Inc()
}

func (m *Metrics) OrderCancelled() {
	if m == nil {
		return
	}
	m.ordersCancelled.Inc()
}

func (m *Metrics) SideEffectFailed(stage string) {
	if m == nil {
		return
	}
	m.sideEffectFailures.WithLabelValues(stage).Inc()
}

// result: hit, miss, error
func (m *Metrics) CacheLookup(result string) {
	if m == nil {
		return
	}
	m.cacheRequests.WithLabelValues(result).Inc()
}

// result: sent, retry, dead
func (m *Metrics) OutboxDelivery(channel, result string) {
	if m == nil {
		return
	}
	m.outboxDeliveries.WithLabelValues(channel, result).Inc()
}

func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}
