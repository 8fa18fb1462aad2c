package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the relay's prometheus collectors. A nil *Metrics is valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	requests         *prometheus.CounterVec
	requestLatency   *prometheus.HistogramVec
	errors           *prometheus.CounterVec
	routed           *prometheus.CounterVec
	transitions      *prometheus.CounterVec
	sweepClosed      prometheus.Counter
	sweepRuns        prometheus.Counter
	deliveryFailures *prometheus.CounterVec
}

// NewMetrics registers collectors on a private registry.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		requests: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "relay_http_requests_total",
			Help: "Total number of admin HTTP requests",
		}, []string{"path", "method", "status"}),
		requestLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "relay_http_request_duration_seconds",
			Help:    "Admin HTTP request latency",
			Buckets: prometheus.DefBuckets,
		}, []string{"path", "method"}),
		errors: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "relay_http_errors_total",
			Help: "Total number of admin HTTP errors by code",
		}, []string{"path", "method", "code"}),
		routed: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "relay_routed_messages_total",
			Help: "Inbound replies handled by the router",
		}, []string{"side", "outcome"}),
		transitions: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "relay_ticket_transitions_total",
			Help: "Ticket status transitions",
		}, []string{"from", "to", "trigger"}),
		sweepClosed: factory.NewCounter(prometheus.CounterOpts{
			Name: "relay_sweeper_closed_total",
			Help: "Tickets closed for inactivity",
		}),
		sweepRuns: factory.NewCounter(prometheus.CounterOpts{
			Name: "relay_sweeper_runs_total",
			Help: "Completed sweeper runs",
		}),
		deliveryFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "relay_delivery_failures_total",
			Help: "Outbound sends that did not reach the chat platform",
		}, []string{"side", "reason"}),
	}
}

// RecordRequest increments counters for requests.
func (m *Metrics) RecordRequest(path, method string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	m.requests.WithLabelValues(path, method, strconv.Itoa(status)).Inc()
	m.requestLatency.WithLabelValues(path, method).Observe(duration.Seconds())
}

// RecordError increments error counters.
func (m *Metrics) RecordError(path, method, code string) {
	if m == nil {
		return
	}
	m.errors.WithLabelValues(path, method, code).Inc()
}

// RecordRouted counts a router outcome for an inbound reply.
func (m *Metrics) RecordRouted(side, outcome string) {
	if m == nil {
		return
	}
	m.routed.WithLabelValues(side, outcome).Inc()
}

// RecordTransition counts an applied status change.
func (m *Metrics) RecordTransition(from, to, trigger string) {
	if m == nil {
		return
	}
	m.transitions.WithLabelValues(from, to, trigger).Inc()
}

// RecordSweep counts one sweeper run and the tickets it closed.
func (m *Metrics) RecordSweep(closed int) {
	if m == nil {
		return
	}
	m.sweepRuns.Inc()
	m.sweepClosed.Add(float64(closed))
}

// RecordDeliveryFailure counts a failed send toward side.
func (m *Metrics) RecordDeliveryFailure(side, reason string) {
	if m == nil {
		return
	}
	m.deliveryFailures.WithLabelValues(side, reason).Inc()
}

// Handler exposes the registry in the prometheus text format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
