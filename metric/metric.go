package metric

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/kostiamol/farmms/log"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metric groups the service's prometheus collectors. A nil *Metric is valid and records nothing.
type Metric struct {
	gatherer      prometheus.Gatherer
	serviceTiming *prometheus.SummaryVec
	errorCounter  *prometheus.CounterVec
	inbound       *prometheus.CounterVec
	delivered     *prometheus.CounterVec
	dropped       *prometheus.CounterVec
	connections   prometheus.Gauge
}

// New creates the collectors and registers them in reg. A nil reg means the default registry.
func New(appID string, reg *prometheus.Registry) *Metric {
	r := strings.NewReplacer(
		"-", "_",
		" ", "_")
	serviceName := r.Replace(appID)

	m := &Metric{
		serviceTiming: prometheus.NewSummaryVec(
			prometheus.SummaryOpts{
				Name: "service_timing",
				Help: fmt.Sprintf("%s timing", serviceName),
			},
			[]string{fmt.Sprintf("%s_service", serviceName)},
		),
		errorCounter: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "error_counter",
				Help: fmt.Sprintf("%s error counter", serviceName),
			},
			[]string{fmt.Sprintf("%s_error", serviceName)},
		),
		inbound: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "inbound_messages_total",
				Help: fmt.Sprintf("%s inbound websocket messages", serviceName),
			},
			[]string{"type"},
		),
		delivered: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "delivered_messages_total",
				Help: fmt.Sprintf("%s messages enqueued to connections", serviceName),
			},
			[]string{"type"},
		),
		dropped: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "dropped_messages_total",
				Help: fmt.Sprintf("%s messages dropped by full connection queues", serviceName),
			},
			[]string{"type"},
		),
		connections: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "ws_connections",
				Help: fmt.Sprintf("%s live websocket connections", serviceName),
			},
		),
	}

	var registerer prometheus.Registerer = prometheus.DefaultRegisterer
	m.gatherer = prometheus.DefaultGatherer
	if reg != nil {
		registerer = reg
		m.gatherer = reg
	}
	registerer.MustRegister(m.serviceTiming, m.errorCounter, m.inbound, m.delivered, m.dropped, m.connections)

	return m
}

// ErrorCounter counts an error event under label.
func (m *Metric) ErrorCounter(label string) {
	if m == nil {
		return
	}
	m.errorCounter.
		WithLabelValues(label).
		Inc()
}

// Timing observes the time elapsed since start under label.
func (m *Metric) Timing(start time.Time, label string) {
	if m == nil {
		return
	}
	m.serviceTiming.
		WithLabelValues(label).
		Observe(time.Since(start).Seconds())
}

// Inbound counts a message received from a connection.
func (m *Metric) Inbound(msgType string) {
	if m == nil {
		return
	}
	m.inbound.WithLabelValues(msgType).Inc()
}

// Delivered counts n enqueued copies of a message.
func (m *Metric) Delivered(msgType string, n int) {
	if m == nil {
		return
	}
	m.delivered.WithLabelValues(msgType).Add(float64(n))
}

// Dropped counts a message evicted from or refused by a connection queue.
func (m *Metric) Dropped(msgType string) {
	if m == nil {
		return
	}
	m.dropped.WithLabelValues(msgType).Inc()
}

// ConnAdded increments the live connection gauge.
func (m *Metric) ConnAdded() {
	if m == nil {
		return
	}
	m.connections.Inc()
}

// ConnRemoved decrements the live connection gauge.
func (m *Metric) ConnRemoved() {
	if m == nil {
		return
	}
	m.connections.Dec()
}

// TimeTracker observes how long next takes to serve a request under label.
func (m *Metric) TimeTracker(next http.HandlerFunc, label string, l log.Logger) http.HandlerFunc {
	return func(response http.ResponseWriter, request *http.Request) {
		start := time.Now()
		next(response, request)
		m.Timing(start, label)
	}
}

// RouterHandlerHTTP serves the registry in the prometheus text format.
func (m *Metric) RouterHandlerHTTP() http.HandlerFunc {
	return m.stdToHTTPRouterMiddleware(m.handlerHTTP())
}

func (m *Metric) handlerHTTP() http.Handler {
	if m == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}

func (m *Metric) stdToHTTPRouterMiddleware(next http.Handler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		next.ServeHTTP(w, r)
	}
}
