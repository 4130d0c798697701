package monitoring

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics of the sandbox server
type Metrics struct {
	registry *prometheus.Registry

	// HTTP metrics
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec
	ResponseSize    *prometheus.HistogramVec

	// Driver metrics
	Operations        *prometheus.CounterVec
	OperationDuration *prometheus.HistogramVec
	DriverActive      prometheus.Gauge
	DriverStarts      *prometheus.CounterVec
	Navigations       *prometheus.CounterVec

	startTime time.Time
}

// NewMetrics creates a metrics collector backed by its own registry
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	m := &Metrics{
		registry:  reg,
		startTime: time.Now(),

		RequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sandbox_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		RequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "sandbox_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10, 30},
			},
			[]string{"method", "path"},
		),
		ResponseSize: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "sandbox_http_response_size_bytes",
				Help:    "HTTP response size in bytes",
				Buckets: []float64{100, 1000, 10000, 100000, 1000000, 10000000},
			},
			[]string{"method", "path"},
		),

		Operations: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sandbox_driver_operations_total",
				Help: "Driver operations by outcome (ok or error kind)",
			},
			[]string{"operation", "outcome"},
		),
		OperationDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "sandbox_driver_operation_duration_seconds",
				Help:    "Driver operation duration in seconds, including lock wait",
				Buckets: []float64{.001, .005, .01, .05, .1, .5, 1, 2.5, 5, 10, 30, 60},
			},
			[]string{"operation"},
		),
		DriverActive: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "sandbox_driver_active",
				Help: "1 when a driver session is active",
			},
		),
		DriverStarts: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sandbox_driver_starts_total",
				Help: "Driver session starts by reason and result",
			},
			[]string{"reason", "result"},
		),
		Navigations: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sandbox_navigations_total",
				Help: "Completed page loads by HTTP status class",
			},
			[]string{"status_class"},
		),
	}

	factory.NewGaugeFunc(
		prometheus.GaugeOpts{
			Name: "sandbox_uptime_seconds",
			Help: "Sandbox server uptime in seconds",
		},
		func() float64 { return time.Since(m.startTime).Seconds() },
	)

	return m
}

// Handler exposes the registry in the Prometheus text format
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Registry returns the underlying registry
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// RecordHTTPRequest records an HTTP request
func (m *Metrics) RecordHTTPRequest(method, path, status string, duration time.Duration, respSize int64) {
	m.RequestsTotal.WithLabelValues(method, path, status).Inc()
	m.RequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
	m.ResponseSize.WithLabelValues(method, path).Observe(float64(respSize))
}

// RecordOperation records a driver operation and its outcome; driver-side
// recorders accept a nil receiver
func (m *Metrics) RecordOperation(operation, outcome string, duration time.Duration) {
	if m == nil {
		return
	}
	m.Operations.WithLabelValues(operation, outcome).Inc()
	m.OperationDuration.WithLabelValues(operation).Observe(duration.Seconds())
}

// RecordDriverStart records a driver creation attempt
func (m *Metrics) RecordDriverStart(reason string, ok bool) {
	if m == nil {
		return
	}
	result := "ok"
	if !ok {
		result = "failed"
	}
	m.DriverStarts.WithLabelValues(reason, result).Inc()
}

// SetDriverActive updates the driver gauge
func (m *Metrics) SetDriverActive(active bool) {
	if m == nil {
		return
	}
	if active {
		m.DriverActive.Set(1)
		return
	}
	m.DriverActive.Set(0)
}

// RecordNavigation records a completed page load
func (m *Metrics) RecordNavigation(status int) {
	if m == nil {
		return
	}
	class := "other"
	switch {
	case status >= 200 && status < 300:
		class = "2xx"
	case status >= 300 && status < 400:
		class = "3xx"
	case status >= 400 && status < 500:
		class = "4xx"
	case status >= 500:
		class = "5xx"
	}
	m.Navigations.WithLabelValues(class).Inc()
}
