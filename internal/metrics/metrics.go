package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Submission outcomes used as the status label.
const (
	StatusSuccess   = "success"
	StatusFailed    = "failed"
	StatusTimeout   = "timeout"
	StatusMalformed = "malformed"
	StatusRejected  = "rejected"
)

// Registry holds all Prometheus metrics.
type Registry struct {
	*prometheus.Registry

	// HTTP metrics
	httpRequestsTotal    *prometheus.CounterVec
	httpRequestDuration  *prometheus.HistogramVec
	httpRequestsInFlight prometheus.Gauge

	// Panel metrics
	submissionsTotal    *prometheus.CounterVec
	submissionDuration  *prometheus.HistogramVec
	submissionsInFlight prometheus.Gauge
	resultFields        *prometheus.CounterVec
}

// NewRegistry creates a new metrics registry with all metrics registered.
func NewRegistry() *Registry {
	reg := prometheus.NewRegistry()

	// Register Go runtime metrics
	reg.MustRegister(collectors.NewGoCollector())
	reg.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	r := &Registry{
		Registry: reg,

		httpRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),

		httpRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),

		httpRequestsInFlight: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "http_requests_in_flight",
				Help: "Number of HTTP requests currently in flight",
			},
		),
	}

	reg.MustRegister(r.httpRequestsTotal)
	reg.MustRegister(r.httpRequestDuration)
	reg.MustRegister(r.httpRequestsInFlight)

	r.submissionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dispersion_submissions_total",
			Help: "Total number of backtest submissions by outcome",
		},
		[]string{"mode", "status"},
	)
	r.submissionDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "dispersion_submission_duration_seconds",
			Help:    "Backtest service round-trip duration in seconds",
			Buckets: []float64{0.1, 0.5, 1, 5, 10, 30, 60, 120},
		},
		[]string{"mode"},
	)
	r.submissionsInFlight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "dispersion_submissions_in_flight",
			Help: "1 while a backtest submission is running",
		},
	)
	r.resultFields = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dispersion_result_fields_total",
			Help: "Response fields seen, by whether they passed their type guard",
		},
		[]string{"field", "usable"},
	)

	reg.MustRegister(r.submissionsTotal)
	reg.MustRegister(r.submissionDuration)
	reg.MustRegister(r.submissionsInFlight)
	reg.MustRegister(r.resultFields)

	return r
}

// Handler exposes the registry for scraping.
func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.Registry, promhttp.HandlerOpts{})
}

// RecordRequest records metrics for an HTTP request.
func (r *Registry) RecordRequest(method, path string, status int, duration float64) {
	statusStr := statusToString(status)
	r.httpRequestsTotal.WithLabelValues(method, path, statusStr).Inc()
	r.httpRequestDuration.WithLabelValues(method, path).Observe(duration)
}

// InFlightInc increments in-flight requests.
func (r *Registry) InFlightInc() {
	r.httpRequestsInFlight.Inc()
}

// InFlightDec decrements in-flight requests.
func (r *Registry) InFlightDec() {
	r.httpRequestsInFlight.Dec()
}

// RecordSubmission records a finished submission. Rejected submissions
// never reach the service and carry no duration.
func (r *Registry) RecordSubmission(mode, status string, duration float64) {
	r.submissionsTotal.WithLabelValues(mode, status).Inc()
	if status != StatusRejected {
		r.submissionDuration.WithLabelValues(mode).Observe(duration)
	}
}

// SetSubmissionInFlight mirrors the panel's in-flight flag.
func (r *Registry) SetSubmissionInFlight(inFlight bool) {
	if inFlight {
		r.submissionsInFlight.Set(1)
		return
	}
	r.submissionsInFlight.Set(0)
}

// RecordResultField counts one response field by usability.
func (r *Registry) RecordResultField(field string, usable bool) {
	label := "false"
	if usable {
		label = "true"
	}
	r.resultFields.WithLabelValues(field, label).Inc()
}

func statusToString(status int) string {
	switch {
	case status >= 500:
		return "5xx"
	case status >= 400:
		return "4xx"
	case status >= 300:
		return "3xx"
	case status >= 200:
		return "2xx"
	default:
		return "1xx"
	}
}
