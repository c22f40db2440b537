package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	requestCount    *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	predictions     *prometheus.CounterVec
	failures        *prometheus.CounterVec
}

// New registers the service collectors on reg.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		requestCount: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests",
			}, []string{"path", "method", "status"},
		),
		requestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "Duration of HTTP requests in seconds",
				Buckets: prometheus.DefBuckets,
			}, []string{"path"},
		),
		predictions: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "braintumor_predictions_total",
				Help: "Predictions served, by predicted class",
			}, []string{"class"},
		),
		failures: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "braintumor_prediction_failures_total",
				Help: "Failed predictions, by pipeline stage",
			}, []string{"stage"},
		),
	}
}

// The observe methods are no-ops on a nil *Metrics.

func (m *Metrics) ObserveRequest(path, method string, status int, d time.Duration) {
	if m == nil {
		return
	}
	m.requestCount.WithLabelValues(path, method, strconv.Itoa(status)).Inc()
	m.requestDuration.WithLabelValues(path).Observe(d.Seconds())
}

func (m *Metrics) ObservePrediction(class string) {
	if m == nil {
		return
	}
	m.predictions.WithLabelValues(class).Inc()
}

func (m *Metrics) ObserveFailure(stage string) {
	if m == nil {
		return
	}
	m.failures.WithLabelValues(stage).Inc()
}
