package core

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// PrometheusMetricsRecorder exports operation latency and outcome counts as
// Prometheus collectors.
type PrometheusMetricsRecorder struct {
	latency *prometheus.HistogramVec
	results *prometheus.CounterVec
}

// NewPrometheusMetricsRecorder registers the recorder's collectors with reg.
// A nil registerer uses the default registry.
func NewPrometheusMetricsRecorder(reg prometheus.Registerer) (*PrometheusMetricsRecorder, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	r := &PrometheusMetricsRecorder{
		latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "charsheet",
			Name:      "operation_duration_seconds",
			Help:      "Latency of charsheet operations.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"operation"}),
		results: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "charsheet",
			Name:      "operations_total",
			Help:      "Completed charsheet operations by outcome.",
		}, []string{"operation", "status"}),
	}
	for _, c := range []prometheus.Collector{r.latency, r.results} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// Observe implements MetricsRecorder.
func (r *PrometheusMetricsRecorder) Observe(_ context.Context, operation string, success bool, duration time.Duration) {
	if operation == "" {
		return
	}
	r.latency.WithLabelValues(operation).Observe(duration.Seconds())
	r.results.WithLabelValues(operation, outcome(success)).Inc()
}
