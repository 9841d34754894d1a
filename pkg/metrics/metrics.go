// Package metrics exposes Prometheus instrumentation for sampling and HTTP
package metrics

import (
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	SamplesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "geofence_samples_total",
		Help: "Total number of accepted samples",
	})

	SampleAttempts = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "geofence_sample_attempts",
		Help:    "Candidates drawn per sample call",
		Buckets: []float64{1, 2, 3, 5, 10, 25, 100, 1000, 10000},
	})

	SamplingExhaustedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "geofence_sampling_exhausted_total",
		Help: "Total number of sample calls that hit the attempt cap",
	})

	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "geofence_http_requests_total",
		Help: "Total HTTP requests by route and status",
	}, []string{"route", "status"})
)

// ObserveSample records one sampler call. It matches sampler.Observer.
func ObserveSample(attempts int, exhausted bool) {
	SampleAttempts.Observe(float64(attempts))
	if exhausted {
		SamplingExhaustedTotal.Inc()
		return
	}
	SamplesTotal.Inc()
}

// ObserveRequest records a served HTTP request
func ObserveRequest(route string, status int) {
	HTTPRequestsTotal.WithLabelValues(route, strconv.Itoa(status)).Inc()
}

// Handler serves the default registry
func Handler() http.Handler { return promhttp.Handler() }
