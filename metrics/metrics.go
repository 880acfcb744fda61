// Package metrics collects request and run statistics of inspections.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/prometheus/client_golang/prometheus/push"
)

const (
	prometheusNamespace = "imagespy_inspect"
	pushJob             = "imagespy_inspect"
)

// Metrics holds the collectors of one process. A nil *Metrics is valid and
// records nothing.
type Metrics struct {
	completionTime  prometheus.Gauge
	duration        prometheus.Gauge
	failed          prometheus.Gauge
	inFlight        prometheus.Gauge
	promPusher      *push.Pusher
	registry        *prometheus.Registry
	requestDuration *prometheus.HistogramVec
	requests        *prometheus.CounterVec
}

// New creates the collectors. If pushgatewayURL is not empty Push sends them
// to that Pushgateway.
func New(pushgatewayURL string) *Metrics {
	m := &Metrics{
		completionTime: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: prometheusNamespace,
			Name:      "last_completion_timestamp_seconds",
			Help:      "The timestamp of the last completion of an inspection, successful or not.",
		}),
		duration: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: prometheusNamespace,
			Name:      "duration_seconds",
			Help:      "The duration of the last inspection in seconds.",
		}),
		failed: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: prometheusNamespace,
			Name:      "last_run_failed",
			Help:      "1 if the last inspection failed, 0 otherwise.",
		}),
		inFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: prometheusNamespace,
			Name:      "registry_requests_in_flight",
			Help:      "The number of registry requests currently being served.",
		}),
		registry: prometheus.NewRegistry(),
		requestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: prometheusNamespace,
			Name:      "registry_request_duration_seconds",
			Help:      "Duration of registry requests.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"code", "method"}),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: prometheusNamespace,
			Name:      "registry_requests_total",
			Help:      "The number of registry requests by call and status code.",
		}, []string{"call", "code"}),
	}

	m.registry.MustRegister(m.completionTime, m.duration, m.failed, m.inFlight, m.requestDuration, m.requests)
	if pushgatewayURL != "" {
		m.promPusher = push.New(pushgatewayURL, pushJob).Gatherer(m.registry)
	}

	return m
}

// Gatherer exposes the registry of the collectors.
func (m *Metrics) Gatherer() prometheus.Gatherer {
	return m.registry
}

// InstrumentRoundTripper wraps next to record in-flight requests and
// request durations.
func (m *Metrics) InstrumentRoundTripper(next http.RoundTripper) http.RoundTripper {
	if m == nil {
		return next
	}

	return promhttp.InstrumentRoundTripperInFlight(m.inFlight,
		promhttp.InstrumentRoundTripperDuration(m.requestDuration, next),
	)
}

// ObserveRequest counts one registry call. A code of 0 means the request
// did not produce a response.
func (m *Metrics) ObserveRequest(call string, code int) {
	if m == nil {
		return
	}

	m.requests.WithLabelValues(call, strconv.Itoa(code)).Inc()
}

// RunFinished records the outcome of one inspection started at start.
func (m *Metrics) RunFinished(start time.Time, err error) {
	if m == nil {
		return
	}

	m.duration.Set(time.Since(start).Seconds())
	m.completionTime.SetToCurrentTime()
	if err != nil {
		m.failed.Set(1)
	} else {
		m.failed.Set(0)
	}
}

// Push sends all collectors to the Pushgateway. It does nothing if no
// Pushgateway is configured.
func (m *Metrics) Push() error {
	if m == nil || m.promPusher == nil {
		return nil
	}

	return m.promPusher.Add()
}
