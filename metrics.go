package greq

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics records request outcomes in Prometheus collectors.
// A single Metrics value is meant to be shared by many requests.
type Metrics struct {
	requests *prometheus.CounterVec
	duration *prometheus.HistogramVec
	retries  *prometheus.CounterVec
}

// NewMetrics creates the collectors and registers them on reg when it is not nil.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "greq",
			Name:      "requests_total",
			Help:      "Completed HTTP requests by method and status code (code=error for transport failures).",
		}, []string{"method", "code"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "greq",
			Name:      "request_duration_seconds",
			Help:      "Time from first attempt to final response, including retries.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method"}),
		retries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "greq",
			Name:      "retries_total",
			Help:      "Retry attempts made after a transient failure.",
		}, []string{"method"}),
	}
	if reg != nil {
		reg.MustRegister(m.requests, m.duration, m.retries)
	}
	return m
}

func (m *Metrics) observe(method Method, code int, err error, elapsed time.Duration) {
	if m == nil {
		return
	}
	label := "error"
	if err == nil {
		label = strconv.Itoa(code)
	}
	m.requests.WithLabelValues(string(method), label).Inc()
	m.duration.WithLabelValues(string(method)).Observe(elapsed.Seconds())
}

func (m *Metrics) retry(method Method) {
	if m == nil {
		return
	}
	m.retries.WithLabelValues(string(method)).Inc()
}
