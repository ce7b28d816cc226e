package apiclient

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Recorder receives one observation per request. status is 0 when no
// response arrived.
type Recorder interface {
	ObserveRequest(method string, status int, elapsed time.Duration)
}

// Collector is the Prometheus Recorder.
type Collector struct {
	requests *prometheus.CounterVec
	latency  *prometheus.HistogramVec
}

var _ Recorder = (*Collector)(nil)

// NewCollector registers the client metrics with reg.
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "classroom_api_requests_total",
			Help: "Backend API requests by method and status class.",
		}, []string{"method", "code"}),
		latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "classroom_api_request_duration_seconds",
			Help:    "Backend API request latency in seconds.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method"}),
	}

	reg.MustRegister(c.requests, c.latency)

	return c
}

// ObserveRequest implements Recorder.
func (c *Collector) ObserveRequest(method string, status int, elapsed time.Duration) {
	c.requests.WithLabelValues(method, statusClass(status)).Inc()
	c.latency.WithLabelValues(method).Observe(elapsed.Seconds())
}

// statusClass buckets a status as "2xx", "4xx", ... or "error".
func statusClass(status int) string {
	if status < 100 || status > 599 {
		return "error"
	}
	return strconv.Itoa(status/100) + "xx"
}
