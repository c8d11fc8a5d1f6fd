package session

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	// httpReqs counts outbound requests by method and status code. The URL
	// path is deliberately not a label: paths carry trip and user ids, so
	// labelling on them would make cardinality unbounded.
	httpReqs = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "howl_client_http_requests_total",
			Help: "Total number of outbound HTTP requests.",
		},
		[]string{"method", "status"},
	)

	// httpLat records request duration in seconds by method.
	httpLat = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "howl_client_http_request_duration_seconds",
			Help:    "Duration of outbound HTTP requests in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method"},
	)

	// httpInflight gauges the number of in-flight outbound requests.
	httpInflight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "howl_client_http_requests_inflight",
			Help: "Current number of in-flight outbound HTTP requests.",
		},
	)

	// tokenRefreshes counts refresh cycles by outcome ("success"/"failure").
	tokenRefreshes = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "howl_client_token_refresh_total",
			Help: "Total number of token refresh cycles by outcome.",
		},
		[]string{"outcome"},
	)
)

func init() {
	prometheus.MustRegister(httpReqs, httpLat, httpInflight, tokenRefreshes)
}

// observeRequest records one completed outbound request.
func observeRequest(method string, status int, start time.Time) {
	httpReqs.WithLabelValues(method, strconv.Itoa(status)).Inc()
	httpLat.WithLabelValues(method).Observe(time.Since(start).Seconds())
}
