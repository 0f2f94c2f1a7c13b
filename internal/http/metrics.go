package http

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "imagedrop_http_requests_total",
			Help: "HTTP requests served, by route template.",
		},
		[]string{"method", "route", "status"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "imagedrop_http_request_duration_seconds",
			Help:    "HTTP request latency in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)

	loginAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "imagedrop_login_attempts_total",
			Help: "Login attempts by result.",
		},
		[]string{"result"},
	)

	uploads = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "imagedrop_uploads_total",
			Help: "Upload attempts by result.",
		},
		[]string{"result"},
	)

	mirrored = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "imagedrop_mirror_uploads_total",
			Help: "Copies pushed to the object store mirror, by result.",
		},
		[]string{"result"},
	)
)

// metricsMiddleware labels requests with the matched route template so
// arbitrary file names do not blow up cardinality.
func metricsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		method := c.Request.Method
		httpRequestsTotal.WithLabelValues(method, route, strconv.Itoa(c.Writer.Status())).Inc()
		httpRequestDuration.WithLabelValues(method, route).Observe(time.Since(start).Seconds())
	}
}
