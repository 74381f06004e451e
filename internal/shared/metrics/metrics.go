package metrics

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dsr_http_requests_total",
			Help: "Total HTTP requests handled",
		},
		[]string{"method", "route", "status"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "dsr_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)

	fileOpsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dsr_file_operations_total",
			Help: "File intake operations by kind, category and outcome",
		},
		[]string{"op", "category", "outcome"},
	)

	uploadBytes = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "dsr_upload_bytes",
			Help:    "Size of accepted uploads in bytes",
			Buckets: prometheus.ExponentialBuckets(1024, 4, 8),
		},
		[]string{"category"},
	)
)

// ObserveFileOp counts one upload, download or delete attempt.
func ObserveFileOp(op, category, outcome string) {
	if category == "" {
		category = "unknown"
	}
	fileOpsTotal.WithLabelValues(op, category, outcome).Inc()
}

// ObserveUploadBytes records the stored size of an accepted upload.
func ObserveUploadBytes(category string, n int64) {
	uploadBytes.WithLabelValues(category).Observe(float64(n))
}

// Middleware records request counts and latency keyed by the matched route,
// which keeps label cardinality bounded for wildcard paths.
func Middleware() gin.HandlerFunc {
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

// Handler exposes metrics in Prometheus text format.
func Handler() gin.HandlerFunc {
	return gin.WrapH(promhttp.Handler())
}
