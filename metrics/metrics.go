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
	RepliesCreated = promauto.NewCounter(prometheus.CounterOpts{
		Name: "quid_replies_created_total",
		Help: "Replies persisted.",
	})
	ProloguesCreated = promauto.NewCounter(prometheus.CounterOpts{
		Name: "quid_prologues_created_total",
		Help: "Prologues persisted.",
	})
	InterestCaptured = promauto.NewCounter(prometheus.CounterOpts{
		Name: "quid_interest_emails_total",
		Help: "Interest emails captured.",
	})
	ValidationRejected = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "quid_validation_rejected_total",
		Help: "Form submissions rejected by validation, by form.",
	}, []string{"form"})
	AdminDenied = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "quid_admin_denied_total",
		Help: "Admin requests rejected, by HTTP status.",
	}, []string{"status"})

	httpRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "quid_http_requests_total",
		Help: "HTTP requests by method, route and status.",
	}, []string{"method", "route", "status"})
	httpDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "quid_http_request_duration_seconds",
		Help:    "HTTP request latency by route.",
		Buckets: prometheus.DefBuckets,
	}, []string{"route"})
)

// Middleware records request counts and latency per matched route.
func Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		httpRequests.WithLabelValues(c.Request.Method, route, strconv.Itoa(c.Writer.Status())).Inc()
		httpDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())
	}
}

// Handler exposes the default registry.
func Handler() gin.HandlerFunc {
	return gin.WrapH(promhttp.Handler())
}
