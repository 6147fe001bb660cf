package metrics

import (
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var HttpRequestsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total number of HTTP requests received",
	},
	[]string{"method", "path", "status"},
)

var HttpRequestDuration = promauto.NewHistogramVec(
	prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "Duration of HTTP requests in seconds",
		Buckets: prometheus.DefBuckets,
	},
	[]string{"method", "path"},
)

var NotificationsRecordedTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "notifications_recorded_total",
		Help: "Total number of notification ledger entries written",
	},
	[]string{"kind"},
)

var MomentsCreatedTotal = promauto.NewCounter(
	prometheus.CounterOpts{
		Name: "moments_created_total",
		Help: "Total number of moments created",
	},
)

var OTPVerificationsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "otp_verifications_total",
		Help: "OTP verification outcomes",
	},
	[]string{"result"},
)

var EphemeralReclaimedTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "ephemeral_reclaimed_total",
		Help: "Expired rows removed by the reclamation job",
	},
	[]string{"collection"},
)

// Middleware records request count and latency per route template
func Middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)

			status := c.Response().Status
			if he, ok := err.(*echo.HTTPError); ok {
				status = he.Code
			}
			path := c.Path()
			if path == "" {
				path = "unmatched"
			}

			HttpRequestsTotal.WithLabelValues(c.Request().Method, path, strconv.Itoa(status)).Inc()
			HttpRequestDuration.WithLabelValues(c.Request().Method, path).Observe(time.Since(start).Seconds())
			return err
		}
	}
}
