package middleware

import (
	"strconv"
	"sync"
	"time"

	"FinProfile/pkg/logger"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type httpMetrics struct {
	requests *prometheus.CounterVec
	duration *prometheus.HistogramVec
	inFlight *prometheus.GaugeVec
	size     *prometheus.HistogramVec
}

var (
	metricsOnce sync.Once
	metrics     *httpMetrics
	registerer  prometheus.Registerer = prometheus.DefaultRegisterer
)

// SetRegisterer overrides where HTTP metrics are registered. Call before
// the first Metrics middleware is built.
func SetRegisterer(reg prometheus.Registerer) {
	if reg != nil {
		registerer = reg
	}
}

func loadMetrics() *httpMetrics {
	metricsOnce.Do(func() {
		f := promauto.With(registerer)
		metrics = &httpMetrics{
			requests: f.NewCounterVec(prometheus.CounterOpts{
				Name: "finprofile_http_requests_total",
				Help: "Total number of HTTP requests",
			}, []string{"route", "method", "status"}),
			duration: f.NewHistogramVec(prometheus.HistogramOpts{
				Name:    "finprofile_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
			}, []string{"route", "method", "class"}),
			inFlight: f.NewGaugeVec(prometheus.GaugeOpts{
				Name: "finprofile_http_in_flight_requests",
				Help: "Current number of in-flight HTTP requests",
			}, []string{"route"}),
			size: f.NewHistogramVec(prometheus.HistogramOpts{
				Name:    "finprofile_http_response_size_bytes",
				Help:    "HTTP response size in bytes",
				Buckets: []float64{200, 1_000, 5_000, 20_000, 100_000, 500_000},
			}, []string{"route", "class"}),
		}
	})
	return metrics
}

// Metrics records request metrics labelled by the route template and logs
// server errors and slow requests.
func Metrics(l *logger.Logger, slowThreshold time.Duration) echo.MiddlewareFunc {
	m := loadMetrics()
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			route := c.Path()
			if route == "" {
				route = "unmatched"
			}
			method := c.Request().Method

			m.inFlight.WithLabelValues(route).Inc()
			start := time.Now()
			err := next(c)
			if err != nil {
				c.Error(err)
			}
			elapsed := time.Since(start)
			m.inFlight.WithLabelValues(route).Dec()

			code := c.Response().Status
			status := strconv.Itoa(code)
			class := statusClass(code)
			m.requests.WithLabelValues(route, method, status).Inc()
			m.duration.WithLabelValues(route, method, class).Observe(elapsed.Seconds())
			m.size.WithLabelValues(route, class).Observe(float64(c.Response().Size))

			if l == nil {
				return nil
			}
			switch {
			case code >= 500:
				l.Error("http request failed",
					logger.String("route", route),
					logger.String("method", method),
					logger.Int("status", code),
					logger.Duration("duration_ms", elapsed),
					logger.Error(err))
			case slowThreshold > 0 && elapsed >= slowThreshold:
				l.Warn("http request slow",
					logger.String("route", route),
					logger.String("method", method),
					logger.Int("status", code),
					logger.Duration("duration_ms", elapsed))
			}
			return nil
		}
	}
}

func statusClass(code int) string {
	switch {
	case code < 200:
		return "1xx"
	case code < 300:
		return "2xx"
	case code < 400:
		return "3xx"
	case code < 500:
		return "4xx"
	default:
		return "5xx"
	}
}
