// Package metrics holds the Prometheus collectors of the service and an
// echo middleware that records request counts and latencies.
package metrics

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	authOutcomes = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "auth_operations_total",
			Help: "Credential lifecycle operations by outcome.",
		},
		[]string{"operation", "outcome"},
	)

	httpInFlight = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "http_in_flight_requests",
		Help: "In-flight HTTP requests.",
	})

	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests.",
		},
		[]string{"method", "route", "status"},
	)

	httpRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latencies in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route", "status"},
	)

	registerOnce sync.Once
)

// Init registers the collectors in the default registry.  Safe to call twice.
func Init() {
	registerOnce.Do(func() {
		prometheus.MustRegister(authOutcomes, httpInFlight, httpRequestsTotal, httpRequestDuration)
	})
}

// Handler serves the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObserveAuth counts one credential operation ("login", "refresh", ...)
// with its outcome ("ok", "invalid_token", ...).
func ObserveAuth(operation, outcome string) {
	authOutcomes.WithLabelValues(operation, outcome).Inc()
}

// AuthCounter exposes one auth counter series.
func AuthCounter(operation, outcome string) prometheus.Counter {
	return authOutcomes.WithLabelValues(operation, outcome)
}

// Instrument records in-flight, count and latency per matched route.
func Instrument() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			httpInFlight.Inc()
			defer httpInFlight.Dec()

			start := time.Now()
			err := next(c)
			if err != nil {
				c.Error(err)
			}

			route := c.Path()
			if route == "" {
				route = "unmatched"
			}
			status := strconv.Itoa(c.Response().Status)
			method := c.Request().Method
			httpRequestDuration.WithLabelValues(method, route, status).Observe(time.Since(start).Seconds())
			httpRequestsTotal.WithLabelValues(method, route, status).Inc()
			return nil
		}
	}
}
