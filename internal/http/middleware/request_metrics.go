package middleware

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/valyala/fasthttp"
)

// RequestMetrics counts served requests and their durations per route.
// routeOf maps a request to a low-cardinality route label (the matched
// pattern); requests it maps to "" are not recorded.
func RequestMetrics(reg prometheus.Registerer, routeOf func(*fasthttp.RequestCtx) string) func(fasthttp.RequestHandler) fasthttp.RequestHandler {
	requestsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "taskpulse",
			Name:      "http_requests_total",
			Help:      "Total number of served API requests.",
		},
		[]string{"route", "method", "status"},
	)
	requestDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "taskpulse",
			Name:      "http_request_duration_seconds",
			Help:      "Histogram of served API request durations in seconds.",
			Buckets:   []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2, 5},
		},
		[]string{"route", "method"},
	)
	reg.MustRegister(requestsTotal, requestDuration)

	return func(next fasthttp.RequestHandler) fasthttp.RequestHandler {
		return func(ctx *fasthttp.RequestCtx) {
			start := time.Now()
			next(ctx)

			route := routeOf(ctx)
			if route == "" || route == "/metrics" || route == "/healthz" {
				return
			}
			method := string(ctx.Method())
			requestsTotal.WithLabelValues(route, method, strconv.Itoa(ctx.Response.StatusCode())).Inc()
			requestDuration.WithLabelValues(route, method).Observe(time.Since(start).Seconds())
		}
	}
}
