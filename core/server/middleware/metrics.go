package middleware

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// routeUnmatched keeps scanner noise and 404s from exploding the route
// label: every path the router does not know collapses to one series.
const routeUnmatched = "unmatched"

var (
	requestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "surveybot_http_requests_total",
		Help: "Inbound webhook requests by route and status code.",
	}, []string{"route", "code"})

	requestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "surveybot_http_request_duration_seconds",
		Help:    "Inbound webhook request latency by route.",
		Buckets: prometheus.DefBuckets,
	}, []string{"route"})
)

// Metrics records request counts and latency per route. The route label
// is the matched chi pattern, resolved after the handler ran.
func Metrics(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sw := &statusWriter{ResponseWriter: w}
		next.ServeHTTP(sw, r)

		route := routeUnmatched
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if pattern := rctx.RoutePattern(); pattern != "" {
				route = pattern
			}
		}
		requestsTotal.WithLabelValues(route, strconv.Itoa(sw.Status())).Inc()
		requestDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())
	})
}
