package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func metricsRouter() http.Handler {
	r := chi.NewRouter()
	r.Use(Metrics)
	r.Get("/widgets/{id}", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	return r
}

func TestMetricsLabelsMatchedRoutePattern(t *testing.T) {
	router := metricsRouter()
	for _, path := range []string{"/widgets/1", "/widgets/2"} {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		router.ServeHTTP(httptest.NewRecorder(), req)
	}

	if got := testutil.ToFloat64(requestsTotal.WithLabelValues("/widgets/{id}", "200")); got < 2 {
		t.Fatalf("pattern-labelled count = %v, want >= 2", got)
	}
	// Raw paths must never become label values.
	if got := testutil.ToFloat64(requestsTotal.WithLabelValues("/widgets/1", "200")); got != 0 {
		t.Fatalf("raw path was used as a route label, count = %v", got)
	}
}

func TestMetricsCollapsesUnmatchedRoutes(t *testing.T) {
	router := metricsRouter()
	before := testutil.ToFloat64(requestsTotal.WithLabelValues(routeUnmatched, "404"))

	for _, path := range []string{"/wp-admin", "/.env", "/scan/0451"} {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		router.ServeHTTP(httptest.NewRecorder(), req)
	}

	after := testutil.ToFloat64(requestsTotal.WithLabelValues(routeUnmatched, "404"))
	if after-before != 3 {
		t.Fatalf("unmatched count delta = %v, want 3", after-before)
	}
	if got := testutil.ToFloat64(requestsTotal.WithLabelValues("/wp-admin", "404")); got != 0 {
		t.Fatalf("unmatched path leaked into labels, count = %v", got)
	}
}
