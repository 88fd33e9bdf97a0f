package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestMetricsMiddleware_RecordsRoutePattern(t *testing.T) {
	r := chi.NewRouter()
	r.Use(Middleware())
	r.Get("/runs/{id}", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("ok"))
	})

	for _, id := range []string{"a", "b"} {
		rr := httptest.NewRecorder()
		r.ServeHTTP(rr, httptest.NewRequest("GET", "/runs/"+id, http.NoBody))
		if rr.Code != 200 {
			t.Fatalf("expected status 200, got %d", rr.Code)
		}
	}

	if v := testutil.ToFloat64(httpRequestsTotal.WithLabelValues("GET", "/runs/{id}", "200")); v < 2 {
		t.Errorf("expected both ids under one series, got %f", v)
	}
	if testutil.CollectAndCount(httpRequestDuration) == 0 {
		t.Error("expected request_duration_seconds to have observations")
	}
	if v := testutil.ToFloat64(httpResponseBytes.WithLabelValues("/runs/{id}")); v < 4 {
		t.Errorf("expected >= 4 response bytes, got %f", v)
	}
	if v := testutil.ToFloat64(httpInFlight); v != 0 {
		t.Errorf("in-flight gauge not released: %f", v)
	}
}

func TestMetricsMiddleware_InFlightDuringHandler(t *testing.T) {
	r := chi.NewRouter()
	r.Use(Middleware())
	var during float64
	r.Post("/scan", func(w http.ResponseWriter, r *http.Request) {
		during = testutil.ToFloat64(httpInFlight)
		w.WriteHeader(http.StatusAccepted)
	})

	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("POST", "/scan", http.NoBody))
	if during < 1 {
		t.Errorf("expected in-flight >= 1 inside handler, got %f", during)
	}
	if v := testutil.ToFloat64(httpRequestsTotal.WithLabelValues("POST", "/scan", "202")); v != 1 {
		t.Errorf("expected one 202, got %f", v)
	}
}

func TestMetricsMiddleware_UnmatchedRoute(t *testing.T) {
	r := chi.NewRouter()
	r.Use(Middleware())
	r.Get("/runs", func(w http.ResponseWriter, r *http.Request) {})

	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("GET", "/nope", http.NoBody))
	if v := testutil.ToFloat64(httpRequestsTotal.WithLabelValues("GET", "unknown", "404")); v < 1 {
		t.Errorf("expected unmatched route under unknown, got %f", v)
	}
}

func TestMetricsMiddleware_StatusCodes(t *testing.T) {
	r := chi.NewRouter()
	r.Use(Middleware())
	r.Get("/runs", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("[]"))
	})
	r.Get("/runs/{id}/features", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})
	r.Get("/boom", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		w.WriteHeader(http.StatusOK)
	})

	tests := []struct {
		url, pattern, status string
	}{
		{"/runs", "/runs", "200"},
		{"/runs/x/features", "/runs/{id}/features", "404"},
		{"/boom", "/boom", "500"},
	}
	for _, tc := range tests {
		t.Run(tc.url, func(t *testing.T) {
			r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("GET", tc.url, http.NoBody))
			if v := testutil.ToFloat64(httpRequestsTotal.WithLabelValues("GET", tc.pattern, tc.status)); v < 1 {
				t.Errorf("expected requests_total{%s,%s} >= 1, got %f", tc.pattern, tc.status, v)
			}
		})
	}
}

func TestNormalizePath(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"", "unknown"},
		{"/runs/{id}", "/runs/{id}"},
		{"/static/*", "/static"},
		{"/*", "/*"},
	}
	for _, tc := range tests {
		if got := normalizePath(tc.input); got != tc.expected {
			t.Errorf("normalizePath(%q) = %q, want %q", tc.input, got, tc.expected)
		}
	}
}

func TestHandler_ExposesScanMetrics(t *testing.T) {
	RegisterScanMetrics()
	RegisterScanMetrics()
	SamplesTotal.Add(3)
	FeaturesTotal.WithLabelValues("area").Inc()

	rr := httptest.NewRecorder()
	Handler().ServeHTTP(rr, httptest.NewRequest("GET", "/metrics", http.NoBody))
	body, err := io.ReadAll(rr.Body)
	if err != nil {
		t.Fatalf("failed to read body: %v", err)
	}
	for _, name := range []string{"edgescan_samples_total", "edgescan_features_total"} {
		if !strings.Contains(string(body), name) {
			t.Errorf("expected %s in exposition", name)
		}
	}
	if v := testutil.ToFloat64(SamplesTotal); v < 3 {
		t.Errorf("expected samples_total >= 3, got %f", v)
	}
}
