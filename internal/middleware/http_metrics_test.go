package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

// TestNormalizePath verifies known routes pass through and everything else
// collapses to one label.
func TestNormalizePath(t *testing.T) {
	tests := []struct {
		path     string
		expected string
	}{
		{"/", "/"},
		{"/samples", "/samples"},
		{"/train", "/train"},
		{"/weights", "/weights"},
		{"/sessions", "/sessions"},
		{"/health", "/health"},
		{"/ready", "/ready"},
		{"/metrics", "/metrics"},
		{"/samples/123", "/other"},
		{"/admin", "/other"},
		{"/../etc/passwd", "/other"},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			if got := normalizePath(tt.path); got != tt.expected {
				t.Errorf("expected %q, got %q", tt.expected, got)
			}
		})
	}
}

// counterValue reads a labeled counter's current value.
func counterValue(t *testing.T, vec *prometheus.CounterVec, labels ...string) float64 {
	t.Helper()
	c, err := vec.GetMetricWithLabelValues(labels...)
	if err != nil {
		t.Fatalf("failed to get metric: %v", err)
	}
	var m dto.Metric
	if err := c.Write(&m); err != nil {
		t.Fatalf("failed to read metric: %v", err)
	}
	return m.GetCounter().GetValue()
}

// TestHTTPMetricsRecords verifies the middleware records count and labels.
func TestHTTPMetricsRecords(t *testing.T) {
	metrics := NewMetrics()
	registry := prometheus.NewRegistry()
	if err := metrics.Register(registry); err != nil {
		t.Fatalf("failed to register metrics: %v", err)
	}

	handler := HTTPMetrics(metrics)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusAccepted)
	}))

	for i := 0; i < 3; i++ {
		req := httptest.NewRequest(http.MethodPost, "/samples", nil)
		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, req)
	}

	got := counterValue(t, metrics.httpRequestsTotal, "POST", "/samples", "202")
	if got != 3 {
		t.Errorf("expected 3 requests recorded, got %v", got)
	}
}

// TestHTTPMetricsCollapsesUnknownPaths verifies unknown paths share the
// /other label.
func TestHTTPMetricsCollapsesUnknownPaths(t *testing.T) {
	metrics := NewMetrics()
	registry := prometheus.NewRegistry()
	if err := metrics.Register(registry); err != nil {
		t.Fatalf("failed to register metrics: %v", err)
	}

	handler := HTTPMetrics(metrics)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))

	for _, path := range []string{"/unknown-1", "/unknown-2", "/a/b/c"} {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, req)
	}

	got := counterValue(t, metrics.httpRequestsTotal, "GET", "/other", "404")
	if got != 3 {
		t.Errorf("expected 3 requests under /other, got %v", got)
	}
}

// TestHTTPMetricsNilSafe verifies the middleware passes through without a
// collector configured.
func TestHTTPMetricsNilSafe(t *testing.T) {
	handler := HTTPMetrics(nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/weights", nil)
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rr.Code)
	}
}
