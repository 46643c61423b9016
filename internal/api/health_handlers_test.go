package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

// stubChecker returns a fixed health check result.
type stubChecker struct {
	err error
}

func (c stubChecker) HealthCheck(ctx context.Context) error { return c.err }

func decodeHealth(t *testing.T, rr *httptest.ResponseRecorder) HealthResponse {
	t.Helper()
	var resp HealthResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode health body %q: %v", rr.Body.String(), err)
	}
	return resp
}

// TestHealth verifies the liveness probe always reports healthy.
func TestHealth(t *testing.T) {
	handlers := NewHealthHandlers(HealthHandlersConfig{})

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rr := httptest.NewRecorder()
	handlers.Health(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	resp := decodeHealth(t, rr)
	if resp.Status != "healthy" {
		t.Errorf("expected healthy, got %q", resp.Status)
	}
}

// TestReady tests the readiness probe across dependency states.
func TestReady(t *testing.T) {
	tests := []struct {
		name           string
		config         HealthHandlersConfig
		expectedCode   int
		expectedStatus string
		expectedChecks map[string]string
	}{
		{
			name:           "no checkers configured",
			config:         HealthHandlersConfig{},
			expectedCode:   http.StatusOK,
			expectedStatus: "healthy",
			expectedChecks: map[string]string{"database": "ok", "redis": "ok"},
		},
		{
			name: "all dependencies healthy",
			config: HealthHandlersConfig{
				DBChecker:    stubChecker{},
				RedisChecker: stubChecker{},
			},
			expectedCode:   http.StatusOK,
			expectedStatus: "healthy",
			expectedChecks: map[string]string{"database": "ok", "redis": "ok"},
		},
		{
			name: "database down",
			config: HealthHandlersConfig{
				DBChecker:    stubChecker{err: errors.New("connection refused")},
				RedisChecker: stubChecker{},
			},
			expectedCode:   http.StatusServiceUnavailable,
			expectedStatus: "unhealthy",
			expectedChecks: map[string]string{"database": "error", "redis": "ok"},
		},
		{
			name: "redis down",
			config: HealthHandlersConfig{
				DBChecker:    stubChecker{},
				RedisChecker: stubChecker{err: errors.New("connection refused")},
			},
			expectedCode:   http.StatusServiceUnavailable,
			expectedStatus: "unhealthy",
			expectedChecks: map[string]string{"database": "ok", "redis": "error"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handlers := NewHealthHandlers(tt.config)

			req := httptest.NewRequest(http.MethodGet, "/ready", nil)
			rr := httptest.NewRecorder()
			handlers.Ready(rr, req)

			if rr.Code != tt.expectedCode {
				t.Fatalf("expected status %d, got %d", tt.expectedCode, rr.Code)
			}
			resp := decodeHealth(t, rr)
			if resp.Status != tt.expectedStatus {
				t.Errorf("expected %q, got %q", tt.expectedStatus, resp.Status)
			}
			for check, want := range tt.expectedChecks {
				if got := resp.Checks[check]; got != want {
					t.Errorf("check %s: expected %q, got %q", check, want, got)
				}
			}
		})
	}
}

// TestHealthMethodNotAllowed verifies non-GET requests are rejected.
func TestHealthMethodNotAllowed(t *testing.T) {
	handlers := NewHealthHandlers(HealthHandlersConfig{})

	for _, probe := range []http.HandlerFunc{handlers.Health, handlers.Ready} {
		req := httptest.NewRequest(http.MethodPost, "/health", nil)
		rr := httptest.NewRecorder()
		probe(rr, req)
		if rr.Code != http.StatusMethodNotAllowed {
			t.Errorf("expected 405, got %d", rr.Code)
		}
	}
}
