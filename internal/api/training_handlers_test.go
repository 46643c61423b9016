package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/serplab/ranktune/internal/scoring"
	"github.com/serplab/ranktune/internal/store"
	"github.com/serplab/ranktune/internal/training"
)

func newTrainingFixture(t *testing.T, minSamples int) (*TrainingHandlers, *store.MemorySampleStore, *store.MemorySessionLedger) {
	t.Helper()
	weights := store.NewMemoryWeightStoreWith(scoring.DefaultWeights())
	samples := store.NewMemorySampleStore()
	ledger := store.NewMemorySessionLedger()
	policy := training.NewPolicy(training.PolicyConfig{
		Trainer: training.TrainerConfig{MinSamples: minSamples},
		Logger:  slog.New(slog.DiscardHandler),
	}, weights, ledger)
	handlers := NewTrainingHandlers(policy, weights, samples, ledger, 500, slog.New(slog.DiscardHandler))
	return handlers, samples, ledger
}

func addSamples(t *testing.T, samples *store.MemorySampleStore, cRanks []float64) {
	t.Helper()
	for i, c := range cRanks {
		sample, err := scoring.NewSample(map[string]float64{scoring.FeatureCRank: c}, i+1, 0)
		if err != nil {
			t.Fatalf("building sample: %v", err)
		}
		if err := samples.Add(context.Background(), sample); err != nil {
			t.Fatalf("storing sample: %v", err)
		}
	}
}

// TestForceTrainInsufficientSamples verifies POST /train returns 422 with a
// machine-readable code when too little data has accumulated.
func TestForceTrainInsufficientSamples(t *testing.T) {
	handlers, _, _ := newTrainingFixture(t, 10)

	req := httptest.NewRequest(http.MethodPost, "/train", nil)
	rr := httptest.NewRecorder()
	handlers.ForceTrain(rr, req)

	if rr.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d (%s)", rr.Code, rr.Body.String())
	}
	resp := decodeError(t, rr)
	if resp.Error.Code != ErrCodeInsufficientSamples {
		t.Errorf("expected code %q, got %q", ErrCodeInsufficientSamples, resp.Error.Code)
	}
}

// TestForceTrainSuccess verifies the trained outcome and session payload.
func TestForceTrainSuccess(t *testing.T) {
	handlers, samples, ledger := newTrainingFixture(t, 3)
	addSamples(t, samples, []float64{90, 70, 50, 30, 10})

	req := httptest.NewRequest(http.MethodPost, "/train", nil)
	rr := httptest.NewRecorder()
	handlers.ForceTrain(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d (%s)", rr.Code, rr.Body.String())
	}

	var resp struct {
		Outcome string                 `json:"outcome"`
		Weights scoring.FeatureWeights `json:"weights"`
		Session *struct {
			SessionID   string `json:"session_id"`
			SamplesUsed int    `json:"samples_used"`
		} `json:"session"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.Outcome != "trained" {
		t.Errorf("expected outcome trained, got %q", resp.Outcome)
	}
	if resp.Session == nil || resp.Session.SessionID == "" {
		t.Fatal("expected a session record")
	}
	if resp.Session.SamplesUsed != 5 {
		t.Errorf("expected 5 samples used, got %d", resp.Session.SamplesUsed)
	}
	if err := resp.Weights.Validate(); err != nil {
		t.Errorf("returned weights out of bounds: %v", err)
	}

	sessions, err := ledger.RecentSessions(context.Background(), 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(sessions) != 1 {
		t.Errorf("expected 1 persisted session, got %d", len(sessions))
	}
}

// brokenWeightStore fails on Save, to exercise the persist-failure response.
type brokenWeightStore struct{ saveErr error }

func (s brokenWeightStore) Current(ctx context.Context) (scoring.FeatureWeights, error) {
	return scoring.DefaultWeights(), nil
}

func (s brokenWeightStore) Save(ctx context.Context, weights scoring.FeatureWeights) error {
	return s.saveErr
}

// TestForceTrainPersistFailure verifies a weight-store failure during a
// forced retrain answers 500, never 200 with a failed outcome.
func TestForceTrainPersistFailure(t *testing.T) {
	weights := brokenWeightStore{saveErr: errors.New("disk full")}
	samples := store.NewMemorySampleStore()
	ledger := store.NewMemorySessionLedger()
	policy := training.NewPolicy(training.PolicyConfig{
		Trainer: training.TrainerConfig{MinSamples: 1},
		Logger:  slog.New(slog.DiscardHandler),
	}, weights, ledger)
	handlers := NewTrainingHandlers(policy, weights, samples, ledger, 500, slog.New(slog.DiscardHandler))
	addSamples(t, samples, []float64{90, 70, 50})

	req := httptest.NewRequest(http.MethodPost, "/train", nil)
	rr := httptest.NewRecorder()
	handlers.ForceTrain(rr, req)

	if rr.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d (%s)", rr.Code, rr.Body.String())
	}
	resp := decodeError(t, rr)
	if resp.Error.Code != ErrCodeInternal {
		t.Errorf("expected code %q, got %q", ErrCodeInternal, resp.Error.Code)
	}
}

// TestForceTrainMethodNotAllowed verifies GET /train is rejected.
func TestForceTrainMethodNotAllowed(t *testing.T) {
	handlers, _, _ := newTrainingFixture(t, 1)

	req := httptest.NewRequest(http.MethodGet, "/train", nil)
	rr := httptest.NewRecorder()
	handlers.ForceTrain(rr, req)

	if rr.Code != http.StatusMethodNotAllowed {
		t.Errorf("expected 405, got %d", rr.Code)
	}
}

// TestGetWeights verifies the stored vector is served with its source tag.
func TestGetWeights(t *testing.T) {
	handlers, _, _ := newTrainingFixture(t, 1)

	req := httptest.NewRequest(http.MethodGet, "/weights", nil)
	rr := httptest.NewRecorder()
	handlers.GetWeights(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	var resp struct {
		Weights scoring.FeatureWeights `json:"weights"`
		Source  string                 `json:"source"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.Source != "store" {
		t.Errorf("expected source store, got %q", resp.Source)
	}
	if !resp.Weights.Equal(scoring.DefaultWeights()) {
		t.Errorf("unexpected weights: %v", resp.Weights.Tunable())
	}
}

// TestGetWeightsDefaultFallback verifies the documented defaults are served
// before the first training run.
func TestGetWeightsDefaultFallback(t *testing.T) {
	weights := store.NewMemoryWeightStore() // empty
	handlers := NewTrainingHandlers(nil, weights, store.NewMemorySampleStore(),
		store.NewMemorySessionLedger(), 500, slog.New(slog.DiscardHandler))

	req := httptest.NewRequest(http.MethodGet, "/weights", nil)
	rr := httptest.NewRecorder()
	handlers.GetWeights(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	var resp struct {
		Weights scoring.FeatureWeights `json:"weights"`
		Source  string                 `json:"source"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.Source != "default" {
		t.Errorf("expected source default, got %q", resp.Source)
	}
	if !resp.Weights.Equal(scoring.DefaultWeights()) {
		t.Errorf("expected default weights, got %v", resp.Weights.Tunable())
	}
}

// TestListSessions tests limit handling and ordering on GET /sessions.
func TestListSessions(t *testing.T) {
	ledger := store.NewMemorySessionLedger()
	for i := 0; i < 30; i++ {
		session := &training.TrainingSession{
			SessionID: string(rune('a' + i)),
			StartedAt: time.Now().UTC(),
		}
		if err := ledger.SaveSession(context.Background(), session); err != nil {
			t.Fatalf("storing session: %v", err)
		}
	}
	handlers := NewTrainingHandlers(nil, store.NewMemoryWeightStore(),
		store.NewMemorySampleStore(), ledger, 500, slog.New(slog.DiscardHandler))

	tests := []struct {
		name         string
		query        string
		expectedCode int
		expectedLen  int
	}{
		{"default limit", "", http.StatusOK, 20},
		{"explicit limit", "?limit=5", http.StatusOK, 5},
		{"limit capped at maximum", "?limit=500", http.StatusOK, 30},
		{"zero limit rejected", "?limit=0", http.StatusBadRequest, 0},
		{"negative limit rejected", "?limit=-3", http.StatusBadRequest, 0},
		{"non-numeric limit rejected", "?limit=abc", http.StatusBadRequest, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/sessions"+tt.query, nil)
			rr := httptest.NewRecorder()
			handlers.ListSessions(rr, req)

			if rr.Code != tt.expectedCode {
				t.Fatalf("expected status %d, got %d (%s)", tt.expectedCode, rr.Code, rr.Body.String())
			}
			if tt.expectedCode != http.StatusOK {
				return
			}
			var resp struct {
				Sessions []*training.TrainingSession `json:"sessions"`
			}
			if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
				t.Fatalf("failed to decode response: %v", err)
			}
			if len(resp.Sessions) != tt.expectedLen {
				t.Errorf("expected %d sessions, got %d", tt.expectedLen, len(resp.Sessions))
			}
		})
	}
}

// TestListSessionsEmpty verifies an empty ledger yields an empty array, not
// null.
func TestListSessionsEmpty(t *testing.T) {
	handlers := NewTrainingHandlers(nil, store.NewMemoryWeightStore(),
		store.NewMemorySampleStore(), store.NewMemorySessionLedger(), 500,
		slog.New(slog.DiscardHandler))

	req := httptest.NewRequest(http.MethodGet, "/sessions", nil)
	rr := httptest.NewRecorder()
	handlers.ListSessions(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(rr.Body.Bytes(), &raw); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if string(raw["sessions"]) == "null" {
		t.Error("expected empty array, got null")
	}
}
