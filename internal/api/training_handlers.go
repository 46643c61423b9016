package api

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/serplab/ranktune/internal/middleware"
	"github.com/serplab/ranktune/internal/scoring"
	"github.com/serplab/ranktune/internal/store"
	"github.com/serplab/ranktune/internal/training"
)

// defaultSessionsLimit bounds GET /sessions when no limit is given.
const defaultSessionsLimit = 20

// maxSessionsLimit is the hard cap for GET /sessions.
const maxSessionsLimit = 100

// TrainingHandlers provides the manual retrain, weights, and session
// history endpoints.
type TrainingHandlers struct {
	policy     *training.Policy
	weights    training.WeightStore
	samples    store.SampleStore
	ledger     store.SessionLedger
	fetchLimit int
	logger     *slog.Logger
}

// NewTrainingHandlers creates training endpoints over the given policy and
// stores. fetchLimit caps how many recent samples a forced retrain loads.
func NewTrainingHandlers(policy *training.Policy, weights training.WeightStore, samples store.SampleStore, ledger store.SessionLedger, fetchLimit int, logger *slog.Logger) *TrainingHandlers {
	if logger == nil {
		logger = slog.Default()
	}
	return &TrainingHandlers{
		policy:     policy,
		weights:    weights,
		samples:    samples,
		ledger:     ledger,
		fetchLimit: fetchLimit,
		logger:     logger,
	}
}

// trainResponse is the JSON body returned by POST /train.
type trainResponse struct {
	Outcome string                    `json:"outcome"`
	Weights scoring.FeatureWeights    `json:"weights"`
	Session *training.TrainingSession `json:"session,omitempty"`
}

// ForceTrain handles POST /train. It runs one training pass immediately on
// the most recent samples. Too little data is a client-visible condition
// (HTTP 422), never a generic server error. This call blocks for the
// duration of the run; operators invoke it deliberately.
func (h *TrainingHandlers) ForceTrain(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeBadRequest)
		WriteError(w, ctx, http.StatusMethodNotAllowed, ErrCodeBadRequest, "Method not allowed")
		return
	}

	batch, err := h.samples.Recent(r.Context(), h.fetchLimit)
	if err != nil {
		h.logger.Error("failed to load samples for forced retrain", "error", err)
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeInternal)
		WriteError(w, ctx, http.StatusInternalServerError, ErrCodeInternal, "Failed to load samples")
		return
	}

	res, err := h.policy.ForceTrain(r.Context(), batch)
	if err != nil {
		if errors.Is(err, training.ErrInsufficientSamples) {
			ctx := middleware.SetErrorCode(r.Context(), ErrCodeInsufficientSamples)
			WriteError(w, ctx, http.StatusUnprocessableEntity, ErrCodeInsufficientSamples, "Not enough samples collected to train yet")
			return
		}
		h.logger.Error("forced retrain failed", "error", err)
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeInternal)
		WriteError(w, ctx, http.StatusInternalServerError, ErrCodeInternal, "Training run failed")
		return
	}

	writeJSON(w, http.StatusOK, trainResponse{
		Outcome: res.Outcome.String(),
		Weights: res.Weights,
		Session: res.Session,
	})
}

// weightsResponse is the JSON body returned by GET /weights.
type weightsResponse struct {
	Weights scoring.FeatureWeights `json:"weights"`
	Source  string                 `json:"source"` // "store" or "default"
}

// GetWeights handles GET /weights, returning the active weight vector.
// Before the first training run the documented defaults are served.
func (h *TrainingHandlers) GetWeights(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeBadRequest)
		WriteError(w, ctx, http.StatusMethodNotAllowed, ErrCodeBadRequest, "Method not allowed")
		return
	}

	weights, err := h.weights.Current(r.Context())
	source := "store"
	if err != nil {
		if !errors.Is(err, store.ErrNoWeights) {
			h.logger.Error("failed to load weights", "error", err)
			ctx := middleware.SetErrorCode(r.Context(), ErrCodeInternal)
			WriteError(w, ctx, http.StatusInternalServerError, ErrCodeInternal, "Failed to load weights")
			return
		}
		weights = scoring.DefaultWeights()
		source = "default"
	}

	writeJSON(w, http.StatusOK, weightsResponse{Weights: weights, Source: source})
}

// sessionsResponse is the JSON body returned by GET /sessions.
type sessionsResponse struct {
	Sessions []*training.TrainingSession `json:"sessions"`
}

// ListSessions handles GET /sessions?limit=N, returning the most recent
// training sessions, newest first.
func (h *TrainingHandlers) ListSessions(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeBadRequest)
		WriteError(w, ctx, http.StatusMethodNotAllowed, ErrCodeBadRequest, "Method not allowed")
		return
	}

	limit := defaultSessionsLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			ctx := middleware.SetErrorCode(r.Context(), ErrCodeValidation)
			WriteError(w, ctx, http.StatusBadRequest, ErrCodeValidation, "limit must be a positive integer")
			return
		}
		if n > maxSessionsLimit {
			n = maxSessionsLimit
		}
		limit = n
	}

	sessions, err := h.ledger.RecentSessions(r.Context(), limit)
	if err != nil {
		h.logger.Error("failed to load sessions", "error", err)
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeInternal)
		WriteError(w, ctx, http.StatusInternalServerError, ErrCodeInternal, "Failed to load sessions")
		return
	}
	if sessions == nil {
		sessions = []*training.TrainingSession{}
	}

	writeJSON(w, http.StatusOK, sessionsResponse{Sessions: sessions})
}
