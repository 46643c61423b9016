package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/serplab/ranktune/internal/middleware"
	"github.com/serplab/ranktune/internal/scoring"
	"github.com/serplab/ranktune/internal/store"
	"github.com/serplab/ranktune/internal/training"
)

// maxSampleBodyBytes caps the ingest request body. Feature maps are small;
// anything larger is malformed or hostile.
const maxSampleBodyBytes = 64 * 1024

// RetrainScheduler lets the ingest path flag that new data arrived without
// running the CPU-bound training loop on the request goroutine.
type RetrainScheduler interface {
	MarkDirty()
}

// SampleHandlers provides the sample ingestion endpoint.
type SampleHandlers struct {
	samples   store.SampleStore
	weights   training.WeightStore
	scheduler RetrainScheduler
	minTrain  int
	logger    *slog.Logger
}

// NewSampleHandlers creates sample ingestion handlers.
// minTrain is the sample count at which retraining becomes possible; it is
// only used to report scheduling status back to the collector.
func NewSampleHandlers(samples store.SampleStore, weights training.WeightStore, scheduler RetrainScheduler, minTrain int, logger *slog.Logger) *SampleHandlers {
	if logger == nil {
		logger = slog.Default()
	}
	return &SampleHandlers{
		samples:   samples,
		weights:   weights,
		scheduler: scheduler,
		minTrain:  minTrain,
		logger:    logger,
	}
}

// addSampleRequest is the JSON body for POST /samples.
// PredictedScore is optional: when omitted, the server scores the features
// under the current weight vector, which is what a collector without its own
// scoring pass wants.
type addSampleRequest struct {
	Features       map[string]float64 `json:"features"`
	ActualRank     int                `json:"actual_rank"`
	PredictedScore *float64           `json:"predicted_score,omitempty"`
}

// addSampleResponse is the JSON body returned by POST /samples.
type addSampleResponse struct {
	SampleID         string  `json:"sample_id"`
	PredictedScore   float64 `json:"predicted_score"`
	TotalSamples     int     `json:"total_samples"`
	RetrainScheduled bool    `json:"retrain_scheduled"`
}

// AddSample handles POST /samples. It validates and appends one observed
// outcome, then marks the retrain job dirty. Training itself always runs on
// the background job goroutine, never on the request path.
func (h *SampleHandlers) AddSample(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeBadRequest)
		WriteError(w, ctx, http.StatusMethodNotAllowed, ErrCodeBadRequest, "Method not allowed")
		return
	}

	var req addSampleRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxSampleBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeBadRequest)
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeBadRequest, "Invalid JSON body")
		return
	}

	predicted := 0.0
	if req.PredictedScore != nil {
		predicted = *req.PredictedScore
	} else {
		current, err := h.weights.Current(r.Context())
		if err != nil {
			if !errors.Is(err, store.ErrNoWeights) {
				h.logger.Warn("failed to load weights for scoring, using defaults", "error", err)
			}
			current = scoring.DefaultWeights()
		}
		predicted = scoring.Score(req.Features, current)
	}

	sample, err := scoring.NewSample(req.Features, req.ActualRank, predicted)
	if err != nil {
		switch {
		case errors.Is(err, scoring.ErrInvalidActualRank):
			ctx := middleware.SetErrorCode(r.Context(), ErrCodeInvalidRank)
			WriteError(w, ctx, http.StatusBadRequest, ErrCodeInvalidRank, "actual_rank must be >= 1")
		case errors.Is(err, scoring.ErrEmptyFeatures):
			ctx := middleware.SetErrorCode(r.Context(), ErrCodeMissingFeatures)
			WriteError(w, ctx, http.StatusBadRequest, ErrCodeMissingFeatures, "Sample must carry at least one feature")
		default:
			ctx := middleware.SetErrorCode(r.Context(), ErrCodeValidation)
			WriteError(w, ctx, http.StatusBadRequest, ErrCodeValidation, "Invalid sample")
		}
		return
	}

	if err := h.samples.Add(r.Context(), sample); err != nil {
		h.logger.Error("failed to store sample", "error", err)
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeInternal)
		WriteError(w, ctx, http.StatusInternalServerError, ErrCodeInternal, "Failed to store sample")
		return
	}

	total, err := h.samples.Count(r.Context())
	if err != nil {
		h.logger.Warn("failed to count samples", "error", err)
	}

	scheduled := false
	if h.scheduler != nil && total >= h.minTrain {
		h.scheduler.MarkDirty()
		scheduled = true
	}

	writeJSON(w, http.StatusAccepted, addSampleResponse{
		SampleID:         sample.ID,
		PredictedScore:   sample.PredictedScore,
		TotalSamples:     total,
		RetrainScheduled: scheduled,
	})
}
