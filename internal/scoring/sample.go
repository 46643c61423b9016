package scoring

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// Sample validation errors.
var (
	ErrInvalidActualRank = errors.New("actual rank must be >= 1")
	ErrEmptyFeatures     = errors.New("sample must carry at least one feature")
)

// Sample is one observed outcome: the features an item had when it was
// scored, the score we predicted at the time, and the rank it actually
// achieved (1 = best). Samples are immutable once created.
type Sample struct {
	ID             string             `json:"id"`
	Features       map[string]float64 `json:"features"`
	ActualRank     int                `json:"actual_rank"`
	PredictedScore float64            `json:"predicted_score"`
	CollectedAt    time.Time          `json:"collected_at"`
}

// NewSample constructs a validated Sample with a fresh ID and timestamp.
// The feature map is copied so later mutation by the caller cannot reach in.
func NewSample(features map[string]float64, actualRank int, predictedScore float64) (Sample, error) {
	if actualRank < 1 {
		return Sample{}, ErrInvalidActualRank
	}
	if len(features) == 0 {
		return Sample{}, ErrEmptyFeatures
	}
	copied := make(map[string]float64, len(features))
	for k, v := range features {
		copied[k] = v
	}
	return Sample{
		ID:             uuid.New().String(),
		Features:       copied,
		ActualRank:     actualRank,
		PredictedScore: predictedScore,
		CollectedAt:    time.Now().UTC(),
	}, nil
}
