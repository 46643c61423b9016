package training

import (
	"time"

	"github.com/serplab/ranktune/internal/scoring"
)

// EpochStat records the evaluator output after one epoch's weight update.
type EpochStat struct {
	Epoch       int     `json:"epoch"`
	Loss        float64 `json:"loss"`
	Correlation float64 `json:"correlation"`
	Accuracy    float64 `json:"accuracy"`
}

// WeightDelta captures the movement of one weight across a training run.
type WeightDelta struct {
	Before float64 `json:"before"`
	After  float64 `json:"after"`
	Delta  float64 `json:"delta"`
}

// TrainingSession is the immutable record of one completed trainer run.
// It is created when the run starts and finalized exactly once at the end;
// the session ledger stores it append-only for audit.
type TrainingSession struct {
	SessionID      string                 `json:"session_id"`
	SamplesUsed    int                    `json:"samples_used"`
	AccuracyBefore float64                `json:"accuracy_before"`
	AccuracyAfter  float64                `json:"accuracy_after"`
	Improvement    float64                `json:"improvement"`
	Duration       time.Duration          `json:"duration"`
	EpochsRun      int                    `json:"epochs_run"`
	LearningRate   float64                `json:"learning_rate"`
	EpochHistory   []EpochStat            `json:"epoch_history"`
	WeightDeltas   map[string]WeightDelta `json:"weight_deltas"`
	StartedAt      time.Time              `json:"started_at"`
}

// WeightSnapshot is a point-in-time copy of the weight vector tied to the
// session that produced it, kept append-only for audit and rollback.
type WeightSnapshot struct {
	SessionID    string                 `json:"session_id"`
	Weights      scoring.FeatureWeights `json:"weights"`
	Accuracy     float64                `json:"accuracy"`
	TotalSamples int                    `json:"total_samples"`
	CreatedAt    time.Time              `json:"created_at"`
}
