package training

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/serplab/ranktune/internal/scoring"
)

// Training defaults.
const (
	DefaultLearningRate = 0.01
	DefaultEpochs       = 50

	// EarlyStopCorrelation ends the epoch loop as soon as the rank
	// correlation after an update exceeds it.
	EarlyStopCorrelation = 0.95
)

// ErrInsufficientSamples is returned when a training run is requested with
// fewer samples than the configured minimum. No work is performed.
var ErrInsufficientSamples = errors.New("insufficient samples for training")

// TrainerConfig carries the tunables for a training run.
type TrainerConfig struct {
	LearningRate      float64
	Epochs            int
	MinSamples        int
	AccuracyThreshold int
}

// withDefaults fills zero-valued fields with the documented defaults.
func (c TrainerConfig) withDefaults() TrainerConfig {
	if c.LearningRate == 0 {
		c.LearningRate = DefaultLearningRate
	}
	if c.Epochs == 0 {
		c.Epochs = DefaultEpochs
	}
	if c.MinSamples == 0 {
		c.MinSamples = 1
	}
	if c.AccuracyThreshold == 0 {
		c.AccuracyThreshold = DefaultAccuracyThreshold
	}
	return c
}

// Train runs gradient descent on the five tunable weights against the rank
// correlation loss and returns the updated vector with a finalized session
// record. The trainer performs no I/O; persisting the result is the
// caller's job.
//
// Per epoch: score the batch with the current weights, evaluate
// loss/correlation/accuracy, estimate finite-difference gradients, step each
// weight by -lr*gradient, and clip back into the documented bounds. The loop
// stops early once correlation exceeds EarlyStopCorrelation, otherwise it
// runs the full epoch budget. A flat loss landscape is not an error: the run
// terminates normally with little or no improvement.
func Train(samples []scoring.Sample, initial scoring.FeatureWeights, cfg TrainerConfig) (scoring.FeatureWeights, *TrainingSession, error) {
	cfg = cfg.withDefaults()

	if len(samples) < cfg.MinSamples {
		return initial, nil, fmt.Errorf("%w: have %d, need %d", ErrInsufficientSamples, len(samples), cfg.MinSamples)
	}

	started := time.Now()
	session := &TrainingSession{
		SessionID:    uuid.New().String(),
		SamplesUsed:  len(samples),
		LearningRate: cfg.LearningRate,
		StartedAt:    started.UTC(),
	}

	actual := make([]int, len(samples))
	for i, s := range samples {
		actual[i] = s.ActualRank
	}

	weights := initial
	session.AccuracyBefore = evaluate(samples, actual, weights, cfg.AccuracyThreshold).Accuracy

	for epoch := 1; epoch <= cfg.Epochs; epoch++ {
		grads := Gradients(samples, weights)

		tunable := weights.Tunable()
		for i := range tunable {
			tunable[i] -= cfg.LearningRate * grads[i]
		}
		weights.SetTunable(tunable)
		weights.Clamp()

		stat := evaluate(samples, actual, weights, cfg.AccuracyThreshold)
		stat.Epoch = epoch
		session.EpochHistory = append(session.EpochHistory, stat)
		session.EpochsRun = epoch

		if stat.Correlation > EarlyStopCorrelation {
			break
		}
	}

	session.AccuracyAfter = evaluate(samples, actual, weights, cfg.AccuracyThreshold).Accuracy
	session.Improvement = session.AccuracyAfter - session.AccuracyBefore
	session.Duration = time.Since(started)
	session.WeightDeltas = map[string]WeightDelta{
		"c_rank": {Before: initial.CRank, After: weights.CRank, Delta: weights.CRank - initial.CRank},
		"dia":    {Before: initial.Dia, After: weights.Dia, Delta: weights.Dia - initial.Dia},
	}

	return weights, session, nil
}

// evaluate scores the batch under the given weights and returns the epoch
// statistics (loss, correlation, accuracy) without the epoch number set.
func evaluate(samples []scoring.Sample, actual []int, weights scoring.FeatureWeights, threshold int) EpochStat {
	scores := make([]float64, len(samples))
	for i, s := range samples {
		scores[i] = scoring.Score(s.Features, weights)
	}
	predicted := PredictedRanks(scores)
	corr := SpearmanCorrelation(actual, predicted)
	return EpochStat{
		Loss:        1 - corr,
		Correlation: corr,
		Accuracy:    Accuracy(actual, predicted, threshold),
	}
}
