package training

import "github.com/serplab/ranktune/internal/scoring"

// GradientEpsilon is the perturbation step for finite-difference gradients.
const GradientEpsilon = 0.001

// batchLoss scores every sample under the given weights and returns the rank
// correlation loss against the actual ranks.
func batchLoss(samples []scoring.Sample, weights scoring.FeatureWeights) float64 {
	actual := make([]int, len(samples))
	scores := make([]float64, len(samples))
	for i, s := range samples {
		actual[i] = s.ActualRank
		scores[i] = scoring.Score(s.Features, weights)
	}
	return Loss(actual, PredictedRanks(scores))
}

// Gradients estimates the partial derivative of the batch loss with respect
// to each of the five tunable weights by forward finite difference:
//
//	g_i = (loss(w + eps*e_i) - loss(w)) / eps
//
// Each perturbation is independent, so one call costs five extra full-batch
// evaluations. Deterministic for identical inputs.
func Gradients(samples []scoring.Sample, weights scoring.FeatureWeights) [5]float64 {
	base := batchLoss(samples, weights)

	var grads [5]float64
	tunable := weights.Tunable()
	for i := range tunable {
		perturbed := tunable
		perturbed[i] += GradientEpsilon

		w := weights
		w.SetTunable(perturbed)

		grads[i] = (batchLoss(samples, w) - base) / GradientEpsilon
	}
	return grads
}
