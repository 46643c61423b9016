// Package training implements the weight-optimization engine: rank
// correlation loss, finite-difference gradients, the epoch loop, and the
// auto-retrain policy that guards the serving path.
package training

import (
	"math"
	"sort"
)

// DefaultAccuracyThreshold is the maximum rank distance (in positions) at
// which a prediction still counts as accurate.
const DefaultAccuracyThreshold = 3

// PredictedRanks converts predicted scores to ordinal ranks 1..N by sorting
// descending on score. Ties break deterministically: the first-encountered
// sample wins the better rank. The returned slice is parallel to scores.
func PredictedRanks(scores []float64) []int {
	order := make([]int, len(scores))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return scores[order[a]] > scores[order[b]]
	})

	ranks := make([]int, len(scores))
	for pos, idx := range order {
		ranks[idx] = pos + 1
	}
	return ranks
}

// SpearmanCorrelation computes the rank correlation between two parallel
// rank sequences as the Pearson correlation of the rank values, which
// remains correct when actual ranks contain ties.
//
// When the correlation is mathematically undefined (fewer than two pairs, or
// either sequence constant) it returns 0.0 rather than NaN, so downstream
// loss and accuracy stay well-defined numbers.
func SpearmanCorrelation(actual, predicted []int) float64 {
	n := len(actual)
	if n < 2 || n != len(predicted) {
		return 0
	}

	var sumA, sumP float64
	for i := 0; i < n; i++ {
		sumA += float64(actual[i])
		sumP += float64(predicted[i])
	}
	meanA := sumA / float64(n)
	meanP := sumP / float64(n)

	var cov, varA, varP float64
	for i := 0; i < n; i++ {
		da := float64(actual[i]) - meanA
		dp := float64(predicted[i]) - meanP
		cov += da * dp
		varA += da * da
		varP += dp * dp
	}
	if varA == 0 || varP == 0 {
		return 0
	}

	r := cov / math.Sqrt(varA*varP)
	// Floating-point noise can push |r| fractionally past 1.
	if r > 1 {
		r = 1
	}
	if r < -1 {
		r = -1
	}
	return r
}

// Loss maps correlation to a loss in [0, 2]: 0 when predicted rank order
// exactly matches actual rank order, 2 when perfectly reversed.
func Loss(actual, predicted []int) float64 {
	return 1 - SpearmanCorrelation(actual, predicted)
}

// Accuracy returns the percentage of samples whose predicted rank landed
// within threshold positions of the actual rank. Range [0, 100]; an empty
// batch yields 0 and a single sample trivially yields 100.
func Accuracy(actual, predicted []int, threshold int) float64 {
	n := len(actual)
	if n == 0 || n != len(predicted) {
		return 0
	}
	hits := 0
	for i := 0; i < n; i++ {
		d := predicted[i] - actual[i]
		if d < 0 {
			d = -d
		}
		if d <= threshold {
			hits++
		}
	}
	return float64(hits) / float64(n) * 100
}
