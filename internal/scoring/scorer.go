package scoring

// Canonical feature names expected in a Sample's feature map.
const (
	FeatureCRank         = "c_rank"
	FeatureDia           = "dia"
	FeaturePostCount     = "post_count"
	FeatureNeighborCount = "neighbor_count"
	FeatureVisitorCount  = "visitor_count"
)

// Normalization caps for the extra signals. Raw counts are divided by the
// cap and clipped to [0, 1] so a single huge blog cannot dominate the score.
const (
	PostCountCap     = 1000.0
	NeighborCountCap = 1000.0
	VisitorCountCap  = 10000.0
)

// extraScale lifts the normalized extra contribution into the same order of
// magnitude as the primary algorithm scores.
const extraScale = 100.0

// Score computes the predicted rank score for a set of engineered features
// under the given weight vector:
//
//	score = c_rank*W.CRank + dia*W.Dia
//	      + 100 * (norm(post)*W.PostCount + norm(neighbor)*W.NeighborCount + norm(visitor)*W.VisitorCount)
//
// Missing features contribute 0. The function is pure and deterministic;
// higher scores predict better (lower-numbered) ranks.
func Score(features map[string]float64, weights FeatureWeights) float64 {
	primary := features[FeatureCRank]*weights.CRank +
		features[FeatureDia]*weights.Dia

	extra := Normalize(features[FeaturePostCount], PostCountCap)*weights.Extra.PostCount +
		Normalize(features[FeatureNeighborCount], NeighborCountCap)*weights.Extra.NeighborCount +
		Normalize(features[FeatureVisitorCount], VisitorCountCap)*weights.Extra.VisitorCount

	return primary + extraScale*extra
}

// Normalize divides a raw value by its cap and clips the result to [0, 1].
func Normalize(value, cap float64) float64 {
	if cap <= 0 {
		return 0
	}
	v := value / cap
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
