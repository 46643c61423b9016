// Package scoring defines the feature weight vector and the predicted-score
// function used to order items before their real search rank is observed.
//
// Basic Usage:
//
//	weights := scoring.DefaultWeights()
//	score := scoring.Score(map[string]float64{
//		scoring.FeatureCRank:        72,
//		scoring.FeatureDia:          55,
//		scoring.FeaturePostCount:    340,
//		scoring.FeatureNeighborCount: 120,
//		scoring.FeatureVisitorCount: 2800,
//	}, weights)
//
// The two primary weights (CRank, Dia) and the three tunable extra weights
// (PostCount, NeighborCount, VisitorCount) are the only parameters the
// trainer in internal/training adjusts. The remaining extra fields are
// persisted for display and have no effect on predictions.
package scoring
