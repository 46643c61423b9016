package scoring

import (
	"errors"
	"fmt"
)

// Bounds for tunable weights. The trainer clips every update back into these
// ranges, so a persisted vector is always within them.
const (
	PrimaryWeightMin = 0.1
	PrimaryWeightMax = 0.9
	ExtraWeightMin   = 0.01
	ExtraWeightMax   = 0.5
)

// Validation errors.
var (
	ErrPrimaryWeightOutOfBounds = errors.New("primary weight must be between 0.1 and 0.9")
	ErrExtraWeightOutOfBounds   = errors.New("extra weight must be between 0.01 and 0.5")
)

// ExtraWeights holds the secondary blog-signal weights.
//
// Only PostCount, NeighborCount and VisitorCount participate in scoring.
// BlogAge and RecentActivity are part of the persisted schema and are shown
// in admin views, but the scorer never reads them; their intended semantics
// are unspecified, so they are deliberately not wired into predictions.
type ExtraWeights struct {
	PostCount      float64 `json:"post_count"`
	NeighborCount  float64 `json:"neighbor_count"`
	VisitorCount   float64 `json:"visitor_count"`
	BlogAge        float64 `json:"blog_age"`        // display only
	RecentActivity float64 `json:"recent_activity"` // display only
}

// FeatureWeights is the full tunable weight vector for the scorer.
//
// CRank and Dia are the primary algorithm weights; Extra carries the
// secondary signals. The weights are independent multipliers, not a
// normalized distribution: the predicted score is an unbounded weighted sum.
type FeatureWeights struct {
	CRank float64      `json:"c_rank"`
	Dia   float64      `json:"dia"`
	Extra ExtraWeights `json:"extra"`

	// Informational sub-weight breakdowns of the two primary weights.
	// Persisted and displayed for operators; the optimizer treats CRank and
	// Dia as opaque scalars and never reads these.
	CRankComponents map[string]float64 `json:"c_rank_components,omitempty"`
	DiaComponents   map[string]float64 `json:"dia_components,omitempty"`
}

// DefaultWeights returns the documented default weight vector.
// These values must stay stable across releases: scores computed with them
// are stored alongside samples, and changing the defaults would make old
// predicted scores incomparable with new ones.
func DefaultWeights() FeatureWeights {
	return FeatureWeights{
		CRank: 0.50,
		Dia:   0.50,
		Extra: ExtraWeights{
			PostCount:      0.15,
			NeighborCount:  0.10,
			VisitorCount:   0.05,
			BlogAge:        0.03,
			RecentActivity: 0.02,
		},
		CRankComponents: map[string]float64{
			"context": 0.40,
			"content": 0.35,
			"chain":   0.25,
		},
		DiaComponents: map[string]float64{
			"intent":     0.55,
			"experience": 0.45,
		},
	}
}

// Tunable returns the five scalar weights the trainer adjusts, in a fixed
// order: c_rank, dia, post_count, neighbor_count, visitor_count.
func (w FeatureWeights) Tunable() [5]float64 {
	return [5]float64{
		w.CRank,
		w.Dia,
		w.Extra.PostCount,
		w.Extra.NeighborCount,
		w.Extra.VisitorCount,
	}
}

// SetTunable writes the five tunable scalars back, in the same order as
// Tunable. Display-only fields are left untouched.
func (w *FeatureWeights) SetTunable(v [5]float64) {
	w.CRank = v[0]
	w.Dia = v[1]
	w.Extra.PostCount = v[2]
	w.Extra.NeighborCount = v[3]
	w.Extra.VisitorCount = v[4]
}

// Clamp clips every tunable weight into its documented bound.
// Display-only fields are not clamped; they never move.
func (w *FeatureWeights) Clamp() {
	w.CRank = clamp(w.CRank, PrimaryWeightMin, PrimaryWeightMax)
	w.Dia = clamp(w.Dia, PrimaryWeightMin, PrimaryWeightMax)
	w.Extra.PostCount = clamp(w.Extra.PostCount, ExtraWeightMin, ExtraWeightMax)
	w.Extra.NeighborCount = clamp(w.Extra.NeighborCount, ExtraWeightMin, ExtraWeightMax)
	w.Extra.VisitorCount = clamp(w.Extra.VisitorCount, ExtraWeightMin, ExtraWeightMax)
}

// Validate checks that every tunable weight is within its documented bound.
// Returns an error naming the offending field.
func (w FeatureWeights) Validate() error {
	primaries := map[string]float64{
		"c_rank": w.CRank,
		"dia":    w.Dia,
	}
	for name, v := range primaries {
		if v < PrimaryWeightMin || v > PrimaryWeightMax {
			return fmt.Errorf("%s=%v: %w", name, v, ErrPrimaryWeightOutOfBounds)
		}
	}
	extras := map[string]float64{
		"post_count":     w.Extra.PostCount,
		"neighbor_count": w.Extra.NeighborCount,
		"visitor_count":  w.Extra.VisitorCount,
	}
	for name, v := range extras {
		if v < ExtraWeightMin || v > ExtraWeightMax {
			return fmt.Errorf("%s=%v: %w", name, v, ErrExtraWeightOutOfBounds)
		}
	}
	return nil
}

// Equal reports whether two vectors have identical tunable weights.
// Display-only fields and component breakdowns are ignored.
func (w FeatureWeights) Equal(other FeatureWeights) bool {
	return w.Tunable() == other.Tunable()
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
