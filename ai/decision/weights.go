package decision

import "fmt"

// WeightTolerance is the floating tolerance applied when checking that
// criterion weights sum to 1.0.
const WeightTolerance = 0.001

// NormalizeWeights rescales criterion weights to sum to 1.0. If every weight
// is zero, each criterion receives equal weight 1/n. Relative proportions of
// nonzero weights are preserved. Fails on an empty list.
func NormalizeWeights(criteria []Criterion) ([]Criterion, error) {
	if len(criteria) == 0 {
		return nil, fmt.Errorf("cannot normalize weights: criteria list is empty")
	}

	var total float64
	for _, c := range criteria {
		total += c.Weight
	}

	out := make([]Criterion, len(criteria))
	if total == 0 {
		equal := 1.0 / float64(len(criteria))
		for i, c := range criteria {
			out[i] = Criterion{Name: c.Name, Weight: equal, Rationale: c.Rationale}
		}
		return out, nil
	}

	for i, c := range criteria {
		out[i] = Criterion{Name: c.Name, Weight: c.Weight / total, Rationale: c.Rationale}
	}
	return out, nil
}

// CheckWeightSum verifies normalized weights sum to 1.0 within tolerance.
func CheckWeightSum(criteria []Criterion) error {
	var total float64
	for _, c := range criteria {
		total += c.Weight
	}
	if diff := total - 1.0; diff > WeightTolerance || diff < -WeightTolerance {
		return fmt.Errorf("weights do not sum to 1.0 after normalization: %v", total)
	}
	return nil
}

// ClampScore clamps a raw model score into [0, 1]. Out-of-range values are
// clamped silently rather than rejected.
func ClampScore(score float64) float64 {
	if score < 0 {
		return 0
	}
	if score > 1 {
		return 1
	}
	return score
}

// WeightedTotal computes the weighted sum of per-criterion scores over the
// criteria whose names match. With weights summing to 1 and scores in [0, 1]
// the result is in [0, 1] by construction.
func WeightedTotal(scores []OptionScore, criteria []Criterion) float64 {
	weights := make(map[string]float64, len(criteria))
	for _, c := range criteria {
		weights[c.Name] = c.Weight
	}

	var total float64
	for _, s := range scores {
		if w, ok := weights[s.CriterionName]; ok {
			total += s.Score * w
		}
	}
	return total
}
