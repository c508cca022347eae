package services

import (
	"math"

	"docanalyzer/internal/models"
)

// ScoreAggregator computes the overall score as the unweighted mean of the
// per-criterion scores, rounded to the configured precision.
type ScoreAggregator interface {
	Aggregate(scores models.ScoreSet) float64
}

type scoreAggregator struct {
	precision int
}

func NewScoreAggregator(precision int) ScoreAggregator {
	if precision < 0 {
		precision = 0
	}
	return &scoreAggregator{precision: precision}
}

// Aggregate implements ScoreAggregator. An empty set cannot occur once the
// parser has run (its ScoreSet invariant guarantees one entry per rubric
// criterion); the guard exists so an internal misuse returns 0 instead of NaN.
func (a *scoreAggregator) Aggregate(scores models.ScoreSet) float64 {
	if scores.Len() == 0 {
		return 0
	}

	var sum float64
	for _, v := range scores.Values() {
		sum += v
	}

	factor := math.Pow(10, float64(a.precision))
	return math.Round(sum/float64(scores.Len())*factor) / factor
}
