// Package judge scores completed literature reviews against a fixed rubric.
// The judge is advisory: it runs after the draft is accepted and its score
// never changes the run's terminal status.
package judge

import (
	"context"

	"github.com/quillview/litsynth/internal/domain"
)

// Rubric criterion names. These are stable identifiers used as keys in
// domain.JudgeResult.Criteria.
const (
	CriterionRelevance   = "relevance_coverage"
	CriterionEvidence    = "evidence_quality"
	CriterionComparative = "comparative_analysis"
	CriterionFactual     = "factual_accuracy"
	CriterionSafety      = "safety_compliance"
	CriterionClarity     = "clarity_organization"
)

// Weights maps criterion name to its share of the overall score. Weights are
// loaded from configuration and passed through opaquely; the judge does not
// renormalize them.
type Weights map[string]float64

// DefaultWeights returns the standard rubric weighting. The six weights sum
// to 1.0.
func DefaultWeights() Weights {
	return Weights{
		CriterionRelevance:   0.20,
		CriterionEvidence:    0.20,
		CriterionComparative: 0.20,
		CriterionFactual:     0.15,
		CriterionSafety:      0.10,
		CriterionClarity:     0.15,
	}
}

// Input carries everything the judge may consider.
type Input struct {
	Query        string
	Draft        domain.Draft
	Papers       []domain.Paper
	SafetyEvents []domain.SafetyEvent
}

// Scorer produces a rubric score for a finished review. Implementations
// never fail: on any internal error they substitute neutral per-criterion
// scores rather than propagate the error, because a judging problem must not
// fail an otherwise successful run.
type Scorer interface {
	Score(ctx context.Context, in Input) domain.JudgeResult
}

// WeightedOverall computes the weighted sum of per-criterion scores.
// Criteria missing from the scores map contribute zero.
func WeightedOverall(scores map[string]float64, weights Weights) float64 {
	var overall float64
	for name, weight := range weights {
		overall += scores[name] * weight
	}
	return overall
}

// clamp bounds a score to the rubric's [0, 10] scale.
func clamp(score float64) float64 {
	if score < 0 {
		return 0
	}
	if score > 10 {
		return 10
	}
	return score
}
