package judge

import (
	"context"
	"regexp"
	"strconv"
	"strings"

	"github.com/quillview/litsynth/internal/domain"
)

// comparisonMarkers are discourse cues that the draft actually compares the
// surveyed work rather than summarizing papers in isolation.
var comparisonMarkers = []string{
	"however", "in contrast", "whereas", "compared", "unlike",
	"on the other hand", "similarly", "both approaches", "differs",
}

var undatedCitationPattern = regexp.MustCompile(`\([^)]*n\.d\.\s*\)`)

// HeuristicScorer is the deterministic rubric scorer. It derives each
// criterion from measurable surface features of the draft and the retrieved
// papers, so identical inputs always produce identical scores. It is the
// default judge and the reference the LLM-backed judge is calibrated against.
type HeuristicScorer struct {
	weights Weights
}

// NewHeuristicScorer creates a deterministic scorer. Nil weights means
// DefaultWeights.
func NewHeuristicScorer(weights Weights) *HeuristicScorer {
	if weights == nil {
		weights = DefaultWeights()
	}
	return &HeuristicScorer{weights: weights}
}

// Score rates the draft on all six criteria and computes the weighted overall.
func (s *HeuristicScorer) Score(_ context.Context, in Input) domain.JudgeResult {
	text := in.Draft.Text
	lower := strings.ToLower(text)

	scores := map[string]float64{
		CriterionRelevance:   s.relevance(lower, in.Query),
		CriterionEvidence:    s.evidence(text, in.Papers),
		CriterionComparative: s.comparative(lower),
		CriterionFactual:     s.factual(text),
		CriterionSafety:      s.safety(in.SafetyEvents),
		CriterionClarity:     s.clarity(text),
	}

	return domain.JudgeResult{
		Criteria: scores,
		Overall:  WeightedOverall(scores, s.weights),
	}
}

// relevance measures how much of the query's vocabulary the draft covers.
func (s *HeuristicScorer) relevance(lowerText, query string) float64 {
	terms := strings.Fields(strings.ToLower(query))
	if len(terms) == 0 {
		return 5
	}
	covered := 0
	total := 0
	for _, term := range terms {
		if len(term) < 4 {
			continue
		}
		total++
		if strings.Contains(lowerText, term) {
			covered++
		}
	}
	if total == 0 {
		return 5
	}
	return clamp(3 + 7*float64(covered)/float64(total))
}

// evidence rates citation density against the retrieved corpus. With zero
// papers there is nothing to cite, so the criterion degrades hard.
func (s *HeuristicScorer) evidence(text string, papers []domain.Paper) float64 {
	if len(papers) == 0 {
		return 2
	}
	cited := 0
	for _, p := range papers {
		if p.Year > 0 && strings.Contains(text, strconv.Itoa(p.Year)) {
			cited++
		}
	}
	return clamp(4 + 6*float64(cited)/float64(len(papers)))
}

func (s *HeuristicScorer) comparative(lowerText string) float64 {
	hits := 0
	for _, marker := range comparisonMarkers {
		if strings.Contains(lowerText, marker) {
			hits++
		}
	}
	return clamp(3 + 1.5*float64(hits))
}

// factual starts from a strong prior and penalizes undated citations, the
// strongest detectable signal of invented sources.
func (s *HeuristicScorer) factual(text string) float64 {
	undated := len(undatedCitationPattern.FindAllString(text, -1))
	return clamp(9 - 3*float64(undated))
}

// safety starts at the ceiling and penalizes recorded violations, output-stage
// ones more heavily since they reached the draft itself.
func (s *HeuristicScorer) safety(events []domain.SafetyEvent) float64 {
	score := 10.0
	for _, ev := range events {
		if ev.Stage == domain.StageOutput {
			score -= 3
		} else {
			score -= 1
		}
	}
	return clamp(score)
}

// clarity rates structure: multiple paragraphs and reasonable length read as
// organized writing.
func (s *HeuristicScorer) clarity(text string) float64 {
	paragraphs := 0
	for _, p := range strings.Split(text, "\n\n") {
		if strings.TrimSpace(p) != "" {
			paragraphs++
		}
	}
	score := 4.0
	if paragraphs >= 3 {
		score += 3
	} else if paragraphs == 2 {
		score += 1.5
	}
	if len(text) >= 1500 {
		score += 2
	} else if len(text) >= 800 {
		score += 1
	}
	return clamp(score)
}
