package judge

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quillview/litsynth/internal/domain"
	"github.com/quillview/litsynth/internal/llm"
)

func strongDraft() domain.Draft {
	return domain.Draft{
		Text: "Attention mechanisms transformed sequence modeling (Vaswani et al., 2017). " +
			"However, recurrent models remain competitive on small datasets, whereas " +
			"transformers dominate at scale. In contrast, convolutional approaches trade " +
			"context length for speed (Wu et al., 2019).\n\n" +
			"Compared across benchmarks, both approaches show complementary strengths.\n\n" +
			strings.Repeat("Further analysis of the surveyed attention literature follows. ", 20),
	}
}

func surveyPapers() []domain.Paper {
	return []domain.Paper{
		{Title: "Attention Is All You Need", Year: 2017},
		{Title: "Pay Less Attention", Year: 2019},
	}
}

func TestDefaultWeightsSumToOne(t *testing.T) {
	var sum float64
	for _, w := range DefaultWeights() {
		sum += w
	}
	assert.InDelta(t, 1.0, sum, 1e-9)
}

func TestWeightedOverall(t *testing.T) {
	scores := map[string]float64{
		CriterionRelevance:   10,
		CriterionEvidence:    10,
		CriterionComparative: 10,
		CriterionFactual:     10,
		CriterionSafety:      10,
		CriterionClarity:     10,
	}
	assert.InDelta(t, 10.0, WeightedOverall(scores, DefaultWeights()), 1e-9)

	scores[CriterionSafety] = 0
	assert.InDelta(t, 9.0, WeightedOverall(scores, DefaultWeights()), 1e-9)
}

func TestHeuristicScorerIsDeterministic(t *testing.T) {
	s := NewHeuristicScorer(nil)
	in := Input{Query: "attention mechanisms", Draft: strongDraft(), Papers: surveyPapers()}

	first := s.Score(context.Background(), in)
	second := s.Score(context.Background(), in)

	assert.Equal(t, first, second)
}

func TestHeuristicScorerScoresInRange(t *testing.T) {
	s := NewHeuristicScorer(nil)
	result := s.Score(context.Background(), Input{Query: "attention mechanisms", Draft: strongDraft(), Papers: surveyPapers()})

	require.Len(t, result.Criteria, 6)
	for name, score := range result.Criteria {
		assert.GreaterOrEqual(t, score, 0.0, name)
		assert.LessOrEqual(t, score, 10.0, name)
	}
	assert.InDelta(t, WeightedOverall(result.Criteria, DefaultWeights()), result.Overall, 1e-9)
}

func TestHeuristicEvidenceDegradesWithZeroPapers(t *testing.T) {
	s := NewHeuristicScorer(nil)

	with := s.Score(context.Background(), Input{Query: "attention", Draft: strongDraft(), Papers: surveyPapers()})
	without := s.Score(context.Background(), Input{Query: "attention", Draft: strongDraft()})

	assert.Less(t, without.Criteria[CriterionEvidence], with.Criteria[CriterionEvidence])
	assert.LessOrEqual(t, without.Criteria[CriterionEvidence], 2.0)
}

func TestHeuristicFactualPenalizesUndatedCitations(t *testing.T) {
	s := NewHeuristicScorer(nil)
	clean := s.Score(context.Background(), Input{Draft: domain.Draft{Text: "Validated claims (Smith, 2020)."}})
	fabricated := s.Score(context.Background(), Input{Draft: domain.Draft{Text: "Dubious claims (Smith et al., n.d.)."}})

	assert.Less(t, fabricated.Criteria[CriterionFactual], clean.Criteria[CriterionFactual])
}

func TestHeuristicSafetyPenalizesViolations(t *testing.T) {
	s := NewHeuristicScorer(nil)

	clean := s.Score(context.Background(), Input{Draft: strongDraft()})
	flagged := s.Score(context.Background(), Input{
		Draft: strongDraft(),
		SafetyEvents: []domain.SafetyEvent{
			{Stage: domain.StageOutput, Category: domain.CategoryBiasedLanguage},
		},
	})

	assert.Equal(t, 10.0, clean.Criteria[CriterionSafety])
	assert.Equal(t, 7.0, flagged.Criteria[CriterionSafety])
}

// scriptedClient returns canned responses in order, then repeats the last.
type scriptedClient struct {
	responses []string
	err       error
	calls     int
}

func (c *scriptedClient) Complete(_ context.Context, _ llm.Request) (string, error) {
	if c.err != nil {
		return "", c.err
	}
	i := c.calls
	if i >= len(c.responses) {
		i = len(c.responses) - 1
	}
	c.calls++
	return c.responses[i], nil
}

func (c *scriptedClient) Provider() string { return "scripted" }

func TestLLMScorerParsesResponses(t *testing.T) {
	client := &scriptedClient{responses: []string{"SCORE: 8\nFEEDBACK: well grounded"}}
	s := NewLLMScorer(client, nil, zerolog.Nop())

	result := s.Score(context.Background(), Input{Query: "q", Draft: strongDraft(), Papers: surveyPapers()})

	require.Len(t, result.Criteria, 6)
	for name, score := range result.Criteria {
		assert.Equal(t, 8.0, score, name)
	}
	assert.Equal(t, "well grounded", result.Feedback[CriterionRelevance])
	assert.InDelta(t, 8.0, result.Overall, 1e-9)
	assert.Equal(t, 6, client.calls)
}

func TestLLMScorerFallsBackOnProviderError(t *testing.T) {
	client := &scriptedClient{err: errors.New("connection refused")}
	s := NewLLMScorer(client, nil, zerolog.Nop())

	result := s.Score(context.Background(), Input{Query: "q", Draft: strongDraft()})

	for name, score := range result.Criteria {
		assert.Equal(t, neutralScore, score, name)
	}
	assert.Empty(t, result.Feedback)
}

func TestLLMScorerFallsBackOnGarbage(t *testing.T) {
	client := &scriptedClient{responses: []string{"I think it's pretty good overall!"}}
	s := NewLLMScorer(client, nil, zerolog.Nop())

	result := s.Score(context.Background(), Input{Query: "q", Draft: strongDraft()})

	for name, score := range result.Criteria {
		assert.Equal(t, neutralScore, score, name)
	}
}

func TestParseJudgeResponseClampsScores(t *testing.T) {
	score, _, err := parseJudgeResponse("SCORE: 14\nFEEDBACK: generous")
	require.NoError(t, err)
	assert.Equal(t, 10.0, score)

	score, _, err = parseJudgeResponse("SCORE: -3")
	require.NoError(t, err)
	assert.Equal(t, 0.0, score)

	_, _, err = parseJudgeResponse("SCORE: excellent")
	assert.Error(t, err)
}
