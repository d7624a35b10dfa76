package judge

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/rs/zerolog"

	"github.com/quillview/litsynth/internal/domain"
	"github.com/quillview/litsynth/internal/llm"
)

// neutralScore substitutes for a criterion whose model response could not be
// obtained or parsed.
const neutralScore = 5.0

// criterionPrompts describe what the model should rate for each criterion.
var criterionPrompts = map[string]string{
	CriterionRelevance:   "how well the review covers the research topic and stays on it",
	CriterionEvidence:    "whether claims are supported by citations to the provided papers",
	CriterionComparative: "whether the review compares and contrasts the surveyed approaches rather than summarizing them in isolation",
	CriterionFactual:     "whether statements about the papers are accurate and citations are real",
	CriterionSafety:      "whether the review is free of harmful, biased, or inappropriate content",
	CriterionClarity:     "how clearly the review is written and organized",
}

// judgeOrder fixes the criterion evaluation order so runs are reproducible
// given deterministic model output.
var judgeOrder = []string{
	CriterionRelevance, CriterionEvidence, CriterionComparative,
	CriterionFactual, CriterionSafety, CriterionClarity,
}

// LLMScorer rates each criterion with a model call. Responses must follow
// the "SCORE: <n>" / "FEEDBACK: <text>" format; anything unparseable falls
// back to a neutral 5.0 for that criterion, so scoring never fails the run.
type LLMScorer struct {
	client  llm.ChatClient
	weights Weights
	logger  zerolog.Logger
}

// NewLLMScorer creates a model-backed scorer. Nil weights means DefaultWeights.
func NewLLMScorer(client llm.ChatClient, weights Weights, logger zerolog.Logger) *LLMScorer {
	if weights == nil {
		weights = DefaultWeights()
	}
	return &LLMScorer{client: client, weights: weights, logger: logger}
}

// Score rates the draft one criterion at a time and computes the weighted
// overall. Provider or parse errors downgrade the affected criterion to the
// neutral score instead of propagating.
func (s *LLMScorer) Score(ctx context.Context, in Input) domain.JudgeResult {
	scores := make(map[string]float64, len(judgeOrder))
	feedback := make(map[string]string, len(judgeOrder))

	for _, criterion := range judgeOrder {
		score, note := s.scoreCriterion(ctx, criterion, in)
		scores[criterion] = score
		if note != "" {
			feedback[criterion] = note
		}
	}

	return domain.JudgeResult{
		Criteria: scores,
		Overall:  WeightedOverall(scores, s.weights),
		Feedback: feedback,
	}
}

func (s *LLMScorer) scoreCriterion(ctx context.Context, criterion string, in Input) (float64, string) {
	resp, err := s.client.Complete(ctx, llm.Request{
		System:      "You are a strict academic reviewer. Answer only in the requested format.",
		Prompt:      s.buildPrompt(criterion, in),
		MaxTokens:   512,
		Temperature: 0,
	})
	if err != nil {
		s.logger.Warn().Err(err).Str("criterion", criterion).Msg("judge model call failed, using neutral score")
		return neutralScore, ""
	}

	score, note, err := parseJudgeResponse(resp)
	if err != nil {
		s.logger.Warn().Err(err).Str("criterion", criterion).Msg("unparseable judge response, using neutral score")
		return neutralScore, ""
	}
	return score, note
}

func (s *LLMScorer) buildPrompt(criterion string, in Input) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Rate the following literature review on one criterion: %s.\n", criterionPrompts[criterion])
	fmt.Fprintf(&b, "\nResearch topic: %s\n", in.Query)

	if len(in.Papers) > 0 {
		b.WriteString("\nPapers the review is based on:\n")
		for _, p := range in.Papers {
			fmt.Fprintf(&b, "- %s (%d), %s\n", p.Title, p.Year, p.AuthorNames(3))
		}
	} else {
		b.WriteString("\nNo papers were retrieved for this review.\n")
	}

	b.WriteString("\nReview:\n")
	b.WriteString(in.Draft.Text)

	b.WriteString("\n\nRespond in exactly this format:\nSCORE: <number from 0 to 10>\nFEEDBACK: <one or two sentences>\n")
	return b.String()
}

// parseJudgeResponse extracts the score and feedback from a "SCORE:" /
// "FEEDBACK:" formatted response. The score is clamped to [0, 10].
func parseJudgeResponse(resp string) (float64, string, error) {
	var score float64
	var feedback string
	found := false

	for _, line := range strings.Split(resp, "\n") {
		line = strings.TrimSpace(line)
		if rest, ok := strings.CutPrefix(line, "SCORE:"); ok {
			parsed, err := strconv.ParseFloat(strings.TrimSpace(rest), 64)
			if err != nil {
				return 0, "", fmt.Errorf("malformed score %q: %w", rest, err)
			}
			score = clamp(parsed)
			found = true
			continue
		}
		if rest, ok := strings.CutPrefix(line, "FEEDBACK:"); ok {
			feedback = strings.TrimSpace(rest)
		}
	}

	if !found {
		return 0, "", fmt.Errorf("no SCORE line in response")
	}
	return score, feedback, nil
}
