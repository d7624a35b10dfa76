package agents

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/rs/zerolog"

	"github.com/quillview/litsynth/internal/domain"
	"github.com/quillview/litsynth/internal/llm"
)

const plannerSystemPrompt = `You are an expert research planner specializing in literature reviews.

Your task is to analyze a research topic and project description, then create a comprehensive search strategy.

Your output should include:
1. Key concepts and search terms (5-10 terms)
2. Recommended search queries (3-5 queries)
3. Suggested paper filters (year range, fields of study)
4. Focus areas for the literature review

Be specific and actionable. Format your response as a structured plan.

Example output format:
**Key Concepts:**
- [concept 1]
- [concept 2]

**Search Queries:**
1. [query 1]
2. [query 2]

**Filters:**
- Year Range: [e.g., 2018-2024]
- Fields: [e.g., Computer Science, HCI]

**Focus Areas:**
- [area 1: e.g., Design patterns]
- [area 2: e.g., Evaluation methods]
`

// Default paper filters applied when the plan does not specify its own:
// recent, minimally cited work.
const (
	defaultYearFrom     = 2018
	defaultMinCitations = 5
)

// Planner turns the research topic into a search strategy.
type Planner struct {
	client llm.ChatClient
	quota  *llm.QuotaLimiter
	logger zerolog.Logger
}

// NewPlanner creates the Plan step. The quota limiter may be nil.
func NewPlanner(client llm.ChatClient, quota *llm.QuotaLimiter, logger zerolog.Logger) *Planner {
	return &Planner{client: client, quota: quota, logger: logger}
}

// Name returns StepPlan.
func (p *Planner) Name() string { return StepPlan }

// Invoke asks the model for a structured plan and parses it into a
// SearchStrategy. A plan that yields no usable queries falls back to the raw
// topic as the single query.
func (p *Planner) Invoke(ctx context.Context, view StateView) (Delta, error) {
	if err := p.quota.Acquire(ctx); err != nil {
		return Delta{}, fmt.Errorf("acquiring llm quota: %w", err)
	}

	description := view.ProjectDescription
	if description == "" {
		description = "Not provided"
	}
	prompt := fmt.Sprintf(`Research Topic: %s

Project Description: %s

Please analyze this research topic and create a comprehensive search strategy.`, view.Query, description)

	planText, err := p.client.Complete(ctx, llm.Request{
		System:      plannerSystemPrompt,
		Prompt:      prompt,
		Temperature: 0.3,
	})
	if err != nil {
		return Delta{}, fmt.Errorf("planner completion: %w", err)
	}

	strategy := parsePlan(planText, view.Query)
	p.logger.Debug().
		Int("terms", len(strategy.Terms)).
		Int("queries", len(strategy.Queries)).
		Msg("search strategy created")

	return Delta{Strategy: strategy}, nil
}

var (
	bulletPattern   = regexp.MustCompile(`^\s*[-*]\s+(.+)$`)
	numberedPattern = regexp.MustCompile(`^\s*\d+[.)]\s+(.+)$`)
)

// parsePlan extracts the structured sections from the planner's markdown
// response. The plan text itself is preserved verbatim for the record.
func parsePlan(planText, topic string) *domain.SearchStrategy {
	strategy := &domain.SearchStrategy{
		PlanText:     planText,
		YearFrom:     defaultYearFrom,
		MinCitations: defaultMinCitations,
	}

	section := ""
	for _, line := range strings.Split(planText, "\n") {
		trimmed := strings.TrimSpace(line)
		lower := strings.ToLower(trimmed)

		switch {
		case strings.Contains(lower, "key concepts"):
			section = "terms"
			continue
		case strings.Contains(lower, "search quer"):
			section = "queries"
			continue
		case strings.Contains(lower, "focus areas"):
			section = "focus"
			continue
		case strings.HasPrefix(trimmed, "**") || strings.HasPrefix(trimmed, "#"):
			// Any other heading ends the current section.
			section = ""
			continue
		}

		item := extractListItem(trimmed)
		if item == "" {
			continue
		}
		switch section {
		case "terms":
			strategy.Terms = append(strategy.Terms, item)
		case "queries":
			strategy.Queries = append(strategy.Queries, item)
		case "focus":
			strategy.FocusAreas = append(strategy.FocusAreas, item)
		}
	}

	if len(strategy.Queries) == 0 {
		strategy.Queries = []string{topic}
	}
	return strategy
}

func extractListItem(line string) string {
	if m := bulletPattern.FindStringSubmatch(line); m != nil {
		return cleanItem(m[1])
	}
	if m := numberedPattern.FindStringSubmatch(line); m != nil {
		return cleanItem(m[1])
	}
	return ""
}

func cleanItem(item string) string {
	item = strings.TrimSpace(item)
	item = strings.Trim(item, `"*`)
	return strings.TrimSpace(item)
}
