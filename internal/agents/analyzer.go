package agents

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/quillview/litsynth/internal/domain"
	"github.com/quillview/litsynth/internal/llm"
)

const analyzerSystemPrompt = `You are an expert at analyzing research papers and identifying patterns.

Your task is to analyze a collection of papers and extract:

1. **Common Themes**: What are the recurring topics across papers?
2. **Design Patterns**: What methodologies and approaches are commonly used?
3. **Evolution**: How has the field evolved over time?
4. **State-of-the-Art**: What are the most recent/advanced techniques?
5. **Gaps**: What aspects are understudied?
6. **Comparisons**: How do different approaches compare?

Organize your analysis into clear sections. Be specific and cite papers when making claims.

Your analysis should help a researcher understand:
- What has been done in this area
- What technologies/methods are being used
- Where the field is heading
- What opportunities exist for new research
`

// abstractLimit truncates abstracts in the papers summary to keep the prompt
// within budget.
const abstractLimit = 200

// Analyzer reviews the retrieved papers and produces structured findings.
// On revision passes it additionally receives the failing draft and the
// quality gate's feedback so the next draft can address them.
type Analyzer struct {
	client llm.ChatClient
	quota  *llm.QuotaLimiter
	logger zerolog.Logger
}

// NewAnalyzer creates the Analyze step. The quota limiter may be nil.
func NewAnalyzer(client llm.ChatClient, quota *llm.QuotaLimiter, logger zerolog.Logger) *Analyzer {
	return &Analyzer{client: client, quota: quota, logger: logger}
}

// Name returns StepAnalyze.
func (a *Analyzer) Name() string { return StepAnalyze }

// Invoke analyzes the paper collection. With zero papers it still produces
// an analysis, explicitly framed around the missing evidence, so the
// pipeline can proceed on the degraded path.
func (a *Analyzer) Invoke(ctx context.Context, view StateView) (Delta, error) {
	if err := a.quota.Acquire(ctx); err != nil {
		return Delta{}, fmt.Errorf("acquiring llm quota: %w", err)
	}

	text, err := a.client.Complete(ctx, llm.Request{
		System:      analyzerSystemPrompt,
		Prompt:      a.buildPrompt(view),
		Temperature: 0.3,
	})
	if err != nil {
		return Delta{}, fmt.Errorf("analyzer completion: %w", err)
	}

	analysis := &domain.Analysis{
		Text:           text,
		Themes:         extractSection(text, "themes"),
		Gaps:           extractSection(text, "gaps"),
		Comparisons:    extractSection(text, "comparisons"),
		PapersAnalyzed: len(view.Papers),
	}

	a.logger.Debug().
		Int("papers_analyzed", analysis.PapersAnalyzed).
		Int("revision", view.RevisionCount).
		Msg("analysis complete")
	return Delta{Analysis: analysis}, nil
}

func (a *Analyzer) buildPrompt(view StateView) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Research Topic: %s\n\n", view.Query)

	if len(view.Papers) == 0 {
		b.WriteString("No papers could be retrieved for this topic. ")
		b.WriteString("Analyze the topic from general knowledge, state explicitly that the ")
		b.WriteString("literature base is missing, and do not invent citations.\n")
	} else {
		b.WriteString("I have collected the following papers for analysis:\n\n")
		b.WriteString(papersSummary(view.Papers))
		b.WriteString("\nPlease analyze these papers and identify:\n")
		b.WriteString("1. Common themes and patterns\n")
		b.WriteString("2. Design patterns and methodologies\n")
		b.WriteString("3. State-of-the-art technologies\n")
		b.WriteString("4. Evolution of the field\n")
		b.WriteString("5. Research gaps and opportunities\n")
		b.WriteString("6. Comparison of different approaches\n\n")
		b.WriteString("Organize your analysis into clear sections with specific examples from the papers.\n")
	}

	if view.RevisionFeedback != "" {
		b.WriteString("\nThe previous draft based on your earlier analysis was rejected: ")
		b.WriteString(view.RevisionFeedback)
		b.WriteString("\nRevise the analysis so the next draft can address this.\n")
		if view.PreviousDraft != nil {
			b.WriteString("\nRejected draft for reference:\n")
			b.WriteString(truncate(view.PreviousDraft.Text, 2000))
			b.WriteString("\n")
		}
	}
	return b.String()
}

// papersSummary renders the numbered paper list used in analyzer prompts.
func papersSummary(papers []domain.Paper) string {
	var b strings.Builder
	for i, paper := range papers {
		year := "n.d."
		if paper.Year > 0 {
			year = fmt.Sprintf("%d", paper.Year)
		}
		venue := paper.Venue
		if venue == "" {
			venue = "N/A"
		}
		fmt.Fprintf(&b, "%d. %s (%s, %s)\n", i+1, paper.Title, paper.AuthorNames(2), year)
		fmt.Fprintf(&b, "   Citations: %d | Venue: %s\n", paper.CitationCount, venue)
		if paper.HasAbstract() {
			fmt.Fprintf(&b, "   Abstract: %s\n", truncate(paper.Abstract, abstractLimit))
		}
		b.WriteString("\n")
	}
	return b.String()
}

// extractSection pulls bullet items from the section whose heading contains
// the given keyword. Missing sections just return nil; the full analysis
// text is kept regardless.
func extractSection(text, keyword string) []string {
	var items []string
	inSection := false
	for _, line := range strings.Split(text, "\n") {
		trimmed := strings.TrimSpace(line)
		lower := strings.ToLower(trimmed)

		isHeading := strings.HasPrefix(trimmed, "#") || strings.HasPrefix(trimmed, "**") ||
			(strings.HasSuffix(trimmed, ":") && len(strings.Fields(trimmed)) <= 4)
		if isHeading {
			inSection = strings.Contains(lower, keyword)
			continue
		}
		if !inSection {
			continue
		}
		if item := extractListItem(trimmed); item != "" {
			items = append(items, item)
		}
	}
	return items
}

func truncate(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	return s[:limit] + "..."
}
