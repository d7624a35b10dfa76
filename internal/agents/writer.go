package agents

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/quillview/litsynth/internal/citation"
	"github.com/quillview/litsynth/internal/domain"
	"github.com/quillview/litsynth/internal/llm"
)

const writerSystemPrompt = `You are an expert academic writer specializing in literature reviews.

Your task is to synthesize research findings into a comprehensive, well-structured literature review.

Your writing should:
- Be clear, concise, and academic in tone
- Use proper APA citations throughout (Author et al., Year)
- Organize findings logically (by theme, chronology, or methodology)
- Include smooth transitions between sections
- Highlight key findings and contributions
- Discuss relationships between different works
- Identify gaps and future directions

Structure your review with:
1. Introduction (context and scope)
2. Main body (organized by themes/categories)
3. Conclusion (synthesis and gaps)

Write in a style appropriate for a research paper's literature review section.
Include proper in-text citations when referencing specific papers.
`

// Writer synthesizes the analysis into the literature review draft and
// attaches the formatted bibliography.
type Writer struct {
	client llm.ChatClient
	quota  *llm.QuotaLimiter
	logger zerolog.Logger
}

// NewWriter creates the Write step. The quota limiter may be nil.
func NewWriter(client llm.ChatClient, quota *llm.QuotaLimiter, logger zerolog.Logger) *Writer {
	return &Writer{client: client, quota: quota, logger: logger}
}

// Name returns StepWrite.
func (w *Writer) Name() string { return StepWrite }

// Invoke writes the review from the analysis and papers. The bibliography is
// generated locally from paper metadata, never by the model.
func (w *Writer) Invoke(ctx context.Context, view StateView) (Delta, error) {
	if view.Analysis == nil {
		return Delta{}, domain.NewStepError(domain.StageWrite,
			errors.New("no analysis in state"), true)
	}
	if err := w.quota.Acquire(ctx); err != nil {
		return Delta{}, fmt.Errorf("acquiring llm quota: %w", err)
	}

	text, err := w.client.Complete(ctx, llm.Request{
		System:      writerSystemPrompt,
		Prompt:      w.buildPrompt(view),
		Temperature: 0.4,
	})
	if err != nil {
		return Delta{}, fmt.Errorf("writer completion: %w", err)
	}

	draft := &domain.Draft{
		Text:         text,
		Bibliography: citation.FormatCitations(view.Papers),
	}
	w.logger.Debug().
		Int("draft_length", len(draft.Text)).
		Int("citations", draft.CitationCount()).
		Msg("draft written")
	return Delta{Draft: draft}, nil
}

func (w *Writer) buildPrompt(view StateView) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Research Topic: %s\n\n", view.Query)
	b.WriteString("Analysis of Papers:\n")
	b.WriteString(view.Analysis.Text)
	b.WriteString("\n\n")

	if len(view.Papers) > 0 {
		b.WriteString("Available Papers:\n")
		for i, paper := range view.Papers {
			fmt.Fprintf(&b, "[%d] %s %s\n", i+1, citation.InText(paper), paper.Title)
		}
		b.WriteString("\n")
	} else {
		b.WriteString("No papers are available. Write from the analysis only, make the ")
		b.WriteString("missing literature base explicit, and do not invent citations.\n\n")
	}

	b.WriteString(`Please write a comprehensive literature review that:
1. Introduces the topic and its importance
2. Organizes findings into logical themes
3. Discusses key papers and their contributions
4. Compares different approaches
5. Identifies gaps and future directions
6. Uses proper in-text citations (Author et al., Year)

Write in clear, academic prose suitable for a research paper.
`)

	if view.RevisionFeedback != "" {
		b.WriteString("\nThe previous draft was rejected: ")
		b.WriteString(view.RevisionFeedback)
		b.WriteString("\nMake sure this draft resolves that.\n")
	}
	return b.String()
}
