// Package agents implements the four pipeline roles (Plan, Research,
// Analyze, Write) behind a single step interface. Each step receives a
// read-only projection of the workflow state and returns only the fields it
// owns; the orchestrator is the sole writer of the state itself.
package agents

import (
	"context"

	"github.com/quillview/litsynth/internal/domain"
)

// Step names, used in logs and error attribution.
const (
	StepPlan     = "plan"
	StepResearch = "research"
	StepAnalyze  = "analyze"
	StepWrite    = "write"
)

// StateView is a read-only projection of the workflow state. The
// orchestrator builds one per step invocation, populating only the fields
// that role is allowed to see: Research never sees the draft, Write never
// sees safety events (no safety data appears here at all).
type StateView struct {
	// Query is the immutable research topic.
	Query string
	// ProjectDescription is the optional extended project description.
	ProjectDescription string

	// Strategy is the search strategy produced by Plan, visible from the
	// Research step onward.
	Strategy *domain.SearchStrategy
	// Papers are the retrieved papers, visible to Analyze and Write.
	Papers []domain.Paper
	// Analysis is the current analysis, visible to Write.
	Analysis *domain.Analysis

	// PreviousDraft is the draft that failed the quality gate, visible to
	// Analyze during a revision pass only.
	PreviousDraft *domain.Draft
	// RevisionFeedback explains why the quality gate rejected the draft.
	// Empty on the first pass.
	RevisionFeedback string
	// RevisionCount is the number of revisions performed so far.
	RevisionCount int
}

// Delta carries the fields a step produced. Steps set only the field they
// own; all other fields stay nil.
type Delta struct {
	Strategy *domain.SearchStrategy
	Papers   []domain.Paper
	Analysis *domain.Analysis
	Draft    *domain.Draft
}

// Step is one pipeline role. Implementations must treat the view as
// immutable and must not retain it after Invoke returns.
type Step interface {
	// Name returns the step's stable name (StepPlan, StepResearch, ...).
	Name() string
	// Invoke runs the step against the given view. Blocking work must honor
	// the context; the orchestrator enforces a per-step deadline through it.
	Invoke(ctx context.Context, view StateView) (Delta, error)
}
