// Package activities provides Temporal activity implementations for the
// synthesis pipeline.
//
// Activity inputs and outputs are serializable structs that cross the
// Temporal serialization boundary. All fields must be exported for JSON
// serialization by the SDK's default data converter.
package activities

import (
	"github.com/google/uuid"

	"github.com/quillview/litsynth/internal/domain"
)

// CheckInputInput contains the parameters for the input safety check.
type CheckInputInput struct {
	// Query is the research topic to screen.
	Query string
}

// CheckInputOutput contains the input safety verdict.
type CheckInputOutput struct {
	// Safe is true when no detector fired.
	Safe bool

	// Violations holds one event per detector hit.
	Violations []domain.SafetyEvent
}

// StepInput carries the state projection a pipeline step is allowed to see.
type StepInput struct {
	// Query is the immutable research topic.
	Query string

	// ProjectDescription is the optional extended description.
	ProjectDescription string

	// Strategy is the search strategy, set from Research onward.
	Strategy *domain.SearchStrategy

	// Papers are the retrieved papers, set for Analyze and Write.
	Papers []domain.Paper

	// Analysis is the current analysis, set for Write.
	Analysis *domain.Analysis

	// PreviousDraft is the draft rejected by the quality gate, set during
	// revision passes.
	PreviousDraft *domain.Draft

	// RevisionFeedback is the gate's rejection reason, set during revision passes.
	RevisionFeedback string

	// RevisionCount is the number of completed revision passes.
	RevisionCount int
}

// PlanOutput contains the Plan step result.
type PlanOutput struct {
	// Strategy is the parsed search strategy.
	Strategy *domain.SearchStrategy
}

// ResearchOutput contains the Research step result. A degraded search is a
// successful activity: the workflow records the reason and proceeds with
// whatever papers were found.
type ResearchOutput struct {
	// Papers are the retrieved, deduplicated papers.
	Papers []domain.Paper

	// Degraded is true when retrieval failed in a tolerable way.
	Degraded bool

	// DegradeReason explains the degradation when Degraded is true.
	DegradeReason string
}

// AnalyzeOutput contains the Analyze step result.
type AnalyzeOutput struct {
	// Analysis is the structured corpus analysis.
	Analysis *domain.Analysis
}

// WriteOutput contains the Write step result.
type WriteOutput struct {
	// Draft is the review text with its bibliography.
	Draft *domain.Draft
}

// QualityCheckInput contains the draft for the deterministic quality gate.
type QualityCheckInput struct {
	Draft domain.Draft
}

// QualityCheckOutput contains the gate verdict.
type QualityCheckOutput struct {
	// Passed is true when the draft clears the gate.
	Passed bool

	// Reason describes what to fix when Passed is false.
	Reason string
}

// CheckOutputInput contains the draft text for the output safety check.
type CheckOutputInput struct {
	Draft string
}

// CheckOutputOutput contains the output safety verdict.
type CheckOutputOutput struct {
	// Safe is true when no detector fired.
	Safe bool

	// Sanitized is true when masking produced usable text.
	Sanitized bool

	// SanitizedText is the masked draft when Sanitized is true.
	SanitizedText string

	// Violations holds one event per detector hit.
	Violations []domain.SafetyEvent
}

// JudgeInput contains the finished review for rubric scoring.
type JudgeInput struct {
	Query        string
	Draft        domain.Draft
	Papers       []domain.Paper
	SafetyEvents []domain.SafetyEvent
}

// SaveSnapshotInput contains the terminal run state to persist.
type SaveSnapshotInput struct {
	State *domain.WorkflowState
}

// PublishRunEventInput contains the terminal run event to publish.
type PublishRunEventInput struct {
	RunID  uuid.UUID
	Query  string
	Status string
}
