// Package domain provides domain models and business logic for the literature
// synthesis service.
package domain

import (
	"time"

	"github.com/google/uuid"
)

// Status represents the lifecycle states of a synthesis run.
type Status string

const (
	StatusPending       Status = "pending"
	StatusInputChecked  Status = "input_checked"
	StatusPlanned       Status = "planned"
	StatusResearched    Status = "researched"
	StatusAnalyzed      Status = "analyzed"
	StatusDrafted       Status = "drafted"
	StatusQualityPassed Status = "quality_passed"
	StatusOutputChecked Status = "output_checked"
	StatusJudged        Status = "judged"
	StatusRefused       Status = "refused"
	StatusFailed        Status = "failed"
	StatusCompleted     Status = "completed"
)

// IsTerminal returns true if the status represents a final state that will not change.
func (s Status) IsTerminal() bool {
	switch s {
	case StatusCompleted, StatusRefused, StatusFailed:
		return true
	default:
		return false
	}
}

// Stage identifies a pipeline stage for safety events, errors and logging.
type Stage string

const (
	StageInput    Stage = "input"
	StagePlan     Stage = "plan"
	StageResearch Stage = "research"
	StageAnalyze  Stage = "analyze"
	StageWrite    Stage = "write"
	StageQuality  Stage = "quality"
	StageOutput   Stage = "output"
	StageJudge    Stage = "judge"
)

// Severity classifies how serious a safety violation is.
type Severity string

const (
	SeverityLow    Severity = "low"
	SeverityMedium Severity = "medium"
	SeverityHigh   Severity = "high"
)

// Category identifies the policy a safety violation falls under.
type Category string

const (
	CategoryHarmfulContent       Category = "harmful_content"
	CategoryInappropriateContent Category = "inappropriate_content"
	CategoryAcademicDishonesty   Category = "academic_dishonesty"
	CategoryMisinformation       Category = "misinformation"
	CategoryToxicLanguage        Category = "toxic_language"
	CategoryBiasedLanguage       Category = "biased_language"
	CategoryFabricatedCitation   Category = "fabricated_citation"
)

// SafetyEvent records a single policy violation found by the safety gate.
// Events are append-only; the terminal status carries the consequence.
type SafetyEvent struct {
	Stage     Stage     `json:"stage"`
	Category  Category  `json:"category"`
	Reason    string    `json:"reason"`
	Severity  Severity  `json:"severity"`
	Timestamp time.Time `json:"timestamp"`
}

// StageError records a step failure, fatal or degraded, in run order.
// The terminal cause is always recorded last.
type StageError struct {
	Stage   Stage  `json:"stage"`
	Message string `json:"message"`
	Fatal   bool   `json:"fatal"`
}

// SearchStrategy is the structured output of the Plan step.
// It is set once and read by Research.
type SearchStrategy struct {
	// PlanText is the full narrative plan produced by the planner.
	PlanText string `json:"plan_text"`
	// Terms are the key concepts and search terms extracted from the plan.
	Terms []string `json:"terms"`
	// Queries are the concrete search queries to execute, in priority order.
	Queries []string `json:"queries"`
	// YearFrom filters papers published on or after this year. Zero disables.
	YearFrom int `json:"year_from,omitempty"`
	// MinCitations filters papers by minimum citation count. Zero disables.
	MinCitations int `json:"min_citations,omitempty"`
	// FocusAreas are the thematic areas the review should emphasize.
	FocusAreas []string `json:"focus_areas,omitempty"`
}

// Analysis is the structured output of the Analyze step. It is overwritten
// on each revision pass.
type Analysis struct {
	// Text is the full analysis narrative.
	Text string `json:"text"`
	// Themes are the recurring topics identified across papers.
	Themes []string `json:"themes,omitempty"`
	// Gaps are understudied aspects identified in the corpus.
	Gaps []string `json:"gaps,omitempty"`
	// Comparisons summarizes how the surveyed methodologies relate.
	Comparisons []string `json:"comparisons,omitempty"`
	// PapersAnalyzed is the number of papers the analysis covered.
	PapersAnalyzed int `json:"papers_analyzed"`
}

// Draft is the output of the Write step: the review text plus its citation
// list. It is overwritten on each revision pass.
type Draft struct {
	// Text is the literature review body with in-text citations.
	Text string `json:"text"`
	// Bibliography is the formatted citation list.
	Bibliography []string `json:"bibliography"`
}

// CitationCount returns the number of bibliography entries.
func (d Draft) CitationCount() int {
	return len(d.Bibliography)
}

// JudgeResult holds the post-hoc rubric score for a completed run.
type JudgeResult struct {
	// Criteria maps criterion name to its 0-10 score.
	Criteria map[string]float64 `json:"criteria"`
	// Overall is the weighted sum of the criteria scores.
	Overall float64 `json:"overall"`
	// Feedback maps criterion name to the judge's explanation, when available.
	Feedback map[string]string `json:"feedback,omitempty"`
}

// WorkflowState is the single object threaded through every pipeline step.
// The orchestrator is its sole writer; steps return deltas and never hold a
// reference that outlives their invocation.
type WorkflowState struct {
	ID uuid.UUID `json:"id"`

	// Query is the immutable research topic.
	Query string `json:"query"`
	// ProjectDescription is the optional extended description of the project.
	ProjectDescription string `json:"project_description,omitempty"`

	Status Status `json:"status"`

	SearchStrategy *SearchStrategy `json:"search_strategy,omitempty"`
	Papers         []Paper         `json:"papers"`
	Analysis       *Analysis       `json:"analysis,omitempty"`
	Draft          *Draft          `json:"draft,omitempty"`

	// RevisionCount is incremented each time the quality gate rejects a draft.
	// It never exceeds MaxRevisions.
	RevisionCount int `json:"revision_count"`
	MaxRevisions  int `json:"max_revisions"`

	// QualityWarning is set when the revision budget is exhausted and the
	// draft is accepted anyway.
	QualityWarning string `json:"quality_warning,omitempty"`

	SafetyEvents []SafetyEvent `json:"safety_events"`
	JudgeResult  *JudgeResult  `json:"judge_result,omitempty"`
	Errors       []StageError  `json:"errors"`

	StartedAt   time.Time  `json:"started_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// NewWorkflowState creates the initial state for a query.
func NewWorkflowState(query, description string, maxRevisions int) *WorkflowState {
	return &WorkflowState{
		ID:                 uuid.New(),
		Query:              query,
		ProjectDescription: description,
		Status:             StatusPending,
		Papers:             []Paper{},
		MaxRevisions:       maxRevisions,
		SafetyEvents:       []SafetyEvent{},
		Errors:             []StageError{},
		StartedAt:          time.Now().UTC(),
	}
}

// AddSafetyEvent appends a safety event, stamping it with the current time
// if the caller left the timestamp zero.
func (s *WorkflowState) AddSafetyEvent(ev SafetyEvent) {
	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now().UTC()
	}
	s.SafetyEvents = append(s.SafetyEvents, ev)
}

// AddError appends a stage error.
func (s *WorkflowState) AddError(stage Stage, message string, fatal bool) {
	s.Errors = append(s.Errors, StageError{Stage: stage, Message: message, Fatal: fatal})
}

// TerminalCause returns the last recorded error, which by convention is the
// cause of a Failed terminal status. Returns nil for clean runs.
func (s *WorkflowState) TerminalCause() *StageError {
	if len(s.Errors) == 0 {
		return nil
	}
	return &s.Errors[len(s.Errors)-1]
}

// Duration returns the elapsed run time, or the total duration once terminal.
func (s *WorkflowState) Duration() time.Duration {
	if s.CompletedAt != nil {
		return s.CompletedAt.Sub(s.StartedAt)
	}
	return time.Since(s.StartedAt)
}

// Clone returns a deep copy of the state. Step implementations receive
// projections built from clones so they can never mutate the live state.
func (s *WorkflowState) Clone() *WorkflowState {
	out := *s

	out.Papers = make([]Paper, len(s.Papers))
	copy(out.Papers, s.Papers)

	out.SafetyEvents = make([]SafetyEvent, len(s.SafetyEvents))
	copy(out.SafetyEvents, s.SafetyEvents)

	out.Errors = make([]StageError, len(s.Errors))
	copy(out.Errors, s.Errors)

	if s.SearchStrategy != nil {
		strategy := *s.SearchStrategy
		strategy.Terms = append([]string(nil), s.SearchStrategy.Terms...)
		strategy.Queries = append([]string(nil), s.SearchStrategy.Queries...)
		strategy.FocusAreas = append([]string(nil), s.SearchStrategy.FocusAreas...)
		out.SearchStrategy = &strategy
	}
	if s.Analysis != nil {
		analysis := *s.Analysis
		analysis.Themes = append([]string(nil), s.Analysis.Themes...)
		analysis.Gaps = append([]string(nil), s.Analysis.Gaps...)
		analysis.Comparisons = append([]string(nil), s.Analysis.Comparisons...)
		out.Analysis = &analysis
	}
	if s.Draft != nil {
		draft := *s.Draft
		draft.Bibliography = append([]string(nil), s.Draft.Bibliography...)
		out.Draft = &draft
	}
	if s.JudgeResult != nil {
		result := JudgeResult{
			Overall:  s.JudgeResult.Overall,
			Criteria: make(map[string]float64, len(s.JudgeResult.Criteria)),
			Feedback: make(map[string]string, len(s.JudgeResult.Feedback)),
		}
		for k, v := range s.JudgeResult.Criteria {
			result.Criteria[k] = v
		}
		for k, v := range s.JudgeResult.Feedback {
			result.Feedback[k] = v
		}
		out.JudgeResult = &result
	}
	if s.CompletedAt != nil {
		completed := *s.CompletedAt
		out.CompletedAt = &completed
	}

	return &out
}
