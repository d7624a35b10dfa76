// Package pipeline implements the synthesis run orchestrator: a state
// machine that sequences the agent steps between the input and output safety
// gates, drives the bounded revision loop off the quality gate, and scores
// every delivered review with the judge. Every run terminates in exactly one
// of Completed, Refused or Failed.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/quillview/litsynth/internal/agents"
	"github.com/quillview/litsynth/internal/domain"
	"github.com/quillview/litsynth/internal/judge"
	"github.com/quillview/litsynth/internal/observability"
	"github.com/quillview/litsynth/internal/quality"
	"github.com/quillview/litsynth/internal/safety"
)

// DefaultMaxRevisions bounds the quality revision loop.
const DefaultMaxRevisions = 2

// Config controls run limits. Zero timeouts disable the per-step deadline;
// the caller's context still bounds the whole run.
type Config struct {
	MaxRevisions    int
	PlanTimeout     time.Duration
	ResearchTimeout time.Duration
	AnalyzeTimeout  time.Duration
	WriteTimeout    time.Duration
	JudgeTimeout    time.Duration
}

// Request describes one synthesis run.
type Request struct {
	Query              string
	ProjectDescription string
}

// Metrics receives run lifecycle notifications. Implementations must be safe
// for concurrent use; a nil Metrics disables instrumentation.
type Metrics interface {
	RunStarted()
	RunFinished(status domain.Status, duration time.Duration, revisions int)
	SafetyViolation(stage domain.Stage, category domain.Category)
	RecordJudgeScore(score float64)
}

// Runner executes synthesis runs. It is safe for concurrent use: all
// per-run data lives in the WorkflowState it creates.
type Runner struct {
	checker    *safety.Checker
	planner    agents.Step
	researcher agents.Step
	analyzer   agents.Step
	writer     agents.Step
	gate       *quality.Gate
	scorer     judge.Scorer
	metrics    Metrics
	logger     zerolog.Logger
	cfg        Config
}

// Deps bundles the components a Runner orchestrates.
type Deps struct {
	Checker    *safety.Checker
	Planner    agents.Step
	Researcher agents.Step
	Analyzer   agents.Step
	Writer     agents.Step
	Gate       *quality.Gate
	Scorer     judge.Scorer
	// Metrics is optional.
	Metrics Metrics
	Logger  zerolog.Logger
}

// NewRunner creates a run orchestrator.
func NewRunner(deps Deps, cfg Config) *Runner {
	if cfg.MaxRevisions <= 0 {
		cfg.MaxRevisions = DefaultMaxRevisions
	}
	return &Runner{
		checker:    deps.Checker,
		planner:    deps.Planner,
		researcher: deps.Researcher,
		analyzer:   deps.Analyzer,
		writer:     deps.Writer,
		gate:       deps.Gate,
		scorer:     deps.Scorer,
		metrics:    deps.Metrics,
		logger:     deps.Logger,
		cfg:        cfg,
	}
}

// Run executes one synthesis run to its terminal state. It never returns an
// error: every failure mode is recorded on the returned state, whose status
// is always terminal. The returned state is owned by the caller.
func (r *Runner) Run(ctx context.Context, req Request) *domain.WorkflowState {
	state := domain.NewWorkflowState(req.Query, req.ProjectDescription, r.cfg.MaxRevisions)
	logger := observability.WithRunContext(r.logger, state.ID, req.Query)
	logger.Info().Msg("run started")
	if r.metrics != nil {
		r.metrics.RunStarted()
	}

	r.execute(ctx, state, logger)

	now := time.Now().UTC()
	state.CompletedAt = &now
	logger.Info().
		Str("status", string(state.Status)).
		Dur("duration", state.Duration()).
		Int("revisions", state.RevisionCount).
		Msg("run finished")
	if r.metrics != nil {
		r.metrics.RunFinished(state.Status, state.Duration(), state.RevisionCount)
	}
	return state
}

// execute advances the state machine until a terminal status is set.
func (r *Runner) execute(ctx context.Context, state *domain.WorkflowState, logger zerolog.Logger) {
	// Input gate. Any hit refuses the run before a single agent call.
	if decision := r.checker.CheckInput(state.Query); !decision.Safe {
		r.recordViolations(state, decision.Violations)
		state.Status = domain.StatusRefused
		logger.Warn().Int("violations", len(decision.Violations)).Msg("query refused by input gate")
		return
	}
	state.Status = domain.StatusInputChecked

	// Plan. Failure or timeout here is fatal: nothing downstream can run
	// without a strategy.
	delta, err := r.invoke(ctx, r.planner, r.cfg.PlanTimeout, r.view(state, "", nil))
	if err != nil {
		r.fail(state, domain.StagePlan, err, logger)
		return
	}
	state.SearchStrategy = delta.Strategy
	state.Status = domain.StatusPlanned

	// Research. This step degrades rather than fails: an empty corpus is
	// recorded and the run continues, so a search outage cannot take down
	// a run that the writer can still complete on general knowledge.
	delta, err = r.invoke(ctx, r.researcher, r.cfg.ResearchTimeout, r.view(state, "", nil))
	switch {
	case err == nil:
		state.Papers = delta.Papers
	case domain.IsFatalStepError(err) || ctx.Err() != nil:
		r.fail(state, domain.StageResearch, err, logger)
		return
	default:
		state.AddError(domain.StageResearch, err.Error(), false)
		logger.Warn().Err(err).Msg("research degraded, continuing without papers")
	}
	state.Status = domain.StatusResearched

	// Analyze/Write revision loop, bounded by MaxRevisions.
	var (
		feedback  string
		prevDraft *domain.Draft
	)
	for {
		delta, err = r.invoke(ctx, r.analyzer, r.cfg.AnalyzeTimeout, r.view(state, feedback, prevDraft))
		if err != nil {
			r.fail(state, domain.StageAnalyze, err, logger)
			return
		}
		state.Analysis = delta.Analysis
		state.Status = domain.StatusAnalyzed

		delta, err = r.invoke(ctx, r.writer, r.cfg.WriteTimeout, r.view(state, feedback, prevDraft))
		if err != nil {
			r.fail(state, domain.StageWrite, err, logger)
			return
		}
		state.Draft = delta.Draft
		state.Status = domain.StatusDrafted

		pass, reason := r.gate.Evaluate(*state.Draft)
		if pass {
			break
		}
		if state.RevisionCount >= state.MaxRevisions {
			state.QualityWarning = fmt.Sprintf(
				"accepted after %d revisions without passing the quality gate: %s",
				state.RevisionCount, reason)
			logger.Warn().Str("reason", reason).Msg("revision budget exhausted, accepting draft")
			break
		}
		state.RevisionCount++
		feedback = reason
		prevDraft = state.Draft
		logger.Info().
			Int("revision", state.RevisionCount).
			Str("reason", reason).
			Msg("quality gate rejected draft, revising")
	}
	state.Status = domain.StatusQualityPassed

	// Output gate. Masked text replaces the draft; a draft that cannot be
	// masked within budget refuses the run.
	if decision := r.checker.CheckOutput(state.Draft.Text); !decision.Safe {
		r.recordViolations(state, decision.Violations)
		if !decision.Sanitized {
			state.Status = domain.StatusRefused
			logger.Warn().Int("violations", len(decision.Violations)).Msg("draft refused by output gate")
			return
		}
		state.Draft.Text = decision.SanitizedText
		logger.Info().Int("violations", len(decision.Violations)).Msg("draft sanitized by output gate")
	}
	state.Status = domain.StatusOutputChecked

	// Judge. Advisory only: it runs on every delivered review and its
	// outcome never changes the terminal status.
	judgeCtx := ctx
	if r.cfg.JudgeTimeout > 0 {
		var cancel context.CancelFunc
		judgeCtx, cancel = context.WithTimeout(ctx, r.cfg.JudgeTimeout)
		defer cancel()
	}
	result := r.scorer.Score(judgeCtx, judge.Input{
		Query:        state.Query,
		Draft:        *state.Draft,
		Papers:       state.Papers,
		SafetyEvents: state.SafetyEvents,
	})
	state.JudgeResult = &result
	state.Status = domain.StatusJudged
	logger.Info().Float64("overall", result.Overall).Msg("review judged")
	if r.metrics != nil {
		r.metrics.RecordJudgeScore(result.Overall)
	}

	state.Status = domain.StatusCompleted
}

// invoke runs one step against a read-only projection of the state,
// enforcing the per-step deadline.
func (r *Runner) invoke(ctx context.Context, step agents.Step, timeout time.Duration, view agents.StateView) (agents.Delta, error) {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	return step.Invoke(ctx, view)
}

// view builds the projection handed to a step. It is built from a deep clone
// so a misbehaving step can never reach the live state.
func (r *Runner) view(state *domain.WorkflowState, feedback string, prevDraft *domain.Draft) agents.StateView {
	c := state.Clone()
	v := agents.StateView{
		Query:              c.Query,
		ProjectDescription: c.ProjectDescription,
		Strategy:           c.SearchStrategy,
		Papers:             c.Papers,
		Analysis:           c.Analysis,
		RevisionFeedback:   feedback,
		RevisionCount:      c.RevisionCount,
	}
	if prevDraft != nil {
		draft := *prevDraft
		draft.Bibliography = append([]string(nil), prevDraft.Bibliography...)
		v.PreviousDraft = &draft
	}
	return v
}

func (r *Runner) fail(state *domain.WorkflowState, stage domain.Stage, err error, logger zerolog.Logger) {
	message := err.Error()
	if errors.Is(err, context.DeadlineExceeded) {
		message = fmt.Sprintf("%s step timed out: %v", stage, err)
	}
	state.AddError(stage, message, true)
	state.Status = domain.StatusFailed
	logger.Error().Err(err).Str("stage", string(stage)).Msg("run failed")
}

func (r *Runner) recordViolations(state *domain.WorkflowState, events []domain.SafetyEvent) {
	for _, ev := range events {
		state.AddSafetyEvent(ev)
		if r.metrics != nil {
			r.metrics.SafetyViolation(ev.Stage, ev.Category)
		}
	}
}
