package activities

import (
	"context"
	"fmt"

	"go.temporal.io/sdk/activity"
	"go.temporal.io/sdk/temporal"

	"github.com/quillview/litsynth/internal/agents"
	"github.com/quillview/litsynth/internal/domain"
	"github.com/quillview/litsynth/internal/judge"
	"github.com/quillview/litsynth/internal/pipeline"
	"github.com/quillview/litsynth/internal/quality"
	"github.com/quillview/litsynth/internal/safety"
)

// FatalStepErrorType marks activity errors the workflow must not retry:
// the step failed on its own input, not on a transient fault.
const FatalStepErrorType = "FatalStepError"

// PipelineActivities wraps the pipeline's leaf components as Temporal
// activities. The workflow owns the orchestration; these methods stay
// stateless between calls.
type PipelineActivities struct {
	checker    *safety.Checker
	planner    agents.Step
	researcher agents.Step
	analyzer   agents.Step
	writer     agents.Step
	gate       *quality.Gate
	scorer     judge.Scorer
	metrics    pipeline.Metrics
}

// NewPipelineActivities creates the activity set from pipeline components.
// A nil metrics disables recording.
func NewPipelineActivities(
	checker *safety.Checker,
	planner, researcher, analyzer, writer agents.Step,
	gate *quality.Gate,
	scorer judge.Scorer,
	metrics pipeline.Metrics,
) *PipelineActivities {
	return &PipelineActivities{
		checker:    checker,
		planner:    planner,
		researcher: researcher,
		analyzer:   analyzer,
		writer:     writer,
		gate:       gate,
		scorer:     scorer,
		metrics:    metrics,
	}
}

// view converts the serialized step input back to the agents projection.
func (in StepInput) view() agents.StateView {
	return agents.StateView{
		Query:              in.Query,
		ProjectDescription: in.ProjectDescription,
		Strategy:           in.Strategy,
		Papers:             in.Papers,
		Analysis:           in.Analysis,
		PreviousDraft:      in.PreviousDraft,
		RevisionFeedback:   in.RevisionFeedback,
		RevisionCount:      in.RevisionCount,
	}
}

// CheckInput screens the research query before any agent work starts.
func (a *PipelineActivities) CheckInput(ctx context.Context, input CheckInputInput) (CheckInputOutput, error) {
	if a.metrics != nil {
		a.metrics.RunStarted()
	}
	decision := a.checker.CheckInput(input.Query)
	a.recordViolations(decision.Violations)
	return CheckInputOutput{
		Safe:       decision.Safe,
		Violations: decision.Violations,
	}, nil
}

func (a *PipelineActivities) recordViolations(violations []domain.SafetyEvent) {
	if a.metrics == nil {
		return
	}
	for _, v := range violations {
		a.metrics.SafetyViolation(v.Stage, v.Category)
	}
}

// Plan runs the Plan step.
func (a *PipelineActivities) Plan(ctx context.Context, input StepInput) (PlanOutput, error) {
	logger := activity.GetLogger(ctx)
	logger.Info("planning search strategy", "query", input.Query)

	delta, err := a.planner.Invoke(ctx, input.view())
	if err != nil {
		return PlanOutput{}, fmt.Errorf("plan step: %w", err)
	}
	return PlanOutput{Strategy: delta.Strategy}, nil
}

// Research runs the Research step. Tolerable retrieval failures are reported
// as a degraded output, never as an activity error, so the workflow proceeds
// with an empty corpus instead of retrying or failing.
func (a *PipelineActivities) Research(ctx context.Context, input StepInput) (ResearchOutput, error) {
	logger := activity.GetLogger(ctx)

	delta, err := a.researcher.Invoke(ctx, input.view())
	switch {
	case err == nil:
		logger.Info("research finished", "papers", len(delta.Papers))
		return ResearchOutput{Papers: delta.Papers}, nil
	case domain.IsFatalStepError(err):
		return ResearchOutput{}, temporal.NewNonRetryableApplicationError(
			err.Error(), FatalStepErrorType, err)
	default:
		logger.Warn("research degraded", "reason", err.Error())
		return ResearchOutput{Degraded: true, DegradeReason: err.Error()}, nil
	}
}

// Analyze runs the Analyze step.
func (a *PipelineActivities) Analyze(ctx context.Context, input StepInput) (AnalyzeOutput, error) {
	delta, err := a.analyzer.Invoke(ctx, input.view())
	if err != nil {
		if domain.IsFatalStepError(err) {
			return AnalyzeOutput{}, temporal.NewNonRetryableApplicationError(
				err.Error(), FatalStepErrorType, err)
		}
		return AnalyzeOutput{}, fmt.Errorf("analyze step: %w", err)
	}
	return AnalyzeOutput{Analysis: delta.Analysis}, nil
}

// Write runs the Write step.
func (a *PipelineActivities) Write(ctx context.Context, input StepInput) (WriteOutput, error) {
	delta, err := a.writer.Invoke(ctx, input.view())
	if err != nil {
		if domain.IsFatalStepError(err) {
			return WriteOutput{}, temporal.NewNonRetryableApplicationError(
				err.Error(), FatalStepErrorType, err)
		}
		return WriteOutput{}, fmt.Errorf("write step: %w", err)
	}
	return WriteOutput{Draft: delta.Draft}, nil
}

// QualityCheck runs the deterministic quality gate.
func (a *PipelineActivities) QualityCheck(ctx context.Context, input QualityCheckInput) (QualityCheckOutput, error) {
	passed, reason := a.gate.Evaluate(input.Draft)
	return QualityCheckOutput{Passed: passed, Reason: reason}, nil
}

// CheckOutput screens the accepted draft and attempts masking.
func (a *PipelineActivities) CheckOutput(ctx context.Context, input CheckOutputInput) (CheckOutputOutput, error) {
	decision := a.checker.CheckOutput(input.Draft)
	a.recordViolations(decision.Violations)
	return CheckOutputOutput{
		Safe:          decision.Safe,
		Sanitized:     decision.Sanitized,
		SanitizedText: decision.SanitizedText,
		Violations:    decision.Violations,
	}, nil
}

// Judge scores the finished review. Scorers never fail; a judging problem
// yields neutral scores rather than an error.
func (a *PipelineActivities) Judge(ctx context.Context, input JudgeInput) (domain.JudgeResult, error) {
	result := a.scorer.Score(ctx, judge.Input{
		Query:        input.Query,
		Draft:        input.Draft,
		Papers:       input.Papers,
		SafetyEvents: input.SafetyEvents,
	})
	if a.metrics != nil {
		a.metrics.RecordJudgeScore(result.Overall)
	}
	return result, nil
}
