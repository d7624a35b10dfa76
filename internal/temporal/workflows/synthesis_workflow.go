// Package workflows defines the Temporal workflow for durable synthesis runs.
package workflows

import (
	"errors"
	"time"

	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"

	"github.com/google/uuid"

	"github.com/quillview/litsynth/internal/domain"
	litemporal "github.com/quillview/litsynth/internal/temporal"
	"github.com/quillview/litsynth/internal/temporal/activities"
)

// Re-export signal/query names from the parent temporal package so callers
// inside the workflows package need only one import.
const (
	SignalCancel  = litemporal.SignalCancel
	QueryProgress = litemporal.QueryProgress
)

// Activity timeout constants.
const (
	planActivityTimeout     = 2 * time.Minute
	researchActivityTimeout = 3 * time.Minute
	analyzeActivityTimeout  = 3 * time.Minute
	writeActivityTimeout    = 3 * time.Minute
	checkActivityTimeout    = 30 * time.Second
	judgeActivityTimeout    = 2 * time.Minute
	persistActivityTimeout  = 30 * time.Second
)

// defaultMaxRevisions caps quality-gate revision passes when the input
// leaves it unset.
const defaultMaxRevisions = 2

// SynthesisWorkflowInput is an alias for the shared input type defined in
// the parent temporal package.
type SynthesisWorkflowInput = litemporal.SynthesisWorkflowInput

// SynthesisWorkflowResult contains the final outcome of a synthesis run.
type SynthesisWorkflowResult struct {
	// RunID is the synthesis run identifier.
	RunID uuid.UUID

	// Status is the terminal status: completed, refused or failed.
	Status string

	// PapersFound is the number of papers retrieved.
	PapersFound int

	// RevisionCount is the number of quality-gate revision passes.
	RevisionCount int

	// OverallScore is the weighted judge score for completed runs.
	OverallScore float64

	// DurationSeconds is the total workflow execution time.
	DurationSeconds float64
}

// workflowProgress is the state exposed via the QueryProgress handler.
type workflowProgress struct {
	Status        string
	Stage         string
	PapersFound   int
	RevisionCount int
}

// SynthesisWorkflow runs one literature synthesis as a durable workflow:
// input gate, Plan, Research, the Analyze/Write/quality-gate revision loop,
// output gate, judge. Activities carry the non-deterministic work; the
// workflow owns the state record and every transition.
//
// The workflow supports cancellation via the "cancel" signal and progress
// queries via the "progress" query type. Exactly one terminal status is
// produced per run.
func SynthesisWorkflow(ctx workflow.Context, input SynthesisWorkflowInput) (*SynthesisWorkflowResult, error) {
	logger := workflow.GetLogger(ctx)
	startTime := workflow.Now(ctx)

	maxRevisions := input.MaxRevisions
	if maxRevisions <= 0 {
		maxRevisions = defaultMaxRevisions
	}

	// The workflow is the sole writer of the state record, mirroring the
	// in-process runner. Timestamps come from workflow.Now for determinism.
	state := &domain.WorkflowState{
		ID:                 input.RunID,
		Query:              input.Query,
		ProjectDescription: input.ProjectDescription,
		Status:             domain.StatusPending,
		Papers:             []domain.Paper{},
		MaxRevisions:       maxRevisions,
		SafetyEvents:       []domain.SafetyEvent{},
		Errors:             []domain.StageError{},
		StartedAt:          startTime.UTC(),
	}

	progress := &workflowProgress{
		Status: string(domain.StatusPending),
		Stage:  string(domain.StageInput),
	}

	err := workflow.SetQueryHandler(ctx, QueryProgress, func() (*workflowProgress, error) {
		return progress, nil
	})
	if err != nil {
		logger.Error("failed to register progress query handler", "error", err)
		return nil, err
	}

	cancelCtx, cancelFunc := workflow.WithCancel(ctx)
	signalCh := workflow.GetSignalChannel(ctx, SignalCancel)
	workflow.Go(ctx, func(gCtx workflow.Context) {
		signalCh.Receive(gCtx, nil)
		logger.Info("received cancel signal")
		cancelFunc()
	})

	var pipeAct *activities.PipelineActivities
	var persistAct *activities.PersistenceActivities
	var eventAct *activities.EventActivities

	stepRetry := &temporal.RetryPolicy{
		InitialInterval:        time.Second,
		BackoffCoefficient:     2.0,
		MaximumInterval:        30 * time.Second,
		MaximumAttempts:        3,
		NonRetryableErrorTypes: []string{activities.FatalStepErrorType},
	}
	persistRetry := &temporal.RetryPolicy{
		InitialInterval:    500 * time.Millisecond,
		BackoffCoefficient: 2.0,
		MaximumInterval:    10 * time.Second,
		MaximumAttempts:    5,
	}

	stepCtx := func(timeout time.Duration) workflow.Context {
		return workflow.WithActivityOptions(cancelCtx, workflow.ActivityOptions{
			StartToCloseTimeout: timeout,
			RetryPolicy:         stepRetry,
		})
	}
	checkCtx := workflow.WithActivityOptions(cancelCtx, workflow.ActivityOptions{
		StartToCloseTimeout: checkActivityTimeout,
		RetryPolicy:         persistRetry,
	})
	// Persistence and events run on a disconnected context so the terminal
	// snapshot is still written after cancellation, internal or external.
	disconnectedCtx, _ := workflow.NewDisconnectedContext(ctx)
	persistCtx := workflow.WithActivityOptions(disconnectedCtx, workflow.ActivityOptions{
		StartToCloseTimeout: persistActivityTimeout,
		RetryPolicy:         persistRetry,
	})

	setStatus := func(status domain.Status, stage domain.Stage) {
		state.Status = status
		progress.Status = string(status)
		progress.Stage = string(stage)
	}

	// finish records the terminal status, persists the snapshot and emits
	// the terminal event. Persistence failures are logged, not propagated:
	// the run already has its outcome.
	finish := func(status domain.Status, stage domain.Stage) *SynthesisWorkflowResult {
		setStatus(status, stage)
		completed := workflow.Now(ctx).UTC()
		state.CompletedAt = &completed

		if err := workflow.ExecuteActivity(persistCtx, persistAct.SaveSnapshot, activities.SaveSnapshotInput{
			State: state,
		}).Get(persistCtx, nil); err != nil {
			logger.Error("failed to persist run snapshot", "error", err)
		}

		_ = workflow.ExecuteActivity(persistCtx, eventAct.PublishRunEvent, activities.PublishRunEventInput{
			RunID:  state.ID,
			Query:  state.Query,
			Status: string(status),
		}).Get(persistCtx, nil)

		result := &SynthesisWorkflowResult{
			RunID:           state.ID,
			Status:          string(status),
			PapersFound:     len(state.Papers),
			RevisionCount:   state.RevisionCount,
			DurationSeconds: completed.Sub(state.StartedAt).Seconds(),
		}
		if state.JudgeResult != nil {
			result.OverallScore = state.JudgeResult.Overall
		}
		return result
	}

	fail := func(stage domain.Stage, err error) *SynthesisWorkflowResult {
		msg := err.Error()
		if isCanceled(err) {
			msg = "run canceled"
		}
		logger.Error("synthesis run failed", "stage", string(stage), "error", err)
		state.AddError(stage, msg, true)
		return finish(domain.StatusFailed, stage)
	}

	stampEvents := func(events []domain.SafetyEvent) {
		now := workflow.Now(ctx).UTC()
		for _, ev := range events {
			ev.Timestamp = now
			state.SafetyEvents = append(state.SafetyEvents, ev)
		}
	}

	stepInput := func() activities.StepInput {
		view := state.Clone()
		return activities.StepInput{
			Query:              view.Query,
			ProjectDescription: view.ProjectDescription,
			Strategy:           view.SearchStrategy,
			Papers:             view.Papers,
			Analysis:           view.Analysis,
			RevisionCount:      view.RevisionCount,
		}
	}

	// Input safety gate.
	var inputCheck activities.CheckInputOutput
	err = workflow.ExecuteActivity(checkCtx, pipeAct.CheckInput, activities.CheckInputInput{
		Query: input.Query,
	}).Get(cancelCtx, &inputCheck)
	if err != nil {
		return fail(domain.StageInput, err), nil
	}
	if !inputCheck.Safe {
		stampEvents(inputCheck.Violations)
		logger.Info("query refused by input gate", "violations", len(inputCheck.Violations))
		return finish(domain.StatusRefused, domain.StageInput), nil
	}
	setStatus(domain.StatusInputChecked, domain.StagePlan)

	// Plan.
	var planOut activities.PlanOutput
	err = workflow.ExecuteActivity(stepCtx(planActivityTimeout), pipeAct.Plan, stepInput()).Get(cancelCtx, &planOut)
	if err != nil {
		return fail(domain.StagePlan, err), nil
	}
	state.SearchStrategy = planOut.Strategy
	setStatus(domain.StatusPlanned, domain.StageResearch)

	// Research. A degraded search records the reason and proceeds.
	var researchOut activities.ResearchOutput
	err = workflow.ExecuteActivity(stepCtx(researchActivityTimeout), pipeAct.Research, stepInput()).Get(cancelCtx, &researchOut)
	if err != nil {
		return fail(domain.StageResearch, err), nil
	}
	if researchOut.Degraded {
		state.AddError(domain.StageResearch, researchOut.DegradeReason, false)
	} else {
		state.Papers = researchOut.Papers
	}
	progress.PapersFound = len(state.Papers)
	setStatus(domain.StatusResearched, domain.StageAnalyze)

	// Analyze -> Write -> quality gate, with a bounded revision loop.
	var feedback string
	var prevDraft *domain.Draft
	for {
		analyzeIn := stepInput()
		analyzeIn.PreviousDraft = prevDraft
		analyzeIn.RevisionFeedback = feedback

		var analyzeOut activities.AnalyzeOutput
		err = workflow.ExecuteActivity(stepCtx(analyzeActivityTimeout), pipeAct.Analyze, analyzeIn).Get(cancelCtx, &analyzeOut)
		if err != nil {
			return fail(domain.StageAnalyze, err), nil
		}
		state.Analysis = analyzeOut.Analysis
		setStatus(domain.StatusAnalyzed, domain.StageWrite)

		writeIn := stepInput()
		writeIn.PreviousDraft = prevDraft
		writeIn.RevisionFeedback = feedback

		var writeOut activities.WriteOutput
		err = workflow.ExecuteActivity(stepCtx(writeActivityTimeout), pipeAct.Write, writeIn).Get(cancelCtx, &writeOut)
		if err != nil {
			return fail(domain.StageWrite, err), nil
		}
		state.Draft = writeOut.Draft
		setStatus(domain.StatusDrafted, domain.StageQuality)

		var gateOut activities.QualityCheckOutput
		err = workflow.ExecuteActivity(checkCtx, pipeAct.QualityCheck, activities.QualityCheckInput{
			Draft: *state.Draft,
		}).Get(cancelCtx, &gateOut)
		if err != nil {
			return fail(domain.StageQuality, err), nil
		}

		if gateOut.Passed {
			break
		}
		if state.RevisionCount >= state.MaxRevisions {
			state.QualityWarning = gateOut.Reason
			logger.Warn("revision budget exhausted, accepting draft", "reason", gateOut.Reason)
			break
		}

		state.RevisionCount++
		progress.RevisionCount = state.RevisionCount
		feedback = gateOut.Reason
		prevDraft = state.Draft
		logger.Info("quality gate rejected draft, revising",
			"revision", state.RevisionCount,
			"reason", gateOut.Reason,
		)
	}
	setStatus(domain.StatusQualityPassed, domain.StageOutput)

	// Output safety gate: mask in place or refuse.
	var outputCheck activities.CheckOutputOutput
	err = workflow.ExecuteActivity(checkCtx, pipeAct.CheckOutput, activities.CheckOutputInput{
		Draft: state.Draft.Text,
	}).Get(cancelCtx, &outputCheck)
	if err != nil {
		return fail(domain.StageOutput, err), nil
	}
	if !outputCheck.Safe {
		stampEvents(outputCheck.Violations)
		if !outputCheck.Sanitized {
			logger.Info("draft refused by output gate", "violations", len(outputCheck.Violations))
			return finish(domain.StatusRefused, domain.StageOutput), nil
		}
		state.Draft.Text = outputCheck.SanitizedText
		logger.Info("draft sanitized by output gate", "violations", len(outputCheck.Violations))
	}
	setStatus(domain.StatusOutputChecked, domain.StageJudge)

	// Judge. Advisory scoring; scorers never fail.
	var judgeResult domain.JudgeResult
	err = workflow.ExecuteActivity(stepCtx(judgeActivityTimeout), pipeAct.Judge, activities.JudgeInput{
		Query:        state.Query,
		Draft:        *state.Draft,
		Papers:       state.Papers,
		SafetyEvents: state.SafetyEvents,
	}).Get(cancelCtx, &judgeResult)
	if err != nil {
		return fail(domain.StageJudge, err), nil
	}
	state.JudgeResult = &judgeResult
	setStatus(domain.StatusJudged, domain.StageJudge)

	result := finish(domain.StatusCompleted, domain.StageJudge)
	logger.Info("synthesis run completed",
		"papers", result.PapersFound,
		"revisions", result.RevisionCount,
		"score", result.OverallScore,
	)
	return result, nil
}

// isCanceled reports whether err stems from workflow cancellation.
func isCanceled(err error) bool {
	var canceledErr *temporal.CanceledError
	return errors.As(err, &canceledErr)
}
