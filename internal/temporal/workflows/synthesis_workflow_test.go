package workflows

import (
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.temporal.io/sdk/testsuite"

	"github.com/quillview/litsynth/internal/domain"
	"github.com/quillview/litsynth/internal/temporal/activities"
)

var passingDraft = strings.Repeat(
	"Recent work on retrieval methods reports steady gains on standard benchmarks (Smith et al., 2020). ", 7)

func newTestInput() SynthesisWorkflowInput {
	return SynthesisWorkflowInput{
		RunID:        uuid.New(),
		Query:        "transformer architectures for protein folding",
		MaxRevisions: 2,
	}
}

// mockCommonActivities wires the always-needed persistence and event mocks.
func mockCommonActivities(env *testsuite.TestWorkflowEnvironment) {
	var persistAct *activities.PersistenceActivities
	var eventAct *activities.EventActivities
	env.OnActivity(persistAct.SaveSnapshot, mock.Anything, mock.Anything).Return(nil)
	env.OnActivity(eventAct.PublishRunEvent, mock.Anything, mock.Anything).Return(nil)
}

func TestSynthesisWorkflow_CompletesCleanly(t *testing.T) {
	testSuite := &testsuite.WorkflowTestSuite{}
	env := testSuite.NewTestWorkflowEnvironment()
	input := newTestInput()

	var pipeAct *activities.PipelineActivities
	mockCommonActivities(env)

	env.OnActivity(pipeAct.CheckInput, mock.Anything, mock.Anything).Return(
		activities.CheckInputOutput{Safe: true}, nil)
	env.OnActivity(pipeAct.Plan, mock.Anything, mock.Anything).Return(
		activities.PlanOutput{Strategy: &domain.SearchStrategy{
			Queries: []string{"protein folding transformers"},
		}}, nil)
	env.OnActivity(pipeAct.Research, mock.Anything, mock.Anything).Return(
		activities.ResearchOutput{Papers: []domain.Paper{
			{Title: "Highly accurate structure prediction", Year: 2021},
		}}, nil)
	env.OnActivity(pipeAct.Analyze, mock.Anything, mock.Anything).Return(
		activities.AnalyzeOutput{Analysis: &domain.Analysis{Text: "analysis", PapersAnalyzed: 1}}, nil)
	env.OnActivity(pipeAct.Write, mock.Anything, mock.Anything).Return(
		activities.WriteOutput{Draft: &domain.Draft{
			Text:         passingDraft,
			Bibliography: []string{"Smith, J. (2020). Retrieval methods."},
		}}, nil)
	env.OnActivity(pipeAct.QualityCheck, mock.Anything, mock.Anything).Return(
		activities.QualityCheckOutput{Passed: true}, nil)
	env.OnActivity(pipeAct.CheckOutput, mock.Anything, mock.Anything).Return(
		activities.CheckOutputOutput{Safe: true}, nil)
	env.OnActivity(pipeAct.Judge, mock.Anything, mock.Anything).Return(
		domain.JudgeResult{Overall: 7.5, Criteria: map[string]float64{"relevance": 8}}, nil)

	env.ExecuteWorkflow(SynthesisWorkflow, input)

	require.True(t, env.IsWorkflowCompleted())
	require.NoError(t, env.GetWorkflowError())

	var result SynthesisWorkflowResult
	require.NoError(t, env.GetWorkflowResult(&result))
	assert.Equal(t, input.RunID, result.RunID)
	assert.Equal(t, string(domain.StatusCompleted), result.Status)
	assert.Equal(t, 1, result.PapersFound)
	assert.Equal(t, 0, result.RevisionCount)
	assert.InDelta(t, 7.5, result.OverallScore, 0.001)
}

func TestSynthesisWorkflow_RefusesUnsafeQuery(t *testing.T) {
	testSuite := &testsuite.WorkflowTestSuite{}
	env := testSuite.NewTestWorkflowEnvironment()
	input := newTestInput()

	var pipeAct *activities.PipelineActivities
	mockCommonActivities(env)

	env.OnActivity(pipeAct.CheckInput, mock.Anything, mock.Anything).Return(
		activities.CheckInputOutput{
			Safe: false,
			Violations: []domain.SafetyEvent{{
				Stage:    domain.StageInput,
				Category: domain.CategoryAcademicDishonesty,
				Reason:   "query requests ghostwriting",
				Severity: domain.SeverityHigh,
			}},
		}, nil)

	env.ExecuteWorkflow(SynthesisWorkflow, input)

	require.True(t, env.IsWorkflowCompleted())
	require.NoError(t, env.GetWorkflowError())

	var result SynthesisWorkflowResult
	require.NoError(t, env.GetWorkflowResult(&result))
	assert.Equal(t, string(domain.StatusRefused), result.Status)
	assert.Zero(t, result.PapersFound)

	// No planning may happen after a refusal.
	env.AssertNotCalled(t, "Plan", mock.Anything, mock.Anything)
}

func TestSynthesisWorkflow_FailsWhenPlanFails(t *testing.T) {
	testSuite := &testsuite.WorkflowTestSuite{}
	env := testSuite.NewTestWorkflowEnvironment()
	input := newTestInput()

	var pipeAct *activities.PipelineActivities
	mockCommonActivities(env)

	env.OnActivity(pipeAct.CheckInput, mock.Anything, mock.Anything).Return(
		activities.CheckInputOutput{Safe: true}, nil)
	env.OnActivity(pipeAct.Plan, mock.Anything, mock.Anything).Return(
		activities.PlanOutput{}, assert.AnError)

	env.ExecuteWorkflow(SynthesisWorkflow, input)

	require.True(t, env.IsWorkflowCompleted())
	require.NoError(t, env.GetWorkflowError())

	var result SynthesisWorkflowResult
	require.NoError(t, env.GetWorkflowResult(&result))
	assert.Equal(t, string(domain.StatusFailed), result.Status)
}

func TestSynthesisWorkflow_DegradedResearchStillCompletes(t *testing.T) {
	testSuite := &testsuite.WorkflowTestSuite{}
	env := testSuite.NewTestWorkflowEnvironment()
	input := newTestInput()

	var pipeAct *activities.PipelineActivities
	mockCommonActivities(env)

	env.OnActivity(pipeAct.CheckInput, mock.Anything, mock.Anything).Return(
		activities.CheckInputOutput{Safe: true}, nil)
	env.OnActivity(pipeAct.Plan, mock.Anything, mock.Anything).Return(
		activities.PlanOutput{Strategy: &domain.SearchStrategy{Queries: []string{"q"}}}, nil)
	env.OnActivity(pipeAct.Research, mock.Anything, mock.Anything).Return(
		activities.ResearchOutput{Degraded: true, DegradeReason: "no papers found"}, nil)
	env.OnActivity(pipeAct.Analyze, mock.Anything, mock.Anything).Return(
		activities.AnalyzeOutput{Analysis: &domain.Analysis{Text: "no corpus"}}, nil)
	env.OnActivity(pipeAct.Write, mock.Anything, mock.Anything).Return(
		activities.WriteOutput{Draft: &domain.Draft{Text: passingDraft}}, nil)
	env.OnActivity(pipeAct.QualityCheck, mock.Anything, mock.Anything).Return(
		activities.QualityCheckOutput{Passed: true}, nil)
	env.OnActivity(pipeAct.CheckOutput, mock.Anything, mock.Anything).Return(
		activities.CheckOutputOutput{Safe: true}, nil)
	env.OnActivity(pipeAct.Judge, mock.Anything, mock.Anything).Return(
		domain.JudgeResult{Overall: 5.0}, nil)

	env.ExecuteWorkflow(SynthesisWorkflow, input)

	require.True(t, env.IsWorkflowCompleted())
	require.NoError(t, env.GetWorkflowError())

	var result SynthesisWorkflowResult
	require.NoError(t, env.GetWorkflowResult(&result))
	assert.Equal(t, string(domain.StatusCompleted), result.Status)
	assert.Zero(t, result.PapersFound)
}

func TestSynthesisWorkflow_RevisesRejectedDraft(t *testing.T) {
	testSuite := &testsuite.WorkflowTestSuite{}
	env := testSuite.NewTestWorkflowEnvironment()
	input := newTestInput()

	var pipeAct *activities.PipelineActivities
	mockCommonActivities(env)

	env.OnActivity(pipeAct.CheckInput, mock.Anything, mock.Anything).Return(
		activities.CheckInputOutput{Safe: true}, nil)
	env.OnActivity(pipeAct.Plan, mock.Anything, mock.Anything).Return(
		activities.PlanOutput{Strategy: &domain.SearchStrategy{Queries: []string{"q"}}}, nil)
	env.OnActivity(pipeAct.Research, mock.Anything, mock.Anything).Return(
		activities.ResearchOutput{Papers: []domain.Paper{{Title: "Paper", Year: 2020}}}, nil)
	env.OnActivity(pipeAct.Analyze, mock.Anything, mock.Anything).Return(
		activities.AnalyzeOutput{Analysis: &domain.Analysis{Text: "analysis"}}, nil)
	env.OnActivity(pipeAct.Write, mock.Anything, mock.Anything).Return(
		activities.WriteOutput{Draft: &domain.Draft{Text: passingDraft}}, nil)

	// First gate verdict rejects, second accepts.
	env.OnActivity(pipeAct.QualityCheck, mock.Anything, mock.Anything).Return(
		activities.QualityCheckOutput{Passed: false, Reason: "draft cites no sources"}, nil).Once()
	env.OnActivity(pipeAct.QualityCheck, mock.Anything, mock.Anything).Return(
		activities.QualityCheckOutput{Passed: true}, nil).Once()

	env.OnActivity(pipeAct.CheckOutput, mock.Anything, mock.Anything).Return(
		activities.CheckOutputOutput{Safe: true}, nil)
	env.OnActivity(pipeAct.Judge, mock.Anything, mock.Anything).Return(
		domain.JudgeResult{Overall: 6.0}, nil)

	env.ExecuteWorkflow(SynthesisWorkflow, input)

	require.True(t, env.IsWorkflowCompleted())
	require.NoError(t, env.GetWorkflowError())

	var result SynthesisWorkflowResult
	require.NoError(t, env.GetWorkflowResult(&result))
	assert.Equal(t, string(domain.StatusCompleted), result.Status)
	assert.Equal(t, 1, result.RevisionCount)
}

func TestSynthesisWorkflow_SanitizesFlaggedDraft(t *testing.T) {
	testSuite := &testsuite.WorkflowTestSuite{}
	env := testSuite.NewTestWorkflowEnvironment()
	input := newTestInput()

	var pipeAct *activities.PipelineActivities
	mockCommonActivities(env)

	env.OnActivity(pipeAct.CheckInput, mock.Anything, mock.Anything).Return(
		activities.CheckInputOutput{Safe: true}, nil)
	env.OnActivity(pipeAct.Plan, mock.Anything, mock.Anything).Return(
		activities.PlanOutput{Strategy: &domain.SearchStrategy{Queries: []string{"q"}}}, nil)
	env.OnActivity(pipeAct.Research, mock.Anything, mock.Anything).Return(
		activities.ResearchOutput{Papers: []domain.Paper{{Title: "Paper", Year: 2020}}}, nil)
	env.OnActivity(pipeAct.Analyze, mock.Anything, mock.Anything).Return(
		activities.AnalyzeOutput{Analysis: &domain.Analysis{Text: "analysis"}}, nil)
	env.OnActivity(pipeAct.Write, mock.Anything, mock.Anything).Return(
		activities.WriteOutput{Draft: &domain.Draft{Text: passingDraft}}, nil)
	env.OnActivity(pipeAct.QualityCheck, mock.Anything, mock.Anything).Return(
		activities.QualityCheckOutput{Passed: true}, nil)
	env.OnActivity(pipeAct.CheckOutput, mock.Anything, mock.Anything).Return(
		activities.CheckOutputOutput{
			Safe:          false,
			Sanitized:     true,
			SanitizedText: passingDraft + " [redacted]",
			Violations: []domain.SafetyEvent{{
				Stage:    domain.StageOutput,
				Category: domain.CategoryBiasedLanguage,
				Reason:   "biased phrasing masked",
				Severity: domain.SeverityLow,
			}},
		}, nil)
	env.OnActivity(pipeAct.Judge, mock.Anything, mock.Anything).Return(
		domain.JudgeResult{Overall: 6.5}, nil)

	env.ExecuteWorkflow(SynthesisWorkflow, input)

	require.True(t, env.IsWorkflowCompleted())
	require.NoError(t, env.GetWorkflowError())

	var result SynthesisWorkflowResult
	require.NoError(t, env.GetWorkflowResult(&result))
	assert.Equal(t, string(domain.StatusCompleted), result.Status)
}

func TestSynthesisWorkflow_RefusesUnmaskableDraft(t *testing.T) {
	testSuite := &testsuite.WorkflowTestSuite{}
	env := testSuite.NewTestWorkflowEnvironment()
	input := newTestInput()

	var pipeAct *activities.PipelineActivities
	mockCommonActivities(env)

	env.OnActivity(pipeAct.CheckInput, mock.Anything, mock.Anything).Return(
		activities.CheckInputOutput{Safe: true}, nil)
	env.OnActivity(pipeAct.Plan, mock.Anything, mock.Anything).Return(
		activities.PlanOutput{Strategy: &domain.SearchStrategy{Queries: []string{"q"}}}, nil)
	env.OnActivity(pipeAct.Research, mock.Anything, mock.Anything).Return(
		activities.ResearchOutput{Papers: []domain.Paper{{Title: "Paper", Year: 2020}}}, nil)
	env.OnActivity(pipeAct.Analyze, mock.Anything, mock.Anything).Return(
		activities.AnalyzeOutput{Analysis: &domain.Analysis{Text: "analysis"}}, nil)
	env.OnActivity(pipeAct.Write, mock.Anything, mock.Anything).Return(
		activities.WriteOutput{Draft: &domain.Draft{Text: passingDraft}}, nil)
	env.OnActivity(pipeAct.QualityCheck, mock.Anything, mock.Anything).Return(
		activities.QualityCheckOutput{Passed: true}, nil)
	env.OnActivity(pipeAct.CheckOutput, mock.Anything, mock.Anything).Return(
		activities.CheckOutputOutput{
			Safe:      false,
			Sanitized: false,
			Violations: []domain.SafetyEvent{{
				Stage:    domain.StageOutput,
				Category: domain.CategoryToxicLanguage,
				Reason:   "too much of the draft would be masked",
				Severity: domain.SeverityHigh,
			}},
		}, nil)

	env.ExecuteWorkflow(SynthesisWorkflow, input)

	require.True(t, env.IsWorkflowCompleted())
	require.NoError(t, env.GetWorkflowError())

	var result SynthesisWorkflowResult
	require.NoError(t, env.GetWorkflowResult(&result))
	assert.Equal(t, string(domain.StatusRefused), result.Status)
	env.AssertNotCalled(t, "Judge", mock.Anything, mock.Anything)
}

func TestSynthesisWorkflow_ProgressQuery(t *testing.T) {
	testSuite := &testsuite.WorkflowTestSuite{}
	env := testSuite.NewTestWorkflowEnvironment()
	input := newTestInput()

	var pipeAct *activities.PipelineActivities
	mockCommonActivities(env)

	env.OnActivity(pipeAct.CheckInput, mock.Anything, mock.Anything).Return(
		activities.CheckInputOutput{Safe: true}, nil)
	env.OnActivity(pipeAct.Plan, mock.Anything, mock.Anything).Return(
		activities.PlanOutput{Strategy: &domain.SearchStrategy{Queries: []string{"q"}}}, nil)
	env.OnActivity(pipeAct.Research, mock.Anything, mock.Anything).Return(
		activities.ResearchOutput{Papers: []domain.Paper{{Title: "Paper", Year: 2020}}}, nil)
	env.OnActivity(pipeAct.Analyze, mock.Anything, mock.Anything).Return(
		activities.AnalyzeOutput{Analysis: &domain.Analysis{Text: "analysis"}}, nil)
	env.OnActivity(pipeAct.Write, mock.Anything, mock.Anything).Return(
		activities.WriteOutput{Draft: &domain.Draft{Text: passingDraft}}, nil)
	env.OnActivity(pipeAct.QualityCheck, mock.Anything, mock.Anything).Return(
		activities.QualityCheckOutput{Passed: true}, nil)
	env.OnActivity(pipeAct.CheckOutput, mock.Anything, mock.Anything).Return(
		activities.CheckOutputOutput{Safe: true}, nil)
	env.OnActivity(pipeAct.Judge, mock.Anything, mock.Anything).Return(
		domain.JudgeResult{Overall: 7.0}, nil)

	env.ExecuteWorkflow(SynthesisWorkflow, input)
	require.True(t, env.IsWorkflowCompleted())

	encoded, err := env.QueryWorkflow(QueryProgress)
	require.NoError(t, err)

	var progress workflowProgress
	require.NoError(t, encoded.Get(&progress))
	assert.Equal(t, string(domain.StatusCompleted), progress.Status)
	assert.Equal(t, 1, progress.PapersFound)
}
