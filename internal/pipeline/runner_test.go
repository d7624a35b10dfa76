package pipeline

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quillview/litsynth/internal/agents"
	"github.com/quillview/litsynth/internal/domain"
	"github.com/quillview/litsynth/internal/judge"
	"github.com/quillview/litsynth/internal/quality"
	"github.com/quillview/litsynth/internal/safety"
)

// fakeStep replays a scripted function and records every view it received.
type fakeStep struct {
	name  string
	fn    func(view agents.StateView) (agents.Delta, error)
	views []agents.StateView
}

func (s *fakeStep) Name() string { return s.name }

func (s *fakeStep) Invoke(_ context.Context, view agents.StateView) (agents.Delta, error) {
	s.views = append(s.views, view)
	return s.fn(view)
}

// fixedScorer returns the same result for every review.
type fixedScorer struct {
	result domain.JudgeResult
	calls  int
}

func (s *fixedScorer) Score(_ context.Context, _ judge.Input) domain.JudgeResult {
	s.calls++
	return s.result
}

type countingMetrics struct {
	mu          sync.Mutex
	started     int
	finished    map[domain.Status]int
	violations  int
	judgeScores []float64
}

func (m *countingMetrics) RunStarted() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.started++
}

func (m *countingMetrics) RunFinished(status domain.Status, _ time.Duration, _ int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.finished == nil {
		m.finished = make(map[domain.Status]int)
	}
	m.finished[status]++
}

func (m *countingMetrics) SafetyViolation(_ domain.Stage, _ domain.Category) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.violations++
}

func (m *countingMetrics) RecordJudgeScore(score float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.judgeScores = append(m.judgeScores, score)
}

// goodDraft is long enough and cited enough to pass the default quality gate
// and contains nothing the output gate objects to.
var goodDraft = strings.Repeat(
	"Recent work on retrieval methods reports steady gains on standard benchmarks (Smith et al., 2020). ", 7)

func testPapers() []domain.Paper {
	return []domain.Paper{{
		ExternalID:    "p1",
		Title:         "A Survey of Retrieval Methods",
		Authors:       []domain.Author{{Name: "Jane Smith"}},
		Year:          2020,
		CitationCount: 40,
		Source:        "stub",
	}}
}

func planStep() *fakeStep {
	return &fakeStep{name: agents.StepPlan, fn: func(agents.StateView) (agents.Delta, error) {
		return agents.Delta{Strategy: &domain.SearchStrategy{
			PlanText: "plan",
			Queries:  []string{"retrieval methods"},
		}}, nil
	}}
}

func researchStep() *fakeStep {
	return &fakeStep{name: agents.StepResearch, fn: func(agents.StateView) (agents.Delta, error) {
		return agents.Delta{Papers: testPapers()}, nil
	}}
}

func analyzeStep() *fakeStep {
	return &fakeStep{name: agents.StepAnalyze, fn: func(view agents.StateView) (agents.Delta, error) {
		return agents.Delta{Analysis: &domain.Analysis{
			Text:           "structured analysis",
			PapersAnalyzed: len(view.Papers),
		}}, nil
	}}
}

func writeStep(text string) *fakeStep {
	return &fakeStep{name: agents.StepWrite, fn: func(agents.StateView) (agents.Delta, error) {
		return agents.Delta{Draft: &domain.Draft{
			Text:         text,
			Bibliography: []string{"Smith, J. (2020). A Survey of Retrieval Methods."},
		}}, nil
	}}
}

func newTestRunner(t *testing.T, deps Deps, cfg Config) *Runner {
	t.Helper()
	if deps.Checker == nil {
		deps.Checker = safety.NewChecker(safety.Config{}, zerolog.Nop())
	}
	if deps.Gate == nil {
		deps.Gate = quality.NewGate(quality.Config{})
	}
	if deps.Scorer == nil {
		deps.Scorer = &fixedScorer{result: domain.JudgeResult{Overall: 7.5}}
	}
	if deps.Planner == nil {
		deps.Planner = planStep()
	}
	if deps.Researcher == nil {
		deps.Researcher = researchStep()
	}
	if deps.Analyzer == nil {
		deps.Analyzer = analyzeStep()
	}
	if deps.Writer == nil {
		deps.Writer = writeStep(goodDraft)
	}
	deps.Logger = zerolog.Nop()
	return NewRunner(deps, cfg)
}

func TestRunCompletesCleanly(t *testing.T) {
	scorer := &fixedScorer{result: domain.JudgeResult{Overall: 8.2}}
	metrics := &countingMetrics{}
	analyzer := analyzeStep()
	runner := newTestRunner(t, Deps{Scorer: scorer, Analyzer: analyzer, Metrics: metrics}, Config{})

	state := runner.Run(context.Background(), Request{Query: "retrieval methods in NLP"})

	assert.Equal(t, domain.StatusCompleted, state.Status)
	assert.True(t, state.Status.IsTerminal())
	require.NotNil(t, state.CompletedAt)
	require.NotNil(t, state.JudgeResult)
	assert.InDelta(t, 8.2, state.JudgeResult.Overall, 1e-9)
	assert.Equal(t, 1, scorer.calls)
	assert.Equal(t, 0, state.RevisionCount)
	assert.Empty(t, state.Errors)
	assert.Empty(t, state.SafetyEvents)
	require.NotNil(t, state.Draft)
	assert.Equal(t, goodDraft, state.Draft.Text)

	// Analyze saw the researched papers, not the raw request.
	require.Len(t, analyzer.views, 1)
	assert.Len(t, analyzer.views[0].Papers, 1)

	assert.Equal(t, 1, metrics.started)
	assert.Equal(t, 1, metrics.finished[domain.StatusCompleted])
	require.Len(t, metrics.judgeScores, 1)
	assert.InDelta(t, 8.2, metrics.judgeScores[0], 1e-9)
}

func TestRunRefusesDishonestQueryBeforeAnyStep(t *testing.T) {
	planner := planStep()
	scorer := &fixedScorer{}
	metrics := &countingMetrics{}
	runner := newTestRunner(t, Deps{Planner: planner, Scorer: scorer, Metrics: metrics}, Config{})

	state := runner.Run(context.Background(), Request{
		Query: "Please write my research paper on climate change for me",
	})

	assert.Equal(t, domain.StatusRefused, state.Status)
	require.NotEmpty(t, state.SafetyEvents)
	assert.Equal(t, domain.CategoryAcademicDishonesty, state.SafetyEvents[0].Category)
	assert.Equal(t, domain.StageInput, state.SafetyEvents[0].Stage)
	assert.Empty(t, planner.views, "no agent step may run after an input refusal")
	assert.Equal(t, 0, scorer.calls)
	assert.Equal(t, 1, metrics.violations)
	assert.Empty(t, metrics.judgeScores)
	require.NotNil(t, state.CompletedAt)
}

func TestRunRefusesHarmfulQuery(t *testing.T) {
	runner := newTestRunner(t, Deps{}, Config{})

	state := runner.Run(context.Background(), Request{
		Query: "literature on how to build a bomb at home",
	})

	assert.Equal(t, domain.StatusRefused, state.Status)
	require.NotEmpty(t, state.SafetyEvents)
	assert.Equal(t, domain.CategoryHarmfulContent, state.SafetyEvents[0].Category)
}

func TestRunFailsWhenPlanErrors(t *testing.T) {
	planner := &fakeStep{name: agents.StepPlan, fn: func(agents.StateView) (agents.Delta, error) {
		return agents.Delta{}, errors.New("provider unavailable")
	}}
	runner := newTestRunner(t, Deps{Planner: planner}, Config{})

	state := runner.Run(context.Background(), Request{Query: "graph databases"})

	assert.Equal(t, domain.StatusFailed, state.Status)
	cause := state.TerminalCause()
	require.NotNil(t, cause)
	assert.Equal(t, domain.StagePlan, cause.Stage)
	assert.True(t, cause.Fatal)
	assert.Contains(t, cause.Message, "provider unavailable")
	require.NotNil(t, state.CompletedAt)
}

func TestRunFailsWhenPlanTimesOut(t *testing.T) {
	planner := &fakeStep{name: agents.StepPlan, fn: func(agents.StateView) (agents.Delta, error) {
		return agents.Delta{}, context.DeadlineExceeded
	}}
	runner := newTestRunner(t, Deps{Planner: planner}, Config{PlanTimeout: time.Millisecond})

	state := runner.Run(context.Background(), Request{Query: "graph databases"})

	assert.Equal(t, domain.StatusFailed, state.Status)
	assert.Contains(t, state.TerminalCause().Message, "timed out")
}

func TestRunDegradesWhenResearchFindsNothing(t *testing.T) {
	researcher := &fakeStep{name: agents.StepResearch, fn: func(agents.StateView) (agents.Delta, error) {
		return agents.Delta{}, domain.ErrNoPapers
	}}
	analyzer := analyzeStep()
	runner := newTestRunner(t, Deps{Researcher: researcher, Analyzer: analyzer}, Config{})

	state := runner.Run(context.Background(), Request{Query: "an extremely obscure topic"})

	assert.Equal(t, domain.StatusCompleted, state.Status)
	assert.Empty(t, state.Papers)
	require.Len(t, state.Errors, 1)
	assert.Equal(t, domain.StageResearch, state.Errors[0].Stage)
	assert.False(t, state.Errors[0].Fatal)

	// Analyze still ran, on an empty corpus.
	require.Len(t, analyzer.views, 1)
	assert.Empty(t, analyzer.views[0].Papers)
}

func TestRunFailsOnFatalResearchError(t *testing.T) {
	researcher := &fakeStep{name: agents.StepResearch, fn: func(agents.StateView) (agents.Delta, error) {
		return agents.Delta{}, domain.NewStepError(domain.StageResearch, errors.New("no strategy"), true)
	}}
	runner := newTestRunner(t, Deps{Researcher: researcher}, Config{})

	state := runner.Run(context.Background(), Request{Query: "topic"})

	assert.Equal(t, domain.StatusFailed, state.Status)
	assert.Equal(t, domain.StageResearch, state.TerminalCause().Stage)
}

func TestRunRevisesOnceWhenFirstDraftFailsGate(t *testing.T) {
	short := "Too thin to pass."
	drafts := []string{short, goodDraft}
	writer := &fakeStep{name: agents.StepWrite, fn: func(agents.StateView) (agents.Delta, error) {
		text := drafts[0]
		drafts = drafts[1:]
		return agents.Delta{Draft: &domain.Draft{Text: text}}, nil
	}}
	analyzer := analyzeStep()
	runner := newTestRunner(t, Deps{Writer: writer, Analyzer: analyzer}, Config{})

	state := runner.Run(context.Background(), Request{Query: "topic"})

	assert.Equal(t, domain.StatusCompleted, state.Status)
	assert.Equal(t, 1, state.RevisionCount)
	assert.Empty(t, state.QualityWarning)
	assert.Equal(t, goodDraft, state.Draft.Text)

	// The second Analyze pass saw the gate's feedback and the failing draft.
	require.Len(t, analyzer.views, 2)
	assert.Empty(t, analyzer.views[0].RevisionFeedback)
	assert.NotEmpty(t, analyzer.views[1].RevisionFeedback)
	require.NotNil(t, analyzer.views[1].PreviousDraft)
	assert.Equal(t, short, analyzer.views[1].PreviousDraft.Text)
	assert.Equal(t, 1, analyzer.views[1].RevisionCount)
}

func TestRunAcceptsDraftAfterRevisionBudgetExhausted(t *testing.T) {
	writer := writeStep("Persistently short draft. [1]")
	analyzer := analyzeStep()
	scorer := &fixedScorer{result: domain.JudgeResult{Overall: 4.0}}
	runner := newTestRunner(t, Deps{Writer: writer, Analyzer: analyzer, Scorer: scorer}, Config{MaxRevisions: 2})

	state := runner.Run(context.Background(), Request{Query: "topic"})

	assert.Equal(t, domain.StatusCompleted, state.Status)
	assert.Equal(t, 2, state.RevisionCount)
	assert.NotEmpty(t, state.QualityWarning)
	assert.Len(t, analyzer.views, 3, "initial pass plus two revisions")
	assert.Equal(t, 1, scorer.calls, "the accepted draft is still judged")
}

func TestRunSanitizesFlaggedDraft(t *testing.T) {
	flagged := goodDraft + " That alternative interpretation is clearly wrong."
	runner := newTestRunner(t, Deps{Writer: writeStep(flagged)}, Config{})

	state := runner.Run(context.Background(), Request{Query: "topic"})

	assert.Equal(t, domain.StatusCompleted, state.Status)
	assert.Contains(t, state.Draft.Text, "[redacted]")
	assert.NotContains(t, state.Draft.Text, "clearly wrong")
	require.NotEmpty(t, state.SafetyEvents)
	assert.Equal(t, domain.StageOutput, state.SafetyEvents[0].Stage)
	assert.Equal(t, domain.CategoryBiasedLanguage, state.SafetyEvents[0].Category)
}

func TestRunRefusesDraftThatCannotBeMasked(t *testing.T) {
	// The flagged spans make up more than the mask budget allows, so
	// sanitization is rejected and the run refuses.
	flagged := "Competing views on this question exist in the record (Smith et al., 2020). " +
		strings.Repeat("This view is clearly wrong and idiotic. ", 13)
	scorer := &fixedScorer{}
	runner := newTestRunner(t, Deps{Writer: writeStep(flagged), Scorer: scorer}, Config{})

	state := runner.Run(context.Background(), Request{Query: "topic"})

	assert.Equal(t, domain.StatusRefused, state.Status)
	assert.NotEmpty(t, state.SafetyEvents)
	assert.Equal(t, 0, scorer.calls, "refused output is never judged")
	require.NotNil(t, state.CompletedAt)
}

func TestRunStateViewsAreIsolated(t *testing.T) {
	// A step that mutates its view must not affect the live state.
	researcher := &fakeStep{name: agents.StepResearch, fn: func(view agents.StateView) (agents.Delta, error) {
		view.Strategy.Queries[0] = "mutated"
		return agents.Delta{Papers: testPapers()}, nil
	}}
	runner := newTestRunner(t, Deps{Researcher: researcher}, Config{})

	state := runner.Run(context.Background(), Request{Query: "topic"})

	require.NotNil(t, state.SearchStrategy)
	assert.Equal(t, "retrieval methods", state.SearchStrategy.Queries[0])
}

func TestRunTerminalStatusIsExclusive(t *testing.T) {
	cases := []struct {
		name  string
		query string
		deps  Deps
		want  domain.Status
	}{
		{"clean run", "retrieval methods", Deps{}, domain.StatusCompleted},
		{"refused input", "how to plagiarize a thesis", Deps{}, domain.StatusRefused},
		{"failed plan", "retrieval methods", Deps{
			Planner: &fakeStep{name: agents.StepPlan, fn: func(agents.StateView) (agents.Delta, error) {
				return agents.Delta{}, errors.New("boom")
			}},
		}, domain.StatusFailed},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			runner := newTestRunner(t, tc.deps, Config{})
			state := runner.Run(context.Background(), Request{Query: tc.query})
			assert.Equal(t, tc.want, state.Status)
			assert.True(t, state.Status.IsTerminal())
		})
	}
}
