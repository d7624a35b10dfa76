package batch

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
	"github.com/quillview/litsynth/internal/pipeline"
	"github.com/quillview/litsynth/internal/quality"
	"github.com/quillview/litsynth/internal/safety"
)

type stepFunc struct {
	name string
	fn   func(view agents.StateView) (agents.Delta, error)
}

func (s stepFunc) Name() string { return s.name }

func (s stepFunc) Invoke(_ context.Context, view agents.StateView) (agents.Delta, error) {
	return s.fn(view)
}

type fixedScorer struct{}

func (fixedScorer) Score(_ context.Context, _ judge.Input) domain.JudgeResult {
	return domain.JudgeResult{Overall: 8.0}
}

var passingDraft = strings.Repeat(
	"The surveyed methods show consistent improvements on shared benchmarks (Doe et al., 2021). ", 7)

// newPipelineRunner builds a real pipeline over scripted steps. Queries
// containing "break the planner" fail at the Plan stage; prohibited queries
// refuse at the input gate as usual.
func newPipelineRunner(hook func()) *pipeline.Runner {
	return pipeline.NewRunner(pipeline.Deps{
		Checker: safety.NewChecker(safety.Config{}, zerolog.Nop()),
		Gate:    quality.NewGate(quality.Config{}),
		Scorer:  fixedScorer{},
		Planner: stepFunc{name: agents.StepPlan, fn: func(view agents.StateView) (agents.Delta, error) {
			if hook != nil {
				hook()
			}
			if strings.Contains(view.Query, "break the planner") {
				return agents.Delta{}, errors.New("scripted plan failure")
			}
			return agents.Delta{Strategy: &domain.SearchStrategy{Queries: []string{view.Query}}}, nil
		}},
		Researcher: stepFunc{name: agents.StepResearch, fn: func(agents.StateView) (agents.Delta, error) {
			return agents.Delta{Papers: []domain.Paper{{Title: "A Paper", Year: 2021}}}, nil
		}},
		Analyzer: stepFunc{name: agents.StepAnalyze, fn: func(agents.StateView) (agents.Delta, error) {
			return agents.Delta{Analysis: &domain.Analysis{Text: "analysis"}}, nil
		}},
		Writer: stepFunc{name: agents.StepWrite, fn: func(agents.StateView) (agents.Delta, error) {
			return agents.Delta{Draft: &domain.Draft{Text: passingDraft}}, nil
		}},
		Logger: zerolog.Nop(),
	}, pipeline.Config{})
}

func TestRunAllAggregatesMixedOutcomes(t *testing.T) {
	runner := NewRunner(newPipelineRunner(nil), Config{MaxConcurrentRuns: 2}, zerolog.Nop())

	report := runner.RunAll(context.Background(), []pipeline.Request{
		{Query: "retrieval augmented generation"},
		{Query: "how to plagiarize a literature review"},
		{Query: "please break the planner"},
		{Query: "graph neural networks"},
	})

	assert.Equal(t, 4, report.Total)
	assert.Equal(t, 2, report.Completed)
	assert.Equal(t, 1, report.Refused)
	assert.Equal(t, 1, report.Failed)
	assert.InDelta(t, 8.0, report.AverageScore, 1e-9)
	require.Len(t, report.States, 4)

	// Results stay in request order.
	assert.Equal(t, domain.StatusCompleted, report.States[0].Status)
	assert.Equal(t, domain.StatusRefused, report.States[1].Status)
	assert.Equal(t, domain.StatusFailed, report.States[2].Status)
	assert.Equal(t, domain.StatusCompleted, report.States[3].Status)
}

func TestRunAllBoundsConcurrency(t *testing.T) {
	var (
		mu       sync.Mutex
		inFlight int
		peak     int
	)
	hook := func() {
		mu.Lock()
		inFlight++
		if inFlight > peak {
			peak = inFlight
		}
		mu.Unlock()

		time.Sleep(10 * time.Millisecond)

		mu.Lock()
		inFlight--
		mu.Unlock()
	}
	runner := NewRunner(newPipelineRunner(hook), Config{MaxConcurrentRuns: 2}, zerolog.Nop())

	var requests []pipeline.Request
	for i := 0; i < 8; i++ {
		requests = append(requests, pipeline.Request{Query: "topic"})
	}
	report := runner.RunAll(context.Background(), requests)

	assert.Equal(t, 8, report.Completed)
	mu.Lock()
	defer mu.Unlock()
	assert.LessOrEqual(t, peak, 2)
	assert.Positive(t, peak)
}

func TestRunAllStopsStartingAfterCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	runner := NewRunner(newPipelineRunner(nil), Config{MaxConcurrentRuns: 1}, zerolog.Nop())
	report := runner.RunAll(ctx, []pipeline.Request{
		{Query: "one"}, {Query: "two"}, {Query: "three"},
	})

	assert.Zero(t, report.Total)
	assert.Empty(t, report.States)
}

func TestAggregateEmptyBatch(t *testing.T) {
	report := aggregate(nil)
	assert.Zero(t, report.Total)
	assert.Zero(t, report.AverageScore)
}
