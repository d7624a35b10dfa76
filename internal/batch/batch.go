// Package batch runs many synthesis requests with bounded concurrency and
// aggregates their outcomes into an evaluation report. Runs share the
// process-wide LLM quota through the pipeline's own components; the batch
// layer only bounds how many runs are in flight at once.
package batch

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/quillview/litsynth/internal/domain"
	"github.com/quillview/litsynth/internal/pipeline"
)

// DefaultMaxConcurrentRuns bounds in-flight runs when the config leaves it zero.
const DefaultMaxConcurrentRuns = 3

// Config controls the batch runner.
type Config struct {
	// MaxConcurrentRuns bounds how many runs execute at once.
	// Zero means DefaultMaxConcurrentRuns.
	MaxConcurrentRuns int
}

// Report aggregates the outcomes of one batch.
type Report struct {
	// States holds the terminal state of every run, in request order.
	States []*domain.WorkflowState `json:"-"`

	Total     int `json:"total"`
	Completed int `json:"completed"`
	Refused   int `json:"refused"`
	Failed    int `json:"failed"`

	// TotalRevisions sums revision counts across all runs.
	TotalRevisions int `json:"total_revisions"`
	// AverageScore is the mean judge overall across completed runs.
	// Zero when nothing completed.
	AverageScore float64 `json:"average_score"`

	Duration time.Duration `json:"duration"`
}

// Runner executes request batches against a pipeline runner.
type Runner struct {
	pipe   *pipeline.Runner
	cfg    Config
	logger zerolog.Logger
}

// NewRunner creates a batch runner.
func NewRunner(pipe *pipeline.Runner, cfg Config, logger zerolog.Logger) *Runner {
	if cfg.MaxConcurrentRuns <= 0 {
		cfg.MaxConcurrentRuns = DefaultMaxConcurrentRuns
	}
	return &Runner{pipe: pipe, cfg: cfg, logger: logger}
}

// RunAll executes every request and returns the aggregate report. Individual
// runs never abort the batch: each lands on its own terminal state. A
// canceled context stops new runs from starting; runs already in flight
// finish on their own terms.
func (r *Runner) RunAll(ctx context.Context, requests []pipeline.Request) Report {
	start := time.Now()
	states := make([]*domain.WorkflowState, len(requests))

	sem := make(chan struct{}, r.cfg.MaxConcurrentRuns)
	var wg sync.WaitGroup

loop:
	for i, req := range requests {
		if ctx.Err() != nil {
			r.logger.Warn().
				Int("remaining", len(requests)-i).
				Msg("batch canceled, skipping remaining requests")
			states = states[:i]
			break loop
		}
		select {
		case sem <- struct{}{}:
		case <-ctx.Done():
			r.logger.Warn().
				Int("remaining", len(requests)-i).
				Msg("batch canceled, skipping remaining requests")
			states = states[:i]
			break loop
		}

		wg.Add(1)
		go func(i int, req pipeline.Request) {
			defer wg.Done()
			defer func() { <-sem }()
			states[i] = r.pipe.Run(ctx, req)
		}(i, req)
	}
	wg.Wait()
	report := aggregate(states)
	report.Duration = time.Since(start)
	r.logger.Info().
		Int("total", report.Total).
		Int("completed", report.Completed).
		Int("refused", report.Refused).
		Int("failed", report.Failed).
		Dur("duration", report.Duration).
		Msg("batch finished")
	return report
}

func aggregate(states []*domain.WorkflowState) Report {
	report := Report{States: states, Total: len(states)}

	var scoreSum float64
	for _, state := range states {
		if state == nil {
			continue
		}
		report.TotalRevisions += state.RevisionCount
		switch state.Status {
		case domain.StatusCompleted:
			report.Completed++
			if state.JudgeResult != nil {
				scoreSum += state.JudgeResult.Overall
			}
		case domain.StatusRefused:
			report.Refused++
		case domain.StatusFailed:
			report.Failed++
		}
	}
	if report.Completed > 0 {
		report.AverageScore = scoreSum / float64(report.Completed)
	}
	return report
}
