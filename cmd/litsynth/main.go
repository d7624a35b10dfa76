// Package main provides the litsynth CLI. It runs the synthesis pipeline
// in-process: "test" runs a single query and prints the report, "evaluate"
// runs a batch from a JSON query list, "web" starts the HTTP API server.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"github.com/quillview/litsynth/internal/agents"
	"github.com/quillview/litsynth/internal/batch"
	"github.com/quillview/litsynth/internal/config"
	"github.com/quillview/litsynth/internal/domain"
	"github.com/quillview/litsynth/internal/export"
	"github.com/quillview/litsynth/internal/judge"
	"github.com/quillview/litsynth/internal/llm"
	"github.com/quillview/litsynth/internal/observability"
	"github.com/quillview/litsynth/internal/papersources"
	"github.com/quillview/litsynth/internal/papersources/arxiv"
	"github.com/quillview/litsynth/internal/papersources/semanticscholar"
	"github.com/quillview/litsynth/internal/pipeline"
	"github.com/quillview/litsynth/internal/quality"
	"github.com/quillview/litsynth/internal/safety"
)

func main() {
	code, err := run()
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		if code == 0 {
			code = 1
		}
	}
	os.Exit(code)
}

func run() (int, error) {
	mode := flag.String("mode", "test", "Run mode: test, evaluate or web")
	query := flag.String("query", "", "Research query (test mode)")
	project := flag.String("project", "", "Project description to narrow the research context (test mode)")
	input := flag.String("input", "", "Path to a JSON query list (evaluate mode)")
	output := flag.String("output", "", "Path to write the aggregate report (evaluate mode, default stdout)")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		return 1, fmt.Errorf("load config: %w", err)
	}

	logger := observability.NewLogger(observability.LoggingConfig{
		Level:      cfg.Logging.Level,
		Format:     cfg.Logging.Format,
		Output:     "stderr",
		TimeFormat: cfg.Logging.TimeFormat,
	})
	logger = logger.With().Str("component", "cli").Logger()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	switch *mode {
	case "test":
		return runTest(ctx, cfg, logger, *query, *project)
	case "evaluate":
		return runEvaluate(ctx, cfg, logger, *input, *output)
	case "web":
		return runWeb(ctx, cfg, logger)
	default:
		return 1, fmt.Errorf("unknown mode %q: expected test, evaluate or web", *mode)
	}
}

// runTest executes a single synthesis run and prints the report to stdout.
// The exit code is 1 only when the run failed: a refusal is a correct
// outcome, not an error.
func runTest(ctx context.Context, cfg *config.Config, logger zerolog.Logger, query, project string) (int, error) {
	if query == "" {
		return 1, fmt.Errorf("test mode requires -query")
	}

	runner, err := buildRunner(cfg, logger)
	if err != nil {
		return 1, err
	}

	state := runner.Run(ctx, pipeline.Request{Query: query, ProjectDescription: project})

	if err := export.RenderText(os.Stdout, state); err != nil {
		return 1, fmt.Errorf("render report: %w", err)
	}

	if state.Status == domain.StatusFailed {
		return 1, nil
	}
	return 0, nil
}

// batchEntry is one item of the evaluate-mode query list.
type batchEntry struct {
	Query              string `json:"query"`
	ProjectDescription string `json:"project_description,omitempty"`
}

// runEvaluate executes a batch of runs from a JSON query list and writes the
// aggregate report to the output file, or stdout when none is given.
func runEvaluate(ctx context.Context, cfg *config.Config, logger zerolog.Logger, input, output string) (int, error) {
	if input == "" {
		return 1, fmt.Errorf("evaluate mode requires -input")
	}

	data, err := os.ReadFile(input)
	if err != nil {
		return 1, fmt.Errorf("read query list: %w", err)
	}

	var entries []batchEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		return 1, fmt.Errorf("parse query list: %w", err)
	}
	if len(entries) == 0 {
		return 1, fmt.Errorf("query list %s is empty", input)
	}

	requests := make([]pipeline.Request, 0, len(entries))
	for i, entry := range entries {
		if entry.Query == "" {
			return 1, fmt.Errorf("query list entry %d has an empty query", i)
		}
		requests = append(requests, pipeline.Request{
			Query:              entry.Query,
			ProjectDescription: entry.ProjectDescription,
		})
	}

	runner, err := buildRunner(cfg, logger)
	if err != nil {
		return 1, err
	}

	batchRunner := batch.NewRunner(runner, batch.Config{
		MaxConcurrentRuns: cfg.Batch.MaxConcurrentRuns,
	}, logger)

	report := batchRunner.RunAll(ctx, requests)

	out := os.Stdout
	if output != "" {
		f, err := os.Create(output)
		if err != nil {
			return 1, fmt.Errorf("create output file: %w", err)
		}
		defer f.Close()
		out = f
	}

	if err := export.WriteBatch(out, report); err != nil {
		return 1, fmt.Errorf("write batch report: %w", err)
	}

	logger.Info().
		Int("total", report.Total).
		Int("completed", report.Completed).
		Int("refused", report.Refused).
		Int("failed", report.Failed).
		Msg("batch finished")
	return 0, nil
}

// buildRunner assembles the in-process pipeline from configuration.
func buildRunner(cfg *config.Config, logger zerolog.Logger) (*pipeline.Runner, error) {
	chatClient, err := llm.NewChatClient(llm.FactoryConfig{
		Provider: cfg.LLM.Provider,
		OpenAI: llm.OpenAIConfig{
			APIKey:     cfg.LLM.OpenAI.APIKey,
			Model:      cfg.LLM.OpenAI.Model,
			BaseURL:    cfg.LLM.OpenAI.BaseURL,
			MaxRetries: cfg.LLM.MaxRetries,
		},
		Anthropic: llm.AnthropicConfig{
			APIKey:     cfg.LLM.Anthropic.APIKey,
			Model:      cfg.LLM.Anthropic.Model,
			BaseURL:    cfg.LLM.Anthropic.BaseURL,
			MaxRetries: cfg.LLM.MaxRetries,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("create LLM client: %w", err)
	}

	var quota *llm.QuotaLimiter
	if cfg.LLM.CallsPerMinute > 0 {
		quota = llm.NewQuotaLimiter(cfg.LLM.CallsPerMinute, cfg.LLM.QuotaBurst, cfg.LLM.WaitOnQuota)
	}

	var metrics *observability.Metrics
	if cfg.Metrics.Enabled {
		metrics = observability.NewMetrics("litsynth", prometheus.DefaultRegisterer)
	}

	registry := papersources.NewRegistry()
	if cfg.PaperSources.SemanticScholar.Enabled {
		registry.Register(semanticscholar.NewClient(semanticscholar.Config{
			BaseURL:    cfg.PaperSources.SemanticScholar.BaseURL,
			APIKey:     cfg.PaperSources.SemanticScholar.APIKey,
			Timeout:    cfg.PaperSources.SemanticScholar.Timeout,
			RateLimit:  cfg.PaperSources.SemanticScholar.RateLimit,
			MaxResults: cfg.PaperSources.SemanticScholar.MaxResults,
			Enabled:    true,
		}, nil))
	}
	if cfg.PaperSources.ArXiv.Enabled {
		registry.Register(arxiv.New(arxiv.Config{
			BaseURL:    cfg.PaperSources.ArXiv.BaseURL,
			Timeout:    cfg.PaperSources.ArXiv.Timeout,
			RateLimit:  cfg.PaperSources.ArXiv.RateLimit,
			MaxResults: cfg.PaperSources.ArXiv.MaxResults,
			Enabled:    true,
		}))
	}

	planClient := chatClient
	analyzeClient := chatClient
	writeClient := chatClient
	judgeClient := chatClient
	if metrics != nil {
		registry.SetMetrics(metrics)
		planClient = llm.WithMetrics(chatClient, metrics, "plan")
		analyzeClient = llm.WithMetrics(chatClient, metrics, "analyze")
		writeClient = llm.WithMetrics(chatClient, metrics, "write")
		judgeClient = llm.WithMetrics(chatClient, metrics, "judge")
	}

	weights := judge.DefaultWeights()
	if len(cfg.Judge.Weights) > 0 {
		weights = judge.Weights(cfg.Judge.Weights)
	}
	var scorer judge.Scorer
	if cfg.Judge.Mode == "llm" {
		scorer = judge.NewLLMScorer(judgeClient, weights, logger)
	} else {
		scorer = judge.NewHeuristicScorer(weights)
	}

	deps := pipeline.Deps{
		Checker: safety.NewChecker(safety.Config{MaxMaskFraction: cfg.Safety.MaxMaskFraction}, logger),
		Planner: agents.NewPlanner(planClient, quota, logger),
		Researcher: agents.NewResearcher(registry, quota, agents.ResearcherConfig{
			MaxPapers:  cfg.Pipeline.MaxPapers,
			MaxQueries: cfg.Pipeline.MaxQueries,
		}, logger),
		Analyzer: agents.NewAnalyzer(analyzeClient, quota, logger),
		Writer:   agents.NewWriter(writeClient, quota, logger),
		Gate:     quality.NewGate(quality.Config{MinDraftLength: cfg.Quality.MinDraftLength}),
		Scorer:   scorer,
		Logger:   logger,
	}
	if metrics != nil {
		deps.Metrics = metrics
	}

	return pipeline.NewRunner(deps, pipeline.Config{
		MaxRevisions:    cfg.Pipeline.MaxRevisions,
		PlanTimeout:     cfg.Pipeline.PlanTimeout,
		ResearchTimeout: cfg.Pipeline.ResearchTimeout,
		AnalyzeTimeout:  cfg.Pipeline.AnalyzeTimeout,
		WriteTimeout:    cfg.Pipeline.WriteTimeout,
		JudgeTimeout:    cfg.Pipeline.JudgeTimeout,
	}), nil
}
