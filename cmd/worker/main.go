// Package main provides the entry point for the literature synthesis
// Temporal worker. It hosts the pipeline activities and the synthesis
// workflow.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/quillview/litsynth/internal/agents"
	"github.com/quillview/litsynth/internal/config"
	"github.com/quillview/litsynth/internal/database"
	"github.com/quillview/litsynth/internal/events"
	"github.com/quillview/litsynth/internal/judge"
	"github.com/quillview/litsynth/internal/llm"
	"github.com/quillview/litsynth/internal/observability"
	"github.com/quillview/litsynth/internal/papersources"
	"github.com/quillview/litsynth/internal/papersources/arxiv"
	"github.com/quillview/litsynth/internal/papersources/semanticscholar"
	"github.com/quillview/litsynth/internal/pipeline"
	"github.com/quillview/litsynth/internal/quality"
	"github.com/quillview/litsynth/internal/repository"
	"github.com/quillview/litsynth/internal/safety"
	litemporal "github.com/quillview/litsynth/internal/temporal"
	"github.com/quillview/litsynth/internal/temporal/activities"
	"github.com/quillview/litsynth/internal/temporal/workflows"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger := observability.NewLogger(observability.LoggingConfig{
		Level:      cfg.Logging.Level,
		Format:     cfg.Logging.Format,
		Output:     cfg.Logging.Output,
		TimeFormat: cfg.Logging.TimeFormat,
	})
	logger = logger.With().Str("component", "worker").Logger()
	logger.Info().Msg("litsynth worker starting")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := database.New(ctx, &cfg.Database, logger)
	if err != nil {
		return fmt.Errorf("connect to database: %w", err)
	}
	defer db.Close()

	runRepo := repository.NewPgRunRepository(db)

	publisher, err := newPublisher(cfg, logger)
	if err != nil {
		return fmt.Errorf("create event publisher: %w", err)
	}
	defer func() {
		if closeErr := publisher.Close(); closeErr != nil {
			logger.Error().Err(closeErr).Msg("failed to close event publisher")
		}
	}()

	var metrics *observability.Metrics
	if cfg.Metrics.Enabled {
		promRegistry := prometheus.NewRegistry()
		promRegistry.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
		metrics = observability.NewMetrics("litsynth", promRegistry)

		metricsSrv := startMetricsServer(cfg, promRegistry, logger)
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
			defer cancel()
			if shutdownErr := metricsSrv.Shutdown(shutdownCtx); shutdownErr != nil {
				logger.Error().Err(shutdownErr).Msg("metrics server shutdown error")
			}
		}()
	}

	pipelineActs, err := buildPipelineActivities(cfg, metrics, logger)
	if err != nil {
		return err
	}
	var runMetrics pipeline.Metrics
	if metrics != nil {
		runMetrics = metrics
	}
	persistenceActs := activities.NewPersistenceActivities(runRepo, runMetrics)
	eventActs := activities.NewEventActivities(publisher)

	temporalClient, err := litemporal.NewClient(litemporal.ClientConfig{
		HostPort:  cfg.Temporal.HostPort,
		Namespace: cfg.Temporal.Namespace,
		TaskQueue: cfg.Temporal.TaskQueue,
	}, observability.NewTemporalLogger(logger))
	if err != nil {
		return fmt.Errorf("connect to temporal: %w", err)
	}
	defer temporalClient.Close()
	logger.Info().
		Str("host_port", cfg.Temporal.HostPort).
		Str("namespace", cfg.Temporal.Namespace).
		Msg("temporal client connected")

	manager, err := litemporal.NewWorkerManager(
		temporalClient,
		litemporal.DefaultWorkerConfig(cfg.Temporal.TaskQueue),
	)
	if err != nil {
		return fmt.Errorf("create worker: %w", err)
	}

	manager.RegisterWorkflow(workflows.SynthesisWorkflow)
	manager.RegisterActivity(pipelineActs)
	manager.RegisterActivity(persistenceActs)
	manager.RegisterActivity(eventActs)

	logger.Info().Str("task_queue", cfg.Temporal.TaskQueue).Msg("worker polling")
	if err := manager.Start(ctx); err != nil && ctx.Err() == nil {
		return fmt.Errorf("worker stopped: %w", err)
	}

	logger.Info().Msg("litsynth worker stopped")
	return nil
}

// startMetricsServer exposes the registry on its own listener so the worker
// can be scraped without an API server.
func startMetricsServer(cfg *config.Config, registry *prometheus.Registry, logger zerolog.Logger) *http.Server {
	mux := http.NewServeMux()
	mux.Handle(cfg.Metrics.Path, promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))

	srv := &http.Server{Addr: cfg.Metrics.Addr, Handler: mux}
	go func() {
		logger.Info().
			Str("address", cfg.Metrics.Addr).
			Str("path", cfg.Metrics.Path).
			Msg("metrics server starting")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error().Err(err).Msg("metrics server error")
		}
	}()
	return srv
}

// buildPipelineActivities assembles the agent steps, gates and judge that
// back the pipeline activities. A nil metrics disables instrumentation.
func buildPipelineActivities(cfg *config.Config, metrics *observability.Metrics, logger zerolog.Logger) (*activities.PipelineActivities, error) {
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

	registry := buildSourceRegistry(cfg)

	planClient := chatClient
	analyzeClient := chatClient
	writeClient := chatClient
	judgeClient := chatClient
	var runMetrics pipeline.Metrics
	if metrics != nil {
		runMetrics = metrics
		registry.SetMetrics(metrics)
		planClient = llm.WithMetrics(chatClient, metrics, "plan")
		analyzeClient = llm.WithMetrics(chatClient, metrics, "analyze")
		writeClient = llm.WithMetrics(chatClient, metrics, "write")
		judgeClient = llm.WithMetrics(chatClient, metrics, "judge")
	}

	checker := safety.NewChecker(safety.Config{MaxMaskFraction: cfg.Safety.MaxMaskFraction}, logger)
	gate := quality.NewGate(quality.Config{MinDraftLength: cfg.Quality.MinDraftLength})
	scorer := buildScorer(cfg, judgeClient, logger)

	return activities.NewPipelineActivities(
		checker,
		agents.NewPlanner(planClient, quota, logger),
		agents.NewResearcher(registry, quota, agents.ResearcherConfig{
			MaxPapers:  cfg.Pipeline.MaxPapers,
			MaxQueries: cfg.Pipeline.MaxQueries,
		}, logger),
		agents.NewAnalyzer(analyzeClient, quota, logger),
		agents.NewWriter(writeClient, quota, logger),
		gate,
		scorer,
		runMetrics,
	), nil
}

// buildSourceRegistry registers the enabled paper sources.
func buildSourceRegistry(cfg *config.Config) *papersources.Registry {
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

	return registry
}

// buildScorer selects the judge implementation from configuration.
func buildScorer(cfg *config.Config, chatClient llm.ChatClient, logger zerolog.Logger) judge.Scorer {
	weights := judge.DefaultWeights()
	if len(cfg.Judge.Weights) > 0 {
		weights = judge.Weights(cfg.Judge.Weights)
	}

	if cfg.Judge.Mode == "llm" {
		return judge.NewLLMScorer(chatClient, weights, logger)
	}
	return judge.NewHeuristicScorer(weights)
}

// newPublisher returns the Kafka publisher when enabled, otherwise a no-op.
func newPublisher(cfg *config.Config, logger zerolog.Logger) (events.Publisher, error) {
	if !cfg.Kafka.Enabled {
		return events.NopPublisher{}, nil
	}
	return events.NewKafkaPublisher(events.Config{
		Brokers:      cfg.Kafka.Brokers,
		Topic:        cfg.Kafka.Topic,
		BatchSize:    cfg.Kafka.BatchSize,
		BatchTimeout: cfg.Kafka.BatchTimeout,
	}, logger)
}
