package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog"

	"github.com/quillview/litsynth/internal/config"
	"github.com/quillview/litsynth/internal/database"
	"github.com/quillview/litsynth/internal/observability"
	"github.com/quillview/litsynth/internal/repository"
	"github.com/quillview/litsynth/internal/server"
	litemporal "github.com/quillview/litsynth/internal/temporal"
	"github.com/quillview/litsynth/internal/temporal/workflows"
)

// runWeb starts the HTTP API server in-process. Unlike test and evaluate
// modes it needs PostgreSQL and Temporal to be reachable.
func runWeb(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (int, error) {
	db, err := database.New(ctx, &cfg.Database, logger)
	if err != nil {
		return 1, fmt.Errorf("connect to database: %w", err)
	}
	defer db.Close()

	runRepo := repository.NewPgRunRepository(db)

	temporalCfg := litemporal.ClientConfig{
		HostPort:  cfg.Temporal.HostPort,
		Namespace: cfg.Temporal.Namespace,
		TaskQueue: cfg.Temporal.TaskQueue,
	}
	temporalClient, err := litemporal.NewClient(temporalCfg, observability.NewTemporalLogger(logger))
	if err != nil {
		return 1, fmt.Errorf("connect to temporal: %w", err)
	}
	workflowClient := litemporal.NewSynthesisWorkflowClient(temporalClient, temporalCfg)
	defer workflowClient.Close()

	registry := prometheus.NewRegistry()
	var metricsPath string
	if cfg.Metrics.Enabled {
		registry.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
		metricsPath = cfg.Metrics.Path
	}

	srv := server.NewServer(
		server.Config{
			Address:         cfg.Server.HTTPAddress(),
			ReadTimeout:     cfg.Server.ReadTimeout,
			WriteTimeout:    cfg.Server.WriteTimeout,
			ShutdownTimeout: cfg.Server.ShutdownTimeout,
			MetricsPath:     metricsPath,
		},
		workflowClient,
		workflows.SynthesisWorkflow,
		runRepo,
		db,
		registry,
		logger,
	)

	errCh := make(chan error, 1)
	go func() {
		logger.Info().Str("address", cfg.Server.HTTPAddress()).Msg("HTTP server starting")
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("HTTP server error: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		logger.Info().Msg("received shutdown signal")
	case err := <-errCh:
		return 1, err
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("HTTP server shutdown error")
	}
	return 0, nil
}
