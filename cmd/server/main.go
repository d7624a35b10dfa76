// Package main provides the entry point for the literature synthesis HTTP
// API server. It accepts run requests, starts Temporal workflows and serves
// persisted run snapshots.
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

	"github.com/quillview/litsynth/internal/config"
	"github.com/quillview/litsynth/internal/database"
	"github.com/quillview/litsynth/internal/observability"
	"github.com/quillview/litsynth/internal/repository"
	"github.com/quillview/litsynth/internal/server"
	litemporal "github.com/quillview/litsynth/internal/temporal"
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
	logger = logger.With().Str("component", "server").Logger()
	logger.Info().Msg("litsynth server starting")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := database.New(ctx, &cfg.Database, logger)
	if err != nil {
		return fmt.Errorf("connect to database: %w", err)
	}
	defer db.Close()

	if cfg.Database.MigrationAutoRun {
		migrator, err := database.NewMigrator(db, cfg.Database.MigrationPath, logger)
		if err != nil {
			return fmt.Errorf("create migrator: %w", err)
		}
		defer func() {
			if closeErr := migrator.Close(); closeErr != nil {
				logger.Error().Err(closeErr).Msg("failed to close migrator")
			}
		}()

		if err := migrator.Up(); err != nil {
			return fmt.Errorf("run migrations: %w", err)
		}
	}

	runRepo := repository.NewPgRunRepository(db)

	temporalCfg := litemporal.ClientConfig{
		HostPort:  cfg.Temporal.HostPort,
		Namespace: cfg.Temporal.Namespace,
		TaskQueue: cfg.Temporal.TaskQueue,
	}
	temporalClient, err := litemporal.NewClient(temporalCfg, observability.NewTemporalLogger(logger))
	if err != nil {
		return fmt.Errorf("connect to temporal: %w", err)
	}
	workflowClient := litemporal.NewSynthesisWorkflowClient(temporalClient, temporalCfg)
	defer workflowClient.Close()
	logger.Info().
		Str("host_port", cfg.Temporal.HostPort).
		Str("namespace", cfg.Temporal.Namespace).
		Msg("temporal client connected")

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
		logger.Error().Err(err).Msg("server error")
		return err
	}

	logger.Info().Msg("shutting down litsynth server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("HTTP server shutdown error")
	}

	logger.Info().Msg("litsynth server stopped")
	return nil
}
