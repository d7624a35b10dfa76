// Package observability provides logging and metrics support for the
// literature synthesis service.
//
// # Logging
//
// Create a logger from configuration:
//
//	logger := observability.NewLogger(observability.LoggingConfig{
//	    Level:  "info",
//	    Format: "json",
//	    Output: "stdout",
//	})
//
// Add run context to a logger:
//
//	logger = observability.WithRunContext(logger, runID, query)
//
// # Metrics
//
// Initialize metrics against a registry:
//
//	metrics := observability.NewMetrics("litsynth", prometheus.DefaultRegisterer)
//
// The Metrics type satisfies the pipeline's Metrics interface, so wiring it
// into a Runner instruments every run:
//
//	runner := pipeline.NewRunner(pipeline.Deps{Metrics: metrics, ...}, cfg)
//
// # Standard Fields
//
// Common fields used across the service:
//
//   - run_id: synthesis run identifier
//   - query: the research topic
//   - stage: pipeline stage (input, plan, research, analyze, write, quality, output, judge)
//   - source: paper source (semantic_scholar, arxiv)
//   - provider: LLM provider (anthropic, openai)
//
// # Thread Safety
//
// All components are safe for concurrent use from multiple goroutines.
package observability
