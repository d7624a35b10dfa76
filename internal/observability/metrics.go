package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/quillview/litsynth/internal/domain"
)

// Metrics contains all Prometheus metrics for the synthesis service,
// organized by subsystem: runs, safety, judge, LLM and paper searches.
// Metrics satisfies the pipeline's Metrics interface so a single instance
// instruments every run the orchestrator executes.
type Metrics struct {
	// RunsStarted counts synthesis runs initiated.
	RunsStarted prometheus.Counter

	// RunsFinished counts terminal runs, labeled by terminal status.
	RunsFinished *prometheus.CounterVec

	// RunDuration observes end-to-end run duration in seconds.
	RunDuration prometheus.Histogram

	// RevisionsPerRun observes quality revision counts per run.
	RevisionsPerRun prometheus.Histogram

	// SafetyViolations counts safety gate hits, labeled by stage and category.
	SafetyViolations *prometheus.CounterVec

	// JudgeScore observes overall judge scores for completed runs.
	JudgeScore prometheus.Histogram

	// LLMRequestsTotal counts LLM API requests, labeled by provider and step.
	LLMRequestsTotal *prometheus.CounterVec

	// LLMRequestsFailed counts failed LLM API requests, labeled by provider and step.
	LLMRequestsFailed *prometheus.CounterVec

	// LLMRequestDuration observes LLM request duration in seconds.
	LLMRequestDuration *prometheus.HistogramVec

	// SearchesTotal counts paper searches, labeled by source.
	SearchesTotal *prometheus.CounterVec

	// SearchesFailed counts failed paper searches, labeled by source.
	SearchesFailed *prometheus.CounterVec

	// SearchDuration observes paper search duration in seconds, labeled by source.
	SearchDuration *prometheus.HistogramVec

	// PapersRetrieved counts papers retrieved, labeled by source.
	PapersRetrieved *prometheus.CounterVec
}

// NewMetrics creates a Metrics instance registered with reg. The namespace
// prefixes all metric names.
func NewMetrics(namespace string, reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		RunsStarted: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "runs_started_total",
			Help:      "Total number of synthesis runs started",
		}),
		RunsFinished: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "runs_finished_total",
			Help:      "Total number of terminal synthesis runs by status",
		}, []string{"status"}),
		RunDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "run_duration_seconds",
			Help:      "End-to-end duration of synthesis runs in seconds",
			Buckets:   []float64{1, 5, 10, 30, 60, 120, 300, 600, 1200},
		}),
		RevisionsPerRun: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "revisions_per_run",
			Help:      "Quality gate revisions performed per run",
			Buckets:   []float64{0, 1, 2, 3, 5},
		}),
		SafetyViolations: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "safety_violations_total",
			Help:      "Total safety gate violations by stage and category",
		}, []string{"stage", "category"}),
		JudgeScore: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "judge_score",
			Help:      "Overall judge score of completed runs",
			Buckets:   []float64{1, 2, 3, 4, 5, 6, 7, 8, 9, 10},
		}),
		LLMRequestsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "llm_requests_total",
			Help:      "Total LLM requests by provider and step",
		}, []string{"provider", "step"}),
		LLMRequestsFailed: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "llm_requests_failed_total",
			Help:      "Total failed LLM requests by provider and step",
		}, []string{"provider", "step"}),
		LLMRequestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "llm_request_duration_seconds",
			Help:      "Duration of LLM requests in seconds",
			Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60},
		}, []string{"provider", "step"}),
		SearchesTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "searches_total",
			Help:      "Total paper searches by source",
		}, []string{"source"}),
		SearchesFailed: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "searches_failed_total",
			Help:      "Total failed paper searches by source",
		}, []string{"source"}),
		SearchDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "search_duration_seconds",
			Help:      "Duration of paper searches in seconds by source",
			Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60},
		}, []string{"source"}),
		PapersRetrieved: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "papers_retrieved_total",
			Help:      "Total papers retrieved by source",
		}, []string{"source"}),
	}
}

// RunStarted records that a run has started.
func (m *Metrics) RunStarted() {
	m.RunsStarted.Inc()
}

// RunFinished records a terminal run with its duration and revision count.
func (m *Metrics) RunFinished(status domain.Status, duration time.Duration, revisions int) {
	m.RunsFinished.WithLabelValues(string(status)).Inc()
	m.RunDuration.Observe(duration.Seconds())
	m.RevisionsPerRun.Observe(float64(revisions))
}

// SafetyViolation records one safety gate hit.
func (m *Metrics) SafetyViolation(stage domain.Stage, category domain.Category) {
	m.SafetyViolations.WithLabelValues(string(stage), string(category)).Inc()
}

// RecordJudgeScore records the overall judge score of a completed run.
func (m *Metrics) RecordJudgeScore(score float64) {
	m.JudgeScore.Observe(score)
}

// RecordLLMRequest records a completed LLM request.
func (m *Metrics) RecordLLMRequest(provider, step string, duration time.Duration) {
	m.LLMRequestsTotal.WithLabelValues(provider, step).Inc()
	m.LLMRequestDuration.WithLabelValues(provider, step).Observe(duration.Seconds())
}

// RecordLLMRequestFailed records a failed LLM request.
func (m *Metrics) RecordLLMRequestFailed(provider, step string) {
	m.LLMRequestsFailed.WithLabelValues(provider, step).Inc()
}

// RecordSearch records a completed paper search.
func (m *Metrics) RecordSearch(source string, papers int, duration time.Duration) {
	m.SearchesTotal.WithLabelValues(source).Inc()
	m.SearchDuration.WithLabelValues(source).Observe(duration.Seconds())
	m.PapersRetrieved.WithLabelValues(source).Add(float64(papers))
}

// RecordSearchFailed records a failed paper search.
func (m *Metrics) RecordSearchFailed(source string, duration time.Duration) {
	m.SearchesTotal.WithLabelValues(source).Inc()
	m.SearchesFailed.WithLabelValues(source).Inc()
	m.SearchDuration.WithLabelValues(source).Observe(duration.Seconds())
}
