package observability

import (
	"bytes"
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quillview/litsynth/internal/domain"
)

func TestParseLevel(t *testing.T) {
	cases := map[string]zerolog.Level{
		"trace":     zerolog.TraceLevel,
		"debug":     zerolog.DebugLevel,
		"info":      zerolog.InfoLevel,
		"warn":      zerolog.WarnLevel,
		"warning":   zerolog.WarnLevel,
		"error":     zerolog.ErrorLevel,
		"FATAL":     zerolog.FatalLevel,
		"panic":     zerolog.PanicLevel,
		"gibberish": zerolog.InfoLevel,
	}
	for input, want := range cases {
		assert.Equal(t, want, parseLevel(input), "level %q", input)
	}
}

func TestWithRunContext(t *testing.T) {
	var buf bytes.Buffer
	logger := zerolog.New(&buf)
	runID := uuid.New()

	runLogger := WithRunContext(logger, runID, "transformer surveys")
	runLogger.Info().Msg("hello")

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, runID.String(), entry["run_id"])
	assert.Equal(t, "transformer surveys", entry["query"])
}

func TestWithStageContext(t *testing.T) {
	var buf bytes.Buffer
	logger := zerolog.New(&buf)

	stageLogger := WithStageContext(logger, domain.StageResearch)
	stageLogger.Info().Msg("hello")

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "research", entry["stage"])
}

func TestTemporalLoggerKeyvals(t *testing.T) {
	var buf bytes.Buffer
	tl := NewTemporalLogger(zerolog.New(&buf))

	tl.Info("workflow scheduled", "TaskQueue", "litsynth-runs", "Attempt", 1)

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "temporal-sdk", entry["component"])
	assert.Equal(t, "litsynth-runs", entry["TaskQueue"])
	assert.Equal(t, float64(1), entry["Attempt"])
	assert.Equal(t, "workflow scheduled", entry["message"])
}

func TestTemporalLoggerLevelsAndDanglingValue(t *testing.T) {
	var buf bytes.Buffer
	tl := NewTemporalLogger(zerolog.New(&buf))

	tl.Warn("history size", "Size")

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "warn", entry["level"])
	assert.Equal(t, "Size", entry["missing_key"])
	assert.Equal(t, "history size", entry["message"])
}

func TestMetricsRunLifecycle(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics("litsynth", reg)

	m.RunStarted()
	m.RunStarted()
	m.RunFinished(domain.StatusCompleted, 90*time.Second, 1)
	m.RunFinished(domain.StatusRefused, time.Second, 0)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.RunsStarted))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.RunsFinished.WithLabelValues("completed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.RunsFinished.WithLabelValues("refused")))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.RunsFinished.WithLabelValues("failed")))
}

func TestMetricsSafetyAndSearch(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics("litsynth", reg)

	m.SafetyViolation(domain.StageInput, domain.CategoryHarmfulContent)
	m.SafetyViolation(domain.StageInput, domain.CategoryHarmfulContent)
	m.SafetyViolation(domain.StageOutput, domain.CategoryBiasedLanguage)

	assert.Equal(t, 2.0, testutil.ToFloat64(
		m.SafetyViolations.WithLabelValues("input", "harmful_content")))
	assert.Equal(t, 1.0, testutil.ToFloat64(
		m.SafetyViolations.WithLabelValues("output", "biased_language")))

	m.RecordSearch("arxiv", 7, 200*time.Millisecond)
	m.RecordSearchFailed("semantic_scholar", 50*time.Millisecond)

	assert.Equal(t, 7.0, testutil.ToFloat64(m.PapersRetrieved.WithLabelValues("arxiv")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.SearchesTotal.WithLabelValues("arxiv")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.SearchesFailed.WithLabelValues("semantic_scholar")))
}

func TestMetricsLLM(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics("litsynth", reg)

	m.RecordLLMRequest("anthropic", "plan", time.Second)
	m.RecordLLMRequestFailed("anthropic", "write")

	assert.Equal(t, 1.0, testutil.ToFloat64(m.LLMRequestsTotal.WithLabelValues("anthropic", "plan")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.LLMRequestsFailed.WithLabelValues("anthropic", "write")))
}
