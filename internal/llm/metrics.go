package llm

import (
	"context"
	"time"
)

// Metrics receives per-call LLM telemetry. Implementations must be safe for
// concurrent use.
type Metrics interface {
	RecordLLMRequest(provider, step string, duration time.Duration)
	RecordLLMRequestFailed(provider, step string)
}

// instrumentedClient wraps a ChatClient and records call durations and
// failures under a fixed step label.
type instrumentedClient struct {
	inner   ChatClient
	metrics Metrics
	step    string
}

var _ ChatClient = (*instrumentedClient)(nil)

// WithMetrics returns a ChatClient that records telemetry for every
// completion under the given step label. A nil metrics returns the client
// unchanged.
func WithMetrics(client ChatClient, metrics Metrics, step string) ChatClient {
	if metrics == nil {
		return client
	}
	return &instrumentedClient{inner: client, metrics: metrics, step: step}
}

func (c *instrumentedClient) Complete(ctx context.Context, req Request) (string, error) {
	start := time.Now()
	text, err := c.inner.Complete(ctx, req)
	if err != nil {
		c.metrics.RecordLLMRequestFailed(c.inner.Provider(), c.step)
		return "", err
	}
	c.metrics.RecordLLMRequest(c.inner.Provider(), c.step, time.Since(start))
	return text, nil
}

func (c *instrumentedClient) Provider() string {
	return c.inner.Provider()
}
