// Package temporal provides the Temporal client wrapper and worker lifecycle
// for durable synthesis runs.
package temporal

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.temporal.io/api/serviceerror"
	"go.temporal.io/sdk/client"
	"go.temporal.io/sdk/log"
)

// Signal and query names for external interaction with synthesis workflows.
// Defined here so the server layer can reference them without depending on
// the workflows package.
const (
	// SignalCancel requests workflow cancellation.
	SignalCancel = "cancel"

	// QueryProgress retrieves the workflow's current progress.
	QueryProgress = "progress"
)

// Default timeout constants.
const (
	// DefaultWorkflowExecutionTimeout caps a single synthesis run end to end.
	DefaultWorkflowExecutionTimeout = 1 * time.Hour

	// DefaultHealthCheckTimeout bounds Temporal server health checks.
	DefaultHealthCheckTimeout = 5 * time.Second
)

// Sentinel errors mapped from Temporal service errors.
var (
	// ErrWorkflowNotFound indicates the workflow execution was not found.
	ErrWorkflowNotFound = errors.New("workflow not found")

	// ErrWorkflowAlreadyStarted indicates a workflow with the same ID is already running.
	ErrWorkflowAlreadyStarted = errors.New("workflow already started")

	// ErrQueryFailed indicates the workflow query failed.
	ErrQueryFailed = errors.New("query failed")

	// ErrClientClosed indicates the client has been closed.
	ErrClientClosed = errors.New("client closed")

	// ErrConnectionFailed indicates a connection failure to the Temporal server.
	ErrConnectionFailed = errors.New("connection failed")

	// ErrInvalidArgument indicates an invalid argument was provided.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrResourceExhausted indicates server resource limits have been reached.
	ErrResourceExhausted = errors.New("resource exhausted")

	// ErrDeadlineExceeded indicates the operation deadline was exceeded.
	ErrDeadlineExceeded = errors.New("deadline exceeded")
)

// TemporalError wraps a Temporal SDK error with operation context.
type TemporalError struct {
	Op         string
	Kind       error
	WorkflowID string
	RunID      string
	Err        error
}

func (e *TemporalError) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Op, e.Kind)
	if e.WorkflowID != "" {
		msg += fmt.Sprintf(" [workflowID=%s", e.WorkflowID)
		if e.RunID != "" {
			msg += fmt.Sprintf(", runID=%s", e.RunID)
		}
		msg += "]"
	}
	if e.Err != nil {
		msg += fmt.Sprintf(": %v", e.Err)
	}
	return msg
}

func (e *TemporalError) Unwrap() error {
	return e.Err
}

// Is reports whether target matches this error's Kind.
func (e *TemporalError) Is(target error) bool {
	return errors.Is(e.Kind, target)
}

// wrapTemporalError converts a Temporal SDK error to a TemporalError with a
// sentinel Kind.
func wrapTemporalError(op string, err error, workflowID, runID string) error {
	if err == nil {
		return nil
	}

	te := &TemporalError{
		Op:         op,
		WorkflowID: workflowID,
		RunID:      runID,
		Err:        err,
	}

	var notFoundErr *serviceerror.NotFound
	var alreadyStartedErr *serviceerror.WorkflowExecutionAlreadyStarted
	var invalidArgumentErr *serviceerror.InvalidArgument
	var resourceExhaustedErr *serviceerror.ResourceExhausted
	var deadlineExceededErr *serviceerror.DeadlineExceeded
	var queryFailedErr *serviceerror.QueryFailed
	var unavailableErr *serviceerror.Unavailable

	switch {
	case errors.As(err, &notFoundErr):
		te.Kind = ErrWorkflowNotFound
	case errors.As(err, &alreadyStartedErr):
		te.Kind = ErrWorkflowAlreadyStarted
	case errors.As(err, &invalidArgumentErr):
		te.Kind = ErrInvalidArgument
	case errors.As(err, &resourceExhaustedErr):
		te.Kind = ErrResourceExhausted
	case errors.As(err, &deadlineExceededErr):
		te.Kind = ErrDeadlineExceeded
	case errors.As(err, &queryFailedErr):
		te.Kind = ErrQueryFailed
	case errors.As(err, &unavailableErr):
		te.Kind = ErrConnectionFailed
	default:
		if errors.Is(err, context.DeadlineExceeded) {
			te.Kind = ErrDeadlineExceeded
		} else if errors.Is(err, context.Canceled) {
			te.Kind = ErrClientClosed
		} else {
			te.Kind = ErrConnectionFailed
		}
	}

	return te
}

// IsWorkflowNotFound checks if the error indicates a workflow was not found.
func IsWorkflowNotFound(err error) bool {
	return errors.Is(err, ErrWorkflowNotFound)
}

// IsWorkflowAlreadyStarted checks if the error indicates a workflow already started.
func IsWorkflowAlreadyStarted(err error) bool {
	return errors.Is(err, ErrWorkflowAlreadyStarted)
}

// ClientConfig contains connection settings for the Temporal client.
type ClientConfig struct {
	// HostPort is the Temporal server address (e.g. "localhost:7233").
	HostPort string
	// Namespace is the Temporal namespace to use.
	Namespace string
	// TaskQueue is the default task queue for starting workflows.
	TaskQueue string
	// HealthCheckTimeout bounds health check operations. Defaults to 5s.
	HealthCheckTimeout time.Duration
}

// NewClient dials the Temporal server. A nil logger uses the SDK default.
func NewClient(cfg ClientConfig, logger log.Logger) (client.Client, error) {
	c, err := client.Dial(client.Options{
		HostPort:  cfg.HostPort,
		Namespace: cfg.Namespace,
		Logger:    logger,
	})
	if err != nil {
		return nil, fmt.Errorf("create Temporal client: %w", err)
	}
	return c, nil
}

// SynthesisWorkflowInput contains the parameters for starting a synthesis
// workflow. Defined here (not in workflows) so the server layer can build
// inputs without importing the workflows package.
type SynthesisWorkflowInput struct {
	// RunID identifies the synthesis run.
	RunID uuid.UUID
	// Query is the research topic (required).
	Query string
	// ProjectDescription is the optional extended description.
	ProjectDescription string
	// MaxRevisions caps quality-gate revision passes.
	MaxRevisions int
}

// SynthesisWorkflowClient starts and manages synthesis workflows.
type SynthesisWorkflowClient struct {
	client             client.Client
	taskQueue          string
	healthCheckTimeout time.Duration
}

// NewSynthesisWorkflowClient wraps an existing Temporal client.
func NewSynthesisWorkflowClient(c client.Client, cfg ClientConfig) *SynthesisWorkflowClient {
	healthTimeout := cfg.HealthCheckTimeout
	if healthTimeout == 0 {
		healthTimeout = DefaultHealthCheckTimeout
	}
	return &SynthesisWorkflowClient{
		client:             c,
		taskQueue:          cfg.TaskQueue,
		healthCheckTimeout: healthTimeout,
	}
}

// Close closes the underlying Temporal client connection.
func (c *SynthesisWorkflowClient) Close() {
	if c.client != nil {
		c.client.Close()
	}
}

// Health checks the connection to the Temporal server.
func (c *SynthesisWorkflowClient) Health(ctx context.Context) error {
	checkCtx, cancel := context.WithTimeout(ctx, c.healthCheckTimeout)
	defer cancel()

	if _, err := c.client.CheckHealth(checkCtx, &client.CheckHealthRequest{}); err != nil {
		return wrapTemporalError("Health", err, "", "")
	}
	return nil
}

// StartSynthesisWorkflow starts a new synthesis workflow. The workflow
// function must be registered with the worker separately.
func (c *SynthesisWorkflowClient) StartSynthesisWorkflow(ctx context.Context, workflowFunc interface{}, input SynthesisWorkflowInput) (workflowID, runID string, err error) {
	workflowID = fmt.Sprintf("synthesis-%s", input.RunID)
	options := client.StartWorkflowOptions{
		ID:                       workflowID,
		TaskQueue:                c.taskQueue,
		WorkflowExecutionTimeout: DefaultWorkflowExecutionTimeout,
	}

	run, err := c.client.ExecuteWorkflow(ctx, options, workflowFunc, input)
	if err != nil {
		return "", "", wrapTemporalError("StartSynthesisWorkflow", err, workflowID, "")
	}

	return workflowID, run.GetRunID(), nil
}

// CancelWorkflow cancels a running workflow.
func (c *SynthesisWorkflowClient) CancelWorkflow(ctx context.Context, workflowID, runID string) error {
	if err := c.client.CancelWorkflow(ctx, workflowID, runID); err != nil {
		return wrapTemporalError("CancelWorkflow", err, workflowID, runID)
	}
	return nil
}

// GetWorkflowResult waits for a workflow to complete and decodes the result.
func (c *SynthesisWorkflowClient) GetWorkflowResult(ctx context.Context, workflowID, runID string, result interface{}) error {
	run := c.client.GetWorkflow(ctx, workflowID, runID)
	if err := run.Get(ctx, result); err != nil {
		return wrapTemporalError("GetWorkflowResult", err, workflowID, runID)
	}
	return nil
}

// SignalWorkflow sends a signal to a running workflow.
func (c *SynthesisWorkflowClient) SignalWorkflow(ctx context.Context, workflowID, runID, signalName string, arg interface{}) error {
	if err := c.client.SignalWorkflow(ctx, workflowID, runID, signalName, arg); err != nil {
		return wrapTemporalError("SignalWorkflow", err, workflowID, runID)
	}
	return nil
}

// QueryWorkflow queries a running workflow's state.
func (c *SynthesisWorkflowClient) QueryWorkflow(ctx context.Context, workflowID, runID, queryType string, result interface{}, args ...interface{}) error {
	resp, err := c.client.QueryWorkflow(ctx, workflowID, runID, queryType, args...)
	if err != nil {
		return wrapTemporalError("QueryWorkflow", err, workflowID, runID)
	}
	if result != nil {
		if err := resp.Get(result); err != nil {
			return &TemporalError{
				Op:         "QueryWorkflow",
				Kind:       ErrQueryFailed,
				WorkflowID: workflowID,
				RunID:      runID,
				Err:        fmt.Errorf("decode query result: %w", err),
			}
		}
	}
	return nil
}

// Client returns the underlying Temporal client for advanced operations.
func (c *SynthesisWorkflowClient) Client() client.Client {
	return c.client
}

// TaskQueue returns the configured task queue name.
func (c *SynthesisWorkflowClient) TaskQueue() string {
	return c.taskQueue
}
