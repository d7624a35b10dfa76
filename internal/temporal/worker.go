package temporal

import (
	"context"
	"fmt"

	"go.temporal.io/sdk/client"
	"go.temporal.io/sdk/worker"
)

// WorkerConfig contains configuration for the Temporal worker.
type WorkerConfig struct {
	// TaskQueue is the name of the task queue to poll.
	TaskQueue string

	// MaxConcurrentActivityExecutionSize is the maximum concurrent activity
	// executions. Default: 50.
	MaxConcurrentActivityExecutionSize int

	// MaxConcurrentWorkflowTaskExecutionSize is the maximum concurrent
	// workflow task executions. Default: 20.
	MaxConcurrentWorkflowTaskExecutionSize int
}

// DefaultWorkerConfig returns a WorkerConfig with default values.
func DefaultWorkerConfig(taskQueue string) WorkerConfig {
	return WorkerConfig{
		TaskQueue:                              taskQueue,
		MaxConcurrentActivityExecutionSize:     50,
		MaxConcurrentWorkflowTaskExecutionSize: 20,
	}
}

// WorkerManager manages the lifecycle of a Temporal worker.
type WorkerManager struct {
	worker    worker.Worker
	taskQueue string
}

// NewWorkerManager creates a worker polling the configured task queue.
func NewWorkerManager(c client.Client, cfg WorkerConfig) (*WorkerManager, error) {
	if cfg.TaskQueue == "" {
		return nil, fmt.Errorf("task queue is required")
	}

	options := worker.Options{
		MaxConcurrentActivityExecutionSize:     cfg.MaxConcurrentActivityExecutionSize,
		MaxConcurrentWorkflowTaskExecutionSize: cfg.MaxConcurrentWorkflowTaskExecutionSize,
	}
	if options.MaxConcurrentActivityExecutionSize == 0 {
		options.MaxConcurrentActivityExecutionSize = 50
	}
	if options.MaxConcurrentWorkflowTaskExecutionSize == 0 {
		options.MaxConcurrentWorkflowTaskExecutionSize = 20
	}

	return &WorkerManager{
		worker:    worker.New(c, cfg.TaskQueue, options),
		taskQueue: cfg.TaskQueue,
	}, nil
}

// RegisterWorkflow registers a workflow function with the worker.
func (m *WorkerManager) RegisterWorkflow(workflow interface{}) {
	m.worker.RegisterWorkflow(workflow)
}

// RegisterActivity registers an activity function or struct with the worker.
func (m *WorkerManager) RegisterActivity(activity interface{}) {
	m.worker.RegisterActivity(activity)
}

// Worker returns the underlying Temporal worker.
func (m *WorkerManager) Worker() worker.Worker {
	return m.worker
}

// TaskQueue returns the configured task queue name.
func (m *WorkerManager) TaskQueue() string {
	return m.taskQueue
}

// Start runs the worker until the context is cancelled or the worker fails.
func (m *WorkerManager) Start(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- m.worker.Run(worker.InterruptCh())
	}()

	select {
	case <-ctx.Done():
		m.worker.Stop()
		return ctx.Err()
	case err := <-errCh:
		return err
	}
}

// Stop stops the worker gracefully.
func (m *WorkerManager) Stop() {
	m.worker.Stop()
}
