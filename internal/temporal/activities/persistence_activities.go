package activities

import (
	"context"
	"fmt"

	"go.temporal.io/sdk/activity"

	"github.com/quillview/litsynth/internal/export"
	"github.com/quillview/litsynth/internal/pipeline"
	"github.com/quillview/litsynth/internal/repository"
)

// PersistenceActivities saves terminal run snapshots. SaveSnapshot is an
// upsert, so Temporal retries are idempotent.
type PersistenceActivities struct {
	runs    repository.RunRepository
	metrics pipeline.Metrics
}

// NewPersistenceActivities creates persistence activities over the run
// repository. A nil metrics disables recording.
func NewPersistenceActivities(runs repository.RunRepository, metrics pipeline.Metrics) *PersistenceActivities {
	return &PersistenceActivities{runs: runs, metrics: metrics}
}

// SaveSnapshot exports and stores the terminal run state.
func (a *PersistenceActivities) SaveSnapshot(ctx context.Context, input SaveSnapshotInput) error {
	logger := activity.GetLogger(ctx)

	doc, err := export.NewDocument(input.State)
	if err != nil {
		return fmt.Errorf("build snapshot document: %w", err)
	}

	if err := a.runs.SaveSnapshot(ctx, doc); err != nil {
		return fmt.Errorf("save snapshot: %w", err)
	}

	if a.metrics != nil && input.State.Status.IsTerminal() {
		a.metrics.RunFinished(input.State.Status, input.State.Duration(), input.State.RevisionCount)
	}

	logger.Info("run snapshot saved",
		"runID", input.State.ID,
		"status", string(input.State.Status),
	)
	return nil
}
