package activities

import (
	"context"
	"fmt"

	"go.temporal.io/sdk/activity"

	"github.com/quillview/litsynth/internal/events"
)

// EventActivities publishes run lifecycle events. The workflow calls
// PublishRunEvent with fire-and-forget semantics: a publishing failure never
// fails the run.
type EventActivities struct {
	publisher events.Publisher
}

// NewEventActivities creates event activities over the given publisher.
func NewEventActivities(publisher events.Publisher) *EventActivities {
	return &EventActivities{publisher: publisher}
}

// PublishRunEvent publishes the terminal event for a run.
func (a *EventActivities) PublishRunEvent(ctx context.Context, input PublishRunEventInput) error {
	logger := activity.GetLogger(ctx)

	event := events.RunEvent{
		EventType: events.EventTypeForStatus(input.Status),
		RunID:     input.RunID,
		Query:     input.Query,
		Status:    input.Status,
	}

	if err := a.publisher.PublishRunEvent(ctx, event); err != nil {
		logger.Error("failed to publish run event",
			"eventType", event.EventType,
			"runID", input.RunID,
			"error", err,
		)
		return fmt.Errorf("publish %s event: %w", event.EventType, err)
	}

	return nil
}
