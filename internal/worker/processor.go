package worker

import (
	"context"

	"task-automator-api/internal/domain"
)

// Processor is a generic interface for a task that the worker can execute.
type Processor interface {
	Name() string
	Process(ctx context.Context) error
}

// EventPublisher is the part of the engine the event sources need.
type EventPublisher interface {
	PublishEvent(ctx context.Context, trigger domain.TriggerType, event map[string]any)
}
