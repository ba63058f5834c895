package worker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"task-automator-api/internal/domain"

	"go.uber.org/zap"
)

// DefaultDueDateWindow is how far ahead the due-date scan looks.
const DefaultDueDateWindow = 24 * time.Hour

// DueTaskLister finds tasks by due date.
type DueTaskLister interface {
	ListTasksDueBetween(ctx context.Context, from, to time.Time) ([]domain.Task, error)
}

// DueDateProcessor publishes due_date_approaching for tasks that become due
// within the window. Each task is announced once per due date.
type DueDateProcessor struct {
	tasks     DueTaskLister
	publisher EventPublisher
	window    time.Duration
	now       func() time.Time
	logger    *zap.Logger

	mu       sync.Mutex
	notified map[string]time.Time
}

// NewDueDateProcessor creates the processor. A non-positive window uses DefaultDueDateWindow.
func NewDueDateProcessor(tasks DueTaskLister, publisher EventPublisher, window time.Duration, logger *zap.Logger) *DueDateProcessor {
	if window <= 0 {
		window = DefaultDueDateWindow
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DueDateProcessor{
		tasks:     tasks,
		publisher: publisher,
		window:    window,
		now:       time.Now,
		logger:    logger.With(zap.String("component", "due_date_processor")),
		notified:  make(map[string]time.Time),
	}
}

func (p *DueDateProcessor) Name() string { return "due_date" }

// Process scans [now, now+window) and publishes one event per newly due task.
func (p *DueDateProcessor) Process(ctx context.Context) error {
	now := p.now().UTC()
	due, err := p.tasks.ListTasksDueBetween(ctx, now, now.Add(p.window))
	if err != nil {
		return fmt.Errorf("could not list due tasks: %w", err)
	}

	p.mu.Lock()
	p.forgetPast(now)
	var fresh []domain.Task
	for _, t := range due {
		if t.DueDate == nil {
			continue
		}
		if seen, ok := p.notified[t.ID]; ok && seen.Equal(*t.DueDate) {
			continue
		}
		p.notified[t.ID] = *t.DueDate
		fresh = append(fresh, t)
	}
	p.mu.Unlock()

	for _, t := range fresh {
		p.publisher.PublishEvent(ctx, domain.TriggerDueDateApproaching, dueEvent(t, now))
	}
	if len(fresh) > 0 {
		p.logger.Info("published due date events", zap.Int("tasks", len(fresh)))
	}
	return nil
}

// forgetPast drops entries whose due date has passed. Caller holds mu.
func (p *DueDateProcessor) forgetPast(now time.Time) {
	for id, due := range p.notified {
		if due.Before(now) {
			delete(p.notified, id)
		}
	}
}

func dueEvent(t domain.Task, now time.Time) map[string]any {
	evt := t.EventContext()
	evt["assigneeId"] = t.AssigneeID
	evt["hoursUntilDue"] = t.DueDate.Sub(now).Hours()
	return evt
}
