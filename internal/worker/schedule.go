package worker

import (
	"context"
	"fmt"
	"strings"
	"time"

	"task-automator-api/internal/domain"

	robcron "github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// ScheduleWorker publishes a schedule event every time its cron expression fires.
type ScheduleWorker struct {
	cron      *robcron.Cron
	entry     robcron.EntryID
	expr      string
	publisher EventPublisher
	now       func() time.Time
	logger    *zap.Logger
}

// NewScheduleWorker parses expr (standard five fields or a descriptor such as
// "@hourly" / "@every 15m"). Times are evaluated in UTC.
func NewScheduleWorker(expr string, publisher EventPublisher, logger *zap.Logger) (*ScheduleWorker, error) {
	expr = strings.TrimSpace(expr)
	if expr == "" {
		return nil, fmt.Errorf("schedule expression is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	parser := robcron.NewParser(robcron.Minute | robcron.Hour | robcron.Dom | robcron.Month | robcron.Dow | robcron.Descriptor)
	w := &ScheduleWorker{
		cron:      robcron.New(robcron.WithParser(parser), robcron.WithLocation(time.UTC)),
		expr:      expr,
		publisher: publisher,
		now:       time.Now,
		logger:    logger.With(zap.String("component", "schedule_worker")),
	}

	id, err := w.cron.AddFunc(expr, w.fire)
	if err != nil {
		return nil, fmt.Errorf("parse cron expr %q: %w", expr, err)
	}
	w.entry = id
	return w, nil
}

func (w *ScheduleWorker) Start() {
	w.logger.Info("starting schedule worker", zap.String("expr", w.expr))
	w.cron.Start()
}

// Stop halts the scheduler and waits for a running publish to finish.
func (w *ScheduleWorker) Stop() {
	<-w.cron.Stop().Done()
}

// Next returns the next fire time, or zero before Start.
func (w *ScheduleWorker) Next() time.Time {
	return w.cron.Entry(w.entry).Next
}

func (w *ScheduleWorker) fire() {
	firedAt := w.now().UTC()
	w.logger.Debug("schedule fired", zap.Time("fired_at", firedAt))
	w.publisher.PublishEvent(context.Background(), domain.TriggerSchedule, map[string]any{
		"schedule": w.expr,
		"firedAt":  firedAt.Format(time.RFC3339),
		"hour":     firedAt.Hour(),
		"weekday":  firedAt.Weekday().String(),
	})
}
