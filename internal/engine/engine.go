package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"task-automator-api/internal/domain"
	logstore "task-automator-api/internal/store/log"
	"task-automator-api/internal/store/rule"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Engine evaluates automation rules against domain events. It owns no
// global state: rules and execution history live in the injected stores.
//
// Thread Safety: every method is safe for concurrent use. Actions of one
// rule run sequentially; different events may dispatch concurrently.
type Engine struct {
	rules    rule.RuleStorer
	recorder logstore.Recorder
	registry *ActionRegistry
	presets  *PresetCatalog
	executor *Executor
	logger   *zap.Logger
	now      func() time.Time
	timeout  time.Duration
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the logger; the default discards everything.
func WithLogger(l *zap.Logger) Option { return func(e *Engine) { e.logger = l } }

// WithActionTimeout bounds each handler call.
func WithActionTimeout(d time.Duration) Option { return func(e *Engine) { e.timeout = d } }

// WithRegistry sets the action handlers. Without it every action is a no-op.
func WithRegistry(r *ActionRegistry) Option { return func(e *Engine) { e.registry = r } }

// WithPresets replaces the built-in preset catalog.
func WithPresets(p *PresetCatalog) Option { return func(e *Engine) { e.presets = p } }

// WithClock replaces time.Now for execution timestamps.
func WithClock(now func() time.Time) Option { return func(e *Engine) { e.now = now } }

// New creates an engine over the given stores.
func New(rules rule.RuleStorer, recorder logstore.Recorder, opts ...Option) *Engine {
	e := &Engine{
		rules:    rules,
		recorder: recorder,
		logger:   zap.NewNop(),
		now:      time.Now,
		timeout:  DefaultActionTimeout,
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.registry == nil {
		e.registry = NewActionRegistry()
	}
	if e.presets == nil {
		e.presets = DefaultPresets()
	}
	e.logger = e.logger.With(zap.String("component", "engine"))
	e.executor = NewExecutor(e.registry, e.timeout, e.logger)
	return e
}

// Registry returns the action registry so callers can add handlers.
func (e *Engine) Registry() *ActionRegistry {
	return e.registry
}

// --- Rules ---

// CreateRule validates spec and stores it as a new rule.
func (e *Engine) CreateRule(ctx context.Context, spec domain.RuleSpec) (domain.AutomationRule, error) {
	r, err := e.rules.Create(ctx, spec)
	if err != nil {
		return domain.AutomationRule{}, err
	}
	e.logger.Info("rule created", zap.String("rule_id", r.ID.String()), zap.String("trigger", string(r.Trigger.Type)))
	return r, nil
}

// GetRule returns nil when no rule has the id.
func (e *Engine) GetRule(ctx context.Context, id uuid.UUID) (*domain.AutomationRule, error) {
	r, err := e.rules.Get(ctx, id)
	if errors.Is(err, rule.ErrRuleNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &r, nil
}

func (e *Engine) ListRules(ctx context.Context) ([]domain.AutomationRule, error) {
	return e.rules.List(ctx)
}

// UpdateRule merges patch into the rule. It returns nil when the rule does
// not exist and ErrImmutableField when the patch changes id or createdAt.
func (e *Engine) UpdateRule(ctx context.Context, id uuid.UUID, patch domain.RulePatch) (*domain.AutomationRule, error) {
	if patch.ID != nil && *patch.ID != id {
		return nil, ErrImmutableField
	}
	if patch.CreatedAt != nil {
		current, err := e.GetRule(ctx, id)
		if err != nil || current == nil {
			return nil, err
		}
		if !patch.CreatedAt.Equal(current.CreatedAt) {
			return nil, ErrImmutableField
		}
	}

	r, err := e.rules.Update(ctx, id, patch)
	if errors.Is(err, rule.ErrRuleNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	e.logger.Info("rule updated", zap.String("rule_id", id.String()))
	return &r, nil
}

// ToggleRule flips enabled. It returns false when the rule does not exist.
func (e *Engine) ToggleRule(ctx context.Context, id uuid.UUID) (bool, error) {
	r, err := e.rules.Toggle(ctx, id)
	if errors.Is(err, rule.ErrRuleNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	e.logger.Info("rule toggled", zap.String("rule_id", id.String()), zap.Bool("enabled", r.Enabled))
	return true, nil
}

// DeleteRule returns false when the rule does not exist. Execution records
// of the rule are kept.
func (e *Engine) DeleteRule(ctx context.Context, id uuid.UUID) (bool, error) {
	err := e.rules.Delete(ctx, id)
	if errors.Is(err, rule.ErrRuleNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	e.logger.Info("rule deleted", zap.String("rule_id", id.String()))
	return true, nil
}

// --- Dispatch ---

// DispatchResult reports what one event did.
type DispatchResult struct {
	Matched int                      `json:"matched"`
	Skipped int                      `json:"skipped"`
	Records []domain.ExecutionRecord `json:"records"`
}

// PublishEvent runs every enabled rule for trigger against event. It never
// fails and never panics; outcomes are visible in the execution log.
func (e *Engine) PublishEvent(ctx context.Context, trigger domain.TriggerType, event map[string]any) {
	if _, err := e.DispatchEvent(ctx, trigger, event); err != nil {
		e.logger.Error("event dispatch failed", zap.String("trigger", string(trigger)), zap.Error(err))
	}
}

// DispatchEvent is PublishEvent with a result. It only returns an error when
// the candidate rules cannot be loaded. Cancelling ctx does not stop a
// dispatch that has started.
func (e *Engine) DispatchEvent(ctx context.Context, trigger domain.TriggerType, event map[string]any) (res DispatchResult, err error) {
	ctx = context.WithoutCancel(ctx)
	res.Records = []domain.ExecutionRecord{}

	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("panic during dispatch", zap.String("trigger", string(trigger)), zap.Any("panic", r))
			err = fmt.Errorf("dispatch %s: panic: %v", trigger, r)
		}
	}()

	// Selection happens once; later rule changes do not affect this dispatch.
	candidates, err := e.rules.ListEnabledByTrigger(ctx, trigger)
	if err != nil {
		return res, fmt.Errorf("loading rules for %s: %w", trigger, err)
	}

	for _, r := range candidates {
		evt := domain.CopyContext(event)
		if !EvaluateCondition(r.Trigger, evt) || !EvaluateAll(r.Conditions, evt) {
			res.Skipped++
			e.logger.Debug("rule skipped", zap.String("rule_id", r.ID.String()), zap.String("trigger", string(trigger)))
			continue
		}
		res.Matched++
		res.Records = append(res.Records, e.runRule(ctx, r, trigger, event))
	}
	return res, nil
}

// runRule executes one matched rule and records the outcome.
func (e *Engine) runRule(ctx context.Context, r domain.AutomationRule, trigger domain.TriggerType, event map[string]any) domain.ExecutionRecord {
	started := e.now().UTC()
	clock := time.Now()

	result := e.executor.Run(ctx, r.Actions, domain.CopyContext(event))

	rec := domain.ExecutionRecord{
		ID:             uuid.New(),
		RuleID:         r.ID,
		RuleName:       r.Name,
		TriggerType:    trigger,
		Timestamp:      started,
		Success:        result.Success(),
		Failure:        result.Failure,
		ActionsRun:     result.ActionsRun,
		ActionsNoop:    result.ActionsNoop,
		ActionsSkipped: result.ActionsSkipped,
		DurationMS:     time.Since(clock).Milliseconds(),
		Context:        domain.CopyContext(event),
	}
	if result.Err != nil {
		rec.Error = result.Err.Error()
	}

	if err := e.recorder.Append(ctx, rec); err != nil {
		e.logger.Error("failed to append execution record", zap.String("rule_id", r.ID.String()), zap.Error(err))
	}
	if err := e.rules.RecordRun(ctx, r.ID, rec.Success, started); err != nil {
		// The rule may have been deleted while its actions ran.
		e.logger.Warn("failed to record rule run", zap.String("rule_id", r.ID.String()), zap.Error(err))
	}

	fields := []zap.Field{
		zap.String("rule_id", r.ID.String()),
		zap.String("rule_name", r.Name),
		zap.String("trigger", string(trigger)),
		zap.Bool("success", rec.Success),
		zap.Int("actions_run", rec.ActionsRun),
		zap.Int64("duration_ms", rec.DurationMS),
	}
	if result.Err != nil {
		e.logger.Warn("rule execution failed", append(fields, zap.Error(result.Err))...)
	} else {
		e.logger.Info("rule executed", fields...)
	}
	return rec
}

// --- Execution log ---

// ListExecutions returns records newest first, optionally for one rule.
func (e *Engine) ListExecutions(ctx context.Context, ruleID *uuid.UUID) ([]domain.ExecutionRecord, error) {
	return e.recorder.List(ctx, ruleID)
}

func (e *Engine) ClearExecutions(ctx context.Context) error {
	if err := e.recorder.Clear(ctx); err != nil {
		return err
	}
	e.logger.Info("execution log cleared")
	return nil
}

// --- Presets ---

func (e *Engine) ListPresets() []domain.RuleTemplate {
	return e.presets.List()
}

// InstallPreset creates a new, independent rule from a template.
func (e *Engine) InstallPreset(ctx context.Context, tmpl domain.RuleTemplate) (domain.AutomationRule, error) {
	r, err := e.rules.Create(ctx, tmpl.RuleSpec.Clone())
	if err != nil {
		return domain.AutomationRule{}, err
	}
	e.logger.Info("preset installed", zap.String("preset", tmpl.Key), zap.String("rule_id", r.ID.String()))
	return r, nil
}

// InstallPresetByKey installs the built-in preset with the given key.
func (e *Engine) InstallPresetByKey(ctx context.Context, key string) (domain.AutomationRule, error) {
	tmpl, ok := e.presets.Get(key)
	if !ok {
		return domain.AutomationRule{}, fmt.Errorf("%w: %q", ErrPresetNotFound, key)
	}
	return e.InstallPreset(ctx, tmpl)
}
