package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"task-automator-api/internal/domain"
	"task-automator-api/internal/notify"
	"task-automator-api/internal/store"
	logstore "task-automator-api/internal/store/log"
	"task-automator-api/internal/store/rule"
	"task-automator-api/internal/store/task"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

type testEngine struct {
	*Engine
	rules    *rule.MemoryStore
	recorder *logstore.MemoryRecorder
	tasks    *task.MemoryStore
	notifier *notify.MemoryNotifier
}

func newTestEngine(t *testing.T, opts ...Option) *testEngine {
	t.Helper()
	te := &testEngine{
		rules:    rule.NewMemoryStore(),
		recorder: logstore.NewMemoryRecorder(logstore.DefaultLimit),
		tasks:    task.NewMemoryStore(),
		notifier: notify.NewMemoryNotifier(),
	}
	reg := NewActionRegistry()
	require.NoError(t, RegisterDefaultHandlers(reg, Targets{Tasks: te.tasks, Tags: te.tasks, Notifier: te.notifier}))
	te.Engine = New(te.rules, te.recorder, append([]Option{WithRegistry(reg), WithActionTimeout(time.Second)}, opts...)...)
	return te
}

func urgentRule() domain.RuleSpec {
	return domain.RuleSpec{
		Name:    "Tag urgent tasks",
		Enabled: true,
		Trigger: domain.TriggerCondition{Type: domain.TriggerTaskCreated},
		Conditions: []domain.TriggerCondition{
			{Type: domain.TriggerTaskCreated, Field: "priority", Operator: domain.OpEquals, Value: "URGENT"},
		},
		Actions: []domain.ActionSpec{domain.NewAction(domain.AddTagParams{TagID: "urgent"})},
	}
}

func TestEngine_EndToEndScenario(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()
	for _, id := range []string{"t1", "t2"} {
		_, err := e.tasks.CreateTask(ctx, domain.Task{ID: id, Title: id})
		require.NoError(t, err)
	}

	r, err := e.CreateRule(ctx, urgentRule())
	require.NoError(t, err)

	e.PublishEvent(ctx, domain.TriggerTaskCreated, map[string]any{"priority": "URGENT", "taskId": "t1"})

	t1, err := e.tasks.GetTask(ctx, "t1")
	require.NoError(t, err)
	assert.Equal(t, []string{"urgent"}, t1.Tags)

	got, err := e.GetRule(ctx, r.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, 1, got.RunCount)
	require.NotNil(t, got.LastRun)

	records, err := e.ListExecutions(ctx, nil)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.True(t, records[0].Success)
	assert.Equal(t, r.ID, records[0].RuleID)
	assert.Equal(t, domain.TriggerTaskCreated, records[0].TriggerType)
	assert.Equal(t, 1, records[0].ActionsRun)
	assert.Equal(t, "t1", records[0].Context["taskId"])

	// The condition fails for LOW, so the rule is skipped without a record.
	e.PublishEvent(ctx, domain.TriggerTaskCreated, map[string]any{"priority": "LOW", "taskId": "t2"})

	t2, err := e.tasks.GetTask(ctx, "t2")
	require.NoError(t, err)
	assert.Empty(t, t2.Tags)

	got, err = e.GetRule(ctx, r.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, got.RunCount)

	records, err = e.ListExecutions(ctx, nil)
	require.NoError(t, err)
	assert.Len(t, records, 1)
}

func TestEngine_DispatchOnlyMatchingEnabledRules(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()

	notifySpec := func(name string, trigger domain.TriggerType, enabled bool) domain.RuleSpec {
		return domain.RuleSpec{
			Name:    name,
			Enabled: enabled,
			Trigger: domain.TriggerCondition{Type: trigger},
			Actions: []domain.ActionSpec{domain.NewAction(domain.SendNotificationParams{Message: name})},
		}
	}
	match, err := e.CreateRule(ctx, notifySpec("match", domain.TriggerTaskCompleted, true))
	require.NoError(t, err)
	_, err = e.CreateRule(ctx, notifySpec("disabled", domain.TriggerTaskCompleted, false))
	require.NoError(t, err)
	_, err = e.CreateRule(ctx, notifySpec("other trigger", domain.TriggerFileUploaded, true))
	require.NoError(t, err)

	res, err := e.DispatchEvent(ctx, domain.TriggerTaskCompleted, map[string]any{})
	require.NoError(t, err)

	assert.Equal(t, 1, res.Matched)
	assert.Zero(t, res.Skipped)
	require.Len(t, res.Records, 1)
	assert.Equal(t, match.ID, res.Records[0].RuleID)

	records, err := e.ListExecutions(ctx, nil)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, match.ID, records[0].RuleID)
	require.Len(t, e.notifier.Sent(), 1)
	assert.Equal(t, "match", e.notifier.Sent()[0].Message)
}

func TestEngine_TriggerPredicate(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()

	spec := urgentRule()
	spec.Trigger = domain.TriggerCondition{Type: domain.TriggerTaskCreated, Field: "source", Operator: domain.OpEquals, Value: "email"}
	spec.Conditions = nil
	spec.Actions = []domain.ActionSpec{domain.NewAction(domain.SendNotificationParams{Message: "from email"})}
	_, err := e.CreateRule(ctx, spec)
	require.NoError(t, err)

	res, err := e.DispatchEvent(ctx, domain.TriggerTaskCreated, map[string]any{"source": "web"})
	require.NoError(t, err)
	assert.Equal(t, 0, res.Matched)
	assert.Equal(t, 1, res.Skipped)

	res, err = e.DispatchEvent(ctx, domain.TriggerTaskCreated, map[string]any{"source": "email"})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Matched)
}

func TestEngine_ExecutionOrderFollowsCreation(t *testing.T) {
	clock := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	var mu sync.Mutex
	rules := rule.NewMemoryStore(rule.WithClock(func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		clock = clock.Add(time.Second)
		return clock
	}))
	notifier := notify.NewMemoryNotifier()
	reg := NewActionRegistry()
	require.NoError(t, reg.Register(domain.ActionSendNotification, sendNotificationHandler(notifier)))
	e := New(rules, logstore.NewMemoryRecorder(0), WithRegistry(reg))
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		_, err := e.CreateRule(ctx, domain.RuleSpec{
			Name:    fmt.Sprintf("rule %d", i),
			Enabled: true,
			Trigger: domain.TriggerCondition{Type: domain.TriggerSchedule},
			Actions: []domain.ActionSpec{domain.NewAction(domain.SendNotificationParams{Message: fmt.Sprint(i)})},
		})
		require.NoError(t, err)
	}

	e.PublishEvent(ctx, domain.TriggerSchedule, nil)

	var order []string
	for _, n := range notifier.Sent() {
		order = append(order, n.Message)
	}
	assert.Equal(t, []string{"0", "1", "2", "3", "4"}, order)
}

func TestEngine_FailedActionIsRecorded(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()

	spec := urgentRule()
	spec.Conditions = nil
	spec.Actions = []domain.ActionSpec{
		domain.NewAction(domain.AddTagParams{TagID: "urgent"}),
		domain.NewAction(domain.SendNotificationParams{Message: "never sent"}),
	}
	r, err := e.CreateRule(ctx, spec)
	require.NoError(t, err)

	// No task with this id exists, so add_tag fails.
	assert.NotPanics(t, func() {
		e.PublishEvent(ctx, domain.TriggerTaskCreated, map[string]any{"taskId": "ghost"})
	})

	records, err := e.ListExecutions(ctx, &r.ID)
	require.NoError(t, err)
	require.Len(t, records, 1)
	rec := records[0]
	assert.False(t, rec.Success)
	assert.Contains(t, rec.Error, "task not found")
	require.NotNil(t, rec.Failure)
	assert.Equal(t, 0, rec.Failure.Index)
	assert.Equal(t, domain.ActionAddTag, rec.Failure.Type)
	assert.Equal(t, 1, rec.ActionsSkipped)
	assert.Empty(t, e.notifier.Sent())

	got, err := e.GetRule(ctx, r.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, got.RunCount)
	assert.NotNil(t, got.LastRun)
}

func TestEngine_NoopActionsCountAsRun(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()

	r, err := e.CreateRule(ctx, domain.RuleSpec{
		Name:    "email on upload",
		Enabled: true,
		Trigger: domain.TriggerCondition{Type: domain.TriggerFileUploaded},
		Actions: []domain.ActionSpec{domain.NewAction(domain.SendEmailParams{To: "ops@example.com", Subject: "upload"})},
	})
	require.NoError(t, err)

	e.PublishEvent(ctx, domain.TriggerFileUploaded, map[string]any{"fileName": "a.txt"})

	records, err := e.ListExecutions(ctx, &r.ID)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.True(t, records[0].Success)
	assert.Equal(t, 1, records[0].ActionsNoop)
	assert.Zero(t, records[0].ActionsRun)

	got, err := e.GetRule(ctx, r.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, got.RunCount)
}

func TestEngine_EventContextIsNotShared(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()

	reg := e.Registry()
	require.NoError(t, reg.Register(domain.ActionWebhook, func(_ context.Context, _ domain.ActionParams, event map[string]any) error {
		event["mutated"] = true
		event["nested"].(map[string]any)["x"] = "changed"
		return nil
	}))
	for i := 0; i < 2; i++ {
		_, err := e.CreateRule(ctx, domain.RuleSpec{
			Name:    fmt.Sprintf("mutator %d", i),
			Enabled: true,
			Trigger: domain.TriggerCondition{Type: domain.TriggerMessageReceived},
			Conditions: []domain.TriggerCondition{
				{Type: domain.TriggerMessageReceived, Field: "mutated", Operator: domain.OpNotEquals, Value: true},
			},
			Actions: []domain.ActionSpec{domain.NewAction(domain.WebhookParams{URL: "https://example.com/hook"})},
		})
		require.NoError(t, err)
	}

	event := map[string]any{"nested": map[string]any{"x": "original"}}
	res, err := e.DispatchEvent(ctx, domain.TriggerMessageReceived, event)
	require.NoError(t, err)

	assert.Equal(t, 2, res.Matched)
	assert.NotContains(t, event, "mutated")
	assert.Equal(t, "original", event["nested"].(map[string]any)["x"])
	for _, rec := range res.Records {
		assert.NotContains(t, rec.Context, "mutated")
	}
}

func TestEngine_RuleCRUD(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()

	r, err := e.CreateRule(ctx, urgentRule())
	require.NoError(t, err)

	t.Run("get missing returns nil", func(t *testing.T) {
		got, err := e.GetRule(ctx, uuid.New())
		assert.NoError(t, err)
		assert.Nil(t, got)
	})

	t.Run("update", func(t *testing.T) {
		name := "Renamed"
		got, err := e.UpdateRule(ctx, r.ID, domain.RulePatch{Name: &name})
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, "Renamed", got.Name)
		assert.Equal(t, r.CreatedAt, got.CreatedAt)
		assert.False(t, got.UpdatedAt.Before(got.CreatedAt))
	})

	t.Run("update missing returns nil", func(t *testing.T) {
		name := "x"
		got, err := e.UpdateRule(ctx, uuid.New(), domain.RulePatch{Name: &name})
		assert.NoError(t, err)
		assert.Nil(t, got)
	})

	t.Run("update rejects id and createdAt changes", func(t *testing.T) {
		other := uuid.New()
		_, err := e.UpdateRule(ctx, r.ID, domain.RulePatch{ID: &other})
		assert.ErrorIs(t, err, ErrImmutableField)

		later := r.CreatedAt.Add(time.Hour)
		_, err = e.UpdateRule(ctx, r.ID, domain.RulePatch{CreatedAt: &later})
		assert.ErrorIs(t, err, ErrImmutableField)

		same, created := r.ID, r.CreatedAt
		got, err := e.UpdateRule(ctx, r.ID, domain.RulePatch{ID: &same, CreatedAt: &created})
		assert.NoError(t, err)
		assert.NotNil(t, got)
	})

	t.Run("update rejects invalid result", func(t *testing.T) {
		empty := ""
		_, err := e.UpdateRule(ctx, r.ID, domain.RulePatch{Name: &empty})
		assert.ErrorIs(t, err, domain.ErrInvalidRule)
	})

	t.Run("toggle twice restores state", func(t *testing.T) {
		other, err := e.CreateRule(ctx, urgentRule())
		require.NoError(t, err)

		ok, err := e.ToggleRule(ctx, r.ID)
		require.NoError(t, err)
		assert.True(t, ok)
		got, _ := e.GetRule(ctx, r.ID)
		assert.False(t, got.Enabled)
		untouched, _ := e.GetRule(ctx, other.ID)
		assert.True(t, untouched.Enabled)

		ok, err = e.ToggleRule(ctx, r.ID)
		require.NoError(t, err)
		assert.True(t, ok)
		got, _ = e.GetRule(ctx, r.ID)
		assert.True(t, got.Enabled)

		ok, err = e.ToggleRule(ctx, uuid.New())
		assert.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("delete missing leaves store unchanged", func(t *testing.T) {
		before, err := e.ListRules(ctx)
		require.NoError(t, err)

		ok, err := e.DeleteRule(ctx, uuid.New())
		assert.NoError(t, err)
		assert.False(t, ok)

		after, err := e.ListRules(ctx)
		require.NoError(t, err)
		assert.Equal(t, before, after)
	})

	t.Run("delete keeps execution records", func(t *testing.T) {
		spec := urgentRule()
		spec.Trigger = domain.TriggerCondition{Type: domain.TriggerTagAdded}
		spec.Conditions = nil
		spec.Actions = nil
		doomed, err := e.CreateRule(ctx, spec)
		require.NoError(t, err)
		e.PublishEvent(ctx, domain.TriggerTagAdded, nil)

		ok, err := e.DeleteRule(ctx, doomed.ID)
		require.NoError(t, err)
		assert.True(t, ok)

		records, err := e.ListExecutions(ctx, &doomed.ID)
		require.NoError(t, err)
		assert.Len(t, records, 1)
	})
}

func TestEngine_ClearExecutions(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()
	spec := urgentRule()
	spec.Conditions = nil
	spec.Actions = nil
	_, err := e.CreateRule(ctx, spec)
	require.NoError(t, err)

	e.PublishEvent(ctx, domain.TriggerTaskCreated, nil)
	require.NoError(t, e.ClearExecutions(ctx))

	records, err := e.ListExecutions(ctx, nil)
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestEngine_InstallPreset(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()

	presets := e.ListPresets()
	require.NotEmpty(t, presets)

	first, err := e.InstallPreset(ctx, presets[0])
	require.NoError(t, err)
	second, err := e.InstallPreset(ctx, presets[0])
	require.NoError(t, err)

	assert.NotEqual(t, first.ID, second.ID)
	assert.Zero(t, first.RunCount)
	assert.Zero(t, second.RunCount)

	name := "Edited"
	_, err = e.UpdateRule(ctx, first.ID, domain.RulePatch{Name: &name})
	require.NoError(t, err)

	again, err := e.GetRule(ctx, second.ID)
	require.NoError(t, err)
	assert.Equal(t, presets[0].Name, again.Name)
	assert.Equal(t, presets[0].Name, e.ListPresets()[0].Name)

	byKey, err := e.InstallPresetByKey(ctx, "urgent-task-tag")
	require.NoError(t, err)
	assert.Equal(t, "Tag urgent tasks", byKey.Name)

	_, err = e.InstallPresetByKey(ctx, "missing")
	assert.ErrorIs(t, err, ErrPresetNotFound)
}

func TestEngine_ConcurrentPublish(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()

	spec := urgentRule()
	spec.Conditions = nil
	spec.Actions = []domain.ActionSpec{domain.NewAction(domain.SendNotificationParams{Message: "hi"})}
	r, err := e.CreateRule(ctx, spec)
	require.NoError(t, err)

	const events = 40
	var wg sync.WaitGroup
	for i := 0; i < events; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			e.PublishEvent(ctx, domain.TriggerTaskCreated, map[string]any{"n": i})
		}()
		go func() {
			defer wg.Done()
			_, _ = e.CreateRule(ctx, domain.RuleSpec{Name: "noise", Trigger: domain.TriggerCondition{Type: domain.TriggerTaskCreated}})
		}()
	}
	wg.Wait()

	got, err := e.GetRule(ctx, r.ID)
	require.NoError(t, err)
	assert.Equal(t, events, got.RunCount)
	assert.Len(t, e.notifier.Sent(), events)

	records, err := e.ListExecutions(ctx, &r.ID)
	require.NoError(t, err)
	assert.Len(t, records, events)
}

// failingRules fails every rule lookup.
type failingRules struct {
	rule.RuleStorer
}

func (failingRules) ListEnabledByTrigger(context.Context, domain.TriggerType) ([]domain.AutomationRule, error) {
	return nil, errors.New("connection refused")
}

func TestEngine_PublishEventSwallowsStoreErrors(t *testing.T) {
	core, logs := observer.New(zap.ErrorLevel)
	e := New(failingRules{}, logstore.NewMemoryRecorder(0), WithLogger(zap.New(core)))

	_, err := e.DispatchEvent(context.Background(), domain.TriggerTaskCreated, nil)
	assert.Error(t, err)

	assert.NotPanics(t, func() {
		e.PublishEvent(context.Background(), domain.TriggerTaskCreated, nil)
	})
	assert.Equal(t, 1, logs.FilterMessage("event dispatch failed").Len())
}

func TestEngine_CancelledContextStillDispatches(t *testing.T) {
	e := newTestEngine(t)
	spec := urgentRule()
	spec.Conditions = nil
	spec.Actions = []domain.ActionSpec{domain.NewAction(domain.SendNotificationParams{Message: "still sent"})}
	_, err := e.CreateRule(context.Background(), spec)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	e.PublishEvent(ctx, domain.TriggerTaskCreated, nil)

	assert.Len(t, e.notifier.Sent(), 1)
}

func storedRule() domain.AutomationRule {
	return domain.AutomationRule{
		BaseEntity: domain.BaseEntity{ID: uuid.New(), CreatedAt: time.Now().UTC()},
		RuleSpec: domain.RuleSpec{
			Name:    "Mocked rule",
			Enabled: true,
			Trigger: domain.TriggerCondition{Type: domain.TriggerTaskCreated},
		},
	}
}

func TestEngine_AppendFailureStillRecordsRun(t *testing.T) {
	r := storedRule()
	rules := new(store.MockRuleStore)
	recorder := new(store.MockRecorder)
	rules.On("ListEnabledByTrigger", mock.Anything, domain.TriggerTaskCreated).Return([]domain.AutomationRule{r}, nil)
	recorder.On("Append", mock.Anything, mock.AnythingOfType("domain.ExecutionRecord")).Return(errors.New("disk full"))
	rules.On("RecordRun", mock.Anything, r.ID, true, mock.AnythingOfType("time.Time")).Return(nil)

	core, logs := observer.New(zap.WarnLevel)
	e := New(rules, recorder, WithLogger(zap.New(core)))

	assert.NotPanics(t, func() {
		e.PublishEvent(context.Background(), domain.TriggerTaskCreated, map[string]any{"taskId": "t-1"})
	})

	rules.AssertExpectations(t)
	recorder.AssertExpectations(t)
	assert.Equal(t, 1, logs.FilterMessage("failed to append execution record").Len())
	assert.Zero(t, logs.FilterMessage("event dispatch failed").Len())
}

func TestEngine_RecordRunFailureKeepsRecord(t *testing.T) {
	r := storedRule()
	rules := new(store.MockRuleStore)
	recorder := new(store.MockRecorder)
	rules.On("ListEnabledByTrigger", mock.Anything, domain.TriggerTaskCreated).Return([]domain.AutomationRule{r}, nil)
	recorder.On("Append", mock.Anything, mock.MatchedBy(func(rec domain.ExecutionRecord) bool {
		return rec.RuleID == r.ID && rec.Success
	})).Return(nil)
	rules.On("RecordRun", mock.Anything, r.ID, true, mock.AnythingOfType("time.Time")).Return(rule.ErrRuleNotFound)

	core, logs := observer.New(zap.WarnLevel)
	e := New(rules, recorder, WithLogger(zap.New(core)))

	res, err := e.DispatchEvent(context.Background(), domain.TriggerTaskCreated, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Matched)
	require.Len(t, res.Records, 1)
	assert.True(t, res.Records[0].Success)

	rules.AssertExpectations(t)
	recorder.AssertExpectations(t)
	assert.Equal(t, 1, logs.FilterMessage("failed to record rule run").Len())
}
