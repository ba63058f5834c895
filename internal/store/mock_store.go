package store

import (
	"context"
	"time"

	"task-automator-api/internal/domain"
	logstore "task-automator-api/internal/store/log"
	"task-automator-api/internal/store/rule"
	"task-automator-api/internal/store/task"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
)

var (
	_ rule.RuleStorer   = (*MockRuleStore)(nil)
	_ logstore.Recorder = (*MockRecorder)(nil)
	_ task.Storer       = (*MockTaskStore)(nil)
)

// MockRuleStore is a mock implementation of rule.RuleStorer for testing
type MockRuleStore struct {
	mock.Mock
}

func (m *MockRuleStore) Create(ctx context.Context, spec domain.RuleSpec) (domain.AutomationRule, error) {
	args := m.Called(ctx, spec)
	return args.Get(0).(domain.AutomationRule), args.Error(1)
}

func (m *MockRuleStore) Get(ctx context.Context, id uuid.UUID) (domain.AutomationRule, error) {
	args := m.Called(ctx, id)
	return args.Get(0).(domain.AutomationRule), args.Error(1)
}

func (m *MockRuleStore) List(ctx context.Context) ([]domain.AutomationRule, error) {
	args := m.Called(ctx)
	return args.Get(0).([]domain.AutomationRule), args.Error(1)
}

func (m *MockRuleStore) ListEnabledByTrigger(ctx context.Context, trigger domain.TriggerType) ([]domain.AutomationRule, error) {
	args := m.Called(ctx, trigger)
	return args.Get(0).([]domain.AutomationRule), args.Error(1)
}

func (m *MockRuleStore) Update(ctx context.Context, id uuid.UUID, patch domain.RulePatch) (domain.AutomationRule, error) {
	args := m.Called(ctx, id, patch)
	return args.Get(0).(domain.AutomationRule), args.Error(1)
}

func (m *MockRuleStore) Toggle(ctx context.Context, id uuid.UUID) (domain.AutomationRule, error) {
	args := m.Called(ctx, id)
	return args.Get(0).(domain.AutomationRule), args.Error(1)
}

func (m *MockRuleStore) Delete(ctx context.Context, id uuid.UUID) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockRuleStore) RecordRun(ctx context.Context, id uuid.UUID, success bool, at time.Time) error {
	args := m.Called(ctx, id, success, at)
	return args.Error(0)
}

// MockRecorder is a mock implementation of logstore.Recorder for testing
type MockRecorder struct {
	mock.Mock
}

func (m *MockRecorder) Append(ctx context.Context, rec domain.ExecutionRecord) error {
	args := m.Called(ctx, rec)
	return args.Error(0)
}

func (m *MockRecorder) List(ctx context.Context, ruleID *uuid.UUID) ([]domain.ExecutionRecord, error) {
	args := m.Called(ctx, ruleID)
	return args.Get(0).([]domain.ExecutionRecord), args.Error(1)
}

func (m *MockRecorder) Clear(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

// MockTaskStore is a mock implementation of task.Storer for testing
type MockTaskStore struct {
	mock.Mock
}

func (m *MockTaskStore) CreateTask(ctx context.Context, t domain.Task) (domain.Task, error) {
	args := m.Called(ctx, t)
	return args.Get(0).(domain.Task), args.Error(1)
}

func (m *MockTaskStore) GetTask(ctx context.Context, id string) (domain.Task, error) {
	args := m.Called(ctx, id)
	return args.Get(0).(domain.Task), args.Error(1)
}

func (m *MockTaskStore) ListTasks(ctx context.Context) ([]domain.Task, error) {
	args := m.Called(ctx)
	return args.Get(0).([]domain.Task), args.Error(1)
}

func (m *MockTaskStore) ListTasksDueBetween(ctx context.Context, from, to time.Time) ([]domain.Task, error) {
	args := m.Called(ctx, from, to)
	return args.Get(0).([]domain.Task), args.Error(1)
}

func (m *MockTaskStore) UpdateTask(ctx context.Context, id string, fields map[string]any) error {
	args := m.Called(ctx, id, fields)
	return args.Error(0)
}

func (m *MockTaskStore) SetPriority(ctx context.Context, id, priority string) error {
	args := m.Called(ctx, id, priority)
	return args.Error(0)
}

func (m *MockTaskStore) AssignTask(ctx context.Context, id, userID string) error {
	args := m.Called(ctx, id, userID)
	return args.Error(0)
}

func (m *MockTaskStore) SetDueDate(ctx context.Context, id string, due time.Time) error {
	args := m.Called(ctx, id, due)
	return args.Error(0)
}

func (m *MockTaskStore) AddTag(ctx context.Context, id, tagID string) error {
	args := m.Called(ctx, id, tagID)
	return args.Error(0)
}
