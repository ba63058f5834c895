package task

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"task-automator-api/internal/domain"

	"github.com/google/uuid"
)

// MemoryStore is an in-process task and tag store.
type MemoryStore struct {
	mu    sync.RWMutex
	tasks map[string]domain.Task
	now   func() time.Time
}

// NewMemoryStore creates an empty task store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{tasks: make(map[string]domain.Task), now: time.Now}
}

func (s *MemoryStore) CreateTask(ctx context.Context, t domain.Task) (domain.Task, error) {
	if t.Title == "" {
		return domain.Task{}, fmt.Errorf("%w: title cannot be empty", ErrInvalidField)
	}
	if t.Priority == "" {
		t.Priority = domain.PriorityMedium
	}
	if !validPriority(t.Priority) {
		return domain.Task{}, fmt.Errorf("%w: unknown priority %q", ErrInvalidField, t.Priority)
	}
	if t.Status == "" {
		t.Status = domain.StatusTodo
	}
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	now := s.now().UTC()
	t.CreatedAt, t.UpdatedAt = now, now
	t = copyTask(t)

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.tasks[t.ID]; exists {
		return domain.Task{}, fmt.Errorf("task %s already exists", t.ID)
	}
	s.tasks[t.ID] = t
	return copyTask(t), nil
}

func (s *MemoryStore) GetTask(ctx context.Context, id string) (domain.Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.tasks[id]
	if !ok {
		return domain.Task{}, ErrTaskNotFound
	}
	return copyTask(t), nil
}

// ListTasks returns every task, oldest first.
func (s *MemoryStore) ListTasks(ctx context.Context) ([]domain.Task, error) {
	return s.filter(func(domain.Task) bool { return true }), nil
}

// ListTasksDueBetween returns tasks with a due date in [from, to).
func (s *MemoryStore) ListTasksDueBetween(ctx context.Context, from, to time.Time) ([]domain.Task, error) {
	return s.filter(func(t domain.Task) bool {
		return t.DueDate != nil && !t.DueDate.Before(from) && t.DueDate.Before(to)
	}), nil
}

func (s *MemoryStore) filter(keep func(domain.Task) bool) []domain.Task {
	s.mu.RLock()
	out := make([]domain.Task, 0, len(s.tasks))
	for _, t := range s.tasks {
		if keep(t) {
			out = append(out, copyTask(t))
		}
	}
	s.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

func (s *MemoryStore) UpdateTask(ctx context.Context, id string, fields map[string]any) error {
	updates, err := normalizeFields(fields)
	if err != nil {
		return err
	}
	return s.mutate(id, func(t *domain.Task) {
		for _, u := range updates {
			applyField(t, u.field, u.value)
		}
	})
}

func (s *MemoryStore) SetPriority(ctx context.Context, id, priority string) error {
	if !validPriority(priority) {
		return fmt.Errorf("%w: unknown priority %q", ErrInvalidField, priority)
	}
	return s.mutate(id, func(t *domain.Task) { t.Priority = priority })
}

func (s *MemoryStore) AssignTask(ctx context.Context, id, userID string) error {
	return s.mutate(id, func(t *domain.Task) { t.AssigneeID = userID })
}

func (s *MemoryStore) SetDueDate(ctx context.Context, id string, due time.Time) error {
	due = due.UTC()
	return s.mutate(id, func(t *domain.Task) { t.DueDate = &due })
}

// AddTag attaches tagID to the task. Adding a tag twice is a no-op.
func (s *MemoryStore) AddTag(ctx context.Context, id, tagID string) error {
	return s.mutate(id, func(t *domain.Task) {
		for _, existing := range t.Tags {
			if existing == tagID {
				return
			}
		}
		t.Tags = append(t.Tags, tagID)
	})
}

func (s *MemoryStore) mutate(id string, fn func(*domain.Task)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tasks[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrTaskNotFound, id)
	}
	fn(&t)
	t.UpdatedAt = s.now().UTC()
	s.tasks[id] = t
	return nil
}
