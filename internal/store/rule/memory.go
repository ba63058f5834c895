package rule

import (
	"context"
	"fmt"
	"sync"
	"time"

	"task-automator-api/internal/domain"

	"github.com/google/uuid"
)

// MemoryStore keeps rules in a map guarded by a RWMutex. Rules are copied on
// the way in and on the way out, so callers never share state with the store.
type MemoryStore struct {
	mu    sync.RWMutex
	rules map[uuid.UUID]domain.AutomationRule
	now   func() time.Time
}

// MemoryOption configures a MemoryStore.
type MemoryOption func(*MemoryStore)

// WithClock replaces time.Now, mainly for tests.
func WithClock(now func() time.Time) MemoryOption {
	return func(s *MemoryStore) { s.now = now }
}

// NewMemoryStore creates an empty in-memory rule store.
func NewMemoryStore(opts ...MemoryOption) *MemoryStore {
	s := &MemoryStore{
		rules: make(map[uuid.UUID]domain.AutomationRule),
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *MemoryStore) Create(ctx context.Context, spec domain.RuleSpec) (domain.AutomationRule, error) {
	if err := domain.ValidateRuleSpec(spec); err != nil {
		return domain.AutomationRule{}, err
	}
	id, err := newRuleID()
	if err != nil {
		return domain.AutomationRule{}, fmt.Errorf("generating rule id: %w", err)
	}

	now := s.now().UTC()
	r := domain.AutomationRule{
		BaseEntity: domain.BaseEntity{ID: id, CreatedAt: now, UpdatedAt: now},
		RuleSpec:   spec.Clone(),
	}

	s.mu.Lock()
	s.rules[id] = r
	s.mu.Unlock()

	return r.DeepCopy(), nil
}

func (s *MemoryStore) Get(ctx context.Context, id uuid.UUID) (domain.AutomationRule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.rules[id]
	if !ok {
		return domain.AutomationRule{}, ErrRuleNotFound
	}
	return r.DeepCopy(), nil
}

func (s *MemoryStore) List(ctx context.Context) ([]domain.AutomationRule, error) {
	return s.collect(func(domain.AutomationRule) bool { return true }), nil
}

func (s *MemoryStore) ListEnabledByTrigger(ctx context.Context, trigger domain.TriggerType) ([]domain.AutomationRule, error) {
	return s.collect(func(r domain.AutomationRule) bool {
		return r.Enabled && r.Trigger.Type == trigger
	}), nil
}

func (s *MemoryStore) collect(keep func(domain.AutomationRule) bool) []domain.AutomationRule {
	s.mu.RLock()
	out := make([]domain.AutomationRule, 0, len(s.rules))
	for _, r := range s.rules {
		if keep(r) {
			out = append(out, r.DeepCopy())
		}
	}
	s.mu.RUnlock()
	sortForDispatch(out)
	return out
}

func (s *MemoryStore) Update(ctx context.Context, id uuid.UUID, patch domain.RulePatch) (domain.AutomationRule, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.rules[id]
	if !ok {
		return domain.AutomationRule{}, ErrRuleNotFound
	}
	merged := patch.Apply(r.RuleSpec)
	if err := domain.ValidateRuleSpec(merged); err != nil {
		return domain.AutomationRule{}, err
	}

	r.RuleSpec = merged
	r.UpdatedAt = s.touch(r.CreatedAt)
	s.rules[id] = r
	return r.DeepCopy(), nil
}

func (s *MemoryStore) Toggle(ctx context.Context, id uuid.UUID) (domain.AutomationRule, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.rules[id]
	if !ok {
		return domain.AutomationRule{}, ErrRuleNotFound
	}
	r.Enabled = !r.Enabled
	r.UpdatedAt = s.touch(r.CreatedAt)
	s.rules[id] = r
	return r.DeepCopy(), nil
}

func (s *MemoryStore) Delete(ctx context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.rules[id]; !ok {
		return ErrRuleNotFound
	}
	delete(s.rules, id)
	return nil
}

func (s *MemoryStore) RecordRun(ctx context.Context, id uuid.UUID, success bool, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.rules[id]
	if !ok {
		return ErrRuleNotFound
	}
	at = at.UTC()
	r.LastRun = &at
	if success {
		r.RunCount++
	}
	s.rules[id] = r
	return nil
}

// touch returns the new updatedAt, never earlier than createdAt.
func (s *MemoryStore) touch(created time.Time) time.Time {
	now := s.now().UTC()
	if now.Before(created) {
		return created
	}
	return now
}

// Snapshot returns every rule in list order.
func (s *MemoryStore) Snapshot() []domain.AutomationRule {
	out, _ := s.List(context.Background())
	return out
}

// Restore replaces the store's contents with rules.
func (s *MemoryStore) Restore(rules []domain.AutomationRule) {
	m := make(map[uuid.UUID]domain.AutomationRule, len(rules))
	for _, r := range rules {
		m[r.ID] = r.DeepCopy()
	}
	s.mu.Lock()
	s.rules = m
	s.mu.Unlock()
}

// Len returns the number of stored rules.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.rules)
}
