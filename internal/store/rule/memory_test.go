package rule

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"task-automator-api/internal/domain"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func urgentTagSpec(name string) domain.RuleSpec {
	return domain.RuleSpec{
		Name:    name,
		Enabled: true,
		Trigger: domain.TriggerCondition{Type: domain.TriggerTaskCreated},
		Conditions: []domain.TriggerCondition{
			{Type: domain.TriggerTaskCreated, Field: "priority", Operator: domain.OpEquals, Value: "URGENT"},
		},
		Actions: []domain.ActionSpec{
			domain.NewAction(domain.AddTagParams{TagID: "urgent"}),
		},
	}
}

// steppingClock returns a clock that advances one second per call.
func steppingClock(start time.Time) func() time.Time {
	var mu sync.Mutex
	cur := start
	return func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		cur = cur.Add(time.Second)
		return cur
	}
}

func TestMemoryStore_Create(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	r, err := s.Create(ctx, urgentTagSpec("Tag urgent"))
	require.NoError(t, err)

	assert.NotEqual(t, uuid.Nil, r.ID)
	assert.Equal(t, r.CreatedAt, r.UpdatedAt)
	assert.Zero(t, r.RunCount)
	assert.Nil(t, r.LastRun)
	assert.Equal(t, "Tag urgent", r.Name)
	assert.Equal(t, 1, s.Len())
}

func TestMemoryStore_CreateRejectsInvalidSpec(t *testing.T) {
	s := NewMemoryStore()
	spec := urgentTagSpec("")
	spec.Trigger.Type = "not_a_trigger"

	_, err := s.Create(context.Background(), spec)
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrInvalidRule))
	assert.Zero(t, s.Len())
}

func TestMemoryStore_ReturnsCopies(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	r, err := s.Create(ctx, urgentTagSpec("Tag urgent"))
	require.NoError(t, err)

	r.Name = "changed"
	r.Conditions[0].Value = "LOW"

	got, err := s.Get(ctx, r.ID)
	require.NoError(t, err)
	assert.Equal(t, "Tag urgent", got.Name)
	assert.Equal(t, "URGENT", got.Conditions[0].Value)
}

func TestMemoryStore_Get_NotFound(t *testing.T) {
	s := NewMemoryStore()
	_, err := s.Get(context.Background(), uuid.New())
	assert.ErrorIs(t, err, ErrRuleNotFound)
}

func TestMemoryStore_ListOrder(t *testing.T) {
	base := time.Date(2025, 1, 1, 9, 0, 0, 0, time.UTC)
	s := NewMemoryStore(WithClock(steppingClock(base)))
	ctx := context.Background()

	var ids []uuid.UUID
	for _, name := range []string{"first", "second", "third"} {
		r, err := s.Create(ctx, urgentTagSpec(name))
		require.NoError(t, err)
		ids = append(ids, r.ID)
	}

	rules, err := s.List(ctx)
	require.NoError(t, err)
	require.Len(t, rules, 3)
	for i, r := range rules {
		assert.Equal(t, ids[i], r.ID)
	}
}

func TestMemoryStore_ListOrder_TieBrokenByID(t *testing.T) {
	fixed := time.Date(2025, 1, 1, 9, 0, 0, 0, time.UTC)
	s := NewMemoryStore(WithClock(func() time.Time { return fixed }))
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		_, err := s.Create(ctx, urgentTagSpec("same instant"))
		require.NoError(t, err)
	}

	rules, err := s.List(ctx)
	require.NoError(t, err)
	for i := 1; i < len(rules); i++ {
		assert.Less(t, rules[i-1].ID.String(), rules[i].ID.String())
	}
}

func TestSortForDispatch(t *testing.T) {
	early := time.Date(2025, 1, 1, 9, 0, 0, 0, time.UTC)
	late := early.Add(time.Minute)
	low := uuid.MustParse("00000000-0000-7000-8000-000000000001")
	mid := uuid.MustParse("0a000000-0000-7000-8000-000000000000")
	high := uuid.MustParse("ff000000-0000-7000-8000-000000000000")

	rules := []domain.AutomationRule{
		{BaseEntity: domain.BaseEntity{ID: low, CreatedAt: late}},
		{BaseEntity: domain.BaseEntity{ID: high, CreatedAt: early}},
		{BaseEntity: domain.BaseEntity{ID: mid, CreatedAt: early}},
	}
	sortForDispatch(rules)

	got := []uuid.UUID{rules[0].ID, rules[1].ID, rules[2].ID}
	assert.Equal(t, []uuid.UUID{mid, high, low}, got)
}

func TestMemoryStore_ListEnabledByTrigger(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	enabled, err := s.Create(ctx, urgentTagSpec("enabled"))
	require.NoError(t, err)

	disabledSpec := urgentTagSpec("disabled")
	disabledSpec.Enabled = false
	_, err = s.Create(ctx, disabledSpec)
	require.NoError(t, err)

	otherSpec := urgentTagSpec("other trigger")
	otherSpec.Trigger.Type = domain.TriggerFileUploaded
	_, err = s.Create(ctx, otherSpec)
	require.NoError(t, err)

	rules, err := s.ListEnabledByTrigger(ctx, domain.TriggerTaskCreated)
	require.NoError(t, err)
	require.Len(t, rules, 1)
	assert.Equal(t, enabled.ID, rules[0].ID)
}

func TestMemoryStore_Update(t *testing.T) {
	base := time.Date(2025, 1, 1, 9, 0, 0, 0, time.UTC)
	s := NewMemoryStore(WithClock(steppingClock(base)))
	ctx := context.Background()
	r, err := s.Create(ctx, urgentTagSpec("before"))
	require.NoError(t, err)

	name := "after"
	updated, err := s.Update(ctx, r.ID, domain.RulePatch{Name: &name})
	require.NoError(t, err)

	assert.Equal(t, "after", updated.Name)
	assert.Equal(t, r.CreatedAt, updated.CreatedAt)
	assert.True(t, updated.UpdatedAt.After(r.UpdatedAt))
	assert.Equal(t, r.Actions, updated.Actions)
}

func TestMemoryStore_Update_InvalidLeavesRuleUntouched(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	r, err := s.Create(ctx, urgentTagSpec("keep me"))
	require.NoError(t, err)

	bad := []domain.ActionSpec{{Type: "teleport"}}
	_, err = s.Update(ctx, r.ID, domain.RulePatch{Actions: &bad})
	require.ErrorIs(t, err, domain.ErrInvalidRule)

	got, err := s.Get(ctx, r.ID)
	require.NoError(t, err)
	assert.Equal(t, r, got)
}

func TestMemoryStore_Update_NotFound(t *testing.T) {
	s := NewMemoryStore()
	name := "x"
	_, err := s.Update(context.Background(), uuid.New(), domain.RulePatch{Name: &name})
	assert.ErrorIs(t, err, ErrRuleNotFound)
}

func TestMemoryStore_ToggleTwiceRestores(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	a, err := s.Create(ctx, urgentTagSpec("a"))
	require.NoError(t, err)
	b, err := s.Create(ctx, urgentTagSpec("b"))
	require.NoError(t, err)

	once, err := s.Toggle(ctx, a.ID)
	require.NoError(t, err)
	assert.False(t, once.Enabled)

	other, err := s.Get(ctx, b.ID)
	require.NoError(t, err)
	assert.True(t, other.Enabled, "toggle must only flip the addressed rule")

	twice, err := s.Toggle(ctx, a.ID)
	require.NoError(t, err)
	assert.True(t, twice.Enabled)
}

func TestMemoryStore_Delete(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	r, err := s.Create(ctx, urgentTagSpec("a"))
	require.NoError(t, err)

	before := s.Snapshot()
	assert.ErrorIs(t, s.Delete(ctx, uuid.New()), ErrRuleNotFound)
	assert.Equal(t, before, s.Snapshot())

	require.NoError(t, s.Delete(ctx, r.ID))
	assert.Zero(t, s.Len())
	assert.ErrorIs(t, s.Delete(ctx, r.ID), ErrRuleNotFound)
}

func TestMemoryStore_RecordRun(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	r, err := s.Create(ctx, urgentTagSpec("a"))
	require.NoError(t, err)

	at := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	require.NoError(t, s.RecordRun(ctx, r.ID, true, at))
	require.NoError(t, s.RecordRun(ctx, r.ID, false, at.Add(time.Minute)))

	got, err := s.Get(ctx, r.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, got.RunCount)
	require.NotNil(t, got.LastRun)
	assert.Equal(t, at.Add(time.Minute), *got.LastRun)

	assert.ErrorIs(t, s.RecordRun(ctx, uuid.New(), true, at), ErrRuleNotFound)
}

func TestMemoryStore_SnapshotRestore(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	_, err := s.Create(ctx, urgentTagSpec("a"))
	require.NoError(t, err)
	_, err = s.Create(ctx, urgentTagSpec("b"))
	require.NoError(t, err)

	fresh := NewMemoryStore()
	fresh.Restore(s.Snapshot())

	assert.Equal(t, s.Snapshot(), fresh.Snapshot())
}

func TestMemoryStore_ConcurrentMutations(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	r, err := s.Create(ctx, urgentTagSpec("counter"))
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			_ = s.RecordRun(ctx, r.ID, true, time.Now())
		}()
		go func() {
			defer wg.Done()
			_, _ = s.Create(ctx, urgentTagSpec("noise"))
		}()
	}
	wg.Wait()

	got, err := s.Get(ctx, r.ID)
	require.NoError(t, err)
	assert.Equal(t, 50, got.RunCount)
	assert.Equal(t, 51, s.Len())
}
