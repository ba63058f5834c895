package rule

import (
	"bytes"
	"context"
	"errors"
	"sort"
	"time"

	"task-automator-api/internal/domain"

	"github.com/google/uuid"
)

// ErrRuleNotFound is returned when no rule has the requested id.
var ErrRuleNotFound = errors.New("rule not found")

// RuleStorer owns the collection of automation rules. Implementations are
// safe for concurrent use and serialize their mutations.
type RuleStorer interface {
	Create(ctx context.Context, spec domain.RuleSpec) (domain.AutomationRule, error)
	Get(ctx context.Context, id uuid.UUID) (domain.AutomationRule, error)
	// List returns every rule ordered by createdAt, then id.
	List(ctx context.Context) ([]domain.AutomationRule, error)
	// ListEnabledByTrigger returns the enabled rules for one trigger type in
	// dispatch order (createdAt, then id).
	ListEnabledByTrigger(ctx context.Context, trigger domain.TriggerType) ([]domain.AutomationRule, error)
	// Update merges patch into the stored rule, validates the result and bumps updatedAt.
	Update(ctx context.Context, id uuid.UUID, patch domain.RulePatch) (domain.AutomationRule, error)
	Toggle(ctx context.Context, id uuid.UUID) (domain.AutomationRule, error)
	Delete(ctx context.Context, id uuid.UUID) error
	// RecordRun always sets lastRun and increments runCount only on success.
	RecordRun(ctx context.Context, id uuid.UUID, success bool, at time.Time) error
}

// newRuleID returns a time-ordered id so rules created in the same instant
// still sort in creation order.
func newRuleID() (uuid.UUID, error) {
	return uuid.NewV7()
}

// sortForDispatch orders rules by createdAt ascending, tie-broken by id.
func sortForDispatch(rules []domain.AutomationRule) {
	sort.SliceStable(rules, func(i, j int) bool {
		a, b := rules[i], rules[j]
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.Before(b.CreatedAt)
		}
		return bytes.Compare(a.ID[:], b.ID[:]) < 0
	})
}
