package engine

import (
	"math"
	"testing"

	"task-automator-api/internal/domain"

	"github.com/stretchr/testify/assert"
)

func TestEvaluate(t *testing.T) {
	tests := []struct {
		name     string
		field    any
		op       domain.Operator
		expected any
		want     bool
	}{
		{"equals same string", "URGENT", domain.OpEquals, "URGENT", true},
		{"equals is case sensitive", "urgent", domain.OpEquals, "URGENT", false},
		{"equals is type sensitive", "5", domain.OpEquals, 5.0, false},
		{"equals int and float", 5, domain.OpEquals, 5.0, true},
		{"equals bools", true, domain.OpEquals, true, true},
		{"equals missing field", nil, domain.OpEquals, "x", false},
		{"equals nil and nil", nil, domain.OpEquals, nil, true},
		{"equals nested maps", map[string]any{"a": 1.0}, domain.OpEquals, map[string]any{"a": 1.0}, true},
		{"not_equals different", "LOW", domain.OpNotEquals, "HIGH", true},
		{"not_equals missing field", nil, domain.OpNotEquals, "HIGH", true},
		{"contains ignores case", "Fix the Login BUG", domain.OpContains, "bug", true},
		{"contains absent", "Write docs", domain.OpContains, "bug", false},
		{"contains number as text", 12345.0, domain.OpContains, "234", true},
		{"contains missing field and empty needle", nil, domain.OpContains, "", true},
		{"greater_than numbers", 11.0, domain.OpGreaterThan, 10, true},
		{"greater_than equal values", 10, domain.OpGreaterThan, 10.0, false},
		{"greater_than numeric string", "20", domain.OpGreaterThan, 10, true},
		{"greater_than non numeric string", "abc", domain.OpGreaterThan, 1, false},
		{"greater_than missing field", nil, domain.OpGreaterThan, 0, false},
		{"greater_than empty string", "", domain.OpGreaterThan, -1, false},
		{"greater_than NaN", math.NaN(), domain.OpGreaterThan, 0, false},
		{"less_than numbers", 3, domain.OpLessThan, 4, true},
		{"less_than bool coerces", false, domain.OpLessThan, 1, true},
		{"less_than infinity", math.Inf(-1), domain.OpLessThan, 0, false},
		{"unknown operator", "a", domain.Operator("matches"), "a", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Evaluate(tt.field, tt.op, tt.expected))
		})
	}
}

func TestEvaluateCondition(t *testing.T) {
	event := map[string]any{
		"priority": "URGENT",
		"task":     map[string]any{"status": "DONE"},
		"a.b":      "literal",
	}

	t.Run("type only always holds", func(t *testing.T) {
		assert.True(t, EvaluateCondition(domain.TriggerCondition{Type: domain.TriggerTaskCreated}, event))
		assert.True(t, EvaluateCondition(domain.TriggerCondition{Type: domain.TriggerTaskCreated}, nil))
	})

	t.Run("predicate on top-level field", func(t *testing.T) {
		c := domain.TriggerCondition{Field: "priority", Operator: domain.OpEquals, Value: "URGENT"}
		assert.True(t, EvaluateCondition(c, event))
	})

	t.Run("dotted field walks nested maps", func(t *testing.T) {
		c := domain.TriggerCondition{Field: "task.status", Operator: domain.OpEquals, Value: "DONE"}
		assert.True(t, EvaluateCondition(c, event))
	})

	t.Run("literal key wins over nesting", func(t *testing.T) {
		c := domain.TriggerCondition{Field: "a.b", Operator: domain.OpEquals, Value: "literal"}
		assert.True(t, EvaluateCondition(c, event))
	})

	t.Run("operator without field is false", func(t *testing.T) {
		c := domain.TriggerCondition{Operator: domain.OpEquals, Value: "URGENT"}
		assert.False(t, EvaluateCondition(c, event))
	})

	t.Run("nil context", func(t *testing.T) {
		c := domain.TriggerCondition{Field: "priority", Operator: domain.OpNotEquals, Value: "URGENT"}
		assert.True(t, EvaluateCondition(c, nil))
	})
}

func TestEvaluateAll(t *testing.T) {
	event := map[string]any{"priority": "HIGH", "title": "Release notes"}
	high := domain.TriggerCondition{Field: "priority", Operator: domain.OpEquals, Value: "HIGH"}
	release := domain.TriggerCondition{Field: "title", Operator: domain.OpContains, Value: "release"}
	bug := domain.TriggerCondition{Field: "title", Operator: domain.OpContains, Value: "bug"}

	assert.True(t, EvaluateAll(nil, event))
	assert.True(t, EvaluateAll([]domain.TriggerCondition{high, release}, event))
	assert.False(t, EvaluateAll([]domain.TriggerCondition{high, bug}, event))
}
