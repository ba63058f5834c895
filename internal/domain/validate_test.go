package domain

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validSpec() RuleSpec {
	return RuleSpec{
		Name:    "Tag urgent",
		Enabled: true,
		Trigger: TriggerCondition{Type: TriggerTaskCreated},
		Conditions: []TriggerCondition{
			{Type: TriggerTaskCreated, Field: "priority", Operator: OpEquals, Value: "URGENT"},
		},
		Actions: []ActionSpec{NewAction(AddTagParams{TagID: "urgent"})},
	}
}

func TestValidateRuleSpec_Valid(t *testing.T) {
	assert.NoError(t, ValidateRuleSpec(validSpec()))

	empty := validSpec()
	empty.Conditions = nil
	empty.Actions = nil
	assert.NoError(t, ValidateRuleSpec(empty), "rules without conditions or actions are allowed")
}

func TestValidateRuleSpec_Invalid(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*RuleSpec)
		want   string
	}{
		{"missing name", func(s *RuleSpec) { s.Name = "" }, "rule.Name: failed required"},
		{"long name", func(s *RuleSpec) { s.Name = strings.Repeat("x", 201) }, "failed max=200"},
		{"unknown trigger", func(s *RuleSpec) { s.Trigger.Type = "task_exploded" }, `unknown trigger type "task_exploded"`},
		{"unknown operator", func(s *RuleSpec) { s.Conditions[0].Operator = "matches" }, `conditions[0]: unknown operator "matches"`},
		{"operator without field", func(s *RuleSpec) { s.Conditions[0].Field = "" }, "conditions[0]: field is required"},
		{"unknown action", func(s *RuleSpec) { s.Actions[0].Type = "launch_rocket" }, `unknown action type "launch_rocket"`},
		{"missing params", func(s *RuleSpec) { s.Actions[0].Params = nil }, "actions[0]: params are required"},
		{"mismatched params", func(s *RuleSpec) { s.Actions[0].Type = ActionSetPriority }, `params for "add_tag" given to "set_priority"`},
		{"bad param value", func(s *RuleSpec) { s.Actions[0] = NewAction(SetPriorityParams{Priority: "SOMEDAY"}) }, "actions[0].Priority: failed oneof"},
		{"bad email", func(s *RuleSpec) { s.Actions[0] = NewAction(SendEmailParams{To: "nope", Subject: "x"}) }, "actions[0].To: failed email"},
		{"due date without value", func(s *RuleSpec) { s.Actions[0] = NewAction(SetDueDateParams{}) }, "actions[0].DueDate: failed required_without"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := validSpec()
			tt.mutate(&s)

			err := ValidateRuleSpec(s)
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrInvalidRule))

			var verr *ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestValidateRuleSpec_CollectsAllProblems(t *testing.T) {
	s := validSpec()
	s.Name = ""
	s.Trigger.Type = "nope"
	s.Actions = append(s.Actions, ActionSpec{Type: "nope"})

	var verr *ValidationError
	require.ErrorAs(t, ValidateRuleSpec(s), &verr)
	assert.Len(t, verr.Problems, 3)
}
