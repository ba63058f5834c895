package domain

import (
	"time"

	"github.com/google/uuid"
)

// TriggerCondition is either a bare trigger (only Type set) or a
// field/operator/value predicate over an event context.
type TriggerCondition struct {
	Type     TriggerType `json:"type"`
	Field    string      `json:"field,omitempty"`
	Operator Operator    `json:"operator,omitempty"`
	Value    any         `json:"value"`
}

// IsTypeOnly reports whether the condition carries no predicate. Such a
// condition always holds.
func (c TriggerCondition) IsTypeOnly() bool {
	return c.Field == "" && c.Operator == "" && c.Value == nil
}

// RuleSpec is the user-authored part of a rule: everything except the
// identity, timestamps and run statistics.
type RuleSpec struct {
	Name        string             `json:"name"                  validate:"required,max=200"`
	Description string             `json:"description,omitempty" validate:"max=2000"`
	Enabled     bool               `json:"enabled"`
	Trigger     TriggerCondition   `json:"trigger"`
	Conditions  []TriggerCondition `json:"conditions"`
	Actions     []ActionSpec       `json:"actions"`
}

// AutomationRule represents an automation rule
type AutomationRule struct {
	BaseEntity
	RuleSpec
	LastRun  *time.Time `db:"last_run"  json:"lastRun,omitempty"`
	RunCount int        `db:"run_count" json:"runCount"`
}

// Spec returns an independent copy of the user-authored fields of r.
func (r AutomationRule) Spec() RuleSpec {
	return r.RuleSpec.Clone()
}

// Clone returns a deep copy of s.
func (s RuleSpec) Clone() RuleSpec {
	cpy := s
	if s.Conditions != nil {
		cpy.Conditions = make([]TriggerCondition, len(s.Conditions))
		for i, c := range s.Conditions {
			cpy.Conditions[i] = c.clone()
		}
	}
	if s.Actions != nil {
		cpy.Actions = make([]ActionSpec, len(s.Actions))
		for i, a := range s.Actions {
			cpy.Actions[i] = ActionSpec{Type: a.Type, Params: cloneParams(a.Params)}
		}
	}
	cpy.Trigger = s.Trigger.clone()
	return cpy
}

func (c TriggerCondition) clone() TriggerCondition {
	c.Value = deepCopyValue(c.Value)
	return c
}

// DeepCopy returns a copy of r that shares no mutable state with it.
func (r AutomationRule) DeepCopy() AutomationRule {
	cpy := r
	cpy.RuleSpec = r.RuleSpec.Clone()
	if r.LastRun != nil {
		t := *r.LastRun
		cpy.LastRun = &t
	}
	return cpy
}

// RulePatch carries a partial update. Nil fields are left untouched. ID and
// CreatedAt exist only so attempts to change them can be rejected.
type RulePatch struct {
	ID          *uuid.UUID          `json:"id,omitempty"`
	CreatedAt   *time.Time          `json:"createdAt,omitempty"`
	Name        *string             `json:"name,omitempty"`
	Description *string             `json:"description,omitempty"`
	Enabled     *bool               `json:"enabled,omitempty"`
	Trigger     *TriggerCondition   `json:"trigger,omitempty"`
	Conditions  *[]TriggerCondition `json:"conditions,omitempty"`
	Actions     *[]ActionSpec       `json:"actions,omitempty"`
}

// Apply merges the patch into s and returns the result. s is not modified.
func (p RulePatch) Apply(s RuleSpec) RuleSpec {
	out := s.Clone()
	if p.Name != nil {
		out.Name = *p.Name
	}
	if p.Description != nil {
		out.Description = *p.Description
	}
	if p.Enabled != nil {
		out.Enabled = *p.Enabled
	}
	if p.Trigger != nil {
		out.Trigger = p.Trigger.clone()
	}
	if p.Conditions != nil {
		out.Conditions = RuleSpec{Conditions: *p.Conditions}.Clone().Conditions
	}
	if p.Actions != nil {
		out.Actions = RuleSpec{Actions: *p.Actions}.Clone().Actions
	}
	return out
}

// ActionFailure describes the action that stopped a rule's action chain.
type ActionFailure struct {
	Index   int        `json:"index"`
	Type    ActionType `json:"type"`
	Message string     `json:"message"`
	Timeout bool       `json:"timeout,omitempty"`
}

// ExecutionRecord is the immutable audit entry for one rule attempt in one
// dispatch.
type ExecutionRecord struct {
	ID             uuid.UUID      `db:"id"              json:"id"`
	RuleID         uuid.UUID      `db:"rule_id"         json:"ruleId"`
	RuleName       string         `db:"rule_name"       json:"ruleName,omitempty"`
	TriggerType    TriggerType    `db:"trigger_type"    json:"triggerType"`
	Timestamp      time.Time      `db:"timestamp"       json:"timestamp"`
	Success        bool           `db:"success"         json:"success"`
	Error          string         `db:"error"           json:"error,omitempty"`
	Failure        *ActionFailure `db:"failure"         json:"failure,omitempty"`
	ActionsRun     int            `db:"actions_run"     json:"actionsRun"`
	ActionsNoop    int            `db:"actions_noop"    json:"actionsNoop"`
	ActionsSkipped int            `db:"actions_skipped" json:"actionsSkipped"`
	DurationMS     int64          `db:"duration_ms"     json:"durationMs"`
	Context        map[string]any `db:"context"         json:"context"`
}

// RuleTemplate is a built-in preset that can be installed as a new rule.
type RuleTemplate struct {
	Key      string `json:"key"`
	Category string `json:"category,omitempty"`
	RuleSpec
}

// Task is the subset of a task the action handlers read and write.
type Task struct {
	ID          string     `db:"id"          json:"id"`
	Title       string     `db:"title"       json:"title"`
	Description string     `db:"description" json:"description,omitempty"`
	Priority    string     `db:"priority"    json:"priority,omitempty"`
	Status      string     `db:"status"      json:"status,omitempty"`
	AssigneeID  string     `db:"assignee_id" json:"assigneeId,omitempty"`
	FolderID    string     `db:"folder_id"   json:"folderId,omitempty"`
	DueDate     *time.Time `db:"due_date"    json:"dueDate,omitempty"`
	Tags        []string   `db:"-"           json:"tags,omitempty"`
	CreatedAt   time.Time  `db:"created_at"  json:"createdAt"`
	UpdatedAt   time.Time  `db:"updated_at"  json:"updatedAt"`
}

// EventContext is the event payload published for t. Empty optional
// fields are left out.
func (t Task) EventContext() map[string]any {
	ctx := map[string]any{
		"taskId":   t.ID,
		"title":    t.Title,
		"priority": t.Priority,
		"status":   t.Status,
	}
	if t.Description != "" {
		ctx["description"] = t.Description
	}
	if t.AssigneeID != "" {
		ctx["assigneeId"] = t.AssigneeID
	}
	if t.FolderID != "" {
		ctx["folderId"] = t.FolderID
	}
	if t.DueDate != nil {
		ctx["dueDate"] = t.DueDate.UTC().Format(time.RFC3339)
	}
	if len(t.Tags) > 0 {
		tags := make([]any, len(t.Tags))
		for i, tag := range t.Tags {
			tags[i] = tag
		}
		ctx["tags"] = tags
	}
	return ctx
}

// Notification is delivered by the send_notification action.
type Notification struct {
	ID        uuid.UUID `json:"id"`
	UserID    string    `json:"userId,omitempty"`
	Title     string    `json:"title,omitempty"`
	Message   string    `json:"message"`
	CreatedAt time.Time `json:"createdAt"`
}
