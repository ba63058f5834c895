package domain

import (
	"time"

	"github.com/google/uuid"
)

// --- ENUM Types ---

// TriggerType is the domain event that makes a rule eligible for evaluation.
type TriggerType string

const (
	TriggerTaskCreated         TriggerType = "task_created"
	TriggerTaskUpdated         TriggerType = "task_updated"
	TriggerTaskCompleted       TriggerType = "task_completed"
	TriggerTaskStatusChanged   TriggerType = "task_status_changed"
	TriggerTaskPriorityChanged TriggerType = "task_priority_changed"
	TriggerFileUploaded        TriggerType = "file_uploaded"
	TriggerFileShared          TriggerType = "file_shared"
	TriggerMessageReceived     TriggerType = "message_received"
	TriggerEventCreated        TriggerType = "event_created"
	TriggerTagAdded            TriggerType = "tag_added"
	TriggerDueDateApproaching  TriggerType = "due_date_approaching"
	TriggerSchedule            TriggerType = "schedule"
)

// AllTriggerTypes returns every trigger type the engine understands.
func AllTriggerTypes() []TriggerType {
	return []TriggerType{
		TriggerTaskCreated,
		TriggerTaskUpdated,
		TriggerTaskCompleted,
		TriggerTaskStatusChanged,
		TriggerTaskPriorityChanged,
		TriggerFileUploaded,
		TriggerFileShared,
		TriggerMessageReceived,
		TriggerEventCreated,
		TriggerTagAdded,
		TriggerDueDateApproaching,
		TriggerSchedule,
	}
}

// Valid reports whether t is one of the declared trigger types.
func (t TriggerType) Valid() bool {
	for _, known := range AllTriggerTypes() {
		if t == known {
			return true
		}
	}
	return false
}

// ActionType identifies the side effect an action performs.
type ActionType string

const (
	ActionCreateTask       ActionType = "create_task"
	ActionUpdateTask       ActionType = "update_task"
	ActionSendNotification ActionType = "send_notification"
	ActionSendEmail        ActionType = "send_email"
	ActionAddTag           ActionType = "add_tag"
	ActionMoveToFolder     ActionType = "move_to_folder"
	ActionAssignToUser     ActionType = "assign_to_user"
	ActionSetPriority      ActionType = "set_priority"
	ActionSetDueDate       ActionType = "set_due_date"
	ActionCreateEvent      ActionType = "create_event"
	ActionWebhook          ActionType = "webhook"
)

// AllActionTypes returns every declared action type.
func AllActionTypes() []ActionType {
	return []ActionType{
		ActionCreateTask,
		ActionUpdateTask,
		ActionSendNotification,
		ActionSendEmail,
		ActionAddTag,
		ActionMoveToFolder,
		ActionAssignToUser,
		ActionSetPriority,
		ActionSetDueDate,
		ActionCreateEvent,
		ActionWebhook,
	}
}

// Valid reports whether a is one of the declared action types.
func (a ActionType) Valid() bool {
	for _, known := range AllActionTypes() {
		if a == known {
			return true
		}
	}
	return false
}

// Operator is the comparison applied by a condition.
type Operator string

const (
	OpEquals      Operator = "equals"
	OpNotEquals   Operator = "not_equals"
	OpContains    Operator = "contains"
	OpGreaterThan Operator = "greater_than"
	OpLessThan    Operator = "less_than"
)

// Valid reports whether o is a known operator.
func (o Operator) Valid() bool {
	switch o {
	case OpEquals, OpNotEquals, OpContains, OpGreaterThan, OpLessThan:
		return true
	}
	return false
}

// Task priorities used by the set_priority and create_task actions.
const (
	PriorityLow    = "LOW"
	PriorityMedium = "MEDIUM"
	PriorityHigh   = "HIGH"
	PriorityUrgent = "URGENT"
)

// Task statuses. Other values are accepted and stored as given.
const (
	StatusTodo       = "TODO"
	StatusInProgress = "IN_PROGRESS"
	StatusDone       = "DONE"
)

// --- Base Structs ---

type BaseEntity struct {
	ID        uuid.UUID `db:"id"         json:"id"`
	CreatedAt time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt time.Time `db:"updated_at" json:"updatedAt"`
}
