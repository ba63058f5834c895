package domain

import (
	"encoding/json"
	"fmt"
	"time"
)

// ActionParams is the typed parameter payload of one action. Each action
// type has its own struct; ActionType reports which one it is.
type ActionParams interface {
	ActionType() ActionType
}

// CreateTaskParams creates a new task. Title and Description may reference
// event fields with {{field}} placeholders.
type CreateTaskParams struct {
	Title       string `json:"title"                validate:"required,max=500"`
	Description string `json:"description,omitempty"`
	Priority    string `json:"priority,omitempty"   validate:"omitempty,oneof=LOW MEDIUM HIGH URGENT"`
	AssigneeID  string `json:"assigneeId,omitempty"`
	FolderID    string `json:"folderId,omitempty"`
}

// UpdateTaskParams overwrites fields of an existing task.
type UpdateTaskParams struct {
	TaskID string         `json:"taskId,omitempty"`
	Fields map[string]any `json:"fields"           validate:"required,min=1"`
}

// SendNotificationParams sends an in-app notification.
type SendNotificationParams struct {
	Title   string `json:"title,omitempty"`
	Message string `json:"message"          validate:"required"`
	UserID  string `json:"userId,omitempty"`
}

// SendEmailParams sends an e-mail.
type SendEmailParams struct {
	To      string `json:"to"             validate:"required,email"`
	Subject string `json:"subject"        validate:"required"`
	Body    string `json:"body,omitempty"`
}

// AddTagParams attaches a tag to a task.
type AddTagParams struct {
	TagID  string `json:"tagId"            validate:"required"`
	TaskID string `json:"taskId,omitempty"`
}

// MoveToFolderParams moves a file into a folder.
type MoveToFolderParams struct {
	FolderID string `json:"folderId"         validate:"required"`
	FileID   string `json:"fileId,omitempty"`
}

// AssignToUserParams assigns a task to a user.
type AssignToUserParams struct {
	UserID string `json:"userId"           validate:"required"`
	TaskID string `json:"taskId,omitempty"`
}

// SetPriorityParams changes a task's priority.
type SetPriorityParams struct {
	Priority string `json:"priority"         validate:"required,oneof=LOW MEDIUM HIGH URGENT"`
	TaskID   string `json:"taskId,omitempty"`
}

// SetDueDateParams sets a task's due date, either absolute or as a number of
// days from the moment the action runs.
type SetDueDateParams struct {
	DueDate    *time.Time `json:"dueDate,omitempty"    validate:"required_without=OffsetDays"`
	OffsetDays *int       `json:"offsetDays,omitempty" validate:"required_without=DueDate"`
	TaskID     string     `json:"taskId,omitempty"`
}

// CreateEventParams creates a calendar event relative to the time the action runs.
type CreateEventParams struct {
	Title              string `json:"title"                      validate:"required"`
	StartOffsetMinutes int    `json:"startOffsetMinutes"`
	DurationMinutes    int    `json:"durationMinutes"            validate:"gte=0"`
	CalendarID         string `json:"calendarId,omitempty"`
}

// WebhookParams posts the event context to an external URL.
type WebhookParams struct {
	URL     string            `json:"url"               validate:"required,url"`
	Method  string            `json:"method,omitempty"  validate:"omitempty,oneof=GET POST PUT PATCH"`
	Headers map[string]string `json:"headers,omitempty"`
}

// RawParams holds the parameters of an action whose type is not declared.
// It survives decoding so persisted data is never lost, but fails validation.
type RawParams struct {
	Kind ActionType
	Raw  json.RawMessage
}

func (CreateTaskParams) ActionType() ActionType       { return ActionCreateTask }
func (UpdateTaskParams) ActionType() ActionType       { return ActionUpdateTask }
func (SendNotificationParams) ActionType() ActionType { return ActionSendNotification }
func (SendEmailParams) ActionType() ActionType        { return ActionSendEmail }
func (AddTagParams) ActionType() ActionType           { return ActionAddTag }
func (MoveToFolderParams) ActionType() ActionType     { return ActionMoveToFolder }
func (AssignToUserParams) ActionType() ActionType     { return ActionAssignToUser }
func (SetPriorityParams) ActionType() ActionType      { return ActionSetPriority }
func (SetDueDateParams) ActionType() ActionType       { return ActionSetDueDate }
func (CreateEventParams) ActionType() ActionType      { return ActionCreateEvent }
func (WebhookParams) ActionType() ActionType          { return ActionWebhook }
func (p RawParams) ActionType() ActionType            { return p.Kind }

// MarshalJSON writes the original raw payload back out.
func (p RawParams) MarshalJSON() ([]byte, error) {
	if len(p.Raw) == 0 {
		return []byte("null"), nil
	}
	return p.Raw, nil
}

// newParams returns a pointer to the zero params struct for t, or nil when t
// is not a declared action type.
func newParams(t ActionType) ActionParams {
	switch t {
	case ActionCreateTask:
		return &CreateTaskParams{}
	case ActionUpdateTask:
		return &UpdateTaskParams{}
	case ActionSendNotification:
		return &SendNotificationParams{}
	case ActionSendEmail:
		return &SendEmailParams{}
	case ActionAddTag:
		return &AddTagParams{}
	case ActionMoveToFolder:
		return &MoveToFolderParams{}
	case ActionAssignToUser:
		return &AssignToUserParams{}
	case ActionSetPriority:
		return &SetPriorityParams{}
	case ActionSetDueDate:
		return &SetDueDateParams{}
	case ActionCreateEvent:
		return &CreateEventParams{}
	case ActionWebhook:
		return &WebhookParams{}
	}
	return nil
}

// ActionSpec is one step of a rule. On the wire it is {"type": ..., "params": {...}}.
type ActionSpec struct {
	Type   ActionType
	Params ActionParams
}

// NewAction builds an ActionSpec from typed params.
func NewAction(p ActionParams) ActionSpec {
	return ActionSpec{Type: p.ActionType(), Params: p}
}

type actionWire struct {
	Type   ActionType      `json:"type"`
	Params json.RawMessage `json:"params,omitempty"`
}

// MarshalJSON implements json.Marshaler.
func (a ActionSpec) MarshalJSON() ([]byte, error) {
	w := actionWire{Type: a.Type}
	if a.Params != nil {
		raw, err := json.Marshal(a.Params)
		if err != nil {
			return nil, fmt.Errorf("encoding %s params: %w", a.Type, err)
		}
		w.Params = raw
	}
	return json.Marshal(w)
}

// UnmarshalJSON decodes params into the struct that matches the action type.
func (a *ActionSpec) UnmarshalJSON(data []byte) error {
	var w actionWire
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	a.Type = w.Type

	p := newParams(w.Type)
	if p == nil {
		a.Params = RawParams{Kind: w.Type, Raw: w.Params}
		return nil
	}
	if len(w.Params) > 0 && string(w.Params) != "null" {
		if err := json.Unmarshal(w.Params, p); err != nil {
			return fmt.Errorf("decoding %s params: %w", w.Type, err)
		}
	}
	a.Params = derefParams(p)
	return nil
}

// derefParams turns the pointer produced by newParams back into a value so
// handlers can type-switch on value types.
func derefParams(p ActionParams) ActionParams {
	switch v := p.(type) {
	case *CreateTaskParams:
		return *v
	case *UpdateTaskParams:
		return *v
	case *SendNotificationParams:
		return *v
	case *SendEmailParams:
		return *v
	case *AddTagParams:
		return *v
	case *MoveToFolderParams:
		return *v
	case *AssignToUserParams:
		return *v
	case *SetPriorityParams:
		return *v
	case *SetDueDateParams:
		return *v
	case *CreateEventParams:
		return *v
	case *WebhookParams:
		return *v
	}
	return p
}

// cloneParams returns an independent copy of p; map and pointer fields are cloned.
func cloneParams(p ActionParams) ActionParams {
	switch v := p.(type) {
	case UpdateTaskParams:
		v.Fields = deepCopyMap(v.Fields)
		return v
	case WebhookParams:
		if v.Headers != nil {
			h := make(map[string]string, len(v.Headers))
			for k, val := range v.Headers {
				h[k] = val
			}
			v.Headers = h
		}
		return v
	case SetDueDateParams:
		if v.DueDate != nil {
			d := *v.DueDate
			v.DueDate = &d
		}
		if v.OffsetDays != nil {
			o := *v.OffsetDays
			v.OffsetDays = &o
		}
		return v
	case RawParams:
		v.Raw = append(json.RawMessage(nil), v.Raw...)
		return v
	}
	return p
}
