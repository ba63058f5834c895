package task

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"task-automator-api/internal/domain"
)

// Storer is the task and tag store. MemoryStore and PostgresStore implement it.
type Storer interface {
	CreateTask(ctx context.Context, t domain.Task) (domain.Task, error)
	GetTask(ctx context.Context, id string) (domain.Task, error)
	ListTasks(ctx context.Context) ([]domain.Task, error)
	// ListTasksDueBetween returns tasks whose due date is in [from, to).
	ListTasksDueBetween(ctx context.Context, from, to time.Time) ([]domain.Task, error)
	UpdateTask(ctx context.Context, id string, fields map[string]any) error
	SetPriority(ctx context.Context, id, priority string) error
	AssignTask(ctx context.Context, id, userID string) error
	SetDueDate(ctx context.Context, id string, due time.Time) error
	AddTag(ctx context.Context, id, tagID string) error
}

var (
	_ Storer = (*MemoryStore)(nil)
	_ Storer = (*PostgresStore)(nil)
)

var (
	// ErrTaskNotFound is returned when an action targets a task that does not exist.
	ErrTaskNotFound = errors.New("task not found")

	// ErrInvalidField is returned by UpdateTask for unknown fields or bad values.
	ErrInvalidField = errors.New("invalid task field")
)

// updatableColumns maps the JSON field names accepted by UpdateTask to columns.
var updatableColumns = map[string]string{
	"title":       "title",
	"description": "description",
	"priority":    "priority",
	"status":      "status",
	"assigneeId":  "assignee_id",
	"folderId":    "folder_id",
}

type fieldUpdate struct {
	field  string
	column string
	value  string
}

// normalizeFields checks an update_task field map and returns it in a stable order.
func normalizeFields(fields map[string]any) ([]fieldUpdate, error) {
	if len(fields) == 0 {
		return nil, fmt.Errorf("%w: no fields given", ErrInvalidField)
	}
	out := make([]fieldUpdate, 0, len(fields))
	for field, raw := range fields {
		col, ok := updatableColumns[field]
		if !ok {
			return nil, fmt.Errorf("%w: %q cannot be updated", ErrInvalidField, field)
		}
		v, ok := raw.(string)
		if !ok {
			return nil, fmt.Errorf("%w: %q must be a string, got %T", ErrInvalidField, field, raw)
		}
		if field == "priority" && !validPriority(v) {
			return nil, fmt.Errorf("%w: unknown priority %q", ErrInvalidField, v)
		}
		if field == "title" && v == "" {
			return nil, fmt.Errorf("%w: title cannot be empty", ErrInvalidField)
		}
		out = append(out, fieldUpdate{field: field, column: col, value: v})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].column < out[j].column })
	return out, nil
}

func validPriority(p string) bool {
	switch p {
	case domain.PriorityLow, domain.PriorityMedium, domain.PriorityHigh, domain.PriorityUrgent:
		return true
	}
	return false
}

func applyField(t *domain.Task, field, value string) {
	switch field {
	case "title":
		t.Title = value
	case "description":
		t.Description = value
	case "priority":
		t.Priority = value
	case "status":
		t.Status = value
	case "assigneeId":
		t.AssigneeID = value
	case "folderId":
		t.FolderID = value
	}
}

func copyTask(t domain.Task) domain.Task {
	t.Tags = append([]string(nil), t.Tags...)
	if t.DueDate != nil {
		d := *t.DueDate
		t.DueDate = &d
	}
	return t
}
