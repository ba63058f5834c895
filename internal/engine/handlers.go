package engine

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"regexp"
	"strings"
	"time"

	"task-automator-api/internal/domain"

	"github.com/google/uuid"
)

// TaskTarget is the task store the task actions write to.
type TaskTarget interface {
	CreateTask(ctx context.Context, t domain.Task) (domain.Task, error)
	UpdateTask(ctx context.Context, taskID string, fields map[string]any) error
	SetPriority(ctx context.Context, taskID, priority string) error
	AssignTask(ctx context.Context, taskID, userID string) error
	SetDueDate(ctx context.Context, taskID string, due time.Time) error
}

// TagTarget is the tag store used by add_tag.
type TagTarget interface {
	AddTag(ctx context.Context, taskID, tagID string) error
}

// Notifier is the notification channel used by send_notification.
type Notifier interface {
	Notify(ctx context.Context, n domain.Notification) error
}

// Targets groups the external stores the built-in handlers act on.
type Targets struct {
	Tasks    TaskTarget
	Tags     TagTarget
	Notifier Notifier
}

// RegisterDefaultHandlers registers create_task, send_notification, add_tag,
// set_priority and assign_to_user. Other declared types stay unregistered
// and run as no-ops until a handler is added.
func RegisterDefaultHandlers(r *ActionRegistry, t Targets) error {
	defaults := map[domain.ActionType]Handler{
		domain.ActionCreateTask:       createTaskHandler(t.Tasks),
		domain.ActionSendNotification: sendNotificationHandler(t.Notifier),
		domain.ActionAddTag:           addTagHandler(t.Tags),
		domain.ActionSetPriority:      setPriorityHandler(t.Tasks),
		domain.ActionAssignToUser:     assignToUserHandler(t.Tasks),
	}
	for typ, h := range defaults {
		if err := r.Register(typ, h); err != nil {
			return err
		}
	}
	return nil
}

// RegisterTaskExtensions adds update_task and set_due_date.
func RegisterTaskExtensions(r *ActionRegistry, tasks TaskTarget) error {
	if err := r.Register(domain.ActionUpdateTask, updateTaskHandler(tasks)); err != nil {
		return err
	}
	return r.Register(domain.ActionSetDueDate, setDueDateHandler(tasks))
}

func createTaskHandler(tasks TaskTarget) Handler {
	return func(ctx context.Context, params domain.ActionParams, event map[string]any) error {
		p, ok := params.(domain.CreateTaskParams)
		if !ok {
			return mismatch(domain.ActionCreateTask, params)
		}
		task := domain.Task{
			Title:       Interpolate(p.Title, event),
			Description: Interpolate(p.Description, event),
			Priority:    p.Priority,
			AssigneeID:  p.AssigneeID,
			FolderID:    p.FolderID,
			Status:      domain.StatusTodo,
		}
		if task.Priority == "" {
			task.Priority = domain.PriorityMedium
		}
		if _, err := tasks.CreateTask(ctx, task); err != nil {
			return fmt.Errorf("create_task: %w", err)
		}
		return nil
	}
}

func updateTaskHandler(tasks TaskTarget) Handler {
	return func(ctx context.Context, params domain.ActionParams, event map[string]any) error {
		p, ok := params.(domain.UpdateTaskParams)
		if !ok {
			return mismatch(domain.ActionUpdateTask, params)
		}
		taskID, err := resolveTarget(domain.ActionUpdateTask, p.TaskID, "taskId", event)
		if err != nil {
			return err
		}
		if err := tasks.UpdateTask(ctx, taskID, p.Fields); err != nil {
			return fmt.Errorf("update_task %s: %w", taskID, err)
		}
		return nil
	}
}

func sendNotificationHandler(n Notifier) Handler {
	return func(ctx context.Context, params domain.ActionParams, event map[string]any) error {
		p, ok := params.(domain.SendNotificationParams)
		if !ok {
			return mismatch(domain.ActionSendNotification, params)
		}
		userID := p.UserID
		if userID == "" {
			userID = stringField(event, "userId")
		}
		msg := domain.Notification{
			ID:        uuid.New(),
			UserID:    userID,
			Title:     Interpolate(p.Title, event),
			Message:   Interpolate(p.Message, event),
			CreatedAt: time.Now().UTC(),
		}
		if err := n.Notify(ctx, msg); err != nil {
			return fmt.Errorf("send_notification: %w", err)
		}
		return nil
	}
}

func addTagHandler(tags TagTarget) Handler {
	return func(ctx context.Context, params domain.ActionParams, event map[string]any) error {
		p, ok := params.(domain.AddTagParams)
		if !ok {
			return mismatch(domain.ActionAddTag, params)
		}
		taskID, err := resolveTarget(domain.ActionAddTag, p.TaskID, "taskId", event)
		if err != nil {
			return err
		}
		if err := tags.AddTag(ctx, taskID, p.TagID); err != nil {
			return fmt.Errorf("add_tag %s on %s: %w", p.TagID, taskID, err)
		}
		return nil
	}
}

func setPriorityHandler(tasks TaskTarget) Handler {
	return func(ctx context.Context, params domain.ActionParams, event map[string]any) error {
		p, ok := params.(domain.SetPriorityParams)
		if !ok {
			return mismatch(domain.ActionSetPriority, params)
		}
		taskID, err := resolveTarget(domain.ActionSetPriority, p.TaskID, "taskId", event)
		if err != nil {
			return err
		}
		if err := tasks.SetPriority(ctx, taskID, p.Priority); err != nil {
			return fmt.Errorf("set_priority %s: %w", taskID, err)
		}
		return nil
	}
}

func assignToUserHandler(tasks TaskTarget) Handler {
	return func(ctx context.Context, params domain.ActionParams, event map[string]any) error {
		p, ok := params.(domain.AssignToUserParams)
		if !ok {
			return mismatch(domain.ActionAssignToUser, params)
		}
		taskID, err := resolveTarget(domain.ActionAssignToUser, p.TaskID, "taskId", event)
		if err != nil {
			return err
		}
		if err := tasks.AssignTask(ctx, taskID, p.UserID); err != nil {
			return fmt.Errorf("assign_to_user %s: %w", taskID, err)
		}
		return nil
	}
}

func setDueDateHandler(tasks TaskTarget) Handler {
	return func(ctx context.Context, params domain.ActionParams, event map[string]any) error {
		p, ok := params.(domain.SetDueDateParams)
		if !ok {
			return mismatch(domain.ActionSetDueDate, params)
		}
		taskID, err := resolveTarget(domain.ActionSetDueDate, p.TaskID, "taskId", event)
		if err != nil {
			return err
		}
		var due time.Time
		switch {
		case p.DueDate != nil:
			due = p.DueDate.UTC()
		case p.OffsetDays != nil:
			due = time.Now().UTC().AddDate(0, 0, *p.OffsetDays)
		default:
			return fmt.Errorf("set_due_date: neither dueDate nor offsetDays given")
		}
		if err := tasks.SetDueDate(ctx, taskID, due); err != nil {
			return fmt.Errorf("set_due_date %s: %w", taskID, err)
		}
		return nil
	}
}

// WebhookHandler sends {"event": ...} as JSON to the configured URL.
// Any non-2xx response fails the action.
func WebhookHandler(client *http.Client) Handler {
	if client == nil {
		client = http.DefaultClient
	}
	return func(ctx context.Context, params domain.ActionParams, event map[string]any) error {
		p, ok := params.(domain.WebhookParams)
		if !ok {
			return mismatch(domain.ActionWebhook, params)
		}
		method := p.Method
		if method == "" {
			method = http.MethodPost
		}

		body, err := json.Marshal(map[string]any{"event": event})
		if err != nil {
			return fmt.Errorf("webhook: encoding body: %w", err)
		}

		req, err := http.NewRequestWithContext(ctx, method, p.URL, bytes.NewReader(body))
		if err != nil {
			return fmt.Errorf("webhook: building request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")
		for k, v := range p.Headers {
			req.Header.Set(k, v)
		}

		resp, err := client.Do(req)
		if err != nil {
			return fmt.Errorf("webhook %s %s: %w", method, p.URL, err)
		}
		defer resp.Body.Close()

		if resp.StatusCode < 200 || resp.StatusCode > 299 {
			return fmt.Errorf("webhook %s %s: unexpected status %d", method, p.URL, resp.StatusCode)
		}
		return nil
	}
}

// resolveTarget picks the explicit id from params, falling back to the event context.
func resolveTarget(action domain.ActionType, explicit, key string, event map[string]any) (string, error) {
	if explicit != "" {
		return explicit, nil
	}
	if id := stringField(event, key); id != "" {
		return id, nil
	}
	return "", fmt.Errorf("%w: %s needs %s in params or event context", ErrMissingTarget, action, key)
}

func stringField(event map[string]any, key string) string {
	v, ok := event[key]
	if !ok || v == nil {
		return ""
	}
	return toText(v)
}

func mismatch(want domain.ActionType, got domain.ActionParams) error {
	if got == nil {
		return fmt.Errorf("%w: %s received no params", ErrParamsMismatch, want)
	}
	return fmt.Errorf("%w: %s received %T", ErrParamsMismatch, want, got)
}

var placeholder = regexp.MustCompile(`\{\{\s*([\w.]+)\s*\}\}`)

// Interpolate replaces {{field}} placeholders with values from the event
// context. Unknown fields become empty strings.
func Interpolate(s string, event map[string]any) string {
	if !strings.Contains(s, "{{") {
		return s
	}
	return placeholder.ReplaceAllStringFunc(s, func(m string) string {
		key := placeholder.FindStringSubmatch(m)[1]
		return toText(lookupField(event, key))
	})
}
