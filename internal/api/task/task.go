package task

import (
	"context"
	"errors"
	"net/http"
	"sort"
	"time"

	"task-automator-api/internal/api/common"
	"task-automator-api/internal/domain"
	taskstore "task-automator-api/internal/store/task"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// Publisher receives the task events the handlers emit.
type Publisher interface {
	PublishEvent(ctx context.Context, trigger domain.TriggerType, event map[string]any)
}

// CreateRequest is the body of POST /tasks.
type CreateRequest struct {
	Title       string     `json:"title"`
	Description string     `json:"description"`
	Priority    string     `json:"priority"`
	Status      string     `json:"status"`
	AssigneeID  string     `json:"assigneeId"`
	FolderID    string     `json:"folderId"`
	DueDate     *time.Time `json:"dueDate"`
}

type tagRequest struct {
	TagID string `json:"tagId"`
}

func writeStoreError(w http.ResponseWriter, err error, msg string, log *zap.Logger) {
	switch {
	case errors.Is(err, taskstore.ErrTaskNotFound):
		common.WriteJSONError(w, http.StatusNotFound, "task not found", log)
	case errors.Is(err, taskstore.ErrInvalidField):
		common.WriteJSONError(w, http.StatusBadRequest, err.Error(), log)
	default:
		log.Error(msg, zap.Error(err), zap.String("component", "api"))
		common.WriteJSONError(w, http.StatusInternalServerError, msg, log)
	}
}

// HandleCreateTask stores a task and publishes task_created.
func HandleCreateTask(tasks taskstore.Storer, pub Publisher, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req CreateRequest
		if err := common.DecodeJSON(r, &req); err != nil {
			common.WriteJSONError(w, http.StatusBadRequest, "invalid request body: "+err.Error(), log)
			return
		}

		created, err := tasks.CreateTask(r.Context(), domain.Task{
			Title:       req.Title,
			Description: req.Description,
			Priority:    req.Priority,
			Status:      req.Status,
			AssigneeID:  req.AssigneeID,
			FolderID:    req.FolderID,
			DueDate:     req.DueDate,
		})
		if err != nil {
			writeStoreError(w, err, "could not create task", log)
			return
		}

		pub.PublishEvent(r.Context(), domain.TriggerTaskCreated, created.EventContext())
		common.WriteJSON(w, http.StatusCreated, created, log)
	}
}

func HandleGetTasks(tasks taskstore.Storer, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		list, err := tasks.ListTasks(r.Context())
		if err != nil {
			writeStoreError(w, err, "could not list tasks", log)
			return
		}
		if list == nil {
			list = []domain.Task{}
		}
		common.WriteJSON(w, http.StatusOK, list, log)
	}
}

func HandleGetTask(tasks taskstore.Storer, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		t, err := tasks.GetTask(r.Context(), chi.URLParam(r, "taskId"))
		if err != nil {
			writeStoreError(w, err, "could not fetch task", log)
			return
		}
		common.WriteJSON(w, http.StatusOK, t, log)
	}
}

// HandleUpdateTask applies a field map to a task. It publishes task_updated
// for every change, plus task_status_changed, task_completed and
// task_priority_changed when those fields moved.
func HandleUpdateTask(tasks taskstore.Storer, pub Publisher, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "taskId")

		var fields map[string]any
		if err := common.DecodeJSON(r, &fields); err != nil {
			common.WriteJSONError(w, http.StatusBadRequest, "invalid request body: "+err.Error(), log)
			return
		}

		before, err := tasks.GetTask(r.Context(), id)
		if err != nil {
			writeStoreError(w, err, "could not fetch task", log)
			return
		}
		if err := tasks.UpdateTask(r.Context(), id, fields); err != nil {
			writeStoreError(w, err, "could not update task", log)
			return
		}
		after, err := tasks.GetTask(r.Context(), id)
		if err != nil {
			writeStoreError(w, err, "could not fetch task", log)
			return
		}

		for _, evt := range changeEvents(before, after, fields) {
			pub.PublishEvent(r.Context(), evt.trigger, evt.context)
		}
		common.WriteJSON(w, http.StatusOK, after, log)
	}
}

// HandleAddTag attaches a tag and publishes tag_added when the tag is new.
func HandleAddTag(tasks taskstore.Storer, pub Publisher, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "taskId")

		var req tagRequest
		if err := common.DecodeJSON(r, &req); err != nil || req.TagID == "" {
			common.WriteJSONError(w, http.StatusBadRequest, "tagId is required", log)
			return
		}

		before, err := tasks.GetTask(r.Context(), id)
		if err != nil {
			writeStoreError(w, err, "could not fetch task", log)
			return
		}
		if err := tasks.AddTag(r.Context(), id, req.TagID); err != nil {
			writeStoreError(w, err, "could not add tag", log)
			return
		}
		after, err := tasks.GetTask(r.Context(), id)
		if err != nil {
			writeStoreError(w, err, "could not fetch task", log)
			return
		}

		if !hasTag(before, req.TagID) {
			evt := after.EventContext()
			evt["tagId"] = req.TagID
			pub.PublishEvent(r.Context(), domain.TriggerTagAdded, evt)
		}
		common.WriteJSON(w, http.StatusOK, after, log)
	}
}

type taskEvent struct {
	trigger domain.TriggerType
	context map[string]any
}

func changeEvents(before, after domain.Task, fields map[string]any) []taskEvent {
	changed := make([]any, 0, len(fields))
	names := make([]string, 0, len(fields))
	for f := range fields {
		names = append(names, f)
	}
	sort.Strings(names)
	for _, f := range names {
		changed = append(changed, f)
	}

	updated := after.EventContext()
	updated["changedFields"] = changed
	events := []taskEvent{{domain.TriggerTaskUpdated, updated}}

	if before.Status != after.Status {
		evt := after.EventContext()
		evt["previousStatus"] = before.Status
		events = append(events, taskEvent{domain.TriggerTaskStatusChanged, evt})
		if after.Status == domain.StatusDone {
			events = append(events, taskEvent{domain.TriggerTaskCompleted, after.EventContext()})
		}
	}
	if before.Priority != after.Priority {
		evt := after.EventContext()
		evt["previousPriority"] = before.Priority
		events = append(events, taskEvent{domain.TriggerTaskPriorityChanged, evt})
	}
	return events
}

func hasTag(t domain.Task, tagID string) bool {
	for _, tag := range t.Tags {
		if tag == tagID {
			return true
		}
	}
	return false
}
