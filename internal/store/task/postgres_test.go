package task

import (
	"context"
	"testing"
	"time"

	"task-automator-api/internal/domain"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pashagolub/pgxmock/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTaskStore(t *testing.T) (*PostgresStore, pgxmock.PgxPoolIface) {
	t.Helper()
	mockPool, err := pgxmock.NewPool()
	require.NoError(t, err)
	return NewPostgresStore(mockPool), mockPool
}

var taskColumns = []string{
	"id", "title", "description", "priority", "status", "assignee_id", "folder_id",
	"due_date", "created_at", "updated_at", "tags",
}

func TestPostgresStore_CreateTask(t *testing.T) {
	store, mockPool := setupTaskStore(t)
	defer mockPool.Close()

	now := time.Date(2025, 1, 1, 8, 0, 0, 0, time.UTC)
	mockPool.ExpectQuery("INSERT INTO tasks").
		WithArgs("t1", "Follow up", "", domain.PriorityMedium, "TODO", "", "", (*time.Time)(nil)).
		WillReturnRows(pgxmock.NewRows([]string{"created_at", "updated_at"}).AddRow(now, now))

	task, err := store.CreateTask(context.Background(), domain.Task{ID: "t1", Title: "Follow up"})

	require.NoError(t, err)
	assert.Equal(t, now, task.CreatedAt)
	assert.Equal(t, domain.PriorityMedium, task.Priority)
	assert.NoError(t, mockPool.ExpectationsWereMet())
}

func TestPostgresStore_GetTask(t *testing.T) {
	store, mockPool := setupTaskStore(t)
	defer mockPool.Close()

	now := time.Date(2025, 1, 1, 8, 0, 0, 0, time.UTC)
	mockPool.ExpectQuery("FROM tasks t LEFT JOIN task_tags tt").
		WithArgs("t1").
		WillReturnRows(pgxmock.NewRows(taskColumns).AddRow(
			"t1", "Follow up", "", "HIGH", "TODO", "", "", (*time.Time)(nil), now, now, []string{"urgent"},
		))

	task, err := store.GetTask(context.Background(), "t1")

	require.NoError(t, err)
	assert.Equal(t, "HIGH", task.Priority)
	assert.Equal(t, []string{"urgent"}, task.Tags)
	assert.Nil(t, task.DueDate)
	assert.NoError(t, mockPool.ExpectationsWereMet())
}

func TestPostgresStore_GetTask_NotFound(t *testing.T) {
	store, mockPool := setupTaskStore(t)
	defer mockPool.Close()

	mockPool.ExpectQuery("FROM tasks t").WithArgs("nope").WillReturnError(pgx.ErrNoRows)

	_, err := store.GetTask(context.Background(), "nope")

	assert.ErrorIs(t, err, ErrTaskNotFound)
}

func TestPostgresStore_UpdateTask_BuildsOrderedSetClause(t *testing.T) {
	store, mockPool := setupTaskStore(t)
	defer mockPool.Close()

	mockPool.ExpectExec(`UPDATE tasks SET priority = \$1, status = \$2, updated_at = now\(\) WHERE id = \$3`).
		WithArgs("HIGH", "DONE", "t1").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	err := store.UpdateTask(context.Background(), "t1", map[string]any{"status": "DONE", "priority": "HIGH"})

	assert.NoError(t, err)
	assert.NoError(t, mockPool.ExpectationsWereMet())
}

func TestPostgresStore_SetPriority_NotFound(t *testing.T) {
	store, mockPool := setupTaskStore(t)
	defer mockPool.Close()

	mockPool.ExpectExec("UPDATE tasks SET priority").
		WithArgs("t9", "LOW").
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	err := store.SetPriority(context.Background(), "t9", "LOW")

	assert.ErrorIs(t, err, ErrTaskNotFound)
	assert.NoError(t, mockPool.ExpectationsWereMet())
}

func TestPostgresStore_AddTag(t *testing.T) {
	t.Run("Success", func(t *testing.T) {
		store, mockPool := setupTaskStore(t)
		defer mockPool.Close()

		mockPool.ExpectExec("INSERT INTO task_tags").
			WithArgs("t1", "urgent").
			WillReturnResult(pgxmock.NewResult("INSERT", 1))

		assert.NoError(t, store.AddTag(context.Background(), "t1", "urgent"))
		assert.NoError(t, mockPool.ExpectationsWereMet())
	})

	t.Run("Missing task", func(t *testing.T) {
		store, mockPool := setupTaskStore(t)
		defer mockPool.Close()

		mockPool.ExpectExec("INSERT INTO task_tags").
			WithArgs("t404", "urgent").
			WillReturnError(&pgconn.PgError{Code: foreignKeyViolation})

		assert.ErrorIs(t, store.AddTag(context.Background(), "t404", "urgent"), ErrTaskNotFound)
	})
}

func TestPostgresStore_ListTasksDueBetween(t *testing.T) {
	store, mockPool := setupTaskStore(t)
	defer mockPool.Close()

	from := time.Date(2025, 1, 1, 8, 0, 0, 0, time.UTC)
	to := from.Add(24 * time.Hour)
	due := from.Add(time.Hour)

	mockPool.ExpectQuery(`WHERE t.due_date >= \$1 AND t.due_date < \$2`).
		WithArgs(from, to).
		WillReturnRows(pgxmock.NewRows(taskColumns).AddRow(
			"t1", "Follow up", "", "HIGH", "TODO", "", "", &due, from, from, []string{},
		))

	tasks, err := store.ListTasksDueBetween(context.Background(), from, to)

	require.NoError(t, err)
	require.Len(t, tasks, 1)
	assert.Equal(t, due, *tasks[0].DueDate)
	assert.NoError(t, mockPool.ExpectationsWereMet())
}
