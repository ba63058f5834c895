package task

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"task-automator-api/internal/database"
	"task-automator-api/internal/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// foreignKeyViolation is the Postgres error code raised when a tag targets a missing task.
const foreignKeyViolation = "23503"

const taskSelect = `
    SELECT t.id, t.title, t.description, t.priority, t.status, t.assignee_id, t.folder_id,
           t.due_date, t.created_at, t.updated_at,
           COALESCE(array_agg(tt.tag_id ORDER BY tt.tag_id) FILTER (WHERE tt.tag_id IS NOT NULL), '{}') AS tags
    FROM tasks t
    LEFT JOIN task_tags tt ON tt.task_id = t.id`

// PostgresStore keeps tasks in the tasks table and tags in task_tags.
type PostgresStore struct {
	db database.DB
}

// NewPostgresStore creates a task store.
func NewPostgresStore(db database.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func scanTask(row pgx.Row) (domain.Task, error) {
	var t domain.Task
	err := row.Scan(
		&t.ID, &t.Title, &t.Description, &t.Priority, &t.Status, &t.AssigneeID, &t.FolderID,
		&t.DueDate, &t.CreatedAt, &t.UpdatedAt, &t.Tags,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Task{}, ErrTaskNotFound
		}
		return domain.Task{}, err
	}
	if t.DueDate != nil {
		d := t.DueDate.UTC()
		t.DueDate = &d
	}
	t.CreatedAt = t.CreatedAt.UTC()
	t.UpdatedAt = t.UpdatedAt.UTC()
	return t, nil
}

func (s *PostgresStore) queryTasks(ctx context.Context, query string, args ...any) ([]domain.Task, error) {
	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	tasks := []domain.Task{}
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, t)
	}
	return tasks, rows.Err()
}

func (s *PostgresStore) CreateTask(ctx context.Context, t domain.Task) (domain.Task, error) {
	if t.Title == "" {
		return domain.Task{}, fmt.Errorf("%w: title cannot be empty", ErrInvalidField)
	}
	if t.Priority == "" {
		t.Priority = domain.PriorityMedium
	}
	if !validPriority(t.Priority) {
		return domain.Task{}, fmt.Errorf("%w: unknown priority %q", ErrInvalidField, t.Priority)
	}
	if t.Status == "" {
		t.Status = domain.StatusTodo
	}
	if t.ID == "" {
		t.ID = uuid.NewString()
	}

	query := `
    INSERT INTO tasks (id, title, description, priority, status, assignee_id, folder_id, due_date)
    VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
    RETURNING created_at, updated_at;`
	err := s.db.QueryRow(ctx, query,
		t.ID, t.Title, t.Description, t.Priority, t.Status, t.AssigneeID, t.FolderID, t.DueDate,
	).Scan(&t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return domain.Task{}, fmt.Errorf("inserting task: %w", err)
	}
	t.CreatedAt = t.CreatedAt.UTC()
	t.UpdatedAt = t.UpdatedAt.UTC()
	t.Tags = nil
	return t, nil
}

func (s *PostgresStore) GetTask(ctx context.Context, id string) (domain.Task, error) {
	return scanTask(s.db.QueryRow(ctx, taskSelect+`
    WHERE t.id = $1
    GROUP BY t.id;`, id))
}

func (s *PostgresStore) ListTasks(ctx context.Context) ([]domain.Task, error) {
	return s.queryTasks(ctx, taskSelect+`
    GROUP BY t.id
    ORDER BY t.created_at ASC, t.id ASC;`)
}

func (s *PostgresStore) ListTasksDueBetween(ctx context.Context, from, to time.Time) ([]domain.Task, error) {
	return s.queryTasks(ctx, taskSelect+`
    WHERE t.due_date >= $1 AND t.due_date < $2
    GROUP BY t.id
    ORDER BY t.due_date ASC, t.id ASC;`, from.UTC(), to.UTC())
}

func (s *PostgresStore) UpdateTask(ctx context.Context, id string, fields map[string]any) error {
	updates, err := normalizeFields(fields)
	if err != nil {
		return err
	}

	sets := make([]string, 0, len(updates))
	args := make([]any, 0, len(updates)+1)
	for i, u := range updates {
		sets = append(sets, fmt.Sprintf("%s = $%d", u.column, i+1))
		args = append(args, u.value)
	}
	args = append(args, id)
	query := fmt.Sprintf("UPDATE tasks SET %s, updated_at = now() WHERE id = $%d;",
		strings.Join(sets, ", "), len(args))

	return s.execOne(ctx, id, query, args...)
}

func (s *PostgresStore) SetPriority(ctx context.Context, id, priority string) error {
	if !validPriority(priority) {
		return fmt.Errorf("%w: unknown priority %q", ErrInvalidField, priority)
	}
	return s.execOne(ctx, id, `UPDATE tasks SET priority = $2, updated_at = now() WHERE id = $1;`, id, priority)
}

func (s *PostgresStore) AssignTask(ctx context.Context, id, userID string) error {
	return s.execOne(ctx, id, `UPDATE tasks SET assignee_id = $2, updated_at = now() WHERE id = $1;`, id, userID)
}

func (s *PostgresStore) SetDueDate(ctx context.Context, id string, due time.Time) error {
	return s.execOne(ctx, id, `UPDATE tasks SET due_date = $2, updated_at = now() WHERE id = $1;`, id, due.UTC())
}

// AddTag attaches tagID to the task. Adding a tag twice is a no-op.
func (s *PostgresStore) AddTag(ctx context.Context, id, tagID string) error {
	_, err := s.db.Exec(ctx, `
    INSERT INTO task_tags (task_id, tag_id) VALUES ($1, $2)
    ON CONFLICT DO NOTHING;`, id, tagID)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == foreignKeyViolation {
			return fmt.Errorf("%w: %s", ErrTaskNotFound, id)
		}
		return err
	}
	return nil
}

func (s *PostgresStore) execOne(ctx context.Context, id, query string, args ...any) error {
	cmdTag, err := s.db.Exec(ctx, query, args...)
	if err != nil {
		return err
	}
	if cmdTag.RowsAffected() == 0 {
		return fmt.Errorf("%w: %s", ErrTaskNotFound, id)
	}
	return nil
}
