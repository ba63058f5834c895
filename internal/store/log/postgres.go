package log

import (
	"context"
	"encoding/json"
	"fmt"

	"task-automator-api/internal/database"
	"task-automator-api/internal/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// appendLockKey serializes appends across every process sharing the table.
const appendLockKey int64 = 0x6175746f6d6174 // "automat"

const executionColumns = `id, rule_id, rule_name, trigger_type, timestamp, success, error, failure,
           actions_run, actions_noop, actions_skipped, duration_ms, context`

// PostgresRecorder keeps the ledger in automation_executions. The bigserial
// seq column defines insertion order; appends trim the table in the same
// transaction.
type PostgresRecorder struct {
	db    database.DB
	limit int
}

// NewPostgresRecorder creates a recorder. A non-positive limit uses DefaultLimit.
func NewPostgresRecorder(db database.DB, limit int) *PostgresRecorder {
	if limit <= 0 {
		limit = DefaultLimit
	}
	return &PostgresRecorder{db: db, limit: limit}
}

func (s *PostgresRecorder) Append(ctx context.Context, rec domain.ExecutionRecord) (err error) {
	evt, err := json.Marshal(domain.CopyContext(rec.Context))
	if err != nil {
		return fmt.Errorf("encoding execution context: %w", err)
	}
	var failure []byte
	if rec.Failure != nil {
		if failure, err = json.Marshal(rec.Failure); err != nil {
			return fmt.Errorf("encoding execution failure: %w", err)
		}
	}

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin append: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	if _, err = tx.Exec(ctx, `SELECT pg_advisory_xact_lock($1);`, appendLockKey); err != nil {
		return fmt.Errorf("locking execution log: %w", err)
	}

	insert := `
    INSERT INTO automation_executions (
        id, rule_id, rule_name, trigger_type, timestamp, success, error, failure,
        actions_run, actions_noop, actions_skipped, duration_ms, context
    ) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13);`
	if _, err = tx.Exec(ctx, insert,
		rec.ID, rec.RuleID, rec.RuleName, string(rec.TriggerType), rec.Timestamp.UTC(),
		rec.Success, rec.Error, failure,
		rec.ActionsRun, rec.ActionsNoop, rec.ActionsSkipped, rec.DurationMS, evt,
	); err != nil {
		return fmt.Errorf("inserting execution record: %w", err)
	}

	trim := `
    DELETE FROM automation_executions
    WHERE seq <= (
        SELECT seq FROM automation_executions ORDER BY seq DESC OFFSET $1 LIMIT 1
    );`
	if _, err = tx.Exec(ctx, trim, s.limit); err != nil {
		return fmt.Errorf("trimming execution log: %w", err)
	}

	if err = tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit append: %w", err)
	}
	return nil
}

func (s *PostgresRecorder) List(ctx context.Context, ruleID *uuid.UUID) ([]domain.ExecutionRecord, error) {
	var (
		rows pgx.Rows
		err  error
	)
	if ruleID != nil {
		rows, err = s.db.Query(ctx, `
    SELECT `+executionColumns+`
    FROM automation_executions
    WHERE rule_id = $1
    ORDER BY seq DESC;`, *ruleID)
	} else {
		rows, err = s.db.Query(ctx, `
    SELECT `+executionColumns+`
    FROM automation_executions
    ORDER BY seq DESC;`)
	}
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	records := []domain.ExecutionRecord{}
	for rows.Next() {
		var (
			rec          domain.ExecutionRecord
			trigger      string
			failure, evt []byte
		)
		if err := rows.Scan(
			&rec.ID, &rec.RuleID, &rec.RuleName, &trigger, &rec.Timestamp,
			&rec.Success, &rec.Error, &failure,
			&rec.ActionsRun, &rec.ActionsNoop, &rec.ActionsSkipped, &rec.DurationMS, &evt,
		); err != nil {
			return nil, err
		}
		rec.TriggerType = domain.TriggerType(trigger)
		rec.Timestamp = rec.Timestamp.UTC()
		if len(failure) > 0 {
			rec.Failure = &domain.ActionFailure{}
			if err := json.Unmarshal(failure, rec.Failure); err != nil {
				return nil, fmt.Errorf("decoding failure of execution %s: %w", rec.ID, err)
			}
		}
		if len(evt) > 0 {
			if err := json.Unmarshal(evt, &rec.Context); err != nil {
				return nil, fmt.Errorf("decoding context of execution %s: %w", rec.ID, err)
			}
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return records, nil
}

func (s *PostgresRecorder) Clear(ctx context.Context) error {
	_, err := s.db.Exec(ctx, `DELETE FROM automation_executions;`)
	return err
}
