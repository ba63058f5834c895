package rule

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"task-automator-api/internal/database"
	"task-automator-api/internal/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const ruleColumns = `id, name, description, enabled, trigger, conditions, actions,
           last_run, run_count, created_at, updated_at`

// PostgresStore keeps rules in the automation_rules table. Trigger,
// conditions and actions are stored as JSONB.
type PostgresStore struct {
	db database.DB
}

// NewPostgresStore creates a rule store on top of a pool (or a pgxmock pool in tests).
func NewPostgresStore(db database.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// scanRule scans a database row into an AutomationRule
func scanRule(row pgx.Row) (domain.AutomationRule, error) {
	var (
		r                       domain.AutomationRule
		trigger, conds, actions []byte
		lastRun                 *time.Time
	)
	err := row.Scan(
		&r.ID,
		&r.Name,
		&r.Description,
		&r.Enabled,
		&trigger,
		&conds,
		&actions,
		&lastRun,
		&r.RunCount,
		&r.CreatedAt,
		&r.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.AutomationRule{}, ErrRuleNotFound
		}
		return domain.AutomationRule{}, err
	}

	if err := json.Unmarshal(trigger, &r.Trigger); err != nil {
		return domain.AutomationRule{}, fmt.Errorf("decoding trigger of rule %s: %w", r.ID, err)
	}
	if len(conds) > 0 {
		if err := json.Unmarshal(conds, &r.Conditions); err != nil {
			return domain.AutomationRule{}, fmt.Errorf("decoding conditions of rule %s: %w", r.ID, err)
		}
	}
	if len(actions) > 0 {
		if err := json.Unmarshal(actions, &r.Actions); err != nil {
			return domain.AutomationRule{}, fmt.Errorf("decoding actions of rule %s: %w", r.ID, err)
		}
	}
	if lastRun != nil {
		t := lastRun.UTC()
		r.LastRun = &t
	}
	r.CreatedAt = r.CreatedAt.UTC()
	r.UpdatedAt = r.UpdatedAt.UTC()
	return r, nil
}

func scanRules(rows pgx.Rows) ([]domain.AutomationRule, error) {
	defer rows.Close()

	rules := []domain.AutomationRule{}
	for rows.Next() {
		r, err := scanRule(rows)
		if err != nil {
			return nil, err
		}
		rules = append(rules, r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return rules, nil
}

// specJSON encodes the JSONB columns of a spec.
func specJSON(s domain.RuleSpec) (trigger, conds, actions []byte, err error) {
	if trigger, err = json.Marshal(s.Trigger); err != nil {
		return nil, nil, nil, fmt.Errorf("encoding trigger: %w", err)
	}
	c := s.Conditions
	if c == nil {
		c = []domain.TriggerCondition{}
	}
	if conds, err = json.Marshal(c); err != nil {
		return nil, nil, nil, fmt.Errorf("encoding conditions: %w", err)
	}
	a := s.Actions
	if a == nil {
		a = []domain.ActionSpec{}
	}
	if actions, err = json.Marshal(a); err != nil {
		return nil, nil, nil, fmt.Errorf("encoding actions: %w", err)
	}
	return trigger, conds, actions, nil
}

func (s *PostgresStore) Create(ctx context.Context, spec domain.RuleSpec) (domain.AutomationRule, error) {
	if err := domain.ValidateRuleSpec(spec); err != nil {
		return domain.AutomationRule{}, err
	}
	id, err := newRuleID()
	if err != nil {
		return domain.AutomationRule{}, fmt.Errorf("generating rule id: %w", err)
	}
	trigger, conds, actions, err := specJSON(spec)
	if err != nil {
		return domain.AutomationRule{}, err
	}

	query := `
    INSERT INTO automation_rules (
        id, name, description, enabled, trigger, conditions, actions
    ) VALUES (
        $1, $2, $3, $4, $5, $6, $7
    )
    RETURNING ` + ruleColumns + `;`

	row := s.db.QueryRow(ctx, query,
		id, spec.Name, spec.Description, spec.Enabled, trigger, conds, actions,
	)
	return scanRule(row)
}

func (s *PostgresStore) Get(ctx context.Context, id uuid.UUID) (domain.AutomationRule, error) {
	query := `SELECT ` + ruleColumns + ` FROM automation_rules WHERE id = $1;`
	return scanRule(s.db.QueryRow(ctx, query, id))
}

func (s *PostgresStore) List(ctx context.Context) ([]domain.AutomationRule, error) {
	query := `SELECT ` + ruleColumns + ` FROM automation_rules ORDER BY created_at ASC, id ASC;`
	rows, err := s.db.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	return scanRules(rows)
}

func (s *PostgresStore) ListEnabledByTrigger(ctx context.Context, trigger domain.TriggerType) ([]domain.AutomationRule, error) {
	query := `
    SELECT ` + ruleColumns + `
    FROM automation_rules
    WHERE enabled AND trigger->>'type' = $1
    ORDER BY created_at ASC, id ASC;`
	rows, err := s.db.Query(ctx, query, string(trigger))
	if err != nil {
		return nil, err
	}
	return scanRules(rows)
}

// Update locks the row, merges the patch in Go and writes the whole spec back.
func (s *PostgresStore) Update(ctx context.Context, id uuid.UUID, patch domain.RulePatch) (_ domain.AutomationRule, err error) {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return domain.AutomationRule{}, fmt.Errorf("begin update: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	current, err := scanRule(tx.QueryRow(ctx,
		`SELECT `+ruleColumns+` FROM automation_rules WHERE id = $1 FOR UPDATE;`, id))
	if err != nil {
		return domain.AutomationRule{}, err
	}

	merged := patch.Apply(current.RuleSpec)
	if err = domain.ValidateRuleSpec(merged); err != nil {
		return domain.AutomationRule{}, err
	}
	trigger, conds, actions, err := specJSON(merged)
	if err != nil {
		return domain.AutomationRule{}, err
	}

	query := `
    UPDATE automation_rules
    SET name = $1, description = $2, enabled = $3, trigger = $4, conditions = $5, actions = $6,
        updated_at = GREATEST(now(), created_at)
    WHERE id = $7
    RETURNING ` + ruleColumns + `;`
	updated, err := scanRule(tx.QueryRow(ctx, query,
		merged.Name, merged.Description, merged.Enabled, trigger, conds, actions, id,
	))
	if err != nil {
		return domain.AutomationRule{}, err
	}

	if err = tx.Commit(ctx); err != nil {
		return domain.AutomationRule{}, fmt.Errorf("commit update: %w", err)
	}
	return updated, nil
}

func (s *PostgresStore) Toggle(ctx context.Context, id uuid.UUID) (domain.AutomationRule, error) {
	query := `
    UPDATE automation_rules
    SET enabled = NOT enabled, updated_at = GREATEST(now(), created_at)
    WHERE id = $1
    RETURNING ` + ruleColumns + `;`
	return scanRule(s.db.QueryRow(ctx, query, id))
}

func (s *PostgresStore) Delete(ctx context.Context, id uuid.UUID) error {
	cmdTag, err := s.db.Exec(ctx, `DELETE FROM automation_rules WHERE id = $1;`, id)
	if err != nil {
		return err
	}
	if cmdTag.RowsAffected() == 0 {
		return ErrRuleNotFound
	}
	return nil
}

func (s *PostgresStore) RecordRun(ctx context.Context, id uuid.UUID, success bool, at time.Time) error {
	query := `
    UPDATE automation_rules
    SET last_run = $2, run_count = run_count + CASE WHEN $3::boolean THEN 1 ELSE 0 END
    WHERE id = $1;`
	cmdTag, err := s.db.Exec(ctx, query, id, at.UTC(), success)
	if err != nil {
		return err
	}
	if cmdTag.RowsAffected() == 0 {
		return ErrRuleNotFound
	}
	return nil
}
