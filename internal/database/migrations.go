package database

import (
	"context"

	"task-automator-api/db/migrations"

	"go.uber.org/zap"
)

// RunMigrations applies the embedded schema when enabled is true. Every
// statement is idempotent, so it is safe to run on each start.
func RunMigrations(ctx context.Context, db Querier, log *zap.Logger, enabled bool) error {
	if !enabled {
		log.Info("skipping migrations (RUN_MIGRATIONS is not 'true')", zap.String("component", "migrations"))
		return nil
	}

	log.Info("running database migrations", zap.String("component", "migrations"))

	migrationSteps := []struct {
		name  string
		query string
	}{
		{"automation schema", migrations.AutomationSchemaUp},
		{"task schema", migrations.TaskSchemaUp},
	}

	for _, step := range migrationSteps {
		if _, err := db.Exec(ctx, step.query); err != nil {
			log.Error(step.name+" migration failed", zap.Error(err))
			return err
		}
		log.Info(step.name+" migration applied successfully", zap.String("component", "migrations"))
	}

	log.Info("all database migrations applied successfully", zap.String("component", "migrations"))
	return nil
}
