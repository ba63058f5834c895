package store

import (
	"task-automator-api/internal/database"
	logstore "task-automator-api/internal/store/log"
	"task-automator-api/internal/store/rule"
	"task-automator-api/internal/store/snapshot"
	"task-automator-api/internal/store/task"

	"go.uber.org/zap"
)

// Stores groups the persistence the engine and its collaborators use.
type Stores struct {
	Rules      rule.RuleStorer
	Executions logstore.Recorder
	Tasks      task.Storer

	// Set only when the stores live in memory.
	memRules *rule.MemoryStore
	memLog   *logstore.MemoryRecorder
}

// NewPostgresStores backs every store with the database.
func NewPostgresStores(db database.DB, logLimit int) *Stores {
	return &Stores{
		Rules:      rule.NewPostgresStore(db),
		Executions: logstore.NewPostgresRecorder(db, logLimit),
		Tasks:      task.NewPostgresStore(db),
	}
}

// NewMemoryStores creates empty in-process stores.
func NewMemoryStores(logLimit int) *Stores {
	rules := rule.NewMemoryStore()
	recorder := logstore.NewMemoryRecorder(logLimit)
	return &Stores{
		Rules:      rules,
		Executions: recorder,
		Tasks:      task.NewMemoryStore(),
		memRules:   rules,
		memLog:     recorder,
	}
}

// InMemory reports whether rules and executions live in process memory.
func (s *Stores) InMemory() bool {
	return s.memRules != nil
}

// Persister returns a snapshot persister for in-memory stores. Postgres
// stores are durable already, so it returns nil for them.
func (s *Stores) Persister(backend snapshot.Backend, logger *zap.Logger) *snapshot.Persister {
	if !s.InMemory() || backend == nil {
		return nil
	}
	return snapshot.NewPersister(backend, s.memRules, s.memLog, logger)
}
