package snapshot

import (
	"context"
	"errors"
	"fmt"

	"task-automator-api/internal/domain"
	logstore "task-automator-api/internal/store/log"
	"task-automator-api/internal/store/rule"

	"go.uber.org/zap"
)

// Snapshot is the persisted representation of the engine state: two
// collections serialized as JSON arrays with RFC 3339 timestamps.
type Snapshot struct {
	Rules      []domain.AutomationRule  `json:"rules"`
	Executions []domain.ExecutionRecord `json:"executions"`
}

// ErrNoSnapshot is returned by Load when nothing has been saved yet.
var ErrNoSnapshot = errors.New("snapshot: nothing saved")

// Backend stores and loads a Snapshot.
type Backend interface {
	Load(ctx context.Context) (Snapshot, error)
	Save(ctx context.Context, s Snapshot) error
}

// Persister moves state between the in-memory stores and a Backend.
type Persister struct {
	backend  Backend
	rules    *rule.MemoryStore
	recorder *logstore.MemoryRecorder
	logger   *zap.Logger
}

// NewPersister creates a persister for the given in-memory stores.
func NewPersister(backend Backend, rules *rule.MemoryStore, recorder *logstore.MemoryRecorder, logger *zap.Logger) *Persister {
	return &Persister{
		backend:  backend,
		rules:    rules,
		recorder: recorder,
		logger:   logger.With(zap.String("component", "snapshot")),
	}
}

// Restore loads the last snapshot into the stores. A missing snapshot leaves
// them empty and is not an error.
func (p *Persister) Restore(ctx context.Context) error {
	s, err := p.backend.Load(ctx)
	if errors.Is(err, ErrNoSnapshot) {
		p.logger.Info("no snapshot found, starting empty")
		return nil
	}
	if err != nil {
		return fmt.Errorf("loading snapshot: %w", err)
	}

	p.rules.Restore(s.Rules)
	p.recorder.Restore(s.Executions)
	p.logger.Info("snapshot restored",
		zap.Int("rules", len(s.Rules)),
		zap.Int("executions", len(s.Executions)),
	)
	return nil
}

// Flush writes the current state of the stores to the backend.
func (p *Persister) Flush(ctx context.Context) error {
	s := Snapshot{
		Rules:      p.rules.Snapshot(),
		Executions: p.recorder.Snapshot(),
	}
	if err := p.backend.Save(ctx, s); err != nil {
		return fmt.Errorf("saving snapshot: %w", err)
	}
	p.logger.Debug("snapshot flushed",
		zap.Int("rules", len(s.Rules)),
		zap.Int("executions", len(s.Executions)),
	)
	return nil
}
