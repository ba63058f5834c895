package log

import (
	"context"

	"task-automator-api/internal/domain"

	"github.com/google/uuid"
)

// DefaultLimit is the number of execution records kept across all rules.
const DefaultLimit = 100

// Recorder is the bounded, append-only execution ledger. The newest record
// comes first; once the limit is reached the oldest records are evicted.
type Recorder interface {
	Append(ctx context.Context, rec domain.ExecutionRecord) error
	// List returns all records newest first, or only those of ruleID when it is set.
	List(ctx context.Context, ruleID *uuid.UUID) ([]domain.ExecutionRecord, error)
	Clear(ctx context.Context) error
}

func copyRecord(rec domain.ExecutionRecord) domain.ExecutionRecord {
	rec.Context = domain.CopyContext(rec.Context)
	if rec.Failure != nil {
		f := *rec.Failure
		rec.Failure = &f
	}
	return rec
}
