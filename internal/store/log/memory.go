package log

import (
	"context"
	"sync"

	"task-automator-api/internal/domain"

	"github.com/google/uuid"
)

// MemoryRecorder keeps the ledger in a slice ordered newest first.
type MemoryRecorder struct {
	mu      sync.Mutex
	limit   int
	records []domain.ExecutionRecord
}

// NewMemoryRecorder creates an empty ledger. A non-positive limit uses DefaultLimit.
func NewMemoryRecorder(limit int) *MemoryRecorder {
	if limit <= 0 {
		limit = DefaultLimit
	}
	return &MemoryRecorder{limit: limit}
}

// Append adds rec at the front and evicts from the tail in the same critical section.
func (m *MemoryRecorder) Append(ctx context.Context, rec domain.ExecutionRecord) error {
	rec = copyRecord(rec)

	m.mu.Lock()
	defer m.mu.Unlock()

	m.records = append(m.records, domain.ExecutionRecord{})
	copy(m.records[1:], m.records)
	m.records[0] = rec
	if len(m.records) > m.limit {
		clear(m.records[m.limit:])
		m.records = m.records[:m.limit]
	}
	return nil
}

func (m *MemoryRecorder) List(ctx context.Context, ruleID *uuid.UUID) ([]domain.ExecutionRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]domain.ExecutionRecord, 0, len(m.records))
	for _, rec := range m.records {
		if ruleID != nil && rec.RuleID != *ruleID {
			continue
		}
		out = append(out, copyRecord(rec))
	}
	return out, nil
}

func (m *MemoryRecorder) Clear(ctx context.Context) error {
	m.mu.Lock()
	m.records = nil
	m.mu.Unlock()
	return nil
}

// Limit returns the maximum number of records kept.
func (m *MemoryRecorder) Limit() int {
	return m.limit
}

// Snapshot returns every record, newest first.
func (m *MemoryRecorder) Snapshot() []domain.ExecutionRecord {
	out, _ := m.List(context.Background(), nil)
	return out
}

// Restore replaces the ledger with records (newest first), trimmed to the limit.
func (m *MemoryRecorder) Restore(records []domain.ExecutionRecord) {
	n := len(records)
	if n > m.limit {
		n = m.limit
	}
	restored := make([]domain.ExecutionRecord, n)
	for i := 0; i < n; i++ {
		restored[i] = copyRecord(records[i])
	}
	m.mu.Lock()
	m.records = restored
	m.mu.Unlock()
}
