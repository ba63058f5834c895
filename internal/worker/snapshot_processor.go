package worker

import "context"

// Flusher writes in-memory state to durable storage.
type Flusher interface {
	Flush(ctx context.Context) error
}

// SnapshotProcessor periodically flushes the in-memory rule and execution
// stores so a crash loses at most one interval of changes.
type SnapshotProcessor struct {
	flusher Flusher
}

func NewSnapshotProcessor(f Flusher) *SnapshotProcessor {
	return &SnapshotProcessor{flusher: f}
}

func (p *SnapshotProcessor) Name() string { return "snapshot" }

func (p *SnapshotProcessor) Process(ctx context.Context) error {
	return p.flusher.Flush(ctx)
}
