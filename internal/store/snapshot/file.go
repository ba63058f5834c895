package snapshot

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"task-automator-api/internal/domain"
)

// FileBackend keeps the snapshot in one JSON file. Saves go through a
// temporary file and a rename, so a crash never leaves a half-written file.
type FileBackend struct {
	path string
}

// NewFileBackend creates a backend writing to path.
func NewFileBackend(path string) *FileBackend {
	return &FileBackend{path: path}
}

func (b *FileBackend) Load(ctx context.Context) (Snapshot, error) {
	data, err := os.ReadFile(b.path)
	if errors.Is(err, fs.ErrNotExist) {
		return Snapshot{}, ErrNoSnapshot
	}
	if err != nil {
		return Snapshot{}, err
	}

	var s Snapshot
	if err := json.Unmarshal(data, &s); err != nil {
		return Snapshot{}, fmt.Errorf("decoding %s: %w", b.path, err)
	}
	return s, nil
}

func (b *FileBackend) Save(ctx context.Context, s Snapshot) error {
	data, err := json.MarshalIndent(normalize(s), "", "  ")
	if err != nil {
		return fmt.Errorf("encoding snapshot: %w", err)
	}

	dir := filepath.Dir(b.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, ".snapshot-*.json")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), b.path)
}

// normalize writes empty collections as [] rather than null.
func normalize(s Snapshot) Snapshot {
	if s.Rules == nil {
		s.Rules = []domain.AutomationRule{}
	}
	if s.Executions == nil {
		s.Executions = []domain.ExecutionRecord{}
	}
	return s
}
