package notify

import (
	"context"
	"sync"

	"task-automator-api/internal/domain"
)

// MemoryNotifier keeps delivered notifications in memory. It backs the
// send_notification action when no broker is configured.
type MemoryNotifier struct {
	mu   sync.Mutex
	sent []domain.Notification
}

// NewMemoryNotifier creates an empty notifier.
func NewMemoryNotifier() *MemoryNotifier {
	return &MemoryNotifier{}
}

func (m *MemoryNotifier) Notify(ctx context.Context, n domain.Notification) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	m.sent = append(m.sent, n)
	m.mu.Unlock()
	return nil
}

// Sent returns the notifications delivered so far, oldest first.
func (m *MemoryNotifier) Sent() []domain.Notification {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]domain.Notification(nil), m.sent...)
}
