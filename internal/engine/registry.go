package engine

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"task-automator-api/internal/domain"
)

// Handler performs one action against external stores. The event map is the
// context of the event that fired the rule; handlers must not modify it.
type Handler func(ctx context.Context, params domain.ActionParams, event map[string]any) error

// ActionRegistry maps action types to handlers. It is safe for concurrent use.
type ActionRegistry struct {
	mu       sync.RWMutex
	handlers map[domain.ActionType]Handler
}

// NewActionRegistry creates an empty registry.
func NewActionRegistry() *ActionRegistry {
	return &ActionRegistry{handlers: make(map[domain.ActionType]Handler)}
}

// Register binds h to an action type, replacing any previous handler.
func (r *ActionRegistry) Register(t domain.ActionType, h Handler) error {
	if !t.Valid() {
		return fmt.Errorf("%w: %q", ErrUnknownActionType, t)
	}
	if h == nil {
		return fmt.Errorf("nil handler for %q", t)
	}
	r.mu.Lock()
	r.handlers[t] = h
	r.mu.Unlock()
	return nil
}

// Lookup returns the handler for t.
func (r *ActionRegistry) Lookup(t domain.ActionType) (Handler, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	h, ok := r.handlers[t]
	return h, ok
}

// Types returns the registered action types in sorted order.
func (r *ActionRegistry) Types() []domain.ActionType {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]domain.ActionType, 0, len(r.handlers))
	for t := range r.handlers {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
