package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"task-automator-api/internal/domain"

	"go.uber.org/zap"
)

// DefaultActionTimeout bounds a single handler call when no timeout is configured.
const DefaultActionTimeout = 5 * time.Second

// ChainResult summarises one rule's action chain.
type ChainResult struct {
	ActionsRun     int
	ActionsNoop    int
	ActionsSkipped int
	Failure        *domain.ActionFailure
	Err            error
}

// Success reports whether every action completed.
func (r ChainResult) Success() bool {
	return r.Err == nil
}

// Executor runs a rule's actions strictly in order. The first failing action
// stops the chain.
type Executor struct {
	registry *ActionRegistry
	timeout  time.Duration
	logger   *zap.Logger
}

// NewExecutor creates an executor. A non-positive timeout uses DefaultActionTimeout.
func NewExecutor(registry *ActionRegistry, timeout time.Duration, logger *zap.Logger) *Executor {
	if timeout <= 0 {
		timeout = DefaultActionTimeout
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Executor{registry: registry, timeout: timeout, logger: logger}
}

// Run executes actions against the event context. Actions whose type has no
// registered handler are counted as no-ops.
func (x *Executor) Run(ctx context.Context, actions []domain.ActionSpec, event map[string]any) ChainResult {
	var res ChainResult

	for i, a := range actions {
		h, ok := x.registry.Lookup(a.Type)
		if !ok {
			res.ActionsNoop++
			x.logger.Debug("no handler registered, skipping action", zap.String("action_type", string(a.Type)), zap.Int("index", i))
			continue
		}

		if err := x.invoke(ctx, h, a, event); err != nil {
			res.Err = err
			res.Failure = &domain.ActionFailure{
				Index:   i,
				Type:    a.Type,
				Message: err.Error(),
				Timeout: errors.Is(err, ErrActionTimeout),
			}
			res.ActionsSkipped = len(actions) - i - 1
			return res
		}
		res.ActionsRun++
	}
	return res
}

// invoke calls h under the per-action timeout. A handler that ignores its
// context is abandoned once the deadline passes; its goroutine finishes on
// its own.
func (x *Executor) invoke(ctx context.Context, h Handler, a domain.ActionSpec, event map[string]any) error {
	actx, cancel := context.WithTimeout(ctx, x.timeout)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- fmt.Errorf("%w: %s: %v", ErrHandlerPanic, a.Type, r)
			}
		}()
		done <- h(actx, a.Params, event)
	}()

	select {
	case err := <-done:
		if err != nil && errors.Is(err, context.DeadlineExceeded) && actx.Err() != nil {
			return fmt.Errorf("%w: %s after %s", ErrActionTimeout, a.Type, x.timeout)
		}
		return err
	case <-actx.Done():
		return fmt.Errorf("%w: %s after %s", ErrActionTimeout, a.Type, x.timeout)
	}
}
