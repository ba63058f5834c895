package worker

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"
)

// DefaultInterval is how often the worker runs its processors when no
// interval is configured.
const DefaultInterval = time.Minute

// Worker runs its processors on a fixed interval in a background goroutine.
type Worker struct {
	processors []Processor
	interval   time.Duration
	logger     *zap.Logger

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// NewWorker creates a worker. A non-positive interval uses DefaultInterval.
func NewWorker(interval time.Duration, logger *zap.Logger, processors ...Processor) (*Worker, error) {
	if len(processors) == 0 {
		return nil, errors.New("worker needs at least one processor")
	}
	if interval <= 0 {
		interval = DefaultInterval
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Worker{
		processors: processors,
		interval:   interval,
		logger:     logger.With(zap.String("component", "worker")),
	}, nil
}

// Start launches the worker loop. Calling Start twice has no effect.
func (w *Worker) Start(ctx context.Context) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.cancel != nil {
		return
	}

	ctx, w.cancel = context.WithCancel(ctx)
	w.done = make(chan struct{})
	w.logger.Info("starting worker", zap.Duration("interval", w.interval), zap.Int("processors", len(w.processors)))

	go w.run(ctx, w.done)
}

// Stop ends the loop and waits for the current cycle to finish.
func (w *Worker) Stop() {
	w.mu.Lock()
	cancel, done := w.cancel, w.done
	w.cancel, w.done = nil, nil
	w.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
	w.logger.Info("worker stopped")
}

// run is the main loop: one cycle right away, then one per tick.
func (w *Worker) run(ctx context.Context, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	w.doWork(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.doWork(ctx)
		}
	}
}

// doWork runs every processor in parallel under a deadline shorter than the interval.
func (w *Worker) doWork(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, w.interval*9/10)
	defer cancel()

	var wg sync.WaitGroup
	for _, p := range w.processors {
		wg.Add(1)
		go func(p Processor) {
			defer wg.Done()
			start := time.Now()
			if err := p.Process(ctx); err != nil {
				w.logger.Error("processor failed", zap.String("processor", p.Name()), zap.Error(err))
				return
			}
			w.logger.Debug("processor finished", zap.String("processor", p.Name()), zap.Duration("took", time.Since(start)))
		}(p)
	}
	wg.Wait()
}
