package controller

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Task runs fn every Interval between Start and Stop. Stop waits for a run in
// progress to return.
type Task struct {
	Name      string
	Interval  time.Duration
	Immediate bool // run once at Start, before the first tick

	fn     func(context.Context)
	logger *slog.Logger

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

func NewTask(name string, interval time.Duration, fn func(context.Context), logger *slog.Logger) *Task {
	return &Task{Name: name, Interval: interval, fn: fn, logger: logger}
}

// Start launches the task bound to ctx. Starting a running task is a no-op.
func (t *Task) Start(ctx context.Context) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.cancel != nil {
		return
	}

	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	t.cancel, t.done = cancel, done
	go t.run(ctx, done)
	t.logger.Debug("task started", "task", t.Name, "interval", t.Interval)
}

func (t *Task) run(ctx context.Context, done chan struct{}) {
	defer close(done)

	if t.Immediate {
		t.fn(ctx)
	}

	ticker := time.NewTicker(t.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			t.fn(ctx)
		}
	}
}

// Stop cancels the task and waits for it to exit. It must not be called from
// inside fn.
func (t *Task) Stop() {
	t.mu.Lock()
	cancel, done := t.cancel, t.done
	t.cancel, t.done = nil, nil
	t.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
	t.logger.Debug("task stopped", "task", t.Name)
}

func (t *Task) Running() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.cancel != nil
}
