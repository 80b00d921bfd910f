// Package worker pulls tasks off the work queue and runs each one on a
// bounded goroutine pool.
package worker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/panjf2000/ants/v2"
	"go.uber.org/zap"

	"github.com/01cheese/OnlineCompiler/queue"
	"github.com/01cheese/OnlineCompiler/task"
)

const dequeueRetryDelay = time.Second

// Source yields queued tasks. queue.Queue implements it.
type Source interface {
	Dequeue(ctx context.Context) (task.Task, error)
}

// Dispatcher runs one task to a terminal result.
type Dispatcher interface {
	Dispatch(ctx context.Context, t task.Task) task.Result
}

// Pool runs at most its configured number of tasks at once. When every slot
// is busy the dequeue loop waits, leaving further tasks on the queue.
type Pool struct {
	logger     *zap.Logger
	source     Source
	dispatcher Dispatcher
	pool       *ants.Pool
}

// New creates a Pool with the given concurrency.
func New(logger *zap.Logger, source Source, dispatcher Dispatcher, concurrency int) (*Pool, error) {
	if concurrency <= 0 {
		return nil, fmt.Errorf("concurrency must be positive, got: %d", concurrency)
	}

	pool, err := ants.NewPool(concurrency, ants.WithPanicHandler(func(r any) {
		logger.Error("worker panic", zap.Any("panic", r))
	}))
	if err != nil {
		return nil, fmt.Errorf("failed to create worker pool: %w", err)
	}

	return &Pool{
		logger:     logger,
		source:     source,
		dispatcher: dispatcher,
		pool:       pool,
	}, nil
}

// Run dequeues and dispatches tasks until ctx is cancelled or the queue is
// closed. Tasks already running are not cancelled with ctx; they finish
// under their own execution deadline.
func (p *Pool) Run(ctx context.Context) error {
	p.logger.Info("worker started", zap.Int("concurrency", p.pool.Cap()))
	defer p.logger.Info("worker stopped")

	taskCtx := context.WithoutCancel(ctx)

	for {
		t, err := p.source.Dequeue(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, queue.ErrClosed) {
				return nil
			}
			p.logger.Error("failed to dequeue task", zap.Error(err))
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(dequeueRetryDelay):
			}
			continue
		}

		p.logger.Debug("task dequeued", zap.String("task_id", t.ID), zap.String("language", t.Language))

		if err := p.pool.Submit(func() {
			p.dispatcher.Dispatch(taskCtx, t)
		}); err != nil {
			return fmt.Errorf("failed to submit task %s: %w", t.ID, err)
		}
	}
}

// Running reports the number of tasks in flight.
func (p *Pool) Running() int {
	return p.pool.Running()
}

// Stop waits up to timeout for in-flight tasks and releases the pool.
func (p *Pool) Stop(timeout time.Duration) error {
	if err := p.pool.ReleaseTimeout(timeout); err != nil {
		return fmt.Errorf("failed to drain worker pool: %w", err)
	}
	return nil
}
