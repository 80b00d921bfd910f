package queue

import (
	"context"
	"sync"

	"github.com/01cheese/OnlineCompiler/task"
)

// DefaultCapacity is the buffer size of a MemoryQueue.
const DefaultCapacity = 1024

// MemoryQueue is a bounded in-process queue. Enqueue blocks while it is
// full.
type MemoryQueue struct {
	tasks     chan task.Task
	done      chan struct{}
	closeOnce sync.Once
}

// NewMemoryQueue creates a MemoryQueue holding up to capacity tasks.
func NewMemoryQueue(capacity int) *MemoryQueue {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &MemoryQueue{
		tasks: make(chan task.Task, capacity),
		done:  make(chan struct{}),
	}
}

func (q *MemoryQueue) Enqueue(ctx context.Context, t task.Task) error {
	select {
	case <-q.done:
		return ErrClosed
	default:
	}

	select {
	case q.tasks <- t:
		return nil
	case <-q.done:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (q *MemoryQueue) Dequeue(ctx context.Context) (task.Task, error) {
	select {
	case t := <-q.tasks:
		return t, nil
	case <-q.done:
		return task.Task{}, ErrClosed
	case <-ctx.Done():
		return task.Task{}, ctx.Err()
	}
}

// Len reports the number of buffered tasks.
func (q *MemoryQueue) Len() int {
	return len(q.tasks)
}

func (q *MemoryQueue) Close() error {
	q.closeOnce.Do(func() { close(q.done) })
	return nil
}
