package notifier

import (
	"context"
	"sync"

	"github.com/01cheese/OnlineCompiler/task"
)

// MemoryNotifier delivers results between goroutines of one process.
type MemoryNotifier struct {
	mu     sync.Mutex
	nextID uint64
	subs   map[string]map[uint64]chan task.Result
}

// NewMemoryNotifier creates an empty MemoryNotifier.
func NewMemoryNotifier() *MemoryNotifier {
	return &MemoryNotifier{subs: make(map[string]map[uint64]chan task.Result)}
}

// Publish never blocks: every subscription buffers one result.
func (n *MemoryNotifier) Publish(_ context.Context, result task.Result) error {
	n.mu.Lock()
	defer n.mu.Unlock()

	for _, ch := range n.subs[result.TaskID] {
		select {
		case ch <- result:
		default:
		}
	}
	return nil
}

func (n *MemoryNotifier) Subscribe(_ context.Context, taskID string) (Subscription, error) {
	n.mu.Lock()
	defer n.mu.Unlock()

	id := n.nextID
	n.nextID++
	ch := make(chan task.Result, 1)
	if n.subs[taskID] == nil {
		n.subs[taskID] = make(map[uint64]chan task.Result)
	}
	n.subs[taskID][id] = ch

	return &memorySubscription{parent: n, taskID: taskID, id: id, ch: ch, done: make(chan struct{})}, nil
}

func (n *MemoryNotifier) remove(taskID string, id uint64) {
	n.mu.Lock()
	defer n.mu.Unlock()

	delete(n.subs[taskID], id)
	if len(n.subs[taskID]) == 0 {
		delete(n.subs, taskID)
	}
}

type memorySubscription struct {
	parent *MemoryNotifier
	taskID string
	id     uint64
	ch     chan task.Result
	once   sync.Once
	done   chan struct{}
}

func (s *memorySubscription) Result(ctx context.Context) (task.Result, error) {
	select {
	case result := <-s.ch:
		return result, nil
	case <-s.done:
		return task.Result{}, ErrSubscriptionClosed
	case <-ctx.Done():
		return task.Result{}, ctx.Err()
	}
}

func (s *memorySubscription) Close() error {
	s.once.Do(func() {
		s.parent.remove(s.taskID, s.id)
		close(s.done)
	})
	return nil
}
