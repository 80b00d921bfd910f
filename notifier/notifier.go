// Package notifier delivers terminal results on the per-task topic
// "task:<id>". Delivery is one-shot: a result published before anyone
// subscribes is not retained, so consumers subscribe first and then consult
// the job store.
package notifier

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/01cheese/OnlineCompiler/task"
)

// Supported backends.
const (
	BackendRedis  = "redis"
	BackendNATS   = "nats"
	BackendMemory = "memory"
)

// ErrSubscriptionClosed is returned by Subscription.Result after Close.
var ErrSubscriptionClosed = errors.New("subscription closed")

// Notifier publishes results and hands out subscriptions to them.
type Notifier interface {
	Publish(ctx context.Context, result task.Result) error
	Subscribe(ctx context.Context, taskID string) (Subscription, error)
}

// Subscription waits for the result of one task.
type Subscription interface {
	// Result blocks until the result arrives or ctx is done.
	Result(ctx context.Context) (task.Result, error)
	Close() error
}

// Await subscribes to a task and waits for exactly one result.
func Await(ctx context.Context, n Notifier, taskID string) (task.Result, error) {
	sub, err := n.Subscribe(ctx, taskID)
	if err != nil {
		return task.Result{}, err
	}
	defer sub.Close()

	return sub.Result(ctx)
}

func encode(result task.Result) ([]byte, error) {
	payload, err := json.Marshal(result)
	if err != nil {
		return nil, fmt.Errorf("failed to encode result: %w", err)
	}
	return payload, nil
}

func decode(payload []byte) (task.Result, error) {
	var result task.Result
	if err := json.Unmarshal(payload, &result); err != nil {
		return task.Result{}, fmt.Errorf("failed to decode result: %w", err)
	}
	return result, nil
}
