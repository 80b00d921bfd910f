package queue

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/01cheese/OnlineCompiler/task"
)

// DefaultKey is the list tasks are pushed onto.
const DefaultKey = "compiler:tasks"

// pollInterval bounds each BRPOP so cancellation is noticed promptly.
const pollInterval = time.Second

// RedisQueue is a FIFO on a Redis list: LPUSH to enqueue, BRPOP to dequeue.
type RedisQueue struct {
	rdb    redis.UniversalClient
	key    string
	closed atomic.Bool
}

// NewRedisQueue creates a RedisQueue on key, or DefaultKey when empty.
func NewRedisQueue(rdb redis.UniversalClient, key string) *RedisQueue {
	if key == "" {
		key = DefaultKey
	}
	return &RedisQueue{rdb: rdb, key: key}
}

func (q *RedisQueue) Enqueue(ctx context.Context, t task.Task) error {
	if q.closed.Load() {
		return ErrClosed
	}
	payload, err := encodeTask(t)
	if err != nil {
		return err
	}
	if err := q.rdb.LPush(ctx, q.key, payload).Err(); err != nil {
		return fmt.Errorf("failed to enqueue task %s: %w", t.ID, err)
	}
	return nil
}

func (q *RedisQueue) Dequeue(ctx context.Context) (task.Task, error) {
	for {
		if q.closed.Load() {
			return task.Task{}, ErrClosed
		}
		if err := ctx.Err(); err != nil {
			return task.Task{}, err
		}

		values, err := q.rdb.BRPop(ctx, pollInterval, q.key).Result()
		if errors.Is(err, redis.Nil) {
			continue
		}
		if err != nil {
			if ctx.Err() != nil {
				return task.Task{}, ctx.Err()
			}
			return task.Task{}, fmt.Errorf("failed to dequeue task: %w", err)
		}

		// BRPOP replies with [key, value].
		return decodeTask([]byte(values[1]))
	}
}

// Close stops further use of the queue. The Redis client is owned by the
// caller and stays open.
func (q *RedisQueue) Close() error {
	q.closed.Store(true)
	return nil
}
