// Package queue carries submitted tasks from the gateway to workers. Each
// task is delivered to one consumer; at-least-once delivery is acceptable
// because running a task twice only overwrites its stored result.
package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/01cheese/OnlineCompiler/task"
)

// Supported backends.
const (
	BackendRedis  = "redis"
	BackendKafka  = "kafka"
	BackendMemory = "memory"
)

// ErrClosed is returned once a queue has been closed.
var ErrClosed = errors.New("queue closed")

// Queue is a work queue of tasks.
type Queue interface {
	Enqueue(ctx context.Context, t task.Task) error
	// Dequeue blocks until a task is available or ctx is done.
	Dequeue(ctx context.Context) (task.Task, error)
	Close() error
}

// Config selects and parameterizes a backend.
type Config struct {
	Backend  string
	Key      string
	Capacity int
	Kafka    KafkaConfig
}

// New creates the configured queue. rdb is only used by the redis backend.
func New(cfg Config, rdb redis.UniversalClient) (Queue, error) {
	switch cfg.Backend {
	case BackendRedis:
		if rdb == nil {
			return nil, fmt.Errorf("redis backend requires a redis client")
		}
		return NewRedisQueue(rdb, cfg.Key), nil
	case BackendKafka:
		return NewKafkaQueue(cfg.Kafka)
	case BackendMemory:
		return NewMemoryQueue(cfg.Capacity), nil
	default:
		return nil, fmt.Errorf("unsupported queue backend: %s", cfg.Backend)
	}
}

func encodeTask(t task.Task) ([]byte, error) {
	payload, err := json.Marshal(t)
	if err != nil {
		return nil, fmt.Errorf("failed to encode task: %w", err)
	}
	return payload, nil
}

func decodeTask(payload []byte) (task.Task, error) {
	var t task.Task
	if err := json.Unmarshal(payload, &t); err != nil {
		return task.Task{}, fmt.Errorf("failed to decode task: %w", err)
	}
	return t, nil
}
