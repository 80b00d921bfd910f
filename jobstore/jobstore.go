// Package jobstore keeps terminal results so they can be polled. A task with
// no stored result is pending.
package jobstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/puzpuzpuz/xsync/v3"
	"github.com/redis/go-redis/v9"

	"github.com/01cheese/OnlineCompiler/task"
)

// Supported backends.
const (
	BackendRedis  = "redis"
	BackendMemory = "memory"
)

const keyPrefix = "task:result:"

// Store saves and loads results by task id.
type Store interface {
	Save(ctx context.Context, result task.Result) error
	// Get reports found=false while the task is pending.
	Get(ctx context.Context, taskID string) (result task.Result, found bool, err error)
}

// RedisStore keeps results as JSON strings that expire after ttl.
type RedisStore struct {
	rdb redis.UniversalClient
	ttl time.Duration
}

// NewRedisStore creates a RedisStore. A zero ttl keeps results forever.
func NewRedisStore(rdb redis.UniversalClient, ttl time.Duration) *RedisStore {
	return &RedisStore{rdb: rdb, ttl: ttl}
}

func (s *RedisStore) Save(ctx context.Context, result task.Result) error {
	payload, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("failed to encode result: %w", err)
	}
	if err := s.rdb.Set(ctx, keyPrefix+result.TaskID, payload, s.ttl).Err(); err != nil {
		return fmt.Errorf("failed to save result %s: %w", result.TaskID, err)
	}
	return nil
}

func (s *RedisStore) Get(ctx context.Context, taskID string) (task.Result, bool, error) {
	payload, err := s.rdb.Get(ctx, keyPrefix+taskID).Bytes()
	if errors.Is(err, redis.Nil) {
		return task.Result{}, false, nil
	}
	if err != nil {
		return task.Result{}, false, fmt.Errorf("failed to load result %s: %w", taskID, err)
	}

	var result task.Result
	if err := json.Unmarshal(payload, &result); err != nil {
		return task.Result{}, false, fmt.Errorf("failed to decode result %s: %w", taskID, err)
	}
	return result, true, nil
}

// MemoryStore keeps results in process memory. Results never expire.
type MemoryStore struct {
	results *xsync.MapOf[string, task.Result]
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{results: xsync.NewMapOf[string, task.Result]()}
}

func (s *MemoryStore) Save(_ context.Context, result task.Result) error {
	s.results.Store(result.TaskID, result)
	return nil
}

func (s *MemoryStore) Get(_ context.Context, taskID string) (task.Result, bool, error) {
	result, ok := s.results.Load(taskID)
	return result, ok, nil
}
